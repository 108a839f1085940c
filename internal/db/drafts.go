package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pinggolf/tile-supply-planner/internal/apperr"
)

// ListDraftsByFactory returns every draft for a factory, across all
// boats, in no particular order. Used by the simulator to locate a draft for
// a given (boat, factory) pair and by the post-pass draft-lock check.
func (s *Store) ListDraftsByFactory(ctx context.Context, factoryID string) ([]Draft, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.boat_id, d.factory_id, d.state, d.created_at, d.updated_at
		FROM boat_factory_drafts d
		WHERE d.factory_id = $1
	`, factoryID)
	if err != nil {
		return nil, apperr.Wrap("list drafts", err)
	}
	defer rows.Close()

	var drafts []Draft
	byID := make(map[string]*Draft)
	for rows.Next() {
		var d Draft
		if err := rows.Scan(&d.ID, &d.BoatID, &d.FactoryID, &d.State, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, apperr.Wrap("scan draft", err)
		}
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap("iterate drafts", err)
	}
	for i := range drafts {
		byID[drafts[i].ID] = &drafts[i]
	}
	if len(drafts) == 0 {
		return drafts, nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT di.draft_id, di.product_id, p.sku, di.selected_pallets, di.bl_number
		FROM draft_items di
		JOIN products p ON p.id = di.product_id
		JOIN boat_factory_drafts d ON d.id = di.draft_id
		WHERE d.factory_id = $1
	`, factoryID)
	if err != nil {
		return nil, apperr.Wrap("list draft items", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var it DraftItem
		if err := itemRows.Scan(&it.DraftID, &it.ProductID, &it.SKU, &it.SelectedPallets, &it.BLNumber); err != nil {
			return nil, apperr.Wrap("scan draft item", err)
		}
		if d, ok := byID[it.DraftID]; ok {
			d.Items = append(d.Items, it)
		}
	}
	return drafts, itemRows.Err()
}

// UpsertDraftParams carries the parent-row fields plus a full replacement
// of child items (spec §5: "draft upsert = insert/update parent row +
// bulk replace of child items").
type UpsertDraftParams struct {
	BoatID    string
	FactoryID string
	State     DraftState
	Items     []DraftItem
}

// UpsertDraft inserts or replaces a draft for (boat, factory), enforcing
// the "at most one draft per boat per factory" invariant (spec §3) via
// the unique constraint on (boat_id, factory_id).
func (s *Store) UpsertDraft(ctx context.Context, params UpsertDraftParams) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", apperr.Wrap("begin draft upsert", err)
	}
	defer tx.Rollback()

	var draftID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO boat_factory_drafts (boat_id, factory_id, state, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (boat_id, factory_id) DO UPDATE SET
			state = EXCLUDED.state,
			updated_at = NOW()
		RETURNING id
	`, params.BoatID, params.FactoryID, params.State).Scan(&draftID)
	if err != nil {
		return "", apperr.Wrap("upsert draft parent", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM draft_items WHERE draft_id = $1`, draftID); err != nil {
		return "", apperr.Wrap("clear draft items", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO draft_items (draft_id, product_id, selected_pallets, bl_number)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return "", apperr.Wrap("prepare draft item insert", err)
	}
	defer stmt.Close()

	for _, item := range params.Items {
		if _, err := stmt.ExecContext(ctx, draftID, item.ProductID, item.SelectedPallets, item.BLNumber); err != nil {
			return "", apperr.Wrap("insert draft item", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", apperr.Wrap("commit draft upsert", err)
	}
	return draftID, nil
}

// TransitionDraft validates and applies a state-machine move, returning a
// *apperr.Error with KindConflict (mapped to HTTP 409) on an illegal move.
func (s *Store) TransitionDraft(ctx context.Context, draftID string, to DraftState) error {
	var current DraftState
	err := s.db.QueryRowContext(ctx, `SELECT state FROM boat_factory_drafts WHERE id = $1`, draftID).Scan(&current)
	if err == sql.ErrNoRows {
		return apperr.NotFound(fmt.Sprintf("draft %s not found", draftID))
	}
	if err != nil {
		return apperr.Wrap("load draft state", err)
	}

	next, err := NextDraftState(current, to)
	if err != nil {
		return apperr.Conflict(err.Error())
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE boat_factory_drafts SET state = $1, updated_at = NOW() WHERE id = $2
	`, next, draftID)
	if err != nil {
		return apperr.Wrap("update draft state", err)
	}
	return nil
}

// CancelDraft removes a draft, but only while still `drafting` (spec §3:
// "cancel possible from drafting only").
func (s *Store) CancelDraft(ctx context.Context, draftID string) error {
	var current DraftState
	err := s.db.QueryRowContext(ctx, `SELECT state FROM boat_factory_drafts WHERE id = $1`, draftID).Scan(&current)
	if err == sql.ErrNoRows {
		return apperr.NotFound(fmt.Sprintf("draft %s not found", draftID))
	}
	if err != nil {
		return apperr.Wrap("load draft state", err)
	}
	if !current.CanCancel() {
		return apperr.Conflict(fmt.Sprintf("draft %s cannot be cancelled from state %s", draftID, current))
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM boat_factory_drafts WHERE id = $1`, draftID)
	if err != nil {
		return apperr.Wrap("cancel draft", err)
	}
	return nil
}
