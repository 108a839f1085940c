package api

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/pinggolf/tile-supply-planner/internal/db"
)

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func decimalFromPallets(pallets int) decimal.Decimal {
	return decimal.NewFromInt(int64(pallets)).Mul(db.M2PerPallet)
}
