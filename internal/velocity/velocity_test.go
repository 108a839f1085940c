package velocity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pinggolf/tile-supply-planner/internal/db"
)

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func weeklySales(productID string, weekStarts []string, qtyM2 float64) []db.SalesRecord {
	out := make([]db.SalesRecord, 0, len(weekStarts))
	for _, w := range weekStarts {
		out = append(out, db.SalesRecord{
			ProductID:  productID,
			WeekStart:  mustDate(w),
			QuantityM2: decimal.NewFromFloat(qtyM2),
		})
	}
	return out
}

func TestAnalyze_NoSales(t *testing.T) {
	today := mustDate("2026-03-01")
	m := Analyze("p1", nil, today)
	if !m.DailyVelocityM2.IsZero() {
		t.Errorf("DailyVelocityM2 = %v, want 0", m.DailyVelocityM2)
	}
	if m.Confidence != ConfidenceLow {
		t.Errorf("Confidence = %v, want low", m.Confidence)
	}
	if m.Direction != DirectionStable {
		t.Errorf("Direction = %v, want stable", m.Direction)
	}
}

func TestAnalyze_SteadyVelocity(t *testing.T) {
	today := mustDate("2026-03-01")
	weeks := []string{
		"2025-09-08", "2025-09-15", "2025-09-22", "2025-09-29",
		"2025-10-06", "2025-10-13", "2025-10-20", "2025-10-27",
		"2025-11-03", "2025-11-10", "2025-11-17", "2025-11-24",
		"2025-12-08", "2025-12-15", "2025-12-22", "2025-12-29",
		"2026-01-05", "2026-01-12", "2026-01-19", "2026-01-26",
		"2026-02-02", "2026-02-09", "2026-02-16", "2026-02-23",
	}
	sales := weeklySales("p1", weeks, 1000)
	m := Analyze("p1", sales, today)

	wantDaily := decimal.NewFromInt(1000 * 12).Div(decimal.NewFromInt(90)).Round(4)
	if !m.DailyVelocityM2.Equal(wantDaily) {
		t.Errorf("DailyVelocityM2 = %v, want %v", m.DailyVelocityM2, wantDaily)
	}
	if !m.CV.IsZero() {
		t.Errorf("CV = %v, want 0 for constant weekly sales", m.CV)
	}
	if m.Direction != DirectionStable {
		t.Errorf("Direction = %v, want stable for flat current-vs-prior", m.Direction)
	}
}

func TestAnalyze_GrowingDirection(t *testing.T) {
	today := mustDate("2026-03-01")
	var sales []db.SalesRecord
	// prior 90d window: low volume
	sales = append(sales, weeklySales("p1", []string{"2025-09-15", "2025-09-22"}, 100)...)
	// current 90d window: much higher volume
	sales = append(sales, weeklySales("p1", []string{"2026-01-05", "2026-01-12", "2026-02-02"}, 1000)...)

	m := Analyze("p1", sales, today)
	if m.Direction != DirectionUp {
		t.Errorf("Direction = %v, want up", m.Direction)
	}
}

func TestClassifySignalTrend(t *testing.T) {
	cases := []struct {
		name      string
		v90, v180 decimal.Decimal
		want      SignalTrend
	}{
		{"both zero", decimal.Zero, decimal.Zero, SignalStable},
		{"180 zero, 90 positive", decimal.NewFromInt(10), decimal.Zero, SignalGrowing},
		{"growing beyond threshold", decimal.NewFromInt(130), decimal.NewFromInt(100), SignalGrowing},
		{"declining beyond threshold", decimal.NewFromInt(70), decimal.NewFromInt(100), SignalDeclining},
		{"within band", decimal.NewFromInt(105), decimal.NewFromInt(100), SignalStable},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := classifySignalTrend(c.v90, c.v180)
			if got != c.want {
				t.Errorf("classifySignalTrend(%v, %v) = %v, want %v", c.v90, c.v180, got, c.want)
			}
		})
	}
}
