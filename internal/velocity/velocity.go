// Package velocity aggregates weekly sales into per-SKU daily demand rate
// and trend classification (spec §4.2).
package velocity

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pinggolf/tile-supply-planner/internal/db"
)

// Confidence is the closed enum for a velocity estimate's reliability.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Direction is the closed enum for short-window trend direction.
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// Strength qualifies how pronounced a Direction change is.
type Strength string

const (
	StrengthStrong   Strength = "strong"
	StrengthModerate Strength = "moderate"
	StrengthWeak     Strength = "weak"
)

// SignalTrend is the closed enum for the 90d-vs-180d velocity-trend signal.
type SignalTrend string

const (
	SignalGrowing   SignalTrend = "growing"
	SignalStable    SignalTrend = "stable"
	SignalDeclining SignalTrend = "declining"
)

// TrendMetrics is every field the Velocity Analyzer can produce for one
// product, defined as a struct rather than a duck-typed map (spec §9.1).
type TrendMetrics struct {
	ProductID           string
	DailyVelocityM2     decimal.Decimal
	CV                  decimal.Decimal
	Confidence          Confidence
	Direction           Direction
	Strength            Strength
	ChangePct           decimal.Decimal
	VelocityTrendSignal SignalTrend
}

// weeklyBucket accumulates one week's sales for mean/stddev computation.
type weeklyBucket struct {
	weekStart time.Time
	total     decimal.Decimal
}

// Analyze computes TrendMetrics for one product given its full sales
// history and the "today" reference point. today is injected (never
// time.Now()) so scenarios E1-E6 (spec §8.3) can pin 2026-03-01.
func Analyze(productID string, sales []db.SalesRecord, today time.Time) TrendMetrics {
	windowCur := windowSales(sales, today, 90, 0)
	windowPrior := windowSales(sales, today, 90, 90)
	window180 := windowSales(sales, today, 180, 0)

	dailyVelocity := sumM2(windowCur).Div(decimal.NewFromInt(90))

	cv, sampleCount := coefficientOfVariation(windowCur)
	confidence := classifyConfidence(sampleCount, cv)

	direction, strength, changePct := classifyDirection(sumM2(windowCur), sumM2(windowPrior))

	velocity90 := dailyVelocity
	velocity180 := sumM2(window180).Div(decimal.NewFromInt(180))
	signal := classifySignalTrend(velocity90, velocity180)

	if len(windowCur) == 0 {
		return TrendMetrics{
			ProductID:           productID,
			DailyVelocityM2:     decimal.Zero,
			CV:                  decimal.Zero,
			Confidence:          ConfidenceLow,
			Direction:           DirectionStable,
			Strength:            StrengthWeak,
			ChangePct:           decimal.Zero,
			VelocityTrendSignal: SignalStable,
		}
	}

	return TrendMetrics{
		ProductID:           productID,
		DailyVelocityM2:     dailyVelocity.Round(4),
		CV:                  cv.Round(4),
		Confidence:          confidence,
		Direction:           direction,
		Strength:            strength,
		ChangePct:           changePct.Round(4),
		VelocityTrendSignal: signal,
	}
}

// windowSales returns sales records whose week_start falls in
// [today - (offsetDays+windowDays), today - offsetDays).
func windowSales(sales []db.SalesRecord, today time.Time, windowDays, offsetDays int) []db.SalesRecord {
	end := today.AddDate(0, 0, -offsetDays)
	start := end.AddDate(0, 0, -windowDays)
	var out []db.SalesRecord
	for _, s := range sales {
		if !s.WeekStart.Before(start) && s.WeekStart.Before(end) {
			out = append(out, s)
		}
	}
	return out
}

func sumM2(sales []db.SalesRecord) decimal.Decimal {
	total := decimal.Zero
	for _, s := range sales {
		total = total.Add(s.QuantityM2)
	}
	return total
}

// coefficientOfVariation buckets sales by week and returns stddev/mean
// over those weekly totals, plus the sample count (number of weekly
// buckets) used by the confidence classifier.
func coefficientOfVariation(sales []db.SalesRecord) (decimal.Decimal, int) {
	buckets := map[time.Time]decimal.Decimal{}
	for _, s := range sales {
		buckets[s.WeekStart] = buckets[s.WeekStart].Add(s.QuantityM2)
	}
	n := len(buckets)
	if n == 0 {
		return decimal.Zero, 0
	}

	values := make([]float64, 0, n)
	for _, v := range buckets {
		f, _ := v.Float64()
		values = append(values, f)
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	if mean == 0 {
		return decimal.Zero, n
	}

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(n)
	stddev := math.Sqrt(variance)

	cv := stddev / mean
	return decimal.NewFromFloat(cv), n
}

func classifyConfidence(sampleCount int, cv decimal.Decimal) Confidence {
	half := decimal.NewFromFloat(0.5)
	one := decimal.NewFromInt(1)
	switch {
	case sampleCount >= 8 && cv.LessThan(half):
		return ConfidenceHigh
	case sampleCount >= 4 && cv.LessThan(one):
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// classifyDirection compares current-vs-prior 90-day totals (spec §4.2).
func classifyDirection(current, prior decimal.Decimal) (Direction, Strength, decimal.Decimal) {
	if prior.IsZero() {
		if current.IsZero() {
			return DirectionStable, StrengthWeak, decimal.Zero
		}
		return DirectionUp, StrengthStrong, decimal.NewFromInt(100)
	}

	changePct := current.Sub(prior).Div(prior).Mul(decimal.NewFromInt(100))
	abs := changePct.Abs()

	five := decimal.NewFromInt(5)
	twenty := decimal.NewFromInt(20)

	if abs.LessThan(five) {
		return DirectionStable, StrengthWeak, changePct
	}

	dir := DirectionUp
	if changePct.IsNegative() {
		dir = DirectionDown
	}

	strength := StrengthModerate
	if abs.GreaterThanOrEqual(twenty) {
		strength = StrengthStrong
	}

	return dir, strength, changePct
}

// classifySignalTrend compares 90-day vs 180-day velocity (spec §4.2).
func classifySignalTrend(velocity90, velocity180 decimal.Decimal) SignalTrend {
	if velocity180.IsZero() {
		if velocity90.IsZero() {
			return SignalStable
		}
		return SignalGrowing
	}

	ratio := velocity90.Div(velocity180)
	switch {
	case ratio.GreaterThan(decimal.NewFromFloat(1.20)):
		return SignalGrowing
	case ratio.LessThan(decimal.NewFromFloat(0.80)):
		return SignalDeclining
	default:
		return SignalStable
	}
}
