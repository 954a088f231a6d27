package engine

import (
	"github.com/shopspring/decimal"
	"github.com/tradementor/capitalengine/internal/models"
)

var oneHundred = decimal.NewFromInt(100)

// Metric is a derived value that may be undefined. Division by zero and
// missing operands yield an undefined metric, never a zero: zero is a valid
// answer and would be misleading.
type Metric struct {
	Value decimal.Decimal
	Valid bool
}

func Defined(v decimal.Decimal) Metric {
	return Metric{Value: v, Valid: true}
}

func Undefined() Metric {
	return Metric{}
}

// String renders the metric for display, using an em-dash placeholder when
// the value is undefined.
func (m Metric) String() string {
	if !m.Valid {
		return "—"
	}
	return m.Value.String()
}

// MarshalJSON emits null for undefined metrics.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return m.Value.MarshalJSON()
}

// AmountInvested is the slice of total capital allocated to a trade:
// total_capital × position_percent / 100.
func AmountInvested(totalCapital, positionPercent decimal.Decimal) Metric {
	return Defined(totalCapital.Mul(positionPercent).Div(oneHundred))
}

// RiskAmount is the currency amount at risk between entry and stop:
// |entry − stop| × (amount_invested / entry). Defined only when both entry
// and stop are positive.
func RiskAmount(entryPrice, stopLoss, amountInvested decimal.Decimal) Metric {
	if !entryPrice.IsPositive() || !stopLoss.IsPositive() {
		return Undefined()
	}
	perUnit := entryPrice.Sub(stopLoss).Abs()
	return Defined(perUnit.Mul(amountInvested.Div(entryPrice)))
}

// RiskPerTradePct expresses the risk amount as a percentage of total capital.
func RiskPerTradePct(riskAmount, totalCapital decimal.Decimal) Metric {
	if !totalCapital.IsPositive() {
		return Undefined()
	}
	return Defined(riskAmount.Div(totalCapital).Mul(oneHundred))
}

// Quantity is the whole number of units the invested amount buys at entry,
// rounded to the nearest integer.
func Quantity(amountInvested, entryPrice decimal.Decimal) Metric {
	if !entryPrice.IsPositive() {
		return Undefined()
	}
	return Defined(amountInvested.Div(entryPrice).Round(0))
}

// RRRatio is reward distance over risk distance:
// |reward − entry| / |entry − stop|. Undefined when entry is not positive,
// when the trade has no reward price, or when stop equals entry.
func RRRatio(entryPrice, stopLoss, rewardPrice decimal.Decimal) Metric {
	if !entryPrice.IsPositive() || !rewardPrice.IsPositive() {
		return Undefined()
	}
	riskDistance := entryPrice.Sub(stopLoss).Abs()
	if !stopLoss.IsPositive() || riskDistance.IsZero() {
		return Undefined()
	}
	return Defined(rewardPrice.Sub(entryPrice).Abs().Div(riskDistance))
}

// DerivedMetrics carries every per-trade figure the rendering surfaces show.
// All of them are recomputed on read; nothing here is persisted.
type DerivedMetrics struct {
	AmountInvested  Metric `json:"amount_invested"`
	RiskAmount      Metric `json:"risk_amount"`
	RiskPerTradePct Metric `json:"risk_per_trade_pct"`
	Quantity        Metric `json:"quantity"`
	RRRatio         Metric `json:"rr_ratio"`
}

// TradeMetrics derives the full metric set for one trade. This is the single
// implementation every caller uses: dashboard rows, export rows, and the
// creation-time preview all go through here.
func TradeMetrics(t models.Trade, totalCapital decimal.Decimal) DerivedMetrics {
	invested := AmountInvested(totalCapital, t.PositionPercent)

	stop := decimal.Zero
	if t.StopLoss.Valid {
		stop = t.StopLoss.Decimal
	}

	risk := RiskAmount(t.EntryPrice, stop, invested.Value)

	riskPct := Undefined()
	if risk.Valid {
		riskPct = RiskPerTradePct(risk.Value, totalCapital)
	}

	return DerivedMetrics{
		AmountInvested:  invested,
		RiskAmount:      risk,
		RiskPerTradePct: riskPct,
		Quantity:        Quantity(invested.Value, t.EntryPrice),
		RRRatio:         RRRatio(t.EntryPrice, stop, rewardPrice(t)),
	}
}

// rewardPrice prefers the realized exit price over the projected target.
func rewardPrice(t models.Trade) decimal.Decimal {
	if t.ExitPrice.Valid {
		return t.ExitPrice.Decimal
	}
	if t.TargetPrice.Valid {
		return t.TargetPrice.Decimal
	}
	return decimal.Zero
}

// AggregateMetrics are the per-user figures shown next to the trade table.
type AggregateMetrics struct {
	AvgRR          Metric `json:"avg_rr"`
	OpenRiskAmount Metric `json:"open_risk_amount"`
	OpenRiskPct    Metric `json:"open_risk_pct"`
}

// Aggregates folds a user's trades into the summary metrics. Soft-deleted
// trades contribute nothing. AvgRR averages the defined R:R ratios across
// open and closed trades; open risk sums risk amounts over open trades only.
func Aggregates(trades []models.Trade, totalCapital decimal.Decimal) AggregateMetrics {
	rrSum := decimal.Zero
	rrCount := 0
	openRisk := decimal.Zero

	for i := range trades {
		t := trades[i]
		if t.IsDeleted() {
			continue
		}

		stop := decimal.Zero
		if t.StopLoss.Valid {
			stop = t.StopLoss.Decimal
		}

		if rr := RRRatio(t.EntryPrice, stop, rewardPrice(t)); rr.Valid {
			rrSum = rrSum.Add(rr.Value)
			rrCount++
		}

		if t.IsOpen() {
			invested := AmountInvested(totalCapital, t.PositionPercent)
			if risk := RiskAmount(t.EntryPrice, stop, invested.Value); risk.Valid {
				openRisk = openRisk.Add(risk.Value)
			}
		}
	}

	agg := AggregateMetrics{
		AvgRR:          Undefined(),
		OpenRiskAmount: Defined(openRisk),
		OpenRiskPct:    RiskPerTradePct(openRisk, totalCapital),
	}
	if rrCount > 0 {
		agg.AvgRR = Defined(rrSum.Div(decimal.NewFromInt(int64(rrCount))))
	}
	return agg
}
