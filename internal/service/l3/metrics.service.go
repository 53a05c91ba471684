package l3_service

import (
	"fmt"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
)

type HistoryMetrics struct {
	// percent change from the first to the last equity point
	TotalReturnPct float64 `json:"totalReturnPct"`
	// mean and sample stdev of point-to-point percent changes
	MeanReturnPct  float64 `json:"meanReturnPct"`
	StdevReturnPct float64 `json:"stdevReturnPct"`
	// worst peak-to-trough decline, as a positive percent
	MaxDrawdownPct float64 `json:"maxDrawdownPct"`
}

// CalculateHistoryMetrics summarizes an equity curve. Leading zero points
// (before the account was funded) are ignored.
func CalculateHistoryMetrics(equity []decimal.Decimal) (*HistoryMetrics, error) {
	funded := []decimal.Decimal{}
	for _, e := range equity {
		if len(funded) == 0 && !e.IsPositive() {
			continue
		}
		funded = append(funded, e)
	}

	returns, err := calculateReturns(funded)
	if err != nil {
		return nil, err
	}

	mean, err := stats.Mean(returns)
	if err != nil {
		return nil, fmt.Errorf("failed to compute mean return: %w", err)
	}

	stdev := 0.0
	if len(returns) > 1 {
		stdev, err = stats.StandardDeviationSample(returns)
		if err != nil {
			return nil, fmt.Errorf("failed to compute return stdev: %w", err)
		}
	}

	first := funded[0]
	last := funded[len(funded)-1]
	totalReturn := last.Sub(first).Div(first).Mul(decimal.NewFromInt(100)).InexactFloat64()

	return &HistoryMetrics{
		TotalReturnPct: totalReturn,
		MeanReturnPct:  mean,
		StdevReturnPct: stdev,
		MaxDrawdownPct: maxDrawdown(funded),
	}, nil
}

func calculateReturns(equity []decimal.Decimal) (stats.Float64Data, error) {
	if len(equity) < 2 {
		return nil, fmt.Errorf("cannot calculate metrics on < 2 equity points")
	}

	returns := stats.Float64Data{}
	lastValue := equity[0]
	for _, value := range equity[1:] {
		if lastValue.IsZero() {
			lastValue = value
			continue
		}
		ret := value.Sub(lastValue).Div(lastValue).Mul(decimal.NewFromInt(100)).InexactFloat64()
		returns = append(returns, ret)
		lastValue = value
	}

	if len(returns) == 0 {
		return nil, fmt.Errorf("no non-zero equity points to compare")
	}
	return returns, nil
}

func maxDrawdown(equity []decimal.Decimal) float64 {
	peak := decimal.Zero
	worst := decimal.Zero
	for _, value := range equity {
		if value.GreaterThan(peak) {
			peak = value
			continue
		}
		if peak.IsPositive() {
			drawdown := peak.Sub(value).Div(peak)
			if drawdown.GreaterThan(worst) {
				worst = drawdown
			}
		}
	}
	return worst.Mul(decimal.NewFromInt(100)).InexactFloat64()
}
