package domain

import "github.com/shopspring/decimal"

const (
	TradeStatusFailed = "failed"
)

// TradeResult is one attempted order. Status is the brokerage order status,
// or "failed" when the call itself errored.
type TradeResult struct {
	Symbol   string           `json:"symbol"`
	Side     OrderSide        `json:"side"`
	Qty      *decimal.Decimal `json:"qty,omitempty"`
	Notional *decimal.Decimal `json:"notional,omitempty"`
	OrderID  *string          `json:"orderId,omitempty"`
	Status   string           `json:"status"`
	Error    *string          `json:"error,omitempty"`
}

func (t TradeResult) Failed() bool {
	return t.Status == TradeStatusFailed
}

// AllocationResult is built per allocate/deallocate/rebalance call and is
// never stored. Errors mirrors the failed entries of Trades.
type AllocationResult struct {
	FactorName      string          `json:"factorName"`
	Percentage      decimal.Decimal `json:"percentage"`
	EquityAllocated decimal.Decimal `json:"equityAllocated"`
	Trades          []TradeResult   `json:"trades"`
	Errors          []string        `json:"errors"`
}

func (r *AllocationResult) recordFailure(t TradeResult, err error) {
	msg := err.Error()
	t.Status = TradeStatusFailed
	t.Error = &msg
	r.Trades = append(r.Trades, t)
	r.Errors = append(r.Errors, msg)
}

// AddTrade appends the outcome of one order attempt.
func (r *AllocationResult) AddTrade(t TradeResult, err error) {
	if err != nil {
		r.recordFailure(t, err)
		return
	}
	r.Trades = append(r.Trades, t)
}

func NewAllocationResult(factorName string, percentage decimal.Decimal) *AllocationResult {
	return &AllocationResult{
		FactorName:      factorName,
		Percentage:      percentage,
		EquityAllocated: decimal.Zero,
		Trades:          []TradeResult{},
		Errors:          []string{},
	}
}

type RebalanceSkip struct {
	FactorName string `json:"factorName"`
	Reason     string `json:"reason"`
}

type RebalanceAllResult struct {
	Rebalanced []AllocationResult `json:"rebalanced"`
	Skipped    []RebalanceSkip    `json:"skipped"`
}
