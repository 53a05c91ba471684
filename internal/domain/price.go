package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LatestTrade struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Timestamp time.Time       `json:"timestamp"`
}
