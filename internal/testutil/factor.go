package testutil

import (
	"factortrader/internal/domain"

	"github.com/shopspring/decimal"
)

func Asset(symbol string, weight float64) domain.FactorAsset {
	return domain.FactorAsset{
		Symbol: symbol,
		Weight: decimal.NewFromFloat(weight),
	}
}

func CryptoAsset(symbol string, weight float64) domain.FactorAsset {
	a := Asset(symbol, weight)
	a.Type = domain.AssetTypeCrypto
	return a
}

func NewFactor(name string, assets ...domain.FactorAsset) domain.Factor {
	return domain.Factor{
		ID:     domain.Slugify(name),
		Name:   name,
		Color:  "#000000",
		Assets: assets,
	}
}
