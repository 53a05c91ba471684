package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"factortrader/internal/domain"
	l1_service "factortrader/internal/service/l1"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

type factorAssetRow struct {
	Symbol string `csv:"symbol"`
	Weight string `csv:"weight"`
	Type   string `csv:"type"`
}

// ParseFactorAssets reads symbol,weight[,type] rows with a header line.
// Weights may be fractions (0.25) or percentages (25%).
func ParseFactorAssets(r io.Reader) ([]domain.FactorAsset, error) {
	rows := []factorAssetRow{}
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to read factor csv: %w", err)
	}

	assets := []domain.FactorAsset{}
	for i, row := range rows {
		raw := strings.TrimSpace(row.Weight)
		isPct := strings.HasSuffix(raw, "%")
		weight, err := decimal.NewFromString(strings.TrimSuffix(raw, "%"))
		if err != nil {
			return nil, domain.NewValidationError("row %d: invalid weight %q", i+1, row.Weight)
		}
		if isPct {
			weight = weight.Div(decimal.NewFromInt(100))
		}
		assets = append(assets, domain.FactorAsset{
			Symbol: row.Symbol,
			Weight: weight,
			Type:   domain.AssetType(strings.TrimSpace(row.Type)),
		})
	}
	return assets, nil
}

func ImportFactor(ctx context.Context, factorService l1_service.FactorService, name string, color string, r io.Reader) (*domain.Factor, error) {
	assets, err := ParseFactorAssets(r)
	if err != nil {
		return nil, err
	}
	return factorService.Create(ctx, l1_service.CreateFactorInput{
		Name:   name,
		Color:  color,
		Assets: assets,
	})
}
