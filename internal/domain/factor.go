package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AssetType string

const (
	AssetTypeUnspecified AssetType = ""
	AssetTypeEquity      AssetType = "equity"
	AssetTypeCrypto      AssetType = "crypto"
)

var (
	// |sum(weights) - 1| must not exceed this
	WeightEpsilon = decimal.NewFromFloat(0.001)
	// per-asset dollar deltas below this are not traded
	DustThreshold = decimal.NewFromInt(1)
	// sum of every allocation percentage
	AllocationCap = decimal.NewFromInt(100)
)

type FactorAsset struct {
	Symbol string          `json:"symbol"`
	Weight decimal.Decimal `json:"weight"`
	Type   AssetType       `json:"type,omitempty"`
}

// IsCrypto falls back to the symbol shape when the asset was not tagged.
func (a FactorAsset) IsCrypto() bool {
	if a.Type != AssetTypeUnspecified {
		return a.Type == AssetTypeCrypto
	}
	return IsCryptoSymbol(a.Symbol)
}

type Factor struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description *string       `json:"description,omitempty"`
	Color       string        `json:"color"`
	Assets      []FactorAsset `json:"assets"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func (f Factor) TotalWeight() decimal.Decimal {
	total := decimal.Zero
	for _, a := range f.Assets {
		total = total.Add(a.Weight)
	}
	return total
}

type Allocation struct {
	FactorID    string          `json:"factorId"`
	Percentage  decimal.Decimal `json:"percentage"`
	AllocatedAt time.Time       `json:"allocatedAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name and collapses every run of non-alphanumerics
// into a single hyphen.
func Slugify(name string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
