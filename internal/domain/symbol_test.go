package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSymbolsMatch(t *testing.T) {
	cases := []struct {
		position string
		input    string
		match    bool
	}{
		{"BTC", "BTC", true},
		{"BTCUSD", "BTC", true},
		{"BTC", "BTCUSD", true},
		{"BTC/USD", "BTC", true},
		{"BTC", "BTC/USD", true},
		{"BTCUSD", "BTC/USD", true},
		{"btc/usd", "BTCUSD", true},
		{"ETHUSD", "BTC", false},
		{"AAPL", "AAPL", true},
		{"aapl", "AAPL", true},
		{"AAPL", "MSFT", false},
		{"AAPL", "AAPLUSD", true},
		{"", "", false},
		{"AAPL", "", false},
	}

	for _, tc := range cases {
		require.Equal(t, tc.match, SymbolsMatch(tc.position, tc.input), "%s vs %s", tc.position, tc.input)
		require.Equal(t, tc.match, SymbolsMatch(tc.input, tc.position), "%s vs %s", tc.input, tc.position)
	}
}

func TestToPairSymbol(t *testing.T) {
	require.Equal(t, "BTC/USD", ToPairSymbol("BTC"))
	require.Equal(t, "BTC/USD", ToPairSymbol("btcusd"))
	require.Equal(t, "ETH/USD", ToPairSymbol("ETH/USD"))
	require.Equal(t, "USD", ToPairSymbol("USD"))
}

func TestCanonicalSymbol(t *testing.T) {
	require.Equal(t, "BTCUSD", CanonicalSymbol(" btc/usd "))
	require.Equal(t, "BRK.B", CanonicalSymbol("brk.b"))
	require.True(t, IsCryptoSymbol("ETH/USD"))
	require.False(t, IsCryptoSymbol("ETHUSD"))
}

func TestSlugify(t *testing.T) {
	require.Equal(t, "tech-factor", Slugify("Tech Factor"))
	require.Equal(t, "tech-ai-leaders", Slugify("  Tech & AI -- Leaders! "))
	require.Equal(t, "q3-2024", Slugify("Q3/2024"))
	require.Equal(t, "", Slugify("!!!"))
}

func TestFactor_TotalWeight(t *testing.T) {
	f := Factor{Assets: []FactorAsset{
		{Symbol: "A", Weight: decimal.RequireFromString("0.25")},
		{Symbol: "B", Weight: decimal.RequireFromString("0.75")},
	}}
	require.Equal(t, "1", f.TotalWeight().String())
	require.True(t, FactorAsset{Symbol: "BTC/USD"}.IsCrypto())
	require.True(t, FactorAsset{Symbol: "BTC", Type: AssetTypeCrypto}.IsCrypto())
	require.False(t, FactorAsset{Symbol: "AAPL", Type: AssetTypeEquity}.IsCrypto())
}
