package domain

import "strings"

const quoteCurrency = "USD"

// CanonicalSymbol maps every spelling of a symbol onto one key.
// Crypto pairs collapse to their slash-less form, so BTC, BTC/USD and
// BTCUSD all become BTCUSD. Equities are only upper-cased.
func CanonicalSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(s, "/") {
		s = strings.ReplaceAll(s, "/", "")
	}
	return s
}

// pairKey is CanonicalSymbol with the quote currency appended when missing.
func pairKey(symbol string) string {
	s := CanonicalSymbol(symbol)
	if s == "" || strings.HasSuffix(s, quoteCurrency) {
		return s
	}
	return s + quoteCurrency
}

// SymbolsMatch reports whether a brokerage position symbol refers to the
// same instrument as a symbol taken from a factor definition or command.
// Exact matches win; otherwise both sides are compared in pair notation,
// which makes the relation symmetric.
func SymbolsMatch(positionSymbol, inputSymbol string) bool {
	a, b := CanonicalSymbol(positionSymbol), CanonicalSymbol(inputSymbol)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	return pairKey(a) == pairKey(b)
}

// ToPairSymbol converts a bare or slash-less crypto ticker to the pair
// notation the brokerage expects when placing orders (BTC -> BTC/USD).
func ToPairSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(s, "/") {
		return s
	}
	base := strings.TrimSuffix(s, quoteCurrency)
	if base == "" {
		return s
	}
	return base + "/" + quoteCurrency
}

func IsCryptoSymbol(symbol string) bool {
	return strings.Contains(symbol, "/")
}
