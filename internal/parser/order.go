package parser

import (
	"factortrader/internal/domain"

	"github.com/shopspring/decimal"
)

// orderShape tries to read the tokens after buy/sell as one sizing form.
// On failure it returns the offset where the form stopped matching.
type orderShape func(s *state, cmd *domain.OrderCommand) (ok bool, failPos int)

// tried in order; the first that consumes every token wins
var orderShapes = []orderShape{
	qtyThenSymbol,
	symbolThenAmount,
	dollarThenSymbol,
	dollarOfSymbol,
}

func parseOrder(s *state, side domain.OrderSide) (domain.Command, error) {
	start := s.i
	furthest := -1
	for _, shape := range orderShapes {
		s.i = start
		cmd := domain.OrderCommand{Side: side}
		ok, failPos := shape(s, &cmd)
		if ok {
			return cmd, nil
		}
		if failPos > furthest {
			furthest = failPos
		}
	}

	if start == len(s.tokens) {
		return nil, s.errorAt(len(s.input), "Expected a symbol to %s", side)
	}
	if furthest >= len(s.input) {
		return nil, s.errorAt(furthest, "Incomplete %s order", side)
	}
	return nil, s.errorAt(furthest, "Could not understand %s order", side)
}

func amount(t *token) *decimal.Decimal {
	if t == nil || (t.kind != tokNumber && t.kind != tokDollar) {
		return nil
	}
	v := t.value
	return &v
}

// limitClause reads an optional "at|@|limit <price>".
func limitClause(s *state, cmd *domain.OrderCommand) (ok bool, failPos int) {
	t := s.peek()
	if t == nil || !(t.kind == tokAt || t.is("at", "limit")) {
		return true, 0
	}
	s.next()
	price := amount(s.peek())
	if price == nil {
		return false, s.pos()
	}
	s.next()
	cmd.LimitPrice = price
	return true, 0
}

func symbol(s *state, cmd *domain.OrderCommand) (ok bool, failPos int) {
	pos := s.pos()
	sym, err := parseSymbol(s)
	if err != nil {
		return false, pos
	}
	cmd.Symbol = sym
	return true, 0
}

func end(s *state) (ok bool, failPos int) {
	if s.done() {
		return true, 0
	}
	return false, s.pos()
}

// buy 10 AAPL [at 150]
func qtyThenSymbol(s *state, cmd *domain.OrderCommand) (bool, int) {
	t := s.peek()
	if t == nil || t.kind != tokNumber {
		return false, s.pos()
	}
	s.next()
	qty := t.value
	cmd.Qty = &qty

	if ok, pos := symbol(s, cmd); !ok {
		return false, pos
	}
	if ok, pos := limitClause(s, cmd); !ok {
		return false, pos
	}
	return end(s)
}

// buy AAPL [at 150] [500 worth|notional]
func symbolThenAmount(s *state, cmd *domain.OrderCommand) (bool, int) {
	if ok, pos := symbol(s, cmd); !ok {
		return false, pos
	}
	if ok, pos := limitClause(s, cmd); !ok {
		return false, pos
	}
	if s.done() {
		return true, 0
	}

	notional := amount(s.peek())
	if notional == nil {
		return false, s.pos()
	}
	s.next()
	if t := s.peek(); t == nil || !t.is("worth", "notional") {
		return false, s.pos()
	}
	s.next()
	cmd.Notional = notional
	return end(s)
}

// buy $500 AAPL [at 150]
func dollarThenSymbol(s *state, cmd *domain.OrderCommand) (bool, int) {
	t := s.peek()
	if t == nil || t.kind != tokDollar {
		return false, s.pos()
	}
	s.next()
	notional := t.value
	cmd.Notional = &notional

	if ok, pos := symbol(s, cmd); !ok {
		return false, pos
	}
	if ok, pos := limitClause(s, cmd); !ok {
		return false, pos
	}
	return end(s)
}

// buy $500 of|worth AAPL [at 150]
func dollarOfSymbol(s *state, cmd *domain.OrderCommand) (bool, int) {
	t := s.peek()
	if t == nil || t.kind != tokDollar {
		return false, s.pos()
	}
	s.next()
	notional := t.value
	cmd.Notional = &notional

	if of := s.peek(); of == nil || !of.is("of", "worth") {
		return false, s.pos()
	}
	s.next()

	if ok, pos := symbol(s, cmd); !ok {
		return false, pos
	}
	if ok, pos := limitClause(s, cmd); !ok {
		return false, pos
	}
	return end(s)
}
