package parser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"factortrader/internal/domain"

	"github.com/shopspring/decimal"
)

// FactorResolver turns free-text factor names into stored factors. The
// parser resolves names eagerly so that a command naming an unknown or
// ambiguous factor never reaches the dispatcher.
type FactorResolver interface {
	ResolveFactor(ctx context.Context, query string) (*domain.Factor, error)
}

type CommandParser interface {
	Parse(ctx context.Context, raw string) domain.Command
}

type commandParserHandler struct {
	FactorResolver FactorResolver
}

func NewCommandParser(factorResolver FactorResolver) CommandParser {
	return commandParserHandler{FactorResolver: factorResolver}
}

type state struct {
	input  string
	tokens []token
	i      int
}

func (s *state) done() bool {
	return s.i >= len(s.tokens)
}

func (s *state) peek() *token {
	if s.done() {
		return nil
	}
	return &s.tokens[s.i]
}

func (s *state) next() *token {
	t := s.peek()
	if t != nil {
		s.i++
	}
	return t
}

// rest is the raw remaining input, keeping the user's spacing.
func (s *state) rest() string {
	if s.done() {
		return ""
	}
	return strings.TrimSpace(s.input[s.tokens[s.i].pos:])
}

// pos is the offset of the current token, or the end of input.
func (s *state) pos() int {
	if t := s.peek(); t != nil {
		return t.pos
	}
	return len(s.input)
}

func (s *state) errorAt(pos int, format string, args ...any) error {
	return domain.ParseError{
		Input:   s.input,
		Pos:     pos,
		Message: fmt.Sprintf(format, args...),
	}
}

func (s *state) expectEnd() error {
	if t := s.peek(); t != nil {
		return s.errorAt(t.pos, "Unexpected \"%s\"", t.text)
	}
	return nil
}

// Parse never fails; malformed input comes back as an ErrorCommand whose
// message echoes the input.
func (h commandParserHandler) Parse(ctx context.Context, raw string) domain.Command {
	input := strings.TrimSpace(raw)
	if input == "" {
		err := domain.ParseError{Input: raw, Pos: -1, Message: "Empty command"}
		return domain.ErrorCommand{Message: err.Error(), Err: err}
	}

	s := &state{input: input, tokens: lex(input)}
	cmd, err := h.parseCommand(ctx, s)
	if err != nil {
		return domain.ErrorCommand{Message: errorMessage(err), Err: err}
	}
	return cmd
}

func errorMessage(err error) string {
	var nf domain.NotFoundError
	if errors.As(err, &nf) {
		return fmt.Sprintf("No factor found matching \"%s\"", nf.Key)
	}
	return err.Error()
}

func (h commandParserHandler) parseCommand(ctx context.Context, s *state) (domain.Command, error) {
	verb := s.next()
	if verb == nil || verb.kind != tokWord {
		return nil, s.errorAt(-1, "Unknown command")
	}

	switch strings.ToLower(verb.text) {
	case "help", "?":
		return literal(s, domain.HelpCommand{})
	case "account", "acc":
		return literal(s, domain.AccountCommand{})
	case "positions", "pos":
		return literal(s, domain.PositionsCommand{})
	case "pnl", "p&l", "pl":
		return literal(s, domain.PnlCommand{})
	case "orders":
		return literal(s, domain.OrdersCommand{})
	case "factors":
		return literal(s, domain.FactorsCommand{})
	case "liquidate", "closeall":
		return literal(s, domain.CloseAllCommand{})
	case "close":
		return parseClose(s)
	case "cancel":
		return parseCancel(s)
	case "history":
		return parseHistory(s)
	case "price":
		symbol, err := parseSymbol(s)
		if err != nil {
			return nil, err
		}
		return domain.PriceCommand{Symbol: symbol}, s.expectEnd()
	case "buy":
		return parseOrder(s, domain.SideBuy)
	case "sell":
		return parseOrder(s, domain.SideSell)
	case "allocate", "reallocate":
		return h.parseAllocate(ctx, s, strings.ToLower(verb.text) == "reallocate")
	case "deallocate":
		factor, err := h.parseFactorName(ctx, s)
		if err != nil {
			return nil, err
		}
		return domain.DeallocateCommand{FactorID: factor.ID, FactorName: factor.Name}, nil
	case "rebalance":
		if s.done() {
			return domain.RebalanceCommand{}, nil
		}
		factor, err := h.parseFactorName(ctx, s)
		if err != nil {
			return nil, err
		}
		return domain.RebalanceCommand{FactorID: factor.ID, FactorName: factor.Name}, nil
	case "factor":
		factor, err := h.parseFactorName(ctx, s)
		if err != nil {
			return nil, err
		}
		return domain.FactorDetailCommand{FactorID: factor.ID, FactorName: factor.Name}, nil
	}

	return nil, s.errorAt(-1, "Unknown command")
}

func literal(s *state, cmd domain.Command) (domain.Command, error) {
	if err := s.expectEnd(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func parseClose(s *state) (domain.Command, error) {
	if t := s.peek(); t != nil && t.is("all") {
		s.next()
		return literal(s, domain.CloseAllCommand{})
	}
	symbol, err := parseSymbol(s)
	if err != nil {
		return nil, err
	}
	return domain.CloseCommand{Symbol: symbol}, s.expectEnd()
}

func parseCancel(s *state) (domain.Command, error) {
	if s.done() {
		return domain.CancelOrdersCommand{}, nil
	}
	id := s.next()
	return domain.CancelOrdersCommand{OrderID: id.text}, s.expectEnd()
}

func parseHistory(s *state) (domain.Command, error) {
	if s.done() {
		return domain.HistoryCommand{}, nil
	}
	period := s.next()
	return domain.HistoryCommand{Period: strings.ToUpper(period.text)}, s.expectEnd()
}

var (
	symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9./\-]*$`)
	reservedWords = []string{"at", "limit", "of", "worth", "notional", "to"}
)

func parseSymbol(s *state) (string, error) {
	t := s.peek()
	if t == nil {
		return "", s.errorAt(s.pos(), "Expected a symbol")
	}
	if t.kind != tokWord || t.is(reservedWords...) {
		return "", s.errorAt(t.pos, "Expected a symbol but found \"%s\"", t.text)
	}
	symbol := strings.ToUpper(t.text)
	if !symbolPattern.MatchString(symbol) {
		return "", s.errorAt(t.pos, "Invalid symbol \"%s\"", t.text)
	}
	s.next()
	return symbol, nil
}

func parsePercentage(s *state) (decimal.Decimal, error) {
	t := s.peek()
	if t == nil || (t.kind != tokNumber && t.kind != tokPercent) {
		return decimal.Zero, s.errorAt(s.pos(), "Expected a percentage")
	}
	s.next()
	if t.kind == tokNumber {
		// "25 %"
		if p := s.peek(); p != nil && p.is("%") {
			s.next()
		}
	}
	if t.value.LessThanOrEqual(decimal.Zero) || t.value.GreaterThan(domain.AllocationCap) {
		return decimal.Zero, s.errorAt(t.pos, "Percentage must be between 0 and 100 (got %s)", t.value.String())
	}
	return t.value, nil
}

func (h commandParserHandler) parseFactorName(ctx context.Context, s *state) (*domain.Factor, error) {
	name := s.rest()
	if name == "" {
		return nil, s.errorAt(s.pos(), "Expected a factor name")
	}
	s.i = len(s.tokens)
	return h.FactorResolver.ResolveFactor(ctx, name)
}

func (h commandParserHandler) parseAllocate(ctx context.Context, s *state, reallocate bool) (domain.Command, error) {
	percentage, err := parsePercentage(s)
	if err != nil {
		return nil, err
	}
	if t := s.peek(); t != nil && t.is("to") {
		s.next()
	}
	factor, err := h.parseFactorName(ctx, s)
	if err != nil {
		return nil, err
	}

	if reallocate {
		return domain.ReallocateCommand{FactorID: factor.ID, FactorName: factor.Name, Percentage: percentage}, nil
	}
	return domain.AllocateCommand{FactorID: factor.ID, FactorName: factor.Name, Percentage: percentage}, nil
}
