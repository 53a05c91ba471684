package integration_tests

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"factortrader/internal/domain"
	"factortrader/internal/repository"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SimulatedAlpacaRepository is an in-memory brokerage. Market orders fill
// immediately at the configured price, limit orders rest as open orders.
// Used by ALPHA_ENV=test deployments and the integration tests.
type SimulatedAlpacaRepository struct {
	mu            sync.Mutex
	cash          decimal.Decimal
	startEquity   decimal.Decimal
	prices        map[string]decimal.Decimal
	crypto        map[string]bool
	positions     map[string]decimal.Decimal
	orders        []alpaca.Order
	rejectSymbols map[string]bool
}

// NewSimulatedAlpacaRepository starts with the given cash and price book.
// Crypto prices should be keyed in pair notation (BTC/USD).
func NewSimulatedAlpacaRepository(cash decimal.Decimal, prices map[string]decimal.Decimal) *SimulatedAlpacaRepository {
	h := &SimulatedAlpacaRepository{
		cash:          cash,
		startEquity:   cash,
		prices:        map[string]decimal.Decimal{},
		crypto:        map[string]bool{},
		positions:     map[string]decimal.Decimal{},
		rejectSymbols: map[string]bool{},
	}
	for symbol, price := range prices {
		key := domain.CanonicalSymbol(symbol)
		h.prices[key] = price
		if domain.IsCryptoSymbol(symbol) {
			h.crypto[key] = true
		}
	}
	return h
}

func DefaultSimulatedAlpacaRepository() repository.AlpacaRepository {
	return NewSimulatedAlpacaRepository(decimal.NewFromInt(100000), map[string]decimal.Decimal{
		"AAPL":    decimal.NewFromInt(200),
		"MSFT":    decimal.NewFromInt(400),
		"GOOGL":   decimal.NewFromInt(150),
		"NVDA":    decimal.NewFromInt(120),
		"SPY":     decimal.NewFromInt(500),
		"BTC/USD": decimal.NewFromInt(60000),
		"ETH/USD": decimal.NewFromInt(3000),
	})
}

// Reject makes every order for symbol fail with a 422.
func (h *SimulatedAlpacaRepository) Reject(symbol string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rejectSymbols[domain.CanonicalSymbol(symbol)] = true
}

func (h *SimulatedAlpacaRepository) positionKey(symbol string, crypto bool) string {
	if crypto {
		return domain.CanonicalSymbol(domain.ToPairSymbol(symbol))
	}
	return domain.CanonicalSymbol(symbol)
}

func (h *SimulatedAlpacaRepository) equity() decimal.Decimal {
	total := h.cash
	for key, qty := range h.positions {
		total = total.Add(qty.Mul(h.prices[key]))
	}
	return total
}

func (h *SimulatedAlpacaRepository) GetAccount() (*alpaca.Account, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return &alpaca.Account{
		Status:         "ACTIVE",
		Currency:       "USD",
		Cash:           h.cash,
		BuyingPower:    h.cash,
		Equity:         h.equity(),
		LastEquity:     h.startEquity,
		PortfolioValue: h.equity(),
	}, nil
}

func (h *SimulatedAlpacaRepository) GetPositions() ([]alpaca.Position, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := []alpaca.Position{}
	for key, qty := range h.positions {
		price := h.prices[key]
		marketValue := qty.Mul(price)
		pl := decimal.Zero
		assetClass := alpaca.USEquity
		if h.crypto[key] {
			assetClass = alpaca.Crypto
		}
		out = append(out, alpaca.Position{
			Symbol:       key,
			Qty:          qty,
			AssetClass:   assetClass,
			MarketValue:  &marketValue,
			CurrentPrice: &price,
			UnrealizedPL: &pl,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

func (h *SimulatedAlpacaRepository) GetOrders(status string) ([]alpaca.Order, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := []alpaca.Order{}
	for _, o := range h.orders {
		open := o.Status == "new"
		if status == "all" || (status == "open" && open) || (status == "closed" && !open) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (h *SimulatedAlpacaRepository) PlaceOrder(req repository.AlpacaPlaceOrderRequest) (*alpaca.Order, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := h.positionKey(req.Symbol, req.Crypto)
	if h.rejectSymbols[key] {
		return nil, &alpaca.APIError{StatusCode: http.StatusUnprocessableEntity, Message: fmt.Sprintf("order for %s rejected", key)}
	}
	price, ok := h.prices[key]
	if !ok {
		return nil, &alpaca.APIError{StatusCode: http.StatusUnprocessableEntity, Message: fmt.Sprintf("asset %s not found", req.Symbol)}
	}
	if (req.Quantity == nil) == (req.Notional == nil) {
		return nil, &alpaca.APIError{StatusCode: http.StatusUnprocessableEntity, Message: "qty or notional is required"}
	}
	if req.Crypto {
		h.crypto[key] = true
	}

	order := alpaca.Order{
		ID:            uuid.NewString(),
		ClientOrderID: req.ClientOrderID.String(),
		Symbol:        key,
		Side:          req.Side,
		Type:          alpaca.Market,
		Qty:           req.Quantity,
		Notional:      req.Notional,
		LimitPrice:    req.LimitPrice,
		CreatedAt:     time.Now(),
		SubmittedAt:   time.Now(),
		Status:        "new",
	}
	if req.LimitPrice != nil {
		order.Type = alpaca.Limit
		h.orders = append(h.orders, order)
		return &order, nil
	}

	qty := decimal.Zero
	if req.Quantity != nil {
		qty = *req.Quantity
	} else {
		qty = req.Notional.Div(price)
	}
	if req.Side == alpaca.Sell {
		qty = decimal.Min(qty, h.positions[key])
		h.cash = h.cash.Add(qty.Mul(price))
		h.positions[key] = h.positions[key].Sub(qty)
		if h.positions[key].IsZero() {
			delete(h.positions, key)
		}
	} else {
		cost := qty.Mul(price)
		if cost.GreaterThan(h.cash) {
			return nil, &alpaca.APIError{StatusCode: http.StatusForbidden, Message: "insufficient buying power"}
		}
		h.cash = h.cash.Sub(cost)
		h.positions[key] = h.positions[key].Add(qty)
	}

	order.Status = "filled"
	order.FilledQty = qty
	order.FilledAvgPrice = &price
	h.orders = append(h.orders, order)
	return &order, nil
}

func (h *SimulatedAlpacaRepository) ClosePosition(symbol string) (*alpaca.Order, error) {
	h.mu.Lock()
	key := ""
	for k := range h.positions {
		if domain.SymbolsMatch(k, symbol) {
			key = k
			break
		}
	}
	qty := h.positions[key]
	crypto := h.crypto[key]
	h.mu.Unlock()

	if key == "" {
		return nil, &alpaca.APIError{StatusCode: http.StatusNotFound, Message: "position does not exist"}
	}
	return h.PlaceOrder(repository.AlpacaPlaceOrderRequest{
		ClientOrderID: uuid.New(),
		Symbol:        key,
		Side:          alpaca.Sell,
		Quantity:      &qty,
		Crypto:        crypto,
	})
}

func (h *SimulatedAlpacaRepository) CloseAllPositions() ([]alpaca.Order, error) {
	positions, err := h.GetPositions()
	if err != nil {
		return nil, err
	}
	out := []alpaca.Order{}
	for _, p := range positions {
		order, err := h.ClosePosition(p.Symbol)
		if err != nil {
			return nil, err
		}
		out = append(out, *order)
	}
	return out, nil
}

func (h *SimulatedAlpacaRepository) CancelOrder(orderID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.orders {
		if h.orders[i].ID == orderID && h.orders[i].Status == "new" {
			h.orders[i].Status = "canceled"
			return nil
		}
	}
	return &alpaca.APIError{StatusCode: http.StatusNotFound, Message: "order not found"}
}

func (h *SimulatedAlpacaRepository) GetLatestTrade(symbol string) (*domain.LatestTrade, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := domain.CanonicalSymbol(symbol)
	price, ok := h.prices[key]
	if !ok {
		price, ok = h.prices[h.positionKey(symbol, true)]
	}
	if !ok {
		return nil, fmt.Errorf("no trade found for %s", symbol)
	}
	return &domain.LatestTrade{
		Symbol:    symbol,
		Price:     price,
		Size:      decimal.NewFromInt(1),
		Timestamp: time.Now(),
	}, nil
}

func (h *SimulatedAlpacaRepository) GetPortfolioHistory(period string) (*alpaca.PortfolioHistory, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	current := h.equity()
	pl := current.Sub(h.startEquity)
	plPct := decimal.Zero
	if h.startEquity.IsPositive() {
		plPct = pl.Div(h.startEquity)
	}
	return &alpaca.PortfolioHistory{
		BaseValue:     h.startEquity,
		Timestamp:     []int64{now.AddDate(0, 0, -1).Unix(), now.Unix()},
		Equity:        []decimal.Decimal{h.startEquity, current},
		ProfitLoss:    []decimal.Decimal{decimal.Zero, pl},
		ProfitLossPct: []decimal.Decimal{decimal.Zero, plPct},
	}, nil
}

func (h *SimulatedAlpacaRepository) IsMarketOpen() (bool, error) {
	return true, nil
}
