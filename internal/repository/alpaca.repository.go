package repository

import (
	"fmt"
	"net/http"
	"time"

	"factortrader/internal/domain"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlpacaRepository is the brokerage gateway. Every method is a single
// blocking network call.
type AlpacaRepository interface {
	GetAccount() (*alpaca.Account, error)
	GetPositions() ([]alpaca.Position, error)
	GetOrders(status string) ([]alpaca.Order, error)
	PlaceOrder(req AlpacaPlaceOrderRequest) (*alpaca.Order, error)
	ClosePosition(symbol string) (*alpaca.Order, error)
	CloseAllPositions() ([]alpaca.Order, error)
	CancelOrder(orderID string) error
	GetLatestTrade(symbol string) (*domain.LatestTrade, error)
	GetPortfolioHistory(period string) (*alpaca.PortfolioHistory, error)
	IsMarketOpen() (bool, error)
}

type AlpacaConfig struct {
	ApiKey     string
	ApiSecret  string
	Endpoint   string
	Timeout    time.Duration
	RetryLimit int
}

func NewAlpacaRepository(cfg AlpacaConfig) AlpacaRepository {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:     cfg.ApiKey,
		APISecret:  cfg.ApiSecret,
		BaseURL:    cfg.Endpoint,
		RetryLimit: cfg.RetryLimit,
		HTTPClient: httpClient,
	})

	mdClient := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:     cfg.ApiKey,
		APISecret:  cfg.ApiSecret,
		RetryLimit: cfg.RetryLimit,
		HTTPClient: httpClient,
	})

	return &alpacaRepositoryHandler{
		Client:   client,
		MdClient: mdClient,
	}
}

type alpacaRepositoryHandler struct {
	Client   *alpaca.Client
	MdClient *marketdata.Client
}

func (h alpacaRepositoryHandler) GetAccount() (*alpaca.Account, error) {
	acct, err := h.Client.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acct, nil
}

func (h alpacaRepositoryHandler) GetPositions() ([]alpaca.Position, error) {
	positions, err := h.Client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	return positions, nil
}

func (h alpacaRepositoryHandler) GetOrders(status string) ([]alpaca.Order, error) {
	orders, err := h.Client.GetOrders(alpaca.GetOrdersRequest{
		Status: status,
		Until:  time.Now(),
		Limit:  500,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s orders: %w", status, err)
	}
	return orders, nil
}

type AlpacaPlaceOrderRequest struct {
	ClientOrderID uuid.UUID
	Symbol        string
	Side          alpaca.Side
	Quantity      *decimal.Decimal
	Notional      *decimal.Decimal
	LimitPrice    *decimal.Decimal
	Crypto        bool
}

func (a AlpacaPlaceOrderRequest) isValid() error {
	if (a.Quantity == nil) == (a.Notional == nil) {
		return fmt.Errorf("exactly one of quantity or notional is required")
	}
	if a.Quantity != nil && a.Quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("quantity is <= 0, order of | %s %s | not sent", a.Quantity.String(), a.Side)
	}
	if a.Notional != nil && a.Notional.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("notional is <= 0, order of | $%s %s | not sent", a.Notional.String(), a.Side)
	}
	return nil
}

func (a AlpacaPlaceOrderRequest) toAlpaca() alpaca.PlaceOrderRequest {
	req := alpaca.PlaceOrderRequest{
		Symbol:        a.Symbol,
		Qty:           a.Quantity,
		Notional:      a.Notional,
		Side:          a.Side,
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: a.ClientOrderID.String(),
	}
	if a.LimitPrice != nil {
		req.Type = alpaca.Limit
		req.LimitPrice = a.LimitPrice
	}
	if a.Crypto {
		// crypto does not trade in day sessions
		req.Symbol = domain.ToPairSymbol(a.Symbol)
		req.TimeInForce = alpaca.GTC
	}
	return req
}

func (h alpacaRepositoryHandler) PlaceOrder(req AlpacaPlaceOrderRequest) (*alpaca.Order, error) {
	if err := req.isValid(); err != nil {
		return nil, fmt.Errorf("invalid input to alpaca submit order %s: %w", req.ClientOrderID.String(), err)
	}

	order, err := h.Client.PlaceOrder(req.toAlpaca())
	if err != nil {
		return nil, fmt.Errorf("failed to submit order %s: %w", req.ClientOrderID.String(), err)
	}

	return order, nil
}

func (h alpacaRepositoryHandler) ClosePosition(symbol string) (*alpaca.Order, error) {
	order, err := h.Client.ClosePosition(symbol, alpaca.ClosePositionRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to close position %s: %w", symbol, err)
	}
	return order, nil
}

func (h alpacaRepositoryHandler) CloseAllPositions() ([]alpaca.Order, error) {
	orders, err := h.Client.CloseAllPositions(alpaca.CloseAllPositionsRequest{
		CancelOrders: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to close all positions: %w", err)
	}
	return orders, nil
}

func (h alpacaRepositoryHandler) CancelOrder(orderID string) error {
	if err := h.Client.CancelOrder(orderID); err != nil {
		return fmt.Errorf("failed to cancel order %s: %w", orderID, err)
	}
	return nil
}

func (h alpacaRepositoryHandler) GetLatestTrade(symbol string) (*domain.LatestTrade, error) {
	if domain.IsCryptoSymbol(symbol) {
		trade, err := h.MdClient.GetLatestCryptoTrade(symbol, marketdata.GetLatestCryptoTradeRequest{})
		if err != nil {
			return nil, fmt.Errorf("failed to get latest trade for %s: %w", symbol, err)
		}
		return &domain.LatestTrade{
			Symbol:    symbol,
			Price:     decimal.NewFromFloat(trade.Price),
			Size:      decimal.NewFromFloat(trade.Size),
			Timestamp: trade.Timestamp.UTC(),
		}, nil
	}

	trade, err := h.MdClient.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to get latest trade for %s: %w", symbol, err)
	}
	if trade.Price == 0 {
		return nil, fmt.Errorf("failed to get price for %s: got 0 price", symbol)
	}
	return &domain.LatestTrade{
		Symbol:    symbol,
		Price:     decimal.NewFromFloat(trade.Price),
		Size:      decimal.NewFromInt(int64(trade.Size)),
		Timestamp: trade.Timestamp.UTC(),
	}, nil
}

func (h alpacaRepositoryHandler) GetPortfolioHistory(period string) (*alpaca.PortfolioHistory, error) {
	history, err := h.Client.GetPortfolioHistory(alpaca.GetPortfolioHistoryRequest{
		Period: period,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio history for %s: %w", period, err)
	}
	return history, nil
}

func (h alpacaRepositoryHandler) IsMarketOpen() (bool, error) {
	clock, err := h.Client.GetClock()
	if err != nil {
		return false, fmt.Errorf("failed to get market clock: %w", err)
	}
	return clock.IsOpen, nil
}
