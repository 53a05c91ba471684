package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"factortrader/internal/domain"
	"factortrader/internal/logger"
	"factortrader/internal/repository"
	l3_service "factortrader/internal/service/l3"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultHistoryPeriod = "1M"

type accountResponse struct {
	Equity      decimal.Decimal `json:"equity"`
	LastEquity  decimal.Decimal `json:"lastEquity"`
	Cash        decimal.Decimal `json:"cash"`
	BuyingPower decimal.Decimal `json:"buyingPower"`
	Status      string          `json:"status"`
	// nil when the clock could not be read
	MarketOpen *bool `json:"marketOpen"`
}

type positionResponse struct {
	Symbol       string           `json:"symbol"`
	Qty          decimal.Decimal  `json:"qty"`
	MarketValue  *decimal.Decimal `json:"marketValue"`
	CurrentPrice *decimal.Decimal `json:"currentPrice"`
	UnrealizedPL *decimal.Decimal `json:"unrealizedPl"`
	AssetClass   string           `json:"assetClass"`
}

type orderResponse struct {
	ID          string           `json:"id"`
	Symbol      string           `json:"symbol"`
	Side        string           `json:"side"`
	Type        string           `json:"type"`
	Qty         *decimal.Decimal `json:"qty,omitempty"`
	Notional    *decimal.Decimal `json:"notional,omitempty"`
	LimitPrice  *decimal.Decimal `json:"limitPrice,omitempty"`
	Status      string           `json:"status"`
	SubmittedAt time.Time        `json:"submittedAt"`
}

type pnlResponse struct {
	DayPnl            decimal.Decimal    `json:"dayPnl"`
	DayPnlPct         decimal.Decimal    `json:"dayPnlPct"`
	TotalUnrealizedPL decimal.Decimal    `json:"totalUnrealizedPl"`
	Positions         []positionResponse `json:"positions"`
}

type historyPoint struct {
	Timestamp     time.Time       `json:"timestamp"`
	Equity        decimal.Decimal `json:"equity"`
	ProfitLoss    decimal.Decimal `json:"profitLoss"`
	ProfitLossPct decimal.Decimal `json:"profitLossPct"`
}

type historyResponse struct {
	Period  string                      `json:"period"`
	Points  []historyPoint              `json:"points"`
	Metrics *l3_service.HistoryMetrics `json:"metrics"`
}

type cancelFailure struct {
	OrderID string `json:"orderId"`
	Symbol  string `json:"symbol"`
	Error   string `json:"error"`
}

type cancelAllResponse struct {
	Cancelled []string        `json:"cancelled"`
	Failed    []cancelFailure `json:"failed"`
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func brokerageErr(op, symbol string, err error) error {
	return domain.BrokerageError{Op: op, Symbol: symbol, Err: err}
}

func isAlpacaNotFound(err error) bool {
	var apiErr *alpaca.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func positionToResponse(p alpaca.Position) positionResponse {
	return positionResponse{
		Symbol:       p.Symbol,
		Qty:          p.Qty,
		MarketValue:  p.MarketValue,
		CurrentPrice: p.CurrentPrice,
		UnrealizedPL: p.UnrealizedPL,
		AssetClass:   string(p.AssetClass),
	}
}

func orderToResponse(o alpaca.Order) orderResponse {
	return orderResponse{
		ID:          o.ID,
		Symbol:      o.Symbol,
		Side:        string(o.Side),
		Type:        string(o.Type),
		Qty:         o.Qty,
		Notional:    o.Notional,
		LimitPrice:  o.LimitPrice,
		Status:      o.Status,
		SubmittedAt: o.SubmittedAt,
	}
}

func (h commandAppHandler) account(ctx context.Context) (*handlerResult, error) {
	account, err := h.AlpacaRepository.GetAccount()
	if err != nil {
		return nil, brokerageErr("get account", "", err)
	}

	out := accountResponse{
		Equity:      account.Equity,
		LastEquity:  account.LastEquity,
		Cash:        account.Cash,
		BuyingPower: account.BuyingPower,
		Status:      string(account.Status),
	}
	if open, err := h.AlpacaRepository.IsMarketOpen(); err != nil {
		logger.FromContext(ctx).Warnf("failed to read market clock: %v", err)
	} else {
		out.MarketOpen = &open
	}

	return ok(out, "Equity %s, cash %s, buying power %s", money(out.Equity), money(out.Cash), money(out.BuyingPower))
}

func (h commandAppHandler) positions() (*handlerResult, error) {
	positions, err := h.AlpacaRepository.GetPositions()
	if err != nil {
		return nil, brokerageErr("get positions", "", err)
	}

	out := []positionResponse{}
	for _, p := range positions {
		out = append(out, positionToResponse(p))
	}
	return ok(out, "%d open positions", len(out))
}

func (h commandAppHandler) orders() (*handlerResult, error) {
	orders, err := h.AlpacaRepository.GetOrders("open")
	if err != nil {
		return nil, brokerageErr("get orders", "", err)
	}

	out := []orderResponse{}
	for _, o := range orders {
		out = append(out, orderToResponse(o))
	}
	return ok(out, "%d open orders", len(out))
}

func (h commandAppHandler) pnl() (*handlerResult, error) {
	account, err := h.AlpacaRepository.GetAccount()
	if err != nil {
		return nil, brokerageErr("get account", "", err)
	}
	positions, err := h.AlpacaRepository.GetPositions()
	if err != nil {
		return nil, brokerageErr("get positions", "", err)
	}

	out := pnlResponse{
		DayPnl:            account.Equity.Sub(account.LastEquity),
		DayPnlPct:         decimal.Zero,
		TotalUnrealizedPL: decimal.Zero,
		Positions:         []positionResponse{},
	}
	if !account.LastEquity.IsZero() {
		out.DayPnlPct = out.DayPnl.Div(account.LastEquity).Mul(decimal.NewFromInt(100)).Round(2)
	}
	for _, p := range positions {
		if p.UnrealizedPL != nil {
			out.TotalUnrealizedPL = out.TotalUnrealizedPL.Add(*p.UnrealizedPL)
		}
		out.Positions = append(out.Positions, positionToResponse(p))
	}

	return ok(out, "Day P&L %s (%s%%), unrealized %s", money(out.DayPnl), out.DayPnlPct.StringFixed(2), money(out.TotalUnrealizedPL))
}

func (h commandAppHandler) price(c domain.PriceCommand) (*handlerResult, error) {
	trade, err := h.AlpacaRepository.GetLatestTrade(c.Symbol)
	if err != nil {
		return nil, brokerageErr("get price", c.Symbol, err)
	}
	return ok(trade, "%s %s", c.Symbol, money(trade.Price))
}

func (h commandAppHandler) history(ctx context.Context, c domain.HistoryCommand) (*handlerResult, error) {
	period := c.Period
	if period == "" {
		period = defaultHistoryPeriod
	}

	history, err := h.AlpacaRepository.GetPortfolioHistory(period)
	if err != nil {
		return nil, brokerageErr("get history", "", err)
	}

	out := historyResponse{
		Period: period,
		Points: []historyPoint{},
	}
	for i, ts := range history.Timestamp {
		point := historyPoint{Timestamp: time.Unix(ts, 0).UTC()}
		if i < len(history.Equity) {
			point.Equity = history.Equity[i]
		}
		if i < len(history.ProfitLoss) {
			point.ProfitLoss = history.ProfitLoss[i]
		}
		if i < len(history.ProfitLossPct) {
			point.ProfitLossPct = history.ProfitLossPct[i]
		}
		out.Points = append(out.Points, point)
	}

	metrics, err := l3_service.CalculateHistoryMetrics(history.Equity)
	if err != nil {
		logger.FromContext(ctx).Infof("no metrics for %s history: %v", period, err)
		return ok(out, "%s history: %d points", period, len(out.Points))
	}
	out.Metrics = metrics

	return ok(out, "%s history: return %.2f%%, max drawdown %.2f%%", period, metrics.TotalReturnPct, metrics.MaxDrawdownPct)
}

func describeOrder(c domain.OrderCommand) string {
	var b strings.Builder
	b.WriteString(string(c.Side))
	b.WriteString(" ")
	if c.Qty != nil {
		b.WriteString(c.Qty.String() + " " + c.Symbol)
	} else {
		b.WriteString(money(*c.Notional) + " of " + c.Symbol)
	}
	if c.LimitPrice != nil {
		b.WriteString(" at " + money(*c.LimitPrice))
	}
	return b.String()
}

func (h commandAppHandler) placeOrder(ctx context.Context, c domain.OrderCommand) (*handlerResult, error) {
	if (c.Qty == nil) == (c.Notional == nil) {
		return nil, domain.NewValidationError("Specify a quantity or dollar amount")
	}

	side := alpaca.Buy
	if c.Side == domain.SideSell {
		side = alpaca.Sell
	}

	order, err := h.AlpacaRepository.PlaceOrder(repository.AlpacaPlaceOrderRequest{
		ClientOrderID: uuid.New(),
		Symbol:        c.Symbol,
		Side:          side,
		Quantity:      c.Qty,
		Notional:      c.Notional,
		LimitPrice:    c.LimitPrice,
		Crypto:        domain.IsCryptoSymbol(c.Symbol),
	})
	if err != nil {
		return nil, brokerageErr(string(c.Side), c.Symbol, err)
	}

	logger.FromContext(ctx).Infof("submitted %s (order %s)", describeOrder(c), order.ID)
	return ok(orderToResponse(*order), "Submitted %s", describeOrder(c))
}

func (h commandAppHandler) closePosition(c domain.CloseCommand) (*handlerResult, error) {
	order, err := h.AlpacaRepository.ClosePosition(c.Symbol)
	if err != nil {
		if isAlpacaNotFound(err) {
			return nil, domain.NotFoundError{Kind: "position", Key: c.Symbol}
		}
		return nil, brokerageErr("close", c.Symbol, err)
	}
	return ok(orderToResponse(*order), "Closing %s", c.Symbol)
}

func (h commandAppHandler) closeAll() (*handlerResult, error) {
	orders, err := h.AlpacaRepository.CloseAllPositions()
	if err != nil {
		return nil, brokerageErr("close all", "", err)
	}

	out := []orderResponse{}
	for _, o := range orders {
		out = append(out, orderToResponse(o))
	}
	return ok(out, "Closing %d positions", len(out))
}

func (h commandAppHandler) cancelOrders(ctx context.Context, c domain.CancelOrdersCommand) (*handlerResult, error) {
	if c.OrderID != "" {
		if err := h.AlpacaRepository.CancelOrder(c.OrderID); err != nil {
			if isAlpacaNotFound(err) {
				return nil, domain.NotFoundError{Kind: "order", Key: c.OrderID}
			}
			return nil, brokerageErr("cancel", c.OrderID, err)
		}
		return ok(map[string]string{"orderId": c.OrderID}, "Cancelled order %s", c.OrderID)
	}

	orders, err := h.AlpacaRepository.GetOrders("open")
	if err != nil {
		return nil, brokerageErr("get orders", "", err)
	}

	out := cancelAllResponse{
		Cancelled: []string{},
		Failed:    []cancelFailure{},
	}
	for _, o := range orders {
		if err := h.AlpacaRepository.CancelOrder(o.ID); err != nil {
			logger.FromContext(ctx).Warnf("failed to cancel %s: %v", o.ID, err)
			out.Failed = append(out.Failed, cancelFailure{
				OrderID: o.ID,
				Symbol:  o.Symbol,
				Error:   err.Error(),
			})
			continue
		}
		out.Cancelled = append(out.Cancelled, o.ID)
	}

	msg := fmt.Sprintf("Cancelled %d of %d open orders", len(out.Cancelled), len(orders))
	if len(out.Failed) > 0 {
		msg += fmt.Sprintf(" (%d failed)", len(out.Failed))
	}
	return ok(out, "%s", msg)
}
