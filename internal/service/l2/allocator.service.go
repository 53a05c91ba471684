package l2_service

import (
	"context"
	"fmt"
	"sync"

	"factortrader/internal/domain"
	"factortrader/internal/logger"
	"factortrader/internal/repository"
	l1_service "factortrader/internal/service/l1"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocatorService reconciles live brokerage positions against factor
// allocations. Brokerage calls within one operation are made one at a
// time, sells before buys.
//
// Once any order has been sent, a failure to record the new allocation
// is returned together with the result, so executed trades are never lost.
type AllocatorService interface {
	AllocateToFactor(ctx context.Context, factorID string, percentage decimal.Decimal) (*domain.AllocationResult, error)
	ReallocateFactor(ctx context.Context, factorID string, percentage decimal.Decimal) (*domain.AllocationResult, error)
	DeallocateFactor(ctx context.Context, factorID string) (*domain.AllocationResult, error)
	RebalanceFactor(ctx context.Context, factorID string) (*domain.AllocationResult, error)
	RebalanceAll(ctx context.Context) (*domain.RebalanceAllResult, error)
}

type allocatorServiceHandler struct {
	FactorService    l1_service.FactorService
	AlpacaRepository repository.AlpacaRepository

	// held for a whole check -> trade -> persist cycle
	mu sync.Mutex
}

func NewAllocatorService(factorService l1_service.FactorService, alpacaRepository repository.AlpacaRepository) AllocatorService {
	return &allocatorServiceHandler{
		FactorService:    factorService,
		AlpacaRepository: alpacaRepository,
	}
}

type plannedTrade struct {
	symbol   string
	side     domain.OrderSide
	qty      *decimal.Decimal
	notional *decimal.Decimal
	crypto   bool
	// signed dollar difference that produced this trade
	diff decimal.Decimal
	// set when the trade cannot be sent at all
	err error
}

func (t plannedTrade) result() domain.TradeResult {
	return domain.TradeResult{
		Symbol:   t.symbol,
		Side:     t.side,
		Qty:      t.qty,
		Notional: t.notional,
	}
}

func findPosition(positions []alpaca.Position, symbol string) *alpaca.Position {
	for i := range positions {
		if positions[i].Symbol == symbol {
			return &positions[i]
		}
	}
	for i := range positions {
		if domain.SymbolsMatch(positions[i].Symbol, symbol) {
			return &positions[i]
		}
	}
	return nil
}

func positionValue(p *alpaca.Position) decimal.Decimal {
	if p == nil || p.MarketValue == nil {
		return decimal.Zero
	}
	return *p.MarketValue
}

func positionPrice(p *alpaca.Position) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	if p.CurrentPrice != nil && p.CurrentPrice.IsPositive() {
		return *p.CurrentPrice
	}
	if p.MarketValue != nil && !p.Qty.IsZero() {
		return p.MarketValue.Div(p.Qty).Abs()
	}
	return decimal.Zero
}

// planTrades works out the orders needed to move each asset to its share
// of targetDollars. Sells come first in the returned plan; within each
// side assets keep their factor order.
func planTrades(factor domain.Factor, targetDollars decimal.Decimal, positions []alpaca.Position) []plannedTrade {
	sells := []plannedTrade{}
	buys := []plannedTrade{}

	for _, asset := range factor.Assets {
		position := findPosition(positions, asset.Symbol)
		assetTarget := targetDollars.Mul(asset.Weight)
		diff := assetTarget.Sub(positionValue(position))

		if diff.Abs().LessThan(domain.DustThreshold) {
			continue
		}

		crypto := asset.IsCrypto() || (position != nil && position.AssetClass == alpaca.Crypto)
		trade := plannedTrade{
			symbol: asset.Symbol,
			crypto: crypto,
			diff:   diff,
		}

		if diff.IsPositive() {
			notional := diff.Round(2)
			trade.side = domain.SideBuy
			trade.notional = &notional
			buys = append(buys, trade)
			continue
		}

		trade.side = domain.SideSell
		if crypto {
			notional := diff.Abs().Round(2)
			trade.notional = &notional
			sells = append(sells, trade)
			continue
		}

		price := positionPrice(position)
		if !price.IsPositive() {
			trade.err = fmt.Errorf("no current price for %s", asset.Symbol)
			sells = append(sells, trade)
			continue
		}
		// whole shares only
		qty := diff.Abs().Div(price).Floor()
		if qty.IsZero() {
			continue
		}
		trade.qty = &qty
		sells = append(sells, trade)
	}

	return append(sells, buys...)
}

func toAlpacaSide(side domain.OrderSide) alpaca.Side {
	if side == domain.SideSell {
		return alpaca.Sell
	}
	return alpaca.Buy
}

func (h *allocatorServiceHandler) executeTrade(ctx context.Context, t plannedTrade) (domain.TradeResult, error) {
	log := logger.FromContext(ctx)
	result := t.result()
	if t.err != nil {
		return result, t.err
	}

	order, err := h.AlpacaRepository.PlaceOrder(repository.AlpacaPlaceOrderRequest{
		ClientOrderID: uuid.New(),
		Symbol:        t.symbol,
		Side:          toAlpacaSide(t.side),
		Quantity:      t.qty,
		Notional:      t.notional,
		Crypto:        t.crypto,
	})
	if err != nil {
		log.Warnf("%s %s failed: %v", t.side, t.symbol, err)
		return result, domain.BrokerageError{Op: string(t.side), Symbol: t.symbol, Err: err}
	}

	orderID := order.ID
	result.OrderID = &orderID
	result.Status = order.Status
	log.Infof("placed %s %s (order %s, status %s)", t.side, t.symbol, order.ID, order.Status)
	return result, nil
}

// AllocateToFactor sizes the factor to percentage of account equity.
// The allocation is persisted even when some trades fail: it records the
// desired state, and a later rebalance retries the difference.
func (h *allocatorServiceHandler) AllocateToFactor(ctx context.Context, factorID string, percentage decimal.Decimal) (*domain.AllocationResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.allocate(ctx, factorID, percentage)
}

func (h *allocatorServiceHandler) allocate(ctx context.Context, factorID string, percentage decimal.Decimal) (*domain.AllocationResult, error) {
	log := logger.FromContext(ctx)

	factor, err := h.FactorService.Get(ctx, factorID)
	if err != nil {
		return nil, err
	}
	if err := h.FactorService.CheckAllocationCapacity(ctx, factor.ID, percentage); err != nil {
		return nil, err
	}

	account, err := h.AlpacaRepository.GetAccount()
	if err != nil {
		return nil, domain.BrokerageError{Op: "get account", Err: err}
	}
	positions, err := h.AlpacaRepository.GetPositions()
	if err != nil {
		return nil, domain.BrokerageError{Op: "get positions", Err: err}
	}

	targetDollars := account.Equity.Mul(percentage).Div(decimal.NewFromInt(100))
	result := domain.NewAllocationResult(factor.Name, percentage)
	result.EquityAllocated = targetDollars.Round(2)

	plan := planTrades(*factor, targetDollars, positions)
	log.Infof("allocating %s%% ($%s) to %s: %d trades planned", percentage.String(), result.EquityAllocated.String(), factor.Name, len(plan))

	for _, t := range plan {
		result.AddTrade(h.executeTrade(ctx, t))
	}

	if _, err := h.FactorService.UpsertAllocation(ctx, factor.ID, percentage); err != nil {
		err = fmt.Errorf("failed to persist allocation for %s after trading: %w", factor.Name, err)
		log.Errorf("%v (%d trades already sent)", err, len(result.Trades))
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}

	return result, nil
}

// ReallocateFactor changes the percentage of an existing allocation. The
// existence check runs under the same lock as the trades.
func (h *allocatorServiceHandler) ReallocateFactor(ctx context.Context, factorID string, percentage decimal.Decimal) (*domain.AllocationResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	factor, err := h.FactorService.Get(ctx, factorID)
	if err != nil {
		return nil, err
	}
	existing, err := h.FactorService.GetAllocation(ctx, factor.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.NewValidationError("%s is not currently allocated — use allocate first", factor.Name)
	}
	return h.allocate(ctx, factor.ID, percentage)
}

// DeallocateFactor closes every live position belonging to the factor and
// then removes its allocation, whether or not the closes succeeded.
func (h *allocatorServiceHandler) DeallocateFactor(ctx context.Context, factorID string) (*domain.AllocationResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	log := logger.FromContext(ctx)

	factor, err := h.FactorService.Get(ctx, factorID)
	if err != nil {
		return nil, err
	}

	positions, err := h.AlpacaRepository.GetPositions()
	if err != nil {
		return nil, domain.BrokerageError{Op: "get positions", Err: err}
	}

	result := domain.NewAllocationResult(factor.Name, decimal.Zero)
	for _, asset := range factor.Assets {
		position := findPosition(positions, asset.Symbol)
		if position == nil {
			continue
		}

		trade := domain.TradeResult{
			Symbol: position.Symbol,
			Side:   domain.SideSell,
			Qty:    &position.Qty,
		}
		order, err := h.AlpacaRepository.ClosePosition(position.Symbol)
		if err != nil {
			log.Warnf("failed to close %s: %v", position.Symbol, err)
			result.AddTrade(trade, domain.BrokerageError{Op: "close", Symbol: position.Symbol, Err: err})
			continue
		}
		orderID := order.ID
		trade.OrderID = &orderID
		trade.Status = order.Status
		result.AddTrade(trade, nil)
	}

	if err := h.FactorService.RemoveAllocation(ctx, factor.ID); err != nil {
		err = fmt.Errorf("failed to remove allocation for %s: %w", factor.Name, err)
		log.Errorf("%v (%d closes already sent)", err, len(result.Trades))
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}
	log.Infof("deallocated %s: %d closes, %d failed", factor.Name, len(result.Trades), len(result.Errors))

	return result, nil
}

// RebalanceFactor re-runs the allocation at the factor's current
// percentage against current positions and prices.
func (h *allocatorServiceHandler) RebalanceFactor(ctx context.Context, factorID string) (*domain.AllocationResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.rebalance(ctx, factorID)
}

func (h *allocatorServiceHandler) rebalance(ctx context.Context, factorID string) (*domain.AllocationResult, error) {
	factor, err := h.FactorService.Get(ctx, factorID)
	if err != nil {
		return nil, err
	}
	allocation, err := h.FactorService.GetAllocation(ctx, factor.ID)
	if err != nil {
		return nil, err
	}
	if allocation == nil {
		return nil, domain.NewValidationError("%s is not currently allocated — use allocate first", factor.Name)
	}
	return h.allocate(ctx, factor.ID, allocation.Percentage)
}

// RebalanceAll rebalances every allocated factor. Factors that are not
// allocated or fail to rebalance are reported in Skipped.
func (h *allocatorServiceHandler) RebalanceAll(ctx context.Context) (*domain.RebalanceAllResult, error) {
	log := logger.FromContext(ctx)

	factors, err := h.FactorService.List(ctx)
	if err != nil {
		return nil, err
	}

	out := &domain.RebalanceAllResult{
		Rebalanced: []domain.AllocationResult{},
		Skipped:    []domain.RebalanceSkip{},
	}
	for _, factor := range factors {
		result, err := h.RebalanceFactor(ctx, factor.ID)
		if result != nil {
			// traded, even if the allocation could not be re-saved
			out.Rebalanced = append(out.Rebalanced, *result)
			continue
		}
		if err != nil {
			log.Infof("skipping rebalance of %s: %v", factor.Name, err)
			out.Skipped = append(out.Skipped, domain.RebalanceSkip{
				FactorName: factor.Name,
				Reason:     err.Error(),
			})
			continue
		}
	}

	return out, nil
}
