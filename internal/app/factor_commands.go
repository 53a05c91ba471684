package app

import (
	"context"

	"factortrader/internal/domain"

	"github.com/shopspring/decimal"
)

type factorSummary struct {
	domain.Factor
	// nil when unallocated
	Percentage *decimal.Decimal `json:"percentage"`
}

type factorsResponse struct {
	Factors        []factorSummary `json:"factors"`
	TotalAllocated decimal.Decimal `json:"totalAllocated"`
	Remaining      decimal.Decimal `json:"remaining"`
}

type factorDetailResponse struct {
	Factor     domain.Factor      `json:"factor"`
	Allocation *domain.Allocation `json:"allocation"`
}

func (h commandAppHandler) factors(ctx context.Context) (*handlerResult, error) {
	factors, err := h.FactorService.List(ctx)
	if err != nil {
		return nil, err
	}
	allocations, err := h.FactorService.ListAllocations(ctx)
	if err != nil {
		return nil, err
	}

	byFactor := map[string]decimal.Decimal{}
	total := decimal.Zero
	for _, a := range allocations {
		byFactor[a.FactorID] = a.Percentage
		total = total.Add(a.Percentage)
	}

	out := factorsResponse{
		Factors:        []factorSummary{},
		TotalAllocated: total,
		Remaining:      domain.AllocationCap.Sub(total),
	}
	for _, f := range factors {
		summary := factorSummary{Factor: f}
		if pct, ok := byFactor[f.ID]; ok {
			summary.Percentage = &pct
		}
		out.Factors = append(out.Factors, summary)
	}

	return ok(out, "%d factors, %s%% allocated, %s%% available", len(factors), total.StringFixed(2), out.Remaining.StringFixed(2))
}

func (h commandAppHandler) factorDetail(ctx context.Context, c domain.FactorDetailCommand) (*handlerResult, error) {
	factor, err := h.FactorService.Get(ctx, c.FactorID)
	if err != nil {
		return nil, err
	}
	allocation, err := h.FactorService.GetAllocation(ctx, factor.ID)
	if err != nil {
		return nil, err
	}

	msg := "%s: %d assets, unallocated"
	args := []any{factor.Name, len(factor.Assets)}
	if allocation != nil {
		msg = "%s: %d assets, %s%% allocated"
		args = append(args, allocation.Percentage.String())
	}
	return ok(factorDetailResponse{Factor: *factor, Allocation: allocation}, msg, args...)
}

func allocationMessage(verb string, result *domain.AllocationResult) (*handlerResult, error) {
	if len(result.Errors) > 0 {
		return ok(result, "%s %s%% (%s) to %s: %d trades, %d failed", verb, result.Percentage.String(), money(result.EquityAllocated), result.FactorName, len(result.Trades), len(result.Errors))
	}
	return ok(result, "%s %s%% (%s) to %s: %d trades", verb, result.Percentage.String(), money(result.EquityAllocated), result.FactorName, len(result.Trades))
}

// partial keeps the trades of an operation that failed after trading.
func partial(result *domain.AllocationResult, err error) (*handlerResult, error) {
	if result == nil {
		return nil, err
	}
	return &handlerResult{data: result}, err
}

func (h commandAppHandler) allocate(ctx context.Context, c domain.AllocateCommand) (*handlerResult, error) {
	result, err := h.AllocatorService.AllocateToFactor(ctx, c.FactorID, c.Percentage)
	if err != nil {
		return partial(result, err)
	}
	return allocationMessage("Allocated", result)
}

func (h commandAppHandler) reallocate(ctx context.Context, c domain.ReallocateCommand) (*handlerResult, error) {
	result, err := h.AllocatorService.ReallocateFactor(ctx, c.FactorID, c.Percentage)
	if err != nil {
		return partial(result, err)
	}
	return allocationMessage("Reallocated", result)
}

func (h commandAppHandler) deallocate(ctx context.Context, c domain.DeallocateCommand) (*handlerResult, error) {
	result, err := h.AllocatorService.DeallocateFactor(ctx, c.FactorID)
	if err != nil {
		return partial(result, err)
	}
	if len(result.Errors) > 0 {
		return ok(result, "Deallocated %s: closed %d of %d positions", result.FactorName, len(result.Trades)-len(result.Errors), len(result.Trades))
	}
	return ok(result, "Deallocated %s: closed %d positions", result.FactorName, len(result.Trades))
}

func (h commandAppHandler) rebalance(ctx context.Context, c domain.RebalanceCommand) (*handlerResult, error) {
	if c.FactorID != "" {
		result, err := h.AllocatorService.RebalanceFactor(ctx, c.FactorID)
		if err != nil {
			return partial(result, err)
		}
		return allocationMessage("Rebalanced", result)
	}

	result, err := h.AllocatorService.RebalanceAll(ctx)
	if err != nil {
		return nil, err
	}
	return ok(result, "Rebalanced %d factors, skipped %d", len(result.Rebalanced), len(result.Skipped))
}
