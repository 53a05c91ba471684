package l2_service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"factortrader/internal/domain"
	"factortrader/internal/repository"
	mock_repository "factortrader/internal/repository/mocks"
	l1_service "factortrader/internal/service/l1"
	"factortrader/internal/testutil"
	"factortrader/internal/util"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type allocatorTest struct {
	handler              *allocatorServiceHandler
	factorService        l1_service.FactorService
	allocationRepository *testutil.InMemoryAllocationRepository
	alpacaRepository     *mock_repository.MockAlpacaRepository
	placed               []repository.AlpacaPlaceOrderRequest
	mu                   sync.Mutex
}

func newAllocatorTest(t *testing.T, factors ...domain.Factor) *allocatorTest {
	ctrl := gomock.NewController(t)
	allocationRepository := testutil.NewInMemoryAllocationRepository()
	factorService := l1_service.NewFactorService(
		testutil.NewInMemoryFactorRepository(factors...),
		allocationRepository,
	)
	alpacaRepository := mock_repository.NewMockAlpacaRepository(ctrl)

	return &allocatorTest{
		handler: &allocatorServiceHandler{
			FactorService:    factorService,
			AlpacaRepository: alpacaRepository,
		},
		factorService:        factorService,
		allocationRepository: allocationRepository,
		alpacaRepository:     alpacaRepository,
	}
}

func (a *allocatorTest) expectAccount(equity int64, positions ...alpaca.Position) {
	a.alpacaRepository.EXPECT().GetAccount().Return(&alpaca.Account{Equity: decimal.NewFromInt(equity)}, nil)
	a.alpacaRepository.EXPECT().GetPositions().Return(positions, nil)
}

// recordOrders accepts every order except those for failSymbols.
func (a *allocatorTest) recordOrders(times int, failSymbols ...string) {
	a.alpacaRepository.EXPECT().PlaceOrder(gomock.Any()).DoAndReturn(
		func(req repository.AlpacaPlaceOrderRequest) (*alpaca.Order, error) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.placed = append(a.placed, req)
			for _, s := range failSymbols {
				if s == req.Symbol {
					return nil, errors.New("insufficient buying power")
				}
			}
			return &alpaca.Order{ID: "order-" + req.Symbol, Status: "accepted"}, nil
		},
	).Times(times)
}

func equityPosition(symbol string, marketValue, price float64) alpaca.Position {
	mv := decimal.NewFromFloat(marketValue)
	p := decimal.NewFromFloat(price)
	return alpaca.Position{
		Symbol:       symbol,
		Qty:          mv.Div(p),
		MarketValue:  &mv,
		CurrentPrice: &p,
		AssetClass:   alpaca.USEquity,
	}
}

func cryptoPosition(symbol string, marketValue, price float64) alpaca.Position {
	p := equityPosition(symbol, marketValue, price)
	p.AssetClass = alpaca.Crypto
	return p
}

func requireDecimal(t *testing.T, expected string, actual *decimal.Decimal) {
	t.Helper()
	require.NotNil(t, actual)
	require.True(t, decimal.RequireFromString(expected).Equal(*actual), "expected %s, got %s", expected, actual.String())
}

func TestAllocateToFactor(t *testing.T) {
	ctx := context.Background()

	t.Run("sells execute before buys regardless of factor order", func(t *testing.T) {
		a := newAllocatorTest(t, testutil.NewFactor("Tech",
			testutil.Asset("AAPL", 0.5),
			testutil.Asset("MSFT", 0.5),
		))
		a.expectAccount(10000, equityPosition("MSFT", 4000, 400))
		a.recordOrders(2)

		result, err := a.handler.AllocateToFactor(ctx, "tech", decimal.NewFromInt(50))
		require.NoError(t, err)
		require.Empty(t, result.Errors)
		require.True(t, result.EquityAllocated.Equal(decimal.NewFromInt(5000)))

		require.Len(t, a.placed, 2)
		require.Equal(t, "MSFT", a.placed[0].Symbol)
		require.Equal(t, alpaca.Sell, a.placed[0].Side)
		// 1500 over target at $400 is 3 whole shares
		requireDecimal(t, "3", a.placed[0].Quantity)
		require.Nil(t, a.placed[0].Notional)

		require.Equal(t, "AAPL", a.placed[1].Symbol)
		require.Equal(t, alpaca.Buy, a.placed[1].Side)
		requireDecimal(t, "2500", a.placed[1].Notional)
		require.Nil(t, a.placed[1].Quantity)

		require.Equal(t, "order-MSFT", *result.Trades[0].OrderID)
		require.Equal(t, "accepted", result.Trades[0].Status)
	})

	t.Run("dust threshold", func(t *testing.T) {
		a := newAllocatorTest(t, testutil.NewFactor("Pair",
			testutil.Asset("A", 0.5),
			testutil.Asset("B", 0.5),
		))
		a.expectAccount(10000,
			equityPosition("A", 499.50, 10),
			equityPosition("B", 498.99, 10),
		)
		a.recordOrders(1)

		result, err := a.handler.AllocateToFactor(ctx, "pair", decimal.NewFromInt(10))
		require.NoError(t, err)
		require.Len(t, result.Trades, 1)
		require.Equal(t, "B", a.placed[0].Symbol)
		requireDecimal(t, "1.01", a.placed[0].Notional)
	})

	t.Run("equity sells under one share are dropped", func(t *testing.T) {
		a := newAllocatorTest(t, testutil.NewFactor("Solo", testutil.Asset("NVDA", 1)))
		a.expectAccount(1000, equityPosition("NVDA", 600, 200))

		result, err := a.handler.AllocateToFactor(ctx, "solo", decimal.NewFromInt(50))
		require.NoError(t, err)
		require.Empty(t, result.Trades)

		allocation, err := a.factorService.GetAllocation(ctx, "solo")
		require.NoError(t, err)
		require.True(t, allocation.Percentage.Equal(decimal.NewFromInt(50)))
	})

	t.Run("crypto sells are notional and match pair positions", func(t *testing.T) {
		a := newAllocatorTest(t, testutil.NewFactor("Coins", testutil.CryptoAsset("BTC", 1)))
		a.expectAccount(1000, cryptoPosition("BTCUSD", 600, 60000))
		a.recordOrders(1)

		_, err := a.handler.AllocateToFactor(ctx, "coins", decimal.NewFromInt(50))
		require.NoError(t, err)
		require.Equal(t, "BTC", a.placed[0].Symbol)
		require.True(t, a.placed[0].Crypto)
		require.Equal(t, alpaca.Sell, a.placed[0].Side)
		requireDecimal(t, "100", a.placed[0].Notional)
	})

	t.Run("a failed trade does not stop the rest and the allocation is still recorded", func(t *testing.T) {
		a := newAllocatorTest(t, testutil.NewFactor("Tech",
			testutil.Asset("AAPL", 0.5),
			testutil.Asset("MSFT", 0.5),
		))
		a.expectAccount(10000)
		a.recordOrders(2, "AAPL")

		result, err := a.handler.AllocateToFactor(ctx, "tech", decimal.NewFromInt(40))
		require.NoError(t, err)
		require.Len(t, result.Trades, 2)
		require.True(t, result.Trades[0].Failed())
		require.Contains(t, *result.Trades[0].Error, "insufficient buying power")
		require.False(t, result.Trades[1].Failed())
		require.Len(t, result.Errors, 1)

		allocation, err := a.factorService.GetAllocation(ctx, "tech")
		require.NoError(t, err)
		require.True(t, allocation.Percentage.Equal(decimal.NewFromInt(40)))
	})

	t.Run("cap violations are rejected before any brokerage call", func(t *testing.T) {
		a := newAllocatorTest(t,
			testutil.NewFactor("One", testutil.Asset("AAPL", 1)),
			testutil.NewFactor("Two", testutil.Asset("MSFT", 1)),
		)
		_, err := a.factorService.UpsertAllocation(ctx, "one", decimal.NewFromInt(80))
		require.NoError(t, err)

		_, err = a.handler.AllocateToFactor(ctx, "two", decimal.NewFromInt(30))
		require.True(t, domain.IsValidation(err))
		require.Contains(t, err.Error(), "20.00%")
	})

	t.Run("brokerage read failure persists nothing", func(t *testing.T) {
		a := newAllocatorTest(t, testutil.NewFactor("One", testutil.Asset("AAPL", 1)))
		a.alpacaRepository.EXPECT().GetAccount().Return(nil, errors.New("timeout"))

		_, err := a.handler.AllocateToFactor(ctx, "one", decimal.NewFromInt(10))
		require.True(t, domain.IsBrokerage(err))

		allocation, err := a.factorService.GetAllocation(ctx, "one")
		require.NoError(t, err)
		require.Nil(t, allocation)
	})

	t.Run("unknown factor", func(t *testing.T) {
		a := newAllocatorTest(t)
		_, err := a.handler.AllocateToFactor(ctx, "nope", decimal.NewFromInt(10))
		require.True(t, domain.IsNotFound(err))
	})

	t.Run("concurrent allocations never exceed the cap", func(t *testing.T) {
		a := newAllocatorTest(t,
			testutil.NewFactor("One", testutil.Asset("AAPL", 1)),
			testutil.NewFactor("Two", testutil.Asset("MSFT", 1)),
		)
		a.expectAccount(10000)
		a.recordOrders(1)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, id := range []string{"one", "two"} {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				_, errs[i] = a.handler.AllocateToFactor(ctx, id, decimal.NewFromInt(60))
			}(i, id)
		}
		wg.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				require.True(t, domain.IsValidation(err))
				failed++
			}
		}
		require.Equal(t, 1, failed)
		require.True(t, a.allocationRepository.Total().Equal(decimal.NewFromInt(60)))
	})
}

func TestDeallocateFactor(t *testing.T) {
	ctx := context.Background()

	a := newAllocatorTest(t, testutil.NewFactor("Mixed",
		testutil.Asset("AAPL", 0.4),
		testutil.Asset("BTC/USD", 0.3),
		testutil.Asset("MSFT", 0.3),
	))
	_, err := a.factorService.UpsertAllocation(ctx, "mixed", decimal.NewFromInt(25))
	require.NoError(t, err)

	a.alpacaRepository.EXPECT().GetPositions().Return([]alpaca.Position{
		equityPosition("AAPL", 1000, 100),
		cryptoPosition("BTCUSD", 500, 50000),
		equityPosition("TSLA", 700, 350),
	}, nil)
	gomock.InOrder(
		a.alpacaRepository.EXPECT().ClosePosition("AAPL").Return(nil, errors.New("market closed")),
		a.alpacaRepository.EXPECT().ClosePosition("BTCUSD").Return(&alpaca.Order{ID: "close-btc", Status: "accepted"}, nil),
	)

	result, err := a.handler.DeallocateFactor(ctx, "mixed")
	require.NoError(t, err)
	require.True(t, result.Percentage.IsZero())
	require.Len(t, result.Trades, 2)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "market closed")
	require.Equal(t, "close-btc", *result.Trades[1].OrderID)

	allocation, err := a.factorService.GetAllocation(ctx, "mixed")
	require.NoError(t, err)
	require.Nil(t, allocation)
}

func TestRebalanceFactor(t *testing.T) {
	ctx := context.Background()

	t.Run("not allocated", func(t *testing.T) {
		a := newAllocatorTest(t, testutil.NewFactor("One", testutil.Asset("AAPL", 1)))

		_, err := a.handler.RebalanceFactor(ctx, "one")
		require.True(t, domain.IsValidation(err))
		require.Contains(t, err.Error(), "not currently allocated")
	})

	t.Run("reuses the stored percentage", func(t *testing.T) {
		a := newAllocatorTest(t, testutil.NewFactor("One", testutil.Asset("AAPL", 1)))
		_, err := a.factorService.UpsertAllocation(ctx, "one", decimal.NewFromInt(20))
		require.NoError(t, err)

		// price drift left the position $300 under target
		a.expectAccount(10000, equityPosition("AAPL", 1700, 170))
		a.recordOrders(1)

		result, err := a.handler.RebalanceFactor(ctx, "one")
		require.NoError(t, err)
		require.True(t, result.Percentage.Equal(decimal.NewFromInt(20)))
		requireDecimal(t, "300", a.placed[0].Notional)
	})
}

func TestRebalanceAll(t *testing.T) {
	ctx := context.Background()

	a := newAllocatorTest(t,
		testutil.NewFactor("One", testutil.Asset("AAPL", 1)),
		testutil.NewFactor("Two", testutil.Asset("MSFT", 1)),
	)
	_, err := a.factorService.UpsertAllocation(ctx, "one", decimal.NewFromInt(20))
	require.NoError(t, err)

	a.expectAccount(10000, equityPosition("AAPL", 2000, 100))

	result, err := a.handler.RebalanceAll(ctx)
	require.NoError(t, err)
	require.Len(t, result.Rebalanced, 1)
	require.Equal(t, "One", result.Rebalanced[0].FactorName)
	require.Equal(t, []domain.RebalanceSkip{{
		FactorName: "Two",
		Reason:     fmt.Sprintf("%s is not currently allocated — use allocate first", "Two"),
	}}, result.Skipped)
}

func TestAllocateToFactor_PersistFailureKeepsTrades(t *testing.T) {
	ctx := context.Background()

	t.Run("factor deleted while trading", func(t *testing.T) {
		a := newAllocatorTest(t, testutil.NewFactor("One", testutil.Asset("AAPL", 1)))
		a.expectAccount(10000)
		a.alpacaRepository.EXPECT().PlaceOrder(gomock.Any()).DoAndReturn(
			func(req repository.AlpacaPlaceOrderRequest) (*alpaca.Order, error) {
				require.NoError(t, a.factorService.Delete(ctx, "one"))
				return &alpaca.Order{ID: "order-AAPL", Status: "accepted"}, nil
			},
		)

		result, err := a.handler.AllocateToFactor(ctx, "one", decimal.NewFromInt(20))
		require.Error(t, err)
		require.True(t, domain.IsNotFound(err))
		require.NotNil(t, result)
		require.Len(t, result.Trades, 1)
		require.Equal(t, "order-AAPL", *result.Trades[0].OrderID)
		require.Len(t, result.Errors, 1)
		require.Contains(t, result.Errors[0], "failed to persist allocation for One")
	})

	t.Run("another writer took the headroom while trading", func(t *testing.T) {
		a := newAllocatorTest(t,
			testutil.NewFactor("One", testutil.Asset("AAPL", 1)),
			testutil.NewFactor("Two", testutil.Asset("MSFT", 1)),
		)
		a.expectAccount(10000)
		a.alpacaRepository.EXPECT().PlaceOrder(gomock.Any()).DoAndReturn(
			func(req repository.AlpacaPlaceOrderRequest) (*alpaca.Order, error) {
				_, err := a.allocationRepository.Upsert(nil, "two", decimal.NewFromInt(50))
				require.NoError(t, err)
				return &alpaca.Order{ID: "order-AAPL", Status: "accepted"}, nil
			},
		)

		result, err := a.handler.AllocateToFactor(ctx, "one", decimal.NewFromInt(60))
		require.True(t, domain.IsValidation(err))
		require.NotNil(t, result)
		require.Len(t, result.Trades, 1)
		require.False(t, result.Trades[0].Failed())

		allocation, err := a.factorService.GetAllocation(ctx, "one")
		require.NoError(t, err)
		require.Nil(t, allocation)
	})
}

func TestAllocateToFactor_UnpricedSellStaysWithSells(t *testing.T) {
	ctx := context.Background()
	a := newAllocatorTest(t, testutil.NewFactor("Tech",
		testutil.Asset("AAPL", 0.5),
		testutil.Asset("MSFT", 0.25),
		testutil.Asset("GOOG", 0.25),
	))

	unpriced := alpaca.Position{Symbol: "MSFT", Qty: decimal.Zero, MarketValue: util.DecimalPointer(decimal.NewFromInt(4000))}
	a.expectAccount(10000, equityPosition("GOOG", 3000, 100), unpriced)
	a.recordOrders(2)

	result, err := a.handler.AllocateToFactor(ctx, "tech", decimal.NewFromInt(50))
	require.NoError(t, err)

	sides := []domain.OrderSide{}
	symbols := []string{}
	for _, trade := range result.Trades {
		sides = append(sides, trade.Side)
		symbols = append(symbols, trade.Symbol)
	}
	require.Equal(t, []string{"MSFT", "GOOG", "AAPL"}, symbols)
	require.Equal(t, []domain.OrderSide{domain.SideSell, domain.SideSell, domain.SideBuy}, sides)
	require.True(t, result.Trades[0].Failed())
	require.Equal(t, []string{"no current price for MSFT"}, result.Errors)

	// nothing was sent for the unpriced sell
	require.Len(t, a.placed, 2)
	require.Equal(t, "GOOG", a.placed[0].Symbol)
}

func TestReallocateFactor(t *testing.T) {
	ctx := context.Background()

	t.Run("requires an existing allocation", func(t *testing.T) {
		a := newAllocatorTest(t, testutil.NewFactor("One", testutil.Asset("AAPL", 1)))

		_, err := a.handler.ReallocateFactor(ctx, "one", decimal.NewFromInt(10))
		require.True(t, domain.IsValidation(err))
		require.Contains(t, err.Error(), "One is not currently allocated")
	})

	t.Run("resizes an allocated factor", func(t *testing.T) {
		a := newAllocatorTest(t, testutil.NewFactor("One", testutil.Asset("AAPL", 1)))
		_, err := a.factorService.UpsertAllocation(ctx, "one", decimal.NewFromInt(20))
		require.NoError(t, err)
		a.expectAccount(10000, equityPosition("AAPL", 2000, 100))
		a.recordOrders(1)

		result, err := a.handler.ReallocateFactor(ctx, "one", decimal.NewFromInt(30))
		require.NoError(t, err)
		require.True(t, result.Percentage.Equal(decimal.NewFromInt(30)))
		requireDecimal(t, "1000", a.placed[0].Notional)
	})

	t.Run("a deallocate in between makes it fail", func(t *testing.T) {
		a := newAllocatorTest(t, testutil.NewFactor("One", testutil.Asset("AAPL", 1)))
		_, err := a.factorService.UpsertAllocation(ctx, "one", decimal.NewFromInt(20))
		require.NoError(t, err)
		a.alpacaRepository.EXPECT().GetPositions().Return([]alpaca.Position{}, nil)

		_, err = a.handler.DeallocateFactor(ctx, "one")
		require.NoError(t, err)

		_, err = a.handler.ReallocateFactor(ctx, "one", decimal.NewFromInt(30))
		require.True(t, domain.IsValidation(err))
		require.True(t, a.allocationRepository.Total().IsZero())
	})
}
