package app

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"factortrader/internal/domain"
	"factortrader/internal/parser"
	"factortrader/internal/repository"
	mock_repository "factortrader/internal/repository/mocks"
	l1_service "factortrader/internal/service/l1"
	l2_service "factortrader/internal/service/l2"
	"factortrader/internal/testutil"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type commandAppTest struct {
	app              CommandApp
	factorService    l1_service.FactorService
	alpacaRepository *mock_repository.MockAlpacaRepository
}

func newCommandAppTest(t *testing.T, factors ...domain.Factor) commandAppTest {
	ctrl := gomock.NewController(t)
	alpacaRepository := mock_repository.NewMockAlpacaRepository(ctrl)
	factorService := l1_service.NewFactorService(
		testutil.NewInMemoryFactorRepository(factors...),
		testutil.NewInMemoryAllocationRepository(),
	)
	allocatorService := l2_service.NewAllocatorService(factorService, alpacaRepository)

	return commandAppTest{
		app:              NewCommandApp(parser.NewCommandParser(factorService), factorService, allocatorService, alpacaRepository),
		factorService:    factorService,
		alpacaRepository: alpacaRepository,
	}
}

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestExecute_Errors(t *testing.T) {
	ctx := context.Background()
	a := newCommandAppTest(t, testutil.NewFactor("Tech Factor", testutil.Asset("AAPL", 1)))

	t.Run("unparseable text", func(t *testing.T) {
		resp := a.app.Execute(ctx, "moon the stock")
		require.Equal(t, domain.CommandError, resp.Type)
		require.Equal(t, http.StatusBadRequest, resp.Status)
		require.Contains(t, resp.Message, "moon the stock")
		require.Nil(t, resp.Data)
	})

	t.Run("unknown factor is not found", func(t *testing.T) {
		resp := a.app.Execute(ctx, "allocate 10% to bonds")
		require.Equal(t, http.StatusNotFound, resp.Status)
		require.Equal(t, `No factor found matching "bonds"`, resp.Message)
	})

	t.Run("order without sizing", func(t *testing.T) {
		resp := a.app.Execute(ctx, "buy AAPL")
		require.Equal(t, domain.CommandBuy, resp.Type)
		require.Equal(t, http.StatusBadRequest, resp.Status)
		require.Equal(t, "Specify a quantity or dollar amount", resp.Message)
	})

	t.Run("reallocate requires an existing allocation", func(t *testing.T) {
		resp := a.app.Execute(ctx, "reallocate 10% to tech")
		require.Equal(t, http.StatusBadRequest, resp.Status)
		require.Contains(t, resp.Message, "not currently allocated")
	})
}

func TestExecute_Orders(t *testing.T) {
	ctx := context.Background()

	t.Run("buy by quantity", func(t *testing.T) {
		a := newCommandAppTest(t)
		a.alpacaRepository.EXPECT().PlaceOrder(gomock.Any()).DoAndReturn(
			func(req repository.AlpacaPlaceOrderRequest) (*alpaca.Order, error) {
				require.Equal(t, "AAPL", req.Symbol)
				require.Equal(t, alpaca.Buy, req.Side)
				require.True(t, req.Quantity.Equal(decimal.NewFromInt(10)))
				require.Nil(t, req.Notional)
				require.False(t, req.Crypto)
				return &alpaca.Order{ID: "abc", Symbol: "AAPL", Side: alpaca.Buy, Qty: decPtr(10), Status: "accepted"}, nil
			},
		)

		resp := a.app.Execute(ctx, "buy 10 AAPL")
		require.Equal(t, http.StatusOK, resp.Status)
		require.Equal(t, "Submitted buy 10 AAPL", resp.Message)
		require.Equal(t, "abc", resp.Data.(orderResponse).ID)
	})

	t.Run("crypto limit sell", func(t *testing.T) {
		a := newCommandAppTest(t)
		a.alpacaRepository.EXPECT().PlaceOrder(gomock.Any()).DoAndReturn(
			func(req repository.AlpacaPlaceOrderRequest) (*alpaca.Order, error) {
				require.True(t, req.Crypto)
				require.True(t, req.Notional.Equal(decimal.NewFromInt(500)))
				require.True(t, req.LimitPrice.Equal(decimal.NewFromInt(60000)))
				return &alpaca.Order{ID: "def", Status: "new"}, nil
			},
		)

		resp := a.app.Execute(ctx, "sell $500 of btc/usd at 60000")
		require.Equal(t, http.StatusOK, resp.Status)
		require.Equal(t, domain.CommandSell, resp.Type)
	})

	t.Run("brokerage failure", func(t *testing.T) {
		a := newCommandAppTest(t)
		a.alpacaRepository.EXPECT().PlaceOrder(gomock.Any()).Return(nil, errors.New("insufficient buying power"))

		resp := a.app.Execute(ctx, "buy 10 AAPL")
		require.Equal(t, http.StatusBadGateway, resp.Status)
		require.Contains(t, resp.Message, "insufficient buying power")
	})

	t.Run("closing a missing position", func(t *testing.T) {
		a := newCommandAppTest(t)
		a.alpacaRepository.EXPECT().ClosePosition("TSLA").Return(nil, &alpaca.APIError{StatusCode: 404, Message: "position does not exist"})

		resp := a.app.Execute(ctx, "close tsla")
		require.Equal(t, http.StatusNotFound, resp.Status)
	})
}

func TestExecute_CancelAll(t *testing.T) {
	ctx := context.Background()
	a := newCommandAppTest(t)

	a.alpacaRepository.EXPECT().GetOrders("open").Return([]alpaca.Order{
		{ID: "1", Symbol: "AAPL"},
		{ID: "2", Symbol: "MSFT"},
		{ID: "3", Symbol: "NVDA"},
	}, nil)
	a.alpacaRepository.EXPECT().CancelOrder("1").Return(nil)
	a.alpacaRepository.EXPECT().CancelOrder("2").Return(errors.New("order already filled"))
	a.alpacaRepository.EXPECT().CancelOrder("3").Return(nil)

	resp := a.app.Execute(ctx, "cancel")
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, "Cancelled 2 of 3 open orders (1 failed)", resp.Message)

	out := resp.Data.(cancelAllResponse)
	require.Equal(t, []string{"1", "3"}, out.Cancelled)
	require.Equal(t, "MSFT", out.Failed[0].Symbol)
}

func TestExecute_Account(t *testing.T) {
	ctx := context.Background()

	t.Run("pnl", func(t *testing.T) {
		a := newCommandAppTest(t)
		a.alpacaRepository.EXPECT().GetAccount().Return(&alpaca.Account{
			Equity:     decimal.NewFromInt(10500),
			LastEquity: decimal.NewFromInt(10000),
		}, nil)
		a.alpacaRepository.EXPECT().GetPositions().Return([]alpaca.Position{
			{Symbol: "AAPL", UnrealizedPL: decPtr(300)},
			{Symbol: "MSFT", UnrealizedPL: decPtr(-100)},
		}, nil)

		resp := a.app.Execute(ctx, "pnl")
		require.Equal(t, http.StatusOK, resp.Status)
		out := resp.Data.(pnlResponse)
		require.True(t, out.DayPnl.Equal(decimal.NewFromInt(500)))
		require.True(t, out.DayPnlPct.Equal(decimal.NewFromInt(5)))
		require.True(t, out.TotalUnrealizedPL.Equal(decimal.NewFromInt(200)))
	})

	t.Run("account survives a clock failure", func(t *testing.T) {
		a := newCommandAppTest(t)
		a.alpacaRepository.EXPECT().GetAccount().Return(&alpaca.Account{Equity: decimal.NewFromInt(100)}, nil)
		a.alpacaRepository.EXPECT().IsMarketOpen().Return(false, errors.New("timeout"))

		resp := a.app.Execute(ctx, "acc")
		require.Equal(t, http.StatusOK, resp.Status)
		require.Nil(t, resp.Data.(accountResponse).MarketOpen)
	})

	t.Run("history defaults to one month", func(t *testing.T) {
		a := newCommandAppTest(t)
		a.alpacaRepository.EXPECT().GetPortfolioHistory("1M").Return(&alpaca.PortfolioHistory{
			Timestamp: []int64{1700000000, 1700086400, 1700172800},
			Equity:    []decimal.Decimal{decimal.NewFromInt(100), decimal.NewFromInt(90), decimal.NewFromInt(120)},
		}, nil)

		resp := a.app.Execute(ctx, "history")
		require.Equal(t, http.StatusOK, resp.Status)
		out := resp.Data.(historyResponse)
		require.Len(t, out.Points, 3)
		require.NotNil(t, out.Metrics)
		require.InDelta(t, 20, out.Metrics.TotalReturnPct, 1e-9)
		require.InDelta(t, 10, out.Metrics.MaxDrawdownPct, 1e-9)
	})
}

func TestExecute_Factors(t *testing.T) {
	ctx := context.Background()
	a := newCommandAppTest(t,
		testutil.NewFactor("Tech Factor", testutil.Asset("AAPL", 1)),
		testutil.NewFactor("Crypto", testutil.CryptoAsset("BTC", 1)),
	)
	_, err := a.factorService.UpsertAllocation(ctx, "tech-factor", decimal.NewFromInt(35))
	require.NoError(t, err)

	resp := a.app.Execute(ctx, "factors")
	require.Equal(t, http.StatusOK, resp.Status)
	out := resp.Data.(factorsResponse)
	require.Len(t, out.Factors, 2)
	require.True(t, out.TotalAllocated.Equal(decimal.NewFromInt(35)))
	require.True(t, out.Remaining.Equal(decimal.NewFromInt(65)))
	require.Nil(t, out.Factors[1].Percentage)

	resp = a.app.Execute(ctx, "factor tech")
	require.Equal(t, http.StatusOK, resp.Status)
	require.NotNil(t, resp.Data.(factorDetailResponse).Allocation)
}

func TestExecute_Allocation(t *testing.T) {
	ctx := context.Background()
	a := newCommandAppTest(t,
		testutil.NewFactor("Tech Factor", testutil.Asset("AAPL", 1)),
		testutil.NewFactor("Crypto", testutil.CryptoAsset("BTC", 1)),
	)

	a.alpacaRepository.EXPECT().GetAccount().Return(&alpaca.Account{Equity: decimal.NewFromInt(10000)}, nil).Times(2)
	a.alpacaRepository.EXPECT().GetPositions().Return([]alpaca.Position{}, nil).Times(2)
	a.alpacaRepository.EXPECT().PlaceOrder(gomock.Any()).Return(&alpaca.Order{ID: "x", Status: "accepted"}, nil).Times(2)

	resp := a.app.Execute(ctx, "allocate 25% to tech")
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, "Allocated 25% ($2500.00) to Tech Factor: 1 trades", resp.Message)

	resp = a.app.Execute(ctx, "allocate 80% to crypto")
	require.Equal(t, http.StatusBadRequest, resp.Status)
	require.Contains(t, resp.Message, "75.00%")

	// nothing held yet, so the rebalance buys the full target again
	resp = a.app.Execute(ctx, "rebalance")
	require.Equal(t, http.StatusOK, resp.Status)
	out := resp.Data.(*domain.RebalanceAllResult)
	require.Len(t, out.Rebalanced, 1)
	require.Len(t, out.Skipped, 1)
	require.Equal(t, "Crypto", out.Skipped[0].FactorName)
}

func TestExecute_AllocationNotSavedAfterTrading(t *testing.T) {
	ctx := context.Background()
	a := newCommandAppTest(t, testutil.NewFactor("Tech Factor", testutil.Asset("AAPL", 1)))

	a.alpacaRepository.EXPECT().GetAccount().Return(&alpaca.Account{Equity: decimal.NewFromInt(10000)}, nil)
	a.alpacaRepository.EXPECT().GetPositions().Return([]alpaca.Position{}, nil)
	a.alpacaRepository.EXPECT().PlaceOrder(gomock.Any()).DoAndReturn(
		func(req repository.AlpacaPlaceOrderRequest) (*alpaca.Order, error) {
			// the factor disappears while the order is in flight
			require.NoError(t, a.factorService.Delete(ctx, "tech-factor"))
			return &alpaca.Order{ID: "x", Status: "accepted"}, nil
		},
	)

	resp := a.app.Execute(ctx, "allocate 20% to tech")
	require.Equal(t, http.StatusNotFound, resp.Status)
	require.Contains(t, resp.Message, "failed to persist allocation")

	result, isResult := resp.Data.(*domain.AllocationResult)
	require.True(t, isResult)
	require.Len(t, result.Trades, 1)
	require.Equal(t, "x", *result.Trades[0].OrderID)
}

func TestExecute_Help(t *testing.T) {
	a := newCommandAppTest(t)

	resp := a.app.Execute(context.Background(), "?")
	require.Equal(t, http.StatusOK, resp.Status)
	require.Contains(t, resp.Message, "allocate <pct>%")
}
