package app

import (
	"context"
	"fmt"
	"net/http"

	"factortrader/internal/domain"
	"factortrader/internal/logger"
	"factortrader/internal/parser"
	"factortrader/internal/repository"
	l1_service "factortrader/internal/service/l1"
	l2_service "factortrader/internal/service/l2"
)

// Response is the envelope every command returns, success or not.
type Response struct {
	Type    domain.CommandType `json:"type"`
	Data    any                `json:"data"`
	Message string             `json:"message"`
	Status  int                `json:"-"`
}

type CommandApp interface {
	Execute(ctx context.Context, raw string) Response
	Dispatch(ctx context.Context, cmd domain.Command) Response
}

type commandAppHandler struct {
	Parser           parser.CommandParser
	FactorService    l1_service.FactorService
	AllocatorService l2_service.AllocatorService
	AlpacaRepository repository.AlpacaRepository
}

func NewCommandApp(
	commandParser parser.CommandParser,
	factorService l1_service.FactorService,
	allocatorService l2_service.AllocatorService,
	alpacaRepository repository.AlpacaRepository,
) CommandApp {
	return commandAppHandler{
		Parser:           commandParser,
		FactorService:    factorService,
		AllocatorService: allocatorService,
		AlpacaRepository: alpacaRepository,
	}
}

func (h commandAppHandler) Execute(ctx context.Context, raw string) Response {
	logger.FromContext(ctx).Infof("executing command %q", raw)
	return h.Dispatch(ctx, h.Parser.Parse(ctx, raw))
}

// handlerResult is what each command handler produces. It can come back
// next to an error when the command failed after trading.
type handlerResult struct {
	data    any
	message string
}

func ok(data any, format string, args ...any) (*handlerResult, error) {
	return &handlerResult{data: data, message: fmt.Sprintf(format, args...)}, nil
}

func (h commandAppHandler) Dispatch(ctx context.Context, cmd domain.Command) (resp Response) {
	log := logger.FromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic handling %s command: %v", cmd.Type(), r)
			resp = Response{
				Type:    cmd.Type(),
				Message: "Internal error",
				Status:  http.StatusInternalServerError,
			}
		}
	}()

	if errCmd, isErr := cmd.(domain.ErrorCommand); isErr {
		status := http.StatusBadRequest
		if errCmd.Err != nil {
			status = statusFor(errCmd.Err)
		}
		return Response{
			Type:    domain.CommandError,
			Message: errCmd.Message,
			Status:  status,
		}
	}

	result, err := h.handle(ctx, cmd)
	if err != nil {
		status := statusFor(err)
		if status >= 500 {
			log.Errorf("%s command failed: %v", cmd.Type(), err)
		} else {
			log.Infof("%s command rejected: %v", cmd.Type(), err)
		}
		resp := Response{
			Type:    cmd.Type(),
			Message: err.Error(),
			Status:  status,
		}
		if result != nil {
			resp.Data = result.data
		}
		return resp
	}

	return Response{
		Type:    cmd.Type(),
		Data:    result.data,
		Message: result.message,
		Status:  http.StatusOK,
	}
}

func statusFor(err error) int {
	switch {
	case domain.IsParse(err), domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsBrokerage(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h commandAppHandler) handle(ctx context.Context, cmd domain.Command) (*handlerResult, error) {
	switch c := cmd.(type) {
	case domain.HelpCommand:
		return h.help()
	case domain.AccountCommand:
		return h.account(ctx)
	case domain.PositionsCommand:
		return h.positions()
	case domain.OrdersCommand:
		return h.orders()
	case domain.PnlCommand:
		return h.pnl()
	case domain.PriceCommand:
		return h.price(c)
	case domain.HistoryCommand:
		return h.history(ctx, c)
	case domain.OrderCommand:
		return h.placeOrder(ctx, c)
	case domain.CloseCommand:
		return h.closePosition(c)
	case domain.CloseAllCommand:
		return h.closeAll()
	case domain.CancelOrdersCommand:
		return h.cancelOrders(ctx, c)
	case domain.FactorsCommand:
		return h.factors(ctx)
	case domain.FactorDetailCommand:
		return h.factorDetail(ctx, c)
	case domain.AllocateCommand:
		return h.allocate(ctx, c)
	case domain.ReallocateCommand:
		return h.reallocate(ctx, c)
	case domain.DeallocateCommand:
		return h.deallocate(ctx, c)
	case domain.RebalanceCommand:
		return h.rebalance(ctx, c)
	}
	return nil, fmt.Errorf("no handler for %s command", cmd.Type())
}
