package domain

import "github.com/shopspring/decimal"

type CommandType string

const (
	CommandAccount      CommandType = "account"
	CommandPositions    CommandType = "positions"
	CommandOrders       CommandType = "orders"
	CommandPnl          CommandType = "pnl"
	CommandPrice        CommandType = "price"
	CommandHistory      CommandType = "history"
	CommandBuy          CommandType = "buy"
	CommandSell         CommandType = "sell"
	CommandClose        CommandType = "close"
	CommandCloseAll     CommandType = "close_all"
	CommandCancelOrders CommandType = "cancel_orders"
	CommandFactors      CommandType = "factors"
	CommandFactorDetail CommandType = "factor_detail"
	CommandAllocate     CommandType = "allocate"
	CommandReallocate   CommandType = "reallocate"
	CommandDeallocate   CommandType = "deallocate"
	CommandRebalance    CommandType = "rebalance"
	CommandHelp         CommandType = "help"
	CommandError        CommandType = "error"
)

// Command is the parsed form of one line of command text. Every concrete
// type below is one variant; ErrorCommand is the only one that is not
// actionable.
type Command interface {
	Type() CommandType
}

type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// Factor-bearing commands carry both the resolved id and the exact stored
// name; the parser fills them in from the factor store.

type AccountCommand struct{}
type PositionsCommand struct{}
type OrdersCommand struct{}
type PnlCommand struct{}
type CloseAllCommand struct{}
type FactorsCommand struct{}
type HelpCommand struct{}

type PriceCommand struct {
	Symbol string
}

type HistoryCommand struct {
	// empty means the dispatcher default
	Period string
}

// OrderCommand covers both buy and sell. The parser does not require a
// sizing; the dispatcher rejects commands without exactly one of Qty or
// Notional.
type OrderCommand struct {
	Side       OrderSide
	Symbol     string
	Qty        *decimal.Decimal
	Notional   *decimal.Decimal
	LimitPrice *decimal.Decimal
}

type CloseCommand struct {
	Symbol string
}

type CancelOrdersCommand struct {
	// empty cancels every open order
	OrderID string
}

type FactorDetailCommand struct {
	FactorID   string
	FactorName string
}

type AllocateCommand struct {
	FactorID   string
	FactorName string
	Percentage decimal.Decimal
}

type ReallocateCommand struct {
	FactorID   string
	FactorName string
	Percentage decimal.Decimal
}

type DeallocateCommand struct {
	FactorID   string
	FactorName string
}

type RebalanceCommand struct {
	// empty rebalances every allocated factor
	FactorID   string
	FactorName string
}

type ErrorCommand struct {
	Message string
	Err     error
}

func (AccountCommand) Type() CommandType      { return CommandAccount }
func (PositionsCommand) Type() CommandType    { return CommandPositions }
func (OrdersCommand) Type() CommandType       { return CommandOrders }
func (PnlCommand) Type() CommandType          { return CommandPnl }
func (PriceCommand) Type() CommandType        { return CommandPrice }
func (HistoryCommand) Type() CommandType      { return CommandHistory }
func (CloseCommand) Type() CommandType        { return CommandClose }
func (CloseAllCommand) Type() CommandType     { return CommandCloseAll }
func (CancelOrdersCommand) Type() CommandType { return CommandCancelOrders }
func (FactorsCommand) Type() CommandType      { return CommandFactors }
func (FactorDetailCommand) Type() CommandType { return CommandFactorDetail }
func (AllocateCommand) Type() CommandType     { return CommandAllocate }
func (ReallocateCommand) Type() CommandType   { return CommandReallocate }
func (DeallocateCommand) Type() CommandType   { return CommandDeallocate }
func (RebalanceCommand) Type() CommandType    { return CommandRebalance }
func (HelpCommand) Type() CommandType         { return CommandHelp }
func (ErrorCommand) Type() CommandType        { return CommandError }

func (c OrderCommand) Type() CommandType {
	if c.Side == SideSell {
		return CommandSell
	}
	return CommandBuy
}
