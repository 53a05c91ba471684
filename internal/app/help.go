package app

import "strings"

type helpEntry struct {
	Usage       string `json:"usage"`
	Description string `json:"description"`
}

var helpEntries = []helpEntry{
	{"account | acc", "account equity, cash, buying power and market status"},
	{"positions | pos", "open positions"},
	{"orders", "open orders"},
	{"pnl | p&l | pl", "today's P&L and unrealized P&L"},
	{"price <symbol>", "latest trade price"},
	{"history [period]", "portfolio history, default 1M"},
	{"buy <qty> <symbol> [at <price>]", "buy shares, limit order when a price is given"},
	{"buy $<amount> [of] <symbol> [at <price>]", "buy a dollar amount"},
	{"buy <symbol> <amount> worth", "buy a dollar amount"},
	{"sell ...", "same forms as buy"},
	{"close <symbol>", "close one position"},
	{"close all | closeall | liquidate", "close every position"},
	{"cancel [order id]", "cancel one order, or every open order"},
	{"factors", "list factors and allocations"},
	{"factor <name>", "show one factor"},
	{"allocate <pct>% [to] <factor>", "allocate a share of equity to a factor"},
	{"reallocate <pct>% [to] <factor>", "change an existing allocation"},
	{"deallocate <factor>", "close a factor's positions and remove its allocation"},
	{"rebalance [factor]", "re-align one factor, or every allocated factor"},
	{"help | ?", "this list"},
}

func (h commandAppHandler) help() (*handlerResult, error) {
	lines := []string{"Commands:"}
	for _, e := range helpEntries {
		lines = append(lines, "  "+e.Usage+"  "+e.Description)
	}
	return ok(helpEntries, "%s", strings.Join(lines, "\n"))
}
