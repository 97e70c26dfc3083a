package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/campaign-mcp/internal/campaign"
	"github.com/leonardcser/campaign-mcp/internal/ledger"
)

// AddCurrencyHandler returns the MCP tool handler for the "add_currency" tool.
func AddCurrencyHandler(l *ledger.Ledger, svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		const tool = "add_currency"
		locName, err := req.RequireString("location")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		loc, err := resolve(ctx, svc, locName)
		if err != nil {
			return toolError(tool, err)
		}
		res, err := l.AddCurrency(ctx, ledger.CurrencyInput{
			LocationID: loc.ID,
			Coins:      coinsArg(req),
			Reason:     req.GetString("reason", ""),
		})
		if err != nil {
			return toolError(tool, err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("Added %s to %s.\nBalance: %s",
			res.Applied, loc.Name, formatCoins(res.Balance.Coins))), nil
	}
}

// RemoveCurrencyHandler returns the MCP tool handler for the "remove_currency" tool.
func RemoveCurrencyHandler(l *ledger.Ledger, svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		const tool = "remove_currency"
		locName, err := req.RequireString("location")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		loc, err := resolve(ctx, svc, locName)
		if err != nil {
			return toolError(tool, err)
		}
		requested := coinsArg(req)
		res, err := l.RemoveCurrency(ctx, ledger.CurrencyInput{
			LocationID: loc.ID,
			Coins:      requested,
			Reason:     req.GetString("reason", ""),
		})
		if err != nil {
			return toolError(tool, err)
		}
		if res.Applied.IsZero() {
			return mcp.NewToolResultText(fmt.Sprintf("Nothing removed: %s holds none of %s.", loc.Name, requested)), nil
		}
		msg := fmt.Sprintf("Removed %s from %s.", res.Applied, loc.Name)
		if res.Applied != requested {
			msg += fmt.Sprintf(" (requested %s)", requested)
		}
		return mcp.NewToolResultText(msg + "\nBalance: " + formatCoins(res.Balance.Coins)), nil
	}
}

// TransferCurrencyHandler returns the MCP tool handler for the "transfer_currency" tool.
func TransferCurrencyHandler(l *ledger.Ledger, svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		const tool = "transfer_currency"
		fromName, err := req.RequireString("from_location")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		toName, err := req.RequireString("to_location")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		from, err := resolve(ctx, svc, fromName)
		if err != nil {
			return toolError(tool, err)
		}
		to, err := resolve(ctx, svc, toName)
		if err != nil {
			return toolError(tool, err)
		}
		res, err := l.TransferCurrency(ctx, ledger.TransferCurrencyInput{
			FromLocationID: from.ID,
			ToLocationID:   to.ID,
			Coins:          coinsArg(req),
			Reason:         req.GetString("reason", ""),
		})
		if err != nil {
			return toolError(tool, err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("Moved %s from %s to %s.\n%s: %s\n%s: %s",
			res.Transferred, from.Name, to.Name,
			from.Name, formatCoins(res.Source.Coins),
			to.Name, formatCoins(res.Destination.Coins))), nil
	}
}
