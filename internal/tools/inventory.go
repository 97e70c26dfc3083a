package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/campaign-mcp/internal/campaign"
	"github.com/leonardcser/campaign-mcp/internal/ledger"
)

// AddItemHandler returns the MCP tool handler for the "add_item" tool.
func AddItemHandler(l *ledger.Ledger, svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		const tool = "add_item"
		locName, err := req.RequireString("location")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		name, err := req.RequireString("item_name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		loc, err := resolve(ctx, svc, locName)
		if err != nil {
			return toolError(tool, err)
		}
		res, err := l.AddItem(ctx, ledger.AddItemInput{
			LocationID:         loc.ID,
			Name:               name,
			Quantity:           req.GetInt("quantity", 1),
			IsMagic:            req.GetBool("is_magic", false),
			Rarity:             req.GetString("rarity", ""),
			ItemType:           req.GetString("item_type", ""),
			Description:        req.GetString("description", ""),
			RequiresAttunement: req.GetBool("requires_attunement", false),
			Notes:              req.GetString("notes", ""),
			Reason:             req.GetString("reason", ""),
		})
		if err != nil {
			return toolError(tool, err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("Added %d x %s to %s (now %d).",
			res.Changed, name, loc.Name, res.Item.Quantity)), nil
	}
}

// RemoveItemHandler returns the MCP tool handler for the "remove_item" tool.
func RemoveItemHandler(l *ledger.Ledger, svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		const tool = "remove_item"
		locName, err := req.RequireString("location")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		name, err := req.RequireString("item_name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		loc, err := resolve(ctx, svc, locName)
		if err != nil {
			return toolError(tool, err)
		}
		requested := req.GetInt("quantity", 0)
		res, err := l.RemoveItem(ctx, ledger.RemoveItemInput{
			LocationID: loc.ID,
			Name:       name,
			Quantity:   requested,
			Reason:     req.GetString("reason", ""),
		})
		if err != nil {
			return toolError(tool, err)
		}
		msg := fmt.Sprintf("Removed %d x %s from %s", res.Changed, name, loc.Name)
		switch {
		case res.Deleted && requested > res.Changed:
			msg += fmt.Sprintf(" (only %d were present; none remain).", res.Changed)
		case res.Deleted:
			msg += " (none remain)."
		default:
			msg += fmt.Sprintf(" (%d remain).", res.Item.Quantity)
		}
		return mcp.NewToolResultText(msg), nil
	}
}

// SetItemQuantityHandler returns the MCP tool handler for the "set_item_quantity" tool.
func SetItemQuantityHandler(l *ledger.Ledger, svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		const tool = "set_item_quantity"
		locName, err := req.RequireString("location")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		name, err := req.RequireString("item_name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		qty, err := req.RequireInt("quantity")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		loc, err := resolve(ctx, svc, locName)
		if err != nil {
			return toolError(tool, err)
		}
		res, err := l.SetItemQuantity(ctx, ledger.SetQuantityInput{
			LocationID: loc.ID,
			Name:       name,
			Quantity:   qty,
			Reason:     req.GetString("reason", ""),
		})
		if err != nil {
			return toolError(tool, err)
		}
		switch {
		case res.Entry == nil:
			return mcp.NewToolResultText(fmt.Sprintf("%s at %s is already %d.", name, loc.Name, qty)), nil
		case res.Deleted:
			return mcp.NewToolResultText(fmt.Sprintf("Removed all %s from %s.", name, loc.Name)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Set %s at %s to %d.", name, loc.Name, res.Item.Quantity)), nil
	}
}

// TransferItemHandler returns the MCP tool handler for the "transfer_item" tool.
func TransferItemHandler(l *ledger.Ledger, svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		const tool = "transfer_item"
		fromName, err := req.RequireString("from_location")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		toName, err := req.RequireString("to_location")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		name, err := req.RequireString("item_name")
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
		res, err := l.TransferItem(ctx, ledger.TransferItemInput{
			FromLocationID: from.ID,
			ToLocationID:   to.ID,
			Name:           name,
			Quantity:       req.GetInt("quantity", 0),
			Reason:         req.GetString("reason", ""),
		})
		if err != nil {
			return toolError(tool, err)
		}
		left := 0
		if res.Source != nil {
			left = res.Source.Quantity
		}
		return mcp.NewToolResultText(fmt.Sprintf("Moved %d x %s from %s to %s.\n%s now holds %d; %s holds %d.",
			res.Quantity, name, from.Name, to.Name, from.Name, left, to.Name, res.Destination.Quantity)), nil
	}
}
