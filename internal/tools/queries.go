package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/campaign-mcp/internal/cache"
	"github.com/leonardcser/campaign-mcp/internal/campaign"
)

const defaultHistoryLimit = 20

// GetInventoryHandler returns the MCP tool handler for the "get_inventory" tool.
func GetInventoryHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		loc, err := optionalLocation(ctx, svc, req, "location")
		if err != nil {
			return toolError("get_inventory", err)
		}
		items, err := svc.Inventory(ctx, loc.ID)
		if err != nil {
			return toolError("get_inventory", err)
		}
		return mcp.NewToolResultText(formatInventory(items, titleOr(loc.Name, "All Locations"))), nil
	}
}

// SearchInventoryHandler returns the MCP tool handler for the "search_inventory" tool.
func SearchInventoryHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		items, err := svc.SearchInventory(ctx, q)
		if err != nil {
			return toolError("search_inventory", err)
		}
		return mcp.NewToolResultText(formatSearch(items, q)), nil
	}
}

// MagicItemsHandler returns the MCP tool handler for the "get_magic_items" tool.
func MagicItemsHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		loc, err := optionalLocation(ctx, svc, req, "location")
		if err != nil {
			return toolError("get_magic_items", err)
		}
		items, err := svc.MagicItems(ctx, loc.ID)
		if err != nil {
			return toolError("get_magic_items", err)
		}
		return mcp.NewToolResultText(formatInventory(items, "Magic Items: "+titleOr(loc.Name, "All Locations"))), nil
	}
}

// LocationsHandler returns the MCP tool handler for the "get_storage_locations" tool.
func LocationsHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		locs, err := svc.Locations(ctx)
		if err != nil {
			return toolError("get_storage_locations", err)
		}
		return mcp.NewToolResultText(formatLocations(locs)), nil
	}
}

// GetCurrencyHandler returns the MCP tool handler for the "get_currency" tool.
func GetCurrencyHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		loc, err := optionalLocation(ctx, svc, req, "location")
		if err != nil {
			return toolError("get_currency", err)
		}
		rows, err := svc.Currency(ctx, loc.ID)
		if err != nil {
			return toolError("get_currency", err)
		}
		return mcp.NewToolResultText(formatCurrency(rows)), nil
	}
}

// PartyWealthHandler returns the MCP tool handler for the "get_party_wealth" tool.
func PartyWealthHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		w, err := svc.TotalWealth(ctx)
		if err != nil {
			return toolError("get_party_wealth", err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("Party wealth: %s\nTotal value: %.2f gp",
			formatCoins(w.Coins), w.TotalGP)), nil
	}
}

// InventoryHistoryHandler returns the MCP tool handler for the "get_inventory_history" tool.
func InventoryHistoryHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		loc, err := optionalLocation(ctx, svc, req, "location")
		if err != nil {
			return toolError("get_inventory_history", err)
		}
		entries, err := svc.InventoryHistory(ctx, loc.ID, req.GetInt("limit", defaultHistoryLimit))
		if err != nil {
			return toolError("get_inventory_history", err)
		}
		return mcp.NewToolResultText(formatItemHistory(entries)), nil
	}
}

// CurrencyHistoryHandler returns the MCP tool handler for the "get_currency_history" tool.
func CurrencyHistoryHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		loc, err := optionalLocation(ctx, svc, req, "location")
		if err != nil {
			return toolError("get_currency_history", err)
		}
		entries, err := svc.CurrencyHistory(ctx, loc.ID, req.GetInt("limit", defaultHistoryLimit))
		if err != nil {
			return toolError("get_currency_history", err)
		}
		return mcp.NewToolResultText(formatCurrencyHistory(entries)), nil
	}
}

// SnapshotHandler returns the MCP tool handler for the "inventory_snapshot" tool.
func SnapshotHandler(svc *campaign.Service, dir string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := svc.Snapshot(ctx, req.GetString("note", ""))
		if err != nil {
			return toolError("inventory_snapshot", err)
		}
		path, err := campaign.WriteSnapshot(dir, snap)
		if err != nil {
			return toolError("inventory_snapshot", err)
		}
		return mcp.NewToolResultText(formatSnapshot(snap, path)), nil
	}
}

// ListSnapshotsHandler returns the MCP tool handler for the "list_inventory_snapshots" tool.
func ListSnapshotsHandler(dir string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		files, err := campaign.ListSnapshots(dir)
		if err != nil {
			return toolError("list_inventory_snapshots", err)
		}
		return mcp.NewToolResultText(formatSnapshotFiles(files)), nil
	}
}

// HealthHandler returns the MCP tool handler for the "campaign_health_check" tool.
func HealthHandler(svc *campaign.Service, kv cache.KV) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		h := svc.Health(ctx)
		entries := -1
		if kv != nil {
			if n, err := kv.Size(); err == nil {
				entries = n
			}
		}
		return mcp.NewToolResultText(formatHealth(h, entries)), nil
	}
}

// ClearCacheHandler returns the MCP tool handler for the "clear_cache" tool.
func ClearCacheHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := svc.ClearCache(); err != nil {
			return toolError("clear_cache", err)
		}
		return mcp.NewToolResultText("Cache cleared."), nil
	}
}
