package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/campaign-mcp/internal/campaign"
)

const defaultDiaryLimit = 10

// listArg splits a comma-separated argument. A missing argument is nil and
// an empty one is an empty list, which clears the stored list.
func listArg(req mcp.CallToolRequest, name string) []string {
	s := optionalString(req, name)
	if s == nil {
		return nil
	}
	if l := campaign.SplitList(*s); l != nil {
		return l
	}
	return []string{}
}

// DiaryEntriesHandler returns the MCP tool handler for the "get_diary_entries" tool.
func DiaryEntriesHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries, err := svc.DiaryEntries(ctx, req.GetString("month_year", ""), req.GetInt("limit", defaultDiaryLimit))
		if err != nil {
			return toolError("get_diary_entries", err)
		}
		return mcp.NewToolResultText(formatDiaryList(entries)), nil
	}
}

// DiaryEntryHandler returns the MCP tool handler for the "get_diary_entry" tool.
func DiaryEntryHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("entry_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		e, err := svc.DiaryEntry(ctx, id)
		if err != nil {
			return toolError("get_diary_entry", err)
		}
		return mcp.NewToolResultText(formatDiaryEntry(e)), nil
	}
}

// AddDiaryEntryHandler returns the MCP tool handler for the "add_diary_entry" tool.
func AddDiaryEntryHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		e, err := svc.AddDiaryEntry(ctx, campaign.DiaryEntry{
			Title:            req.GetString("title", ""),
			Content:          content,
			SessionDate:      req.GetString("session_date", ""),
			InGameDate:       req.GetString("in_game_date", ""),
			LocationsVisited: campaign.SplitList(req.GetString("locations", "")),
			NPCsEncountered:  campaign.SplitList(req.GetString("npcs", "")),
			QuestsUpdated:    campaign.SplitList(req.GetString("quests", "")),
			Loot:             campaign.ParseLoot(req.GetString("loot", "")),
		})
		if err != nil {
			return toolError("add_diary_entry", err)
		}
		return mcp.NewToolResultText("Added diary entry " + e.ID + "\n\n" + formatDiaryEntry(e)), nil
	}
}

// UpdateDiaryEntryHandler returns the MCP tool handler for the "update_diary_entry" tool.
func UpdateDiaryEntryHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("entry_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		e, err := svc.UpdateDiaryEntry(ctx, id, campaign.DiaryUpdate{
			Title:     optionalString(req, "title"),
			Content:   optionalString(req, "content"),
			Locations: listArg(req, "locations"),
			NPCs:      listArg(req, "npcs"),
			Quests:    listArg(req, "quests"),
		})
		if err != nil {
			return toolError("update_diary_entry", err)
		}
		return mcp.NewToolResultText("Updated diary entry " + e.ID + "\n\n" + formatDiaryEntry(e)), nil
	}
}

// DeleteDiaryEntryHandler returns the MCP tool handler for the "delete_diary_entry" tool.
func DeleteDiaryEntryHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("entry_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := svc.DeleteDiaryEntry(ctx, id); err != nil {
			return toolError("delete_diary_entry", err)
		}
		return mcp.NewToolResultText("Deleted diary entry " + id + "."), nil
	}
}
