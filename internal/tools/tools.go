// Package tools exposes the campaign operations as MCP tool handlers.
package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/campaign-mcp/internal/cache"
	"github.com/leonardcser/campaign-mcp/internal/campaign"
	"github.com/leonardcser/campaign-mcp/internal/ledger"
	"github.com/leonardcser/campaign-mcp/internal/logger"
)

// Deps is what the handlers need from the rest of the process.
type Deps struct {
	Ledger      *ledger.Ledger
	Campaign    *campaign.Service
	Cache       cache.KV
	SnapshotDir string
}

// toolError turns err into a tool-level error result. Validation failures
// are the caller's mistake and are not logged as errors.
func toolError(tool string, err error) (*mcp.CallToolResult, error) {
	switch {
	case ledger.IsValidation(err), campaign.IsUserError(err):
		logger.Infof("%s: rejected: %v", tool, err)
	default:
		logger.Errorf("%s: %v", tool, err)
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func resolve(ctx context.Context, svc *campaign.Service, name string) (campaign.Location, error) {
	return svc.LocationByName(ctx, name)
}

// optionalLocation resolves the named argument when present and returns ""
// for "all locations" otherwise.
func optionalLocation(ctx context.Context, svc *campaign.Service, req mcp.CallToolRequest, arg string) (campaign.Location, error) {
	name := req.GetString(arg, "")
	if name == "" {
		return campaign.Location{}, nil
	}
	return resolve(ctx, svc, name)
}

func coinsArg(req mcp.CallToolRequest) ledger.Coins {
	return ledger.Coins{
		Copper:   req.GetInt("copper", 0),
		Silver:   req.GetInt("silver", 0),
		Electrum: req.GetInt("electrum", 0),
		Gold:     req.GetInt("gold", 0),
		Platinum: req.GetInt("platinum", 0),
	}
}

var denominations = []string{"copper", "silver", "electrum", "gold", "platinum"}

func withCoins(verb string) []mcp.ToolOption {
	opts := make([]mcp.ToolOption, 0, len(denominations))
	for _, d := range denominations {
		opts = append(opts, mcp.WithNumber(d, mcp.Description("Amount of "+d+" to "+verb)))
	}
	return opts
}

// Register adds every campaign tool to s.
func Register(s *server.MCPServer, d Deps) {
	add := func(t mcp.Tool, h server.ToolHandlerFunc) {
		s.AddTool(t, h)
		logger.Infof("Registered %s tool", t.Name)
	}

	add(mcp.NewTool("add_item",
		mcp.WithDescription(multiline(
			"Adds items to a storage location and records the change in the inventory ledger",
			"- Merges into an existing stack of the same item at that location",
		)),
		mcp.WithString("location", mcp.Required(), mcp.Description("Storage location name, e.g. \"Bag of Holding\"")),
		mcp.WithString("item_name", mcp.Required(), mcp.Description("Item name")),
		mcp.WithNumber("quantity", mcp.Description("How many to add (default 1)")),
		mcp.WithBoolean("is_magic", mcp.Description("Whether the item is magical")),
		mcp.WithString("rarity", mcp.Description("Rarity, e.g. uncommon")),
		mcp.WithString("item_type", mcp.Description("Category, e.g. weapon, potion, gear")),
		mcp.WithString("description", mcp.Description("Item description")),
		mcp.WithBoolean("requires_attunement", mcp.Description("Whether the item requires attunement")),
		mcp.WithString("notes", mcp.Description("Free-form notes")),
		mcp.WithString("reason", mcp.Description("Why the item was added")),
	), AddItemHandler(d.Ledger, d.Campaign))

	add(mcp.NewTool("remove_item",
		mcp.WithDescription(multiline(
			"Removes items from a storage location and records the removal in the ledger",
			"- Removing more than is present removes the whole stack",
		)),
		mcp.WithString("location", mcp.Required(), mcp.Description("Storage location name")),
		mcp.WithString("item_name", mcp.Required(), mcp.Description("Item name")),
		mcp.WithNumber("quantity", mcp.Description("How many to remove; omit or 0 for all")),
		mcp.WithString("reason", mcp.Description("Why the item was removed")),
	), RemoveItemHandler(d.Ledger, d.Campaign))

	add(mcp.NewTool("set_item_quantity",
		mcp.WithDescription("Sets an item's quantity at a location, recording the difference in the ledger; 0 removes it"),
		mcp.WithString("location", mcp.Required(), mcp.Description("Storage location name")),
		mcp.WithString("item_name", mcp.Required(), mcp.Description("Item name")),
		mcp.WithNumber("quantity", mcp.Required(), mcp.Description("New quantity")),
		mcp.WithString("reason", mcp.Description("Why the quantity changed")),
	), SetItemQuantityHandler(d.Ledger, d.Campaign))

	add(mcp.NewTool("transfer_item",
		mcp.WithDescription("Moves items between two storage locations, recording both sides in the ledger"),
		mcp.WithString("from_location", mcp.Required(), mcp.Description("Source location name")),
		mcp.WithString("to_location", mcp.Required(), mcp.Description("Destination location name")),
		mcp.WithString("item_name", mcp.Required(), mcp.Description("Item name")),
		mcp.WithNumber("quantity", mcp.Description("How many to move; omit or 0 for all")),
		mcp.WithString("reason", mcp.Description("Why the items moved")),
	), TransferItemHandler(d.Ledger, d.Campaign))

	add(mcp.NewTool("add_currency", append([]mcp.ToolOption{
		mcp.WithDescription("Adds coins to a storage location and records them in the currency ledger"),
		mcp.WithString("location", mcp.Required(), mcp.Description("Storage location name")),
		mcp.WithString("reason", mcp.Description("Where the coins came from")),
	}, withCoins("add")...)...), AddCurrencyHandler(d.Ledger, d.Campaign))

	add(mcp.NewTool("remove_currency", append([]mcp.ToolOption{
		mcp.WithDescription(multiline(
			"Removes coins from a storage location and records the removal in the currency ledger",
			"- Denominations never go below zero; the result reports what was actually removed",
		)),
		mcp.WithString("location", mcp.Required(), mcp.Description("Storage location name")),
		mcp.WithString("reason", mcp.Description("What the coins were spent on")),
	}, withCoins("remove")...)...), RemoveCurrencyHandler(d.Ledger, d.Campaign))

	add(mcp.NewTool("transfer_currency", append([]mcp.ToolOption{
		mcp.WithDescription("Moves coins between two storage locations; fails without changes if the source is short"),
		mcp.WithString("from_location", mcp.Required(), mcp.Description("Source location name")),
		mcp.WithString("to_location", mcp.Required(), mcp.Description("Destination location name")),
		mcp.WithString("reason", mcp.Description("Why the coins moved")),
	}, withCoins("move")...)...), TransferCurrencyHandler(d.Ledger, d.Campaign))

	add(mcp.NewTool("get_inventory",
		mcp.WithDescription("Lists inventory grouped by item type, for one location or all of them"),
		mcp.WithString("location", mcp.Description("Optional storage location name")),
	), GetInventoryHandler(d.Campaign))

	add(mcp.NewTool("search_inventory",
		mcp.WithDescription("Finds items whose name contains the query, across every location"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to look for in item names")),
	), SearchInventoryHandler(d.Campaign))

	add(mcp.NewTool("get_magic_items",
		mcp.WithDescription("Lists magic items by rarity, for one location or all of them"),
		mcp.WithString("location", mcp.Description("Optional storage location name")),
	), MagicItemsHandler(d.Campaign))

	add(mcp.NewTool("get_storage_locations",
		mcp.WithDescription("Lists every storage location"),
	), LocationsHandler(d.Campaign))

	add(mcp.NewTool("get_currency",
		mcp.WithDescription("Shows coins held at each location, or at one location"),
		mcp.WithString("location", mcp.Description("Optional storage location name")),
	), GetCurrencyHandler(d.Campaign))

	add(mcp.NewTool("get_party_wealth",
		mcp.WithDescription("Shows the party's combined coins and their value in gold"),
	), PartyWealthHandler(d.Campaign))

	add(mcp.NewTool("get_inventory_history",
		mcp.WithDescription("Shows recent inventory ledger entries, newest first"),
		mcp.WithString("location", mcp.Description("Optional storage location name")),
		mcp.WithNumber("limit", mcp.Description("Maximum entries (default 20)")),
	), InventoryHistoryHandler(d.Campaign))

	add(mcp.NewTool("get_currency_history",
		mcp.WithDescription("Shows recent currency ledger entries, newest first"),
		mcp.WithString("location", mcp.Description("Optional storage location name")),
		mcp.WithNumber("limit", mcp.Description("Maximum entries (default 20)")),
	), CurrencyHistoryHandler(d.Campaign))

	add(mcp.NewTool("inventory_snapshot",
		mcp.WithDescription(multiline(
			"Saves a full JSON snapshot of inventory, currency and both ledgers",
			"- Reads bypass the cache",
		)),
		mcp.WithString("note", mcp.Description("Optional note stored with the snapshot")),
	), SnapshotHandler(d.Campaign, d.SnapshotDir))

	add(mcp.NewTool("list_inventory_snapshots",
		mcp.WithDescription("Lists saved inventory snapshots, newest first"),
	), ListSnapshotsHandler(d.SnapshotDir))

	add(mcp.NewTool("get_party_characters",
		mcp.WithDescription("Lists characters with race, class and level, for one party or all of them"),
		mcp.WithString("party_name", mcp.Description("Optional party name")),
	), PartyCharactersHandler(d.Campaign))

	add(mcp.NewTool("get_character_details",
		mcp.WithDescription("Shows a character's race, class, level, hit points and notes"),
		mcp.WithString("character_name", mcp.Required(), mcp.Description("Character name")),
	), CharacterDetailsHandler(d.Campaign))

	add(mcp.NewTool("get_character_spells",
		mcp.WithDescription("Lists a character's spells grouped by source, then level"),
		mcp.WithString("character_name", mcp.Required(), mcp.Description("Character name")),
		mcp.WithString("source_type", mcp.Description("Optional source filter: class, item, feat or racial")),
	), CharacterSpellsHandler(d.Campaign))

	add(mcp.NewTool("get_character_feats",
		mcp.WithDescription("Lists a character's feats"),
		mcp.WithString("character_name", mcp.Required(), mcp.Description("Character name")),
	), CharacterFeatsHandler(d.Campaign))

	add(mcp.NewTool("get_character_forms",
		mcp.WithDescription("Lists the forms a character can take, such as wild shapes"),
		mcp.WithString("character_name", mcp.Required(), mcp.Description("Character name")),
	), CharacterFormsHandler(d.Campaign))

	add(mcp.NewTool("get_character_companions",
		mcp.WithDescription("Lists a character's companions and familiars"),
		mcp.WithString("character_name", mcp.Required(), mcp.Description("Character name")),
	), CharacterCompanionsHandler(d.Campaign))

	add(mcp.NewTool("update_character",
		mcp.WithDescription(multiline(
			"Updates a character's level, class summary, hit points or notes",
			"- Only the fields that are passed change",
		)),
		mcp.WithString("character_name", mcp.Required(), mcp.Description("Character name")),
		mcp.WithNumber("level", mcp.Description("New level, 1 to 20")),
		mcp.WithString("class_summary", mcp.Description("Class summary, e.g. \"Wizard 5 / Cleric 1\"")),
		mcp.WithNumber("hp_current", mcp.Description("Current hit points")),
		mcp.WithNumber("hp_max", mcp.Description("Maximum hit points")),
		mcp.WithString("notes", mcp.Description("Replaces the character notes")),
	), UpdateCharacterHandler(d.Campaign))

	add(mcp.NewTool("add_character_spell",
		mcp.WithDescription("Adds a spell to a character's spell list"),
		mcp.WithString("character_name", mcp.Required(), mcp.Description("Character name")),
		mcp.WithString("spell_name", mcp.Required(), mcp.Description("Spell name")),
		mcp.WithNumber("spell_level", mcp.Required(), mcp.Description("Spell level, 0 for cantrips")),
		mcp.WithString("source_type", mcp.Required(), mcp.Description("Where the spell comes from: class, item, feat or racial")),
		mcp.WithString("source_name", mcp.Required(), mcp.Description("Source name, e.g. \"Staff of Power\" or \"Bard\"")),
		mcp.WithNumber("charges", mcp.Description("Charges used per cast, for item spells")),
		mcp.WithString("notes", mcp.Description("Free-form notes")),
	), AddCharacterSpellHandler(d.Campaign))

	add(mcp.NewTool("remove_character_spell",
		mcp.WithDescription("Removes a spell from a character's spell list"),
		mcp.WithString("character_name", mcp.Required(), mcp.Description("Character name")),
		mcp.WithString("spell_name", mcp.Required(), mcp.Description("Spell name")),
	), RemoveCharacterSpellHandler(d.Campaign))

	add(mcp.NewTool("get_diary_entries",
		mcp.WithDescription("Lists campaign diary entries, newest session first"),
		mcp.WithNumber("limit", mcp.Description("Maximum entries (default 10)")),
		mcp.WithString("month_year", mcp.Description("Optional month filter, e.g. \"March 2025\"")),
	), DiaryEntriesHandler(d.Campaign))

	add(mcp.NewTool("get_diary_entry",
		mcp.WithDescription("Shows one diary entry in full"),
		mcp.WithString("entry_id", mcp.Required(), mcp.Description("Diary entry id")),
	), DiaryEntryHandler(d.Campaign))

	add(mcp.NewTool("add_diary_entry",
		mcp.WithDescription("Adds a session entry to the campaign diary"),
		mcp.WithString("content", mcp.Required(), mcp.Description("Session summary")),
		mcp.WithString("title", mcp.Description("Entry title")),
		mcp.WithString("session_date", mcp.Description("Real-world session date, YYYY-MM-DD")),
		mcp.WithString("in_game_date", mcp.Description("In-game date")),
		mcp.WithString("locations", mcp.Description("Comma-separated locations visited")),
		mcp.WithString("npcs", mcp.Description("Comma-separated NPCs encountered")),
		mcp.WithString("quests", mcp.Description("Comma-separated quest updates")),
		mcp.WithString("loot", mcp.Description("Loot as a JSON object or list, or plain text")),
	), AddDiaryEntryHandler(d.Campaign))

	add(mcp.NewTool("update_diary_entry",
		mcp.WithDescription(multiline(
			"Updates a diary entry",
			"- Passed fields replace the stored ones; lists are comma-separated",
		)),
		mcp.WithString("entry_id", mcp.Required(), mcp.Description("Diary entry id")),
		mcp.WithString("content", mcp.Description("New content")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("locations", mcp.Description("Comma-separated locations")),
		mcp.WithString("npcs", mcp.Description("Comma-separated NPCs")),
		mcp.WithString("quests", mcp.Description("Comma-separated quests")),
	), UpdateDiaryEntryHandler(d.Campaign))

	add(mcp.NewTool("delete_diary_entry",
		mcp.WithDescription("Deletes a diary entry"),
		mcp.WithString("entry_id", mcp.Required(), mcp.Description("Diary entry id")),
	), DeleteDiaryEntryHandler(d.Campaign))

	add(mcp.NewTool("campaign_health_check",
		mcp.WithDescription("Checks the connection to the campaign database and reports cache size"),
	), HealthHandler(d.Campaign, d.Cache))

	add(mcp.NewTool("clear_cache",
		mcp.WithDescription("Drops every cached read so the next queries go to the database"),
	), ClearCacheHandler(d.Campaign))
}
