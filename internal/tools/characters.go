package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/campaign-mcp/internal/campaign"
)

// optionalString returns nil when the argument was not sent at all, so an
// explicit empty string can still clear a field.
func optionalString(req mcp.CallToolRequest, name string) *string {
	if _, ok := req.GetArguments()[name]; !ok {
		return nil
	}
	v := req.GetString(name, "")
	return &v
}

func optionalInt(req mcp.CallToolRequest, name string) *int {
	if _, ok := req.GetArguments()[name]; !ok {
		return nil
	}
	v := req.GetInt(name, 0)
	return &v
}

// characterArg resolves the required character_name argument.
func characterArg(ctx context.Context, svc *campaign.Service, req mcp.CallToolRequest) (campaign.Character, error) {
	name, err := req.RequireString("character_name")
	if err != nil {
		return campaign.Character{}, err
	}
	return svc.CharacterByName(ctx, name)
}

// PartyCharactersHandler returns the MCP tool handler for the "get_party_characters" tool.
func PartyCharactersHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var party campaign.Party
		if name := req.GetString("party_name", ""); name != "" {
			p, err := svc.PartyByName(ctx, name)
			if err != nil {
				return toolError("get_party_characters", err)
			}
			party = p
		}
		chars, err := svc.Characters(ctx, party.ID)
		if err != nil {
			return toolError("get_party_characters", err)
		}
		return mcp.NewToolResultText(formatCharacters(chars, titleOr(party.Name, "Party"))), nil
	}
}

// CharacterDetailsHandler returns the MCP tool handler for the "get_character_details" tool.
func CharacterDetailsHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c, err := characterArg(ctx, svc, req)
		if err != nil {
			return toolError("get_character_details", err)
		}
		return mcp.NewToolResultText(formatCharacter(c)), nil
	}
}

// CharacterSpellsHandler returns the MCP tool handler for the "get_character_spells" tool.
func CharacterSpellsHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c, err := characterArg(ctx, svc, req)
		if err != nil {
			return toolError("get_character_spells", err)
		}
		spells, err := svc.CharacterSpells(ctx, c.ID, req.GetString("source_type", ""))
		if err != nil {
			return toolError("get_character_spells", err)
		}
		return mcp.NewToolResultText(formatSpells(c.Name, spells)), nil
	}
}

// CharacterFeatsHandler returns the MCP tool handler for the "get_character_feats" tool.
func CharacterFeatsHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c, err := characterArg(ctx, svc, req)
		if err != nil {
			return toolError("get_character_feats", err)
		}
		feats, err := svc.CharacterFeats(ctx, c.ID)
		if err != nil {
			return toolError("get_character_feats", err)
		}
		return mcp.NewToolResultText(formatFeats(c.Name, feats)), nil
	}
}

// CharacterFormsHandler returns the MCP tool handler for the "get_character_forms" tool.
func CharacterFormsHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c, err := characterArg(ctx, svc, req)
		if err != nil {
			return toolError("get_character_forms", err)
		}
		forms, err := svc.CharacterForms(ctx, c.ID)
		if err != nil {
			return toolError("get_character_forms", err)
		}
		return mcp.NewToolResultText(formatForms(c.Name, forms)), nil
	}
}

// CharacterCompanionsHandler returns the MCP tool handler for the "get_character_companions" tool.
func CharacterCompanionsHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c, err := characterArg(ctx, svc, req)
		if err != nil {
			return toolError("get_character_companions", err)
		}
		comps, err := svc.CharacterCompanions(ctx, c.ID)
		if err != nil {
			return toolError("get_character_companions", err)
		}
		return mcp.NewToolResultText(formatCompanions(c.Name, comps)), nil
	}
}

// UpdateCharacterHandler returns the MCP tool handler for the "update_character" tool.
func UpdateCharacterHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c, err := characterArg(ctx, svc, req)
		if err != nil {
			return toolError("update_character", err)
		}
		updated, err := svc.UpdateCharacter(ctx, c.ID, campaign.CharacterUpdate{
			Level:        optionalInt(req, "level"),
			ClassSummary: optionalString(req, "class_summary"),
			Notes:        optionalString(req, "notes"),
			HPCurrent:    optionalInt(req, "hp_current"),
			HPMax:        optionalInt(req, "hp_max"),
		})
		if err != nil {
			return toolError("update_character", err)
		}
		return mcp.NewToolResultText("Updated " + updated.Name + "\n\n" + formatCharacter(updated)), nil
	}
}

// AddCharacterSpellHandler returns the MCP tool handler for the "add_character_spell" tool.
func AddCharacterSpellHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c, err := characterArg(ctx, svc, req)
		if err != nil {
			return toolError("add_character_spell", err)
		}
		spell, err := req.RequireString("spell_name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		level, err := req.RequireInt("spell_level")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		sp, err := svc.AddCharacterSpell(ctx, campaign.CharacterSpell{
			CharacterID:     c.ID,
			SpellName:       spell,
			SpellLevel:      level,
			SourceType:      req.GetString("source_type", ""),
			SourceName:      req.GetString("source_name", ""),
			ChargesRequired: optionalInt(req, "charges"),
			Notes:           req.GetString("notes", ""),
		})
		if err != nil {
			return toolError("add_character_spell", err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("Added %s (%s) to %s from %s.",
			sp.SpellName, spellLevel(sp.SpellLevel), c.Name, sp.SourceName)), nil
	}
}

// RemoveCharacterSpellHandler returns the MCP tool handler for the "remove_character_spell" tool.
func RemoveCharacterSpellHandler(svc *campaign.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c, err := characterArg(ctx, svc, req)
		if err != nil {
			return toolError("remove_character_spell", err)
		}
		spell, err := req.RequireString("spell_name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if _, err := svc.RemoveCharacterSpell(ctx, c.ID, spell); err != nil {
			return toolError("remove_character_spell", err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("Removed %s from %s.", spell, c.Name)), nil
	}
}
