package tools

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leonardcser/campaign-mcp/internal/campaign"
	"github.com/leonardcser/campaign-mcp/internal/ledger"
)

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }

func titleOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// formatCoins lists non-zero denominations from platinum down, followed by
// the gold value.
func formatCoins(c ledger.Coins) string {
	if c.IsZero() {
		return "no coins"
	}
	var parts []string
	for _, d := range []struct {
		n    int
		abbr string
	}{{c.Platinum, "pp"}, {c.Gold, "gp"}, {c.Electrum, "ep"}, {c.Silver, "sp"}, {c.Copper, "cp"}} {
		if d.n != 0 {
			parts = append(parts, fmt.Sprintf("%d %s", d.n, d.abbr))
		}
	}
	return fmt.Sprintf("%s (%.2f gp)", strings.Join(parts, ", "), c.GoldValue())
}

func itemLine(it ledger.Item) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "- %s x%d", it.Name, it.Quantity)
	var tags []string
	if it.IsMagic {
		tags = append(tags, "magic")
	}
	if it.Rarity != "" {
		tags = append(tags, it.Rarity)
	}
	if it.RequiresAttunement {
		tags = append(tags, "attunement")
	}
	if len(tags) > 0 {
		sb.WriteString(" [" + strings.Join(tags, ", ") + "]")
	}
	return sb.String()
}

// formatInventory groups items by type, keeping the order the query returned.
func formatInventory(items []campaign.InventoryItem, title string) string {
	if len(items) == 0 {
		return "# " + title + "\n\nNo items."
	}
	var sb strings.Builder
	sb.WriteString("# " + title + "\n")
	current := "\x00"
	for _, it := range items {
		typ := titleOr(it.ItemType, "other")
		if typ != current {
			current = typ
			sb.WriteString("\n## " + typ + "\n")
		}
		sb.WriteString(itemLine(it.Item))
		if it.LocationName != "" && title == "All Locations" {
			sb.WriteString(" @ " + it.LocationName)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\n%d item stacks.", len(items))
	return sb.String()
}

func formatSearch(items []campaign.InventoryItem, q string) string {
	if len(items) == 0 {
		return fmt.Sprintf("No items matching %q.", q)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Items matching %q:\n", q)
	for _, it := range items {
		sb.WriteString(itemLine(it.Item) + " @ " + titleOr(it.LocationName, "unknown location") + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatLocations(locs []campaign.Location) string {
	if len(locs) == 0 {
		return "No storage locations."
	}
	var sb strings.Builder
	sb.WriteString("Storage locations:\n")
	for _, l := range locs {
		sb.WriteString("- " + l.Name)
		if l.Description != "" {
			sb.WriteString(": " + l.Description)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatCurrency(rows []campaign.LocationCurrency) string {
	if len(rows) == 0 {
		return "No currency recorded."
	}
	var sb strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&sb, "%s: %s\n", titleOr(r.LocationName, r.LocationID), formatCoins(r.Coins))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatItemHistory(entries []campaign.ItemHistory) string {
	if len(entries) == 0 {
		return "No inventory history."
	}
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s %s %s x%d @ %s: %s\n",
			e.CreatedAt, e.Type, e.ItemName, e.Quantity, titleOr(e.LocationName, e.LocationID), e.Reason)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatCurrencyHistory(entries []campaign.CurrencyHistory) string {
	if len(entries) == 0 {
		return "No currency history."
	}
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s %s %s @ %s: %s\n",
			e.CreatedAt, e.Type, e.Coins, titleOr(e.LocationName, e.LocationID), e.Reason)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatSnapshot(s *campaign.Snapshot, path string) string {
	var sb strings.Builder
	sb.WriteString("Snapshot saved to " + path + "\n")
	fmt.Fprintf(&sb, "Timestamp: %s\n", s.Timestamp.Format("2006-01-02 15:04:05 MST"))
	if s.Note != "" {
		sb.WriteString("Note: " + s.Note + "\n")
	}
	fmt.Fprintf(&sb, "Locations: %d\nItem stacks: %d (%d magic)\nInventory transactions: %d\nCurrency transactions: %d",
		s.Totals.Locations, s.Totals.Items, s.Totals.MagicItems, s.Totals.InventoryTransactions, s.Totals.CurrencyTransactions)
	if s.Totals.Wealth != nil {
		sb.WriteString("\nWealth: " + formatCoins(s.Totals.Wealth.Coins))
	}
	return sb.String()
}

func formatHealth(h campaign.Health, cacheEntries int) string {
	var sb strings.Builder
	if h.Connected {
		sb.WriteString("Status: healthy\n")
		fmt.Fprintf(&sb, "Party found: %t\n", h.PartyFound)
	} else {
		sb.WriteString("Status: error\n")
		fmt.Fprintf(&sb, "Error: %v\n", h.Err)
	}
	if cacheEntries >= 0 {
		fmt.Fprintf(&sb, "Cached reads: %d", cacheEntries)
	} else {
		sb.WriteString("Cached reads: unavailable")
	}
	return sb.String()
}

func characterLine(c campaign.Character) string {
	line := "- " + c.Name
	var parts []string
	if c.Race != "" {
		parts = append(parts, c.Race)
	}
	if c.ClassSummary != "" {
		parts = append(parts, c.ClassSummary)
	}
	if c.Level > 0 {
		parts = append(parts, fmt.Sprintf("level %d", c.Level))
	}
	if len(parts) > 0 {
		line += ": " + strings.Join(parts, ", ")
	}
	return line
}

func formatCharacters(chars []campaign.Character, title string) string {
	if len(chars) == 0 {
		return "No characters."
	}
	var sb strings.Builder
	sb.WriteString(title + " characters:\n")
	for _, c := range chars {
		sb.WriteString(characterLine(c) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatCharacter(c campaign.Character) string {
	var sb strings.Builder
	sb.WriteString("# " + c.Name + "\n")
	if c.Race != "" {
		sb.WriteString("Race: " + c.Race + "\n")
	}
	if c.ClassSummary != "" {
		sb.WriteString("Class: " + c.ClassSummary + "\n")
	}
	if c.Level > 0 {
		fmt.Fprintf(&sb, "Level: %d\n", c.Level)
	}
	if cur, mx, ok := c.HitPoints(); ok {
		fmt.Fprintf(&sb, "Hit points: %d/%d\n", cur, mx)
	}
	if c.Notes != "" {
		sb.WriteString("Notes: " + c.Notes + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func spellLevel(n int) string {
	if n == 0 {
		return "cantrip"
	}
	return fmt.Sprintf("level %d", n)
}

// formatSpells groups spells under their source type in query order.
func formatSpells(name string, spells []campaign.CharacterSpell) string {
	if len(spells) == 0 {
		return name + " has no spells recorded."
	}
	var sb strings.Builder
	sb.WriteString("# Spells: " + name + "\n")
	current := "\x00"
	for _, sp := range spells {
		if sp.SourceType != current {
			current = sp.SourceType
			sb.WriteString("\n## " + titleOr(current, "other") + "\n")
		}
		fmt.Fprintf(&sb, "- %s (%s) from %s", sp.SpellName, spellLevel(sp.SpellLevel), sp.SourceName)
		if sp.ChargesRequired != nil {
			fmt.Fprintf(&sb, ", %d charges", *sp.ChargesRequired)
		}
		if sp.Notes != "" {
			sb.WriteString(": " + sp.Notes)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatFeats(name string, feats []campaign.Feat) string {
	if len(feats) == 0 {
		return name + " has no feats recorded."
	}
	var sb strings.Builder
	sb.WriteString("Feats of " + name + ":\n")
	for _, f := range feats {
		sb.WriteString("- " + f.FeatName)
		if f.Description != "" {
			sb.WriteString(": " + f.Description)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatForms(name string, forms []campaign.Form) string {
	if len(forms) == 0 {
		return name + " has no forms recorded."
	}
	var sb strings.Builder
	sb.WriteString("Forms of " + name + ":\n")
	for _, f := range forms {
		fmt.Fprintf(&sb, "- %s (%s)", f.FormName, titleOr(f.FormType, "form"))
		if f.CreatureType != "" {
			sb.WriteString(", " + f.CreatureType)
		}
		if f.ChallengeRating != "" {
			sb.WriteString(", CR " + f.ChallengeRating)
		}
		if f.SourceSpell != "" {
			sb.WriteString(", via " + f.SourceSpell)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatCompanions(name string, comps []campaign.Companion) string {
	if len(comps) == 0 {
		return name + " has no companions recorded."
	}
	var sb strings.Builder
	sb.WriteString("Companions of " + name + ":\n")
	for _, c := range comps {
		sb.WriteString("- " + c.CompanionName)
		if kind := strings.TrimSpace(c.CompanionType + " " + c.CreatureType); kind != "" {
			sb.WriteString(" (" + kind + ")")
		}
		if c.HitPointsMax != nil {
			cur := *c.HitPointsMax
			if c.HitPointsCurrent != nil {
				cur = *c.HitPointsCurrent
			}
			fmt.Fprintf(&sb, ", HP %d/%d", cur, *c.HitPointsMax)
		}
		if c.ArmorClass != nil {
			fmt.Fprintf(&sb, ", AC %d", *c.ArmorClass)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func diaryDates(e campaign.DiaryEntry) string {
	var parts []string
	if e.SessionDate != "" {
		parts = append(parts, "Session: "+e.SessionDate)
	}
	if e.InGameDate != "" {
		parts = append(parts, "In-game: "+e.InGameDate)
	}
	return strings.Join(parts, ", ")
}

// formatDiaryList groups entries under their month, keeping query order.
func formatDiaryList(entries []campaign.DiaryEntry) string {
	if len(entries) == 0 {
		return "No diary entries."
	}
	var sb strings.Builder
	sb.WriteString("# Campaign Diary\n")
	current := "\x00"
	for _, e := range entries {
		month := titleOr(e.MonthYear, "Undated")
		if month != current {
			current = month
			sb.WriteString("\n## " + month + "\n")
		}
		fmt.Fprintf(&sb, "- %s [%s]", titleOr(e.Title, "Untitled"), e.ID)
		if d := diaryDates(e); d != "" {
			sb.WriteString(" " + d)
		}
		preview := strings.ReplaceAll(e.Content, "\n", " ")
		if r := []rune(preview); len(r) > 100 {
			preview = string(r[:100]) + "..."
		}
		sb.WriteString("\n  " + preview + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatDiaryEntry(e campaign.DiaryEntry) string {
	var sb strings.Builder
	sb.WriteString("# " + titleOr(e.Title, "Untitled Entry") + "\n")
	if d := diaryDates(e); d != "" {
		sb.WriteString(d + "\n")
	}
	sb.WriteString("\n" + e.Content + "\n\n")
	if len(e.LocationsVisited) > 0 {
		sb.WriteString("Locations: " + strings.Join(e.LocationsVisited, ", ") + "\n")
	}
	if len(e.NPCsEncountered) > 0 {
		sb.WriteString("NPCs: " + strings.Join(e.NPCsEncountered, ", ") + "\n")
	}
	if len(e.QuestsUpdated) > 0 {
		sb.WriteString("Quest updates:\n")
		for _, q := range e.QuestsUpdated {
			sb.WriteString("- " + q + "\n")
		}
	}
	switch loot := e.Loot.(type) {
	case map[string]any:
		sb.WriteString("Loot:\n")
		keys := make([]string, 0, len(loot))
		for k := range loot {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "- %s: %v\n", k, loot[k])
		}
	case []any:
		sb.WriteString("Loot:\n")
		for _, v := range loot {
			fmt.Fprintf(&sb, "- %v\n", v)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatSnapshotFiles(files []campaign.SnapshotFile) string {
	if len(files) == 0 {
		return "No snapshots saved."
	}
	var sb strings.Builder
	sb.WriteString("Inventory snapshots:\n")
	for _, f := range files {
		fmt.Fprintf(&sb, "- %s (%.1f KB, %s)\n", f.Name, float64(f.Size)/1024, f.Modified.Format("2006-01-02 15:04:05"))
	}
	return strings.TrimRight(sb.String(), "\n")
}
