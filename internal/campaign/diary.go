package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/leonardcser/campaign-mcp/internal/logger"
	"github.com/leonardcser/campaign-mcp/internal/postgrest"
)

const TableDiaryEntries = "diary_entries"

// DiaryEntry is one session write-up. Loot is whatever JSON object or list
// was recorded, or {"notes": text} for free-form loot.
type DiaryEntry struct {
	ID               string   `json:"id,omitempty"`
	PartyID          string   `json:"party_id"`
	Title            string   `json:"title,omitempty"`
	Content          string   `json:"content"`
	SessionDate      string   `json:"session_date,omitempty"`
	MonthYear        string   `json:"month_year,omitempty"`
	InGameDate       string   `json:"in_game_date,omitempty"`
	LocationsVisited []string `json:"locations_visited,omitempty"`
	NPCsEncountered  []string `json:"npcs_encountered,omitempty"`
	QuestsUpdated    []string `json:"quests_updated,omitempty"`
	Loot             any      `json:"loot_summary,omitempty"`
	EntryOrder       int      `json:"entry_order,omitempty"`
}

// SplitList splits a comma-separated argument, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseLoot keeps a JSON object or list as is and wraps anything else as notes.
func ParseLoot(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		switch v.(type) {
		case map[string]any, []any:
			return v
		}
	}
	return map[string]any{"notes": s}
}

// DiaryEntries returns the newest sessions first, optionally for one month
// such as "March 2025".
func (s *Service) DiaryEntries(ctx context.Context, monthYear string, limit int) ([]DiaryEntry, error) {
	q := postgrest.Query{
		Table: TableDiaryEntries,
		Order: []string{"session_date.desc", "entry_order.desc"},
		Limit: limit,
	}
	if monthYear != "" {
		q.Filters = postgrest.Filters{"month_year": postgrest.Eq(monthYear)}
	}
	return query[DiaryEntry](ctx, s.db, q)
}

func (s *Service) DiaryEntry(ctx context.Context, id string) (DiaryEntry, error) {
	row, ok, err := s.db.GetByID(ctx, TableDiaryEntries, id)
	if err != nil {
		return DiaryEntry{}, err
	}
	if !ok {
		return DiaryEntry{}, fmt.Errorf("%w: %s", ErrDiaryEntryNotFound, id)
	}
	return postgrest.DecodeRow[DiaryEntry](row)
}

// AddDiaryEntry files e under the campaign's party. A session date must be
// YYYY-MM-DD and sets the month the entry is grouped under.
func (s *Service) AddDiaryEntry(ctx context.Context, e DiaryEntry) (DiaryEntry, error) {
	if strings.TrimSpace(e.Content) == "" {
		return DiaryEntry{}, invalidf("diary content is required")
	}
	if e.SessionDate != "" {
		d, err := time.Parse(time.DateOnly, e.SessionDate)
		if err != nil {
			return DiaryEntry{}, invalidf("session date %q is not YYYY-MM-DD", e.SessionDate)
		}
		e.MonthYear = d.Format("January 2006")
	}
	parties, err := s.db.Get(ctx, postgrest.Query{Table: TableParties, Limit: 1})
	if err != nil {
		return DiaryEntry{}, err
	}
	if len(parties) == 0 {
		return DiaryEntry{}, ErrPartyNotFound
	}
	e.PartyID, _ = parties[0]["id"].(string)
	e.ID = ""

	rows, err := s.db.Insert(ctx, TableDiaryEntries, e)
	if err != nil {
		return DiaryEntry{}, err
	}
	logger.Infof("campaign: added diary entry %q", e.Title)
	if len(rows) == 0 {
		return e, nil
	}
	return postgrest.DecodeRow[DiaryEntry](rows[0])
}

// DiaryUpdate lists the fields to replace; nil fields are left alone.
type DiaryUpdate struct {
	Title     *string
	Content   *string
	Locations []string
	NPCs      []string
	Quests    []string
}

func (s *Service) UpdateDiaryEntry(ctx context.Context, id string, u DiaryUpdate) (DiaryEntry, error) {
	patch := map[string]any{}
	if u.Title != nil {
		patch["title"] = *u.Title
	}
	if u.Content != nil {
		patch["content"] = *u.Content
	}
	if u.Locations != nil {
		patch["locations_visited"] = u.Locations
	}
	if u.NPCs != nil {
		patch["npcs_encountered"] = u.NPCs
	}
	if u.Quests != nil {
		patch["quests_updated"] = u.Quests
	}
	if len(patch) == 0 {
		return DiaryEntry{}, invalidf("nothing to update")
	}
	row, ok, err := s.db.UpdateByID(ctx, TableDiaryEntries, id, patch)
	if err != nil {
		return DiaryEntry{}, err
	}
	if !ok {
		return DiaryEntry{}, fmt.Errorf("%w: %s", ErrDiaryEntryNotFound, id)
	}
	logger.Infof("campaign: updated diary entry %s", id)
	return postgrest.DecodeRow[DiaryEntry](row)
}

func (s *Service) DeleteDiaryEntry(ctx context.Context, id string) error {
	_, ok, err := s.db.DeleteByID(ctx, TableDiaryEntries, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrDiaryEntryNotFound, id)
	}
	logger.Infof("campaign: deleted diary entry %s", id)
	return nil
}
