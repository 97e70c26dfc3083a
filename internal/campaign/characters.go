package campaign

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/leonardcser/campaign-mcp/internal/logger"
	"github.com/leonardcser/campaign-mcp/internal/postgrest"
)

const (
	TableParties         = "parties"
	TableCharacters      = "characters"
	TableCharacterSpells = "character_spells"
)

type Party struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Character is a characters or v_characters row. Sheet holds the imported
// character sheet, including hit points.
type Character struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	PartyID      string         `json:"party_id,omitempty"`
	Race         string         `json:"race,omitempty"`
	ClassSummary string         `json:"class_summary,omitempty"`
	Level        int            `json:"level,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	Sheet        map[string]any `json:"dndbeyond_json,omitempty"`
}

// HitPoints reads current and maximum hit points from the sheet.
func (c Character) HitPoints() (current, max int, ok bool) {
	hp, isMap := c.Sheet["hit_points"].(map[string]any)
	if !isMap {
		return 0, 0, false
	}
	cur, okCur := hp["current"].(float64)
	mx, okMax := hp["max"].(float64)
	return int(cur), int(mx), okCur || okMax
}

type CharacterSpell struct {
	ID              string `json:"id,omitempty"`
	CharacterID     string `json:"character_id"`
	SpellName       string `json:"spell_name"`
	SpellLevel      int    `json:"spell_level"`
	SourceType      string `json:"source_type"`
	SourceName      string `json:"source_name"`
	ChargesRequired *int   `json:"charges_required,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

type Feat struct {
	ID          string         `json:"id,omitempty"`
	CharacterID string         `json:"character_id"`
	FeatName    string         `json:"feat_name"`
	Description string         `json:"description,omitempty"`
	Benefits    map[string]any `json:"benefits,omitempty"`
}

// Form is a shape a character can take, such as a wild shape beast.
type Form struct {
	ID              string         `json:"id,omitempty"`
	CharacterID     string         `json:"character_id"`
	FormName        string         `json:"form_name"`
	FormType        string         `json:"form_type"`
	CreatureType    string         `json:"creature_type,omitempty"`
	ChallengeRating string         `json:"challenge_rating,omitempty"`
	SourceSpell     string         `json:"source_spell,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	Stats           map[string]any `json:"stats,omitempty"`
}

type Companion struct {
	ID               string `json:"id,omitempty"`
	CharacterID      string `json:"character_id"`
	CompanionName    string `json:"companion_name"`
	CreatureType     string `json:"creature_type,omitempty"`
	CompanionType    string `json:"companion_type,omitempty"`
	ChallengeRating  string `json:"challenge_rating,omitempty"`
	HitPointsMax     *int   `json:"hit_points_max,omitempty"`
	HitPointsCurrent *int   `json:"hit_points_current,omitempty"`
	ArmorClass       *int   `json:"armor_class,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// PartyByName resolves a party by its exact name, ignoring case.
func (s *Service) PartyByName(ctx context.Context, name string) (Party, error) {
	if strings.ContainsAny(name, "*%") {
		return Party{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return byName(ctx, s.db, TableParties, name, func(p Party) string { return p.Name }, ErrPartyNotFound)
}

// Characters lists characters by name, for one party or all when partyID is empty.
func (s *Service) Characters(ctx context.Context, partyID string) ([]Character, error) {
	q := postgrest.Query{Table: "v_characters", Order: []string{"name"}}
	if partyID != "" {
		q.Filters = postgrest.Filters{"party_id": postgrest.Eq(partyID)}
	}
	return query[Character](ctx, s.db, q)
}

// CharacterByName resolves a character by its exact name, ignoring case.
func (s *Service) CharacterByName(ctx context.Context, name string) (Character, error) {
	if strings.ContainsAny(name, "*%") {
		return Character{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return byName(ctx, s.db, TableCharacters, name, func(c Character) string { return c.Name }, ErrCharacterNotFound)
}

func ownedBy[T any](ctx context.Context, db DB, view, characterID string, extra postgrest.Filters, order ...string) ([]T, error) {
	f := postgrest.Filters{"character_id": postgrest.Eq(characterID)}
	for k, v := range extra {
		f[k] = v
	}
	return query[T](ctx, db, postgrest.Query{Table: view, Filters: f, Order: order})
}

// CharacterSpells lists spells by source and level. An empty sourceType
// returns every source.
func (s *Service) CharacterSpells(ctx context.Context, characterID, sourceType string) ([]CharacterSpell, error) {
	var extra postgrest.Filters
	if sourceType != "" {
		extra = postgrest.Filters{"source_type": postgrest.Eq(sourceType)}
	}
	return ownedBy[CharacterSpell](ctx, s.db, "v_character_spells", characterID, extra, "source_type", "spell_level", "spell_name")
}

func (s *Service) CharacterFeats(ctx context.Context, characterID string) ([]Feat, error) {
	return ownedBy[Feat](ctx, s.db, "v_character_feats", characterID, nil, "feat_name")
}

func (s *Service) CharacterForms(ctx context.Context, characterID string) ([]Form, error) {
	return ownedBy[Form](ctx, s.db, "v_character_forms", characterID, nil, "form_name")
}

func (s *Service) CharacterCompanions(ctx context.Context, characterID string) ([]Companion, error) {
	return ownedBy[Companion](ctx, s.db, "v_character_companions", characterID, nil, "companion_name")
}

// CharacterUpdate lists the fields to change; nil fields are left alone.
type CharacterUpdate struct {
	Level        *int
	ClassSummary *string
	Notes        *string
	HPCurrent    *int
	HPMax        *int
}

func (u CharacterUpdate) empty() bool {
	return u.Level == nil && u.ClassSummary == nil && u.Notes == nil && u.HPCurrent == nil && u.HPMax == nil
}

// UpdateCharacter patches a character in one write. Hit points live in the
// sheet, which is read uncached and merged so other sheet keys survive.
func (s *Service) UpdateCharacter(ctx context.Context, id string, u CharacterUpdate) (Character, error) {
	if u.empty() {
		return Character{}, invalidf("nothing to update")
	}
	if u.Level != nil && (*u.Level < 1 || *u.Level > 20) {
		return Character{}, invalidf("level must be between 1 and 20, got %d", *u.Level)
	}
	patch := map[string]any{}
	if u.Level != nil {
		patch["level"] = *u.Level
	}
	if u.ClassSummary != nil {
		patch["class_summary"] = *u.ClassSummary
	}
	if u.Notes != nil {
		patch["notes"] = *u.Notes
	}
	if u.HPCurrent != nil || u.HPMax != nil {
		rows, err := s.db.Get(ctx, postgrest.Query{
			Table:   TableCharacters,
			Filters: postgrest.Filters{"id": postgrest.Eq(id)},
			Limit:   1,
			NoCache: true,
		})
		if err != nil {
			return Character{}, err
		}
		if len(rows) == 0 {
			return Character{}, fmt.Errorf("%w: %s", ErrCharacterNotFound, id)
		}
		cur, err := postgrest.DecodeRow[Character](rows[0])
		if err != nil {
			return Character{}, err
		}
		sheet := maps.Clone(cur.Sheet)
		if sheet == nil {
			sheet = map[string]any{}
		}
		hp := map[string]any{}
		if old, ok := sheet["hit_points"].(map[string]any); ok {
			hp = maps.Clone(old)
		}
		if u.HPCurrent != nil {
			hp["current"] = *u.HPCurrent
		}
		if u.HPMax != nil {
			hp["max"] = *u.HPMax
		}
		sheet["hit_points"] = hp
		patch["dndbeyond_json"] = sheet
	}

	row, ok, err := s.db.UpdateByID(ctx, TableCharacters, id, patch)
	if err != nil {
		return Character{}, err
	}
	if !ok {
		return Character{}, fmt.Errorf("%w: %s", ErrCharacterNotFound, id)
	}
	logger.Infof("campaign: updated character %s", id)
	return postgrest.DecodeRow[Character](row)
}

// AddCharacterSpell records a spell a character can cast.
func (s *Service) AddCharacterSpell(ctx context.Context, sp CharacterSpell) (CharacterSpell, error) {
	switch {
	case sp.SpellName == "":
		return CharacterSpell{}, invalidf("spell name is required")
	case sp.SpellLevel < 0 || sp.SpellLevel > 9:
		return CharacterSpell{}, invalidf("spell level must be between 0 and 9, got %d", sp.SpellLevel)
	case sp.SourceType == "" || sp.SourceName == "":
		return CharacterSpell{}, invalidf("spell source type and name are required")
	case sp.ChargesRequired != nil && *sp.ChargesRequired < 0:
		return CharacterSpell{}, invalidf("charges must not be negative")
	}
	sp.ID = ""
	rows, err := s.db.Insert(ctx, TableCharacterSpells, sp)
	if err != nil {
		return CharacterSpell{}, err
	}
	logger.Infof("campaign: added spell %s to character %s", sp.SpellName, sp.CharacterID)
	if len(rows) == 0 {
		return sp, nil
	}
	return postgrest.DecodeRow[CharacterSpell](rows[0])
}

// RemoveCharacterSpell deletes every entry of spellName for the character.
func (s *Service) RemoveCharacterSpell(ctx context.Context, characterID, spellName string) (int, error) {
	rows, err := s.db.Delete(ctx, TableCharacterSpells, postgrest.Filters{
		"character_id": postgrest.Eq(characterID),
		"spell_name":   postgrest.Eq(spellName),
	})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrSpellNotFound, spellName)
	}
	logger.Infof("campaign: removed spell %s from character %s", spellName, characterID)
	return len(rows), nil
}
