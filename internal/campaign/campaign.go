// Package campaign holds the read-side queries behind the tool surface:
// locations, inventory, currency, history and snapshots.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.trai.ch/zerr"

	"github.com/leonardcser/campaign-mcp/internal/cache"
	"github.com/leonardcser/campaign-mcp/internal/ledger"
	"github.com/leonardcser/campaign-mcp/internal/logger"
	"github.com/leonardcser/campaign-mcp/internal/postgrest"
)

var (
	// ErrLocationNotFound is returned when a storage location name matches nothing.
	ErrLocationNotFound = errors.New("storage location not found")
	// ErrInvalidLocationName rejects names carrying pattern wildcards.
	ErrInvalidLocationName = errors.New("storage location name must not contain * or %")
	ErrCharacterNotFound   = errors.New("character not found")
	ErrInvalidName         = errors.New("name must not contain * or %")
	ErrPartyNotFound       = errors.New("party not found")
	ErrSpellNotFound       = errors.New("spell not found")
	ErrDiaryEntryNotFound  = errors.New("diary entry not found")
	// ErrInvalidInput wraps a request that was rejected before anything was written.
	ErrInvalidInput = errors.New("invalid input")
)

// IsUserError reports whether err comes from a bad name, id or argument
// rather than from the remote store.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrLocationNotFound, ErrInvalidLocationName, ErrCharacterNotFound, ErrInvalidName,
		ErrPartyNotFound, ErrSpellNotFound, ErrDiaryEntryNotFound, ErrInvalidInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}

// DB is the part of the data client the service uses.
type DB interface {
	Get(ctx context.Context, q postgrest.Query) (postgrest.Rows, error)
	GetByID(ctx context.Context, table, id string) (postgrest.Row, bool, error)
	Insert(ctx context.Context, table string, rowOrRows any) (postgrest.Rows, error)
	UpdateByID(ctx context.Context, table, id string, patch any) (postgrest.Row, bool, error)
	Delete(ctx context.Context, table string, filters postgrest.Filters) (postgrest.Rows, error)
	DeleteByID(ctx context.Context, table, id string) (postgrest.Row, bool, error)
}

type Location struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PartyID     string `json:"party_id,omitempty"`
}

// InventoryItem is a v_inventory row.
type InventoryItem struct {
	ledger.Item
	LocationName string `json:"location_name"`
}

// LocationCurrency is a v_currency_by_location row.
type LocationCurrency struct {
	LocationID   string `json:"storage_location_id"`
	LocationName string `json:"location_name"`
	ledger.Coins
	TotalGP float64 `json:"total_gp"`
}

// Wealth is the v_total_wealth row.
type Wealth struct {
	ledger.Coins
	TotalGP float64 `json:"total_gp"`
}

type ItemHistory struct {
	ledger.ItemEntry
	LocationName string `json:"location_name"`
}

type CurrencyHistory struct {
	ledger.CurrencyEntry
	LocationName string `json:"location_name"`
}

type Service struct {
	db  DB
	kv  cache.KV
	now func() time.Time
}

// New builds a Service. kv may be nil, in which case ClearCache is a no-op.
func New(db DB, kv cache.KV) *Service {
	return &Service{db: db, kv: kv, now: time.Now}
}

func query[T any](ctx context.Context, db DB, q postgrest.Query) ([]T, error) {
	rows, err := db.Get(ctx, q)
	if err != nil {
		return nil, err
	}
	out, err := postgrest.DecodeRows[T](rows)
	if err != nil {
		return nil, zerr.With(err, "table", q.Table)
	}
	return out, nil
}

func byLocation(locationID string) postgrest.Filters {
	if locationID == "" {
		return nil
	}
	return postgrest.Filters{"storage_location_id": postgrest.Eq(locationID)}
}

func (s *Service) Locations(ctx context.Context) ([]Location, error) {
	return query[Location](ctx, s.db, postgrest.Query{Table: ledger.TableLocations, Order: []string{"name"}})
}

// LocationByName resolves a location by its exact name, ignoring case.
func (s *Service) LocationByName(ctx context.Context, name string) (Location, error) {
	if strings.ContainsAny(name, "*%") {
		return Location{}, fmt.Errorf("%w: %q", ErrInvalidLocationName, name)
	}
	return byName(ctx, s.db, ledger.TableLocations, name, func(l Location) string { return l.Name }, ErrLocationNotFound)
}

// byName looks name up with ilike and keeps the first exact case-insensitive
// match; ilike still treats _ as a single-character wildcard. Callers reject
// * and % first.
func byName[T any](ctx context.Context, db DB, table, name string, nameOf func(T) string, notFound error) (T, error) {
	var zero T
	rows, err := query[T](ctx, db, postgrest.Query{
		Table:   table,
		Filters: postgrest.Filters{"name": postgrest.ILike(name)},
		Order:   []string{"name"},
	})
	if err != nil {
		return zero, err
	}
	for _, r := range rows {
		if strings.EqualFold(nameOf(r), name) {
			return r, nil
		}
	}
	return zero, fmt.Errorf("%w: %q", notFound, name)
}

// Inventory lists items, for one location or all when locationID is empty.
func (s *Service) Inventory(ctx context.Context, locationID string) ([]InventoryItem, error) {
	return query[InventoryItem](ctx, s.db, postgrest.Query{
		Table:   "v_inventory",
		Filters: byLocation(locationID),
		Order:   []string{"item_type", "item_name"},
	})
}

// SearchInventory matches item names containing text, ignoring case.
func (s *Service) SearchInventory(ctx context.Context, text string) ([]InventoryItem, error) {
	return query[InventoryItem](ctx, s.db, postgrest.Query{
		Table:   "v_inventory",
		Filters: postgrest.Filters{"item_name": postgrest.Contains(text)},
		Order:   []string{"item_name"},
	})
}

func (s *Service) MagicItems(ctx context.Context, locationID string) ([]InventoryItem, error) {
	f := byLocation(locationID)
	if f == nil {
		f = postgrest.Filters{}
	}
	f["is_magic"] = postgrest.Eq(true)
	return query[InventoryItem](ctx, s.db, postgrest.Query{
		Table:   "v_inventory",
		Filters: f,
		Order:   []string{"rarity.desc", "item_name"},
	})
}

func (s *Service) Currency(ctx context.Context, locationID string) ([]LocationCurrency, error) {
	return query[LocationCurrency](ctx, s.db, postgrest.Query{
		Table:   "v_currency_by_location",
		Filters: byLocation(locationID),
		Order:   []string{"location_name"},
	})
}

// TotalWealth sums every location's coins. An empty view yields zero wealth.
func (s *Service) TotalWealth(ctx context.Context) (Wealth, error) {
	w, err := query[Wealth](ctx, s.db, postgrest.Query{Table: "v_total_wealth"})
	if err != nil || len(w) == 0 {
		return Wealth{}, err
	}
	return w[0], nil
}

// InventoryHistory returns the newest ledger entries first.
func (s *Service) InventoryHistory(ctx context.Context, locationID string, limit int) ([]ItemHistory, error) {
	return query[ItemHistory](ctx, s.db, postgrest.Query{
		Table:   "v_inventory_history",
		Filters: byLocation(locationID),
		Order:   []string{"created_at.desc"},
		Limit:   limit,
	})
}

func (s *Service) CurrencyHistory(ctx context.Context, locationID string, limit int) ([]CurrencyHistory, error) {
	return query[CurrencyHistory](ctx, s.db, postgrest.Query{
		Table:   "v_currency_history",
		Filters: byLocation(locationID),
		Order:   []string{"created_at.desc"},
		Limit:   limit,
	})
}

type Health struct {
	Connected  bool
	PartyFound bool
	Err        error
}

// Health probes the parties table, bypassing the cache.
func (s *Service) Health(ctx context.Context) Health {
	rows, err := s.db.Get(ctx, postgrest.Query{Table: "parties", Limit: 1, NoCache: true})
	if err != nil {
		logger.Warnf("campaign: health check failed: %v", err)
		return Health{Err: err}
	}
	return Health{Connected: true, PartyFound: len(rows) > 0}
}

// ClearCache drops every cached read.
func (s *Service) ClearCache() error {
	if s.kv == nil {
		return nil
	}
	if err := s.kv.Clear(); err != nil {
		return zerr.Wrap(err, "clear cache")
	}
	logger.Infof("campaign: cache cleared")
	return nil
}
