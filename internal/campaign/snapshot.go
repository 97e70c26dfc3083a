package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.trai.ch/zerr"

	"github.com/leonardcser/campaign-mcp/internal/ledger"
	"github.com/leonardcser/campaign-mcp/internal/logger"
	"github.com/leonardcser/campaign-mcp/internal/postgrest"
)

// Snapshot is a full uncached dump of inventory, currency and both ledgers.
type Snapshot struct {
	Timestamp           time.Time                   `json:"snapshot_timestamp"`
	Type                string                      `json:"snapshot_type"`
	Note                string                      `json:"note,omitempty"`
	Party               postgrest.Row               `json:"party"`
	Characters          postgrest.Rows              `json:"characters"`
	Locations           []Location                  `json:"storage_locations"`
	InventoryByLocation map[string][]InventoryItem  `json:"inventory_by_location"`
	CurrencyByLocation  map[string]LocationCurrency `json:"currency_by_location"`
	InventoryLedger     []ledger.ItemEntry          `json:"inventory_ledger"`
	CurrencyLedger      []ledger.CurrencyEntry      `json:"currency_ledger"`
	Totals              Totals                      `json:"totals"`
}

type Totals struct {
	Wealth                *Wealth `json:"wealth,omitempty"`
	Items                 int     `json:"total_items"`
	Locations             int     `json:"total_locations"`
	MagicItems            int     `json:"magic_items"`
	InventoryTransactions int     `json:"inventory_transactions"`
	CurrencyTransactions  int     `json:"currency_transactions"`
}

const unknownLocation = "Unknown"

// Snapshot reads every table straight from the remote store.
func (s *Service) Snapshot(ctx context.Context, note string) (*Snapshot, error) {
	snap := &Snapshot{
		Timestamp:           s.now().UTC(),
		Type:                "full_inventory",
		Note:                note,
		InventoryByLocation: make(map[string][]InventoryItem),
		CurrencyByLocation:  make(map[string]LocationCurrency),
	}
	uncached := func(table string, order ...string) postgrest.Query {
		return postgrest.Query{Table: table, Order: order, NoCache: true}
	}

	parties, err := s.db.Get(ctx, postgrest.Query{Table: "parties", Limit: 1, NoCache: true})
	if err != nil {
		return nil, zerr.Wrap(err, "snapshot parties")
	}
	if len(parties) > 0 {
		snap.Party = parties[0]
	}
	if snap.Characters, err = s.db.Get(ctx, uncached("v_characters")); err != nil {
		return nil, zerr.Wrap(err, "snapshot characters")
	}
	if snap.Locations, err = query[Location](ctx, s.db, uncached(ledger.TableLocations, "name")); err != nil {
		return nil, zerr.Wrap(err, "snapshot locations")
	}

	items, err := query[InventoryItem](ctx, s.db, uncached("v_inventory", "location_name", "item_name"))
	if err != nil {
		return nil, zerr.Wrap(err, "snapshot inventory")
	}
	for _, it := range items {
		name := it.LocationName
		if name == "" {
			name = unknownLocation
		}
		snap.InventoryByLocation[name] = append(snap.InventoryByLocation[name], it)
		if it.IsMagic {
			snap.Totals.MagicItems++
		}
	}

	coins, err := query[LocationCurrency](ctx, s.db, uncached("v_currency_by_location"))
	if err != nil {
		return nil, zerr.Wrap(err, "snapshot currency")
	}
	for _, c := range coins {
		name := c.LocationName
		if name == "" {
			name = unknownLocation
		}
		snap.CurrencyByLocation[name] = c
	}

	wealth, err := query[Wealth](ctx, s.db, uncached("v_total_wealth"))
	if err != nil {
		return nil, zerr.Wrap(err, "snapshot wealth")
	}
	if len(wealth) > 0 {
		snap.Totals.Wealth = &wealth[0]
	}

	if snap.InventoryLedger, err = query[ledger.ItemEntry](ctx, s.db, uncached(ledger.TableInventoryLedger, "created_at.desc")); err != nil {
		return nil, zerr.Wrap(err, "snapshot inventory ledger")
	}
	if snap.CurrencyLedger, err = query[ledger.CurrencyEntry](ctx, s.db, uncached(ledger.TableCurrencyLedger, "created_at.desc")); err != nil {
		return nil, zerr.Wrap(err, "snapshot currency ledger")
	}

	snap.Totals.Items = len(items)
	snap.Totals.Locations = len(snap.Locations)
	snap.Totals.InventoryTransactions = len(snap.InventoryLedger)
	snap.Totals.CurrencyTransactions = len(snap.CurrencyLedger)
	return snap, nil
}

// WriteSnapshot saves snap as indented JSON under dir and returns the path.
func WriteSnapshot(dir string, snap *Snapshot) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", zerr.With(zerr.Wrap(err, "create snapshot directory"), "dir", dir)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", zerr.Wrap(err, "encode snapshot")
	}
	path := filepath.Join(dir, snapshotPrefix+snap.Timestamp.Format("20060102_150405")+snapshotExt)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", zerr.With(zerr.Wrap(err, "write snapshot"), "path", path)
	}
	logger.Infof("campaign: wrote snapshot %s", path)
	return path, nil
}

const (
	snapshotPrefix = "inventory_snapshot_"
	snapshotExt    = ".json"
)

type SnapshotFile struct {
	Name     string
	Path     string
	Size     int64
	Modified time.Time
}

// ListSnapshots returns the snapshot files in dir, newest first. A missing
// directory has no snapshots.
func ListSnapshots(dir string) ([]SnapshotFile, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "read snapshot directory"), "dir", dir)
	}
	var out []SnapshotFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			logger.Warnf("campaign: stat snapshot %s: %v", name, err)
			continue
		}
		out = append(out, SnapshotFile{
			Name:     name,
			Path:     filepath.Join(dir, name),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	slices.SortFunc(out, func(a, b SnapshotFile) int {
		if c := b.Modified.Compare(a.Modified); c != 0 {
			return c
		}
		return strings.Compare(b.Name, a.Name)
	})
	return out, nil
}
