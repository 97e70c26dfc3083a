package campaign_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/campaign-mcp/internal/cache"
	"github.com/leonardcser/campaign-mcp/internal/campaign"
	"github.com/leonardcser/campaign-mcp/internal/ledger"
	"github.com/leonardcser/campaign-mcp/internal/logger"
	"github.com/leonardcser/campaign-mcp/internal/postgrest"
	"github.com/leonardcser/campaign-mcp/internal/postgrest/postgresttest"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type fixture struct {
	srv    *postgresttest.Server
	store  *cache.Store
	svc    *campaign.Service
	ledger *ledger.Ledger
}

func setup(t *testing.T) fixture {
	t.Helper()
	srv := postgresttest.New(t)
	srv.InstallCampaignViews()
	srv.Seed("parties", postgresttest.Row{"id": "party-1", "name": "The Wayward Lanterns"})
	srv.Seed(ledger.TableLocations,
		postgresttest.Row{"id": "loc-pack", "name": "Party Pack"},
		postgresttest.Row{"id": "loc-bag", "name": "Bag of Holding"},
	)
	store, err := cache.Open(cache.Options{TTL: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	deps, err := postgrest.LoadDependencies()
	require.NoError(t, err)
	client := postgrest.New(postgrest.Config{URL: srv.URL, APIKey: "test-key"}, store, deps)
	return fixture{srv: srv, store: store, svc: campaign.New(client, store), ledger: ledger.New(client)}
}

func (f fixture) seedItem(loc, name string, qty int, magic bool, rarity string) {
	f.srv.Seed(ledger.TableInventory, postgresttest.Row{
		"storage_location_id": loc,
		"item_name":           name,
		"quantity":            qty,
		"is_magic":            magic,
		"rarity":              rarity,
		"item_type":           "gear",
	})
}

func TestLocations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	locs, err := f.svc.Locations(ctx)
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "Bag of Holding", locs[0].Name)

	loc, err := f.svc.LocationByName(ctx, "party pack")
	require.NoError(t, err)
	assert.Equal(t, "loc-pack", loc.ID)

	_, err = f.svc.LocationByName(ctx, "Cellar")
	assert.ErrorIs(t, err, campaign.ErrLocationNotFound)

	for _, name := range []string{"*", "Party*", "%pack%"} {
		_, err = f.svc.LocationByName(ctx, name)
		assert.ErrorIs(t, err, campaign.ErrInvalidLocationName, name)
	}
	_, err = f.svc.LocationByName(ctx, "Party_Pack")
	assert.ErrorIs(t, err, campaign.ErrLocationNotFound)
}

func TestInventoryQueries(t *testing.T) {
	f := setup(t)
	f.seedItem("loc-pack", "Torch", 3, false, "")
	f.seedItem("loc-pack", "Cloak of Elvenkind", 1, true, "uncommon")
	f.seedItem("loc-bag", "Flame Tongue", 1, true, "rare")
	f.seedItem("loc-bag", "Torchlight Oil", 2, false, "")
	ctx := context.Background()

	all, err := f.svc.Inventory(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	pack, err := f.svc.Inventory(ctx, "loc-pack")
	require.NoError(t, err)
	require.Len(t, pack, 2)
	assert.Equal(t, "Party Pack", pack[0].LocationName)

	found, err := f.svc.SearchInventory(ctx, "TORCH")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Torch", found[0].Name)
	assert.Equal(t, "Torchlight Oil", found[1].Name)

	magic, err := f.svc.MagicItems(ctx, "")
	require.NoError(t, err)
	require.Len(t, magic, 2)
	assert.ElementsMatch(t, []string{"Cloak of Elvenkind", "Flame Tongue"}, []string{magic[0].Name, magic[1].Name})

	magic, err = f.svc.MagicItems(ctx, "loc-pack")
	require.NoError(t, err)
	require.Len(t, magic, 1)
	assert.Equal(t, "Cloak of Elvenkind", magic[0].Name)
}

func TestInventoryIsCachedUntilAWrite(t *testing.T) {
	f := setup(t)
	f.seedItem("loc-pack", "Torch", 3, false, "")
	ctx := context.Background()

	_, err := f.svc.Inventory(ctx, "loc-pack")
	require.NoError(t, err)
	_, err = f.svc.Inventory(ctx, "loc-pack")
	require.NoError(t, err)
	assert.Equal(t, 1, f.srv.Count(http.MethodGet, "v_inventory"))

	_, err = f.ledger.AddItem(ctx, ledger.AddItemInput{LocationID: "loc-pack", Name: "Torch", Quantity: 1})
	require.NoError(t, err)

	items, err := f.svc.Inventory(ctx, "loc-pack")
	require.NoError(t, err)
	assert.Equal(t, 2, f.srv.Count(http.MethodGet, "v_inventory"))
	assert.Equal(t, 4, items[0].Quantity)
}

func TestCurrencyQueries(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	w, err := f.svc.TotalWealth(ctx)
	require.NoError(t, err)
	assert.Zero(t, w.TotalGP)

	_, err = f.ledger.AddCurrency(ctx, ledger.CurrencyInput{LocationID: "loc-pack", Coins: ledger.Coins{Gold: 12, Silver: 5}})
	require.NoError(t, err)
	_, err = f.ledger.AddCurrency(ctx, ledger.CurrencyInput{LocationID: "loc-bag", Coins: ledger.Coins{Platinum: 1}})
	require.NoError(t, err)

	rows, err := f.svc.Currency(ctx, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Bag of Holding", rows[0].LocationName)
	assert.InDelta(t, 10.0, rows[0].TotalGP, 1e-9)
	assert.Equal(t, ledger.Coins{Gold: 12, Silver: 5}, rows[1].Coins)

	w, err = f.svc.TotalWealth(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.Coins{Gold: 12, Silver: 5, Platinum: 1}, w.Coins)
	assert.InDelta(t, 22.5, w.TotalGP, 1e-9)
}

func TestHistory(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.ledger.AddItem(ctx, ledger.AddItemInput{LocationID: "loc-pack", Name: "Arrow", Quantity: 10})
		require.NoError(t, err)
	}
	_, err := f.ledger.AddCurrency(ctx, ledger.CurrencyInput{LocationID: "loc-bag", Coins: ledger.Coins{Gold: 1}})
	require.NoError(t, err)

	items, err := f.svc.InventoryHistory(ctx, "loc-pack", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Party Pack", items[0].LocationName)
	assert.Greater(t, items[0].CreatedAt, items[1].CreatedAt)

	coins, err := f.svc.CurrencyHistory(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, coins, 1)
	assert.Equal(t, ledger.TypeAdd, coins[0].Type)
}

func TestSnapshot(t *testing.T) {
	f := setup(t)
	f.seedItem("loc-pack", "Torch", 3, false, "")
	f.seedItem("loc-bag", "Flame Tongue", 1, true, "rare")
	ctx := context.Background()
	_, err := f.ledger.AddCurrency(ctx, ledger.CurrencyInput{LocationID: "loc-pack", Coins: ledger.Coins{Gold: 7}})
	require.NoError(t, err)

	snap, err := f.svc.Snapshot(ctx, "before the dragon")
	require.NoError(t, err)
	assert.Equal(t, "full_inventory", snap.Type)
	assert.Equal(t, "The Wayward Lanterns", snap.Party["name"])
	assert.Len(t, snap.InventoryByLocation["Party Pack"], 1)
	assert.Len(t, snap.InventoryByLocation["Bag of Holding"], 1)
	assert.Equal(t, 7, snap.CurrencyByLocation["Party Pack"].Gold)
	assert.Equal(t, 2, snap.Totals.Items)
	assert.Equal(t, 2, snap.Totals.Locations)
	assert.Equal(t, 1, snap.Totals.MagicItems)
	assert.Equal(t, 1, snap.Totals.CurrencyTransactions)
	require.NotNil(t, snap.Totals.Wealth)
	assert.Equal(t, 7, snap.Totals.Wealth.Gold)

	path, err := campaign.WriteSnapshot(t.TempDir(), snap)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "before the dragon", decoded["note"])
	assert.Equal(t, ".json", filepath.Ext(path))
}

func TestHealth(t *testing.T) {
	f := setup(t)

	h := f.svc.Health(context.Background())
	assert.True(t, h.Connected)
	assert.True(t, h.PartyFound)
	assert.NoError(t, h.Err)

	f.srv.FailNext(http.MethodGet, "parties", http.StatusServiceUnavailable, "")
	h = f.svc.Health(context.Background())
	assert.False(t, h.Connected)
	assert.Error(t, h.Err)
}

func TestClearCache(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Locations(context.Background())
	require.NoError(t, err)
	n, err := f.store.Size()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, f.svc.ClearCache())
	n, err = f.store.Size()
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.NoError(t, campaign.New(nil, nil).ClearCache())
}
