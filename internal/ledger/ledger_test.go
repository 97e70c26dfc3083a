package ledger_test

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/campaign-mcp/internal/cache"
	"github.com/leonardcser/campaign-mcp/internal/ledger"
	"github.com/leonardcser/campaign-mcp/internal/logger"
	"github.com/leonardcser/campaign-mcp/internal/postgrest"
	"github.com/leonardcser/campaign-mcp/internal/postgrest/postgresttest"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

const (
	pack = "loc-pack"
	bag  = "loc-bag"
)

func setup(t *testing.T) (*ledger.Ledger, *postgresttest.Server, *postgrest.Client) {
	t.Helper()
	srv := postgresttest.New(t)
	srv.InstallCampaignViews()
	srv.Seed(ledger.TableLocations,
		postgresttest.Row{"id": pack, "name": "Party Pack"},
		postgresttest.Row{"id": bag, "name": "Bag of Holding"},
	)
	store, err := cache.Open(cache.Options{TTL: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	deps, err := postgrest.LoadDependencies()
	require.NoError(t, err)
	client := postgrest.New(postgrest.Config{URL: srv.URL, APIKey: "test-key"}, store, deps)
	return ledger.New(client), srv, client
}

func seedItem(srv *postgresttest.Server, loc, name string, qty int) {
	srv.Seed(ledger.TableInventory, postgresttest.Row{
		"storage_location_id": loc,
		"item_name":           name,
		"quantity":            qty,
		"is_magic":            false,
		"item_type":           "gear",
	})
}

func seedCoins(srv *postgresttest.Server, loc string, c ledger.Coins) {
	srv.Seed(ledger.TableCurrency, postgresttest.Row{
		"storage_location_id": loc,
		"copper":              c.Copper,
		"silver":              c.Silver,
		"electrum":            c.Electrum,
		"gold":                c.Gold,
		"platinum":            c.Platinum,
	})
}

func items(t *testing.T, srv *postgresttest.Server) []ledger.Item {
	t.Helper()
	out, err := postgrest.DecodeRows[ledger.Item](srv.Rows(ledger.TableInventory))
	require.NoError(t, err)
	return out
}

func itemAt(t *testing.T, srv *postgresttest.Server, loc, name string) (ledger.Item, bool) {
	t.Helper()
	for _, it := range items(t, srv) {
		if it.LocationID == loc && it.Name == name {
			return it, true
		}
	}
	return ledger.Item{}, false
}

func itemEntries(t *testing.T, srv *postgresttest.Server) []ledger.ItemEntry {
	t.Helper()
	out, err := postgrest.DecodeRows[ledger.ItemEntry](srv.Rows(ledger.TableInventoryLedger))
	require.NoError(t, err)
	return out
}

func balances(t *testing.T, srv *postgresttest.Server) map[string]ledger.Coins {
	t.Helper()
	rows, err := postgrest.DecodeRows[ledger.Balance](srv.Rows(ledger.TableCurrency))
	require.NoError(t, err)
	out := make(map[string]ledger.Coins, len(rows))
	for _, b := range rows {
		out[b.LocationID] = b.Coins
	}
	return out
}

func currencyEntries(t *testing.T, srv *postgresttest.Server) []ledger.CurrencyEntry {
	t.Helper()
	out, err := postgrest.DecodeRows[ledger.CurrencyEntry](srv.Rows(ledger.TableCurrencyLedger))
	require.NoError(t, err)
	return out
}

func TestCoins(t *testing.T) {
	c := ledger.Coins{Gold: 5, Silver: 3}

	rest, taken := c.Sub(ledger.Coins{Gold: 10, Copper: 2, Silver: 1})
	assert.Equal(t, ledger.Coins{Silver: 2}, rest)
	assert.Equal(t, ledger.Coins{Gold: 5, Silver: 1}, taken)

	assert.True(t, c.Covers(ledger.Coins{Gold: 5}))
	assert.False(t, c.Covers(ledger.Coins{Gold: 5, Copper: 1}))
	assert.Equal(t, ledger.Coins{Gold: 6, Silver: 3, Platinum: 1}, c.Add(ledger.Coins{Gold: 1, Platinum: 1}))

	assert.True(t, ledger.Coins{}.IsZero())
	assert.True(t, ledger.Coins{Gold: -1}.Negative())
	assert.InDelta(t, 15.3, ledger.Coins{Gold: 5, Silver: 3, Platinum: 1}.GoldValue(), 1e-9)
	assert.Equal(t, "3sp 5gp", c.String())
	assert.Equal(t, "0gp", ledger.Coins{}.String())
}
