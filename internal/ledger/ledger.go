// Package ledger applies inventory and currency changes as an append to a
// ledger table followed by a write to the matching current-state table.
package ledger

import (
	"context"
	"fmt"
	"strings"
)

const (
	TableLocations       = "storage_locations"
	TableInventory       = "inventory_current"
	TableInventoryLedger = "inventory_ledger"
	TableCurrency        = "currency_current"
	TableCurrencyLedger  = "currency_ledger"
)

// TransactionType tags a ledger entry.
type TransactionType string

const (
	TypeAdd         TransactionType = "add"
	TypeRemove      TransactionType = "remove"
	TypeTransferIn  TransactionType = "transfer_in"
	TypeTransferOut TransactionType = "transfer_out"
)

// Item is a row of inventory_current.
type Item struct {
	ID                 string `json:"id,omitempty"`
	LocationID         string `json:"storage_location_id"`
	Name               string `json:"item_name"`
	Quantity           int    `json:"quantity"`
	IsMagic            bool   `json:"is_magic"`
	Rarity             string `json:"rarity,omitempty"`
	ItemType           string `json:"item_type,omitempty"`
	Description        string `json:"item_description,omitempty"`
	RequiresAttunement bool   `json:"requires_attunement"`
	Notes              string `json:"notes,omitempty"`
}

// ItemEntry is a row of inventory_ledger.
type ItemEntry struct {
	ID                 string          `json:"id,omitempty"`
	LocationID         string          `json:"storage_location_id"`
	Type               TransactionType `json:"transaction_type"`
	ItemName           string          `json:"item_name"`
	Quantity           int             `json:"quantity"`
	IsMagic            bool            `json:"is_magic"`
	Rarity             string          `json:"rarity,omitempty"`
	ItemType           string          `json:"item_type,omitempty"`
	TransferLocationID string          `json:"transfer_location_id,omitempty"`
	Reason             string          `json:"reason"`
	CreatedAt          string          `json:"created_at,omitempty"`
}

// Coins holds one amount per denomination.
type Coins struct {
	Copper   int `json:"copper"`
	Silver   int `json:"silver"`
	Electrum int `json:"electrum"`
	Gold     int `json:"gold"`
	Platinum int `json:"platinum"`
}

func (c Coins) values() [5]int { return [5]int{c.Copper, c.Silver, c.Electrum, c.Gold, c.Platinum} }

func coinsOf(v [5]int) Coins {
	return Coins{Copper: v[0], Silver: v[1], Electrum: v[2], Gold: v[3], Platinum: v[4]}
}

// IsZero reports whether every denomination is zero.
func (c Coins) IsZero() bool { return c == Coins{} }

// Negative reports whether any denomination is below zero.
func (c Coins) Negative() bool {
	for _, v := range c.values() {
		if v < 0 {
			return true
		}
	}
	return false
}

// Covers reports whether c holds at least o in every denomination.
func (c Coins) Covers(o Coins) bool {
	a, b := c.values(), o.values()
	for i := range a {
		if a[i] < b[i] {
			return false
		}
	}
	return true
}

// Add returns the per-denomination sum.
func (c Coins) Add(o Coins) Coins {
	a, b := c.values(), o.values()
	for i := range a {
		a[i] += b[i]
	}
	return coinsOf(a)
}

// Sub subtracts o from c, flooring each denomination at zero, and returns
// the remainder together with what was actually taken.
func (c Coins) Sub(o Coins) (rest, taken Coins) {
	a, b := c.values(), o.values()
	var t [5]int
	for i := range a {
		t[i] = min(a[i], b[i])
		a[i] -= t[i]
	}
	return coinsOf(a), coinsOf(t)
}

// GoldValue converts the amount to gold pieces.
func (c Coins) GoldValue() float64 {
	return float64(c.Copper)/100 + float64(c.Silver)/10 + float64(c.Electrum)/2 + float64(c.Gold) + float64(c.Platinum)*10
}

func (c Coins) String() string {
	var parts []string
	for i, v := range c.values() {
		if v != 0 {
			parts = append(parts, fmt.Sprintf("%d%s", v, [5]string{"cp", "sp", "ep", "gp", "pp"}[i]))
		}
	}
	if len(parts) == 0 {
		return "0gp"
	}
	return strings.Join(parts, " ")
}

// Balance is a row of currency_current.
type Balance struct {
	ID         string `json:"id,omitempty"`
	LocationID string `json:"storage_location_id"`
	Coins
}

// CurrencyEntry is a row of currency_ledger.
type CurrencyEntry struct {
	ID         string          `json:"id,omitempty"`
	LocationID string          `json:"storage_location_id"`
	Type       TransactionType `json:"transaction_type"`
	Coins
	TransferLocationID string `json:"transfer_location_id,omitempty"`
	Reason             string `json:"reason"`
	CreatedAt          string `json:"created_at,omitempty"`
}

// Ledger serialises mutations per row and runs each as ledger-then-current.
type Ledger struct {
	tables Tables
	locks  keyedMutex
}

func New(tables Tables) *Ledger {
	return &Ledger{tables: tables}
}

func itemKey(locationID, name string) string {
	return TableInventory + "/" + locationID + "/" + name
}

func currencyKey(locationID string) string {
	return TableCurrency + "/" + locationID
}

func reasonOr(reason, def string) string {
	if strings.TrimSpace(reason) == "" {
		return def
	}
	return reason
}

// locationExists checks a transfer target before anything is written.
func (l *Ledger) locationExists(ctx context.Context, op, id string) error {
	_, ok, err := l.tables.GetByID(ctx, TableLocations, id)
	if err != nil {
		return readFailed(op, TableLocations, err)
	}
	if !ok {
		return invalid(op, "storage location %s not found", id)
	}
	return nil
}
