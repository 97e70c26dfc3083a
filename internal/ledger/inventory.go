package ledger

import (
	"context"

	"go.trai.ch/zerr"

	"github.com/leonardcser/campaign-mcp/internal/logger"
	"github.com/leonardcser/campaign-mcp/internal/postgrest"
)

type AddItemInput struct {
	LocationID         string
	Name               string
	Quantity           int
	IsMagic            bool
	Rarity             string
	ItemType           string
	Description        string
	RequiresAttunement bool
	Notes              string
	Reason             string
}

// RemoveItemInput removes Quantity units, or every unit when Quantity is 0.
type RemoveItemInput struct {
	LocationID string
	Name       string
	Quantity   int
	Reason     string
}

type SetQuantityInput struct {
	LocationID string
	Name       string
	Quantity   int
	Reason     string
}

// TransferItemInput moves Quantity units, or every unit when Quantity is 0.
type TransferItemInput struct {
	FromLocationID string
	ToLocationID   string
	Name           string
	Quantity       int
	Reason         string
}

// ItemResult describes the row after a single-location change. Item is nil
// when the row was deleted; Entry is nil when nothing changed.
type ItemResult struct {
	Item    *Item
	Entry   *ItemEntry
	Changed int
	Deleted bool
}

type TransferItemResult struct {
	// Source is nil when the transfer emptied the source row.
	Source      *Item
	Destination Item
	Quantity    int
	Out         ItemEntry
	In          ItemEntry
}

// AddItem records an add entry and merges the quantity into the existing
// row at the location, creating the row when there is none.
func (l *Ledger) AddItem(ctx context.Context, in AddItemInput) (*ItemResult, error) {
	const op = "add_item"
	if in.Name == "" {
		return nil, invalid(op, "item name is required")
	}
	if in.Quantity <= 0 {
		return nil, invalid(op, "quantity must be positive, got %d", in.Quantity)
	}

	defer l.locks.Lock(itemKey(in.LocationID, in.Name))()

	cur, found, err := l.currentItem(ctx, op, in.LocationID, in.Name)
	if err != nil {
		return nil, err
	}

	next := Item{
		LocationID:         in.LocationID,
		Name:               in.Name,
		Quantity:           in.Quantity,
		IsMagic:            in.IsMagic,
		Rarity:             in.Rarity,
		ItemType:           in.ItemType,
		Description:        in.Description,
		RequiresAttunement: in.RequiresAttunement,
		Notes:              in.Notes,
	}
	if found {
		next = cur
		next.Quantity = cur.Quantity + in.Quantity
	}

	entry, err := l.appendItemEntries(ctx, op, itemEntry(next, TypeAdd, in.Quantity, "", reasonOr(in.Reason, "Added to inventory")))
	if err != nil {
		return nil, err
	}
	item, err := l.writeItem(ctx, op, next, found)
	if err != nil {
		return nil, err
	}

	logger.Infof("ledger: added %d x %s at %s (now %d)", in.Quantity, in.Name, in.LocationID, item.Quantity)
	return &ItemResult{Item: &item, Entry: &entry[0], Changed: in.Quantity}, nil
}

// RemoveItem removes up to the requested quantity. Asking for more than is
// present removes everything; the ledger records what was actually removed.
func (l *Ledger) RemoveItem(ctx context.Context, in RemoveItemInput) (*ItemResult, error) {
	const op = "remove_item"
	if in.Quantity < 0 {
		return nil, invalid(op, "quantity must not be negative, got %d", in.Quantity)
	}

	defer l.locks.Lock(itemKey(in.LocationID, in.Name))()

	cur, found, err := l.currentItem(ctx, op, in.LocationID, in.Name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, invalid(op, "%s not found at location %s", in.Name, in.LocationID)
	}

	removed := cur.Quantity
	if in.Quantity > 0 && in.Quantity < cur.Quantity {
		removed = in.Quantity
	}
	next := cur
	next.Quantity = cur.Quantity - removed

	entry, err := l.appendItemEntries(ctx, op, itemEntry(cur, TypeRemove, removed, "", reasonOr(in.Reason, "Removed from inventory")))
	if err != nil {
		return nil, err
	}
	res := &ItemResult{Entry: &entry[0], Changed: removed}
	if next.Quantity == 0 {
		if err := l.deleteItem(ctx, op, cur); err != nil {
			return nil, err
		}
		res.Deleted = true
	} else {
		item, err := l.writeItem(ctx, op, next, true)
		if err != nil {
			return nil, err
		}
		res.Item = &item
	}

	logger.Infof("ledger: removed %d x %s at %s (requested %d)", removed, in.Name, in.LocationID, in.Quantity)
	return res, nil
}

// SetItemQuantity sets an existing row to an absolute quantity and records
// the difference as an add or remove entry. Zero deletes the row.
func (l *Ledger) SetItemQuantity(ctx context.Context, in SetQuantityInput) (*ItemResult, error) {
	const op = "set_item_quantity"
	if in.Quantity < 0 {
		return nil, invalid(op, "quantity must not be negative, got %d", in.Quantity)
	}

	defer l.locks.Lock(itemKey(in.LocationID, in.Name))()

	cur, found, err := l.currentItem(ctx, op, in.LocationID, in.Name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, invalid(op, "%s not found at location %s", in.Name, in.LocationID)
	}
	if in.Quantity == cur.Quantity {
		return &ItemResult{Item: &cur}, nil
	}

	diff, typ := in.Quantity-cur.Quantity, TypeAdd
	if diff < 0 {
		diff, typ = -diff, TypeRemove
	}
	reason := reasonOr(in.Reason, "Quantity adjusted")
	entry, err := l.appendItemEntries(ctx, op, itemEntry(cur, typ, diff, "", reason))
	if err != nil {
		return nil, err
	}

	res := &ItemResult{Entry: &entry[0], Changed: diff}
	if in.Quantity == 0 {
		if err := l.deleteItem(ctx, op, cur); err != nil {
			return nil, err
		}
		res.Deleted = true
	} else {
		next := cur
		next.Quantity = in.Quantity
		item, err := l.writeItem(ctx, op, next, true)
		if err != nil {
			return nil, err
		}
		res.Item = &item
	}

	logger.Infof("ledger: set %s at %s from %d to %d", in.Name, in.LocationID, cur.Quantity, in.Quantity)
	return res, nil
}

// TransferItem moves units between two locations. Both rows stay locked for
// the whole sequence: transfer_out and transfer_in entries are appended
// first, then the source row is reduced or deleted and the destination row
// is merged or created.
func (l *Ledger) TransferItem(ctx context.Context, in TransferItemInput) (*TransferItemResult, error) {
	const op = "transfer_item"
	if in.FromLocationID == in.ToLocationID {
		return nil, invalid(op, "source and destination are the same location")
	}
	if in.Quantity < 0 {
		return nil, invalid(op, "quantity must not be negative, got %d", in.Quantity)
	}

	defer l.locks.Lock(itemKey(in.FromLocationID, in.Name), itemKey(in.ToLocationID, in.Name))()

	if err := l.locationExists(ctx, op, in.ToLocationID); err != nil {
		return nil, err
	}
	src, found, err := l.currentItem(ctx, op, in.FromLocationID, in.Name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, invalid(op, "%s not found at location %s", in.Name, in.FromLocationID)
	}
	qty := in.Quantity
	if qty == 0 {
		qty = src.Quantity
	}
	if qty > src.Quantity {
		return nil, invalid(op, "cannot transfer %d x %s, only %d available", qty, in.Name, src.Quantity)
	}
	dst, dstFound, err := l.currentItem(ctx, op, in.ToLocationID, in.Name)
	if err != nil {
		return nil, err
	}

	nextDst := src
	nextDst.ID = ""
	nextDst.LocationID = in.ToLocationID
	nextDst.Quantity = qty
	if dstFound {
		nextDst = dst
		nextDst.Quantity = dst.Quantity + qty
	}

	entries, err := l.appendItemEntries(ctx, op,
		itemEntry(src, TypeTransferOut, qty, in.ToLocationID, reasonOr(in.Reason, "Transferred to another location")),
		itemEntry(nextDst, TypeTransferIn, qty, in.FromLocationID, reasonOr(in.Reason, "Transferred from another location")),
	)
	if err != nil {
		return nil, err
	}

	res := &TransferItemResult{Quantity: qty, Out: entries[0], In: entries[1]}
	if qty == src.Quantity {
		if err := l.deleteItem(ctx, op, src); err != nil {
			return nil, err
		}
	} else {
		nextSrc := src
		nextSrc.Quantity = src.Quantity - qty
		item, err := l.writeItem(ctx, op, nextSrc, true)
		if err != nil {
			return nil, err
		}
		res.Source = &item
	}
	if res.Destination, err = l.writeItem(ctx, op, nextDst, dstFound); err != nil {
		return nil, err
	}

	logger.Infof("ledger: transferred %d x %s from %s to %s", qty, in.Name, in.FromLocationID, in.ToLocationID)
	return res, nil
}

func itemEntry(it Item, typ TransactionType, qty int, counterpart, reason string) ItemEntry {
	return ItemEntry{
		LocationID:         it.LocationID,
		Type:               typ,
		ItemName:           it.Name,
		Quantity:           qty,
		IsMagic:            it.IsMagic,
		Rarity:             it.Rarity,
		ItemType:           it.ItemType,
		TransferLocationID: counterpart,
		Reason:             reason,
	}
}

func (l *Ledger) currentItem(ctx context.Context, op, locationID, name string) (Item, bool, error) {
	rows, err := l.tables.Get(ctx, postgrest.Query{
		Table: TableInventory,
		Filters: postgrest.Filters{
			"storage_location_id": postgrest.Eq(locationID),
			"item_name":           postgrest.Eq(name),
		},
		Limit:   1,
		NoCache: true,
	})
	if err != nil {
		return Item{}, false, readFailed(op, TableInventory, err)
	}
	if len(rows) == 0 {
		return Item{}, false, nil
	}
	it, err := postgrest.DecodeRow[Item](rows[0])
	if err != nil {
		return Item{}, false, readFailed(op, TableInventory, err)
	}
	return it, true, nil
}

func (l *Ledger) appendItemEntries(ctx context.Context, op string, entries ...ItemEntry) ([]ItemEntry, error) {
	rows, err := l.tables.Insert(ctx, TableInventoryLedger, entries)
	if err != nil {
		return nil, stepFailed(op, StepAppendLedger, err)
	}
	stored, err := postgrest.DecodeRows[ItemEntry](rows)
	if err != nil || len(stored) != len(entries) {
		// The insert succeeded; fall back to what was sent.
		return entries, nil
	}
	return stored, nil
}

// writeItem updates the row when it exists and inserts it otherwise.
func (l *Ledger) writeItem(ctx context.Context, op string, it Item, exists bool) (Item, error) {
	var (
		row postgrest.Row
		ok  bool
		err error
	)
	if exists {
		row, ok, err = l.tables.UpdateByID(ctx, TableInventory, it.ID, map[string]any{"quantity": it.Quantity})
	} else {
		var rows postgrest.Rows
		rows, err = l.tables.Insert(ctx, TableInventory, it)
		if len(rows) > 0 {
			row, ok = rows[0], true
		}
	}
	if err != nil {
		logger.Errorf("ledger: %s: ledger appended but %s write failed: %v", op, TableInventory, err)
		return Item{}, stepFailed(op, StepWriteCurrent, err)
	}
	if exists && !ok {
		logger.Errorf("ledger: %s: ledger appended but %s row %s vanished before update", op, TableInventory, it.ID)
		return Item{}, stepFailed(op, StepWriteCurrent, ErrRowVanished)
	}
	if !ok {
		return it, nil
	}
	stored, err := postgrest.DecodeRow[Item](row)
	if err != nil {
		return it, nil
	}
	return stored, nil
}

func (l *Ledger) deleteItem(ctx context.Context, op string, it Item) error {
	_, found, err := l.tables.DeleteByID(ctx, TableInventory, it.ID)
	if err != nil {
		logger.Errorf("ledger: %s: ledger appended but %s delete failed: %v", op, TableInventory, err)
		return stepFailed(op, StepWriteCurrent, err)
	}
	if !found {
		logger.Errorf("ledger: %s: ledger appended but %s row %s vanished before delete", op, TableInventory, it.ID)
		return stepFailed(op, StepWriteCurrent, ErrRowVanished)
	}
	return nil
}

func readFailed(op, table string, err error) error {
	return zerr.With(zerr.With(zerr.Wrap(err, "read current state"), "op", op), "table", table)
}

func stepFailed(op string, step Step, err error) error {
	return &StepError{Op: op, Step: step, Err: err}
}
