package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/leonardcser/campaign-mcp/internal/logger"
	"github.com/leonardcser/campaign-mcp/internal/postgrest"
)

type CurrencyInput struct {
	LocationID string
	Coins      Coins
	Reason     string
}

type TransferCurrencyInput struct {
	FromLocationID string
	ToLocationID   string
	Coins          Coins
	Reason         string
}

// CurrencyResult holds the balance after the change. Applied is what was
// actually added or removed, which for removals may be less than requested.
type CurrencyResult struct {
	Balance Balance
	Applied Coins
	Entry   CurrencyEntry
}

type CurrencyTransferResult struct {
	Source      Balance
	Destination Balance
	Transferred Coins
}

// AddCurrency credits a location, creating its balance row if needed.
func (l *Ledger) AddCurrency(ctx context.Context, in CurrencyInput) (*CurrencyResult, error) {
	const op = "add_currency"
	if err := validCoins(op, in.Coins); err != nil {
		return nil, err
	}
	return l.credit(ctx, op, in.LocationID, in.Coins, TypeAdd, "", reasonOr(in.Reason, "Currency added"))
}

// RemoveCurrency debits a location. Each denomination is floored at zero
// and the ledger records the amount actually removed.
func (l *Ledger) RemoveCurrency(ctx context.Context, in CurrencyInput) (*CurrencyResult, error) {
	const op = "remove_currency"
	if err := validCoins(op, in.Coins); err != nil {
		return nil, err
	}
	return l.debit(ctx, op, in.LocationID, in.Coins, TypeRemove, "", reasonOr(in.Reason, "Currency removed"))
}

// TransferCurrency moves coins between locations as a debit of the source
// followed by a credit of the destination. The two are separate sequences
// with no cross-row atomicity: if the credit fails the source is re-credited
// with what was taken, and if that also fails the error says so.
func (l *Ledger) TransferCurrency(ctx context.Context, in TransferCurrencyInput) (*CurrencyTransferResult, error) {
	const op = "transfer_currency"
	if err := validCoins(op, in.Coins); err != nil {
		return nil, err
	}
	if in.FromLocationID == in.ToLocationID {
		return nil, invalid(op, "source and destination are the same location")
	}
	if err := l.locationExists(ctx, op, in.ToLocationID); err != nil {
		return nil, err
	}
	out, err := l.withdraw(ctx, op, in)
	if err != nil {
		return nil, err
	}
	taken := out.Applied

	dst, err := l.credit(ctx, op, in.ToLocationID, taken, TypeTransferIn, in.FromLocationID,
		reasonOr(in.Reason, "Transferred from another location"))
	if err == nil {
		logger.Infof("ledger: transferred %s from %s to %s", taken, in.FromLocationID, in.ToLocationID)
		return &CurrencyTransferResult{Source: out.Balance, Destination: dst.Balance, Transferred: taken}, nil
	}

	logger.Warnf("ledger: %s: credit of %s failed, re-crediting %s with %s: %v", op, in.ToLocationID, in.FromLocationID, taken, err)
	_, cerr := l.credit(ctx, op, in.FromLocationID, taken, TypeAdd, "",
		fmt.Sprintf("Reversal of failed transfer to %s", in.ToLocationID))
	if cerr != nil {
		logger.Errorf("ledger: %s: reversal failed, %s debited %s without matching credit: %v", op, in.FromLocationID, taken, cerr)
		return nil, &StepError{Op: op, Step: StepCompensate, Err: errors.Join(err, cerr)}
	}
	res := &StepError{Op: op, Step: StepWriteCurrent, Err: err, Compensated: true}
	var inner *StepError
	if errors.As(err, &inner) {
		res.Step, res.Err = inner.Step, inner.Err
	}
	return nil, res
}

// withdraw checks that the source covers the whole amount and debits it
// under one hold of the source lock, so a concurrent debit cannot shrink
// the transfer after the check.
func (l *Ledger) withdraw(ctx context.Context, op string, in TransferCurrencyInput) (*CurrencyResult, error) {
	defer l.locks.Lock(currencyKey(in.FromLocationID))()

	src, found, err := l.currentBalance(ctx, op, in.FromLocationID)
	if err != nil {
		return nil, err
	}
	if !found || !src.Covers(in.Coins) {
		return nil, invalid(op, "insufficient funds at %s: have %s, need %s", in.FromLocationID, src.Coins, in.Coins)
	}
	return l.debitLocked(ctx, op, src, in.Coins, TypeTransferOut, in.ToLocationID,
		reasonOr(in.Reason, "Transferred to another location"))
}

func validCoins(op string, c Coins) error {
	if c.Negative() {
		return invalid(op, "currency amounts must not be negative: %s", c)
	}
	if c.IsZero() {
		return invalid(op, "no currency specified")
	}
	return nil
}

func (l *Ledger) credit(ctx context.Context, op, locationID string, amount Coins, typ TransactionType, counterpart, reason string) (*CurrencyResult, error) {
	defer l.locks.Lock(currencyKey(locationID))()

	cur, found, err := l.currentBalance(ctx, op, locationID)
	if err != nil {
		return nil, err
	}
	next := Balance{ID: cur.ID, LocationID: locationID, Coins: cur.Coins.Add(amount)}

	entry, err := l.appendCurrencyEntry(ctx, op, currencyEntry(locationID, typ, amount, counterpart, reason))
	if err != nil {
		return nil, err
	}
	bal, err := l.writeBalance(ctx, op, next, found)
	if err != nil {
		return nil, err
	}
	logger.Debugf("ledger: %s %s at %s, balance %s", typ, amount, locationID, bal.Coins)
	return &CurrencyResult{Balance: bal, Applied: amount, Entry: entry}, nil
}

func (l *Ledger) debit(ctx context.Context, op, locationID string, amount Coins, typ TransactionType, counterpart, reason string) (*CurrencyResult, error) {
	defer l.locks.Lock(currencyKey(locationID))()

	cur, found, err := l.currentBalance(ctx, op, locationID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, invalid(op, "no currency recorded at location %s", locationID)
	}
	return l.debitLocked(ctx, op, cur, amount, typ, counterpart, reason)
}

// debitLocked takes up to amount from cur. Callers hold cur's location lock.
func (l *Ledger) debitLocked(ctx context.Context, op string, cur Balance, amount Coins, typ TransactionType, counterpart, reason string) (*CurrencyResult, error) {
	locationID := cur.LocationID
	rest, taken := cur.Coins.Sub(amount)
	if taken.IsZero() {
		return &CurrencyResult{Balance: cur}, nil
	}

	entry, err := l.appendCurrencyEntry(ctx, op, currencyEntry(locationID, typ, taken, counterpart, reason))
	if err != nil {
		return nil, err
	}
	bal, err := l.writeBalance(ctx, op, Balance{ID: cur.ID, LocationID: locationID, Coins: rest}, true)
	if err != nil {
		return nil, err
	}
	if taken != amount {
		logger.Infof("ledger: %s at %s clamped to %s (requested %s)", typ, locationID, taken, amount)
	}
	return &CurrencyResult{Balance: bal, Applied: taken, Entry: entry}, nil
}

func currencyEntry(locationID string, typ TransactionType, amount Coins, counterpart, reason string) CurrencyEntry {
	return CurrencyEntry{
		LocationID:         locationID,
		Type:               typ,
		Coins:              amount,
		TransferLocationID: counterpart,
		Reason:             reason,
	}
}

func (l *Ledger) currentBalance(ctx context.Context, op, locationID string) (Balance, bool, error) {
	rows, err := l.tables.Get(ctx, postgrest.Query{
		Table:   TableCurrency,
		Filters: postgrest.Filters{"storage_location_id": postgrest.Eq(locationID)},
		Limit:   1,
		NoCache: true,
	})
	if err != nil {
		return Balance{}, false, readFailed(op, TableCurrency, err)
	}
	if len(rows) == 0 {
		return Balance{LocationID: locationID}, false, nil
	}
	b, err := postgrest.DecodeRow[Balance](rows[0])
	if err != nil {
		return Balance{}, false, readFailed(op, TableCurrency, err)
	}
	b.LocationID = locationID
	return b, true, nil
}

func (l *Ledger) appendCurrencyEntry(ctx context.Context, op string, e CurrencyEntry) (CurrencyEntry, error) {
	rows, err := l.tables.Insert(ctx, TableCurrencyLedger, e)
	if err != nil {
		return CurrencyEntry{}, stepFailed(op, StepAppendLedger, err)
	}
	if len(rows) == 0 {
		return e, nil
	}
	stored, err := postgrest.DecodeRow[CurrencyEntry](rows[0])
	if err != nil {
		return e, nil
	}
	return stored, nil
}

func (l *Ledger) writeBalance(ctx context.Context, op string, b Balance, exists bool) (Balance, error) {
	var (
		row postgrest.Row
		ok  bool
		err error
	)
	if exists {
		row, ok, err = l.tables.UpdateByID(ctx, TableCurrency, b.ID, b.Coins)
	} else {
		var rows postgrest.Rows
		rows, err = l.tables.Insert(ctx, TableCurrency, b)
		if len(rows) > 0 {
			row, ok = rows[0], true
		}
	}
	if err != nil {
		logger.Errorf("ledger: %s: ledger appended but %s write failed: %v", op, TableCurrency, err)
		return Balance{}, stepFailed(op, StepWriteCurrent, err)
	}
	if exists && !ok {
		logger.Errorf("ledger: %s: ledger appended but %s row %s vanished before update", op, TableCurrency, b.ID)
		return Balance{}, stepFailed(op, StepWriteCurrent, ErrRowVanished)
	}
	if !ok {
		return b, nil
	}
	stored, err := postgrest.DecodeRow[Balance](row)
	if err != nil {
		return b, nil
	}
	return stored, nil
}
