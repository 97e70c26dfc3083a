package ledger_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/leonardcser/campaign-mcp/internal/ledger"
	"github.com/leonardcser/campaign-mcp/internal/ledger/mocks"
	"github.com/leonardcser/campaign-mcp/internal/postgrest"
)

func TestAddCurrency_CreatesThenAccumulates(t *testing.T) {
	l, srv, _ := setup(t)
	ctx := context.Background()

	res, err := l.AddCurrency(ctx, ledger.CurrencyInput{LocationID: pack, Coins: ledger.Coins{Gold: 10}})
	require.NoError(t, err)
	assert.Equal(t, ledger.Coins{Gold: 10}, res.Balance.Coins)
	assert.Equal(t, "Currency added", res.Entry.Reason)

	res, err = l.AddCurrency(ctx, ledger.CurrencyInput{LocationID: pack, Coins: ledger.Coins{Gold: 1, Silver: 5}})
	require.NoError(t, err)
	assert.Equal(t, ledger.Coins{Gold: 11, Silver: 5}, res.Balance.Coins)

	assert.Equal(t, map[string]ledger.Coins{pack: {Gold: 11, Silver: 5}}, balances(t, srv))
	assert.Len(t, currencyEntries(t, srv), 2)
}

func TestCurrency_Validation(t *testing.T) {
	l, srv, _ := setup(t)
	ctx := context.Background()

	_, err := l.AddCurrency(ctx, ledger.CurrencyInput{LocationID: pack, Coins: ledger.Coins{Gold: -1}})
	assert.True(t, ledger.IsValidation(err))
	_, err = l.AddCurrency(ctx, ledger.CurrencyInput{LocationID: pack})
	assert.True(t, ledger.IsValidation(err))
	_, err = l.RemoveCurrency(ctx, ledger.CurrencyInput{LocationID: pack, Coins: ledger.Coins{Gold: 1}})
	assert.True(t, ledger.IsValidation(err), "no balance row")

	assert.Empty(t, currencyEntries(t, srv))
}

func TestRemoveCurrency_ClampsAtZero(t *testing.T) {
	l, srv, _ := setup(t)
	seedCoins(srv, pack, ledger.Coins{Gold: 5, Copper: 30})

	res, err := l.RemoveCurrency(context.Background(), ledger.CurrencyInput{
		LocationID: pack,
		Coins:      ledger.Coins{Gold: 10, Silver: 1, Copper: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.Coins{Copper: 20}, res.Balance.Coins)
	assert.Equal(t, ledger.Coins{Gold: 5, Copper: 10}, res.Applied)

	entries := currencyEntries(t, srv)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.TypeRemove, entries[0].Type)
	assert.Equal(t, ledger.Coins{Gold: 5, Copper: 10}, entries[0].Coins)
}

func TestRemoveCurrency_NeverNegative(t *testing.T) {
	l, srv, _ := setup(t)
	seedCoins(srv, pack, ledger.Coins{Copper: 7, Silver: 3, Electrum: 1, Gold: 4, Platinum: 2})
	ctx := context.Background()

	for _, c := range []ledger.Coins{
		{Gold: 3, Platinum: 1},
		{Copper: 5, Gold: 3},
		{Silver: 9, Electrum: 2},
		{Copper: 100, Platinum: 100},
		{Gold: 1},
	} {
		_, err := l.RemoveCurrency(ctx, ledger.CurrencyInput{LocationID: pack, Coins: c})
		require.NoError(t, err)
		assert.False(t, balances(t, srv)[pack].Negative())
	}
	assert.Equal(t, ledger.Coins{}, balances(t, srv)[pack])
}

func TestTransferCurrency(t *testing.T) {
	l, srv, _ := setup(t)
	seedCoins(srv, pack, ledger.Coins{Gold: 10, Silver: 2})

	res, err := l.TransferCurrency(context.Background(), ledger.TransferCurrencyInput{
		FromLocationID: pack, ToLocationID: bag, Coins: ledger.Coins{Gold: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.Coins{Gold: 4}, res.Transferred)
	assert.Equal(t, ledger.Coins{Gold: 6, Silver: 2}, res.Source.Coins)
	assert.Equal(t, ledger.Coins{Gold: 4}, res.Destination.Coins)

	assert.Equal(t, map[string]ledger.Coins{
		pack: {Gold: 6, Silver: 2},
		bag:  {Gold: 4},
	}, balances(t, srv))

	entries := currencyEntries(t, srv)
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.TypeTransferOut, entries[0].Type)
	assert.Equal(t, bag, entries[0].TransferLocationID)
	assert.Equal(t, ledger.TypeTransferIn, entries[1].Type)
	assert.Equal(t, pack, entries[1].TransferLocationID)
}

func TestTransferCurrency_Validation(t *testing.T) {
	l, srv, _ := setup(t)
	seedCoins(srv, pack, ledger.Coins{Gold: 3})
	ctx := context.Background()

	cases := map[string]ledger.TransferCurrencyInput{
		"insufficient":     {FromLocationID: pack, ToLocationID: bag, Coins: ledger.Coins{Gold: 4}},
		"no source row":    {FromLocationID: bag, ToLocationID: pack, Coins: ledger.Coins{Gold: 1}},
		"same location":    {FromLocationID: pack, ToLocationID: pack, Coins: ledger.Coins{Gold: 1}},
		"unknown location": {FromLocationID: pack, ToLocationID: "loc-void", Coins: ledger.Coins{Gold: 1}},
		"empty":            {FromLocationID: pack, ToLocationID: bag},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := l.TransferCurrency(ctx, in)
			require.Error(t, err)
			assert.True(t, ledger.IsValidation(err))
		})
	}
	assert.Empty(t, currencyEntries(t, srv))
	assert.Equal(t, map[string]ledger.Coins{pack: {Gold: 3}}, balances(t, srv))
}

func TestTransferCurrency_DestinationFailureIsCompensated(t *testing.T) {
	l, srv, _ := setup(t)
	seedCoins(srv, pack, ledger.Coins{Gold: 10})
	srv.FailNext(http.MethodPost, ledger.TableCurrency, http.StatusInternalServerError, `{"message":"boom"}`)

	_, err := l.TransferCurrency(context.Background(), ledger.TransferCurrencyInput{
		FromLocationID: pack, ToLocationID: bag, Coins: ledger.Coins{Gold: 4},
	})
	require.Error(t, err)

	var stepErr *ledger.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, ledger.StepWriteCurrent, stepErr.Step)
	assert.True(t, stepErr.Compensated)
	assert.Equal(t, http.StatusInternalServerError, postgrest.RejectedStatus(err))

	assert.Equal(t, map[string]ledger.Coins{pack: {Gold: 10}}, balances(t, srv))
	entries := currencyEntries(t, srv)
	require.Len(t, entries, 3)
	assert.Equal(t, ledger.TypeAdd, entries[2].Type)
	assert.Equal(t, ledger.Coins{Gold: 4}, entries[2].Coins)
}

func TestTransferCurrency_FailedCompensationIsReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	tables := mocks.NewMockTables(ctrl)
	ctx := context.Background()

	creditErr := errors.New("insert refused")
	reversalErr := errors.New("update refused")
	source := postgrest.Row{"id": "cur-1", "storage_location_id": pack, "gold": 10.0}

	tables.EXPECT().GetByID(gomock.Any(), ledger.TableLocations, bag).Return(postgrest.Row{"id": bag}, true, nil)
	tables.EXPECT().Get(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, q postgrest.Query) (postgrest.Rows, error) {
		if q.Filters["storage_location_id"] == postgrest.Eq(pack) {
			return postgrest.Rows{source}, nil
		}
		return postgrest.Rows{}, nil
	}).AnyTimes()
	tables.EXPECT().Insert(gomock.Any(), ledger.TableCurrencyLedger, gomock.Any()).Return(postgrest.Rows{}, nil).Times(3)
	gomock.InOrder(
		tables.EXPECT().UpdateByID(gomock.Any(), ledger.TableCurrency, "cur-1", ledger.Coins{Gold: 6}).Return(postgrest.Row{}, true, nil),
		tables.EXPECT().Insert(gomock.Any(), ledger.TableCurrency, gomock.Any()).Return(nil, creditErr),
		tables.EXPECT().UpdateByID(gomock.Any(), ledger.TableCurrency, "cur-1", ledger.Coins{Gold: 14}).Return(nil, false, reversalErr),
	)

	_, err := ledger.New(tables).TransferCurrency(ctx, ledger.TransferCurrencyInput{
		FromLocationID: pack, ToLocationID: bag, Coins: ledger.Coins{Gold: 4},
	})
	require.Error(t, err)
	assert.Equal(t, ledger.StepCompensate, ledger.FailedStep(err))
	assert.ErrorIs(t, err, creditErr)
	assert.ErrorIs(t, err, reversalErr)
}

func TestAddCurrency_VanishedBalanceRowIsReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	tables := mocks.NewMockTables(ctrl)
	balance := postgrest.Row{"id": "cur-1", "storage_location_id": pack, "gold": 3.0}

	gomock.InOrder(
		tables.EXPECT().Get(gomock.Any(), gomock.Any()).Return(postgrest.Rows{balance}, nil),
		tables.EXPECT().Insert(gomock.Any(), ledger.TableCurrencyLedger, gomock.Any()).Return(postgrest.Rows{}, nil),
		tables.EXPECT().UpdateByID(gomock.Any(), ledger.TableCurrency, "cur-1", ledger.Coins{Gold: 5}).Return(nil, false, nil),
	)

	res, err := ledger.New(tables).AddCurrency(context.Background(), ledger.CurrencyInput{LocationID: pack, Coins: ledger.Coins{Gold: 2}})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ledger.ErrRowVanished)
	assert.Equal(t, ledger.StepWriteCurrent, ledger.FailedStep(err))
}

func TestTransferCurrency_ConcurrentDebitNeverShrinksTransfer(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		l, srv, _ := setup(t)
		seedCoins(srv, pack, ledger.Coins{Gold: 10})

		var (
			wg          sync.WaitGroup
			transfer    *ledger.CurrencyTransferResult
			transferErr error
			removal     *ledger.CurrencyResult
			removalErr  error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			transfer, transferErr = l.TransferCurrency(ctx, ledger.TransferCurrencyInput{
				FromLocationID: pack, ToLocationID: bag, Coins: ledger.Coins{Gold: 10},
			})
		}()
		go func() {
			defer wg.Done()
			removal, removalErr = l.RemoveCurrency(ctx, ledger.CurrencyInput{LocationID: pack, Coins: ledger.Coins{Gold: 5}})
		}()
		wg.Wait()
		require.NoError(t, removalErr)

		if transferErr == nil {
			assert.Equal(t, ledger.Coins{Gold: 10}, transfer.Transferred)
			assert.True(t, removal.Applied.IsZero())
			assert.Equal(t, ledger.Coins{Gold: 10}, balances(t, srv)[bag])
		} else {
			assert.True(t, ledger.IsValidation(transferErr), transferErr)
			assert.Equal(t, ledger.Coins{Gold: 5}, removal.Applied)
			assert.Equal(t, ledger.Coins{Gold: 5}, balances(t, srv)[pack])
		}
	}
}

func TestCurrencyLedger_ConservesBalances(t *testing.T) {
	l, srv, _ := setup(t)
	ctx := context.Background()
	initial := map[string]ledger.Coins{pack: {Gold: 10, Silver: 5}}
	seedCoins(srv, pack, initial[pack])

	_, err := l.AddCurrency(ctx, ledger.CurrencyInput{LocationID: pack, Coins: ledger.Coins{Gold: 3}})
	require.NoError(t, err)
	res, err := l.RemoveCurrency(ctx, ledger.CurrencyInput{LocationID: pack, Coins: ledger.Coins{Gold: 20, Silver: 1}})
	require.NoError(t, err)
	assert.Equal(t, ledger.Coins{Gold: 13, Silver: 1}, res.Applied)
	_, err = l.AddCurrency(ctx, ledger.CurrencyInput{LocationID: pack, Coins: ledger.Coins{Gold: 6}})
	require.NoError(t, err)
	_, err = l.TransferCurrency(ctx, ledger.TransferCurrencyInput{FromLocationID: pack, ToLocationID: bag, Coins: ledger.Coins{Gold: 4, Silver: 2}})
	require.NoError(t, err)
	_, err = l.RemoveCurrency(ctx, ledger.CurrencyInput{LocationID: bag, Coins: ledger.Coins{Silver: 9}})
	require.NoError(t, err)

	final := balances(t, srv)
	assert.Equal(t, ledger.Coins{Gold: 2, Silver: 2}, final[pack])
	assert.Equal(t, ledger.Coins{Gold: 4}, final[bag])

	deltas := map[string]ledger.Coins{}
	for _, e := range currencyEntries(t, srv) {
		amount := e.Coins
		if e.Type == ledger.TypeRemove || e.Type == ledger.TypeTransferOut {
			amount = negate(amount)
		}
		deltas[e.LocationID] = deltas[e.LocationID].Add(amount)
	}
	for _, loc := range []string{pack, bag} {
		assert.Equal(t, final[loc].Add(negate(initial[loc])), deltas[loc], loc)
	}
}

func negate(c ledger.Coins) ledger.Coins {
	return ledger.Coins{Copper: -c.Copper, Silver: -c.Silver, Electrum: -c.Electrum, Gold: -c.Gold, Platinum: -c.Platinum}
}
