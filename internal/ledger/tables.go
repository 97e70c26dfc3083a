package ledger

import (
	"context"

	"github.com/leonardcser/campaign-mcp/internal/postgrest"
)

//go:generate mockgen -source=tables.go -destination=mocks/mock_tables.go -package=mocks

// Tables is the part of the data client the mutators use.
type Tables interface {
	Get(ctx context.Context, q postgrest.Query) (postgrest.Rows, error)
	GetByID(ctx context.Context, table, id string) (postgrest.Row, bool, error)
	Insert(ctx context.Context, table string, rowOrRows any) (postgrest.Rows, error)
	UpdateByID(ctx context.Context, table, id string, patch any) (postgrest.Row, bool, error)
	DeleteByID(ctx context.Context, table, id string) (postgrest.Row, bool, error)
}
