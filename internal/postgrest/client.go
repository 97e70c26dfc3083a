package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"

	"github.com/leonardcser/campaign-mcp/internal/cache"
	"github.com/leonardcser/campaign-mcp/internal/logger"
)

const (
	DefaultTimeout = 10 * time.Second
	// MaxResponseSize bounds how much of a response body is read.
	MaxResponseSize = 8 * 1024 * 1024
)

// Row is one decoded JSON object from the remote store.
type Row = map[string]any

// Rows is a result set. It is never nil on success.
type Rows = []Row

type Config struct {
	// URL is the REST root, e.g. https://xyz.supabase.co/rest/v1.
	URL    string
	APIKey string
	// CachePrefix namespaces cache keys; defaults to "campaign".
	CachePrefix string
	Timeout     time.Duration
	// HTTPClient overrides the default client. Timeout still bounds shared
	// cached fetches.
	HTTPClient *http.Client
}

// Client reads and writes PostgREST tables. Reads go through the cache unless
// a Query opts out; every successful write evicts the cached reads of the
// written table and of its dependents.
type Client struct {
	baseURL string
	apiKey  string
	prefix  string
	http    *http.Client
	timeout time.Duration
	cache   cache.KV
	deps    Dependencies

	group singleflight.Group

	// gens counts invalidations per table so a fetch that raced a write does
	// not repopulate the cache with what it read before the write.
	mu   sync.Mutex
	gens map[string]uint64
}

// New builds a Client. kv may be nil to disable caching.
func New(cfg Config, kv cache.KV, deps Dependencies) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	prefix := cfg.CachePrefix
	if prefix == "" {
		prefix = "campaign"
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		prefix:  prefix,
		http:    hc,
		timeout: timeout,
		cache:   kv,
		deps:    deps,
		gens:    make(map[string]uint64),
	}
}

func (c *Client) tablePrefix(table string) string { return c.prefix + "|" + table + "|" }

func (c *Client) cacheKey(q Query) string { return c.tablePrefix(q.Table) + q.hash() }

// Get runs q and returns the matching rows, serving from the cache when possible.
func (c *Client) Get(ctx context.Context, q Query) (Rows, error) {
	if q.NoCache || c.cache == nil {
		body, err := c.do(ctx, http.MethodGet, q.Table, q.values(), nil)
		if err != nil {
			return nil, err
		}
		return decodeRows(q.Table, body)
	}

	key := c.cacheKey(q)
	if v, err := c.cache.Get(key); err == nil {
		if rows, err := decodeRows(q.Table, v); err == nil {
			return rows, nil
		}
		logger.Warnf("postgrest: discarding undecodable cache entry %s", key)
	} else if !cache.IsMiss(err) {
		logger.Warnf("postgrest: cache get %s: %v", key, err)
	}

	// The shared fetch outlives any single caller; each caller still stops
	// waiting when its own context ends.
	ch := c.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		gen := c.generation(q.Table)
		body, err := c.do(fctx, http.MethodGet, q.Table, q.values(), nil)
		if err != nil {
			return nil, err
		}
		if c.generation(q.Table) == gen {
			if err := c.cache.Set(key, body); err != nil {
				logger.Warnf("postgrest: cache set %s: %v", key, err)
			}
		}
		return body, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return decodeRows(q.Table, res.Val.([]byte))
	}
}

// GetByID fetches the row whose id equals id.
func (c *Client) GetByID(ctx context.Context, table, id string) (Row, bool, error) {
	rows, err := c.Get(ctx, Query{Table: table, Filters: Filters{"id": Eq(id)}, Limit: 1})
	return first(rows, err)
}

// Insert writes one row (a struct or map) or a slice of rows and returns
// the rows as stored.
func (c *Client) Insert(ctx context.Context, table string, rowOrRows any) (Rows, error) {
	rows, err := asSlice(rowOrRows)
	if err != nil {
		return nil, err
	}
	return c.write(ctx, http.MethodPost, table, nil, rows)
}

// Update applies patch to every row matching filters.
func (c *Client) Update(ctx context.Context, table string, patch any, filters Filters) (Rows, error) {
	if len(filters) == 0 {
		return nil, zerr.Wrap(ErrUnfilteredWrite, "update "+table)
	}
	return c.write(ctx, http.MethodPatch, table, filters.values(), patch)
}

// UpdateByID patches a single row.
func (c *Client) UpdateByID(ctx context.Context, table, id string, patch any) (Row, bool, error) {
	return first(c.Update(ctx, table, patch, Filters{"id": Eq(id)}))
}

// Delete removes every row matching filters.
func (c *Client) Delete(ctx context.Context, table string, filters Filters) (Rows, error) {
	if len(filters) == 0 {
		return nil, zerr.Wrap(ErrUnfilteredWrite, "delete "+table)
	}
	return c.write(ctx, http.MethodDelete, table, filters.values(), nil)
}

// DeleteByID removes a single row.
func (c *Client) DeleteByID(ctx context.Context, table, id string) (Row, bool, error) {
	return first(c.Delete(ctx, table, Filters{"id": Eq(id)}))
}

// Invalidate evicts cached reads of table and everything that depends on it.
func (c *Client) Invalidate(table string) {
	tables := append([]string{table}, c.deps.For(table)...)
	c.mu.Lock()
	for _, t := range tables {
		c.gens[t]++
	}
	c.mu.Unlock()
	if c.cache == nil {
		return
	}
	for _, t := range tables {
		n, err := c.cache.ClearPrefix(c.tablePrefix(t))
		if err != nil {
			logger.Warnf("postgrest: invalidate %s: %v", t, err)
			continue
		}
		if n > 0 {
			logger.Debugf("postgrest: invalidated %d cached reads of %s", n, t)
		}
	}
}

func (c *Client) generation(table string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[table]
}

func (c *Client) write(ctx context.Context, method, table string, params url.Values, body any) (Rows, error) {
	data, err := c.do(ctx, method, table, params, body)
	if err != nil {
		return nil, err
	}
	c.Invalidate(table)
	return decodeRows(table, data)
}

func (c *Client) do(ctx context.Context, method, table string, params url.Values, body any) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "encode request body"), "table", table)
		}
		rdr = bytes.NewReader(b)
	}
	endpoint := c.baseURL + "/" + url.PathEscape(table)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "build request"), "table", table)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UnavailableError{Method: method, Table: table, Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, &UnavailableError{Method: method, Table: table, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RejectedError{Method: method, Table: table, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

func decodeRows(table string, data []byte) (Rows, error) {
	rows := Rows{}
	if len(bytes.TrimSpace(data)) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "decode response"), "table", table)
	}
	if rows == nil {
		rows = Rows{}
	}
	return rows, nil
}

func first(rows Rows, err error) (Row, bool, error) {
	if err != nil || len(rows) == 0 {
		return nil, false, err
	}
	return rows[0], true, nil
}

func asSlice(v any) ([]any, error) {
	if v == nil {
		return nil, ErrEmptyInsert
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}, nil
	}
	if rv.Len() == 0 {
		return nil, ErrEmptyInsert
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// DecodeRows converts rows into typed values via their JSON form.
func DecodeRows[T any](rows Rows) ([]T, error) {
	b, err := json.Marshal(rows)
	if err != nil {
		return nil, zerr.Wrap(err, "encode rows")
	}
	out := make([]T, 0, len(rows))
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, zerr.Wrap(err, "decode rows")
	}
	return out, nil
}

// DecodeRow converts a single row into T.
func DecodeRow[T any](row Row) (T, error) {
	var out T
	b, err := json.Marshal(row)
	if err != nil {
		return out, zerr.Wrap(err, "encode row")
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, zerr.Wrap(err, "decode row")
	}
	return out, nil
}
