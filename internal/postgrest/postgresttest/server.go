// Package postgresttest provides an in-memory PostgREST endpoint for tests.
package postgresttest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Row is a stored record.
type Row = map[string]any

// ViewFunc computes a view from a snapshot of the base tables.
type ViewFunc func(tables map[string][]Row) []Row

// Request records one call received by the server.
type Request struct {
	Method string
	Table  string
	Query  string
	Header http.Header
	Body   string
}

// Server is a minimal PostgREST: eq/neq/gt/gte/lt/lte/like/ilike/is/in
// filters, order, limit and offset on reads; POST, PATCH and DELETE with
// return=representation semantics on writes.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	tables   map[string][]Row
	views    map[string]ViewFunc
	seq      int
	base     time.Time
	requests []Request
	failures []failure
	before   func(method, table string)
}

type failure struct {
	method string
	table  string
	status int
	body   string
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		tables: make(map[string][]Row),
		views:  make(map[string]ViewFunc),
		base:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Seed stores rows in table, assigning ids and timestamps where missing.
func (s *Server) Seed(table string, rows ...Row) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.insertLocked(table, r))
	}
	return out
}

// Rows returns a copy of table's rows in insertion order.
func (s *Server) Rows(table string) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRows(s.tables[table])
}

// View registers a computed view.
func (s *Server) View(name string, fn ViewFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[name] = fn
}

// FailNext makes the next request matching method and table answer status.
func (s *Server) FailNext(method, table string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{method: method, table: table, status: status, body: body})
}

// BeforeServe installs a hook that runs before each request is handled.
func (s *Server) BeforeServe(fn func(method, table string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.before = fn
}

// Count returns how many requests with method hit table.
func (s *Server) Count(method, table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Method == method && r.Table == table {
			n++
		}
	}
	return n
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	table := strings.TrimPrefix(r.URL.Path, "/")
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	before := s.before
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Table:  table,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   string(body),
	})
	s.mu.Unlock()

	if before != nil {
		before(r.Method, table)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Header.Get("apikey") == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "no api key"})
		return
	}
	for i, f := range s.failures {
		if f.method == r.Method && f.table == table {
			s.failures = append(s.failures[:i], s.failures[i+1:]...)
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, f.body)
			return
		}
	}

	params := r.URL.Query()
	switch r.Method {
	case http.MethodGet:
		rows := s.source(table)
		rows = filterRows(rows, params)
		orderRows(rows, params.Get("order"))
		rows = page(rows, params)
		writeJSON(w, http.StatusOK, project(rows, params.Get("select")))
	case http.MethodPost:
		var in []Row
		if err := json.Unmarshal(body, &in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "body must be a JSON array"})
			return
		}
		out := make([]Row, 0, len(in))
		for _, row := range in {
			out = append(out, s.insertLocked(table, row))
		}
		writeJSON(w, http.StatusCreated, out)
	case http.MethodPatch:
		var patch Row
		if err := json.Unmarshal(body, &patch); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "body must be a JSON object"})
			return
		}
		out := []Row{}
		for _, row := range s.tables[table] {
			if matches(row, params) {
				for k, v := range patch {
					row[k] = v
				}
				out = append(out, cloneRow(row))
			}
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodDelete:
		out := []Row{}
		kept := s.tables[table][:0]
		for _, row := range s.tables[table] {
			if matches(row, params) {
				out = append(out, cloneRow(row))
				continue
			}
			kept = append(kept, row)
		}
		s.tables[table] = kept
		writeJSON(w, http.StatusOK, out)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) source(table string) []Row {
	if fn, ok := s.views[table]; ok {
		snapshot := make(map[string][]Row, len(s.tables))
		for k, v := range s.tables {
			snapshot[k] = cloneRows(v)
		}
		return fn(snapshot)
	}
	return cloneRows(s.tables[table])
}

func (s *Server) insertLocked(table string, row Row) Row {
	s.seq++
	stored := normalize(row)
	if _, ok := stored["id"]; !ok {
		stored["id"] = fmt.Sprintf("%s-%04d", table, s.seq)
	}
	if _, ok := stored["created_at"]; !ok {
		stored["created_at"] = s.base.Add(time.Duration(s.seq) * time.Second).Format(time.RFC3339Nano)
	}
	s.tables[table] = append(s.tables[table], stored)
	return cloneRow(stored)
}

// normalize round-trips row through JSON so stored numbers are float64, as
// they would be after a real HTTP exchange.
func normalize(row Row) Row {
	b, _ := json.Marshal(row)
	out := Row{}
	_ = json.Unmarshal(b, &out)
	return out
}

var reserved = map[string]bool{"select": true, "order": true, "limit": true, "offset": true}

func filterRows(rows []Row, params map[string][]string) []Row {
	out := []Row{}
	for _, row := range rows {
		if matches(row, params) {
			out = append(out, row)
		}
	}
	return out
}

func matches(row Row, params map[string][]string) bool {
	for col, vals := range params {
		if reserved[col] {
			continue
		}
		for _, raw := range vals {
			op, val, ok := strings.Cut(raw, ".")
			if !ok || !match(row[col], op, val) {
				return false
			}
		}
	}
	return true
}

func match(v any, op, want string) bool {
	got := text(v)
	switch op {
	case "eq":
		return v != nil && got == want
	case "neq":
		return v != nil && got != want
	case "gt", "gte", "lt", "lte":
		if v == nil {
			return false
		}
		c := compare(got, want)
		switch op {
		case "gt":
			return c > 0
		case "gte":
			return c >= 0
		case "lt":
			return c < 0
		default:
			return c <= 0
		}
	case "like", "ilike":
		if v == nil {
			return false
		}
		expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(want), `\*`, ".*") + "$"
		if op == "ilike" {
			expr = "(?i)" + expr
		}
		ok, _ := regexp.MatchString(expr, got)
		return ok
	case "is":
		switch want {
		case "null":
			return v == nil
		default:
			return v != nil && got == want
		}
	case "in":
		for _, item := range strings.Split(strings.Trim(want, "()"), ",") {
			if v != nil && got == item {
				return true
			}
		}
		return false
	}
	return false
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func compare(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

func orderRows(rows []Row, order string) {
	if order == "" {
		return
	}
	clauses := strings.Split(order, ",")
	sort.SliceStable(rows, func(i, j int) bool {
		for _, clause := range clauses {
			col, dir, _ := strings.Cut(clause, ".")
			c := compare(text(rows[i][col]), text(rows[j][col]))
			if c == 0 {
				continue
			}
			if dir == "desc" {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func page(rows []Row, params map[string][]string) []Row {
	if o, err := strconv.Atoi(first(params["offset"])); err == nil && o > 0 {
		if o >= len(rows) {
			return []Row{}
		}
		rows = rows[o:]
	}
	if l, err := strconv.Atoi(first(params["limit"])); err == nil && l >= 0 && l < len(rows) {
		rows = rows[:l]
	}
	return rows
}

func project(rows []Row, sel string) []Row {
	if sel == "" || sel == "*" {
		return rows
	}
	cols := strings.Split(sel, ",")
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		p := Row{}
		for _, c := range cols {
			c = strings.TrimSpace(c)
			if v, ok := row[c]; ok {
				p[c] = v
			}
		}
		out = append(out, p)
	}
	return out
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, cloneRow(r))
	}
	return out
}
