package postgrest

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Operator is a PostgREST horizontal filter operator.
type Operator string

const (
	OpEq    Operator = "eq"
	OpNeq   Operator = "neq"
	OpGt    Operator = "gt"
	OpGte   Operator = "gte"
	OpLt    Operator = "lt"
	OpLte   Operator = "lte"
	OpLike  Operator = "like"
	OpILike Operator = "ilike"
	OpIs    Operator = "is"
	OpIn    Operator = "in"
)

// Filter is an operator-tagged value, rendered as op.value in the query string.
type Filter struct {
	Op    Operator
	Value string
}

func (f Filter) String() string { return string(f.Op) + "." + f.Value }

func Eq(v any) Filter    { return Filter{Op: OpEq, Value: format(v)} }
func Neq(v any) Filter   { return Filter{Op: OpNeq, Value: format(v)} }
func Gt(v any) Filter    { return Filter{Op: OpGt, Value: format(v)} }
func Gte(v any) Filter   { return Filter{Op: OpGte, Value: format(v)} }
func Lt(v any) Filter    { return Filter{Op: OpLt, Value: format(v)} }
func Lte(v any) Filter   { return Filter{Op: OpLte, Value: format(v)} }
func Is(v string) Filter { return Filter{Op: OpIs, Value: v} }

// ILike matches pattern case-insensitively; * is the wildcard.
func ILike(pattern string) Filter { return Filter{Op: OpILike, Value: pattern} }

// Contains is a case-insensitive substring match.
func Contains(s string) Filter { return ILike("*" + s + "*") }

// In matches any of values.
func In(values ...string) Filter {
	return Filter{Op: OpIn, Value: "(" + strings.Join(values, ",") + ")"}
}

func format(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}

// Filters maps column names to filters.
type Filters map[string]Filter

// Query describes a read against a table or view.
type Query struct {
	Table  string
	Select string
	// Filters are ANDed together.
	Filters Filters
	// Order holds column.asc|column.desc clauses; a bare column sorts ascending.
	Order  []string
	Limit  int
	Offset int
	// NoCache skips the cache for both lookup and population.
	NoCache bool
}

// values renders q's parameters. Keys are encoded in sorted order so the
// same query always produces the same string.
func (q Query) values() url.Values {
	v := url.Values{}
	sel := q.Select
	if sel == "" {
		sel = "*"
	}
	v.Set("select", sel)
	for col, f := range q.Filters {
		v.Set(col, f.String())
	}
	if len(q.Order) > 0 {
		v.Set("order", strings.Join(q.Order, ","))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

// hash returns a stable fingerprint of q's parameters.
func (q Query) hash() string {
	v := q.values()
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	h := xxhash.New()
	for _, k := range keys {
		_, _ = h.WriteString(k)
		_, _ = h.Write([]byte{'='})
		_, _ = h.WriteString(v.Get(k))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func (f Filters) values() url.Values {
	v := url.Values{}
	for col, flt := range f {
		v.Set(col, flt.String())
	}
	return v
}
