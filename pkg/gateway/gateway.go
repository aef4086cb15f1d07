// Package gateway is the table-oriented persistence contract the forum engines
// read and write through. Backends live in the memstore, mongostore and sqlstore
// subpackages.
package gateway

import (
	"context"
	"errors"
)

// ErrDuplicate is returned by Insert when a unique key is already taken.
var ErrDuplicate = errors.New("gateway: duplicate key")

type Op string

const (
	OpEq       Op = "eq"
	OpNeq      Op = "neq"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpIn       Op = "in"
	OpContains Op = "contains"
)

type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

type Order struct {
	Field string
	Desc  bool
}

type Query struct {
	Filters []Filter
	Order   []Order
	Limit   int
	Offset  int
}

type Gateway interface {
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	Insert(ctx context.Context, table string, row Row) error
	Update(ctx context.Context, table string, filters []Filter, patch Row) (int64, error)
	Delete(ctx context.Context, table string, filters []Filter) (int64, error)
	// Upsert inserts row or, when conflictKeys match an existing row, overwrites
	// its remaining columns.
	Upsert(ctx context.Context, table string, row Row, conflictKeys []string) error
}

func Eq(field string, v interface{}) Filter  { return Filter{Field: field, Op: OpEq, Value: v} }
func Neq(field string, v interface{}) Filter { return Filter{Field: field, Op: OpNeq, Value: v} }
func Gt(field string, v interface{}) Filter  { return Filter{Field: field, Op: OpGt, Value: v} }
func Gte(field string, v interface{}) Filter { return Filter{Field: field, Op: OpGte, Value: v} }
func Lt(field string, v interface{}) Filter  { return Filter{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v interface{}) Filter { return Filter{Field: field, Op: OpLte, Value: v} }

// In matches any of the given values. An empty list matches nothing.
func In(field string, vs ...interface{}) Filter {
	return Filter{Field: field, Op: OpIn, Value: vs}
}

func Contains(field, substr string) Filter {
	return Filter{Field: field, Op: OpContains, Value: substr}
}

// Where is shorthand for a Query with filters only.
func Where(filters ...Filter) Query {
	return Query{Filters: filters}
}

// Strings converts ids for use with In.
func Strings(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
