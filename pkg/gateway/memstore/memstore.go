// Package memstore keeps gateway tables in process memory. It backs the engine
// tests and the FORUM_STORE=memory mode.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"ecoforum/pkg/gateway"
)

type Store struct {
	mu     sync.RWMutex
	tables map[string][]gateway.Row
	unique map[string][][]string
}

// New creates an empty store enforcing the given unique column sets per table.
func New(unique map[string][][]string) *Store {
	return &Store{
		tables: make(map[string][]gateway.Row),
		unique: unique,
	}
}

func (s *Store) Select(ctx context.Context, table string, q gateway.Query) ([]gateway.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []gateway.Row{}
	for _, row := range s.tables[table] {
		if gateway.Match(row, q.Filters) {
			out = append(out, row.Clone())
		}
	}

	if len(q.Order) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.Order {
				c, ok := gateway.Compare(out[i][o.Field], out[j][o.Field])
				if !ok || c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []gateway.Row{}, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, table string, row gateway.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conflict(table, row, -1) >= 0 {
		return fmt.Errorf("memstore: insert into %s: %w", table, gateway.ErrDuplicate)
	}
	s.tables[table] = append(s.tables[table], row.Clone())
	return nil
}

func (s *Store) Update(ctx context.Context, table string, filters []gateway.Filter, patch gateway.Row) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.tables[table]
	var affected int64
	for i, row := range rows {
		if !gateway.Match(row, filters) {
			continue
		}
		updated := row.Clone()
		for k, v := range patch {
			updated[k] = v
		}
		if s.conflict(table, updated, i) >= 0 {
			return affected, fmt.Errorf("memstore: update %s: %w", table, gateway.ErrDuplicate)
		}
		rows[i] = updated
		affected++
	}
	return affected, nil
}

func (s *Store) Delete(ctx context.Context, table string, filters []gateway.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tables[table][:0]
	var removed int64
	for _, row := range s.tables[table] {
		if gateway.Match(row, filters) {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	s.tables[table] = kept
	return removed, nil
}

func (s *Store) Upsert(ctx context.Context, table string, row gateway.Row, conflictKeys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(conflictKeys) == 0 {
		return fmt.Errorf("memstore: upsert into %s without conflict keys", table)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.tables[table]
	for i, existing := range rows {
		if !sameKey(existing, row, conflictKeys) {
			continue
		}
		updated := existing.Clone()
		for k, v := range row {
			updated[k] = v
		}
		if s.conflict(table, updated, i) >= 0 {
			return fmt.Errorf("memstore: upsert into %s: %w", table, gateway.ErrDuplicate)
		}
		rows[i] = updated
		return nil
	}

	if s.conflict(table, row, -1) >= 0 {
		return fmt.Errorf("memstore: upsert into %s: %w", table, gateway.ErrDuplicate)
	}
	s.tables[table] = append(rows, row.Clone())
	return nil
}

// Len is the number of rows in table.
func (s *Store) Len(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

// conflict returns the index of a row other than skip that shares a unique key
// with row, or -1.
func (s *Store) conflict(table string, row gateway.Row, skip int) int {
	for _, keys := range s.unique[table] {
		if !hasAll(row, keys) {
			continue
		}
		for i, existing := range s.tables[table] {
			if i != skip && sameKey(existing, row, keys) {
				return i
			}
		}
	}
	return -1
}

func hasAll(row gateway.Row, keys []string) bool {
	for _, k := range keys {
		if row[k] == nil {
			return false
		}
	}
	return true
}

func sameKey(a, b gateway.Row, keys []string) bool {
	for _, k := range keys {
		c, ok := gateway.Compare(a[k], b[k])
		if !ok || c != 0 {
			return false
		}
	}
	return true
}

func (s *Store) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parts := make([]string, 0, len(s.tables))
	for name, rows := range s.tables {
		parts = append(parts, fmt.Sprintf("%s=%d", name, len(rows)))
	}
	sort.Strings(parts)
	return "memstore{" + strings.Join(parts, " ") + "}"
}
