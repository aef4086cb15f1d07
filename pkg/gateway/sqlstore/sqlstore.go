// Package sqlstore maps gateway tables onto PostgreSQL through database/sql and
// the pgx driver.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib"

	"ecoforum/pkg/gateway"
)

const uniqueViolation = "23505"

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var comparisons = map[gateway.Op]string{
	gateway.OpEq:  "=",
	gateway.OpGt:  ">",
	gateway.OpGte: ">=",
	gateway.OpLt:  "<",
	gateway.OpLte: "<=",
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects through the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	return db, nil
}

func (s *Store) Select(ctx context.Context, table string, q gateway.Query) ([]gateway.Row, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	var b builder
	b.sql.WriteString("SELECT * FROM " + table)
	if err := b.where(q.Filters); err != nil {
		return nil, err
	}
	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			if err := checkIdent(o.Field); err != nil {
				return nil, err
			}
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts = append(parts, o.Field+" "+dir)
		}
		b.sql.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if q.Limit > 0 {
		b.sql.WriteString(fmt.Sprintf(" LIMIT %d", q.Limit))
	}
	if q.Offset > 0 {
		b.sql.WriteString(fmt.Sprintf(" OFFSET %d", q.Offset))
	}

	rows, err := s.db.QueryContext(ctx, b.sql.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: select from %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: columns of %s: %w", table, err)
	}
	out := []gateway.Row{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlstore: scan %s: %w", table, err)
		}
		row := make(gateway.Row, len(cols))
		for i, c := range cols {
			row[c] = normalize(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: read %s: %w", table, err)
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, table string, row gateway.Row) error {
	query, args, err := insertSQL(table, row)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return wrap("insert into", table, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, table string, filters []gateway.Filter, patch gateway.Row) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	if len(patch) == 0 {
		return 0, nil
	}
	var b builder
	cols := sortedColumns(patch)
	sets := make([]string, len(cols))
	for i, c := range cols {
		if err := checkIdent(c); err != nil {
			return 0, err
		}
		sets[i] = c + " = " + b.arg(patch[c])
	}
	b.sql.WriteString("UPDATE " + table + " SET " + strings.Join(sets, ", "))
	if err := b.where(filters); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, b.sql.String(), b.args...)
	if err != nil {
		return 0, wrap("update", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: update %s: %w", table, err)
	}
	return n, nil
}

func (s *Store) Delete(ctx context.Context, table string, filters []gateway.Filter) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	var b builder
	b.sql.WriteString("DELETE FROM " + table)
	if err := b.where(filters); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, b.sql.String(), b.args...)
	if err != nil {
		return 0, wrap("delete from", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: delete from %s: %w", table, err)
	}
	return n, nil
}

func (s *Store) Upsert(ctx context.Context, table string, row gateway.Row, conflictKeys []string) error {
	if len(conflictKeys) == 0 {
		return fmt.Errorf("sqlstore: upsert into %s without conflict keys", table)
	}
	query, args, err := insertSQL(table, row)
	if err != nil {
		return err
	}
	keys := make(map[string]bool, len(conflictKeys))
	for _, k := range conflictKeys {
		if err := checkIdent(k); err != nil {
			return err
		}
		keys[k] = true
	}
	var sets []string
	for _, c := range sortedColumns(row) {
		if !keys[c] {
			sets = append(sets, c+" = EXCLUDED."+c)
		}
	}
	query += " ON CONFLICT (" + strings.Join(conflictKeys, ", ") + ")"
	if len(sets) == 0 {
		query += " DO NOTHING"
	} else {
		query += " DO UPDATE SET " + strings.Join(sets, ", ")
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return wrap("upsert into", table, err)
	}
	return nil
}

type builder struct {
	sql  strings.Builder
	args []interface{}
}

func (b *builder) arg(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *builder) where(filters []gateway.Filter) error {
	if len(filters) == 0 {
		return nil
	}
	conds := make([]string, 0, len(filters))
	for _, f := range filters {
		if err := checkIdent(f.Field); err != nil {
			return err
		}
		switch f.Op {
		case gateway.OpNeq:
			conds = append(conds, fmt.Sprintf("(%s <> %s OR %s IS NULL)", f.Field, b.arg(f.Value), f.Field))
		case gateway.OpIn:
			vs, _ := f.Value.([]interface{})
			if len(vs) == 0 {
				conds = append(conds, "FALSE")
				continue
			}
			ph := make([]string, len(vs))
			for i, v := range vs {
				ph[i] = b.arg(v)
			}
			conds = append(conds, f.Field+" IN ("+strings.Join(ph, ", ")+")")
		case gateway.OpContains:
			s, _ := f.Value.(string)
			conds = append(conds, f.Field+" ILIKE "+b.arg("%"+escapeLike(s)+"%"))
		default:
			op, ok := comparisons[f.Op]
			if !ok {
				return fmt.Errorf("sqlstore: unsupported operator %q", f.Op)
			}
			conds = append(conds, f.Field+" "+op+" "+b.arg(f.Value))
		}
	}
	b.sql.WriteString(" WHERE " + strings.Join(conds, " AND "))
	return nil
}

func insertSQL(table string, row gateway.Row) (string, []interface{}, error) {
	if err := checkIdent(table); err != nil {
		return "", nil, err
	}
	var b builder
	cols := sortedColumns(row)
	ph := make([]string, len(cols))
	for i, c := range cols {
		if err := checkIdent(c); err != nil {
			return "", nil, err
		}
		ph[i] = b.arg(row[c])
	}
	query := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(ph, ", ") + ")"
	return query, b.args, nil
}

func sortedColumns(row gateway.Row) []string {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func checkIdent(name string) error {
	if !identifier.MatchString(name) {
		return fmt.Errorf("sqlstore: bad identifier %q", name)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func wrap(op, table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("sqlstore: %s %s: %w", op, table, gateway.ErrDuplicate)
	}
	return fmt.Errorf("sqlstore: %s %s: %w", op, table, err)
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int32:
		return int64(t)
	case time.Time:
		return t.UTC()
	}
	return v
}
