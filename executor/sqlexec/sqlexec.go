// Package sqlexec is a dialect-aware executor.Executor that renders
// translated plans into SQL text plus positional arguments and runs them
// through database/sql: pgx's stdlib driver for the Postgres-like dialect,
// go-sql-driver/mysql for the MySQL-like one, and modernc.org/sqlite for the
// SQLite-like one. Nested relations are realized as batched IN-queries
// against the parent row set, falling back to per-parent queries when the
// relation carries its own offset/limit or a composite join.
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/relschema-eu/relschema/argtranslate"
	"github.com/relschema-eu/relschema/dialect"
	"github.com/relschema-eu/relschema/executor"
	"github.com/relschema-eu/relschema/schema"
)

// querier is the slice of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// DB is a SQL-backed executor over one open connection pool.
type DB struct {
	q       querier
	db      *sql.DB // nil inside a transaction
	dialect dialect.Dialect
	tables  *schema.Registry
}

// driverName maps a dialect onto its registered database/sql driver.
func driverName(d dialect.Dialect) (string, error) {
	switch d.Name {
	case dialect.Postgres:
		return "pgx", nil
	case dialect.MySQL:
		return "mysql", nil
	case dialect.SQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("sqlexec: unknown dialect %q", d.Name)
	}
}

// Open opens a connection pool for the dialect's driver and wraps it.
func Open(d dialect.Dialect, tables *schema.Registry, dsn string) (*DB, error) {
	driver, err := driverName(d)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlexec: open %s: %w", driver, err)
	}
	return New(db, d, tables), nil
}

// New wraps an already-open pool. Used by Open and by tests that substitute a
// mock connection.
func New(db *sql.DB, d dialect.Dialect, tables *schema.Registry) *DB {
	return &DB{q: db, db: db, dialect: d, tables: tables}
}

// Close releases the underlying pool.
func (e *DB) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

// WithTransaction satisfies executor.Transactional: fn runs against a
// transaction-scoped executor, committed on nil return and rolled back
// otherwise.
func (e *DB) WithTransaction(ctx context.Context, fn func(tx executor.Executor) error) error {
	if e.db == nil {
		// Already inside a transaction; nesting just reuses it.
		return fn(e)
	}
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return e.dialect.ClassifyError(err)
	}
	scoped := &DB{q: tx, dialect: e.dialect, tables: e.tables}
	if err := fn(scoped); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return e.dialect.ClassifyError(err)
	}
	return nil
}

// SelectMany fetches matching rows and resolves nested relations.
func (e *DB) SelectMany(ctx context.Context, p executor.SelectManyParams) ([]map[string]interface{}, error) {
	rows, err := e.selectRows(ctx, p.Table, p.Columns, p.Where, p.OrderBy, p.Offset, p.Limit)
	if err != nil {
		return nil, err
	}
	if err := e.resolveNested(ctx, rows, p.NestedRelations); err != nil {
		return nil, err
	}
	return rows, nil
}

// SelectFirst fetches the first matching row, nil when none matches.
func (e *DB) SelectFirst(ctx context.Context, p executor.SelectFirstParams) (map[string]interface{}, error) {
	one := 1
	rows, err := e.selectRows(ctx, p.Table, p.Columns, p.Where, p.OrderBy, p.Offset, &one)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if err := e.resolveNested(ctx, rows, p.NestedRelations); err != nil {
		return nil, err
	}
	return rows[0], nil
}

// Insert appends rows in one statement. Dialects with RETURNING hand back the
// inserted rows; the MySQL-like dialect cannot, so it returns nil rows and the
// caller reports only success.
func (e *DB) Insert(ctx context.Context, table string, rows []map[string]interface{}) ([]map[string]interface{}, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	columns := insertColumns(rows)
	var b strings.Builder
	ph := e.placeholders()
	args := make([]interface{}, 0, len(rows)*len(columns))

	fmt.Fprintf(&b, "INSERT INTO %s (", e.quote(table))
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.quote(col))
	}
	b.WriteString(") VALUES ")
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, col := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			if v, ok := row[col]; ok {
				b.WriteString(ph.next())
				args = append(args, v)
			} else {
				b.WriteString("DEFAULT")
			}
		}
		b.WriteString(")")
	}

	if !e.dialect.SupportsReturning {
		if _, err := e.q.ExecContext(ctx, b.String(), args...); err != nil {
			return nil, e.dialect.ClassifyError(err)
		}
		return nil, nil
	}

	b.WriteString(" RETURNING *")
	result, err := e.q.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, e.dialect.ClassifyError(err)
	}
	defer result.Close()
	return scanRowsToMaps(result)
}

// InsertOne inserts a single row.
func (e *DB) InsertOne(ctx context.Context, table string, row map[string]interface{}) (map[string]interface{}, error) {
	rows, err := e.Insert(ctx, table, []map[string]interface{}{row})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Update applies set to every matching row and returns the post-image. On the
// MySQL-like dialect the post-image is re-read by primary key, since UPDATE
// cannot return rows there.
func (e *DB) Update(ctx context.Context, p executor.UpdateParams) ([]map[string]interface{}, error) {
	setColumns := sortedKeys(p.Set)
	if len(setColumns) == 0 {
		return nil, nil
	}

	if !e.dialect.SupportsReturning {
		return e.updateViaReread(ctx, p, setColumns)
	}

	var b strings.Builder
	ph := e.placeholders()
	var args []interface{}

	fmt.Fprintf(&b, "UPDATE %s SET ", e.quote(p.Table))
	for i, col := range setColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = %s", e.quote(col), ph.next())
		args = append(args, p.Set[col])
	}
	whereSQL, whereArgs := e.whereClause(p.Where, ph)
	b.WriteString(whereSQL)
	args = append(args, whereArgs...)
	b.WriteString(" RETURNING *")

	result, err := e.q.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, e.dialect.ClassifyError(err)
	}
	defer result.Close()
	return scanRowsToMaps(result)
}

// updateViaReread selects the matching primary keys, updates, then re-reads
// the post-image by key.
func (e *DB) updateViaReread(ctx context.Context, p executor.UpdateParams, setColumns []string) ([]map[string]interface{}, error) {
	t, ok := e.tables.Table(p.Table)
	if !ok || len(t.PrimaryKey) != 1 {
		return nil, fmt.Errorf("sqlexec: update on %q needs a single-column primary key on this dialect", p.Table)
	}
	pk := t.PrimaryKey[0]

	before, err := e.selectRows(ctx, p.Table, []string{pk}, p.Where, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	keys := make([]interface{}, len(before))
	for i, row := range before {
		keys[i] = row[pk]
	}
	if len(keys) == 0 {
		return []map[string]interface{}{}, nil
	}

	var b strings.Builder
	ph := e.placeholders()
	var args []interface{}
	fmt.Fprintf(&b, "UPDATE %s SET ", e.quote(p.Table))
	for i, col := range setColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = %s", e.quote(col), ph.next())
		args = append(args, p.Set[col])
	}
	fmt.Fprintf(&b, " WHERE %s IN (%s)", e.quote(pk), ph.list(len(keys)))
	args = append(args, keys...)
	if _, err := e.q.ExecContext(ctx, b.String(), args...); err != nil {
		return nil, e.dialect.ClassifyError(err)
	}

	after := &argtranslate.WhereNode{Leaves: []argtranslate.LeafCondition{{Column: pk, Op: dialect.OpInArray, Value: keys}}}
	return e.selectRows(ctx, p.Table, nil, after, nil, nil, nil)
}

// Delete reads the pre-image of matching rows, deletes them, and returns the
// pre-image. One code path serves all three dialects.
func (e *DB) Delete(ctx context.Context, p executor.DeleteParams) ([]map[string]interface{}, error) {
	preImage, err := e.selectRows(ctx, p.Table, nil, p.Where, nil, nil, nil)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	ph := e.placeholders()
	fmt.Fprintf(&b, "DELETE FROM %s", e.quote(p.Table))
	whereSQL, args := e.whereClause(p.Where, ph)
	b.WriteString(whereSQL)
	if _, err := e.q.ExecContext(ctx, b.String(), args...); err != nil {
		return nil, e.dialect.ClassifyError(err)
	}
	return preImage, nil
}

// selectRows renders and runs one SELECT.
func (e *DB) selectRows(ctx context.Context, table string, columns []string, where *argtranslate.WhereNode, order []argtranslate.OrderTerm, offset, limit *int) ([]map[string]interface{}, error) {
	var b strings.Builder
	ph := e.placeholders()

	b.WriteString("SELECT ")
	if len(columns) == 0 {
		b.WriteString("*")
	} else {
		for i, col := range columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(e.quote(col))
		}
	}
	fmt.Fprintf(&b, " FROM %s", e.quote(table))

	whereSQL, args := e.whereClause(where, ph)
	b.WriteString(whereSQL)

	if len(order) > 0 {
		b.WriteString(" ORDER BY ")
		for i, term := range order {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(e.quote(term.Column))
			if term.Desc {
				b.WriteString(" DESC")
			} else {
				b.WriteString(" ASC")
			}
		}
	}

	// MySQL refuses OFFSET without LIMIT; the documented escape hatch is an
	// effectively-unbounded limit.
	if limit == nil && offset != nil && e.dialect.Name == dialect.MySQL {
		b.WriteString(" LIMIT 18446744073709551615")
	} else if limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *limit)
	}
	if offset != nil {
		fmt.Fprintf(&b, " OFFSET %d", *offset)
	}

	rows, err := e.q.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, e.dialect.ClassifyError(err)
	}
	defer rows.Close()
	return scanRowsToMaps(rows)
}

// resolveNested fulfills each requested relation for the given parent rows.
// The single-join-pair, unpaginated case runs one batched IN-query; relations
// with their own offset/limit or a composite join run once per parent.
func (e *DB) resolveNested(ctx context.Context, parents []map[string]interface{}, nested map[string]*executor.NestedRelation) error {
	if len(parents) == 0 {
		return nil
	}
	for name, rel := range nested {
		if len(rel.Join) == 1 && rel.Offset == nil && rel.Limit == nil {
			if err := e.resolveBatched(ctx, parents, name, rel); err != nil {
				return err
			}
			continue
		}
		if err := e.resolvePerParent(ctx, parents, name, rel); err != nil {
			return err
		}
	}
	return nil
}

func (e *DB) resolveBatched(ctx context.Context, parents []map[string]interface{}, name string, rel *executor.NestedRelation) error {
	pair := rel.Join[0]

	seen := make(map[interface{}]bool, len(parents))
	keys := make([]interface{}, 0, len(parents))
	for _, parent := range parents {
		v := parent[pair.OwningColumn]
		if v == nil || seen[v] {
			continue
		}
		seen[v] = true
		keys = append(keys, v)
	}

	columns := withColumn(rel.Columns, pair.TargetColumn)
	join := &argtranslate.WhereNode{
		Leaves: []argtranslate.LeafCondition{{Column: pair.TargetColumn, Op: dialect.OpInArray, Value: keys}},
		And:    []*argtranslate.WhereNode{rel.Where},
	}
	children, err := e.selectRows(ctx, rel.TargetTable, columns, join, rel.OrderBy, nil, nil)
	if err != nil {
		return err
	}
	if err := e.resolveNested(ctx, children, rel.NestedRelations); err != nil {
		return err
	}

	grouped := make(map[interface{}][]map[string]interface{}, len(keys))
	for _, child := range children {
		k := keyValue(child[pair.TargetColumn])
		grouped[k] = append(grouped[k], child)
	}
	for _, parent := range parents {
		k := keyValue(parent[pair.OwningColumn])
		attach(parent, name, rel.Cardinality, grouped[k])
	}
	return nil
}

func (e *DB) resolvePerParent(ctx context.Context, parents []map[string]interface{}, name string, rel *executor.NestedRelation) error {
	for _, parent := range parents {
		join := &argtranslate.WhereNode{And: []*argtranslate.WhereNode{rel.Where}}
		for _, pair := range rel.Join {
			join.Leaves = append(join.Leaves, argtranslate.LeafCondition{
				Column: pair.TargetColumn,
				Op:     dialect.OpEq,
				Value:  parent[pair.OwningColumn],
			})
		}
		limit := rel.Limit
		if rel.Cardinality == schema.One && limit == nil {
			one := 1
			limit = &one
		}
		children, err := e.selectRows(ctx, rel.TargetTable, rel.Columns, join, rel.OrderBy, rel.Offset, limit)
		if err != nil {
			return err
		}
		if err := e.resolveNested(ctx, children, rel.NestedRelations); err != nil {
			return err
		}
		attach(parent, name, rel.Cardinality, children)
	}
	return nil
}

func attach(parent map[string]interface{}, name string, card schema.Cardinality, children []map[string]interface{}) {
	if card == schema.Many {
		if children == nil {
			children = []map[string]interface{}{}
		}
		parent[name] = children
		return
	}
	if len(children) == 0 {
		parent[name] = nil
		return
	}
	parent[name] = children[0]
}

// keyValue normalizes integral join keys so an int64 parent matches an int32
// child read back by a different driver.
func keyValue(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	default:
		return v
	}
}

func withColumn(columns []string, col string) []string {
	if len(columns) == 0 {
		return nil // SELECT *
	}
	for _, c := range columns {
		if c == col {
			return columns
		}
	}
	out := make([]string, 0, len(columns)+1)
	out = append(out, columns...)
	return append(out, col)
}

func insertColumns(rows []map[string]interface{}) []string {
	seen := map[string]bool{}
	var out []string
	for _, row := range rows {
		for _, col := range sortedKeys(row) {
			if !seen[col] {
				seen[col] = true
				out = append(out, col)
			}
		}
	}
	return out
}

func sortedKeys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// scanRowsToMaps reads every row into a column-keyed map, the same shape the
// rest of the pipeline works with.
func scanRowsToMaps(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
