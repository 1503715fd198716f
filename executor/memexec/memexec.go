// Package memexec is an in-memory executor.Executor used by the test suite
// and by the relschema demo CLI's demo mode, so the compiled API is fully
// exercisable without a live database. Rows are plain map[string]interface{};
// nested relations and filter trees are resolved in Go instead of being
// delegated to a driver.
package memexec

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/relschema-eu/relschema/apperrors"
	"github.com/relschema-eu/relschema/argtranslate"
	"github.com/relschema-eu/relschema/executor"
	"github.com/relschema-eu/relschema/schema"
)

// Store is an in-memory executor.Executor backed by one slice of rows per
// table. It is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	tables *schema.Registry
	rows   map[string][]map[string]interface{}
	nextID map[string]int64
}

// New builds a Store seeded with the given rows per table name. Rows are
// copied so later mutation of the seed map does not alias the store.
func New(tables *schema.Registry, seed map[string][]map[string]interface{}) *Store {
	s := &Store{
		tables: tables,
		rows:   make(map[string][]map[string]interface{}),
		nextID: make(map[string]int64),
	}
	for table, rows := range seed {
		for _, row := range rows {
			s.rows[table] = append(s.rows[table], copyRow(row))
		}
	}
	for _, t := range tables.Tables() {
		s.nextID[t.Name] = s.maxAutoID(t) + 1
	}
	return s
}

func (s *Store) maxAutoID(t schema.Table) int64 {
	var pk string
	for _, col := range t.Columns {
		if col.AutoGenerated {
			pk = col.Name
			break
		}
	}
	if pk == "" {
		return 0
	}
	var max int64
	for _, row := range s.rows[t.Name] {
		if n, ok := toInt64(row[pk]); ok && n > max {
			max = n
		}
	}
	return max
}

func copyRow(row map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// SelectMany returns every row matching p, with nested relations resolved
// and embedded under their relation name.
func (s *Store) SelectMany(ctx context.Context, p executor.SelectManyParams) ([]map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectMany(p.Table, p.Where, p.OrderBy, p.Offset, p.Limit, p.NestedRelations)
}

// SelectFirst returns the first matching row (nil if none), honoring Offset
// as "skip N, return the next one".
func (s *Store) SelectFirst(ctx context.Context, p executor.SelectFirstParams) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	one := 1
	rows, err := s.selectMany(p.Table, p.Where, p.OrderBy, p.Offset, &one, p.NestedRelations)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *Store) selectMany(table string, where *argtranslate.WhereNode, order []argtranslate.OrderTerm, offset, limit *int, nested map[string]*executor.NestedRelation) ([]map[string]interface{}, error) {
	matched := make([]map[string]interface{}, 0, len(s.rows[table]))
	for _, row := range s.rows[table] {
		if argtranslate.Matches(where, row, leafMatches) {
			matched = append(matched, copyRow(row))
		}
	}
	sortRows(matched, order)
	matched = page(matched, offset, limit)

	for _, row := range matched {
		if err := s.resolveNested(row, nested); err != nil {
			return nil, err
		}
	}
	return matched, nil
}

func (s *Store) resolveNested(row map[string]interface{}, nested map[string]*executor.NestedRelation) error {
	for name, rel := range nested {
		joinWhere := &argtranslate.WhereNode{}
		for _, pair := range rel.Join {
			joinWhere.Leaves = append(joinWhere.Leaves, argtranslate.LeafCondition{
				Column: pair.TargetColumn,
				Op:     "eq",
				Value:  row[pair.OwningColumn],
			})
		}
		combined := &argtranslate.WhereNode{And: []*argtranslate.WhereNode{joinWhere, rel.Where}}

		if rel.Cardinality == schema.Many {
			children, err := s.selectMany(rel.TargetTable, combined, rel.OrderBy, rel.Offset, rel.Limit, rel.NestedRelations)
			if err != nil {
				return fmt.Errorf("memexec: relation %q: %w", name, err)
			}
			row[name] = children
			continue
		}

		one := 1
		children, err := s.selectMany(rel.TargetTable, combined, rel.OrderBy, rel.Offset, &one, rel.NestedRelations)
		if err != nil {
			return fmt.Errorf("memexec: relation %q: %w", name, err)
		}
		if len(children) == 0 {
			row[name] = nil
		} else {
			row[name] = children[0]
		}
	}
	return nil
}

func sortRows(rows []map[string]interface{}, order []argtranslate.OrderTerm) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, term := range order {
			cmp, ok := compareValues(rows[i][term.Column], rows[j][term.Column])
			if !ok || cmp == 0 {
				continue
			}
			if term.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func page(rows []map[string]interface{}, offset, limit *int) []map[string]interface{} {
	start := 0
	if offset != nil {
		start = *offset
	}
	if start > len(rows) {
		start = len(rows)
	}
	rows = rows[start:]
	if limit != nil && *limit < len(rows) {
		rows = rows[:*limit]
	}
	return rows
}

// Insert appends rows atomically: either every row is appended and assigned
// auto-generated columns, or (on a primary-key collision, within the batch
// or against existing data) none are and a DatabaseError is returned.
func (s *Store) Insert(ctx context.Context, table string, rows []map[string]interface{}) ([]map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables.Table(table)
	if !ok {
		return nil, fmt.Errorf("memexec: unknown table %q", table)
	}

	prepared := make([]map[string]interface{}, len(rows))
	seenIDs := make(map[int64]bool)
	nextID := s.nextID[table]

	for i, row := range rows {
		prepared[i] = copyRow(row)
		for _, col := range t.Columns {
			if !col.AutoGenerated {
				continue
			}
			if _, has := prepared[i][col.Name]; !has {
				prepared[i][col.Name] = nextID
				nextID++
			}
		}
		if pk := primaryKeyValue(t, prepared[i]); pk != nil {
			id, _ := toInt64(pk)
			if seenIDs[id] || s.rowWithPK(t, id) {
				return nil, apperrors.Database(fmt.Errorf("duplicate key %d", id), "memexec: duplicate primary key on table %q", table)
			}
			seenIDs[id] = true
		}
	}

	s.rows[table] = append(s.rows[table], prepared...)
	s.nextID[table] = nextID

	out := make([]map[string]interface{}, len(prepared))
	for i, row := range prepared {
		out[i] = copyRow(row)
	}
	return out, nil
}

// InsertOne inserts a single row.
func (s *Store) InsertOne(ctx context.Context, table string, row map[string]interface{}) (map[string]interface{}, error) {
	rows, err := s.Insert(ctx, table, []map[string]interface{}{row})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

func primaryKeyValue(t schema.Table, row map[string]interface{}) interface{} {
	if len(t.PrimaryKey) != 1 {
		return nil
	}
	return row[t.PrimaryKey[0]]
}

func (s *Store) rowWithPK(t schema.Table, id int64) bool {
	if len(t.PrimaryKey) != 1 {
		return false
	}
	pk := t.PrimaryKey[0]
	for _, row := range s.rows[t.Name] {
		if n, ok := toInt64(row[pk]); ok && n == id {
			return true
		}
	}
	return false
}

// Update applies set to every row matching p.Where, returning the full
// post-image of updated rows.
func (s *Store) Update(ctx context.Context, p executor.UpdateParams) ([]map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated []map[string]interface{}
	for _, row := range s.rows[p.Table] {
		if !argtranslate.Matches(p.Where, row, leafMatches) {
			continue
		}
		for k, v := range p.Set {
			row[k] = v
		}
		updated = append(updated, copyRow(row))
	}
	return updated, nil
}

// Delete removes every row matching p.Where, returning the pre-image of
// deleted rows.
func (s *Store) Delete(ctx context.Context, p executor.DeleteParams) ([]map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rows[p.Table][:0]
	var deleted []map[string]interface{}
	for _, row := range s.rows[p.Table] {
		if argtranslate.Matches(p.Where, row, leafMatches) {
			deleted = append(deleted, copyRow(row))
			continue
		}
		kept = append(kept, row)
	}
	s.rows[p.Table] = kept
	return deleted, nil
}

// WithTransaction satisfies executor.Transactional. The in-memory store has
// no partial-failure modes worth rolling back beyond what Insert already
// guards atomically, so this simply runs fn against the same store.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx executor.Executor) error) error {
	return fn(s)
}

func leafMatches(leaf argtranslate.LeafCondition, row map[string]interface{}) bool {
	v, present := row[leaf.Column]
	switch leaf.Op {
	case "isNull":
		wantNull, _ := leaf.Value.(bool)
		return (!present || v == nil) == wantNull
	case "eq":
		return valuesEqual(v, leaf.Value)
	case "ne":
		return !valuesEqual(v, leaf.Value)
	case "inArray":
		list, _ := leaf.Value.([]interface{})
		for _, item := range list {
			if valuesEqual(v, item) {
				return true
			}
		}
		return false
	case "notInArray":
		list, _ := leaf.Value.([]interface{})
		for _, item := range list {
			if valuesEqual(v, item) {
				return false
			}
		}
		return true
	case "gt", "gte", "lt", "lte":
		cmp, ok := compareValues(v, leaf.Value)
		if !ok {
			return false
		}
		switch leaf.Op {
		case "gt":
			return cmp > 0
		case "gte":
			return cmp >= 0
		case "lt":
			return cmp < 0
		default:
			return cmp <= 0
		}
	case "like", "notLike", "ilike", "notIlike":
		s, _ := v.(string)
		pattern, _ := leaf.Value.(string)
		ci := leaf.Op == "ilike" || leaf.Op == "notIlike"
		matched := likeMatch(s, pattern, ci)
		if leaf.Op == "notLike" || leaf.Op == "notIlike" {
			return !matched
		}
		return matched
	case "arrayContains", "arrayContained", "arrayOverlaps":
		return arrayOpMatches(string(leaf.Op), v, leaf.Value)
	default:
		return false
	}
}

func valuesEqual(a, b interface{}) bool {
	if af, ok := toFloat64(a); ok {
		if bf, ok := toFloat64(b); ok {
			return af == bf
		}
	}
	return a == b
}

func compareValues(a, b interface{}) (int, bool) {
	if af, ok := toFloat64(a); ok {
		if bf, ok := toFloat64(b); ok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func likeMatch(s, pattern string, caseInsensitive bool) bool {
	if caseInsensitive {
		s = strings.ToLower(s)
		pattern = strings.ToLower(pattern)
	}
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func arrayOpMatches(op string, v, want interface{}) bool {
	vList, _ := v.([]interface{})
	wantList, _ := want.([]interface{})
	switch op {
	case "arrayContains":
		for _, w := range wantList {
			found := false
			for _, item := range vList {
				if valuesEqual(item, w) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case "arrayContained":
		for _, item := range vList {
			found := false
			for _, w := range wantList {
				if valuesEqual(item, w) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case "arrayOverlaps":
		for _, item := range vList {
			for _, w := range wantList {
				if valuesEqual(item, w) {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}
