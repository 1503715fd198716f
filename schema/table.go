package schema

import "fmt"

// Table is a logical table descriptor: a name, its columns, and its declared
// relations. Tables are immutable once registered with a Registry.
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
	Relations  []Relation
}

// Column returns the column descriptor named name, or false if absent.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Relation returns the relation descriptor named name, or false if absent.
func (t Table) Relation(name string) (Relation, bool) {
	for _, r := range t.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// IsPrimaryKey reports whether column is part of the table's primary key.
func (t Table) IsPrimaryKey(column string) bool {
	for _, pk := range t.PrimaryKey {
		if pk == column {
			return true
		}
	}
	return false
}

// Registry is the set of tables the compiler runs against, keyed by table
// name. It is built once by the caller and consumed read-only by every other
// component.
type Registry struct {
	tables map[string]Table
	order  []string
}

// NewRegistry validates and indexes a set of tables: every relation's
// owning/target columns must exist and be type-compatible, and no two
// relations on the same table may share a name.
func NewRegistry(tables []Table) (*Registry, error) {
	reg := &Registry{tables: make(map[string]Table, len(tables))}
	for _, t := range tables {
		if _, exists := reg.tables[t.Name]; exists {
			return nil, fmt.Errorf("schema: duplicate table %q", t.Name)
		}
		reg.tables[t.Name] = t
		reg.order = append(reg.order, t.Name)
	}
	for _, t := range tables {
		if err := reg.validateTable(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (r *Registry) validateTable(t Table) error {
	seen := make(map[string]bool, len(t.Relations))
	for _, rel := range t.Relations {
		if seen[rel.Name] {
			return fmt.Errorf("schema: table %q has two relations named %q", t.Name, rel.Name)
		}
		seen[rel.Name] = true

		target, ok := r.tables[rel.TargetTable]
		if !ok {
			return fmt.Errorf("schema: table %q relation %q targets unknown table %q", t.Name, rel.Name, rel.TargetTable)
		}
		if len(rel.Join) == 0 {
			return fmt.Errorf("schema: table %q relation %q has no join predicate", t.Name, rel.Name)
		}
		for _, pair := range rel.Join {
			owning, ok := t.Column(pair.OwningColumn)
			if !ok {
				return fmt.Errorf("schema: table %q relation %q: owning column %q not found", t.Name, rel.Name, pair.OwningColumn)
			}
			targetCol, ok := target.Column(pair.TargetColumn)
			if !ok {
				return fmt.Errorf("schema: table %q relation %q: target column %q not found on %q", t.Name, rel.Name, pair.TargetColumn, rel.TargetTable)
			}
			if !compatibleKinds(owning.Kind, targetCol.Kind) {
				return fmt.Errorf("schema: table %q relation %q: column kinds %s/%s incompatible", t.Name, rel.Name, owning.Kind, targetCol.Kind)
			}
		}
	}
	return nil
}

// compatibleKinds treats the integral kinds as mutually join-compatible
// (e.g. an int32 id referencing an int64 id), everything else must match
// exactly.
func compatibleKinds(a, b LogicalType) bool {
	if a == b {
		return true
	}
	integral := map[LogicalType]bool{Int32: true, Int64: true, BigInt: true}
	return integral[a] && integral[b]
}

// Table looks up a table by name.
func (r *Registry) Table(name string) (Table, bool) {
	t, ok := r.tables[name]
	return t, ok
}

// Tables returns every registered table in registration order.
func (r *Registry) Tables() []Table {
	out := make([]Table, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tables[name])
	}
	return out
}
