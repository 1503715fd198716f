package entity

import (
	"github.com/relschema-eu/relschema/codec"
	"github.com/relschema-eu/relschema/planner"
	"github.com/relschema-eu/relschema/schema"
)

// marshalRows marshals an executor row set through Value Codec's outgoing
// direction, recursing into embedded relation values per the plan.
func (g *generator) marshalRows(t schema.Table, plan *planner.SelectionPlan, rows []map[string]interface{}) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		marshaled, err := g.marshalRow(t, plan, row)
		if err != nil {
			return nil, err
		}
		out = append(out, marshaled)
	}
	return out, nil
}

// marshalRow marshals one row's column values and recursively its embedded
// relation values, then strips the columns the planner injected without the
// client asking (primary-key and owning-side join columns).
func (g *generator) marshalRow(t schema.Table, plan *planner.SelectionPlan, row map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(row))
	for name, v := range row {
		if col, ok := t.Column(name); ok {
			if !g.dialect.SupportsColumnKind(col.Kind) {
				continue
			}
			marshaled, err := codec.MarshalOut(g.dialect, col, v)
			if err != nil {
				return nil, err
			}
			out[name] = marshaled
			continue
		}

		rel, ok := t.Relation(name)
		if !ok || plan == nil {
			continue
		}
		rp, ok := plan.Relations[name]
		if !ok {
			continue
		}
		target, ok := g.tables.Table(rel.TargetTable)
		if !ok {
			continue
		}
		switch child := v.(type) {
		case []map[string]interface{}:
			children, err := g.marshalRows(target, rp.Plan, child)
			if err != nil {
				return nil, err
			}
			out[name] = children
		case map[string]interface{}:
			marshaled, err := g.marshalRow(target, rp.Plan, child)
			if err != nil {
				return nil, err
			}
			out[name] = marshaled
		case nil:
			out[name] = nil
		}
	}

	if plan != nil {
		for _, injected := range plan.Injected {
			delete(out, injected)
		}
	}
	return out, nil
}

// marshalRowIn runs a validated set/values map through Value Codec's incoming
// direction, column by column.
func (g *generator) marshalRowIn(t schema.Table, row map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(row))
	for name, v := range row {
		col, ok := t.Column(name)
		if !ok {
			continue
		}
		marshaled, err := codec.MarshalIn(g.dialect, col, v)
		if err != nil {
			return nil, err
		}
		out[name] = marshaled
	}
	return out, nil
}
