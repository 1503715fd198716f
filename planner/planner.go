// Package planner flattens a GraphQL resolver's selection set into a
// SelectionPlan the entity layer hands to the executor: which columns to
// fetch, which relations to follow (and with what arguments), and whether the
// client asked for __typename (never forwarded to the executor). Fragment
// spreads and inline fragments are expanded in a pre-order walk with
// type-condition filtering.
package planner

import (
	"fmt"
	"strconv"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"github.com/relschema-eu/relschema/schema"
)

// SelectionPlan is what a resolver needs to ask the executor for: a flat
// column list plus, per requested relation, a nested plan and the arguments
// the client supplied on that relation field.
type SelectionPlan struct {
	Columns          []string
	Relations        map[string]*RelationPlan
	RequestsTypename bool

	// Injected lists the columns appended to Columns that the client did not
	// request: primary-key columns and the owning-side join columns of
	// requested relations. The Entity Generator strips them back out of the
	// marshaled output.
	Injected []string
}

// RelationPlan pairs a nested SelectionPlan with the raw (untranslated)
// GraphQL argument values the client passed to the relation field; the
// Argument Translator turns Args into executor filter/order/limit values.
type RelationPlan struct {
	Plan *SelectionPlan
	Args map[string]interface{}
}

func newPlan() *SelectionPlan {
	return &SelectionPlan{Relations: make(map[string]*RelationPlan)}
}

// Plan builds a SelectionPlan for the object currently being resolved,
// reading info's FieldASTs (normally length one, more if the operation merges
// identically-aliased fields) and Fragments against table's
// columns/relations.
func Plan(info graphql.ResolveInfo, table schema.Table) (*SelectionPlan, error) {
	plan := newPlan()
	for _, field := range info.FieldASTs {
		if field.SelectionSet == nil {
			continue
		}
		if err := walkSelectionSet(plan, field.SelectionSet, table, info, ""); err != nil {
			return nil, err
		}
	}
	injectPrimaryKey(plan, table)
	return plan, nil
}

func injectPrimaryKey(plan *SelectionPlan, table schema.Table) {
	for _, pk := range table.PrimaryKey {
		if !hasColumn(plan.Columns, pk) {
			plan.Columns = append(plan.Columns, pk)
			plan.Injected = append(plan.Injected, pk)
		}
	}
}

func hasColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

// walkSelectionSet walks one selection set against table. wrapperName is the
// relation-wrapper type name the selection is spread against when walking a
// nested relation field, empty at the top level.
func walkSelectionSet(plan *SelectionPlan, set *ast.SelectionSet, table schema.Table, info graphql.ResolveInfo, wrapperName string) error {
	for _, sel := range set.Selections {
		switch node := sel.(type) {
		case *ast.Field:
			if err := walkField(plan, node, table, info); err != nil {
				return err
			}
		case *ast.FragmentSpread:
			defNode, ok := info.Fragments[node.Name.Value]
			if !ok {
				return fmt.Errorf("planner: unknown fragment %q", node.Name.Value)
			}
			def, ok := defNode.(*ast.FragmentDefinition)
			if !ok {
				return fmt.Errorf("planner: fragment %q is not a fragment definition", node.Name.Value)
			}
			if !typeConditionMatches(def.TypeCondition, table, wrapperName) {
				continue
			}
			if err := walkSelectionSet(plan, def.SelectionSet, table, info, wrapperName); err != nil {
				return err
			}
		case *ast.InlineFragment:
			if !typeConditionMatches(node.TypeCondition, table, wrapperName) {
				continue
			}
			if err := walkSelectionSet(plan, node.SelectionSet, table, info, wrapperName); err != nil {
				return err
			}
		}
	}
	return nil
}

// typeConditionMatches reports whether an inline fragment or fragment
// definition's type condition applies to table. This compiler mints exactly
// one SelectItem object per table and no interfaces/unions, so a type
// condition applies iff it names that table's own aliases or the relation
// wrapper currently being walked; an absent condition always applies.
func typeConditionMatches(cond *ast.Named, table schema.Table, wrapperName string) bool {
	if cond == nil {
		return true
	}
	name := cond.Name.Value
	if wrapperName != "" && name == wrapperName {
		return true
	}
	return name == pascal(table.Name)+"SelectItem" || name == pascal(table.Name)+"Item"
}

func walkField(plan *SelectionPlan, field *ast.Field, table schema.Table, info graphql.ResolveInfo) error {
	name := field.Name.Value
	if name == "__typename" {
		plan.RequestsTypename = true
		return nil
	}

	if _, ok := table.Column(name); ok {
		if !hasColumn(plan.Columns, name) {
			plan.Columns = append(plan.Columns, name)
		}
		return nil
	}

	rel, ok := table.Relation(name)
	if !ok {
		// Unknown field (e.g. resolved purely client-side); nothing for the
		// executor to fetch.
		return nil
	}

	if _, seen := plan.Relations[name]; seen {
		// Repeated relation (typically via fragment merging): the
		// earliest-seen argument set wins, but its nested selection still
		// needs to absorb any additional fields the repeat asked for.
		if field.SelectionSet != nil {
			target, ok := lookupTarget(info, rel.TargetTable)
			if !ok {
				return fmt.Errorf("planner: relation %q targets unknown table %q", name, rel.TargetTable)
			}
			return walkSelectionSet(plan.Relations[name].Plan, field.SelectionSet, target, info, wrapperTypeName(table, name))
		}
		return nil
	}

	args, err := argumentValues(field.Arguments, info.VariableValues)
	if err != nil {
		return fmt.Errorf("planner: relation %q: %w", name, err)
	}

	nested := newPlan()
	if field.SelectionSet != nil {
		target, ok := lookupTarget(info, rel.TargetTable)
		if !ok {
			return fmt.Errorf("planner: relation %q targets unknown table %q", name, rel.TargetTable)
		}
		if err := walkSelectionSet(nested, field.SelectionSet, target, info, wrapperTypeName(table, name)); err != nil {
			return err
		}
		injectPrimaryKey(nested, target)
	}

	// The owning side of the join predicate must be fetched even when the
	// client did not select it, or the executor cannot correlate children.
	for _, pair := range rel.Join {
		if !hasColumn(plan.Columns, pair.OwningColumn) {
			plan.Columns = append(plan.Columns, pair.OwningColumn)
			plan.Injected = append(plan.Injected, pair.OwningColumn)
		}
	}

	plan.Relations[name] = &RelationPlan{Plan: nested, Args: args}
	return nil
}

// lookupTarget resolves rel.TargetTable against the schema registry the
// resolver chain is running over. The registry isn't reachable from
// graphql.ResolveInfo directly, so callers that need relation recursion pass
// it in via RootValue (see entity.Bundle.RootObject).
func lookupTarget(info graphql.ResolveInfo, tableName string) (schema.Table, bool) {
	root, ok := info.RootValue.(map[string]interface{})
	if !ok {
		return schema.Table{}, false
	}
	reg, ok := root["tables"].(*schema.Registry)
	if !ok {
		return schema.Table{}, false
	}
	return reg.Table(tableName)
}

func argumentValues(args []*ast.Argument, vars map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(args))
	for _, arg := range args {
		out[arg.Name.Value] = astValue(arg.Value, vars)
	}
	return out, nil
}

func astValue(v ast.Value, vars map[string]interface{}) interface{} {
	switch val := v.(type) {
	case *ast.Variable:
		return vars[val.Name.Value]
	case *ast.StringValue:
		return val.Value
	case *ast.EnumValue:
		return val.Value
	case *ast.BooleanValue:
		return val.Value
	case *ast.IntValue:
		n, err := strconv.ParseInt(val.Value, 10, 64)
		if err != nil {
			return val.Value
		}
		return n
	case *ast.FloatValue:
		f, err := strconv.ParseFloat(val.Value, 64)
		if err != nil {
			return val.Value
		}
		return f
	case *ast.ListValue:
		out := make([]interface{}, len(val.Values))
		for i, item := range val.Values {
			out[i] = astValue(item, vars)
		}
		return out
	case *ast.ObjectValue:
		out := make(map[string]interface{}, len(val.Fields))
		for _, f := range val.Fields {
			out[f.Name.Value] = astValue(f.Value, vars)
		}
		return out
	default:
		return nil
	}
}

// wrapperTypeName mirrors the type registry's <Owner><Relation>Relation
// naming for the object type a relation field is typed as.
func wrapperTypeName(owner schema.Table, relation string) string {
	return pascal(owner.Name) + pascal(relation) + "Relation"
}

func pascal(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
