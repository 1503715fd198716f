// Package argtranslate converts a resolver's raw GraphQL arguments (where,
// orderBy, offset, limit, set, values) into the shapes the executor contract
// expects, validating each against the dialect's operator table as it goes.
// The where argument is fully recursive:
// { field: {op: val}, OR: [...], AND: [...] }.
package argtranslate

import (
	"fmt"
	"sort"

	"github.com/relschema-eu/relschema/apperrors"
	"github.com/relschema-eu/relschema/codec"
	"github.com/relschema-eu/relschema/dialect"
	"github.com/relschema-eu/relschema/schema"
)

// LeafCondition is one column/operator/value comparison.
type LeafCondition struct {
	Column string
	Op     dialect.Operator
	Value  interface{}
}

// WhereNode is one node of a translated filter tree. Leaves are AND-combined
// with each other and with every node in And; Or, when present at all (even
// empty), holds alternatives OR-combined with each other, and that group is
// AND-combined with the rest. An explicit empty OR matches nothing.
type WhereNode struct {
	Leaves []LeafCondition
	And    []*WhereNode
	Or     []*WhereNode
	HasOr  bool
}

// TranslateWhere converts a parsed `where` argument (already coerced by
// graphql-go into nested map[string]interface{}/[]interface{} values) into a
// WhereNode. A nil/empty raw value means "match everything" and is
// represented as an empty, non-OR node (Matches always returns true for it).
func TranslateWhere(d dialect.Dialect, table schema.Table, raw interface{}) (*WhereNode, error) {
	if raw == nil {
		return &WhereNode{}, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, apperrors.Argument("argtranslate: where must be an object")
	}

	node := &WhereNode{}
	for key, val := range m {
		switch key {
		case "OR":
			node.HasOr = true
			children, err := translateCombinator(d, table, val)
			if err != nil {
				return nil, err
			}
			node.Or = children
		case "AND":
			children, err := translateCombinator(d, table, val)
			if err != nil {
				return nil, err
			}
			node.And = append(node.And, children...)
		default:
			col, ok := table.Column(key)
			if !ok {
				return nil, apperrors.Argument("argtranslate: unknown column %q in where", key)
			}
			ops, ok := val.(map[string]interface{})
			if !ok {
				return nil, apperrors.Argument("argtranslate: where.%s must be an object of operators", key)
			}
			for opName, opVal := range ops {
				op := dialect.Operator(opName)
				if !d.SupportsOperator(col, op) {
					return nil, apperrors.Argument("argtranslate: operator %q not supported for column %q on this dialect", opName, key)
				}
				value, err := marshalLeafValue(d, col, op, opVal)
				if err != nil {
					return nil, err
				}
				node.Leaves = append(node.Leaves, LeafCondition{Column: key, Op: op, Value: value})
			}
		}
	}
	return node, nil
}

// marshalLeafValue runs a comparison operand through Value Codec's incoming
// direction so the executor sees dialect-native values, not wire-form ones
// (e.g. a wide-integer operand arrives as a decimal string). isNull keeps its
// boolean, the string-pattern operators keep their pattern string.
func marshalLeafValue(d dialect.Dialect, col schema.Column, op dialect.Operator, raw interface{}) (interface{}, error) {
	if raw == nil {
		return nil, nil
	}
	elem := col
	elem.Nullable = true
	switch op {
	case dialect.OpIsNull:
		b, ok := raw.(bool)
		if !ok {
			return nil, apperrors.Argument("argtranslate: %s.isNull must be a boolean", col.Name)
		}
		return b, nil
	case dialect.OpLike, dialect.OpNotLike, dialect.OpILike, dialect.OpNotILike:
		s, ok := raw.(string)
		if !ok {
			return nil, apperrors.Argument("argtranslate: %s.%s must be a string pattern", col.Name, op)
		}
		return s, nil
	case dialect.OpInArray, dialect.OpNotInArray:
		list, ok := raw.([]interface{})
		if !ok {
			return nil, apperrors.Argument("argtranslate: %s.%s must be a list", col.Name, op)
		}
		out := make([]interface{}, len(list))
		for i, item := range list {
			v, err := codec.MarshalIn(d, elem, item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return codec.MarshalIn(d, elem, raw)
	}
}

func translateCombinator(d dialect.Dialect, table schema.Table, raw interface{}) ([]*WhereNode, error) {
	list, ok := raw.([]interface{})
	if !ok {
		return nil, apperrors.Argument("argtranslate: OR/AND must be a list of where objects")
	}
	out := make([]*WhereNode, 0, len(list))
	for _, item := range list {
		child, err := TranslateWhere(d, table, item)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

// Matches evaluates a translated filter tree against a row, used by the
// in-memory executor. leafMatch performs the actual operator comparison and is supplied by
// the caller, since the semantics of e.g. "like" over dialect-native values
// belong to the executor, not to argument translation.
func Matches(node *WhereNode, row map[string]interface{}, leafMatch func(LeafCondition, map[string]interface{}) bool) bool {
	if node == nil {
		return true
	}
	for _, leaf := range node.Leaves {
		if !leafMatch(leaf, row) {
			return false
		}
	}
	for _, child := range node.And {
		if !Matches(child, row, leafMatch) {
			return false
		}
	}
	if node.HasOr {
		if len(node.Or) == 0 {
			return false
		}
		matched := false
		for _, child := range node.Or {
			if Matches(child, row, leafMatch) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// OrderTerm is one resolved (column, direction) pair in priority order.
type OrderTerm struct {
	Column string
	Desc   bool
}

// TranslateOrderBy converts the `{column: {priority, direction}}` argument
// object into a priority-sorted term list, breaking priority ties by the
// column's declared position on the table.
func TranslateOrderBy(table schema.Table, raw interface{}) ([]OrderTerm, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, apperrors.Argument("argtranslate: orderBy must be an object")
	}

	type entry struct {
		term     OrderTerm
		priority int64
		index    int
	}
	entries := make([]entry, 0, len(m))
	for i, col := range table.Columns {
		val, ok := m[col.Name]
		if !ok {
			continue
		}
		term, ok := val.(map[string]interface{})
		if !ok {
			return nil, apperrors.Argument("argtranslate: orderBy.%s must be an object", col.Name)
		}
		priority, err := toInt64(term["priority"])
		if err != nil {
			return nil, apperrors.Argument("argtranslate: orderBy.%s.priority must be an integer", col.Name)
		}
		direction, _ := term["direction"].(string)
		if direction != "asc" && direction != "desc" {
			return nil, apperrors.Argument("argtranslate: orderBy.%s.direction must be \"asc\" or \"desc\"", col.Name)
		}
		entries = append(entries, entry{
			term:     OrderTerm{Column: col.Name, Desc: direction == "desc"},
			priority: priority,
			index:    i,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority > entries[j].priority
		}
		return entries[i].index < entries[j].index
	})

	out := make([]OrderTerm, len(entries))
	for i, e := range entries {
		out[i] = e.term
	}
	return out, nil
}

// TranslateLimit validates the `limit` argument. On a single-row field, limit
// must not be supplied at all and is implicitly 1; on a collection field, a
// supplied limit must be a positive integer and an absent one means
// unbounded (represented as nil).
func TranslateLimit(isCollection bool, raw interface{}) (*int, error) {
	if !isCollection {
		if raw != nil {
			return nil, apperrors.Argument("argtranslate: limit is not valid on a single-row field")
		}
		one := 1
		return &one, nil
	}
	if raw == nil {
		return nil, nil
	}
	n, err := toInt64(raw)
	if err != nil {
		return nil, apperrors.Argument("argtranslate: limit must be an integer")
	}
	if n <= 0 {
		return nil, apperrors.Argument("argtranslate: limit must be a positive integer")
	}
	out := int(n)
	return &out, nil
}

// TranslateOffset validates the `offset` argument: absent means no offset,
// present means a non-negative integer.
func TranslateOffset(raw interface{}) (*int, error) {
	if raw == nil {
		return nil, nil
	}
	n, err := toInt64(raw)
	if err != nil {
		return nil, apperrors.Argument("argtranslate: offset must be an integer")
	}
	if n < 0 {
		return nil, apperrors.Argument("argtranslate: offset must not be negative")
	}
	out := int(n)
	return &out, nil
}

// TranslateValues validates a single-row `values!` insert argument: an
// object whose keys are all real columns, with every non-nullable,
// non-defaulted, non-auto-generated column present.
func TranslateValues(table schema.Table, raw interface{}) (map[string]interface{}, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, apperrors.Validation("argtranslate: values must be an object")
	}
	if err := validateColumnKeys(table, m); err != nil {
		return nil, err
	}
	for _, col := range table.Columns {
		if col.AutoGenerated || col.Nullable || col.HasInsertDefault {
			continue
		}
		if _, ok := m[col.Name]; !ok {
			return nil, apperrors.Validation("argtranslate: values.%s is required", col.Name)
		}
	}
	return m, nil
}

// TranslateValuesList validates the `values: [non-null]!` bulk insert
// argument row by row.
func TranslateValuesList(table schema.Table, raw interface{}) ([]map[string]interface{}, error) {
	list, ok := raw.([]interface{})
	if !ok {
		return nil, apperrors.Validation("argtranslate: values must be a list of objects")
	}
	out := make([]map[string]interface{}, 0, len(list))
	for i, item := range list {
		row, err := TranslateValues(table, item)
		if err != nil {
			return nil, fmt.Errorf("argtranslate: values[%d]: %w", i, err)
		}
		out = append(out, row)
	}
	return out, nil
}

// TranslateSet validates an update mutation's `set!` argument: an object of
// real column names only, every field optional (an omitted column is left
// unchanged by update).
func TranslateSet(table schema.Table, raw interface{}) (map[string]interface{}, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, apperrors.Validation("argtranslate: set must be an object")
	}
	if err := validateColumnKeys(table, m); err != nil {
		return nil, err
	}
	return m, nil
}

func validateColumnKeys(table schema.Table, m map[string]interface{}) error {
	for key := range m {
		if _, ok := table.Column(key); !ok {
			return apperrors.Validation("argtranslate: unknown column %q", key)
		}
	}
	return nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("argtranslate: value %v is not an integer", v)
	}
}
