package sqlexec

import (
	"fmt"
	"strings"

	"github.com/relschema-eu/relschema/argtranslate"
	"github.com/relschema-eu/relschema/dialect"
)

// placeholderSet hands out positional parameter markers in the dialect's
// style: $1, $2, ... for Postgres, ? everywhere else.
type placeholderSet struct {
	numbered bool
	n        int
}

func (e *DB) placeholders() *placeholderSet {
	return &placeholderSet{numbered: e.dialect.Name == dialect.Postgres}
}

func (p *placeholderSet) next() string {
	p.n++
	if p.numbered {
		return fmt.Sprintf("$%d", p.n)
	}
	return "?"
}

func (p *placeholderSet) list(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = p.next()
	}
	return strings.Join(parts, ", ")
}

// quote wraps an identifier in the dialect's quoting style.
func (e *DB) quote(ident string) string {
	if e.dialect.Name == dialect.MySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// whereClause renders a translated filter tree into a " WHERE ..." suffix
// (empty for a match-all tree) plus its positional arguments.
func (e *DB) whereClause(node *argtranslate.WhereNode, ph *placeholderSet) (string, []interface{}) {
	expr, args := e.renderNode(node, ph)
	if expr == "" {
		return "", nil
	}
	return " WHERE " + expr, args
}

// renderNode mirrors argtranslate.Matches: leaves and And children combine
// with AND; an Or list's alternatives combine with OR into one group that is
// AND-joined with the rest, and an explicitly empty Or matches nothing.
func (e *DB) renderNode(node *argtranslate.WhereNode, ph *placeholderSet) (string, []interface{}) {
	if node == nil {
		return "", nil
	}

	var conditions []string
	var args []interface{}

	for _, leaf := range node.Leaves {
		expr, leafArgs := e.renderLeaf(leaf, ph)
		conditions = append(conditions, expr)
		args = append(args, leafArgs...)
	}
	for _, child := range node.And {
		expr, childArgs := e.renderNode(child, ph)
		if expr == "" {
			continue
		}
		conditions = append(conditions, "("+expr+")")
		args = append(args, childArgs...)
	}
	if node.HasOr {
		var alternatives []string
		for _, child := range node.Or {
			expr, childArgs := e.renderNode(child, ph)
			if expr == "" {
				expr = "1 = 1"
			}
			alternatives = append(alternatives, "("+expr+")")
			args = append(args, childArgs...)
		}
		if len(alternatives) == 0 {
			conditions = append(conditions, "1 = 0")
		} else {
			conditions = append(conditions, "("+strings.Join(alternatives, " OR ")+")")
		}
	}

	return strings.Join(conditions, " AND "), args
}

func (e *DB) renderLeaf(leaf argtranslate.LeafCondition, ph *placeholderSet) (string, []interface{}) {
	col := e.quote(leaf.Column)
	switch leaf.Op {
	case dialect.OpEq:
		return fmt.Sprintf("%s = %s", col, ph.next()), []interface{}{leaf.Value}
	case dialect.OpNe:
		return fmt.Sprintf("%s <> %s", col, ph.next()), []interface{}{leaf.Value}
	case dialect.OpGt:
		return fmt.Sprintf("%s > %s", col, ph.next()), []interface{}{leaf.Value}
	case dialect.OpGte:
		return fmt.Sprintf("%s >= %s", col, ph.next()), []interface{}{leaf.Value}
	case dialect.OpLt:
		return fmt.Sprintf("%s < %s", col, ph.next()), []interface{}{leaf.Value}
	case dialect.OpLte:
		return fmt.Sprintf("%s <= %s", col, ph.next()), []interface{}{leaf.Value}
	case dialect.OpIsNull:
		if want, _ := leaf.Value.(bool); want {
			return col + " IS NULL", nil
		}
		return col + " IS NOT NULL", nil
	case dialect.OpInArray, dialect.OpNotInArray:
		items, _ := leaf.Value.([]interface{})
		if len(items) == 0 {
			// IN over an empty list matches nothing; NOT IN matches all.
			if leaf.Op == dialect.OpInArray {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		op := "IN"
		if leaf.Op == dialect.OpNotInArray {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, op, ph.list(len(items))), items
	case dialect.OpLike:
		return fmt.Sprintf("%s LIKE %s", col, ph.next()), []interface{}{leaf.Value}
	case dialect.OpNotLike:
		return fmt.Sprintf("%s NOT LIKE %s", col, ph.next()), []interface{}{leaf.Value}
	case dialect.OpILike:
		return fmt.Sprintf("%s ILIKE %s", col, ph.next()), []interface{}{leaf.Value}
	case dialect.OpNotILike:
		return fmt.Sprintf("%s NOT ILIKE %s", col, ph.next()), []interface{}{leaf.Value}
	case dialect.OpArrayContains:
		return fmt.Sprintf("%s @> %s", col, ph.next()), []interface{}{leaf.Value}
	case dialect.OpArrayContained:
		return fmt.Sprintf("%s <@ %s", col, ph.next()), []interface{}{leaf.Value}
	case dialect.OpArrayOverlaps:
		return fmt.Sprintf("%s && %s", col, ph.next()), []interface{}{leaf.Value}
	default:
		// The argument translator rejects unknown operators before a plan
		// reaches the executor.
		return "1 = 0", nil
	}
}
