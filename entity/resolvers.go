package entity

import (
	"context"
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/relschema-eu/relschema/argtranslate"
	"github.com/relschema-eu/relschema/executor"
	"github.com/relschema-eu/relschema/planner"
	"github.com/relschema-eu/relschema/schema"
)

func (g *generator) singleField(t schema.Table, tt TableTypes) *graphql.Field {
	return &graphql.Field{
		Type:        tt.SelectItem,
		Description: fmt.Sprintf("Fetch one row from %s; null when no row matches", t.Name),
		Args: graphql.FieldConfigArgument{
			"where":   &graphql.ArgumentConfig{Type: tt.Filters},
			"orderBy": &graphql.ArgumentConfig{Type: tt.OrderBy},
			"offset":  &graphql.ArgumentConfig{Type: graphql.Int},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			plan, err := planner.Plan(p.Info, t)
			if err != nil {
				return nil, err
			}
			where, order, offset, _, err := g.translateListArgs(t, p.Args, false)
			if err != nil {
				return nil, err
			}
			nested, err := g.nestedRelations(t, plan)
			if err != nil {
				return nil, err
			}
			row, err := g.exec.SelectFirst(p.Context, executor.SelectFirstParams{
				Table:           t.Name,
				Columns:         plan.Columns,
				Where:           where,
				OrderBy:         order,
				Offset:          offset,
				NestedRelations: nested,
			})
			if err != nil {
				return nil, err
			}
			if row == nil {
				return nil, nil
			}
			return g.marshalRow(t, plan, row)
		},
	}
}

func (g *generator) collectionField(t schema.Table, tt TableTypes) *graphql.Field {
	return &graphql.Field{
		Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(tt.SelectItem))),
		Description: fmt.Sprintf("Fetch rows from %s", t.Name),
		Args: graphql.FieldConfigArgument{
			"where":   &graphql.ArgumentConfig{Type: tt.Filters},
			"orderBy": &graphql.ArgumentConfig{Type: tt.OrderBy},
			"offset":  &graphql.ArgumentConfig{Type: graphql.Int},
			"limit":   &graphql.ArgumentConfig{Type: graphql.Int},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			plan, err := planner.Plan(p.Info, t)
			if err != nil {
				return nil, err
			}
			where, order, offset, limit, err := g.translateListArgs(t, p.Args, true)
			if err != nil {
				return nil, err
			}
			nested, err := g.nestedRelations(t, plan)
			if err != nil {
				return nil, err
			}
			rows, err := g.exec.SelectMany(p.Context, executor.SelectManyParams{
				Table:           t.Name,
				Columns:         plan.Columns,
				Where:           where,
				OrderBy:         order,
				Offset:          offset,
				Limit:           limit,
				NestedRelations: nested,
			})
			if err != nil {
				return nil, err
			}
			return g.marshalRows(t, plan, rows)
		},
	}
}

func (g *generator) insertSingleField(t schema.Table, tt TableTypes) *graphql.Field {
	var returnType graphql.Output = tt.Item
	if !g.dialect.SupportsReturning {
		returnType = graphql.NewNonNull(insertResultType)
	}
	return &graphql.Field{
		Type:        returnType,
		Description: fmt.Sprintf("Insert one row into %s", t.Name),
		Args: graphql.FieldConfigArgument{
			"values": &graphql.ArgumentConfig{Type: graphql.NewNonNull(tt.InsertInput)},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			values, err := argtranslate.TranslateValues(t, p.Args["values"])
			if err != nil {
				return nil, err
			}
			dbRow, err := g.marshalRowIn(t, values)
			if err != nil {
				return nil, err
			}
			rows, err := g.withTransaction(p.Context, func(ctx context.Context, ex executor.Executor) ([]map[string]interface{}, error) {
				row, err := ex.InsertOne(ctx, t.Name, dbRow)
				if err != nil {
					return nil, err
				}
				if row == nil {
					return nil, nil
				}
				return []map[string]interface{}{row}, nil
			})
			if err != nil {
				return nil, err
			}
			if !g.dialect.SupportsReturning {
				return map[string]interface{}{"isSuccess": true}, nil
			}
			if len(rows) == 0 {
				return nil, nil
			}
			plan, err := planner.Plan(p.Info, t)
			if err != nil {
				return nil, err
			}
			return g.marshalRow(t, plan, rows[0])
		},
	}
}

func (g *generator) insertField(t schema.Table, tt TableTypes) *graphql.Field {
	var returnType graphql.Output = graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(tt.Item)))
	if !g.dialect.SupportsReturning {
		returnType = graphql.NewNonNull(insertResultType)
	}
	return &graphql.Field{
		Type:        returnType,
		Description: fmt.Sprintf("Insert rows into %s atomically", t.Name),
		Args: graphql.FieldConfigArgument{
			"values": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(tt.InsertInput)))},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			values, err := argtranslate.TranslateValuesList(t, p.Args["values"])
			if err != nil {
				return nil, err
			}
			dbRows := make([]map[string]interface{}, len(values))
			for i, row := range values {
				if dbRows[i], err = g.marshalRowIn(t, row); err != nil {
					return nil, err
				}
			}
			rows, err := g.withTransaction(p.Context, func(ctx context.Context, ex executor.Executor) ([]map[string]interface{}, error) {
				return ex.Insert(ctx, t.Name, dbRows)
			})
			if err != nil {
				return nil, err
			}
			if !g.dialect.SupportsReturning {
				return map[string]interface{}{"isSuccess": true}, nil
			}
			plan, err := planner.Plan(p.Info, t)
			if err != nil {
				return nil, err
			}
			return g.marshalRows(t, plan, rows)
		},
	}
}

func (g *generator) updateField(t schema.Table, tt TableTypes) *graphql.Field {
	return &graphql.Field{
		Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(tt.Item))),
		Description: fmt.Sprintf("Update rows in %s, returning the post-image; an empty where updates every row", t.Name),
		Args: graphql.FieldConfigArgument{
			"set":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(tt.UpdateInput)},
			"where": &graphql.ArgumentConfig{Type: tt.Filters},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			set, err := argtranslate.TranslateSet(t, p.Args["set"])
			if err != nil {
				return nil, err
			}
			dbSet, err := g.marshalRowIn(t, set)
			if err != nil {
				return nil, err
			}
			where, err := argtranslate.TranslateWhere(g.dialect, t, p.Args["where"])
			if err != nil {
				return nil, err
			}
			rows, err := g.withTransaction(p.Context, func(ctx context.Context, ex executor.Executor) ([]map[string]interface{}, error) {
				return ex.Update(ctx, executor.UpdateParams{Table: t.Name, Set: dbSet, Where: where})
			})
			if err != nil {
				return nil, err
			}
			plan, err := planner.Plan(p.Info, t)
			if err != nil {
				return nil, err
			}
			return g.marshalRows(t, plan, rows)
		},
	}
}

func (g *generator) deleteField(t schema.Table, tt TableTypes) *graphql.Field {
	return &graphql.Field{
		Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(tt.Item))),
		Description: fmt.Sprintf("Delete rows from %s, returning the pre-image; an empty where deletes every row", t.Name),
		Args: graphql.FieldConfigArgument{
			"where": &graphql.ArgumentConfig{Type: tt.Filters},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			where, err := argtranslate.TranslateWhere(g.dialect, t, p.Args["where"])
			if err != nil {
				return nil, err
			}
			rows, err := g.withTransaction(p.Context, func(ctx context.Context, ex executor.Executor) ([]map[string]interface{}, error) {
				return ex.Delete(ctx, executor.DeleteParams{Table: t.Name, Where: where})
			})
			if err != nil {
				return nil, err
			}
			plan, err := planner.Plan(p.Info, t)
			if err != nil {
				return nil, err
			}
			return g.marshalRows(t, plan, rows)
		},
	}
}

// translateListArgs translates the shared where/orderBy/offset/limit argument
// set of the two query fields.
func (g *generator) translateListArgs(t schema.Table, args map[string]interface{}, isCollection bool) (*argtranslate.WhereNode, []argtranslate.OrderTerm, *int, *int, error) {
	where, err := argtranslate.TranslateWhere(g.dialect, t, args["where"])
	if err != nil {
		return nil, nil, nil, nil, err
	}
	order, err := argtranslate.TranslateOrderBy(t, args["orderBy"])
	if err != nil {
		return nil, nil, nil, nil, err
	}
	offset, err := argtranslate.TranslateOffset(args["offset"])
	if err != nil {
		return nil, nil, nil, nil, err
	}
	limit, err := argtranslate.TranslateLimit(isCollection, args["limit"])
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return where, order, offset, limit, nil
}

// nestedRelations translates a plan's relation subtree into the recursive
// NestedRelation shape the executor contract carries, so relation expansion
// is pushed down rather than resolved through per-row callbacks.
func (g *generator) nestedRelations(t schema.Table, plan *planner.SelectionPlan) (map[string]*executor.NestedRelation, error) {
	if len(plan.Relations) == 0 {
		return nil, nil
	}
	out := make(map[string]*executor.NestedRelation, len(plan.Relations))
	for name, rp := range plan.Relations {
		rel, ok := t.Relation(name)
		if !ok {
			return nil, fmt.Errorf("entity: table %q has no relation %q", t.Name, name)
		}
		target, ok := g.tables.Table(rel.TargetTable)
		if !ok {
			return nil, fmt.Errorf("entity: relation %q targets unknown table %q", name, rel.TargetTable)
		}

		where, err := argtranslate.TranslateWhere(g.dialect, target, rp.Args["where"])
		if err != nil {
			return nil, err
		}
		order, err := argtranslate.TranslateOrderBy(target, rp.Args["orderBy"])
		if err != nil {
			return nil, err
		}
		offset, err := argtranslate.TranslateOffset(rp.Args["offset"])
		if err != nil {
			return nil, err
		}
		limit, err := argtranslate.TranslateLimit(rel.Cardinality == schema.Many, rp.Args["limit"])
		if err != nil {
			return nil, err
		}
		children, err := g.nestedRelations(target, rp.Plan)
		if err != nil {
			return nil, err
		}

		out[name] = &executor.NestedRelation{
			TargetTable:     rel.TargetTable,
			Cardinality:     rel.Cardinality,
			Join:            rel.Join,
			Columns:         rp.Plan.Columns,
			Where:           where,
			OrderBy:         order,
			Offset:          offset,
			Limit:           limit,
			NestedRelations: children,
		}
	}
	return out, nil
}

// withTransaction runs fn inside one transaction when the executor supports
// them, giving each mutation field atomic read-after-write. Executors without
// transaction support run fn directly, best effort.
func (g *generator) withTransaction(ctx context.Context, fn func(ctx context.Context, ex executor.Executor) ([]map[string]interface{}, error)) ([]map[string]interface{}, error) {
	txer, ok := g.exec.(executor.Transactional)
	if !ok {
		return fn(ctx, g.exec)
	}
	var rows []map[string]interface{}
	err := txer.WithTransaction(ctx, func(tx executor.Executor) error {
		var err error
		rows, err = fn(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
