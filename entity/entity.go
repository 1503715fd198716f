// Package entity assembles the compiler's final output: six query/mutation
// fields per table, bound to resolvers that plan the selection, translate the
// arguments, dispatch to the executor, and marshal rows back out.
// The secondary output is the entity bundle, a structured catalog of every
// generated field and type, so callers can hand the whole set to
// graphql.NewSchema or cherry-pick fields under custom names.
package entity

import (
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/rs/zerolog/log"

	"github.com/relschema-eu/relschema/dialect"
	"github.com/relschema-eu/relschema/executor"
	"github.com/relschema-eu/relschema/schema"
	"github.com/relschema-eu/relschema/typeregistry"
)

// RelationKey identifies one owner/target table pair whose join predicate an
// Options.RelationOverrides entry replaces.
type RelationKey struct {
	OwnerTable  string
	TargetTable string
}

// Options are the only recognized compilation knobs: the active dialect and,
// optionally, join-predicate overrides per table pair. There is no runtime
// configuration.
type Options struct {
	Dialect           dialect.Dialect
	RelationOverrides map[RelationKey][]schema.JoinPair
}

// TableTypes collects every GraphQL type minted for one table.
type TableTypes struct {
	Item        *graphql.Object
	SelectItem  *graphql.Object
	Filters     *graphql.InputObject
	OrderBy     *graphql.InputObject
	InsertInput *graphql.InputObject
	UpdateInput *graphql.InputObject
}

// Bundle is the structured catalog of everything the compiler generated.
// Queries and Mutations are ordinary graphql.Fields maps, so a caller
// composing a custom root can copy an entry under any alias: the field's
// return-type name is derived from the table, not the field name, which keeps
// fragments valid across renames.
type Bundle struct {
	Queries   graphql.Fields
	Mutations graphql.Fields
	Types     map[string]TableTypes

	tables *schema.Registry
}

// RootObject returns the value callers must pass as graphql.Params.RootObject
// when executing against the generated schema. The selection planner reads
// the table registry back out of info.RootValue to recurse into relations.
func (b *Bundle) RootObject() map[string]interface{} {
	return map[string]interface{}{"tables": b.tables}
}

// generator carries the build-time state shared by every resolver closure.
type generator struct {
	exec    executor.Executor
	tables  *schema.Registry
	dialect dialect.Dialect
	types   *typeregistry.Registry
}

// insertResultType is the insert return shape on dialects without RETURNING
// support: the database cannot hand back the inserted rows, so the mutation
// reports only whether the write succeeded.
var insertResultType = graphql.NewObject(graphql.ObjectConfig{
	Name: "InsertResult",
	Fields: graphql.Fields{
		"isSuccess": &graphql.Field{
			Type: graphql.NewNonNull(graphql.Boolean),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				row, ok := p.Source.(map[string]interface{})
				if !ok {
					return false, nil
				}
				return row["isSuccess"], nil
			},
		},
	},
})

// Build compiles the declared tables into a GraphQL schema with standard
// Query and Mutation roots, plus the entity bundle for callers who want to
// compose custom roots instead.
func Build(exec executor.Executor, tables *schema.Registry, opts Options) (*graphql.Schema, *Bundle, error) {
	tables, err := applyRelationOverrides(tables, opts.RelationOverrides)
	if err != nil {
		return nil, nil, err
	}

	types := typeregistry.New(tables, opts.Dialect)
	if err := types.Build(); err != nil {
		return nil, nil, err
	}

	g := &generator{exec: exec, tables: tables, dialect: opts.Dialect, types: types}

	bundle := &Bundle{
		Queries:   graphql.Fields{},
		Mutations: graphql.Fields{},
		Types:     make(map[string]TableTypes),
		tables:    tables,
	}

	for _, t := range tables.Tables() {
		for _, col := range t.Columns {
			if !opts.Dialect.SupportsColumnKind(col.Kind) {
				log.Warn().
					Str("table", t.Name).
					Str("column", col.Name).
					Str("kind", string(col.Kind)).
					Str("dialect", string(opts.Dialect.Name)).
					Msg("Column kind not representable on this dialect, omitted from schema")
			}
		}

		tt, err := g.tableTypes(t)
		if err != nil {
			return nil, nil, err
		}
		bundle.Types[t.Name] = tt

		bundle.Queries[t.Name+"Single"] = g.singleField(t, tt)
		bundle.Queries[t.Name] = g.collectionField(t, tt)

		pascalName := pascal(t.Name)
		bundle.Mutations["insertInto"+pascalName+"Single"] = g.insertSingleField(t, tt)
		bundle.Mutations["insertInto"+pascalName] = g.insertField(t, tt)
		bundle.Mutations["update"+pascalName] = g.updateField(t, tt)
		bundle.Mutations["deleteFrom"+pascalName] = g.deleteField(t, tt)

		log.Debug().Str("table", t.Name).Msg("Generated entity fields")
	}

	schemaConfig := graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: bundle.Queries,
		}),
	}
	if len(bundle.Mutations) > 0 {
		schemaConfig.Mutation = graphql.NewObject(graphql.ObjectConfig{
			Name:   "Mutation",
			Fields: bundle.Mutations,
		})
	}

	gqlSchema, err := graphql.NewSchema(schemaConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("entity: schema assembly failed: %w", err)
	}
	return &gqlSchema, bundle, nil
}

func (g *generator) tableTypes(t schema.Table) (TableTypes, error) {
	item, ok := g.types.ObjectType(t.Name, typeregistry.Item)
	if !ok {
		return TableTypes{}, fmt.Errorf("entity: no Item type for table %q", t.Name)
	}
	sel, ok := g.types.ObjectType(t.Name, typeregistry.SelectItem)
	if !ok {
		return TableTypes{}, fmt.Errorf("entity: no SelectItem type for table %q", t.Name)
	}
	filters, _ := g.types.FiltersInputType(t.Name)
	orderBy, _ := g.types.OrderByInputType(t.Name)
	insert, _ := g.types.InsertInputType(t.Name)
	update, _ := g.types.UpdateInputType(t.Name)
	return TableTypes{
		Item:        item,
		SelectItem:  sel,
		Filters:     filters,
		OrderBy:     orderBy,
		InsertInput: insert,
		UpdateInput: update,
	}, nil
}

// applyRelationOverrides rebuilds the registry with each matching relation's
// join predicate replaced. An override applies to every relation from its
// owner table to its target table, whatever the relation's GraphQL name.
func applyRelationOverrides(tables *schema.Registry, overrides map[RelationKey][]schema.JoinPair) (*schema.Registry, error) {
	if len(overrides) == 0 {
		return tables, nil
	}
	rebuilt := make([]schema.Table, 0, len(tables.Tables()))
	for _, t := range tables.Tables() {
		relations := make([]schema.Relation, len(t.Relations))
		for i, rel := range t.Relations {
			relations[i] = rel
			if join, ok := overrides[RelationKey{OwnerTable: t.Name, TargetTable: rel.TargetTable}]; ok {
				relations[i].Join = join
			}
		}
		t.Relations = relations
		rebuilt = append(rebuilt, t)
	}
	return schema.NewRegistry(rebuilt)
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
