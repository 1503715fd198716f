package typeregistry

import (
	"github.com/graphql-go/graphql"

	"github.com/relschema-eu/relschema/dialect"
	"github.com/relschema-eu/relschema/schema"
)

var orderDirectionEnum = graphql.NewEnum(graphql.EnumConfig{
	Name: "OrderDirection",
	Values: graphql.EnumValueConfigMap{
		"asc":  &graphql.EnumValueConfig{Value: "asc"},
		"desc": &graphql.EnumValueConfig{Value: "desc"},
	},
})

var orderByPriorityInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "OrderByPriority",
	Fields: graphql.InputObjectConfigFieldMap{
		"priority": &graphql.InputObjectFieldConfig{
			Type:        graphql.NewNonNull(graphql.Int),
			Description: "Higher priority sorts first among multiple ordered columns",
		},
		"direction": &graphql.InputObjectFieldConfig{
			Type: graphql.NewNonNull(orderDirectionEnum),
		},
	},
})

func (r *Registry) scalarAsInput(o graphql.Output) graphql.Input {
	if in, ok := o.(graphql.Input); ok {
		return in
	}
	return graphql.String
}

// buildColumnFilterInputType mints the per-column leaf-operator input type
// named <Table><Column>Filter, gated by the dialect's operator table:
// operators the active dialect doesn't support for this column kind simply
// are not added as fields.
func (r *Registry) buildColumnFilterInputType(table string, col schema.Column) *graphql.InputObject {
	key := table + "|" + col.Name
	if existing, ok := r.colFilters[key]; ok {
		return existing
	}
	base := r.scalarAsInput(r.ScalarFor(table, col))
	fields := graphql.InputObjectConfigFieldMap{}

	for _, op := range r.dialect.Operators(col) {
		switch op {
		case dialect.OpEq, dialect.OpNe, dialect.OpGt, dialect.OpGte, dialect.OpLt, dialect.OpLte:
			fields[string(op)] = &graphql.InputObjectFieldConfig{Type: base}
		case dialect.OpIsNull:
			fields[string(op)] = &graphql.InputObjectFieldConfig{Type: graphql.Boolean}
		case dialect.OpInArray, dialect.OpNotInArray:
			fields[string(op)] = &graphql.InputObjectFieldConfig{Type: graphql.NewList(base)}
		case dialect.OpLike, dialect.OpNotLike, dialect.OpILike, dialect.OpNotILike:
			fields[string(op)] = &graphql.InputObjectFieldConfig{Type: graphql.String}
		case dialect.OpArrayContains, dialect.OpArrayContained, dialect.OpArrayOverlaps:
			fields[string(op)] = &graphql.InputObjectFieldConfig{Type: graphql.NewList(base)}
		}
	}

	built := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   pascal(table) + pascal(col.Name) + "Filter",
		Fields: fields,
	})
	r.colFilters[key] = built
	return built
}

// buildFiltersInputType mints the recursive <Table>Filters input type: one
// field per column (typed as its column filter) plus OR/AND arrays of the
// same type, using InputObjectConfigFieldMapThunk so the self-reference
// resolves without a separate cyclic-type workaround.
func (r *Registry) buildFiltersInputType(t schema.Table) *graphql.InputObject {
	var self *graphql.InputObject
	self = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: pascal(t.Name) + "Filters",
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fields := graphql.InputObjectConfigFieldMap{}
			for _, col := range t.Columns {
				if !r.dialect.SupportsColumnKind(col.Kind) {
					continue
				}
				fields[col.Name] = &graphql.InputObjectFieldConfig{
					Type: r.buildColumnFilterInputType(t.Name, col),
				}
			}
			fields["OR"] = &graphql.InputObjectFieldConfig{Type: graphql.NewList(self)}
			fields["AND"] = &graphql.InputObjectFieldConfig{Type: graphql.NewList(self)}
			return fields
		}),
	})
	return self
}

// buildOrderByInputType mints <Table>OrderBy: one optional
// {priority, direction} field per column.
func (r *Registry) buildOrderByInputType(t schema.Table) *graphql.InputObject {
	fields := graphql.InputObjectConfigFieldMap{}
	for _, col := range t.Columns {
		if !r.dialect.SupportsColumnKind(col.Kind) {
			continue
		}
		fields[col.Name] = &graphql.InputObjectFieldConfig{Type: orderByPriorityInput}
	}
	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   pascal(t.Name) + "OrderBy",
		Fields: fields,
	})
}

// buildInsertInputType mints <Table>InsertInput: every non-auto-generated
// column, required unless nullable or defaulted at insert.
func (r *Registry) buildInsertInputType(t schema.Table) *graphql.InputObject {
	fields := graphql.InputObjectConfigFieldMap{}
	for _, col := range t.Columns {
		if col.AutoGenerated || !r.dialect.SupportsColumnKind(col.Kind) {
			continue
		}
		base := r.scalarAsInput(r.ScalarFor(t.Name, col))
		fieldType := base
		if !col.Nullable && !col.HasInsertDefault {
			fieldType = graphql.NewNonNull(base)
		}
		fields[col.Name] = &graphql.InputObjectFieldConfig{Type: fieldType}
	}
	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   pascal(t.Name) + "InsertInput",
		Fields: fields,
	})
}

// buildUpdateInputType mints <Table>UpdateInput: every non-auto-generated
// column, always optional — an omitted column is left unchanged by update.
func (r *Registry) buildUpdateInputType(t schema.Table) *graphql.InputObject {
	fields := graphql.InputObjectConfigFieldMap{}
	for _, col := range t.Columns {
		if col.AutoGenerated || !r.dialect.SupportsColumnKind(col.Kind) {
			continue
		}
		base := r.scalarAsInput(r.ScalarFor(t.Name, col))
		fields[col.Name] = &graphql.InputObjectFieldConfig{Type: base}
	}
	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   pascal(t.Name) + "UpdateInput",
		Fields: fields,
	})
}
