// Package typeregistry builds and memoizes the GraphQL object, input, enum,
// and scalar types the compiler mints per table and per dialect.
// Construction is multi-pass: stub objects for every table are registered
// first, then fields are wired in a later pass so relation fields can
// reference sibling types regardless of declaration order. Relation fields
// reference relationWrapperType, not a sibling's SelectItem directly, so
// cyclic relations (Users <-> Posts) terminate structurally without needing
// the fields themselves to be thunked.
package typeregistry

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/relschema-eu/relschema/dialect"
	"github.com/relschema-eu/relschema/schema"
)

// Variant selects which of the two object-type aliases a table gets: Item is
// the mutation return shape (no relation fields), SelectItem is the read
// shape that carries nested relation fields.
type Variant string

const (
	Item       Variant = "Item"
	SelectItem Variant = "SelectItem"
)

// Registry builds and memoizes every GraphQL type the compiler needs for one
// (schema.Registry, dialect.Dialect) pair. It is built once and is read-only
// thereafter, so concurrent resolver reads need no lock.
type Registry struct {
	tables  *schema.Registry
	dialect dialect.Dialect

	objects    map[string]*graphql.Object
	wrappers   map[string]*graphql.Object
	filters    map[string]*graphql.InputObject
	colFilters map[string]*graphql.InputObject
	orderBys   map[string]*graphql.InputObject
	inserts    map[string]*graphql.InputObject
	updates    map[string]*graphql.InputObject
	enums      map[string]*graphql.Enum

	built bool
}

// New constructs a Registry over tables for the given dialect. Call Build
// once before using any accessor.
func New(tables *schema.Registry, d dialect.Dialect) *Registry {
	return &Registry{
		tables:     tables,
		dialect:    d,
		objects:    make(map[string]*graphql.Object),
		wrappers:   make(map[string]*graphql.Object),
		filters:    make(map[string]*graphql.InputObject),
		colFilters: make(map[string]*graphql.InputObject),
		orderBys:   make(map[string]*graphql.InputObject),
		inserts:    make(map[string]*graphql.InputObject),
		updates:    make(map[string]*graphql.InputObject),
		enums:      make(map[string]*graphql.Enum),
	}
}

func objKey(table string, variant Variant) string { return table + "|" + string(variant) }
func wrapKey(owner, relation string) string        { return owner + "|" + relation }

// Build constructs every memoized type. It must be called exactly once.
func (r *Registry) Build() error {
	if r.built {
		return nil
	}

	tables := r.tables.Tables()

	// Phase 1: register stub object types so relation/self references
	// resolve regardless of table declaration order.
	for _, t := range tables {
		r.objects[objKey(t.Name, Item)] = graphql.NewObject(graphql.ObjectConfig{
			Name:   pascal(t.Name) + "Item",
			Fields: graphql.Fields{},
		})
		r.objects[objKey(t.Name, SelectItem)] = graphql.NewObject(graphql.ObjectConfig{
			Name:   pascal(t.Name) + "SelectItem",
			Fields: graphql.Fields{},
		})
	}

	// Phase 2: input types. These only reference scalars and themselves, and
	// must exist before relation fields borrow the target table's filter and
	// order inputs as arguments.
	for _, t := range tables {
		r.filters[t.Name] = r.buildFiltersInputType(t)
		r.orderBys[t.Name] = r.buildOrderByInputType(t)
		r.inserts[t.Name] = r.buildInsertInputType(t)
		r.updates[t.Name] = r.buildUpdateInputType(t)
	}

	// Phase 3: populate object fields now that every stub and input exists.
	for _, t := range tables {
		itemObj := r.objects[objKey(t.Name, Item)]
		selectObj := r.objects[objKey(t.Name, SelectItem)]

		for _, col := range t.Columns {
			if !r.dialect.SupportsColumnKind(col.Kind) {
				continue
			}
			fieldType := r.fieldTypeFor(t.Name, col)
			itemObj.AddFieldConfig(col.Name, &graphql.Field{
				Type:        fieldType,
				Description: fmt.Sprintf("Column %s", col.Name),
				Resolve:     columnResolver(col.Name),
			})
			selectObj.AddFieldConfig(col.Name, &graphql.Field{
				Type:        fieldType,
				Description: fmt.Sprintf("Column %s", col.Name),
				Resolve:     columnResolver(col.Name),
			})
		}

		for _, rel := range t.Relations {
			target, ok := r.tables.Table(rel.TargetTable)
			if !ok {
				return fmt.Errorf("typeregistry: table %q relation %q: unknown target %q", t.Name, rel.Name, rel.TargetTable)
			}
			wrapper, err := r.relationWrapperType(t.Name, rel.Name, target)
			if err != nil {
				return err
			}

			args := graphql.FieldConfigArgument{
				"where":   &graphql.ArgumentConfig{Type: r.filters[rel.TargetTable]},
				"orderBy": &graphql.ArgumentConfig{Type: r.orderBys[rel.TargetTable]},
				"offset":  &graphql.ArgumentConfig{Type: graphql.Int},
			}
			var fieldType graphql.Output = wrapper
			if rel.Cardinality == schema.Many {
				fieldType = graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(wrapper)))
				args["limit"] = &graphql.ArgumentConfig{Type: graphql.Int}
			}
			selectObj.AddFieldConfig(rel.Name, &graphql.Field{
				Type:        fieldType,
				Description: fmt.Sprintf("Related %s via %s", rel.TargetTable, rel.Name),
				Args:        args,
				Resolve:     relationResolver(rel.Name),
			})
		}
	}

	r.built = true
	return nil
}

// columnResolver reads a plain column value out of the row map the entity
// layer already marshaled through the codec.
func columnResolver(name string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		row, ok := p.Source.(map[string]interface{})
		if !ok {
			return nil, nil
		}
		return row[name], nil
	}
}

// relationResolver reads a pre-fetched nested relation out of the row map.
// The executor resolves relation sub-selections in the same relational
// request as the parent: by the time this resolver runs, row[name]
// already holds either a marshaled map (cardinality one) or slice of maps
// (cardinality many) — never an unresolved reference requiring its own
// database round trip.
func relationResolver(name string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		row, ok := p.Source.(map[string]interface{})
		if !ok {
			return nil, nil
		}
		return row[name], nil
	}
}

// ObjectType returns the memoized object type for table/variant.
func (r *Registry) ObjectType(table string, variant Variant) (*graphql.Object, bool) {
	obj, ok := r.objects[objKey(table, variant)]
	return obj, ok
}

// RelationWrapperTypeByName returns a previously built wrapper type.
func (r *Registry) RelationWrapperTypeByName(owner, relation string) (*graphql.Object, bool) {
	obj, ok := r.wrappers[wrapKey(owner, relation)]
	return obj, ok
}

func (r *Registry) FiltersInputType(table string) (*graphql.InputObject, bool) {
	t, ok := r.filters[table]
	return t, ok
}

func (r *Registry) OrderByInputType(table string) (*graphql.InputObject, bool) {
	t, ok := r.orderBys[table]
	return t, ok
}

func (r *Registry) InsertInputType(table string) (*graphql.InputObject, bool) {
	t, ok := r.inserts[table]
	return t, ok
}

func (r *Registry) UpdateInputType(table string) (*graphql.InputObject, bool) {
	t, ok := r.updates[table]
	return t, ok
}

// relationWrapperType builds (or returns the memoized) object type whose
// fields are exactly the target table's columns, named
// <Owner><Relation>Relation so the same target table reached via two
// different relations produces two distinct, stable __typenames.
func (r *Registry) relationWrapperType(owner, relation string, target schema.Table) (*graphql.Object, error) {
	key := wrapKey(owner, relation)
	if existing, ok := r.wrappers[key]; ok {
		return existing, nil
	}

	name := pascal(owner) + pascal(relation) + "Relation"
	obj := graphql.NewObject(graphql.ObjectConfig{
		Name:   name,
		Fields: graphql.Fields{},
	})
	for _, col := range target.Columns {
		if !r.dialect.SupportsColumnKind(col.Kind) {
			continue
		}
		obj.AddFieldConfig(col.Name, &graphql.Field{
			Type:        r.fieldTypeFor(target.Name, col),
			Description: fmt.Sprintf("Column %s", col.Name),
			Resolve:     columnResolver(col.Name),
		})
	}
	r.wrappers[key] = obj
	return obj, nil
}

// fieldTypeFor wraps ScalarFor in NonNull iff the column is declared
// non-null.
func (r *Registry) fieldTypeFor(table string, col schema.Column) graphql.Output {
	scalar := r.ScalarFor(table, col)
	if !col.Nullable {
		return graphql.NewNonNull(scalar)
	}
	return scalar
}

// ScalarFor maps a column's logical type to its GraphQL scalar or enum,
// minting a table-scoped enum type the first time an enum column is seen.
func (r *Registry) ScalarFor(table string, col schema.Column) graphql.Output {
	switch col.Kind {
	case schema.Int32:
		return graphql.Int
	case schema.Int64, schema.BigInt:
		return BigIntScalar
	case schema.Float:
		return graphql.Float
	case schema.Decimal:
		return DecimalScalar
	case schema.Boolean:
		return graphql.Boolean
	case schema.String, schema.Text, schema.Char, schema.Varchar:
		return graphql.String
	case schema.Date:
		return DateScalar
	case schema.Timestamp, schema.TimestampMs:
		return DateTimeScalar
	case schema.JSON:
		return JSONScalar
	case schema.Blob:
		return BytesScalar
	case schema.Vector:
		return VectorScalar
	case schema.PointXY:
		return PointXYScalar
	case schema.PointTuple:
		return PointTupleScalar
	case schema.Array:
		elem := r.ScalarFor(table, schema.Column{Kind: col.ElemKind, EnumVariants: col.EnumVariants})
		return graphql.NewList(elem)
	case schema.Enum:
		return r.enumFor(table, col)
	default:
		return graphql.String
	}
}

func (r *Registry) enumFor(table string, col schema.Column) *graphql.Enum {
	key := table + "|" + col.Name
	if e, ok := r.enums[key]; ok {
		return e
	}
	values := graphql.EnumValueConfigMap{}
	for _, variant := range col.EnumVariants {
		values[variant] = &graphql.EnumValueConfig{Value: variant}
	}
	e := graphql.NewEnum(graphql.EnumConfig{
		Name:   pascal(table) + pascal(col.Name) + "Enum",
		Values: values,
	})
	r.enums[key] = e
	return e
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
