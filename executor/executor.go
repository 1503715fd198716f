// Package executor defines the contract the compiler's entity layer
// dispatches translated plans against, plus the two concrete
// implementations the module ships under executor/memexec and
// executor/sqlexec: selectMany/selectFirst/insert/insertOne/update/delete,
// all over rows keyed by column name to dialect-native value, with
// nestedRelations carried recursively so relation expansion is pushed down
// into the executor rather than resolved through per-row callbacks.
package executor

import (
	"context"

	"github.com/relschema-eu/relschema/argtranslate"
	"github.com/relschema-eu/relschema/schema"
)

// NestedRelation describes one relation the caller wants fulfilled alongside
// its owning row(s), combining the relation's join predicate with the
// translated selection/filter/sort the client requested on that relation
// field.
type NestedRelation struct {
	TargetTable string
	Cardinality schema.Cardinality
	Join        []schema.JoinPair
	Columns     []string

	Where   *argtranslate.WhereNode
	OrderBy []argtranslate.OrderTerm
	Offset  *int
	Limit   *int

	NestedRelations map[string]*NestedRelation
}

// SelectManyParams is the argument object for a collection fetch.
type SelectManyParams struct {
	Table   string
	Columns []string
	Where   *argtranslate.WhereNode
	OrderBy []argtranslate.OrderTerm
	Offset  *int
	Limit   *int

	NestedRelations map[string]*NestedRelation
}

// SelectFirstParams is the argument object for a single-row fetch. Limit is
// always implicitly one and is not part of the contract; Offset is honored
// (skip N, return the next one).
type SelectFirstParams struct {
	Table   string
	Columns []string
	Where   *argtranslate.WhereNode
	OrderBy []argtranslate.OrderTerm
	Offset  *int

	NestedRelations map[string]*NestedRelation
}

// UpdateParams is the argument object for a bulk update.
type UpdateParams struct {
	Table string
	Set   map[string]interface{}
	Where *argtranslate.WhereNode
}

// DeleteParams is the argument object for a bulk delete.
type DeleteParams struct {
	Table string
	Where *argtranslate.WhereNode
}

// Executor is the narrow external collaborator the compiler runs against.
// Every method receives a context so a suspended call can be abandoned when
// the host drops the request; no compensating action is taken beyond the
// underlying transaction abort.
type Executor interface {
	SelectMany(ctx context.Context, p SelectManyParams) ([]map[string]interface{}, error)
	SelectFirst(ctx context.Context, p SelectFirstParams) (map[string]interface{}, error)
	Insert(ctx context.Context, table string, rows []map[string]interface{}) ([]map[string]interface{}, error)
	InsertOne(ctx context.Context, table string, row map[string]interface{}) (map[string]interface{}, error)
	Update(ctx context.Context, p UpdateParams) ([]map[string]interface{}, error)
	Delete(ctx context.Context, p DeleteParams) ([]map[string]interface{}, error)
}

// Transactional is an optional capability an Executor may implement to give
// mutation resolvers atomic read-after-write: the mutation and its post-image
// read run inside one transaction. Executors that don't implement it get
// best-effort, non-atomic behavior.
type Transactional interface {
	WithTransaction(ctx context.Context, fn func(tx Executor) error) error
}
