package typeregistry_test

import (
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relschema-eu/relschema/dialect"
	"github.com/relschema-eu/relschema/schema"
	"github.com/relschema-eu/relschema/typeregistry"
)

func usersPostsRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	users := schema.Table{
		Name: "users",
		Columns: []Column{
			{Name: "id", Kind: schema.Int64, AutoGenerated: true},
			{Name: "name", Kind: schema.String},
			{Name: "role", Kind: schema.Enum, Nullable: true, EnumVariants: []string{"admin", "member"}},
		},
		PrimaryKey: []string{"id"},
		Relations: []schema.Relation{
			{Name: "posts", TargetTable: "posts", Cardinality: schema.Many, Join: []schema.JoinPair{{OwningColumn: "id", TargetColumn: "authorId"}}},
		},
	}
	posts := schema.Table{
		Name: "posts",
		Columns: []Column{
			{Name: "id", Kind: schema.Int64, AutoGenerated: true},
			{Name: "authorId", Kind: schema.Int64},
			{Name: "content", Kind: schema.Text},
		},
		PrimaryKey: []string{"id"},
		Relations: []schema.Relation{
			{Name: "author", TargetTable: "users", Cardinality: schema.One, Join: []schema.JoinPair{{OwningColumn: "authorId", TargetColumn: "id"}}},
		},
	}
	reg, err := schema.NewRegistry([]schema.Table{users, posts})
	require.NoError(t, err)
	return reg
}

// Column is a local alias so the fixtures above read naturally; it is the
// exact struct shape of schema.Column.
type Column = schema.Column

func TestBuildRegistersBothVariantsPerTable(t *testing.T) {
	reg := usersPostsRegistry(t)
	tr := typeregistry.New(reg, dialect.A)
	require.NoError(t, tr.Build())

	for _, table := range []string{"Users", "Posts"} {
		lower := string(table[0]+32) + table[1:]
		item, ok := tr.ObjectType(lower, typeregistry.Item)
		require.True(t, ok)
		assert.Equal(t, table+"Item", item.Name())

		sel, ok := tr.ObjectType(lower, typeregistry.SelectItem)
		require.True(t, ok)
		assert.Equal(t, table+"SelectItem", sel.Name())
	}
}

func TestSelectItemHasRelationWrapperNamedAfterOwnerAndRelation(t *testing.T) {
	reg := usersPostsRegistry(t)
	tr := typeregistry.New(reg, dialect.A)
	require.NoError(t, tr.Build())

	sel, ok := tr.ObjectType("users", typeregistry.SelectItem)
	require.True(t, ok)

	field, ok := sel.Fields()["posts"]
	require.True(t, ok)

	// Many cardinality: non-null list of non-null wrapper type.
	nonNullList, ok := field.Type.(*graphql.NonNull)
	require.True(t, ok)
	list, ok := nonNullList.OfType.(*graphql.List)
	require.True(t, ok)
	nonNullWrapper, ok := list.OfType.(*graphql.NonNull)
	require.True(t, ok)
	wrapper, ok := nonNullWrapper.OfType.(*graphql.Object)
	require.True(t, ok)
	assert.Equal(t, "UsersPostsRelation", wrapper.Name())

	wrapperDirect, ok := tr.RelationWrapperTypeByName("users", "posts")
	require.True(t, ok)
	assert.Same(t, wrapper, wrapperDirect)

	// The wrapper carries only the target's columns, never its own relations.
	_, hasAuthor := wrapper.Fields()["author"]
	assert.False(t, hasAuthor)
}

func TestItemHasNoRelationFields(t *testing.T) {
	reg := usersPostsRegistry(t)
	tr := typeregistry.New(reg, dialect.A)
	require.NoError(t, tr.Build())

	item, ok := tr.ObjectType("users", typeregistry.Item)
	require.True(t, ok)
	_, hasPosts := item.Fields()["posts"]
	assert.False(t, hasPosts)
}

func TestFiltersInputTypeIsRecursiveWithORAndAND(t *testing.T) {
	reg := usersPostsRegistry(t)
	tr := typeregistry.New(reg, dialect.A)
	require.NoError(t, tr.Build())

	filters, ok := tr.FiltersInputType("posts")
	require.True(t, ok)

	fields := filters.Fields()
	or, ok := fields["OR"]
	require.True(t, ok)
	list, ok := or.Type.(*graphql.List)
	require.True(t, ok)
	assert.Same(t, filters, list.OfType)

	and, ok := fields["AND"]
	require.True(t, ok)
	andList, ok := and.Type.(*graphql.List)
	require.True(t, ok)
	assert.Same(t, filters, andList.OfType)
}

func TestILikeOperatorOmittedOnDialectB(t *testing.T) {
	reg := usersPostsRegistry(t)
	trA := typeregistry.New(reg, dialect.A)
	require.NoError(t, trA.Build())
	trB := typeregistry.New(reg, dialect.B)
	require.NoError(t, trB.Build())

	filtersA, _ := trA.FiltersInputType("posts")
	contentFilterA := filtersA.Fields()["content"].Type.(*graphql.InputObject)
	_, hasILikeA := contentFilterA.Fields()["ilike"]
	assert.True(t, hasILikeA)

	filtersB, _ := trB.FiltersInputType("posts")
	contentFilterB := filtersB.Fields()["content"].Type.(*graphql.InputObject)
	_, hasILikeB := contentFilterB.Fields()["ilike"]
	assert.False(t, hasILikeB)
}

func TestInsertInputOmitsAutoGeneratedColumns(t *testing.T) {
	reg := usersPostsRegistry(t)
	tr := typeregistry.New(reg, dialect.A)
	require.NoError(t, tr.Build())

	insert, ok := tr.InsertInputType("users")
	require.True(t, ok)
	_, hasID := insert.Fields()["id"]
	assert.False(t, hasID)
	_, hasName := insert.Fields()["name"]
	assert.True(t, hasName)
}

func TestUpdateInputAllFieldsOptional(t *testing.T) {
	reg := usersPostsRegistry(t)
	tr := typeregistry.New(reg, dialect.A)
	require.NoError(t, tr.Build())

	update, ok := tr.UpdateInputType("users")
	require.True(t, ok)
	nameField := update.Fields()["name"]
	_, isNonNull := nameField.Type.(*graphql.NonNull)
	assert.False(t, isNonNull)
}
