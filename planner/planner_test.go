package planner_test

import (
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/stretchr/testify/require"

	"github.com/relschema-eu/relschema/planner"
	"github.com/relschema-eu/relschema/schema"
)

func usersPostsRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	users := schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", Kind: schema.Int64, AutoGenerated: true},
			{Name: "name", Kind: schema.String},
		},
		PrimaryKey: []string{"id"},
		Relations: []schema.Relation{
			{Name: "posts", TargetTable: "posts", Cardinality: schema.Many, Join: []schema.JoinPair{{OwningColumn: "id", TargetColumn: "authorId"}}},
		},
	}
	posts := schema.Table{
		Name: "posts",
		Columns: []schema.Column{
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

// resolveInfoFor parses query, locates the single top-level field named
// rootField, and assembles a graphql.ResolveInfo the way graphql-go's
// executor would populate one for that field's resolver.
func resolveInfoFor(t *testing.T, query, rootField string, reg *schema.Registry, vars map[string]interface{}) graphql.ResolveInfo {
	t.Helper()
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	require.NoError(t, err)

	fragments := map[string]ast.Definition{}
	var op *ast.OperationDefinition
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.OperationDefinition:
			op = d
		case *ast.FragmentDefinition:
			fragments[d.Name.Value] = d
		}
	}
	require.NotNil(t, op)

	var field *ast.Field
	for _, sel := range op.SelectionSet.Selections {
		if f, ok := sel.(*ast.Field); ok && f.Name.Value == rootField {
			field = f
			break
		}
	}
	require.NotNil(t, field)

	if vars == nil {
		vars = map[string]interface{}{}
	}
	return graphql.ResolveInfo{
		FieldName:      rootField,
		FieldASTs:      []*ast.Field{field},
		Fragments:      fragments,
		VariableValues: vars,
		RootValue:      map[string]interface{}{"tables": reg},
	}
}

func TestPlanCollectsRequestedColumns(t *testing.T) {
	reg := usersPostsRegistry(t)
	table, _ := reg.Table("users")
	info := resolveInfoFor(t, `{ users { id name } }`, "users", reg, nil)

	plan, err := planner.Plan(info, table)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"id", "name"}, plan.Columns)
	require.Empty(t, plan.Relations)
	require.False(t, plan.RequestsTypename)
}

func TestPlanInjectsPrimaryKeyWhenOmitted(t *testing.T) {
	reg := usersPostsRegistry(t)
	table, _ := reg.Table("users")
	info := resolveInfoFor(t, `{ users { name } }`, "users", reg, nil)

	plan, err := planner.Plan(info, table)
	require.NoError(t, err)
	require.Contains(t, plan.Columns, "id")
	require.Contains(t, plan.Columns, "name")
}

func TestPlanNeverForwardsTypename(t *testing.T) {
	reg := usersPostsRegistry(t)
	table, _ := reg.Table("users")
	info := resolveInfoFor(t, `{ users { __typename id } }`, "users", reg, nil)

	plan, err := planner.Plan(info, table)
	require.NoError(t, err)
	require.True(t, plan.RequestsTypename)
	require.NotContains(t, plan.Columns, "__typename")
}

func TestPlanNestsRelationWithArguments(t *testing.T) {
	reg := usersPostsRegistry(t)
	table, _ := reg.Table("users")
	info := resolveInfoFor(t, `{ users { id posts(limit: 2) { id content } } }`, "users", reg, nil)

	plan, err := planner.Plan(info, table)
	require.NoError(t, err)

	rel, ok := plan.Relations["posts"]
	require.True(t, ok)
	require.ElementsMatch(t, []string{"id", "content"}, rel.Plan.Columns)
	require.Equal(t, int64(2), rel.Args["limit"])
}

func TestPlanExpandsFragmentSpread(t *testing.T) {
	reg := usersPostsRegistry(t)
	table, _ := reg.Table("users")
	info := resolveInfoFor(t, `
		fragment UserFields on UsersSelectItem { name }
		{ users { id ...UserFields } }
	`, "users", reg, nil)

	plan, err := planner.Plan(info, table)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"id", "name"}, plan.Columns)
}

func TestPlanExpandsInlineFragment(t *testing.T) {
	reg := usersPostsRegistry(t)
	table, _ := reg.Table("users")
	info := resolveInfoFor(t, `{ users { id ... on UsersSelectItem { name } } }`, "users", reg, nil)

	plan, err := planner.Plan(info, table)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"id", "name"}, plan.Columns)
}

func TestPlanResolvesVariableArguments(t *testing.T) {
	reg := usersPostsRegistry(t)
	table, _ := reg.Table("users")
	info := resolveInfoFor(t, `query($n: Int) { users { posts(limit: $n) { id } } }`, "users", reg, map[string]interface{}{"n": 5})

	plan, err := planner.Plan(info, table)
	require.NoError(t, err)
	require.Equal(t, 5, plan.Relations["posts"].Args["limit"])
}

func TestPlanMergesRepeatedRelationKeepingFirstArgs(t *testing.T) {
	reg := usersPostsRegistry(t)
	table, _ := reg.Table("users")
	info := resolveInfoFor(t, `{ users { posts(limit: 1) { id } more: posts(limit: 3) { content } } }`, "users", reg, nil)

	plan, err := planner.Plan(info, table)
	require.NoError(t, err)
	rel := plan.Relations["posts"]
	require.ElementsMatch(t, []string{"id", "content"}, rel.Plan.Columns)
	require.Equal(t, int64(1), rel.Args["limit"])
}
