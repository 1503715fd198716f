package memexec_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relschema-eu/relschema/argtranslate"
	"github.com/relschema-eu/relschema/executor"
	"github.com/relschema-eu/relschema/executor/memexec"
	"github.com/relschema-eu/relschema/schema"
)

func seededRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	users := schema.Table{
		Name: "users",
		Columns: []schema.Column{
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
	customers := schema.Table{
		Name: "customers",
		Columns: []schema.Column{
			{Name: "id", Kind: schema.Int64, AutoGenerated: true},
			{Name: "name", Kind: schema.String},
		},
		PrimaryKey: []string{"id"},
	}
	reg, err := schema.NewRegistry([]schema.Table{users, posts, customers})
	require.NoError(t, err)
	return reg
}

func seedStore(t *testing.T) *memexec.Store {
	t.Helper()
	reg := seededRegistry(t)
	return memexec.New(reg, map[string][]map[string]interface{}{
		"users": {
			{"id": int64(1), "name": "FirstUser", "role": "admin"},
			{"id": int64(2), "name": "SecondUser", "role": nil},
			{"id": int64(5), "name": "FifthUser", "role": nil},
		},
		"posts": {
			{"id": int64(1), "authorId": int64(1), "content": "1MESSAGE"},
			{"id": int64(2), "authorId": int64(1), "content": "2MESSAGE"},
			{"id": int64(3), "authorId": int64(1), "content": "3MESSAGE"},
			{"id": int64(4), "authorId": int64(5), "content": "1MESSAGE"},
			{"id": int64(5), "authorId": int64(5), "content": "2MESSAGE"},
			{"id": int64(6), "authorId": int64(1), "content": "4MESSAGE"},
		},
		"customers": {
			{"id": int64(1), "name": "Acme"},
			{"id": int64(2), "name": "Globex"},
		},
	})
}

func ids(rows []map[string]interface{}) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r["id"].(int64)
	}
	return out
}

// Scenario 1: multi-column prioritized orderBy.
func TestScenarioOrderByPriority(t *testing.T) {
	store := seedStore(t)
	rows, err := store.SelectMany(context.Background(), executor.SelectManyParams{
		Table:   "posts",
		Columns: []string{"id"},
		OrderBy: []argtranslate.OrderTerm{
			{Column: "authorId", Desc: true},
			{Column: "content", Desc: false},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5, 1, 2, 3, 6}, ids(rows))
}

// Scenario 2: offset + limit.
func TestScenarioOffsetLimit(t *testing.T) {
	store := seedStore(t)
	offset, limit := 1, 2
	rows, err := store.SelectMany(context.Background(), executor.SelectManyParams{
		Table:   "posts",
		Columns: []string{"id"},
		Offset:  &offset,
		Limit:   &limit,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, ids(rows))
}

// Scenario 3: inArray/ne/ne combined where.
func TestScenarioWhereCombination(t *testing.T) {
	store := seedStore(t)
	where := &argtranslate.WhereNode{Leaves: []argtranslate.LeafCondition{
		{Column: "id", Op: "inArray", Value: []interface{}{int64(2), int64(3), int64(4), int64(5), int64(6)}},
		{Column: "authorId", Op: "ne", Value: int64(5)},
		{Column: "content", Op: "ne", Value: "3MESSAGE"},
	}}
	rows, err := store.SelectMany(context.Background(), executor.SelectManyParams{
		Table:   "posts",
		Columns: []string{"id"},
		Where:   where,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 6}, ids(rows))
}

// Scenario 4: nested relation with its own where.
func TestScenarioNestedRelationWhere(t *testing.T) {
	store := seedStore(t)
	rows, err := store.SelectMany(context.Background(), executor.SelectManyParams{
		Table:   "users",
		Columns: []string{"id"},
		NestedRelations: map[string]*executor.NestedRelation{
			"posts": {
				TargetTable: "posts",
				Cardinality: schema.Many,
				Join:        []schema.JoinPair{{OwningColumn: "id", TargetColumn: "authorId"}},
				Columns:     []string{"id"},
				Where: &argtranslate.WhereNode{Leaves: []argtranslate.LeafCondition{
					{Column: "content", Op: "like", Value: "2%"},
				}},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	got := map[int64][]int64{}
	for _, row := range rows {
		userID := row["id"].(int64)
		posts := row["posts"].([]map[string]interface{})
		got[userID] = ids(posts)
	}
	assert.Equal(t, []int64{2}, got[1])
	assert.Equal(t, []int64{}, got[2])
	assert.Equal(t, []int64{5}, got[5])
}

// Scenario 5: update with OR-combined where.
func TestScenarioUpdateWithOR(t *testing.T) {
	store := seedStore(t)
	where := &argtranslate.WhereNode{
		HasOr: true,
		Or: []*argtranslate.WhereNode{
			{Leaves: []argtranslate.LeafCondition{{Column: "id", Op: "lte", Value: int64(3)}}},
			{Leaves: []argtranslate.LeafCondition{{Column: "authorId", Op: "eq", Value: int64(5)}}},
		},
	}
	updated, err := store.Update(context.Background(), executor.UpdateParams{
		Table: "posts",
		Set:   map[string]interface{}{"content": "UPDATED"},
		Where: where,
	})
	require.NoError(t, err)
	require.Len(t, updated, 5)

	all, err := store.SelectMany(context.Background(), executor.SelectManyParams{Table: "posts", Columns: []string{"id", "content"}})
	require.NoError(t, err)
	for _, row := range all {
		if row["id"].(int64) == 6 {
			assert.Equal(t, "4MESSAGE", row["content"])
		} else {
			assert.Equal(t, "UPDATED", row["content"])
		}
	}
}

// Scenario 6: delete-all with no where.
func TestScenarioDeleteAll(t *testing.T) {
	store := seedStore(t)
	deleted, err := store.Delete(context.Background(), executor.DeleteParams{Table: "customers"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(deleted))

	remaining, err := store.SelectMany(context.Background(), executor.SelectManyParams{Table: "customers", Columns: []string{"id"}})
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestInsertAssignsAutoGeneratedColumn(t *testing.T) {
	store := seedStore(t)
	row, err := store.InsertOne(context.Background(), "customers", map[string]interface{}{"name": "Initech"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), row["id"])
}

func TestInsertBulkIsAtomicOnDuplicateKey(t *testing.T) {
	store := seedStore(t)
	_, err := store.Insert(context.Background(), "customers", []map[string]interface{}{
		{"id": int64(10), "name": "A"},
		{"id": int64(1), "name": "Conflicts with seed row 1"},
	})
	require.Error(t, err)

	remaining, err := store.SelectMany(context.Background(), executor.SelectManyParams{Table: "customers", Columns: []string{"id"}})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestSelectFirstReturnsNilWhenNoMatch(t *testing.T) {
	store := seedStore(t)
	row, err := store.SelectFirst(context.Background(), executor.SelectFirstParams{
		Table:   "customers",
		Columns: []string{"id"},
		Where: &argtranslate.WhereNode{Leaves: []argtranslate.LeafCondition{
			{Column: "id", Op: "eq", Value: int64(999)},
		}},
	})
	require.NoError(t, err)
	assert.Nil(t, row)
}
