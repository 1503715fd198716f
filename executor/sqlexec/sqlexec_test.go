package sqlexec_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relschema-eu/relschema/argtranslate"
	"github.com/relschema-eu/relschema/dialect"
	"github.com/relschema-eu/relschema/executor"
	"github.com/relschema-eu/relschema/executor/sqlexec"
	"github.com/relschema-eu/relschema/schema"
)

func testTables(t *testing.T) *schema.Registry {
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
	}
	reg, err := schema.NewRegistry([]schema.Table{users, posts})
	require.NoError(t, err)
	return reg
}

func mockExecutor(t *testing.T, d dialect.Dialect) (*sqlexec.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlexec.New(db, d, testTables(t)), mock
}

func TestSelectManyRendersWhereOrderPagination(t *testing.T) {
	e, mock := mockExecutor(t, dialect.A)

	mock.ExpectQuery(`SELECT "id", "content" FROM "posts" WHERE "authorId" <> $1 ORDER BY "content" DESC LIMIT 2 OFFSET 1`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content"}).AddRow(2, "2MESSAGE").AddRow(1, "1MESSAGE"))

	offset, limit := 1, 2
	rows, err := e.SelectMany(context.Background(), executor.SelectManyParams{
		Table:   "posts",
		Columns: []string{"id", "content"},
		Where: &argtranslate.WhereNode{
			Leaves: []argtranslate.LeafCondition{{Column: "authorId", Op: dialect.OpNe, Value: int64(5)}},
		},
		OrderBy: []argtranslate.OrderTerm{{Column: "content", Desc: true}},
		Offset:  &offset,
		Limit:   &limit,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0]["id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWhereTreeRendersORAgainstSiblings(t *testing.T) {
	e, mock := mockExecutor(t, dialect.A)

	mock.ExpectQuery(`SELECT "id" FROM "posts" WHERE "content" = $1 AND (("id" <= $2) OR ("authorId" = $3))`).
		WithArgs("x", int64(3), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := e.SelectMany(context.Background(), executor.SelectManyParams{
		Table:   "posts",
		Columns: []string{"id"},
		Where: &argtranslate.WhereNode{
			Leaves: []argtranslate.LeafCondition{{Column: "content", Op: dialect.OpEq, Value: "x"}},
			HasOr:  true,
			Or: []*argtranslate.WhereNode{
				{Leaves: []argtranslate.LeafCondition{{Column: "id", Op: dialect.OpLte, Value: int64(3)}}},
				{Leaves: []argtranslate.LeafCondition{{Column: "authorId", Op: dialect.OpEq, Value: int64(5)}}},
			},
		},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmptyORRendersMatchNothing(t *testing.T) {
	e, mock := mockExecutor(t, dialect.A)

	mock.ExpectQuery(`SELECT "id" FROM "posts" WHERE 1 = 0`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := e.SelectMany(context.Background(), executor.SelectManyParams{
		Table:   "posts",
		Columns: []string{"id"},
		Where:   &argtranslate.WhereNode{HasOr: true},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReturnsRowsViaReturning(t *testing.T) {
	e, mock := mockExecutor(t, dialect.A)

	mock.ExpectQuery(`INSERT INTO "posts" ("authorId", "content") VALUES ($1, $2) RETURNING *`).
		WithArgs(int64(1), "hello").
		WillReturnRows(sqlmock.NewRows([]string{"id", "authorId", "content"}).AddRow(7, 1, "hello"))

	row, err := e.InsertOne(context.Background(), "posts", map[string]interface{}{
		"authorId": int64(1),
		"content":  "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), row["id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertOnMySQLReturnsNoRows(t *testing.T) {
	e, mock := mockExecutor(t, dialect.B)

	mock.ExpectExec("INSERT INTO `posts` (`authorId`, `content`) VALUES (?, ?), (?, ?)").
		WithArgs(int64(1), "a", int64(2), "b").
		WillReturnResult(sqlmock.NewResult(0, 2))

	rows, err := e.Insert(context.Background(), "posts", []map[string]interface{}{
		{"authorId": int64(1), "content": "a"},
		{"authorId": int64(2), "content": "b"},
	})
	require.NoError(t, err)
	assert.Nil(t, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateReturnsPostImageViaReturning(t *testing.T) {
	e, mock := mockExecutor(t, dialect.A)

	mock.ExpectQuery(`UPDATE "posts" SET "content" = $1 WHERE "id" <= $2 RETURNING *`).
		WithArgs("UPDATED", int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content"}).AddRow(1, "UPDATED").AddRow(2, "UPDATED"))

	rows, err := e.Update(context.Background(), executor.UpdateParams{
		Table: "posts",
		Set:   map[string]interface{}{"content": "UPDATED"},
		Where: &argtranslate.WhereNode{
			Leaves: []argtranslate.LeafCondition{{Column: "id", Op: dialect.OpLte, Value: int64(3)}},
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOnMySQLRereadsPostImageByPrimaryKey(t *testing.T) {
	e, mock := mockExecutor(t, dialect.B)

	mock.ExpectQuery("SELECT `id` FROM `posts` WHERE `authorId` = ?").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectExec("UPDATE `posts` SET `content` = ? WHERE `id` IN (?, ?)").
		WithArgs("UPDATED", int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("SELECT * FROM `posts` WHERE `id` IN (?, ?)").
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content"}).AddRow(1, "UPDATED").AddRow(2, "UPDATED"))

	rows, err := e.Update(context.Background(), executor.UpdateParams{
		Table: "posts",
		Set:   map[string]interface{}{"content": "UPDATED"},
		Where: &argtranslate.WhereNode{
			Leaves: []argtranslate.LeafCondition{{Column: "authorId", Op: dialect.OpEq, Value: int64(1)}},
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteReturnsPreImage(t *testing.T) {
	e, mock := mockExecutor(t, dialect.A)

	mock.ExpectQuery(`SELECT * FROM "posts" WHERE "authorId" = $1`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "authorId"}).AddRow(4, 5).AddRow(5, 5))
	mock.ExpectExec(`DELETE FROM "posts" WHERE "authorId" = $1`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	rows, err := e.Delete(context.Background(), executor.DeleteParams{
		Table: "posts",
		Where: &argtranslate.WhereNode{
			Leaves: []argtranslate.LeafCondition{{Column: "authorId", Op: dialect.OpEq, Value: int64(5)}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), rows[0]["id"])
	assert.Equal(t, int64(5), rows[1]["id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNestedRelationBatchedIntoSingleINQuery(t *testing.T) {
	e, mock := mockExecutor(t, dialect.A)

	mock.ExpectQuery(`SELECT "id", "name" FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "First").AddRow(2, "Second"))
	mock.ExpectQuery(`SELECT "id", "authorId" FROM "posts" WHERE "authorId" IN ($1, $2)`).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "authorId"}).AddRow(10, 1).AddRow(11, 1))

	rows, err := e.SelectMany(context.Background(), executor.SelectManyParams{
		Table:   "users",
		Columns: []string{"id", "name"},
		NestedRelations: map[string]*executor.NestedRelation{
			"posts": {
				TargetTable: "posts",
				Cardinality: schema.Many,
				Join:        []schema.JoinPair{{OwningColumn: "id", TargetColumn: "authorId"}},
				Columns:     []string{"id", "authorId"},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]["posts"].([]map[string]interface{})
	require.Len(t, first, 2)
	assert.Equal(t, int64(10), first[0]["id"])

	second := rows[1]["posts"].([]map[string]interface{})
	assert.Empty(t, second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionCommitsOnSuccess(t *testing.T) {
	e, mock := mockExecutor(t, dialect.A)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "posts" ("authorId", "content") VALUES ($1, $2) RETURNING *`).
		WithArgs(int64(1), "tx").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectCommit()

	err := e.WithTransaction(context.Background(), func(tx executor.Executor) error {
		_, err := tx.InsertOne(context.Background(), "posts", map[string]interface{}{
			"authorId": int64(1), "content": "tx",
		})
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRollsBackOnError(t *testing.T) {
	e, mock := mockExecutor(t, dialect.A)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id" FROM "posts"`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := e.WithTransaction(context.Background(), func(tx executor.Executor) error {
		_, err := tx.SelectMany(context.Background(), executor.SelectManyParams{
			Table:   "posts",
			Columns: []string{"id"},
		})
		return err
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
