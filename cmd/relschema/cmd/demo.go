package cmd

import (
	"time"

	"github.com/twpayne/go-geom"

	"github.com/relschema-eu/relschema/dialect"
	"github.com/relschema-eu/relschema/schema"
)

// demoSchema declares the tables the demo server compiles and the rows the
// in-memory executor is seeded with. The users table deliberately carries the
// richer column kinds (enum, json, timestamp, point, vector) so the demo
// exercises dialect gating: on the MySQL- and SQLite-like dialects the point
// and vector columns simply do not appear in the generated schema.
func demoSchema(d dialect.Dialect) (*schema.Registry, map[string][]map[string]interface{}) {
	users := schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", Kind: schema.Int64, AutoGenerated: true},
			{Name: "name", Kind: schema.String},
			{Name: "role", Kind: schema.Enum, Nullable: true, EnumVariants: []string{"admin", "member"}},
			{Name: "profile", Kind: schema.JSON, Nullable: true},
			{Name: "createdAt", Kind: schema.Timestamp, HasInsertDefault: true},
			{Name: "location", Kind: schema.PointXY, Nullable: true},
			{Name: "embedding", Kind: schema.Vector, Nullable: true, VectorDim: 3},
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
			{Name: "publishedAt", Kind: schema.Timestamp, Nullable: true},
		},
		PrimaryKey: []string{"id"},
		Relations: []schema.Relation{
			{Name: "author", TargetTable: "users", Cardinality: schema.One, Join: []schema.JoinPair{{OwningColumn: "authorId", TargetColumn: "id"}}},
		},
	}

	reg, err := schema.NewRegistry([]schema.Table{users, posts})
	if err != nil {
		// The demo schema is static; a registration failure is a programming
		// error, not a runtime condition.
		panic(err)
	}

	now := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	seed := map[string][]map[string]interface{}{
		"users": {
			{
				"id": int64(1), "name": "FirstUser", "role": "admin",
				"profile":   map[string]interface{}{"theme": "dark"},
				"createdAt": now,
				"location":  geom.NewPointFlat(geom.XY, []float64{13.4, 52.5}),
				"embedding": []float64{0.1, 0.2, 0.3},
			},
			{"id": int64(2), "name": "SecondUser", "createdAt": now.Add(time.Hour)},
			{"id": int64(5), "name": "FifthUser", "createdAt": now.Add(2 * time.Hour)},
		},
		"posts": {
			{"id": int64(1), "authorId": int64(1), "content": "1MESSAGE", "publishedAt": now},
			{"id": int64(2), "authorId": int64(1), "content": "2MESSAGE", "publishedAt": now.Add(time.Minute)},
			{"id": int64(3), "authorId": int64(1), "content": "3MESSAGE"},
			{"id": int64(4), "authorId": int64(5), "content": "1MESSAGE"},
			{"id": int64(5), "authorId": int64(5), "content": "2MESSAGE"},
			{"id": int64(6), "authorId": int64(1), "content": "4MESSAGE"},
		},
	}

	if !d.SupportsPoint {
		for _, row := range seed["users"] {
			delete(row, "location")
			delete(row, "embedding")
		}
	}
	return reg, seed
}
