// Package dialect describes the per-backend capability surface the type
// registry and argument translator consult when minting a schema: which
// logical types, filter operators, and timestamp precisions a given
// relational backend supports. Three dialects are recognized (Postgres-like,
// MySQL-like, SQLite-like); features one dialect lacks simply do not appear
// in the generated schema for tables compiled against it — they are never
// stubbed with a runtime error.
package dialect

import (
	"github.com/relschema-eu/relschema/apperrors"
	"github.com/relschema-eu/relschema/schema"
)

// Operator is one leaf comparison supported by the argument translator's
// where-tree.
type Operator string

const (
	OpEq          Operator = "eq"
	OpNe          Operator = "ne"
	OpIsNull      Operator = "isNull"
	OpInArray     Operator = "inArray"
	OpNotInArray  Operator = "notInArray"
	OpGt          Operator = "gt"
	OpGte         Operator = "gte"
	OpLt          Operator = "lt"
	OpLte         Operator = "lte"
	OpLike        Operator = "like"
	OpNotLike     Operator = "notLike"
	OpILike       Operator = "ilike"
	OpNotILike    Operator = "notIlike"
	OpArrayContains  Operator = "arrayContains"
	OpArrayContained Operator = "arrayContained"
	OpArrayOverlaps  Operator = "arrayOverlaps"
)

// TimestampPrecision controls how a dialect's timestamp logical type
// round-trips through the codec.
type TimestampPrecision string

const (
	PrecisionMillisecond TimestampPrecision = "ms"
	PrecisionSecond      TimestampPrecision = "s"
)

// Name identifies one of the three supported dialects.
type Name string

const (
	Postgres Name = "postgres" // Dialect A
	MySQL    Name = "mysql"    // Dialect B
	SQLite   Name = "sqlite"   // Dialect C
)

// Dialect is the capability table consulted when minting input types
// (which operators exist per column kind) and when marshaling values
// (timestamp precision, whether arrays/vectors/points are representable).
type Dialect struct {
	Name Name

	TimestampPrecision TimestampPrecision
	// PreservesTimestampMs reports whether the timestamp-ms logical type
	// keeps millisecond precision on this dialect (only SQLite-like does,
	// per the dialect matrix).
	PreservesTimestampMs bool

	SupportsILike    bool
	SupportsArrayOps bool // arrayContains/arrayContained/arrayOverlaps
	SupportsArray    bool // array(T) column kind at all
	SupportsVector   bool
	SupportsPoint    bool

	// SupportsReturning reports whether insert mutations can return the
	// inserted row set. Dialects that cannot return rows report only
	// {isSuccess} from insert mutations.
	SupportsReturning bool

	// ClassifyError maps a driver-native error into one of the four
	// apperrors kinds, preserving the underlying cause.
	ClassifyError func(err error) *apperrors.Error
}

// Operators returns the set of leaf operators usable against a column of the
// given logical type on this dialect.
func (d Dialect) Operators(col schema.Column) []Operator {
	ops := []Operator{OpEq, OpNe, OpIsNull, OpInArray, OpNotInArray}
	if col.IsOrdered() {
		ops = append(ops, OpGt, OpGte, OpLt, OpLte)
	}
	if col.IsString() {
		ops = append(ops, OpLike, OpNotLike)
		if d.SupportsILike {
			ops = append(ops, OpILike, OpNotILike)
		}
	}
	if col.Kind == schema.Array && d.SupportsArrayOps {
		ops = append(ops, OpArrayContains, OpArrayContained, OpArrayOverlaps)
	}
	return ops
}

// SupportsOperator reports whether op is valid against col on this dialect.
func (d Dialect) SupportsOperator(col schema.Column, op Operator) bool {
	for _, candidate := range d.Operators(col) {
		if candidate == op {
			return true
		}
	}
	return false
}

// SupportsColumnKind reports whether this dialect can represent a column of
// the given logical type at all (e.g. dialect B/C never see vector/point).
func (d Dialect) SupportsColumnKind(kind schema.LogicalType) bool {
	switch kind {
	case schema.Vector:
		return d.SupportsVector
	case schema.PointXY, schema.PointTuple:
		return d.SupportsPoint
	case schema.Array:
		return d.SupportsArray
	case schema.TimestampMs:
		return d.PreservesTimestampMs
	default:
		return true
	}
}

// A is Dialect A, the Postgres-like backend: full feature surface, including
// ilike, array operators, vector and point columns, millisecond timestamps,
// and RETURNING support on insert.
var A = Dialect{
	Name:                 Postgres,
	TimestampPrecision:   PrecisionMillisecond,
	PreservesTimestampMs: false,
	SupportsILike:        true,
	SupportsArrayOps:     true,
	SupportsArray:        true,
	SupportsVector:       true,
	SupportsPoint:        true,
	SupportsReturning:    true,
	ClassifyError:        classifyPostgresError,
}

// B is Dialect B, the MySQL-like backend: no ilike, no array/vector/point
// types, timestamps truncated to seconds, and no RETURNING (inserts report
// only {isSuccess}).
var B = Dialect{
	Name:                 MySQL,
	TimestampPrecision:   PrecisionSecond,
	PreservesTimestampMs: false,
	SupportsILike:        false,
	SupportsArrayOps:     false,
	SupportsArray:        false,
	SupportsVector:       false,
	SupportsPoint:        false,
	SupportsReturning:    false,
	ClassifyError:        classifyMySQLError,
}

// C is Dialect C, the SQLite-like backend: seconds-precision ISO-8601
// timestamps by default, but timestamp-ms columns keep millisecond
// precision; no array/vector/point types; supports RETURNING.
var C = Dialect{
	Name:                 SQLite,
	TimestampPrecision:   PrecisionSecond,
	PreservesTimestampMs: true,
	SupportsILike:        false,
	SupportsArrayOps:     false,
	SupportsArray:        false,
	SupportsVector:       false,
	SupportsPoint:        false,
	SupportsReturning:    true,
	ClassifyError:        classifySQLiteError,
}

// ByName looks up one of the three built-in dialects.
func ByName(name Name) (Dialect, bool) {
	switch name {
	case Postgres:
		return A, true
	case MySQL:
		return B, true
	case SQLite:
		return C, true
	default:
		return Dialect{}, false
	}
}
