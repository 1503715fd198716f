// Package schema describes the relational shape the compiler reads: tables,
// columns, and relations. Descriptors are built once by the caller and are
// immutable once registered with a Table.
package schema

// LogicalType is a dialect-independent column-type tag. It is the closed set
// the compiler reasons about everywhere else in the pipeline; each dialect
// declares which members of this set it supports (see package dialect).
type LogicalType string

const (
	Int32       LogicalType = "int32"
	Int64       LogicalType = "int64"
	BigInt      LogicalType = "bigint"
	Float       LogicalType = "float"
	Decimal     LogicalType = "decimal"
	Boolean     LogicalType = "boolean"
	String      LogicalType = "string"
	Text        LogicalType = "text"
	Char        LogicalType = "char"
	Varchar     LogicalType = "varchar"
	Date        LogicalType = "date"
	Timestamp   LogicalType = "timestamp"
	TimestampMs LogicalType = "timestamp-ms"
	JSON        LogicalType = "json"
	Enum        LogicalType = "enum"
	Array       LogicalType = "array"
	Vector      LogicalType = "vector"
	PointXY     LogicalType = "point-xy"
	PointTuple  LogicalType = "point-tuple"
	Blob        LogicalType = "blob"
)

// Column describes one column of a Table.
type Column struct {
	Name     string
	Kind     LogicalType
	Nullable bool

	// AutoGenerated marks a column the database populates itself (identity,
	// serial, generated-always). Such columns are omitted from InsertInput.
	AutoGenerated bool

	// HasInsertDefault marks a column with a server-side default value that
	// still accepts an explicit insert value (e.g. created_at default now()).
	// Such a column may be omitted on insert without failing validation.
	HasInsertDefault bool

	// Length applies to Char/Varchar.
	Length int

	// ElemKind applies to Array: the logical type of each element.
	ElemKind LogicalType

	// VectorDim applies to Vector: the required element count.
	VectorDim int

	// EnumVariants applies to Enum: the ordered list of allowed values.
	EnumVariants []string
}

// IsOrdered reports whether the column's logical type supports ordered
// comparison operators (gt/gte/lt/lte) as numeric or temporal values.
func (c Column) IsOrdered() bool {
	switch c.Kind {
	case Int32, Int64, BigInt, Float, Decimal, Date, Timestamp, TimestampMs:
		return true
	default:
		return false
	}
}

// IsString reports whether the column supports string-pattern filters.
func (c Column) IsString() bool {
	switch c.Kind {
	case String, Text, Char, Varchar:
		return true
	default:
		return false
	}
}
