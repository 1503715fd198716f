package typeregistry

import (
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// Custom scalars mint the wire-level shape for logical types that have no
// native GraphQL representation. Each is intentionally "dumb": it accepts or
// rejects the *shape* of a value (string, list, object) and otherwise passes
// it through unchanged. Semantic validation (decimal syntax, vector length,
// enum membership, dialect support) belongs to package codec, not to the
// scalar.

// BigIntScalar carries int64 and bigint columns. Output passes through the
// codec's value unchanged: bigint values are decimal strings, int64 values
// are numbers. Input accepts a decimal string or an integer literal.
var BigIntScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "BigInt",
	Description: "A 64-bit integer: bigint columns serialize as a decimal string, int64 columns as a number",
	Serialize:   identitySerialize,
	ParseValue:  stringParseValue,
	ParseLiteral: func(v ast.Value) interface{} {
		switch n := v.(type) {
		case *ast.StringValue:
			return n.Value
		case *ast.IntValue:
			return n.Value
		default:
			return nil
		}
	},
})

// DecimalScalar represents arbitrary-precision decimals as strings.
var DecimalScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:         "Decimal",
	Description:  "An arbitrary-precision decimal serialized as a string",
	Serialize:    identitySerialize,
	ParseValue:   stringParseValue,
	ParseLiteral: stringParseLiteral,
})

// JSONScalar represents opaque JSON values.
var JSONScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "An arbitrary JSON value",
	Serialize: func(value interface{}) interface{} {
		return value
	},
	ParseValue: func(value interface{}) interface{} {
		return value
	},
	ParseLiteral: func(v ast.Value) interface{} {
		return parseASTValue(v)
	},
})

// BytesScalar represents binary data as a base64 string.
var BytesScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:         "Bytes",
	Description:  "Binary data serialized as a base64 string",
	Serialize:    identitySerialize,
	ParseValue:   stringParseValue,
	ParseLiteral: stringParseLiteral,
})

// VectorScalar represents a fixed-length list of floats.
var VectorScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "Vector",
	Description: "A list of floating point numbers",
	Serialize: func(value interface{}) interface{} {
		return value
	},
	ParseValue: func(value interface{}) interface{} {
		if _, ok := value.([]interface{}); ok {
			return value
		}
		return nil
	},
	ParseLiteral: func(v ast.Value) interface{} {
		if list, ok := v.(*ast.ListValue); ok {
			return parseListValue(list)
		}
		return nil
	},
})

// PointXYScalar represents a {x, y} coordinate object.
var PointXYScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "PointXY",
	Description: "A geometric point expressed as {x, y}",
	Serialize: func(value interface{}) interface{} {
		return value
	},
	ParseValue: func(value interface{}) interface{} {
		if _, ok := value.(map[string]interface{}); ok {
			return value
		}
		return nil
	},
	ParseLiteral: func(v ast.Value) interface{} {
		if obj, ok := v.(*ast.ObjectValue); ok {
			return parseObjectValue(obj)
		}
		return nil
	},
})

// PointTupleScalar represents a [x, y] two-element coordinate list.
var PointTupleScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "PointTuple",
	Description: "A geometric point expressed as a two-element [x, y] list",
	Serialize: func(value interface{}) interface{} {
		return value
	},
	ParseValue: func(value interface{}) interface{} {
		if _, ok := value.([]interface{}); ok {
			return value
		}
		return nil
	},
	ParseLiteral: func(v ast.Value) interface{} {
		if list, ok := v.(*ast.ListValue); ok {
			return parseListValue(list)
		}
		return nil
	},
})

// DateScalar represents calendar dates as YYYY-MM-DD strings.
var DateScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:         "Date",
	Description:  "A calendar date in YYYY-MM-DD format",
	Serialize:    identitySerialize,
	ParseValue:   stringParseValue,
	ParseLiteral: stringParseLiteral,
})

// DateTimeScalar represents timestamps in ISO-8601, with millisecond
// precision retained when the source dialect supports it.
var DateTimeScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:         "DateTime",
	Description:  "A timestamp in ISO-8601 format",
	Serialize:    identitySerialize,
	ParseValue:   stringParseValue,
	ParseLiteral: stringParseLiteral,
})

func identitySerialize(value interface{}) interface{} {
	return value
}

func stringParseValue(value interface{}) interface{} {
	switch s := value.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return value
	}
}

func stringParseLiteral(v ast.Value) interface{} {
	if s, ok := v.(*ast.StringValue); ok {
		return s.Value
	}
	return nil
}

func parseObjectValue(v *ast.ObjectValue) map[string]interface{} {
	result := make(map[string]interface{}, len(v.Fields))
	for _, field := range v.Fields {
		result[field.Name.Value] = parseASTValue(field.Value)
	}
	return result
}

func parseListValue(v *ast.ListValue) []interface{} {
	result := make([]interface{}, len(v.Values))
	for i, val := range v.Values {
		result[i] = parseASTValue(val)
	}
	return result
}

func parseASTValue(v ast.Value) interface{} {
	switch val := v.(type) {
	case *ast.StringValue:
		return val.Value
	case *ast.IntValue:
		return val.Value
	case *ast.FloatValue:
		return val.Value
	case *ast.BooleanValue:
		return val.Value
	case *ast.ObjectValue:
		return parseObjectValue(val)
	case *ast.ListValue:
		return parseListValue(val)
	default:
		return nil
	}
}
