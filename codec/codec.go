// Package codec marshals relational values between their database-native
// representation and their GraphQL-facing JSON representation, one pure pair
// of functions per (dialect, logical type). Every rule here is dialect-aware:
// timestamp precision, array/vector/point availability, and binary/JSON
// encoding all vary by backend.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/relschema-eu/relschema/apperrors"
	"github.com/relschema-eu/relschema/dialect"
	"github.com/relschema-eu/relschema/schema"
	"github.com/twpayne/go-geom"
)

const dateLayout = "2006-01-02"

// MarshalOut converts a database-native value into its GraphQL-facing JSON
// form for the given column, under the rules of dialect d.
func MarshalOut(d dialect.Dialect, col schema.Column, dbValue interface{}) (interface{}, error) {
	if dbValue == nil {
		if col.Nullable {
			return nil, nil
		}
		return nil, apperrors.Codec("column %q is non-null but database value is nil", col.Name)
	}

	switch col.Kind {
	case schema.Int32, schema.Int64:
		return toInt64(dbValue)

	case schema.BigInt:
		n, err := toInt64(dbValue)
		if err != nil {
			return nil, err
		}
		return strconv.FormatInt(n, 10), nil

	case schema.Decimal:
		return decimalString(dbValue)

	case schema.Float:
		f, err := toFloat64(dbValue)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, apperrors.Codec("column %q: non-finite float value", col.Name)
		}
		return f, nil

	case schema.Boolean:
		b, ok := dbValue.(bool)
		if !ok {
			return nil, apperrors.Codec("column %q: expected bool, got %T", col.Name, dbValue)
		}
		return b, nil

	case schema.String, schema.Text, schema.Char, schema.Varchar:
		s, ok := asString(dbValue)
		if !ok {
			return nil, apperrors.Codec("column %q: expected string, got %T", col.Name, dbValue)
		}
		return s, nil

	case schema.Enum:
		s, ok := asString(dbValue)
		if !ok {
			return nil, apperrors.Codec("column %q: expected string enum value, got %T", col.Name, dbValue)
		}
		if !isValidVariant(col.EnumVariants, s) {
			return nil, apperrors.Codec("column %q: %q is not a valid variant", col.Name, s)
		}
		return s, nil

	case schema.Date:
		t, err := asTime(dbValue)
		if err != nil {
			return nil, apperrors.Codec("column %q: %v", col.Name, err)
		}
		return t.Format(dateLayout), nil

	case schema.Timestamp:
		t, err := asTime(dbValue)
		if err != nil {
			return nil, apperrors.Codec("column %q: %v", col.Name, err)
		}
		return formatTimestamp(t, d.TimestampPrecision), nil

	case schema.TimestampMs:
		if !d.SupportsColumnKind(schema.TimestampMs) {
			return nil, apperrors.Codec("column %q: dialect %s does not preserve millisecond timestamps", col.Name, d.Name)
		}
		t, err := asTime(dbValue)
		if err != nil {
			return nil, apperrors.Codec("column %q: %v", col.Name, err)
		}
		return formatTimestamp(t, dialect.PrecisionMillisecond), nil

	case schema.JSON:
		return canonicalizeJSON(dbValue)

	case schema.Blob:
		b, ok := dbValue.([]byte)
		if !ok {
			return nil, apperrors.Codec("column %q: expected []byte, got %T", col.Name, dbValue)
		}
		return base64.StdEncoding.EncodeToString(b), nil

	case schema.Array:
		if !d.SupportsColumnKind(schema.Array) {
			return nil, apperrors.Codec("column %q: dialect %s does not support array columns", col.Name, d.Name)
		}
		items, ok := dbValue.([]interface{})
		if !ok {
			return nil, apperrors.Codec("column %q: expected slice, got %T", col.Name, dbValue)
		}
		elemCol := schema.Column{Name: col.Name, Kind: col.ElemKind, Nullable: true, EnumVariants: col.EnumVariants}
		out := make([]interface{}, len(items))
		for i, item := range items {
			v, err := MarshalOut(d, elemCol, item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case schema.Vector:
		if !d.SupportsColumnKind(schema.Vector) {
			return nil, apperrors.Codec("column %q: dialect %s does not support vector columns", col.Name, d.Name)
		}
		return vectorToFloats(col, dbValue)

	case schema.PointXY:
		if !d.SupportsColumnKind(schema.PointXY) {
			return nil, apperrors.Codec("column %q: dialect %s does not support point columns", col.Name, d.Name)
		}
		p, err := asPoint(dbValue)
		if err != nil {
			return nil, apperrors.Codec("column %q: %v", col.Name, err)
		}
		return map[string]interface{}{"x": p.X(), "y": p.Y()}, nil

	case schema.PointTuple:
		if !d.SupportsColumnKind(schema.PointTuple) {
			return nil, apperrors.Codec("column %q: dialect %s does not support point columns", col.Name, d.Name)
		}
		p, err := asPoint(dbValue)
		if err != nil {
			return nil, apperrors.Codec("column %q: %v", col.Name, err)
		}
		return []interface{}{p.X(), p.Y()}, nil

	default:
		return nil, apperrors.Codec("column %q: unknown logical type %q", col.Name, col.Kind)
	}
}

// MarshalIn converts a GraphQL-facing JSON value into its database-native
// form for the given column, under the rules of dialect d.
func MarshalIn(d dialect.Dialect, col schema.Column, jsonValue interface{}) (interface{}, error) {
	if jsonValue == nil {
		if col.Nullable {
			return nil, nil
		}
		return nil, apperrors.Codec("column %q is non-null but input value is null", col.Name)
	}

	switch col.Kind {
	case schema.Int32, schema.Int64:
		return toInt64(jsonValue)

	case schema.BigInt:
		s, ok := asString(jsonValue)
		if !ok {
			return nil, apperrors.Codec("column %q: expected decimal string, got %T", col.Name, jsonValue)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, apperrors.Codec("column %q: invalid bigint string %q", col.Name, s)
		}
		return n, nil

	case schema.Decimal:
		s, ok := asString(jsonValue)
		if !ok {
			return nil, apperrors.Codec("column %q: expected decimal string, got %T", col.Name, jsonValue)
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return nil, apperrors.Codec("column %q: invalid decimal string %q", col.Name, s)
		}
		return s, nil

	case schema.Float:
		f, err := toFloat64(jsonValue)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, apperrors.Codec("column %q: non-finite float value", col.Name)
		}
		return f, nil

	case schema.Boolean:
		b, ok := jsonValue.(bool)
		if !ok {
			return nil, apperrors.Codec("column %q: expected bool, got %T", col.Name, jsonValue)
		}
		return b, nil

	case schema.String, schema.Text, schema.Char, schema.Varchar:
		s, ok := asString(jsonValue)
		if !ok {
			return nil, apperrors.Codec("column %q: expected string, got %T", col.Name, jsonValue)
		}
		if col.Kind == schema.Char && col.Length > 0 && len(s) != col.Length {
			return nil, apperrors.Codec("column %q: char(%d) requires exactly %d characters, got %d", col.Name, col.Length, col.Length, len(s))
		}
		if col.Kind == schema.Varchar && col.Length > 0 && len(s) > col.Length {
			return nil, apperrors.Codec("column %q: varchar(%d) exceeded by %d characters", col.Name, col.Length, len(s))
		}
		return s, nil

	case schema.Enum:
		s, ok := asString(jsonValue)
		if !ok {
			return nil, apperrors.Codec("column %q: expected string enum value, got %T", col.Name, jsonValue)
		}
		if !isValidVariant(col.EnumVariants, s) {
			return nil, apperrors.Codec("column %q: %q is not a valid variant", col.Name, s)
		}
		return s, nil

	case schema.Date:
		s, ok := asString(jsonValue)
		if !ok {
			return nil, apperrors.Codec("column %q: expected ISO date string, got %T", col.Name, jsonValue)
		}
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, apperrors.Codec("column %q: invalid date %q", col.Name, s)
		}
		return t, nil

	case schema.Timestamp, schema.TimestampMs:
		s, ok := asString(jsonValue)
		if !ok {
			return nil, apperrors.Codec("column %q: expected ISO-8601 timestamp, got %T", col.Name, jsonValue)
		}
		t, err := parseTimestamp(s)
		if err != nil {
			return nil, apperrors.Codec("column %q: invalid timestamp %q", col.Name, s)
		}
		return t, nil

	case schema.JSON:
		return jsonValue, nil

	case schema.Blob:
		s, ok := asString(jsonValue)
		if !ok {
			return nil, apperrors.Codec("column %q: expected base64 string, got %T", col.Name, jsonValue)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, apperrors.Codec("column %q: invalid base64 %q", col.Name, s)
		}
		return b, nil

	case schema.Array:
		if !d.SupportsColumnKind(schema.Array) {
			return nil, apperrors.Codec("column %q: dialect %s does not support array columns", col.Name, d.Name)
		}
		items, ok := jsonValue.([]interface{})
		if !ok {
			return nil, apperrors.Codec("column %q: expected list, got %T", col.Name, jsonValue)
		}
		elemCol := schema.Column{Name: col.Name, Kind: col.ElemKind, Nullable: true, EnumVariants: col.EnumVariants}
		out := make([]interface{}, len(items))
		for i, item := range items {
			v, err := MarshalIn(d, elemCol, item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case schema.Vector:
		if !d.SupportsColumnKind(schema.Vector) {
			return nil, apperrors.Codec("column %q: dialect %s does not support vector columns", col.Name, d.Name)
		}
		items, ok := jsonValue.([]interface{})
		if !ok {
			return nil, apperrors.Codec("column %q: expected list of numbers, got %T", col.Name, jsonValue)
		}
		if col.VectorDim > 0 && len(items) != col.VectorDim {
			return nil, apperrors.Codec("column %q: vector requires %d elements, got %d", col.Name, col.VectorDim, len(items))
		}
		out := make([]float64, len(items))
		for i, item := range items {
			f, err := toFloat64(item)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil

	case schema.PointXY:
		if !d.SupportsColumnKind(schema.PointXY) {
			return nil, apperrors.Codec("column %q: dialect %s does not support point columns", col.Name, d.Name)
		}
		obj, ok := jsonValue.(map[string]interface{})
		if !ok {
			return nil, apperrors.Codec("column %q: expected {x,y} object, got %T", col.Name, jsonValue)
		}
		x, errX := toFloat64(obj["x"])
		y, errY := toFloat64(obj["y"])
		if errX != nil || errY != nil {
			return nil, apperrors.Codec("column %q: {x,y} must both be numbers", col.Name)
		}
		return geom.NewPointFlat(geom.XY, []float64{x, y}), nil

	case schema.PointTuple:
		if !d.SupportsColumnKind(schema.PointTuple) {
			return nil, apperrors.Codec("column %q: dialect %s does not support point columns", col.Name, d.Name)
		}
		items, ok := jsonValue.([]interface{})
		if !ok || len(items) != 2 {
			return nil, apperrors.Codec("column %q: expected a 2-element [x,y] list", col.Name)
		}
		x, errX := toFloat64(items[0])
		y, errY := toFloat64(items[1])
		if errX != nil || errY != nil {
			return nil, apperrors.Codec("column %q: [x,y] must both be numbers", col.Name)
		}
		return geom.NewPointFlat(geom.XY, []float64{x, y}), nil

	default:
		return nil, apperrors.Codec("column %q: unknown logical type %q", col.Name, col.Kind)
	}
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, apperrors.Codec("expected integer, got fractional value %v", n)
		}
		return int64(n), nil
	case string:
		// Wide-integer scalars travel as decimal strings on the wire.
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, apperrors.Codec("expected integer, got %q", n)
		}
		return parsed, nil
	default:
		return 0, apperrors.Codec("expected integer, got %T", v)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, apperrors.Codec("expected number, got %T", v)
	}
}

func asString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}

func isValidVariant(variants []string, v string) bool {
	for _, variant := range variants {
		if variant == v {
			return true
		}
	}
	return false
}

func decimalString(v interface{}) (string, error) {
	switch n := v.(type) {
	case string:
		return n, nil
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), nil
	default:
		return "", apperrors.Codec("expected decimal value, got %T", v)
	}
}

func asTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parseTimestamp(t)
	default:
		return time.Time{}, fmt.Errorf("expected time.Time, got %T", v)
	}
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func formatTimestamp(t time.Time, precision dialect.TimestampPrecision) string {
	t = t.UTC()
	if precision == dialect.PrecisionSecond {
		return t.Truncate(time.Second).Format(time.RFC3339)
	}
	return t.Format("2006-01-02T15:04:05.000Z07:00")
}

// canonicalizeJSON re-serializes a string-encoded JSON value into its parsed
// form so repeated round-trips are stable.
func canonicalizeJSON(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case string:
		var out interface{}
		if err := json.Unmarshal([]byte(val), &out); err != nil {
			return nil, apperrors.Codec("invalid JSON: %v", err)
		}
		return out, nil
	case []byte:
		var out interface{}
		if err := json.Unmarshal(val, &out); err != nil {
			return nil, apperrors.Codec("invalid JSON: %v", err)
		}
		return out, nil
	default:
		return v, nil
	}
}

func vectorToFloats(col schema.Column, v interface{}) ([]float64, error) {
	var out []float64
	switch vec := v.(type) {
	case []float64:
		out = vec
	case []interface{}:
		out = make([]float64, len(vec))
		for i, item := range vec {
			f, err := toFloat64(item)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
	default:
		return nil, apperrors.Codec("column %q: expected vector, got %T", col.Name, v)
	}
	if col.VectorDim > 0 && len(out) != col.VectorDim {
		return nil, apperrors.Codec("column %q: vector requires %d elements, got %d", col.Name, col.VectorDim, len(out))
	}
	return out, nil
}

func asPoint(v interface{}) (*geom.Point, error) {
	switch p := v.(type) {
	case *geom.Point:
		return p, nil
	case geom.Point:
		return &p, nil
	case [2]float64:
		return geom.NewPointFlat(geom.XY, p[:]), nil
	default:
		return nil, fmt.Errorf("expected point value, got %T", v)
	}
}
