package codec_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relschema-eu/relschema/codec"
	"github.com/relschema-eu/relschema/dialect"
	"github.com/relschema-eu/relschema/schema"
)

func TestMarshalOutNil(t *testing.T) {
	nullable := schema.Column{Name: "bio", Kind: schema.Text, Nullable: true}
	v, err := codec.MarshalOut(dialect.A, nullable, nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	required := schema.Column{Name: "bio", Kind: schema.Text, Nullable: false}
	_, err = codec.MarshalOut(dialect.A, required, nil)
	require.Error(t, err)
}

func TestBigIntRoundTrip(t *testing.T) {
	col := schema.Column{Name: "views", Kind: schema.BigInt}
	out, err := codec.MarshalOut(dialect.A, col, int64(9007199254740993))
	require.NoError(t, err)
	assert.Equal(t, "9007199254740993", out)

	in, err := codec.MarshalIn(dialect.A, col, "9007199254740993")
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), in)
}

func TestTimestampPrecisionPerDialect(t *testing.T) {
	col := schema.Column{Name: "created_at", Kind: schema.Timestamp}
	ts := time.Date(2026, 7, 29, 12, 0, 0, 123000000, time.UTC)

	outA, err := codec.MarshalOut(dialect.A, col, ts)
	require.NoError(t, err)
	assert.Equal(t, "2026-07-29T12:00:00.123Z", outA)

	outB, err := codec.MarshalOut(dialect.B, col, ts)
	require.NoError(t, err)
	assert.Equal(t, "2026-07-29T12:00:00Z", outB)
}

func TestTimestampMsRequiresDialectSupport(t *testing.T) {
	col := schema.Column{Name: "recorded_at", Kind: schema.TimestampMs}
	ts := time.Date(2026, 7, 29, 12, 0, 0, 123000000, time.UTC)

	_, err := codec.MarshalOut(dialect.A, col, ts)
	require.Error(t, err)

	out, err := codec.MarshalOut(dialect.C, col, ts)
	require.NoError(t, err)
	assert.Equal(t, "2026-07-29T12:00:00.123Z", out)
}

func TestEnumValidation(t *testing.T) {
	col := schema.Column{Name: "role", Kind: schema.Enum, EnumVariants: []string{"admin", "member"}}

	out, err := codec.MarshalOut(dialect.A, col, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", out)

	_, err = codec.MarshalOut(dialect.A, col, "root")
	require.Error(t, err)
}

func TestVectorLengthMismatch(t *testing.T) {
	col := schema.Column{Name: "embedding", Kind: schema.Vector, VectorDim: 3}

	_, err := codec.MarshalIn(dialect.A, col, []interface{}{1.0, 2.0})
	require.Error(t, err)

	v, err := codec.MarshalIn(dialect.A, col, []interface{}{1.0, 2.0, 3.0})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, v)
}

func TestVectorUnsupportedOnDialectB(t *testing.T) {
	col := schema.Column{Name: "embedding", Kind: schema.Vector, VectorDim: 3}
	_, err := codec.MarshalIn(dialect.B, col, []interface{}{1.0, 2.0, 3.0})
	require.Error(t, err)
}

func TestPointXYRoundTrip(t *testing.T) {
	col := schema.Column{Name: "location", Kind: schema.PointXY}
	in, err := codec.MarshalIn(dialect.A, col, map[string]interface{}{"x": 1.5, "y": 2.5})
	require.NoError(t, err)

	out, err := codec.MarshalOut(dialect.A, col, in)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"x": 1.5, "y": 2.5}, out)
}

func TestPointTupleRoundTrip(t *testing.T) {
	col := schema.Column{Name: "location", Kind: schema.PointTuple}
	in, err := codec.MarshalIn(dialect.A, col, []interface{}{1.5, 2.5})
	require.NoError(t, err)

	out, err := codec.MarshalOut(dialect.A, col, in)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1.5, 2.5}, out)
}

func TestBlobBase64RoundTrip(t *testing.T) {
	col := schema.Column{Name: "payload", Kind: schema.Blob}
	in, err := codec.MarshalIn(dialect.A, col, "aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), in)

	out, err := codec.MarshalOut(dialect.A, col, in)
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=", out)
}

func TestArrayElementsMarshaled(t *testing.T) {
	col := schema.Column{Name: "tags", Kind: schema.Array, ElemKind: schema.String}
	in, err := codec.MarshalIn(dialect.A, col, []interface{}{"a", "b"})
	require.NoError(t, err)

	out, err := codec.MarshalOut(dialect.A, col, in)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b"}, out)
}

func TestArrayUnsupportedOnDialectC(t *testing.T) {
	col := schema.Column{Name: "tags", Kind: schema.Array, ElemKind: schema.String}
	_, err := codec.MarshalOut(dialect.C, col, []interface{}{"a"})
	require.Error(t, err)
}

func TestJSONCanonicalizesStringInput(t *testing.T) {
	col := schema.Column{Name: "meta", Kind: schema.JSON, Nullable: true}
	out, err := codec.MarshalOut(dialect.A, col, `{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, out)
}

func TestNonFiniteFloatRejected(t *testing.T) {
	col := schema.Column{Name: "score", Kind: schema.Float}
	_, err := codec.MarshalOut(dialect.A, col, math.NaN())
	require.Error(t, err)
}
