package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/dafval"
)

func TestScalarRoundTrip(t *testing.T) {
	b := New("test")
	assert.False(t, b.HasScalar("version"))
	b.SetScalar("version", dafval.String("1.0"))
	require.True(t, b.HasScalar("version"))
	v, ok := b.GetScalar("version")
	require.True(t, ok)
	assert.Equal(t, "1.0", v.AsString())
	b.DeleteScalar("version")
	assert.False(t, b.HasScalar("version"))
}

func TestAxisAndDenseVector(t *testing.T) {
	b := New("test")
	b.AddAxis("cell", []string{"A", "B", "C"})
	require.True(t, b.HasAxis("cell"))
	assert.Equal(t, 3, b.AxisLength("cell"))

	builder := backend.NewDenseVectorBuilder(dafval.KindInt32, 3)
	builder.Set(0, dafval.Int32(10))
	builder.Set(1, dafval.Int32(20))
	builder.Set(2, dafval.Int32(30))
	b.SetVector("cell", "age", builder.Finish())

	got, ok := b.GetVector("cell", "age")
	require.True(t, ok)
	assert.Equal(t, 20.0, got.Get(1).AsFloat64())
	assert.Equal(t, 10.0, got.Get(0).AsFloat64())
}

func TestVectorNamesSortedAndIsolatedPerAxis(t *testing.T) {
	b := New("test")
	b.AddAxis("cell", []string{"A"})
	b.AddAxis("gene", []string{"X"})
	b.SetVector("cell", "age", backend.NewDenseVectorBuilder(dafval.KindInt32, 1).Finish())
	b.SetVector("cell", "zz_last", backend.NewDenseVectorBuilder(dafval.KindInt32, 1).Finish())
	b.SetVector("gene", "expr", backend.NewDenseVectorBuilder(dafval.KindFloat32, 1).Finish())

	names := b.VectorNames("cell")
	assert.Equal(t, []string{"age", "zz_last"}, names)
	assert.Equal(t, []string{"expr"}, b.VectorNames("gene"))
}

func TestMatrixRoundTrip(t *testing.T) {
	b := New("test")
	b.AddAxis("cell", []string{"A", "B"})
	b.AddAxis("gene", []string{"X", "Y", "Z"})

	assert.False(t, b.HasMatrix("cell", "gene", "UMIs"))
	md := backend.MatrixData{RowsAxis: "cell", ColsAxis: "gene"}
	b.SetMatrix("cell", "gene", "UMIs", md)
	require.True(t, b.HasMatrix("cell", "gene", "UMIs"))

	got, ok := b.GetMatrix("cell", "gene", "UMIs")
	require.True(t, ok)
	assert.Equal(t, "cell", got.RowsAxis)

	b.DeleteMatrix("cell", "gene", "UMIs")
	assert.False(t, b.HasMatrix("cell", "gene", "UMIs"))
}
