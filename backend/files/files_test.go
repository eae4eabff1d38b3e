package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/layout"
)

func TestScalarRoundTrip(t *testing.T) {
	b, err := New(t.TempDir())
	require.NoError(t, err)

	b.SetScalar("description", dafval.String("test store"))
	v, ok := b.GetScalar("description")
	require.True(t, ok)
	assert.Equal(t, "test store", v.AsString())

	b.SetScalar("threshold", dafval.Float64(3.5))
	v, ok = b.GetScalar("threshold")
	require.True(t, ok)
	assert.Equal(t, 3.5, v.AsFloat64())
}

func TestAxisEntriesNewlineDelimited(t *testing.T) {
	dir := t.TempDir()
	b, err := New(dir)
	require.NoError(t, err)

	b.AddAxis("cell", []string{"A", "B", "C"})
	assert.True(t, b.HasAxis("cell"))
	assert.Equal(t, []string{"A", "B", "C"}, b.AxisEntries("cell"))
	assert.Equal(t, 3, b.AxisLength("cell"))

	raw, err := os.ReadFile(filepath.Join(dir, "axes", "cell", "entries"))
	require.NoError(t, err)
	assert.Equal(t, "A\nB\nC\n", string(raw))
}

func TestDenseVectorRoundTripCompressed(t *testing.T) {
	b, err := New(t.TempDir())
	require.NoError(t, err)
	b.AddAxis("cell", []string{"A", "B", "C"})

	builder := backend.NewDenseVectorBuilder(dafval.KindFloat64, 3)
	builder.Set(0, dafval.Float64(1.5))
	builder.Set(1, dafval.Float64(2.5))
	builder.Set(2, dafval.Float64(3.5))
	b.SetVector("cell", "score", builder.Finish())

	got, ok := b.GetVector("cell", "score")
	require.True(t, ok)
	assert.Equal(t, 1.5, got.Get(0).AsFloat64())
	assert.Equal(t, 3.5, got.Get(2).AsFloat64())
}

func TestSparseVectorRoundTrip(t *testing.T) {
	b, err := New(t.TempDir())
	require.NoError(t, err)
	b.AddAxis("cell", []string{"A", "B", "C", "D"})

	sb := backend.NewSparseVectorBuilder(dafval.KindInt32, 4, 2, backend.Index32)
	sb.SetNext(1, dafval.Int32(7))
	sb.SetNext(3, dafval.Int32(9))
	b.SetVector("cell", "flag", sb.Finish())

	got, ok := b.GetVector("cell", "flag")
	require.True(t, ok)
	assert.True(t, got.Sparse)
	assert.Equal(t, int64(0), int64(got.Get(0).AsFloat64()))
	assert.Equal(t, int64(7), int64(got.Get(1).AsFloat64()))
	assert.Equal(t, int64(9), int64(got.Get(3).AsFloat64()))
}

func TestStringVectorRoundTrip(t *testing.T) {
	b, err := New(t.TempDir())
	require.NoError(t, err)
	b.AddAxis("cell", []string{"A", "B"})

	builder := backend.NewDenseVectorBuilder(dafval.KindString, 2)
	builder.Set(0, dafval.String("alpha"))
	builder.Set(1, dafval.String("beta"))
	b.SetVector("cell", "label", builder.Finish())

	got, ok := b.GetVector("cell", "label")
	require.True(t, ok)
	assert.Equal(t, "alpha", got.Get(0).AsString())
	assert.Equal(t, "beta", got.Get(1).AsString())
}

func TestDenseMatrixRoundTrip(t *testing.T) {
	b, err := New(t.TempDir())
	require.NoError(t, err)
	b.AddAxis("cell", []string{"A", "B"})
	b.AddAxis("gene", []string{"X", "Y", "Z"})

	m, err := layout.NewDense(dafval.KindFloat64, 2, 3, layout.Rows, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	b.SetMatrix("cell", "gene", "UMIs", backend.MatrixData{RowsAxis: "cell", ColsAxis: "gene", Matrix: m})

	got, ok := b.GetMatrix("cell", "gene", "UMIs")
	require.True(t, ok)
	r, c := got.Matrix.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, layout.Rows, got.Matrix.Major())
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			assert.Equal(t, m.At(i, j), got.Matrix.At(i, j))
		}
	}
}

func TestSparseMatrixRoundTrip(t *testing.T) {
	b, err := New(t.TempDir())
	require.NoError(t, err)
	b.AddAxis("cell", []string{"A", "B", "C"})
	b.AddAxis("gene", []string{"X", "Y", "Z"})

	indptr := []int{0, 1, 1, 2}
	ind := []int{0, 2}
	data := []float64{5, 7}
	m, err := layout.NewSparseCSR(dafval.KindFloat64, 3, 3, indptr, ind, data)
	require.NoError(t, err)
	b.SetMatrix("cell", "gene", "sparse", backend.MatrixData{RowsAxis: "cell", ColsAxis: "gene", Matrix: m})

	got, ok := b.GetMatrix("cell", "gene", "sparse")
	require.True(t, ok)
	assert.True(t, got.Matrix.IsSparse())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, m.At(i, j), got.Matrix.At(i, j))
		}
	}
}

func TestProcessColumnNameHashesLongNames(t *testing.T) {
	short := "age"
	assert.Equal(t, short, ProcessColumnName(short))

	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}
	hashed := ProcessColumnName(string(long))
	assert.NotEqual(t, string(long), hashed)
	assert.Less(t, len(hashed), len(long))
}
