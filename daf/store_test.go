package daf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/backend/memory"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/internal/daferr"
	"github.com/tanaylab/daf-go/layout"
)

func TestCreateAndRead(t *testing.T) {
	s := NewStoreDefault(memory.New("S"))

	require.NoError(t, s.AddAxis("cell", []string{"c0", "c1", "c2"}))
	require.NoError(t, s.SetVector("cell", "age", backend.VectorData{
		Kind: dafval.KindInt64, Length: 3,
		Dense: []dafval.Value{
			dafval.Int64(10), dafval.Int64(20), dafval.Int64(30),
		},
	}))

	v, err := s.GetVector("cell", "age")
	require.NoError(t, err)
	require.Equal(t, 3, v.Length)
	for i, want := range []float64{10, 20, 30} {
		assert.Equal(t, want, v.Get(i).AsFloat64())
	}

	assert.Empty(t, s.ScalarNames())
	assert.Equal(t, []string{"age"}, s.VectorNames("cell"))
	assert.True(t, s.HasVector("cell", "age"))
	assert.False(t, s.HasVector("cell", "weight"))
}

func TestAddAxisValidation(t *testing.T) {
	s := NewStoreDefault(memory.New("S"))
	require.NoError(t, s.AddAxis("cell", []string{"c0", "c1"}))

	err := s.AddAxis("cell", []string{"x"})
	require.ErrorIs(t, err, daferr.ErrDuplicateAxis)

	err = s.AddAxis("gene", []string{"g0", "g0"})
	require.ErrorIs(t, err, daferr.ErrDuplicateEntry)
}

func TestDeleteAxisInUse(t *testing.T) {
	s := NewStoreDefault(memory.New("S"))
	require.NoError(t, s.AddAxis("cell", []string{"c0", "c1"}))
	require.NoError(t, s.SetVector("cell", "age", backend.VectorData{
		Kind: dafval.KindInt64, Length: 2,
		Dense: []dafval.Value{dafval.Int64(1), dafval.Int64(2)},
	}))

	require.ErrorIs(t, s.DeleteAxis("cell"), daferr.ErrAxisInUse)

	s.DeleteVector("cell", "age")
	require.NoError(t, s.DeleteAxis("cell"))
	assert.False(t, s.HasAxis("cell"))
}

func TestSetVectorLengthMismatch(t *testing.T) {
	s := NewStoreDefault(memory.New("S"))
	require.NoError(t, s.AddAxis("cell", []string{"c0", "c1"}))
	err := s.SetVector("cell", "age", backend.VectorData{
		Kind: dafval.KindInt64, Length: 3,
		Dense: []dafval.Value{dafval.Int64(1), dafval.Int64(2), dafval.Int64(3)},
	})
	require.ErrorIs(t, err, daferr.ErrLengthMismatch)
}

func TestVersionCountersAdvance(t *testing.T) {
	s := NewStoreDefault(memory.New("S"))
	require.NoError(t, s.AddAxis("cell", []string{"c0", "c1"}))
	v0 := s.VectorVersion("cell", "age")

	vec := backend.VectorData{
		Kind: dafval.KindInt64, Length: 2,
		Dense: []dafval.Value{dafval.Int64(1), dafval.Int64(2)},
	}
	require.NoError(t, s.SetVector("cell", "age", vec))
	v1 := s.VectorVersion("cell", "age")
	assert.Greater(t, v1, v0)

	require.NoError(t, s.SetVector("cell", "age", vec))
	assert.Greater(t, s.VectorVersion("cell", "age"), v1)
}

// umisStore holds a 2x3 column-major dense UInt8 matrix [[1,2,3],[4,5,6]]
// under ("gene","cell","UMIs").
func umisStore(t *testing.T) *Store {
	t.Helper()
	s := NewStoreDefault(memory.New("S"))
	require.NoError(t, s.AddAxis("gene", []string{"g0", "g1"}))
	require.NoError(t, s.AddAxis("cell", []string{"c0", "c1", "c2"}))

	m, err := layout.NewDense(dafval.KindUint8, 2, 3, layout.Columns,
		[]float64{1, 4, 2, 5, 3, 6})
	require.NoError(t, err)
	require.NoError(t, s.SetMatrix("gene", "cell", "UMIs", m))
	return s
}

func TestMatrixAutoRelayoutAndCache(t *testing.T) {
	s := umisStore(t)

	md, err := s.GetMatrix("gene", "cell", "UMIs", layout.Columns)
	require.NoError(t, err)
	assert.Equal(t, layout.Columns, md.Matrix.Major())
	nr, nc := md.Matrix.Dims()
	assert.Equal(t, 2, nr)
	assert.Equal(t, 3, nc)
	assert.Equal(t, 6.0, md.Matrix.At(1, 2))

	// Requesting the transposed orientation auto-relayouts and memoizes.
	flipped, err := s.GetMatrix("cell", "gene", "UMIs", layout.Columns)
	require.NoError(t, err)
	assert.Equal(t, layout.Columns, flipped.Matrix.Major())
	nr, nc = flipped.Matrix.Dims()
	assert.Equal(t, 3, nr)
	assert.Equal(t, 2, nc)
	want := [][]float64{{1, 4}, {2, 5}, {3, 6}}
	for r := range want {
		for c := range want[r] {
			assert.Equal(t, want[r][c], flipped.Matrix.At(r, c))
		}
	}

	again, err := s.GetMatrix("cell", "gene", "UMIs", layout.Columns)
	require.NoError(t, err)
	assert.Same(t, flipped.Matrix, again.Matrix, "second call should be a cache hit")
}

func TestSetMatrixInvalidatesCachedRelayout(t *testing.T) {
	s := umisStore(t)

	flipped, err := s.GetMatrix("cell", "gene", "UMIs", layout.Columns)
	require.NoError(t, err)

	m, err := layout.NewDense(dafval.KindUint8, 2, 3, layout.Columns,
		[]float64{9, 9, 9, 9, 9, 9})
	require.NoError(t, err)
	require.NoError(t, s.SetMatrix("gene", "cell", "UMIs", m))

	fresh, err := s.GetMatrix("cell", "gene", "UMIs", layout.Columns)
	require.NoError(t, err)
	assert.NotSame(t, flipped.Matrix, fresh.Matrix)
	assert.Equal(t, 9.0, fresh.Matrix.At(0, 0))
}

func TestSetMatrixRequiresColumnMajor(t *testing.T) {
	s := NewStoreDefault(memory.New("S"))
	require.NoError(t, s.AddAxis("gene", []string{"g0", "g1"}))
	require.NoError(t, s.AddAxis("cell", []string{"c0", "c1", "c2"}))

	m, err := layout.NewDense(dafval.KindUint8, 2, 3, layout.Rows,
		[]float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	require.ErrorIs(t, s.SetMatrix("gene", "cell", "UMIs", m), daferr.ErrLayoutMismatch)
}

func TestRelayoutMatrixPersists(t *testing.T) {
	s := umisStore(t)
	require.NoError(t, s.RelayoutMatrix("gene", "cell", "UMIs"))

	md, err := s.GetMatrix("gene", "cell", "UMIs", layout.None)
	require.NoError(t, err)
	assert.Equal(t, layout.Rows, md.Matrix.Major())
	assert.Equal(t, 6.0, md.Matrix.At(1, 2))
}

func TestCacheBudgetEvicts(t *testing.T) {
	s := umisStore(t)
	s.SetCacheBudget(1) // smaller than any relayout artifact

	flipped, err := s.GetMatrix("cell", "gene", "UMIs", layout.Columns)
	require.NoError(t, err)
	// The artifact being published is never evicted, so the first repeat
	// call still hits; publishing a competing artifact evicts it.
	again, err := s.GetMatrix("cell", "gene", "UMIs", layout.Columns)
	require.NoError(t, err)
	assert.Same(t, flipped.Matrix, again.Matrix)
	_, err = s.GetMatrix("gene", "cell", "UMIs", layout.Rows)
	require.NoError(t, err)
	evicted, err := s.GetMatrix("cell", "gene", "UMIs", layout.Columns)
	require.NoError(t, err)
	assert.NotSame(t, flipped.Matrix, evicted.Matrix)
}

func TestDescribeListsContents(t *testing.T) {
	s := umisStore(t)
	out := s.Describe()
	assert.Contains(t, out, "axis gene: 2 entries")
	assert.Contains(t, out, "axis cell: 3 entries")
	assert.Contains(t, out, "UMIs")
}

func TestAxisEntryIndexMemoized(t *testing.T) {
	s := NewStoreDefault(memory.New("S"))
	require.NoError(t, s.AddAxis("cell", []string{"c0", "c1", "c2"}))

	idx, err := s.AxisEntryIndex("cell")
	require.NoError(t, err)
	assert.Equal(t, 1, idx["c1"])

	// Same cached map until the axis version moves.
	again, err := s.AxisEntryIndex("cell")
	require.NoError(t, err)
	idx["sentinel"] = -1
	assert.Equal(t, -1, again["sentinel"], "cache hit must return the memoized map")

	_, err = s.AxisEntryIndex("gene")
	require.ErrorIs(t, err, daferr.ErrUnknownAxis)
}
