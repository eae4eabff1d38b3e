package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/backend/memory"
	"github.com/tanaylab/daf-go/daf"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/layout"
)

func baseStore(t *testing.T) *daf.Store {
	t.Helper()
	s := daf.NewStoreDefault(memory.New("base"))
	require.NoError(t, s.AddAxis("cell", []string{"c0", "c1", "c2", "c3"}))
	require.NoError(t, s.AddAxis("gene", []string{"g0", "g1"}))
	require.NoError(t, s.SetScalar("organism", dafval.String("human")))
	require.NoError(t, s.SetVector("cell", "donor", backend.VectorData{
		Kind: dafval.KindString, Length: 4,
		Dense: []dafval.Value{
			dafval.String("d0"), dafval.String("d1"), dafval.String("d0"), dafval.String("d2"),
		},
	}))
	m, err := layout.NewDense(dafval.KindUint8, 2, 4, layout.Columns,
		[]float64{1, 5, 2, 6, 3, 7, 4, 8})
	require.NoError(t, err)
	require.NoError(t, s.SetMatrix("gene", "cell", "UMIs", m))
	return s
}

func TestScalarRenameAndHide(t *testing.T) {
	s := baseStore(t)
	v := New(s, 1,
		WithPassthroughAxes(),
		WithScalarRename("species", "organism", false),
	)

	got, err := v.GetScalar("species")
	require.NoError(t, err)
	assert.Equal(t, "human", got.AsString())
	assert.NotContains(t, v.ScalarNames(), "organism")
	assert.Contains(t, v.ScalarNames(), "species")

	hidden := New(s, 2, WithScalarRename("organism", "organism", true))
	_, err = hidden.GetScalar("organism")
	require.Error(t, err)
	assert.False(t, hidden.HasScalar("organism"))
}

func TestVectorRenameAndSubset(t *testing.T) {
	s := baseStore(t)
	v := New(s, 3,
		WithAxis("cell", "cell", []int{0, 2}),
		WithVectorRename("cell", "subject", "donor", false),
	)

	entries, err := v.AxisEntries("cell")
	require.NoError(t, err)
	assert.Equal(t, []string{"c0", "c2"}, entries)

	vec, err := v.GetVector("cell", "subject")
	require.NoError(t, err)
	require.Equal(t, 2, vec.Length)
	assert.Equal(t, "d0", vec.Get(0).AsString())
	assert.Equal(t, "d0", vec.Get(1).AsString())
}

func TestMatrixSubsetting(t *testing.T) {
	s := baseStore(t)
	v := New(s, 4,
		WithPassthroughAxes(),
		WithAxis("cell", "cell", []int{1, 3}),
	)

	md, err := v.GetMatrix("gene", "cell", "UMIs", layout.Columns)
	require.NoError(t, err)
	nr, nc := md.Matrix.Dims()
	assert.Equal(t, 2, nr)
	assert.Equal(t, 2, nc)
	assert.Equal(t, layout.Columns, md.Matrix.Major())
	// Base columns c1 and c3 of [[1,2,3,4],[5,6,7,8]].
	assert.Equal(t, 2.0, md.Matrix.At(0, 0))
	assert.Equal(t, 4.0, md.Matrix.At(0, 1))
	assert.Equal(t, 6.0, md.Matrix.At(1, 0))
	assert.Equal(t, 8.0, md.Matrix.At(1, 1))
}

func TestComputedVectorMaterializedOnce(t *testing.T) {
	s := baseStore(t)
	calls := 0
	v := New(s, 5,
		WithPassthroughAxes(),
		WithComputedVector("cell", "flag", func(base daf.Reader) (backend.VectorData, error) {
			calls++
			return backend.VectorData{
				Kind: dafval.KindBool, Length: 4,
				Dense: []dafval.Value{
					dafval.Bool(true), dafval.Bool(false), dafval.Bool(true), dafval.Bool(false),
				},
			}, nil
		}),
	)

	first, err := v.GetVector("cell", "flag")
	require.NoError(t, err)
	second, err := v.GetVector("cell", "flag")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "computed vector materializes once and caches")
	assert.Equal(t, first.Get(0).AsBool(), second.Get(0).AsBool())
	assert.True(t, v.HasVector("cell", "flag"))
}

func TestViewIsReadOnly(t *testing.T) {
	s := baseStore(t)
	v := New(s, 6, WithPassthroughAxes())
	assert.True(t, v.IsReadOnly())
}
