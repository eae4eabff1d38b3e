package groups

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/backend/memory"
	"github.com/tanaylab/daf-go/daf"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/internal/daferr"
)

func buildStore(t *testing.T) *daf.Store {
	t.Helper()
	s := daf.NewStoreDefault(memory.New("groups-test"))
	require.NoError(t, s.AddAxis("cell", []string{"c0", "c1", "c2", "c3"}))
	require.NoError(t, s.AddAxis("type", []string{"B", "T"}))

	require.NoError(t, s.SetVector("cell", "type", backend.VectorData{
		Kind: dafval.KindString, Length: 4,
		Dense: []dafval.Value{dafval.String("T"), dafval.String("T"), dafval.String("B"), dafval.String("")},
	}))
	require.NoError(t, s.SetVector("cell", "age", backend.VectorData{
		Kind: dafval.KindInt64, Length: 4,
		Dense: []dafval.Value{
			dafval.FromFloat64(dafval.KindInt64, 3),
			dafval.FromFloat64(dafval.KindInt64, 5),
			dafval.FromFloat64(dafval.KindInt64, 7),
			dafval.FromFloat64(dafval.KindInt64, 9),
		},
	}))
	return s
}

func TestAggregateGroupVectorSum(t *testing.T) {
	s := buildStore(t)
	out, err := AggregateGroupVector(s, "cell", "type", "type", "age", Sum)
	require.NoError(t, err)
	assert.Equal(t, 7.0, out.Get(0).AsFloat64())
	assert.Equal(t, 8.0, out.Get(1).AsFloat64())
}

func TestAggregateGroupVectorEmptyGroupErrorsWithoutDefault(t *testing.T) {
	s := buildStore(t)
	require.NoError(t, s.AddAxis("color", []string{"red", "green"}))
	require.NoError(t, s.SetVector("cell", "color", backend.VectorData{
		Kind: dafval.KindString, Length: 4,
		Dense: []dafval.Value{dafval.String("red"), dafval.String("red"), dafval.String("red"), dafval.String("")},
	}))
	_, err := AggregateGroupVector(s, "cell", "color", "color", "age", Sum)
	require.Error(t, err)

	out, err := AggregateGroupVector(s, "cell", "color", "color", "age", Sum, WithDefault(dafval.FromFloat64(dafval.KindInt64, -1)))
	require.NoError(t, err)
	assert.Equal(t, 15.0, out.Get(0).AsFloat64())
	assert.Equal(t, -1.0, out.Get(1).AsFloat64())
}

func TestCountGroupsMatrix(t *testing.T) {
	s := buildStore(t)
	require.NoError(t, s.SetVector("cell", "region", backend.VectorData{
		Kind: dafval.KindString, Length: 4,
		Dense: []dafval.Value{dafval.String("X"), dafval.String("Y"), dafval.String("X"), dafval.String("Y")},
	}))

	// c0=(T,X) c1=(T,Y) c2=(B,X) c3=("",Y, ungrouped in "type" so excluded)
	counts, rowLabels, colLabels, err := CountGroupsMatrix(s, "cell", "type", "region")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "T"}, rowLabels)
	assert.Equal(t, []string{"X", "Y"}, colLabels)
	assert.Equal(t, []float64{1, 0}, counts[0]) // B only co-occurs with c2's region X
	assert.Equal(t, []float64{1, 1}, counts[1]) // T co-occurs with c0's X and c1's Y
}

func TestCountGroupsMatrixEmptyAxisYieldsZeroByZero(t *testing.T) {
	s := daf.NewStoreDefault(memory.New("groups-empty-test"))
	require.NoError(t, s.AddAxis("cell", []string{}))
	require.NoError(t, s.SetVector("cell", "type", backend.VectorData{Kind: dafval.KindString, Length: 0}))
	require.NoError(t, s.SetVector("cell", "region", backend.VectorData{Kind: dafval.KindString, Length: 0}))

	counts, rowLabels, colLabels, err := CountGroupsMatrix(s, "cell", "type", "region")
	require.NoError(t, err)
	assert.Empty(t, rowLabels)
	assert.Empty(t, colLabels)
	assert.Empty(t, counts)
}

func TestReconstructAxisCarriesConsistentVectorAndRejectsInconsistent(t *testing.T) {
	s := buildStore(t)
	require.NoError(t, ReconstructAxis(s, "cell", "type", "celltype", []string{}))
	entries, err := s.AxisEntries("celltype")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "T"}, entries)

	require.NoError(t, s.SetVector("cell", "badprop", backend.VectorData{
		Kind: dafval.KindInt64, Length: 4,
		Dense: []dafval.Value{
			dafval.FromFloat64(dafval.KindInt64, 1),
			dafval.FromFloat64(dafval.KindInt64, 2), // disagrees with c0's value for the same type=T group
			dafval.FromFloat64(dafval.KindInt64, 3),
			dafval.FromFloat64(dafval.KindInt64, 0),
		},
	}))
	err = ReconstructAxis(s, "cell", "type", "celltype2", []string{"badprop"})
	require.Error(t, err)
}

func TestReconstructAxisMigratesVectors(t *testing.T) {
	s := buildStore(t)
	// "level" is functionally determined by "type": both T cells agree.
	require.NoError(t, s.SetVector("cell", "level", backend.VectorData{
		Kind: dafval.KindInt64, Length: 4,
		Dense: []dafval.Value{
			dafval.FromFloat64(dafval.KindInt64, 2),
			dafval.FromFloat64(dafval.KindInt64, 2),
			dafval.FromFloat64(dafval.KindInt64, 5),
			dafval.FromFloat64(dafval.KindInt64, 0),
		},
	}))
	require.NoError(t, ReconstructAxis(s, "cell", "type", "celltype", []string{"level"}))

	out, err := s.GetVector("celltype", "level")
	require.NoError(t, err)
	assert.Equal(t, 5.0, out.Get(0).AsFloat64()) // B
	assert.Equal(t, 2.0, out.Get(1).AsFloat64()) // T
	assert.False(t, s.HasVector("cell", "level"), "migrated vector must leave the source axis")
}

func TestReconstructAxisValidatesExistingAxis(t *testing.T) {
	s := buildStore(t)
	require.NoError(t, s.AddAxis("celltype", []string{"B", "T"}))
	require.NoError(t, ReconstructAxis(s, "cell", "type", "celltype", nil))

	require.NoError(t, s.AddAxis("wrongtype", []string{"B", "T", "NK"}))
	err := ReconstructAxis(s, "cell", "type", "wrongtype", nil)
	require.ErrorIs(t, err, daferr.ErrInconsistentReconstruction)
}
