package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/layout"
)

func TestIfMissingFillsSparseDefault(t *testing.T) {
	s := buildScenarioStore(t)
	require.NoError(t, s.SetVector("cell", "score", backend.VectorData{
		Kind: dafval.KindFloat64, Length: 4, Sparse: true,
		Indices: []int{1}, Values: []dafval.Value{dafval.Float64(9)},
		Default: dafval.Float64(0),
	}))

	result, err := Eval(s, "/cell:score?-1")
	require.NoError(t, err)
	require.Equal(t, KindVector, result.Kind)
	require.Equal(t, -1.0, result.Vector.Default.AsFloat64())
	// the explicitly-set entry is unaffected by the new default.
	require.Equal(t, 9.0, result.Vector.Get(1).AsFloat64())
	require.Equal(t, -1.0, result.Vector.Get(0).AsFloat64())
}

func TestIfMissingIsNoOpOnDenseVector(t *testing.T) {
	s := buildScenarioStore(t)
	result, err := Eval(s, "/cell:age?0")
	require.NoError(t, err)
	require.Equal(t, 3.0, result.Vector.Get(0).AsFloat64())
}

func TestAsAxisReinterpretsStringVectorAsNames(t *testing.T) {
	s := buildScenarioStore(t)
	result, err := Eval(s, "/cell:type=>type")
	require.NoError(t, err)
	require.Equal(t, KindNames, result.Kind)
	require.Equal(t, "type", result.Axis)
	require.Equal(t, []string{"T", "T", "B", ""}, result.Names)
}

func TestCombineAndOfTwoMasks(t *testing.T) {
	s := buildScenarioStore(t)
	// age=3 is only c0; type=T is c0 and c1. And should leave only c0.
	result, err := Eval(s, "/cell:age=3&/cell:type=T")
	require.NoError(t, err)
	require.Equal(t, KindMask, result.Kind)
	require.Equal(t, []bool{true, false, false, false}, result.Mask)
}

func TestCombineOrOfTwoMasks(t *testing.T) {
	s := buildScenarioStore(t)
	result, err := Eval(s, "/cell:age=3|/cell:age=7")
	require.NoError(t, err)
	require.Equal(t, []bool{true, false, true, false}, result.Mask)
}

func TestCombineRejectsNonMaskRightHandSide(t *testing.T) {
	s := buildScenarioStore(t)
	_, err := Eval(s, "/cell:age=3&/cell:age")
	require.Error(t, err)
}

func TestSquareMaskRowAndCol(t *testing.T) {
	s := buildScenarioStore(t)
	m, err := layout.NewDense(dafval.KindFloat64, 2, 2, layout.Columns, []float64{
		0, 1,
		1, 0,
	})
	require.NoError(t, err)
	require.NoError(t, s.SetMatrix("type", "type", "adjacent", m))

	result, err := Eval(s, "/type:adjacent%SquareMaskRow,B")
	require.NoError(t, err)
	require.Equal(t, KindMask, result.Kind)
	require.Equal(t, "type", result.Axis)
	require.Equal(t, []bool{false, true}, result.Mask) // row B=[0,1]

	result, err = Eval(s, "/type:adjacent%SquareMaskCol,B")
	require.NoError(t, err)
	require.Equal(t, []bool{false, true}, result.Mask) // col B=[0,1]
}

func TestCountByBuildsObservedValueMatrix(t *testing.T) {
	s := buildScenarioStore(t)
	require.NoError(t, s.SetVector("cell", "region", backend.VectorData{
		Kind: dafval.KindString, Length: 4,
		Dense: []dafval.Value{dafval.String("X"), dafval.String("Y"), dafval.String("X"), dafval.String("Y")},
	}))

	result, err := Eval(s, "/cell:type%CountBy,region")
	require.NoError(t, err)
	require.Equal(t, KindCountMatrix, result.Kind)
	require.Equal(t, []string{"B", "T"}, result.RowLabels)
	require.Equal(t, []string{"X", "Y"}, result.ColLabels)
	require.Equal(t, []float64{1, 0}, result.Counts[0]) // B co-occurs with c2's region X
	require.Equal(t, []float64{1, 1}, result.Counts[1]) // T co-occurs with c0's X and c1's Y
}

func TestIfNotSubstitutesEmptyStrings(t *testing.T) {
	s := buildScenarioStore(t)
	result, err := Eval(s, "/cell:type%IfNot,unknown")
	require.NoError(t, err)
	require.Equal(t, KindVector, result.Kind)
	require.Equal(t, "T", result.Vector.Get(0).AsString())
	require.Equal(t, "unknown", result.Vector.Get(3).AsString())
}

func TestIfNotRejectsNumericVector(t *testing.T) {
	s := buildScenarioStore(t)
	_, err := Eval(s, "/cell:age%IfNot,unknown")
	require.Error(t, err)
}

func TestQuantileReduction(t *testing.T) {
	s := buildScenarioStore(t)
	result, err := Eval(s, "/cell:age%>Quantile,0.5")
	require.NoError(t, err)
	require.Equal(t, KindScalar, result.Kind)
	// ages are [3,5,7,9]; the empirical median is the lower middle value.
	require.Equal(t, 5.0, result.Scalar.AsFloat64())
}

func TestQuantileRejectsOutOfRangeProbability(t *testing.T) {
	s := buildScenarioStore(t)
	_, err := Eval(s, "/cell:age%>Quantile,1.5")
	require.Error(t, err)
}

func TestMaskSliceRestrictsLookups(t *testing.T) {
	s := buildScenarioStore(t)
	// Keep only the T cells, then look their ages up on the narrowed axis.
	result, err := Eval(s, "/cell:type=T%MaskSlice:age")
	require.NoError(t, err)
	require.Equal(t, KindVector, result.Kind)
	require.Equal(t, 2, result.Vector.Length)
	require.Equal(t, 3.0, result.Vector.Get(0).AsFloat64())
	require.Equal(t, 5.0, result.Vector.Get(1).AsFloat64())
}

func TestMaskSliceExposesRestrictedNames(t *testing.T) {
	s := buildScenarioStore(t)
	result, err := Eval(s, "/cell:type=T%MaskSlice")
	require.NoError(t, err)
	require.Equal(t, KindNames, result.Kind)
	require.Equal(t, []string{"c0", "c1"}, result.Names)
}

func TestFetchFollowsAxisLabels(t *testing.T) {
	s := buildScenarioStore(t)
	require.NoError(t, s.SetVector("type", "marker", backend.VectorData{
		Kind: dafval.KindString, Length: 2,
		Dense: []dafval.Value{dafval.String("CD19"), dafval.String("CD3")},
	}))

	// Ungrouped cells get a concrete label first, then the fetch follows
	// each cell's type to its marker.
	result, err := Eval(s, `/cell:type%IfNot,T\type:marker`)
	require.NoError(t, err)
	require.Equal(t, KindVector, result.Kind)
	require.Equal(t, 4, result.Vector.Length)
	require.Equal(t, "CD3", result.Vector.Get(0).AsString())
	require.Equal(t, "CD19", result.Vector.Get(2).AsString())
	require.Equal(t, "CD3", result.Vector.Get(3).AsString())
}
