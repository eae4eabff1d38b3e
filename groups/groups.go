// Package groups implements the grouped-axis helpers:
// get_group_vector, aggregate_group_vector, count_groups_matrix and the
// reconstruct_axis! derivation. The bucketing is done here directly; this
// package does not use package query, whose CountBy step calls
// CountVectorsByObservedValues from here.
package groups

import (
	"fmt"

	"github.com/google/btree"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/daf"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/internal/daferr"
)

// GetGroupVector returns groupVector on sourceAxis, the group label of each
// entry, after checking that it is a string vector. Labels are returned as
// stored and are not checked against any group axis; entries with the
// empty-string label are "ungrouped" and stay the empty string.
func GetGroupVector(r daf.Reader, sourceAxis, groupVector string) (backend.VectorData, error) {
	v, err := r.GetVector(sourceAxis, groupVector)
	if err != nil {
		return backend.VectorData{}, err
	}
	if v.Kind != dafval.KindString {
		return backend.VectorData{}, fmt.Errorf("%w: group vector %s must be of string kind", daferr.ErrQueryEvaluation, groupVector)
	}
	return v, nil
}

// ReduceFn names one of the supported reduction functions.
type ReduceFn func(values []float64) float64

// Sum, Max, Min and Mean are the common aggregation reductions.
func Sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

func Max(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func Min(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// AggregateGroupVector buckets valueVector's entries (defined over
// sourceAxis) by their label in groupVector and reduces each bucket with
// fn, producing one value per entry of groupAxis. An empty bucket raises
// ErrUngroupedEntry unless defaultValue is supplied via WithDefault.
func AggregateGroupVector(r daf.Reader, sourceAxis, groupVector, groupAxis, valueVector string, fn ReduceFn, opts ...Option) (backend.VectorData, error) {
	cfg := options{}
	for _, o := range opts {
		o(&cfg)
	}

	labels, err := GetGroupVector(r, sourceAxis, groupVector)
	if err != nil {
		return backend.VectorData{}, err
	}
	values, err := r.GetVector(sourceAxis, valueVector)
	if err != nil {
		return backend.VectorData{}, err
	}
	if values.Length != labels.Length {
		return backend.VectorData{}, fmt.Errorf("%w: %s and %s length mismatch", daferr.ErrLengthMismatch, valueVector, groupVector)
	}
	groupEntries, err := r.AxisEntries(groupAxis)
	if err != nil {
		return backend.VectorData{}, err
	}

	buckets := make(map[string][]float64, len(groupEntries))
	for _, g := range groupEntries {
		buckets[g] = nil
	}
	for i := 0; i < labels.Length; i++ {
		label := labels.Get(i).AsString()
		if label == "" {
			continue
		}
		if _, ok := buckets[label]; !ok {
			return backend.VectorData{}, fmt.Errorf("%w: %q not an entry of axis %s", daferr.ErrUnknownGroup, label, groupAxis)
		}
		buckets[label] = append(buckets[label], values.Get(i).AsFloat64())
	}

	out := backend.VectorData{Kind: values.Kind, Length: len(groupEntries), Dense: make([]dafval.Value, len(groupEntries))}
	for i, g := range groupEntries {
		bucket := buckets[g]
		if len(bucket) == 0 {
			if !cfg.hasDefault {
				return backend.VectorData{}, fmt.Errorf("%w: group %q", daferr.ErrUngroupedEntry, g)
			}
			out.Dense[i] = cfg.defaultValue
			continue
		}
		out.Dense[i] = dafval.FromFloat64(values.Kind, fn(bucket))
	}
	return out, nil
}

// Option configures AggregateGroupVector.
type Option func(*options)

type options struct {
	hasDefault   bool
	defaultValue dafval.Value
}

// WithDefault supplies the value used for a group with no members, instead
// of raising ErrUngroupedEntry.
func WithDefault(v dafval.Value) Option {
	return func(o *options) { o.hasDefault = true; o.defaultValue = v }
}

// CountGroupsMatrix builds a count matrix for two string vectors defined
// over the same axis, indexed by each vector's own observed (non-empty)
// value set rather than by any pre-existing axis. Cell (i, j) counts how
// many axis entries carry rowLabels[i] in vectorA and colLabels[j] in
// vectorB simultaneously. An axis with no non-empty labels in either vector
// (including the empty axis) yields a 0x0 matrix.
func CountGroupsMatrix(r daf.Reader, axis, vectorA, vectorB string) (counts [][]float64, rowLabels, colLabels []string, err error) {
	a, err := GetGroupVector(r, axis, vectorA)
	if err != nil {
		return nil, nil, nil, err
	}
	b, err := GetGroupVector(r, axis, vectorB)
	if err != nil {
		return nil, nil, nil, err
	}
	return CountVectorsByObservedValues(a, b)
}

// CountVectorsByObservedValues is CountGroupsMatrix's vector-level core: it
// takes two already-fetched string vectors of matching length directly,
// for callers (such as package query's CountByOp) that only have the
// vector data in hand, not the store names needed to re-fetch them.
func CountVectorsByObservedValues(a, b backend.VectorData) (counts [][]float64, rowLabels, colLabels []string, err error) {
	if a.Length != b.Length {
		return nil, nil, nil, fmt.Errorf("%w: vectors have different lengths", daferr.ErrLengthMismatch)
	}

	// Distinct observed labels are collected via the same ordered-btree.Set
	// idiom as ReconstructAxis, so row/column order is stable without a
	// separate sort pass.
	rowSet := btree.NewG(32, func(x, y string) bool { return x < y })
	colSet := btree.NewG(32, func(x, y string) bool { return x < y })
	for i := 0; i < a.Length; i++ {
		if al := a.Get(i).AsString(); al != "" {
			rowSet.ReplaceOrInsert(al)
		}
		if bl := b.Get(i).AsString(); bl != "" {
			colSet.ReplaceOrInsert(bl)
		}
	}
	rowSet.Ascend(func(l string) bool { rowLabels = append(rowLabels, l); return true })
	colSet.Ascend(func(l string) bool { colLabels = append(colLabels, l); return true })

	rowIndex := make(map[string]int, len(rowLabels))
	for i, l := range rowLabels {
		rowIndex[l] = i
	}
	colIndex := make(map[string]int, len(colLabels))
	for i, l := range colLabels {
		colIndex[l] = i
	}

	counts = make([][]float64, len(rowLabels))
	for i := range counts {
		counts[i] = make([]float64, len(colLabels))
	}
	for i := 0; i < a.Length; i++ {
		al, bl := a.Get(i).AsString(), b.Get(i).AsString()
		if al == "" || bl == "" {
			continue
		}
		counts[rowIndex[al]][colIndex[bl]]++
	}
	return counts, rowLabels, colLabels, nil
}

// ReconstructAxis builds a new derived axis from the distinct values of an
// existing vector, plus the vectors of sourceAxis that are functionally
// determined by that same grouping. A source
// vector is carried over to the new axis only if every source entry that
// maps to a given derived-axis value agrees on it; a disagreement raises
// ErrInconsistentReconstruction, since the new axis would not otherwise
// have a well-defined value for that property.
func ReconstructAxis(w daf.Writer, sourceAxis, groupingVector, newAxis string, carryVectors []string) error {
	grouping, err := w.GetVector(sourceAxis, groupingVector)
	if err != nil {
		return err
	}
	// Distinct labels are collected into a btree.Set rather than a map
	// sorted afterwards: the new axis's entries must come out in a stable
	// sorted order, and an ordered set gives that for free via Ascend
	// instead of a separate sort.Strings pass.
	uniqueLabels := btree.NewG(32, func(a, b string) bool { return a < b })
	firstIndex := make(map[string]int)
	for i := 0; i < grouping.Length; i++ {
		label := grouping.Get(i).AsString()
		if label == "" {
			continue
		}
		if _, ok := firstIndex[label]; !ok {
			firstIndex[label] = i
		}
		uniqueLabels.ReplaceOrInsert(label)
	}
	var entries []string
	uniqueLabels.Ascend(func(label string) bool {
		entries = append(entries, label)
		return true
	})
	// The derived axis may already exist (a previous reconstruction, or an
	// axis the caller created up front); it is then validated against the
	// freshly computed entry set instead of re-created.
	if w.HasAxis(newAxis) {
		existing, err := w.AxisEntries(newAxis)
		if err != nil {
			return err
		}
		if !equalEntries(existing, entries) {
			return fmt.Errorf("%w: axis %s already exists with different entries",
				daferr.ErrInconsistentReconstruction, newAxis)
		}
	} else if err := w.AddAxis(newAxis, entries); err != nil {
		return err
	}

	for _, vecName := range carryVectors {
		src, err := w.GetVector(sourceAxis, vecName)
		if err != nil {
			return err
		}
		out := backend.VectorData{Kind: src.Kind, Length: len(entries), Dense: make([]dafval.Value, len(entries))}
		for ei, label := range entries {
			first := src.Get(firstIndex[label])
			out.Dense[ei] = first
			for i := 0; i < grouping.Length; i++ {
				if grouping.Get(i).AsString() != label {
					continue
				}
				if !dafval.Equal(src.Get(i), first) {
					return fmt.Errorf("%w: %s disagrees across entries grouped into %s=%s",
						daferr.ErrInconsistentReconstruction, vecName, newAxis, label)
				}
			}
		}
		if err := w.SetVector(newAxis, vecName, out); err != nil {
			return err
		}
		// The property now lives on the derived axis; migrating means
		// moving, not copying.
		w.DeleteVector(sourceAxis, vecName)
	}
	return nil
}

func equalEntries(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
