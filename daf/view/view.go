// Package view implements the projection wrapper: axis renaming,
// axis subsetting by an explicit index sequence, property renaming
// (including hiding), and lazily-materialized computed properties drawn
// from queries over the base store.
//
// Subsetting by a boolean mask or a query is the caller's responsibility
// to resolve into the explicit index sequence New takes: the query
// evaluator (package query) depends on this package to expose a view's
// restricted axes, so View itself stays free of a query import and there
// is no import cycle.
package view

import (
	"fmt"
	"sort"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/daf"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/internal/daferr"
	"github.com/tanaylab/daf-go/layout"
)

// AxisSpec describes one axis exposed by a view.
type AxisSpec struct {
	// Internal is the base store's axis name; Indices selects and orders
	// the subset of its entries this view exposes (nil means the whole
	// axis, in its original order).
	Internal string
	Indices  []int
}

// PropertySpec renames (or hides, when Hidden) one scalar/vector/matrix
// property as it is exposed through the view.
type PropertySpec struct {
	Hidden      bool
	InternalKey string // base store's property name
}

// ComputedVector is a query-derived vector property materialized lazily on
// first access and cached thereafter.
type ComputedVector func(base daf.Reader) (backend.VectorData, error)

// View projects base according to the axis/property specs given to New. A
// view is always read-only.
type View struct {
	base daf.Reader

	// axes maps external axis name -> spec. An external name not present
	// here falls through to base unchanged when passthrough is true.
	axes        map[string]AxisSpec
	passthrough bool

	scalarRenames map[string]PropertySpec            // external scalar name -> spec
	vectorRenames map[[2]string]PropertySpec         // (external axis, external name) -> spec
	matrixRenames map[[3]string]PropertySpec         // (external rows, external cols, external name) -> spec
	computed      map[[2]string]ComputedVector        // (external axis, external name) -> computation
	computedCache map[[2]string]backend.VectorData

	definitionHash uint64
}

// Option configures a View at construction time.
type Option func(*View)

// WithAxis restricts/renames one axis: external is the name this view
// exposes it under, internal is the base store's axis name, and indices
// (nil for the full axis) selects and orders the entries drawn from it.
func WithAxis(external, internal string, indices []int) Option {
	return func(v *View) {
		v.axes[external] = AxisSpec{Internal: internal, Indices: indices}
	}
}

// WithPassthroughAxes exposes every base axis under its own name unless
// overridden by a WithAxis option.
func WithPassthroughAxes() Option {
	return func(v *View) { v.passthrough = true }
}

// WithScalarRename exposes base scalar internalName as external, or hides
// it entirely when hidden is true.
func WithScalarRename(external, internalName string, hidden bool) Option {
	return func(v *View) {
		v.scalarRenames[external] = PropertySpec{Hidden: hidden, InternalKey: internalName}
	}
}

// WithVectorRename exposes base vector (axis, internalName) as (axis,
// external), or hides it when hidden is true.
func WithVectorRename(axis, external, internalName string, hidden bool) Option {
	return func(v *View) {
		v.vectorRenames[[2]string{axis, external}] = PropertySpec{Hidden: hidden, InternalKey: internalName}
	}
}

// WithMatrixRename exposes base matrix (rows, cols, internalName) as
// (rows, cols, external), or hides it when hidden is true.
func WithMatrixRename(rows, cols, external, internalName string, hidden bool) Option {
	return func(v *View) {
		v.matrixRenames[[3]string{rows, cols, external}] = PropertySpec{Hidden: hidden, InternalKey: internalName}
	}
}

// WithComputedVector exposes a query-derived vector under (axis, name),
// computed lazily on first access.
func WithComputedVector(axis, name string, compute ComputedVector) Option {
	return func(v *View) {
		v.computed[[2]string{axis, name}] = compute
	}
}

// New builds a view over base. definitionHash should fold in every
// option's content so two views with different definitions never share a
// version; it feeds VectorVersion/MatrixVersion/AxisVersion alongside the
// base store's own counters.
func New(base daf.Reader, definitionHash uint64, opts ...Option) *View {
	v := &View{
		base:          base,
		axes:          make(map[string]AxisSpec),
		scalarRenames: make(map[string]PropertySpec),
		vectorRenames: make(map[[2]string]PropertySpec),
		matrixRenames: make(map[[3]string]PropertySpec),
		computed:      make(map[[2]string]ComputedVector),
		computedCache: make(map[[2]string]backend.VectorData),
		definitionHash: definitionHash,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

func (v *View) resolveAxis(external string) (AxisSpec, bool) {
	if spec, ok := v.axes[external]; ok {
		return spec, true
	}
	if v.passthrough && v.base.HasAxis(external) {
		return AxisSpec{Internal: external}, true
	}
	return AxisSpec{}, false
}

func (v *View) Name() string { return "view(" + v.base.Name() + ")" }

func (v *View) HasScalar(name string) bool {
	if spec, ok := v.scalarRenames[name]; ok {
		return !spec.Hidden && v.base.HasScalar(spec.InternalKey)
	}
	return v.base.HasScalar(name)
}

func (v *View) GetScalar(name string) (dafval.Value, error) {
	internal := name
	if spec, ok := v.scalarRenames[name]; ok {
		if spec.Hidden {
			return dafval.Value{}, fmt.Errorf("%w: %s", daferr.ErrUnknownScalar, name)
		}
		internal = spec.InternalKey
	}
	return v.base.GetScalar(internal)
}

func (v *View) ScalarNames() []string {
	set := make(map[string]bool)
	for _, n := range v.base.ScalarNames() {
		set[n] = true
	}
	for external, spec := range v.scalarRenames {
		delete(set, spec.InternalKey)
		if !spec.Hidden {
			set[external] = true
		}
	}
	return sortedSet(set)
}

func (v *View) HasAxis(axis string) bool {
	_, ok := v.resolveAxis(axis)
	return ok
}

func (v *View) AxisEntries(axis string) ([]string, error) {
	spec, ok := v.resolveAxis(axis)
	if !ok {
		return nil, fmt.Errorf("%w: %s", daferr.ErrUnknownAxis, axis)
	}
	entries, err := v.base.AxisEntries(spec.Internal)
	if err != nil {
		return nil, err
	}
	if spec.Indices == nil {
		return entries, nil
	}
	out := make([]string, len(spec.Indices))
	for i, idx := range spec.Indices {
		out[i] = entries[idx]
	}
	return out, nil
}

func (v *View) AxisLength(axis string) (int, error) {
	entries, err := v.AxisEntries(axis)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (v *View) AxisNames() []string {
	set := make(map[string]bool)
	if v.passthrough {
		for _, n := range v.base.AxisNames() {
			set[n] = true
		}
	}
	for external := range v.axes {
		set[external] = true
	}
	return sortedSet(set)
}

func (v *View) AxisVersion(axis string) uint64 {
	spec, ok := v.resolveAxis(axis)
	if !ok {
		return 0
	}
	return v.base.AxisVersion(spec.Internal) + v.definitionHash
}

func (v *View) resolveVector(axis, name string) (internalAxis, internalName string, hidden, computed bool) {
	spec, axOK := v.resolveAxis(axis)
	if rename, ok := v.vectorRenames[[2]string{axis, name}]; ok {
		if rename.Hidden {
			return "", "", true, false
		}
		return spec.Internal, rename.InternalKey, false, false
	}
	if _, ok := v.computed[[2]string{axis, name}]; ok {
		return "", "", false, true
	}
	if !axOK {
		return "", "", true, false
	}
	return spec.Internal, name, false, false
}

func (v *View) HasVector(axis, name string) bool {
	if _, ok := v.computed[[2]string{axis, name}]; ok {
		return true
	}
	internalAxis, internalName, hidden, _ := v.resolveVector(axis, name)
	if hidden {
		return false
	}
	return v.base.HasVector(internalAxis, internalName)
}

func (v *View) GetVector(axis, name string) (backend.VectorData, error) {
	key := [2]string{axis, name}
	if compute, ok := v.computed[key]; ok {
		if cached, ok := v.computedCache[key]; ok {
			return cached, nil
		}
		result, err := compute(v.base)
		if err != nil {
			return backend.VectorData{}, err
		}
		result = subsetVector(result, v.subsetIndices(axis))
		v.computedCache[key] = result
		return result, nil
	}
	internalAxis, internalName, hidden, _ := v.resolveVector(axis, name)
	if hidden {
		return backend.VectorData{}, fmt.Errorf("%w: %s.%s", daferr.ErrUnknownVector, axis, name)
	}
	raw, err := v.base.GetVector(internalAxis, internalName)
	if err != nil {
		return backend.VectorData{}, err
	}
	return subsetVector(raw, v.subsetIndices(axis)), nil
}

func (v *View) subsetIndices(axis string) []int {
	if spec, ok := v.axes[axis]; ok {
		return spec.Indices
	}
	return nil
}

func subsetVector(v backend.VectorData, indices []int) backend.VectorData {
	if indices == nil {
		return v
	}
	values := make([]dafval.Value, len(indices))
	for i, idx := range indices {
		values[i] = v.Get(idx)
	}
	return backend.VectorData{Kind: v.Kind, Length: len(values), Dense: values}
}

func (v *View) VectorNames(axis string) []string {
	set := make(map[string]bool)
	internalAxis, ok := v.resolveAxis(axis)
	if ok {
		for _, n := range v.base.VectorNames(internalAxis.Internal) {
			set[n] = true
		}
	}
	for key, rename := range v.vectorRenames {
		if key[0] != axis {
			continue
		}
		delete(set, rename.InternalKey)
		if !rename.Hidden {
			set[key[1]] = true
		}
	}
	for key := range v.computed {
		if key[0] == axis {
			set[key[1]] = true
		}
	}
	return sortedSet(set)
}

func (v *View) VectorVersion(axis, name string) uint64 {
	internalAxis, internalName, hidden, computed := v.resolveVector(axis, name)
	if hidden {
		return 0
	}
	if computed {
		return v.base.AxisVersion(axis) + v.definitionHash
	}
	return v.base.VectorVersion(internalAxis, internalName) + v.definitionHash
}

func (v *View) resolveMatrix(rows, cols, name string) (internalRows, internalCols, internalName string, hidden bool) {
	rSpec, rOK := v.resolveAxis(rows)
	cSpec, cOK := v.resolveAxis(cols)
	if rename, ok := v.matrixRenames[[3]string{rows, cols, name}]; ok {
		if rename.Hidden {
			return "", "", "", true
		}
		return rSpec.Internal, cSpec.Internal, rename.InternalKey, false
	}
	if !rOK || !cOK {
		return "", "", "", true
	}
	return rSpec.Internal, cSpec.Internal, name, false
}

func (v *View) HasMatrix(rows, cols, name string) bool {
	internalRows, internalCols, internalName, hidden := v.resolveMatrix(rows, cols, name)
	if hidden {
		return false
	}
	return v.base.HasMatrix(internalRows, internalCols, internalName)
}

func (v *View) GetMatrix(rows, cols, name string, major layout.MajorAxis) (backend.MatrixData, error) {
	internalRows, internalCols, internalName, hidden := v.resolveMatrix(rows, cols, name)
	if hidden {
		return backend.MatrixData{}, fmt.Errorf("%w: (%s,%s).%s", daferr.ErrUnknownMatrix, rows, cols, name)
	}
	md, err := v.base.GetMatrix(internalRows, internalCols, internalName, major)
	if err != nil {
		return backend.MatrixData{}, err
	}
	rowIdx, colIdx := v.subsetIndices(rows), v.subsetIndices(cols)
	if rowIdx == nil && colIdx == nil {
		return backend.MatrixData{RowsAxis: rows, ColsAxis: cols, Matrix: md.Matrix}, nil
	}
	sliced, err := sliceMatrix(md.Matrix, rowIdx, colIdx, major)
	if err != nil {
		return backend.MatrixData{}, err
	}
	sliced.Label = layout.Label{RowsAxis: rows, ColsAxis: cols}
	return backend.MatrixData{RowsAxis: rows, ColsAxis: cols, Matrix: sliced}, nil
}

// sliceMatrix materializes the subset of m selected by rowIdx/colIdx (nil
// keeps the full dimension) as a fresh dense matrix in the requested major
// layout. Subsetting densifies: the selected entries of a sparse base lose
// their compressed structure anyway once rows/columns are re-ordered, so
// the projection is always dense, matching the subset-by-copy shard reads
// the base pattern does.
func sliceMatrix(m *layout.Matrix, rowIdx, colIdx []int, major layout.MajorAxis) (*layout.Matrix, error) {
	nrows, ncols := m.Dims()
	if rowIdx == nil {
		rowIdx = fullRange(nrows)
	}
	if colIdx == nil {
		colIdx = fullRange(ncols)
	}
	if major == layout.None {
		major = m.Major()
	}
	data := make([]float64, len(rowIdx)*len(colIdx))
	if major == layout.Rows {
		for i, ri := range rowIdx {
			for j, ci := range colIdx {
				data[i*len(colIdx)+j] = m.At(ri, ci)
			}
		}
	} else {
		for j, ci := range colIdx {
			for i, ri := range rowIdx {
				data[j*len(rowIdx)+i] = m.At(ri, ci)
			}
		}
	}
	return layout.NewDense(m.Kind(), len(rowIdx), len(colIdx), major, data)
}

func fullRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func (v *View) MatrixNames(rows, cols string) []string {
	internalRows, rOK := v.resolveAxis(rows)
	internalCols, cOK := v.resolveAxis(cols)
	set := make(map[string]bool)
	if rOK && cOK {
		for _, n := range v.base.MatrixNames(internalRows.Internal, internalCols.Internal) {
			set[n] = true
		}
	}
	for key, rename := range v.matrixRenames {
		if key[0] != rows || key[1] != cols {
			continue
		}
		delete(set, rename.InternalKey)
		if !rename.Hidden {
			set[key[2]] = true
		}
	}
	return sortedSet(set)
}

func (v *View) MatrixVersion(rows, cols, name string) uint64 {
	internalRows, internalCols, internalName, hidden := v.resolveMatrix(rows, cols, name)
	if hidden {
		return 0
	}
	return v.base.MatrixVersion(internalRows, internalCols, internalName) + v.definitionHash
}

func (v *View) CheckMatrixEfficiency(operand string, rows, cols, name string, requestedAxis layout.MajorAxis) error {
	internalRows, internalCols, internalName, hidden := v.resolveMatrix(rows, cols, name)
	if hidden {
		return fmt.Errorf("%w: (%s,%s).%s", daferr.ErrUnknownMatrix, rows, cols, name)
	}
	return v.base.CheckMatrixEfficiency(operand, internalRows, internalCols, internalName, requestedAxis)
}

func (v *View) IsReadOnly() bool { return true }

func (v *View) Describe() string { return v.Name() + " over " + v.base.Describe() }

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var _ daf.Reader = (*View)(nil)
