package query

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/groups"
	"github.com/tanaylab/daf-go/internal/daferr"
	"github.com/tanaylab/daf-go/layout"
)

// Op is one pipeline step of the interpreter plan: it
// receives the current typed value and the reader being queried, and
// returns the next value or a QueryEvaluationError.
type Op interface {
	Apply(ctx *Context, in Value) (Value, error)
}

// AxisOp selects an axis's entries as Names, and seeds the axis context for
// subsequent Lookup/GroupBy/reduction steps.
type AxisOp struct{ Axis string }

func (op AxisOp) Apply(ctx *Context, _ Value) (Value, error) {
	if !ctx.Reader.HasAxis(op.Axis) {
		return Value{}, fmt.Errorf("%w: unknown axis %q", daferr.ErrQueryEvaluation, op.Axis)
	}
	entries, err := ctx.Reader.AxisEntries(op.Axis)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", daferr.ErrQueryEvaluation, err)
	}
	out := namesValue(entries)
	out.Axis = op.Axis
	return out, nil
}

// LookupOp fetches a named property on the current axis context: a vector
// first, falling back to a square matrix of the same name over (axis,
// axis) when no such vector exists.
type LookupOp struct{ Name string }

func (op LookupOp) Apply(ctx *Context, in Value) (Value, error) {
	axis := in.Axis
	if axis == "" {
		return Value{}, fmt.Errorf("%w: Lookup(%s) needs an axis context", daferr.ErrQueryEvaluation, op.Name)
	}
	v, err := ctx.Reader.GetVector(axis, op.Name)
	if err == nil {
		if ctx.MaskIndices != nil && ctx.MaskAxis == axis {
			v = restrictVector(v, ctx.MaskIndices)
		}
		return vectorValue(axis, v), nil
	}
	if !errors.Is(err, daferr.ErrUnknownVector) {
		return Value{}, fmt.Errorf("%w: %v", daferr.ErrQueryEvaluation, err)
	}
	md, merr := ctx.Reader.GetMatrix(axis, axis, op.Name, layout.Columns)
	if merr != nil {
		return Value{}, fmt.Errorf("%w: %v", daferr.ErrQueryEvaluation, err)
	}
	return Value{Kind: KindMatrix, RowsAxis: axis, ColsAxis: axis, Matrix: md.Matrix}, nil
}

// ScalarLookupOp fetches a named scalar.
type ScalarLookupOp struct{ Name string }

func (op ScalarLookupOp) Apply(ctx *Context, _ Value) (Value, error) {
	v, err := ctx.Reader.GetScalar(op.Name)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", daferr.ErrQueryEvaluation, err)
	}
	return scalarValue(v), nil
}

// AsAxisOp reinterprets a string vector's values as entries of axis a,
// turning them into a Names scope rooted at a for subsequent Lookup/Fetch
// steps.
type AsAxisOp struct{ Axis string }

func (op AsAxisOp) Apply(ctx *Context, in Value) (Value, error) {
	if in.Kind != KindVector || in.Vector.Kind != dafval.KindString {
		return Value{}, fmt.Errorf("%w: AsAxis requires a string vector", daferr.ErrQueryEvaluation)
	}
	if !ctx.Reader.HasAxis(op.Axis) {
		return Value{}, fmt.Errorf("%w: unknown axis %q", daferr.ErrQueryEvaluation, op.Axis)
	}
	names := make([]string, in.Vector.Length)
	for i := 0; i < in.Vector.Length; i++ {
		names[i] = in.Vector.Get(i).AsString()
	}
	return Value{Kind: KindNames, Names: names, Axis: op.Axis}, nil
}

// IfMissingOp attaches a default value to a preceding lookup's sparse
// vector, substituted for every entry the vector does not explicitly
// carry. A fully dense vector has nothing missing, so it passes through
// unchanged.
type IfMissingOp struct{ Default string }

func (op IfMissingOp) Apply(_ *Context, in Value) (Value, error) {
	if in.Kind != KindVector {
		return Value{}, fmt.Errorf("%w: IfMissing requires a preceding vector lookup", daferr.ErrQueryEvaluation)
	}
	if !in.Vector.Sparse {
		return in, nil
	}
	out := in
	out.Vector.Default = parseDafval(in.Vector.Kind, op.Default)
	return out, nil
}

func parseDafval(k dafval.Kind, s string) dafval.Value {
	if k == dafval.KindString {
		return dafval.String(s)
	}
	return dafval.FromFloat64(k, parseFloat(s))
}

// FetchOp follows a string vector's values as entries of another axis and
// looks up prop there.
type FetchOp struct {
	TargetAxis string
	Property   string
}

func (op FetchOp) Apply(ctx *Context, in Value) (Value, error) {
	if in.Kind != KindVector || in.Vector.Kind != dafval.KindString {
		return Value{}, fmt.Errorf("%w: Fetch requires a string vector", daferr.ErrQueryEvaluation)
	}
	target, err := ctx.Reader.GetVector(op.TargetAxis, op.Property)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", daferr.ErrQueryEvaluation, err)
	}
	entries, err := ctx.Reader.AxisEntries(op.TargetAxis)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", daferr.ErrQueryEvaluation, err)
	}
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e] = i
	}
	out := backend.VectorData{Kind: target.Kind, Length: in.Vector.Length, Dense: make([]dafval.Value, in.Vector.Length)}
	for i := 0; i < in.Vector.Length; i++ {
		label := in.Vector.Get(i).AsString()
		idx, ok := index[label]
		if !ok {
			return Value{}, fmt.Errorf("%w: Fetch: %q not an entry of axis %s", daferr.ErrQueryEvaluation, label, op.TargetAxis)
		}
		out.Dense[i] = target.Get(idx)
	}
	return vectorValue(in.Axis, out), nil
}

// GroupByOp reassigns the current axis context from A to the named group
// axis G, reading the (A→G label) assignment off vector groupVector on A,
// and staging the preceding vector's per-entry values bucketed by group for
// the reduction step that must follow. Entries whose
// group label is the empty string are excluded ("ungrouped").
type GroupByOp struct {
	GroupVector string
	GroupAxis   string
}

func (op GroupByOp) Apply(ctx *Context, in Value) (Value, error) {
	if in.Kind != KindVector {
		return Value{}, fmt.Errorf("%w: GroupBy requires a preceding vector", daferr.ErrQueryEvaluation)
	}
	groups, err := ctx.Reader.GetVector(in.Axis, op.GroupVector)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", daferr.ErrQueryEvaluation, err)
	}
	if groups.Length != in.Vector.Length {
		return Value{}, fmt.Errorf("%w: GroupBy vector %s length mismatch", daferr.ErrQueryEvaluation, op.GroupVector)
	}
	ctx.pendingGroupBy = &groupByState{
		sourceAxis: in.Axis,
		groupAxis:  op.GroupAxis,
		groups:     groups,
		values:     in.Vector,
	}
	return in, nil
}

// groupByState carries the staged GroupBy until a reduction op consumes it.
type groupByState struct {
	sourceAxis string
	groupAxis  string
	groups     backend.VectorData
	values     backend.VectorData
}

// ReduceOp reduces a Vector (or a staged GroupBy) to a Scalar or to a
// Vector over the group axis. Fn is the operand text, "Name" or
// "Name,arg" (e.g. "Quantile,0.5").
type ReduceOp struct{ Fn string }

func (op ReduceOp) Apply(ctx *Context, in Value) (Value, error) {
	if ctx.pendingGroupBy != nil {
		state := ctx.pendingGroupBy
		ctx.pendingGroupBy = nil
		return reduceGrouped(ctx, state, op.Fn)
	}
	if in.Kind == KindMatrix {
		return reduceMatrixRows(in, op.Fn)
	}
	if in.Kind != KindVector {
		return Value{}, fmt.Errorf("%w: reduction requires a vector or matrix", daferr.ErrQueryEvaluation)
	}
	f, err := reduceFn(op.Fn)
	if err != nil {
		return Value{}, err
	}
	vals := make([]float64, in.Vector.Length)
	for i := range vals {
		vals[i] = in.Vector.Get(i).AsFloat64()
	}
	return scalarValue(dafval.FromFloat64(in.Vector.Kind, f(vals))), nil
}

func reduceGrouped(ctx *Context, state *groupByState, fn string) (Value, error) {
	groupEntries, err := ctx.Reader.AxisEntries(state.groupAxis)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", daferr.ErrQueryEvaluation, err)
	}
	buckets := make(map[string][]float64, len(groupEntries))
	for _, g := range groupEntries {
		buckets[g] = nil
	}
	for i := 0; i < state.values.Length; i++ {
		label := state.groups.Get(i).AsString()
		if label == "" {
			continue // ungrouped entries are excluded
		}
		if _, ok := buckets[label]; !ok {
			return Value{}, fmt.Errorf("%w: group %q not an entry of axis %s", daferr.ErrUnknownGroup, label, state.groupAxis)
		}
		buckets[label] = append(buckets[label], state.values.Get(i).AsFloat64())
	}
	f, err := reduceFn(fn)
	if err != nil {
		return Value{}, err
	}
	out := backend.VectorData{Kind: state.values.Kind, Length: len(groupEntries), Dense: make([]dafval.Value, len(groupEntries))}
	for i, g := range groupEntries {
		bucket := buckets[g]
		if len(bucket) == 0 {
			return Value{}, fmt.Errorf("%w: group %q is empty and no default was given", daferr.ErrUngroupedEntry, g)
		}
		out.Dense[i] = dafval.FromFloat64(state.values.Kind, f(bucket))
	}
	return vectorValue(state.groupAxis, out), nil
}

func reduceMatrixRows(in Value, fn string) (Value, error) {
	f, err := reduceFn(fn)
	if err != nil {
		return Value{}, err
	}
	nrows, ncols := in.Matrix.Dims()
	out := backend.VectorData{Kind: in.Matrix.Kind(), Length: nrows, Dense: make([]dafval.Value, nrows)}
	for r := 0; r < nrows; r++ {
		row := make([]float64, ncols)
		for c := 0; c < ncols; c++ {
			row[c] = in.Matrix.At(r, c)
		}
		out.Dense[r] = dafval.FromFloat64(in.Matrix.Kind(), f(row))
	}
	return vectorValue(in.RowsAxis, out), nil
}

func reduceFn(spec string) (func([]float64) float64, error) {
	name, args := splitCall(spec)
	switch name {
	case "Sum":
		return func(xs []float64) float64 {
			var s float64
			for _, x := range xs {
				s += x
			}
			return s
		}, nil
	case "Max":
		return func(xs []float64) float64 {
			m := math.Inf(-1)
			for _, x := range xs {
				if x > m {
					m = x
				}
			}
			return m
		}, nil
	case "Min":
		return func(xs []float64) float64 {
			m := math.Inf(1)
			for _, x := range xs {
				if x < m {
					m = x
				}
			}
			return m
		}, nil
	case "Mean":
		return func(xs []float64) float64 {
			if len(xs) == 0 {
				return 0
			}
			var s float64
			for _, x := range xs {
				s += x
			}
			return s / float64(len(xs))
		}, nil
	case "Quantile":
		p := 0.5
		if len(args) > 0 {
			p = parseFloat(args[0])
		}
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("%w: Quantile probability %g outside [0,1]", daferr.ErrQuerySyntax, p)
		}
		return func(xs []float64) float64 {
			sorted := append([]float64(nil), xs...)
			sort.Float64s(sorted)
			return stat.Quantile(p, stat.Empirical, sorted, nil)
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown reduction %q", daferr.ErrQuerySyntax, name)
	}
}

// ElementWiseOp preserves shape, possibly changing dtype.
type ElementWiseOp struct {
	Fn   string
	Args []string
}

func (op ElementWiseOp) Apply(_ *Context, in Value) (Value, error) {
	if in.Kind != KindVector {
		return Value{}, fmt.Errorf("%w: element-wise op requires a vector", daferr.ErrQueryEvaluation)
	}
	f, err := elementFn(op.Fn, op.Args)
	if err != nil {
		return Value{}, err
	}
	out := backend.VectorData{Kind: in.Vector.Kind, Length: in.Vector.Length, Dense: make([]dafval.Value, in.Vector.Length)}
	for i := 0; i < in.Vector.Length; i++ {
		out.Dense[i] = dafval.FromFloat64(in.Vector.Kind, f(in.Vector.Get(i).AsFloat64()))
	}
	return vectorValue(in.Axis, out), nil
}

func elementFn(name string, args []string) (func(float64) float64, error) {
	switch name {
	case "Abs":
		return math.Abs, nil
	case "Round":
		return math.Round, nil
	case "Log":
		base := math.E
		eps := 0.0
		if len(args) > 0 {
			fmt.Sscanf(args[0], "%g", &base)
		}
		if len(args) > 1 {
			fmt.Sscanf(args[1], "%g", &eps)
		}
		return func(x float64) float64 { return math.Log(x+eps) / math.Log(base) }, nil
	default:
		return nil, fmt.Errorf("%w: unknown element-wise op %q", daferr.ErrQuerySyntax, name)
	}
}

// CompareOp implements IsLess/IsGreater/IsEqual/IsNotEqual/Match/NotMatch:
// Vector → Mask.
type CompareOp struct {
	Op      string
	Operand string
}

func (op CompareOp) Apply(_ *Context, in Value) (Value, error) {
	if in.Kind != KindVector {
		return Value{}, fmt.Errorf("%w: comparison requires a vector", daferr.ErrQueryEvaluation)
	}
	mask := make([]bool, in.Vector.Length)
	var re *regexp.Regexp
	if op.Op == "Match" || op.Op == "NotMatch" {
		var err error
		re, err = regexp.Compile(op.Operand)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", daferr.ErrQuerySyntax, err)
		}
	}
	for i := 0; i < in.Vector.Length; i++ {
		v := in.Vector.Get(i)
		switch op.Op {
		case "IsLess":
			mask[i] = v.AsFloat64() < parseFloat(op.Operand)
		case "IsGreater":
			mask[i] = v.AsFloat64() > parseFloat(op.Operand)
		case "IsEqual":
			mask[i] = compareEqual(v, op.Operand)
		case "IsNotEqual":
			mask[i] = !compareEqual(v, op.Operand)
		case "Match":
			mask[i] = re.MatchString(v.AsString())
		case "NotMatch":
			mask[i] = !re.MatchString(v.AsString())
		default:
			return Value{}, fmt.Errorf("%w: unknown comparison %q", daferr.ErrQuerySyntax, op.Op)
		}
	}
	return Value{Kind: KindMask, Axis: in.Axis, Mask: mask}, nil
}

func parseFloat(s string) float64 {
	var f float64
	fmt.Sscanf(s, "%g", &f)
	return f
}

func compareEqual(v dafval.Value, operand string) bool {
	if v.Kind() == dafval.KindString {
		return v.AsString() == operand
	}
	return v.AsFloat64() == parseFloat(operand)
}

// BoolOp implements And/Or/Xor over two masks on the same axis.
type BoolOp struct {
	Op  string
	Rhs []bool
}

func (op BoolOp) Apply(_ *Context, in Value) (Value, error) {
	if in.Kind != KindMask {
		return Value{}, fmt.Errorf("%w: bool op requires a mask", daferr.ErrQueryEvaluation)
	}
	if len(op.Rhs) != len(in.Mask) {
		return Value{}, fmt.Errorf("%w: mask length mismatch", daferr.ErrQueryEvaluation)
	}
	out := make([]bool, len(in.Mask))
	for i := range out {
		switch op.Op {
		case "And":
			out[i] = in.Mask[i] && op.Rhs[i]
		case "Or":
			out[i] = in.Mask[i] || op.Rhs[i]
		case "Xor":
			out[i] = in.Mask[i] != op.Rhs[i]
		default:
			return Value{}, fmt.Errorf("%w: unknown bool op %q", daferr.ErrQuerySyntax, op.Op)
		}
	}
	return Value{Kind: KindMask, Axis: in.Axis, Mask: out}, nil
}

// CombineOp wires a `&`/`|`/`^` sigil's right-hand side as a nested
// sub-pipeline (everything the parser found after the sigil), evaluated
// against a fresh Value from the same reader and then combined with the
// preceding mask via BoolOp. The grammar has no grouping syntax, so the
// sub-pipeline
// runs to the end of the query; a combinator is therefore always the last
// operator of its enclosing pipeline.
type CombineOp struct {
	Op  string
	Sub []Op
}

func (op CombineOp) Apply(ctx *Context, in Value) (Value, error) {
	if in.Kind != KindMask {
		return Value{}, fmt.Errorf("%w: %s requires a preceding mask", daferr.ErrQueryEvaluation, op.Op)
	}
	var sub Value
	var err error
	for _, s := range op.Sub {
		sub, err = s.Apply(ctx, sub)
		if err != nil {
			return Value{}, err
		}
	}
	if sub.Kind != KindMask {
		return Value{}, fmt.Errorf("%w: %s's right-hand side does not produce a mask", daferr.ErrQueryEvaluation, op.Op)
	}
	if sub.Axis != in.Axis {
		return Value{}, fmt.Errorf("%w: %s combines masks over different axes (%s vs %s)", daferr.ErrQueryEvaluation, op.Op, in.Axis, sub.Axis)
	}
	return BoolOp{Op: op.Op, Rhs: sub.Mask}.Apply(ctx, in)
}

// SquareMaskOp takes one row or column of a square boolean/numeric matrix
// (rows and columns over the same axis) as a mask, the entry e naming the
// chosen row/column by its axis entry name.
type SquareMaskOp struct {
	Row   bool // true selects a row (result indexed by ColsAxis); false a column
	Entry string
}

func (op SquareMaskOp) Apply(ctx *Context, in Value) (Value, error) {
	if in.Kind != KindMatrix {
		return Value{}, fmt.Errorf("%w: SquareMaskRow/Col requires a matrix", daferr.ErrQueryEvaluation)
	}
	if in.RowsAxis != in.ColsAxis {
		return Value{}, fmt.Errorf("%w: SquareMaskRow/Col requires a square matrix over one axis", daferr.ErrQueryEvaluation)
	}
	entries, err := ctx.Reader.AxisEntries(in.RowsAxis)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", daferr.ErrQueryEvaluation, err)
	}
	idx := -1
	for i, e := range entries {
		if e == op.Entry {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Value{}, fmt.Errorf("%w: %q not an entry of axis %s", daferr.ErrQueryEvaluation, op.Entry, in.RowsAxis)
	}
	nrows, ncols := in.Matrix.Dims()
	if op.Row {
		mask := make([]bool, ncols)
		for c := 0; c < ncols; c++ {
			mask[c] = in.Matrix.At(idx, c) != 0
		}
		return Value{Kind: KindMask, Axis: in.ColsAxis, Mask: mask}, nil
	}
	mask := make([]bool, nrows)
	for r := 0; r < nrows; r++ {
		mask[r] = in.Matrix.At(r, idx) != 0
	}
	return Value{Kind: KindMask, Axis: in.RowsAxis, Mask: mask}, nil
}

// CountByOp pairs the preceding string vector with another named string
// vector on the same axis and builds their observed-value count matrix,
// delegating to the two-vector core in package groups rather than
// duplicating the bucketing logic.
type CountByOp struct{ Other string }

func (op CountByOp) Apply(ctx *Context, in Value) (Value, error) {
	if in.Kind != KindVector || in.Vector.Kind != dafval.KindString {
		return Value{}, fmt.Errorf("%w: CountBy requires a preceding string vector", daferr.ErrQueryEvaluation)
	}
	other, err := ctx.Reader.GetVector(in.Axis, op.Other)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", daferr.ErrQueryEvaluation, err)
	}
	if other.Kind != dafval.KindString {
		return Value{}, fmt.Errorf("%w: CountBy(%s) must name a string vector", daferr.ErrQueryEvaluation, op.Other)
	}
	counts, rowLabels, colLabels, err := groups.CountVectorsByObservedValues(in.Vector, other)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", daferr.ErrQueryEvaluation, err)
	}
	return Value{Kind: KindCountMatrix, RowLabels: rowLabels, ColLabels: colLabels, Counts: counts}, nil
}

// MaskSliceOp applies a preceding mask to restrict the current axis context
// to the indices where it is true: subsequent Lookups on the same axis
// return only the selected entries. The restricted entry names flow on as
// the new Names value so a following Lookup sees the narrowed scope.
type MaskSliceOp struct{}

func (op MaskSliceOp) Apply(ctx *Context, in Value) (Value, error) {
	if in.Kind != KindMask {
		return Value{}, fmt.Errorf("%w: MaskSlice requires a mask", daferr.ErrQueryEvaluation)
	}
	indices := make([]int, 0, len(in.Mask))
	for i, keep := range in.Mask {
		if keep {
			indices = append(indices, i)
		}
	}
	ctx.MaskIndices = indices
	ctx.MaskAxis = in.Axis
	entries, err := ctx.Reader.AxisEntries(in.Axis)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", daferr.ErrQueryEvaluation, err)
	}
	names := make([]string, len(indices))
	for i, idx := range indices {
		names[i] = entries[idx]
	}
	out := namesValue(names)
	out.Axis = in.Axis
	return out, nil
}

func restrictVector(v backend.VectorData, indices []int) backend.VectorData {
	out := backend.VectorData{Kind: v.Kind, Length: len(indices), Dense: make([]dafval.Value, len(indices))}
	for i, idx := range indices {
		out.Dense[i] = v.Get(idx)
	}
	return out
}

// IfNotOp substitutes a replacement for every empty-string entry of the
// preceding string vector. It rides the `%` sigil's named-op dispatch,
// same as CountBy and SquareMaskRow/Col.
type IfNotOp struct{ Replacement string }

func (op IfNotOp) Apply(_ *Context, in Value) (Value, error) {
	if in.Kind != KindVector || in.Vector.Kind != dafval.KindString {
		return Value{}, fmt.Errorf("%w: IfNot requires a string vector", daferr.ErrQueryEvaluation)
	}
	out := backend.VectorData{Kind: dafval.KindString, Length: in.Vector.Length, Dense: make([]dafval.Value, in.Vector.Length)}
	for i := 0; i < in.Vector.Length; i++ {
		v := in.Vector.Get(i)
		if v.AsString() == "" {
			v = dafval.String(op.Replacement)
		}
		out.Dense[i] = v
	}
	return vectorValue(in.Axis, out), nil
}

// NamesOp enumerates the property names of the reader's current scope.
type NamesOp struct{}

func (op NamesOp) Apply(ctx *Context, in Value) (Value, error) {
	return namesValue(ctx.Reader.VectorNames(in.Axis)), nil
}
