// Package query implements the query language and evaluator: a
// tokenized pipeline of small operations, each consuming and producing one
// of Names, Scalar, Vector, Matrix or Frame, interpreted directly against a
// reader rather than compiled.
package query

import (
	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/layout"
)

// Kind tags which algebra type a Value currently holds.
type Kind int

const (
	KindNames Kind = iota
	KindScalar
	KindVector
	KindMatrix
	KindFrame
	KindMask
	KindCountMatrix
)

// Value is the tagged union the evaluator threads through a pipeline.
type Value struct {
	Kind Kind

	Names []string

	Scalar dafval.Value

	Axis   string // axis context the Vector/Mask is indexed over
	Vector backend.VectorData

	Mask []bool // parallel to Axis's entries

	RowsAxis, ColsAxis string
	Matrix             *layout.Matrix

	FrameAxis    string
	FrameColumns map[string]backend.VectorData

	// RowLabels/ColLabels/Counts hold a KindCountMatrix result: CountBy's
	// output is indexed by the two vectors' own observed value sets, not by
	// a registered axis, so it cannot reuse the Matrix/RowsAxis/ColsAxis
	// fields.
	RowLabels, ColLabels []string
	Counts               [][]float64
}

func namesValue(names []string) Value { return Value{Kind: KindNames, Names: names} }
func vectorValue(axis string, v backend.VectorData) Value {
	return Value{Kind: KindVector, Axis: axis, Vector: v}
}
func scalarValue(v dafval.Value) Value { return Value{Kind: KindScalar, Scalar: v} }
