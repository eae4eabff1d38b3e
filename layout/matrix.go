// Package layout implements the matrix-layout utilities: major-axis
// resolution, the "with the grain" efficiency check, and the relayout
// engine that flips a matrix's major axis while preserving its logical
// content, density and label metadata.
//
// Dense matrices are backed by gonum.org/v1/gonum/mat.Dense; sparse ones by
// github.com/james-bowman/sparse's CSR/CSC, whose own ToCSC/ToCSR conversion
// methods are exactly the "convert compression direction" step relayout
// asks for.
package layout

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/internal/daferr"
)

// MajorAxis identifies which axis of a matrix is contiguous in memory.
type MajorAxis int

const (
	// None marks a matrix whose storage has no well-defined major axis.
	None MajorAxis = iota
	Rows
	Columns
)

// Other flips Rows<->Columns; None maps to None.
func (a MajorAxis) Other() MajorAxis {
	switch a {
	case Rows:
		return Columns
	case Columns:
		return Rows
	default:
		return None
	}
}

func (a MajorAxis) String() string {
	switch a {
	case Rows:
		return "rows"
	case Columns:
		return "columns"
	default:
		return "none"
	}
}

// Label is a lightweight (axis, offset) descriptor attached to a returned
// matrix view instead of a copied entry-name dictionary: entry labels are
// looked up lazily from the axis itself. RowsAxis/ColsAxis name the axes a
// matrix is indexed by; they travel with the matrix across relayout,
// read-only wrapping and views.
type Label struct {
	RowsAxis string
	ColsAxis string
}

// Matrix is a 2-D numeric StorageScalar array indexed by an ordered
// (rows_axis, columns_axis) pair. It is always either Dense or Sparse,
// never both, and always has Major() != None at rest.
type Matrix struct {
	Label
	kind  dafval.Kind // numeric element type
	dense *mat.Dense  // nil if Sparse
	csr   *sparse.CSR // non-nil only when major==Rows and sparse
	csc   *sparse.CSC // non-nil only when major==Columns and sparse
	major MajorAxis

	// transposed marks a transposed wrapper: a matrix whose (rows,cols) axis
	// pair is logically swapped relative to its physical storage. Major()
	// flips the underlying storage's major axis in that case.
	transposed bool
}

// NewDense builds a dense Matrix. data is laid out for the requested major
// axis: row-major (rows outer) when major==Rows, column-major (columns
// outer) when major==Columns, matching the wire-canonical packed-buffer
// layout of the on-disk packed-buffer convention.
func NewDense(kind dafval.Kind, nrows, ncols int, major MajorAxis, data []float64) (*Matrix, error) {
	if !kind.IsNumeric() {
		return nil, fmt.Errorf("%w: %s", daferr.ErrUnsupportedElementType, kind)
	}
	if major != Rows && major != Columns {
		return nil, fmt.Errorf("%w: dense matrix requires rows or columns major axis", daferr.ErrNoMajorAxis)
	}
	var d *mat.Dense
	if major == Rows {
		d = mat.NewDense(nrows, ncols, data)
	} else {
		d = mat.NewDense(ncols, nrows, data)
	}
	return &Matrix{kind: kind, dense: d, major: major}, nil
}

// NewSparseCSR builds a row-major (CSR) sparse Matrix from compressed-row
// arrays (indptr has nrows+1 entries).
func NewSparseCSR(kind dafval.Kind, nrows, ncols int, indptr, ind []int, data []float64) (*Matrix, error) {
	if !kind.IsNumeric() {
		return nil, fmt.Errorf("%w: %s", daferr.ErrUnsupportedElementType, kind)
	}
	return &Matrix{kind: kind, csr: sparse.NewCSR(nrows, ncols, indptr, ind, data), major: Rows}, nil
}

// NewSparseCSC builds a column-major (CSC) sparse Matrix from compressed-
// column arrays (indptr has ncols+1 entries).
func NewSparseCSC(kind dafval.Kind, nrows, ncols int, indptr, ind []int, data []float64) (*Matrix, error) {
	if !kind.IsNumeric() {
		return nil, fmt.Errorf("%w: %s", daferr.ErrUnsupportedElementType, kind)
	}
	return &Matrix{kind: kind, csc: sparse.NewCSC(nrows, ncols, indptr, ind, data), major: Columns}, nil
}

// Kind returns the matrix element type.
func (m *Matrix) Kind() dafval.Kind { return m.kind }

// IsSparse reports whether the matrix is stored in compressed form.
func (m *Matrix) IsSparse() bool { return m.dense == nil }

// Dims returns (rows, cols) honoring the transposed wrapper.
func (m *Matrix) Dims() (int, int) {
	r, c := m.physicalDims()
	if m.transposed {
		return c, r
	}
	return r, c
}

func (m *Matrix) physicalDims() (int, int) {
	switch {
	case m.dense != nil:
		r, c := m.dense.Dims()
		if m.major == Rows {
			return r, c
		}
		return c, r // stored as (ncols, nrows)
	case m.csr != nil:
		return m.csr.Dims()
	case m.csc != nil:
		return m.csc.Dims()
	default:
		return 0, 0
	}
}

// At returns the logical element at (row, col), honoring the transposed
// wrapper and the physical major-axis storage order.
func (m *Matrix) At(row, col int) float64 {
	if m.transposed {
		row, col = col, row
	}
	switch {
	case m.dense != nil:
		if m.major == Rows {
			return m.dense.At(row, col)
		}
		return m.dense.At(col, row)
	case m.csr != nil:
		return m.csr.At(row, col)
	case m.csc != nil:
		return m.csc.At(row, col)
	default:
		return 0
	}
}

// Major resolves the matrix's major axis: sparse column-compressed
// -> columns; sparse row-compressed -> rows; dense with strides (1,nrows)
// -> columns; (ncols,1) -> rows; a transposed wrapper flips the result.
func (m *Matrix) Major() MajorAxis {
	base := m.major
	if m.transposed {
		return base.Other()
	}
	return base
}

// T returns a transposed wrapper over m sharing the same storage.
func (m *Matrix) T() *Matrix {
	t := *m
	t.transposed = !m.transposed
	t.Label = Label{RowsAxis: m.ColsAxis, ColsAxis: m.RowsAxis}
	return &t
}

// ComputeSize returns the approximate in-memory footprint in bytes: dense
// storage holds every element, compressed storage holds the stored triples
// plus the compression pointer array.
func (m *Matrix) ComputeSize() int {
	nrows, ncols := m.Dims()
	if m.dense != nil {
		return 8 * nrows * ncols
	}
	ptrLen := nrows + 1
	if m.csc != nil {
		ptrLen = ncols + 1
	}
	return 16*m.NNZ() + 8*ptrLen
}

// NNZ returns the number of stored (non-implicit-zero) entries. For a dense
// matrix this is simply rows*cols.
func (m *Matrix) NNZ() int {
	switch {
	case m.dense != nil:
		r, c := m.dense.Dims()
		return r * c
	case m.csr != nil:
		return m.csr.NNZ()
	case m.csc != nil:
		return m.csc.NNZ()
	default:
		return 0
	}
}
