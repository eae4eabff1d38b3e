package layout

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/tanaylab/daf-go/internal/daferr"
)

// Relayout produces the same logical matrix with its major axis
// flipped. Dense matrices get an optimized transpose-copy via gonum's
// mat.Dense.Copy of a transposed view; sparse matrices convert compression
// direction with the james-bowman/sparse library's own ToCSC/ToCSR
// converters. Label metadata (the axis pair) is preserved; a transposed
// wrapper is relaid out by flattening it into fresh concrete storage of the
// requested axis, i.e. relayout always returns a non-transposed Matrix.
func Relayout(m *Matrix) (*Matrix, error) {
	switch m.Major() {
	case Rows:
		return relayoutTo(m, Columns)
	case Columns:
		return relayoutTo(m, Rows)
	default:
		return nil, fmt.Errorf("%w: source matrix has no major axis", daferr.ErrNoMajorAxis)
	}
}

func relayoutTo(m *Matrix, target MajorAxis) (*Matrix, error) {
	nrows, ncols := m.Dims()
	out := &Matrix{kind: m.kind, major: target, Label: m.Label}

	if m.dense != nil {
		src := m.asUntransposedDense()
		var dst *mat.Dense
		if target == Rows {
			dst = mat.NewDense(nrows, ncols, nil)
			dst.Copy(src.T())
		} else {
			dst = mat.NewDense(ncols, nrows, nil)
			dst.Copy(src)
		}
		out.dense = dst
		return out, nil
	}

	if m.csr != nil {
		if target != Columns {
			return nil, fmt.Errorf("%w: CSR is already row-major", daferr.ErrLayoutMismatch)
		}
		out.csc = m.csr.ToCSC()
		return out, nil
	}
	if m.csc != nil {
		if target != Rows {
			return nil, fmt.Errorf("%w: CSC is already column-major", daferr.ErrLayoutMismatch)
		}
		out.csr = m.csc.ToCSR()
		return out, nil
	}
	return nil, fmt.Errorf("%w: matrix has neither dense nor sparse storage", daferr.ErrNoMajorAxis)
}

// asUntransposedDense returns the logical matrix in column-major storage: a
// (ncols,nrows) gonum Dense. Whether or not m is a transposed wrapper,
// m.dense already holds the logical matrix in Major() order, so it is
// returned as-is when Major() is Columns and transposed otherwise.
func (m *Matrix) asUntransposedDense() *mat.Dense {
	if m.Major() == Columns {
		return m.dense
	}
	return denseTranspose(m.dense)
}

func denseTranspose(d *mat.Dense) *mat.Dense {
	r, c := d.Dims()
	out := mat.NewDense(c, r, nil)
	out.Copy(d.T())
	return out
}

// RelayoutInto relays src out into an existing destination: dst and
// src must have equal shape, and dst's storage kind (sparse vs dense) must
// match src's, else LayoutMismatch.
func RelayoutInto(dst, src *Matrix) error {
	sr, sc := src.Dims()
	dr, dc := dst.Dims()
	if sr != dr || sc != dc {
		return fmt.Errorf("%w: dst.shape != src.shape", daferr.ErrLayoutMismatch)
	}
	if src.IsSparse() != dst.IsSparse() {
		return fmt.Errorf("%w: sparse src requires sparse dst (and vice versa)", daferr.ErrLayoutMismatch)
	}
	result, err := Relayout(src)
	if err != nil {
		return err
	}
	*dst = *result
	return nil
}
