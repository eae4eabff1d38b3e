// Package readonly implements the thin delegating read-only wrapper of
// every Reader method passes straight through, every mutating call
// is simply absent from the type, and wrapping an already-read-only reader
// returns it unchanged instead of nesting another layer.
package readonly

import (
	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/daf"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/layout"
)

// Wrapper delegates every Reader call to an inner reader and reports
// IsReadOnly() == true.
type Wrapper struct {
	inner daf.Reader
}

// Wrap returns a read-only view of r. Wrap(Wrap(r)) == Wrap(r): wrapping an
// already read-only reader is the identity.
func Wrap(r daf.Reader) daf.Reader {
	if r.IsReadOnly() {
		return r
	}
	return &Wrapper{inner: r}
}

func (w *Wrapper) Name() string { return w.inner.Name() }

func (w *Wrapper) HasScalar(name string) bool                 { return w.inner.HasScalar(name) }
func (w *Wrapper) GetScalar(name string) (dafval.Value, error) { return w.inner.GetScalar(name) }
func (w *Wrapper) ScalarNames() []string                       { return w.inner.ScalarNames() }

func (w *Wrapper) HasAxis(axis string) bool                  { return w.inner.HasAxis(axis) }
func (w *Wrapper) AxisEntries(axis string) ([]string, error) { return w.inner.AxisEntries(axis) }
func (w *Wrapper) AxisLength(axis string) (int, error)       { return w.inner.AxisLength(axis) }
func (w *Wrapper) AxisNames() []string                       { return w.inner.AxisNames() }
func (w *Wrapper) AxisVersion(axis string) uint64             { return w.inner.AxisVersion(axis) }

func (w *Wrapper) HasVector(axis, name string) bool { return w.inner.HasVector(axis, name) }
func (w *Wrapper) GetVector(axis, name string) (backend.VectorData, error) {
	return w.inner.GetVector(axis, name)
}
func (w *Wrapper) VectorNames(axis string) []string { return w.inner.VectorNames(axis) }
func (w *Wrapper) VectorVersion(axis, name string) uint64 {
	return w.inner.VectorVersion(axis, name)
}

func (w *Wrapper) HasMatrix(rows, cols, name string) bool {
	return w.inner.HasMatrix(rows, cols, name)
}
func (w *Wrapper) GetMatrix(rows, cols, name string, major layout.MajorAxis) (backend.MatrixData, error) {
	return w.inner.GetMatrix(rows, cols, name, major)
}
func (w *Wrapper) MatrixNames(rows, cols string) []string {
	return w.inner.MatrixNames(rows, cols)
}
func (w *Wrapper) MatrixVersion(rows, cols, name string) uint64 {
	return w.inner.MatrixVersion(rows, cols, name)
}
func (w *Wrapper) CheckMatrixEfficiency(operand string, rows, cols, name string, requestedAxis layout.MajorAxis) error {
	return w.inner.CheckMatrixEfficiency(operand, rows, cols, name, requestedAxis)
}

func (w *Wrapper) IsReadOnly() bool { return true }
func (w *Wrapper) Describe() string { return w.inner.Describe() }

var _ daf.Reader = (*Wrapper)(nil)
