// Package memory implements the in-memory format backend: pure in-process
// maps, no persistence.
//
// State is scoped to one store instance per Backend value rather than a
// process-global registry, since daf.Store already owns the backend it was
// opened with.
package memory

import (
	"sort"
	"sync"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/dafval"
)

type vectorKey struct{ axis, name string }
type matrixKey struct{ rows, cols, name string }

// Backend is the in-memory reference backend.
type Backend struct {
	name string

	mu       sync.Mutex
	scalars  map[string]dafval.Value
	axes     map[string][]string
	vectors  map[vectorKey]backend.VectorData
	matrices map[matrixKey]backend.MatrixData
}

// New creates an empty in-memory backend named name.
func New(name string) *Backend {
	return &Backend{
		name:     name,
		scalars:  make(map[string]dafval.Value),
		axes:     make(map[string][]string),
		vectors:  make(map[vectorKey]backend.VectorData),
		matrices: make(map[matrixKey]backend.MatrixData),
	}
}

func (b *Backend) Name() string { return b.name }

func (b *Backend) HasScalar(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.scalars[name]
	return ok
}
func (b *Backend) GetScalar(name string) (dafval.Value, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.scalars[name]
	return v, ok
}
func (b *Backend) SetScalar(name string, v dafval.Value) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scalars[name] = v
}
func (b *Backend) DeleteScalar(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.scalars, name)
}
func (b *Backend) ScalarNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedKeys(b.scalars)
}

func (b *Backend) HasAxis(axis string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.axes[axis]
	return ok
}
func (b *Backend) AddAxis(axis string, entries []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]string, len(entries))
	copy(cp, entries)
	b.axes[axis] = cp
}
func (b *Backend) DeleteAxis(axis string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.axes, axis)
}
func (b *Backend) AxisEntries(axis string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.axes[axis]
}
func (b *Backend) AxisLength(axis string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.axes[axis])
}
func (b *Backend) AxisNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.axes))
	for k := range b.axes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (b *Backend) HasVector(axis, name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.vectors[vectorKey{axis, name}]
	return ok
}
func (b *Backend) GetVector(axis, name string) (backend.VectorData, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.vectors[vectorKey{axis, name}]
	return v, ok
}
func (b *Backend) SetVector(axis, name string, v backend.VectorData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vectors[vectorKey{axis, name}] = v
}
func (b *Backend) DeleteVector(axis, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.vectors, vectorKey{axis, name})
}
func (b *Backend) VectorNames(axis string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var names []string
	for k := range b.vectors {
		if k.axis == axis {
			names = append(names, k.name)
		}
	}
	sort.Strings(names)
	return names
}

func (b *Backend) HasMatrix(rows, cols, name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.matrices[matrixKey{rows, cols, name}]
	return ok
}
func (b *Backend) GetMatrix(rows, cols, name string) (backend.MatrixData, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.matrices[matrixKey{rows, cols, name}]
	return m, ok
}
func (b *Backend) SetMatrix(rows, cols, name string, m backend.MatrixData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.matrices[matrixKey{rows, cols, name}] = m
}
func (b *Backend) DeleteMatrix(rows, cols, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.matrices, matrixKey{rows, cols, name})
}
func (b *Backend) MatrixNames(rows, cols string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var names []string
	for k := range b.matrices {
		if k.rows == rows && k.cols == cols {
			names = append(names, k.name)
		}
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]dafval.Value) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

var _ backend.Backend = (*Backend)(nil)
