// Package backend declares the format-backend trait: the minimal
// key-value contract every storage backend (in-memory, files-on-disk,
// hierarchical-container) must satisfy. A backend may trust that the facade
// above it (package daf) has already validated axis existence, sizes and
// namespaces; it must still not silently corrupt data on its own mistakes.
package backend

import (
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/layout"
)

// IndexType selects the integer width used for a sparse vector/matrix's
// index arrays.
type IndexType int

const (
	Index32 IndexType = iota
	Index64
)

// VectorData is a named sequence of StorageScalar values in axis entry
// order. Dense vectors hold one value per axis entry; sparse vectors
// hold only the non-default entries (indices into the axis, ascending).
type VectorData struct {
	Kind    dafval.Kind
	Length  int
	Sparse  bool
	Dense   []dafval.Value // len == Length when !Sparse
	Indices []int          // ascending axis indices, only when Sparse
	Values  []dafval.Value // parallel to Indices, only when Sparse
	Default dafval.Value   // implicit value at unlisted indices, only when Sparse
}

// Get returns the logical value at axis position i.
func (v VectorData) Get(i int) dafval.Value {
	if !v.Sparse {
		return v.Dense[i]
	}
	// indices are sorted ascending; linear scan is adequate for the sizes
	// this core targets (a binary search would be a premature optimization
	// for an interface method that is rarely on a hot path at this layer).
	for k, idx := range v.Indices {
		if idx == i {
			return v.Values[k]
		}
		if idx > i {
			break
		}
	}
	return v.Default
}

// ComputeSize returns the approximate in-memory footprint of the vector in
// bytes, feeding the facade cache's budget accounting.
func (v VectorData) ComputeSize() int {
	size := 0
	for _, d := range v.Dense {
		size += d.ComputeSize()
	}
	for _, d := range v.Values {
		size += d.ComputeSize()
	}
	size += 8 * len(v.Indices)
	return size
}

// MatrixData bundles a layout.Matrix with its backend-visible name pair.
type MatrixData struct {
	RowsAxis, ColsAxis string
	Matrix             *layout.Matrix
}

// DenseVectorBuilder is the borrowed writable buffer create_dense_empty
// hands back to the caller; on Finish() the filled buffer becomes
// immutable storage.
type DenseVectorBuilder struct {
	kind dafval.Kind
	data []dafval.Value
}

func NewDenseVectorBuilder(kind dafval.Kind, length int) *DenseVectorBuilder {
	return &DenseVectorBuilder{kind: kind, data: make([]dafval.Value, length)}
}
func (b *DenseVectorBuilder) Set(i int, v dafval.Value) { b.data[i] = v }
func (b *DenseVectorBuilder) Finish() VectorData {
	return VectorData{Kind: b.kind, Length: len(b.data), Dense: b.data}
}

// SparseVectorBuilder is the borrowed writable buffer for
// create_sparse_empty(nnz, index_type).
type SparseVectorBuilder struct {
	kind            dafval.Kind
	length          int
	indices, values []int // values is unused; typed payloads are kept in vals
	vals            []dafval.Value
	def             dafval.Value
}

func NewSparseVectorBuilder(kind dafval.Kind, length, nnz int, _ IndexType) *SparseVectorBuilder {
	return &SparseVectorBuilder{
		kind:    kind,
		length:  length,
		indices: make([]int, 0, nnz),
		vals:    make([]dafval.Value, 0, nnz),
		def:     dafval.ZeroValue(kind),
	}
}

// SetNext appends the next non-default entry; indices must be supplied in
// ascending order, mirroring the CSC/CSR construction contract.
func (b *SparseVectorBuilder) SetNext(axisIndex int, v dafval.Value) {
	b.indices = append(b.indices, axisIndex)
	b.vals = append(b.vals, v)
}
func (b *SparseVectorBuilder) Finish() VectorData {
	return VectorData{
		Kind: b.kind, Length: b.length, Sparse: true,
		Indices: b.indices, Values: b.vals, Default: b.def,
	}
}

// Backend is the minimal contract every storage backend satisfies.
type Backend interface {
	// Scalars
	HasScalar(name string) bool
	GetScalar(name string) (dafval.Value, bool)
	SetScalar(name string, v dafval.Value)
	DeleteScalar(name string)
	ScalarNames() []string

	// Axes
	HasAxis(axis string) bool
	AddAxis(axis string, entries []string)
	DeleteAxis(axis string)
	AxisEntries(axis string) []string
	AxisLength(axis string) int
	AxisNames() []string

	// Vectors
	HasVector(axis, name string) bool
	GetVector(axis, name string) (VectorData, bool)
	SetVector(axis, name string, v VectorData)
	DeleteVector(axis, name string)
	VectorNames(axis string) []string

	// Matrices
	HasMatrix(rows, cols, name string) bool
	GetMatrix(rows, cols, name string) (MatrixData, bool)
	SetMatrix(rows, cols, name string, m MatrixData)
	DeleteMatrix(rows, cols, name string)
	MatrixNames(rows, cols string) []string

	// Name identifies the backend instance for diagnostics (e.g. a path or
	// "memory").
	Name() string
}
