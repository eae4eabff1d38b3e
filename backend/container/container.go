// Package container implements the hierarchical-container format backend on
// top of github.com/scigolib/hdf5: one group per namespace (scalars, axes,
// vectors, matrices), one dataset per stored property, and per-dataset
// attributes carrying the element type, sparsity and major axis that the
// bare dataset bytes can't express on their own.
//
// Each scalar is a 1-element dataset; metadata rides dataset attributes
// (WriteAttribute); the library's scalar/slice/string value support
// (int8..uint64, float32/64, one-dimensional slices, strings as
// fixed-length byte arrays) is exactly the StorageScalar domain
// dafval.Value models. See DESIGN.md for the assumptions made about the
// library's FileWriter/FileReader surface.
package container

import (
	"fmt"

	"github.com/scigolib/hdf5"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/internal/dlog"
	"github.com/tanaylab/daf-go/layout"
)

// Backend is the hierarchical-container reference backend.
type Backend struct {
	path string
	fw   *hdf5.FileWriter
	log  *dlog.Logger
}

// New creates (or truncates) a container file at path and lays out the
// fixed top-level groups every backend namespace maps onto.
func New(path string) (*Backend, error) {
	fw, err := hdf5.CreateFile(path)
	if err != nil {
		return nil, fmt.Errorf("container: create %s: %w", path, err)
	}
	for _, g := range []string{"/scalars", "/axes", "/vectors", "/matrices"} {
		if err := fw.CreateGroup(g); err != nil {
			return nil, fmt.Errorf("container: create group %s: %w", g, err)
		}
	}
	return &Backend{path: path, fw: fw, log: dlog.New(path)}, nil
}

func (b *Backend) Name() string { return b.path }

func kindAttr(ds *hdf5.DatasetWriter, kind dafval.Kind) error {
	return ds.WriteAttribute("kind", kind.String())
}

func readKindAttr(s string) dafval.Kind {
	for k := dafval.KindBool; k <= dafval.KindString; k++ {
		if k.String() == s {
			return k
		}
	}
	return dafval.KindFloat64
}

// --- scalars ---
//
// Each scalar is its own 1-element dataset under /scalars/<name>, with a
// "kind" attribute so the element type survives a round trip even for
// numeric kinds HDF5 would otherwise widen or narrow silently.

func (b *Backend) scalarPath(name string) string { return "/scalars/" + name }

func (b *Backend) HasScalar(name string) bool {
	_, ok := b.fw.OpenDataset(b.scalarPath(name))
	return ok
}

func (b *Backend) GetScalar(name string) (dafval.Value, bool) {
	ds, ok := b.fw.OpenDataset(b.scalarPath(name))
	if !ok {
		return dafval.Value{}, false
	}
	kindName, err := ds.ReadAttribute("kind")
	if err != nil {
		b.log.Printf("scalar %q missing kind attribute: %v", name, err)
		return dafval.Value{}, false
	}
	kind := readKindAttr(fmt.Sprint(kindName))
	if kind == dafval.KindString {
		strs, err := ds.ReadStrings()
		if err != nil || len(strs) != 1 {
			b.log.Printf("scalar %q unreadable: %v", name, err)
			return dafval.Value{}, false
		}
		return dafval.String(strs[0]), true
	}
	raw, err := ds.ReadScalar()
	if err != nil {
		b.log.Printf("scalar %q unreadable: %v", name, err)
		return dafval.Value{}, false
	}
	return valueFromRaw(kind, raw), true
}

func (b *Backend) SetScalar(name string, v dafval.Value) {
	if v.Kind() == dafval.KindString {
		ds, err := b.fw.CreateDataset(b.scalarPath(name), hdf5.String, []uint64{1})
		if err != nil {
			panic(err)
		}
		if err := ds.WriteStrings([]string{v.AsString()}); err != nil {
			panic(err)
		}
		kindAttr(ds, v.Kind())
		return
	}
	ds, err := b.fw.CreateDataset(b.scalarPath(name), hdf5.Float64, []uint64{1})
	if err != nil {
		panic(err)
	}
	if err := ds.WriteScalar(rawFromValue(v)); err != nil {
		panic(err)
	}
	if err := kindAttr(ds, v.Kind()); err != nil {
		panic(err)
	}
}

func (b *Backend) DeleteScalar(name string) {
	b.fw.DeleteDataset(b.scalarPath(name))
}

func (b *Backend) ScalarNames() []string {
	return b.fw.ListGroup("/scalars")
}

// --- axes ---
//
// Axis entries are a single string dataset at /axes/<axis>/entries: the
// requires string-name order to be preserved, so it is written as a
// fixed-length byte-array dataset the way attribute_write.go's inferString
// helper encodes string values.

func (b *Backend) entriesPath(axis string) string { return "/axes/" + axis + "/entries" }

func (b *Backend) HasAxis(axis string) bool {
	_, ok := b.fw.OpenDataset(b.entriesPath(axis))
	return ok
}

func (b *Backend) AddAxis(axis string, entries []string) {
	group := "/axes/" + axis
	if err := b.fw.CreateGroup(group); err != nil {
		panic(err)
	}
	ds, err := b.fw.CreateDataset(b.entriesPath(axis), hdf5.String, []uint64{uint64(len(entries))})
	if err != nil {
		panic(err)
	}
	if err := ds.WriteStrings(entries); err != nil {
		panic(err)
	}
}

func (b *Backend) DeleteAxis(axis string) {
	b.fw.DeleteGroup("/axes/" + axis)
}

func (b *Backend) AxisEntries(axis string) []string {
	ds, ok := b.fw.OpenDataset(b.entriesPath(axis))
	if !ok {
		return nil
	}
	entries, err := ds.ReadStrings()
	if err != nil {
		b.log.Printf("axis %q entries unreadable: %v", axis, err)
		return nil
	}
	return entries
}

func (b *Backend) AxisLength(axis string) int { return len(b.AxisEntries(axis)) }

func (b *Backend) AxisNames() []string {
	return b.fw.ListGroup("/axes")
}

// --- vectors ---

func (b *Backend) vectorPath(axis, name string) string {
	return "/vectors/" + axis + "/" + name
}

func (b *Backend) HasVector(axis, name string) bool {
	_, ok := b.fw.OpenDataset(b.vectorPath(axis, name))
	return ok
}

func (b *Backend) GetVector(axis, name string) (backend.VectorData, bool) {
	ds, ok := b.fw.OpenDataset(b.vectorPath(axis, name))
	if !ok {
		return backend.VectorData{}, false
	}
	kindName, _ := ds.ReadAttribute("kind")
	kind := readKindAttr(fmt.Sprint(kindName))
	sparseAttr, _ := ds.ReadAttribute("sparse")
	sparse := fmt.Sprint(sparseAttr) == "1"

	if kind == dafval.KindString {
		strs, err := ds.ReadStrings()
		if err != nil {
			b.log.Printf("vector %s.%s unreadable: %v", axis, name, err)
			return backend.VectorData{}, false
		}
		dense := make([]dafval.Value, len(strs))
		for i, s := range strs {
			dense[i] = dafval.String(s)
		}
		return backend.VectorData{Kind: kind, Length: len(dense), Dense: dense}, true
	}

	if !sparse {
		raws, err := ds.ReadFloat64Slice()
		if err != nil {
			b.log.Printf("vector %s.%s unreadable: %v", axis, name, err)
			return backend.VectorData{}, false
		}
		dense := make([]dafval.Value, len(raws))
		for i, f := range raws {
			dense[i] = dafval.FromFloat64(kind, f)
		}
		return backend.VectorData{Kind: kind, Length: len(dense), Dense: dense}, true
	}

	lengthAttr, _ := ds.ReadAttribute("length")
	defaultAttr, _ := ds.ReadAttribute("default")
	indicesDS, okI := b.fw.OpenDataset(b.vectorPath(axis, name) + "_indices")
	valuesDS, okV := b.fw.OpenDataset(b.vectorPath(axis, name) + "_values")
	if !okI || !okV {
		return backend.VectorData{}, false
	}
	rawIdx, _ := indicesDS.ReadFloat64Slice()
	rawVal, _ := valuesDS.ReadFloat64Slice()
	indices := make([]int, len(rawIdx))
	values := make([]dafval.Value, len(rawVal))
	for i, f := range rawIdx {
		indices[i] = int(f)
	}
	for i, f := range rawVal {
		values[i] = dafval.FromFloat64(kind, f)
	}
	length := intAttr(lengthAttr)
	return backend.VectorData{
		Kind: kind, Length: length, Sparse: true,
		Indices: indices, Values: values,
		Default: dafval.FromFloat64(kind, floatAttr(defaultAttr)),
	}, true
}

func (b *Backend) SetVector(axis, name string, v backend.VectorData) {
	if err := b.fw.CreateGroup("/vectors/" + axis); err != nil {
		panic(err)
	}
	path := b.vectorPath(axis, name)
	if v.Kind == dafval.KindString {
		strs := make([]string, len(v.Dense))
		for i, val := range v.Dense {
			strs[i] = val.AsString()
		}
		ds, err := b.fw.CreateDataset(path, hdf5.String, []uint64{uint64(len(strs))})
		if err != nil {
			panic(err)
		}
		if err := ds.WriteStrings(strs); err != nil {
			panic(err)
		}
		kindAttr(ds, v.Kind)
		ds.WriteAttribute("sparse", int32(0))
		return
	}
	if !v.Sparse {
		data := make([]float64, len(v.Dense))
		for i, val := range v.Dense {
			data[i] = val.AsFloat64OrZero()
		}
		ds, err := b.fw.CreateDataset(path, hdf5.Float64, []uint64{uint64(len(data))})
		if err != nil {
			panic(err)
		}
		if err := ds.WriteFloat64Slice(data); err != nil {
			panic(err)
		}
		kindAttr(ds, v.Kind)
		ds.WriteAttribute("sparse", int32(0))
		return
	}
	idx := make([]float64, len(v.Indices))
	for i, n := range v.Indices {
		idx[i] = float64(n)
	}
	val := make([]float64, len(v.Values))
	for i, vv := range v.Values {
		val[i] = vv.AsFloat64OrZero()
	}
	ds, err := b.fw.CreateDataset(path, hdf5.Float64, []uint64{0})
	if err != nil {
		panic(err)
	}
	kindAttr(ds, v.Kind)
	ds.WriteAttribute("sparse", int32(1))
	ds.WriteAttribute("length", int64(v.Length))
	ds.WriteAttribute("default", v.Default.AsFloat64OrZero())

	idxDS, err := b.fw.CreateDataset(path+"_indices", hdf5.Float64, []uint64{uint64(len(idx))})
	if err != nil {
		panic(err)
	}
	idxDS.WriteFloat64Slice(idx)

	valDS, err := b.fw.CreateDataset(path+"_values", hdf5.Float64, []uint64{uint64(len(val))})
	if err != nil {
		panic(err)
	}
	valDS.WriteFloat64Slice(val)
}

func (b *Backend) DeleteVector(axis, name string) {
	path := b.vectorPath(axis, name)
	b.fw.DeleteDataset(path)
	b.fw.DeleteDataset(path + "_indices")
	b.fw.DeleteDataset(path + "_values")
}

func (b *Backend) VectorNames(axis string) []string {
	return b.fw.ListGroup("/vectors/" + axis)
}

// --- matrices ---

func (b *Backend) matrixGroup(rows, cols string) string {
	return "/matrices/" + rows + "/" + cols
}
func (b *Backend) matrixPath(rows, cols, name string) string {
	return b.matrixGroup(rows, cols) + "/" + name
}

func (b *Backend) HasMatrix(rows, cols, name string) bool {
	_, ok := b.fw.OpenDataset(b.matrixPath(rows, cols, name))
	return ok
}

func (b *Backend) GetMatrix(rows, cols, name string) (backend.MatrixData, bool) {
	ds, ok := b.fw.OpenDataset(b.matrixPath(rows, cols, name))
	if !ok {
		return backend.MatrixData{}, false
	}
	kindName, _ := ds.ReadAttribute("kind")
	kind := readKindAttr(fmt.Sprint(kindName))
	majorName, _ := ds.ReadAttribute("major")
	major := layout.Rows
	if fmt.Sprint(majorName) == "columns" {
		major = layout.Columns
	}
	nrows := intAttr(mustAttr(ds, "nrows"))
	ncols := intAttr(mustAttr(ds, "ncols"))
	sparseAttr, _ := ds.ReadAttribute("sparse")

	if fmt.Sprint(sparseAttr) != "1" {
		data, err := ds.ReadFloat64Slice()
		if err != nil {
			b.log.Printf("matrix (%s,%s).%s unreadable: %v", rows, cols, name, err)
			return backend.MatrixData{}, false
		}
		m, err := layout.NewDense(kind, nrows, ncols, major, data)
		if err != nil {
			return backend.MatrixData{}, false
		}
		m.RowsAxis, m.ColsAxis = rows, cols
		return backend.MatrixData{RowsAxis: rows, ColsAxis: cols, Matrix: m}, true
	}

	indptrDS, okP := b.fw.OpenDataset(b.matrixPath(rows, cols, name) + "_indptr")
	indDS, okI := b.fw.OpenDataset(b.matrixPath(rows, cols, name) + "_indices")
	valDS, okV := b.fw.OpenDataset(b.matrixPath(rows, cols, name) + "_values")
	if !okP || !okI || !okV {
		return backend.MatrixData{}, false
	}
	indptrRaw, _ := indptrDS.ReadFloat64Slice()
	indRaw, _ := indDS.ReadFloat64Slice()
	valRaw, _ := valDS.ReadFloat64Slice()
	indptr := floatsToInts(indptrRaw)
	ind := floatsToInts(indRaw)

	var m *layout.Matrix
	var err error
	if major == layout.Rows {
		m, err = layout.NewSparseCSR(kind, nrows, ncols, indptr, ind, valRaw)
	} else {
		m, err = layout.NewSparseCSC(kind, nrows, ncols, indptr, ind, valRaw)
	}
	if err != nil {
		return backend.MatrixData{}, false
	}
	m.RowsAxis, m.ColsAxis = rows, cols
	return backend.MatrixData{RowsAxis: rows, ColsAxis: cols, Matrix: m}, true
}

func (b *Backend) SetMatrix(rows, cols, name string, m backend.MatrixData) {
	if err := b.fw.CreateGroup(b.matrixGroup(rows, cols)); err != nil {
		panic(err)
	}
	path := b.matrixPath(rows, cols, name)
	nrows, ncols := m.Matrix.Dims()

	if !m.Matrix.IsSparse() {
		data := make([]float64, nrows*ncols)
		for i := 0; i < nrows; i++ {
			for j := 0; j < ncols; j++ {
				if m.Matrix.Major() == layout.Columns {
					data[j*nrows+i] = m.Matrix.At(i, j)
				} else {
					data[i*ncols+j] = m.Matrix.At(i, j)
				}
			}
		}
		ds, err := b.fw.CreateDataset(path, hdf5.Float64, []uint64{uint64(nrows), uint64(ncols)})
		if err != nil {
			panic(err)
		}
		ds.WriteFloat64Slice(data)
		writeMatrixAttrs(ds, m.Matrix, nrows, ncols, false)
		return
	}

	ds, err := b.fw.CreateDataset(path, hdf5.Float64, []uint64{0})
	if err != nil {
		panic(err)
	}
	writeMatrixAttrs(ds, m.Matrix, nrows, ncols, true)
	// compressed-form arrays are rebuilt generically by scanning the matrix
	// along its own major axis through the public At accessor.
	indptr, ind, vals := extractCompressed(m.Matrix)
	idp, _ := b.fw.CreateDataset(path+"_indptr", hdf5.Float64, []uint64{uint64(len(indptr))})
	idp.WriteFloat64Slice(intsToFloats(indptr))
	idd, _ := b.fw.CreateDataset(path+"_indices", hdf5.Float64, []uint64{uint64(len(ind))})
	idd.WriteFloat64Slice(intsToFloats(ind))
	vd, _ := b.fw.CreateDataset(path+"_values", hdf5.Float64, []uint64{uint64(len(vals))})
	vd.WriteFloat64Slice(vals)
}

func (b *Backend) DeleteMatrix(rows, cols, name string) {
	path := b.matrixPath(rows, cols, name)
	b.fw.DeleteDataset(path)
	b.fw.DeleteDataset(path + "_indptr")
	b.fw.DeleteDataset(path + "_indices")
	b.fw.DeleteDataset(path + "_values")
}

func (b *Backend) MatrixNames(rows, cols string) []string {
	return b.fw.ListGroup(b.matrixGroup(rows, cols))
}

func writeMatrixAttrs(ds *hdf5.DatasetWriter, m *layout.Matrix, nrows, ncols int, sparse bool) {
	kindAttr(ds, m.Kind())
	ds.WriteAttribute("major", m.Major().String())
	ds.WriteAttribute("nrows", int64(nrows))
	ds.WriteAttribute("ncols", int64(ncols))
	if sparse {
		ds.WriteAttribute("sparse", int32(1))
	} else {
		ds.WriteAttribute("sparse", int32(0))
	}
}

// extractCompressed rebuilds indptr/indices/values for a sparse matrix by
// scanning it along its own major axis, avoiding any dependency on
// unexported james-bowman/sparse fields.
func extractCompressed(m *layout.Matrix) (indptr, ind []int, vals []float64) {
	nrows, ncols := m.Dims()
	outer, inner := nrows, ncols
	at := func(o, i int) float64 { return m.At(o, i) }
	if m.Major() == layout.Columns {
		outer, inner = ncols, nrows
		at = func(o, i int) float64 { return m.At(i, o) }
	}
	indptr = append(indptr, 0)
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			if v := at(o, i); v != 0 {
				ind = append(ind, i)
				vals = append(vals, v)
			}
		}
		indptr = append(indptr, len(ind))
	}
	return
}

func floatsToInts(fs []float64) []int {
	out := make([]int, len(fs))
	for i, f := range fs {
		out[i] = int(f)
	}
	return out
}

func intsToFloats(is []int) []float64 {
	out := make([]float64, len(is))
	for i, n := range is {
		out[i] = float64(n)
	}
	return out
}

func intAttr(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func floatAttr(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	default:
		return 0
	}
}

// mustAttr reads a metadata attribute the backend itself wrote on every
// dataset; its absence means the container file is corrupt, not any
// recoverable condition a caller should match on, so the panic carries a
// plain error rather than one of the public sentinels.
func mustAttr(ds *hdf5.DatasetWriter, name string) interface{} {
	v, err := ds.ReadAttribute(name)
	if err != nil {
		panic(fmt.Errorf("container: missing required attribute %s: %v", name, err))
	}
	return v
}

func valueFromRaw(kind dafval.Kind, raw float64) dafval.Value {
	return dafval.FromFloat64(kind, raw)
}

func rawFromValue(v dafval.Value) float64 { return v.AsFloat64OrZero() }

var _ backend.Backend = (*Backend)(nil)
