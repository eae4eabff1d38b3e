// Package files implements the files-on-disk format backend, following the
// fixed filesystem conventions:
//
//	scalars/<name>                 typed scalar
//	axes/<axis>/entries            newline-delimited strings
//	vectors/<axis>/<name>          typed packed buffer
//	matrices/<rows>/<cols>/<name>  typed packed buffer in the matrix's own major order
//
// A sparse vector or matrix is stored in that same single file: its
// indices/values (and, for a matrix, indptr) follow the header inside it.
// No sibling files are written.
//
// Vector/matrix payloads are streamed through github.com/pierrec/lz4/v4
// rather than written raw, keeping packed buffers small on disk.
package files

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/fsnotify/fsnotify"
	"github.com/pierrec/lz4/v4"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/internal/dlog"
	"github.com/tanaylab/daf-go/layout"
)

// Backend is the files-on-disk reference backend.
type Backend struct {
	path    string
	log     *dlog.Logger
	watcher *fsnotify.Watcher // non-nil once WatchParent is called
}

// New opens (creating if absent) a directory-backed store at path.
func New(path string) (*Backend, error) {
	for _, sub := range []string{"scalars", "axes", "vectors", "matrices"} {
		if err := os.MkdirAll(filepath.Join(path, sub), 0o750); err != nil {
			return nil, err
		}
	}
	return &Backend{path: path, log: dlog.New(filepath.Base(path))}, nil
}

func (b *Backend) Name() string { return b.path }

// WatchParent starts an fsnotify watch on this store's axes/ and scalars/
// directories so a process that completed a chain from disk observes
// out-of-band writes made to a parent store
// by another process. It is advisory only: the facade above still relies on
// version counters for cache invalidation, this just triggers a re-open.
func (b *Backend) WatchParent(onChange func(event fsnotify.Event)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, sub := range []string{"scalars", "axes"} {
		if err := w.Add(filepath.Join(b.path, sub)); err != nil {
			w.Close()
			return err
		}
	}
	b.watcher = w
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				b.log.Printf("parent store change: %s", ev)
				if onChange != nil {
					onChange(ev)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				b.log.Printf("watch error: %v", err)
			}
		}
	}()
	return nil
}

// Close stops the parent watcher, if any.
func (b *Backend) Close() error {
	if b.watcher != nil {
		return b.watcher.Close()
	}
	return nil
}

// --- scalars ---

func (b *Backend) scalarPath(name string) string { return filepath.Join(b.path, "scalars", name) }

func (b *Backend) HasScalar(name string) bool {
	_, err := os.Stat(b.scalarPath(name))
	return err == nil
}

func (b *Backend) GetScalar(name string) (dafval.Value, bool) {
	f, err := os.Open(b.scalarPath(name))
	if err != nil {
		return dafval.Value{}, false
	}
	defer f.Close()
	v, err := readScalar(f)
	if err != nil {
		b.log.Printf("corrupt scalar %q: %v", name, err)
		return dafval.Value{}, false
	}
	return v, true
}

func (b *Backend) SetScalar(name string, v dafval.Value) {
	f, err := os.Create(b.scalarPath(name))
	if err != nil {
		panic(err)
	}
	defer f.Close()
	writeScalar(f, v)
}

func (b *Backend) DeleteScalar(name string) {
	os.Remove(b.scalarPath(name))
}

func (b *Backend) ScalarNames() []string {
	return listDir(filepath.Join(b.path, "scalars"))
}

// --- axes ---

func (b *Backend) axisDir(axis string) string  { return filepath.Join(b.path, "axes", axis) }
func (b *Backend) entriesPath(axis string) string {
	return filepath.Join(b.axisDir(axis), "entries")
}

func (b *Backend) HasAxis(axis string) bool {
	_, err := os.Stat(b.entriesPath(axis))
	return err == nil
}

func (b *Backend) AddAxis(axis string, entries []string) {
	os.MkdirAll(b.axisDir(axis), 0o750)
	f, err := os.Create(b.entriesPath(axis))
	if err != nil {
		panic(err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, e := range entries {
		w.WriteString(e)
		w.WriteByte('\n')
	}
	w.Flush()
}

func (b *Backend) DeleteAxis(axis string) {
	os.RemoveAll(b.axisDir(axis))
}

func (b *Backend) AxisEntries(axis string) []string {
	f, err := os.Open(b.entriesPath(axis))
	if err != nil {
		return nil
	}
	defer f.Close()
	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		entries = append(entries, scanner.Text())
	}
	return entries
}

func (b *Backend) AxisLength(axis string) int { return len(b.AxisEntries(axis)) }

func (b *Backend) AxisNames() []string {
	return listDir(filepath.Join(b.path, "axes"))
}

// --- vectors ---

func (b *Backend) vectorPath(axis, name string) string {
	return filepath.Join(b.path, "vectors", axis, name)
}

func (b *Backend) HasVector(axis, name string) bool {
	_, err := os.Stat(b.vectorPath(axis, name))
	return err == nil
}

func (b *Backend) GetVector(axis, name string) (backend.VectorData, bool) {
	f, err := os.Open(b.vectorPath(axis, name))
	if err != nil {
		return backend.VectorData{}, false
	}
	defer f.Close()
	v, err := readVector(f)
	if err != nil {
		b.log.Printf("corrupt vector %s.%s: %v", axis, name, err)
		return backend.VectorData{}, false
	}
	return v, true
}

func (b *Backend) SetVector(axis, name string, v backend.VectorData) {
	os.MkdirAll(filepath.Join(b.path, "vectors", axis), 0o750)
	f, err := os.Create(b.vectorPath(axis, name))
	if err != nil {
		panic(err)
	}
	defer f.Close()
	writeVector(f, v)
}

func (b *Backend) DeleteVector(axis, name string) {
	os.Remove(b.vectorPath(axis, name))
}

func (b *Backend) VectorNames(axis string) []string {
	return listDir(filepath.Join(b.path, "vectors", axis))
}

// --- matrices ---

func (b *Backend) matrixDir(rows, cols string) string {
	return filepath.Join(b.path, "matrices", rows, cols)
}
func (b *Backend) matrixPath(rows, cols, name string) string {
	return filepath.Join(b.matrixDir(rows, cols), name)
}

func (b *Backend) HasMatrix(rows, cols, name string) bool {
	_, err := os.Stat(b.matrixPath(rows, cols, name))
	return err == nil
}

func (b *Backend) GetMatrix(rows, cols, name string) (backend.MatrixData, bool) {
	f, err := os.Open(b.matrixPath(rows, cols, name))
	if err != nil {
		return backend.MatrixData{}, false
	}
	defer f.Close()
	m, err := readMatrix(f)
	if err != nil {
		b.log.Printf("corrupt matrix (%s,%s).%s: %v", rows, cols, name, err)
		return backend.MatrixData{}, false
	}
	return backend.MatrixData{RowsAxis: rows, ColsAxis: cols, Matrix: m}, true
}

func (b *Backend) SetMatrix(rows, cols, name string, m backend.MatrixData) {
	os.MkdirAll(b.matrixDir(rows, cols), 0o750)
	f, err := os.Create(b.matrixPath(rows, cols, name))
	if err != nil {
		panic(err)
	}
	defer f.Close()
	writeMatrix(f, m.Matrix)
}

func (b *Backend) DeleteMatrix(rows, cols, name string) {
	os.Remove(b.matrixPath(rows, cols, name))
}

func (b *Backend) MatrixNames(rows, cols string) []string {
	return listDir(b.matrixDir(rows, cols))
}

func listDir(path string) []string {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// --- wire encoding: a small header followed by an lz4-compressed payload
// (vectors and matrices; scalars are written uncompressed) ---

func writeScalar(w io.Writer, v dafval.Value) {
	binary.Write(w, binary.LittleEndian, uint8(v.Kind()))
	switch v.Kind() {
	case dafval.KindString:
		s := v.AsString()
		binary.Write(w, binary.LittleEndian, uint32(len(s)))
		io.WriteString(w, s)
	case dafval.KindBool:
		b := uint8(0)
		if v.AsBool() {
			b = 1
		}
		binary.Write(w, binary.LittleEndian, b)
	default:
		binary.Write(w, binary.LittleEndian, v.AsFloat64())
	}
}

func readScalar(r io.Reader) (dafval.Value, error) {
	var kind uint8
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return dafval.Value{}, err
	}
	k := dafval.Kind(kind)
	switch k {
	case dafval.KindString:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return dafval.Value{}, err
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return dafval.Value{}, err
		}
		return dafval.String(string(buf)), nil
	case dafval.KindBool:
		var b uint8
		if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
			return dafval.Value{}, err
		}
		return dafval.Bool(b != 0), nil
	default:
		var f float64
		if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
			return dafval.Value{}, err
		}
		return dafval.FromFloat64(k, f), nil
	}
}

func writeVector(w io.Writer, v backend.VectorData) {
	binary.Write(w, binary.LittleEndian, uint8(v.Kind))
	binary.Write(w, binary.LittleEndian, uint32(v.Length))
	sparseFlag := uint8(0)
	if v.Sparse {
		sparseFlag = 1
	}
	binary.Write(w, binary.LittleEndian, sparseFlag)

	lz := lz4.NewWriter(w)
	defer lz.Close()
	if v.Kind == dafval.KindString {
		writeStringSlice(lz, v, sparseValues(v))
		return
	}
	if !v.Sparse {
		binary.Write(lz, binary.LittleEndian, uint32(len(v.Dense)))
		for _, val := range v.Dense {
			binary.Write(lz, binary.LittleEndian, val.AsFloat64())
		}
		return
	}
	binary.Write(lz, binary.LittleEndian, v.Default.AsFloat64())
	binary.Write(lz, binary.LittleEndian, uint32(len(v.Indices)))
	for i, idx := range v.Indices {
		binary.Write(lz, binary.LittleEndian, uint32(idx))
		binary.Write(lz, binary.LittleEndian, v.Values[i].AsFloat64())
	}
}

func sparseValues(v backend.VectorData) []dafval.Value {
	if v.Sparse {
		return v.Values
	}
	return v.Dense
}

func writeStringSlice(w io.Writer, v backend.VectorData, values []dafval.Value) {
	if v.Sparse {
		binary.Write(w, binary.LittleEndian, uint32(len(v.Indices)))
		for i, idx := range v.Indices {
			binary.Write(w, binary.LittleEndian, uint32(idx))
			s := values[i].AsString()
			binary.Write(w, binary.LittleEndian, uint32(len(s)))
			io.WriteString(w, s)
		}
		return
	}
	binary.Write(w, binary.LittleEndian, uint32(len(values)))
	for _, val := range values {
		s := val.AsString()
		binary.Write(w, binary.LittleEndian, uint32(len(s)))
		io.WriteString(w, s)
	}
}

func readVector(r io.Reader) (backend.VectorData, error) {
	var kindByte, sparseByte uint8
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &kindByte); err != nil {
		return backend.VectorData{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return backend.VectorData{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &sparseByte); err != nil {
		return backend.VectorData{}, err
	}
	kind := dafval.Kind(kindByte)
	sparse := sparseByte != 0
	lz := lz4.NewReader(r)

	if kind == dafval.KindString {
		return readStringVector(lz, kind, int(length), sparse)
	}
	if !sparse {
		var n uint32
		binary.Read(lz, binary.LittleEndian, &n)
		dense := make([]dafval.Value, n)
		for i := range dense {
			var f float64
			if err := binary.Read(lz, binary.LittleEndian, &f); err != nil {
				return backend.VectorData{}, err
			}
			dense[i] = dafval.FromFloat64(kind, f)
		}
		return backend.VectorData{Kind: kind, Length: int(length), Dense: dense}, nil
	}
	var def float64
	binary.Read(lz, binary.LittleEndian, &def)
	var n uint32
	binary.Read(lz, binary.LittleEndian, &n)
	indices := make([]int, n)
	values := make([]dafval.Value, n)
	for i := range indices {
		var idx uint32
		var f float64
		binary.Read(lz, binary.LittleEndian, &idx)
		binary.Read(lz, binary.LittleEndian, &f)
		indices[i] = int(idx)
		values[i] = dafval.FromFloat64(kind, f)
	}
	return backend.VectorData{
		Kind: kind, Length: int(length), Sparse: true,
		Indices: indices, Values: values, Default: dafval.FromFloat64(kind, def),
	}, nil
}

func readStringVector(r io.Reader, kind dafval.Kind, length int, sparse bool) (backend.VectorData, error) {
	readString := func() (string, error) {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return "", err
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		return string(buf), nil
	}
	if !sparse {
		var n uint32
		binary.Read(r, binary.LittleEndian, &n)
		dense := make([]dafval.Value, n)
		for i := range dense {
			s, err := readString()
			if err != nil {
				return backend.VectorData{}, err
			}
			dense[i] = dafval.String(s)
		}
		return backend.VectorData{Kind: kind, Length: length, Dense: dense}, nil
	}
	var n uint32
	binary.Read(r, binary.LittleEndian, &n)
	indices := make([]int, n)
	values := make([]dafval.Value, n)
	for i := range indices {
		var idx uint32
		binary.Read(r, binary.LittleEndian, &idx)
		s, err := readString()
		if err != nil {
			return backend.VectorData{}, err
		}
		indices[i] = int(idx)
		values[i] = dafval.String(s)
	}
	return backend.VectorData{
		Kind: kind, Length: length, Sparse: true,
		Indices: indices, Values: values, Default: dafval.String(""),
	}, nil
}

// writeMatrix always serializes in the matrix's own major axis, so the file
// is literally the canonical column-major packed buffer when the matrix
// is columns-major, and the transposed (row-major) packed buffer otherwise
// (a row-major entry still satisfies "typed packed buffer", just for the
// (rows,cols) orientation it was requested under).
func writeMatrix(w io.Writer, m *layout.Matrix) {
	nrows, ncols := m.Dims()
	binary.Write(w, binary.LittleEndian, uint8(m.Kind()))
	binary.Write(w, binary.LittleEndian, uint8(boolByte(m.Major() == layout.Columns)))
	binary.Write(w, binary.LittleEndian, uint32(nrows))
	binary.Write(w, binary.LittleEndian, uint32(ncols))
	binary.Write(w, binary.LittleEndian, uint8(boolByte(m.IsSparse())))

	lz := lz4.NewWriter(w)
	defer lz.Close()

	outer, inner := nrows, ncols
	rowMajorOuter := func(o, i int) (int, int) { return o, i }
	indexer := rowMajorOuter
	if m.Major() == layout.Columns {
		outer, inner = ncols, nrows
		indexer = func(o, i int) (int, int) { return i, o }
	}
	if !m.IsSparse() {
		for o := 0; o < outer; o++ {
			for i := 0; i < inner; i++ {
				r, c := indexer(o, i)
				binary.Write(lz, binary.LittleEndian, m.At(r, c))
			}
		}
		return
	}
	// sparse: indptr (outer+1), then (index,value) pairs per outer slot
	var indptr []uint32
	var indices []uint32
	var values []float64
	indptr = append(indptr, 0)
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			r, c := indexer(o, i)
			v := m.At(r, c)
			if v != 0 {
				indices = append(indices, uint32(i))
				values = append(values, v)
			}
		}
		indptr = append(indptr, uint32(len(indices)))
	}
	binary.Write(lz, binary.LittleEndian, uint32(len(indptr)))
	for _, p := range indptr {
		binary.Write(lz, binary.LittleEndian, p)
	}
	for i, idx := range indices {
		binary.Write(lz, binary.LittleEndian, idx)
		binary.Write(lz, binary.LittleEndian, values[i])
	}
}

func readMatrix(r io.Reader) (*layout.Matrix, error) {
	var kindByte, colsMajorByte, sparseByte uint8
	var nrows, ncols uint32
	if err := binary.Read(r, binary.LittleEndian, &kindByte); err != nil {
		return nil, err
	}
	binary.Read(r, binary.LittleEndian, &colsMajorByte)
	binary.Read(r, binary.LittleEndian, &nrows)
	binary.Read(r, binary.LittleEndian, &ncols)
	binary.Read(r, binary.LittleEndian, &sparseByte)
	kind := dafval.Kind(kindByte)
	major := layout.Rows
	if colsMajorByte != 0 {
		major = layout.Columns
	}
	lz := lz4.NewReader(r)

	outer, inner := int(nrows), int(ncols)
	if major == layout.Columns {
		outer, inner = int(ncols), int(nrows)
	}

	if sparseByte == 0 {
		data := make([]float64, outer*inner)
		for i := range data {
			if err := binary.Read(lz, binary.LittleEndian, &data[i]); err != nil {
				return nil, err
			}
		}
		return layout.NewDense(kind, int(nrows), int(ncols), major, data)
	}

	var indptrLen uint32
	binary.Read(lz, binary.LittleEndian, &indptrLen)
	indptr := make([]int, indptrLen)
	for i := range indptr {
		var p uint32
		binary.Read(lz, binary.LittleEndian, &p)
		indptr[i] = int(p)
	}
	nnz := indptr[len(indptr)-1]
	ind := make([]int, nnz)
	data := make([]float64, nnz)
	for i := 0; i < nnz; i++ {
		var idx uint32
		var v float64
		binary.Read(lz, binary.LittleEndian, &idx)
		binary.Read(lz, binary.LittleEndian, &v)
		ind[i] = int(idx)
		data[i] = v
	}
	if major == layout.Rows {
		return layout.NewSparseCSR(kind, int(nrows), int(ncols), indptr, ind, data)
	}
	return layout.NewSparseCSC(kind, int(nrows), int(ncols), indptr, ind, data)
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// ProcessColumnName hashes overlong property names down to a
// filesystem-safe length.
func ProcessColumnName(name string) string {
	if len(name) < 64 {
		return name
	}
	return fmt.Sprintf("%x", name[:8]) + strconv.Itoa(len(name))
}

var _ backend.Backend = (*Backend)(nil)
