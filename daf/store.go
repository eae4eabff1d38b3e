// Package daf implements the reader/writer facade: validation,
// monotonic version counters, a versioned cache and automatic relayout on
// top of any backend.Backend.
package daf

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/internal/daferr"
	"github.com/tanaylab/daf-go/internal/dlog"
	"github.com/tanaylab/daf-go/internal/rwlock"
	"github.com/tanaylab/daf-go/layout"
)

// Reader is the read-only half of the facade.
type Reader interface {
	Name() string

	HasScalar(name string) bool
	GetScalar(name string) (dafval.Value, error)
	ScalarNames() []string

	HasAxis(axis string) bool
	AxisEntries(axis string) ([]string, error)
	AxisLength(axis string) (int, error)
	AxisNames() []string
	AxisVersion(axis string) uint64

	HasVector(axis, name string) bool
	GetVector(axis, name string) (backend.VectorData, error)
	VectorNames(axis string) []string
	VectorVersion(axis, name string) uint64

	HasMatrix(rows, cols, name string) bool
	GetMatrix(rows, cols, name string, major layout.MajorAxis) (backend.MatrixData, error)
	MatrixNames(rows, cols string) []string
	MatrixVersion(rows, cols, name string) uint64
	CheckMatrixEfficiency(operand string, rows, cols, name string, requestedAxis layout.MajorAxis) error

	IsReadOnly() bool
	Describe() string
}

// Writer is the mutating half of the facade.
type Writer interface {
	Reader

	SetScalar(name string, v dafval.Value) error
	DeleteScalar(name string)

	AddAxis(axis string, entries []string) error
	DeleteAxis(axis string) error

	SetVector(axis, name string, v backend.VectorData) error
	CreateDenseVector(axis, name string, kind dafval.Kind) (*backend.DenseVectorBuilder, error)
	CreateSparseVector(axis, name string, kind dafval.Kind, nnz int, idx backend.IndexType) (*backend.SparseVectorBuilder, error)
	FinishVector(axis, name string, v backend.VectorData) error
	DeleteVector(axis, name string)

	SetMatrix(rows, cols, name string, m *layout.Matrix) error
	RelayoutMatrix(rows, cols, name string) error
	DeleteMatrix(rows, cols, name string)
}

// ReadLocker is implemented by stores whose composite callers need to span
// several reads in one consistent snapshot. A chain acquires the read locks
// of every constituent that implements it, in LockID order, so two chains
// sharing stores always lock in the same sequence.
type ReadLocker interface {
	WithReadLock(token rwlock.Token, fn func() error) error
	LockID() uint64
}

// Store is the concrete Reader/Writer implementation layered over a single
// backend.Backend.
type Store struct {
	backend backend.Backend
	lock    *rwlock.RWLock
	log     *dlog.Logger
	handler layout.Handling
	lockID  uint64

	axisVersions   map[string]*uint64
	vectorVersions map[vecKey]*uint64
	matrixVersions map[matKey]*uint64

	cache *cache
}

type vecKey struct{ axis, name string }
type matKey struct{ rows, cols, name string }

// canonMat folds the two orientations of one logical matrix onto a single
// version-counter key: the matrix is stored under one (rows, cols) order
// but readable under both, so a write must advance the version seen from
// either orientation.
func canonMat(rows, cols, name string) matKey {
	if rows > cols {
		rows, cols = cols, rows
	}
	return matKey{rows, cols, name}
}

// NewStore wraps backend b in a facade using the given abnormal-condition
// handler for the efficiency check.
func NewStore(b backend.Backend, handling layout.Handling) *Store {
	return &Store{
		backend:        b,
		lock:           rwlock.New(),
		log:            dlog.New(b.Name()),
		handler:        handling,
		lockID:         atomic.AddUint64(&lockSeq, 1),
		axisVersions:   make(map[string]*uint64),
		vectorVersions: make(map[vecKey]*uint64),
		matrixVersions: make(map[matKey]*uint64),
		cache:          newCache(),
	}
}

// lockSeq hands each store a process-unique LockID at construction; the
// fixed total order it induces is what lets chains that share stores lock
// their constituents without deadlocking against each other.
var lockSeq uint64

// LockID returns this store's position in the process-wide lock order.
func (s *Store) LockID() uint64 { return s.lockID }

// SetCacheBudget caps the approximate total footprint of cached artifacts
// (relayouts, axis dictionaries) at budgetBytes; 0 removes the cap. When a
// newly published artifact pushes the total over budget, other entries are
// evicted until it fits; the new artifact itself is never dropped.
func (s *Store) SetCacheBudget(budgetBytes int) {
	s.cache.mu.Lock()
	s.cache.budgetBytes = budgetBytes
	s.cache.mu.Unlock()
}

// newToken mints a fresh reentrancy token for one top-level public call.
// Composite operations (the chain) that must touch the same
// Store twice within one logical operation mint a single token themselves
// and pass it through the With*Lock entry points instead, which is how the
// write-then-read lock nesting is satisfied without goroutine-local state.
func newToken() rwlock.Token { return new(int) }

// WithReadLock runs fn while holding a read lock acquired (or re-acquired,
// if token already holds this store's write lock) with token.
func (s *Store) WithReadLock(token rwlock.Token, fn func() error) error {
	s.lock.RLock(token)
	defer s.lock.RUnlock(token)
	return fn()
}

// WithWriteLock runs fn while holding the write lock acquired (or
// re-entered) with token.
func (s *Store) WithWriteLock(token rwlock.Token, fn func() error) error {
	if err := s.lock.Lock(token); err != nil {
		return err
	}
	defer s.lock.Unlock(token)
	return fn()
}

// NewStoreDefault wraps backend b using the documented default
// abnormal-condition handler, Warn.
func NewStoreDefault(b backend.Backend) *Store {
	return NewStore(b, layout.Warn)
}

func (s *Store) Name() string     { return s.backend.Name() }
func (s *Store) IsReadOnly() bool { return false }

func bump(versions map[string]*uint64, key string) uint64 {
	p, ok := versions[key]
	if !ok {
		p = new(uint64)
		versions[key] = p
	}
	return atomic.AddUint64(p, 1)
}

func bumpVec(versions map[vecKey]*uint64, key vecKey) uint64 {
	p, ok := versions[key]
	if !ok {
		p = new(uint64)
		versions[key] = p
	}
	return atomic.AddUint64(p, 1)
}

func bumpMat(versions map[matKey]*uint64, key matKey) uint64 {
	p, ok := versions[key]
	if !ok {
		p = new(uint64)
		versions[key] = p
	}
	return atomic.AddUint64(p, 1)
}

func peek(versions map[string]*uint64, key string) uint64 {
	p, ok := versions[key]
	if !ok {
		return 0
	}
	return atomic.LoadUint64(p)
}

func peekVec(versions map[vecKey]*uint64, key vecKey) uint64 {
	p, ok := versions[key]
	if !ok {
		return 0
	}
	return atomic.LoadUint64(p)
}

func peekMat(versions map[matKey]*uint64, key matKey) uint64 {
	p, ok := versions[key]
	if !ok {
		return 0
	}
	return atomic.LoadUint64(p)
}

// --- scalars ---

func (s *Store) HasScalar(name string) bool {
	token := newToken()
	var ok bool
	s.WithReadLock(token, func() error {
		ok = s.backend.HasScalar(name)
		return nil
	})
	return ok
}

func (s *Store) GetScalar(name string) (dafval.Value, error) {
	token := newToken()
	var v dafval.Value
	var err error
	s.WithReadLock(token, func() error {
		var ok bool
		v, ok = s.backend.GetScalar(name)
		if !ok {
			err = fmt.Errorf("%w: %s", daferr.ErrUnknownScalar, name)
		}
		return nil
	})
	return v, err
}

func (s *Store) SetScalar(name string, v dafval.Value) error {
	token := newToken()
	return s.WithWriteLock(token, func() error {
		s.backend.SetScalar(name, v)
		bump(s.axisVersions, "\x00scalar:"+name)
		s.cache.invalidateScalar(name)
		return nil
	})
}

func (s *Store) DeleteScalar(name string) {
	token := newToken()
	s.WithWriteLock(token, func() error {
		s.backend.DeleteScalar(name)
		s.cache.invalidateScalar(name)
		return nil
	})
}

func (s *Store) ScalarNames() []string {
	token := newToken()
	var names []string
	s.WithReadLock(token, func() error {
		names = s.backend.ScalarNames()
		return nil
	})
	return names
}

func (s *Store) scalarVersion(name string) uint64 { return peek(s.axisVersions, "\x00scalar:"+name) }

// --- axes ---

func (s *Store) HasAxis(axis string) bool {
	token := newToken()
	var ok bool
	s.WithReadLock(token, func() error {
		ok = s.backend.HasAxis(axis)
		return nil
	})
	return ok
}

func (s *Store) AddAxis(axis string, entries []string) error {
	token := newToken()
	return s.WithWriteLock(token, func() error {
		if s.backend.HasAxis(axis) {
			return fmt.Errorf("%w: %s", daferr.ErrDuplicateAxis, axis)
		}
		seen := make(map[string]bool, len(entries))
		for _, e := range entries {
			if seen[e] {
				return fmt.Errorf("%w: %s in axis %s", daferr.ErrDuplicateEntry, e, axis)
			}
			seen[e] = true
		}
		s.backend.AddAxis(axis, entries)
		bump(s.axisVersions, axis)
		s.cache.invalidateAxis(axis)
		return nil
	})
}

func (s *Store) DeleteAxis(axis string) error {
	token := newToken()
	return s.WithWriteLock(token, func() error {
		if !s.backend.HasAxis(axis) {
			return fmt.Errorf("%w: %s", daferr.ErrUnknownAxis, axis)
		}
		if len(s.backend.VectorNames(axis)) > 0 {
			return fmt.Errorf("%w: %s", daferr.ErrAxisInUse, axis)
		}
		for _, rows := range s.backend.AxisNames() {
			if len(s.backend.MatrixNames(rows, axis)) > 0 || len(s.backend.MatrixNames(axis, rows)) > 0 {
				return fmt.Errorf("%w: %s", daferr.ErrAxisInUse, axis)
			}
		}
		s.backend.DeleteAxis(axis)
		bump(s.axisVersions, axis)
		s.cache.invalidateAxis(axis)
		return nil
	})
}

func (s *Store) AxisEntries(axis string) ([]string, error) {
	token := newToken()
	var entries []string
	var err error
	s.WithReadLock(token, func() error {
		if !s.backend.HasAxis(axis) {
			err = fmt.Errorf("%w: %s", daferr.ErrUnknownAxis, axis)
			return nil
		}
		entries = s.backend.AxisEntries(axis)
		return nil
	})
	return entries, err
}

func (s *Store) AxisLength(axis string) (int, error) {
	token := newToken()
	var n int
	var err error
	s.WithReadLock(token, func() error {
		if !s.backend.HasAxis(axis) {
			err = fmt.Errorf("%w: %s", daferr.ErrUnknownAxis, axis)
			return nil
		}
		n = s.backend.AxisLength(axis)
		return nil
	})
	return n, err
}

func (s *Store) AxisNames() []string {
	token := newToken()
	var names []string
	s.WithReadLock(token, func() error {
		names = s.backend.AxisNames()
		return nil
	})
	return names
}

func (s *Store) AxisVersion(axis string) uint64 { return peek(s.axisVersions, axis) }

// AxisEntryIndex returns the entry-name-to-position dictionary of axis,
// memoized in the cache under the axis's current version.
func (s *Store) AxisEntryIndex(axis string) (map[string]int, error) {
	key := cacheKey{kind: cacheKindAxisIndex, rows: axis, name: axis, axisVersion1: s.AxisVersion(axis)}
	if cached, ok := s.cache.get(key); ok {
		return cached.(map[string]int), nil
	}
	entries, err := s.AxisEntries(axis)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e] = i
	}
	s.cache.put(key, index)
	return index, nil
}

// --- vectors ---

func (s *Store) HasVector(axis, name string) bool {
	token := newToken()
	var ok bool
	s.WithReadLock(token, func() error {
		ok = s.backend.HasVector(axis, name)
		return nil
	})
	return ok
}

func (s *Store) GetVector(axis, name string) (backend.VectorData, error) {
	token := newToken()
	var v backend.VectorData
	var err error
	s.WithReadLock(token, func() error {
		var ok bool
		v, ok = s.backend.GetVector(axis, name)
		if !ok {
			err = fmt.Errorf("%w: %s.%s", daferr.ErrUnknownVector, axis, name)
			return nil
		}
		if length := s.backend.AxisLength(axis); v.Length != length {
			err = fmt.Errorf("%w: %s.%s has %d entries, axis has %d", daferr.ErrLengthMismatch, axis, name, v.Length, length)
		}
		return nil
	})
	return v, err
}

// SetVector validates and stores a complete vector.
func (s *Store) SetVector(axis, name string, v backend.VectorData) error {
	token := newToken()
	return s.WithWriteLock(token, func() error {
		if !s.backend.HasAxis(axis) {
			return fmt.Errorf("%w: %s", daferr.ErrUnknownAxis, axis)
		}
		if length := s.backend.AxisLength(axis); v.Length != length {
			return fmt.Errorf("%w: %s.%s: got %d values, axis has %d entries", daferr.ErrLengthMismatch, axis, name, v.Length, length)
		}
		s.backend.SetVector(axis, name, v)
		bumpVec(s.vectorVersions, vecKey{axis, name})
		s.cache.invalidateVector(axis, name)
		return nil
	})
}

// CreateDenseVector returns a borrowed writable buffer sized to axis's
// current length; the caller fills it and
// passes the Finish() result to FinishVector.
func (s *Store) CreateDenseVector(axis, name string, kind dafval.Kind) (*backend.DenseVectorBuilder, error) {
	length, err := s.AxisLength(axis)
	if err != nil {
		return nil, err
	}
	return backend.NewDenseVectorBuilder(kind, length), nil
}

func (s *Store) CreateSparseVector(axis, name string, kind dafval.Kind, nnz int, idx backend.IndexType) (*backend.SparseVectorBuilder, error) {
	length, err := s.AxisLength(axis)
	if err != nil {
		return nil, err
	}
	return backend.NewSparseVectorBuilder(kind, length, nnz, idx), nil
}

// FinishVector persists a buffer obtained from CreateDenseVector/
// CreateSparseVector once the caller has filled it.
func (s *Store) FinishVector(axis, name string, v backend.VectorData) error {
	return s.SetVector(axis, name, v)
}

func (s *Store) DeleteVector(axis, name string) {
	token := newToken()
	s.WithWriteLock(token, func() error {
		s.backend.DeleteVector(axis, name)
		s.cache.invalidateVector(axis, name)
		return nil
	})
}

func (s *Store) VectorNames(axis string) []string {
	token := newToken()
	var names []string
	s.WithReadLock(token, func() error {
		names = s.backend.VectorNames(axis)
		return nil
	})
	return names
}

func (s *Store) VectorVersion(axis, name string) uint64 {
	return peekVec(s.vectorVersions, vecKey{axis, name})
}

// --- matrices ---

func (s *Store) HasMatrix(rows, cols, name string) bool {
	token := newToken()
	var ok bool
	s.WithReadLock(token, func() error {
		ok = s.backend.HasMatrix(rows, cols, name) || s.backend.HasMatrix(cols, rows, name)
		return nil
	})
	return ok
}

// GetMatrix returns the named matrix under the requested (rows, cols)
// orientation, automatically relaying out and memoizing if only the
// transposed orientation is stored.
func (s *Store) GetMatrix(rows, cols, name string, major layout.MajorAxis) (backend.MatrixData, error) {
	token := newToken()
	var out backend.MatrixData
	var err error
	s.WithReadLock(token, func() error {
		out, err = s.getMatrixLocked(rows, cols, name, major)
		return nil
	})
	return out, err
}

func (s *Store) getMatrixLocked(rows, cols, name string, major layout.MajorAxis) (backend.MatrixData, error) {
	if md, ok := s.backend.GetMatrix(rows, cols, name); ok {
		if err := s.checkMatrixShape(rows, cols, md.Matrix); err != nil {
			return backend.MatrixData{}, err
		}
		if major != layout.None && md.Matrix.Major() != major {
			return s.relayoutCached(rows, cols, name, md.Matrix, major)
		}
		return md, nil
	}
	if md, ok := s.backend.GetMatrix(cols, rows, name); ok {
		transposed := md.Matrix.T()
		if err := s.checkMatrixShape(rows, cols, transposed); err != nil {
			return backend.MatrixData{}, err
		}
		if major != layout.None && transposed.Major() != major {
			return s.relayoutCached(rows, cols, name, transposed, major)
		}
		return backend.MatrixData{RowsAxis: rows, ColsAxis: cols, Matrix: transposed}, nil
	}
	return backend.MatrixData{}, fmt.Errorf("%w: (%s,%s).%s", daferr.ErrUnknownMatrix, rows, cols, name)
}

func (s *Store) checkMatrixShape(rows, cols string, m *layout.Matrix) error {
	nrows, ncols := m.Dims()
	rowLen, colLen := s.backend.AxisLength(rows), s.backend.AxisLength(cols)
	if nrows != rowLen || ncols != colLen {
		return fmt.Errorf("%w: (%s,%s) expected (%d,%d), got (%d,%d)",
			daferr.ErrShapeMismatch, rows, cols, rowLen, colLen, nrows, ncols)
	}
	return nil
}

func (s *Store) relayoutCached(rows, cols, name string, m *layout.Matrix, major layout.MajorAxis) (backend.MatrixData, error) {
	key := cacheKey{kind: cacheKindMatrixRelayout, rows: rows, cols: cols, name: name, major: major,
		axisVersion1: s.AxisVersion(rows), axisVersion2: s.AxisVersion(cols),
		propVersion: s.MatrixVersion(rows, cols, name)}
	if cached, ok := s.cache.get(key); ok {
		return cached.(backend.MatrixData), nil
	}
	relaid, err := layout.Relayout(m)
	if err != nil {
		return backend.MatrixData{}, err
	}
	out := backend.MatrixData{RowsAxis: rows, ColsAxis: cols, Matrix: relaid}
	s.cache.put(key, out)
	return out, nil
}

// SetMatrix validates and stores a complete matrix; it must already be
// column-major for the (rows, cols) order it is listed under; callers
// holding a row-major matrix should relayout before calling, or use
// RelayoutMatrix after an initial SetMatrix.
func (s *Store) SetMatrix(rows, cols, name string, m *layout.Matrix) error {
	token := newToken()
	return s.WithWriteLock(token, func() error {
		if !s.backend.HasAxis(rows) {
			return fmt.Errorf("%w: %s", daferr.ErrUnknownAxis, rows)
		}
		if !s.backend.HasAxis(cols) {
			return fmt.Errorf("%w: %s", daferr.ErrUnknownAxis, cols)
		}
		nrows, ncols := m.Dims()
		if nrows != s.backend.AxisLength(rows) || ncols != s.backend.AxisLength(cols) {
			return fmt.Errorf("%w: (%s,%s)", daferr.ErrShapeMismatch, rows, cols)
		}
		if m.Major() != layout.Columns {
			return fmt.Errorf("%w: matrix (%s,%s).%s must be stored column-major", daferr.ErrLayoutMismatch, rows, cols, name)
		}
		s.backend.SetMatrix(rows, cols, name, backend.MatrixData{RowsAxis: rows, ColsAxis: cols, Matrix: m})
		bumpMat(s.matrixVersions, canonMat(rows, cols, name))
		s.cache.invalidateMatrix(rows, cols, name)
		return nil
	})
}

// RelayoutMatrix persists the alternative-layout form under the same name.
func (s *Store) RelayoutMatrix(rows, cols, name string) error {
	token := newToken()
	return s.WithWriteLock(token, func() error {
		md, err := s.getMatrixLocked(rows, cols, name, layout.None)
		if err != nil {
			return err
		}
		relaid, err := layout.Relayout(md.Matrix)
		if err != nil {
			return err
		}
		s.backend.SetMatrix(rows, cols, name, backend.MatrixData{RowsAxis: rows, ColsAxis: cols, Matrix: relaid})
		// writing the matrix invalidates the previously cached alternative
		// layout entry rather than silently reusing it.
		bumpMat(s.matrixVersions, canonMat(rows, cols, name))
		s.cache.invalidateMatrix(rows, cols, name)
		return nil
	})
}

func (s *Store) DeleteMatrix(rows, cols, name string) {
	token := newToken()
	s.WithWriteLock(token, func() error {
		s.backend.DeleteMatrix(rows, cols, name)
		s.backend.DeleteMatrix(cols, rows, name)
		s.cache.invalidateMatrix(rows, cols, name)
		return nil
	})
}

func (s *Store) MatrixNames(rows, cols string) []string {
	token := newToken()
	var names []string
	s.WithReadLock(token, func() error {
		set := make(map[string]bool)
		for _, n := range s.backend.MatrixNames(rows, cols) {
			set[n] = true
		}
		for _, n := range s.backend.MatrixNames(cols, rows) {
			set[n] = true
		}
		names = make([]string, 0, len(set))
		for n := range set {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil
	})
	return names
}

func (s *Store) MatrixVersion(rows, cols, name string) uint64 {
	return peekMat(s.matrixVersions, canonMat(rows, cols, name))
}

// CheckMatrixEfficiency runs the with-the-grain check for an operation
// about to iterate matrix (rows,cols).name along requestedAxis, invoking
// this store's configured abnormal-condition handler on a mismatch.
func (s *Store) CheckMatrixEfficiency(operand string, rows, cols, name string, requestedAxis layout.MajorAxis) error {
	md, err := s.GetMatrix(rows, cols, name, layout.None)
	if err != nil {
		return err
	}
	return layout.CheckEfficiency(s.log, s.handler, operand, requestedAxis, md.Matrix)
}

// Describe renders a pretty-printed listing of the store's contents.
func (s *Store) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Store %q\n", s.Name())
	fmt.Fprintf(&b, "  scalars: %s\n", strings.Join(s.ScalarNames(), ", "))
	for _, axis := range s.AxisNames() {
		length := s.backend.AxisLength(axis)
		fmt.Fprintf(&b, "  axis %s: %d entries\n", axis, length)
		for _, v := range s.VectorNames(axis) {
			vd, _ := s.backend.GetVector(axis, v)
			fmt.Fprintf(&b, "    vector %s.%s: %s density=%s\n", axis, v, vd.Kind, density(vd))
		}
	}
	for _, rows := range s.AxisNames() {
		for _, cols := range s.AxisNames() {
			for _, name := range s.backend.MatrixNames(rows, cols) {
				md, _ := s.backend.GetMatrix(rows, cols, name)
				nr, nc := md.Matrix.Dims()
				fmt.Fprintf(&b, "    matrix (%s,%s).%s: %dx%d %s layout=%s sparse=%v\n",
					rows, cols, name, nr, nc, md.Matrix.Kind(), md.Matrix.Major(), md.Matrix.IsSparse())
			}
		}
	}
	return b.String()
}

func density(v backend.VectorData) string {
	if !v.Sparse {
		return "dense"
	}
	if v.Length == 0 {
		return "sparse(0%)"
	}
	return fmt.Sprintf("sparse(%.1f%%)", 100*float64(len(v.Values))/float64(v.Length))
}

var _ Reader = (*Store)(nil)
var _ Writer = (*Store)(nil)
