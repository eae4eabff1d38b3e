// Package chain implements chain composition: an ordered list
// of stores read in reverse (later shadows earlier) with all mutations
// directed to a single writable tail.
package chain

import (
	"fmt"
	"sort"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/daf"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/internal/daferr"
	"github.com/tanaylab/daf-go/layout"
)

// Chain composes layers []daf.Reader, s0..sk, with sk on top (consulted
// first). A writer chain additionally designates tail as the sole target
// of every mutating call.
type Chain struct {
	layers []daf.Reader
	tail   daf.Writer // nil for a read-only chain

	// lockers are the constituents that expose their store lock, sorted by
	// LockID so every chain sharing a store acquires locks in the same fixed
	// order. Value-returning reads (get, entries, name enumeration)
	// span their has-then-get walk over all layers under these locks;
	// mutations delegate to the tail without any chain-held lock, so the
	// forbidden read→write upgrade can never occur at this level.
	lockers []daf.ReadLocker
}

func collectLockers(layers []daf.Reader) []daf.ReadLocker {
	seen := make(map[uint64]bool)
	var lockers []daf.ReadLocker
	for _, l := range layers {
		rl, ok := l.(daf.ReadLocker)
		if !ok || seen[rl.LockID()] {
			continue
		}
		seen[rl.LockID()] = true
		lockers = append(lockers, rl)
	}
	sort.Slice(lockers, func(i, j int) bool { return lockers[i].LockID() < lockers[j].LockID() })
	return lockers
}

// withReadLocks runs fn while holding every constituent's read lock,
// acquired in LockID order with a single token for the whole span.
func (c *Chain) withReadLocks(fn func() error) error {
	token := new(int)
	var run func(i int) error
	run = func(i int) error {
		if i == len(c.lockers) {
			return fn()
		}
		return c.lockers[i].WithReadLock(token, func() error { return run(i + 1) })
	}
	return run(0)
}

// NewReader builds a read-only chain over layers (s0..sk, later shadows
// earlier), failing fast with ChainAxisMismatch if any two layers disagree
// on a shared axis's entries.
func NewReader(layers ...daf.Reader) (*Chain, error) {
	c := &Chain{layers: layers, lockers: collectLockers(layers)}
	if err := c.withReadLocks(func() error { return checkAxisConsistency(layers) }); err != nil {
		return nil, err
	}
	return c, nil
}

// NewWriter builds a writer chain over layers whose last element must
// implement daf.Writer; all mutations go to it, reads still consult the
// full chain.
func NewWriter(layers ...daf.Reader) (*Chain, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("chain: writer chain requires at least one layer")
	}
	tail, ok := layers[len(layers)-1].(daf.Writer)
	if !ok || tail.IsReadOnly() {
		return nil, fmt.Errorf("chain: tail layer %q is not writable", layers[len(layers)-1].Name())
	}
	c := &Chain{layers: layers, tail: tail, lockers: collectLockers(layers)}
	if err := c.withReadLocks(func() error { return checkAxisConsistency(layers) }); err != nil {
		return nil, err
	}
	return c, nil
}

func checkAxisConsistency(layers []daf.Reader) error {
	seen := make(map[string][]string)
	for _, l := range layers {
		for _, axis := range l.AxisNames() {
			entries, err := l.AxisEntries(axis)
			if err != nil {
				return err
			}
			if prior, ok := seen[axis]; ok {
				if !equalStrings(prior, entries) {
					return fmt.Errorf("%w: axis %q disagrees between layers", daferr.ErrChainAxisMismatch, axis)
				}
				continue
			}
			seen[axis] = entries
		}
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (c *Chain) Name() string {
	if len(c.layers) == 0 {
		return "chain()"
	}
	return "chain(" + c.layers[len(c.layers)-1].Name() + ",...)"
}

// --- scalars: reverse lookup, first hit wins ---

func (c *Chain) HasScalar(name string) bool {
	var found bool
	c.withReadLocks(func() error {
		for i := len(c.layers) - 1; i >= 0; i-- {
			if c.layers[i].HasScalar(name) {
				found = true
				break
			}
		}
		return nil
	})
	return found
}

func (c *Chain) GetScalar(name string) (dafval.Value, error) {
	var v dafval.Value
	err := c.withReadLocks(func() error {
		for i := len(c.layers) - 1; i >= 0; i-- {
			if c.layers[i].HasScalar(name) {
				var err error
				v, err = c.layers[i].GetScalar(name)
				return err
			}
		}
		return fmt.Errorf("%w: %s", daferr.ErrUnknownScalar, name)
	})
	return v, err
}

func (c *Chain) ScalarNames() []string {
	set := make(map[string]bool)
	c.withReadLocks(func() error {
		for _, l := range c.layers {
			for _, n := range l.ScalarNames() {
				set[n] = true
			}
		}
		return nil
	})
	return sortedSet(set)
}

// --- axes: identical across all defining layers by construction ---

func (c *Chain) HasAxis(axis string) bool {
	for _, l := range c.layers {
		if l.HasAxis(axis) {
			return true
		}
	}
	return false
}

func (c *Chain) AxisEntries(axis string) ([]string, error) {
	var entries []string
	err := c.withReadLocks(func() error {
		for _, l := range c.layers {
			if l.HasAxis(axis) {
				var err error
				entries, err = l.AxisEntries(axis)
				return err
			}
		}
		return fmt.Errorf("%w: %s", daferr.ErrUnknownAxis, axis)
	})
	return entries, err
}

func (c *Chain) AxisLength(axis string) (int, error) {
	entries, err := c.AxisEntries(axis)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (c *Chain) AxisNames() []string {
	set := make(map[string]bool)
	c.withReadLocks(func() error {
		for _, l := range c.layers {
			for _, n := range l.AxisNames() {
				set[n] = true
			}
		}
		return nil
	})
	return sortedSet(set)
}

func (c *Chain) AxisVersion(axis string) uint64 {
	var v uint64
	for _, l := range c.layers {
		if l.HasAxis(axis) {
			v += l.AxisVersion(axis)
		}
	}
	return v
}

// --- vectors: reverse lookup ---

func (c *Chain) HasVector(axis, name string) bool {
	for i := len(c.layers) - 1; i >= 0; i-- {
		if c.layers[i].HasVector(axis, name) {
			return true
		}
	}
	return false
}

func (c *Chain) GetVector(axis, name string) (backend.VectorData, error) {
	var v backend.VectorData
	err := c.withReadLocks(func() error {
		for i := len(c.layers) - 1; i >= 0; i-- {
			if c.layers[i].HasVector(axis, name) {
				var err error
				v, err = c.layers[i].GetVector(axis, name)
				return err
			}
		}
		return fmt.Errorf("%w: %s.%s", daferr.ErrUnknownVector, axis, name)
	})
	return v, err
}

func (c *Chain) VectorNames(axis string) []string {
	set := make(map[string]bool)
	c.withReadLocks(func() error {
		for _, l := range c.layers {
			for _, n := range l.VectorNames(axis) {
				set[n] = true
			}
		}
		return nil
	})
	return sortedSet(set)
}

func (c *Chain) VectorVersion(axis, name string) uint64 {
	for i := len(c.layers) - 1; i >= 0; i-- {
		if c.layers[i].HasVector(axis, name) {
			return c.layers[i].VectorVersion(axis, name)
		}
	}
	return 0
}

// --- matrices: reverse lookup ---

func (c *Chain) HasMatrix(rows, cols, name string) bool {
	for i := len(c.layers) - 1; i >= 0; i-- {
		if c.layers[i].HasMatrix(rows, cols, name) {
			return true
		}
	}
	return false
}

func (c *Chain) GetMatrix(rows, cols, name string, major layout.MajorAxis) (backend.MatrixData, error) {
	var md backend.MatrixData
	err := c.withReadLocks(func() error {
		for i := len(c.layers) - 1; i >= 0; i-- {
			if c.layers[i].HasMatrix(rows, cols, name) {
				var err error
				md, err = c.layers[i].GetMatrix(rows, cols, name, major)
				return err
			}
		}
		return fmt.Errorf("%w: (%s,%s).%s", daferr.ErrUnknownMatrix, rows, cols, name)
	})
	return md, err
}

func (c *Chain) MatrixNames(rows, cols string) []string {
	set := make(map[string]bool)
	c.withReadLocks(func() error {
		for _, l := range c.layers {
			for _, n := range l.MatrixNames(rows, cols) {
				set[n] = true
			}
		}
		return nil
	})
	return sortedSet(set)
}

func (c *Chain) MatrixVersion(rows, cols, name string) uint64 {
	for i := len(c.layers) - 1; i >= 0; i-- {
		if c.layers[i].HasMatrix(rows, cols, name) {
			return c.layers[i].MatrixVersion(rows, cols, name)
		}
	}
	return 0
}

func (c *Chain) CheckMatrixEfficiency(operand string, rows, cols, name string, requestedAxis layout.MajorAxis) error {
	for i := len(c.layers) - 1; i >= 0; i-- {
		if c.layers[i].HasMatrix(rows, cols, name) {
			return c.layers[i].CheckMatrixEfficiency(operand, rows, cols, name, requestedAxis)
		}
	}
	return fmt.Errorf("%w: (%s,%s).%s", daferr.ErrUnknownMatrix, rows, cols, name)
}

func (c *Chain) IsReadOnly() bool { return c.tail == nil }

func (c *Chain) Describe() string {
	out := c.Name() + "\n"
	for _, l := range c.layers {
		out += "  layer: " + l.Describe()
	}
	return out
}

// --- writer: every mutation goes to the tail ---

func (c *Chain) requireTail() (daf.Writer, error) {
	if c.tail == nil {
		return nil, fmt.Errorf("chain: read-only chain has no writable tail")
	}
	return c.tail, nil
}

func (c *Chain) SetScalar(name string, v dafval.Value) error {
	tail, err := c.requireTail()
	if err != nil {
		return err
	}
	return tail.SetScalar(name, v)
}

func (c *Chain) DeleteScalar(name string) {
	if tail, err := c.requireTail(); err == nil {
		tail.DeleteScalar(name)
	}
}

func (c *Chain) AddAxis(axis string, entries []string) error {
	tail, err := c.requireTail()
	if err != nil {
		return err
	}
	for _, l := range c.layers {
		if l.HasAxis(axis) {
			existing, _ := l.AxisEntries(axis)
			if !equalStrings(existing, entries) {
				return fmt.Errorf("%w: axis %q already present with different entries", daferr.ErrChainAxisMismatch, axis)
			}
		}
	}
	return tail.AddAxis(axis, entries)
}

func (c *Chain) DeleteAxis(axis string) error {
	tail, err := c.requireTail()
	if err != nil {
		return err
	}
	return tail.DeleteAxis(axis)
}

func (c *Chain) SetVector(axis, name string, v backend.VectorData) error {
	tail, err := c.requireTail()
	if err != nil {
		return err
	}
	return tail.SetVector(axis, name, v)
}

func (c *Chain) CreateDenseVector(axis, name string, kind dafval.Kind) (*backend.DenseVectorBuilder, error) {
	tail, err := c.requireTail()
	if err != nil {
		return nil, err
	}
	return tail.CreateDenseVector(axis, name, kind)
}

func (c *Chain) CreateSparseVector(axis, name string, kind dafval.Kind, nnz int, idx backend.IndexType) (*backend.SparseVectorBuilder, error) {
	tail, err := c.requireTail()
	if err != nil {
		return nil, err
	}
	return tail.CreateSparseVector(axis, name, kind, nnz, idx)
}

func (c *Chain) FinishVector(axis, name string, v backend.VectorData) error {
	tail, err := c.requireTail()
	if err != nil {
		return err
	}
	return tail.FinishVector(axis, name, v)
}

func (c *Chain) DeleteVector(axis, name string) {
	if tail, err := c.requireTail(); err == nil {
		tail.DeleteVector(axis, name)
	}
}

func (c *Chain) SetMatrix(rows, cols, name string, m *layout.Matrix) error {
	tail, err := c.requireTail()
	if err != nil {
		return err
	}
	return tail.SetMatrix(rows, cols, name, m)
}

func (c *Chain) RelayoutMatrix(rows, cols, name string) error {
	tail, err := c.requireTail()
	if err != nil {
		return err
	}
	return tail.RelayoutMatrix(rows, cols, name)
}

func (c *Chain) DeleteMatrix(rows, cols, name string) {
	if tail, err := c.requireTail(); err == nil {
		tail.DeleteMatrix(rows, cols, name)
	}
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ParentOpener resolves the value of a store's base_daf_repository scalar
// into the parent
// store's Reader; callers (e.g. backend/files) supply one that already
// knows how to resolve the path relative to the store it was read from.
type ParentOpener func(relPath string) (daf.Reader, error)

const baseRepositoryScalar = "base_daf_repository"

// CompleteChain completes a chain from disk: starting
// from leaf, it recursively follows base_daf_repository scalars via open
// until a store carries none, then returns the resulting chain with leaf on
// top as the sole writable tail ("mode r+ opens only the leaf writable").
func CompleteChain(leaf daf.Writer, open ParentOpener) (*Chain, error) {
	var layers []daf.Reader
	current := daf.Reader(leaf)
	for current.HasScalar(baseRepositoryScalar) {
		v, err := current.GetScalar(baseRepositoryScalar)
		if err != nil {
			return nil, err
		}
		parent, err := open(v.AsString())
		if err != nil {
			return nil, err
		}
		layers = append([]daf.Reader{parent}, layers...)
		current = parent
	}
	layers = append(layers, leaf)
	return NewWriter(layers...)
}

var _ daf.Reader = (*Chain)(nil)
var _ daf.Writer = (*Chain)(nil)
