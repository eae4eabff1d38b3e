package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/backend/memory"
	"github.com/tanaylab/daf-go/daf"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/internal/daferr"
)

func newStore(t *testing.T, name string) *daf.Store {
	t.Helper()
	return daf.NewStoreDefault(memory.New(name))
}

func TestScalarShadowing(t *testing.T) {
	s0 := newStore(t, "s0")
	s1 := newStore(t, "s1")
	require.NoError(t, s0.SetScalar("organism", dafval.String("human")))
	require.NoError(t, s1.SetScalar("organism", dafval.String("mouse")))

	c, err := NewReader(s0, s1)
	require.NoError(t, err)

	v, err := c.GetScalar("organism")
	require.NoError(t, err)
	assert.Equal(t, "mouse", v.AsString())
}

func TestFallThroughToEarlierLayer(t *testing.T) {
	s0 := newStore(t, "s0")
	s1 := newStore(t, "s1")
	require.NoError(t, s0.SetScalar("organism", dafval.String("human")))

	c, err := NewReader(s0, s1)
	require.NoError(t, err)

	v, err := c.GetScalar("organism")
	require.NoError(t, err)
	assert.Equal(t, "human", v.AsString())

	_, err = c.GetScalar("tissue")
	require.ErrorIs(t, err, daferr.ErrUnknownScalar)
}

func TestVectorShadowingAndUnion(t *testing.T) {
	s0 := newStore(t, "s0")
	s1 := newStore(t, "s1")
	entries := []string{"c0", "c1"}
	require.NoError(t, s0.AddAxis("cell", entries))
	require.NoError(t, s1.AddAxis("cell", entries))

	base := backend.VectorData{Kind: dafval.KindInt64, Length: 2,
		Dense: []dafval.Value{dafval.Int64(1), dafval.Int64(2)}}
	shadow := backend.VectorData{Kind: dafval.KindInt64, Length: 2,
		Dense: []dafval.Value{dafval.Int64(10), dafval.Int64(20)}}
	require.NoError(t, s0.SetVector("cell", "age", base))
	require.NoError(t, s0.SetVector("cell", "size", base))
	require.NoError(t, s1.SetVector("cell", "age", shadow))

	c, err := NewReader(s0, s1)
	require.NoError(t, err)

	v, err := c.GetVector("cell", "age")
	require.NoError(t, err)
	assert.Equal(t, 10.0, v.Get(0).AsFloat64())

	assert.Equal(t, []string{"age", "size"}, c.VectorNames("cell"))
}

func TestAxisMismatchFailsFast(t *testing.T) {
	s0 := newStore(t, "s0")
	s1 := newStore(t, "s1")
	require.NoError(t, s0.AddAxis("cell", []string{"c0", "c1"}))
	require.NoError(t, s1.AddAxis("cell", []string{"c0", "c1", "c2"}))

	_, err := NewReader(s0, s1)
	require.ErrorIs(t, err, daferr.ErrChainAxisMismatch)
}

func TestWriterChainMutatesTailOnly(t *testing.T) {
	s0 := newStore(t, "s0")
	s1 := newStore(t, "s1")

	c, err := NewWriter(s0, s1)
	require.NoError(t, err)

	require.NoError(t, c.SetScalar("organism", dafval.String("mouse")))
	assert.False(t, s0.HasScalar("organism"))
	assert.True(t, s1.HasScalar("organism"))

	v, err := c.GetScalar("organism")
	require.NoError(t, err)
	assert.Equal(t, "mouse", v.AsString())
}

func TestWriterChainRequiresWritableTail(t *testing.T) {
	s0 := newStore(t, "s0")
	s1 := newStore(t, "s1")
	require.NoError(t, s1.SetScalar("x", dafval.Int64(1)))

	ro, err := NewReader(s1)
	require.NoError(t, err)
	_, err = NewWriter(s0, ro)
	require.Error(t, err)
}

func TestCompleteChainFollowsParents(t *testing.T) {
	grandparent := newStore(t, "grandparent")
	parent := newStore(t, "parent")
	leaf := newStore(t, "leaf")

	require.NoError(t, grandparent.SetScalar("organism", dafval.String("human")))
	require.NoError(t, parent.SetScalar("base_daf_repository", dafval.String("../grandparent")))
	require.NoError(t, parent.SetScalar("tissue", dafval.String("blood")))
	require.NoError(t, leaf.SetScalar("base_daf_repository", dafval.String("../parent")))

	stores := map[string]daf.Reader{
		"../grandparent": grandparent,
		"../parent":      parent,
	}
	c, err := CompleteChain(leaf, func(relPath string) (daf.Reader, error) {
		return stores[relPath], nil
	})
	require.NoError(t, err)

	v, err := c.GetScalar("organism")
	require.NoError(t, err)
	assert.Equal(t, "human", v.AsString())
	v, err = c.GetScalar("tissue")
	require.NoError(t, err)
	assert.Equal(t, "blood", v.AsString())

	// Only the leaf is writable: a write lands there, not in a parent.
	require.NoError(t, c.SetScalar("note", dafval.String("x")))
	assert.True(t, leaf.HasScalar("note"))
	assert.False(t, parent.HasScalar("note"))
}

func TestSharedStoreChainsLockConsistently(t *testing.T) {
	shared := newStore(t, "shared")
	other := newStore(t, "other")
	require.NoError(t, shared.SetScalar("k", dafval.Int64(1)))

	c1, err := NewReader(shared, other)
	require.NoError(t, err)
	c2, err := NewReader(other, shared)
	require.NoError(t, err)

	done := make(chan bool)
	for _, c := range []*Chain{c1, c2} {
		go func(c *Chain) {
			for i := 0; i < 100; i++ {
				c.GetScalar("k")
				c.ScalarNames()
			}
			done <- true
		}(c)
	}
	<-done
	<-done
}
