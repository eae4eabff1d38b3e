package readonly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanaylab/daf-go/backend/memory"
	"github.com/tanaylab/daf-go/daf"
	"github.com/tanaylab/daf-go/dafval"
)

func TestWrapForbidsMutationSurface(t *testing.T) {
	s := daf.NewStoreDefault(memory.New("s"))
	require.NoError(t, s.SetScalar("organism", dafval.String("human")))

	r := Wrap(s)
	assert.True(t, r.IsReadOnly())

	v, err := r.GetScalar("organism")
	require.NoError(t, err)
	assert.Equal(t, "human", v.AsString())

	_, writable := r.(daf.Writer)
	assert.False(t, writable, "wrapper must not expose the writer surface")
}

func TestWrapIsIdempotent(t *testing.T) {
	s := daf.NewStoreDefault(memory.New("s"))
	once := Wrap(s)
	twice := Wrap(once)
	assert.Same(t, once, twice)
}

func TestWrapDelegatesReads(t *testing.T) {
	s := daf.NewStoreDefault(memory.New("s"))
	require.NoError(t, s.AddAxis("cell", []string{"c0", "c1"}))

	r := Wrap(s)
	assert.True(t, r.HasAxis("cell"))
	n, err := r.AxisLength("cell")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Writes through the underlying store stay visible: the wrapper is a
	// capability restriction, not a snapshot.
	require.NoError(t, s.SetScalar("note", dafval.String("x")))
	assert.True(t, r.HasScalar("note"))
}
