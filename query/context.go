package query

import "github.com/tanaylab/daf-go/daf"

// Context carries the reader being queried plus the bits of running state a
// handful of ops need to stash for the op that follows them (GroupBy stages
// its bucketing for the next reduction; MaskSlice stages a restriction for
// a later Lookup). It is not part of Value because neither is itself a
// pipeline value in the algebra.
type Context struct {
	Reader daf.Reader

	pendingGroupBy *groupByState

	MaskAxis    string
	MaskIndices []int
}

func newContext(r daf.Reader) *Context { return &Context{Reader: r} }
