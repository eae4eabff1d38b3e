package query

import (
	"fmt"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/daf"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/internal/daferr"
)

// Eval parses and runs a query string against r, returning the pipeline's
// final Value. It is the entry point adapters and the CLI use.
func Eval(r daf.Reader, query string) (Value, error) {
	ops, err := Parse(query)
	if err != nil {
		return Value{}, err
	}
	return Run(r, ops)
}

// Run steps an already-parsed Op plan through the pipeline.
func Run(r daf.Reader, ops []Op) (Value, error) {
	ctx := newContext(r)
	var cur Value
	for idx, op := range ops {
		next, err := op.Apply(ctx, cur)
		if err != nil {
			return Value{}, fmt.Errorf("query op %d: %w", idx, err)
		}
		cur = next
	}
	return cur, nil
}

// AsScalar is a convenience accessor erroring out when the query result is
// not a Scalar (e.g. a vector or names list).
func AsScalar(v Value) (dafval.Value, error) {
	if v.Kind != KindScalar {
		return dafval.Value{}, fmt.Errorf("%w: query result is not a scalar", daferr.ErrQueryEvaluation)
	}
	return v.Scalar, nil
}

// AsVector is a convenience accessor erroring out when the query result is
// not a Vector.
func AsVector(v Value) (string, backend.VectorData, error) {
	if v.Kind != KindVector {
		return "", backend.VectorData{}, fmt.Errorf("%w: query result is not a vector", daferr.ErrQueryEvaluation)
	}
	return v.Axis, v.Vector, nil
}

// AsCountMatrix is a convenience accessor erroring out when the query
// result is not a CountBy count matrix.
func AsCountMatrix(v Value) (counts [][]float64, rowLabels, colLabels []string, err error) {
	if v.Kind != KindCountMatrix {
		return nil, nil, nil, fmt.Errorf("%w: query result is not a count matrix", daferr.ErrQueryEvaluation)
	}
	return v.Counts, v.RowLabels, v.ColLabels, nil
}
