package query

import (
	"fmt"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/daf"
	"github.com/tanaylab/daf-go/internal/daferr"
)

// Frame is the tabular result of GetFrame: one row per axis entry, one
// named column per requested query.
type Frame struct {
	Axis    string
	Entries []string
	Columns map[string]backend.VectorData
}

// GetFrame evaluates a set of column queries sharing one axis and stacks
// their results into a single table, one row per axis entry.
// Every query must resolve to KindVector over the same axis; a query that
// resolves to a different axis, or to a non-vector value, is rejected.
func GetFrame(r daf.Reader, axis string, queries map[string]string) (Frame, error) {
	if !r.HasAxis(axis) {
		return Frame{}, fmt.Errorf("%w: %s", daferr.ErrUnknownAxis, axis)
	}
	entries, err := r.AxisEntries(axis)
	if err != nil {
		return Frame{}, err
	}

	columns := make(map[string]backend.VectorData, len(queries))
	for column, q := range queries {
		v, err := Eval(r, q)
		if err != nil {
			return Frame{}, fmt.Errorf("column %s: %w", column, err)
		}
		if v.Kind != KindVector {
			return Frame{}, fmt.Errorf("%w: column %s query does not produce a vector", daferr.ErrQueryEvaluation, column)
		}
		if v.Axis != axis {
			return Frame{}, fmt.Errorf("%w: column %s is over axis %s, not %s", daferr.ErrQueryEvaluation, column, v.Axis, axis)
		}
		if v.Vector.Length != len(entries) {
			return Frame{}, fmt.Errorf("%w: column %s length %d does not match axis %s length %d",
				daferr.ErrLengthMismatch, column, v.Vector.Length, axis, len(entries))
		}
		columns[column] = v.Vector
	}
	return Frame{Axis: axis, Entries: entries, Columns: columns}, nil
}

// AsFrame builds a Frame value directly out of an evaluated FrameAxis,
// used when a pipeline itself produces a KindFrame Value rather than going
// through GetFrame's multi-query entry point.
func AsFrame(v Value) (Frame, error) {
	if v.Kind != KindFrame {
		return Frame{}, fmt.Errorf("%w: query result is not a frame", daferr.ErrQueryEvaluation)
	}
	return Frame{Axis: v.FrameAxis, Columns: v.FrameColumns}, nil
}
