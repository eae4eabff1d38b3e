package contract

import (
	"errors"
	"fmt"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/daf"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/internal/daferr"
	"github.com/tanaylab/daf-go/layout"
)

// CopyOptions controls copy_all!.
type CopyOptions struct {
	// Empty, if non-nil, fills a destination vector whose source axis is
	// missing with this value instead of skipping the vector entirely.
	Empty *dafval.Value
	// Relayout, when true, also produces the alternative major-axis layout
	// of every copied matrix in the destination.
	Relayout bool
	// Overwrite, when false (the default), raises ErrPropertyExists on any
	// destination property that already exists; a destination axis whose
	// entries equal the source's is not a conflict.
	Overwrite bool
}

// CopyAll copies scalars, then axes, then vectors, then matrices from src
// into dst, in that order.
func CopyAll(dst daf.Writer, src daf.Reader, opts CopyOptions) error {
	if err := copyScalars(dst, src, opts); err != nil {
		return err
	}
	if err := copyAxes(dst, src, opts); err != nil {
		return err
	}
	if err := copyVectors(dst, src, opts); err != nil {
		return err
	}
	if err := copyMatrices(dst, src, opts); err != nil {
		return err
	}
	return nil
}

func equalEntries(a, b []string) bool {
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

func copyScalars(dst daf.Writer, src daf.Reader, opts CopyOptions) error {
	for _, name := range src.ScalarNames() {
		if dst.HasScalar(name) {
			if !opts.Overwrite {
				return fmt.Errorf("%w: scalar %s", daferr.ErrPropertyExists, name)
			}
		}
		v, err := src.GetScalar(name)
		if err != nil {
			return err
		}
		if err := dst.SetScalar(name, v); err != nil {
			return err
		}
	}
	return nil
}

func copyAxes(dst daf.Writer, src daf.Reader, opts CopyOptions) error {
	for _, axis := range src.AxisNames() {
		entries, err := src.AxisEntries(axis)
		if err != nil {
			return err
		}
		if dst.HasAxis(axis) {
			existing, err := dst.AxisEntries(axis)
			if err != nil {
				return err
			}
			if equalEntries(existing, entries) {
				continue // identical axis already present: a no-op, not a conflict
			}
			if !opts.Overwrite {
				return fmt.Errorf("%w: axis %s", daferr.ErrPropertyExists, axis)
			}
			continue // axis entries are immutable once created; nothing to overwrite onto
		}
		if err := dst.AddAxis(axis, entries); err != nil {
			return err
		}
	}
	return nil
}

func copyVectors(dst daf.Writer, src daf.Reader, opts CopyOptions) error {
	for _, axis := range src.AxisNames() {
		for _, name := range src.VectorNames(axis) {
			if dst.HasVector(axis, name) {
				if !opts.Overwrite {
					return fmt.Errorf("%w: vector %s.%s", daferr.ErrPropertyExists, axis, name)
				}
			}
			if !dst.HasAxis(axis) {
				if opts.Empty == nil {
					continue // no destination axis and no fill value: skip
				}
				length, err := src.AxisLength(axis)
				if err != nil {
					return err
				}
				filled := backend.VectorData{Kind: opts.Empty.Kind(), Length: length, Dense: make([]dafval.Value, length)}
				for i := range filled.Dense {
					filled.Dense[i] = *opts.Empty
				}
				if err := dst.SetVector(axis, name, filled); err != nil {
					return err
				}
				continue
			}
			v, err := src.GetVector(axis, name)
			if err != nil {
				return err
			}
			if err := dst.SetVector(axis, name, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyMatrices(dst daf.Writer, src daf.Reader, opts CopyOptions) error {
	for _, axis := range src.AxisNames() {
		for _, col := range src.AxisNames() {
			for _, name := range src.MatrixNames(axis, col) {
				if dst.HasMatrix(axis, col, name) {
					if !opts.Overwrite {
						return fmt.Errorf("%w: matrix %s,%s.%s", daferr.ErrPropertyExists, axis, col, name)
					}
				}
				if !dst.HasAxis(axis) || !dst.HasAxis(col) {
					continue
				}
				data, err := src.GetMatrix(axis, col, name, layout.Columns)
				if err != nil {
					return err
				}
				if err := dst.SetMatrix(axis, col, name, data.Matrix); err != nil {
					return err
				}
				if opts.Relayout {
					if err := dst.RelayoutMatrix(axis, col, name); err != nil && !errors.Is(err, daferr.ErrLayoutMismatch) {
						return err
					}
				}
			}
		}
	}
	return nil
}
