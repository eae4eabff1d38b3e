package contract

import (
	"fmt"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/daf"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/internal/daferr"
)

// ConcatOptions configures Concat: which axis the stores
// are stacked along, and the per-property default used to pad a vector
// whose source store lacks it.
type ConcatOptions struct {
	Axis string
	// Defaults maps a vector name on Axis to the value used for sources
	// that don't define it; a vector missing from Defaults and from some
	// source raises ErrUnknownVector.
	Defaults map[string]dafval.Value
}

// Concat stacks sources' Axis entries (in argument order, duplicates
// rejected) into dst, unioning every vector defined on Axis across sources
// and padding missing entries per ConcatOptions.Defaults.
// Scalars and matrices are not concatenated; only the named axis and its
// direct vectors are, matching the worked multi-sample use case (stacking
// per-cell annotations across sample stores sharing the same structure).
func Concat(dst daf.Writer, sources []daf.Reader, opts ConcatOptions) error {
	if len(sources) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var allEntries []string
	spans := make([][2]int, len(sources))
	for i, src := range sources {
		entries, err := src.AxisEntries(opts.Axis)
		if err != nil {
			return err
		}
		start := len(allEntries)
		for _, e := range entries {
			if seen[e] {
				return fmt.Errorf("%w: entry %q repeated across concatenated stores", daferr.ErrDuplicateEntry, e)
			}
			seen[e] = true
			allEntries = append(allEntries, e)
		}
		spans[i] = [2]int{start, len(allEntries)}
	}
	if err := dst.AddAxis(opts.Axis, allEntries); err != nil {
		return err
	}

	vectorNames := make(map[string]dafval.Kind)
	for _, src := range sources {
		for _, name := range src.VectorNames(opts.Axis) {
			if _, ok := vectorNames[name]; ok {
				continue
			}
			v, err := src.GetVector(opts.Axis, name)
			if err != nil {
				return err
			}
			vectorNames[name] = v.Kind
		}
	}

	for name, kind := range vectorNames {
		out := backend.VectorData{Kind: kind, Length: len(allEntries), Dense: make([]dafval.Value, len(allEntries))}
		for i, src := range sources {
			span := spans[i]
			if !src.HasVector(opts.Axis, name) {
				def, ok := opts.Defaults[name]
				if !ok {
					return fmt.Errorf("%w: %s missing from a concatenated store with no default", daferr.ErrUnknownVector, name)
				}
				for j := span[0]; j < span[1]; j++ {
					out.Dense[j] = def
				}
				continue
			}
			v, err := src.GetVector(opts.Axis, name)
			if err != nil {
				return err
			}
			for j := 0; j < v.Length; j++ {
				out.Dense[span[0]+j] = v.Get(j)
			}
		}
		if err := dst.SetVector(opts.Axis, name, out); err != nil {
			return err
		}
	}
	return nil
}
