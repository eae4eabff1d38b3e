package contract

import (
	"github.com/google/uuid"

	"github.com/tanaylab/daf-go/backend"
	"github.com/tanaylab/daf-go/backend/memory"
	"github.com/tanaylab/daf-go/daf"
	"github.com/tanaylab/daf-go/daf/chain"
	"github.com/tanaylab/daf-go/daf/view"
)

// ViewSpec describes the rename/subset projection an adapter applies on
// its way in (to B_in) and on its way out (from the capture store), mirroring view.Option
// without forcing callers to import package view directly.
type ViewSpec struct {
	ScalarRenames map[string]string // external name -> internal name
	VectorRenames map[[2]string]string
	MatrixRenames map[[3]string]string
	PassthroughAxes bool
}

func (spec ViewSpec) options(hash uint64) []view.Option {
	var opts []view.Option
	if spec.PassthroughAxes {
		opts = append(opts, view.WithPassthroughAxes())
	}
	for ext, internal := range spec.ScalarRenames {
		opts = append(opts, view.WithScalarRename(ext, internal, false))
	}
	for k, internal := range spec.VectorRenames {
		opts = append(opts, view.WithVectorRename(k[0], k[1], internal, false))
	}
	for k, internal := range spec.MatrixRenames {
		opts = append(opts, view.WithMatrixRename(k[0], k[1], k[2], internal, false))
	}
	return opts
}

// CaptureBackendFactory builds the empty capture store an adapter writes
// computation output into.
type CaptureBackendFactory func(name string) backend.Backend

// DefaultCaptureBackend is the in-memory capture store the adapter uses
// when the caller does not supply one.
func DefaultCaptureBackend(name string) backend.Backend { return memory.New(name) }

// AdapterOptions configures Adapt beyond the two view specs and the
// contracts.
type AdapterOptions struct {
	Capture CaptureBackendFactory
	Copy    CopyOptions
	// ViewHash seeds the input/output view's definitionHash (view.New);
	// distinct adapters sharing a base store should pass distinct hashes.
	ViewHash uint64
}

// Adapt implements the adapter protocol end to end: build an input view
// of base, run the computation against a chain of that view over a fresh
// capture store, then copy the computation's output view back into base.
func Adapt(base daf.Writer, in Contract, out Contract, inSpec, outSpec ViewSpec, opts AdapterOptions, payload any, fn Func) (any, error) {
	captureFactory := opts.Capture
	if captureFactory == nil {
		captureFactory = DefaultCaptureBackend
	}

	bIn := view.New(base, opts.ViewHash, inSpec.options(opts.ViewHash)...)

	capture := daf.NewStoreDefault(captureFactory("adapter-capture-" + uuid.NewString()))
	w, err := chain.NewWriter(bIn, capture)
	if err != nil {
		return nil, err
	}

	result, err := Run(in, out, w, payload, fn)
	if err != nil {
		return nil, err
	}

	// The output view is built over the capture store alone, not the full
	// chain W: W's reads fall through to B_in, so a view of W would expose
	// every pass-through property of B_in too and copy_all! would re-write
	// them back into base as spurious new properties. Only what the
	// computation actually produced in C is meant to flow back.
	wOut := view.New(capture, opts.ViewHash+1, outSpec.options(opts.ViewHash+1)...)
	if err := CopyAll(base, wOut, opts.Copy); err != nil {
		return nil, err
	}
	return result, nil
}
