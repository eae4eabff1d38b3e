package contract

import "github.com/tanaylab/daf-go/daf"

// Func is a user computation body, taking the writable store it is allowed
// to touch plus a caller-supplied payload, and returning an arbitrary
// result.
type Func func(w daf.Writer, payload any) (any, error)

// Run wraps fn so that VerifyInput runs immediately before and
// VerifyOutput immediately after the user body.
func Run(in Contract, out Contract, w daf.Writer, payload any, fn Func) (any, error) {
	if err := VerifyInput(in, w); err != nil {
		return nil, err
	}
	snapshot, err := snapshotPresence(out, w)
	if err != nil {
		return nil, err
	}
	result, err := fn(w, payload)
	if err != nil {
		return nil, err
	}
	if err := VerifyOutput(out, snapshot, w); err != nil {
		return nil, err
	}
	return result, nil
}

// TwoStoreFunc is the two-store variant of Func.
type TwoStoreFunc func(a, b daf.Writer, payload any) (any, error)

// RunTwoStore verifies contractA against a and contractB against b before
// calling fn, then verifies each contract's outputs against its own store
// afterwards.
func RunTwoStore(contractA, contractB Contract, a, b daf.Writer, payload any, fn TwoStoreFunc) (any, error) {
	if err := VerifyInput(contractA, a); err != nil {
		return nil, err
	}
	if err := VerifyInput(contractB, b); err != nil {
		return nil, err
	}
	snapA, err := snapshotPresence(contractA, a)
	if err != nil {
		return nil, err
	}
	snapB, err := snapshotPresence(contractB, b)
	if err != nil {
		return nil, err
	}
	result, err := fn(a, b, payload)
	if err != nil {
		return nil, err
	}
	if err := VerifyOutput(contractA, snapA, a); err != nil {
		return nil, err
	}
	if err := VerifyOutput(contractB, snapB, b); err != nil {
		return nil, err
	}
	return result, nil
}
