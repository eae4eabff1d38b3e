// Package contract implements declarative input/output contracts,
// the computation decorator that verifies them around a user function, the
// adapter that wraps a base writer with a rename/subset view and a capture
// store, copy_all!, and concat.
package contract

import (
	"fmt"

	"github.com/tanaylab/daf-go/daf"
	"github.com/tanaylab/daf-go/dafval"
	"github.com/tanaylab/daf-go/internal/daferr"
	"github.com/tanaylab/daf-go/layout"
)

// Expectation classifies how a contract entry's presence is checked.
type Expectation int

const (
	RequiredInput Expectation = iota
	OptionalInput
	RequiredOutput
	OptionalOutput
	GuaranteedOutput
	ContingentOutput
)

// KeyKind distinguishes a contract entry's property shape.
type KeyKind int

const (
	KeyScalar KeyKind = iota
	KeyVector
	KeyMatrix
)

// Key names one property slot a contract constrains.
type Key struct {
	Kind KeyKind

	Scalar string

	Axis   string
	Vector string

	Rows, Cols string
	Matrix     string
}

func (k Key) String() string {
	switch k.Kind {
	case KeyScalar:
		return k.Scalar
	case KeyVector:
		return fmt.Sprintf("%s.%s", k.Axis, k.Vector)
	case KeyMatrix:
		return fmt.Sprintf("%s,%s.%s", k.Rows, k.Cols, k.Matrix)
	default:
		return "?"
	}
}

// Entry is one declared expectation within a Contract.
type Entry struct {
	Key         Key
	Expect      Expectation
	ElementKind dafval.Kind
	Doc         string
}

// Contract is an ordered set of Entry declarations.
type Contract struct {
	Name    string
	Entries []Entry
}

// New builds a Contract from its entries, in the order given.
func New(name string, entries ...Entry) Contract {
	return Contract{Name: name, Entries: entries}
}

func present(r daf.Reader, k Key) (bool, dafval.Kind, error) {
	switch k.Kind {
	case KeyScalar:
		if !r.HasScalar(k.Scalar) {
			return false, 0, nil
		}
		v, err := r.GetScalar(k.Scalar)
		if err != nil {
			return false, 0, err
		}
		return true, v.Kind(), nil
	case KeyVector:
		if !r.HasVector(k.Axis, k.Vector) {
			return false, 0, nil
		}
		v, err := r.GetVector(k.Axis, k.Vector)
		if err != nil {
			return false, 0, err
		}
		return true, v.Kind, nil
	case KeyMatrix:
		if !r.HasMatrix(k.Rows, k.Cols, k.Matrix) {
			return false, 0, nil
		}
		m, err := r.GetMatrix(k.Rows, k.Cols, k.Matrix, layout.Columns)
		if err != nil {
			return false, 0, err
		}
		return true, m.Matrix.Kind(), nil
	default:
		return false, 0, fmt.Errorf("%w: unknown key kind", daferr.ErrContractViolation)
	}
}

// VerifyInput runs before the wrapped computation:
// every RequiredInput must be present with a matching element type; an
// OptionalInput, if present, must still match.
func VerifyInput(c Contract, r daf.Reader) error {
	for _, e := range c.Entries {
		if e.Expect != RequiredInput && e.Expect != OptionalInput {
			continue
		}
		ok, kind, err := present(r, e.Key)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", daferr.ErrContractViolation, e.Key, err)
		}
		if !ok {
			if e.Expect == RequiredInput {
				return fmt.Errorf("%w: missing required input %s", daferr.ErrContractViolation, e.Key)
			}
			continue
		}
		if !elementKindMatches(kind, e.ElementKind) {
			return fmt.Errorf("%w: %s has element type %v, contract requires %v", daferr.ErrContractViolation, e.Key, kind, e.ElementKind)
		}
	}
	return nil
}

// VerifyOutput runs after the wrapped computation:
// Guaranteed outputs must be present; Required outputs must have been
// either an input already or produced by the computation; Contingent and
// Optional outputs are checked for type only when present.
func VerifyOutput(c Contract, inputSnapshot map[string]bool, r daf.Reader) error {
	for _, e := range c.Entries {
		switch e.Expect {
		case GuaranteedOutput, RequiredOutput:
			ok, kind, err := present(r, e.Key)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", daferr.ErrContractViolation, e.Key, err)
			}
			if !ok {
				if e.Expect == RequiredOutput && inputSnapshot[e.Key.String()] {
					continue
				}
				return fmt.Errorf("%w: missing output %s", daferr.ErrContractViolation, e.Key)
			}
			if !elementKindMatches(kind, e.ElementKind) {
				return fmt.Errorf("%w: %s has element type %v, contract requires %v", daferr.ErrContractViolation, e.Key, kind, e.ElementKind)
			}
		case OptionalOutput, ContingentOutput:
			ok, kind, err := present(r, e.Key)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", daferr.ErrContractViolation, e.Key, err)
			}
			if ok && !elementKindMatches(kind, e.ElementKind) {
				return fmt.Errorf("%w: %s has element type %v, contract requires %v", daferr.ErrContractViolation, e.Key, kind, e.ElementKind)
			}
		}
	}
	return nil
}

// snapshotPresence records which contract keys are already present before
// a computation runs, so VerifyOutput can treat a RequiredOutput that was
// satisfied by a pass-through input as satisfied.
func snapshotPresence(c Contract, r daf.Reader) (map[string]bool, error) {
	out := make(map[string]bool, len(c.Entries))
	for _, e := range c.Entries {
		ok, _, err := present(r, e.Key)
		if err != nil {
			return nil, err
		}
		out[e.Key.String()] = ok
	}
	return out, nil
}

// elementKindMatches reports whether an actual dafval.Kind satisfies a
// contract's declared element kind, treating the declared kind as the
// category the actual value must subsume ("vector/matrix element
// types subsume their declared category"): any numeric kind satisfies any
// other numeric kind, and a string matches only a string. VerifyInput and
// VerifyOutput apply this rule to every key, scalars included; scalar kinds
// are not compared exactly.
func elementKindMatches(actual, declared dafval.Kind) bool {
	if actual == declared {
		return true
	}
	return isNumeric(actual) && isNumeric(declared)
}

func isNumeric(k dafval.Kind) bool { return k != dafval.KindString }
