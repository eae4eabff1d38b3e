// Package daferr collects the sentinel errors raised across daf-go.
//
// Every kind named in the data layer's error taxonomy gets exactly one
// sentinel here so callers can match with errors.Is regardless of which
// package raised it. Context is added by wrapping with fmt.Errorf("%w: ...")
// at the point of failure; the sentinel itself is never wrapped further.
package daferr

import "errors"

var (
	// ErrUnknownScalar is raised when a scalar name is missing in a read path.
	ErrUnknownScalar = errors.New("daf: unknown scalar")
	// ErrUnknownAxis is raised when an axis name is missing in a read path.
	ErrUnknownAxis = errors.New("daf: unknown axis")
	// ErrUnknownVector is raised when a vector name is missing in a read path.
	ErrUnknownVector = errors.New("daf: unknown vector")
	// ErrUnknownMatrix is raised when a matrix name is missing in a read path.
	ErrUnknownMatrix = errors.New("daf: unknown matrix")

	// ErrDuplicateAxis is raised when adding an axis whose name already exists.
	ErrDuplicateAxis = errors.New("daf: duplicate axis")
	// ErrDuplicateEntry is raised when an axis' entry list has repeated strings.
	ErrDuplicateEntry = errors.New("daf: duplicate axis entry")

	// ErrAxisInUse is raised when deleting an axis that still has dependent
	// vectors or matrices.
	ErrAxisInUse = errors.New("daf: axis is in use")

	// ErrShapeMismatch is raised when a matrix is set with the wrong shape.
	ErrShapeMismatch = errors.New("daf: shape mismatch")
	// ErrLengthMismatch is raised when a vector is set with the wrong length.
	ErrLengthMismatch = errors.New("daf: length mismatch")

	// ErrUnsupportedElementType is raised for values outside StorageScalar, or
	// non-numeric matrix element types.
	ErrUnsupportedElementType = errors.New("daf: unsupported element type")

	// ErrNoMajorAxis is raised when a matrix value has no well-defined major axis.
	ErrNoMajorAxis = errors.New("daf: matrix has no major axis")
	// ErrLayoutMismatch is raised by relayout when dst/src shape or kind disagree.
	ErrLayoutMismatch = errors.New("daf: layout mismatch")

	// ErrInefficientAction is raised by the efficiency check when the
	// abnormal-condition handler is set to "error".
	ErrInefficientAction = errors.New("daf: inefficient action against the grain")

	// ErrChainAxisMismatch is raised when layered stores disagree on an axis.
	ErrChainAxisMismatch = errors.New("daf: chain axis mismatch")

	// ErrContractViolation is raised on input/output contract breach.
	ErrContractViolation = errors.New("daf: contract violation")

	// ErrQuerySyntax is raised on query string parse failure.
	ErrQuerySyntax = errors.New("daf: query syntax error")
	// ErrQueryEvaluation is raised on query execution failure.
	ErrQueryEvaluation = errors.New("daf: query evaluation error")

	// ErrUngroupedEntry is raised when a group has no members to reduce and
	// no default was given.
	ErrUngroupedEntry = errors.New("daf: ungrouped entry without default")
	// ErrUnknownGroup is raised when a group vector references an entry
	// missing from the group axis.
	ErrUnknownGroup = errors.New("daf: unknown group")
	// ErrInconsistentReconstruction is raised when properties are not
	// functionally determined by the implicit axis being reconstructed.
	ErrInconsistentReconstruction = errors.New("daf: inconsistent axis reconstruction")

	// ErrLockUpgradeForbidden is raised when a reader tries to upgrade to a writer.
	ErrLockUpgradeForbidden = errors.New("daf: lock upgrade forbidden")
	// ErrPropertyExists is raised by copy_all! when overwrite=false and the
	// destination already has the property.
	ErrPropertyExists = errors.New("daf: property already exists")

	// ErrReadOnly is raised when a mutating call reaches a read-only store.
	ErrReadOnly = errors.New("daf: store is read-only")
)
