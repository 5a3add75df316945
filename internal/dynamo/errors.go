package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for engine operations.
var (
	// ErrZeroCount indicates an allocation request for zero elements.
	ErrZeroCount = errors.New("dynamo: zero element count")

	// ErrUnknownTeam indicates a team id that does not resolve to a team record.
	ErrUnknownTeam = errors.New("dynamo: unknown team")

	// ErrInvalidChunk indicates a chunk outside its store or already released.
	ErrInvalidChunk = errors.New("dynamo: invalid chunk")

	// ErrEmptyData indicates missing or zero-sized authored data.
	ErrEmptyData = errors.New("dynamo: empty data")

	// ErrVersionMismatch indicates authored data produced by an incompatible format.
	ErrVersionMismatch = errors.New("dynamo: data version mismatch")

	// ErrOldVersion indicates a stale but still usable data format.
	ErrOldVersion = errors.New("dynamo: data format is out of date")

	// ErrHashMismatch indicates authored data no longer matches its consumer.
	ErrHashMismatch = errors.New("dynamo: data hash mismatch")

	// ErrIndexOutOfRange indicates a reference to a vertex or particle that does not exist.
	ErrIndexOutOfRange = errors.New("dynamo: index out of range")

	// ErrInitFailed indicates a component stuck in its init error state.
	ErrInitFailed = errors.New("dynamo: component failed to initialize")

	// ErrRuntime indicates a component disabled by a runtime verify failure.
	ErrRuntime = errors.New("dynamo: runtime error")

	// ErrUnknownCollider indicates a collider id that is not registered.
	ErrUnknownCollider = errors.New("dynamo: unknown collider")

	// ErrDestroyed indicates use of a released resource.
	ErrDestroyed = errors.New("dynamo: resource destroyed")
)

// VerifyError wraps a data-integrity failure with the stage and element that
// triggered it.
type VerifyError struct {
	Stage   string
	Index   int
	Wrapped error
}

func (e *VerifyError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s[%d]: %v", e.Stage, e.Index, e.Wrapped)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Wrapped)
}

func (e *VerifyError) Unwrap() error {
	return e.Wrapped
}

// Verify builds a VerifyError for an element-less stage.
func Verify(stage string, err error) error {
	return &VerifyError{Stage: stage, Index: -1, Wrapped: err}
}

// VerifyAt builds a VerifyError pointing at a specific element.
func VerifyAt(stage string, index int, err error) error {
	return &VerifyError{Stage: stage, Index: index, Wrapped: err}
}

// IsWarning reports whether err only carries warnings.
func IsWarning(err error) bool {
	return err != nil && errors.Is(err, ErrOldVersion)
}
