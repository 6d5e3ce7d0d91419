package nestedpool

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
)

// Sentinel errors for common failure conditions.
var (
	// ErrEmptyState indicates the pool state contains no pools.
	ErrEmptyState = errors.New("nestedpool: pool state has no pools")

	// ErrUnsupportedPoolKind indicates no operation encoder is registered for a pool kind.
	ErrUnsupportedPoolKind = errors.New("nestedpool: unsupported pool kind")

	// ErrReferenceNotVisible indicates a call reads a reference no earlier call publishes.
	ErrReferenceNotVisible = errors.New("nestedpool: chained reference not visible at this point")

	// ErrTooManyCalls indicates a plan exceeds the configured call limit.
	ErrTooManyCalls = errors.New("nestedpool: too many calls in plan")

	// ErrInvalidSlippage indicates a slippage outside [0, 1).
	ErrInvalidSlippage = errors.New("nestedpool: slippage must be within [0, 1)")

	// ErrChainMismatch indicates a request targets a chain the relayer codec is not configured for.
	ErrChainMismatch = errors.New("nestedpool: chain id does not match relayer chain")

	// ErrReferenceConsumed indicates a temporary reference is read by more than one call.
	ErrReferenceConsumed = errors.New("nestedpool: chained reference consumed twice")

	// ErrDuplicateReferenceKey indicates two outputs of a plan share a key.
	ErrDuplicateReferenceKey = errors.New("nestedpool: duplicate output reference key")
)

// StructuralError indicates a malformed nested pool tree. It carries every
// violation found during validation.
type StructuralError struct {
	Err error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("nestedpool: malformed pool tree: %v", e.Err)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// Violations returns the individual invariant violations.
func (e *StructuralError) Violations() []error {
	var merr *multierror.Error
	if errors.As(e.Err, &merr) {
		return merr.WrappedErrors()
	}
	return []error{e.Err}
}

// InputError indicates a request that cannot be compiled against the tree.
type InputError struct {
	Field string
	Err   error
}

func (e *InputError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("nestedpool: invalid input %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("nestedpool: invalid input: %v", e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// PlanError wraps errors that occur while checking a built plan.
type PlanError struct {
	CallIndex int
	PoolID    common.Hash
	Err       error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("nestedpool: call %d (pool %s): %v", e.CallIndex, e.PoolID.Hex(), e.Err)
}

func (e *PlanError) Unwrap() error {
	return e.Err
}

// SimulationError indicates the read-only execution of a plan failed.
type SimulationError struct {
	Err error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("nestedpool: simulation failed: %v", e.Err)
}

func (e *SimulationError) Unwrap() error {
	return e.Err
}

// EncodingError indicates an operation encoder rejected a call.
type EncodingError struct {
	CallIndex int
	PoolID    common.Hash
	Err       error
}

func (e *EncodingError) Error() string {
	if e.CallIndex < 0 {
		return fmt.Sprintf("nestedpool: encoding error: %v", e.Err)
	}
	return fmt.Sprintf("nestedpool: encoding call %d (pool %s): %v", e.CallIndex, e.PoolID.Hex(), e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// IsStructural reports whether err is or wraps a *StructuralError.
func IsStructural(err error) bool {
	var target *StructuralError
	return errors.As(err, &target)
}

// IsInput reports whether err is or wraps an *InputError.
func IsInput(err error) bool {
	var target *InputError
	return errors.As(err, &target)
}

// IsSimulation reports whether err is or wraps a *SimulationError.
func IsSimulation(err error) bool {
	var target *SimulationError
	return errors.As(err, &target)
}

// IsEncoding reports whether err is or wraps an *EncodingError.
func IsEncoding(err error) bool {
	var target *EncodingError
	return errors.As(err, &target)
}

func inputErrorf(field, format string, args ...any) *InputError {
	return &InputError{Field: field, Err: fmt.Errorf(format, args...)}
}
