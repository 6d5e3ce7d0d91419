package nestedpool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Codec encodes calls for the relaying contract that executes plans.
type Codec interface {
	OperationEncoder

	// ChainID returns the chain the relayer is deployed on.
	ChainID() uint64

	// Address returns the relayer address payloads are sent to.
	Address() common.Address

	// WrappedNativeAsset returns the chain's wrapped native token.
	WrappedNativeAsset() common.Address

	// EncodePeek encodes a read of a chained reference.
	EncodePeek(peek PeekInstruction) ([]byte, error)

	// DecodePeek decodes the result of a peek call.
	DecodePeek(result []byte) (*big.Int, error)

	// EncodeApproval encodes the relayer authorization call for signature.
	EncodeApproval(signature []byte) ([]byte, error)

	// EncodeMulticall wraps calls into a single executable payload.
	EncodeMulticall(calls [][]byte) ([]byte, error)
}

// Executor runs an encoded call sequence read-only against live state and
// returns the result of every call.
type Executor interface {
	Simulate(ctx context.Context, caller common.Address, calls [][]byte) ([][]byte, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, caller common.Address, calls [][]byte) ([][]byte, error)

// Simulate calls f(ctx, caller, calls).
func (f ExecutorFunc) Simulate(ctx context.Context, caller common.Address, calls [][]byte) ([][]byte, error) {
	return f(ctx, caller, calls)
}

// Simulator predicts the delivered amounts of a plan.
type Simulator struct {
	codec     Codec
	encoder   *Encoder
	executor  Executor
	allocator Allocator
}

// NewSimulator creates a Simulator.
func NewSimulator(codec Codec, executor Executor, allocator Allocator) *Simulator {
	if allocator == nil {
		allocator = NewAllocator()
	}
	return &Simulator{
		codec:     codec,
		encoder:   NewEncoder(codec),
		executor:  executor,
		allocator: allocator,
	}
}

// Query simulates plan as caller and returns one amount per terminal output,
// in call order. Bounds are stripped so the true amounts are observed. One
// peek per terminal output is appended to the sequence.
func (s *Simulator) Query(ctx context.Context, plan *CallPlan, caller common.Address) ([]*big.Int, error) {
	calls := make([]*CallAttributes, len(plan.calls))
	for i, call := range plan.calls {
		calls[i] = call.Unbounded()
	}

	seq, err := s.encoder.Encode(calls)
	if err != nil {
		return nil, err
	}

	terminals := plan.terminals
	for _, t := range terminals {
		data, err := s.codec.EncodePeek(s.allocator.Peek(t.Output.Reference))
		if err != nil {
			return nil, &EncodingError{CallIndex: -1, Err: fmt.Errorf("peek %s: %w", t.Output.Key, err)}
		}
		seq.Append(EncodedCall{Data: data})
	}

	results, err := s.executor.Simulate(ctx, caller, seq.Data())
	if err != nil {
		return nil, &SimulationError{Err: err}
	}
	if len(results) != seq.Len() {
		return nil, &SimulationError{Err: fmt.Errorf("expected %d results, got %d", seq.Len(), len(results))}
	}

	peeks := results[len(results)-len(terminals):]
	amounts := make([]*big.Int, len(terminals))
	for i, raw := range peeks {
		amount, err := s.codec.DecodePeek(raw)
		if err != nil {
			return nil, &SimulationError{Err: fmt.Errorf("decode peek %s: %w", terminals[i].Output.Key, err)}
		}
		amounts[i] = amount
	}
	return amounts, nil
}
