package nestedpool

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// QueryResult is a simulated plan and the amounts it is predicted to deliver.
type QueryResult struct {
	Plan *CallPlan

	// Amounts holds one amount per terminal output of Plan, in call order.
	// Joins have a single amount: the root receipt token.
	Amounts []TokenAmount
}

// FinalizeInput is the input of Finalizer.Finalize.
type FinalizeInput struct {
	Query    *QueryResult
	Slippage Slippage

	// AuthorizationSignature, when set, prepends the relayer approval call.
	AuthorizationSignature []byte
}

// Payload is a finalized, executable plan.
type Payload struct {
	To       common.Address
	CallData []byte
	Value    *big.Int

	// Bounds holds the minimum amount enforced on each terminal output.
	Bounds []TokenAmount

	// Calls holds the executed pool operations: the queried calls with the
	// bounds patched in.
	Calls []*CallAttributes
}

// Finalizer turns a queried plan into an executable payload.
type Finalizer struct {
	codec   Codec
	encoder *Encoder
}

// NewFinalizer creates a Finalizer.
func NewFinalizer(codec Codec) *Finalizer {
	return &Finalizer{codec: codec, encoder: NewEncoder(codec)}
}

// Finalize bounds every terminal output of the queried plan by its observed
// amount minus slippage, prepends the authorization call when a signature is
// given, and encodes the result. The plan's calls are never rebuilt; only
// copies carrying the bounds are encoded.
func (f *Finalizer) Finalize(in FinalizeInput) (*Payload, error) {
	if in.Query == nil || in.Query.Plan == nil {
		return nil, &InputError{Field: "query", Err: errors.New("missing query result")}
	}
	if err := in.Slippage.Validate(); err != nil {
		return nil, &InputError{Field: "slippage", Err: err}
	}

	plan := in.Query.Plan
	if len(in.Query.Amounts) != len(plan.terminals) {
		return nil, inputErrorf("amounts", "expected %d amounts, got %d", len(plan.terminals), len(in.Query.Amounts))
	}

	calls := plan.Calls()
	bounds := make([]TokenAmount, len(plan.terminals))
	for i, t := range plan.terminals {
		observed := in.Query.Amounts[i]
		if observed.Amount == nil || observed.Amount.Sign() < 0 {
			return nil, inputErrorf("amounts", "amount %d must be non-negative", i)
		}
		if observed.Token.Address != t.Output.Token.Address {
			return nil, inputErrorf("amounts", "amount %d is for %s, expected %s",
				i, observed.Token.Address.Hex(), t.Output.Token.Address.Hex())
		}

		bound := in.Slippage.RemoveFrom(observed.Amount)
		patched, err := calls[t.CallIndex].WithBound(t.Output.Key, bound)
		if err != nil {
			return nil, &PlanError{CallIndex: t.CallIndex, PoolID: calls[t.CallIndex].PoolID(), Err: err}
		}
		calls[t.CallIndex] = patched
		bounds[i] = TokenAmount{Token: t.Output.Token, Amount: bound}
	}

	seq, err := f.encoder.Encode(calls)
	if err != nil {
		return nil, err
	}

	if len(in.AuthorizationSignature) > 0 {
		data, err := f.codec.EncodeApproval(in.AuthorizationSignature)
		if err != nil {
			return nil, &EncodingError{CallIndex: -1, Err: fmt.Errorf("relayer approval: %w", err)}
		}
		seq.Prepend(EncodedCall{Data: data})
	}

	callData, err := f.codec.EncodeMulticall(seq.Data())
	if err != nil {
		return nil, &EncodingError{CallIndex: -1, Err: fmt.Errorf("multicall: %w", err)}
	}

	return &Payload{
		To:       f.codec.Address(),
		CallData: callData,
		Value:    seq.TotalValue,
		Bounds:   bounds,
		Calls:    calls,
	}, nil
}
