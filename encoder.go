package nestedpool

import (
	"fmt"
	"math/big"
)

// EncodedCall is the call data of one relayer call and the native asset it
// must be sent with.
type EncodedCall struct {
	Data  []byte
	Value *big.Int
}

// EncodedCallSequence is an ordered list of encoded calls.
type EncodedCallSequence struct {
	Calls      []EncodedCall
	TotalValue *big.Int
}

// Data returns the call data of every call, in order.
func (s *EncodedCallSequence) Data() [][]byte {
	out := make([][]byte, len(s.Calls))
	for i, c := range s.Calls {
		out[i] = c.Data
	}
	return out
}

// Len returns the number of calls.
func (s *EncodedCallSequence) Len() int {
	return len(s.Calls)
}

// Append adds a call at the end of the sequence.
func (s *EncodedCallSequence) Append(c EncodedCall) {
	s.Calls = append(s.Calls, c)
	s.TotalValue = new(big.Int).Add(valueOrZero(s.TotalValue), valueOrZero(c.Value))
}

// Prepend adds a call at the start of the sequence.
func (s *EncodedCallSequence) Prepend(c EncodedCall) {
	s.Calls = append([]EncodedCall{c}, s.Calls...)
	s.TotalValue = new(big.Int).Add(valueOrZero(s.TotalValue), valueOrZero(c.Value))
}

// OperationEncoder turns a single pool operation into relayer call data.
type OperationEncoder interface {
	EncodeOperation(call *CallAttributes) (EncodedCall, error)
}

// OperationEncoderFunc adapts a function to OperationEncoder.
type OperationEncoderFunc func(call *CallAttributes) (EncodedCall, error)

// EncodeOperation calls f(call).
func (f OperationEncoderFunc) EncodeOperation(call *CallAttributes) (EncodedCall, error) {
	return f(call)
}

// OperationEncoders dispatches to one encoder per pool kind.
type OperationEncoders map[PoolKind]OperationEncoder

// EncodeOperation encodes call with the encoder registered for its pool kind.
func (m OperationEncoders) EncodeOperation(call *CallAttributes) (EncodedCall, error) {
	enc, ok := m[call.PoolKind()]
	if !ok {
		return EncodedCall{}, fmt.Errorf("%w: %s", ErrUnsupportedPoolKind, call.PoolKind())
	}
	return enc.EncodeOperation(call)
}

// Encoder encodes call lists, preserving their order.
type Encoder struct {
	operations OperationEncoder
}

// NewEncoder creates an Encoder delegating each call to operations.
func NewEncoder(operations OperationEncoder) *Encoder {
	return &Encoder{operations: operations}
}

// Encode encodes calls in order and sums their native values. The first
// failure aborts the whole sequence.
func (e *Encoder) Encode(calls []*CallAttributes) (*EncodedCallSequence, error) {
	seq := &EncodedCallSequence{
		Calls:      make([]EncodedCall, 0, len(calls)),
		TotalValue: new(big.Int),
	}
	for i, call := range calls {
		encoded, err := e.operations.EncodeOperation(call)
		if err != nil {
			return nil, &EncodingError{CallIndex: i, PoolID: call.PoolID(), Err: err}
		}
		if encoded.Value != nil && encoded.Value.Sign() < 0 {
			return nil, &EncodingError{CallIndex: i, PoolID: call.PoolID(), Err: fmt.Errorf("negative native value %s", encoded.Value)}
		}
		seq.Append(encoded)
	}
	return seq, nil
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
