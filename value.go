package nestedpool

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Value is an amount consumed by a call.
// This is a sealed interface - only types within this package can implement it.
type Value interface {
	// isValue is unexported to seal the interface.
	isValue()

	// Raw returns the word placed in call data: the amount itself for
	// literals, the reference word for chained references.
	Raw() *big.Int
}

// LiteralValue is an amount known at planning time.
type LiteralValue struct {
	amount *big.Int
}

func (v *LiteralValue) isValue() {}

// Raw returns a copy of the amount.
func (v *LiteralValue) Raw() *big.Int {
	return v.Amount()
}

// Amount returns a copy of the amount. The zero LiteralValue is zero.
func (v *LiteralValue) Amount() *big.Int {
	if v.amount == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v.amount)
}

// IsZero reports whether the amount is zero.
func (v *LiteralValue) IsZero() bool {
	return v.amount == nil || v.amount.Sign() == 0
}

// ReferenceValue is the runtime output of an earlier call, read at execution time.
type ReferenceValue struct {
	key ReferenceKey
	ref ChainedReference
}

func (v *ReferenceValue) isValue() {}

// Raw returns the reference word.
func (v *ReferenceValue) Raw() *big.Int {
	return v.ref.Big()
}

// Key returns the output key of the call producing this value.
func (v *ReferenceValue) Key() ReferenceKey {
	return v.key
}

// Reference returns the chained reference.
func (v *ReferenceValue) Reference() ChainedReference {
	return v.ref
}

// Literal creates a literal value. A nil amount is treated as zero.
func Literal(amount *big.Int) *LiteralValue {
	if amount == nil {
		return &LiteralValue{amount: new(big.Int)}
	}
	return &LiteralValue{amount: new(big.Int).Set(amount)}
}

// Reference creates a value reading the output published under key.
func Reference(key ReferenceKey, ref ChainedReference) *ReferenceValue {
	return &ReferenceValue{key: key, ref: ref}
}

// Input is one token amount consumed by a call.
type Input struct {
	Token common.Address
	Value Value
}

// IsReference reports whether the input reads a chained reference.
func (in Input) IsReference() bool {
	_, ok := in.Value.(*ReferenceValue)
	return ok
}

// Output is one token amount published by a call under a reference key.
type Output struct {
	Token     Token
	Key       ReferenceKey
	Reference ChainedReference

	// Terminal outputs are delivered to the recipient; the others feed a
	// later call of the same plan.
	Terminal bool

	// Bound is the minimum acceptable amount. Nil means unbounded.
	Bound *big.Int
}
