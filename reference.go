package nestedpool

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Chained reference prefixes, stored in the top 16 bits of the reference word.
const (
	TemporaryReferencePrefix  = 0xba10
	PersistentReferencePrefix = 0xba11

	referencePrefixShift = 240
)

// ReferenceKey names the output slot a call publishes its runtime amount under.
type ReferenceKey string

// FinalReferenceKey is the output key of the terminal call of a join.
const FinalReferenceKey ReferenceKey = "final"

// JoinOutputKey returns the output key of an intermediate join on pool id.
func JoinOutputKey(id common.Hash) ReferenceKey {
	return ReferenceKey("join:" + strings.ToLower(id.Hex()))
}

// ExitOutputKey returns the output key of token leaving pool id during an exit.
func ExitOutputKey(id common.Hash, token common.Address) ReferenceKey {
	return ReferenceKey("exit:" + strings.ToLower(id.Hex()) + ":" + strings.ToLower(token.Hex()))
}

// ChainedReference is an opaque handle to a relayer storage slot holding the
// runtime output of an earlier call. It travels in place of an amount.
type ChainedReference struct {
	word uint256.Int
}

// IsTemporary reports whether the reference is cleared when read.
func (r ChainedReference) IsTemporary() bool {
	return r.prefix() == TemporaryReferencePrefix
}

// IsZero reports whether r is the zero handle.
func (r ChainedReference) IsZero() bool {
	return r.word.IsZero()
}

// Big returns the reference word as a *big.Int.
func (r ChainedReference) Big() *big.Int {
	return r.word.ToBig()
}

// String returns the reference word in hex.
func (r ChainedReference) String() string {
	return r.word.Hex()
}

func (r ChainedReference) prefix() uint64 {
	var p uint256.Int
	p.Rsh(&r.word, referencePrefixShift)
	return p.Uint64()
}

// IsChainedReference reports whether amount carries a chained reference prefix.
func IsChainedReference(amount *big.Int) bool {
	if amount == nil || amount.Sign() < 0 || amount.BitLen() > 256 {
		return false
	}
	p := new(big.Int).Rsh(amount, referencePrefixShift).Uint64()
	return p == TemporaryReferencePrefix || p == PersistentReferencePrefix
}

// PeekInstruction is the read of a reference's runtime value that terminates
// a query plan.
type PeekInstruction struct {
	Reference ChainedReference
}

// Allocator mints chained references for output keys.
// Implementations must be pure: the same key and flavour always yield the
// same reference.
type Allocator interface {
	Allocate(key ReferenceKey, temporary bool) ChainedReference
	Peek(ref ChainedReference) PeekInstruction
}

// KeccakAllocator derives references from keccak256 of the key. It holds no
// state, so references are stable across processes.
type KeccakAllocator struct{}

// NewAllocator returns the default allocator.
func NewAllocator() KeccakAllocator {
	return KeccakAllocator{}
}

var slotMask = func() *uint256.Int {
	one := uint256.NewInt(1)
	m := new(uint256.Int).Lsh(one, referencePrefixShift)
	return m.Sub(m, one)
}()

// Allocate returns prefix<<240 | low240(keccak256(key)).
func (KeccakAllocator) Allocate(key ReferenceKey, temporary bool) ChainedReference {
	var ref ChainedReference
	ref.word.SetBytes(crypto.Keccak256([]byte(key)))
	ref.word.And(&ref.word, slotMask)

	prefix := uint64(PersistentReferencePrefix)
	if temporary {
		prefix = TemporaryReferencePrefix
	}
	var p uint256.Int
	p.SetUint64(prefix)
	p.Lsh(&p, referencePrefixShift)
	ref.word.Or(&ref.word, &p)
	return ref
}

// Peek returns the read instruction for ref.
func (KeccakAllocator) Peek(ref ChainedReference) PeekInstruction {
	return PeekInstruction{Reference: ref}
}

// ReferenceFromBig converts a reference word back into a handle. It returns
// false when v does not carry a chained reference prefix.
func ReferenceFromBig(v *big.Int) (ChainedReference, bool) {
	if !IsChainedReference(v) {
		return ChainedReference{}, false
	}
	var ref ChainedReference
	ref.word.SetFromBig(v)
	return ref, true
}
