package nestedpool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Operation is the kind of pool operation a call performs.
type Operation uint8

const (
	// Join deposits tokens into a pool for its receipt token.
	Join Operation = iota + 1

	// Exit burns a pool's receipt token for its underlying tokens.
	Exit
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case Join:
		return "join"
	case Exit:
		return "exit"
	default:
		return fmt.Sprintf("Operation(%d)", uint8(o))
	}
}

// ExitKind selects how an exit call distributes the burned receipt token.
type ExitKind uint8

const (
	// ExitProportional receives every pool token proportionally.
	ExitProportional ExitKind = iota

	// ExitSingleToken receives a single pool token.
	ExitSingleToken
)

// String returns the exit kind name.
func (k ExitKind) String() string {
	if k == ExitSingleToken {
		return "single-token"
	}
	return "proportional"
}

// CallAttributes describes one pool operation of a plan.
// CallAttributes is immutable - modifier methods return new instances.
type CallAttributes struct {
	chainID        uint64
	operation      Operation
	exitKind       ExitKind
	pool           *PoolNode
	sender         common.Address
	recipient      common.Address
	inputs         []Input
	outputs        []Output
	useNativeAsset bool
	wrappedNative  common.Address
}

// ChainID returns the chain the call targets.
func (c *CallAttributes) ChainID() uint64 {
	return c.chainID
}

// Operation returns the pool operation.
func (c *CallAttributes) Operation() Operation {
	return c.operation
}

// ExitKind returns the exit kind. Only meaningful for exits.
func (c *CallAttributes) ExitKind() ExitKind {
	return c.exitKind
}

// PoolID returns the pool id.
func (c *CallAttributes) PoolID() common.Hash {
	return c.pool.ID
}

// PoolAddress returns the pool address, which is also its receipt token.
func (c *CallAttributes) PoolAddress() common.Address {
	return c.pool.Address
}

// PoolKind returns the pool kind.
func (c *CallAttributes) PoolKind() PoolKind {
	return c.pool.Kind
}

// Level returns the pool level.
func (c *CallAttributes) Level() int {
	return c.pool.Level
}

// PoolTokens returns the pool's tokens in index order.
func (c *CallAttributes) PoolTokens() []PoolToken {
	out := make([]PoolToken, len(c.pool.Tokens))
	copy(out, c.pool.Tokens)
	return out
}

// Sender returns the address funds are pulled from.
func (c *CallAttributes) Sender() common.Address {
	return c.sender
}

// Recipient returns the address outputs are sent to.
func (c *CallAttributes) Recipient() common.Address {
	return c.recipient
}

// Inputs returns the call's inputs.
func (c *CallAttributes) Inputs() []Input {
	out := make([]Input, len(c.inputs))
	copy(out, c.inputs)
	return out
}

// Outputs returns the call's outputs.
func (c *CallAttributes) Outputs() []Output {
	out := make([]Output, len(c.outputs))
	for i, o := range c.outputs {
		out[i] = o
		if o.Bound != nil {
			out[i].Bound = new(big.Int).Set(o.Bound)
		}
	}
	return out
}

// Output returns the output published under key.
func (c *CallAttributes) Output(key ReferenceKey) (Output, bool) {
	for _, o := range c.outputs {
		if o.Key == key {
			if o.Bound != nil {
				o.Bound = new(big.Int).Set(o.Bound)
			}
			return o, true
		}
	}
	return Output{}, false
}

// OutputReferenceKey returns the key of the call's first output. Joins
// publish exactly one output.
func (c *CallAttributes) OutputReferenceKey() ReferenceKey {
	if len(c.outputs) == 0 {
		return ""
	}
	return c.outputs[0].Key
}

// UseNativeAsset reports whether the wrapped native token is exchanged as the
// native asset.
func (c *CallAttributes) UseNativeAsset() bool {
	return c.useNativeAsset
}

// WrappedNativeAsset returns the wrapped native token address.
func (c *CallAttributes) WrappedNativeAsset() common.Address {
	return c.wrappedNative
}

// IsNative reports whether token is exchanged as the native asset in this call.
func (c *CallAttributes) IsNative(token common.Address) bool {
	return c.useNativeAsset && token == c.wrappedNative
}

// IsTerminal reports whether any output of the call is delivered to the recipient.
func (c *CallAttributes) IsTerminal() bool {
	for _, o := range c.outputs {
		if o.Terminal {
			return true
		}
	}
	return false
}

// WithBound sets the minimum amount of the output published under key.
//
// Returns a new CallAttributes with the bound set.
func (c *CallAttributes) WithBound(key ReferenceKey, bound *big.Int) (*CallAttributes, error) {
	if bound == nil || bound.Sign() < 0 {
		return nil, fmt.Errorf("nestedpool: bound for output %q must be a non-negative amount", key)
	}
	clone := c.clone()
	for i := range clone.outputs {
		if clone.outputs[i].Key == key {
			clone.outputs[i].Bound = new(big.Int).Set(bound)
			return clone, nil
		}
	}
	return nil, fmt.Errorf("nestedpool: call on pool %s has no output %q", c.pool.ID.Hex(), key)
}

// Unbounded clears every output bound.
//
// Returns a new CallAttributes without bounds.
func (c *CallAttributes) Unbounded() *CallAttributes {
	clone := c.clone()
	for i := range clone.outputs {
		clone.outputs[i].Bound = nil
	}
	return clone
}

// clone creates a copy of the CallAttributes with its own input and output slices.
func (c *CallAttributes) clone() *CallAttributes {
	clone := *c
	clone.inputs = make([]Input, len(c.inputs))
	copy(clone.inputs, c.inputs)
	clone.outputs = c.Outputs()
	return &clone
}

// equalIgnoringBounds reports whether a and b describe the same operation,
// ignoring output bounds.
func equalIgnoringBounds(a, b *CallAttributes) bool {
	if a.chainID != b.chainID || a.operation != b.operation || a.exitKind != b.exitKind ||
		a.pool.ID != b.pool.ID || a.pool.Address != b.pool.Address || a.sender != b.sender || a.recipient != b.recipient ||
		a.useNativeAsset != b.useNativeAsset || a.wrappedNative != b.wrappedNative ||
		len(a.inputs) != len(b.inputs) || len(a.outputs) != len(b.outputs) {
		return false
	}
	for i := range a.inputs {
		if a.inputs[i].Token != b.inputs[i].Token || a.inputs[i].Value.Raw().Cmp(b.inputs[i].Value.Raw()) != 0 {
			return false
		}
	}
	for i := range a.outputs {
		x, y := a.outputs[i], b.outputs[i]
		if x.Token != y.Token || x.Key != y.Key || x.Reference != y.Reference || x.Terminal != y.Terminal {
			return false
		}
	}
	return true
}

// SameOperation reports whether a and b are identical apart from output bounds.
func SameOperation(a, b *CallAttributes) bool {
	if a == nil || b == nil {
		return a == b
	}
	return equalIgnoringBounds(a, b)
}
