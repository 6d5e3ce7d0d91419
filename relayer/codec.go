// Package relayer encodes nested pool plans for the batch relayer and
// simulates them over JSON-RPC.
package relayer

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/branched-services/go-nestedpool"
)

// relayerPoolKind is the pool kind enum of the relayer's joinPool and exitPool.
type relayerPoolKind uint8

const (
	relayerWeighted relayerPoolKind = iota
	relayerLegacyStable
	relayerComposableStable
	relayerComposableStableV2
)

// userData kinds.
var (
	joinExactTokensInForBPTOut = big.NewInt(1)

	exitExactBPTInForOneTokenOut = big.NewInt(0)
	exitExactBPTInForTokensOut   = big.NewInt(1)

	// Composable stable pools renumbered the proportional exit.
	exitExactBPTInForAllTokensOut = big.NewInt(2)
)

// PoolEncoder encodes joins and exits of one pool family.
type PoolEncoder struct {
	kind           relayerPoolKind
	exitAllTokens  *big.Int
	skipOwnReceipt bool
}

var (
	// WeightedEncoder encodes weighted pool operations.
	WeightedEncoder = &PoolEncoder{kind: relayerWeighted, exitAllTokens: exitExactBPTInForTokensOut}

	// LegacyStableEncoder encodes stable and meta stable pool operations.
	LegacyStableEncoder = &PoolEncoder{kind: relayerLegacyStable, exitAllTokens: exitExactBPTInForTokensOut}

	// ComposableStableEncoder encodes composable stable pool operations.
	ComposableStableEncoder = &PoolEncoder{kind: relayerComposableStable, exitAllTokens: exitExactBPTInForAllTokensOut, skipOwnReceipt: true}

	// ComposableStableV2Encoder encodes composable stable V2 pool operations.
	ComposableStableV2Encoder = &PoolEncoder{kind: relayerComposableStableV2, exitAllTokens: exitExactBPTInForAllTokensOut, skipOwnReceipt: true}
)

// DefaultEncoders returns the encoder of every supported pool kind.
func DefaultEncoders() nestedpool.OperationEncoders {
	return nestedpool.OperationEncoders{
		nestedpool.Weighted:           WeightedEncoder,
		nestedpool.Stable:             LegacyStableEncoder,
		nestedpool.MetaStable:         LegacyStableEncoder,
		nestedpool.ComposableStable:   ComposableStableEncoder,
		nestedpool.ComposableStableV2: ComposableStableV2Encoder,
	}
}

// EncodeOperation encodes call as a joinPool or exitPool relayer call.
func (e *PoolEncoder) EncodeOperation(call *nestedpool.CallAttributes) (nestedpool.EncodedCall, error) {
	switch call.Operation() {
	case nestedpool.Join:
		return e.encodeJoin(call)
	case nestedpool.Exit:
		return e.encodeExit(call)
	default:
		return nestedpool.EncodedCall{}, fmt.Errorf("unsupported operation %s", call.Operation())
	}
}

func (e *PoolEncoder) encodeJoin(call *nestedpool.CallAttributes) (nestedpool.EncodedCall, error) {
	tokens := call.PoolTokens()
	inputs := make(map[common.Address]nestedpool.Input, len(tokens))
	for _, in := range call.Inputs() {
		inputs[in.Token] = in
	}

	assets := make([]common.Address, len(tokens))
	maxAmountsIn := make([]*big.Int, len(tokens))
	amountsIn := make([]*big.Int, 0, len(tokens))
	value := new(big.Int)
	for i, t := range tokens {
		assets[i] = e.asset(call, t.Address)
		maxAmountsIn[i] = new(big.Int)
		if t.Address == call.PoolAddress() {
			if !e.skipOwnReceipt {
				amountsIn = append(amountsIn, new(big.Int))
			}
			continue
		}

		amount := new(big.Int)
		if in, ok := inputs[t.Address]; ok {
			amount = in.Value.Raw()
			if in.IsReference() {
				maxAmountsIn[i] = new(big.Int).Set(math.MaxBig256)
			} else {
				maxAmountsIn[i] = new(big.Int).Set(amount)
				if call.IsNative(t.Address) {
					value.Set(amount)
				}
			}
			delete(inputs, t.Address)
		}
		amountsIn = append(amountsIn, amount)
	}
	if len(inputs) > 0 {
		return nestedpool.EncodedCall{}, fmt.Errorf("pool %s does not hold %d input token(s)", call.PoolID().Hex(), len(inputs))
	}

	if len(call.Outputs()) != 1 {
		return nestedpool.EncodedCall{}, fmt.Errorf("join must publish exactly one output, got %d", len(call.Outputs()))
	}
	out := call.Outputs()[0]
	minBPTOut := new(big.Int)
	if out.Bound != nil {
		minBPTOut = out.Bound
	}

	userData, err := joinExactTokensInArgs.Pack(joinExactTokensInForBPTOut, amountsIn, minBPTOut)
	if err != nil {
		return nestedpool.EncodedCall{}, fmt.Errorf("join userData: %w", err)
	}

	data, err := ABI.Pack("joinPool",
		call.PoolID(),
		uint8(e.kind),
		call.Sender(),
		call.Recipient(),
		joinPoolRequest{
			Assets:       assets,
			MaxAmountsIn: maxAmountsIn,
			UserData:     userData,
		},
		value,
		out.Reference.Big(),
	)
	if err != nil {
		return nestedpool.EncodedCall{}, fmt.Errorf("pack joinPool: %w", err)
	}
	return nestedpool.EncodedCall{Data: data, Value: value}, nil
}

func (e *PoolEncoder) encodeExit(call *nestedpool.CallAttributes) (nestedpool.EncodedCall, error) {
	ins := call.Inputs()
	if len(ins) != 1 || ins[0].Token != call.PoolAddress() {
		return nestedpool.EncodedCall{}, errors.New("exit must burn the pool's own receipt token")
	}
	bptIn := ins[0].Value.Raw()

	tokens := call.PoolTokens()
	outputs := make(map[common.Address]nestedpool.Output, len(tokens))
	for _, o := range call.Outputs() {
		outputs[o.Token.Address] = o
	}

	assets := make([]common.Address, len(tokens))
	minAmountsOut := make([]*big.Int, len(tokens))
	refs := make([]outputReference, 0, len(outputs))
	exitTokenIndex := -1
	userIndex := 0
	for i, t := range tokens {
		assets[i] = e.asset(call, t.Address)
		minAmountsOut[i] = new(big.Int)
		own := t.Address == call.PoolAddress()

		if o, ok := outputs[t.Address]; ok && !own {
			if o.Bound != nil {
				minAmountsOut[i] = o.Bound
			}
			refs = append(refs, outputReference{Index: big.NewInt(int64(i)), Key: o.Reference.Big()})
			if exitTokenIndex < 0 {
				exitTokenIndex = userIndex
			}
			delete(outputs, t.Address)
		}
		if !own || !e.skipOwnReceipt {
			userIndex++
		}
	}
	if len(outputs) > 0 {
		return nestedpool.EncodedCall{}, fmt.Errorf("pool %s does not hold %d output token(s)", call.PoolID().Hex(), len(outputs))
	}

	var (
		userData []byte
		err      error
	)
	switch call.ExitKind() {
	case nestedpool.ExitSingleToken:
		if len(refs) != 1 {
			return nestedpool.EncodedCall{}, fmt.Errorf("single token exit must publish exactly one output, got %d", len(refs))
		}
		userData, err = exitSingleTokenArgs.Pack(exitExactBPTInForOneTokenOut, bptIn, big.NewInt(int64(exitTokenIndex)))
	default:
		userData, err = exitProportionalArgs.Pack(e.exitAllTokens, bptIn)
	}
	if err != nil {
		return nestedpool.EncodedCall{}, fmt.Errorf("exit userData: %w", err)
	}

	data, err := ABI.Pack("exitPool",
		call.PoolID(),
		uint8(e.kind),
		call.Sender(),
		call.Recipient(),
		exitPoolRequest{
			Assets:        assets,
			MinAmountsOut: minAmountsOut,
			UserData:      userData,
		},
		refs,
	)
	if err != nil {
		return nestedpool.EncodedCall{}, fmt.Errorf("pack exitPool: %w", err)
	}
	return nestedpool.EncodedCall{Data: data, Value: new(big.Int)}, nil
}

// asset returns the vault asset for token: the zero address when the wrapped
// native token is exchanged as the native asset.
func (e *PoolEncoder) asset(call *nestedpool.CallAttributes, token common.Address) common.Address {
	if call.IsNative(token) {
		return common.Address{}
	}
	return token
}

// Codec encodes nested pool plans for one relayer deployment.
type Codec struct {
	chain      Chain
	operations nestedpool.OperationEncoders
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithPoolEncoder registers enc for kind, replacing the default encoder.
func WithPoolEncoder(kind nestedpool.PoolKind, enc nestedpool.OperationEncoder) CodecOption {
	return func(c *Codec) {
		c.operations[kind] = enc
	}
}

// NewCodec creates a Codec for chain.
func NewCodec(chain Chain, opts ...CodecOption) *Codec {
	c := &Codec{chain: chain, operations: DefaultEncoders()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChainID returns the deployment's chain id.
func (c *Codec) ChainID() uint64 {
	return c.chain.ID
}

// Address returns the relayer address.
func (c *Codec) Address() common.Address {
	return c.chain.Relayer
}

// WrappedNativeAsset returns the chain's wrapped native token.
func (c *Codec) WrappedNativeAsset() common.Address {
	return c.chain.WrappedNative
}

// EncodeOperation encodes call with the encoder of its pool kind.
func (c *Codec) EncodeOperation(call *nestedpool.CallAttributes) (nestedpool.EncodedCall, error) {
	return c.operations.EncodeOperation(call)
}

// EncodePeek encodes peekChainedReferenceValue(ref).
func (c *Codec) EncodePeek(peek nestedpool.PeekInstruction) ([]byte, error) {
	return ABI.Pack("peekChainedReferenceValue", peek.Reference.Big())
}

// DecodePeek decodes the uint256 returned by peekChainedReferenceValue.
func (c *Codec) DecodePeek(result []byte) (*big.Int, error) {
	out, err := ABI.Unpack("peekChainedReferenceValue", result)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("expected 1 return value, got %d", len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected return type %T", out[0])
	}
	return v, nil
}

// EncodeApproval encodes setRelayerApproval(relayer, true, signature).
func (c *Codec) EncodeApproval(signature []byte) ([]byte, error) {
	return ABI.Pack("setRelayerApproval", c.chain.Relayer, true, signature)
}

// EncodeMulticall encodes multicall(calls).
func (c *Codec) EncodeMulticall(calls [][]byte) ([]byte, error) {
	return ABI.Pack("multicall", calls)
}

var _ nestedpool.Codec = (*Codec)(nil)
