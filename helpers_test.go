package nestedpool

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChainID = 1

var (
	dai  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	usdc = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	usdt = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	weth = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	wbtc = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")

	stablePool   = common.HexToAddress("0x79c58f70905F734641735BC61e45c19dD9Ad60bC")
	stablePoolID = common.HexToHash("0x79c58f70905f734641735bc61e45c19dd9ad60bc0000000000000000000004e7")
	rootPool     = common.HexToAddress("0x08775ccb6674d6bDCeB0797C364C2653ED84F384")
	rootPoolID   = common.HexToHash("0x08775ccb6674d6bdceb0797c364c2653ed84f3840002000000000000000004f0")
	topPool      = common.HexToAddress("0x3333333333333333333333333333333333333333")
	topPoolID    = common.HexToHash("0x3333333333333333333333333333333333333333000100000000000000000001")

	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// twoLevelState is a weighted pool of WETH and the receipt token of a
// composable stable pool of DAI, USDC and USDT.
func twoLevelState() NestedPoolState {
	return NestedPoolState{
		Pools: []PoolNode{
			{
				ID:      rootPoolID,
				Address: rootPool,
				Kind:    Weighted,
				Level:   1,
				Tokens: []PoolToken{
					{Address: weth, Decimals: 18, Index: 1},
					{Address: stablePool, Decimals: 18, Index: 0},
				},
			},
			{
				ID:      stablePoolID,
				Address: stablePool,
				Kind:    ComposableStable,
				Level:   0,
				Tokens: []PoolToken{
					{Address: stablePool, Decimals: 18, Index: 0},
					{Address: dai, Decimals: 18, Index: 1},
					{Address: usdc, Decimals: 6, Index: 2},
					{Address: usdt, Decimals: 6, Index: 3},
				},
			},
		},
		MainTokens: []Token{
			{Address: dai, Decimals: 18},
			{Address: usdc, Decimals: 6},
			{Address: usdt, Decimals: 6},
			{Address: weth, Decimals: 18},
		},
	}
}

// threeLevelState puts a weighted WBTC pool on top of twoLevelState.
func threeLevelState() NestedPoolState {
	state := twoLevelState()
	state.Pools = append(state.Pools, PoolNode{
		ID:      topPoolID,
		Address: topPool,
		Kind:    Weighted,
		Level:   2,
		Tokens: []PoolToken{
			{Address: rootPool, Decimals: 18, Index: 0},
			{Address: wbtc, Decimals: 8, Index: 1},
		},
	})
	state.MainTokens = append(state.MainTokens, Token{Address: wbtc, Decimals: 8})
	return state
}

func mustGraph(t *testing.T, state NestedPoolState) *Graph {
	t.Helper()
	g, err := NewGraph(state)
	require.NoError(t, err)
	return g
}

func testBuilder(opts ...Option) *Builder {
	return NewBuilder(testChainID, weth, opts...)
}

// assertBig compares amounts by value.
func assertBig(t *testing.T, want, got *big.Int, msgAndArgs ...interface{}) {
	t.Helper()
	if want == nil || got == nil {
		assert.Equal(t, want, got, msgAndArgs...)
		return
	}
	assert.Equal(t, want.String(), got.String(), msgAndArgs...)
}

// stubCodec encodes calls as readable text so tests can inspect sequences.
type stubCodec struct {
	failKind PoolKind
}

func (c *stubCodec) EncodeOperation(call *CallAttributes) (EncodedCall, error) {
	if call.PoolKind() == c.failKind {
		return EncodedCall{}, fmt.Errorf("stub rejects %s", call.PoolKind())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%s", call.Operation(), call.PoolAddress().Hex())
	for _, o := range call.Outputs() {
		if o.Bound != nil {
			fmt.Fprintf(&b, ":min=%s", o.Bound)
		}
	}
	value := new(big.Int)
	for _, in := range call.Inputs() {
		if lit, ok := in.Value.(*LiteralValue); ok && call.IsNative(in.Token) {
			value.Add(value, lit.Amount())
		}
	}
	return EncodedCall{Data: []byte(b.String()), Value: value}, nil
}

func (c *stubCodec) ChainID() uint64                    { return testChainID }
func (c *stubCodec) Address() common.Address            { return common.HexToAddress("0xba1ba1ba1ba1ba1ba1ba1ba1ba1ba1ba1ba1ba1b") }
func (c *stubCodec) WrappedNativeAsset() common.Address { return weth }

func (c *stubCodec) EncodePeek(peek PeekInstruction) ([]byte, error) {
	return []byte("peek:" + peek.Reference.String()), nil
}

func (c *stubCodec) DecodePeek(result []byte) (*big.Int, error) {
	if len(result) == 0 {
		return nil, fmt.Errorf("empty result")
	}
	return new(big.Int).SetBytes(result), nil
}

func (c *stubCodec) EncodeApproval(signature []byte) ([]byte, error) {
	return append([]byte("approve:"), signature...), nil
}

func (c *stubCodec) EncodeMulticall(calls [][]byte) ([]byte, error) {
	return bytes.Join(calls, []byte("|")), nil
}

// peekExecutor answers every peek of ref with amounts[ref] and records the
// simulated calls.
type peekExecutor struct {
	amounts map[ChainedReference]*big.Int
	calls   [][]byte
	caller  common.Address
}

func (e *peekExecutor) Simulate(_ context.Context, caller common.Address, calls [][]byte) ([][]byte, error) {
	e.caller = caller
	e.calls = calls
	results := make([][]byte, len(calls))
	for i, call := range calls {
		for ref, amount := range e.amounts {
			if string(call) == "peek:"+ref.String() {
				results[i] = amount.Bytes()
				if amount.Sign() == 0 {
					results[i] = []byte{0}
				}
			}
		}
	}
	return results, nil
}
