package relayer

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/branched-services/go-nestedpool"
)

var (
	dai  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	usdc = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	usdt = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	weth = Mainnet.WrappedNative

	stablePool   = common.HexToAddress("0x79c58f70905F734641735BC61e45c19dD9Ad60bC")
	stablePoolID = common.HexToHash("0x79c58f70905f734641735bc61e45c19dd9ad60bc0000000000000000000004e7")
	rootPool     = common.HexToAddress("0x08775ccb6674d6bDCeB0797C364C2653ED84F384")
	rootPoolID   = common.HexToHash("0x08775ccb6674d6bdceb0797c364c2653ed84f3840002000000000000000004f0")

	sender = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

// testState is a weighted root pool holding WETH and the receipt token of a
// composable stable pool of DAI, USDC and USDT.
func testState() nestedpool.NestedPoolState {
	return nestedpool.NestedPoolState{
		Pools: []nestedpool.PoolNode{
			{
				ID:      stablePoolID,
				Address: stablePool,
				Kind:    nestedpool.ComposableStable,
				Level:   0,
				Tokens: []nestedpool.PoolToken{
					{Address: stablePool, Decimals: 18, Index: 0},
					{Address: dai, Decimals: 18, Index: 1},
					{Address: usdc, Decimals: 6, Index: 2},
					{Address: usdt, Decimals: 6, Index: 3},
				},
			},
			{
				ID:      rootPoolID,
				Address: rootPool,
				Kind:    nestedpool.Weighted,
				Level:   1,
				Tokens: []nestedpool.PoolToken{
					{Address: stablePool, Decimals: 18, Index: 0},
					{Address: weth, Decimals: 18, Index: 1},
				},
			},
		},
		MainTokens: []nestedpool.Token{
			{Address: dai, Decimals: 18},
			{Address: usdc, Decimals: 6},
			{Address: usdt, Decimals: 6},
			{Address: weth, Decimals: 18},
		},
	}
}

func testGraph(t *testing.T) *nestedpool.Graph {
	t.Helper()
	g, err := nestedpool.NewGraph(testState())
	require.NoError(t, err)
	return g
}

func unpackCall(t *testing.T, method string, data []byte) []interface{} {
	t.Helper()
	m := ABI.Methods[method]
	require.GreaterOrEqual(t, len(data), 4)
	require.Equal(t, m.ID, data[:4], "selector of %s", method)
	args, err := m.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	return args
}

func unpackUint256s(t *testing.T, args abi.Arguments, data []byte) []interface{} {
	t.Helper()
	out, err := args.Unpack(data)
	require.NoError(t, err)
	return out
}

// assertBig compares amounts by value; decoded zeros differ from big.NewInt(0)
// in representation.
func assertBig(t *testing.T, want, got interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, fmt.Sprint(want), fmt.Sprint(got), msgAndArgs...)
}

func TestCodecEncodeJoin(t *testing.T) {
	codec := NewCodec(Mainnet)
	builder := nestedpool.NewBuilder(Mainnet.ID, Mainnet.WrappedNative)

	plan, err := builder.BuildJoin(testGraph(t), nestedpool.JoinRequest{
		ChainID: Mainnet.ID,
		AmountsIn: []nestedpool.AmountIn{
			{Token: dai, Amount: big.NewInt(100)},
			{Token: usdc, Amount: big.NewInt(200)},
			{Token: weth, Amount: big.NewInt(1e18)},
		},
		Sender:         sender,
		Recipient:      sender,
		UseNativeAsset: true,
	})
	require.NoError(t, err)
	require.Equal(t, 2, plan.Len())

	t.Run("leaf pool", func(t *testing.T) {
		call := plan.CallAt(0)
		encoded, err := codec.EncodeOperation(call)
		require.NoError(t, err)
		assert.Zero(t, encoded.Value.Sign())

		args := unpackCall(t, "joinPool", encoded.Data)
		assert.Equal(t, [32]byte(stablePoolID), args[0])
		assert.Equal(t, uint8(relayerComposableStable), args[1])
		assert.Equal(t, sender, args[2])
		assert.Equal(t, sender, args[3])

		req := *abi.ConvertType(args[4], new(joinPoolRequest)).(*joinPoolRequest)
		assert.Equal(t, []common.Address{stablePool, dai, usdc, usdt}, req.Assets)
		assertBig(t, []*big.Int{big.NewInt(0), big.NewInt(100), big.NewInt(200), big.NewInt(0)}, req.MaxAmountsIn)
		assert.False(t, req.FromInternalBalance)

		userData := unpackUint256s(t, joinExactTokensInArgs, req.UserData)
		assertBig(t, big.NewInt(1), userData[0])
		assertBig(t, []*big.Int{big.NewInt(100), big.NewInt(200), big.NewInt(0)}, userData[1], "own receipt token is dropped")
		assertBig(t, big.NewInt(0), userData[2])

		assertBig(t, big.NewInt(0), args[5])
		assertBig(t, call.Outputs()[0].Reference.Big(), args[6])
	})

	t.Run("root pool", func(t *testing.T) {
		call := plan.CallAt(1)
		encoded, err := codec.EncodeOperation(call)
		require.NoError(t, err)
		assertBig(t, big.NewInt(1e18), encoded.Value)

		args := unpackCall(t, "joinPool", encoded.Data)
		assert.Equal(t, uint8(relayerWeighted), args[1])

		req := *abi.ConvertType(args[4], new(joinPoolRequest)).(*joinPoolRequest)
		assert.Equal(t, []common.Address{stablePool, {}}, req.Assets, "native asset replaces WETH")
		assertBig(t, math.MaxBig256, req.MaxAmountsIn[0], "referenced input is not capped")
		assertBig(t, big.NewInt(1e18), req.MaxAmountsIn[1])

		childRef := plan.CallAt(0).Outputs()[0].Reference.Big()
		userData := unpackUint256s(t, joinExactTokensInArgs, req.UserData)
		assertBig(t, []*big.Int{childRef, big.NewInt(1e18)}, userData[1])

		assertBig(t, big.NewInt(1e18), args[5])
		assertBig(t, call.Outputs()[0].Reference.Big(), args[6])
	})

	t.Run("bound sets minimum receipt tokens", func(t *testing.T) {
		bounded, err := plan.CallAt(1).WithBound(nestedpool.FinalReferenceKey, big.NewInt(990))
		require.NoError(t, err)
		encoded, err := codec.EncodeOperation(bounded)
		require.NoError(t, err)

		args := unpackCall(t, "joinPool", encoded.Data)
		req := *abi.ConvertType(args[4], new(joinPoolRequest)).(*joinPoolRequest)
		userData := unpackUint256s(t, joinExactTokensInArgs, req.UserData)
		assertBig(t, big.NewInt(990), userData[2])
	})
}

func TestCodecEncodeExit(t *testing.T) {
	codec := NewCodec(Mainnet)
	builder := nestedpool.NewBuilder(Mainnet.ID, Mainnet.WrappedNative)
	amountIn := big.NewInt(5e18)

	t.Run("single token", func(t *testing.T) {
		plan, err := builder.BuildExit(testGraph(t), nestedpool.ExitRequest{
			ChainID:   Mainnet.ID,
			AmountIn:  amountIn,
			TokenOut:  &usdc,
			Sender:    sender,
			Recipient: sender,
		})
		require.NoError(t, err)
		require.Equal(t, 2, plan.Len())

		root, err := codec.EncodeOperation(plan.CallAt(0))
		require.NoError(t, err)
		args := unpackCall(t, "exitPool", root.Data)
		assert.Equal(t, [32]byte(rootPoolID), args[0])
		assert.Equal(t, uint8(relayerWeighted), args[1])

		req := *abi.ConvertType(args[4], new(exitPoolRequest)).(*exitPoolRequest)
		assert.Equal(t, []common.Address{stablePool, weth}, req.Assets)
		userData := unpackUint256s(t, exitSingleTokenArgs, req.UserData)
		assertBig(t, []interface{}{big.NewInt(0), amountIn, big.NewInt(0)}, userData)

		refs := *abi.ConvertType(args[5], new([]outputReference)).(*[]outputReference)
		require.Len(t, refs, 1)
		assertBig(t, big.NewInt(0), refs[0].Index)
		intermediate := plan.CallAt(0).Outputs()[0].Reference.Big()
		assertBig(t, intermediate, refs[0].Key)

		leaf, err := codec.EncodeOperation(plan.CallAt(1))
		require.NoError(t, err)
		args = unpackCall(t, "exitPool", leaf.Data)
		assert.Equal(t, uint8(relayerComposableStable), args[1])

		req = *abi.ConvertType(args[4], new(exitPoolRequest)).(*exitPoolRequest)
		userData = unpackUint256s(t, exitSingleTokenArgs, req.UserData)
		assertBig(t, intermediate, userData[1], "burns the chained reference")
		assertBig(t, big.NewInt(1), userData[2], "USDC index without the own receipt token")

		refs = *abi.ConvertType(args[5], new([]outputReference)).(*[]outputReference)
		require.Len(t, refs, 1)
		assertBig(t, big.NewInt(2), refs[0].Index, "asset index keeps the own receipt token")
	})

	t.Run("proportional", func(t *testing.T) {
		plan, err := builder.BuildExit(testGraph(t), nestedpool.ExitRequest{
			ChainID:        Mainnet.ID,
			AmountIn:       amountIn,
			Sender:         sender,
			Recipient:      sender,
			UseNativeAsset: true,
		})
		require.NoError(t, err)
		require.Equal(t, 2, plan.Len())

		root, err := codec.EncodeOperation(plan.CallAt(0))
		require.NoError(t, err)
		args := unpackCall(t, "exitPool", root.Data)
		req := *abi.ConvertType(args[4], new(exitPoolRequest)).(*exitPoolRequest)
		assert.Equal(t, []common.Address{stablePool, {}}, req.Assets)
		userData := unpackUint256s(t, exitProportionalArgs, req.UserData)
		assertBig(t, []interface{}{big.NewInt(1), amountIn}, userData)
		refs := *abi.ConvertType(args[5], new([]outputReference)).(*[]outputReference)
		assert.Len(t, refs, 2)

		leaf, err := codec.EncodeOperation(plan.CallAt(1))
		require.NoError(t, err)
		args = unpackCall(t, "exitPool", leaf.Data)
		req = *abi.ConvertType(args[4], new(exitPoolRequest)).(*exitPoolRequest)
		userData = unpackUint256s(t, exitProportionalArgs, req.UserData)
		assertBig(t, big.NewInt(2), userData[0])
		refs = *abi.ConvertType(args[5], new([]outputReference)).(*[]outputReference)
		require.Len(t, refs, 3)
		for i, ref := range refs {
			assertBig(t, big.NewInt(int64(i+1)), ref.Index)
		}
	})

	t.Run("bounds set minimum amounts out", func(t *testing.T) {
		plan, err := builder.BuildExit(testGraph(t), nestedpool.ExitRequest{
			ChainID:   Mainnet.ID,
			AmountIn:  amountIn,
			TokenOut:  &weth,
			Sender:    sender,
			Recipient: sender,
		})
		require.NoError(t, err)
		require.Equal(t, 1, plan.Len())

		key := plan.TerminalKeys()[0]
		bounded, err := plan.CallAt(0).WithBound(key, big.NewInt(42))
		require.NoError(t, err)
		encoded, err := codec.EncodeOperation(bounded)
		require.NoError(t, err)

		args := unpackCall(t, "exitPool", encoded.Data)
		req := *abi.ConvertType(args[4], new(exitPoolRequest)).(*exitPoolRequest)
		assertBig(t, []*big.Int{big.NewInt(0), big.NewInt(42)}, req.MinAmountsOut)
	})
}

func TestCodecRelayerCalls(t *testing.T) {
	codec := NewCodec(Mainnet)

	t.Run("deployment", func(t *testing.T) {
		assert.Equal(t, uint64(1), codec.ChainID())
		assert.Equal(t, Mainnet.Relayer, codec.Address())
		assert.Equal(t, weth, codec.WrappedNativeAsset())
	})

	t.Run("peek", func(t *testing.T) {
		ref := nestedpool.NewAllocator().Allocate(nestedpool.FinalReferenceKey, true)
		data, err := codec.EncodePeek(nestedpool.PeekInstruction{Reference: ref})
		require.NoError(t, err)
		args := unpackCall(t, "peekChainedReferenceValue", data)
		assertBig(t, ref.Big(), args[0])

		result, err := ABI.Methods["peekChainedReferenceValue"].Outputs.Pack(big.NewInt(12345))
		require.NoError(t, err)
		amount, err := codec.DecodePeek(result)
		require.NoError(t, err)
		assertBig(t, big.NewInt(12345), amount)
	})

	t.Run("peek rejects short results", func(t *testing.T) {
		_, err := codec.DecodePeek([]byte{0x01})
		assert.Error(t, err)
	})

	t.Run("approval", func(t *testing.T) {
		sig := []byte{0xde, 0xad, 0xbe, 0xef}
		data, err := codec.EncodeApproval(sig)
		require.NoError(t, err)
		args := unpackCall(t, "setRelayerApproval", data)
		assert.Equal(t, []interface{}{Mainnet.Relayer, true, sig}, args)
	})

	t.Run("multicall", func(t *testing.T) {
		calls := [][]byte{{0x01}, {0x02, 0x03}}
		data, err := codec.EncodeMulticall(calls)
		require.NoError(t, err)
		args := unpackCall(t, "multicall", data)
		assert.Equal(t, calls, args[0])
	})
}

func TestCodecWithPoolEncoder(t *testing.T) {
	called := false
	codec := NewCodec(Mainnet, WithPoolEncoder(nestedpool.Weighted,
		nestedpool.OperationEncoderFunc(func(*nestedpool.CallAttributes) (nestedpool.EncodedCall, error) {
			called = true
			return nestedpool.EncodedCall{Data: []byte{0xff}}, nil
		})))

	plan, err := nestedpool.NewBuilder(Mainnet.ID, weth).BuildExit(testGraph(t), nestedpool.ExitRequest{
		ChainID:   Mainnet.ID,
		AmountIn:  big.NewInt(1),
		TokenOut:  &weth,
		Sender:    sender,
		Recipient: sender,
	})
	require.NoError(t, err)

	encoded, err := codec.EncodeOperation(plan.CallAt(0))
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, []byte{0xff}, encoded.Data)
}

func TestChainByID(t *testing.T) {
	c, ok := ChainByID(1)
	require.True(t, ok)
	assert.Equal(t, Mainnet, c)

	_, ok = ChainByID(31337)
	assert.False(t, ok)
}
