package nestedpool

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJoinPlan(t *testing.T) *CallPlan {
	t.Helper()
	plan, err := testBuilder().BuildJoin(mustGraph(t, twoLevelState()), joinRequest(
		amountIn(dai, 100), amountIn(weth, 300),
	))
	require.NoError(t, err)
	return plan
}

func TestCallAttributes(t *testing.T) {
	plan := testJoinPlan(t)
	root := plan.CallAt(1)

	t.Run("pool accessors", func(t *testing.T) {
		assert.Equal(t, uint64(testChainID), root.ChainID())
		assert.Equal(t, Join, root.Operation())
		assert.Equal(t, rootPoolID, root.PoolID())
		assert.Equal(t, Weighted, root.PoolKind())
		assert.Equal(t, 1, root.Level())
		assert.Equal(t, weth, root.WrappedNativeAsset())
		assert.Len(t, root.PoolTokens(), 2)
	})

	t.Run("Output", func(t *testing.T) {
		out, ok := root.Output(FinalReferenceKey)
		require.True(t, ok)
		assert.True(t, out.Terminal)
		assert.Nil(t, out.Bound)

		_, ok = root.Output("missing")
		assert.False(t, ok)
	})

	t.Run("accessors return copies", func(t *testing.T) {
		root.Inputs()[0] = Input{}
		root.PoolTokens()[0] = PoolToken{}
		assert.True(t, root.Inputs()[0].IsReference())
		assert.Equal(t, stablePool, root.PoolTokens()[0].Address)
	})

	t.Run("out of range", func(t *testing.T) {
		assert.Nil(t, plan.CallAt(-1))
		assert.Nil(t, plan.CallAt(plan.Len()))
	})
}

func TestCallAttributesWithBound(t *testing.T) {
	root := testJoinPlan(t).CallAt(1)

	bound := big.NewInt(990)
	bounded, err := root.WithBound(FinalReferenceKey, bound)
	require.NoError(t, err)
	bound.SetInt64(1)

	t.Run("original is unchanged", func(t *testing.T) {
		out, _ := root.Output(FinalReferenceKey)
		assert.Nil(t, out.Bound)
	})

	t.Run("bound is copied", func(t *testing.T) {
		out, _ := bounded.Output(FinalReferenceKey)
		assertBig(t, big.NewInt(990), out.Bound)

		out.Bound.SetInt64(5)
		again, _ := bounded.Output(FinalReferenceKey)
		assertBig(t, big.NewInt(990), again.Bound)
	})

	t.Run("same operation", func(t *testing.T) {
		assert.True(t, SameOperation(root, bounded))
		assert.True(t, SameOperation(bounded, bounded.Unbounded()))
	})

	t.Run("Unbounded clears bounds", func(t *testing.T) {
		out, _ := bounded.Unbounded().Output(FinalReferenceKey)
		assert.Nil(t, out.Bound)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := root.WithBound("missing", big.NewInt(1))
		assert.Error(t, err)
	})

	t.Run("nil or negative bound", func(t *testing.T) {
		_, err := root.WithBound(FinalReferenceKey, nil)
		assert.Error(t, err)
		_, err = root.WithBound(FinalReferenceKey, big.NewInt(-1))
		assert.Error(t, err)
	})
}

func TestSameOperation(t *testing.T) {
	plan := testJoinPlan(t)
	other := testJoinPlan(t)

	assert.True(t, SameOperation(nil, nil))
	assert.False(t, SameOperation(plan.CallAt(0), nil))
	assert.False(t, SameOperation(plan.CallAt(0), plan.CallAt(1)))
	assert.True(t, SameOperation(plan.CallAt(1), other.CallAt(1)), "building twice yields the same calls")

	changed := plan.CallAt(1).clone()
	changed.recipient = alice
	assert.False(t, SameOperation(plan.CallAt(1), changed))

	changed = plan.CallAt(1).clone()
	changed.inputs[1] = Input{Token: weth, Value: Literal(big.NewInt(301))}
	assert.False(t, SameOperation(plan.CallAt(1), changed))
}

func TestOperationString(t *testing.T) {
	assert.Equal(t, "join", Join.String())
	assert.Equal(t, "exit", Exit.String())
	assert.Equal(t, "Operation(9)", Operation(9).String())
	assert.Equal(t, "proportional", ExitProportional.String())
	assert.Equal(t, "single-token", ExitSingleToken.String())
}
