package nestedpool

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AmountIn is an amount of a main token supplied to a join.
type AmountIn struct {
	Token  common.Address
	Amount *big.Int
}

// JoinRequest describes a join across a nested pool tree.
type JoinRequest struct {
	ChainID   uint64
	AmountsIn []AmountIn
	Sender    common.Address
	Recipient common.Address

	// UseNativeAsset pays the wrapped native token amount in the native asset.
	UseNativeAsset bool
}

// ExitRequest describes an exit from the root of a nested pool tree.
type ExitRequest struct {
	ChainID uint64

	// AmountIn is the root receipt token amount to burn.
	AmountIn *big.Int

	// TokenOut selects a single-token exit. Nil exits proportionally.
	TokenOut *common.Address

	Sender    common.Address
	Recipient common.Address

	// UseNativeAsset receives the wrapped native token as the native asset.
	UseNativeAsset bool
}

// Terminal is an output of a plan delivered to the recipient.
type Terminal struct {
	CallIndex int
	Output    Output
}

// CallPlan is an ordered sequence of pool operations and the outputs the
// caller receives.
type CallPlan struct {
	operation Operation
	calls     []*CallAttributes
	terminals []Terminal
}

// Operation returns the plan's operation.
func (p *CallPlan) Operation() Operation {
	return p.operation
}

// Len returns the number of calls.
func (p *CallPlan) Len() int {
	return len(p.calls)
}

// CallAt returns the call at the given index.
func (p *CallPlan) CallAt(i int) *CallAttributes {
	if i < 0 || i >= len(p.calls) {
		return nil
	}
	return p.calls[i]
}

// Calls returns the calls in execution order.
func (p *CallPlan) Calls() []*CallAttributes {
	out := make([]*CallAttributes, len(p.calls))
	copy(out, p.calls)
	return out
}

// Terminals returns the delivered outputs in call order.
func (p *CallPlan) Terminals() []Terminal {
	out := make([]Terminal, len(p.terminals))
	copy(out, p.terminals)
	return out
}

// TerminalKeys returns the output keys of the delivered outputs.
func (p *CallPlan) TerminalKeys() []ReferenceKey {
	keys := make([]ReferenceKey, len(p.terminals))
	for i, t := range p.terminals {
		keys[i] = t.Output.Key
	}
	return keys
}

// ForEachCall iterates over all calls in the plan.
// The callback receives the index and call. Return false to stop iteration.
func (p *CallPlan) ForEachCall(fn func(int, *CallAttributes) bool) {
	for i, call := range p.calls {
		if !fn(i, call) {
			return
		}
	}
}

// Builder compiles join and exit requests into call plans.
type Builder struct {
	chainID       uint64
	wrappedNative common.Address
	allocator     Allocator
	maxCalls      int
}

// NewBuilder creates a Builder for a chain whose wrapped native token is wrappedNative.
func NewBuilder(chainID uint64, wrappedNative common.Address, opts ...Option) *Builder {
	cfg := newConfig(opts)
	return &Builder{
		chainID:       chainID,
		wrappedNative: wrappedNative,
		allocator:     cfg.allocator,
		maxCalls:      cfg.maxCalls,
	}
}

func (b *Builder) checkParties(chainID uint64, sender, recipient common.Address) error {
	if chainID != b.chainID {
		return &InputError{Field: "chainID", Err: ErrChainMismatch}
	}
	if sender == (common.Address{}) {
		return inputErrorf("sender", "zero address")
	}
	if recipient == (common.Address{}) {
		return inputErrorf("recipient", "zero address")
	}
	return nil
}

func (b *Builder) checkNative(g *Graph, useNative bool) error {
	if !useNative {
		return nil
	}
	if _, ok := g.PathTo(b.wrappedNative); !ok {
		return inputErrorf("useNativeAsset", "wrapped native token %s is not held by the tree", b.wrappedNative.Hex())
	}
	return nil
}

// BuildJoin compiles a join. Pools are processed leaves first; each pool
// consumes the caller's amounts of the main tokens it holds and a reference to
// its child's output. Pools whose subtree receives nothing are skipped. The
// root call is terminal and publishes under FinalReferenceKey.
func (b *Builder) BuildJoin(g *Graph, req JoinRequest) (*CallPlan, error) {
	if err := b.checkParties(req.ChainID, req.Sender, req.Recipient); err != nil {
		return nil, err
	}
	if err := b.checkNative(g, req.UseNativeAsset); err != nil {
		return nil, err
	}

	// A main token held at several levels is paid into the pool closest to the root.
	amounts := make(map[common.Address]*big.Int, len(req.AmountsIn))
	owner := make(map[common.Address]*PoolNode, len(req.AmountsIn))
	positive := false
	for _, in := range req.AmountsIn {
		if !g.IsMainToken(in.Token) {
			return nil, inputErrorf("amountsIn", "token %s is not a main token of the tree", in.Token.Hex())
		}
		path, ok := g.PathTo(in.Token)
		if !ok {
			return nil, inputErrorf("amountsIn", "token %s is not held by any pool", in.Token.Hex())
		}
		if _, dup := amounts[in.Token]; dup {
			return nil, inputErrorf("amountsIn", "token %s given twice", in.Token.Hex())
		}
		if in.Amount == nil || in.Amount.Sign() < 0 {
			return nil, inputErrorf("amountsIn", "token %s: amount must be non-negative", in.Token.Hex())
		}
		if in.Amount.Sign() > 0 {
			positive = true
		}
		amounts[in.Token] = in.Amount
		owner[in.Token] = path[len(path)-1]
	}
	if !positive {
		return nil, inputErrorf("amountsIn", "no positive amount")
	}

	root := g.Root()
	published := make(map[common.Address]*CallAttributes, g.Len())
	calls := make([]*CallAttributes, 0, g.Len())

	for _, pool := range g.Pools() {
		inputs := make([]Input, 0, len(pool.Tokens))
		active := false
		for _, token := range pool.Tokens {
			if token.Address == pool.Address {
				continue
			}
			if childCall, ok := published[token.Address]; ok {
				out := childCall.outputs[0]
				inputs = append(inputs, Input{Token: token.Address, Value: Reference(out.Key, out.Reference)})
				active = true
				continue
			}
			var amount *big.Int
			if owner[token.Address] == pool {
				amount = amounts[token.Address]
			}
			if amount != nil && amount.Sign() > 0 {
				active = true
			}
			inputs = append(inputs, Input{Token: token.Address, Value: Literal(amount)})
		}
		if !active {
			continue
		}

		key := JoinOutputKey(pool.ID)
		recipient := req.Sender
		terminal := pool == root
		if terminal {
			key = FinalReferenceKey
			recipient = req.Recipient
		}

		call := &CallAttributes{
			chainID:        req.ChainID,
			operation:      Join,
			pool:           pool,
			sender:         req.Sender,
			recipient:      recipient,
			inputs:         inputs,
			useNativeAsset: req.UseNativeAsset,
			wrappedNative:  b.wrappedNative,
			outputs: []Output{{
				Token:     pool.ReceiptToken(),
				Key:       key,
				Reference: b.allocator.Allocate(key, true),
				Terminal:  terminal,
			}},
		}
		published[pool.Address] = call
		calls = append(calls, call)
	}

	return b.finish(Join, calls)
}

// BuildExit compiles an exit. Pools are processed root first. A proportional
// exit visits every pool of the tree; a single-token exit visits only the
// pools on the path from the root to the pool holding the requested token.
// Each visited pool below the root burns the receipt token published by its
// parent's call.
//
// The relayer settles every output of one exit call to a single recipient, and
// an intermediate receipt token must stay with the sender for the next call to
// pull it. A call that delivers tokens and also passes on a receipt token
// therefore requires Sender == Recipient; otherwise BuildExit returns an
// *InputError for field "recipient". Proportional exits of a pool holding both
// main tokens and a child pool hit this case.
func (b *Builder) BuildExit(g *Graph, req ExitRequest) (*CallPlan, error) {
	if err := b.checkParties(req.ChainID, req.Sender, req.Recipient); err != nil {
		return nil, err
	}
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return nil, inputErrorf("amountIn", "must be positive")
	}
	if err := b.checkNative(g, req.UseNativeAsset); err != nil {
		return nil, err
	}

	kind := ExitProportional
	visit := g.Chain()
	if req.TokenOut != nil {
		kind = ExitSingleToken
		if !g.IsMainToken(*req.TokenOut) {
			return nil, inputErrorf("tokenOut", "token %s is not a main token of the tree", req.TokenOut.Hex())
		}
		path, ok := g.PathTo(*req.TokenOut)
		if !ok {
			return nil, inputErrorf("tokenOut", "token %s is not reachable from the root", req.TokenOut.Hex())
		}
		visit = path
	}

	calls := make([]*CallAttributes, 0, len(visit))
	var carried *Output

	for i, pool := range visit {
		var input Input
		if i == 0 {
			input = Input{Token: pool.Address, Value: Literal(req.AmountIn)}
		} else {
			input = Input{Token: pool.Address, Value: Reference(carried.Key, carried.Reference)}
		}

		var outputs []Output
		if kind == ExitSingleToken {
			if i < len(visit)-1 {
				outputs = []Output{b.exitOutput(g, pool, visit[i+1].Address)}
			} else {
				outputs = []Output{b.exitOutput(g, pool, *req.TokenOut)}
			}
		} else {
			for _, token := range pool.Tokens {
				if token.Address == pool.Address {
					continue
				}
				outputs = append(outputs, b.exitOutput(g, pool, token.Address))
			}
		}

		carried = nil
		delivered := 0
		for j := range outputs {
			if outputs[j].Terminal {
				delivered++
			} else {
				carried = &outputs[j]
			}
		}

		recipient := req.Recipient
		if carried != nil {
			if delivered > 0 && req.Sender != req.Recipient {
				return nil, inputErrorf("recipient",
					"pool %s delivers tokens alongside an intermediate receipt token; sender and recipient must match",
					pool.Address.Hex())
			}
			recipient = req.Sender
		}

		calls = append(calls, &CallAttributes{
			chainID:        req.ChainID,
			operation:      Exit,
			exitKind:       kind,
			pool:           pool,
			sender:         req.Sender,
			recipient:      recipient,
			inputs:         []Input{input},
			outputs:        outputs,
			useNativeAsset: req.UseNativeAsset,
			wrappedNative:  b.wrappedNative,
		})
	}

	return b.finish(Exit, calls)
}

func (b *Builder) exitOutput(g *Graph, pool *PoolNode, token common.Address) Output {
	key := ExitOutputKey(pool.ID, token)
	out := Output{
		Key:       key,
		Reference: b.allocator.Allocate(key, true),
	}
	if child, ok := g.Pool(token); ok {
		out.Token = child.ReceiptToken()
		return out
	}
	out.Token, _ = g.MainToken(token)
	out.Terminal = true
	return out
}

func (b *Builder) finish(op Operation, calls []*CallAttributes) (*CallPlan, error) {
	if len(calls) > b.maxCalls {
		return nil, &PlanError{CallIndex: b.maxCalls, PoolID: calls[b.maxCalls].PoolID(), Err: ErrTooManyCalls}
	}
	if err := verifyPlan(calls); err != nil {
		return nil, err
	}

	plan := &CallPlan{operation: op, calls: calls}
	for i, call := range calls {
		for _, out := range call.outputs {
			if out.Terminal {
				plan.terminals = append(plan.terminals, Terminal{CallIndex: i, Output: out})
			}
		}
	}
	if len(plan.terminals) == 0 {
		return nil, &PlanError{CallIndex: len(calls) - 1, Err: errors.New("plan delivers nothing")}
	}
	return plan, nil
}

// verifyPlan checks that every reference input reads an output published by
// a strictly earlier call, that temporary references are read at most once,
// and that output keys are unique.
func verifyPlan(calls []*CallAttributes) error {
	published := make(map[ReferenceKey]ChainedReference)
	consumed := make(map[ReferenceKey]bool)

	for i, call := range calls {
		for _, in := range call.inputs {
			rv, ok := in.Value.(*ReferenceValue)
			if !ok {
				continue
			}
			ref, visible := published[rv.key]
			if !visible || ref != rv.ref {
				return &PlanError{CallIndex: i, PoolID: call.PoolID(), Err: ErrReferenceNotVisible}
			}
			if consumed[rv.key] && ref.IsTemporary() {
				return &PlanError{CallIndex: i, PoolID: call.PoolID(), Err: ErrReferenceConsumed}
			}
			consumed[rv.key] = true
		}
		for _, out := range call.outputs {
			if _, dup := published[out.Key]; dup {
				return &PlanError{CallIndex: i, PoolID: call.PoolID(), Err: ErrDuplicateReferenceKey}
			}
			published[out.Key] = out.Reference
		}
	}
	return nil
}
