package nestedpool

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

// Compiler compiles join and exit requests against nested pool trees,
// simulates them and finalizes them into relayer payloads.
//
// A Compiler holds no per-request state and is safe for concurrent use as
// long as its codec and executor are.
type Compiler struct {
	codec     Codec
	builder   *Builder
	simulator *Simulator
	finalizer *Finalizer
	logger    Logger
	metrics   *Metrics
}

// New creates a Compiler for the relayer described by codec. Simulations run
// through executor.
func New(codec Codec, executor Executor, opts ...Option) *Compiler {
	cfg := newConfig(opts)
	return &Compiler{
		codec: codec,
		builder: &Builder{
			chainID:       codec.ChainID(),
			wrappedNative: codec.WrappedNativeAsset(),
			allocator:     cfg.allocator,
			maxCalls:      cfg.maxCalls,
		},
		simulator: NewSimulator(codec, executor, cfg.allocator),
		finalizer: NewFinalizer(codec),
		logger:    cfg.logger,
		metrics:   NewMetrics(cfg.registry),
	}
}

// Builder returns the compiler's plan builder.
func (c *Compiler) Builder() *Builder {
	return c.builder
}

// BuildJoin validates state and compiles a join without simulating it.
func (c *Compiler) BuildJoin(state NestedPoolState, req JoinRequest) (*CallPlan, error) {
	g, err := NewGraph(state)
	if err != nil {
		return nil, err
	}
	return c.builder.BuildJoin(g, req)
}

// BuildExit validates state and compiles an exit without simulating it.
func (c *Compiler) BuildExit(state NestedPoolState, req ExitRequest) (*CallPlan, error) {
	g, err := NewGraph(state)
	if err != nil {
		return nil, err
	}
	return c.builder.BuildExit(g, req)
}

// QueryJoin compiles and simulates a join. The result carries the predicted
// root receipt token amount.
func (c *Compiler) QueryJoin(ctx context.Context, state NestedPoolState, req JoinRequest) (*QueryResult, error) {
	return c.query(ctx, Join, func() (*CallPlan, error) {
		return c.BuildJoin(state, req)
	}, req.Sender)
}

// QueryExit compiles and simulates an exit. The result carries one predicted
// amount per delivered token.
func (c *Compiler) QueryExit(ctx context.Context, state NestedPoolState, req ExitRequest) (*QueryResult, error) {
	return c.query(ctx, Exit, func() (*CallPlan, error) {
		return c.BuildExit(state, req)
	}, req.Sender)
}

func (c *Compiler) query(ctx context.Context, op Operation, build func() (*CallPlan, error), caller common.Address) (result *QueryResult, err error) {
	timer := prometheus.NewTimer(c.metrics.queryDuration.WithLabelValues(op.String()))
	defer func() {
		timer.ObserveDuration()
		c.metrics.queriesTotal.WithLabelValues(op.String(), resultLabel(err)).Inc()
	}()

	start := time.Now()
	plan, err := build()
	if err != nil {
		c.logger.Warn("failed to build plan", "operation", op, "error", err)
		return nil, err
	}
	c.metrics.planCalls.WithLabelValues(op.String()).Observe(float64(plan.Len()))
	c.logger.Debug("built plan", "operation", op, "calls", plan.Len(), "terminals", len(plan.terminals))

	amounts, err := c.simulator.Query(ctx, plan, caller)
	if err != nil {
		c.logger.Warn("plan simulation failed", "operation", op, "calls", plan.Len(), "error", err)
		return nil, err
	}

	result = &QueryResult{Plan: plan, Amounts: make([]TokenAmount, len(amounts))}
	for i, t := range plan.terminals {
		result.Amounts[i] = TokenAmount{Token: t.Output.Token, Amount: amounts[i]}
	}
	c.logger.Info("queried plan", "operation", op, "calls", plan.Len(), "amounts", result.Amounts, "duration", time.Since(start))
	return result, nil
}

// Finalize turns a query result into an executable payload.
func (c *Compiler) Finalize(in FinalizeInput) (payload *Payload, err error) {
	op := "unknown"
	if in.Query != nil && in.Query.Plan != nil {
		op = in.Query.Plan.Operation().String()
	}
	defer func() {
		c.metrics.finalizeTotal.WithLabelValues(op, resultLabel(err)).Inc()
	}()

	payload, err = c.finalizer.Finalize(in)
	if err != nil {
		c.logger.Warn("failed to finalize plan", "operation", op, "error", err)
		return nil, err
	}
	c.logger.Debug("finalized plan", "operation", op, "to", payload.To, "value", payload.Value, "bounds", payload.Bounds)
	return payload, nil
}
