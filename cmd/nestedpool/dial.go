package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sethvargo/go-retry"

	"github.com/branched-services/go-nestedpool"
	"github.com/branched-services/go-nestedpool/relayer"
)

const (
	dialAttempts = 5
	dialBackoff  = 250 * time.Millisecond
)

// chainIDFetcher is the part of ethclient.Client used for the handshake.
type chainIDFetcher interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// handshake checks the node serves the configured chain. Transport errors
// are retried with exponential backoff; a chain mismatch is not.
func handshake(ctx context.Context, node chainIDFetcher, want uint64, backoff retry.Backoff, logger *slog.Logger) error {
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		id, err := node.ChainID(ctx)
		if err != nil {
			logger.Warn("chain id request failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		if !id.IsUint64() || id.Uint64() != want {
			return fmt.Errorf("%w: node serves chain %s, configured %d", nestedpool.ErrChainMismatch, id, want)
		}
		return nil
	})
}

func newBackoff() retry.Backoff {
	return retry.WithMaxRetries(dialAttempts-1, retry.NewExponential(dialBackoff))
}

// dialCompiler connects to the configured node and returns a compiler that
// simulates through it.
func dialCompiler(ctx context.Context, cfg *Config, logger *slog.Logger) (*nestedpool.Compiler, func(), error) {
	chain, err := cfg.Chain()
	if err != nil {
		return nil, nil, err
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}
	if err := handshake(ctx, client, chain.ID, newBackoff(), logger); err != nil {
		client.Close()
		return nil, nil, err
	}
	logger.Debug("connected", "rpc_url", cfg.RPCURL, "chain_id", chain.ID, "relayer", chain.Relayer)

	c := nestedpool.New(
		relayer.NewCodec(chain),
		relayer.NewExecutor(client, chain.Relayer, nil),
		nestedpool.WithLogger(logger.With("component", "compiler")),
	)
	return c, client.Close, nil
}
