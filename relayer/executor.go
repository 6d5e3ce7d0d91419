package relayer

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/branched-services/go-nestedpool"
)

// Executor simulates call sequences with vaultActionsQueryMulticall over
// eth_call.
type Executor struct {
	caller  ethereum.ContractCaller
	relayer common.Address
	block   *big.Int
}

// NewExecutor creates an Executor calling the relayer at address through caller.
// A nil block simulates against the latest block.
func NewExecutor(caller ethereum.ContractCaller, address common.Address, block *big.Int) *Executor {
	return &Executor{caller: caller, relayer: address, block: block}
}

// Simulate runs calls from caller and returns the result of every call.
func (e *Executor) Simulate(ctx context.Context, caller common.Address, calls [][]byte) ([][]byte, error) {
	data, err := ABI.Pack("vaultActionsQueryMulticall", calls)
	if err != nil {
		return nil, fmt.Errorf("pack vaultActionsQueryMulticall: %w", err)
	}

	out, err := e.caller.CallContract(ctx, ethereum.CallMsg{
		From: caller,
		To:   &e.relayer,
		Data: data,
	}, e.block)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return nil, fmt.Errorf("eth_call reverted: %s: %w", reason, err)
		}
		return nil, fmt.Errorf("eth_call: %w", err)
	}

	res, err := ABI.Unpack("vaultActionsQueryMulticall", out)
	if err != nil {
		return nil, fmt.Errorf("unpack vaultActionsQueryMulticall: %w", err)
	}
	if len(res) != 1 {
		return nil, fmt.Errorf("expected 1 return value, got %d", len(res))
	}
	results, ok := res[0].([][]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected return type %T", res[0])
	}
	return results, nil
}

// revertReason extracts the Error(string) reason carried by a JSON-RPC error.
func revertReason(err error) (string, bool) {
	var de interface{ ErrorData() interface{} }
	if !errors.As(err, &de) {
		return "", false
	}
	s, ok := de.ErrorData().(string)
	if !ok {
		return "", false
	}
	data, decodeErr := hexutil.Decode(s)
	if decodeErr != nil {
		return "", false
	}
	reason, unpackErr := abi.UnpackRevert(data)
	if unpackErr != nil {
		return "", false
	}
	return reason, true
}

var _ nestedpool.Executor = (*Executor)(nil)
