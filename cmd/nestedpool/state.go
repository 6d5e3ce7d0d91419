package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/branched-services/go-nestedpool"
)

// loadState reads a pool tree from a YAML or JSON file.
func loadState(path string) (nestedpool.NestedPoolState, error) {
	var state nestedpool.NestedPoolState

	data, err := os.ReadFile(path)
	if err != nil {
		return state, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &state)
	default:
		err = yaml.Unmarshal(data, &state)
	}
	if err != nil {
		return state, fmt.Errorf("pool state %s: %w", path, err)
	}
	return state, nil
}

// parseAmount parses "<token>=<amount>" where amount is in the token's
// smallest unit.
func parseAmount(s string) (nestedpool.AmountIn, error) {
	token, value, ok := strings.Cut(s, "=")
	if !ok {
		return nestedpool.AmountIn{}, fmt.Errorf("amount %q: expected <token>=<amount>", s)
	}
	addr, err := parseAddress(token)
	if err != nil {
		return nestedpool.AmountIn{}, err
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || amount.Sign() < 0 {
		return nestedpool.AmountIn{}, fmt.Errorf("amount %q: invalid value", s)
	}
	return nestedpool.AmountIn{Token: addr, Amount: amount}, nil
}

func parseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
