package nestedpool

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// PoolKind identifies the pool implementation behind a pool node.
// It selects the operation encoder used for the pool's calls.
type PoolKind uint8

const (
	// Weighted pools (including Investment and LBP variants).
	Weighted PoolKind = iota + 1

	// Stable is the legacy stable pool.
	Stable

	// MetaStable pools encode like legacy stable pools.
	MetaStable

	// ComposableStable pools hold their own receipt token among their tokens.
	ComposableStable

	// ComposableStableV2 is the post-V2 composable stable pool.
	ComposableStableV2
)

var poolKindNames = map[PoolKind]string{
	Weighted:           "Weighted",
	Stable:             "Stable",
	MetaStable:         "MetaStable",
	ComposableStable:   "ComposableStable",
	ComposableStableV2: "ComposableStableV2",
}

// String returns the kind's name.
func (k PoolKind) String() string {
	if name, ok := poolKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("PoolKind(%d)", uint8(k))
}

// Valid reports whether k is a known pool kind.
func (k PoolKind) Valid() bool {
	_, ok := poolKindNames[k]
	return ok
}

// ParsePoolKind parses a pool kind name, case-insensitively.
// "Investment" and "LiquidityBootstrapping" parse as Weighted.
func ParsePoolKind(s string) (PoolKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weighted", "investment", "liquiditybootstrapping":
		return Weighted, nil
	case "stable":
		return Stable, nil
	case "metastable":
		return MetaStable, nil
	case "composablestable", "stablephantom":
		return ComposableStable, nil
	case "composablestablev2":
		return ComposableStableV2, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedPoolKind, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k PoolKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedPoolKind, uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PoolKind) UnmarshalText(text []byte) error {
	parsed, err := ParsePoolKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// HoldsOwnReceiptToken reports whether pools of this kind list their own
// receipt token among their tokens.
func (k PoolKind) HoldsOwnReceiptToken() bool {
	return k == ComposableStable || k == ComposableStableV2
}

// Token describes an ERC-20 token.
type Token struct {
	Address  common.Address `json:"address" yaml:"address"`
	Decimals uint8          `json:"decimals" yaml:"decimals"`
}

// PoolToken is a token held by a pool, at its position in the pool's token list.
type PoolToken struct {
	Address  common.Address `json:"address" yaml:"address"`
	Decimals uint8          `json:"decimals" yaml:"decimals"`
	Index    int            `json:"index" yaml:"index"`
}

// Token returns the token without its pool position.
func (t PoolToken) Token() Token {
	return Token{Address: t.Address, Decimals: t.Decimals}
}

// PoolNode is one pool of a nested pool tree.
type PoolNode struct {
	ID      common.Hash    `json:"id" yaml:"id"`
	Address common.Address `json:"address" yaml:"address"`
	Kind    PoolKind       `json:"type" yaml:"type"`
	Level   int            `json:"level" yaml:"level"`
	Tokens  []PoolToken    `json:"tokens" yaml:"tokens"`
}

// ReceiptToken returns the pool's receipt token. Receipt tokens use 18 decimals.
func (p *PoolNode) ReceiptToken() Token {
	return Token{Address: p.Address, Decimals: ReceiptTokenDecimals}
}

// ReceiptTokenDecimals is the decimals of every pool receipt token.
const ReceiptTokenDecimals = 18

// NestedPoolState is the caller-supplied description of a nested pool tree.
type NestedPoolState struct {
	Pools      []PoolNode `json:"pools" yaml:"pools"`
	MainTokens []Token    `json:"mainTokens" yaml:"mainTokens"`
}

// TokenAmount is an amount of a token in its smallest unit.
type TokenAmount struct {
	Token  Token
	Amount *big.Int
}

// String formats the amount as "<amount> <address>".
func (a TokenAmount) String() string {
	return fmt.Sprintf("%s %s", a.Amount, a.Token.Address.Hex())
}
