package nestedpool

import (
	"fmt"
	"math/big"
	"strings"
)

// wad is the fixed-point scale of Slippage: wad represents 100%.
var wad = big.NewInt(1e18)

// Slippage is a tolerance in [0, 1) held as an 18-decimal fixed-point number.
// The zero value is zero slippage.
type Slippage struct {
	wad *big.Int
}

// NewSlippage creates a slippage from its 18-decimal fixed-point value.
func NewSlippage(fixed *big.Int) (Slippage, error) {
	if fixed == nil || fixed.Sign() < 0 || fixed.Cmp(wad) >= 0 {
		return Slippage{}, ErrInvalidSlippage
	}
	return Slippage{wad: new(big.Int).Set(fixed)}, nil
}

// SlippageFromPercentage parses a decimal percentage such as "1" or "0.25".
// Digits beyond 16 decimal places are truncated.
func SlippageFromPercentage(pct string) (Slippage, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(pct))
	if !ok {
		return Slippage{}, fmt.Errorf("%w: cannot parse %q", ErrInvalidSlippage, pct)
	}
	// pct% of wad = pct * 1e16
	r.Mul(r, new(big.Rat).SetInt64(1e16))
	fixed := new(big.Int).Quo(r.Num(), r.Denom())
	return NewSlippage(fixed)
}

// SlippageFromBasisPoints creates a slippage of bps/10000.
func SlippageFromBasisPoints(bps uint64) (Slippage, error) {
	fixed := new(big.Int).Mul(new(big.Int).SetUint64(bps), big.NewInt(1e14))
	return NewSlippage(fixed)
}

// MustSlippage is like SlippageFromPercentage but panics on error.
func MustSlippage(pct string) Slippage {
	s, err := SlippageFromPercentage(pct)
	if err != nil {
		panic(err)
	}
	return s
}

// Fixed returns the 18-decimal fixed-point value.
func (s Slippage) Fixed() *big.Int {
	if s.wad == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(s.wad)
}

// IsZero reports whether the slippage is zero.
func (s Slippage) IsZero() bool {
	return s.wad == nil || s.wad.Sign() == 0
}

// Validate checks the slippage is within [0, 1).
func (s Slippage) Validate() error {
	if s.wad == nil {
		return nil
	}
	if s.wad.Sign() < 0 || s.wad.Cmp(wad) >= 0 {
		return ErrInvalidSlippage
	}
	return nil
}

// RemoveFrom returns amount - floor(amount * s). The result is never negative
// for a non-negative amount and never exceeds it.
func (s Slippage) RemoveFrom(amount *big.Int) *big.Int {
	if s.IsZero() {
		return new(big.Int).Set(amount)
	}
	cut := new(big.Int).Mul(amount, s.wad)
	cut.Quo(cut, wad)
	return cut.Sub(amount, cut)
}

// String formats the slippage as a percentage.
func (s Slippage) String() string {
	r := new(big.Rat).SetFrac(s.Fixed(), big.NewInt(1e16))
	return strings.TrimRight(strings.TrimRight(r.FloatString(16), "0"), ".") + "%"
}

// UnmarshalText parses a percentage, with or without a trailing "%".
func (s *Slippage) UnmarshalText(text []byte) error {
	parsed, err := SlippageFromPercentage(strings.TrimSuffix(strings.TrimSpace(string(text)), "%"))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalText formats the slippage as a percentage.
func (s Slippage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
