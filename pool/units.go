// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pool

import (
	"fmt"
	"math/big"
)

const (
	// Coin is the number of nano units in one coin.
	Coin = 1_000_000_000
	// MicroCoin is the number of nano units in one micro coin.
	MicroCoin = 1_000
)

// Coins returns n coins expressed in nano units.
func Coins(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(Coin))
}

// Nano returns n nano units.
func Nano(n int64) *big.Int {
	return big.NewInt(n)
}

// Zero returns a new zero amount.
func Zero() *big.Int {
	return new(big.Int)
}

// Copy returns a copy of amount, treating nil as zero.
func Copy(amount *big.Int) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(amount)
}

// Min returns a copy of the smaller amount.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// MulDiv computes a*b/c rounding towards zero. It returns zero when c is zero.
func MulDiv(a, b, c *big.Int) *big.Int {
	if c.Sign() == 0 {
		return new(big.Int)
	}
	r := new(big.Int).Mul(a, b)
	return r.Quo(r, c)
}

// FormatCoins renders a nano amount as a decimal coin string.
func FormatCoins(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(amount, big.NewInt(Coin))
	return r.FloatString(9)
}

// ParseCoins parses a decimal coin amount, such as "0.1", into nano units.
func ParseCoins(s string) (*big.Int, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid coin amount %q", s)
	}
	r.Mul(r, new(big.Rat).SetInt64(Coin))
	if !r.IsInt() {
		return nil, fmt.Errorf("coin amount %q is finer than one nano unit", s)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("negative coin amount %q", s)
	}
	return new(big.Int).Set(r.Num()), nil
}
