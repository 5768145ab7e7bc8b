// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package sortkey ranks loan requests. Keys compare as plain 256-bit unsigned
// integers and a lower key is a better request.
//
// Layout, most significant first:
//
//	[40 bits primary][8 bits 255-rewardShare][48 bits minPayment in micro coins][160 bits validator]
//
// With balanced rounds the primary term is the committed stake in whole coins,
// which spreads the committee slots over more and smaller validators. Without
// it the primary term is the inverted reward yield, favouring the requests that
// pay the most per lent coin. The validator address in the low bits makes the
// order strictly total.
package sortkey

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/vechain/stakepool/pool"
)

const (
	PrimaryBits = 40
	ShareBits   = 8
	PaymentBits = 48
	AddressBits = 160

	// YieldShift scales minPayment/loan into the primary term.
	YieldShift = 24

	shareShift   = AddressBits + PaymentBits
	primaryShift = shareShift + ShareBits
)

var (
	maxPrimary = uint64(1)<<PrimaryBits - 1
	maxPayment = uint64(1)<<PaymentBits - 1
)

// Request holds the fields of a loan request that affect its rank.
type Request struct {
	Validator   pool.Address
	LoanAmount  *big.Int
	Stake       *big.Int
	MinPayment  *big.Int
	RewardShare uint8
}

// Committed returns the total amount the request locks in the election.
func (r *Request) Committed() *big.Int {
	return new(big.Int).Add(pool.Copy(r.LoanAmount), pool.Copy(r.Stake))
}

// Primary computes the most significant term of the key.
func Primary(r *Request, balanced bool) uint64 {
	if balanced {
		coins := new(big.Int).Quo(r.Committed(), big.NewInt(pool.Coin))
		return clamp(coins, maxPrimary)
	}
	if r.LoanAmount == nil || r.LoanAmount.Sign() <= 0 {
		return maxPrimary
	}
	yield := new(big.Int).Lsh(pool.Copy(r.MinPayment), YieldShift)
	yield.Quo(yield, r.LoanAmount)
	return maxPrimary - clamp(yield, maxPrimary)
}

// Compute builds the key of a request.
func Compute(r *Request, balanced bool) *uint256.Int {
	key := uint256.NewInt(Primary(r, balanced))

	key.Lsh(key, ShareBits)
	key.Or(key, uint256.NewInt(uint64(255-r.RewardShare)))

	micro := new(big.Int).Quo(pool.Copy(r.MinPayment), big.NewInt(pool.MicroCoin))
	key.Lsh(key, PaymentBits)
	key.Or(key, uint256.NewInt(clamp(micro, maxPayment)))

	key.Lsh(key, AddressBits)
	key.Or(key, new(uint256.Int).SetBytes20(r.Validator[:]))
	return key
}

// PrimaryOf extracts the primary term from a key.
func PrimaryOf(key *uint256.Int) uint64 {
	return new(uint256.Int).Rsh(key, primaryShift).Uint64()
}

// ValidatorOf extracts the validator address from a key.
func ValidatorOf(key *uint256.Int) pool.Address {
	b := key.Bytes32()
	return pool.BytesToAddress(b[32-pool.AddressLength:])
}

func clamp(v *big.Int, limit uint64) uint64 {
	if v.Sign() < 0 {
		return 0
	}
	if !v.IsUint64() || v.Uint64() > limit {
		return limit
	}
	return v.Uint64()
}
