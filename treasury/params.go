// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package treasury

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/stakepool/pool"
)

// Params holds the tunables of a treasury that are not part of its state.
type Params struct {
	RequestLoanFee     *big.Int // kept from every loan request
	DepositFee         *big.Int // kept from every deposit
	MinDeposit         *big.Int // minimum deposit after the fee
	MaxBatchMessages   uint32   // outbound messages one batched step may emit
	MaxRecoverAttempts uint32   // recover attempts per entry before it is parked
	MaxLoansPerRound   uint32   // zero means the election committee size
}

var (
	defaultRequestLoanFee     = big.NewInt(100_000_000)
	defaultDepositFee         = big.NewInt(50_000_000)
	defaultMinDeposit         = pool.Coins(1)
	defaultMaxBatchMessages   = uint32(250)
	defaultMaxRecoverAttempts = uint32(3)
)

func DefaultParams() Params {
	return Params{
		RequestLoanFee:     new(big.Int).Set(defaultRequestLoanFee),
		DepositFee:         new(big.Int).Set(defaultDepositFee),
		MinDeposit:         new(big.Int).Set(defaultMinDeposit),
		MaxBatchMessages:   defaultMaxBatchMessages,
		MaxRecoverAttempts: defaultMaxRecoverAttempts,
	}
}

// Validate reports the first inconsistent parameter.
func (p *Params) Validate() error {
	if p.RequestLoanFee == nil || p.RequestLoanFee.Sign() < 0 {
		return errors.New("request loan fee must be non-negative")
	}
	if p.DepositFee == nil || p.DepositFee.Sign() < 0 {
		return errors.New("deposit fee must be non-negative")
	}
	if p.MinDeposit == nil || p.MinDeposit.Sign() <= 0 {
		return errors.New("min deposit must be positive")
	}
	if p.MaxBatchMessages == 0 {
		return errors.New("max batch messages must be positive")
	}
	if p.MaxRecoverAttempts == 0 {
		return errors.New("max recover attempts must be positive")
	}
	return nil
}
