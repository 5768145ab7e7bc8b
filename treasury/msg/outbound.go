// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package msg

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vechain/stakepool/pool"
)

// Kind names an outbound message.
type Kind string

const (
	KindRefund          Kind = "refund"
	KindNewStake        Kind = "new_stake"
	KindRecoverStake    Kind = "recover_stake"
	KindValidatorPayout Kind = "validator_payout"
	KindGovernanceFee   Kind = "governance_fee"
	KindMintTokens      Kind = "mint_tokens"
	KindWithdrawCoins   Kind = "withdraw_coins"
	KindMintBill        Kind = "mint_bill"
	KindBurnBill        Kind = "burn_bill"
	KindContinue        Kind = "continue"
	KindSurplusPayout   Kind = "surplus_payout"
)

// Outbound is a message emitted by the treasury. Every outbound message names
// its destination and the value it carries, which leaves the treasury balance.
type Outbound interface {
	Kind() Kind
	Dest() pool.Address
	Amount() *big.Int
	outbound()
}

// Refund returns value to a sender, either because its message failed or
// because its escrow was released.
type Refund struct {
	To     pool.Address `json:"to"`
	Value  *big.Int     `json:"value"`
	Reason string       `json:"reason"`
}

// NewStake funds a loan proxy with the loan plus the validator's own stake.
type NewStake struct {
	Proxy      pool.Address  `json:"proxy"`
	Validator  pool.Address  `json:"validator"`
	Round      uint32        `json:"round"`
	Value      *big.Int      `json:"value"`
	ElectorMsg hexutil.Bytes `json:"electorMsg"`
}

// RecoverStake asks a loan proxy to reclaim its stake from the election authority.
type RecoverStake struct {
	Proxy     pool.Address `json:"proxy"`
	Validator pool.Address `json:"validator"`
	Round     uint32       `json:"round"`
}

// ValidatorPayout returns what is left of a recovered stake after the pool took its share.
type ValidatorPayout struct {
	Validator pool.Address `json:"validator"`
	Round     uint32       `json:"round"`
	Value     *big.Int     `json:"value"`
}

type GovernanceFee struct {
	Governor pool.Address `json:"governor"`
	Round    uint32       `json:"round"`
	Value    *big.Int     `json:"value"`
}

// MintTokens instructs the token ledger to credit claim-tokens to owner.
type MintTokens struct {
	Ledger pool.Address `json:"ledger"`
	Owner  pool.Address `json:"owner"`
	Tokens *big.Int     `json:"tokens"`
	Coins  *big.Int     `json:"coins"`
}

// WithdrawCoins pays coins to an owner whose claim-tokens were burned.
type WithdrawCoins struct {
	Owner  pool.Address `json:"owner"`
	Tokens *big.Int     `json:"tokens"`
	Value  *big.Int     `json:"value"`
}

// MintBill asks the receipt registry to mint a receipt for an in-flight request.
type MintBill struct {
	Registry  pool.Address `json:"registry"`
	Round     uint32       `json:"round"`
	Index     uint32       `json:"index"`
	Owner     pool.Address `json:"owner"`
	Unstaking bool         `json:"unstaking"`
	Coins     *big.Int     `json:"amount"` // tokens when Unstaking
}

// BurnBill asks the receipt registry to burn a receipt, which it confirms with BillBurned.
type BurnBill struct {
	Registry pool.Address `json:"registry"`
	Round    uint32       `json:"round"`
	Index    uint32       `json:"index"`
}

// Continue is a message the treasury sends to itself to resume a batch.
type Continue struct {
	Self pool.Address `json:"self"`
	Body Inbound      `json:"-"`
}

type SurplusPayout struct {
	To    pool.Address `json:"to"`
	Value *big.Int     `json:"value"`
}

func (Refund) Kind() Kind          { return KindRefund }
func (NewStake) Kind() Kind        { return KindNewStake }
func (RecoverStake) Kind() Kind    { return KindRecoverStake }
func (ValidatorPayout) Kind() Kind { return KindValidatorPayout }
func (GovernanceFee) Kind() Kind   { return KindGovernanceFee }
func (MintTokens) Kind() Kind      { return KindMintTokens }
func (WithdrawCoins) Kind() Kind   { return KindWithdrawCoins }
func (MintBill) Kind() Kind        { return KindMintBill }
func (BurnBill) Kind() Kind        { return KindBurnBill }
func (Continue) Kind() Kind        { return KindContinue }
func (SurplusPayout) Kind() Kind   { return KindSurplusPayout }

func (m Refund) Dest() pool.Address          { return m.To }
func (m NewStake) Dest() pool.Address        { return m.Proxy }
func (m RecoverStake) Dest() pool.Address    { return m.Proxy }
func (m ValidatorPayout) Dest() pool.Address { return m.Validator }
func (m GovernanceFee) Dest() pool.Address   { return m.Governor }
func (m MintTokens) Dest() pool.Address      { return m.Ledger }
func (m WithdrawCoins) Dest() pool.Address   { return m.Owner }
func (m MintBill) Dest() pool.Address        { return m.Registry }
func (m BurnBill) Dest() pool.Address        { return m.Registry }
func (m Continue) Dest() pool.Address        { return m.Self }
func (m SurplusPayout) Dest() pool.Address   { return m.To }

func (m Refund) Amount() *big.Int          { return pool.Copy(m.Value) }
func (m NewStake) Amount() *big.Int        { return pool.Copy(m.Value) }
func (RecoverStake) Amount() *big.Int      { return pool.Zero() }
func (m ValidatorPayout) Amount() *big.Int { return pool.Copy(m.Value) }
func (m GovernanceFee) Amount() *big.Int   { return pool.Copy(m.Value) }
func (MintTokens) Amount() *big.Int        { return pool.Zero() }
func (m WithdrawCoins) Amount() *big.Int   { return pool.Copy(m.Value) }
func (MintBill) Amount() *big.Int          { return pool.Zero() }
func (BurnBill) Amount() *big.Int          { return pool.Zero() }
func (Continue) Amount() *big.Int          { return pool.Zero() }
func (m SurplusPayout) Amount() *big.Int   { return pool.Copy(m.Value) }

func (Refund) outbound()          {}
func (NewStake) outbound()        {}
func (RecoverStake) outbound()    {}
func (ValidatorPayout) outbound() {}
func (GovernanceFee) outbound()   {}
func (MintTokens) outbound()      {}
func (WithdrawCoins) outbound()   {}
func (MintBill) outbound()        {}
func (BurnBill) outbound()        {}
func (Continue) outbound()        {}
func (SurplusPayout) outbound()   {}

// Total sums the value carried by msgs.
func Total(msgs []Outbound) *big.Int {
	total := new(big.Int)
	for _, m := range msgs {
		total.Add(total, m.Amount())
	}
	return total
}

// Envelope turns a continue message back into the inbound envelope the
// treasury receives from itself.
func (m Continue) Envelope() *Envelope {
	return NewEnvelope(m.Self, nil, m.Body)
}
