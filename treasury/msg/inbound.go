// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package msg defines the closed set of messages the treasury accepts and emits.
package msg

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vechain/stakepool/pool"
)

// Op names an inbound operation.
type Op string

const (
	OpRequestLoan           Op = "request_loan"
	OpParticipateInElection Op = "participate_in_election"
	OpProcessLoanRequests   Op = "process_loan_requests"
	OpVsetChanged           Op = "vset_changed"
	OpFinishParticipation   Op = "finish_participation"
	OpRecoverStakes         Op = "recover_stakes"
	OpRecoverStakeResult    Op = "recover_stake_result"
	OpNewStakeRejected      Op = "new_stake_rejected"
	OpBurnAll               Op = "burn_all"
	OpBillBurned            Op = "bill_burned"
	OpRetryDistribute       Op = "retry_distribute"
	OpRetryRecoverStakes    Op = "retry_recover_stakes"
	OpRetryBurnAll          Op = "retry_burn_all"
	OpDepositCoins          Op = "deposit_coins"
	OpUnstakeTokens         Op = "unstake_tokens"
	OpWithdrawSurplus       Op = "withdraw_surplus"
	OpSetHalted             Op = "set_halted"
	OpSetStopped            Op = "set_stopped"
	OpSetGovernanceFee      Op = "set_governance_fee"
	OpSetBalancedRounds     Op = "set_balanced_rounds"
	OpSetRoundsImbalance    Op = "set_rounds_imbalance"
	OpProposeGovernor       Op = "propose_governor"
	OpAcceptGovernance      Op = "accept_governance"
	OpSetHalter             Op = "set_halter"
	OpTopUp                 Op = "top_up"
)

// Inbound is the body of a message sent to the treasury.
type Inbound interface {
	Op() Op
	inbound()
}

// Envelope carries an inbound body together with its sender and the value attached to it.
type Envelope struct {
	Sender pool.Address
	Value  *big.Int
	Body   Inbound
}

// NewEnvelope builds an envelope, treating a nil value as zero.
func NewEnvelope(sender pool.Address, value *big.Int, body Inbound) *Envelope {
	return &Envelope{Sender: sender, Value: pool.Copy(value), Body: body}
}

type RequestLoan struct {
	Round       uint32        `json:"round"`
	LoanAmount  *big.Int      `json:"loanAmount"`
	MinPayment  *big.Int      `json:"minPayment"`
	RewardShare uint8         `json:"rewardShare"`
	ElectorMsg  hexutil.Bytes `json:"electorMsg"`
}

type ParticipateInElection struct {
	Round uint32 `json:"round"`
}

type ProcessLoanRequests struct {
	Round uint32 `json:"round"`
	Start uint32 `json:"start"`
}

type VsetChanged struct {
	Round uint32 `json:"round"`
}

type FinishParticipation struct {
	Round uint32 `json:"round"`
}

type RecoverStakes struct {
	Round uint32 `json:"round"`
	Start uint32 `json:"start"`
}

// RecoverStakeResult is sent by a loan proxy with whatever the election
// authority returned. OK is false when the authority refused to release the stake.
type RecoverStakeResult struct {
	Round     uint32       `json:"round"`
	Validator pool.Address `json:"validator"`
	OK        bool         `json:"ok"`
}

// NewStakeRejected is sent by a loan proxy when the election authority bounced a stake.
type NewStakeRejected struct {
	Round     uint32       `json:"round"`
	Validator pool.Address `json:"validator"`
}

type BurnAll struct {
	Round uint32 `json:"round"`
	Start uint32 `json:"start"`
}

type BillBurned struct {
	Round uint32 `json:"round"`
	Index uint32 `json:"index"`
}

type RetryDistribute struct {
	Round uint32 `json:"round"`
}

type RetryRecoverStakes struct {
	Round uint32 `json:"round"`
}

type RetryBurnAll struct {
	Round uint32 `json:"round"`
}

type DepositCoins struct {
	Owner pool.Address `json:"owner"`
}

type UnstakeTokens struct {
	Owner  pool.Address `json:"owner"`
	Tokens *big.Int     `json:"tokens"`
}

type WithdrawSurplus struct{}

type SetHalted struct {
	Halted bool `json:"halted"`
}

type SetStopped struct {
	Stopped bool `json:"stopped"`
}

type SetGovernanceFee struct {
	Fee uint16 `json:"fee"`
}

type SetBalancedRounds struct {
	Balanced bool `json:"balanced"`
}

type SetRoundsImbalance struct {
	Imbalance uint8 `json:"imbalance"`
}

type ProposeGovernor struct {
	Governor pool.Address `json:"governor"`
}

type AcceptGovernance struct{}

type SetHalter struct {
	Halter pool.Address `json:"halter"`
}

type TopUp struct{}

// Unknown stands for any operation the treasury does not understand.
type Unknown struct {
	Name string `json:"-"`
}

func (RequestLoan) Op() Op           { return OpRequestLoan }
func (ParticipateInElection) Op() Op { return OpParticipateInElection }
func (ProcessLoanRequests) Op() Op   { return OpProcessLoanRequests }
func (VsetChanged) Op() Op           { return OpVsetChanged }
func (FinishParticipation) Op() Op   { return OpFinishParticipation }
func (RecoverStakes) Op() Op         { return OpRecoverStakes }
func (RecoverStakeResult) Op() Op    { return OpRecoverStakeResult }
func (NewStakeRejected) Op() Op      { return OpNewStakeRejected }
func (BurnAll) Op() Op               { return OpBurnAll }
func (BillBurned) Op() Op            { return OpBillBurned }
func (RetryDistribute) Op() Op       { return OpRetryDistribute }
func (RetryRecoverStakes) Op() Op    { return OpRetryRecoverStakes }
func (RetryBurnAll) Op() Op          { return OpRetryBurnAll }
func (DepositCoins) Op() Op          { return OpDepositCoins }
func (UnstakeTokens) Op() Op         { return OpUnstakeTokens }
func (WithdrawSurplus) Op() Op       { return OpWithdrawSurplus }
func (SetHalted) Op() Op             { return OpSetHalted }
func (SetStopped) Op() Op            { return OpSetStopped }
func (SetGovernanceFee) Op() Op      { return OpSetGovernanceFee }
func (SetBalancedRounds) Op() Op     { return OpSetBalancedRounds }
func (SetRoundsImbalance) Op() Op    { return OpSetRoundsImbalance }
func (ProposeGovernor) Op() Op       { return OpProposeGovernor }
func (AcceptGovernance) Op() Op      { return OpAcceptGovernance }
func (SetHalter) Op() Op             { return OpSetHalter }
func (TopUp) Op() Op                 { return OpTopUp }
func (u Unknown) Op() Op             { return Op(u.Name) }

func (RequestLoan) inbound()           {}
func (ParticipateInElection) inbound() {}
func (ProcessLoanRequests) inbound()   {}
func (VsetChanged) inbound()           {}
func (FinishParticipation) inbound()   {}
func (RecoverStakes) inbound()         {}
func (RecoverStakeResult) inbound()    {}
func (NewStakeRejected) inbound()      {}
func (BurnAll) inbound()               {}
func (BillBurned) inbound()            {}
func (RetryDistribute) inbound()       {}
func (RetryRecoverStakes) inbound()    {}
func (RetryBurnAll) inbound()          {}
func (DepositCoins) inbound()          {}
func (UnstakeTokens) inbound()         {}
func (WithdrawSurplus) inbound()       {}
func (SetHalted) inbound()             {}
func (SetStopped) inbound()            {}
func (SetGovernanceFee) inbound()      {}
func (SetBalancedRounds) inbound()     {}
func (SetRoundsImbalance) inbound()    {}
func (ProposeGovernor) inbound()       {}
func (AcceptGovernance) inbound()      {}
func (SetHalter) inbound()             {}
func (TopUp) inbound()                 {}
func (Unknown) inbound()               {}

// newInbound returns a pointer to a zero body for op, used by the decoder.
func newInbound(op Op) (any, func(any) Inbound) {
	switch op {
	case OpRequestLoan:
		return deref[RequestLoan]()
	case OpParticipateInElection:
		return deref[ParticipateInElection]()
	case OpProcessLoanRequests:
		return deref[ProcessLoanRequests]()
	case OpVsetChanged:
		return deref[VsetChanged]()
	case OpFinishParticipation:
		return deref[FinishParticipation]()
	case OpRecoverStakes:
		return deref[RecoverStakes]()
	case OpRecoverStakeResult:
		return deref[RecoverStakeResult]()
	case OpNewStakeRejected:
		return deref[NewStakeRejected]()
	case OpBurnAll:
		return deref[BurnAll]()
	case OpBillBurned:
		return deref[BillBurned]()
	case OpRetryDistribute:
		return deref[RetryDistribute]()
	case OpRetryRecoverStakes:
		return deref[RetryRecoverStakes]()
	case OpRetryBurnAll:
		return deref[RetryBurnAll]()
	case OpDepositCoins:
		return deref[DepositCoins]()
	case OpUnstakeTokens:
		return deref[UnstakeTokens]()
	case OpWithdrawSurplus:
		return deref[WithdrawSurplus]()
	case OpSetHalted:
		return deref[SetHalted]()
	case OpSetStopped:
		return deref[SetStopped]()
	case OpSetGovernanceFee:
		return deref[SetGovernanceFee]()
	case OpSetBalancedRounds:
		return deref[SetBalancedRounds]()
	case OpSetRoundsImbalance:
		return deref[SetRoundsImbalance]()
	case OpProposeGovernor:
		return deref[ProposeGovernor]()
	case OpAcceptGovernance:
		return deref[AcceptGovernance]()
	case OpSetHalter:
		return deref[SetHalter]()
	case OpTopUp:
		return deref[TopUp]()
	default:
		return nil, nil
	}
}

func deref[T Inbound]() (any, func(any) Inbound) {
	return new(T), func(v any) Inbound { return *(v.(*T)) }
}
