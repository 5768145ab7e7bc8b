// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package treasury

import (
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/treasury/sortkey"
	"github.com/vechain/stakepool/treasury/sorted"
)

type Phase = uint8

const (
	PhaseOpen         = Phase(iota) // accepting loan requests
	PhaseDistributing               // forwarding accepted loans to proxies
	PhaseStaked                     // every loan forwarded, waiting for the election result
	PhaseValidating                 // the committee elected with our stake is live
	PhaseHeld                       // that committee was replaced, stake held until StakeHeldUntil
	PhaseRecovering                 // collecting stakes back from the proxies
	PhaseBurning                    // profit settled, burning receipts
)

var phaseNames = []string{"open", "distributing", "staked", "validating", "held", "recovering", "burning"}

// PhaseName returns the lower case name of a phase.
func PhaseName(p Phase) string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// PhaseNames returns the names of every phase in lifecycle order.
func PhaseNames() []string {
	return slices.Clone(phaseNames)
}

// LoanRequest is a validator's bid for a loan in a round. After selection it
// tracks the loan through staking and recovery.
type LoanRequest struct {
	Validator   pool.Address  `json:"validator"`
	LoanAmount  *big.Int      `json:"loanAmount"`
	MinPayment  *big.Int      `json:"minPayment"`
	RewardShare uint8         `json:"rewardShare"` // out of 255
	Stake       *big.Int      `json:"stake"`       // validator's own escrow, covers the worst case punishment
	ElectorMsg  hexutil.Bytes `json:"electorMsg"`
	Attempts    uint32        `json:"attempts"` // recover attempts in the current pass
	Parked      bool          `json:"parked"`   // recovery gave up until the next retry
}

// Committed returns the amount the request locks in the election.
func (r *LoanRequest) Committed() *big.Int {
	return new(big.Int).Add(r.LoanAmount, r.Stake)
}

func (r *LoanRequest) rank() *sortkey.Request {
	return &sortkey.Request{
		Validator:   r.Validator,
		LoanAmount:  r.LoanAmount,
		Stake:       r.Stake,
		MinPayment:  r.MinPayment,
		RewardShare: r.RewardShare,
	}
}

func (r *LoanRequest) copy() *LoanRequest {
	cpy := *r
	cpy.LoanAmount = pool.Copy(r.LoanAmount)
	cpy.MinPayment = pool.Copy(r.MinPayment)
	cpy.Stake = pool.Copy(r.Stake)
	cpy.ElectorMsg = slices.Clone(r.ElectorMsg)
	return &cpy
}

// Receipt tracks a deposit or an unstake that arrived while the round's funds were locked.
// Amount is in coins for deposits and in tokens for unstakes.
type Receipt struct {
	Index     uint32       `json:"index"`
	Owner     pool.Address `json:"owner"`
	Unstaking bool         `json:"unstaking"`
	Amount    *big.Int     `json:"amount"`
	Settled   bool         `json:"settled"`
}

// Participation is the treasury's involvement in one election round, keyed by
// the round start time.
type Participation struct {
	Round uint32 `json:"round"`
	State Phase  `json:"state"`

	Requests   map[pool.Address]*LoanRequest `json:"requests"`   // open requests
	Staked     map[pool.Address]*LoanRequest `json:"staked"`     // loans forwarded to proxies
	Recovering map[pool.Address]*LoanRequest `json:"recovering"` // loans awaiting their recovery result

	Queue  []pool.Address `json:"queue"`  // frozen iteration order of the running batch
	Cursor uint32         `json:"cursor"` // next queue position of the running batch
	Size   uint32         `json:"size"`   // entries left in the active sub-map

	Receipts   []*Receipt `json:"receipts"`
	BurnCursor uint32     `json:"burnCursor"`

	TotalStaked     *big.Int     `json:"totalStaked"`
	TotalRecovered  *big.Int     `json:"totalRecovered"`
	StakeHeldUntil  uint32       `json:"stakeHeldUntil"`
	CurrentVsetHash pool.Bytes32 `json:"currentVsetHash"`

	sorted *sorted.Index
}

func newParticipation(round uint32) *Participation {
	return &Participation{
		Round:          round,
		State:          PhaseOpen,
		Requests:       make(map[pool.Address]*LoanRequest),
		Staked:         make(map[pool.Address]*LoanRequest),
		Recovering:     make(map[pool.Address]*LoanRequest),
		TotalStaked:    new(big.Int),
		TotalRecovered: new(big.Int),
		sorted:         sorted.New(),
	}
}

// Sorted returns the open requests from the best to the worst.
func (p *Participation) Sorted() []pool.Address {
	return p.sorted.Validators()
}

// active reports whether the round holds pool funds.
func (p *Participation) active() bool {
	return p.State >= PhaseDistributing && p.State <= PhaseRecovering
}

func (p *Participation) unsettled() uint32 {
	var n uint32
	for _, r := range p.Receipts {
		if !r.Settled {
			n++
		}
	}
	return n
}

func (p *Participation) resize() {
	switch p.State {
	case PhaseOpen:
		p.Size = uint32(len(p.Requests))
	case PhaseDistributing:
		p.Size = uint32(len(p.Queue)) - p.Cursor
	case PhaseStaked, PhaseValidating, PhaseHeld:
		p.Size = uint32(len(p.Staked))
	case PhaseRecovering:
		p.Size = uint32(len(p.Recovering))
	case PhaseBurning:
		p.Size = p.unsettled()
	}
}

func (p *Participation) reindex(balanced bool) {
	p.sorted = sorted.New()
	for v, r := range p.Requests {
		p.sorted.Insert(v, sortkey.Compute(r.rank(), balanced))
	}
}

func (p *Participation) copy(balanced bool) *Participation {
	cpy := *p
	cpy.Requests = copyLoans(p.Requests)
	cpy.Staked = copyLoans(p.Staked)
	cpy.Recovering = copyLoans(p.Recovering)
	cpy.Queue = slices.Clone(p.Queue)
	cpy.Receipts = make([]*Receipt, 0, len(p.Receipts))
	for _, r := range p.Receipts {
		rc := *r
		rc.Amount = pool.Copy(r.Amount)
		cpy.Receipts = append(cpy.Receipts, &rc)
	}
	cpy.TotalStaked = pool.Copy(p.TotalStaked)
	cpy.TotalRecovered = pool.Copy(p.TotalRecovered)
	cpy.reindex(balanced)
	return &cpy
}

func copyLoans(m map[pool.Address]*LoanRequest) map[pool.Address]*LoanRequest {
	cpy := make(map[pool.Address]*LoanRequest, len(m))
	for k, v := range m {
		cpy[k] = v.copy()
	}
	return cpy
}

// State is the pool ledger. It owns every participation.
type State struct {
	TotalCoins          *big.Int `json:"totalCoins"`          // coins backing the claim-tokens
	TotalTokens         *big.Int `json:"totalTokens"`         // claim-tokens issued
	TotalStaking        *big.Int `json:"totalStaking"`        // deposits waiting for their round to finish
	TotalUnstaking      *big.Int `json:"totalUnstaking"`      // tokens waiting for their round to finish
	TotalBorrowersStake *big.Int `json:"totalBorrowersStake"` // validator escrow of open requests
	TotalInLoan         *big.Int `json:"totalInLoan"`         // pool coins lent to validators
	Balance             *big.Int `json:"balance"`             // coins held by the treasury
	LastStaked          *big.Int `json:"lastStaked"`
	LastRecovered       *big.Int `json:"lastRecovered"`

	RoundsImbalance uint8  `json:"roundsImbalance"`
	BalancedRounds  bool   `json:"balancedRounds"`
	GovernanceFee   uint16 `json:"governanceFee"` // out of 65536
	Halted          bool   `json:"halted"`
	Stopped         bool   `json:"stopped"`

	Governor         pool.Address `json:"governor"`
	ProposedGovernor pool.Address `json:"proposedGovernor"`
	Halter           pool.Address `json:"halter"`
	TokenLedger      pool.Address `json:"tokenLedger"`
	ReceiptRegistry  pool.Address `json:"receiptRegistry"`
	Self             pool.Address `json:"self"`

	Participations map[uint32]*Participation `json:"participations"`
}

// Roles lists the addresses a treasury interacts with.
type Roles struct {
	Self            pool.Address `yaml:"self"`
	Governor        pool.Address `yaml:"governor"`
	Halter          pool.Address `yaml:"halter"`
	TokenLedger     pool.Address `yaml:"token-ledger"`
	ReceiptRegistry pool.Address `yaml:"receipt-registry"`
}

// NewState creates an empty ledger.
func NewState(roles Roles) *State {
	return &State{
		TotalCoins:          new(big.Int),
		TotalTokens:         new(big.Int),
		TotalStaking:        new(big.Int),
		TotalUnstaking:      new(big.Int),
		TotalBorrowersStake: new(big.Int),
		TotalInLoan:         new(big.Int),
		Balance:             new(big.Int),
		LastStaked:          new(big.Int),
		LastRecovered:       new(big.Int),
		RoundsImbalance:     255,
		BalancedRounds:      true,
		Governor:            roles.Governor,
		Halter:              roles.Halter,
		TokenLedger:         roles.TokenLedger,
		ReceiptRegistry:     roles.ReceiptRegistry,
		Self:                roles.Self,
		Participations:      make(map[uint32]*Participation),
	}
}

// TotalValue is the value owned by depositors, settled or not.
func (s *State) TotalValue() *big.Int {
	return new(big.Int).Add(s.TotalCoins, s.TotalStaking)
}

// obligations is what the balance must cover at all times: the free pool
// coins, pending deposits, validator escrow and stakes already recovered in
// rounds that are not settled yet.
func (s *State) obligations() *big.Int {
	o := new(big.Int).Sub(s.TotalCoins, s.TotalInLoan)
	o.Add(o, s.TotalStaking)
	o.Add(o, s.TotalBorrowersStake)
	for _, p := range s.Participations {
		if p.State == PhaseRecovering {
			o.Add(o, p.TotalRecovered)
		}
	}
	return o
}

// Surplus is the part of the balance no one has a claim on, such as fees.
func (s *State) Surplus() *big.Int {
	return new(big.Int).Sub(s.Balance, s.obligations())
}

// TokensToCoins converts tokens at the current rate.
func (s *State) TokensToCoins(tokens *big.Int) *big.Int {
	return pool.MulDiv(tokens, s.TotalCoins, s.TotalTokens)
}

// CoinsToTokens converts coins at the current rate. An empty pool mints one token per coin.
func (s *State) CoinsToTokens(coins *big.Int) *big.Int {
	if s.TotalCoins.Sign() == 0 || s.TotalTokens.Sign() == 0 {
		return new(big.Int).Set(coins)
	}
	return pool.MulDiv(coins, s.TotalTokens, s.TotalCoins)
}

// Rounds returns the keys of all participations in ascending order.
func (s *State) Rounds() []uint32 {
	rounds := make([]uint32, 0, len(s.Participations))
	for r := range s.Participations {
		rounds = append(rounds, r)
	}
	slices.Sort(rounds)
	return rounds
}

// Reindex rebuilds the ordered request index of every participation.
func (s *State) Reindex() {
	for _, p := range s.Participations {
		p.reindex(s.BalancedRounds)
		p.resize()
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	cpy := *s
	for _, v := range []**big.Int{
		&cpy.TotalCoins, &cpy.TotalTokens, &cpy.TotalStaking, &cpy.TotalUnstaking,
		&cpy.TotalBorrowersStake, &cpy.TotalInLoan, &cpy.Balance, &cpy.LastStaked, &cpy.LastRecovered,
	} {
		*v = pool.Copy(*v)
	}
	cpy.Participations = make(map[uint32]*Participation, len(s.Participations))
	for r, p := range s.Participations {
		cpy.Participations[r] = p.copy(s.BalancedRounds)
	}
	return &cpy
}

// Check reconciles the ledger totals against each other and against the participations.
func (s *State) Check() error {
	for name, v := range map[string]*big.Int{
		"total coins":           s.TotalCoins,
		"total tokens":          s.TotalTokens,
		"total staking":         s.TotalStaking,
		"total unstaking":       s.TotalUnstaking,
		"total borrowers stake": s.TotalBorrowersStake,
		"total in loan":         s.TotalInLoan,
		"balance":               s.Balance,
	} {
		if v == nil || v.Sign() < 0 {
			return errors.Errorf("%s is negative", name)
		}
	}
	if s.TotalInLoan.Cmp(s.TotalCoins) > 0 {
		return errors.New("total in loan exceeds total coins")
	}
	if s.TotalUnstaking.Cmp(s.TotalTokens) > 0 {
		return errors.New("total unstaking exceeds total tokens")
	}
	committed := new(big.Int).Add(s.TotalStaking, s.TokensToCoins(s.TotalUnstaking))
	committed.Add(committed, s.TotalInLoan)
	if committed.Cmp(s.TotalValue()) > 0 {
		return errors.Errorf("staking, unstaking and loans %v exceed total value %v", committed, s.TotalValue())
	}
	if s.Surplus().Sign() < 0 {
		return errors.Errorf("balance %v does not cover obligations %v", s.Balance, s.obligations())
	}

	var (
		inLoan    = new(big.Int)
		escrow    = new(big.Int)
		staking   = new(big.Int)
		unstaking = new(big.Int)
	)
	for round, p := range s.Participations {
		if p.Round != round {
			return errors.Errorf("participation %d stored under %d", p.Round, round)
		}
		if p.active() {
			inLoan.Add(inLoan, p.TotalStaked)
		}
		for _, r := range p.Requests {
			escrow.Add(escrow, r.Stake)
		}
		for _, r := range p.Receipts {
			if r.Settled {
				continue
			}
			if r.Unstaking {
				unstaking.Add(unstaking, r.Amount)
			} else {
				staking.Add(staking, r.Amount)
			}
		}
	}
	if inLoan.Cmp(s.TotalInLoan) != 0 {
		return errors.Errorf("participations hold %v in loan, ledger %v", inLoan, s.TotalInLoan)
	}
	if escrow.Cmp(s.TotalBorrowersStake) != 0 {
		return errors.Errorf("requests escrow %v, ledger %v", escrow, s.TotalBorrowersStake)
	}
	if staking.Cmp(s.TotalStaking) != 0 {
		return errors.Errorf("receipts stake %v, ledger %v", staking, s.TotalStaking)
	}
	if unstaking.Cmp(s.TotalUnstaking) != 0 {
		return errors.Errorf("receipts unstake %v, ledger %v", unstaking, s.TotalUnstaking)
	}
	return nil
}
