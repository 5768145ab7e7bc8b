// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"bytes"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/treasury"
)

// Treasury is the ledger summary served at the mount point.
type Treasury struct {
	Seq                 uint64                `json:"seq"`
	StateHash           pool.Bytes32          `json:"stateHash"`
	TotalCoins          *math.HexOrDecimal256 `json:"totalCoins"`
	TotalTokens         *math.HexOrDecimal256 `json:"totalTokens"`
	TotalStaking        *math.HexOrDecimal256 `json:"totalStaking"`
	TotalUnstaking      *math.HexOrDecimal256 `json:"totalUnstaking"`
	TotalBorrowersStake *math.HexOrDecimal256 `json:"totalBorrowersStake"`
	TotalInLoan         *math.HexOrDecimal256 `json:"totalInLoan"`
	Balance             *math.HexOrDecimal256 `json:"balance"`
	Surplus             *math.HexOrDecimal256 `json:"surplus"`
	LastStaked          *math.HexOrDecimal256 `json:"lastStaked"`
	LastRecovered       *math.HexOrDecimal256 `json:"lastRecovered"`
	RoundsImbalance     uint8                 `json:"roundsImbalance"`
	BalancedRounds      bool                  `json:"balancedRounds"`
	GovernanceFee       uint16                `json:"governanceFee"`
	Halted              bool                  `json:"halted"`
	Stopped             bool                  `json:"stopped"`
	Self                pool.Address          `json:"self"`
	Governor            pool.Address          `json:"governor"`
	ProposedGovernor    pool.Address          `json:"proposedGovernor"`
	Halter              pool.Address          `json:"halter"`
	TokenLedger         pool.Address          `json:"tokenLedger"`
	ReceiptRegistry     pool.Address          `json:"receiptRegistry"`
	Rounds              []uint32              `json:"rounds"`
}

// Participation summarizes one round.
type Participation struct {
	Round           uint32                `json:"round"`
	Phase           string                `json:"phase"`
	Size            uint32                `json:"size"`
	Requests        int                   `json:"requests"`
	Staked          int                   `json:"staked"`
	Recovering      int                   `json:"recovering"`
	Receipts        int                   `json:"receipts"`
	TotalStaked     *math.HexOrDecimal256 `json:"totalStaked"`
	TotalRecovered  *math.HexOrDecimal256 `json:"totalRecovered"`
	StakeHeldUntil  uint32                `json:"stakeHeldUntil"`
	CurrentVsetHash pool.Bytes32          `json:"currentVsetHash"`
}

// Loan is a loan request or a granted loan.
type Loan struct {
	Validator   pool.Address          `json:"validator"`
	Proxy       pool.Address          `json:"proxy"`
	LoanAmount  *math.HexOrDecimal256 `json:"loanAmount"`
	MinPayment  *math.HexOrDecimal256 `json:"minPayment"`
	Stake       *math.HexOrDecimal256 `json:"stake"`
	RewardShare uint8                 `json:"rewardShare"`
	ElectorMsg  hexutil.Bytes         `json:"electorMsg,omitempty"`
	Attempts    uint32                `json:"attempts,omitempty"`
	Parked      bool                  `json:"parked,omitempty"`
}

type Receipt struct {
	Index     uint32                `json:"index"`
	Owner     pool.Address          `json:"owner"`
	Unstaking bool                  `json:"unstaking"`
	Amount    *math.HexOrDecimal256 `json:"amount"`
	Settled   bool                  `json:"settled"`
}

// ParticipationDetail lists the loans and receipts of a round. Open requests
// are in rank order, the other loans in address order.
type ParticipationDetail struct {
	Participation
	Requests   []*Loan    `json:"requests"`
	Staked     []*Loan    `json:"staked"`
	Recovering []*Loan    `json:"recovering"`
	Receipts   []*Receipt `json:"receipts"`
}

func hexOrDecimal(v *big.Int) *math.HexOrDecimal256 {
	return (*math.HexOrDecimal256)(pool.Copy(v))
}

func convertTreasury(s *treasury.State, seq uint64, hash pool.Bytes32) *Treasury {
	return &Treasury{
		Seq:                 seq,
		StateHash:           hash,
		TotalCoins:          hexOrDecimal(s.TotalCoins),
		TotalTokens:         hexOrDecimal(s.TotalTokens),
		TotalStaking:        hexOrDecimal(s.TotalStaking),
		TotalUnstaking:      hexOrDecimal(s.TotalUnstaking),
		TotalBorrowersStake: hexOrDecimal(s.TotalBorrowersStake),
		TotalInLoan:         hexOrDecimal(s.TotalInLoan),
		Balance:             hexOrDecimal(s.Balance),
		Surplus:             hexOrDecimal(s.Surplus()),
		LastStaked:          hexOrDecimal(s.LastStaked),
		LastRecovered:       hexOrDecimal(s.LastRecovered),
		RoundsImbalance:     s.RoundsImbalance,
		BalancedRounds:      s.BalancedRounds,
		GovernanceFee:       s.GovernanceFee,
		Halted:              s.Halted,
		Stopped:             s.Stopped,
		Self:                s.Self,
		Governor:            s.Governor,
		ProposedGovernor:    s.ProposedGovernor,
		Halter:              s.Halter,
		TokenLedger:         s.TokenLedger,
		ReceiptRegistry:     s.ReceiptRegistry,
		Rounds:              s.Rounds(),
	}
}

func convertParticipation(p *treasury.Participation) *Participation {
	return &Participation{
		Round:           p.Round,
		Phase:           treasury.PhaseName(p.State),
		Size:            p.Size,
		Requests:        len(p.Requests),
		Staked:          len(p.Staked),
		Recovering:      len(p.Recovering),
		Receipts:        len(p.Receipts),
		TotalStaked:     hexOrDecimal(p.TotalStaked),
		TotalRecovered:  hexOrDecimal(p.TotalRecovered),
		StakeHeldUntil:  p.StakeHeldUntil,
		CurrentVsetHash: p.CurrentVsetHash,
	}
}

func convertLoan(self pool.Address, round uint32, r *treasury.LoanRequest) *Loan {
	return &Loan{
		Validator:   r.Validator,
		Proxy:       pool.ProxyAddress(self, r.Validator, round),
		LoanAmount:  hexOrDecimal(r.LoanAmount),
		MinPayment:  hexOrDecimal(r.MinPayment),
		Stake:       hexOrDecimal(r.Stake),
		RewardShare: r.RewardShare,
		ElectorMsg:  slices.Clone(r.ElectorMsg),
		Attempts:    r.Attempts,
		Parked:      r.Parked,
	}
}

func convertLoans(self pool.Address, round uint32, loans map[pool.Address]*treasury.LoanRequest) []*Loan {
	out := make([]*Loan, 0, len(loans))
	for _, r := range loans {
		out = append(out, convertLoan(self, round, r))
	}
	slices.SortFunc(out, func(a, b *Loan) int {
		return bytes.Compare(a.Validator[:], b.Validator[:])
	})
	return out
}

func convertDetail(self pool.Address, p *treasury.Participation) *ParticipationDetail {
	d := &ParticipationDetail{
		Participation: *convertParticipation(p),
		Requests:      make([]*Loan, 0, len(p.Requests)),
		Staked:        convertLoans(self, p.Round, p.Staked),
		Recovering:    convertLoans(self, p.Round, p.Recovering),
		Receipts:      make([]*Receipt, 0, len(p.Receipts)),
	}
	for _, v := range p.Sorted() {
		d.Requests = append(d.Requests, convertLoan(self, p.Round, p.Requests[v]))
	}
	for _, r := range p.Receipts {
		d.Receipts = append(d.Receipts, &Receipt{
			Index:     r.Index,
			Owner:     r.Owner,
			Unstaking: r.Unstaking,
			Amount:    hexOrDecimal(r.Amount),
			Settled:   r.Settled,
		})
	}
	return d
}
