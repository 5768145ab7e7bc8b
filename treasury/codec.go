// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package treasury

import (
	"io"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/vechain/stakepool/pool"
)

type participationBody struct {
	Round           uint32
	State           Phase
	Requests        []*LoanRequest
	Staked          []*LoanRequest
	Recovering      []*LoanRequest
	Queue           []pool.Address
	Cursor          uint32
	Receipts        []*Receipt
	BurnCursor      uint32
	TotalStaked     *big.Int
	TotalRecovered  *big.Int
	StakeHeldUntil  uint32
	CurrentVsetHash pool.Bytes32
}

type stateBody struct {
	TotalCoins          *big.Int
	TotalTokens         *big.Int
	TotalStaking        *big.Int
	TotalUnstaking      *big.Int
	TotalBorrowersStake *big.Int
	TotalInLoan         *big.Int
	Balance             *big.Int
	LastStaked          *big.Int
	LastRecovered       *big.Int
	RoundsImbalance     uint8
	BalancedRounds      bool
	GovernanceFee       uint16
	Halted              bool
	Stopped             bool
	Governor            pool.Address
	ProposedGovernor    pool.Address
	Halter              pool.Address
	TokenLedger         pool.Address
	ReceiptRegistry     pool.Address
	Self                pool.Address
	Participations      []*Participation
}

// loans flattens a loan map in validator order, so encoding is deterministic.
func loans(m map[pool.Address]*LoanRequest) []*LoanRequest {
	list := make([]*LoanRequest, 0, len(m))
	for _, r := range m {
		list = append(list, r)
	}
	slices.SortFunc(list, func(a, b *LoanRequest) int { return a.Validator.Compare(b.Validator) })
	return list
}

func loanMap(list []*LoanRequest) map[pool.Address]*LoanRequest {
	m := make(map[pool.Address]*LoanRequest, len(list))
	for _, r := range list {
		m[r.Validator] = r
	}
	return m
}

// EncodeRLP implements rlp.Encoder.
func (p *Participation) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &participationBody{
		Round:           p.Round,
		State:           p.State,
		Requests:        loans(p.Requests),
		Staked:          loans(p.Staked),
		Recovering:      loans(p.Recovering),
		Queue:           p.Queue,
		Cursor:          p.Cursor,
		Receipts:        p.Receipts,
		BurnCursor:      p.BurnCursor,
		TotalStaked:     p.TotalStaked,
		TotalRecovered:  p.TotalRecovered,
		StakeHeldUntil:  p.StakeHeldUntil,
		CurrentVsetHash: p.CurrentVsetHash,
	})
}

// DecodeRLP implements rlp.Decoder. The request index is left empty until the
// owning state is reindexed.
func (p *Participation) DecodeRLP(s *rlp.Stream) error {
	var body participationBody
	if err := s.Decode(&body); err != nil {
		return err
	}
	*p = Participation{
		Round:           body.Round,
		State:           body.State,
		Requests:        loanMap(body.Requests),
		Staked:          loanMap(body.Staked),
		Recovering:      loanMap(body.Recovering),
		Queue:           body.Queue,
		Cursor:          body.Cursor,
		Receipts:        body.Receipts,
		BurnCursor:      body.BurnCursor,
		TotalStaked:     pool.Copy(body.TotalStaked),
		TotalRecovered:  pool.Copy(body.TotalRecovered),
		StakeHeldUntil:  body.StakeHeldUntil,
		CurrentVsetHash: body.CurrentVsetHash,
	}
	return nil
}

// EncodeRLP implements rlp.Encoder.
func (s *State) EncodeRLP(w io.Writer) error {
	participations := make([]*Participation, 0, len(s.Participations))
	for _, r := range s.Rounds() {
		participations = append(participations, s.Participations[r])
	}
	return rlp.Encode(w, &stateBody{
		TotalCoins:          s.TotalCoins,
		TotalTokens:         s.TotalTokens,
		TotalStaking:        s.TotalStaking,
		TotalUnstaking:      s.TotalUnstaking,
		TotalBorrowersStake: s.TotalBorrowersStake,
		TotalInLoan:         s.TotalInLoan,
		Balance:             s.Balance,
		LastStaked:          s.LastStaked,
		LastRecovered:       s.LastRecovered,
		RoundsImbalance:     s.RoundsImbalance,
		BalancedRounds:      s.BalancedRounds,
		GovernanceFee:       s.GovernanceFee,
		Halted:              s.Halted,
		Stopped:             s.Stopped,
		Governor:            s.Governor,
		ProposedGovernor:    s.ProposedGovernor,
		Halter:              s.Halter,
		TokenLedger:         s.TokenLedger,
		ReceiptRegistry:     s.ReceiptRegistry,
		Self:                s.Self,
		Participations:      participations,
	})
}

// DecodeRLP implements rlp.Decoder.
func (s *State) DecodeRLP(stream *rlp.Stream) error {
	var body stateBody
	if err := stream.Decode(&body); err != nil {
		return err
	}
	*s = State{
		TotalCoins:          pool.Copy(body.TotalCoins),
		TotalTokens:         pool.Copy(body.TotalTokens),
		TotalStaking:        pool.Copy(body.TotalStaking),
		TotalUnstaking:      pool.Copy(body.TotalUnstaking),
		TotalBorrowersStake: pool.Copy(body.TotalBorrowersStake),
		TotalInLoan:         pool.Copy(body.TotalInLoan),
		Balance:             pool.Copy(body.Balance),
		LastStaked:          pool.Copy(body.LastStaked),
		LastRecovered:       pool.Copy(body.LastRecovered),
		RoundsImbalance:     body.RoundsImbalance,
		BalancedRounds:      body.BalancedRounds,
		GovernanceFee:       body.GovernanceFee,
		Halted:              body.Halted,
		Stopped:             body.Stopped,
		Governor:            body.Governor,
		ProposedGovernor:    body.ProposedGovernor,
		Halter:              body.Halter,
		TokenLedger:         body.TokenLedger,
		ReceiptRegistry:     body.ReceiptRegistry,
		Self:                body.Self,
		Participations:      make(map[uint32]*Participation, len(body.Participations)),
	}
	for _, p := range body.Participations {
		s.Participations[p.Round] = p
	}
	s.Reindex()
	return nil
}

// Ledger returns the state without its participations, as stored in the ledger record.
func (s *State) Ledger() *State {
	cpy := *s
	cpy.Participations = nil
	return &cpy
}

// Hash returns the digest of the encoded state. Equal states have equal hashes.
func (s *State) Hash() (pool.Bytes32, error) {
	data, err := rlp.EncodeToBytes(s)
	if err != nil {
		return pool.Bytes32{}, err
	}
	return pool.Blake2b(data), nil
}
