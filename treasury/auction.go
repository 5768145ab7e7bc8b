// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package treasury

import (
	"math/big"
	"slices"

	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/treasury/msg"
	"github.com/vechain/stakepool/treasury/reverts"
	"github.com/vechain/stakepool/treasury/sortkey"
)

func (c *call) maxLoans() int {
	return int(c.snap.MaxLoans(c.params.MaxLoansPerRound))
}

// requestLoan places or replaces the sender's bid in the round being elected.
// The value attached, minus the request fee, is escrowed as the validator's own stake.
func (c *call) requestLoan(m msg.RequestLoan) error {
	if c.state.Stopped {
		return reverts.New(reverts.InvalidPhase, "treasury does not accept new loans")
	}
	if !c.snap.WindowOpen() {
		return reverts.New(reverts.InvalidPhase, "election window is closed")
	}
	if m.Round != c.snap.NextRound() {
		return reverts.Newf(reverts.InvalidRequest, "round %d is not being elected", m.Round)
	}
	if m.LoanAmount == nil || m.LoanAmount.Sign() <= 0 {
		return reverts.New(reverts.InvalidRequest, "loan amount must be positive")
	}
	minPayment := pool.Copy(m.MinPayment)
	if minPayment.Sign() < 0 {
		return reverts.New(reverts.InvalidRequest, "min payment is negative")
	}

	value := c.env.Value
	if value.Cmp(c.params.RequestLoanFee) <= 0 {
		return reverts.New(reverts.InsufficientFunds, "value does not cover the request fee")
	}
	stake := new(big.Int).Sub(value, c.params.RequestLoanFee)
	cfg := &c.snap.Config
	if stake.Cmp(pool.Copy(cfg.MaxPunishment)) < 0 {
		return reverts.New(reverts.InsufficientFunds, "stake does not cover the max punishment")
	}
	committed := new(big.Int).Add(stake, m.LoanAmount)
	if committed.Cmp(pool.Copy(cfg.MinStake)) < 0 {
		return reverts.New(reverts.InvalidRequest, "committed stake below the election minimum")
	}
	if cfg.MaxStake != nil && committed.Cmp(cfg.MaxStake) > 0 {
		return reverts.New(reverts.InvalidRequest, "committed stake above the election maximum")
	}

	p, ok := c.state.Participations[m.Round]
	if !ok {
		p = newParticipation(m.Round)
		c.state.Participations[m.Round] = p
	} else if p.State != PhaseOpen {
		return reverts.Newf(reverts.InvalidPhase, "round %d is %s", m.Round, PhaseName(p.State))
	}

	validator := c.env.Sender
	if old, ok := p.Requests[validator]; ok {
		c.dropRequest(p, old, "request replaced")
	}

	req := &LoanRequest{
		Validator:   validator,
		LoanAmount:  new(big.Int).Set(m.LoanAmount),
		MinPayment:  minPayment,
		RewardShare: m.RewardShare,
		Stake:       stake,
		ElectorMsg:  slices.Clone(m.ElectorMsg),
	}
	p.Requests[validator] = req
	p.sorted.Insert(validator, sortkey.Compute(req.rank(), c.state.BalancedRounds))
	c.state.TotalBorrowersStake.Add(c.state.TotalBorrowersStake, stake)

	if p.sorted.Len() > c.maxLoans() {
		worst, _, _ := p.sorted.Worst()
		if worst == validator {
			metricLoans().AddWithLabel(1, map[string]string{"decision": "outbid"})
			return reverts.Newf(reverts.CapacityExceeded, "round %d has %d better requests", m.Round, c.maxLoans())
		}
		metricLoans().AddWithLabel(1, map[string]string{"decision": "evicted"})
		logger.Debug("loan request evicted", "round", m.Round, "validator", worst)
		c.dropRequest(p, p.Requests[worst], "outbid")
	}

	metricLoans().AddWithLabel(1, map[string]string{"decision": "requested"})
	logger.Debug("loan requested", "round", m.Round, "validator", validator, "loan", m.LoanAmount, "requests", p.sorted.Len())
	return nil
}

// dropRequest removes an open request and releases its escrow.
func (c *call) dropRequest(p *Participation, req *LoanRequest, reason string) {
	delete(p.Requests, req.Validator)
	p.sorted.Remove(req.Validator)
	c.state.TotalBorrowersStake.Sub(c.state.TotalBorrowersStake, req.Stake)
	c.refund(req.Validator, req.Stake, reason)
}

// participateInElection closes the auction of a round and starts forwarding the
// selected loans.
func (c *call) participateInElection(m msg.ParticipateInElection) error {
	p, err := c.participation(m.Round, PhaseOpen)
	if err != nil {
		return err
	}
	if m.Round != c.snap.NextRound() || !c.snap.WindowOpen() {
		return reverts.Newf(reverts.InvalidPhase, "round %d is not accepting stakes", m.Round)
	}
	c.startDistributing(p)
	return c.processLoanRequests(p.Round, 0)
}

// startDistributing freezes the order of the open requests.
func (c *call) startDistributing(p *Participation) {
	p.State = PhaseDistributing
	p.Queue = p.sorted.Validators()
	p.Cursor = 0
	logger.Debug("distributing loans", "round", p.Round, "requests", len(p.Queue))
}

// available returns how much more the pool may lend in round p: the round's
// share of the pool less what other rounds borrowed, bounded by the free coins.
func (c *call) available(p *Participation) *big.Int {
	s := c.state
	others := new(big.Int).Sub(s.TotalInLoan, p.TotalStaked)
	share := pool.MulDiv(s.TotalCoins, big.NewInt(255+int64(s.RoundsImbalance)), big.NewInt(510))
	share.Sub(share, others)
	share.Sub(share, p.TotalStaked)

	free := new(big.Int).Sub(s.TotalCoins, s.TotalInLoan)
	free.Sub(free, s.TokensToCoins(s.TotalUnstaking))

	avail := pool.Min(share, free)
	if avail.Sign() < 0 {
		return new(big.Int)
	}
	return avail
}

// processLoanRequests walks the frozen queue from start, funding requests in
// rank order while there is committee room and money, and refunding the rest.
// A start that does not match the persisted cursor is a stale continuation and is ignored.
func (c *call) processLoanRequests(round uint32, start uint32) error {
	p, ok := c.state.Participations[round]
	if !ok || p.State != PhaseDistributing || p.Cursor != start {
		return nil
	}

	emitted := 0
	for int(p.Cursor) < len(p.Queue) && emitted < c.budget() {
		validator := p.Queue[p.Cursor]
		p.Cursor++

		req, ok := p.Requests[validator]
		if !ok {
			continue
		}
		delete(p.Requests, validator)
		p.sorted.Remove(validator)
		c.state.TotalBorrowersStake.Sub(c.state.TotalBorrowersStake, req.Stake)
		emitted++

		if !c.snap.Started(p.Round) && len(p.Staked) < c.maxLoans() && req.LoanAmount.Cmp(c.available(p)) <= 0 {
			p.Staked[validator] = req
			p.TotalStaked.Add(p.TotalStaked, req.LoanAmount)
			c.state.TotalInLoan.Add(c.state.TotalInLoan, req.LoanAmount)
			c.emit(msg.NewStake{
				Proxy:      pool.ProxyAddress(c.state.Self, validator, p.Round),
				Validator:  validator,
				Round:      p.Round,
				Value:      req.Committed(),
				ElectorMsg: slices.Clone(req.ElectorMsg),
			})
			metricLoans().AddWithLabel(1, map[string]string{"decision": "accepted"})
			continue
		}
		c.refund(validator, req.Stake, "loan not granted")
		metricLoans().AddWithLabel(1, map[string]string{"decision": "rejected"})
	}
	metricBatchSize().Observe(int64(emitted))

	if int(p.Cursor) < len(p.Queue) {
		c.resume(msg.ProcessLoanRequests{Round: p.Round, Start: p.Cursor})
		return nil
	}

	p.Queue = nil
	p.Cursor = 0
	if len(p.Staked) == 0 {
		logger.Info("no loan granted", "round", p.Round)
		return c.enterBurning(p)
	}
	p.State = PhaseStaked
	logger.Info("loans distributed", "round", p.Round, "loans", len(p.Staked), "staked", pool.FormatCoins(p.TotalStaked))
	return nil
}
