// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package treasury

import (
	"slices"

	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/treasury/msg"
	"github.com/vechain/stakepool/treasury/reverts"
)

// vsetChanged advances a round on a committee change. The committee elected with
// our stake going live moves it to validating, and that committee being replaced
// moves it to held. A report arriving after later rotations moves the round as
// far as the current committee allows, holding the stake from the start of the
// current committee. An open round whose election already started failed to
// participate and refunds every request.
func (c *call) vsetChanged(m msg.VsetChanged) error {
	if !c.snap.Consecutive() {
		return reverts.New(reverts.InvalidPhase, "validator sets are not consecutive")
	}
	p, err := c.participation(m.Round, PhaseOpen, PhaseStaked, PhaseValidating)
	if err != nil {
		return err
	}
	curr := &c.snap.Curr

	switch p.State {
	case PhaseOpen:
		if !c.snap.Started(p.Round) {
			return reverts.Newf(reverts.InvalidPhase, "round %d has not started", p.Round)
		}
		logger.Info("election missed, refunding requests", "round", p.Round, "requests", len(p.Requests))
		c.startDistributing(p)
		return c.processLoanRequests(p.Round, 0)

	case PhaseStaked:
		switch {
		case curr.Since == p.Round:
			p.CurrentVsetHash = curr.Hash
			p.State = PhaseValidating
			logger.Debug("round validating", "round", p.Round, "vset", p.CurrentVsetHash)
		case curr.Since > p.Round:
			// the committee went live and was replaced before anyone told us
			c.hold(p)
		default:
			return reverts.Newf(reverts.InvalidPhase, "committee of round %d is not live", p.Round)
		}

	case PhaseValidating:
		if curr.Since <= p.Round || curr.Hash == p.CurrentVsetHash {
			return reverts.Newf(reverts.InvalidPhase, "committee of round %d is still live", p.Round)
		}
		c.hold(p)
	}
	return nil
}

func (c *call) hold(p *Participation) {
	p.State = PhaseHeld
	p.StakeHeldUntil = c.snap.Curr.Since + c.snap.Config.StakeHeldFor
	logger.Debug("round held", "round", p.Round, "until", p.StakeHeldUntil)
}

// finishParticipation starts recovering the stakes of a held round once the
// hold period is over.
func (c *call) finishParticipation(m msg.FinishParticipation) error {
	p, err := c.participation(m.Round, PhaseHeld)
	if err != nil {
		return err
	}
	if c.snap.Now < p.StakeHeldUntil {
		return reverts.Newf(reverts.InvalidPhase, "round %d stake held until %d", p.Round, p.StakeHeldUntil)
	}

	p.State = PhaseRecovering
	p.Recovering = p.Staked
	p.Staked = make(map[pool.Address]*LoanRequest)
	p.Queue = make([]pool.Address, 0, len(p.Recovering))
	for v := range p.Recovering {
		p.Queue = append(p.Queue, v)
	}
	slices.SortFunc(p.Queue, pool.Address.Compare)
	p.Cursor = 0

	logger.Info("recovering stakes", "round", p.Round, "loans", len(p.Queue))
	return c.recoverStakes(p.Round, 0)
}
