// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package treasury

import (
	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/treasury/msg"
	"github.com/vechain/stakepool/treasury/reverts"
)

func (c *call) withdrawSurplus() error {
	if err := c.requireGovernor(); err != nil {
		return err
	}
	surplus := c.state.Surplus()
	if surplus.Sign() <= 0 {
		return reverts.New(reverts.InsufficientFunds, "no surplus")
	}
	c.emit(msg.SurplusPayout{To: c.state.Governor, Value: surplus})
	return nil
}

func (c *call) setHalted(m msg.SetHalted) error {
	if err := c.requireSender(c.state.Halter, "halter"); err != nil {
		return err
	}
	c.state.Halted = m.Halted
	logger.Warn("halted flag changed", "halted", m.Halted)
	return nil
}

func (c *call) setStopped(m msg.SetStopped) error {
	if err := c.requireGovernor(); err != nil {
		return err
	}
	c.state.Stopped = m.Stopped
	return nil
}

func (c *call) setGovernanceFee(m msg.SetGovernanceFee) error {
	if err := c.requireGovernor(); err != nil {
		return err
	}
	c.state.GovernanceFee = m.Fee
	return nil
}

// setBalancedRounds switches the primary term of the sort key, so every open
// request is re-keyed.
func (c *call) setBalancedRounds(m msg.SetBalancedRounds) error {
	if err := c.requireGovernor(); err != nil {
		return err
	}
	c.state.BalancedRounds = m.Balanced
	for _, p := range c.state.Participations {
		p.reindex(m.Balanced)
	}
	return nil
}

func (c *call) setRoundsImbalance(m msg.SetRoundsImbalance) error {
	if err := c.requireGovernor(); err != nil {
		return err
	}
	c.state.RoundsImbalance = m.Imbalance
	return nil
}

func (c *call) proposeGovernor(m msg.ProposeGovernor) error {
	if err := c.requireGovernor(); err != nil {
		return err
	}
	c.state.ProposedGovernor = m.Governor
	return nil
}

func (c *call) acceptGovernance() error {
	if err := c.requireSender(c.state.ProposedGovernor, "proposed governor"); err != nil {
		return err
	}
	c.state.Governor = c.state.ProposedGovernor
	c.state.ProposedGovernor = pool.Address{}
	logger.Info("governance transferred", "governor", c.state.Governor)
	return nil
}

func (c *call) setHalter(m msg.SetHalter) error {
	if err := c.requireGovernor(); err != nil {
		return err
	}
	c.state.Halter = m.Halter
	return nil
}
