// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package treasury

import (
	"math/big"

	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/treasury/msg"
	"github.com/vechain/stakepool/treasury/reverts"
)

var (
	shareDenominator      = big.NewInt(255)
	governanceDenominator = big.NewInt(65536)
)

// recoverStakes asks the proxies in the queue, from start on, to reclaim their stake.
func (c *call) recoverStakes(round uint32, start uint32) error {
	p, ok := c.state.Participations[round]
	if !ok || p.State != PhaseRecovering || p.Cursor != start {
		return nil
	}

	emitted := 0
	for int(p.Cursor) < len(p.Queue) && emitted < c.budget() {
		validator := p.Queue[p.Cursor]
		p.Cursor++

		loan, ok := p.Recovering[validator]
		if !ok {
			continue
		}
		loan.Attempts++
		c.emit(msg.RecoverStake{
			Proxy:     pool.ProxyAddress(c.state.Self, validator, p.Round),
			Validator: validator,
			Round:     p.Round,
		})
		emitted++
	}
	metricBatchSize().Observe(int64(emitted))

	if int(p.Cursor) < len(p.Queue) {
		c.resume(msg.RecoverStakes{Round: p.Round, Start: p.Cursor})
	}
	return nil
}

// Split divides what a proxy returned between the pool and the validator. The
// pool is owed the loan plus its fee: the min payment, plus the agreed share
// of the profit above it. A loss is borne by the validator's stake first.
func Split(loan *LoanRequest, returned *big.Int) (toPool, toValidator *big.Int) {
	profit := new(big.Int).Sub(returned, loan.Committed())

	fee := new(big.Int).Set(loan.MinPayment)
	if profit.Cmp(loan.MinPayment) > 0 {
		extra := new(big.Int).Sub(profit, loan.MinPayment)
		fee.Add(fee, pool.MulDiv(extra, big.NewInt(int64(loan.RewardShare)), shareDenominator))
	}

	owed := new(big.Int).Add(loan.LoanAmount, fee)
	toPool = pool.Min(returned, owed)
	return toPool, new(big.Int).Sub(returned, toPool)
}

// recoverStakeResult accounts a proxy's answer to RecoverStake. A refusal is
// retried a few times and then parked until retry_recover_stakes.
func (c *call) recoverStakeResult(m msg.RecoverStakeResult) error {
	if err := c.requireProxy(m.Validator, m.Round); err != nil {
		return err
	}
	p, err := c.participation(m.Round, PhaseRecovering)
	if err != nil {
		return err
	}
	loan, ok := p.Recovering[m.Validator]
	if !ok {
		return reverts.Newf(reverts.InvalidRequest, "stake of %v in round %d already recovered", m.Validator, m.Round)
	}

	if !m.OK {
		if c.env.Value.Sign() > 0 {
			return reverts.New(reverts.InvalidRequest, "failed recovery must not carry value")
		}
		if loan.Attempts < c.params.MaxRecoverAttempts {
			loan.Attempts++
			c.emit(msg.RecoverStake{Proxy: c.env.Sender, Validator: m.Validator, Round: m.Round})
			metricRecoveries().AddWithLabel(1, map[string]string{"result": "retried"})
		} else {
			loan.Parked = true
			metricRecoveries().AddWithLabel(1, map[string]string{"result": "parked"})
			logger.Warn("stake recovery parked", "round", m.Round, "validator", m.Validator, "attempts", loan.Attempts)
		}
		return nil
	}

	toPool, toValidator := Split(loan, c.env.Value)
	p.TotalRecovered.Add(p.TotalRecovered, toPool)
	if toValidator.Sign() > 0 {
		c.emit(msg.ValidatorPayout{Validator: m.Validator, Round: m.Round, Value: toValidator})
	}
	delete(p.Recovering, m.Validator)
	metricRecoveries().AddWithLabel(1, map[string]string{"result": "recovered"})
	logger.Debug("stake recovered", "round", m.Round, "validator", m.Validator, "returned", pool.FormatCoins(c.env.Value))

	if len(p.Recovering) == 0 && int(p.Cursor) >= len(p.Queue) {
		return c.enterBurning(p)
	}
	return nil
}

// newStakeRejected takes back a loan the election authority refused. The
// validator gets the rest of what came back; a shortfall is a pool loss.
func (c *call) newStakeRejected(m msg.NewStakeRejected) error {
	if err := c.requireProxy(m.Validator, m.Round); err != nil {
		return err
	}
	p, err := c.participation(m.Round, PhaseDistributing, PhaseStaked, PhaseValidating, PhaseHeld)
	if err != nil {
		return err
	}
	loan, ok := p.Staked[m.Validator]
	if !ok {
		return reverts.Newf(reverts.InvalidRequest, "no stake of %v in round %d", m.Validator, m.Round)
	}
	delete(p.Staked, m.Validator)

	s := c.state
	p.TotalStaked.Sub(p.TotalStaked, loan.LoanAmount)
	s.TotalInLoan.Sub(s.TotalInLoan, loan.LoanAmount)

	returned := c.env.Value
	if returned.Cmp(loan.LoanAmount) >= 0 {
		c.refund(m.Validator, new(big.Int).Sub(returned, loan.LoanAmount), "stake rejected")
	} else {
		loss := new(big.Int).Sub(loan.LoanAmount, returned)
		s.TotalCoins.Sub(s.TotalCoins, loss)
		logger.Warn("rejected stake returned short", "round", m.Round, "validator", m.Validator, "loss", pool.FormatCoins(loss))
	}
	metricLoans().AddWithLabel(1, map[string]string{"decision": "bounced"})

	if p.State != PhaseDistributing && len(p.Staked) == 0 {
		return c.enterBurning(p)
	}
	return nil
}

// settle books the profit or loss of a round and releases its loans.
func (c *call) settle(p *Participation) {
	s := c.state
	s.TotalInLoan.Sub(s.TotalInLoan, p.TotalStaked)

	delta := new(big.Int).Sub(p.TotalRecovered, p.TotalStaked)
	if delta.Sign() > 0 {
		fee := pool.MulDiv(delta, big.NewInt(int64(s.GovernanceFee)), governanceDenominator)
		if fee.Sign() > 0 {
			c.emit(msg.GovernanceFee{Governor: s.Governor, Round: p.Round, Value: fee})
			delta.Sub(delta, fee)
		}
	}
	s.TotalCoins.Add(s.TotalCoins, delta)

	s.LastStaked = new(big.Int).Set(p.TotalStaked)
	s.LastRecovered = new(big.Int).Set(p.TotalRecovered)
	logger.Info("round settled", "round", p.Round,
		"staked", pool.FormatCoins(p.TotalStaked),
		"recovered", pool.FormatCoins(p.TotalRecovered),
		"delta", pool.FormatCoins(delta))
}

// enterBurning settles p and starts burning its receipts. A round without
// receipts is removed at once.
func (c *call) enterBurning(p *Participation) error {
	if p.TotalStaked.Sign() > 0 || p.TotalRecovered.Sign() > 0 {
		c.settle(p)
	}
	p.State = PhaseBurning
	p.Queue = nil
	p.Cursor = 0
	p.BurnCursor = 0

	if len(p.Receipts) == 0 {
		delete(c.state.Participations, p.Round)
		logger.Debug("participation removed", "round", p.Round)
		return nil
	}
	return c.burnAll(p.Round, 0)
}

// burnAll asks the receipt registry to burn the receipts of a round from start on.
func (c *call) burnAll(round uint32, start uint32) error {
	p, ok := c.state.Participations[round]
	if !ok || p.State != PhaseBurning || p.BurnCursor != start {
		return nil
	}

	emitted := 0
	for int(p.BurnCursor) < len(p.Receipts) && emitted < c.budget() {
		r := p.Receipts[p.BurnCursor]
		p.BurnCursor++
		if r.Settled {
			continue
		}
		c.emit(msg.BurnBill{Registry: c.state.ReceiptRegistry, Round: p.Round, Index: r.Index})
		emitted++
	}
	metricBatchSize().Observe(int64(emitted))

	if int(p.BurnCursor) < len(p.Receipts) {
		c.resume(msg.BurnAll{Round: p.Round, Start: p.BurnCursor})
	}
	return nil
}

// billBurned settles one receipt at the rate of the finished round: deposits
// mint tokens and unstakes are paid out.
func (c *call) billBurned(m msg.BillBurned) error {
	if err := c.requireSender(c.state.ReceiptRegistry, "receipt registry"); err != nil {
		return err
	}
	p, err := c.participation(m.Round, PhaseBurning)
	if err != nil {
		return err
	}
	if int(m.Index) >= len(p.Receipts) {
		return reverts.Newf(reverts.InvalidRequest, "round %d has no receipt %d", m.Round, m.Index)
	}
	r := p.Receipts[m.Index]
	if r.Settled {
		return reverts.Newf(reverts.InvalidRequest, "receipt %d of round %d already settled", m.Index, m.Round)
	}

	s := c.state
	if r.Unstaking {
		coins := s.TokensToCoins(r.Amount)
		free := new(big.Int).Sub(s.TotalCoins, s.TotalInLoan)
		if coins.Cmp(free) > 0 {
			return reverts.Newf(reverts.InsufficientFunds, "receipt %d of round %d needs %v free coins", m.Index, m.Round, coins)
		}
		s.TotalUnstaking.Sub(s.TotalUnstaking, r.Amount)
		s.TotalTokens.Sub(s.TotalTokens, r.Amount)
		s.TotalCoins.Sub(s.TotalCoins, coins)
		c.emit(msg.WithdrawCoins{Owner: r.Owner, Tokens: new(big.Int).Set(r.Amount), Value: coins})
	} else {
		tokens := s.CoinsToTokens(r.Amount)
		s.TotalStaking.Sub(s.TotalStaking, r.Amount)
		s.TotalCoins.Add(s.TotalCoins, r.Amount)
		s.TotalTokens.Add(s.TotalTokens, tokens)
		c.emit(msg.MintTokens{Ledger: s.TokenLedger, Owner: r.Owner, Tokens: tokens, Coins: new(big.Int).Set(r.Amount)})
	}
	r.Settled = true
	metricBillsBurned().Add(1)

	if p.unsettled() == 0 && int(p.BurnCursor) >= len(p.Receipts) {
		delete(s.Participations, p.Round)
		logger.Debug("participation removed", "round", p.Round)
	}
	return nil
}

func (c *call) retryDistribute(m msg.RetryDistribute) error {
	if err := c.requireHalterOrGovernor(); err != nil {
		return err
	}
	p, ok := c.state.Participations[m.Round]
	if !ok || p.State != PhaseDistributing {
		return nil
	}
	return c.processLoanRequests(p.Round, p.Cursor)
}

// retryRecoverStakes resumes an interrupted recovery pass, or, once the pass
// is complete, asks the parked proxies again.
func (c *call) retryRecoverStakes(m msg.RetryRecoverStakes) error {
	if err := c.requireHalterOrGovernor(); err != nil {
		return err
	}
	p, ok := c.state.Participations[m.Round]
	if !ok || p.State != PhaseRecovering {
		return nil
	}
	if int(p.Cursor) < len(p.Queue) {
		return c.recoverStakes(p.Round, p.Cursor)
	}

	emitted := 0
	for _, validator := range p.Queue {
		if emitted >= c.budget() {
			break
		}
		loan, ok := p.Recovering[validator]
		if !ok || !loan.Parked {
			continue
		}
		loan.Parked = false
		loan.Attempts = 1
		c.emit(msg.RecoverStake{
			Proxy:     pool.ProxyAddress(c.state.Self, validator, p.Round),
			Validator: validator,
			Round:     p.Round,
		})
		emitted++
	}
	return nil
}

// retryBurnAll resumes an interrupted burn pass, or, once the pass is
// complete, asks again for the receipts that are still unsettled.
func (c *call) retryBurnAll(m msg.RetryBurnAll) error {
	if err := c.requireHalterOrGovernor(); err != nil {
		return err
	}
	p, ok := c.state.Participations[m.Round]
	if !ok || p.State != PhaseBurning {
		return nil
	}
	if int(p.BurnCursor) < len(p.Receipts) {
		return c.burnAll(p.Round, p.BurnCursor)
	}

	emitted := 0
	for _, r := range p.Receipts {
		if emitted >= c.budget() {
			break
		}
		if r.Settled {
			continue
		}
		c.emit(msg.BurnBill{Registry: c.state.ReceiptRegistry, Round: p.Round, Index: r.Index})
		emitted++
	}
	return nil
}
