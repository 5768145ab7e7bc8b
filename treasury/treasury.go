// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package treasury implements the pool ledger of a liquid staking protocol:
// the validator loan auction, the round lifecycle and the batched settlement
// of every round.
//
// The treasury is a pure transition function. Apply takes a state, the current
// view of the election authority and one inbound message, and returns the next
// state together with the messages to send. Persisting the state and delivering
// the messages is up to the caller.
package treasury

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/stakepool/election"
	"github.com/vechain/stakepool/log"
	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/treasury/msg"
	"github.com/vechain/stakepool/treasury/reverts"
)

var logger = log.WithContext("pkg", "treasury")

// Treasury applies inbound messages to a state.
type Treasury struct {
	params Params
}

func New(params Params) *Treasury {
	return &Treasury{params: params}
}

func (t *Treasury) Params() Params {
	return t.params
}

// Result is the outcome of one message.
type Result struct {
	State    *State
	Outbound []msg.Outbound
	Err      error // set when the message bounced, State is then the input state
}

// Reverted reports whether the message bounced.
func (r *Result) Reverted() bool {
	return r.Err != nil
}

// call carries everything one message application works on.
type call struct {
	params *Params
	state  *State
	snap   *election.Snapshot
	env    *msg.Envelope
	out    []msg.Outbound
}

func (c *call) emit(m msg.Outbound) {
	c.out = append(c.out, m)
}

func (c *call) refund(to pool.Address, value *big.Int, reason string) {
	if value.Sign() > 0 {
		c.emit(msg.Refund{To: to, Value: new(big.Int).Set(value), Reason: reason})
	}
}

func (c *call) resume(body msg.Inbound) {
	c.emit(msg.Continue{Self: c.state.Self, Body: body})
}

// Apply processes env against state. A failed message leaves state untouched
// and refunds the full value attached to it.
func (t *Treasury) Apply(state *State, snap *election.Snapshot, env *msg.Envelope) *Result {
	env = msg.NewEnvelope(env.Sender, env.Value, env.Body)
	op := "unknown"
	if env.Body != nil {
		if _, ok := env.Body.(msg.Unknown); !ok {
			op = string(env.Body.Op())
		}
	}

	c := &call{
		params: &t.params,
		state:  state.Clone(),
		snap:   snap,
		env:    env,
	}

	err := c.dispatch()
	if err == nil {
		c.state.Balance.Add(c.state.Balance, env.Value)
		c.state.Balance.Sub(c.state.Balance, msg.Total(c.out))
		for _, p := range c.state.Participations {
			p.resize()
		}
		if err = c.state.Check(); err != nil {
			logger.Error("ledger does not reconcile", "op", op, "err", err)
			err = errors.WithMessage(err, "reconcile")
		}
	}

	if err != nil {
		outcome := "error"
		if k := reverts.KindOf(err); k != 0 {
			outcome = k.String()
		}
		metricMessages().AddWithLabel(1, map[string]string{"op": op, "outcome": outcome})
		logger.Debug("message bounced", "op", op, "sender", env.Sender, "value", env.Value, "err", err)

		res := &Result{State: state, Err: err}
		if env.Value.Sign() > 0 {
			res.Outbound = []msg.Outbound{msg.Refund{To: env.Sender, Value: env.Value, Reason: err.Error()}}
		}
		return res
	}

	metricMessages().AddWithLabel(1, map[string]string{"op": op, "outcome": "ok"})
	metricParticipations().Set(int64(len(c.state.Participations)))
	if c.state.TotalInLoan.IsInt64() {
		metricTotalInLoan().Set(new(big.Int).Quo(c.state.TotalInLoan, big.NewInt(pool.Coin)).Int64())
	}
	return &Result{State: c.state, Outbound: c.out}
}

func (c *call) dispatch() error {
	if c.state.Halted && !allowedWhenHalted(c.env.Body) {
		return reverts.New(reverts.Halted, "treasury is halted")
	}

	switch m := c.env.Body.(type) {
	case msg.RequestLoan:
		return c.requestLoan(m)
	case msg.ParticipateInElection:
		return c.participateInElection(m)
	case msg.ProcessLoanRequests:
		if err := c.requireSelf(); err != nil {
			return err
		}
		return c.processLoanRequests(m.Round, m.Start)
	case msg.VsetChanged:
		return c.vsetChanged(m)
	case msg.FinishParticipation:
		return c.finishParticipation(m)
	case msg.RecoverStakes:
		if err := c.requireSelf(); err != nil {
			return err
		}
		return c.recoverStakes(m.Round, m.Start)
	case msg.RecoverStakeResult:
		return c.recoverStakeResult(m)
	case msg.NewStakeRejected:
		return c.newStakeRejected(m)
	case msg.BurnAll:
		if err := c.requireSelf(); err != nil {
			return err
		}
		return c.burnAll(m.Round, m.Start)
	case msg.BillBurned:
		return c.billBurned(m)
	case msg.RetryDistribute:
		return c.retryDistribute(m)
	case msg.RetryRecoverStakes:
		return c.retryRecoverStakes(m)
	case msg.RetryBurnAll:
		return c.retryBurnAll(m)
	case msg.DepositCoins:
		return c.depositCoins(m)
	case msg.UnstakeTokens:
		return c.unstakeTokens(m)
	case msg.WithdrawSurplus:
		return c.withdrawSurplus()
	case msg.SetHalted:
		return c.setHalted(m)
	case msg.SetStopped:
		return c.setStopped(m)
	case msg.SetGovernanceFee:
		return c.setGovernanceFee(m)
	case msg.SetBalancedRounds:
		return c.setBalancedRounds(m)
	case msg.SetRoundsImbalance:
		return c.setRoundsImbalance(m)
	case msg.ProposeGovernor:
		return c.proposeGovernor(m)
	case msg.AcceptGovernance:
		return c.acceptGovernance()
	case msg.SetHalter:
		return c.setHalter(m)
	case msg.TopUp:
		return nil
	case msg.Unknown:
		return reverts.Newf(reverts.UnknownOperation, "%q", m.Name)
	default:
		return reverts.Newf(reverts.UnknownOperation, "%T", m)
	}
}

// allowedWhenHalted lists what still goes through while halted: administration,
// retries and the answers of collaborators, which carry funds that must be accounted.
func allowedWhenHalted(body msg.Inbound) bool {
	switch body.(type) {
	case msg.RecoverStakeResult, msg.NewStakeRejected, msg.BillBurned,
		msg.RetryDistribute, msg.RetryRecoverStakes, msg.RetryBurnAll,
		msg.WithdrawSurplus, msg.SetHalted, msg.SetStopped, msg.SetGovernanceFee,
		msg.SetBalancedRounds, msg.SetRoundsImbalance, msg.ProposeGovernor,
		msg.AcceptGovernance, msg.SetHalter, msg.TopUp:
		return true
	}
	return false
}

func (c *call) requireSender(want pool.Address, role string) error {
	if want.IsZero() || c.env.Sender != want {
		return reverts.Newf(reverts.AccessDenied, "sender is not the %s", role)
	}
	return nil
}

func (c *call) requireSelf() error {
	return c.requireSender(c.state.Self, "treasury")
}

func (c *call) requireGovernor() error {
	return c.requireSender(c.state.Governor, "governor")
}

func (c *call) requireHalterOrGovernor() error {
	if !c.env.Sender.IsZero() && (c.env.Sender == c.state.Halter || c.env.Sender == c.state.Governor) {
		return nil
	}
	return reverts.New(reverts.AccessDenied, "sender is neither halter nor governor")
}

func (c *call) requireProxy(validator pool.Address, round uint32) error {
	return c.requireSender(pool.ProxyAddress(c.state.Self, validator, round), "loan proxy")
}

// participation returns the participation of round in one of the given phases.
func (c *call) participation(round uint32, phases ...Phase) (*Participation, error) {
	p, ok := c.state.Participations[round]
	if !ok {
		return nil, reverts.Newf(reverts.InvalidRequest, "no participation in round %d", round)
	}
	for _, phase := range phases {
		if p.State == phase {
			return p, nil
		}
	}
	return nil, reverts.Newf(reverts.InvalidPhase, "round %d is %s", round, PhaseName(p.State))
}

// latestActive returns the newest participation holding pool funds, if any.
func (c *call) latestActive() *Participation {
	var latest *Participation
	for _, p := range c.state.Participations {
		if p.active() && (latest == nil || p.Round > latest.Round) {
			latest = p
		}
	}
	return latest
}

func (c *call) budget() int {
	return int(c.params.MaxBatchMessages)
}
