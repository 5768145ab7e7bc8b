// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package simnet runs a treasury against simulated collaborators: loan
// proxies, the election authority, the token ledger and the receipt registry.
// Messages are queued and delivered one at a time, optionally in random order.
package simnet

import (
	"math/big"
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/vechain/stakepool/election"
	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/test/datagen"
	"github.com/vechain/stakepool/treasury"
	"github.com/vechain/stakepool/treasury/msg"
)

type stakeKey struct {
	validator pool.Address
	round     uint32
}

type billKey struct {
	round uint32
	index uint32
}

// Authority decides how the simulated election authority treats stakes.
type Authority struct {
	// Reward returns what a stake is worth when it is released. Defaults to the stake itself.
	Reward func(validator pool.Address, stake *big.Int) *big.Int
	// Refuse reports whether a release attempt is refused.
	Refuse func(validator pool.Address, attempt int) bool
	// Reject reports whether a new stake is bounced.
	Reject func(validator pool.Address) bool
}

// Network is a treasury wired to its simulated collaborators.
type Network struct {
	Treasury  *treasury.Treasury
	State     *treasury.State
	Snap      *election.Snapshot
	Roles     treasury.Roles
	Authority Authority

	// Wallets holds the coins each address received from the treasury.
	Wallets map[pool.Address]*big.Int
	// Tokens holds the claim-token balances kept by the token ledger.
	Tokens map[pool.Address]*big.Int
	// Reverted collects the failures of queued messages.
	Reverted []error
	// Applied counts the messages applied successfully.
	Applied int

	stakes   map[stakeKey]*big.Int
	attempts map[stakeKey]int
	bills    map[billKey]msg.MintBill
	queue    []*msg.Envelope
	rng      *rand.Rand
	injected *big.Int
	minted   *big.Int
}

// New creates a network at the start of an election window. A nil rng
// delivers messages in the order they were sent.
func New(params treasury.Params, rng *rand.Rand) *Network {
	roles := treasury.Roles{
		Self:            datagen.RandAddress(),
		Governor:        datagen.RandAddress(),
		Halter:          datagen.RandAddress(),
		TokenLedger:     datagen.RandAddress(),
		ReceiptRegistry: datagen.RandAddress(),
	}
	return &Network{
		Treasury: treasury.New(params),
		State:    treasury.NewState(roles),
		Snap:     DefaultSnapshot(),
		Roles:    roles,
		Wallets:  make(map[pool.Address]*big.Int),
		Tokens:   make(map[pool.Address]*big.Int),
		stakes:   make(map[stakeKey]*big.Int),
		attempts: make(map[stakeKey]int),
		bills:    make(map[billKey]msg.MintBill),
		rng:      rng,
		injected: new(big.Int),
		minted:   new(big.Int),
	}
}

// DefaultSnapshot returns an election view whose next round, 2000, is open for requests.
func DefaultSnapshot() *election.Snapshot {
	return &election.Snapshot{
		Now: 1600,
		Config: election.Config{
			ElectFor:             1000,
			ElectionsStartBefore: 500,
			ElectionsEndBefore:   100,
			StakeHeldFor:         300,
			MaxValidators:        100,
			MinStake:             pool.Coins(10),
			MaxStake:             pool.Coins(1_000_000),
			MaxPunishment:        pool.Coins(1),
		},
		Prev: election.Vset{Hash: datagen.RandomHash(), Since: 0, Until: 1000},
		Curr: election.Vset{Hash: datagen.RandomHash(), Since: 1000, Until: 2000},
	}
}

// Send applies one message from outside the network at once, then delivers
// everything that follows from it. It returns the error of that first message.
func (n *Network) Send(sender pool.Address, value *big.Int, body msg.Inbound) error {
	env := msg.NewEnvelope(sender, value, body)
	n.injected.Add(n.injected, env.Value)
	err := n.apply(env)
	n.Run()
	return err
}

// Run delivers queued messages until none is left.
func (n *Network) Run() {
	for len(n.queue) > 0 {
		i := 0
		if n.rng != nil {
			i = n.rng.IntN(len(n.queue))
		}
		env := n.queue[i]
		n.queue = append(n.queue[:i], n.queue[i+1:]...)
		if err := n.apply(env); err != nil {
			n.Reverted = append(n.Reverted, err)
		}
	}
}

func (n *Network) apply(env *msg.Envelope) error {
	res := n.Treasury.Apply(n.State, n.Snap, env)
	n.State = res.State
	if res.Err == nil {
		n.Applied++
	}
	for _, m := range res.Outbound {
		n.deliver(m)
	}
	return res.Err
}

func (n *Network) enqueue(sender pool.Address, value *big.Int, body msg.Inbound) {
	n.queue = append(n.queue, msg.NewEnvelope(sender, value, body))
}

func (n *Network) credit(to pool.Address, value *big.Int) {
	if w, ok := n.Wallets[to]; ok {
		w.Add(w, value)
	} else {
		n.Wallets[to] = new(big.Int).Set(value)
	}
}

// deliver plays the collaborator an outbound message is addressed to.
func (n *Network) deliver(m msg.Outbound) {
	switch m := m.(type) {
	case msg.Continue:
		env := m.Envelope()
		n.queue = append(n.queue, env)
	case msg.NewStake:
		key := stakeKey{m.Validator, m.Round}
		if n.Authority.Reject != nil && n.Authority.Reject(m.Validator) {
			n.enqueue(m.Proxy, m.Value, msg.NewStakeRejected{Round: m.Round, Validator: m.Validator})
			return
		}
		n.stakes[key] = new(big.Int).Set(m.Value)
	case msg.RecoverStake:
		key := stakeKey{m.Validator, m.Round}
		n.attempts[key]++
		stake, ok := n.stakes[key]
		if !ok || (n.Authority.Refuse != nil && n.Authority.Refuse(m.Validator, n.attempts[key])) {
			n.enqueue(m.Proxy, nil, msg.RecoverStakeResult{Round: m.Round, Validator: m.Validator, OK: false})
			return
		}
		delete(n.stakes, key)
		returned := stake
		if n.Authority.Reward != nil {
			returned = n.Authority.Reward(m.Validator, stake)
		}
		n.minted.Add(n.minted, returned)
		n.minted.Sub(n.minted, stake)
		n.enqueue(m.Proxy, returned, msg.RecoverStakeResult{Round: m.Round, Validator: m.Validator, OK: true})
	case msg.MintTokens:
		if t, ok := n.Tokens[m.Owner]; ok {
			t.Add(t, m.Tokens)
		} else {
			n.Tokens[m.Owner] = new(big.Int).Set(m.Tokens)
		}
	case msg.MintBill:
		n.bills[billKey{m.Round, m.Index}] = m
	case msg.BurnBill:
		if _, ok := n.bills[billKey{m.Round, m.Index}]; ok {
			n.enqueue(n.Roles.ReceiptRegistry, nil, msg.BillBurned{Round: m.Round, Index: m.Index})
		}
	default:
		n.credit(m.Dest(), m.Amount())
	}
}

// Deposit sends coins from a fresh depositor and returns its address.
func (n *Network) Deposit(coins *big.Int) (pool.Address, error) {
	owner := datagen.RandAddress()
	return owner, n.Send(owner, coins, msg.DepositCoins{})
}

// Unstake burns tokens of owner through the token ledger.
func (n *Network) Unstake(owner pool.Address, tokens *big.Int) error {
	if t, ok := n.Tokens[owner]; !ok || t.Cmp(tokens) < 0 {
		return errors.Errorf("%v holds less than %v tokens", owner, tokens)
	}
	if err := n.Send(n.Roles.TokenLedger, nil, msg.UnstakeTokens{Owner: owner, Tokens: tokens}); err != nil {
		return err
	}
	n.Tokens[owner].Sub(n.Tokens[owner], tokens)
	return nil
}

// RequestLoan places a loan request from validator for the round being elected.
func (n *Network) RequestLoan(validator pool.Address, loan, stake, minPayment *big.Int, share uint8) error {
	value := new(big.Int).Add(stake, n.Treasury.Params().RequestLoanFee)
	return n.Send(validator, value, msg.RequestLoan{
		Round:       n.Snap.NextRound(),
		LoanAmount:  loan,
		MinPayment:  minPayment,
		RewardShare: share,
		ElectorMsg:  validator.Bytes(),
	})
}

// Participate closes the auction of the round being elected.
func (n *Network) Participate() (uint32, error) {
	round := n.Snap.NextRound()
	return round, n.Send(datagen.RandAddress(), nil, msg.ParticipateInElection{Round: round})
}

// NextVset rotates the committee and reports the change for round.
func (n *Network) NextVset(round uint32) error {
	n.Snap.Advance(datagen.RandomHash())
	n.Snap.Now = n.Snap.Curr.Since
	return n.Send(datagen.RandAddress(), nil, msg.VsetChanged{Round: round})
}

// Finish waits out the hold period of round and starts recovering its stakes.
func (n *Network) Finish(round uint32) error {
	p, ok := n.State.Participations[round]
	if !ok {
		return errors.Errorf("no participation in round %d", round)
	}
	n.Snap.Now = max(n.Snap.Now, p.StakeHeldUntil)
	return n.Send(datagen.RandAddress(), nil, msg.FinishParticipation{Round: round})
}

// OpenWindow moves the clock into the request window of the next round.
func (n *Network) OpenWindow() {
	n.Snap.Now = n.Snap.Curr.Until - n.Snap.Config.ElectionsStartBefore
}

// PlayRound runs a participated round through validation, hold and settlement.
func (n *Network) PlayRound(round uint32) error {
	if err := n.NextVset(round); err != nil {
		return errors.WithMessage(err, "validating")
	}
	if err := n.NextVset(round); err != nil {
		return errors.WithMessage(err, "held")
	}
	return errors.WithMessage(n.Finish(round), "finish")
}

// Retry sends all three retry messages for round as the halter.
func (n *Network) Retry(round uint32) error {
	for _, body := range []msg.Inbound{
		msg.RetryDistribute{Round: round},
		msg.RetryRecoverStakes{Round: round},
		msg.RetryBurnAll{Round: round},
	} {
		if err := n.Send(n.Roles.Halter, nil, body); err != nil {
			return err
		}
	}
	return nil
}

// Outstanding returns the coins held by the authority for round.
func (n *Network) Outstanding(round uint32) *big.Int {
	total := new(big.Int)
	for k, v := range n.stakes {
		if k.round == round {
			total.Add(total, v)
		}
	}
	return total
}

// Conserved checks that no coin was created or lost: what was sent into the
// network, plus rewards, equals what the treasury, the wallets and the
// authority hold.
func (n *Network) Conserved() error {
	held := new(big.Int).Set(n.State.Balance)
	for _, w := range n.Wallets {
		held.Add(held, w)
	}
	for _, s := range n.stakes {
		held.Add(held, s)
	}
	expected := new(big.Int).Add(n.injected, n.minted)
	if held.Cmp(expected) != 0 {
		return errors.Errorf("network holds %v, expected %v", held, expected)
	}
	return nil
}
