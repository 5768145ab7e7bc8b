// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package treasury

import (
	"math/big"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/test/datagen"
	"github.com/vechain/stakepool/treasury/msg"
	"github.com/vechain/stakepool/treasury/reverts"
)

// stakeMany stakes n loans of 10 coins and holds them past the deadline.
func stakeMany(t *testing.T, params Params, n int) (*TreasuryTest, []pool.Address) {
	ts := newTestWithParams(t, params)
	ts.snap.Config.MaxValidators = uint32(n)
	ts.Deposit(int64(n) * 20)

	validators := datagen.RandAddresses(n)
	for _, v := range validators {
		ts.RequestLoan(v, 10, 1, 1, 0).AssertOK()
	}
	ts.Participate().AssertOK().Drain()
	require.Len(t, filter[msg.NewStake](ts.out), n)
	ts.Hold()
	return ts, validators
}

func TestRecoverHundredInOnePass(t *testing.T) {
	ts, validators := stakeMany(t, testParams(), 100)

	ts.Finish().AssertOK()
	recovers := filter[msg.RecoverStake](ts.out)
	assert.Len(t, recovers, 100)
	assert.Empty(t, filter[msg.Continue](ts.out))
	assert.Equal(t, uint32(100), ts.Participation().Size)

	// proxies answer in any order
	rand.Shuffle(len(validators), func(i, j int) { validators[i], validators[j] = validators[j], validators[i] })
	for i, v := range validators {
		ts.Recovered(v, pool.Coins(12)).AssertOK()
		if i < len(validators)-1 {
			assert.Equal(t, uint32(len(validators)-i-1), ts.Participation().Size)
		}
	}
	ts.AssertNoParticipation()
	assertCoins(t, pool.Coins(2100), ts.state.TotalCoins)
	assertCoins(t, pool.Coins(1000), ts.state.LastStaked)
	assertCoins(t, pool.Coins(1100), ts.state.LastRecovered)
}

func TestRecoverInBatches(t *testing.T) {
	params := testParams()
	params.MaxBatchMessages = 60
	ts, validators := stakeMany(t, params, 100)

	ts.Finish().AssertOK()
	assert.Len(t, filter[msg.RecoverStake](ts.out), 60)
	conts := filter[msg.Continue](ts.out)
	require.Len(t, conts, 1)
	assert.Equal(t, msg.RecoverStakes{Round: testRound, Start: 60}, conts[0].Body)

	first := make(map[pool.Address]bool)
	for _, r := range filter[msg.RecoverStake](ts.out) {
		first[r.Validator] = true
	}
	// the first batch answers before the batch continues
	for v := range first {
		ts.Recovered(v, pool.Coins(11)).AssertOK()
	}
	ts.AssertPhase(PhaseRecovering)

	ts.out = []msg.Outbound{conts[0]}
	ts.Drain()
	rest := filter[msg.RecoverStake](ts.out)
	assert.Len(t, rest, 40)
	for _, r := range rest {
		assert.False(t, first[r.Validator])
	}

	for _, v := range validators {
		if !first[v] {
			ts.Recovered(v, pool.Coins(11)).AssertOK()
		}
	}
	ts.AssertNoParticipation()
	assertCoins(t, pool.Coins(2100), ts.state.TotalCoins)
}

func TestRecoverFailureParks(t *testing.T) {
	ts, validators := stakeMany(t, testParams(), 2)
	v := validators[0]
	ts.Finish().AssertOK()

	fail := msg.RecoverStakeResult{Round: testRound, Validator: v, OK: false}
	for range 2 {
		ts.Send(ts.Proxy(v), nil, fail).AssertOK()
		require.Len(t, filter[msg.RecoverStake](ts.out), 1)
	}
	ts.Send(ts.Proxy(v), nil, fail).AssertOK()
	assert.Empty(t, ts.out)
	assert.True(t, ts.Participation().Recovering[v].Parked)

	// a failure must not carry value
	ts.Send(ts.Proxy(v), pool.Coins(1), fail).AssertRevert(reverts.InvalidRequest, pool.Coins(1))

	ts.Send(datagen.RandAddress(), nil, msg.RetryRecoverStakes{Round: testRound}).AssertRevert(reverts.AccessDenied, nil)

	ts.Send(ts.roles.Halter, nil, msg.RetryRecoverStakes{Round: testRound}).AssertOK()
	recovers := filter[msg.RecoverStake](ts.out)
	require.Len(t, recovers, 1)
	assert.Equal(t, v, recovers[0].Validator)
	assert.False(t, ts.Participation().Recovering[v].Parked)

	settled := ts.Hash()
	ts.Send(ts.roles.Governor, nil, msg.RetryRecoverStakes{Round: testRound}).AssertOK()
	assert.Empty(t, ts.out)
	assert.Equal(t, settled, ts.Hash())

	for _, v := range validators {
		ts.Recovered(v, pool.Coins(11)).AssertOK()
	}
	ts.AssertNoParticipation()

	// duplicate answer after settlement
	ts.Recovered(v, pool.Coins(11)).AssertRevert(reverts.InvalidRequest, pool.Coins(11))
}

func TestRetryIdempotent(t *testing.T) {
	params := testParams()
	params.MaxBatchMessages = 4
	ts := newTestWithParams(t, params)
	ts.Deposit(1000)
	for _, v := range datagen.RandAddresses(10) {
		ts.RequestLoan(v, 20, 1, 1, 0).AssertOK()
	}
	ts.Participate().AssertOK()
	stale := filter[msg.Continue](ts.out)[0]

	// halted: the continuation bounces but the cursor is kept
	ts.Send(ts.roles.Halter, nil, msg.SetHalted{Halted: true}).AssertOK()
	env := stale.Envelope()
	ts.Send(env.Sender, nil, env.Body).AssertRevert(reverts.Halted, nil)
	assert.Equal(t, uint32(4), ts.Participation().Cursor)
	ts.Send(ts.roles.Halter, nil, msg.SetHalted{Halted: false}).AssertOK()

	// the same retry applied twice to the same state gives the same result
	retry := msg.NewEnvelope(ts.roles.Halter, nil, msg.RetryDistribute{Round: testRound})
	a := ts.Apply(ts.state, ts.snap, retry)
	b := ts.Apply(ts.state, ts.snap, retry)
	require.NoError(t, a.Err)
	ha, err := a.State.Hash()
	require.NoError(t, err)
	hb, err := b.State.Hash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Equal(t, a.Outbound, b.Outbound)

	ts.Send(ts.roles.Halter, nil, msg.RetryDistribute{Round: testRound}).AssertOK()
	assert.Len(t, filter[msg.NewStake](ts.out), 4)
	assert.Equal(t, uint32(8), ts.Participation().Cursor)
	next := filter[msg.Continue](ts.out)
	require.Len(t, next, 1)

	// the original continuation is stale now
	before := ts.Hash()
	ts.Send(env.Sender, nil, env.Body).AssertOK()
	assert.Empty(t, ts.out)
	assert.Equal(t, before, ts.Hash())

	ts.out = []msg.Outbound{next[0]}
	ts.Drain()
	assert.Len(t, filter[msg.NewStake](ts.out), 2)
	ts.AssertPhase(PhaseStaked)

	// retries on a round that is past the step, or gone, change nothing
	for _, body := range []msg.Inbound{
		msg.RetryDistribute{Round: testRound},
		msg.RetryRecoverStakes{Round: testRound},
		msg.RetryBurnAll{Round: testRound},
		msg.RetryDistribute{Round: 1},
		msg.RetryBurnAll{Round: 1},
	} {
		before := ts.Hash()
		ts.Send(ts.roles.Governor, nil, body).AssertOK()
		assert.Empty(t, ts.out)
		assert.Equal(t, before, ts.Hash())
	}
}

func TestDepositsAndUnstakesDuringRound(t *testing.T) {
	ts := newTest(t)
	ts.Deposit(1000)
	assertCoins(t, pool.Coins(1000), ts.state.TotalTokens)

	v := datagen.RandAddress()
	ts.RequestLoan(v, 100, 10, 10, 0).AssertOK()

	// open rounds do not lock funds yet
	depositor := datagen.RandAddress()
	ts.Send(depositor, pool.Coins(5), msg.DepositCoins{}).AssertOK()
	mints := filter[msg.MintTokens](ts.out)
	require.Len(t, mints, 1)
	assert.Equal(t, depositor, mints[0].Owner)
	assertCoins(t, pool.Coins(5), mints[0].Tokens)
	ts.Send(ts.roles.TokenLedger, nil, msg.UnstakeTokens{Owner: depositor, Tokens: pool.Coins(5)}).AssertOK()
	withdrawals := filter[msg.WithdrawCoins](ts.out)
	require.Len(t, withdrawals, 1)
	assertCoins(t, pool.Coins(5), withdrawals[0].Value)

	ts.Participate().AssertOK()

	ts.Send(depositor, pool.Coins(100), msg.DepositCoins{}).AssertOK()
	bills := filter[msg.MintBill](ts.out)
	require.Len(t, bills, 1)
	assert.Equal(t, ts.roles.ReceiptRegistry, bills[0].Registry)
	assert.Equal(t, uint32(0), bills[0].Index)
	assert.False(t, bills[0].Unstaking)
	assertCoins(t, pool.Coins(100), bills[0].Coins)
	assertCoins(t, pool.Coins(100), ts.state.TotalStaking)

	holder := datagen.RandAddress()
	ts.Send(ts.roles.TokenLedger, nil, msg.UnstakeTokens{Owner: holder, Tokens: pool.Coins(100)}).AssertOK()
	bills = filter[msg.MintBill](ts.out)
	require.Len(t, bills, 1)
	assert.True(t, bills[0].Unstaking)
	assertCoins(t, pool.Coins(100), bills[0].Coins)
	assertCoins(t, pool.Coins(100), ts.state.TotalUnstaking)

	ts.Hold().Finish().AssertOK()
	ts.Recovered(v, pool.Coins(120)).AssertOK()
	burns := filter[msg.BurnBill](ts.out)
	require.Len(t, burns, 2)
	ts.AssertPhase(PhaseBurning)
	assertCoins(t, pool.Coins(1010), ts.state.TotalCoins)

	ts.Send(datagen.RandAddress(), nil, msg.BillBurned{Round: testRound, Index: 0}).AssertRevert(reverts.AccessDenied, nil)
	ts.Send(ts.roles.ReceiptRegistry, nil, msg.BillBurned{Round: testRound, Index: 5}).AssertRevert(reverts.InvalidRequest, nil)

	ts.Send(ts.roles.ReceiptRegistry, nil, msg.BillBurned{Round: testRound, Index: 0}).AssertOK()
	mints = filter[msg.MintTokens](ts.out)
	require.Len(t, mints, 1)
	assert.Equal(t, depositor, mints[0].Owner)
	assertCoins(t, big.NewInt(99_009_900_990), mints[0].Tokens)
	ts.Send(ts.roles.ReceiptRegistry, nil, msg.BillBurned{Round: testRound, Index: 0}).AssertRevert(reverts.InvalidRequest, nil)

	// retry asks again only for the unsettled receipt
	ts.Send(ts.roles.Governor, nil, msg.RetryBurnAll{Round: testRound}).AssertOK()
	burns = filter[msg.BurnBill](ts.out)
	require.Len(t, burns, 1)
	assert.Equal(t, uint32(1), burns[0].Index)

	ts.Send(ts.roles.ReceiptRegistry, nil, msg.BillBurned{Round: testRound, Index: 1}).AssertOK()
	withdrawals = filter[msg.WithdrawCoins](ts.out)
	require.Len(t, withdrawals, 1)
	assert.Equal(t, holder, withdrawals[0].Owner)
	assertCoins(t, big.NewInt(101_000_000_000), withdrawals[0].Value)

	ts.AssertNoParticipation()
	assertCoins(t, big.NewInt(1_009_000_000_000), ts.state.TotalCoins)
	assertCoins(t, big.NewInt(999_009_900_990), ts.state.TotalTokens)
	assertCoins(t, pool.Coins(0), ts.state.TotalStaking)
	assertCoins(t, pool.Coins(0), ts.state.TotalUnstaking)
}

func TestDepositAndUnstakeChecks(t *testing.T) {
	params := testParams()
	params.DepositFee = pool.Coins(1)
	ts := newTestWithParams(t, params)

	ts.Send(datagen.RandAddress(), pool.Coins(1), msg.DepositCoins{}).AssertRevert(reverts.InsufficientFunds, pool.Coins(1))
	ts.Send(datagen.RandAddress(), big.NewInt(pool.Coin+pool.Coin/2), msg.DepositCoins{}).AssertRevert(reverts.InsufficientFunds, big.NewInt(pool.Coin+pool.Coin/2))

	owner := datagen.RandAddress()
	ts.Send(datagen.RandAddress(), pool.Coins(11), msg.DepositCoins{Owner: owner}).AssertOK()
	mints := filter[msg.MintTokens](ts.out)
	require.Len(t, mints, 1)
	assert.Equal(t, owner, mints[0].Owner)
	assertCoins(t, pool.Coins(10), mints[0].Tokens)
	assertCoins(t, pool.Coins(1), ts.state.Surplus())

	ts.Send(owner, nil, msg.UnstakeTokens{Owner: owner, Tokens: pool.Coins(1)}).AssertRevert(reverts.AccessDenied, nil)
	ts.Send(ts.roles.TokenLedger, nil, msg.UnstakeTokens{Owner: owner, Tokens: pool.Coins(11)}).AssertRevert(reverts.InsufficientFunds, nil)
	ts.Send(ts.roles.TokenLedger, nil, msg.UnstakeTokens{Owner: owner}).AssertRevert(reverts.InvalidRequest, nil)
}

func TestQueuedUnstakesBoundedByFreeCoins(t *testing.T) {
	ts := newTest(t)
	ts.Deposit(1000)
	v := datagen.RandAddress()
	ts.RequestLoan(v, 900, 10, 5, 0).AssertOK()
	ts.Participate().AssertOK()
	assertCoins(t, pool.Coins(900), ts.state.TotalInLoan)

	holder := datagen.RandAddress()
	ts.Send(ts.roles.TokenLedger, nil, msg.UnstakeTokens{Owner: holder, Tokens: pool.Coins(500)}).AssertRevert(reverts.InsufficientFunds, nil)
	assertCoins(t, pool.Coins(0), ts.state.TotalUnstaking)

	ts.Send(ts.roles.TokenLedger, nil, msg.UnstakeTokens{Owner: holder, Tokens: pool.Coins(60)}).AssertOK()
	ts.Send(ts.roles.TokenLedger, nil, msg.UnstakeTokens{Owner: holder, Tokens: pool.Coins(40)}).AssertOK()
	ts.Send(ts.roles.TokenLedger, nil, msg.UnstakeTokens{Owner: holder, Tokens: big.NewInt(1)}).AssertRevert(reverts.InsufficientFunds, nil)
	assertCoins(t, pool.Coins(100), ts.state.TotalUnstaking)

	// pending deposits do not add liquidity for unstakes
	ts.Deposit(50)
	ts.Send(ts.roles.TokenLedger, nil, msg.UnstakeTokens{Owner: holder, Tokens: pool.Coins(10)}).AssertRevert(reverts.InsufficientFunds, nil)
}

func TestCheckCommittedValue(t *testing.T) {
	ts := newTest(t)
	ts.Deposit(1000)
	require.NoError(t, ts.state.Check())

	broken := ts.state.Clone()
	broken.TotalUnstaking = pool.Coins(600)
	broken.TotalInLoan = pool.Coins(500)
	broken.Participations[testRound] = newParticipation(testRound)
	p := broken.Participations[testRound]
	p.State = PhaseStaked
	p.TotalStaked = pool.Coins(500)
	p.Receipts = []*Receipt{{Owner: datagen.RandAddress(), Unstaking: true, Amount: pool.Coins(600)}}
	assert.ErrorContains(t, broken.Check(), "exceed total value")
}
