// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package treasury

import (
	"math/big"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/test/datagen"
	"github.com/vechain/stakepool/treasury/msg"
	"github.com/vechain/stakepool/treasury/reverts"
	"github.com/vechain/stakepool/treasury/sortkey"
)

func TestRequestLoanValidation(t *testing.T) {
	validator := datagen.RandAddress()

	tests := []struct {
		name  string
		setup func(ts *TreasuryTest)
		value *big.Int
		body  msg.RequestLoan
		kind  reverts.Kind
	}{
		{
			name:  "window closed",
			setup: func(ts *TreasuryTest) { ts.snap.Now = 1950 },
			value: pool.Coins(5),
			body:  msg.RequestLoan{Round: testRound, LoanAmount: pool.Coins(100)},
			kind:  reverts.InvalidPhase,
		},
		{
			name:  "wrong round",
			value: pool.Coins(5),
			body:  msg.RequestLoan{Round: testRound + 1, LoanAmount: pool.Coins(100)},
			kind:  reverts.InvalidRequest,
		},
		{
			name:  "fee not covered",
			value: pool.Coins(1),
			body:  msg.RequestLoan{Round: testRound, LoanAmount: pool.Coins(100)},
			kind:  reverts.InsufficientFunds,
		},
		{
			name:  "stake below punishment",
			value: big.NewInt(pool.Coin + pool.Coin/2),
			body:  msg.RequestLoan{Round: testRound, LoanAmount: pool.Coins(100)},
			kind:  reverts.InsufficientFunds,
		},
		{
			name:  "below min stake",
			value: pool.Coins(3),
			body:  msg.RequestLoan{Round: testRound, LoanAmount: pool.Coins(5)},
			kind:  reverts.InvalidRequest,
		},
		{
			name:  "above max stake",
			value: pool.Coins(3),
			body:  msg.RequestLoan{Round: testRound, LoanAmount: pool.Coins(2_000_000)},
			kind:  reverts.InvalidRequest,
		},
		{
			name:  "no loan",
			value: pool.Coins(30),
			body:  msg.RequestLoan{Round: testRound},
			kind:  reverts.InvalidRequest,
		},
		{
			name:  "stopped",
			setup: func(ts *TreasuryTest) { ts.state.Stopped = true },
			value: pool.Coins(5),
			body:  msg.RequestLoan{Round: testRound, LoanAmount: pool.Coins(100)},
			kind:  reverts.InvalidPhase,
		},
		{
			name:  "halted",
			setup: func(ts *TreasuryTest) { ts.state.Halted = true },
			value: pool.Coins(5),
			body:  msg.RequestLoan{Round: testRound, LoanAmount: pool.Coins(100)},
			kind:  reverts.Halted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTest(t)
			if tt.setup != nil {
				tt.setup(ts)
			}
			before := ts.Hash()
			ts.Send(validator, tt.value, tt.body).AssertRevert(tt.kind, tt.value)
			assert.Equal(t, validator, ts.out[0].Dest())
			assert.Equal(t, before, ts.Hash(), "state must not change")
		})
	}
}

func TestRequestLoanReplace(t *testing.T) {
	ts := newTest(t)
	validator := datagen.RandAddress()

	ts.RequestLoan(validator, 100, 5, 1, 0).AssertOK()
	assert.Empty(t, ts.out)
	assertCoins(t, pool.Coins(5), ts.state.TotalBorrowersStake)

	ts.RequestLoan(validator, 120, 7, 1, 0).AssertOK()
	refunds := filter[msg.Refund](ts.out)
	require.Len(t, refunds, 1)
	assert.Equal(t, validator, refunds[0].To)
	assertCoins(t, pool.Coins(5), refunds[0].Value)

	p := ts.Participation()
	assert.Len(t, p.Requests, 1)
	assertCoins(t, pool.Coins(120), p.Requests[validator].LoanAmount)
	assertCoins(t, pool.Coins(7), ts.state.TotalBorrowersStake)
	// both request fees stay as surplus
	assertCoins(t, pool.Coins(2), ts.state.Surplus())
}

// Three validators bid against a pool that can fund about 350 coins and has
// two committee slots. Without balanced rounds the ranking follows yield, so
// the first bid is the worst and is refunded when the third arrives.
func TestThreeValidatorsScenario(t *testing.T) {
	params := testParams()
	params.MaxLoansPerRound = 2
	ts := newTestWithParams(t, params)
	ts.state.BalancedRounds = false
	ts.state.RoundsImbalance = 0
	ts.Deposit(700)

	validators := datagen.RandAddresses(3)
	ts.RequestLoan(validators[0], 150, 1, 50, 0).AssertOK()
	ts.RequestLoan(validators[1], 160, 1, 60, 0).AssertOK()
	assert.Empty(t, ts.out)

	ts.RequestLoan(validators[2], 170, 1, 70, 0).AssertOK()
	refunds := filter[msg.Refund](ts.out)
	require.Len(t, refunds, 1)
	assert.Equal(t, validators[0], refunds[0].To)
	assertCoins(t, pool.Coins(1), refunds[0].Value, "escrow refunded exactly")

	ts.Participate().AssertOK().Drain()
	stakes := filter[msg.NewStake](ts.out)
	require.Len(t, stakes, 2)
	assert.Equal(t, validators[2], stakes[0].Validator)
	assertCoins(t, pool.Coins(171), stakes[0].Value)
	assert.Equal(t, ts.Proxy(validators[2]), stakes[0].Proxy)
	assert.Equal(t, validators[1], stakes[1].Validator)
	assertCoins(t, pool.Coins(161), stakes[1].Value)
	assert.Equal(t, []byte{0x01}, []byte(stakes[0].ElectorMsg))

	ts.AssertPhase(PhaseStaked)
	assertCoins(t, pool.Coins(330), ts.state.TotalInLoan)
	assertCoins(t, pool.Coins(0), ts.state.TotalBorrowersStake)
}

func TestCapacityExceeded(t *testing.T) {
	params := testParams()
	params.MaxLoansPerRound = 1
	ts := newTest(t)
	ts.Treasury = New(params)

	good, bad := datagen.RandAddress(), datagen.RandAddress()
	ts.RequestLoan(good, 100, 5, 1, 200).AssertOK()
	before := ts.Hash()

	ts.RequestLoan(bad, 100, 5, 1, 10).AssertRevert(reverts.CapacityExceeded, pool.Coins(6))
	assert.Equal(t, before, ts.Hash())
	assert.Len(t, ts.Participation().Requests, 1)
}

// The granted loans are always the best K requests by sort key, and every
// other request gets exactly its escrow back.
func TestBestKAcceptance(t *testing.T) {
	for range 5 {
		ts := newTest(t)
		ts.snap.Config.MaxValidators = 7
		ts.Deposit(1_000_000)

		keys := make(map[pool.Address]*sortkey.Request)
		paid := make(map[pool.Address]*big.Int)     // value attached to each request
		refunded := make(map[pool.Address]*big.Int) // value returned to each validator
		for _, v := range datagen.RandAddresses(25) {
			req := &sortkey.Request{
				Validator:   v,
				LoanAmount:  pool.Coins(int64(datagen.RandIntN(500) + 10)),
				Stake:       pool.Coins(int64(datagen.RandIntN(20) + 1)),
				MinPayment:  pool.Coins(int64(datagen.RandIntN(10))),
				RewardShare: uint8(datagen.RandIntN(256)),
			}
			keys[v] = req
			value := new(big.Int).Add(req.Stake, ts.params.RequestLoanFee)
			paid[v] = value

			ts.Send(v, value, msg.RequestLoan{Round: testRound, LoanAmount: req.LoanAmount, MinPayment: req.MinPayment, RewardShare: req.RewardShare})
			if ts.res.Reverted() {
				require.Equal(t, reverts.CapacityExceeded, reverts.KindOf(ts.res.Err))
			}
			for _, r := range filter[msg.Refund](ts.out) {
				refunded[r.To] = r.Value
			}
		}

		ranked := make([]pool.Address, 0, len(keys))
		for v := range keys {
			ranked = append(ranked, v)
		}
		slices.SortFunc(ranked, func(a, b pool.Address) int {
			return sortkey.Compute(keys[a], true).Cmp(sortkey.Compute(keys[b], true))
		})
		best := ranked[:7]

		p := ts.Participation()
		assert.Equal(t, best, p.Sorted())
		for _, v := range ranked[7:] {
			value, ok := refunded[v]
			require.True(t, ok, "request %v not refunded", v)
			if value.Cmp(paid[v]) != 0 {
				// evicted after being accepted: the fee is kept, the escrow returned
				assertCoins(t, keys[v].Stake, value)
			}
		}
		for _, v := range best {
			assert.NotContains(t, refunded, v)
		}

		ts.Participate().AssertOK().Drain()
		stakes := filter[msg.NewStake](ts.out)
		got := make([]pool.Address, 0, len(stakes))
		for _, s := range stakes {
			got = append(got, s.Validator)
			assertCoins(t, keys[s.Validator].Committed(), s.Value)
		}
		assert.Equal(t, best, got, "granted in rank order")
	}
}

func TestFundsLimit(t *testing.T) {
	ts := newTest(t)
	ts.Deposit(240)

	validators := datagen.RandAddresses(3)
	ts.RequestLoan(validators[0], 100, 5, 1, 0).AssertOK()
	ts.RequestLoan(validators[1], 200, 5, 1, 0).AssertOK()
	ts.RequestLoan(validators[2], 150, 5, 1, 0).AssertOK()

	ts.Participate().AssertOK().Drain()
	stakes := filter[msg.NewStake](ts.out)
	refunds := filter[msg.Refund](ts.out)

	// balanced rounds: 105 ranks first, 155 second and does not fit, 205 neither
	require.Len(t, stakes, 1)
	assert.Equal(t, validators[0], stakes[0].Validator)
	require.Len(t, refunds, 2)
	for _, r := range refunds {
		assertCoins(t, pool.Coins(5), r.Value)
	}
	assertCoins(t, pool.Coins(100), ts.state.TotalInLoan)
}

func TestUnstakingReservesLiquidity(t *testing.T) {
	ts := newTest(t)
	ts.Deposit(300)
	ts.state.TotalUnstaking = pool.Coins(100)

	v := datagen.RandAddress()
	ts.state.Participations[testRound] = newParticipation(testRound)
	ts.state.Participations[testRound].Receipts = []*Receipt{{Owner: v, Unstaking: true, Amount: pool.Coins(100)}}
	ts.state.Participations[testRound].State = PhaseBurning

	c := &call{params: &ts.params, state: ts.state, snap: ts.snap}
	p := newParticipation(testRound + 1000)
	assertCoins(t, pool.Coins(200), c.available(p))

	ts.state.RoundsImbalance = 0
	assertCoins(t, pool.Coins(150), c.available(p))
}

func TestParticipateChecks(t *testing.T) {
	ts := newTest(t)
	ts.Participate().AssertRevert(reverts.InvalidRequest, nil)

	ts.Deposit(1000)
	ts.RequestLoan(datagen.RandAddress(), 100, 5, 1, 0).AssertOK()

	ts.snap.Now = 1950
	ts.Participate().AssertRevert(reverts.InvalidPhase, nil)

	ts.snap.Now = 1600
	ts.Participate().AssertOK()
	ts.Participate().AssertRevert(reverts.InvalidPhase, nil)
	ts.RequestLoan(datagen.RandAddress(), 100, 5, 1, 0).AssertRevert(reverts.InvalidPhase, pool.Coins(6))
}

func TestBatchedDistribution(t *testing.T) {
	params := testParams()
	params.MaxBatchMessages = 4
	ts := newTestWithParams(t, params)
	ts.Deposit(1000)

	for _, v := range datagen.RandAddresses(10) {
		ts.RequestLoan(v, 20, 1, 1, 0).AssertOK()
	}
	ts.Participate().AssertOK()
	assert.Len(t, ts.out, 5)
	cont, ok := ts.out[4].(msg.Continue)
	require.True(t, ok)
	assert.Equal(t, msg.ProcessLoanRequests{Round: testRound, Start: 4}, cont.Body)
	ts.AssertPhase(PhaseDistributing)
	assert.Equal(t, uint32(6), ts.Participation().Size)

	// a stale continuation is ignored
	stale := ts.Hash()
	ts.Send(ts.roles.Self, nil, msg.ProcessLoanRequests{Round: testRound, Start: 0}).AssertOK()
	assert.Empty(t, ts.out)
	assert.Equal(t, stale, ts.Hash())

	// only the treasury continues its own batches
	ts.Send(datagen.RandAddress(), nil, msg.ProcessLoanRequests{Round: testRound, Start: 4}).AssertRevert(reverts.AccessDenied, nil)

	ts.out = []msg.Outbound{cont}
	ts.Drain()
	assert.Len(t, filter[msg.NewStake](ts.out), 6)
	ts.AssertPhase(PhaseStaked)
	assert.Len(t, ts.Participation().Staked, 10)
}
