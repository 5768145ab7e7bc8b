// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package treasury

import (
	"math/big"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/stakepool/election"
	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/test/datagen"
	"github.com/vechain/stakepool/treasury/msg"
	"github.com/vechain/stakepool/treasury/reverts"
)

const testRound = uint32(2000)

type TreasuryTest struct {
	*Treasury
	t     *testing.T
	state *State
	snap  *election.Snapshot
	roles Roles
	res   *Result
	out   []msg.Outbound
}

func testParams() Params {
	params := DefaultParams()
	params.RequestLoanFee = pool.Coins(1)
	params.DepositFee = big.NewInt(0)
	return params
}

func newTest(t *testing.T) *TreasuryTest {
	return newTestWithParams(t, testParams())
}

func newTestWithParams(t *testing.T, params Params) *TreasuryTest {
	require.NoError(t, params.Validate())
	roles := Roles{
		Self:            datagen.RandAddress(),
		Governor:        datagen.RandAddress(),
		Halter:          datagen.RandAddress(),
		TokenLedger:     datagen.RandAddress(),
		ReceiptRegistry: datagen.RandAddress(),
	}
	snap := &election.Snapshot{
		Now: 1600,
		Config: election.Config{
			ElectFor:             1000,
			ElectionsStartBefore: 500,
			ElectionsEndBefore:   100,
			StakeHeldFor:         300,
			MaxValidators:        10,
			MinStake:             pool.Coins(10),
			MaxStake:             pool.Coins(1_000_000),
			MaxPunishment:        pool.Coins(1),
		},
		Prev: election.Vset{Hash: datagen.RandomHash(), Since: 0, Until: 1000},
		Curr: election.Vset{Hash: datagen.RandomHash(), Since: 1000, Until: testRound},
	}
	return &TreasuryTest{
		Treasury: New(params),
		t:        t,
		state:    NewState(roles),
		snap:     snap,
		roles:    roles,
	}
}

// Send applies one message and keeps its outbound messages in ts.out.
func (ts *TreasuryTest) Send(sender pool.Address, value *big.Int, body msg.Inbound) *TreasuryTest {
	ts.res = ts.Apply(ts.state, ts.snap, msg.NewEnvelope(sender, value, body))
	ts.state = ts.res.State
	ts.out = ts.res.Outbound
	if ts.res.Err == nil {
		require.NoError(ts.t, ts.state.Check(), spew.Sdump(ts.state))
	}
	ts.assertCommitted()
	return ts
}

// assertCommitted checks that pending deposits, queued unstakes and loans
// never exceed the value owned by depositors.
func (ts *TreasuryTest) assertCommitted() {
	s := ts.state
	committed := new(big.Int).Add(s.TotalStaking, s.TokensToCoins(s.TotalUnstaking))
	committed.Add(committed, s.TotalInLoan)
	require.True(ts.t, committed.Cmp(s.TotalValue()) <= 0,
		"staking+unstaking+inLoan %v exceeds total value %v", pool.FormatCoins(committed), pool.FormatCoins(s.TotalValue()))
}

// Drain delivers continue messages until none is left, collecting everything else in ts.out.
func (ts *TreasuryTest) Drain() *TreasuryTest {
	pending := ts.out
	var out []msg.Outbound
	for len(pending) > 0 {
		m := pending[0]
		pending = pending[1:]
		c, ok := m.(msg.Continue)
		if !ok {
			out = append(out, m)
			continue
		}
		env := c.Envelope()
		ts.Send(env.Sender, env.Value, env.Body).AssertOK()
		pending = append(pending, ts.out...)
	}
	ts.out = out
	return ts
}

func (ts *TreasuryTest) AssertOK() *TreasuryTest {
	require.NoError(ts.t, ts.res.Err)
	return ts
}

// AssertRevert checks the last message bounced with kind and that its value, if any, was refunded in full.
func (ts *TreasuryTest) AssertRevert(kind reverts.Kind, value *big.Int) *TreasuryTest {
	require.Error(ts.t, ts.res.Err)
	assert.Equal(ts.t, kind, reverts.KindOf(ts.res.Err), ts.res.Err.Error())
	if value != nil && value.Sign() > 0 {
		require.Len(ts.t, ts.out, 1)
		refund, ok := ts.out[0].(msg.Refund)
		require.True(ts.t, ok)
		assertCoins(ts.t, value, refund.Value)
	} else {
		assert.Empty(ts.t, ts.out)
	}
	return ts
}

func (ts *TreasuryTest) Deposit(coins int64) *TreasuryTest {
	return ts.Send(datagen.RandAddress(), pool.Coins(coins), msg.DepositCoins{}).AssertOK()
}

// RequestLoan sends a loan request; the attached value covers the fee and the stake.
func (ts *TreasuryTest) RequestLoan(validator pool.Address, loan, stake, minPayment int64, share uint8) *TreasuryTest {
	value := new(big.Int).Add(pool.Coins(stake), ts.params.RequestLoanFee)
	return ts.Send(validator, value, msg.RequestLoan{
		Round:       testRound,
		LoanAmount:  pool.Coins(loan),
		MinPayment:  pool.Coins(minPayment),
		RewardShare: share,
		ElectorMsg:  []byte{0x01},
	})
}

func (ts *TreasuryTest) Participate() *TreasuryTest {
	return ts.Send(datagen.RandAddress(), nil, msg.ParticipateInElection{Round: testRound})
}

// NextVset rotates the validator sets and moves the clock to the start of the new set.
func (ts *TreasuryTest) NextVset() *TreasuryTest {
	ts.snap.Advance(datagen.RandomHash())
	ts.snap.Now = ts.snap.Curr.Since
	return ts
}

func (ts *TreasuryTest) VsetChanged() *TreasuryTest {
	return ts.Send(datagen.RandAddress(), nil, msg.VsetChanged{Round: testRound})
}

// Hold takes a staked round through validation into the held phase.
func (ts *TreasuryTest) Hold() *TreasuryTest {
	ts.NextVset().VsetChanged().AssertOK()
	ts.NextVset().VsetChanged().AssertOK()
	return ts.AssertPhase(PhaseHeld)
}

func (ts *TreasuryTest) Finish() *TreasuryTest {
	ts.snap.Now = ts.Participation().StakeHeldUntil
	return ts.Send(datagen.RandAddress(), nil, msg.FinishParticipation{Round: testRound})
}

func (ts *TreasuryTest) Proxy(validator pool.Address) pool.Address {
	return pool.ProxyAddress(ts.roles.Self, validator, testRound)
}

func (ts *TreasuryTest) Recovered(validator pool.Address, returned *big.Int) *TreasuryTest {
	return ts.Send(ts.Proxy(validator), returned, msg.RecoverStakeResult{Round: testRound, Validator: validator, OK: true})
}

func (ts *TreasuryTest) Participation() *Participation {
	p, ok := ts.state.Participations[testRound]
	require.True(ts.t, ok, "participation %d missing", testRound)
	return p
}

func (ts *TreasuryTest) AssertPhase(phase Phase) *TreasuryTest {
	assert.Equal(ts.t, PhaseName(phase), PhaseName(ts.Participation().State))
	return ts
}

func (ts *TreasuryTest) AssertNoParticipation() *TreasuryTest {
	_, ok := ts.state.Participations[testRound]
	assert.False(ts.t, ok, "participation %d still present", testRound)
	return ts
}

func (ts *TreasuryTest) Hash() pool.Bytes32 {
	h, err := ts.state.Hash()
	require.NoError(ts.t, err)
	return h
}

func assertCoins(t *testing.T, expected, actual *big.Int, msgAndArgs ...any) {
	t.Helper()
	if expected.Cmp(actual) != 0 {
		assert.Fail(t, "amounts differ", "expected %v, got %v %v", expected, actual, msgAndArgs)
	}
}

// filter returns the outbound messages of type T.
func filter[T msg.Outbound](out []msg.Outbound) []T {
	var list []T
	for _, m := range out {
		if v, ok := m.(T); ok {
			list = append(list, v)
		}
	}
	return list
}
