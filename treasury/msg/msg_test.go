// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package msg

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/stakepool/pool"
)

var validator = pool.MustParseAddress("0x7567d83b7b8d80addcb281a71d54fc7b3364ffed")

func TestDecodeEnvelope(t *testing.T) {
	data := `{
		"op": "request_loan",
		"sender": "0x7567d83b7b8d80addcb281a71d54fc7b3364ffed",
		"value": 151000000000,
		"body": {"round": 2000, "loanAmount": 100000000000, "minPayment": 50000000000, "rewardShare": 128, "electorMsg": "0x0102"}
	}`

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(data), &env))

	assert.Equal(t, validator, env.Sender)
	assert.Equal(t, pool.Coins(151), env.Value)
	body, ok := env.Body.(RequestLoan)
	require.True(t, ok)
	assert.Equal(t, uint32(2000), body.Round)
	assert.Equal(t, pool.Coins(100), body.LoanAmount)
	assert.Equal(t, pool.Coins(50), body.MinPayment)
	assert.Equal(t, uint8(128), body.RewardShare)
	assert.Equal(t, []byte{1, 2}, []byte(body.ElectorMsg))
}

func TestEncodeEnvelope(t *testing.T) {
	env := NewEnvelope(validator, big.NewInt(5), RecoverStakeResult{Round: 7, Validator: validator, OK: true})

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, env.Body, decoded.Body)
	assert.Equal(t, env.Value, decoded.Value)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "recover_stake_result", raw["op"])
}

func TestDecodeUnknownAndEmpty(t *testing.T) {
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"op":"self_destruct","sender":"0x7567d83b7b8d80addcb281a71d54fc7b3364ffed"}`), &env))
	assert.Equal(t, Unknown{Name: "self_destruct"}, env.Body)
	assert.Equal(t, Op("self_destruct"), env.Body.Op())
	assert.Equal(t, 0, env.Value.Sign())

	require.NoError(t, json.Unmarshal([]byte(`{"op":"top_up","sender":"0x7567d83b7b8d80addcb281a71d54fc7b3364ffed","value":3}`), &env))
	assert.Equal(t, TopUp{}, env.Body)

	assert.Error(t, json.Unmarshal([]byte(`{"sender":"0x7567d83b7b8d80addcb281a71d54fc7b3364ffed"}`), &env))
	assert.Error(t, json.Unmarshal([]byte(`{"op":"top_up","value":-1}`), &env))
	assert.Error(t, json.Unmarshal([]byte(`{"op":"vset_changed","body":{"round":"x"}}`), &env))
}

func TestOutbound(t *testing.T) {
	out := []Outbound{
		Refund{To: validator, Value: big.NewInt(3)},
		NewStake{Proxy: validator, Validator: validator, Value: big.NewInt(10)},
		RecoverStake{Proxy: validator},
		Continue{Self: validator, Body: BurnAll{Round: 1, Start: 4}},
	}
	assert.Equal(t, big.NewInt(13), Total(out))

	records, err := NewRecords(out)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, KindContinue, records[3].Kind)

	var resumed Envelope
	require.NoError(t, json.Unmarshal(records[3].Body, &resumed))
	assert.Equal(t, BurnAll{Round: 1, Start: 4}, resumed.Body)
	assert.Equal(t, validator, resumed.Sender)

	bill, err := NewRecord(MintBill{Registry: validator, Round: 1, Owner: validator, Coins: big.NewInt(7)})
	require.NoError(t, err)
	assert.Equal(t, 0, bill.Value.Sign())
	var body struct {
		Amount *big.Int `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(bill.Body, &body))
	assert.Equal(t, big.NewInt(7), body.Amount)
}
