// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package testnode runs a node over in-memory storage for tests.
package testnode

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vechain/stakepool/eventdb"
	"github.com/vechain/stakepool/node"
	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/store"
	"github.com/vechain/stakepool/test/datagen"
	"github.com/vechain/stakepool/test/simnet"
	"github.com/vechain/stakepool/treasury"
	"github.com/vechain/stakepool/treasury/msg"
)

type TestNode struct {
	*node.Node
	Roles   treasury.Roles
	Store   *store.Store
	EventDB *eventdb.EventDB
}

// New starts a node with fresh roles and the default election view. It is
// stopped when the test ends.
func New(t *testing.T, params treasury.Params) *TestNode {
	roles := treasury.Roles{
		Self:            datagen.RandAddress(),
		Governor:        datagen.RandAddress(),
		Halter:          datagen.RandAddress(),
		TokenLedger:     datagen.RandAddress(),
		ReceiptRegistry: datagen.RandAddress(),
	}
	st := store.NewMem()
	edb, err := eventdb.NewMem()
	require.NoError(t, err)

	n := node.New(treasury.New(params), st, edb, treasury.NewState(roles), 0, simnet.DefaultSnapshot(), node.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("node did not stop")
		}
		edb.Close()
		st.Close()
	})
	return &TestNode{Node: n, Roles: roles, Store: st, EventDB: edb}
}

// Send submits one message and fails the test if it could not be applied.
func (tn *TestNode) Send(t *testing.T, sender pool.Address, value *big.Int, body msg.Inbound) *node.Applied {
	applied, err := tn.Submit(context.Background(), msg.NewEnvelope(sender, value, body))
	require.NoError(t, err)
	return applied
}

// RequestLoan places a loan request for the round being elected and requires it to pass.
func (tn *TestNode) RequestLoan(t *testing.T, validator pool.Address, loan, stake *big.Int) {
	value := new(big.Int).Add(stake, tn.Treasury().Params().RequestLoanFee)
	applied := tn.Send(t, validator, value, msg.RequestLoan{
		Round:      tn.Snapshot().NextRound(),
		LoanAmount: loan,
		MinPayment: pool.Coins(1),
	})
	require.NoError(t, applied.Result.Err)
}
