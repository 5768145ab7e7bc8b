// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/test/datagen"
	"github.com/vechain/stakepool/test/simnet"
	"github.com/vechain/stakepool/treasury"
)

func hashOf(t *testing.T, s *treasury.State) pool.Bytes32 {
	h, err := s.Hash()
	require.NoError(t, err)
	return h
}

func stakedNetwork(t *testing.T) (*simnet.Network, uint32) {
	n := simnet.New(treasury.DefaultParams(), nil)
	_, err := n.Deposit(pool.Coins(500))
	require.NoError(t, err)
	for _, v := range datagen.RandAddresses(4) {
		require.NoError(t, n.RequestLoan(v, pool.Coins(50), pool.Coins(5), pool.Coins(1), 10))
	}
	round, err := n.Participate()
	require.NoError(t, err)
	_, err = n.Deposit(pool.Coins(30))
	require.NoError(t, err)
	return n, round
}

func TestEmptyStore(t *testing.T) {
	s := NewMem()
	defer s.Close()

	_, err := s.Load()
	assert.Equal(t, ErrNotFound, err)

	seq, err := s.Seq()
	require.NoError(t, err)
	assert.Zero(t, seq)
}

func TestSaveLoad(t *testing.T) {
	s := NewMem()
	defer s.Close()

	n, round := stakedNetwork(t)
	require.NoError(t, s.Save(n.State, 7))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, hashOf(t, n.State), hashOf(t, loaded))
	require.NoError(t, loaded.Check())
	assert.Len(t, loaded.Participations[round].Staked, 4)

	seq, err := s.Seq()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), seq)

	// unchanged participations are not rewritten
	_, missBefore := s.CacheStats()
	require.NoError(t, s.Save(n.State, 8))
	hit, missAfter := s.CacheStats()
	assert.Equal(t, missBefore, missAfter)
	assert.Positive(t, hit)

	// a settled round disappears from the store
	require.NoError(t, n.PlayRound(round))
	require.NotContains(t, n.State.Participations, round)
	require.NoError(t, s.Save(n.State, 9))

	loaded, err = s.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded.Participations)
	assert.Equal(t, hashOf(t, n.State), hashOf(t, loaded))
}

func TestReopen(t *testing.T) {
	path := t.TempDir()

	s, err := Open(path, &Options{CacheSizeMB: 1})
	require.NoError(t, err)
	n, _ := stakedNetwork(t)
	require.NoError(t, s.Save(n.State, 3))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, hashOf(t, n.State), hashOf(t, loaded))

	// the loaded state keeps applying messages
	n.State = loaded
	_, err = n.Deposit(pool.Coins(10))
	require.NoError(t, err)
	require.NoError(t, n.State.Check())
}
