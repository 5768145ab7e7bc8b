// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package election describes what the treasury can observe of the external
// election authority: its timing parameters and the current and previous
// validator sets.
package election

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/stakepool/pool"
)

// Config is the timing and sizing configuration published by the election authority.
// All durations are in seconds.
type Config struct {
	ElectFor             uint32   `json:"electFor" yaml:"elect-for"`
	ElectionsStartBefore uint32   `json:"electionsStartBefore" yaml:"elections-start-before"`
	ElectionsEndBefore   uint32   `json:"electionsEndBefore" yaml:"elections-end-before"`
	StakeHeldFor         uint32   `json:"stakeHeldFor" yaml:"stake-held-for"`
	MaxValidators        uint32   `json:"maxValidators" yaml:"max-validators"`
	MinStake             *big.Int `json:"minStake" yaml:"-"`
	MaxStake             *big.Int `json:"maxStake" yaml:"-"`
	MaxPunishment        *big.Int `json:"maxPunishment" yaml:"-"`
}

// Validate checks that the window boundaries are ordered and the stake limits are set.
func (c *Config) Validate() error {
	if c.ElectionsStartBefore <= c.ElectionsEndBefore {
		return errors.New("elections must start before they end")
	}
	if c.ElectFor == 0 {
		return errors.New("elect-for must be positive")
	}
	if c.MaxValidators == 0 {
		return errors.New("max validators must be positive")
	}
	if c.MinStake == nil || c.MaxStake == nil || c.MaxPunishment == nil {
		return errors.New("stake limits must be set")
	}
	if c.MinStake.Cmp(c.MaxStake) > 0 {
		return errors.New("min stake exceeds max stake")
	}
	return nil
}

// Vset is a validator set (committee) with its validity interval.
type Vset struct {
	Hash  pool.Bytes32 `json:"hash"`
	Since uint32       `json:"since"`
	Until uint32       `json:"until"`
}

// Snapshot is the view of the election authority at a point in time.
type Snapshot struct {
	Now    uint32 `json:"now"`
	Config Config `json:"config"`
	Prev   Vset   `json:"prev"`
	Curr   Vset   `json:"curr"`
}

// NextRound returns the key of the round being elected, which is the time the
// current validator set expires.
func (s *Snapshot) NextRound() uint32 {
	return s.Curr.Until
}

// WindowOpen reports whether elections for the next round accept stakes.
func (s *Snapshot) WindowOpen() bool {
	until := s.Curr.Until
	if until < s.Config.ElectionsStartBefore {
		return false
	}
	return until-s.Config.ElectionsStartBefore <= s.Now && s.Now+s.Config.ElectionsEndBefore < until
}

// Consecutive reports whether the previous and current validator sets are two
// genuinely different committees that follow each other without a gap.
func (s *Snapshot) Consecutive() bool {
	return s.Prev.Until == s.Curr.Since && s.Prev.Hash != s.Curr.Hash
}

// Started reports whether the round starting at round is already running.
func (s *Snapshot) Started(round uint32) bool {
	return s.Curr.Since >= round
}

// MaxLoans returns the committee size bound, capped by limit when limit is positive.
func (s *Snapshot) MaxLoans(limit uint32) uint32 {
	if limit > 0 && limit < s.Config.MaxValidators {
		return limit
	}
	return s.Config.MaxValidators
}

// Copy returns a deep copy of the snapshot.
func (s *Snapshot) Copy() *Snapshot {
	cpy := *s
	cpy.Config.MinStake = pool.Copy(s.Config.MinStake)
	cpy.Config.MaxStake = pool.Copy(s.Config.MaxStake)
	cpy.Config.MaxPunishment = pool.Copy(s.Config.MaxPunishment)
	return &cpy
}

// Advance rotates the validator sets: the current set becomes the previous one and
// next, valid from the end of the current set for ElectFor seconds, becomes current.
func (s *Snapshot) Advance(next pool.Bytes32) {
	s.Prev = s.Curr
	s.Curr = Vset{
		Hash:  next,
		Since: s.Prev.Until,
		Until: s.Prev.Until + s.Config.ElectFor,
	}
}
