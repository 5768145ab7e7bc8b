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

// addReceipt records an in-flight request in p and asks the registry to mint its bill.
func (c *call) addReceipt(p *Participation, owner pool.Address, unstaking bool, amount *big.Int) {
	r := &Receipt{
		Index:     uint32(len(p.Receipts)),
		Owner:     owner,
		Unstaking: unstaking,
		Amount:    new(big.Int).Set(amount),
	}
	p.Receipts = append(p.Receipts, r)
	c.emit(msg.MintBill{
		Registry:  c.state.ReceiptRegistry,
		Round:     p.Round,
		Index:     r.Index,
		Owner:     owner,
		Unstaking: unstaking,
		Coins:     new(big.Int).Set(amount),
	})
}

// depositCoins mints tokens at once when no round holds pool funds, since the
// rate is then final. Otherwise the deposit waits for the newest such round to
// finish, behind a receipt.
func (c *call) depositCoins(m msg.DepositCoins) error {
	value := c.env.Value
	if value.Cmp(c.params.DepositFee) <= 0 {
		return reverts.New(reverts.InsufficientFunds, "value does not cover the deposit fee")
	}
	amount := new(big.Int).Sub(value, c.params.DepositFee)
	if amount.Cmp(c.params.MinDeposit) < 0 {
		return reverts.New(reverts.InsufficientFunds, "deposit below minimum")
	}
	owner := m.Owner
	if owner.IsZero() {
		owner = c.env.Sender
	}

	s := c.state
	if p := c.latestActive(); p != nil {
		s.TotalStaking.Add(s.TotalStaking, amount)
		c.addReceipt(p, owner, false, amount)
		logger.Debug("deposit pending", "round", p.Round, "owner", owner, "amount", pool.FormatCoins(amount))
		return nil
	}

	tokens := s.CoinsToTokens(amount)
	s.TotalCoins.Add(s.TotalCoins, amount)
	s.TotalTokens.Add(s.TotalTokens, tokens)
	c.emit(msg.MintTokens{Ledger: s.TokenLedger, Owner: owner, Tokens: tokens, Coins: amount})
	logger.Debug("deposit minted", "owner", owner, "amount", pool.FormatCoins(amount), "tokens", tokens)
	return nil
}

// freeCoins is what the pool can pay out right now without touching loans or
// coins promised to pending unstakes.
func (c *call) freeCoins() *big.Int {
	s := c.state
	free := new(big.Int).Sub(s.TotalCoins, s.TotalInLoan)
	return free.Sub(free, s.TokensToCoins(s.TotalUnstaking))
}

// unstakeTokens pays burned tokens out at once when the pool is idle and
// liquid, or queues them behind a receipt of the newest active round as long
// as the coins outside loans cover every queued unstake.
func (c *call) unstakeTokens(m msg.UnstakeTokens) error {
	if err := c.requireSender(c.state.TokenLedger, "token ledger"); err != nil {
		return err
	}
	s := c.state
	if m.Tokens == nil || m.Tokens.Sign() <= 0 {
		return reverts.New(reverts.InvalidRequest, "tokens must be positive")
	}
	unclaimed := new(big.Int).Sub(s.TotalTokens, s.TotalUnstaking)
	if m.Tokens.Cmp(unclaimed) > 0 {
		return reverts.New(reverts.InsufficientFunds, "more tokens than issued")
	}

	if p := c.latestActive(); p != nil {
		// queued unstakes are paid from coins that are not out on loan
		reserved := s.TokensToCoins(new(big.Int).Add(s.TotalUnstaking, m.Tokens))
		if reserved.Add(reserved, s.TotalInLoan).Cmp(s.TotalCoins) > 0 {
			return reverts.New(reverts.InsufficientFunds, "not enough coins outside loans")
		}
		s.TotalUnstaking.Add(s.TotalUnstaking, m.Tokens)
		c.addReceipt(p, m.Owner, true, m.Tokens)
		logger.Debug("unstake pending", "round", p.Round, "owner", m.Owner, "tokens", m.Tokens)
		return nil
	}

	coins := s.TokensToCoins(m.Tokens)
	if coins.Cmp(c.freeCoins()) > 0 {
		return reverts.New(reverts.InsufficientFunds, "not enough free coins")
	}
	s.TotalCoins.Sub(s.TotalCoins, coins)
	s.TotalTokens.Sub(s.TotalTokens, m.Tokens)
	c.emit(msg.WithdrawCoins{Owner: m.Owner, Tokens: new(big.Int).Set(m.Tokens), Value: coins})
	logger.Debug("unstake paid", "owner", m.Owner, "tokens", m.Tokens, "coins", pool.FormatCoins(coins))
	return nil
}
