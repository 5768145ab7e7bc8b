// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb

import (
	"encoding/json"
	"math/big"

	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/treasury/msg"
)

// OutcomeOK marks a message that was applied.
const OutcomeOK = "ok"

type Order string

const (
	ASC  Order = "asc"
	DESC Order = "desc"
)

// Range selects sequence numbers in [From, To]. To below From means no upper bound.
type Range struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

type Options struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

// MessageFilter narrows a message query. Nil fields match everything.
type MessageFilter struct {
	Range    *Range        `json:"range"`
	Sender   *pool.Address `json:"sender"`
	Op       *msg.Op       `json:"op"`
	Reverted *bool         `json:"reverted"`
	Order    Order         `json:"order"` // default asc
	Options  *Options      `json:"options"`
}

// Message is an inbound message as recorded.
type Message struct {
	Seq       uint64          `json:"seq"`
	Time      uint64          `json:"time"`
	Op        msg.Op          `json:"op"`
	Sender    pool.Address    `json:"sender"`
	Value     *big.Int        `json:"value"`
	Envelope  json.RawMessage `json:"envelope"`
	Outcome   string          `json:"outcome"`
	Error     string          `json:"error,omitempty"`
	StateHash pool.Bytes32    `json:"stateHash"`
}

// Reverted reports whether the message bounced.
func (m *Message) Reverted() bool {
	return m.Outcome != OutcomeOK
}

// Decode parses the recorded envelope.
func (m *Message) Decode() (*msg.Envelope, error) {
	var env msg.Envelope
	if err := json.Unmarshal(m.Envelope, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Effect is an outbound message as recorded.
type Effect struct {
	Seq   uint64          `json:"seq"`
	Index uint32          `json:"index"`
	Kind  msg.Kind        `json:"kind"`
	Dest  pool.Address    `json:"dest"`
	Value *big.Int        `json:"value"`
	Body  json.RawMessage `json:"body"`
}
