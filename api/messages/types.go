// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package messages

import (
	"github.com/vechain/stakepool/node"
	"github.com/vechain/stakepool/treasury/msg"
	"github.com/vechain/stakepool/treasury/reverts"
)

// Outcome is the result of one applied message.
type Outcome struct {
	Seq      uint64        `json:"seq"`
	Time     uint32        `json:"time"`
	Reverted bool          `json:"reverted"`
	Kind     string        `json:"kind,omitempty"`
	Error    string        `json:"error,omitempty"`
	Outbound []*msg.Record `json:"outbound"`
}

// ConvertApplied builds the outcome of an applied message.
func ConvertApplied(a *node.Applied) (*Outcome, error) {
	records, err := msg.NewRecords(a.Result.Outbound)
	if err != nil {
		return nil, err
	}
	o := &Outcome{
		Seq:      a.Seq,
		Time:     a.Time,
		Reverted: a.Result.Reverted(),
		Outbound: records,
	}
	if err := a.Result.Err; err != nil {
		o.Kind = reverts.KindOf(err).String()
		o.Error = err.Error()
	}
	return o, nil
}
