// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package msg

import (
	"encoding/json"
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/stakepool/pool"
)

type jsonEnvelope struct {
	Op     Op              `json:"op"`
	Sender pool.Address    `json:"sender"`
	Value  *big.Int        `json:"value"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// MarshalJSON encodes the envelope as {"op", "sender", "value", "body"}.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	je := jsonEnvelope{
		Sender: e.Sender,
		Value:  pool.Copy(e.Value),
	}
	if e.Body != nil {
		je.Op = e.Body.Op()
		if _, unknown := e.Body.(Unknown); !unknown {
			body, err := json.Marshal(e.Body)
			if err != nil {
				return nil, err
			}
			je.Body = body
		}
	}
	return json.Marshal(&je)
}

// UnmarshalJSON decodes an envelope. Operations that are not recognised decode
// to Unknown, so the treasury can bounce them.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var je jsonEnvelope
	if err := json.Unmarshal(data, &je); err != nil {
		return err
	}
	if je.Op == "" {
		return errors.New("missing op")
	}

	e.Sender = je.Sender
	e.Value = pool.Copy(je.Value)
	if e.Value.Sign() < 0 {
		return errors.New("negative value")
	}

	ptr, unwrap := newInbound(je.Op)
	if ptr == nil {
		e.Body = Unknown{Name: string(je.Op)}
		return nil
	}
	if len(je.Body) > 0 && string(je.Body) != "null" {
		if err := json.Unmarshal(je.Body, ptr); err != nil {
			return errors.Wrapf(err, "decode %s body", je.Op)
		}
	}
	e.Body = unwrap(ptr)
	return nil
}

// Record is the JSON form of an outbound message.
type Record struct {
	Kind  Kind            `json:"kind"`
	Dest  pool.Address    `json:"dest"`
	Value *big.Int        `json:"value"`
	Body  json.RawMessage `json:"body"`
}

// NewRecord encodes an outbound message. A continue message carries the
// envelope it resumes as its body.
func NewRecord(m Outbound) (*Record, error) {
	var (
		body []byte
		err  error
	)
	if c, ok := m.(Continue); ok {
		body, err = json.Marshal(c.Envelope())
	} else {
		body, err = json.Marshal(m)
	}
	if err != nil {
		return nil, err
	}
	return &Record{
		Kind:  m.Kind(),
		Dest:  m.Dest(),
		Value: m.Amount(),
		Body:  body,
	}, nil
}

// NewRecords encodes a batch of outbound messages.
func NewRecords(msgs []Outbound) ([]*Record, error) {
	records := make([]*Record, 0, len(msgs))
	for _, m := range msgs {
		r, err := NewRecord(m)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s", m.Kind())
		}
		records = append(records, r)
	}
	return records, nil
}
