// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package messages

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/vechain/stakepool/api/utils"
	"github.com/vechain/stakepool/eventdb"
	"github.com/vechain/stakepool/node"
	"github.com/vechain/stakepool/treasury/msg"
)

// Submitter applies inbound messages.
type Submitter interface {
	Submit(ctx context.Context, env *msg.Envelope) (*node.Applied, error)
}

type Messages struct {
	submitter Submitter
	eventDB   *eventdb.EventDB
	limit     uint64
}

// New creates the messages API. A nil eventDB disables the history endpoints.
func New(submitter Submitter, eventDB *eventdb.EventDB, limit uint64) *Messages {
	return &Messages{submitter: submitter, eventDB: eventDB, limit: limit}
}

func (m *Messages) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	var env msg.Envelope
	if err := utils.ParseJSON(req.Body, &env); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	applied, err := m.submitter.Submit(req.Context(), &env)
	if err != nil {
		if errors.Is(err, node.ErrStopped) {
			return utils.ServiceUnavailable(err)
		}
		return err
	}
	outcome, err := ConvertApplied(applied)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, outcome)
}

func (m *Messages) handleQuery(w http.ResponseWriter, req *http.Request) error {
	var filter eventdb.MessageFilter
	if err := utils.ParseJSON(req.Body, &filter); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if filter.Order != "" && filter.Order != eventdb.ASC && filter.Order != eventdb.DESC {
		return utils.BadRequest(errors.New("order: must be asc or desc"))
	}
	if filter.Options == nil {
		filter.Options = &eventdb.Options{Limit: m.limit}
	} else if filter.Options.Limit > m.limit {
		return utils.Forbidden(errors.Errorf("options.limit exceeds the maximum allowed value of %d", m.limit))
	}
	msgs, err := m.eventDB.Messages(req.Context(), &filter)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, msgs)
}

func (m *Messages) handleGetEffects(w http.ResponseWriter, req *http.Request) error {
	seq, err := utils.ParseUint64(mux.Vars(req)["seq"], "seq")
	if err != nil {
		return err
	}
	effects, err := m.eventDB.Effects(req.Context(), seq)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, effects)
}

func (m *Messages) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodPost).
		Name("POST /messages").
		HandlerFunc(utils.WrapHandlerFunc(m.handleSubmit))
	if m.eventDB == nil {
		return
	}
	sub.Path("/query").
		Methods(http.MethodPost).
		Name("POST /messages/query").
		HandlerFunc(utils.WrapHandlerFunc(m.handleQuery))
	sub.Path("/{seq}/effects").
		Methods(http.MethodGet).
		Name("GET /messages/{seq}/effects").
		HandlerFunc(utils.WrapHandlerFunc(m.handleGetEffects))
}
