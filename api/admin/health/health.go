// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vechain/stakepool/api/utils"
	"github.com/vechain/stakepool/election"
	"github.com/vechain/stakepool/treasury"
)

// Backend is the node being checked.
type Backend interface {
	Head() (*treasury.State, uint64)
	Snapshot() *election.Snapshot
	Done() <-chan struct{}
}

type Status struct {
	Healthy    bool   `json:"healthy"`
	Running    bool   `json:"running"`
	Halted     bool   `json:"halted"`
	Stopped    bool   `json:"stopped"`
	Consistent bool   `json:"consistent"`
	Error      string `json:"error,omitempty"`
	Seq        uint64 `json:"seq"`
	NextRound  uint32 `json:"nextRound"`
	WindowOpen bool   `json:"windowOpen"`
}

type Health struct {
	backend Backend
}

func New(backend Backend) *Health {
	return &Health{backend: backend}
}

// Status reports the node healthy while it applies messages, the treasury is
// not halted and its ledger reconciles.
func (h *Health) Status() *Status {
	state, seq := h.backend.Head()
	snap := h.backend.Snapshot()

	s := &Status{
		Running:    true,
		Halted:     state.Halted,
		Stopped:    state.Stopped,
		Consistent: true,
		Seq:        seq,
		NextRound:  snap.NextRound(),
		WindowOpen: snap.WindowOpen(),
	}
	select {
	case <-h.backend.Done():
		s.Running = false
	default:
	}
	if err := state.Check(); err != nil {
		s.Consistent = false
		s.Error = err.Error()
	}
	s.Healthy = s.Running && !s.Halted && s.Consistent
	return s
}

func (h *Health) handleGetHealth(w http.ResponseWriter, _ *http.Request) error {
	status := h.Status()
	w.Header().Set("Content-Type", utils.JSONContentType)
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	return json.NewEncoder(w).Encode(status)
}

func (h *Health) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("health").
		HandlerFunc(utils.WrapHandlerFunc(h.handleGetHealth))
}
