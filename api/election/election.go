// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package election

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/vechain/stakepool/api/utils"
	"github.com/vechain/stakepool/election"
	"github.com/vechain/stakepool/pool"
)

// Backend holds the election view messages are applied against.
type Backend interface {
	Snapshot() *election.Snapshot
	SetSnapshot(snap *election.Snapshot) error
}

// Advance rotates the committee. Now defaults to the start of the new committee.
type Advance struct {
	Next pool.Bytes32 `json:"next"`
	Now  *uint32      `json:"now"`
}

// Clock moves the time of the view.
type Clock struct {
	Now uint32 `json:"now"`
}

// Status is the election view with the values derived from it.
type Status struct {
	*election.Snapshot
	NextRound   uint32 `json:"nextRound"`
	WindowOpen  bool   `json:"windowOpen"`
	Consecutive bool   `json:"consecutive"`
}

func convertStatus(snap *election.Snapshot) *Status {
	return &Status{
		Snapshot:    snap,
		NextRound:   snap.NextRound(),
		WindowOpen:  snap.WindowOpen(),
		Consecutive: snap.Consecutive(),
	}
}

type Election struct {
	backend Backend
}

func New(backend Backend) *Election {
	return &Election{backend: backend}
}

func (e *Election) handleGet(w http.ResponseWriter, _ *http.Request) error {
	return utils.WriteJSON(w, convertStatus(e.backend.Snapshot()))
}

func (e *Election) handlePut(w http.ResponseWriter, req *http.Request) error {
	var snap election.Snapshot
	if err := utils.ParseJSON(req.Body, &snap); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := e.backend.SetSnapshot(&snap); err != nil {
		return utils.BadRequest(err)
	}
	return utils.WriteJSON(w, convertStatus(e.backend.Snapshot()))
}

func (e *Election) handleAdvance(w http.ResponseWriter, req *http.Request) error {
	var adv Advance
	if err := utils.ParseJSON(req.Body, &adv); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if adv.Next.IsZero() {
		return utils.BadRequest(errors.New("next: committee hash is required"))
	}
	snap := e.backend.Snapshot()
	snap.Advance(adv.Next)
	snap.Now = snap.Curr.Since
	if adv.Now != nil {
		snap.Now = *adv.Now
	}
	if err := e.backend.SetSnapshot(snap); err != nil {
		return utils.BadRequest(err)
	}
	return utils.WriteJSON(w, convertStatus(e.backend.Snapshot()))
}

func (e *Election) handleClock(w http.ResponseWriter, req *http.Request) error {
	var clock Clock
	if err := utils.ParseJSON(req.Body, &clock); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	snap := e.backend.Snapshot()
	snap.Now = clock.Now
	if err := e.backend.SetSnapshot(snap); err != nil {
		return utils.BadRequest(err)
	}
	return utils.WriteJSON(w, convertStatus(e.backend.Snapshot()))
}

func (e *Election) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /election").
		HandlerFunc(utils.WrapHandlerFunc(e.handleGet))
	sub.Path("").
		Methods(http.MethodPut).
		Name("PUT /election").
		HandlerFunc(utils.WrapHandlerFunc(e.handlePut))
	sub.Path("/advance").
		Methods(http.MethodPost).
		Name("POST /election/advance").
		HandlerFunc(utils.WrapHandlerFunc(e.handleAdvance))
	sub.Path("/clock").
		Methods(http.MethodPost).
		Name("POST /election/clock").
		HandlerFunc(utils.WrapHandlerFunc(e.handleClock))
}
