// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/vechain/stakepool/api/utils"
	"github.com/vechain/stakepool/cache"
	"github.com/vechain/stakepool/treasury"
)

const viewCacheSize = 16

// Backend exposes the treasury state being served.
type Backend interface {
	Head() (*treasury.State, uint64)
	Seq() uint64
}

// view is everything served for one state, built once per sequence number.
type view struct {
	treasury       *Treasury
	participations []*Participation
	details        map[uint32]*ParticipationDetail
}

type Ledger struct {
	backend Backend
	views   *cache.LRU[uint64, *view]
}

func New(backend Backend) *Ledger {
	views, _ := cache.NewLRU[uint64, *view](viewCacheSize)
	return &Ledger{backend: backend, views: views}
}

func (l *Ledger) view() (*view, error) {
	if v, ok := l.views.Get(l.backend.Seq()); ok {
		return v, nil
	}
	state, seq := l.backend.Head()
	hash, err := state.Hash()
	if err != nil {
		return nil, errors.WithMessage(err, "hash state")
	}
	v := &view{
		treasury: convertTreasury(state, seq, hash),
		details:  make(map[uint32]*ParticipationDetail, len(state.Participations)),
	}
	for _, round := range state.Rounds() {
		p := state.Participations[round]
		v.participations = append(v.participations, convertParticipation(p))
		v.details[round] = convertDetail(state.Self, p)
	}
	l.views.Add(seq, v)
	return v, nil
}

func (l *Ledger) handleGetTreasury(w http.ResponseWriter, _ *http.Request) error {
	v, err := l.view()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, v.treasury)
}

func (l *Ledger) handleGetParticipations(w http.ResponseWriter, req *http.Request) error {
	v, err := l.view()
	if err != nil {
		return err
	}
	phase := req.URL.Query().Get("phase")
	if phase == "" {
		return utils.WriteJSON(w, v.participations)
	}
	filtered := make([]*Participation, 0, len(v.participations))
	for _, p := range v.participations {
		if p.Phase == phase {
			filtered = append(filtered, p)
		}
	}
	return utils.WriteJSON(w, filtered)
}

func (l *Ledger) handleGetParticipation(w http.ResponseWriter, req *http.Request) error {
	round, err := utils.ParseUint32(mux.Vars(req)["round"], "round")
	if err != nil {
		return err
	}
	v, err := l.view()
	if err != nil {
		return err
	}
	d, ok := v.details[round]
	if !ok {
		return utils.NotFound(errors.Errorf("no participation in round %d", round))
	}
	return utils.WriteJSON(w, d)
}

func (l *Ledger) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /treasury").
		HandlerFunc(utils.WrapHandlerFunc(l.handleGetTreasury))
	sub.Path("/participations").
		Methods(http.MethodGet).
		Name("GET /treasury/participations").
		HandlerFunc(utils.WrapHandlerFunc(l.handleGetParticipations))
	sub.Path("/participations/{round}").
		Methods(http.MethodGet).
		Name("GET /treasury/participations/{round}").
		HandlerFunc(utils.WrapHandlerFunc(l.handleGetParticipation))
}
