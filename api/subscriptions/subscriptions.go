// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/vechain/stakepool/api/messages"
	"github.com/vechain/stakepool/api/utils"
	"github.com/vechain/stakepool/log"
	"github.com/vechain/stakepool/node"
	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/treasury/msg"
)

var logger = log.WithContext("pkg", "subscriptions")

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 7) / 10
	// Applied messages buffered per subscriber.
	bufferSize = 256
)

// Backend publishes applied messages.
type Backend interface {
	SubscribeApplied(ch chan *node.Applied) event.Subscription
}

type Subscriptions struct {
	backend  Backend
	upgrader *websocket.Upgrader
	done     chan struct{}
	wg       sync.WaitGroup
}

// New creates the subscriptions API. Websocket upgrades are accepted from the
// allowed origins, or from anywhere when they contain "*".
func New(backend Backend, allowedOrigins []string) *Subscriptions {
	return &Subscriptions{
		backend: backend,
		upgrader: &websocket.Upgrader{
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, strings.ToLower(origin))
			},
		},
		done: make(chan struct{}),
	}
}

// outboundFilter selects outbound records by kind and destination.
type outboundFilter struct {
	kinds []msg.Kind
	dest  *pool.Address
}

func parseOutboundFilter(req *http.Request) (*outboundFilter, error) {
	f := &outboundFilter{}
	query := req.URL.Query()
	for _, k := range query["kind"] {
		f.kinds = append(f.kinds, msg.Kind(k))
	}
	if d := query.Get("dest"); d != "" {
		addr, err := pool.ParseAddress(d)
		if err != nil {
			return nil, utils.BadRequest(errors.WithMessage(err, "dest"))
		}
		f.dest = &addr
	}
	return f, nil
}

func (f *outboundFilter) match(r *msg.Record) bool {
	if len(f.kinds) > 0 && !slices.Contains(f.kinds, r.Kind) {
		return false
	}
	return f.dest == nil || *f.dest == r.Dest
}

func (s *Subscriptions) handleSubscribeApplied(w http.ResponseWriter, req *http.Request) error {
	s.serve(w, req, func(conn *websocket.Conn, a *node.Applied) error {
		outcome, err := messages.ConvertApplied(a)
		if err != nil {
			return err
		}
		return conn.WriteJSON(outcome)
	})
	return nil
}

func (s *Subscriptions) handleSubscribeOutbound(w http.ResponseWriter, req *http.Request) error {
	filter, err := parseOutboundFilter(req)
	if err != nil {
		return err
	}
	s.serve(w, req, func(conn *websocket.Conn, a *node.Applied) error {
		records, err := msg.NewRecords(a.Result.Outbound)
		if err != nil {
			return err
		}
		for _, r := range records {
			if !filter.match(r) {
				continue
			}
			if err := conn.WriteJSON(r); err != nil {
				return err
			}
		}
		return nil
	})
	return nil
}

// serve upgrades the connection and forwards applied messages through send
// until the peer goes away or the subscriptions are closed. The subscription
// is taken before the upgrade, so nothing applied after the handshake is missed.
func (s *Subscriptions) serve(w http.ResponseWriter, req *http.Request, send func(*websocket.Conn, *node.Applied) error) {
	s.wg.Add(1)
	defer s.wg.Done()

	ch := make(chan *node.Applied, bufferSize)
	sub := s.backend.SubscribeApplied(ch)
	defer sub.Unsubscribe()

	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		logger.Debug("upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	// the read loop only serves control frames and detects the peer closing
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case a := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := send(conn, a); err != nil {
				logger.Debug("subscriber dropped", "err", err)
				return
			}
		case err := <-sub.Err():
			if err != nil {
				logger.Debug("subscription failed", "err", err)
			}
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-s.done:
			bye := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
			conn.WriteControl(websocket.CloseMessage, bye, time.Now().Add(writeWait))
			return
		}
	}
}

// Close ends every subscription and waits for their connections to close.
func (s *Subscriptions) Close() {
	close(s.done)
	s.wg.Wait()
}

func (s *Subscriptions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/applied").
		Methods(http.MethodGet).
		Name("WS /subscriptions/applied").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSubscribeApplied))
	sub.Path("/outbound").
		Methods(http.MethodGet).
		Name("WS /subscriptions/outbound").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSubscribeOutbound))
}
