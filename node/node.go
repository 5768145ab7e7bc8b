// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package node hosts a treasury: it applies inbound messages one at a time,
// feeds continue messages back into its queue, persists every transition and
// publishes the outbound messages for delivery.
package node

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/vechain/stakepool/election"
	"github.com/vechain/stakepool/eventdb"
	"github.com/vechain/stakepool/log"
	"github.com/vechain/stakepool/store"
	"github.com/vechain/stakepool/treasury"
	"github.com/vechain/stakepool/treasury/msg"
)

var logger = log.WithContext("pkg", "node")

var (
	// ErrStopped is returned by Submit once the node is shutting down.
	ErrStopped = errors.New("node stopped")
	// ErrSlowSubscriber fails a subscription that fell behind.
	ErrSlowSubscriber = errors.New("subscriber too slow")
)

// Options for Node.
type Options struct {
	// Clock returns the current time in seconds. Nil keeps the Now of the
	// snapshot set through SetSnapshot.
	Clock func() uint32
	// NTPServer is queried periodically to detect clock drift. Empty disables the check.
	NTPServer string
	// HousekeepInterval is the period of the housekeeping loop.
	HousekeepInterval time.Duration
	// InboxSize bounds the number of messages waiting to be applied.
	InboxSize int
}

// Applied is the outcome of one inbound message.
type Applied struct {
	Seq      uint64
	Time     uint32
	Envelope *msg.Envelope
	Result   *treasury.Result
}

type request struct {
	env  *msg.Envelope
	done chan *Applied // nil for continue messages
}

// Node is the single writer of a treasury state.
type Node struct {
	opts     Options
	treasury *treasury.Treasury
	store    *store.Store
	eventDB  *eventdb.EventDB

	lock  sync.RWMutex
	state *treasury.State
	snap  *election.Snapshot
	seq   uint64

	inbox       chan *request
	backlog     []*request
	appliedFeed event.Feed
	scope       event.SubscriptionScope
	stopped     chan struct{}
}

// New creates a node that resumes from state, the last message applied to it being seq.
func New(
	tr *treasury.Treasury,
	st *store.Store,
	eventDB *eventdb.EventDB,
	state *treasury.State,
	seq uint64,
	snap *election.Snapshot,
	opts Options,
) *Node {
	if opts.InboxSize <= 0 {
		opts.InboxSize = 256
	}
	if opts.HousekeepInterval <= 0 {
		opts.HousekeepInterval = time.Minute
	}
	return &Node{
		opts:     opts,
		treasury: tr,
		store:    st,
		eventDB:  eventDB,
		state:    state,
		snap:     snap.Copy(),
		seq:      seq,
		inbox:    make(chan *request, opts.InboxSize),
		stopped:  make(chan struct{}),
	}
}

// Run applies messages until ctx is canceled or persisting a transition fails.
func (n *Node) Run(ctx context.Context) error {
	defer close(n.stopped)
	defer n.scope.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.applyLoop(ctx) })
	g.Go(func() error { n.houseKeeping(ctx); return nil })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Submit queues env and waits until it is applied.
func (n *Node) Submit(ctx context.Context, env *msg.Envelope) (*Applied, error) {
	req := &request{env: env, done: make(chan *Applied, 1)}
	select {
	case n.inbox <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-n.stopped:
		return nil, ErrStopped
	}
	select {
	case applied := <-req.done:
		return applied, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-n.stopped:
		return nil, ErrStopped
	}
}

// SubscribeApplied delivers every applied message to ch. A subscriber whose
// channel is full when a message is published is dropped, and its subscription
// fails with ErrSlowSubscriber.
func (n *Node) SubscribeApplied(ch chan *Applied) event.Subscription {
	relay := make(chan *Applied)
	feedSub := n.appliedFeed.Subscribe(relay)
	sub := event.NewSubscription(func(quit <-chan struct{}) error {
		defer feedSub.Unsubscribe()
		for {
			select {
			case a := <-relay:
				select {
				case ch <- a:
				default:
					logger.Debug("dropping slow subscriber", "seq", a.Seq)
					return ErrSlowSubscriber
				}
			case err := <-feedSub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	})
	if tracked := n.scope.Track(sub); tracked != nil {
		return tracked
	}
	sub.Unsubscribe()
	return event.NewSubscription(func(<-chan struct{}) error { return ErrStopped })
}

// State returns a copy of the current state.
func (n *Node) State() *treasury.State {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.state.Clone()
}

// Head returns a copy of the current state with the sequence number it was reached at.
func (n *Node) Head() (*treasury.State, uint64) {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.state.Clone(), n.seq
}

// Seq returns the sequence number of the last applied message.
func (n *Node) Seq() uint64 {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.seq
}

// Snapshot returns a copy of the election view.
func (n *Node) Snapshot() *election.Snapshot {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.snapshot()
}

func (n *Node) snapshot() *election.Snapshot {
	snap := n.snap.Copy()
	if n.opts.Clock != nil {
		snap.Now = n.opts.Clock()
	}
	return snap
}

// SetSnapshot replaces the election view.
func (n *Node) SetSnapshot(snap *election.Snapshot) error {
	if err := snap.Config.Validate(); err != nil {
		return errors.WithMessage(err, "election config")
	}
	n.lock.Lock()
	defer n.lock.Unlock()
	n.snap = snap.Copy()
	logger.Info("election view updated", "curr", snap.Curr.Hash, "since", snap.Curr.Since, "until", snap.Curr.Until)
	return nil
}

// Done is closed when Run returns.
func (n *Node) Done() <-chan struct{} {
	return n.stopped
}

// Treasury returns the treasury the node applies messages with.
func (n *Node) Treasury() *treasury.Treasury {
	return n.treasury
}

func (n *Node) applyLoop(ctx context.Context) error {
	logger.Debug("enter apply loop")
	defer logger.Debug("leave apply loop")

	for {
		var req *request
		if len(n.backlog) > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case req = <-n.inbox:
			default:
				req = n.backlog[0]
				n.backlog = n.backlog[1:]
			}
		} else {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case req = <-n.inbox:
			}
		}
		metricBacklog().Set(int64(len(n.backlog)))

		applied, err := n.apply(ctx, req.env)
		if err != nil {
			return err
		}
		for _, m := range applied.Result.Outbound {
			if c, ok := m.(msg.Continue); ok {
				n.backlog = append(n.backlog, &request{env: c.Envelope()})
			}
		}
		if req.done != nil {
			req.done <- applied
		}
		n.appliedFeed.Send(applied)
	}
}

// apply runs env against the current state and persists the transition.
func (n *Node) apply(ctx context.Context, env *msg.Envelope) (*Applied, error) {
	n.lock.Lock()
	defer n.lock.Unlock()

	start := time.Now()
	snap := n.snapshot()
	res := n.treasury.Apply(n.state, snap, env)
	seq := n.seq + 1

	// a reverted message leaves the state as is, only seq moves
	if err := n.store.Save(res.State, seq); err != nil {
		return nil, errors.WithMessage(err, "save state")
	}
	if n.eventDB != nil {
		if err := n.eventDB.Record(ctx, seq, uint64(snap.Now), env, res); err != nil {
			return nil, errors.WithMessage(err, "record message")
		}
	}
	n.state = res.State
	n.seq = seq

	metricApplyDuration().Observe(time.Since(start).Milliseconds())
	if res.Reverted() {
		logger.Debug("message reverted", "seq", seq, "sender", env.Sender, "err", res.Err)
	}
	return &Applied{Seq: seq, Time: snap.Now, Envelope: env, Result: res}, nil
}
