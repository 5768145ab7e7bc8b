// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/cheggaaa/pb.v1"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/stakepool/election"
	"github.com/vechain/stakepool/eventdb"
	"github.com/vechain/stakepool/node"
	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/store"
	"github.com/vechain/stakepool/treasury"
	"github.com/vechain/stakepool/treasury/msg"
)

// replayLine is one line of a replay file: either a new election view or a message.
type replayLine struct {
	Snapshot *election.Snapshot `json:"snapshot,omitempty"`
	Message  *msg.Envelope      `json:"message,omitempty"`
}

func readReplay(r io.Reader) ([]*replayLine, error) {
	var lines []*replayLine
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for n := 1; scanner.Scan(); n++ {
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 || data[0] == '#' {
			continue
		}
		var line replayLine
		if err := json.Unmarshal(data, &line); err != nil {
			return nil, errors.WithMessagef(err, "line %d", n)
		}
		if (line.Snapshot == nil) == (line.Message == nil) {
			return nil, errors.Errorf("line %d: exactly one of snapshot or message is required", n)
		}
		lines = append(lines, &line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// replay applies lines to n in order and counts the reverted messages.
func replay(ctx context.Context, n *node.Node, lines []*replayLine, bar *pb.ProgressBar) (reverted int, err error) {
	for _, line := range lines {
		if line.Snapshot != nil {
			if err := n.SetSnapshot(line.Snapshot); err != nil {
				return reverted, err
			}
		} else {
			applied, err := n.Submit(ctx, line.Message)
			if err != nil {
				return reverted, err
			}
			if applied.Result.Reverted() {
				reverted++
			}
		}
		if bar != nil {
			bar.Increment()
		}
	}
	return reverted, nil
}

func replayAction(ctx *cli.Context) error {
	initLogger(ctx)
	if ctx.NArg() != 1 {
		return errors.New("replay takes exactly one file")
	}
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	params, err := cfg.TreasuryParams()
	if err != nil {
		return err
	}
	snap, err := cfg.Snapshot(0)
	if err != nil {
		return err
	}

	f, err := os.Open(ctx.Args().First())
	if err != nil {
		return err
	}
	lines, err := readReplay(f)
	f.Close()
	if err != nil {
		return err
	}

	var (
		st      *store.Store
		eventDB *eventdb.EventDB
	)
	if ctx.Bool(persistFlag.Name) {
		if st, err = openStore(cfg); err != nil {
			return err
		}
		if eventDB, err = openEventDB(cfg); err != nil {
			st.Close()
			return err
		}
	} else {
		st = store.NewMem()
		if eventDB, err = eventdb.NewMem(); err != nil {
			st.Close()
			return err
		}
	}
	defer st.Close()
	defer eventDB.Close()

	state, seq, err := loadState(st, eventDB, cfg)
	if err != nil {
		return err
	}
	n := node.New(treasury.New(params), st, eventDB, state, seq, snap, node.Options{})

	bar := pb.New(len(lines)).
		SetMaxWidth(90).
		Start()
	defer func() { bar.NotPrint = true }()

	runCtx, cancel := context.WithCancel(handleExitSignal())
	g, runCtx := errgroup.WithContext(runCtx)
	g.Go(func() error { return n.Run(runCtx) })

	reverted, replayErr := replay(runCtx, n, lines, bar)
	cancel()
	if err := g.Wait(); err != nil {
		return err
	}
	if replayErr != nil {
		return replayErr
	}
	bar.Finish()

	final, last := n.Head()
	hash, err := final.Hash()
	if err != nil {
		return err
	}
	fmt.Printf(`Replayed %v lines
    Seq          [ %v ]
    Reverted     [ %v ]
    State hash   [ %v ]
    Total coins  [ %v ]
    Total tokens [ %v ]
    Surplus      [ %v ]
`,
		len(lines),
		last,
		reverted,
		hash,
		pool.FormatCoins(final.TotalCoins),
		pool.FormatCoins(final.TotalTokens),
		pool.FormatCoins(final.Surplus()))
	return nil
}
