// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"encoding/json"
	"io"
	"os"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/stakepool/store"
	"github.com/vechain/stakepool/treasury"
)

type dumpOutput struct {
	Seq   uint64          `json:"seq"`
	State *treasury.State `json:"state"`
}

func dump(w io.Writer, st *store.Store) error {
	state, err := st.Load()
	if err != nil {
		return err
	}
	seq, err := st.Seq()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(dumpOutput{Seq: seq, State: state})
}

func dumpAction(ctx *cli.Context) error {
	initLogger(ctx)
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return dump(os.Stdout, st)
}
