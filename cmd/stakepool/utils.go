// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/elastic/gosigar"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/stakepool/config"
	"github.com/vechain/stakepool/eventdb"
	"github.com/vechain/stakepool/log"
	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/store"
	"github.com/vechain/stakepool/treasury"
)

func initLogger(ctx *cli.Context) *slog.LevelVar {
	var level slog.LevelVar
	level.Set(log.FromLegacyLevel(ctx.Int(verbosityFlag.Name)))

	var handler slog.Handler
	if ctx.Bool(jsonLogsFlag.Name) {
		handler = log.JSONHandlerWithLevel(os.Stderr, &level)
	} else {
		useColor := (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) &&
			os.Getenv("TERM") != "dumb"
		handler = log.NewTerminalHandlerWithLevel(os.Stderr, &level, useColor)
	}
	log.SetDefault(handler)
	return &level
}

// loadConfig reads the configuration file and applies the flags set on the command line.
func loadConfig(ctx *cli.Context) (*config.File, error) {
	cfg, err := config.Load(ctx.String(configFlag.Name))
	if err != nil {
		return nil, err
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.DataDir = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(cacheFlag.Name) {
		cfg.CacheMB = ctx.Int(cacheFlag.Name)
	}
	if ctx.IsSet(apiAddrFlag.Name) {
		cfg.API.Addr = ctx.String(apiAddrFlag.Name)
	}
	if ctx.IsSet(apiCorsFlag.Name) {
		cfg.API.Cors = ctx.String(apiCorsFlag.Name)
	}
	if ctx.IsSet(adminAddrFlag.Name) {
		cfg.AdminAddr = ctx.String(adminAddrFlag.Name)
	}
	if ctx.Bool(enableAPILogsFlag.Name) {
		cfg.API.EnableLogs = true
	}
	if ctx.Bool(enableMetricsFlag.Name) {
		cfg.API.EnableMetrics = true
	}
	if ctx.Bool(pprofFlag.Name) {
		cfg.API.Pprof = true
	}
	return cfg, nil
}

func normalizeCacheSize(sizeMB int) int {
	if sizeMB < 16 {
		sizeMB = 16
	}

	var mem gosigar.Mem
	if err := mem.Get(); err != nil {
		logger.Warn("failed to get total mem:", "err", err)
	} else {
		// limit to 1/4 os physical ram
		limitMB := int(mem.Total / 1024 / 1024 / 4)
		if sizeMB > limitMB {
			sizeMB = limitMB
			logger.Warn("cache size(MB) limited", "limit", limitMB)
		}
	}
	return sizeMB
}

func openStore(cfg *config.File) (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "create data dir [%v]", cfg.DataDir)
	}
	dir := filepath.Join(cfg.DataDir, "state")
	cacheMB := normalizeCacheSize(cfg.CacheMB)
	st, err := store.Open(dir, &store.Options{
		CacheSizeMB:            cacheMB / 2,
		OpenFilesCacheCapacity: 64,
		ReadCacheMB:            cacheMB / 2,
		WriteBufferMB:          16,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "open state store [%v]", dir)
	}
	return st, nil
}

func openEventDB(cfg *config.File) (*eventdb.EventDB, error) {
	path := filepath.Join(cfg.DataDir, "events.db")
	db, err := eventdb.New(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "open event database [%v]", path)
	}
	return db, nil
}

// loadState resumes the stored treasury, or creates one from the configured
// roles when the store is empty. The event log may trail the store by the
// messages applied just before a crash, but never lead it.
func loadState(st *store.Store, eventDB *eventdb.EventDB, cfg *config.File) (*treasury.State, uint64, error) {
	state, err := st.Load()
	if errors.Is(err, store.ErrNotFound) {
		if err := cfg.ValidateRoles(); err != nil {
			return nil, 0, err
		}
		state, err = treasury.NewState(cfg.Roles), nil
	}
	if err != nil {
		return nil, 0, err
	}
	if err := state.Check(); err != nil {
		return nil, 0, errors.WithMessage(err, "stored state")
	}
	seq, err := st.Seq()
	if err != nil {
		return nil, 0, err
	}
	if eventDB != nil {
		last, err := eventDB.LastSeq(context.Background())
		if err != nil {
			return nil, 0, errors.Wrap(err, "event log")
		}
		if last > seq {
			return nil, 0, errors.Errorf("event log at seq %d is ahead of the state store at %d", last, seq)
		}
		if last < seq {
			logger.Warn("event log behind state store, messages are missing from history", "events", last, "state", seq)
		}
	}
	return state, seq, nil
}

func startAPIServer(addr string, handler http.Handler) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listen API addr [%v]", addr)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second}
	var wg sync.WaitGroup
	wg.Go(func() {
		srv.Serve(listener)
	})
	return "http://" + listener.Addr().String() + "/", func() {
		srv.Close()
		wg.Wait()
	}, nil
}

func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)
		sig := <-exitSignalCh
		logger.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}

func printStartupMessage(dataDir, apiURL string, state *treasury.State, seq uint64, nextRound uint32) {
	fmt.Printf(`Starting %v
    Treasury     [ %v ]
    Seq          [ %v ]
    Total coins  [ %v ]
    Next round   [ %v ]
    Data dir     [ %v ]
    API portal   [ %v ]
`,
		"stakepool "+fullVersion(),
		state.Self,
		seq,
		pool.FormatCoins(state.TotalCoins),
		nextRound,
		dataDir,
		apiURL)
}
