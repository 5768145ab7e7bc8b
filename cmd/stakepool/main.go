// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/stakepool/api"
	"github.com/vechain/stakepool/api/admin"
	"github.com/vechain/stakepool/log"
	"github.com/vechain/stakepool/metrics"
	"github.com/vechain/stakepool/node"
	"github.com/vechain/stakepool/treasury"
)

var (
	version   string
	gitCommit string
	gitTag    string
	logger    = log.WithContext("pkg", "main")
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "stakepool",
		Usage:     "Liquid staking treasury node",
		Copyright: "2025 VeChain Foundation <https://vechain.org/>",
		Flags: []cli.Flag{
			configFlag,
			dataDirFlag,
			cacheFlag,
			apiAddrFlag,
			apiCorsFlag,
			adminAddrFlag,
			enableAPILogsFlag,
			enableMetricsFlag,
			pprofFlag,
			verbosityFlag,
			jsonLogsFlag,
		},
		Action: runAction,
		Commands: []cli.Command{
			{
				Name:  "replay",
				Usage: "apply a file of recorded messages and print the resulting treasury",
				Flags: []cli.Flag{
					configFlag,
					dataDirFlag,
					persistFlag,
					verbosityFlag,
					jsonLogsFlag,
				},
				ArgsUsage: "<file>",
				Action:    replayAction,
			},
			{
				Name:  "dump",
				Usage: "print the stored treasury state as JSON",
				Flags: []cli.Flag{
					configFlag,
					dataDirFlag,
					verbosityFlag,
					jsonLogsFlag,
				},
				Action: dumpAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	logLevel := initLogger(ctx)
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	params, err := cfg.TreasuryParams()
	if err != nil {
		return err
	}
	snap, err := cfg.Snapshot(unixNow())
	if err != nil {
		return err
	}
	if cfg.API.EnableMetrics {
		metrics.InitializePrometheusMetrics()
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing state store..."); st.Close() }()

	eventDB, err := openEventDB(cfg)
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing event database..."); eventDB.Close() }()

	state, seq, err := loadState(st, eventDB, cfg)
	if err != nil {
		return err
	}

	n := node.New(treasury.New(params), st, eventDB, state, seq, snap, node.Options{
		Clock:     unixNow,
		NTPServer: cfg.NTPServer,
	})

	var apiLogs atomic.Bool
	apiLogs.Store(cfg.API.EnableLogs)
	handler, closeSubs := api.New(n, eventDB, api.Options{
		AllowedOrigins:       cfg.API.Cors,
		EnableReqLogger:      &apiLogs,
		SlowQueriesThreshold: cfg.API.SlowQueriesThreshold,
		Log5xxErrors:         cfg.API.Log5xxErrors,
		EnableMetrics:        cfg.API.EnableMetrics,
		MessagesLimit:        cfg.API.MessagesLimit,
		PprofOn:              cfg.API.Pprof,
	})
	defer closeSubs()

	apiURL, stopAPI, err := startAPIServer(cfg.API.Addr, handler)
	if err != nil {
		return err
	}
	defer func() { logger.Info("stopping API server..."); stopAPI() }()

	if cfg.AdminAddr != "" {
		adminURL, stopAdmin, err := admin.StartServer(cfg.AdminAddr, logLevel, &apiLogs, n)
		if err != nil {
			return err
		}
		defer func() { logger.Info("stopping admin server..."); stopAdmin() }()
		logger.Info("admin API started", "url", adminURL)
	}

	printStartupMessage(cfg.DataDir, apiURL, state, seq, snap.NextRound())
	return n.Run(handleExitSignal())
}

func unixNow() uint32 {
	return uint32(time.Now().Unix())
}
