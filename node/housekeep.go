// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"context"
	"time"

	"github.com/beevik/ntp"
	"github.com/ethereum/go-ethereum/common"

	"github.com/vechain/stakepool/treasury"
)

// maxClockOffset is the drift tolerated before warning.
const maxClockOffset = 2 * time.Second

func (n *Node) houseKeeping(ctx context.Context) {
	logger.Debug("enter house keeping")
	defer logger.Debug("leave house keeping")

	ticker := time.NewTicker(n.opts.HousekeepInterval)
	defer ticker.Stop()

	if n.opts.NTPServer != "" {
		checkClockOffset(n.opts.NTPServer)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n.opts.NTPServer != "" {
				checkClockOffset(n.opts.NTPServer)
			}
			n.logStats()
		}
	}
}

func (n *Node) logStats() {
	state := n.State()
	perPhase := make(map[string]int64)
	for _, p := range state.Participations {
		perPhase[treasury.PhaseName(p.State)]++
	}
	for _, name := range treasury.PhaseNames() {
		metricParticipations().SetWithLabel(perPhase[name], map[string]string{"phase": name})
	}
	hit, miss := n.store.CacheStats()
	logger.Debug("node stats",
		"seq", n.Seq(),
		"participations", len(state.Participations),
		"halted", state.Halted,
		"storeCacheHit", hit,
		"storeCacheMiss", miss,
	)
}

func checkClockOffset(server string) {
	resp, err := ntp.Query(server)
	if err != nil {
		logger.Debug("failed to access NTP", "err", err)
		return
	}
	if resp.ClockOffset > maxClockOffset || resp.ClockOffset < -maxClockOffset {
		logger.Warn("clock offset detected", "offset", common.PrettyDuration(resp.ClockOffset))
	}
}
