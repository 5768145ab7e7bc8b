// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import "github.com/vechain/stakepool/metrics"

var (
	metricBacklog        = metrics.LazyLoadGauge("node_backlog_messages")
	metricParticipations = metrics.LazyLoadGaugeVec("node_participations", []string{"phase"})
	metricApplyDuration  = metrics.LazyLoadHistogram("node_apply_duration_ms", []int64{0, 1, 2, 5, 10, 20, 50, 100, 250, 1000})
)
