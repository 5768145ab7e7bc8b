// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package treasury

import (
	"github.com/vechain/stakepool/metrics"
)

var (
	metricMessages       = metrics.LazyLoadCounterVec("treasury_messages_count", []string{"op", "outcome"})
	metricLoans          = metrics.LazyLoadCounterVec("treasury_loans_count", []string{"decision"})
	metricRecoveries     = metrics.LazyLoadCounterVec("treasury_recoveries_count", []string{"result"})
	metricBillsBurned    = metrics.LazyLoadCounter("treasury_bills_burned_count")
	metricBatchSize      = metrics.LazyLoadHistogram("treasury_batch_size", metrics.BucketBatch)
	metricParticipations = metrics.LazyLoadGauge("treasury_participations")
	metricTotalInLoan    = metrics.LazyLoadGauge("treasury_in_loan_coins")
)
