// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package datagen

import (
	"math/big"
	mathrand "math/rand/v2"

	"github.com/vechain/stakepool/pool"
)

func RandInt() int {
	return mathrand.Int() //#nosec G404
}

func RandIntN(n int) int {
	return mathrand.N(n) //#nosec G404
}

// RandCoins returns a random amount between lo and hi whole coins, inclusive.
func RandCoins(lo, hi int64) *big.Int {
	return pool.Coins(lo + mathrand.Int64N(hi-lo+1)) //#nosec G404
}
