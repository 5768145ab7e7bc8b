// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package datagen

import (
	"crypto/rand"

	"github.com/vechain/stakepool/pool"
)

func RandomHash() pool.Bytes32 {
	var b32 pool.Bytes32

	rand.Read(b32[:])
	return b32
}

func RandAddress() pool.Address {
	var addr pool.Address

	rand.Read(addr[:])
	return addr
}

// RandAddresses returns n distinct random addresses.
func RandAddresses(n int) []pool.Address {
	seen := make(map[pool.Address]struct{}, n)
	addrs := make([]pool.Address, 0, n)
	for len(addrs) < n {
		addr := RandAddress()
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		addrs = append(addrs, addr)
	}
	return addrs
}
