// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package sorted keeps loan requests ordered by their sort key.
//
// Entries are grouped in buckets by the primary term of their key. Requests
// from validators of similar size (or yield) share a bucket, so insertion and
// removal touch one short slice plus, rarely, the list of bucket ids.
package sorted

import (
	"slices"
	"sort"

	"github.com/holiman/uint256"

	"github.com/vechain/stakepool/pool"
	"github.com/vechain/stakepool/treasury/sortkey"
)

type entry struct {
	key       uint256.Int
	validator pool.Address
}

// Index is an ordered set of validators keyed by sort key. The zero value is not usable.
type Index struct {
	buckets map[uint64][]entry
	ids     []uint64 // ascending
	keys    map[pool.Address]uint256.Int
}

func New() *Index {
	return &Index{
		buckets: make(map[uint64][]entry),
		keys:    make(map[pool.Address]uint256.Int),
	}
}

func (x *Index) Len() int {
	return len(x.keys)
}

// Key returns the key of validator.
func (x *Index) Key(validator pool.Address) (*uint256.Int, bool) {
	key, ok := x.keys[validator]
	if !ok {
		return nil, false
	}
	return &key, true
}

// Insert adds validator with key, re-keying it if it is already present.
func (x *Index) Insert(validator pool.Address, key *uint256.Int) {
	x.Remove(validator)

	id := sortkey.PrimaryOf(key)
	bucket, ok := x.buckets[id]
	if !ok {
		pos := sort.Search(len(x.ids), func(i int) bool { return x.ids[i] >= id })
		x.ids = slices.Insert(x.ids, pos, id)
	}
	pos := sort.Search(len(bucket), func(i int) bool { return bucket[i].key.Cmp(key) >= 0 })
	x.buckets[id] = slices.Insert(bucket, pos, entry{key: *key, validator: validator})
	x.keys[validator] = *key
}

// Remove deletes validator, reporting whether it was present.
func (x *Index) Remove(validator pool.Address) bool {
	key, ok := x.keys[validator]
	if !ok {
		return false
	}
	delete(x.keys, validator)

	id := sortkey.PrimaryOf(&key)
	bucket := x.buckets[id]
	pos := sort.Search(len(bucket), func(i int) bool { return bucket[i].key.Cmp(&key) >= 0 })
	bucket = slices.Delete(bucket, pos, pos+1)
	if len(bucket) > 0 {
		x.buckets[id] = bucket
		return true
	}

	delete(x.buckets, id)
	if i, found := slices.BinarySearch(x.ids, id); found {
		x.ids = slices.Delete(x.ids, i, i+1)
	}
	return true
}

// Worst returns the entry with the highest key.
func (x *Index) Worst() (pool.Address, *uint256.Int, bool) {
	if len(x.ids) == 0 {
		return pool.Address{}, nil, false
	}
	bucket := x.buckets[x.ids[len(x.ids)-1]]
	last := bucket[len(bucket)-1]
	return last.validator, new(uint256.Int).Set(&last.key), true
}

// Best returns the entry with the lowest key.
func (x *Index) Best() (pool.Address, *uint256.Int, bool) {
	if len(x.ids) == 0 {
		return pool.Address{}, nil, false
	}
	first := x.buckets[x.ids[0]][0]
	return first.validator, new(uint256.Int).Set(&first.key), true
}

// Ascend calls fn for every entry from the best to the worst until fn returns false.
func (x *Index) Ascend(fn func(validator pool.Address, key *uint256.Int) bool) {
	for _, id := range x.ids {
		for i := range x.buckets[id] {
			e := &x.buckets[id][i]
			if !fn(e.validator, &e.key) {
				return
			}
		}
	}
}

// Validators returns all validators from the best to the worst.
func (x *Index) Validators() []pool.Address {
	validators := make([]pool.Address, 0, x.Len())
	x.Ascend(func(v pool.Address, _ *uint256.Int) bool {
		validators = append(validators, v)
		return true
	})
	return validators
}
