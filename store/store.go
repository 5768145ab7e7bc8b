// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package store persists the treasury state in leveldb.
//
// The ledger is kept in one record and every participation in a record of its
// own, keyed by round, so applying a message rewrites only what it touched.
package store

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
	"github.com/qianbin/directcache"
	"github.com/syndtr/goleveldb/leveldb"
	dberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/vechain/stakepool/cache"
	"github.com/vechain/stakepool/log"
	"github.com/vechain/stakepool/treasury"
)

var logger = log.WithContext("pkg", "store")

const (
	ledgerSpace        = byte(0) // the key space for the ledger record.
	participationSpace = byte(1) // the key space for participation records.
	propSpace          = byte(2) // the key space for store properties.
)

var (
	writeOpt = opt.WriteOptions{}
	readOpt  = opt.ReadOptions{}
	scanOpt  = opt.ReadOptions{DontFillCache: true}

	ledgerKey = []byte{ledgerSpace}
	seqKey    = []byte{propSpace, 's'}
)

// ErrNotFound is returned by Load when nothing was saved yet.
var ErrNotFound = errors.New("store: no state saved")

// Options optional parameters for Store.
type Options struct {
	// CacheSizeMB is the size of the cache for encoded participations.
	CacheSizeMB int
	// OpenFilesCacheCapacity is the capacity of open files caching for underlying database.
	OpenFilesCacheCapacity int
	// ReadCacheMB is the size of read cache for underlying database.
	ReadCacheMB int
	// WriteBufferMB is the size of write buffer for underlying database.
	WriteBufferMB int
}

// Store keeps the latest treasury state.
type Store struct {
	db    *leveldb.DB
	blobs *directcache.Cache // last written participation records, by key.
	stats cache.Stats
	lock  sync.Mutex
}

// Open opens or creates the store at the given path.
func Open(path string, options *Options) (*Store, error) {
	if options == nil {
		options = &Options{}
	}
	ldbOpts := opt.Options{
		OpenFilesCacheCapacity: max(options.OpenFilesCacheCapacity, 16),
		BlockCacheCapacity:     max(options.ReadCacheMB, 8) * opt.MiB,
		WriteBuffer:            max(options.WriteBufferMB, 4) * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	}

	ldb, err := leveldb.OpenFile(path, &ldbOpts)
	if _, corrupted := err.(*dberrors.ErrCorrupted); corrupted {
		logger.Warn("store corrupted, recovering", "path", path)
		ldb, err = leveldb.RecoverFile(path, &ldbOpts)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	return newStore(ldb, options.CacheSizeMB), nil
}

// NewMem creates a memory-backed store.
func NewMem() *Store {
	ldb, _ := leveldb.Open(storage.NewMemStorage(), nil)
	return newStore(ldb, 1)
}

func newStore(ldb *leveldb.DB, cacheSizeMB int) *Store {
	return &Store{
		db:    ldb,
		blobs: directcache.New(max(cacheSizeMB, 1) * 1024 * 1024),
	}
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func participationKey(round uint32) []byte {
	return binary.BigEndian.AppendUint32([]byte{participationSpace}, round)
}

// Load reads the saved state. It returns ErrNotFound on an empty store.
func (s *Store) Load() (*treasury.State, error) {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, errors.Wrap(err, "snapshot")
	}
	defer snap.Release()

	data, err := snap.Get(ledgerKey, &readOpt)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get ledger")
	}
	var state treasury.State
	if err := rlp.DecodeBytes(data, &state); err != nil {
		return nil, errors.Wrap(err, "decode ledger")
	}

	it := snap.NewIterator(util.BytesPrefix([]byte{participationSpace}), &scanOpt)
	defer it.Release()
	for it.Next() {
		var p treasury.Participation
		if err := rlp.DecodeBytes(it.Value(), &p); err != nil {
			return nil, errors.Wrapf(err, "decode participation %x", it.Key())
		}
		state.Participations[p.Round] = &p
		_ = s.blobs.Set(it.Key(), it.Value())
	}
	if err := it.Error(); err != nil {
		return nil, errors.Wrap(err, "iterate participations")
	}
	state.Reindex()
	return &state, nil
}

// Save writes state, together with the sequence number of the last message
// applied to it, in one atomic batch. Participations whose record did not
// change are skipped and those no longer in state are deleted.
func (s *Store) Save(state *treasury.State, seq uint64) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	batch := new(leveldb.Batch)

	ledger, err := rlp.EncodeToBytes(state.Ledger())
	if err != nil {
		return errors.Wrap(err, "encode ledger")
	}
	batch.Put(ledgerKey, ledger)
	batch.Put(seqKey, binary.BigEndian.AppendUint64(nil, seq))

	it := s.db.NewIterator(util.BytesPrefix([]byte{participationSpace}), &scanOpt)
	for it.Next() {
		round := binary.BigEndian.Uint32(it.Key()[1:])
		if _, ok := state.Participations[round]; !ok {
			key := append([]byte(nil), it.Key()...)
			batch.Delete(key)
			s.blobs.Del(key)
		}
	}
	it.Release()
	if err := it.Error(); err != nil {
		return errors.Wrap(err, "iterate participations")
	}

	for _, round := range state.Rounds() {
		data, err := rlp.EncodeToBytes(state.Participations[round])
		if err != nil {
			return errors.Wrapf(err, "encode participation %d", round)
		}
		key := participationKey(round)
		if s.unchanged(key, data) {
			continue
		}
		batch.Put(key, data)
		_ = s.blobs.Set(key, data)
	}

	if err := s.db.Write(batch, &writeOpt); err != nil {
		return errors.Wrap(err, "write batch")
	}
	metricRecordsWritten().Add(int64(batch.Len()))
	return nil
}

// unchanged reports whether the cached record under key equals data.
func (s *Store) unchanged(key, data []byte) bool {
	same := false
	if s.blobs.AdvGet(key, func(val []byte) {
		same = bytes.Equal(val, data)
	}, true) {
		s.stats.Hit()
	} else {
		s.stats.Miss()
	}
	return same
}

// Seq returns the sequence number stored by the last Save, zero if none.
func (s *Store) Seq() (uint64, error) {
	data, err := s.db.Get(seqKey, &readOpt)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return 0, nil
		}
		return 0, errors.Wrap(err, "get seq")
	}
	if len(data) != 8 {
		return 0, errors.New("malformed seq record")
	}
	return binary.BigEndian.Uint64(data), nil
}

// CacheStats returns the hits and misses of the record cache.
func (s *Store) CacheStats() (hit, miss int64) {
	return s.stats.Counts()
}
