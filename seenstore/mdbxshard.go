package seenstore

import (
	"container/list"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/erigontech/mdbx-go/mdbx"
)

// shardStore is the exact backstop behind the bloom front filter
// (spec.md §4.3 variant A): S hash-prefix partitioned shards, each an
// MDBX environment, with an LRU of at most K open ("hot") environments.
// A cold shard is transparently reopened on demand.
type shardStore struct {
	mu       sync.Mutex
	baseDir  string
	shards   uint64
	hotLimit int

	lru  *list.List // front = most recently used
	open map[uint64]*list.Element
}

type openShard struct {
	id  uint64
	env *mdbx.Env
}

func newShardStore(baseDir string, shards uint64, hotLimit int) (*shardStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("seenstore: create shard dir: %w", err)
	}
	return &shardStore{
		baseDir:  baseDir,
		shards:   shards,
		hotLimit: hotLimit,
		lru:      list.New(),
		open:     make(map[uint64]*list.Element),
	}, nil
}

// shardOf partitions by hash prefix: the top 32 bits of the 63-bit id.
func (s *shardStore) shardOf(id uint64) uint64 {
	return (id >> 31) % s.shards
}

// observe reports whether id is already recorded in its shard, and
// (unless err != nil) inserts it when absent.
func (s *shardStore) observe(id uint64) (Outcome, error) {
	shardID := s.shardOf(id)
	env, err := s.acquire(shardID)
	if err != nil {
		return Fresh, err
	}

	var key [8]byte
	binary.BigEndian.PutUint64(key[:], id)

	outcome := Fresh
	err = env.Update(func(txn *mdbx.Txn) error {
		dbi, err := txn.OpenRoot(0)
		if err != nil {
			return err
		}
		_, err = txn.Get(dbi, key[:])
		if err == nil {
			outcome = Seen
			return nil
		}
		if !mdbx.IsNotFound(err) {
			return err
		}
		return txn.Put(dbi, key[:], []byte{1}, 0)
	})
	if err != nil {
		return Fresh, fmt.Errorf("seenstore: shard %d: %w", shardID, err)
	}
	return outcome, nil
}

// acquire returns the open environment for shardID, opening it (and
// evicting the coldest hot shard if at capacity) as needed.
func (s *shardStore) acquire(shardID uint64) (*mdbx.Env, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.open[shardID]; ok {
		s.lru.MoveToFront(el)
		return el.Value.(*openShard).env, nil
	}

	if s.lru.Len() >= s.hotLimit {
		back := s.lru.Back()
		if back != nil {
			cold := back.Value.(*openShard)
			cold.env.Close()
			delete(s.open, cold.id)
			s.lru.Remove(back)
		}
	}

	env, err := s.openEnv(shardID)
	if err != nil {
		return nil, err
	}
	el := s.lru.PushFront(&openShard{id: shardID, env: env})
	s.open[shardID] = el
	return env, nil
}

func (s *shardStore) openEnv(shardID uint64) (*mdbx.Env, error) {
	dir := filepath.Join(s.baseDir, fmt.Sprintf("shard_%08d", shardID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("seenstore: create shard dir %s: %w", dir, err)
	}

	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("seenstore: new env: %w", err)
	}
	if err := env.SetOption(mdbx.OptMaxDB, 1); err != nil {
		return nil, err
	}
	if err := env.SetGeometry(-1, -1, 4<<30, -1, -1, 4096); err != nil {
		return nil, err
	}
	dataFile := filepath.Join(dir, "data.mdbx")
	if err := env.Open(dataFile, mdbx.NoSubdir|mdbx.WriteMap, 0o664); err != nil {
		return nil, fmt.Errorf("seenstore: open shard env %s: %w", dataFile, err)
	}
	return env, nil
}

func (s *shardStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for e := s.lru.Front(); e != nil; e = e.Next() {
		if err := e.Value.(*openShard).env.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.lru.Init()
	s.open = make(map[uint64]*list.Element)
	return firstErr
}
