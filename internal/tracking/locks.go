package tracking

import (
	"hash/fnv"
	"sync"
)

const lockShards = 64

// keyLocks serializes work per agent while letting different agents proceed
// in parallel. A sharded mutex table keeps memory bounded regardless of
// fleet size; two agents hashing to the same shard contend, which is
// acceptable at 64 shards.
type keyLocks struct {
	shards [lockShards]sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{}
}

func (k *keyLocks) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	mu := &k.shards[h.Sum32()%lockShards]
	mu.Lock()
	return mu
}
