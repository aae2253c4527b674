package filter

import (
	"encoding/binary"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// KnownAds is a thread-safe bloom filter over the ad ids this process has
// seen. Other instances create ads too, so a miss only means "not seen here".
type KnownAds struct {
	filter *bloom.BloomFilter
	mu     sync.RWMutex
}

func NewKnownAds(capacity uint, fpRate float64) *KnownAds {
	return &KnownAds{
		filter: bloom.NewWithEstimates(capacity, fpRate),
	}
}

func key(id int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	return b[:]
}

func (k *KnownAds) Add(id int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.filter.Add(key(id))
}

// MightExist returns false only for ids that were never added.
func (k *KnownAds) MightExist(id int64) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.filter.Test(key(id))
}

// Reset replaces the contents with ids, used when seeding from the store.
func (k *KnownAds) Reset(ids []int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.filter.ClearAll()
	for _, id := range ids {
		k.filter.Add(key(id))
	}
}
