package pipeline

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultDedupCapacity bounds the content-hash -> chunk_id store.
// Spec.md §5 calls for dedup stores that are "size-bounded with
// weak-reference recovery" rather than unbounded maps; an LRU cache
// is the idiomatic Go stand-in for that: eviction just means the next
// occurrence of that content hash is treated as a fresh canonical
// chunk, which is safe because content hashing is deterministic.
const DefaultDedupCapacity = 200_000

// DedupStore maps a chunk's content hash to the chunk_id first seen
// for that content, shared across every file and batch in a run
// (spec.md §3: "deduplicated by content hash within and across
// files"). Grounded on Aman-CERP/amanmcp's use of
// hashicorp/golang-lru/v2 for bounded, evictable caching, adapted
// from a generic cache into a content-hash -> canonical-chunk-id
// store.
type DedupStore struct {
	cache *lru.Cache[string, string]
}

// NewDedupStore builds a dedup store with the given capacity (<=0
// uses DefaultDedupCapacity).
func NewDedupStore(capacity int) (*DedupStore, error) {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	cache, err := lru.New[string, string](capacity)
	if err != nil {
		return nil, err
	}
	return &DedupStore{cache: cache}, nil
}

// CanonicalID returns the chunk_id already associated with
// contentHash, if one is resident in the store.
func (d *DedupStore) CanonicalID(contentHash string) (string, bool) {
	return d.cache.Get(contentHash)
}

// Record associates contentHash with chunkID unless a canonical chunk
// for that hash is already resident, returning the canonical id and
// whether this call established it (false means contentHash was
// already known, i.e. this chunk is a duplicate).
func (d *DedupStore) Record(contentHash, chunkID string) (canonicalID string, isNew bool) {
	if existing, ok := d.cache.Get(contentHash); ok {
		return existing, false
	}
	d.cache.Add(contentHash, chunkID)
	return chunkID, true
}

// Len reports how many distinct content hashes are currently
// resident.
func (d *DedupStore) Len() int {
	return d.cache.Len()
}
