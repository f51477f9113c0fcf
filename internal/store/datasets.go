package store

import (
	"context"

	"github.com/venuemap/venue-cli/internal/model"
)

// Default keys for the two datasets. With the file backend they map to
// museums.json and geocode_cache.json.
const (
	DefaultRecordsKey = "museums"
	DefaultCacheKey   = "geocode_cache"
)

// RecordStore persists the ordered record list.
type RecordStore struct {
	backend Backend
	key     string
	policy  CorruptPolicy
}

// NewRecordStore binds the record list to key in b.
func NewRecordStore(b Backend, key string, policy CorruptPolicy) *RecordStore {
	if key == "" {
		key = DefaultRecordsKey
	}
	return &RecordStore{backend: b, key: key, policy: policy}
}

// Load returns the persisted records, or an empty list when none exist.
func (s *RecordStore) Load(ctx context.Context) ([]model.Record, error) {
	recs, err := LoadOrRecover(ctx, s.backend, s.key, []model.Record{}, s.policy)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []model.Record{}
	}
	return recs, nil
}

// Save overwrites the persisted list with recs.
func (s *RecordStore) Save(ctx context.Context, recs []model.Record) error {
	if recs == nil {
		recs = []model.Record{}
	}
	return Save(ctx, s.backend, s.key, recs)
}

// Key returns the storage key.
func (s *RecordStore) Key() string { return s.key }

// CacheStore persists the address to geocode outcome cache.
type CacheStore struct {
	backend Backend
	key     string
	policy  CorruptPolicy
}

// NewCacheStore binds the geocode cache to key in b.
func NewCacheStore(b Backend, key string, policy CorruptPolicy) *CacheStore {
	if key == "" {
		key = DefaultCacheKey
	}
	return &CacheStore{backend: b, key: key, policy: policy}
}

// Load returns the persisted cache, or an empty cache when none exists.
func (s *CacheStore) Load(ctx context.Context) (model.GeocodeCache, error) {
	cache, err := LoadOrRecover(ctx, s.backend, s.key, model.GeocodeCache{}, s.policy)
	if err != nil {
		return nil, err
	}
	if cache == nil {
		cache = model.GeocodeCache{}
	}
	return cache, nil
}

// Save overwrites the persisted cache.
func (s *CacheStore) Save(ctx context.Context, cache model.GeocodeCache) error {
	if cache == nil {
		cache = model.GeocodeCache{}
	}
	return Save(ctx, s.backend, s.key, cache)
}

// Key returns the storage key.
func (s *CacheStore) Key() string { return s.key }
