package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheEntry_JSONForm(t *testing.T) {
	cache := GeocodeCache{
		"Main St 1": Found(Coordinates{Lat: 52.1, Lon: 5.2}),
		"Nowhere 9": NotFound(),
	}

	data, err := json.Marshal(cache)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Main St 1":[52.1,5.2],"Nowhere 9":[null,null]}`, string(data))

	var decoded GeocodeCache
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, cache, decoded)
}

func TestCacheEntry_PartialPairIsNotFound(t *testing.T) {
	var e CacheEntry
	require.NoError(t, json.Unmarshal([]byte(`[52.1,null]`), &e))
	assert.False(t, e.IsFound())
}

func TestCacheEntry_BareNullIsNotFound(t *testing.T) {
	var cache GeocodeCache
	require.NoError(t, json.Unmarshal([]byte(`{"Main St 1": [52.1, 5.2], "Other": null, "Empty": []}`), &cache))

	require.Len(t, cache, 3)
	assert.True(t, cache["Main St 1"].IsFound())
	assert.False(t, cache["Other"].IsFound())
	assert.False(t, cache["Empty"].IsFound())
}

func TestCacheEntry_WrongArity(t *testing.T) {
	var e CacheEntry
	err := json.Unmarshal([]byte(`[1,2,3]`), &e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 elements")
}

func TestGeocodeCache_LookupAndStats(t *testing.T) {
	cache := GeocodeCache{
		"a": Found(Coordinates{Lat: 1, Lon: 2}),
		"b": NotFound(),
		"c": NotFound(),
	}

	e, ok := cache.Lookup("a")
	require.True(t, ok)
	assert.True(t, e.IsFound())

	_, ok = cache.Lookup("missing")
	assert.False(t, ok)

	found, notFound := cache.Stats()
	assert.Equal(t, 1, found)
	assert.Equal(t, 2, notFound)
}
