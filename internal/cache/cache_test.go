package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/ttr/internal/cache"
	"github.com/Tiliavir/ttr/internal/model"
)

func testKey() cache.Key {
	return cache.Key{
		StartDate:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC),
		SearchText: "",
		AuthToken:  "tok",
	}
}

func TestGetMissing(t *testing.T) {
	c := cache.New()
	_, ok := c.Get(testKey())
	assert.False(t, ok)
}

func TestSetGet(t *testing.T) {
	c := cache.New()
	key := testKey()
	c.Set(key, []model.TimeRecord{{ID: "a"}, {ID: "b"}})

	got, ok := c.Get(key)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestEmptySnapshotIsPresent(t *testing.T) {
	c := cache.New()
	c.Set(testKey(), nil)
	got, ok := c.Get(testKey())
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestSnapshotsAreCopied(t *testing.T) {
	c := cache.New()
	key := testKey()
	in := []model.TimeRecord{{ID: "a", Note: "orig"}}
	c.Set(key, in)
	in[0].Note = "changed after set"

	got, _ := c.Get(key)
	got[0].Note = "changed after get"

	again, _ := c.Get(key)
	assert.Equal(t, "orig", again[0].Note)
}

func TestKeysAreDistinct(t *testing.T) {
	c := cache.New()
	k1 := testKey()
	k2 := testKey()
	k2.SearchText = "meeting"
	k3 := testKey()
	k3.AuthToken = "other"

	c.Set(k1, []model.TimeRecord{{ID: "a"}})
	_, ok := c.Get(k2)
	assert.False(t, ok)
	_, ok = c.Get(k3)
	assert.False(t, ok)
}

func TestKeyIgnoresLocation(t *testing.T) {
	c := cache.New()
	k1 := testKey()
	berlin := time.FixedZone("CET", 3600)
	k2 := k1
	k2.StartDate = k1.StartDate.In(berlin)
	k2.EndDate = k1.EndDate.In(berlin)

	c.Set(k1, []model.TimeRecord{{ID: "a"}})
	_, ok := c.Get(k2)
	assert.True(t, ok)
}

func TestClearAndDelete(t *testing.T) {
	c := cache.New()
	k1 := testKey()
	k2 := testKey()
	k2.SearchText = "x"
	c.Set(k1, nil)
	c.Set(k2, nil)
	require.Equal(t, 2, c.Len())

	c.Delete(k1)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
