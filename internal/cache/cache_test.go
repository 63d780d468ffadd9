package cache

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bookshelf/internal/testutil"
)

type TestData struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	NotFound bool   `json:"not_found"`
}

func setupTestCache(t *testing.T) *CacheDB {
	t.Helper()
	return setupTestCacheWithTTL(t, time.Hour)
}

func setupTestCacheWithTTL(t *testing.T, ttl time.Duration) *CacheDB {
	t.Helper()

	env := testutil.NewTestEnv(t)
	c, err := Open(filepath.Join(env.RootDir(), "test_cache.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

// cacheExists reports whether a row exists for key, expired or not.
func cacheExists(c *CacheDB, table, key string) bool {
	var exists int
	err := c.db.QueryRow(`SELECT 1 FROM `+table+` WHERE cache_key = ? LIMIT 1`, key).Scan(&exists)
	return err == nil
}

func advanceClock(c *CacheDB, d time.Duration) {
	base := time.Now()
	c.now = func() time.Time { return base.Add(d) }
}

func TestOpen_CreatesTables(t *testing.T) {
	c := setupTestCache(t)

	assert.Equal(t, time.Hour, c.TTL())
	for table := range ValidCacheTableNames {
		require.NoError(t, c.Set(table, "k", `{}`, 0), table)
		assert.True(t, cacheExists(c, table, "k"), table)
	}
}

func TestOpen_DefaultTTL(t *testing.T) {
	env := testutil.NewTestEnv(t)
	c, err := Open(env.Path("cache.db"), 0)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	assert.Equal(t, DefaultCacheTTL, c.TTL())
}

func TestGetOrFetch_CacheHit(t *testing.T) {
	c := setupTestCache(t)
	require.NoError(t, c.Set(GoogleBooksTable, "9780000000001", `{"id":1,"name":"Test"}`, 0))

	fetchCalled := false
	result, fromCache, err := GetOrFetch(c, GoogleBooksTable, "9780000000001", func() (TestData, error) {
		fetchCalled = true
		return TestData{}, nil
	})

	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.False(t, fetchCalled)
	assert.Equal(t, TestData{ID: 1, Name: "Test"}, result)
}

func TestGetOrFetch_CacheMissStores(t *testing.T) {
	c := setupTestCache(t)

	calls := 0
	fetch := func() (TestData, error) {
		calls++
		return TestData{ID: 2, Name: "Fetched"}, nil
	}

	result, fromCache, err := GetOrFetch(c, OpenLibraryTable, "key", fetch)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, "Fetched", result.Name)

	result, fromCache, err = GetOrFetch(c, OpenLibraryTable, "key", fetch)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, "Fetched", result.Name)
	assert.Equal(t, 1, calls)
}

func TestGetOrFetch_FetchErrorNotCached(t *testing.T) {
	c := setupTestCache(t)
	fetchErr := errors.New("connection refused")

	_, fromCache, err := GetOrFetch(c, GoogleBooksTable, "key", func() (TestData, error) {
		return TestData{}, fetchErr
	})

	require.ErrorIs(t, err, fetchErr)
	assert.False(t, fromCache)
	assert.False(t, cacheExists(c, GoogleBooksTable, "key"))
}

func TestGetOrFetch_NilCacheFetchesDirectly(t *testing.T) {
	result, fromCache, err := GetOrFetch(nil, GoogleBooksTable, "key", func() (TestData, error) {
		return TestData{ID: 3}, nil
	})

	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 3, result.ID)
}

func TestGetOrFetchWithTTL_NegativeEntriesExpireFirst(t *testing.T) {
	c := setupTestCacheWithTTL(t, DefaultCacheTTL)
	selector := SelectNegativeCacheTTL(func(d TestData) bool { return d.NotFound })

	_, _, err := GetOrFetchWithTTL(c, OpenLibraryTable, "missing", func() (TestData, error) {
		return TestData{NotFound: true}, nil
	}, selector)
	require.NoError(t, err)
	_, _, err = GetOrFetchWithTTL(c, OpenLibraryTable, "found", func() (TestData, error) {
		return TestData{ID: 4}, nil
	}, selector)
	require.NoError(t, err)

	advanceClock(c, NegativeCacheTTL+time.Hour)

	_, hit, err := c.Get(OpenLibraryTable, "missing")
	require.NoError(t, err)
	assert.False(t, hit, "negative entry should have expired")

	_, hit, err = c.Get(OpenLibraryTable, "found")
	require.NoError(t, err)
	assert.True(t, hit, "positive entry should still be cached")
}

func TestGetOrFetchWithTTL_PositiveEntriesUseConfiguredTTL(t *testing.T) {
	c := setupTestCacheWithTTL(t, time.Hour)
	selector := SelectNegativeCacheTTL(func(d TestData) bool { return d.NotFound })

	_, _, err := GetOrFetchWithTTL(c, GoogleBooksTable, "found", func() (TestData, error) {
		return TestData{ID: 7}, nil
	}, selector)
	require.NoError(t, err)

	advanceClock(c, 30*time.Minute)
	_, hit, err := c.Get(GoogleBooksTable, "found")
	require.NoError(t, err)
	assert.True(t, hit)

	advanceClock(c, 2*time.Hour)
	_, hit, err = c.Get(GoogleBooksTable, "found")
	require.NoError(t, err)
	assert.False(t, hit, "positive entry should follow the cache TTL")
}

func TestGetOrFetchWithTTL_SkipCache(t *testing.T) {
	c := setupTestCache(t)

	calls := 0
	fetch := func() (TestData, error) {
		calls++
		return TestData{ID: calls}, nil
	}
	skip := func(TestData) time.Duration { return SkipCache }

	_, _, err := GetOrFetchWithTTL(c, OpenLibraryTable, "partial", fetch, skip)
	require.NoError(t, err)
	result, fromCache, err := GetOrFetchWithTTL(c, OpenLibraryTable, "partial", fetch, skip)
	require.NoError(t, err)

	assert.False(t, fromCache)
	assert.Equal(t, 2, result.ID)
	assert.False(t, cacheExists(c, OpenLibraryTable, "partial"))
}

func TestGet_Expired(t *testing.T) {
	c := setupTestCache(t)
	require.NoError(t, c.Set(GoogleBooksTable, "key", `{}`, time.Minute))

	advanceClock(c, 2*time.Minute)

	_, hit, err := c.Get(GoogleBooksTable, "key")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestGetOrFetch_CorruptEntryRefetches(t *testing.T) {
	c := setupTestCache(t)
	require.NoError(t, c.Set(GoogleBooksTable, "key", `not json`, 0))

	result, fromCache, err := GetOrFetch(c, GoogleBooksTable, "key", func() (TestData, error) {
		return TestData{ID: 5}, nil
	})

	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 5, result.ID)
}

func TestInvalidTableName(t *testing.T) {
	c := setupTestCache(t)

	_, _, err := c.Get("books; DROP TABLE x", "key")
	assert.Error(t, err)
	assert.Error(t, c.Set("nope", "key", "{}", 0))
	_, err = c.InvalidateSource("nope")
	assert.Error(t, err)
}

func TestInvalidateSource(t *testing.T) {
	c := setupTestCache(t)
	require.NoError(t, c.Set(GoogleBooksTable, "a", "{}", 0))
	require.NoError(t, c.Set(GoogleBooksTable, "b", "{}", 0))
	require.NoError(t, c.Set(OpenLibraryTable, "a", "{}", 0))

	rows, err := c.InvalidateSource(GoogleBooksTable)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)
	assert.False(t, cacheExists(c, GoogleBooksTable, "a"))
	assert.True(t, cacheExists(c, OpenLibraryTable, "a"))
}

func TestClearExpired(t *testing.T) {
	c := setupTestCache(t)
	require.NoError(t, c.Set(GoogleBooksTable, "short", "{}", time.Minute))
	require.NoError(t, c.Set(GoogleBooksTable, "long", "{}", 48*time.Hour))

	advanceClock(c, time.Hour)

	rows, err := c.ClearExpired(GoogleBooksTable)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.False(t, cacheExists(c, GoogleBooksTable, "short"))
	assert.True(t, cacheExists(c, GoogleBooksTable, "long"))
}

func TestClearAllExpired(t *testing.T) {
	c := setupTestCache(t)
	for _, table := range AllCacheTables {
		require.NoError(t, c.Set(table, "old", "{}", time.Minute))
		require.NoError(t, c.Set(table, "fresh", "{}", 48*time.Hour))
	}

	advanceClock(c, time.Hour)

	rows, err := c.ClearAllExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(len(AllCacheTables)), rows)
	for _, table := range AllCacheTables {
		assert.False(t, cacheExists(c, table, "old"), table)
		assert.True(t, cacheExists(c, table, "fresh"), table)
	}
}

func TestInvalidateCacheCmd(t *testing.T) {
	c := setupTestCache(t)
	require.NoError(t, c.Set(OpenLibraryAuthorTable, "/authors/OL1A", `"Author"`, 0))

	cmd := &InvalidateCacheCmd{Source: "openlibrary_author"}
	require.NoError(t, cmd.Run(c))
	assert.False(t, cacheExists(c, OpenLibraryAuthorTable, "/authors/OL1A"))

	err := (&InvalidateCacheCmd{Source: "nope"}).Run(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "googlebooks, openlibrary, openlibrary_author")
}
