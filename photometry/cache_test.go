package photometry_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ilo21/fpexplorer/photometry"
	"github.com/ilo21/fpexplorer/photometry/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cacheKey(subject string) photometry.CacheKey {
	return photometry.CacheKey{
		Subject:       subject,
		Trim:          config.TrimSpec{BeginSec: 1, EndSec: 1},
		Downsample:    10,
		Normalization: testSettings().NormalizationSpec(),
	}
}

func TestCacheBuildsOncePerKey(t *testing.T) {
	cache := photometry.NewCache()
	var builds atomic.Int32

	var wg sync.WaitGroup
	results := make([]*photometry.PreparedSubject, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := cache.GetOrBuild(cacheKey("m1"), func() (*photometry.PreparedSubject, error) {
				builds.Add(1)
				return &photometry.PreparedSubject{Subject: "m1"}, nil
			})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	for _, res := range results {
		assert.Same(t, results[0], res)
	}
}

func TestCacheDropsFailedBuilds(t *testing.T) {
	cache := photometry.NewCache()
	boom := errors.New("boom")

	_, err := cache.GetOrBuild(cacheKey("m1"), func() (*photometry.PreparedSubject, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cache.Len())

	res, err := cache.GetOrBuild(cacheKey("m1"), func() (*photometry.PreparedSubject, error) {
		return &photometry.PreparedSubject{Subject: "m1"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", res.Subject)
}

func TestCacheSubjectsAndInvalidate(t *testing.T) {
	cache := photometry.NewCache()
	build := func() (*photometry.PreparedSubject, error) { return &photometry.PreparedSubject{}, nil }

	other := cacheKey("m1")
	other.Downsample = 5
	for _, key := range []photometry.CacheKey{cacheKey("m2"), cacheKey("m1"), other, cacheKey("a0")} {
		_, err := cache.GetOrBuild(key, build)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"a0", "m1", "m2"}, cache.Subjects())
	assert.Equal(t, 4, cache.Len())

	cache.Invalidate("m1")
	assert.Equal(t, []string{"a0", "m2"}, cache.Subjects())
	assert.Equal(t, 2, cache.Len())
}

func TestNormalizationSpecIgnoresUnusedFilterWindow(t *testing.T) {
	a := testSettings()
	b := testSettings()
	b.FilterWindow = 7
	assert.Equal(t, a.NormalizationSpec(), b.NormalizationSpec())

	a.Filter, b.Filter = true, true
	assert.NotEqual(t, a.NormalizationSpec(), b.NormalizationSpec())
}
