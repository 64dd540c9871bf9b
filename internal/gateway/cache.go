package gateway

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tessro/tandem/internal/core"
)

// DefaultTrackCacheSize is the number of hydrated tracks kept in memory.
const DefaultTrackCacheSize = 256

// TrackFetcher hydrates a track from its id pair.
type TrackFetcher interface {
	FetchTrack(ctx context.Context, trackID, artistID string) (*core.Track, error)
}

type trackKey struct {
	trackID  string
	artistID string
}

// TrackCache memoizes track hydration. Tracks are immutable once fetched,
// so entries never go stale; misses and errors are not cached.
type TrackCache struct {
	fetcher TrackFetcher
	cache   *lru.Cache[trackKey, core.Track]
}

// NewTrackCache wraps fetcher with an LRU of the given size.
func NewTrackCache(fetcher TrackFetcher, size int) (*TrackCache, error) {
	if size <= 0 {
		size = DefaultTrackCacheSize
	}
	c, err := lru.New[trackKey, core.Track](size)
	if err != nil {
		return nil, err
	}
	return &TrackCache{fetcher: fetcher, cache: c}, nil
}

// FetchTrack returns the cached track or fetches and caches it.
func (c *TrackCache) FetchTrack(ctx context.Context, trackID, artistID string) (*core.Track, error) {
	key := trackKey{trackID: trackID, artistID: artistID}
	if t, ok := c.cache.Get(key); ok {
		return &t, nil
	}

	t, err := c.fetcher.FetchTrack(ctx, trackID, artistID)
	if err != nil || t == nil {
		return t, err
	}
	c.cache.Add(key, *t)
	return t, nil
}

// Remember seeds the cache with tracks already hydrated by another query.
func (c *TrackCache) Remember(tracks ...core.Track) {
	for _, t := range tracks {
		c.cache.Add(trackKey{trackID: t.ID, artistID: t.ArtistID}, t)
	}
}

// Len returns the number of cached tracks.
func (c *TrackCache) Len() int {
	return c.cache.Len()
}
