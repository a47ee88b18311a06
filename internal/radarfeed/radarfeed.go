// Package radarfeed implements the out-of-scope "remote radar fetcher"
// collaborator interface from spec.md §6: "periodic (5min) pull of new
// level-II files." The actual download and dealiasing are external,
// per spec.md §1; this package only defines the polling contract and a
// request-deduplicating wrapper, the same shape as atcf.Fetcher and
// madis.Fetcher.
package radarfeed

import (
	"context"
	"fmt"
	"runtime"

	"github.com/ctessum/requestcache"
)

// Source performs the actual remote listing/download of new level-II
// files for one radar site. Production implementations live outside
// this module.
type Source interface {
	Poll(ctx context.Context, siteID string) ([]string, error)
}

// Fetcher wraps a Source with a requestcache.Cache so overlapping polls
// for the same site within one fetch interval are deduplicated.
type Fetcher struct {
	source Source
	cache  *requestcache.Cache
}

// NewFetcher builds a Fetcher over source.
func NewFetcher(source Source, cacheSize int) *Fetcher {
	f := &Fetcher{source: source}
	f.cache = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
		siteID := request.(string)
		return f.source.Poll(ctx, siteID)
	}, runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(cacheSize))
	return f
}

// Poll returns the new level-II file paths available for siteID.
func (f *Fetcher) Poll(ctx context.Context, siteID string) ([]string, error) {
	req := f.cache.NewRequest(ctx, siteID, fmt.Sprintf("radarfeed_%s", siteID))
	result, err := req.Result()
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}
