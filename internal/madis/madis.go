// Package madis implements the out-of-scope "MADIS fetcher"
// collaborator interface from spec.md §6: "periodic (30min) pull of
// surface pressure observations in a bounding box around the current
// center." The pull itself is external; this package wraps it with a
// request cache and converts the result into pressure.Obs values for
// VortexSynth's boundary-pressure lookup.
package madis

import (
	"context"
	"fmt"
	"runtime"

	"github.com/ctessum/requestcache"

	"github.com/wujk1122/vortrac/internal/pressure"
)

// BoundingBox is a lat/lon box in degrees.
type BoundingBox struct {
	MinLatDeg, MaxLatDeg float64
	MinLonDeg, MaxLonDeg float64
}

// Source performs the actual remote pull. See spec.md §1's explicit
// scope boundary; this package only depends on the interface.
type Source interface {
	Fetch(ctx context.Context, box BoundingBox) ([]pressure.Obs, error)
}

// Fetcher wraps a Source with a requestcache.Cache keyed on the
// bounding box, so repeated polls over an unchanged box within one
// fetch interval are deduplicated.
type Fetcher struct {
	source Source
	cache  *requestcache.Cache
}

// NewFetcher builds a Fetcher over source.
func NewFetcher(source Source, cacheSize int) *Fetcher {
	f := &Fetcher{source: source}
	f.cache = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
		box := request.(BoundingBox)
		return f.source.Fetch(ctx, box)
	}, runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(cacheSize))
	return f
}

// Fetch returns the surface-pressure fixes in box.
func (f *Fetcher) Fetch(ctx context.Context, box BoundingBox) ([]pressure.Obs, error) {
	key := fmt.Sprintf("madis_%.2f_%.2f_%.2f_%.2f", box.MinLatDeg, box.MaxLatDeg, box.MinLonDeg, box.MaxLonDeg)
	req := f.cache.NewRequest(ctx, box, key)
	result, err := req.Result()
	if err != nil {
		return nil, err
	}
	return result.([]pressure.Obs), nil
}
