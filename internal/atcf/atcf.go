// Package atcf implements the out-of-scope "ATCF fetcher" collaborator
// interface from spec.md §6: "periodic (1h) pull of storm vitals,
// supplying (name, lat, lon, direction, speed, RMW, time)." Only the
// interface and a request-deduplicating wrapper around it are
// implemented here; the controller (not this core pipeline) is
// responsible for invoking it on the 1h schedule.
package atcf

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/ctessum/requestcache"
)

// Vitals is one ATCF storm-vitals fix.
type Vitals struct {
	Name         string
	LatDeg       float64
	LonDeg       float64
	DirectionDeg float64
	SpeedMS      float64
	RMWKm        float64
	Time         time.Time
}

// Source performs the actual remote pull. Production implementations
// (talking to the real ATCF feed) live outside this module; this
// package only depends on the interface, per spec.md §1's explicit
// scope boundary.
type Source interface {
	Fetch(ctx context.Context, stormID string) (Vitals, error)
}

// Fetcher wraps a Source with a requestcache.Cache so the controller
// does not re-pull the same storm ID inside one fetch interval.
type Fetcher struct {
	source Source
	cache  *requestcache.Cache
}

// NewFetcher builds a Fetcher over source with an in-memory request
// cache sized for cacheSize distinct concurrent/recent requests.
func NewFetcher(source Source, cacheSize int) *Fetcher {
	f := &Fetcher{source: source}
	f.cache = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
		stormID := request.(string)
		return f.source.Fetch(ctx, stormID)
	}, runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(cacheSize))
	return f
}

// Fetch returns the latest vitals for stormID, deduplicating concurrent
// or repeated requests for the same storm within the cache's lifetime.
func (f *Fetcher) Fetch(ctx context.Context, stormID string) (Vitals, error) {
	req := f.cache.NewRequest(ctx, stormID, fmt.Sprintf("atcf_%s", stormID))
	result, err := req.Result()
	if err != nil {
		return Vitals{}, err
	}
	return result.(Vitals), nil
}
