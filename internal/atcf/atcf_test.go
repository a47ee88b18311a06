package atcf

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingSource struct {
	calls int32
}

func (s *countingSource) Fetch(ctx context.Context, stormID string) (Vitals, error) {
	atomic.AddInt32(&s.calls, 1)
	return Vitals{Name: stormID, LatDeg: 25, LonDeg: -75, SpeedMS: 5, Time: time.Now()}, nil
}

func TestFetcherReturnsSourceResult(t *testing.T) {
	src := &countingSource{}
	f := NewFetcher(src, 8)
	got, err := f.Fetch(context.Background(), "AL092024")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.Name != "AL092024" {
		t.Errorf("Name = %q, want AL092024", got.Name)
	}
}
