package assethat

import (
	"math"
	"sync/atomic"
)

type statsCollector struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	rendered      atomic.Uint64
	renderedBytes atomic.Uint64
	minBytes      atomic.Uint64
	maxBytes      atomic.Uint64
}

func newStatsCollector() *statsCollector {
	s := &statsCollector{}
	s.minBytes.Store(math.MaxUint64)
	return s
}

func (s *statsCollector) Hit()   { s.hits.Add(1) }
func (s *statsCollector) Miss()  { s.misses.Add(1) }
func (s *statsCollector) Evict() { s.evictions.Add(1) }

// Observe records the size of a freshly rendered cache entry.
func (s *statsCollector) Observe(size int) {
	if size < 0 {
		size = 0
	}
	n := uint64(size)

	s.rendered.Add(1)
	s.renderedBytes.Add(n)

	for {
		cur := s.minBytes.Load()
		if n >= cur {
			break
		}
		if s.minBytes.CompareAndSwap(cur, n) {
			break
		}
	}
	for {
		cur := s.maxBytes.Load()
		if n <= cur {
			break
		}
		if s.maxBytes.CompareAndSwap(cur, n) {
			break
		}
	}
}

type statsSnapshot struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Rendered  uint64
	MinBytes  uint64
	MaxBytes  uint64
	AvgBytes  uint64
}

func (s *statsCollector) Snapshot() statsSnapshot {
	out := statsSnapshot{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
		Rendered:  s.rendered.Load(),
	}
	if out.Rendered == 0 {
		return out
	}
	out.MinBytes = s.minBytes.Load()
	out.MaxBytes = s.maxBytes.Load()
	out.AvgBytes = s.renderedBytes.Load() / out.Rendered
	if out.MinBytes == math.MaxUint64 {
		out.MinBytes = 0
	}
	return out
}
