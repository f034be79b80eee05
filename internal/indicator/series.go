package indicator

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/parkerwe/hindcast/internal/core"
)

// Kind identifies an indicator computation.
type Kind string

const (
	KindSMA       Kind = "sma"
	KindEMA       Kind = "ema"
	KindRSI       Kind = "rsi"
	KindBollinger Kind = "bollinger"
)

// Request describes one indicator computation for a Series.
type Request struct {
	Kind   Kind
	Period int
	Param  float64 // band width for Bollinger, unused otherwise
}

// Key returns the cache key for this request.
func (r Request) Key() string {
	if r.Kind == KindBollinger {
		return fmt.Sprintf("%s:%d:%g", r.Kind, r.Period, r.Param)
	}
	return fmt.Sprintf("%s:%d", r.Kind, r.Period)
}

// Series computes indicators over an attached bar series, caching results
// keyed by (kind, period). The cache is invalidated atomically whenever new
// bars are attached, and access is locked so concurrent readers never race
// with invalidation.
type Series struct {
	mu     sync.Mutex
	bars   []core.Bar
	closes []float64
	cache  map[string][]float64
	bands  map[string]*Bands
}

// NewSeries creates an empty indicator series.
func NewSeries() *Series {
	return &Series{
		cache: make(map[string][]float64),
		bands: make(map[string]*Bands),
	}
}

// SetBars attaches a new bar series and invalidates all cached results.
func (s *Series) SetBars(bars []core.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars = bars
	s.closes = Closes(bars)
	s.cache = make(map[string][]float64)
	s.bands = make(map[string]*Bands)
}

// Len returns the number of attached bars.
func (s *Series) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bars)
}

// Bars returns the attached bar series.
func (s *Series) Bars() []core.Bar {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bars
}

// SMA returns the cached or freshly computed simple moving average.
func (s *Series) SMA(period int) ([]float64, error) {
	return s.compute(Request{Kind: KindSMA, Period: period})
}

// EMA returns the cached or freshly computed exponential moving average.
func (s *Series) EMA(period int) ([]float64, error) {
	return s.compute(Request{Kind: KindEMA, Period: period})
}

// RSI returns the cached or freshly computed relative strength index.
func (s *Series) RSI(period int) ([]float64, error) {
	return s.compute(Request{Kind: KindRSI, Period: period})
}

// Bollinger returns the cached or freshly computed Bollinger Bands.
func (s *Series) Bollinger(period int, k float64) (*Bands, error) {
	key := Request{Kind: KindBollinger, Period: period, Param: k}.Key()

	s.mu.Lock()
	if b, ok := s.bands[key]; ok {
		s.mu.Unlock()
		return b, nil
	}
	closes := s.closes
	s.mu.Unlock()

	b, err := Bollinger(closes, period, k)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.bands[key] = b
	s.mu.Unlock()
	return b, nil
}

func (s *Series) compute(req Request) ([]float64, error) {
	key := req.Key()

	s.mu.Lock()
	if vals, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return vals, nil
	}
	closes := s.closes
	s.mu.Unlock()

	var vals []float64
	var err error
	switch req.Kind {
	case KindSMA:
		vals, err = SMA(closes, req.Period)
	case KindEMA:
		vals, err = EMA(closes, req.Period)
	case KindRSI:
		vals, err = RSI(closes, req.Period)
	default:
		return nil, core.Wrapf(core.ErrInternal, "unknown indicator kind %q", req.Kind)
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = vals
	s.mu.Unlock()
	return vals, nil
}

// ComputeSet computes several independent indicators concurrently. Each
// request reads the same immutable close series, so the fan-out is read-only.
// The combined result is assembled only once every sub-computation succeeds;
// the first failure aborts the set and its error is returned alone.
//
// Results are single series per request: a Bollinger request resolves to the
// middle band. Callers that need the full envelope use Bollinger directly.
func (s *Series) ComputeSet(requests []Request) (map[string][]float64, error) {
	var g errgroup.Group
	var mu sync.Mutex
	results := make(map[string][]float64, len(requests))

	for _, req := range requests {
		g.Go(func() error {
			var vals []float64
			var err error
			if req.Kind == KindBollinger {
				var b *Bands
				b, err = s.Bollinger(req.Period, req.Param)
				if err == nil {
					vals = b.Middle
				}
			} else {
				vals, err = s.compute(req)
			}
			if err != nil {
				return err
			}
			mu.Lock()
			results[req.Key()] = vals
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
