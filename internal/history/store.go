package history

import (
	"errors"
	"sync"
	"time"

	"aqua-guard/internal/model"
)

// DefaultCapacity is the number of points kept when no capacity is configured
const DefaultCapacity = 2000

// ErrOutOfOrder is returned when a point is older than the newest stored point
var ErrOutOfOrder = errors.New("history: point older than current state")

// Store is an append-only, capacity-bounded ring of data points in
// chronological order. Every point it hands out is a deep copy.
type Store struct {
	mu       sync.RWMutex
	buf      []model.DataPoint
	start    int
	size     int
	nextSeq  uint64
	capacity int
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		buf:      make([]model.DataPoint, capacity),
		capacity: capacity,
		nextSeq:  1,
	}
}

// Append stores a copy of p, evicting the oldest point when full. The stored
// copy gets the next sequence number and is returned.
func (s *Store) Append(p model.DataPoint) (model.DataPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size > 0 && p.Timestamp.Before(s.at(s.size-1).Timestamp) {
		return model.DataPoint{}, ErrOutOfOrder
	}

	stored := p.Clone()
	stored.Seq = s.nextSeq
	s.nextSeq++

	if s.size < s.capacity {
		s.buf[(s.start+s.size)%s.capacity] = stored
		s.size++
	} else {
		s.buf[s.start] = stored
		s.start = (s.start + 1) % s.capacity
	}

	return stored.Clone(), nil
}

// Current returns the most recently appended point
func (s *Store) Current() (model.DataPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.size == 0 {
		return model.DataPoint{}, false
	}
	return s.at(s.size - 1).Clone(), true
}

// LastN returns up to n newest points, oldest first
func (s *Store) LastN(n int) []model.DataPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return []model.DataPoint{}
	}
	if n > s.size {
		n = s.size
	}
	out := make([]model.DataPoint, 0, n)
	for i := s.size - n; i < s.size; i++ {
		out = append(out, s.at(i).Clone())
	}
	return out
}

// Since returns every point with timestamp >= cutoff, oldest first
func (s *Store) Since(cutoff time.Time) []model.DataPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first := s.firstAtOrAfter(cutoff)
	out := make([]model.DataPoint, 0, s.size-first)
	for i := first; i < s.size; i++ {
		out = append(out, s.at(i).Clone())
	}
	return out
}

// SinceHours returns the points of the trailing h hours relative to now
func (s *Store) SinceHours(now time.Time, h float64) []model.DataPoint {
	return s.Since(now.Add(-time.Duration(h * float64(time.Hour))))
}

// BaseSince returns the cached base metrics of points with timestamp >= cutoff
func (s *Store) BaseSince(cutoff time.Time) []model.BaseSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first := s.firstAtOrAfter(cutoff)
	out := make([]model.BaseSample, 0, s.size-first)
	for i := first; i < s.size; i++ {
		p := s.at(i)
		out = append(out, model.BaseSample{Timestamp: p.Timestamp, BaseMetrics: p.Base})
	}
	return out
}

// Annotate attaches an anomaly score and context to the stored point with the
// given sequence number. It reports false if the point was already evicted.
func (s *Store) Annotate(seq uint64, score float64, ac model.AnomalyContext) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := s.size - 1; i >= 0; i-- {
		p := s.at(i)
		if p.Seq < seq {
			return false
		}
		if p.Seq == seq {
			sc := score
			ctx := ac
			p.AnomalyScore = &sc
			p.AnomalyContext = &ctx
			return true
		}
	}
	return false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

func (s *Store) Capacity() int {
	return s.capacity
}

// at maps a logical index (0 = oldest) to the ring slot; caller holds the lock
func (s *Store) at(i int) *model.DataPoint {
	return &s.buf[(s.start+i)%s.capacity]
}

// firstAtOrAfter finds the oldest logical index with timestamp >= cutoff
func (s *Store) firstAtOrAfter(cutoff time.Time) int {
	lo, hi := 0, s.size
	for lo < hi {
		mid := (lo + hi) / 2
		if s.at(mid).Timestamp.Before(cutoff) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
