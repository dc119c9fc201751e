package history

import (
	"testing"
	"time"

	"aqua-guard/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func point(hour int, v float64) model.DataPoint {
	return model.DataPoint{
		Timestamp: t0.Add(time.Duration(hour) * time.Hour),
		Features:  map[string]float64{"x": v},
		Base:      model.BaseMetrics{TotalPumpFlow: v},
	}
}

func TestEmptyStore(t *testing.T) {
	s := NewStore(5)
	_, ok := s.Current()
	assert.False(t, ok)
	assert.Empty(t, s.LastN(3))
	assert.Empty(t, s.Since(t0))
	assert.Equal(t, 0, s.Len())
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewStore(0).Capacity())
}

func TestAppendEvictsOldest(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 5; i++ {
		_, err := s.Append(point(i, float64(i)))
		require.NoError(t, err)
		assert.LessOrEqual(t, s.Len(), 3)
	}

	all := s.LastN(10)
	require.Len(t, all, 3)
	for i, p := range all {
		assert.Equal(t, float64(i+2), p.Features["x"])
		assert.Equal(t, uint64(i+3), p.Seq)
	}

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, 4.0, cur.Features["x"])
}

func TestAppendRejectsOutOfOrder(t *testing.T) {
	s := NewStore(3)
	_, err := s.Append(point(2, 1))
	require.NoError(t, err)

	_, err = s.Append(point(1, 1))
	assert.ErrorIs(t, err, ErrOutOfOrder)

	_, err = s.Append(point(2, 2))
	assert.NoError(t, err, "equal timestamps keep order non-decreasing")
}

func TestLastNShortHistory(t *testing.T) {
	s := NewStore(10)
	s.Append(point(0, 0))
	s.Append(point(1, 1))

	got := s.LastN(24)
	require.Len(t, got, 2)
	assert.True(t, got[0].Timestamp.Before(got[1].Timestamp))
	assert.Empty(t, s.LastN(0))
}

func TestSinceAcrossWrap(t *testing.T) {
	s := NewStore(4)
	for i := 0; i < 7; i++ {
		s.Append(point(i, float64(i)))
	}

	got := s.Since(t0.Add(4 * time.Hour))
	require.Len(t, got, 3)
	assert.Equal(t, 4.0, got[0].Features["x"])

	got = s.SinceHours(t0.Add(6*time.Hour), 1)
	require.Len(t, got, 2)

	base := s.BaseSince(t0.Add(5 * time.Hour))
	require.Len(t, base, 2)
	assert.Equal(t, 5.0, base[0].TotalPumpFlow)
	assert.Equal(t, 6.0, base[1].TotalPumpFlow)
}

func TestReturnedPointsAreCopies(t *testing.T) {
	s := NewStore(4)
	p := point(0, 1)
	appended, _ := s.Append(p)

	p.Features["x"] = 100
	appended.Features["x"] = 200

	got := s.LastN(1)
	got[0].Features["x"] = 300

	cur, _ := s.Current()
	assert.Equal(t, 1.0, cur.Features["x"])
}

func TestAnnotate(t *testing.T) {
	s := NewStore(2)
	a, _ := s.Append(point(0, 0))
	b, _ := s.Append(point(1, 1))

	ok := s.Annotate(b.Seq, 0.7, model.AnomalyContext{IsActive: true, Severity: model.SeverityHigh})
	require.True(t, ok)

	cur, _ := s.Current()
	require.NotNil(t, cur.AnomalyScore)
	assert.Equal(t, 0.7, *cur.AnomalyScore)
	assert.Equal(t, model.SeverityHigh, cur.AnomalyContext.Severity)

	s.Append(point(2, 2))
	assert.False(t, s.Annotate(a.Seq, 0.1, model.AnomalyContext{}), "evicted point")

	// mutating a returned annotation must not leak back
	*cur.AnomalyScore = 0
	again := s.LastN(2)[0]
	assert.Equal(t, 0.7, *again.AnomalyScore)
}
