package storage

import (
	"testing"
	"time"

	"aqua-guard/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(max int) *Storage {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return NewStorage(max, l)
}

func TestAddAlertAssignsUUID(t *testing.T) {
	s := newTestStorage(10)
	stored := s.AddAlert(model.Alert{Type: "tank_level", Severity: "HIGH", Point: &model.DataPoint{}})

	_, err := uuid.Parse(stored.ID)
	require.NoError(t, err)
	assert.False(t, stored.Timestamp.IsZero())
	assert.Nil(t, stored.Point)

	got, ok := s.GetAlertByID(stored.ID)
	require.True(t, ok)
	assert.Equal(t, stored, got)

	_, ok = s.GetAlertByID("nope")
	assert.False(t, ok)
}

func TestAlertsAreBoundedAndNewestFirst(t *testing.T) {
	s := newTestStorage(3)
	for i := 0; i < 5; i++ {
		s.AddAlert(model.Alert{Type: "t", Value: float64(i)})
	}

	alerts := s.GetAlerts(10, AlertFilter{}, "")
	require.Len(t, alerts, 3)
	assert.Equal(t, 4.0, alerts[0].Value)
	assert.Equal(t, 2.0, alerts[2].Value)
	assert.Len(t, s.GetAlerts(2, AlertFilter{}, ""), 2)
}

func TestAlertFilters(t *testing.T) {
	s := newTestStorage(10)
	s.AddAlert(model.Alert{Type: "tank_level", Severity: "HIGH", Component: "L_T1", Message: "Tank L_T1 low"})
	s.AddAlert(model.Alert{Type: "pressure_band", Severity: "MEDIUM", Component: "J280", Message: "Junction J280 high"})

	assert.Len(t, s.GetAlerts(10, AlertFilter{Severity: "high"}, ""), 1)
	assert.Len(t, s.GetAlerts(10, AlertFilter{Component: "J280"}, ""), 1)
	assert.Len(t, s.GetAlerts(10, AlertFilter{Type: "tank_level"}, ""), 1)
	assert.Len(t, s.GetAlerts(10, AlertFilter{}, "junction"), 1)

	stats := s.GetAlertStats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.BySeverity["medium"])
}

func TestTimeline(t *testing.T) {
	s := newTestStorage(10)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		s.AddAlert(model.Alert{Type: "t", Timestamp: base.Add(time.Duration(i) * time.Hour)})
	}

	assert.Len(t, s.GetAlertsTimeline(time.Time{}, time.Time{}), 4)
	assert.Len(t, s.GetAlertsTimeline(base.Add(time.Hour), base.Add(2*time.Hour)), 2)
}

func TestSubscribersReceiveMatchingAlerts(t *testing.T) {
	s := newTestStorage(10)
	sub := &AlertSubscriber{ID: "a", Channel: make(chan model.Alert, 2), Filter: AlertFilter{Type: "security_events"}}
	s.SubscribeAlerts(sub)

	s.AddAlert(model.Alert{Type: "tank_level"})
	require.NoError(t, s.SendAlert(model.Alert{Type: "security_events"}))

	got := <-sub.Channel
	assert.Equal(t, "security_events", got.Type)
	assert.Empty(t, sub.Channel)

	s.UnsubscribeAlerts(sub)
	s.UnsubscribeAlerts(sub)
	_, open := <-sub.Channel
	assert.False(t, open)
}

func TestRules(t *testing.T) {
	s := newTestStorage(10)
	s.SetRules([]model.Rule{
		{Name: "anomaly_score", Enabled: true, Severity: "HIGH"},
		{Name: "tank_level", Enabled: false},
	})

	assert.Len(t, s.GetRules(), 2)
	r, ok := s.GetRuleByID("anomaly_score")
	require.True(t, ok)
	assert.Equal(t, "HIGH", r.Severity)

	assert.Equal(t, RulesStats{Total: 2, Enabled: 1, Disabled: 1}, s.GetRulesStats())
}
