package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"aqua-guard/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRule struct {
	name    string
	enabled bool
	alerts  []model.Alert
	calls   int
}

func (r *stubRule) Name() string    { return r.name }
func (r *stubRule) IsEnabled() bool { return r.enabled }
func (r *stubRule) Evaluate(ctx context.Context, point *model.DataPoint) []model.Alert {
	r.calls++
	return r.alerts
}

type recordingNotifier struct {
	sent []model.Alert
	err  error
}

func (n *recordingNotifier) SendAlert(alert model.Alert) error {
	n.sent = append(n.sent, alert)
	return n.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestEvaluateSkipsDisabledRules(t *testing.T) {
	e := NewEngine(quietLogger())
	on := &stubRule{name: "on", enabled: true}
	off := &stubRule{name: "off", enabled: false}
	e.RegisterRule(on)
	e.RegisterRule(off)

	e.Evaluate(context.Background(), &model.DataPoint{})

	assert.Equal(t, 1, on.calls)
	assert.Equal(t, 0, off.calls)
	assert.Len(t, e.Rules(), 2)
}

func TestEvaluateEmitsToNotifiersAndChannel(t *testing.T) {
	e := NewEngine(quietLogger())
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	e.RegisterRule(&stubRule{name: "r", enabled: true, alerts: []model.Alert{
		{Type: "r", Severity: "HIGH", Message: "first"},
		{Type: "r", Severity: "LOW", Message: "second", Timestamp: ts.Add(time.Minute)},
	}})
	good := &recordingNotifier{}
	failing := &recordingNotifier{err: errors.New("unreachable")}
	e.RegisterNotifier(failing)
	e.RegisterNotifier(good)

	alerts := e.Evaluate(context.Background(), &model.DataPoint{Timestamp: ts})

	require.Len(t, alerts, 2)
	assert.Equal(t, ts, alerts[0].Timestamp, "missing timestamp defaults to the point's")
	assert.Equal(t, ts.Add(time.Minute), alerts[1].Timestamp)
	assert.Len(t, good.sent, 2)
	assert.Len(t, failing.sent, 2)

	got := <-e.GetAlertChannel()
	assert.Equal(t, "first", got.Message)
}

func TestEmitAlertDropsWhenChannelFull(t *testing.T) {
	e := NewEngine(quietLogger())
	n := &recordingNotifier{}
	e.RegisterNotifier(n)

	for i := 0; i < cap(e.alertChannel)+5; i++ {
		e.EmitAlert(model.Alert{Type: "x"})
	}

	assert.Len(t, e.alertChannel, cap(e.alertChannel))
	assert.Len(t, n.sent, cap(e.alertChannel)+5)
}

func TestEvaluateUppercasesSeverity(t *testing.T) {
	e := NewEngine(quietLogger())
	n := &recordingNotifier{}
	e.RegisterNotifier(n)
	e.RegisterRule(&stubRule{name: "r", enabled: true, alerts: []model.Alert{{Type: "r", Severity: "high"}}})

	alerts := e.Evaluate(context.Background(), &model.DataPoint{})

	require.Len(t, alerts, 1)
	assert.Equal(t, "HIGH", alerts[0].Severity)
	require.Len(t, n.sent, 1)
	assert.Equal(t, "HIGH", n.sent[0].Severity)
}
