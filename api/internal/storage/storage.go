package storage

import (
	"strings"
	"sync"
	"time"

	"aqua-guard/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Storage keeps the most recent alerts in memory and fans new ones out to subscribers
type Storage struct {
	mu          sync.RWMutex
	alerts      []model.Alert
	rules       []Rule
	maxAlerts   int
	logger      *logrus.Logger
	alertSubs   map[*AlertSubscriber]bool
	alertSubsMu sync.RWMutex
}

type Rule struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Enabled     bool                   `json:"enabled"`
	Severity    string                 `json:"severity"`
	Description string                 `json:"description"`
	Type        string                 `json:"type"`
	Thresholds  map[string]interface{} `json:"thresholds,omitempty"`
}

type AlertSubscriber struct {
	ID      string
	Channel chan model.Alert
	Filter  AlertFilter
}

type AlertFilter struct {
	Severity  string
	Component string
	Type      string
}

func (f AlertFilter) matches(a model.Alert) bool {
	if f.Severity != "" && !strings.EqualFold(a.Severity, f.Severity) {
		return false
	}
	if f.Component != "" && a.Component != f.Component {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	return true
}

type AlertStats struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	ByType     map[string]int `json:"by_type"`
}

type RulesStats struct {
	Total    int `json:"total"`
	Enabled  int `json:"enabled"`
	Disabled int `json:"disabled"`
}

func NewStorage(maxAlerts int, logger *logrus.Logger) *Storage {
	if maxAlerts <= 0 {
		maxAlerts = 1000
	}
	return &Storage{
		alerts:    make([]model.Alert, 0),
		rules:     make([]Rule, 0),
		maxAlerts: maxAlerts,
		logger:    logger,
		alertSubs: make(map[*AlertSubscriber]bool),
	}
}

// SendAlert lets the rule engine write straight into storage
func (s *Storage) SendAlert(alert model.Alert) error {
	s.AddAlert(alert)
	return nil
}

// AddAlert stores alert under a fresh ID, evicting the oldest beyond maxAlerts
func (s *Storage) AddAlert(alert model.Alert) model.Alert {
	alert.ID = uuid.NewString()
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	// the triggering point is large and already served by the operator endpoints
	alert.Point = nil

	s.mu.Lock()
	s.alerts = append(s.alerts, alert)
	if len(s.alerts) > s.maxAlerts {
		s.alerts = append([]model.Alert(nil), s.alerts[len(s.alerts)-s.maxAlerts:]...)
	}
	s.mu.Unlock()

	s.notifySubscribers(alert)
	return alert
}

// GetAlerts returns up to limit alerts, newest first
func (s *Storage) GetAlerts(limit int, filter AlertFilter, search string) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search = strings.ToLower(search)
	result := make([]model.Alert, 0)
	for i := len(s.alerts) - 1; i >= 0 && len(result) < limit; i-- {
		alert := s.alerts[i]
		if !filter.matches(alert) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(alert.Message), search) {
			continue
		}
		result = append(result, alert)
	}
	return result
}

func (s *Storage) GetAlertByID(id string) (model.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			return s.alerts[i], true
		}
	}
	return model.Alert{}, false
}

// GetAlertsTimeline returns alerts within [start, end]; zero bounds are open
func (s *Storage) GetAlertsTimeline(start, end time.Time) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Alert, 0)
	for _, alert := range s.alerts {
		if !start.IsZero() && alert.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && alert.Timestamp.After(end) {
			continue
		}
		result = append(result, alert)
	}
	return result
}

func (s *Storage) GetAlertStats() AlertStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := AlertStats{
		Total:      len(s.alerts),
		BySeverity: make(map[string]int),
		ByType:     make(map[string]int),
	}
	for _, a := range s.alerts {
		stats.BySeverity[strings.ToLower(a.Severity)]++
		stats.ByType[a.Type]++
	}
	return stats
}

// SetRules replaces the rule catalogue shown by the API
func (s *Storage) SetRules(rules []model.Rule) {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, Rule{
			ID:          r.Name,
			Name:        r.Name,
			Enabled:     r.Enabled,
			Severity:    r.Severity,
			Description: r.Description,
			Type:        r.Type,
			Thresholds:  r.Thresholds,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = out
}

func (s *Storage) GetRules() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Rule, len(s.rules))
	copy(result, s.rules)
	return result
}

func (s *Storage) GetRuleByID(id string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rules {
		if r.ID == id || r.Name == id {
			return r, true
		}
	}
	return Rule{}, false
}

func (s *Storage) GetRulesStats() RulesStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := RulesStats{Total: len(s.rules)}
	for _, r := range s.rules {
		if r.Enabled {
			stats.Enabled++
		} else {
			stats.Disabled++
		}
	}
	return stats
}

// Subscriber methods
func (s *Storage) SubscribeAlerts(sub *AlertSubscriber) {
	s.alertSubsMu.Lock()
	defer s.alertSubsMu.Unlock()
	s.alertSubs[sub] = true
}

func (s *Storage) UnsubscribeAlerts(sub *AlertSubscriber) {
	s.alertSubsMu.Lock()
	defer s.alertSubsMu.Unlock()
	if s.alertSubs[sub] {
		delete(s.alertSubs, sub)
		close(sub.Channel)
	}
}

func (s *Storage) notifySubscribers(alert model.Alert) {
	s.alertSubsMu.RLock()
	defer s.alertSubsMu.RUnlock()

	for sub := range s.alertSubs {
		if !sub.Filter.matches(alert) {
			continue
		}

		select {
		case sub.Channel <- alert:
		default:
			s.logger.Debugf("Alert subscriber %s is full, dropping alert", sub.ID)
		}
	}
}
