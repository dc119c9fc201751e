package model

import "time"

type Rule struct {
	Name        string                 `yaml:"name" json:"name"`
	Enabled     bool                   `yaml:"enabled" json:"enabled"`
	Severity    string                 `yaml:"severity" json:"severity"`
	Description string                 `yaml:"description" json:"description"`
	Type        string                 `yaml:"type" json:"type"`
	Thresholds  map[string]interface{} `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
}

// Threshold reads a numeric threshold, accepting both int and float YAML values
func (r Rule) Threshold(key string, fallback float64) float64 {
	switch v := r.Thresholds[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return fallback
}

type Alert struct {
	ID        string     `json:"id,omitempty"`
	Type      string     `json:"type"`
	Severity  string     `json:"severity"`
	Component string     `json:"component"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
	Value     float64    `json:"value"`
	Point     *DataPoint `json:"point,omitempty"`
}
