package alert

import "aqua-guard/internal/model"

// Notifier interface for alert notification
type Notifier interface {
	SendAlert(alert model.Alert) error
}

// Multi fans one alert out to several notifiers and returns the first error
type Multi []Notifier

func (m Multi) SendAlert(alert model.Alert) error {
	var first error
	for _, n := range m {
		if err := n.SendAlert(alert); err != nil && first == nil {
			first = err
		}
	}
	return first
}
