// Package alerting keeps the bounded, acknowledgeable alert log derived
// from detected anomalies.
package alerting

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shizukutanaka/Mihari/internal/analyzer"
	"github.com/shizukutanaka/Mihari/internal/metrics"
)

// maxAlerts caps the alert log; oldest entries are evicted past it.
const maxAlerts = 1000

// Alert is the persistent record derived 1:1 from an anomaly at trigger
// time. AnomalyID references an anomaly that existed then; the anomaly
// itself is not retained.
type Alert struct {
	ID           string               `json:"id"`
	AnomalyID    string               `json:"anomaly_id"`
	Type         analyzer.AnomalyType `json:"type"`
	Severity     analyzer.Severity    `json:"severity"`
	Timestamp    time.Time            `json:"timestamp"`
	Value        float64              `json:"value"`
	Threshold    float64              `json:"threshold"`
	Description  string               `json:"description"`
	Metric       string               `json:"metric"`
	Acknowledged bool                 `json:"acknowledged"`
	ResolvedAt   *time.Time           `json:"resolved_at,omitempty"`
}

// Manager owns the alert log. Only the manager mutates it; queries return
// copies.
type Manager struct {
	logger *zap.Logger

	mu         sync.RWMutex
	alerts     []*Alert
	thresholds metrics.Thresholds
}

// NewManager creates an alert manager with the default reference
// thresholds.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		logger:     logger,
		alerts:     make([]*Alert, 0),
		thresholds: metrics.DefaultThresholds(),
	}
}

// UpdateThresholds replaces the reference threshold set. It affects what
// is reported alongside alerts, not detection itself.
func (m *Manager) UpdateThresholds(t metrics.Thresholds) {
	m.mu.Lock()
	m.thresholds = t
	m.mu.Unlock()
}

// Thresholds returns the active reference threshold set.
func (m *Manager) Thresholds() metrics.Thresholds {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.thresholds
}

// TriggerAlert creates a new alert from an anomaly and appends it,
// evicting the oldest entry when the log is full. No deduplication is
// done; callers must not re-submit the same anomaly.
func (m *Manager) TriggerAlert(anomaly analyzer.Anomaly) *Alert {
	alert := &Alert{
		ID:          uuid.NewString(),
		AnomalyID:   anomaly.ID,
		Type:        anomaly.Type,
		Severity:    anomaly.Severity,
		Timestamp:   anomaly.Timestamp,
		Value:       anomaly.Value,
		Threshold:   anomaly.Threshold,
		Description: anomaly.Description,
		Metric:      anomaly.Metric,
	}

	m.mu.Lock()
	m.alerts = append(m.alerts, alert)
	if len(m.alerts) > maxAlerts {
		over := len(m.alerts) - maxAlerts
		m.alerts = append(m.alerts[:0], m.alerts[over:]...)
	}
	m.mu.Unlock()

	m.logger.Warn("alert triggered",
		zap.String("alert_id", alert.ID),
		zap.String("type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)),
		zap.String("metric", alert.Metric),
		zap.Float64("value", alert.Value),
		zap.Float64("threshold", alert.Threshold),
	)

	copied := *alert
	return &copied
}

// Alerts returns up to limit alerts newest-first, optionally filtered by
// severity (empty severity matches all). limit <= 0 means no limit.
func (m *Manager) Alerts(severity analyzer.Severity, limit int) []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Alert, 0)
	for i := len(m.alerts) - 1; i >= 0; i-- {
		a := m.alerts[i]
		if severity != "" && a.Severity != severity {
			continue
		}
		out = append(out, *a)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Acknowledge marks an alert acknowledged. A second call on the same id is
// a no-op; a missing id returns false, which is a benign miss rather than
// an error.
func (m *Manager) Acknowledge(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.alerts {
		if a.ID == id {
			a.Acknowledged = true
			return true
		}
	}
	return false
}

// Resolve marks an alert resolved and stamps the resolution time. Returns
// false when the id does not exist.
func (m *Manager) Resolve(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.alerts {
		if a.ID == id {
			if a.ResolvedAt == nil {
				now := time.Now()
				a.ResolvedAt = &now
			}
			return true
		}
	}
	return false
}

// Count returns the current alert log size.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.alerts)
}
