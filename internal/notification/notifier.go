// Package notification turns notable signals in an analysis report into
// alerts and delivers them to external channels (log, webhook, Telegram).
package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"stock-analyzer/internal/metrics"
	"stock-analyzer/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level    AlertLevel     `json:"level"`
	Symbol   string         `json:"symbol"`
	Rule     model.Rule     `json:"rule"`
	Category model.Category `json:"category"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	AsOf     time.Time      `json:"as_of"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts. Always enabled.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// AlertsFor picks the signals worth interrupting someone for: SMA
// crossovers (warning) and RSI outside its bands (info). Neutral readings
// and MACD confirmation never alert on their own; a strong outlook is
// raised to critical.
func AlertsFor(r *model.Report) []Alert {
	if r == nil {
		return nil
	}
	var out []Alert
	for _, s := range r.Signals {
		if s.Category == model.Neutral {
			continue
		}
		var level AlertLevel
		switch s.Rule {
		case model.RuleTrend:
			level = AlertWarning
		case model.RuleMomentum:
			level = AlertInfo
		default:
			continue
		}
		if s.Category == model.Bullish && r.Outlook.Rating == model.RatingStrongBullish ||
			s.Category == model.Bearish && r.Outlook.Rating == model.RatingStrongBearish {
			level = AlertCritical
		}
		out = append(out, Alert{
			Level:    level,
			Symbol:   r.Symbol,
			Rule:     s.Rule,
			Category: s.Category,
			Title:    fmt.Sprintf("%s %s", r.Symbol, s.Label),
			Message:  s.Message,
			AsOf:     r.AsOf,
		})
	}
	return out
}

type channel struct {
	name string
	n    Notifier
}

// Dispatcher fans alerts out to every registered channel. A failing
// channel does not stop delivery to the others.
type Dispatcher struct {
	channels []channel
	metrics  *metrics.Metrics // nil disables instrumentation
}

// NewDispatcher creates an empty dispatcher. m may be nil.
func NewDispatcher(m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{metrics: m}
}

// Add registers n under name, used as the metrics label.
func (d *Dispatcher) Add(name string, n Notifier) *Dispatcher {
	d.channels = append(d.channels, channel{name: name, n: n})
	return d
}

// Len returns the number of registered channels.
func (d *Dispatcher) Len() int { return len(d.channels) }

// NotifyReport sends every alert derived from r and returns how many
// deliveries succeeded.
func (d *Dispatcher) NotifyReport(ctx context.Context, r *model.Report) int {
	sent := 0
	for _, a := range AlertsFor(r) {
		for _, ch := range d.channels {
			if err := ch.n.Send(ctx, a); err != nil {
				log.Printf("[notify] %s delivery failed for %s: %v", ch.name, a.Symbol, err)
				continue
			}
			sent++
			if d.metrics != nil {
				d.metrics.NotificationsTotal.WithLabelValues(ch.name).Inc()
			}
		}
	}
	return sent
}
