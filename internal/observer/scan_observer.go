package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ScanEvent represents one event in the capture/submit lifecycle
type ScanEvent struct {
	EventType EventType     `json:"event_type"`
	Timestamp time.Time     `json:"timestamp"`
	CaptureID string        `json:"capture_id,omitempty"`
	Status    string        `json:"status,omitempty"`
	RoundTrip time.Duration `json:"round_trip,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// EventType represents the type of scan event
type EventType string

const (
	// CaptureTriggered when the trigger policy fires and a frame is frozen
	CaptureTriggered EventType = "capture_triggered"
	// SubmitSucceeded when the recognition service accepts the face
	SubmitSucceeded EventType = "submit_succeeded"
	// SubmitRejected when the service answers but does not recognize the face
	SubmitRejected EventType = "submit_rejected"
	// SubmitFailed when the submission fails at transport or server level
	SubmitFailed EventType = "submit_failed"
	// FrameDropped when a loop tick is skipped (camera or detector error)
	FrameDropped EventType = "frame_dropped"
	// SessionReset when the operator clears the displayed result
	SessionReset EventType = "session_reset"
)

// Observer defines the interface for scan event observers
type Observer interface {
	OnEvent(ctx context.Context, event ScanEvent)
	Name() string
}

// Publisher fans scan events out to registered observers
type Publisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewPublisher creates an empty event publisher
func NewPublisher() *Publisher {
	return &Publisher{observers: make([]Observer, 0)}
}

// Subscribe adds an observer
func (p *Publisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *Publisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.Name() == observer.Name() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// Publish notifies all observers of an event. A panicking observer must
// not take the capture loop down with it.
func (p *Publisher) Publish(ctx context.Context, event ScanEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.Name()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// LoggingObserver logs scan events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

// OnEvent handles scan events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event ScanEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"capture_id": event.CaptureID,
	}
	if event.Status != "" {
		fields["status"] = event.Status
	}
	if event.RoundTrip > 0 {
		fields["round_trip_ms"] = event.RoundTrip.Milliseconds()
	}
	if event.Error != "" {
		fields["error"] = event.Error
	}

	switch event.EventType {
	case CaptureTriggered:
		o.logger.WithFields(fields).Info("Capture triggered")
	case SubmitSucceeded:
		o.logger.WithFields(fields).Info("Face recognized, QR generated")
	case SubmitRejected:
		o.logger.WithFields(fields).Warn("Face not recognized")
	case SubmitFailed:
		o.logger.WithFields(fields).Error("Submission failed")
	case FrameDropped:
		o.logger.WithFields(fields).Debug("Frame dropped")
	case SessionReset:
		o.logger.WithFields(fields).Info("Scan session reset")
	default:
		o.logger.WithFields(fields).Info("Scan event occurred")
	}
}

// Name returns the observer name
func (o *LoggingObserver) Name() string {
	return "logging_observer"
}

// MetricsObserver collects counters from scan events
type MetricsObserver struct {
	mu             sync.RWMutex
	captures       int64
	accepted       int64
	rejected       int64
	failed         int64
	framesDropped  int64
	totalRoundTrip time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles scan events by updating counters
func (o *MetricsObserver) OnEvent(ctx context.Context, event ScanEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case CaptureTriggered:
		o.captures++
	case SubmitSucceeded:
		o.accepted++
		o.totalRoundTrip += event.RoundTrip
	case SubmitRejected:
		o.rejected++
		o.totalRoundTrip += event.RoundTrip
	case SubmitFailed:
		o.failed++
	case FrameDropped:
		o.framesDropped++
	}
}

// Name returns the observer name
func (o *MetricsObserver) Name() string {
	return "metrics_observer"
}

// Metrics returns a snapshot of the collected counters
func (o *MetricsObserver) Metrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgRoundTrip := time.Duration(0)
	if answered := o.accepted + o.rejected; answered > 0 {
		avgRoundTrip = o.totalRoundTrip / time.Duration(answered)
	}

	return map[string]interface{}{
		"captures":          o.captures,
		"accepted":          o.accepted,
		"rejected":          o.rejected,
		"failed":            o.failed,
		"frames_dropped":    o.framesDropped,
		"avg_round_trip_ms": avgRoundTrip.Milliseconds(),
	}
}
