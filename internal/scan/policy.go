package scan

import "time"

// TriggerPolicy decides when the session may freeze a frame and submit it.
// Observe only evaluates eligibility; the session calls MarkTriggered when
// a capture genuinely starts, so a trigger suppressed by the loading guard
// does not burn the cooldown. Implementations are driven from the capture
// loop and are not safe for concurrent use; the session serializes access.
type TriggerPolicy interface {
	// Observe records one loop tick and reports whether a capture is
	// eligible to trigger now. faces is the number of faces seen in the
	// current frame; policies that do not gate on detection ignore it.
	Observe(now time.Time, faces int) bool

	// MarkTriggered records that a capture actually fired.
	MarkTriggered(now time.Time)

	// Progress reports how close the policy is to firing, in [0, 1].
	Progress(now time.Time) float64

	// Reset clears accumulated state and re-arms the policy.
	Reset()
}

// StabilityPolicy gates capture on continuous face detection: a face must
// stay detected for the whole stability window before a trigger fires, and
// triggers are separated by at least the cooldown window. Losing the face
// at any point drops accumulated progress to zero.
type StabilityPolicy struct {
	window   time.Duration
	cooldown time.Duration

	stableSince time.Time // zero while no face is tracked
	lastTrigger time.Time
}

// NewStabilityPolicy creates a detection-gated policy
func NewStabilityPolicy(window, cooldown time.Duration) *StabilityPolicy {
	return &StabilityPolicy{window: window, cooldown: cooldown}
}

// Observe records one frame observation
func (p *StabilityPolicy) Observe(now time.Time, faces int) bool {
	if faces <= 0 {
		// No carry-over of partial progress
		p.stableSince = time.Time{}
		return false
	}

	if p.stableSince.IsZero() {
		p.stableSince = now
	}
	if now.Sub(p.stableSince) < p.window {
		return false
	}

	// Cooldown is tracked independently of stability: a face held through
	// the cooldown keeps showing full progress but must not re-trigger.
	if !p.lastTrigger.IsZero() && now.Sub(p.lastTrigger) < p.cooldown {
		return false
	}

	return true
}

// MarkTriggered starts the cooldown and resets the stability timer
func (p *StabilityPolicy) MarkTriggered(now time.Time) {
	p.lastTrigger = now
	p.stableSince = time.Time{}
}

// Progress reports stability accumulation as a fraction of the window
func (p *StabilityPolicy) Progress(now time.Time) float64 {
	if p.stableSince.IsZero() {
		return 0
	}
	fraction := float64(now.Sub(p.stableSince)) / float64(p.window)
	if fraction > 1 {
		fraction = 1
	}
	return fraction
}

// Reset clears stability and cooldown state
func (p *StabilityPolicy) Reset() {
	p.stableSince = time.Time{}
	p.lastTrigger = time.Time{}
}

// IntervalPolicy fires on a fixed cadence regardless of face presence.
// This is the fallback when no detector is configured: every elapsed
// interval attempts a capture.
type IntervalPolicy struct {
	interval time.Duration
	last     time.Time
}

// NewIntervalPolicy creates a fixed-interval policy
func NewIntervalPolicy(interval time.Duration) *IntervalPolicy {
	return &IntervalPolicy{interval: interval}
}

// Observe records one loop tick; faces is ignored
func (p *IntervalPolicy) Observe(now time.Time, faces int) bool {
	if p.last.IsZero() {
		p.last = now
		return false
	}
	return now.Sub(p.last) >= p.interval
}

// MarkTriggered restarts the interval from the capture
func (p *IntervalPolicy) MarkTriggered(now time.Time) {
	p.last = now
}

// Progress reports elapsed interval as a fraction
func (p *IntervalPolicy) Progress(now time.Time) float64 {
	if p.last.IsZero() {
		return 0
	}
	fraction := float64(now.Sub(p.last)) / float64(p.interval)
	if fraction > 1 {
		fraction = 1
	}
	return fraction
}

// Reset re-arms the interval from the next observation
func (p *IntervalPolicy) Reset() {
	p.last = time.Time{}
}
