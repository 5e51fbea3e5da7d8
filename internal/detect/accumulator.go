// Package detect implements the real-time sign detection stream: a websocket
// session handler in front of the hosted classifier, and the per-session
// deduplication filter that turns noisy per-frame predictions into discrete
// "new sign" events.
package detect

import "time"

// Accumulator decides, per raw prediction, whether the detected sign is a
// materially new detection or a repeat that should be suppressed.
//
// A sign held across consecutive frames is counted up to maxRepeats times
// inside one cooldown window; further identical predictions are dropped until
// the label changes or the window elapses. This allows deliberate double
// letters while keeping a steadily held sign from spamming the transcript
// every frame.
//
// Each stream connection owns exactly one Accumulator. It is not safe for
// concurrent use and never needs to be: frames on a connection are processed
// strictly in arrival order.
type Accumulator struct {
	threshold  float64
	maxRepeats int
	cooldown   time.Duration

	lastLabel   string
	repeatCount int
	windowStart time.Time // first emission of the current run
}

// NewAccumulator returns a fresh session filter. threshold is the minimum
// confidence for a prediction to count as a detection at all.
func NewAccumulator(threshold float64, maxRepeats int, cooldown time.Duration) *Accumulator {
	return &Accumulator{
		threshold:  threshold,
		maxRepeats: maxRepeats,
		cooldown:   cooldown,
	}
}

// Observe folds one prediction into the session state and reports whether the
// caller should surface it as a new detection.
//
// Low-confidence predictions never touch the state: a noisy frame must not
// reset the repeat budget, or a held sign would be re-counted right after it.
func (a *Accumulator) Observe(label string, confidence float64, now time.Time) bool {
	if confidence < a.threshold {
		return false
	}

	if a.windowStart.IsZero() || label != a.lastLabel {
		// First observation of the session, or a label change: unconditionally
		// new, opens a fresh window. Checking windowStart keeps an empty label
		// from aliasing the zero-value session-start state.
		a.lastLabel = label
		a.repeatCount = 1
		a.windowStart = now
		return true
	}

	if now.Sub(a.windowStart) >= a.cooldown {
		// Cooldown elapsed: same sign, fresh window, budget starts over.
		a.repeatCount = 1
		a.windowStart = now
		return true
	}

	if a.repeatCount < a.maxRepeats {
		a.repeatCount++
		return true
	}

	// Budget saturated inside the window: suppress without touching state.
	return false
}
