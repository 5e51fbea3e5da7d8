package detect

import (
	"testing"
	"time"
)

func at(seconds float64) time.Time {
	base := time.Unix(1700000000, 0)
	return base.Add(time.Duration(seconds * float64(time.Second)))
}

func TestObserveCountsRepeatsUpToBudget(t *testing.T) {
	a := NewAccumulator(0.6, 2, 2*time.Second)

	// Identical high-confidence observations with no elapsed time: exactly
	// maxRepeats emissions, then suppression.
	results := []bool{}
	for i := 0; i < 5; i++ {
		results = append(results, a.Observe("A", 0.9, at(0)))
	}

	want := []bool{true, true, false, false, false}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("observation %d: got %v, want %v", i, results[i], want[i])
		}
	}
}

func TestObserveLowConfidenceLeavesStateUntouched(t *testing.T) {
	a := NewAccumulator(0.6, 2, 2*time.Second)

	if !a.Observe("A", 0.9, at(0)) {
		t.Fatal("first confident observation should be new")
	}

	// Low-confidence frames must not reset or advance the dedup state.
	for i := 0; i < 3; i++ {
		if a.Observe("A", 0.3, at(0.1)) {
			t.Fatal("low-confidence observation must not be new")
		}
	}

	// The repeat budget continues where it left off.
	if !a.Observe("A", 0.9, at(0.2)) {
		t.Error("second confident repeat should still be within budget")
	}
	if a.Observe("A", 0.9, at(0.3)) {
		t.Error("third confident repeat should be suppressed")
	}
}

func TestObserveLabelChangeResetsBudget(t *testing.T) {
	a := NewAccumulator(0.6, 2, 2*time.Second)

	// A -> B -> A with no elapsed time: every transition is new.
	if !a.Observe("A", 0.9, at(0)) {
		t.Error("A should be new")
	}
	if !a.Observe("B", 0.9, at(0)) {
		t.Error("B should be new after A")
	}
	if !a.Observe("A", 0.9, at(0)) {
		t.Error("A should be new again after B")
	}
}

func TestObserveCooldownReopensBudget(t *testing.T) {
	a := NewAccumulator(0.6, 2, 2*time.Second)

	// Saturate the budget.
	a.Observe("A", 0.9, at(0))
	a.Observe("A", 0.9, at(0.1))
	if a.Observe("A", 0.9, at(0.2)) {
		t.Fatal("budget should be saturated")
	}

	// After the cooldown the same sign is fresh and the budget restarts at 1,
	// not at its prior saturated value.
	if !a.Observe("A", 0.9, at(2.5)) {
		t.Fatal("sign after cooldown should be new")
	}
	if !a.Observe("A", 0.9, at(2.6)) {
		t.Error("one repeat should be allowed in the new window")
	}
	if a.Observe("A", 0.9, at(2.7)) {
		t.Error("budget should saturate again in the new window")
	}
}

func TestObserveRepeatedSignTimeline(t *testing.T) {
	// maxRepeats=2, cooldown=2s: "A" at t=0.0, 0.3, 0.6 yields true, true,
	// false; at t=2.1 the cooldown has elapsed and "A" is new again.
	a := NewAccumulator(0.6, 2, 2*time.Second)

	steps := []struct {
		t    float64
		want bool
	}{
		{0.0, true},
		{0.3, true},
		{0.6, false},
		{2.1, true},
	}

	for _, s := range steps {
		if got := a.Observe("A", 0.9, at(s.t)); got != s.want {
			t.Errorf("Observe(A, 0.9, t=%.1f) = %v, want %v", s.t, got, s.want)
		}
	}
}

func TestObserveEmptyLabelGetsOwnRepeatBudget(t *testing.T) {
	// An empty label is indistinguishable from the zero-value session state
	// unless first-observation is tracked explicitly. It must behave like any
	// other label: emitted up to the budget, then suppressed.
	a := NewAccumulator(0.6, 2, 2*time.Second)

	if !a.Observe("", 0.9, at(0)) {
		t.Error("first empty-label observation should be new")
	}
	if !a.Observe("", 0.9, at(0.1)) {
		t.Error("one repeat should be within budget")
	}
	if a.Observe("", 0.9, at(0.2)) {
		t.Error("third empty-label observation should be suppressed")
	}
	if !a.Observe("A", 0.9, at(0.3)) {
		t.Error("label change away from empty should be new")
	}
}

func TestObserveSuppressionDoesNotExtendWindow(t *testing.T) {
	a := NewAccumulator(0.6, 1, 1*time.Second)

	a.Observe("A", 0.9, at(0))
	// Suppressed frames right before the window closes must not push it out.
	a.Observe("A", 0.9, at(0.9))
	a.Observe("A", 0.9, at(0.95))

	if !a.Observe("A", 0.9, at(1.0)) {
		t.Error("window measured from first emission should have elapsed at t=1.0")
	}
}
