package attempts

import "testing"

func TestFail_MonotonicAndClamped(t *testing.T) {
	tr := NewTracker(3)

	count := 0
	for i := 1; i <= 3; i++ {
		count = tr.Fail(count)
		if count != i {
			t.Fatalf("after %d failures count = %d", i, count)
		}
	}
	if got := tr.Fail(count); got != 3 {
		t.Errorf("count past ceiling = %d, want 3", got)
	}
	if got := tr.Fail(-5); got != 1 {
		t.Errorf("Fail(-5) = %d, want 1", got)
	}
}

func TestBelowMax(t *testing.T) {
	tr := NewTracker(3)
	if !tr.BelowMax(2) {
		t.Error("BelowMax(2) = false with ceiling 3")
	}
	if tr.BelowMax(3) {
		t.Error("BelowMax(3) = true with ceiling 3")
	}
}

func TestNewTracker_DefaultsCeiling(t *testing.T) {
	if got := NewTracker(0).Max(); got != DefaultMaxAttempts {
		t.Errorf("Max() = %d, want %d", got, DefaultMaxAttempts)
	}
	if got := NewTracker(5).Max(); got != 5 {
		t.Errorf("Max() = %d, want 5", got)
	}
}
