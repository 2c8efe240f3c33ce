package resilience

import (
	"errors"
	"testing"
)

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	var opened int
	cb := NewCircuitBreaker(3, func(failures int) { opened = failures })
	fail := errors.New("fetch failed")

	for i := range 2 {
		if err := cb.Record(fail); err != nil {
			t.Fatalf("failure %d: unexpected open: %v", i+1, err)
		}
	}
	err := cb.Record(fail)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if !cb.Open() {
		t.Error("expected breaker to report open")
	}
	if opened != 3 {
		t.Errorf("expected onOpen with 3 failures, got %d", opened)
	}
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb := NewCircuitBreaker(2, nil)
	fail := errors.New("boom")

	_ = cb.Record(fail)
	_ = cb.Record(nil)
	if cb.Failures() != 0 {
		t.Errorf("expected reset after success, got %d", cb.Failures())
	}
	if err := cb.Record(fail); err != nil {
		t.Errorf("expected closed after reset, got %v", err)
	}
}

func TestCircuitBreaker_ZeroThresholdNeverOpens(t *testing.T) {
	cb := NewCircuitBreaker(0, nil)
	for range 100 {
		if err := cb.Record(errors.New("boom")); err != nil {
			t.Fatalf("unexpected open: %v", err)
		}
	}
	if cb.Open() {
		t.Error("zero threshold must never open")
	}
	if cb.Failures() != 100 {
		t.Errorf("expected 100 failures counted, got %d", cb.Failures())
	}
}
