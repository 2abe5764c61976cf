package main

import "testing"

// P7 (gating half): with zero requested credits, Take refuses delivery.
func TestDemandCounterStartsAtZero(t *testing.T) {
	d := NewDemandCounter()
	if d.Take() {
		t.Fatalf("expected Take() to refuse with no requested credits")
	}
}

func TestDemandCounterGrantsExactCredits(t *testing.T) {
	d := NewDemandCounter()
	d.Request(2)

	if !d.Take() {
		t.Fatalf("expected first Take() to succeed")
	}
	if !d.Take() {
		t.Fatalf("expected second Take() to succeed")
	}
	if d.Take() {
		t.Fatalf("expected third Take() to refuse once credits are exhausted")
	}
}

func TestDemandCounterUnbounded(t *testing.T) {
	d := NewDemandCounter()
	d.Unbounded()

	for i := 0; i < 100; i++ {
		if !d.Take() {
			t.Fatalf("expected unbounded counter to always allow Take(), failed at iteration %d", i)
		}
	}
}

func TestDemandCounterRequestAccumulates(t *testing.T) {
	d := NewDemandCounter()
	d.Request(1)
	d.Request(1)

	if !d.Take() || !d.Take() {
		t.Fatalf("expected two accumulated credits to allow two Take() calls")
	}
	if d.Take() {
		t.Fatalf("expected credits to be exhausted after two Take() calls")
	}
}
