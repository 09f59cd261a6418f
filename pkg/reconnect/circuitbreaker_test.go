package reconnect

import (
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:          "test",
		OpenThreshold: 3,
		ResetTimeout:  time.Hour,
	})

	for i := 0; i < 3; i++ {
		if !cb.Allow() {
			t.Fatalf("Allow() false before threshold reached (i=%d)", i)
		}
		cb.RecordFailure()
	}
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want Open", cb.State())
	}
	if cb.Allow() {
		t.Fatal("Allow() true while Open and before reset timeout")
	}
}

func TestCircuitBreakerHalfOpenAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:          "test",
		OpenThreshold: 1,
		ResetTimeout:  10 * time.Millisecond,
	})
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want Open", cb.State())
	}

	time.Sleep(20 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("Allow() false after reset timeout elapsed")
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("State() = %v, want HalfOpen", cb.State())
	}
}

func TestCircuitBreakerClosesAfterHalfOpenSuccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		OpenThreshold:    1,
		SuccessThreshold: 1,
		ResetTimeout:     time.Millisecond,
	})
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	cb.Allow()
	cb.RecordSuccess()

	if cb.State() != StateClosed {
		t.Fatalf("State() = %v, want Closed", cb.State())
	}
	if cb.FailureCount() != 0 {
		t.Fatalf("FailureCount() = %d, want 0", cb.FailureCount())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:          "test",
		OpenThreshold: 1,
		ResetTimeout:  time.Millisecond,
	})
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	cb.Allow()
	cb.RecordFailure()

	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want Open", cb.State())
	}
}

func TestCircuitBreakerResetClearsState(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))
	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	cb.Reset()
	if cb.State() != StateClosed || cb.FailureCount() != 0 {
		t.Fatalf("Reset did not clear state: state=%v failures=%d", cb.State(), cb.FailureCount())
	}
}
