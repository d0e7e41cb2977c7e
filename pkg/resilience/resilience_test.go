package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/Adithya-Monish-Kumar-K/appsearch/pkg/errors"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "fetch", fastRetry(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("err = %v, calls = %d; want nil, 3", err, calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), "fetch", fastRetry(4), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 4 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestRetryPermanentStopsEarly(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "fetch", fastRetry(5), func() error {
		calls++
		return Permanent(apperrors.ErrFetchFailed)
	})
	if !errors.Is(err, apperrors.ErrFetchFailed) || !IsPermanent(err) || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) must be nil")
	}
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "fetch", fastRetry(5), func() error { return errors.New("x") })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v; want context.Canceled", err)
	}
}

func TestCircuitBreakerTransitions(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("play", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     20 * time.Millisecond,
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})
	boom := errors.New("boom")
	_ = cb.Execute(func() error { return boom })
	_ = cb.Execute(func() error { return boom })
	if cb.State() != StateOpen {
		t.Fatalf("state = %v; want open", cb.State())
	}
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v; want ErrCircuitOpen", err)
	}

	time.Sleep(30 * time.Millisecond)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe err = %v", err)
	}
	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if diff := cmp.Diff(want, transitions); diff != "" {
		t.Errorf("Diff: (-want +got)\n%s", diff)
	}
}

func TestCircuitBreakerIgnoresNonFailures(t *testing.T) {
	notFound := errors.New("404")
	cb := NewCircuitBreaker("play", CircuitBreakerConfig{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, notFound) },
	})
	for i := 0; i < 3; i++ {
		if err := cb.Execute(func() error { return notFound }); !errors.Is(err, notFound) {
			t.Fatalf("err = %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v; want closed", cb.State())
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, apperrors.ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v; want ErrTimeout and DeadlineExceeded", err)
	}

	if err := WithTimeout(context.Background(), time.Second, "fast", func(context.Context) error { return nil }); err != nil {
		t.Errorf("err = %v", err)
	}
}
