package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(999).String())
}

func TestNewCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{})

	assert.Equal(t, "test", cb.name)
	assert.Equal(t, uint32(1), cb.maxRequests)
	assert.Equal(t, time.Minute, cb.interval)
	assert.Equal(t, time.Minute, cb.timeout)
	assert.Equal(t, StateClosed, cb.State())
	assert.NotNil(t, cb.readyToTrip)
}

func TestCircuitBreakerExecution(t *testing.T) {
	t.Run("SuccessfulExecution", func(t *testing.T) {
		cb := NewCircuitBreaker("test", Config{})

		err := cb.Execute(context.Background(), func() error {
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, StateClosed, cb.State())

		counts := cb.Counts()
		assert.Equal(t, uint32(1), counts.Requests)
		assert.Equal(t, uint32(1), counts.TotalSuccesses)
		assert.Equal(t, uint32(0), counts.TotalFailures)
	})

	t.Run("OpensAfterFailures", func(t *testing.T) {
		cb := NewCircuitBreaker("test", Config{
			ReadyToTrip: func(counts Counts) bool {
				return counts.TotalFailures >= 3
			},
		})
		testErr := errors.New("backend down")

		for i := 0; i < 3; i++ {
			err := cb.Execute(context.Background(), func() error {
				return testErr
			})
			assert.Equal(t, testErr, err)
		}

		assert.Equal(t, StateOpen, cb.State())
	})

	t.Run("OpenStateBlocks", func(t *testing.T) {
		cb := NewCircuitBreaker("test", Config{
			ReadyToTrip: func(counts Counts) bool {
				return counts.TotalFailures >= 1
			},
		})

		err := cb.Execute(context.Background(), func() error {
			return errors.New("backend down")
		})
		assert.Error(t, err)
		assert.Equal(t, StateOpen, cb.State())

		called := false
		err = cb.Execute(context.Background(), func() error {
			called = true
			return nil
		})
		assert.Equal(t, ErrOpenState, err)
		assert.True(t, IsCircuitBreakerError(err))
		assert.False(t, called, "fn must not run while the circuit is open")
	})

	t.Run("RecoversThroughHalfOpen", func(t *testing.T) {
		cb := NewCircuitBreaker("test", Config{
			Timeout: 10 * time.Millisecond,
			ReadyToTrip: func(counts Counts) bool {
				return counts.TotalFailures >= 1
			},
		})

		err := cb.Execute(context.Background(), func() error {
			return errors.New("backend down")
		})
		assert.Error(t, err)
		assert.Equal(t, StateOpen, cb.State())

		time.Sleep(15 * time.Millisecond)

		err = cb.Execute(context.Background(), func() error {
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("PanicCountsAsFailure", func(t *testing.T) {
		cb := NewCircuitBreaker("test", Config{})

		assert.Panics(t, func() {
			_ = cb.Execute(context.Background(), func() error {
				panic("boom")
			})
		})

		counts := cb.Counts()
		assert.Equal(t, uint32(1), counts.Requests)
		assert.Equal(t, uint32(0), counts.TotalSuccesses)
		assert.Equal(t, uint32(1), counts.TotalFailures)
	})
}

func TestHalfOpenLimitsRequests(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{
		MaxRequests: 1,
		Timeout:     10 * time.Millisecond,
		ReadyToTrip: func(counts Counts) bool {
			return counts.TotalFailures >= 1
		},
	})

	err := cb.Execute(context.Background(), func() error {
		return errors.New("backend down")
	})
	assert.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(15 * time.Millisecond)

	err = cb.Execute(context.Background(), func() error {
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())

	cb.mu.Lock()
	cb.state = StateHalfOpen
	cb.counts.Requests = 1
	cb.mu.Unlock()

	err = cb.Execute(context.Background(), func() error {
		return nil
	})
	assert.Equal(t, ErrTooManyRequests, err)
	assert.True(t, IsCircuitBreakerError(err))
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{
		ReadyToTrip: func(counts Counts) bool {
			return counts.TotalFailures >= 1
		},
	})

	err := cb.Execute(context.Background(), func() error {
		return errors.New("backend down")
	})
	assert.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, Counts{}, cb.Counts())
}

func TestStateChangeCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("shop-db", Config{
		ReadyToTrip: func(counts Counts) bool {
			return counts.TotalFailures >= 1
		},
		OnStateChange: func(name string, from State, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})

	_ = cb.Execute(context.Background(), func() error {
		return errors.New("backend down")
	})

	assert.Equal(t, []string{"shop-db:closed->open"}, transitions)
}
