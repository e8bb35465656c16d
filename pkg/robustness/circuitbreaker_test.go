package robustness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/gomcp/internal/config"
)

func testCBConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 3,
		OpenDuration:     config.Duration(20 * time.Millisecond),
		MaxOpenDuration:  config.Duration(60 * time.Millisecond),
		HalfOpenMaxCalls: 1,
	}
}

func TestCircuitBreakerStartsClosed(t *testing.T) {
	cb := NewCircuitBreaker("dep", testCBConfig())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("dep", testCBConfig())
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	assert.Equal(t, StateOpen, cb.State())

	ok, err := cb.Allow()
	assert.False(t, ok)
	require.Error(t, err)
}

func TestCircuitBreakerHalfOpensAfterDuration(t *testing.T) {
	cb := NewCircuitBreaker("dep", testCBConfig())
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	ok, err := cb.Allow()
	assert.True(t, ok)
	assert.NoError(t, err)

	// HalfOpenMaxCalls is 1, so a second trial call is rejected.
	ok, err = cb.Allow()
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestCircuitBreakerClosesAfterHalfOpenSuccess(t *testing.T) {
	cb := NewCircuitBreaker("dep", testCBConfig())
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	ok, _ := cb.Allow()
	require.True(t, ok)
	cb.RecordSuccess()

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("dep", testCBConfig())
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	ok, _ := cb.Allow()
	require.True(t, ok)
	cb.RecordFailure()

	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerHalfOpenFailureDoublesBackoffUpToCap(t *testing.T) {
	cb := NewCircuitBreaker("dep", testCBConfig())
	assert.Equal(t, 20*time.Millisecond, cb.openDuration)

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	time.Sleep(25 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())
	ok, _ := cb.Allow()
	require.True(t, ok)
	cb.RecordFailure()
	assert.Equal(t, 40*time.Millisecond, cb.openDuration)

	time.Sleep(45 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())
	ok, _ = cb.Allow()
	require.True(t, ok)
	cb.RecordFailure()
	// Doubling 40ms would give 80ms, but MaxOpenDuration caps it at 60ms.
	assert.Equal(t, 60*time.Millisecond, cb.openDuration)
}

func TestCircuitBreakerDisabledAlwaysAllows(t *testing.T) {
	cfg := testCBConfig()
	cfg.Enabled = false
	cb := NewCircuitBreaker("dep", cfg)
	for i := 0; i < 10; i++ {
		cb.RecordFailure()
	}
	ok, err := cb.Allow()
	assert.True(t, ok)
	assert.NoError(t, err)
}

func TestCircuitBreakerDoRecordsOutcome(t *testing.T) {
	cb := NewCircuitBreaker("dep", testCBConfig())

	err := cb.Do(func() error { return assert.AnError })
	assert.Error(t, err)

	err = cb.Do(func() error { return nil })
	assert.NoError(t, err)
}
