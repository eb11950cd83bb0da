package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDevice = errors.New("device unreachable")

func TestCircuitBreaker_TripsAndRecovers(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	cb := New(2, time.Minute)
	cb.now = func() time.Time { return now }

	fail := func() error { return errDevice }
	ok := func() error { return nil }

	require.ErrorIs(t, cb.Execute(fail), errDevice)
	assert.Equal(t, StateClosed, cb.State())
	require.ErrorIs(t, cb.Execute(fail), errDevice)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	cb := New(1, time.Minute)
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errDevice })
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(61 * time.Second)
	require.ErrorIs(t, cb.Execute(func() error { return errDevice }), errDevice)
	assert.Equal(t, StateOpen, cb.State())
	require.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := New(2, time.Minute)
	_ = cb.Execute(func() error { return errDevice })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errDevice })
	assert.Equal(t, StateClosed, cb.State())
}
