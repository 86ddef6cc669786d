package breakers

import (
	"errors"
	"testing"

	cb "github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_TripsOnConsecutiveFailures(t *testing.T) {
	b := New("test")
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		_, err := b.Execute(func() (any, error) { return nil, boom })
		require.ErrorIs(t, err, boom)
	}

	assert.Equal(t, cb.StateOpen, b.State())

	_, err := b.Execute(func() (any, error) { return nil, nil })
	assert.ErrorIs(t, err, cb.ErrOpenState)
}

func TestBreaker_StaysClosedOnSuccess(t *testing.T) {
	b := New("test")

	for i := 0; i < 10; i++ {
		v, err := b.Execute(func() (any, error) { return i, nil })
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, cb.StateClosed, b.State())
}
