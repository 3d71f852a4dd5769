package rpcconn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDelaySchedule(t *testing.T) {
	timeout := 7 * time.Second

	want := []time.Duration{
		0, 0, // attempts 0,1: no wait
		7 * time.Second,
		14 * time.Second,
		28 * time.Second,
		56 * time.Second,
		70 * time.Second,
		70 * time.Second,
		70 * time.Second,
		70 * time.Second,
	}

	for attempt, want := range want {
		got := backoffDelay(timeout, attempt)
		require.Equalf(t, want, got, "attempt=%d", attempt)
	}
}

func TestBackoffDelayNeverExceedsTenTimesTimeout(t *testing.T) {
	timeout := 3 * time.Second
	cap := 10 * timeout

	for attempt := 0; attempt < 50; attempt++ {
		got := backoffDelay(timeout, attempt)
		require.LessOrEqualf(t, got, cap, "attempt=%d", attempt)
	}
}
