package rpcconn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUniformRandomStrategyEmptyLiveSet(t *testing.T) {
	require.Nil(t, UniformRandomStrategy(nil, nil))
	require.Nil(t, UniformRandomStrategy([]*ConnectionEntry{}, nil))
}

func TestUniformRandomStrategyPicksFromLiveSet(t *testing.T) {
	live := []*ConnectionEntry{
		{Endpoint: Endpoint{Host: "a", Port: 1}},
		{Endpoint: Endpoint{Host: "b", Port: 2}},
		{Endpoint: Endpoint{Host: "c", Port: 3}},
	}

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		picked := UniformRandomStrategy(live, nil)
		require.NotNil(t, picked)
		seen[picked.Endpoint.String()] = true
	}

	// With 200 draws over 3 entries, seeing only a strict subset would
	// indicate a broken RNG rather than bad luck.
	require.Len(t, seen, 3)
}

// TestUniformRandomStrategyDistributesEvenly checks the ±0.1-of-1/N
// statistical tolerance at M=1000, N=3.
func TestUniformRandomStrategyDistributesEvenly(t *testing.T) {
	live := []*ConnectionEntry{
		{Endpoint: Endpoint{Host: "a", Port: 1}},
		{Endpoint: Endpoint{Host: "b", Port: 2}},
		{Endpoint: Endpoint{Host: "c", Port: 3}},
	}

	const draws = 1000
	counts := make(map[string]int, len(live))
	for i := 0; i < draws; i++ {
		picked := UniformRandomStrategy(live, nil)
		require.NotNil(t, picked)
		counts[picked.Endpoint.String()]++
	}

	want := 1.0 / float64(len(live))
	for _, entry := range live {
		share := float64(counts[entry.Endpoint.String()]) / draws
		require.InDeltaf(t, want, share, 0.1,
			"endpoint %s got share %.3f, want %.3f +/- 0.1", entry.Endpoint, share, want)
	}
}
