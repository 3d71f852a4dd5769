package rpcconn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryStartsIdle(t *testing.T) {
	eps := []Endpoint{{Host: "a", Port: 1}, {Host: "b", Port: 2}}
	reg := newRegistry(eps)

	require.False(t, reg.isLive())
	require.Empty(t, reg.liveSet())

	all := reg.all()
	require.Len(t, all, 2)
	for i, e := range all {
		require.Equal(t, eps[i], e.Endpoint)
		require.Equal(t, StateIdle, e.State)
	}
}

func TestRegistrySetIsVisibleToReaders(t *testing.T) {
	eps := []Endpoint{{Host: "a", Port: 1}}
	reg := newRegistry(eps)

	entry := reg.get(0).snapshot()
	entry.State = StateOpen
	reg.set(0, entry)

	require.True(t, reg.isLive())
	require.Len(t, reg.liveSet(), 1)
	require.Equal(t, StateOpen, reg.get(0).State)
}

func TestRegistryLiveSetOnlyIncludesOpen(t *testing.T) {
	eps := []Endpoint{{Host: "a", Port: 1}, {Host: "b", Port: 2}, {Host: "c", Port: 3}}
	reg := newRegistry(eps)

	states := []State{StateOpen, StateConnecting, StateClosed}
	for i, s := range states {
		entry := reg.get(i).snapshot()
		entry.State = s
		reg.set(i, entry)
	}

	live := reg.liveSet()
	require.Len(t, live, 1)
	require.Equal(t, eps[0], live[0].Endpoint)
}
