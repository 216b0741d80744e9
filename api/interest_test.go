// File: api/interest_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterestEffectiveMask(t *testing.T) {
	var i Interest
	require.Equal(t, EventMask(0), i.EffectiveMask())

	i = i.WithReadable(true)
	require.Equal(t, EventReadable, i.EffectiveMask())

	i = i.WithWritable(true).WithError(true).WithNotifications(true)
	want := EventReadable | EventWritable | EventError | EventNotifications
	require.Equal(t, want, i.EffectiveMask())

	// Toggling a bit already set is idempotent.
	require.Equal(t, want, i.WithReadable(true).EffectiveMask())

	i = i.WithWritable(false)
	require.Equal(t, want&^EventWritable, i.EffectiveMask())
}

func TestInterestRandomToggleSequence(t *testing.T) {
	// Property 1: after any sequence of with-calls the effective mask
	// equals the OR of the want-bits currently set.
	i := Interest{}
	type step struct {
		apply func(Interest) Interest
	}
	steps := []step{
		{func(v Interest) Interest { return v.WithReadable(true) }},
		{func(v Interest) Interest { return v.WithWritable(true) }},
		{func(v Interest) Interest { return v.WithReadable(false) }},
		{func(v Interest) Interest { return v.WithError(true) }},
		{func(v Interest) Interest { return v.WithWritable(false) }},
		{func(v Interest) Interest { return v.WithReadable(true) }},
	}
	for _, s := range steps {
		i = s.apply(i)
		var want EventMask
		if i.Readable {
			want |= EventReadable
		}
		if i.Writable {
			want |= EventWritable
		}
		if i.Error {
			want |= EventError
		}
		if i.Notifications {
			want |= EventNotifications
		}
		require.Equal(t, want, i.EffectiveMask())
	}
}

func TestInterestWantAny(t *testing.T) {
	var i Interest
	require.False(t, i.WantAny())
	require.False(t, i.WantAnyReadWrite())

	require.True(t, i.WithError(true).WantAny())
	require.False(t, i.WithError(true).WantAnyReadWrite())
	require.True(t, i.WithWritable(true).WantAnyReadWrite())
}

func TestInterestModalFlagsDoNotAffectMask(t *testing.T) {
	i := Interest{}.WithReadable(true)
	edged := i.WithTrigger(TriggerEdge).WithOneShot(true)
	require.Equal(t, i.EffectiveMask(), edged.EffectiveMask())
	require.Equal(t, TriggerEdge, edged.Trigger)
	require.True(t, edged.OneShot)
}
