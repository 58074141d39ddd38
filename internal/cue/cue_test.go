package cue

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/parley/internal/fsm"
)

func TestEveryCueHasSamples(t *testing.T) {
	for _, kind := range []Kind{Start, Pause, Resume, Stop, Complete, Cancel} {
		require.NotEmpty(t, Samples(kind), kind.String())
	}
	require.Empty(t, Samples(Kind(99)))
}

func TestSynthesizeToneDuration(t *testing.T) {
	got := synthesizeTone(tone{frequencyHz: 440, duration: 100 * time.Millisecond, volume: 0.2})
	require.Len(t, got, 1600)
	require.Zero(t, got[0])
	require.Zero(t, got[len(got)-1])
}

func TestSynthesizeToneInvalidSpecReturnsEmpty(t *testing.T) {
	require.Empty(t, synthesizeTone(tone{frequencyHz: 0, duration: 100 * time.Millisecond, volume: 0.2}))
	require.Empty(t, synthesizeTone(tone{frequencyHz: 440, duration: 0, volume: 0.2}))
	require.Empty(t, synthesizeTone(tone{frequencyHz: 440, duration: 100 * time.Millisecond, volume: 0}))
}

func TestSynthesizeJoinsWithGap(t *testing.T) {
	pcm := synthesize([]tone{
		{frequencyHz: 440, duration: 50 * time.Millisecond, volume: 0.2},
		{frequencyHz: 880, duration: 50 * time.Millisecond, volume: 0.2},
	})
	require.Len(t, pcm, 800+samplesFor(22*time.Millisecond)+800)
}

func TestForTransition(t *testing.T) {
	tests := []struct {
		from, to fsm.State
		want     Kind
		ok       bool
	}{
		{from: fsm.StateIdle, to: fsm.StateListening, want: Start, ok: true},
		{from: fsm.StateListening, to: fsm.StatePaused, want: Pause, ok: true},
		{from: fsm.StatePaused, to: fsm.StateListening, want: Resume, ok: true},
		{from: fsm.StateListening, to: fsm.StateTranscribing, want: Stop, ok: true},
		{from: fsm.StateTranscribing, to: fsm.StateIdle, want: Complete, ok: true},
		{from: fsm.StatePaused, to: fsm.StateIdle, want: Cancel, ok: true},
		{from: fsm.StateListening, to: fsm.StateError, want: Cancel, ok: true},
		{from: fsm.StateError, to: fsm.StateIdle},
	}
	for _, tc := range tests {
		got, ok := For(tc.from, tc.to)
		require.Equal(t, tc.ok, ok, "%s -> %s", tc.from, tc.to)
		require.Equal(t, tc.want, got, "%s -> %s", tc.from, tc.to)
	}
}

func TestPlayerPlaysInOrderAndSwallowsErrors(t *testing.T) {
	var (
		mu     sync.Mutex
		played []int
	)
	player := New(nil, func(samples []int16) error {
		mu.Lock()
		defer mu.Unlock()
		played = append(played, len(samples))
		return errors.New("no sink")
	})

	player.Transition(fsm.StateIdle, fsm.StateListening)
	player.Transition(fsm.StateError, fsm.StateIdle)
	player.Wait()

	require.Equal(t, []int{len(Samples(Start))}, played)
}
