// File: state/machine_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package state

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/geomesh/api"
)

func newTestMachine(t *testing.T, initial State) *Machine {
	t.Helper()
	m := newTestManager(t)
	mc, err := m.CreateMachine(7, initial, 4, 4)
	require.NoError(t, err)
	return mc
}

func TestTransitionBookkeeping(t *testing.T) {
	mc := newTestMachine(t, Initialized)
	require.Equal(t, ResultSuccess, mc.Transition(Ready))
	require.Equal(t, ResultSuccess, mc.Transition(Running))

	assert.Equal(t, Running, mc.State())
	assert.Equal(t, Ready, mc.Previous())
	assert.Equal(t, uint64(2), mc.TransitionCount())
	assert.Equal(t, uint64(1), mc.StateCount(Ready))
	assert.Equal(t, uint64(1), mc.StateCount(Running))
	assert.Equal(t, uint64(2), mc.mgr.Stats().TotalTransitions)
}

func TestPermissiveByDefault(t *testing.T) {
	mc := newTestMachine(t, Initialized)
	assert.True(t, mc.CanTransition(Stopped))
	assert.Equal(t, ResultSuccess, mc.Transition(Stopped))
	assert.Equal(t, ResultInvalid, mc.Transition(State(999)))
}

func TestRuleValidatorAndAction(t *testing.T) {
	mc := newTestMachine(t, Ready)
	allow := false
	var order []string
	require.NoError(t, mc.AddTransition(Rule{
		From:     Ready,
		To:       Running,
		Validate: func(any) bool { return allow },
		OnEnter:  func(any) { order = append(order, "rule") },
	}))
	_, err := mc.RegisterCallback(func(Event) { order = append(order, "cb1") })
	require.NoError(t, err)
	_, err = mc.RegisterCallback(func(Event) { order = append(order, "cb2") })
	require.NoError(t, err)

	assert.False(t, mc.CanTransition(Running))
	assert.Equal(t, ResultInvalid, mc.Transition(Running))
	assert.Equal(t, Ready, mc.State())
	assert.Zero(t, mc.TransitionCount())
	assert.Equal(t, uint64(1), mc.mgr.Stats().FailedTransitions)

	allow = true
	assert.Equal(t, ResultSuccess, mc.Transition(Running))
	assert.Equal(t, []string{"rule", "cb1", "cb2"}, order)

	require.NoError(t, mc.RemoveTransition(Ready, Running))
	assert.True(t, errors.Is(mc.RemoveTransition(Ready, Running), api.ErrNotFound))
}

func TestValidatorMayInspectMachine(t *testing.T) {
	mc := newTestMachine(t, Initialized)
	var seen []State
	require.NoError(t, mc.AddTransition(Rule{
		From: Initialized,
		To:   Ready,
		Validate: func(any) bool {
			seen = append(seen, mc.State())
			return mc.TimeInState() >= 0 && mc.CanTransition(Stopped)
		},
	}))

	done := make(chan Result, 1)
	go func() { done <- mc.Transition(Ready) }()
	select {
	case r := <-done:
		assert.Equal(t, ResultSuccess, r)
	case <-time.After(2 * time.Second):
		t.Fatal("Transition did not return")
	}
	assert.Equal(t, Ready, mc.State())
	assert.Equal(t, []State{Initialized}, seen)
}

func TestEventPayload(t *testing.T) {
	mc := newTestMachine(t, Initialized)
	mc.SetContext("payload")
	var got Event
	_, err := mc.RegisterCallback(func(ev Event) { got = ev })
	require.NoError(t, err)

	before := time.Now()
	require.Equal(t, ResultSuccess, mc.Transition(Ready))
	assert.Equal(t, uint64(7), got.EntityID)
	assert.Equal(t, Initialized, got.OldState)
	assert.Equal(t, Ready, got.NewState)
	assert.Equal(t, "payload", got.Context)
	assert.False(t, got.Timestamp.Before(before))
}

func TestTerminalStateBlocks(t *testing.T) {
	mc := newTestMachine(t, Running)
	require.Equal(t, ResultSuccess, mc.Transition(Terminated))
	assert.Equal(t, ResultBlocked, mc.Transition(Ready))
	assert.Equal(t, Terminated, mc.State())

	mc.ForceTransition(Ready)
	assert.Equal(t, Ready, mc.State())
	assert.Equal(t, Terminated, mc.Previous())
}

func TestForceTransitionSkipsCallbacks(t *testing.T) {
	mc := newTestMachine(t, Ready)
	called := false
	_, err := mc.RegisterCallback(func(Event) { called = true })
	require.NoError(t, err)
	require.NoError(t, mc.AddTransition(Rule{From: Ready, To: Error, Validate: func(any) bool { return false }}))

	mc.ForceTransition(Error)
	assert.Equal(t, Error, mc.State())
	assert.Equal(t, uint64(1), mc.TransitionCount())
	assert.False(t, called)
}

func TestCallbackCapacityAndRemoval(t *testing.T) {
	mc := newTestMachine(t, Ready)
	var seen []int
	ids := make([]CallbackID, 0, 4)
	for i := 0; i < 4; i++ {
		i := i
		id, err := mc.RegisterCallback(func(Event) { seen = append(seen, i) })
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err := mc.RegisterCallback(func(Event) {})
	assert.True(t, errors.Is(err, api.ErrCapacityExceeded))

	require.NoError(t, mc.UnregisterCallback(ids[1]))
	assert.True(t, errors.Is(mc.UnregisterCallback(ids[1]), api.ErrNotFound))

	mc.Transition(Running)
	assert.Equal(t, []int{0, 2, 3}, seen)

	_, err = mc.RegisterCallback(nil)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
}

func TestTransitionTableCapacity(t *testing.T) {
	mc := newTestMachine(t, Ready)
	for to := Running; to < Running+4; to++ {
		require.NoError(t, mc.AddTransition(Rule{From: Ready, To: to}))
	}
	// replacing an existing pair does not consume a slot
	require.NoError(t, mc.AddTransition(Rule{From: Ready, To: Running}))
	err := mc.AddTransition(Rule{From: Ready, To: Error})
	assert.True(t, errors.Is(err, api.ErrCapacityExceeded))

	mc.ClearTransitions()
	assert.NoError(t, mc.AddTransition(Rule{From: Ready, To: Error}))
}

func TestStatisticsReset(t *testing.T) {
	mc := newTestMachine(t, Ready)
	mc.Transition(Running)
	time.Sleep(2 * time.Millisecond)
	mc.Transition(Paused)
	assert.GreaterOrEqual(t, mc.TotalStateDuration(Running), 2*time.Millisecond)

	mc.ResetStatistics()
	assert.Zero(t, mc.TransitionCount())
	assert.Zero(t, mc.StateCount(Running))
	assert.Zero(t, mc.TotalStateDuration(Running))
	assert.Equal(t, Paused, mc.State())
}

func TestConcurrentTransitions(t *testing.T) {
	mc := newTestMachine(t, Ready)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				mc.Transition(Running)
				mc.Transition(Ready)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(1600), mc.TransitionCount())
}

func TestDump(t *testing.T) {
	mc := newTestMachine(t, Initialized)
	mc.Transition(Ready)
	var buf bytes.Buffer
	require.NoError(t, mc.Dump(&buf))
	out := buf.String()
	assert.Contains(t, out, "current: READY")
	assert.Contains(t, out, "previous: INITIALIZED")
	assert.Contains(t, out, "total_transitions: 1")
}
