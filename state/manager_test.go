// File: state/manager_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/geomesh/api"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(4, 16)
	require.NoError(t, err)
	return m
}

func TestNewManagerRegistersStandardStates(t *testing.T) {
	m := newTestManager(t)
	states := m.States()
	require.Len(t, states, 10)
	assert.Equal(t, Uninitialized, states[0].State)
	assert.Equal(t, Terminated, states[9].State)

	info, ok := m.Info(Terminated)
	require.True(t, ok)
	assert.Equal(t, FlagTerminal, info.Flags)
	info, _ = m.Info(Initializing)
	assert.Equal(t, FlagTransient, info.Flags)
	info, _ = m.Info(Error)
	assert.Equal(t, FlagCritical, info.Flags)
}

func TestNewManagerRejectsTinyRegistry(t *testing.T) {
	_, err := NewManager(1, 5)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
}

func TestRegisterState(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.RegisterState(Idle, "IDLE", "idle", FlagNone))

	err := m.RegisterState(Idle, "IDLE", "again", FlagNone)
	assert.True(t, errors.Is(err, api.ErrAlreadyExists))

	for s := State(200); s < 205; s++ {
		require.NoError(t, m.RegisterState(s, s.String(), "", FlagNone))
	}
	before := m.Stats().States
	err = m.RegisterState(State(300), "X", "", FlagNone)
	assert.True(t, errors.Is(err, api.ErrCapacityExceeded))
	assert.Equal(t, before, m.Stats().States)
	assert.Equal(t, 16, before)
}

func TestCreateMachineCapacity(t *testing.T) {
	m := newTestManager(t)
	for id := uint64(0); id < 4; id++ {
		_, err := m.CreateMachine(id, Initialized, 4, 4)
		require.NoError(t, err)
	}
	_, err := m.CreateMachine(9, Initialized, 4, 4)
	assert.True(t, errors.Is(err, api.ErrCapacityExceeded))

	_, err = m.CreateMachine(1, Initialized, 4, 4)
	assert.True(t, errors.Is(err, api.ErrAlreadyExists))

	require.NoError(t, m.DestroyMachine(2))
	_, ok := m.Machine(2)
	assert.False(t, ok)
	_, err = m.CreateMachine(9, Initialized, 4, 4)
	assert.NoError(t, err)

	assert.True(t, errors.Is(m.DestroyMachine(42), api.ErrNotFound))
}

func TestCreateMachineValidation(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateMachine(0, State(999), 1, 1)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	_, err = m.CreateMachine(0, Ready, -1, 1)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	assert.Zero(t, m.Stats().Machines)
}
