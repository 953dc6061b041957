// File: shm/enhanced_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package shm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/geomesh/api"
)

func TestTriggerInvalidation(t *testing.T) {
	e, err := NewEnhanced(64, LockedWrite, 5)
	require.NoError(t, err)

	type call struct {
		data     any
		id       uint64
		old, new uint64
	}
	var calls []call
	e.SetCallback(func(data any, id, oldV, newV uint64) {
		calls = append(calls, call{data, id, oldV, newV})
	}, "user")

	// without an explicit trigger nothing is reported
	require.NoError(t, e.Update(func(b []byte) { b[0] = 1 }))
	assert.Empty(t, calls)

	e.TriggerInvalidation(0, 1)
	require.Len(t, calls, 1)
	assert.Equal(t, call{"user", 5, 0, 1}, calls[0])
	assert.Equal(t, uint64(1), e.ExtendedStats().Invalidations)
	assert.Empty(t, e.History())
}

func TestHistoryIsCircular(t *testing.T) {
	e, err := NewEnhanced(16, LockedWrite, 1)
	require.NoError(t, err)
	require.NoError(t, e.EnableHistory(3))
	for i := 0; i < 5; i++ {
		_, tok, err := e.Write()
		require.NoError(t, err)
		require.NoError(t, e.Commit(tok))
	}
	h := e.History()
	require.Len(t, h, 3)
	assert.Equal(t, []uint64{3, 4, 5}, []uint64{h[0].Version, h[1].Version, h[2].Version})
	assert.Equal(t, 16, h[0].Size)

	st := e.ExtendedStats()
	assert.Equal(t, 3, st.HistorySize)
	assert.Equal(t, 3, st.HistoryCap)
	assert.Equal(t, uint64(5), st.Invalidations)
	assert.Equal(t, uint64(5), st.Version)

	assert.True(t, errors.Is(e.EnableHistory(0), api.ErrInvalidArgument))
}

func TestCallbackOrderAndRemoval(t *testing.T) {
	e, err := NewEnhanced(16, CopyOnWrite, 2)
	require.NoError(t, err)
	var order []int
	h1, err := e.AddCallback(func(any, uint64, uint64, uint64) { order = append(order, 1) }, nil)
	require.NoError(t, err)
	_, err = e.AddCallback(func(any, uint64, uint64, uint64) { order = append(order, 2) }, nil)
	require.NoError(t, err)
	_, err = e.AddCallback(func(any, uint64, uint64, uint64) { order = append(order, 3) }, nil)
	require.NoError(t, err)

	require.NoError(t, e.RemoveCallback(h1))
	assert.True(t, errors.Is(e.RemoveCallback(h1), api.ErrNotFound))
	e.TriggerInvalidation(0, 1)
	assert.Equal(t, []int{2, 3}, order)
	assert.Equal(t, 2, e.ExtendedStats().Callbacks)

	e.SetCallback(nil, nil)
	assert.Zero(t, e.ExtendedStats().Callbacks)
	_, err = e.AddCallback(nil, nil)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
}
