// File: boundary/system_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package boundary

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/geomesh/api"
)

func TestSystemAddFind(t *testing.T) {
	s := NewSystem(2)
	b12, err := New(1, 2, 64)
	require.NoError(t, err)
	b23, err := New(3, 2, 64)
	require.NoError(t, err)

	require.NoError(t, s.Add(b12))
	require.NoError(t, s.Add(b23))
	assert.Same(t, b12, s.Find(2, 1))
	assert.Same(t, b23, s.Find(2, 3))
	assert.Nil(t, s.Find(1, 3))

	b45, err := New(4, 5, 0)
	require.NoError(t, err)
	assert.True(t, errors.Is(s.Add(b45), api.ErrCapacityExceeded))
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Validate())
}

func TestSystemRejectsDuplicatePair(t *testing.T) {
	s := NewSystem(0)
	a, _ := New(1, 2, 8)
	b, _ := New(2, 1, 8)
	require.NoError(t, s.Add(a))
	assert.True(t, errors.Is(s.Add(b), api.ErrAlreadyExists))
	assert.True(t, errors.Is(s.Add(nil), api.ErrInvalidArgument))

	require.NoError(t, s.Remove(2, 1))
	assert.True(t, errors.Is(s.Remove(2, 1), api.ErrNotFound))
	require.NoError(t, s.Add(b))
}

func TestSystemValidateAndStats(t *testing.T) {
	s := NewSystem(4)
	a, _ := New(1, 2, 16)
	b, _ := New(2, 3, 16)
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))

	_, err := a.Write(1, 0, []byte{1, 2})
	require.NoError(t, err)
	_, err = b.Read(3, 0, make([]byte, 2))
	require.NoError(t, err)
	b.InvalidateCache()

	st := s.Stats()
	assert.Equal(t, 2, st.Boundaries)
	assert.Equal(t, uint64(1), st.TotalWrites)
	assert.Equal(t, uint64(1), st.TotalReads)
	assert.Equal(t, uint64(1), st.Invalidations)

	require.NoError(t, b.Destroy())
	assert.False(t, s.Validate())
}
