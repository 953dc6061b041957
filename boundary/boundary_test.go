// File: boundary/boundary_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package boundary

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/geomesh/api"
)

func newTestBoundary(t *testing.T, size int) *Boundary {
	t.Helper()
	b, err := New(1, 2, size)
	require.NoError(t, err)
	return b
}

func TestNewValidation(t *testing.T) {
	for _, c := range []struct{ a, b, size int }{{-1, 2, 0}, {1, -2, 0}, {3, 3, 0}, {1, 2, -5}} {
		_, err := New(c.a, c.b, c.size)
		assert.True(t, errors.Is(err, api.ErrInvalidArgument), "case %+v", c)
	}
	b := newTestBoundary(t, 0)
	assert.Equal(t, DefaultSize, b.Size())
	assert.True(t, b.Valid())
}

func TestWriteThenReadFromOtherSide(t *testing.T) {
	b := newTestBoundary(t, 128)
	msg := []byte("kissing spheres")
	n, err := b.Write(1, 10, msg)
	require.NoError(t, err)
	assert.Equal(t, len(msg), n)

	got := make([]byte, len(msg))
	n, err = b.Read(2, 10, got)
	require.NoError(t, err)
	assert.Equal(t, len(msg), n)
	assert.Equal(t, msg, got)

	st := b.Stats()
	assert.Equal(t, uint64(1), st.Version)
	assert.Equal(t, uint64(1), st.WritesA)
	assert.Equal(t, uint64(1), st.ReadsB)
	assert.Zero(t, st.ReadsA)
	assert.Equal(t, uint64(2), st.Accesses)
}

func TestRejectedAccessHasNoEffect(t *testing.T) {
	b := newTestBoundary(t, 16)
	_, err := b.Write(1, 10, make([]byte, 7))
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	_, err = b.Write(3, 0, []byte{1})
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	_, err = b.Read(3, 0, make([]byte, 1))
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	_, err = b.Read(1, -1, make([]byte, 1))
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))

	assert.Zero(t, b.Version())
	assert.Equal(t, Stats{SphereA: 1, SphereB: 2, Size: 16}, b.Stats())
	got := make([]byte, 16)
	_, err = b.Read(1, 0, got)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 16), got)
}

func TestVersionCountsWritesOnly(t *testing.T) {
	b := newTestBoundary(t, 64)
	for i := 0; i < 5; i++ {
		_, err := b.Write(1+i%2, i, []byte{byte(i)})
		require.NoError(t, err)
		_, err = b.Read(2, 0, make([]byte, 8))
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(5), b.Version())
}

func TestAtomicExchange(t *testing.T) {
	b := newTestBoundary(t, 32)
	old, err := b.AtomicExchange(1, 8, 0xDEADBEEFCAFE, 8)
	require.NoError(t, err)
	assert.Zero(t, old)
	old, err = b.AtomicExchange(2, 8, 7, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xDEADBEEFCAFE), old)

	old, err = b.AtomicExchange(1, 4, 0xFFFFFFFF1, 4)
	require.NoError(t, err)
	assert.Zero(t, old)
	v, err := b.AtomicLoad(2, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFFFFFFF1), v)

	assert.Equal(t, uint64(3), b.Version())
	assert.Equal(t, uint64(3), b.Stats().Invalidations)
}

func TestAtomicExchangeRejects(t *testing.T) {
	b := newTestBoundary(t, 32)
	_, err := b.AtomicExchange(1, 0, 1, 2)
	assert.True(t, errors.Is(err, api.ErrNotSupported))
	_, err = b.AtomicExchange(1, 3, 1, 4)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	_, err = b.AtomicExchange(1, 32, 1, 8)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	_, err = b.AtomicExchange(9, 0, 1, 8)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	assert.Zero(t, b.Version())
}

func TestConcurrentAtomicCounters(t *testing.T) {
	b := newTestBoundary(t, 64)
	var wg sync.WaitGroup
	const rounds = 500
	for side := 1; side <= 2; side++ {
		wg.Add(1)
		go func(side int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				_, err := b.AtomicExchange(side, 8*side, uint64(i), 8)
				assert.NoError(t, err)
				_, err = b.AtomicLoad(3-side, 8*side, 8)
				assert.NoError(t, err)
			}
		}(side)
	}
	wg.Wait()
	st := b.Stats()
	assert.Equal(t, uint64(2*rounds), st.Version)
	assert.Equal(t, uint64(rounds), st.WritesA)
	assert.Equal(t, uint64(rounds), st.WritesB)
}

func TestInvalidateAndCheckVersion(t *testing.T) {
	b := newTestBoundary(t, 8)
	v := b.Version()
	assert.True(t, b.CheckVersion(v))
	b.InvalidateCache()
	assert.False(t, b.CheckVersion(v))
	assert.True(t, b.CheckVersion(v+1))

	b.ResetStats()
	assert.Zero(t, b.Stats().Invalidations)
	assert.Equal(t, v+1, b.Version())
}

func TestDestroy(t *testing.T) {
	b := newTestBoundary(t, 8)
	require.NoError(t, b.Destroy())
	_, err := b.Write(1, 0, []byte{1})
	assert.True(t, errors.Is(err, api.ErrClosed))
	assert.False(t, b.Valid())
	assert.True(t, errors.Is(b.Destroy(), api.ErrClosed))
	assert.Equal(t, 2, b.Other(1))
	assert.Equal(t, -1, b.Other(5))
}
