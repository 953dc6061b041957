// File: shm/region_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package shm

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

func TestLockedWriteScenario(t *testing.T) {
	r, err := NewRegion(1024, LockedWrite)
	require.NoError(t, err)
	require.Equal(t, uint64(0), r.Version())

	buf, tok, err := r.Write()
	require.NoError(t, err)
	for i := range buf {
		buf[i] = 0xAB
	}
	require.NoError(t, r.ReleaseWrite(tok))
	assert.Equal(t, uint64(1), r.Version())

	got := r.Read()
	assert.Equal(t, bytes.Repeat([]byte{0xAB}, 1024), got)
	r.ReleaseRead()

	require.NoError(t, r.Resize(2048))
	assert.Equal(t, LockedWrite, r.Mode())
	assert.Equal(t, 2048, r.Size())
	assert.Equal(t, uint64(1), r.Version())
	grown := r.Read()
	assert.Equal(t, byte(0xAB), grown[1023])
	assert.Equal(t, byte(0), grown[1024])
	r.ReleaseRead()
	assert.True(t, r.Validate())
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	r, err := NewRegion(16, ReadOnly)
	require.NoError(t, err)
	_, _, err = r.Write()
	assert.True(t, errors.Is(err, api.ErrReadOnly))
	assert.NotNil(t, r.Read())
	r.ReleaseRead()
	assert.Zero(t, r.Version())
}

func TestCopyOnWriteCountsCopies(t *testing.T) {
	r, err := NewRegion(8, CopyOnWrite)
	require.NoError(t, err)
	require.NoError(t, r.WriteAt([]byte{1, 2, 3}, 2))
	p := make([]byte, 3)
	require.NoError(t, r.ReadAt(p, 2))
	assert.Equal(t, []byte{1, 2, 3}, p)

	st := r.Stats()
	assert.Equal(t, uint64(1), st.Copies)
	assert.Equal(t, uint64(1), st.Writes)
	assert.Equal(t, "copy-on-write", st.Mode)
}

func TestIsModified(t *testing.T) {
	r, err := NewRegion(32, LockedWrite)
	require.NoError(t, err)
	v := r.Version()
	assert.False(t, r.IsModified(v))
	require.NoError(t, r.Update(func(b []byte) { b[0] = 1 }))
	assert.True(t, r.IsModified(v))
	assert.Equal(t, v+1, r.Version())
}

func TestRegionValidation(t *testing.T) {
	_, err := NewRegion(0, LockedWrite)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	_, err = NewRegion(8, Mode(9))
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))

	r, err := NewRegion(8, LockedWrite)
	require.NoError(t, err)
	assert.True(t, errors.Is(r.WriteAt([]byte{1, 2}, 7), api.ErrInvalidArgument))
	assert.Zero(t, r.Version())
	assert.True(t, errors.Is(r.ReleaseWrite(1), api.ErrInvalidArgument))
	assert.True(t, errors.Is(r.Resize(-1), api.ErrInvalidArgument))
}

func TestReaderAccounting(t *testing.T) {
	r, err := NewRegion(8, LockedWrite)
	require.NoError(t, err)
	r.Read()
	r.Read()
	assert.Equal(t, int64(2), r.Stats().Readers)
	r.ReleaseRead()
	r.ReleaseRead()
	r.ReleaseRead()
	assert.Equal(t, int64(0), r.Stats().Readers)
	assert.Equal(t, uint64(2), r.Stats().Reads)
}

func TestConcurrentWritersSerialize(t *testing.T) {
	r, err := NewRegion(8, LockedWrite)
	require.NoError(t, err)
	const writers, rounds = 8, 250
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				assert.NoError(t, r.Update(func(b []byte) { b[0]++ }))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(writers*rounds), r.Version())
	assert.Equal(t, byte(writers*rounds%256), r.Read()[0])
	r.ReleaseRead()
}

func TestClose(t *testing.T) {
	r, err := NewRegion(8, LockedWrite)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Nil(t, r.Read())
	_, _, err = r.Write()
	assert.True(t, errors.Is(err, api.ErrClosed))
	assert.True(t, errors.Is(r.Close(), api.ErrClosed))
	assert.False(t, r.Validate())
}

func TestReleaseWriteNeedsActiveToken(t *testing.T) {
	r, err := NewRegion(8, LockedWrite)
	require.NoError(t, err)

	_, first, err := r.Write()
	require.NoError(t, err)
	require.NoError(t, r.ReleaseWrite(first))
	assert.True(t, errors.Is(r.ReleaseWrite(first), api.ErrInvalidArgument), "token is single use")

	_, second, err := r.Write()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.True(t, errors.Is(r.ReleaseWrite(first), api.ErrInvalidArgument), "stale token cannot end a newer write")
	assert.Equal(t, uint64(1), r.Version())

	acquired := make(chan struct{})
	go func() {
		_, tok, err := r.Write()
		if err == nil {
			_ = r.ReleaseWrite(tok)
		}
		close(acquired)
	}()
	select {
	case <-acquired:
		t.Fatal("second writer entered while the first write is active")
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, r.ReleaseWrite(second))
	<-acquired
	assert.Equal(t, uint64(3), r.Version())
}

func TestWriteAtRacingShrink(t *testing.T) {
	r, err := NewRegion(64, LockedWrite)
	require.NoError(t, err)
	payload := make([]byte, 32)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			size := 64
			if i%2 == 0 {
				size = 16
			}
			_ = r.Resize(size)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			err := r.WriteAt(payload, 24)
			if err != nil {
				assert.True(t, errors.Is(err, api.ErrInvalidArgument))
			}
		}
	}()
	wg.Wait()

	require.NoError(t, r.Resize(16))
	before := r.Version()
	assert.True(t, errors.Is(r.WriteAt(payload, 0), api.ErrInvalidArgument))
	assert.Equal(t, before, r.Version())
	require.NoError(t, r.WriteAt(payload[:16], 0))
	assert.Equal(t, before+1, r.Version())
}
