//go:build linux

// File: internal/concurrency/affinity_linux_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstCPU(t *testing.T) {
	assert.Equal(t, 0, firstCPU("0-3,8-11\n"))
	assert.Equal(t, 4, firstCPU("4-7"))
	assert.Equal(t, 12, firstCPU("12,14"))
	assert.Equal(t, 0, firstCPU(""))
}

func TestCurrentCPUs(t *testing.T) {
	cpus, err := CurrentCPUs()
	require.NoError(t, err)
	assert.NotEmpty(t, cpus)
}
