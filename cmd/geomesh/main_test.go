// File: cmd/geomesh/main_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/momentics/geomesh/hierarchy"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "geomesh dev\n", out)
}

func TestFrames(t *testing.T) {
	out, _, err := execute(t, "frames")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 9)
	assert.Contains(t, lines[0], "SOLID")
	assert.Contains(t, lines[1], "tetrahedron")
	assert.Contains(t, lines[2], "cube")
	assert.Contains(t, lines[2], "octahedron")
	assert.Contains(t, lines[5], "icosahedron")
	assert.Contains(t, lines[5], "dodecahedron")
}

func TestRunYAML(t *testing.T) {
	out, _, err := execute(t, "run", "--threads", "5", "--items", "50", "--max-size", "10")
	require.NoError(t, err)

	var st hierarchy.PoolStats
	require.NoError(t, yaml.Unmarshal([]byte(out), &st))
	assert.Equal(t, 5, st.Threads)
	assert.Equal(t, 13, st.MaxThreads)
	assert.Equal(t, 2, st.Levels)
	assert.Equal(t, uint64(50), st.TotalWorkItems)
}

func TestRunJSONWithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geomesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_threads: 20\nlog:\n  level: error\n"), 0o644))

	out, _, err := execute(t, "run", "--config", path, "--items", "30", "--max-size", "5", "--json")
	require.NoError(t, err)

	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.EqualValues(t, 20, st["threads"])
	assert.EqualValues(t, 30, st["total_work_items"])
}

func TestRunMetricsAndProbes(t *testing.T) {
	out, _, err := execute(t, "run", "--threads", "3", "--items", "6", "--max-size", "2", "--metrics", "--probes")
	require.NoError(t, err)
	assert.Contains(t, out, "geomesh_pool_threads 3")
	assert.Contains(t, out, "geomesh_thread_work_completed_total{role=worker,thread=1}")
	assert.Contains(t, out, "platform.cpus:")
}

func TestRunNeedsWorkers(t *testing.T) {
	_, _, err := execute(t, "run", "--threads", "1", "--items", "4")
	assert.Error(t, err)
}

func TestRunMissingConfig(t *testing.T) {
	_, _, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
