// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, hot reload, metrics and debug introspection for geomesh.
//
// Provides:
//   - viper-backed Config loading with GEOMESH_* environment overrides
//   - a concurrent ConfigStore with reload listeners
//   - a prometheus collector exporting pool, thread and boundary counters
//   - named debug probes with a YAML dump
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
