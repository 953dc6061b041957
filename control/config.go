// File: control/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Configuration loading and the thread-safe store that propagates reloads.

package control

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"reflect"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/momentics/geomesh/hierarchy"
	"github.com/momentics/geomesh/internal/logging"
)

const (
	envPrefix      = "GEOMESH"
	configFileName = "geomesh"
	configFileType = "yaml"

	KeyMaxThreads       = "max_threads"
	KeySymmetryFold     = "symmetry_fold"
	KeyNumDimensions    = "num_dimensions"
	KeyNUMAAware        = "numa_aware"
	KeyBoundarySize     = "boundary_size"
	KeyHistoryCapacity  = "history_capacity"
	KeyRainbowCapacity  = "rainbow_capacity"
	KeyGlobalRegionSize = "global_region_size"
	KeyTaskCapacity     = "task_capacity"
	KeyLogLevel         = "log.level"
	KeyLogJSON          = "log.json"
)

// LogConfig selects logger verbosity and format.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// Config is the file/env configuration of a geomesh process.
type Config struct {
	MaxThreads       int       `mapstructure:"max_threads" yaml:"max_threads"`
	SymmetryFold     int       `mapstructure:"symmetry_fold" yaml:"symmetry_fold"`
	NumDimensions    int       `mapstructure:"num_dimensions" yaml:"num_dimensions"`
	NUMAAware        bool      `mapstructure:"numa_aware" yaml:"numa_aware"`
	BoundarySize     int       `mapstructure:"boundary_size" yaml:"boundary_size"`
	HistoryCapacity  int       `mapstructure:"history_capacity" yaml:"history_capacity"`
	RainbowCapacity  int       `mapstructure:"rainbow_capacity" yaml:"rainbow_capacity"`
	GlobalRegionSize int       `mapstructure:"global_region_size" yaml:"global_region_size"`
	TaskCapacity     int       `mapstructure:"task_capacity" yaml:"task_capacity"`
	Log              LogConfig `mapstructure:"log" yaml:"log"`
}

// NewViper returns a viper instance carrying every default and the
// GEOMESH_ environment binding (log.level -> GEOMESH_LOG_LEVEL).
func NewViper() *viper.Viper {
	d := hierarchy.DefaultConfig()
	v := viper.New()
	v.SetDefault(KeyMaxThreads, d.MaxThreads)
	v.SetDefault(KeySymmetryFold, d.SymmetryFold)
	v.SetDefault(KeyNumDimensions, d.NumDimensions)
	v.SetDefault(KeyNUMAAware, false)
	v.SetDefault(KeyBoundarySize, 0)
	v.SetDefault(KeyHistoryCapacity, 16)
	v.SetDefault(KeyRainbowCapacity, 0)
	v.SetDefault(KeyGlobalRegionSize, 0)
	v.SetDefault(KeyTaskCapacity, 0)
	v.SetDefault(KeyLogLevel, logging.LevelInfo.String())
	v.SetDefault(KeyLogJSON, false)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads path, or geomesh.yaml from the working directory when
// path is empty. A missing default file is not an error; a missing explicit
// file is.
func LoadConfig(path string) (Config, *viper.Viper, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, nil, fmt.Errorf("read config: %w", err)
		}
	}
	cfg, err := Decode(v)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, v, nil
}

// Decode unmarshals the current viper state.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Pool returns the mesh part of the configuration.
func (c Config) Pool() hierarchy.Config {
	return hierarchy.Config{
		MaxThreads:       c.MaxThreads,
		SymmetryFold:     c.SymmetryFold,
		NumDimensions:    c.NumDimensions,
		NUMAAware:        c.NUMAAware,
		BoundarySize:     c.BoundarySize,
		HistoryCapacity:  c.HistoryCapacity,
		RainbowCapacity:  c.RainbowCapacity,
		GlobalRegionSize: c.GlobalRegionSize,
		TaskCapacity:     c.TaskCapacity,
	}
}

// Logging returns the logger configuration writing to w.
func (c Config) Logging(w io.Writer) (logging.Config, error) {
	lvl, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return logging.Config{}, err
	}
	return logging.Config{Level: lvl, JSON: c.Log.JSON, Output: w}, nil
}

// Map flattens the configuration into dotted keys.
func (c Config) Map() map[string]any {
	return map[string]any{
		KeyMaxThreads:       c.MaxThreads,
		KeySymmetryFold:     c.SymmetryFold,
		KeyNumDimensions:    c.NumDimensions,
		KeyNUMAAware:        c.NUMAAware,
		KeyBoundarySize:     c.BoundarySize,
		KeyHistoryCapacity:  c.HistoryCapacity,
		KeyRainbowCapacity:  c.RainbowCapacity,
		KeyGlobalRegionSize: c.GlobalRegionSize,
		KeyTaskCapacity:     c.TaskCapacity,
		KeyLogLevel:         c.Log.Level,
		KeyLogJSON:          c.Log.JSON,
	}
}

// ConfigStore is a dynamic key/value map with atomic snapshot and listener support.
type ConfigStore struct {
	mu        sync.RWMutex
	config    map[string]any
	listeners []func()
}

// NewConfigStore initializes a new config store with empty data.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		config: make(map[string]any),
	}
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return maps.Clone(cs.config)
}

// Get returns one value.
func (cs *ConfigStore) Get(key string) (any, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	v, ok := cs.config[key]
	return v, ok
}

// SetConfig merges new values and notifies listeners when anything changed.
// Listeners run on the caller's goroutine after the store is unlocked.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) {
	cs.mu.Lock()
	changed := false
	for k, v := range newCfg {
		if old, ok := cs.config[k]; !ok || !reflect.DeepEqual(old, v) {
			cs.config[k] = v
			changed = true
		}
	}
	listeners := append([]func(){}, cs.listeners...)
	cs.mu.Unlock()
	if changed {
		for _, fn := range listeners {
			fn()
		}
	}
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}
