// File: control/controller.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Controller implements api.Control on top of ConfigStore and DebugProbes.

package control

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/momentics/geomesh/api"
)

// Controller bundles the live configuration and debug probes of a process.
type Controller struct {
	config *ConfigStore
	debug  *DebugProbes
}

// NewController creates a controller seeded with cfg and the platform probes.
func NewController(cfg Config) *Controller {
	c := &Controller{
		config: NewConfigStore(),
		debug:  NewDebugProbes(),
	}
	c.config.SetConfig(cfg.Map())
	RegisterPlatformProbes(c.debug)
	return c
}

func (c *Controller) GetConfig() map[string]any {
	return c.config.GetSnapshot()
}

func (c *Controller) SetConfig(cfg map[string]any) error {
	if len(cfg) == 0 {
		return api.Invalid("control: empty config update")
	}
	c.config.SetConfig(cfg)
	return nil
}

func (c *Controller) OnReload(fn func()) {
	c.config.OnReload(fn)
}

func (c *Controller) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}

// RegisterStats exposes src as a debug probe.
func (c *Controller) RegisterStats(name string, src api.StatsSource) {
	c.debug.RegisterProbe(name, func() any { return src.StatsMap() })
}

// Probes returns the probe registry.
func (c *Controller) Probes() *DebugProbes { return c.debug }

// Watch re-reads v's config file on every change and pushes the decoded
// values into the store. Decode failures are reported to onError and leave
// the store untouched.
func (c *Controller) Watch(v *viper.Viper, onError func(error)) {
	v.OnConfigChange(func(fsnotify.Event) {
		c.reload(v, onError)
	})
	v.WatchConfig()
}

func (c *Controller) reload(v *viper.Viper, onError func(error)) {
	cfg, err := Decode(v)
	if err != nil {
		if onError != nil {
			onError(err)
		}
		return
	}
	c.config.SetConfig(cfg.Map())
}

var _ api.Control = (*Controller)(nil)
