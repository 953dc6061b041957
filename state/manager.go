// File: state/manager.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package state

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/geomesh/api"
)

const (
	// DefaultMaxStates bounds the state registry when no limit is given.
	DefaultMaxStates = 64
	// DefaultMaxMachines bounds the machine registry when no limit is given.
	DefaultMaxMachines = 1024
)

var standard = []Info{
	{Uninitialized, "UNINITIALIZED", "not yet initialized", FlagNone},
	{Initializing, "INITIALIZING", "initialization in progress", FlagTransient},
	{Initialized, "INITIALIZED", "initialized, not started", FlagNone},
	{Ready, "READY", "ready to run", FlagNone},
	{Running, "RUNNING", "running", FlagNone},
	{Paused, "PAUSED", "paused", FlagNone},
	{Stopping, "STOPPING", "shutdown in progress", FlagTransient},
	{Stopped, "STOPPED", "stopped", FlagNone},
	{Error, "ERROR", "failed", FlagCritical},
	{Terminated, "TERMINATED", "terminated", FlagTerminal},
}

// Manager owns a bounded state registry and the machines created from it.
type Manager struct {
	mu          sync.RWMutex
	states      map[State]Info
	order       []State
	machines    map[uint64]*Machine
	maxStates   int
	maxMachines int

	transitions atomic.Uint64
	failed      atomic.Uint64
}

// ManagerStats is a snapshot of manager-wide counters.
type ManagerStats struct {
	States            int    `yaml:"states"`
	MaxStates         int    `yaml:"max_states"`
	Machines          int    `yaml:"machines"`
	MaxMachines       int    `yaml:"max_machines"`
	TotalTransitions  uint64 `yaml:"total_transitions"`
	FailedTransitions uint64 `yaml:"failed_transitions"`
}

// NewManager creates a manager pre-populated with the standard lifecycle
// states. Zero limits select the defaults.
func NewManager(maxMachines, maxStates int) (*Manager, error) {
	if maxMachines < 0 || maxStates < 0 {
		return nil, api.Invalid("state: negative registry limit")
	}
	if maxMachines == 0 {
		maxMachines = DefaultMaxMachines
	}
	if maxStates == 0 {
		maxStates = DefaultMaxStates
	}
	if maxStates < len(standard) {
		return nil, api.Invalid("state: registry smaller than standard vocabulary").
			WithContext("max_states", maxStates)
	}
	m := &Manager{
		states:      make(map[State]Info, maxStates),
		order:       make([]State, 0, maxStates),
		machines:    make(map[uint64]*Machine),
		maxStates:   maxStates,
		maxMachines: maxMachines,
	}
	for _, info := range standard {
		if err := m.RegisterState(info.State, info.Name, info.Description, info.Flags); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RegisterState adds a state. Duplicates and registrations beyond the
// registry capacity fail without side effects.
func (m *Manager) RegisterState(s State, name, description string, flags Flags) error {
	if name == "" {
		return api.Invalid("state: empty state name")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[s]; ok {
		return api.NewError(api.ErrCodeAlreadyExists, "state: already registered").WithContext("state", s)
	}
	if len(m.order) >= m.maxStates {
		return api.Full("state: registry full").WithContext("max_states", m.maxStates)
	}
	m.states[s] = Info{State: s, Name: name, Description: description, Flags: flags}
	m.order = append(m.order, s)
	return nil
}

// Info returns the registration of s.
func (m *Manager) Info(s State) (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.states[s]
	return info, ok
}

// States lists registered states in registration order.
func (m *Manager) States() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.order))
	for _, s := range m.order {
		out = append(out, m.states[s])
	}
	return out
}

func (m *Manager) flags(s State) (Flags, bool) {
	m.mu.RLock()
	info, ok := m.states[s]
	m.mu.RUnlock()
	return info.Flags, ok
}

// CreateMachine allocates a machine with bounded rule and callback tables.
func (m *Manager) CreateMachine(id uint64, initial State, maxTransitions, maxCallbacks int) (*Machine, error) {
	if maxTransitions < 0 || maxCallbacks < 0 {
		return nil, api.Invalid("state: negative machine limit")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[initial]; !ok {
		return nil, api.Invalid("state: unregistered initial state").WithContext("state", initial)
	}
	if _, ok := m.machines[id]; ok {
		return nil, api.NewError(api.ErrCodeAlreadyExists, "state: machine exists").WithContext("id", id)
	}
	if len(m.machines) >= m.maxMachines {
		return nil, api.Full("state: machine registry full").WithContext("max_machines", m.maxMachines)
	}
	mc := newMachine(m, id, initial, maxTransitions, maxCallbacks)
	m.machines[id] = mc
	return mc, nil
}

// DestroyMachine removes a machine from the registry.
func (m *Manager) DestroyMachine(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.machines[id]; !ok {
		return api.NewError(api.ErrCodeNotFound, "state: no such machine").WithContext("id", id)
	}
	delete(m.machines, id)
	return nil
}

// Machine returns a registered machine.
func (m *Manager) Machine(id uint64) (*Machine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mc, ok := m.machines[id]
	return mc, ok
}

// Stats returns a snapshot of manager counters.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ManagerStats{
		States:            len(m.order),
		MaxStates:         m.maxStates,
		Machines:          len(m.machines),
		MaxMachines:       m.maxMachines,
		TotalTransitions:  m.transitions.Load(),
		FailedTransitions: m.failed.Load(),
	}
}
