// File: state/machine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package state

import (
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/momentics/geomesh/api"
)

type callbackEntry struct {
	id CallbackID
	fn Callback
}

// Machine is a finite state machine owned by a Manager. It is safe for
// concurrent use; callbacks run after the machine lock is released.
type Machine struct {
	id  uint64
	mgr *Manager

	mu           sync.Mutex
	current      State
	previous     State
	entered      time.Time
	ctx          any
	rules        []Rule
	maxRules     int
	callbacks    []callbackEntry
	maxCallbacks int
	nextID       CallbackID
	durations    map[State]time.Duration
	visits       map[State]uint64
	total        uint64
}

func newMachine(mgr *Manager, id uint64, initial State, maxRules, maxCallbacks int) *Machine {
	return &Machine{
		id:           id,
		mgr:          mgr,
		current:      initial,
		previous:     initial,
		entered:      time.Now(),
		rules:        make([]Rule, 0, maxRules),
		maxRules:     maxRules,
		callbacks:    make([]callbackEntry, 0, maxCallbacks),
		maxCallbacks: maxCallbacks,
		durations:    make(map[State]time.Duration),
		visits:       make(map[State]uint64),
	}
}

// ID returns the machine identifier.
func (m *Machine) ID() uint64 { return m.id }

// SetContext attaches the value handed to validators, actions and events.
func (m *Machine) SetContext(ctx any) {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Previous returns the state held before the last transition.
func (m *Machine) Previous() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous
}

// AddTransition registers an explicit rule. A rule for an existing
// (from, to) pair is replaced.
func (m *Machine) AddTransition(r Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].From == r.From && m.rules[i].To == r.To {
			m.rules[i] = r
			return nil
		}
	}
	if len(m.rules) >= m.maxRules {
		return api.Full("state: transition table full").WithContext("machine", m.id)
	}
	m.rules = append(m.rules, r)
	return nil
}

// RemoveTransition drops the rule for (from, to).
func (m *Machine) RemoveTransition(from, to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].From == from && m.rules[i].To == to {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return api.NewError(api.ErrCodeNotFound, "state: no such transition").
		WithContext("from", from).WithContext("to", to)
}

// ClearTransitions drops every rule.
func (m *Machine) ClearTransitions() {
	m.mu.Lock()
	m.rules = m.rules[:0]
	m.mu.Unlock()
}

// RegisterCallback appends a change callback and returns its handle.
func (m *Machine) RegisterCallback(fn Callback) (CallbackID, error) {
	if fn == nil {
		return 0, api.Invalid("state: nil callback")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.callbacks) >= m.maxCallbacks {
		return 0, api.Full("state: callback table full").WithContext("machine", m.id)
	}
	m.nextID++
	m.callbacks = append(m.callbacks, callbackEntry{id: m.nextID, fn: fn})
	return m.nextID, nil
}

// UnregisterCallback removes a callback by handle, keeping the order of the
// remaining ones.
func (m *Machine) UnregisterCallback(id CallbackID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cb := range m.callbacks {
		if cb.id == id {
			m.callbacks = append(m.callbacks[:i], m.callbacks[i+1:]...)
			return nil
		}
	}
	return api.NewError(api.ErrCodeNotFound, "state: no such callback").WithContext("callback", id)
}

// CanTransition reports whether a transition to next is allowed from the
// current state.
func (m *Machine) CanTransition(next State) bool {
	res, _ := m.evaluate(next)
	return res == ResultSuccess
}

// evaluate checks next against the current state. The rule validator runs
// without m.mu so it may inspect the machine; the returned state is the one
// the verdict applies to.
func (m *Machine) evaluate(next State) (Result, State) {
	m.mu.Lock()
	from := m.current
	res, validate := m.check(next)
	ctx := m.ctx
	m.mu.Unlock()
	if res == ResultSuccess && validate != nil && !validate(ctx) {
		res = ResultInvalid
	}
	return res, from
}

// check must be called with m.mu held. It returns the validator still to
// run for the pair, if any.
func (m *Machine) check(next State) (Result, Validator) {
	if _, ok := m.mgr.flags(next); !ok {
		return ResultInvalid, nil
	}
	if cur, _ := m.mgr.flags(m.current); cur&FlagTerminal != 0 && next != m.current {
		return ResultBlocked, nil
	}
	if r := m.rule(m.current, next); r != nil {
		return ResultSuccess, r.Validate
	}
	return ResultSuccess, nil
}

func (m *Machine) rule(from, to State) *Rule {
	for i := range m.rules {
		if m.rules[i].From == from && m.rules[i].To == to {
			return &m.rules[i]
		}
	}
	return nil
}

// Transition moves the machine to next. On success the rule action for the
// pair runs first, then every change callback in registration order.
// When another transition lands while the validator runs, the check is
// repeated against the new state.
func (m *Machine) Transition(next State) Result {
	for {
		res, from := m.evaluate(next)
		if res != ResultSuccess {
			m.mgr.failed.Add(1)
			return res
		}
		m.mu.Lock()
		if m.current == from {
			break
		}
		m.mu.Unlock()
	}
	old, now := m.apply(next)
	var action Action
	if r := m.rule(old, next); r != nil {
		action = r.OnEnter
	}
	cbs := make([]Callback, len(m.callbacks))
	for i, cb := range m.callbacks {
		cbs[i] = cb.fn
	}
	ctx := m.ctx
	m.mu.Unlock()

	if action != nil {
		action(ctx)
	}
	ev := Event{EntityID: m.id, OldState: old, NewState: next, Timestamp: now, Context: ctx}
	for _, fn := range cbs {
		fn(ev)
	}
	return ResultSuccess
}

// ForceTransition performs the bookkeeping of a transition without
// validation or callbacks. Reserved for administrative recovery paths.
func (m *Machine) ForceTransition(next State) {
	m.mu.Lock()
	m.apply(next)
	m.mu.Unlock()
}

// apply must be called with m.mu held.
func (m *Machine) apply(next State) (State, time.Time) {
	now := time.Now()
	old := m.current
	m.durations[old] += now.Sub(m.entered)
	m.previous = old
	m.current = next
	m.entered = now
	m.total++
	m.visits[next]++
	m.mgr.transitions.Add(1)
	return old, now
}

// TimeInState returns how long the machine has been in its current state.
func (m *Machine) TimeInState() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.entered)
}

// TotalStateDuration returns the time spent in s, including the ongoing
// stay when s is current.
func (m *Machine) TotalStateDuration(s State) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.durations[s]
	if s == m.current {
		d += time.Since(m.entered)
	}
	return d
}

// StateCount returns how many times s has been entered.
func (m *Machine) StateCount(s State) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visits[s]
}

// TransitionCount returns the number of completed transitions.
func (m *Machine) TransitionCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// ResetStatistics clears durations, visit counts and the transition counter.
func (m *Machine) ResetStatistics() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.durations)
	clear(m.visits)
	m.total = 0
	m.entered = time.Now()
}

// MachineStats is a diagnostic snapshot of a machine.
type MachineStats struct {
	ID               uint64            `yaml:"id"`
	Current          string            `yaml:"current"`
	Previous         string            `yaml:"previous"`
	TimeInState      time.Duration     `yaml:"time_in_state"`
	TotalTransitions uint64            `yaml:"total_transitions"`
	Rules            int               `yaml:"rules"`
	Callbacks        int               `yaml:"callbacks"`
	Visits           map[string]uint64 `yaml:"visits,omitempty"`
}

// Stats returns a snapshot of the machine.
func (m *Machine) Stats() MachineStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := MachineStats{
		ID:               m.id,
		Current:          m.current.String(),
		Previous:         m.previous.String(),
		TimeInState:      time.Since(m.entered),
		TotalTransitions: m.total,
		Rules:            len(m.rules),
		Callbacks:        len(m.callbacks),
		Visits:           make(map[string]uint64, len(m.visits)),
	}
	for s, n := range m.visits {
		st.Visits[s.String()] = n
	}
	return st
}

// Dump writes a YAML rendering of the machine statistics.
func (m *Machine) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m.Stats()); err != nil {
		return fmt.Errorf("state: dump machine %d: %w", m.id, err)
	}
	return enc.Close()
}
