// Package command holds the externally driven command state (velocity
// targets, goal coordinates) that observation components read each tick.
package command

import (
	"fmt"
	"sort"
	"sync"

	"github.com/san-kum/policyloop/internal/sim"
)

// Manager is safe for concurrent use. Writers may be UI or network
// handlers; the loop only sees their values through Snapshot.
type Manager struct {
	mu       sync.RWMutex
	defaults map[string]float64
	values   map[string]float64
	strict   bool
}

// New declares the command fields and their defaults. A manager with
// declared fields rejects writes to unknown ones.
func New(defaults map[string]float64) *Manager {
	m := &Manager{
		defaults: make(map[string]float64, len(defaults)),
		values:   make(map[string]float64, len(defaults)),
		strict:   len(defaults) > 0,
	}
	for k, v := range defaults {
		m.defaults[k] = v
		m.values[k] = v
	}
	return m
}

func (m *Manager) Set(field string, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(field, value)
}

// SetMany applies all values or none.
func (m *Manager) SetMany(values map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.strict {
		for k := range values {
			if _, ok := m.defaults[k]; !ok {
				return fmt.Errorf("unknown command field: %s", k)
			}
		}
	}
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

func (m *Manager) setLocked(field string, value float64) error {
	if m.strict {
		if _, ok := m.defaults[field]; !ok {
			return fmt.Errorf("unknown command field: %s", field)
		}
	}
	m.values[field] = value
	return nil
}

// Add shifts a field by delta, starting from its current value.
func (m *Manager) Add(field string, delta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(field, m.values[field]+delta)
}

func (m *Manager) Get(field string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[field]
	return v, ok
}

func (m *Manager) Snapshot() sim.Commands {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(sim.Commands, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Reset restores every field to its declared default and drops fields
// added to a non-strict manager.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]float64, len(m.defaults))
	for k, v := range m.defaults {
		m.values[k] = v
	}
}

func (m *Manager) Fields() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.values))
	for k := range m.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
