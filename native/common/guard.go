package common

import (
	"errors"
	"strings"
)

var ErrModulePaused = errors.New("module paused")

// PauseView exposes governance pause switches to the native engines.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects mutating operations against a paused module.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// PauseMap is a simple PauseView backed by an in-memory set of module names.
type PauseMap struct {
	paused map[string]bool
}

// NewPauseMap constructs a PauseView with the supplied modules paused.
func NewPauseMap(modules ...string) *PauseMap {
	m := &PauseMap{paused: make(map[string]bool, len(modules))}
	for _, name := range modules {
		m.SetPaused(name, true)
	}
	return m
}

// SetPaused toggles the pause switch for a module.
func (m *PauseMap) SetPaused(module string, paused bool) {
	if m == nil {
		return
	}
	if m.paused == nil {
		m.paused = make(map[string]bool)
	}
	m.paused[strings.ToLower(strings.TrimSpace(module))] = paused
}

// IsPaused implements PauseView.
func (m *PauseMap) IsPaused(module string) bool {
	if m == nil || m.paused == nil {
		return false
	}
	return m.paused[strings.ToLower(strings.TrimSpace(module))]
}
