package common

import (
	"errors"
	"strings"
	"sync"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// PauseSet is an in-memory PauseView toggled by operators.
type PauseSet struct {
	mu      sync.RWMutex
	modules map[string]bool
}

// NewPauseSet returns a pause set with the provided modules paused.
func NewPauseSet(paused ...string) *PauseSet {
	set := &PauseSet{modules: make(map[string]bool)}
	for _, module := range paused {
		set.Set(module, true)
	}
	return set
}

func (s *PauseSet) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modules[normalizeModule(module)]
}

// Set pauses or resumes the named module.
func (s *PauseSet) Set(module string, paused bool) {
	if s == nil {
		return
	}
	key := normalizeModule(module)
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if paused {
		s.modules[key] = true
		return
	}
	delete(s.modules, key)
}

func normalizeModule(module string) string {
	return strings.ToLower(strings.TrimSpace(module))
}
