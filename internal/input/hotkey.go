// Package input registers global keyboard shortcuts.
package input

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// StopCombo ends the active recording.
const StopCombo = "ctrl+shift+q"

var modifiers = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"shift":   "shift",
	"alt":     "alt",
	"cmd":     "cmd",
	"win":     "cmd",
}

// ParseCombo turns "ctrl+shift+q" into the key list the hook expects: the
// key first, then its modifiers in the order given.
func ParseCombo(combo string) ([]string, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(combo)), "+")

	var key string
	var mods []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("invalid hotkey %q", combo)
		}
		if m, ok := modifiers[p]; ok {
			mods = append(mods, m)
			continue
		}
		if key != "" {
			return nil, fmt.Errorf("hotkey %q has more than one key", combo)
		}
		key = p
	}
	if key == "" {
		return nil, fmt.Errorf("hotkey %q has no key", combo)
	}
	return append([]string{key}, mods...), nil
}

type HotkeyManager struct {
	mu       sync.Mutex
	bindings map[string]func()
	running  bool
	done     chan struct{}
}

func NewHotkeyManager() *HotkeyManager {
	return &HotkeyManager{bindings: make(map[string]func())}
}

// Register binds combo to callback. It must be called before Start.
func (h *HotkeyManager) Register(combo string, callback func()) error {
	if _, err := ParseCombo(combo); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bindings[combo] = callback
	return nil
}

// Start installs the global keyboard hook and dispatches bound combos on
// their own goroutines.
func (h *HotkeyManager) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}

	for combo, cb := range h.bindings {
		keys, _ := ParseCombo(combo)
		cb := cb
		hook.Register(hook.KeyDown, keys, func(hook.Event) {
			go cb()
		})
		slog.Info("registered global hotkey", "keys", combo)
	}

	events := hook.Start()
	h.done = make(chan struct{})
	h.running = true
	go func(done chan struct{}) {
		<-hook.Process(events)
		close(done)
	}(h.done)
}

// Stop removes the hook and waits for the dispatcher to exit.
func (h *HotkeyManager) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	done := h.done
	h.mu.Unlock()

	hook.End()
	<-done
}
