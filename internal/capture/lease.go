package capture

import (
	"fmt"
	"sync"
)

// lease tracks the single live acquisition of a device.
type lease struct {
	mu       sync.Mutex
	held     bool
	acquired int
	released int
}

func (l *lease) take(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return fmt.Errorf("%s already in use: %w", name, ErrDeviceUnavailable)
	}
	l.held = true
	l.acquired++
	return nil
}

func (l *lease) give() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.released++
}

// Stats reports how often a device was acquired and released and whether
// it is held right now.
type Stats struct {
	Acquired int  `json:"acquired"`
	Released int  `json:"released"`
	Held     bool `json:"held"`
}

func (l *lease) stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{Acquired: l.acquired, Released: l.released, Held: l.held}
}
