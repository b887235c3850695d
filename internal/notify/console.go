package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/pagepulse/pagepulse/internal/record"
)

// ConsoleRenderer is the in-app renderer used by the demo CLI: it prints
// notifications to a writer and tracks which ids are currently on screen.
type ConsoleRenderer struct {
	mu     sync.Mutex
	w      io.Writer
	active map[string]bool
}

// NewConsoleRenderer creates a renderer writing to w.
func NewConsoleRenderer(w io.Writer) *ConsoleRenderer {
	return &ConsoleRenderer{w: w, active: make(map[string]bool)}
}

// Render prints the notification and marks it active.
func (r *ConsoleRenderer) Render(n record.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[n.ID] = true
	_, err := fmt.Fprintf(r.w, "[%s] %s: %s\n", n.Kind, n.Title, n.Body)
	return err
}

// Remove marks the notification as no longer on screen.
func (r *ConsoleRenderer) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, id)
	return nil
}

// Active reports whether the id is currently rendered.
func (r *ConsoleRenderer) Active(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[id]
}

// ActiveCount reports how many notifications are on screen.
func (r *ConsoleRenderer) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
