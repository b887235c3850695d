// Package notify implements the notification presentation controller: a
// bounded newest-first history of user-facing alerts with read/dismiss
// lifecycle, channel fan-out, and write-through persistence. Persistence
// failures are logged and swallowed — the on-screen state always wins
// over durability.
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pagepulse/pagepulse/internal/record"
	"github.com/pagepulse/pagepulse/internal/schedule"
	"github.com/pagepulse/pagepulse/internal/store"
)

// DefaultCapacity bounds the retained history when no capacity is given.
const DefaultCapacity = 50

// ShowOptions describes one alert to present.
type ShowOptions struct {
	Title      string
	Body       string
	Kind       record.Kind
	Duration   time.Duration // auto-dismiss after this; zero keeps it up
	Persistent bool          // never auto-dismiss
	Data       map[string]any
	Actions    []record.Action
}

// Statistics summarizes the retained history.
type Statistics struct {
	Total     int                 `json:"total"`
	Unread    int                 `json:"unread"`
	Dismissed int                 `json:"dismissed"`
	ByKind    map[record.Kind]int `json:"by_kind"`
}

// persistedState is the durable layout under the notifications key.
type persistedState struct {
	Notifications []record.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
	LastUpdated   int64                 `json:"last_updated"`
}

// Options configures a Center.
type Options struct {
	Capacity int
	Renderer Renderer
	Desktop  Desktop
	Sound    Sound
	Logger   *zap.Logger
}

// Center owns the notification history and unread counter. All mutation
// goes through its methods; snapshots returned to callers are copies.
type Center struct {
	store    store.Store
	capacity int
	renderer Renderer
	desktop  Desktop
	sound    Sound
	log      *zap.Logger

	mu            sync.Mutex
	notifications []record.Notification // newest first
	timers        map[string]*schedule.Handle
}

// NewCenter creates a Center, restoring any persisted history from the
// store. A corrupt or missing key starts empty.
func NewCenter(s store.Store, opts Options) *Center {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	c := &Center{
		store:    s,
		capacity: opts.Capacity,
		renderer: opts.Renderer,
		desktop:  opts.Desktop,
		sound:    opts.Sound,
		log:      log,
		timers:   make(map[string]*schedule.Handle),
	}
	c.Reconcile()
	return c
}

// Show presents a notification: generated id, unread, prepended to the
// history (evicting the oldest beyond capacity), persisted, and fanned
// out to the enabled channels. Returns a copy of the stored record.
func (c *Center) Show(opts ShowOptions) record.Notification {
	n := record.NewNotification(opts.Title, opts.Body, opts.Kind)
	n.Data = opts.Data
	n.Actions = opts.Actions

	c.mu.Lock()
	c.notifications = append([]record.Notification{*n}, c.notifications...)
	if len(c.notifications) > c.capacity {
		evicted := c.notifications[c.capacity:]
		c.notifications = c.notifications[:c.capacity]
		for _, old := range evicted {
			if h := c.timers[old.ID]; h != nil {
				h.Cancel()
				delete(c.timers, old.ID)
			}
		}
	}
	if opts.Duration > 0 && !opts.Persistent {
		id := n.ID
		c.timers[id] = schedule.After(opts.Duration, func() {
			c.Dismiss(id)
		})
	}
	c.persistLocked()
	c.mu.Unlock()

	c.dispatch(*n)
	return *n
}

// dispatch fans the notification out to the channels without blocking the
// caller. Channel failures are logged and swallowed.
func (c *Center) dispatch(n record.Notification) {
	if c.renderer != nil {
		go func() {
			if err := c.renderer.Render(n); err != nil {
				c.log.Warn("in-app render failed", zap.String("id", n.ID), zap.Error(err))
			}
		}()
	}
	if c.desktop != nil && c.desktop.Available() {
		go func() {
			if err := c.desktop.Notify(n); err != nil {
				c.log.Warn("desktop notify failed", zap.String("id", n.ID), zap.Error(err))
			}
		}()
	}
	if c.sound != nil {
		go func() {
			if err := c.sound.Play(n.Kind); err != nil {
				c.log.Warn("sound cue failed", zap.String("kind", string(n.Kind)), zap.Error(err))
			}
		}()
	}
}

// MarkAsRead marks one notification read. Idempotent; unknown ids are a
// no-op. Returns true if state changed.
func (c *Center) MarkAsRead(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.notifications {
		if c.notifications[i].ID == id {
			if c.notifications[i].Read {
				return false
			}
			c.notifications[i].Read = true
			c.persistLocked()
			return true
		}
	}
	return false
}

// MarkAllAsRead marks every retained notification read.
func (c *Center) MarkAllAsRead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := false
	for i := range c.notifications {
		if !c.notifications[i].Read {
			c.notifications[i].Read = true
			changed = true
		}
	}
	if changed {
		c.persistLocked()
	}
}

// Dismiss removes the on-screen element and marks the record dismissed.
// The record stays in history for statistics. Dismissal is terminal and
// idempotent.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	var dismissed bool
	for i := range c.notifications {
		if c.notifications[i].ID == id {
			if !c.notifications[i].Dismissed {
				c.notifications[i].Dismissed = true
				c.notifications[i].Read = true
				dismissed = true
			}
			break
		}
	}
	if h := c.timers[id]; h != nil {
		h.Cancel()
		delete(c.timers, id)
	}
	if dismissed {
		c.persistLocked()
	}
	c.mu.Unlock()

	if dismissed && c.renderer != nil {
		if err := c.renderer.Remove(id); err != nil {
			c.log.Warn("in-app remove failed", zap.String("id", id), zap.Error(err))
		}
	}
}

// ClearAll empties the history and resets the unread count.
func (c *Center) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, h := range c.timers {
		h.Cancel()
		delete(c.timers, id)
	}
	c.notifications = nil
	c.persistLocked()
}

// Unread returns the count of retained records with read=false.
func (c *Center) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return unreadOf(c.notifications)
}

// Notifications returns a newest-first copy of the retained history.
func (c *Center) Notifications() []record.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]record.Notification, len(c.notifications))
	copy(out, c.notifications)
	return out
}

// Get returns a copy of one retained notification by id.
func (c *Center) Get(id string) (record.Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.notifications {
		if n.ID == id {
			return n, true
		}
	}
	return record.Notification{}, false
}

// Statistics summarizes the retained history, dismissed records included.
func (c *Center) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := Statistics{
		Total:  len(c.notifications),
		Unread: unreadOf(c.notifications),
		ByKind: make(map[record.Kind]int),
	}
	for _, n := range c.notifications {
		if n.Dismissed {
			stats.Dismissed++
		}
		stats.ByKind[n.Kind]++
	}
	return stats
}

// Reconcile replaces in-memory state with the persisted state. Called at
// construction and when another process writes the notifications key.
// The unread counter is recomputed from the reloaded records rather than
// trusted from the stored value.
func (c *Center) Reconcile() {
	data, err := c.store.Load(store.KeyNotifications)
	if err != nil {
		c.log.Warn("load notification history", zap.Error(err))
		return
	}
	if data == nil {
		return
	}
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		c.log.Warn("decode notification history", zap.Error(err))
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(state.Notifications) > c.capacity {
		state.Notifications = state.Notifications[:c.capacity]
	}
	c.notifications = state.Notifications
}

// persistLocked writes the history through to the store, logging and
// swallowing failures. Caller holds the lock.
func (c *Center) persistLocked() {
	state := persistedState{
		Notifications: c.notifications,
		UnreadCount:   unreadOf(c.notifications),
		LastUpdated:   time.Now().UnixMilli(),
	}
	if state.Notifications == nil {
		state.Notifications = []record.Notification{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		c.log.Warn("encode notification history", zap.Error(err))
		return
	}
	if err := c.store.Save(store.KeyNotifications, data); err != nil {
		c.log.Warn("persist notification history", zap.Error(err))
	}
}

// unreadOf counts retained records with read=false.
func unreadOf(list []record.Notification) int {
	n := 0
	for i := range list {
		if !list[i].Read {
			n++
		}
	}
	return n
}
