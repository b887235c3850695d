package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pagepulse/pagepulse/internal/store"
)

// DefaultHistoryCap bounds the durable batch ring when no cap is given.
const DefaultHistoryCap = 100

// StoredBatch is one delivered-or-spilled batch in the durable history.
type StoredBatch struct {
	SavedAt time.Time `json:"saved_at"`
	Batch   Batch     `json:"batch"`
}

// History is the persisted layout under the telemetry key.
type History struct {
	Batches   []StoredBatch `json:"batches"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Local appends batches to a capped ring in the durable store and never
// contacts the network. It serves both as the durable-local delivery mode
// and as the spill target for batches that exhausted their retries.
type Local struct {
	store store.Store
	cap   int
}

// NewLocal creates a durable-local sink with the given history cap.
func NewLocal(s store.Store, cap int) *Local {
	if cap <= 0 {
		cap = DefaultHistoryCap
	}
	return &Local{store: s, cap: cap}
}

// Deliver appends the batch to the history, evicting the oldest entries
// beyond the cap. The synchronous flag is irrelevant for a local write.
func (l *Local) Deliver(_ context.Context, batch Batch, _ bool) error {
	history, err := l.LoadHistory()
	if err != nil {
		return err
	}

	history.Batches = append(history.Batches, StoredBatch{
		SavedAt: time.Now().UTC(),
		Batch:   batch,
	})
	if overflow := len(history.Batches) - l.cap; overflow > 0 {
		history.Batches = history.Batches[overflow:]
	}
	history.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := l.store.Save(store.KeyTelemetry, data); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}

// LoadHistory reads the persisted batch history, returning an empty
// history when the key is absent or corrupt.
func (l *Local) LoadHistory() (*History, error) {
	data, err := l.store.Load(store.KeyTelemetry)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	history := &History{}
	if data != nil {
		if err := json.Unmarshal(data, history); err != nil {
			// Corrupt state resets to empty rather than blocking writes.
			*history = History{}
		}
	}
	return history, nil
}
