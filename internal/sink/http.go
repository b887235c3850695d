package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

const (
	requestTimeout = 10 * time.Second

	// beaconTimeout bounds the best-effort teardown send. Long enough to
	// reach a local collector, short enough not to stall shutdown.
	beaconTimeout = 2 * time.Second
)

// HTTP posts batches as JSON to a single logical endpoint. One attempt per
// call; transport errors and non-2xx statuses are returned to the caller
// so the queue can re-queue the batch.
type HTTP struct {
	endpoint string
	gzip     bool
	client   *http.Client
	log      *zap.Logger
}

// NewHTTP creates an HTTP sink for the given endpoint.
func NewHTTP(endpoint string, useGzip bool, log *zap.Logger) *HTTP {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTP{
		endpoint: endpoint,
		gzip:     useGzip,
		client:   &http.Client{Timeout: requestTimeout},
		log:      log,
	}
}

// Deliver posts the batch. In synchronous mode the send is bounded by the
// beacon timeout and its outcome is suppressed — the execution context is
// being torn down and nothing can act on a failure.
func (h *HTTP) Deliver(ctx context.Context, batch Batch, synchronous bool) error {
	if h.endpoint == "" {
		return fmt.Errorf("no delivery endpoint configured")
	}

	if synchronous {
		beaconCtx, cancel := context.WithTimeout(context.Background(), beaconTimeout)
		defer cancel()
		if err := h.post(beaconCtx, batch); err != nil {
			h.log.Debug("beacon send failed", zap.Error(err))
		}
		return nil
	}

	return h.post(ctx, batch)
}

// post performs the single JSON POST attempt.
func (h *HTTP) post(ctx context.Context, batch Batch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	var body io.Reader = bytes.NewReader(payload)
	if h.gzip {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return fmt.Errorf("compress batch: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compress batch: %w", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver batch: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint rejected batch: HTTP %d", resp.StatusCode)
	}
	return nil
}
