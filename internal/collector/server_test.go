package collector

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/pagepulse/pagepulse/internal/record"
)

func newTestServer(t *testing.T) (*httptest.Server, *Database) {
	t.Helper()
	db := newTestDatabase(t)
	ts := httptest.NewServer(NewServer(db, "", nil).Handler())
	t.Cleanup(ts.Close)
	return ts, db
}

func postJSON(t *testing.T, url string, body []byte, gzipped bool) *http.Response {
	t.Helper()
	if gzipped {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(body); err != nil {
			t.Fatal(err)
		}
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}
		body = buf.Bytes()
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if gzipped {
		req.Header.Set("Content-Encoding", "gzip")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPostEvents(t *testing.T) {
	ts, db := newTestServer(t)

	body, _ := json.Marshal(testBatch(record.TypeClick, record.TypePageLoad))
	resp := postJSON(t, ts.URL+"/v1/events", body, false)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	n, err := db.EventCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("stored events = %d, want 2", n)
	}
}

func TestPostEventsGzip(t *testing.T) {
	ts, db := newTestServer(t)

	body, _ := json.Marshal(testBatch(record.TypeScrollMilestone))
	resp := postJSON(t, ts.URL+"/v1/events", body, true)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	n, err := db.EventCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("stored events = %d, want 1", n)
	}
}

func TestPostEventsBadJSON(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/v1/events", []byte("{not json"), false)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPostEventsBadGzip(t *testing.T) {
	ts, _ := newTestServer(t)
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/events", bytes.NewReader([]byte("plain")))
	req.Header.Set("Content-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestEventsMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestStats(t *testing.T) {
	ts, db := newTestServer(t)

	if err := db.InsertBatch(testBatch(record.TypeClick, record.TypeClick, record.TypeScrollMilestone)); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out struct {
		Types []TypeCount `json:"types"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Types) != 2 || out.Types[0].Type != record.TypeClick || out.Types[0].Count != 2 {
		t.Fatalf("stats = %+v", out.Types)
	}
}

func TestStatsEmpty(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out struct {
		Types []TypeCount `json:"types"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Types == nil || len(out.Types) != 0 {
		t.Fatalf("types = %v, want empty array", out.Types)
	}
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
