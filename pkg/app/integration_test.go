package app

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arenabeat/resultgate/internal/services"
	"github.com/arenabeat/resultgate/pkg/config"
)

type streamEvent struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  struct {
		Kind   string `json:"kind"`
		TaskID string `json:"taskId"`
		Final  bool   `json:"final"`
		Status struct {
			State   string `json:"state"`
			Message string `json:"message,omitempty"`
		} `json:"status"`
		Artifacts []struct {
			Name  string `json:"name"`
			Parts []struct {
				Kind string `json:"kind"`
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"artifacts,omitempty"`
	} `json:"result"`
}

func newTestServer(t *testing.T, resultsDir string, ceiling time.Duration) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	t.Setenv("WATCH_PATTERNS", filepath.Join(resultsDir, "*.json"))
	cfg, err := config.LoadConfigOptional("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	app, err := NewApplication(cfg)
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	// Sub-second timings keep the end-to-end tests fast; the config file
	// only deals in whole seconds.
	app.Stream = services.NewStreamService(
		app.Watcher, app.Logger, time.Now,
		20*time.Millisecond, time.Minute, ceiling,
	)
	SetupMappings(app)

	srv := httptest.NewServer(app.Engine)
	t.Cleanup(srv.Close)
	return srv
}

func readStream(t *testing.T, srv *httptest.Server) []streamEvent {
	t.Helper()
	body := strings.NewReader(`{"jsonrpc":"2.0","id":"match-7","method":"message/stream"}`)
	resp, err := http.Post(srv.URL+"/", "application/json", body)
	if err != nil {
		t.Fatalf("POST /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	var events []streamEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad frame %q: %v", line, err)
		}
		events = append(events, ev)
	}
	if len(events) == 0 {
		t.Fatal("no events received")
	}
	return events
}

func TestStreamDeliversResult(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServer(t, dir, 5*time.Second)

	go func() {
		time.Sleep(60 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, "result.json"), []byte(`{"winner":"agent"}`), 0o644)
	}()

	events := readStream(t, srv)

	first := events[0]
	if first.ID != "match-7" {
		t.Errorf("id = %v, want match-7", first.ID)
	}
	if first.Result.Status.State != "working" || first.Result.Final {
		t.Errorf("first event = %+v, want non-final working", first.Result)
	}

	last := events[len(events)-1]
	if !last.Result.Final || last.Result.Status.State != "completed" {
		t.Fatalf("last event = %+v, want final completed", last.Result)
	}
	if len(last.Result.Artifacts) != 1 {
		t.Fatalf("artifacts = %v", last.Result.Artifacts)
	}
	art := last.Result.Artifacts[0]
	if art.Name != "result.json" {
		t.Errorf("artifact name = %q", art.Name)
	}
	if art.Parts[0].Text != `{"winner":"agent"}` {
		t.Errorf("artifact text = %q", art.Parts[0].Text)
	}

	for _, ev := range events[:len(events)-1] {
		if ev.Result.Final {
			t.Errorf("non-last event marked final: %+v", ev.Result)
		}
	}
}

func TestStreamTimesOutWithoutResult(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), 150*time.Millisecond)

	events := readStream(t, srv)
	last := events[len(events)-1]
	if !last.Result.Final || last.Result.Status.State != "failed" {
		t.Fatalf("last event = %+v, want final failed", last.Result)
	}
	if last.Result.Status.Message == "" {
		t.Error("timeout event has no message")
	}
}

func TestAgentCardEndpoint(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), time.Second)

	resp, err := http.Get(srv.URL + "/.well-known/agent-card.json")
	if err != nil {
		t.Fatalf("GET agent card: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var card struct {
		Name         string `json:"name"`
		Capabilities struct {
			Streaming bool `json:"streaming"`
		} `json:"capabilities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		t.Fatalf("decode card: %v", err)
	}
	if card.Name != "resultgate" {
		t.Errorf("name = %q", card.Name)
	}
	if !card.Capabilities.Streaming {
		t.Error("card does not advertise streaming")
	}
}

func TestStatusAndMetricsEndpoints(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), time.Second)

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var status struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Status != "ok" {
		t.Errorf("status = %q", status.Status)
	}

	metrics, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer metrics.Body.Close()
	if metrics.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", metrics.StatusCode)
	}
}
