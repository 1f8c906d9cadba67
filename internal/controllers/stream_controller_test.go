package controllers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arenabeat/resultgate/internal/services"
	"github.com/arenabeat/resultgate/pkg/domain"
)

type stubStreamService struct {
	gotID any
}

func (s *stubStreamService) Run(ctx context.Context, requestID any, sink services.EventSink) {
	s.gotID = requestID
	_ = sink.Send(domain.WorkingEvent(requestID, "task-1", time.Unix(0, 0)))
	_ = sink.Send(domain.CompletedEvent(requestID, "task-1", time.Unix(1, 0),
		domain.NewTextArtifact("result.json", []byte(`{"score": 1}`))))
}

func newStreamTestContext(t *testing.T, method string, body string) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	c.Request = req
	return w, c
}

func TestHandleEchoesJSONRPCID(t *testing.T) {
	svc := &stubStreamService{}
	ctrl := NewStreamController(svc)

	w, c := newStreamTestContext(t, http.MethodPost,
		`{"jsonrpc":"2.0","id":"arb-42","method":"message/stream","params":{}}`)
	ctrl.Handle(c)

	if svc.gotID != "arb-42" {
		t.Fatalf("request id = %v, want arb-42", svc.gotID)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
}

func TestHandleGeneratesIDForGet(t *testing.T) {
	svc := &stubStreamService{}
	ctrl := NewStreamController(svc)

	_, c := newStreamTestContext(t, http.MethodGet, "")
	ctrl.Handle(c)

	id, ok := svc.gotID.(string)
	if !ok || id == "" {
		t.Fatalf("expected generated id, got %v", svc.gotID)
	}
}

func TestHandleGeneratesIDForBadBody(t *testing.T) {
	svc := &stubStreamService{}
	ctrl := NewStreamController(svc)

	_, c := newStreamTestContext(t, http.MethodPost, "{not json")
	ctrl.Handle(c)

	id, ok := svc.gotID.(string)
	if !ok || id == "" {
		t.Fatalf("expected generated id, got %v", svc.gotID)
	}
}

func TestHandleWritesSSEFrames(t *testing.T) {
	svc := &stubStreamService{}
	ctrl := NewStreamController(svc)

	w, c := newStreamTestContext(t, http.MethodPost,
		`{"jsonrpc":"2.0","id":7,"method":"message/stream"}`)
	ctrl.Handle(c)

	var events []domain.Event
	scanner := bufio.NewScanner(w.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev domain.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad frame %q: %v", line, err)
		}
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(events))
	}
	if events[0].Result.Final || !events[1].Result.Final {
		t.Fatalf("final flags wrong: %v %v", events[0].Result.Final, events[1].Result.Final)
	}
	if events[1].Result.Artifacts[0].Name != "result.json" {
		t.Errorf("artifact = %q", events[1].Result.Artifacts[0].Name)
	}
}

func TestStatusControllerAnswersImmediately(t *testing.T) {
	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return started.Add(90 * time.Second) }
	ctrl := NewStatusController(started, now)

	w, c := newStreamTestContext(t, http.MethodGet, "")
	ctrl.Handle(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q", body["status"])
	}
	if body["uptime"] != "1m30s" {
		t.Errorf("uptime = %q", body["uptime"])
	}
}

func TestAgentCardController(t *testing.T) {
	card := domain.AgentCard{
		Name:    "resultgate",
		URL:     "http://localhost:9009",
		Version: "1.0.0",
		Capabilities: domain.Capabilities{
			Streaming: true,
		},
	}
	ctrl := NewAgentCardController(card)

	w, c := newStreamTestContext(t, http.MethodGet, "")
	ctrl.Handle(c)

	var got domain.AgentCard
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Capabilities.Streaming {
		t.Error("card must declare streaming support")
	}
	if got.Name != "resultgate" {
		t.Errorf("name = %q", got.Name)
	}
}
