package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/ingestion"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/storage/memory"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/training"
)

func dialProgress(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/progress/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSubscriber(t *testing.T, env *testEnv) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for env.broker.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestProgressStreamDeliversUpdates(t *testing.T) {
	env := newTestEnv(t, 5, nil)
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	conn := dialProgress(t, ts)
	waitForSubscriber(t, env)

	want := domain.ProgressUpdate{
		SessionID:   "sess-abc",
		Episode:     3,
		MatchIndex:  17,
		Epsilon:     0.81,
		WinRate:     0.6,
		ROI:         0.12,
		EntryRate:   0.4,
		TimestampMs: 1704067200000,
	}
	env.broker.Publish(want)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got domain.ProgressUpdate
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if got != want {
		t.Errorf("update = %+v, want %+v", got, want)
	}
}

func TestProgressStreamDuringTraining(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	conn := dialProgress(t, ts)
	waitForSubscriber(t, env)

	rec := doJSON(t, env.srv.Handler(), http.MethodPost, "/api/training/start", startBody(env))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start returned %d: %s", rec.Code, rec.Body.String())
	}
	accepted := decodeStatus(t, rec)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got domain.ProgressUpdate
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if got.SessionID != accepted.SessionID {
		t.Errorf("update session = %q, want %q", got.SessionID, accepted.SessionID)
	}

	waitForState(t, env.srv.Handler(), domain.StateCompleted)
}

func TestProgressStreamClosesWithBroker(t *testing.T) {
	env := newTestEnv(t, 5, nil)
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	conn := dialProgress(t, ts)
	waitForSubscriber(t, env)

	env.broker.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("read after broker close = %v, want a normal closure", err)
	}
}

func TestProgressStreamWithoutBroker(t *testing.T) {
	cfg := testConfig(t)
	mgr := training.NewManager(cfg, training.Deps{
		Events:      ingestion.NewStoreProvider(memory.NewEventStore()),
		Checkpoints: memory.NewCheckpointStore(),
	})
	srv, err := New(cfg, Deps{Manager: mgr, Checkpoints: memory.NewCheckpointStore()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/progress/ws", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("progress ws returned %d, want 503", rec.Code)
	}
}
