package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/seihin-app/seihin/internal/store"
	"github.com/seihin-app/seihin/internal/syncer"
)

func setupServer(t *testing.T) *Server {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	s := syncer.New(st, nil, log.New(os.Stderr, "[test-sync] ", 0))
	config := &Config{
		Port:   0, // random available port
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	}
	server := NewServer(s, config)

	if err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() { server.Stop() })

	time.Sleep(50 * time.Millisecond)
	return server
}

func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func TestServerStartStop(t *testing.T) {
	server := setupServer(t)
	if server.GetAddr() == "" {
		t.Fatal("server address is empty")
	}
}

func TestWelcomeMessageCarriesStatus(t *testing.T) {
	server := setupServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, server)

	if count := server.ClientCount(); count != 1 {
		t.Errorf("expected 1 client, got %d", count)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("failed to read welcome message: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to unmarshal message: %v", err)
	}
	if msg.Type != MessageTypeStatus {
		t.Errorf("welcome message type = %s, want %s", msg.Type, MessageTypeStatus)
	}

	var status StatusData
	if err := json.Unmarshal(msg.Data, &status); err != nil {
		t.Fatalf("failed to unmarshal status payload: %v", err)
	}
	if status.Status != syncer.StatusIdle {
		t.Errorf("status = %s, want %s", status.Status, syncer.StatusIdle)
	}
	if status.Enabled {
		t.Error("no remote configured; enabled should be false")
	}
}

func TestBroadcastEventReachesClients(t *testing.T) {
	server := setupServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, server)

	// Drain the welcome message.
	if _, _, err := conn.Read(ctx); err != nil {
		t.Fatalf("failed to read welcome message: %v", err)
	}

	server.BroadcastEvent(syncer.Event{
		Status:      syncer.StatusSuccess,
		Purged:      3,
		Retried:     true,
		CompletedAt: "2026-02-14T10:00:00.000Z",
	})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("failed to read broadcast: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to unmarshal message: %v", err)
	}
	if msg.Type != MessageTypeSyncEvent {
		t.Errorf("message type = %s, want %s", msg.Type, MessageTypeSyncEvent)
	}

	var event syncer.Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		t.Fatalf("failed to unmarshal event payload: %v", err)
	}
	if event.Status != syncer.StatusSuccess || event.Purged != 3 || !event.Retried {
		t.Errorf("event did not round-trip: %+v", event)
	}
}

func TestMultipleClients(t *testing.T) {
	server := setupServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		conn := dial(t, ctx, server)
		if _, _, err := conn.Read(ctx); err != nil {
			t.Fatalf("failed to read welcome message for client %d: %v", i, err)
		}
	}

	if count := server.ClientCount(); count != 3 {
		t.Errorf("expected 3 clients, got %d", count)
	}
}

func TestStatusEndpoint(t *testing.T) {
	server := setupServer(t)

	resp, err := http.Get("http://" + server.GetAddr() + "/status")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}

	var status StatusData
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status.Status != syncer.StatusIdle {
		t.Errorf("status = %s, want %s", status.Status, syncer.StatusIdle)
	}
}
