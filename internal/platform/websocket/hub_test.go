package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestHub() *Hub {
	return NewHub(zerolog.Nop())
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := newTestHub()
	client := NewClient(TopicFeedback)

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if hub.TopicCount(TopicFeedback) != 1 {
		t.Fatalf("expected 1 feedback subscriber, got %d", hub.TopicCount(TopicFeedback))
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 || hub.TopicCount(TopicFeedback) != 0 {
		t.Fatal("expected hub to be empty after unregister")
	}
	if _, ok := <-client.Send; ok {
		t.Error("expected Send channel to be closed")
	}

	// second unregister is a no-op
	hub.Unregister(client)
}

func TestHub_PublishOnlyToTopic(t *testing.T) {
	hub := newTestHub()
	feedback := NewClient(TopicFeedback)
	patients := NewClient(TopicPatients)
	hub.Register(feedback)
	hub.Register(patients)

	ev := NewEvent(TopicFeedback, "notice.shown", map[string]string{"message": "Patient added successfully"})
	if err := hub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case data := <-feedback.Send:
		var got Event
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Type != "notice.shown" || got.Topic != TopicFeedback {
			t.Errorf("unexpected event %+v", got)
		}
		if !strings.Contains(string(got.Data), "Patient added successfully") {
			t.Errorf("unexpected data %s", got.Data)
		}
	default:
		t.Fatal("expected feedback subscriber to receive event")
	}

	select {
	case <-patients.Send:
		t.Fatal("patients subscriber should not receive feedback events")
	default:
	}
}

func TestHub_PublishSkipsFullBuffer(t *testing.T) {
	hub := newTestHub()
	client := &Client{ID: "slow", Topics: []string{TopicFeedback}, Send: make(chan []byte)}
	hub.Register(client)

	done := make(chan struct{})
	go func() {
		_ = hub.Publish(context.Background(), NewEvent(TopicFeedback, "notice.shown", nil))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full client buffer")
	}
}

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	hub := newTestHub()
	client := NewClient()
	hub.Register(client)

	hub.ProcessMessage(client, ClientMessage{Action: "subscribe", Topics: []string{TopicFeedback, TopicPatients}})
	hub.ProcessMessage(client, ClientMessage{Action: "subscribe", Topics: []string{TopicFeedback}})
	if len(client.Topics) != 2 {
		t.Errorf("expected 2 topics without duplicates, got %v", client.Topics)
	}
	if hub.TopicCount(TopicPatients) != 1 {
		t.Errorf("expected patients subscriber")
	}

	hub.ProcessMessage(client, ClientMessage{Action: "unsubscribe", Topics: []string{TopicPatients}})
	if hub.TopicCount(TopicPatients) != 0 {
		t.Errorf("expected no patients subscribers")
	}
	if len(client.Topics) != 1 || client.Topics[0] != TopicFeedback {
		t.Errorf("unexpected topics %v", client.Topics)
	}

	hub.ProcessMessage(client, ClientMessage{Action: "bogus", Topics: []string{"x"}})
	if hub.TopicCount("x") != 0 {
		t.Error("unknown action should be ignored")
	}
}

func TestHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := newTestHub()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewClient(TopicFeedback)
			hub.Register(c)
			_ = hub.Publish(context.Background(), NewEvent(TopicFeedback, "ping", nil))
			hub.Unregister(c)
		}()
	}
	wg.Wait()
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000"})
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://evil.example", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := check(req); got != tt.want {
			t.Errorf("origin %q: got %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestHandler_ConnectRequiresWebSocket(t *testing.T) {
	h := NewHandler(newTestHub(), nil)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	// gorilla writes 400 itself and returns an error
	_ = h.Connect(c)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for plain HTTP request, got %d", rec.Code)
	}
}

func TestHandler_FullUpgrade(t *testing.T) {
	hub := newTestHub()
	e := echo.New()
	NewHandler(hub, []string{"*"}).RegisterRoutes(e.Group(""))

	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(time.Second)
	for hub.TopicCount(TopicFeedback) < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.TopicCount(TopicFeedback) != 1 {
		t.Fatalf("expected default feedback subscription, got %d", hub.TopicCount(TopicFeedback))
	}

	_ = hub.Publish(context.Background(), NewEvent(TopicFeedback, "notice.shown", map[string]string{"id": "n1"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received Event
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if received.Type != "notice.shown" {
		t.Fatalf("expected notice.shown, got %s", received.Type)
	}
}
