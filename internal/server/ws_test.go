package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func dialHub(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestHub_Publish(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(hub)
	defer ts.Close()

	// Publishing with nobody listening is a no-op.
	hub.Publish(map[string]int{"frame": 0})

	a := dialHub(t, ts.URL)
	defer a.Close()
	b := dialHub(t, ts.URL)
	defer b.Close()
	waitFor(t, "two clients", func() bool { return hub.Clients() == 2 })

	hub.Publish(map[string]int{"frame": 1})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(msg) != `{"frame":1}` {
			t.Errorf("message = %s", msg)
		}
	}

	a.Close()
	waitFor(t, "client removal", func() bool { return hub.Clients() == 1 })
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn := dialHub(t, ts.URL)
	defer conn.Close()
	waitFor(t, "client", func() bool { return hub.Clients() == 1 })

	hub.Close()
	if hub.Clients() != 0 {
		t.Errorf("clients after Close = %d", hub.Clients())
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}

	// New clients are turned away.
	late := dialHub(t, ts.URL)
	defer late.Close()
	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := late.ReadMessage(); err == nil {
		t.Error("expected late client to be closed")
	}
}

func TestHub_PublishDoesNotWaitForSlowClient(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(hub)
	defer ts.Close()

	// stuck never reads, so its socket buffers fill up.
	stuck := dialHub(t, ts.URL)
	defer stuck.Close()
	reader := dialHub(t, ts.URL)
	defer reader.Close()
	waitFor(t, "two clients", func() bool { return hub.Clients() == 2 })

	payload := map[string]string{"frame": strings.Repeat("x", 1<<20)}

	var worst time.Duration
	for i := 0; i < 20; i++ {
		start := time.Now()
		hub.Publish(payload)
		if d := time.Since(start); d > worst {
			worst = d
		}
	}
	if worst > 50*time.Millisecond {
		t.Errorf("slowest Publish took %v, want under 50ms", worst)
	}

	// The reading client still gets updates.
	reader.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := reader.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(msg) < 1<<20 {
		t.Errorf("message length = %d", len(msg))
	}
}
