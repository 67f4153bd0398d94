package bus

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mfekete/exfil/backend/internal/envelope"
	"github.com/mfekete/exfil/backend/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.LevelError, 0)
}

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()

	hub := NewHub(testLogger())
	server := httptest.NewServer(hub.Handler())
	t.Cleanup(server.Close)

	return hub, strings.TrimPrefix(server.URL, "http://")
}

func connect(t *testing.T, addr, name string) *Client {
	t.Helper()

	client, err := Connect(addr, name, testLogger())
	if err != nil {
		t.Fatalf("Connect(%q) failed: %v", name, err)
	}
	t.Cleanup(client.Close)
	return client
}

func waitForContexts(t *testing.T, hub *Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ActiveContexts() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connected contexts, got %d", want, hub.ActiveContexts())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubRouting(t *testing.T) {
	t.Run("delivers frames to the other contexts but not the sender", func(t *testing.T) {
		hub, addr := startHub(t)

		popup := connect(t, addr, "popup")
		background := connect(t, addr, "background")
		waitForContexts(t, hub, 2)

		popupGot := make(chan envelope.Message, 1)
		popup.OnReceive(func(raw []byte) bool {
			m, ok := envelope.Decode(raw)
			if ok {
				popupGot <- m
			}
			return ok
		})

		backgroundGot := make(chan envelope.Message, 1)
		background.OnReceive(func(raw []byte) bool {
			m, ok := envelope.Decode(raw)
			if ok {
				backgroundGot <- m
			}
			return ok
		})

		sent := &envelope.InitConfigWindow{
			Base:  envelope.Base{Kind: envelope.KindInitConfigWindow, SentBy: "popup"},
			TabID: 3,
		}
		if err := popup.Post(sent); err != nil {
			t.Fatalf("Post failed: %v", err)
		}

		select {
		case m := <-backgroundGot:
			got, ok := m.(*envelope.InitConfigWindow)
			if !ok || got.TabID != 3 {
				t.Errorf("unexpected message %#v", m)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("background context never received the frame")
		}

		select {
		case m := <-popupGot:
			t.Errorf("sender received its own frame: %#v", m)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("a reconnecting context supersedes its stale session", func(t *testing.T) {
		hub, addr := startHub(t)

		first := connect(t, addr, "configwin")
		waitForContexts(t, hub, 1)

		second := connect(t, addr, "configwin")
		waitForContexts(t, hub, 1)

		// The stale connection is closed by the hub.
		select {
		case <-firstClosed(first):
		case <-time.After(2 * time.Second):
			t.Fatal("stale connection was not closed")
		}
		_ = second
	})

	t.Run("rejects a connection without a context name", func(t *testing.T) {
		_, addr := startHub(t)

		if _, err := Connect(addr, "", testLogger()); err == nil {
			t.Fatal("expected connection without a name to fail")
		}
	})
}

// firstClosed signals once the client's read loop has ended.
func firstClosed(c *Client) <-chan struct{} {
	c.OnReceive(func([]byte) bool { return true })
	return c.Done()
}

func TestClientPost(t *testing.T) {
	t.Run("post after close fails", func(t *testing.T) {
		_, addr := startHub(t)
		client := connect(t, addr, "popup")
		client.Close()

		err := client.Post(&envelope.ExportDone{Base: envelope.Base{Kind: envelope.KindExportDone}})
		if err == nil {
			t.Error("expected Post on a closed connection to fail")
		}
	})
}
