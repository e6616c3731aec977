package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"openbroker/src/broker"
	"openbroker/src/externalmodel"
)

type recordingHandler struct {
	updates chan externalmodel.TradeUpdate
	err     error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{updates: make(chan externalmodel.TradeUpdate, 16)}
}

func (h *recordingHandler) HandleTradeUpdate(ctx context.Context, update externalmodel.TradeUpdate) error {
	h.updates <- update
	return h.err
}

// feedServer is a scripted exchange feed endpoint. Each incoming
// connection is upgraded, its subscription message parsed, and then the
// per-connection script is run.
func feedServer(t *testing.T, script func(conn *websocket.Conn, connNum int, sub subscribeMessage)) (*httptest.Server, string) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	connNum := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var sub subscribeMessage
		if err := conn.ReadJSON(&sub); err != nil {
			t.Errorf("failed to read subscription: %v", err)
			return
		}

		connNum++
		script(conn, connNum, sub)
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func newTestClient(t *testing.T, url string, handler TradeHandler) *Client {
	t.Helper()
	client, err := NewClient(Config{
		FeedURL:               url,
		BrokerID:              "broker-77",
		ReconnectDelaySeconds: 1,
	}, handler)
	if err != nil {
		t.Fatalf("failed to build feed client: %v", err)
	}
	// keep reconnects fast in tests
	client.reconnectDelay = 20 * time.Millisecond
	return client
}

func waitForUpdate(t *testing.T, handler *recordingHandler) externalmodel.TradeUpdate {
	t.Helper()
	select {
	case update := <-handler.updates:
		return update
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for trade update")
		return externalmodel.TradeUpdate{}
	}
}

func TestNewClientConfigurationErrors(t *testing.T) {
	handler := newRecordingHandler()

	_, err := NewClient(Config{BrokerID: "b"}, handler)
	if broker.KindOf(err) != broker.KindConfiguration {
		t.Fatalf("expected configuration error for missing URL, got %v", err)
	}

	_, err = NewClient(Config{FeedURL: "ws://example/feed"}, handler)
	if broker.KindOf(err) != broker.KindConfiguration {
		t.Fatalf("expected configuration error for missing broker ID, got %v", err)
	}
}

func TestMalformedMessageDoesNotDropConnection(t *testing.T) {
	handler := newRecordingHandler()
	hold := make(chan struct{})

	srv, wsURL := feedServer(t, func(conn *websocket.Conn, connNum int, sub subscribeMessage) {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("this is not json")); err != nil {
			t.Errorf("write failed: %v", err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"clientOrderId":"USER42-ok-1","quantity":4,"price":"101.5"}`)); err != nil {
			t.Errorf("write failed: %v", err)
			return
		}
		<-hold
	})
	defer srv.Close()
	defer close(hold)

	client := newTestClient(t, wsURL, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	update := waitForUpdate(t, handler)
	if update.ClientOrderID != "USER42-ok-1" || update.Quantity != 4 {
		t.Fatalf("unexpected update: %+v", update)
	}
	if !update.Price.Equal(decimal.RequireFromString("101.5")) {
		t.Fatalf("unexpected price: %s", update.Price)
	}

	// The garbage frame must not have torn the connection down.
	if state := client.State(); state != StateConnected {
		t.Fatalf("expected connected after malformed message, got %s", state)
	}
}

func TestReconnectsAndResubscribesAfterTransportError(t *testing.T) {
	handler := newRecordingHandler()
	subs := make(chan subscribeMessage, 4)
	hold := make(chan struct{})

	srv, wsURL := feedServer(t, func(conn *websocket.Conn, connNum int, sub subscribeMessage) {
		subs <- sub
		if connNum == 1 {
			// Drop the first connection right after the subscription to
			// force the reconnect path.
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"clientOrderId":"USER42-after-reconnect","quantity":-2,"price":"55"}`)); err != nil {
			t.Errorf("write failed: %v", err)
			return
		}
		<-hold
	})
	defer srv.Close()
	defer close(hold)

	client := newTestClient(t, wsURL, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	// Both connections must subscribe with the same broker identity.
	for i := 0; i < 2; i++ {
		select {
		case sub := <-subs:
			if sub.Action != "subscribe" || sub.BrokerID != "broker-77" {
				t.Fatalf("unexpected subscription: %+v", sub)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for subscription %d", i+1)
		}
	}

	update := waitForUpdate(t, handler)
	if update.ClientOrderID != "USER42-after-reconnect" {
		t.Fatalf("unexpected update after reconnect: %+v", update)
	}
}

func TestHandlerErrorDoesNotDropConnection(t *testing.T) {
	handler := newRecordingHandler()
	handler.err = broker.NewError(broker.KindNotFound, "order not found for clientOrderId: ghost")
	hold := make(chan struct{})

	srv, wsURL := feedServer(t, func(conn *websocket.Conn, connNum int, sub subscribeMessage) {
		for _, payload := range []string{
			`{"clientOrderId":"ghost","quantity":1,"price":"10"}`,
			`{"clientOrderId":"USER42-live","quantity":1,"price":"10"}`,
		} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				t.Errorf("write failed: %v", err)
				return
			}
		}
		<-hold
	})
	defer srv.Close()
	defer close(hold)

	client := newTestClient(t, wsURL, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	first := waitForUpdate(t, handler)
	if first.ClientOrderID != "ghost" {
		t.Fatalf("unexpected first update: %+v", first)
	}
	second := waitForUpdate(t, handler)
	if second.ClientOrderID != "USER42-live" {
		t.Fatalf("handler error must not stop message delivery, got %+v", second)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	handler := newRecordingHandler()
	hold := make(chan struct{})

	srv, wsURL := feedServer(t, func(conn *websocket.Conn, connNum int, sub subscribeMessage) {
		<-hold
	})
	defer srv.Close()
	defer close(hold)

	client := newTestClient(t, wsURL, handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	// give the client a moment to connect, then shut down
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("client did not stop on context cancel")
	}

	if state := client.State(); state != StateDisconnected {
		t.Fatalf("expected disconnected after shutdown, got %s", state)
	}
}
