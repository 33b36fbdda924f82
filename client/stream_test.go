package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boardflow/domain"
)

func TestListenStreamDecodesFramesAndSkipsHeartbeats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/boards/b1/stream" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("missing bearer token, got %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("data: {\"type\":\"hello\",\"boardId\":\"b1\"}\n\n"))
		_, _ = w.Write([]byte(": ping\n\n"))
		_, _ = w.Write([]byte("data: {\"type\":\"card.deleted\",\"id\":\"c1\"}\n\n"))
	}))
	defer srv.Close()

	var events []domain.Event
	err := ListenStream(context.Background(), StreamConfig{
		BaseURL: srv.URL,
		BoardID: "b1",
		Token:   "tok",
	}, func(ev domain.Event) { events = append(events, ev) })
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}
	if events[0].Type != domain.EventHello || events[0].BoardID != "b1" {
		t.Fatalf("first event must be hello: %+v", events[0])
	}
	if events[1].Type != domain.EventCardDeleted || events[1].ID != "c1" {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
}

func TestListenStreamStopsOnContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ListenStream(ctx, StreamConfig{BaseURL: srv.URL, BoardID: "b1"}, func(domain.Event) {})
	}()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not stop after cancel")
	}
}

func TestListenStreamRejectedSubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	err := ListenStream(context.Background(), StreamConfig{BaseURL: srv.URL, BoardID: "b1"}, func(domain.Event) {})
	if err == nil {
		t.Fatal("expected an error for a rejected subscription")
	}
}
