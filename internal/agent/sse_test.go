package agent

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gwi.com/notebook-console/internal/progress"
)

func sseServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collect(t *testing.T, c *Client) ([]progress.AgentState, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var got []progress.AgentState
	err := c.Watch(ctx, func(s progress.AgentState) { got = append(got, s) })
	return got, err
}

func TestWatch_SnapshotsUntilRunFinished(t *testing.T) {
	srv := sseServer(t, ""+
		": keepalive\n\n"+
		"event: state_snapshot\n"+
		"data: {\"logs\":[{\"message\":\"Searching\",\"done\":false}]}\n\n"+
		"event: state_snapshot\n"+
		"data: {\"logs\":[{\"message\":\"Searching\",\"done\":true},{\"message\":\"Reading\",\"done\":false}]}\n\n"+
		"event: run_finished\n"+
		"data: {}\n\n"+
		"event: state_snapshot\n"+
		"data: {\"logs\":[]}\n\n")

	got, err := collect(t, New(srv.URL, ""))
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d states, want 2 (nothing after run_finished)", len(got))
	}
	if len(got[1].Logs) != 2 || !got[1].Logs[0].Done || got[1].Logs[1].Message != "Reading" {
		t.Errorf("second state = %+v", got[1])
	}
}

func TestWatch_TypedDataFrames(t *testing.T) {
	srv := sseServer(t, ""+
		"data: {\"type\":\"STATE_SNAPSHOT\",\"snapshot\":{\"logs\":[{\"message\":\"Thinking\",\"done\":false}]}}\n\n"+
		"data: {\"type\":\"RUN_FINISHED\"}\n\n")

	got, err := collect(t, New(srv.URL, ""))
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if len(got) != 1 || got[0].Logs[0].Message != "Thinking" {
		t.Errorf("states = %+v", got)
	}
}

func TestWatch_MalformedFrameSkipped(t *testing.T) {
	srv := sseServer(t, ""+
		"event: state_snapshot\ndata: {not json\n\n"+
		"event: state_snapshot\ndata: {\"logs\":[{\"message\":\"ok\",\"done\":true}]}\n\n")

	got, err := collect(t, New(srv.URL, ""))
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d states, want 1", len(got))
	}
}

func TestWatch_RunError(t *testing.T) {
	srv := sseServer(t, "event: run_error\ndata: {\"message\":\"model overloaded\"}\n\n")
	_, err := collect(t, New(srv.URL, ""))
	if err == nil || err.Error() != "agent run failed: model overloaded" {
		t.Errorf("err = %v", err)
	}
}

func TestConnect_Unauthorized(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		_, err := New(srv.URL, "tok").Connect(context.Background())
		srv.Close()
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("status %d: err = %v, want ErrUnauthorized", code, err)
		}
	}
}

func TestConnect_SendsToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		io.WriteString(w, "event: run_finished\ndata: {}\n\n")
	}))
	defer srv.Close()

	if _, err := collect(t, New(srv.URL, "tok")); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestStream_StopsOnCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: state_snapshot\ndata: {\"logs\":[]}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	s, err := New(srv.URL, "").Connect(ctx)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	select {
	case <-s.C:
	case <-time.After(5 * time.Second):
		t.Fatal("no state received")
	}
	cancel()

	done := make(chan error, 1)
	go func() { done <- s.Err() }()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}
