// Package agent follows the event stream of the external chat agent and
// turns its state snapshots into progress.AgentState values.
package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"gwi.com/notebook-console/internal/progress"
)

// ErrUnauthorized is returned when the agent endpoint answers 401 or 403.
var ErrUnauthorized = errors.New("agent: not authorized")

const (
	eventStateSnapshot = "state_snapshot"
	eventRunFinished   = "run_finished"
	eventRunError      = "run_error"
)

type Client struct {
	URL        string
	Token      string
	HTTPClient *http.Client
}

func New(url, token string) *Client {
	return &Client{
		URL:        url,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 0}, // streams stay open
	}
}

// Stream delivers agent states. C is closed when the run finishes, the
// server closes the stream or the context is cancelled; Err then reports
// why.
type Stream struct {
	C <-chan progress.AgentState

	done chan struct{}
	err  error
}

// Err blocks until the stream has ended and returns its error, nil for a
// finished run.
func (s *Stream) Err() error {
	<-s.done
	return s.err
}

// Connect opens the event stream. Connection and auth failures are returned
// directly; later failures surface through Stream.Err.
func (c *Client) Connect(ctx context.Context) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to agent: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("agent stream returned %d", resp.StatusCode)
	}

	ch := make(chan progress.AgentState, 1)
	s := &Stream{C: ch, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		defer close(ch)
		defer resp.Body.Close()
		s.err = read(ctx, resp.Body, ch)
	}()
	return s, nil
}

// Watch is Connect plus a loop calling fn for every state.
func (c *Client) Watch(ctx context.Context, fn func(progress.AgentState)) error {
	s, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	for st := range s.C {
		fn(st)
	}
	return s.Err()
}

var errRunFinished = errors.New("run finished")

func read(ctx context.Context, body io.Reader, out chan<- progress.AgentState) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) // 1 MB

	var eventType string
	var data strings.Builder

	dispatch := func() error {
		defer func() {
			eventType = ""
			data.Reset()
		}()
		if data.Len() == 0 {
			return nil
		}
		return handle(ctx, eventType, []byte(data.String()), out)
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()

		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return finish(err)
			}
		case strings.HasPrefix(line, ":"):
			// keepalive
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read agent stream: %w", err)
	}
	return finish(dispatch())
}

func finish(err error) error {
	if errors.Is(err, errRunFinished) {
		return nil
	}
	return err
}

type frame struct {
	Type     string               `json:"type"`
	Snapshot *progress.AgentState `json:"snapshot"`
	Message  string               `json:"message"`
	progress.AgentState
}

func handle(ctx context.Context, eventType string, data []byte, out chan<- progress.AgentState) error {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		log.Printf("Skipping malformed agent event %q: %v", eventType, err)
		return nil
	}
	if eventType == "" {
		eventType = f.Type
	}

	switch strings.ToLower(eventType) {
	case eventStateSnapshot:
		state := f.AgentState
		if f.Snapshot != nil {
			state = *f.Snapshot
		}
		select {
		case out <- state:
		case <-ctx.Done():
			return ctx.Err()
		}
	case eventRunFinished:
		return errRunFinished
	case eventRunError:
		return fmt.Errorf("agent run failed: %s", f.Message)
	}
	return nil
}
