package tui

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// monitorEvent mirrors web.eventJSON: the wire shape of one event on the
// /events server-sent-events stream. Decoded independently here so tui
// does not need to import the web package just to read its JSON.
type monitorEvent struct {
	EngineID   string         `json:"engine_id"`
	At         string         `json:"at"`
	Tag        uint32         `json:"tag,omitempty"`
	Command    string         `json:"command,omitempty"`
	Direction  string         `json:"direction"`
	Fields     map[string]any `json:"fields,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs float64        `json:"duration_ms,omitempty"`
}

func (ev monitorEvent) parsedAt() time.Time {
	t, err := time.Parse(time.RFC3339Nano, ev.At)
	if err != nil {
		return time.Time{}
	}
	return t
}

// sseStream reads one JSON payload at a time off a text/event-stream
// response body. Only the "data:" field is understood; comments and
// other SSE fields are ignored.
type sseStream struct {
	resp *http.Response
	sc   *bufio.Scanner
}

func dialSSE(target string) (*sseStream, error) {
	resp, err := http.Get(target) //nolint:gosec,noctx // target is an operator-supplied address
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", target, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("connect %s: unexpected status %s", target, resp.Status)
	}
	return &sseStream{resp: resp, sc: bufio.NewScanner(resp.Body)}, nil
}

func (s *sseStream) next() (monitorEvent, error) {
	for s.sc.Scan() {
		line := s.sc.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var ev monitorEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}
		return ev, nil
	}
	if err := s.sc.Err(); err != nil {
		return monitorEvent{}, err
	}
	return monitorEvent{}, fmt.Errorf("event stream closed")
}

func (s *sseStream) close() {
	_ = s.resp.Body.Close()
}
