package utils

import (
	"fmt"
	"net/http"
)

// DoneMarker terminates a negotiation stream. Clients ignore it as a payload.
const DoneMarker = "[DONE]"

type SSEWriter struct {
	w http.ResponseWriter
}

// SetStreamHeaders marks a response as an incrementally delivered event
// stream. The relay uses it without an SSEWriter because it copies raw bytes.
func SetStreamHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	SetStreamHeaders(w.Header())
	return &SSEWriter{w: w}
}

// Write emits one event. Only the first line of data survives the
// single-line data: framing the negotiation client understands, so newlines
// are folded into spaces.
func (s *SSEWriter) Write(event, data string) error {
	if event != "" {
		if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", foldLines(data)); err != nil {
		return err
	}

	s.Flush()
	return nil
}

func (s *SSEWriter) Flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *SSEWriter) Close() error {
	return s.Write("", DoneMarker)
}

func foldLines(data string) string {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case '\r':
			continue
		case '\n':
			out = append(out, ' ')
		default:
			out = append(out, data[i])
		}
	}
	return string(out)
}
