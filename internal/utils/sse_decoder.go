package utils

import (
	"bytes"
	"strings"
)

var eventSeparator = []byte("\n\n")

// EventDecoder reassembles blank-line delimited event segments from an
// arbitrarily chunked byte stream. It buffers raw bytes, so a multi-byte
// character split across two reads is only decoded once both halves arrived.
//
// The zero value is ready to use. An EventDecoder is not safe for concurrent
// use; each exchange owns its own.
type EventDecoder struct {
	buf []byte
}

// Feed appends chunk to the buffer and returns every segment completed by it,
// in order. The trailing partial segment stays buffered.
func (d *EventDecoder) Feed(chunk []byte) []string {
	d.buf = append(d.buf, chunk...)

	var segments []string
	for {
		idx := bytes.Index(d.buf, eventSeparator)
		if idx < 0 {
			break
		}
		segments = append(segments, string(d.buf[:idx]))
		d.buf = d.buf[idx+len(eventSeparator):]
	}

	// 释放已消费的前缀，避免长流下底层数组只增不减
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return segments
}

// Pending reports whether a partial segment is buffered.
func (d *EventDecoder) Pending() bool {
	return len(d.buf) > 0
}

// Flush returns and clears the buffered partial segment.
func (d *EventDecoder) Flush() string {
	rest := string(d.buf)
	d.buf = nil
	return rest
}

// DataPayload extracts the value of the first data: line in segment, trimmed
// of surrounding whitespace. ok is false when no data line is present or its
// value is empty.
func DataPayload(segment string) (payload string, ok bool) {
	for _, line := range strings.Split(segment, "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		return payload, payload != ""
	}
	return "", false
}
