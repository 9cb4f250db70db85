package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"rupped-storefront/internal/model"
	"rupped-storefront/internal/negotiation"
)

const assistantPrefix = "rupped> "

// streamPrinter renders session snapshots as a growing transcript. Each
// snapshot replaces the reply in progress, so only the new suffix is
// printed when it extends what is already on screen.
type streamPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	seen    int
	partial string
	started bool
}

func newStreamPrinter(w io.Writer) *streamPrinter {
	return &streamPrinter{w: w}
}

func (p *streamPrinter) Observe(snap negotiation.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	last := len(snap.Transcript) - 1
	for i := p.seen; i <= last; i++ {
		msg := snap.Transcript[i]
		done := i < last || !snap.Loading

		if msg.Role == model.RoleAssistant {
			p.write(msg.Content)
			if done {
				fmt.Fprintln(p.w)
			}
		}
		if !done {
			return
		}
		p.seen = i + 1
		p.partial = ""
		p.started = false
	}
}

func (p *streamPrinter) write(content string) {
	switch {
	case !p.started:
		fmt.Fprint(p.w, assistantPrefix+content)
	case strings.HasPrefix(content, p.partial):
		fmt.Fprint(p.w, content[len(p.partial):])
	default:
		// 新快照不是旧内容的延续，整行重打
		fmt.Fprint(p.w, "\n"+assistantPrefix+content)
	}
	p.started = true
	p.partial = content
}

func describeStatus(s *negotiation.Session) string {
	switch s.Status() {
	case negotiation.StatusAccepted:
		if savings := s.Savings(); savings > 0 {
			return fmt.Sprintf("Deal accepted. You save $%.2f.", savings)
		}
		return "Deal accepted."
	case negotiation.StatusRejected:
		return "Offer rejected. Type /new to make another offer."
	default:
		return ""
	}
}
