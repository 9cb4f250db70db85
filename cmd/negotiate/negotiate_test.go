package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rupped-storefront/internal/catalog"
	"rupped-storefront/internal/model"
	"rupped-storefront/internal/negotiation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgs(pairs ...string) []model.NegotiationMessage {
	out := make([]model.NegotiationMessage, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.NegotiationMessage{Role: pairs[i], Content: pairs[i+1]})
	}
	return out
}

func TestStreamPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newStreamPrinter(&buf)

	p.Observe(negotiation.Snapshot{Transcript: msgs("assistant", "Hello.")})
	p.Observe(negotiation.Snapshot{Transcript: msgs("assistant", "Hello.", "user", "hi"), Loading: true})
	p.Observe(negotiation.Snapshot{Transcript: msgs("assistant", "Hello.", "user", "hi", "assistant", "Sure."), Loading: true})
	p.Observe(negotiation.Snapshot{Transcript: msgs("assistant", "Hello.", "user", "hi", "assistant", "Sure. Deal."), Loading: true})
	p.Observe(negotiation.Snapshot{Transcript: msgs("assistant", "Hello.", "user", "hi", "assistant", "Sure. Deal.")})

	assert.Equal(t, "rupped> Hello.\nrupped> Sure. Deal.\n", buf.String())
}

func TestStreamPrinterRewritesDivergentSnapshot(t *testing.T) {
	var buf bytes.Buffer
	p := newStreamPrinter(&buf)

	p.Observe(negotiation.Snapshot{Transcript: msgs("user", "hi", "assistant", "Maybe."), Loading: true})
	p.Observe(negotiation.Snapshot{Transcript: msgs("user", "hi", "assistant", "Actually no.")})

	assert.Equal(t, "rupped> Maybe.\nrupped> Actually no.\n", buf.String())
}

func TestNegotiationContext(t *testing.T) {
	c, err := catalog.Load("")
	require.NoError(t, err)

	nctx, err := negotiationContext(c, "1", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "Summit Explorer Backpack", nctx.ProductName)
	assert.Equal(t, 189.99, nctx.ListPrice)

	nctx, err = negotiationContext(c, "1", "Custom", 120)
	require.NoError(t, err)
	assert.Equal(t, model.NegotiationContext{ProductID: "1", ProductName: "Custom", ListPrice: 120}, nctx)

	_, err = negotiationContext(c, "999", "", 0)
	assert.Error(t, err)
}

func TestRunChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.NegotiateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		last, _ := req.LastUserMessage()
		w.Header().Set("Content-Type", "text/event-stream")
		if strings.Contains(last, "$150.00") {
			_, _ = io.WriteString(w, "data: Sorry, that is too low.\n\n")
			return
		}
		_, _ = io.WriteString(w, "data: Great, we have a deal.\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	nctx := model.NegotiationContext{ProductID: "1", ProductName: "Summit Explorer Backpack", ListPrice: 189.99}
	var out bytes.Buffer
	printer := newStreamPrinter(&out)
	session := negotiation.NewSession(nctx, negotiation.NewHTTPTransport(srv.URL, nil), negotiation.WithObserver(printer.Observe))

	in := strings.NewReader("/offer 10\n/offer 150\n/new\n/offer abc\n/offer $175\n/quit\nignored\n")
	require.NoError(t, runChat(context.Background(), session, in, &out, false))

	text := out.String()
	assert.Contains(t, text, "offer outside the allowed range")
	assert.Contains(t, text, "rupped> Sorry, that is too low.\nOffer rejected. Type /new to make another offer.\n")
	assert.Contains(t, text, "Status: pending\n")
	assert.Contains(t, text, "Usage: /offer <amount>\n")
	assert.Contains(t, text, "rupped> Great, we have a deal.\nDeal accepted. You save $14.99.\n")
	assert.Equal(t, negotiation.StatusAccepted, session.Status())
	assert.Len(t, session.Transcript(), 5)
}
