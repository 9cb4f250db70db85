package negotiation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"rupped-storefront/internal/model"
)

// Transport opens one streamed exchange. Implementations must abort the
// stream when ctx is cancelled.
type Transport interface {
	Open(ctx context.Context, req model.NegotiateRequest) (io.ReadCloser, error)
}

// StatusError is returned for non-2xx relay responses. Text carries the
// relay's user-facing message when the body had one.
type StatusError struct {
	Code int
	Text string
}

func (e *StatusError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("negotiation relay returned %d: %s", e.Code, e.Text)
	}
	return fmt.Sprintf("negotiation relay returned %d", e.Code)
}

// HTTPTransport posts exchanges to the storefront relay endpoint.
type HTTPTransport struct {
	URL    string
	Client *http.Client
}

func NewHTTPTransport(url string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{URL: url, Client: client}
}

func (t *HTTPTransport) Open(ctx context.Context, req model.NegotiateRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode negotiation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := t.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		statusErr := &StatusError{Code: resp.StatusCode}
		var body model.TextResponse
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body) == nil {
			statusErr.Text = body.Text
		}
		return nil, statusErr
	}

	return resp.Body, nil
}
