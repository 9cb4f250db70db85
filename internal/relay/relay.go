package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"rupped-storefront/internal/metrics"
	"rupped-storefront/internal/model"
	"rupped-storefront/pkg/logger"
)

// UnavailableMessage is the only failure text callers ever see, whatever the
// cause.
const UnavailableMessage = "I'm sorry, the negotiation service is currently unavailable. Please try again later."

var (
	ErrInvalidRequest  = errors.New("invalid negotiation request")
	ErrUpstreamStatus  = errors.New("negotiation upstream returned non-success status")
	ErrUpstreamFailure = errors.New("negotiation upstream unreachable")
)

// Relay forwards negotiation requests to the negotiator and hands back its
// event stream untouched. It holds no per-request state.
type Relay struct {
	upstreamURL string
	client      *http.Client
}

func New(upstreamURL string, client *http.Client) *Relay {
	if client == nil {
		client = http.DefaultClient
	}
	return &Relay{
		upstreamURL: upstreamURL,
		client:      client,
	}
}

func (r *Relay) UpstreamURL() string {
	return r.upstreamURL
}

// Open checks that body decodes as a negotiation request and posts the
// original bytes upstream. On success the caller owns the returned body and
// must close it.
func (r *Relay) Open(ctx context.Context, body []byte) (io.ReadCloser, error) {
	var req model.NegotiateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.upstreamURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	logger.WithFields(logger.Fields{
		"product_id": req.ProductID,
		"messages":   len(req.Messages),
	}).Debug("negotiation relay opened upstream stream")

	return resp.Body, nil
}

// Passthrough copies src to dst chunk by chunk, calling flush after every
// write so the caller sees each chunk as soon as it arrives. It returns the
// number of bytes written.
func Passthrough(dst io.Writer, flush func(), src io.Reader) (written int64, err error) {
	defer func() { metrics.RelayBytes.Add(float64(written)) }()

	buf := make([]byte, 32<<10)

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
			if wn != n {
				return written, io.ErrShortWrite
			}
			if flush != nil {
				flush()
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
