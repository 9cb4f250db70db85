package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rupped-storefront/internal/config"
	"rupped-storefront/internal/model"
	"rupped-storefront/internal/negotiation"
	"rupped-storefront/internal/service"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenModel struct{}

func (brokenModel) Generate(ctx context.Context, in []*schema.Message, opts ...einoModel.Option) (*schema.Message, error) {
	return nil, errors.New("model offline")
}

func (brokenModel) Stream(ctx context.Context, in []*schema.Message, opts ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("model offline")
}

func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = io.WriteString(w, `{"models":[{"name":"llama3.2:latest","size":2019393189}]}`)
		case "/api/pull":
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req["name"] == "missing" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = io.WriteString(w, `{"status":"success"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newBackend(t *testing.T, chatModel einoModel.BaseChatModel, ollamaURL string) *gin.Engine {
	t.Helper()
	n, err := service.NewNegotiator(context.Background(), chatModel, service.NegotiatorOptions{Provider: "test"})
	require.NoError(t, err)

	ollama := service.NewOllamaClient(config.OllamaConfig{APIURL: ollamaURL + "/api", Model: "llama3.2", PullTimeout: time.Second})

	r := gin.New()
	RegisterNegotiator(r, NewBackendHandler(n, ollama))
	return r
}

const acceptedReply = "That's a fair offer! I can accept $170.00 for the Summit Explorer Backpack. Would you like to proceed with the purchase?"

func TestBackendRoot(t *testing.T) {
	w := do(newBackend(t, nil, "http://127.0.0.1:1"), http.MethodGet, "/", "")
	assert.JSONEq(t, `{"message":"Rupped AI Negotiation API is running."}`, w.Body.String())
}

func TestBackendNegotiateStreamsSnapshots(t *testing.T) {
	w := do(newBackend(t, nil, "http://127.0.0.1:1"), http.MethodPost, "/api/negotiate", negotiateBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	want := "data: That's a fair offer!\n\n" +
		"data: That's a fair offer! I can accept $170.00 for the Summit Explorer Backpack.\n\n" +
		"data: " + acceptedReply + "\n\n" +
		"data: [DONE]\n\n"
	assert.Equal(t, want, w.Body.String())
}

func TestBackendNegotiateModelFailure(t *testing.T) {
	r := newBackend(t, brokenModel{}, "http://127.0.0.1:1")

	w := do(r, http.MethodPost, "/api/negotiate", negotiateBody)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "model offline")

	w = do(r, http.MethodPost, "/api/negotiate/non-streaming", negotiateBody)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "model offline")

	w = do(r, http.MethodPost, "/api/negotiate", `{"messages":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBackendNonStreamingAndMock(t *testing.T) {
	r := newBackend(t, nil, "http://127.0.0.1:1")

	w := do(r, http.MethodPost, "/api/negotiate/non-streaming", negotiateBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, acceptedReply, decode[model.TextResponse](t, w).Text)

	w = do(r, http.MethodPost, "/api/negotiate/non-streaming", `{"messages":[],"productId":"1","productName":"Summit Explorer Backpack","listPrice":189.99}`)
	assert.Equal(t, service.NoUserMessageReply, decode[model.TextResponse](t, w).Text)

	w = do(r, http.MethodPost, "/api/negotiate/mock", `{"messages":[{"role":"user","content":"How about $100?"}],"productId":"1","productName":"Summit Explorer Backpack","listPrice":189.99}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[model.TextResponse](t, w).Text, "The best I can do is $151.99")
}

func TestBackendOllamaEndpoints(t *testing.T) {
	r := newBackend(t, nil, fakeOllama(t).URL)

	w := do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.BackendHealth{Status: model.StatusHealthy, Ollama: "connected", Llama: "available"}, decode[model.BackendHealth](t, w))

	w = do(r, http.MethodGet, "/api/models", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[model.ModelList](t, w)
	require.Len(t, list.Models, 1)
	assert.Equal(t, "2.0 GB", list.Models[0].SizeHuman)

	w = do(r, http.MethodPost, "/api/pull-model?model_name=llama3.2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","message":"Model llama3.2 pulled successfully"}`, w.Body.String())

	w = do(r, http.MethodPost, "/api/pull-model?model_name=missing", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestBackendHealthWithoutOllama(t *testing.T) {
	w := do(newBackend(t, nil, "http://127.0.0.1:1"), http.MethodGet, "/health", "")
	h := decode[model.BackendHealth](t, w)
	assert.Equal(t, model.StatusDegraded, h.Status)
	assert.Equal(t, "disconnected", h.Ollama)

	w = do(newBackend(t, nil, "http://127.0.0.1:1"), http.MethodGet, "/api/models", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// TestNegotiationEndToEnd drives a client session through the storefront
// relay into the negotiator running the heuristic model.
func TestNegotiationEndToEnd(t *testing.T) {
	backend := httptest.NewServer(newBackend(t, nil, "http://127.0.0.1:1"))
	t.Cleanup(backend.Close)

	storefront := httptest.NewServer(newStorefront(t, backend.URL, nil))
	t.Cleanup(storefront.Close)

	nctx := model.NegotiationContext{ProductID: "1", ProductName: "Summit Explorer Backpack", ListPrice: 189.99}
	var updates int
	s := negotiation.NewSession(nctx, negotiation.NewHTTPTransport(storefront.URL+"/api/negotiate", nil),
		negotiation.WithObserver(func(negotiation.Snapshot) { updates++ }))

	require.NoError(t, s.SubmitOffer(context.Background(), 170))

	transcript := s.Transcript()
	require.Len(t, transcript, 3)
	assert.Equal(t, "I'd like to offer $170.00 for this item.", transcript[1].Content)
	assert.Equal(t, acceptedReply, transcript[2].Content)
	assert.Equal(t, negotiation.StatusAccepted, s.Status())
	assert.InDelta(t, 19.99, s.Savings(), 0.001)
	assert.False(t, s.Loading())
	// user turn, three snapshots and completion
	assert.Equal(t, 5, updates)
}

func TestNegotiationEndToEndBackendDown(t *testing.T) {
	storefront := httptest.NewServer(newStorefront(t, "http://127.0.0.1:1", nil))
	t.Cleanup(storefront.Close)

	nctx := model.NegotiationContext{ProductID: "1", ProductName: "Summit Explorer Backpack", ListPrice: 189.99}
	s := negotiation.NewSession(nctx, negotiation.NewHTTPTransport(storefront.URL+"/api/negotiate", nil))

	err := s.Send(context.Background(), "Hello")
	var statusErr *negotiation.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)

	transcript := s.Transcript()
	assert.Equal(t, negotiation.ApologyMessage, transcript[len(transcript)-1].Content)
	assert.Equal(t, negotiation.StatusPending, s.Status())
}
