package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rupped-storefront/internal/catalog"
	"rupped-storefront/internal/middleware"
	"rupped-storefront/internal/model"
	"rupped-storefront/internal/relay"
	"rupped-storefront/internal/service"
	"rupped-storefront/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const upstreamStream = "data: Welcome back.\n\ndata: Welcome back. I can do $170.00 on that pack.\n\ndata: [DONE]\n\n"

// fakeBackend stands in for the negotiator process.
func fakeBackend(t *testing.T, negotiateStatus int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/negotiate":
			if negotiateStatus != http.StatusOK {
				w.WriteHeader(negotiateStatus)
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, upstreamStream)
		case "/health":
			_ = json.NewEncoder(w).Encode(model.BackendHealth{Status: "healthy", Ollama: "connected", Llama: "available"})
		case "/api/models":
			_ = json.NewEncoder(w).Encode(model.ModelList{Models: []model.ModelInfo{{Name: "llama3.2:latest", SizeHuman: "2.0 GB"}}})
		case "/api/pull-model":
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "success", "message": "Model " + r.URL.Query().Get("model_name") + " pulled successfully"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newStorefront(t *testing.T, backendURL string, pullLimit gin.HandlerFunc) *gin.Engine {
	t.Helper()

	cat, err := catalog.Load("")
	require.NoError(t, err)

	catalogSvc := service.NewCatalogService(cat)
	carts := service.NewCartService(storage.NewMemoryStorage(), cat, true, time.Hour)
	client := &http.Client{Timeout: 2 * time.Second}
	setup := service.NewSetupService(
		service.NewNegotiatorClient(backendURL, client),
		"",
		time.Second,
		service.CatalogCheck(catalogSvc),
		service.CartPricingCheck(carts),
		service.NegotiateAPICheck(backendURL+"/api/negotiate", client),
	)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger())
	RegisterStorefront(r, Storefront{
		Negotiate: NewNegotiateHandler(relay.New(backendURL+"/api/negotiate", client)),
		Catalog:   NewCatalogHandler(catalogSvc),
		Cart:      NewCartHandler(carts),
		Setup:     NewSetupHandler(setup),
	}, pullLimit)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

const negotiateBody = `{"messages":[{"role":"user","content":"I'd like to offer $170.00 for this item."}],"productId":"1","productName":"Summit Explorer Backpack","listPrice":189.99}`

func TestRelayStreamsUpstreamVerbatim(t *testing.T) {
	r := newStorefront(t, fakeBackend(t, http.StatusOK).URL, nil)

	w := do(r, http.MethodPost, "/api/negotiate", negotiateBody)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", w.Header().Get("Connection"))
	assert.Equal(t, upstreamStream, w.Body.String())
	assert.True(t, w.Flushed)
}

func TestRelayFailures(t *testing.T) {
	unavailable := `{"text":"I'm sorry, the negotiation service is currently unavailable. Please try again later."}`

	tests := []struct {
		name    string
		backend string
		body    string
	}{
		{"upstream 500", fakeBackend(t, http.StatusInternalServerError).URL, negotiateBody},
		{"upstream 404", fakeBackend(t, http.StatusNotFound).URL, negotiateBody},
		{"undecodable body", fakeBackend(t, http.StatusOK).URL, `{"messages":`},
		{"connection refused", "http://127.0.0.1:1", negotiateBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newStorefront(t, tt.backend, nil), http.MethodPost, "/api/negotiate", tt.body)
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.JSONEq(t, unavailable, w.Body.String())
		})
	}
}

func TestCatalogEndpoints(t *testing.T) {
	r := newStorefront(t, fakeBackend(t, http.StatusOK).URL, nil)

	w := do(r, http.MethodGet, "/api/products?sort=price-low", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[model.ProductListResponse](t, w)
	assert.Equal(t, 12, list.Total)
	assert.Equal(t, "6", list.Products[0].ID)
	assert.Equal(t, "3", list.Products[len(list.Products)-1].ID)

	w = do(r, http.MethodGet, "/api/products?category=accessories&min_price=40", "")
	list = decode[model.ProductListResponse](t, w)
	assert.Equal(t, 2, list.Total)

	w = do(r, http.MethodGet, "/api/products?min_price=cheap", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/products/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[model.ProductDetail](t, w)
	assert.Equal(t, "Summit Explorer Backpack", detail.Product.Name)
	assert.LessOrEqual(t, len(detail.Related), 3)
	for _, p := range detail.Related {
		assert.Equal(t, "backpacks", p.Category)
		assert.NotEqual(t, "1", p.ID)
	}

	w = do(r, http.MethodGet, "/api/products/999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Product not found"}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, w.Code)
	cats := decode[struct {
		Categories []model.CategoryCount `json:"categories"`
	}](t, w)
	assert.Len(t, cats.Categories, 6)

	w = do(r, http.MethodGet, "/api/categories/accessories?sort=price-high", "")
	list = decode[model.ProductListResponse](t, w)
	assert.Equal(t, []string{"8", "11", "6"}, []string{list.Products[0].ID, list.Products[1].ID, list.Products[2].ID})

	// 未知分类回退到全部商品
	w = do(r, http.MethodGet, "/api/categories/kayaks", "")
	list = decode[model.ProductListResponse](t, w)
	assert.Equal(t, 12, list.Total)
}

func TestCartEndpoints(t *testing.T) {
	r := newStorefront(t, fakeBackend(t, http.StatusOK).URL, nil)

	w := do(r, http.MethodPost, "/api/cart", "")
	require.Equal(t, http.StatusCreated, w.Code)
	cart := decode[model.CartSummary](t, w)
	require.NotEmpty(t, cart.CartID)
	assert.Len(t, cart.Lines, 3)
	assert.InDelta(t, 415.77, cart.Total, 0.001)

	base := "/api/cart/" + cart.CartID

	w = do(r, http.MethodPost, base+"/promo", `{"code":"SAVE50"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid promo code"}`, w.Body.String())

	w = do(r, http.MethodPost, base+"/promo", `{"code":"RUPPED10"}`)
	require.Equal(t, http.StatusOK, w.Code)
	cart = decode[model.CartSummary](t, w)
	assert.True(t, cart.PromoApplied)
	assert.InDelta(t, 374.19, cart.Total, 0.001)

	w = do(r, http.MethodPut, base+"/items/6", `{"quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, base+"/items/6", `{"quantity":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	cart = decode[model.CartSummary](t, w)
	assert.Equal(t, 4, cart.ItemCount)

	w = do(r, http.MethodDelete, base+"/items/4", "")
	require.Equal(t, http.StatusOK, w.Code)
	cart = decode[model.CartSummary](t, w)
	assert.Len(t, cart.Lines, 2)

	w = do(r, http.MethodDelete, base+"/items/4", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPut, base+"/items/999", `{"quantity":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/cart/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Cart not found"}`, w.Body.String())

	w = do(r, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, cart, decode[model.CartSummary](t, w))
}

func TestSetupEndpoints(t *testing.T) {
	r := newStorefront(t, fakeBackend(t, http.StatusOK).URL, middleware.RateLimit(middleware.NewLimiterPool(1, 1)))

	w := do(r, http.MethodGet, "/api/setup/status", "")
	status := decode[model.SetupStatus](t, w)
	assert.Equal(t, model.StatusUnknown, status.Backend.Status)

	w = do(r, http.MethodPost, "/api/setup/refresh", "")
	status = decode[model.SetupStatus](t, w)
	assert.Equal(t, model.StatusHealthy, status.Backend.Status)
	assert.Equal(t, model.StatusHealthy, status.Ollama.Status)
	assert.Equal(t, []string{"llama3"}, status.Models.Available)

	w = do(r, http.MethodGet, "/api/setup/status", "")
	assert.Equal(t, status.Backend, decode[model.SetupStatus](t, w).Backend)

	w = do(r, http.MethodGet, "/api/setup/models", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "llama3.2:latest", decode[model.ModelList](t, w).Models[0].Name)

	w = do(r, http.MethodPost, "/api/setup/pull-model?model_name=llama3.2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", decode[map[string]string](t, w)["status"])

	w = do(r, http.MethodPost, "/api/setup/pull-model?model_name=llama3.2", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = do(r, http.MethodGet, "/api/debug/tests", "")
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[struct {
		Passed  bool                     `json:"passed"`
		Results []model.DiagnosticResult `json:"results"`
	}](t, w)
	assert.True(t, report.Passed)
	names := make([]string, 0, len(report.Results))
	for _, res := range report.Results {
		names = append(names, res.Name)
	}
	assert.Equal(t, []string{"catalog-loaded", "cart-pricing", "negotiate-api", "negotiator-health"}, names)
}

func TestSetupEndpointsBackendDown(t *testing.T) {
	r := newStorefront(t, "http://127.0.0.1:1", nil)

	w := do(r, http.MethodPost, "/api/setup/refresh", "")
	status := decode[model.SetupStatus](t, w)
	assert.Equal(t, model.StatusError, status.Backend.Status)

	w = do(r, http.MethodGet, "/api/setup/models", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = do(r, http.MethodGet, "/api/debug/tests", "")
	assert.False(t, decode[map[string]any](t, w)["passed"].(bool))
}

func TestHealth(t *testing.T) {
	r := newStorefront(t, "http://127.0.0.1:1", nil)
	w := do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.Contains(w.Body.Bytes(), []byte(`"status":"ok"`)))
}
