package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"rupped-storefront/internal/metrics"
	"rupped-storefront/internal/model"
	"rupped-storefront/internal/utils"
	"rupped-storefront/pkg/logger"

	"github.com/adhocore/gronx"
)

var ErrNegotiatorStatus = errors.New("negotiator returned non-success status")

// NegotiatorClient calls the negotiator's diagnostic endpoints from the
// storefront.
type NegotiatorClient struct {
	baseURL string
	client  *http.Client
}

func NewNegotiatorClient(baseURL string, client *http.Client) *NegotiatorClient {
	if client == nil {
		client = utils.NewHTTPClient(0)
	}
	return &NegotiatorClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

func (c *NegotiatorClient) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		if e.Error != "" {
			return fmt.Errorf("%w: %d: %s", ErrNegotiatorStatus, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("%w: %d", ErrNegotiatorStatus, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *NegotiatorClient) Health(ctx context.Context) (*model.BackendHealth, error) {
	var h model.BackendHealth
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *NegotiatorClient) Models(ctx context.Context) (*model.ModelList, error) {
	var list model.ModelList
	if err := c.do(ctx, http.MethodGet, "/api/models", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *NegotiatorClient) PullModel(ctx context.Context, name string) (map[string]string, error) {
	path := "/api/pull-model"
	if name != "" {
		path += "?model_name=" + url.QueryEscape(name)
	}
	out := map[string]string{}
	if err := c.do(ctx, http.MethodPost, path, bytes.NewReader([]byte("{}")), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StatusFromHealth maps a negotiator health report onto the console view.
// A nil report means the negotiator itself could not be reached.
func StatusFromHealth(h *model.BackendHealth, checked time.Time) model.SetupStatus {
	if h == nil {
		return model.SetupStatus{
			Backend:     model.ComponentStatus{Status: model.StatusError, Message: "Cannot connect to negotiation backend"},
			Ollama:      model.ComponentStatus{Status: model.StatusUnknown, Message: "Cannot determine Ollama status"},
			Models:      model.ComponentStatus{Status: model.StatusUnknown, Available: []string{}, Message: "Cannot determine model status"},
			LastChecked: checked,
		}
	}

	status := model.SetupStatus{
		Backend:     model.ComponentStatus{Status: model.StatusHealthy, Message: "Negotiation backend is running"},
		LastChecked: checked,
	}

	if h.Ollama == "connected" {
		status.Ollama = model.ComponentStatus{Status: model.StatusHealthy, Message: "Ollama service is running"}
	} else {
		status.Ollama = model.ComponentStatus{Status: model.StatusError, Message: "Ollama service is not running"}
	}

	available := h.Llama == "available"
	status.Models = model.ComponentStatus{Status: model.StatusWarning, Available: []string{}, Message: h.Message}
	if available {
		status.Models.Status = model.StatusHealthy
		status.Models.Available = []string{"llama3"}
	}
	if status.Models.Message == "" {
		if available {
			status.Models.Message = "Llama 3 model is available"
		} else {
			status.Models.Message = "Llama 3 model is not available"
		}
	}
	return status
}

// SetupService caches the negotiator's health for the setup console and runs
// the storefront self checks.
type SetupService struct {
	negotiator   *NegotiatorClient
	cron         string
	probeTimeout time.Duration
	checks       []DiagnosticCheck
	now          func() time.Time

	mu     sync.RWMutex
	status model.SetupStatus
}

// DiagnosticCheck is one named self test. A nil error passes.
type DiagnosticCheck struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

func NewSetupService(negotiator *NegotiatorClient, cron string, probeTimeout time.Duration, checks ...DiagnosticCheck) *SetupService {
	if probeTimeout <= 0 {
		probeTimeout = healthProbeTimeout
	}
	return &SetupService{
		negotiator:   negotiator,
		cron:         cron,
		probeTimeout: probeTimeout,
		checks:       checks,
		now:          time.Now,
		status: model.SetupStatus{
			Backend: model.ComponentStatus{Status: model.StatusUnknown, Message: "Checking status..."},
			Ollama:  model.ComponentStatus{Status: model.StatusUnknown, Message: "Checking status..."},
			Models:  model.ComponentStatus{Status: model.StatusUnknown, Available: []string{}, Message: "Checking status..."},
		},
	}
}

func (s *SetupService) Negotiator() *NegotiatorClient {
	return s.negotiator
}

func (s *SetupService) Status() model.SetupStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Probe refreshes the cached status now.
func (s *SetupService) Probe(ctx context.Context) model.SetupStatus {
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	health, err := s.negotiator.Health(ctx)
	if err != nil {
		logger.Warnf("Negotiator health probe failed: %v", err)
		health = nil
	}

	status := StatusFromHealth(health, s.now())
	metrics.SetupProbes.WithLabelValues(status.Backend.Status).Inc()

	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	return status
}

// Start probes once and then on every tick of the cron expression until ctx
// is done.
func (s *SetupService) Start(ctx context.Context) error {
	if s.cron == "" {
		return nil
	}
	if !gronx.New().IsValid(s.cron) {
		return fmt.Errorf("invalid setup probe cron %q", s.cron)
	}

	go func() {
		s.Probe(ctx)
		for {
			next, err := gronx.NextTickAfter(s.cron, s.now(), false)
			if err != nil {
				logger.Errorf("setup probe next tick failed for %q: %v", s.cron, err)
				select {
				case <-time.After(30 * time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}

			select {
			case <-time.After(time.Until(next)):
				s.Probe(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// RunDiagnostics runs every registered check plus the negotiator health
// check.
func (s *SetupService) RunDiagnostics(ctx context.Context) []model.DiagnosticResult {
	checks := append([]DiagnosticCheck(nil), s.checks...)
	checks = append(checks, DiagnosticCheck{
		Name: "negotiator-health",
		Run: func(ctx context.Context) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
			defer cancel()
			h, err := s.negotiator.Health(ctx)
			if err != nil {
				return "", err
			}
			return "Backend status: " + h.Status, nil
		},
	})

	results := make([]model.DiagnosticResult, 0, len(checks))
	for _, c := range checks {
		msg, err := c.Run(ctx)
		r := model.DiagnosticResult{Name: c.Name, Passed: err == nil, Message: msg}
		if err != nil {
			r.Message = err.Error()
		}
		results = append(results, r)
	}
	return results
}

func CatalogCheck(c *CatalogService) DiagnosticCheck {
	return DiagnosticCheck{
		Name: "catalog-loaded",
		Run: func(ctx context.Context) (string, error) {
			n := c.Catalog().Len()
			if n == 0 {
				return "", errors.New("catalog is empty")
			}
			return fmt.Sprintf("%d products in %d categories", n, len(c.Categories())), nil
		},
	}
}

// CartPricingCheck prices the demo cart without storing it.
func CartPricingCheck(carts *CartService) DiagnosticCheck {
	return DiagnosticCheck{
		Name: "cart-pricing",
		Run: func(ctx context.Context) (string, error) {
			summary := carts.Summarize(&model.Cart{ID: "diagnostic", Items: DemoItems})
			if len(summary.Lines) != len(DemoItems) {
				return "", fmt.Errorf("priced %d of %d demo items", len(summary.Lines), len(DemoItems))
			}
			return fmt.Sprintf("demo cart total $%.2f", summary.Total), nil
		},
	}
}

// NegotiateAPICheck sends a sample negotiation through the relay target and
// expects a success status.
func NegotiateAPICheck(upstreamURL string, client *http.Client) DiagnosticCheck {
	return DiagnosticCheck{
		Name: "negotiate-api",
		Run: func(ctx context.Context) (string, error) {
			payload, _ := json.Marshal(model.NegotiateRequest{
				Messages:    []model.NegotiationMessage{{Role: model.RoleUser, Content: "Hello, I'm interested in this product."}},
				ProductID:   "1",
				ProductName: "Test Product",
				ListPrice:   99.99,
			})
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, upstreamURL, bytes.NewReader(payload))
			if err != nil {
				return "", err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				return "", err
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return "", fmt.Errorf("API error: %d", resp.StatusCode)
			}
			return fmt.Sprintf("API responded with %d", resp.StatusCode), nil
		},
	}
}
