package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rupped-storefront/internal/config"
	"rupped-storefront/internal/model"
	"rupped-storefront/internal/utils"
	"rupped-storefront/pkg/logger"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

var errOllamaStatus = errors.New("unexpected ollama status")

const (
	healthProbeTimeout = 2 * time.Second
	listModelsTimeout  = 5 * time.Second
)

// OllamaClient talks to Ollama's native API for health, model listing and
// pulls. Chat completions go through the chat model factory instead.
type OllamaClient struct {
	apiURL      string
	model       string
	pullTimeout time.Duration
	client      *http.Client
}

func NewOllamaClient(cfg config.OllamaConfig) *OllamaClient {
	pullTimeout := cfg.PullTimeout
	if pullTimeout <= 0 {
		pullTimeout = 60 * time.Second
	}
	return &OllamaClient{
		apiURL:      strings.TrimSuffix(cfg.APIURL, "/"),
		model:       cfg.Model,
		pullTimeout: pullTimeout,
		client:      utils.NewHTTPClient(0),
	}
}

func (c *OllamaClient) Model() string {
	return c.model
}

type ollamaTag struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

type ollamaTags struct {
	Models []ollamaTag `json:"models"`
}

func (c *OllamaClient) tags(ctx context.Context, timeout time.Duration) (*ollamaTags, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/tags", nil)
	if err != nil {
		return nil, errors.Wrap(err, "build ollama tags request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "ollama tags request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errOllamaStatus, "tags returned %d", resp.StatusCode)
	}

	var tags ollamaTags
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, errors.Wrap(err, "decode ollama tags")
	}
	return &tags, nil
}

// Health reports whether Ollama is reachable and has the configured model.
// It never fails; problems are described in the result.
func (c *OllamaClient) Health(ctx context.Context) model.BackendHealth {
	tags, err := c.tags(ctx, healthProbeTimeout)
	if err != nil {
		if errors.Cause(err) == errOllamaStatus {
			return model.BackendHealth{
				Status: model.StatusDegraded,
				Ollama: "connected",
				Error:  "Failed to list models",
			}
		}
		logger.Warnf("Ollama health check failed: %v", err)
		return model.BackendHealth{
			Status:  model.StatusDegraded,
			Ollama:  "disconnected",
			Message: "Ollama not available. Make sure Ollama is running with 'ollama serve'",
		}
	}

	family := strings.SplitN(c.model, ":", 2)[0]
	for _, m := range tags.Models {
		if strings.Contains(m.Name, family) {
			return model.BackendHealth{
				Status: model.StatusHealthy,
				Ollama: "connected",
				Llama:  "available",
			}
		}
	}

	return model.BackendHealth{
		Status:  model.StatusDegraded,
		Ollama:  "connected",
		Llama:   "not found",
		Message: fmt.Sprintf("Llama 3 model not found. Run 'ollama pull %s'", c.model),
	}
}

func (c *OllamaClient) ListModels(ctx context.Context) (*model.ModelList, error) {
	tags, err := c.tags(ctx, listModelsTimeout)
	if err != nil {
		return nil, err
	}

	list := &model.ModelList{Models: make([]model.ModelInfo, 0, len(tags.Models))}
	for _, t := range tags.Models {
		list.Models = append(list.Models, model.ModelInfo{
			Name:       t.Name,
			Size:       t.Size,
			SizeHuman:  humanize.Bytes(uint64(t.Size)),
			ModifiedAt: t.ModifiedAt,
		})
	}
	return list, nil
}

// PullModel asks Ollama to download name and waits for it to finish, up to
// the pull timeout. An empty name pulls the configured model.
func (c *OllamaClient) PullModel(ctx context.Context, name string) (string, error) {
	if name == "" {
		name = c.model
	}

	ctx, cancel := context.WithTimeout(ctx, c.pullTimeout)
	defer cancel()

	body, _ := json.Marshal(map[string]any{"name": name, "stream": false})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/pull", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build ollama pull request")
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "pull model %s", name)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", errors.Wrapf(errOllamaStatus, "pull of %s returned %d", name, resp.StatusCode)
	}

	logger.Infof("Pulled model %s in %s", name, humanize.RelTime(started, time.Now(), "", ""))
	return name, nil
}
