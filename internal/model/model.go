package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"rupped-storefront/internal/config"
	"rupped-storefront/pkg/logger"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	einoModel "github.com/cloudwego/eino/components/model"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderDoubao = "doubao"
	ProviderQwen   = "qwen"
	ProviderMock   = "mock"
)

// NewChatModel builds the negotiator's chat model for the configured
// provider. The mock provider has no model and returns nil.
func NewChatModel(ctx context.Context, cfg *config.Config) (einoModel.BaseChatModel, error) {
	switch cfg.Model.Provider {
	case ProviderOllama, "":
		return createOllamaModel(ctx, cfg.Ollama, cfg.Negotiator.Temperature)
	case ProviderOpenAI:
		return createOpenAIModel(ctx, cfg.OpenAI, cfg.Negotiator.Temperature)
	case ProviderDoubao:
		return createDoubaoModel(ctx, cfg.Doubao)
	case ProviderQwen:
		return createQwenModel(ctx, cfg.Qwen)
	case ProviderMock:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.Model.Provider)
	}
}

// Ollama serves an OpenAI compatible API under /v1 next to its native /api.
func ollamaCompatURL(apiURL string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(apiURL, "/"), "/api")
	return base + "/v1"
}

func createOllamaModel(ctx context.Context, cfg config.OllamaConfig, temperature float32) (einoModel.BaseChatModel, error) {
	logger.Infof("Using Ollama model: %s, API: %s", cfg.Model, cfg.APIURL)

	return newOpenAIChatModel(ctx, config.OpenAIConfig{
		APIKey:  "ollama",
		BaseURL: ollamaCompatURL(cfg.APIURL),
		Model:   cfg.Model,
	}, temperature)
}

func createOpenAIModel(ctx context.Context, cfg config.OpenAIConfig, temperature float32) (einoModel.BaseChatModel, error) {
	logger.Infof("Using OpenAI model: %s", cfg.Model)
	return newOpenAIChatModel(ctx, cfg, temperature)
}

func createDoubaoModel(ctx context.Context, cfg config.DoubaoConfig) (einoModel.BaseChatModel, error) {
	logger.Infof("Using Doubao API key: %s, model: %s", maskKey(cfg.APIKey), cfg.Model)

	arkCfg := &ark.ChatModelConfig{
		APIKey: cfg.APIKey,
		Model:  cfg.Model,
		CustomHeader: map[string]string{
			"X-Ark-Thinking-Mode": "disable",
		},
	}
	if cfg.BaseURL != "" {
		arkCfg.BaseURL = cfg.BaseURL
	}
	if cfg.MaxTokens > 0 {
		arkCfg.MaxTokens = &cfg.MaxTokens
	}
	if cfg.Temperature > 0 {
		arkCfg.Temperature = &cfg.Temperature
	}
	if cfg.Timeout > 0 {
		arkCfg.Timeout = &cfg.Timeout
	}

	chatModel, err := ark.NewChatModel(ctx, arkCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Doubao model: %w", err)
	}
	return chatModel, nil
}

func createQwenModel(ctx context.Context, cfg config.QwenConfig) (einoModel.BaseChatModel, error) {
	logger.Infof("Using Qwen model: %s, BaseURL: %s, API key: %s", cfg.Model, cfg.BaseURL, maskKey(cfg.APIKey))

	httpClient := &http.Client{
		Transport: NewDebugTransport(nil, cfg.DebugRequest),
		Timeout:   cfg.Timeout,
	}

	chatModel, err := qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   &cfg.MaxTokens,
		Temperature: &cfg.Temperature,
		TopP:        &cfg.TopP,
		Timeout:     cfg.Timeout,
		HTTPClient:  httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qwen model: %w", err)
	}
	return chatModel, nil
}

func maskKey(key string) string {
	if len(key) > 10 {
		return key[:10] + "..."
	}
	if key == "" {
		return "(empty)"
	}
	return "***"
}

// DebugTransport logs outgoing POST bodies when enabled. Sensitive headers
// are redacted.
type DebugTransport struct {
	base         http.RoundTripper
	debugEnabled bool
}

func NewDebugTransport(base http.RoundTripper, debugEnabled bool) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DebugTransport{
		base:         base,
		debugEnabled: debugEnabled,
	}
}

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.debugEnabled && req.Method == http.MethodPost {
		t.logRequest(req)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil && t.debugEnabled {
		logger.Errorf("[model debug] request failed: %v", err)
	}
	return resp, err
}

func (t *DebugTransport) logRequest(req *http.Request) {
	entry := logger.WithFields(logger.Fields{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	headers := make([]string, 0, len(req.Header))
	for name, values := range req.Header {
		if isSensitiveHeader(name) {
			headers = append(headers, name+": [REDACTED]")
			continue
		}
		headers = append(headers, name+": "+strings.Join(values, ", "))
	}
	entry = entry.WithField("headers", headers)

	if req.Body != nil {
		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			entry.Errorf("[model debug] failed to read request body: %v", err)
			return
		}
		// 恢复请求体，以免影响实际请求
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		entry = entry.WithField("body_size", len(bodyBytes))
		if len(bodyBytes) > 0 {
			entry = entry.WithField("body", string(bodyBytes))
		}
	}

	entry.Info("[model debug] outgoing request")
}

func isSensitiveHeader(name string) bool {
	for _, sensitive := range []string{"authorization", "x-api-key", "x-auth-token", "cookie"} {
		if strings.EqualFold(name, sensitive) {
			return true
		}
	}
	return false
}
