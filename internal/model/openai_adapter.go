package model

import (
	"context"
	"errors"
	"fmt"
	"io"

	"rupped-storefront/internal/config"
	"rupped-storefront/pkg/logger"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openai "github.com/sashabaranov/go-openai"
)

// openaiChatModel adapts go-openai to eino's BaseChatModel. It backs both the
// openai provider and Ollama's OpenAI compatible endpoint.
type openaiChatModel struct {
	client      *openai.Client
	model       string
	temperature float32
}

func newOpenAIChatModel(ctx context.Context, cfg config.OpenAIConfig, temperature float32) (*openaiChatModel, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai model name is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &openaiChatModel{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: temperature,
	}, nil
}

func (m *openaiChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...einoModel.Option) (*schema.Message, error) {
	openaiMessages := m.convertMessages(messages)
	logger.Debugf("openai generate: model=%s messages=%d", m.model, len(openaiMessages))

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    openaiMessages,
		Temperature: m.temperature,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from model %s", m.model)
	}

	return &schema.Message{
		Role:    schema.Assistant,
		Content: resp.Choices[0].Message.Content,
	}, nil
}

func (m *openaiChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	openaiMessages := m.convertMessages(messages)
	logger.Debugf("openai stream: model=%s messages=%d", m.model, len(openaiMessages))

	stream, err := m.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    openaiMessages,
		Temperature: m.temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}

	reader, writer := schema.Pipe[*schema.Message](100)

	go func() {
		defer writer.Close()
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				// 把错误交给下游，由调用方决定如何结束流
				writer.Send(nil, err)
				return
			}

			if len(response.Choices) > 0 && response.Choices[0].Delta.Content != "" {
				closed := writer.Send(&schema.Message{
					Role:    schema.Assistant,
					Content: response.Choices[0].Delta.Content,
				}, nil)
				if closed {
					return
				}
			}
		}
	}()

	return reader, nil
}

func (m *openaiChatModel) convertMessages(messages []*schema.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case schema.Assistant:
			role = openai.ChatMessageRoleAssistant
		case schema.System:
			role = openai.ChatMessageRoleSystem
		}

		// 空的 assistant 消息会被部分兼容接口拒绝
		if msg.Content == "" && role == openai.ChatMessageRoleAssistant {
			continue
		}

		result = append(result, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return result
}
