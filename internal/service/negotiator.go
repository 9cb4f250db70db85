package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"rupped-storefront/internal/metrics"
	"rupped-storefront/internal/model"
	"rupped-storefront/pkg/logger"

	"github.com/cloudwego/eino/components/prompt"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

const DefaultSystemPrompt = `You are a friendly AI negotiation assistant for Rupped, a premium outdoor gear company.

Product: {product_name}
List Price: ${list_price}

Your goal is to negotiate with the customer but also maximize profit. You should:
1. Be friendly and professional with a rugged, outdoorsy personality
2. Consider reasonable offers (no more than 20% discount)
3. Explain why you can or cannot accept an offer
4. Emphasize the quality, durability, and lifetime warranty of Rupped products
5. If the customer makes a reasonable offer, accept it and provide next steps
6. If the offer is too low, make a reasonable counter-offer

Keep responses concise and focused on the negotiation.
Respond in 2-3 complete sentences maximum.
Do not use partial sentences or fragments.`

const (
	NoUserMessageReply   = "Hello! I'm the Rupped negotiation assistant. How can I help you today?"
	defaultHistoryWindow = 10
	historyKey           = "history"
)

var ErrNoModel = errors.New("no chat model configured")

type NegotiatorOptions struct {
	Provider      string
	SystemPrompt  string
	HistoryWindow int
}

// Negotiator turns a negotiation request into the assistant's reply. With a
// nil chat model it answers from the discount-band heuristic instead.
type Negotiator struct {
	provider      string
	historyWindow int
	runnable      compose.Runnable[map[string]any, *schema.Message]
}

func NewNegotiator(ctx context.Context, chatModel einoModel.BaseChatModel, opts NegotiatorOptions) (*Negotiator, error) {
	n := &Negotiator{
		provider:      opts.Provider,
		historyWindow: opts.HistoryWindow,
	}
	if n.historyWindow <= 0 {
		n.historyWindow = defaultHistoryWindow
	}
	if chatModel == nil {
		return n, nil
	}

	systemPrompt := opts.SystemPrompt
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}

	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.MessagesPlaceholder(historyKey, false),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.
		AppendChatTemplate(tpl).
		AppendLambda(compose.StreamableLambda(func(ctx context.Context, in []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
			return chatModel.Stream(ctx, in)
		}))

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile negotiation chain: %w", err)
	}
	n.runnable = runnable
	return n, nil
}

func (n *Negotiator) Provider() string {
	return n.provider
}

func (n *Negotiator) Mock() bool {
	return n.runnable == nil
}

// Stream opens the reply stream. An error here means nothing was produced.
func (n *Negotiator) Stream(ctx context.Context, req model.NegotiateRequest) (*schema.StreamReader[*schema.Message], error) {
	if n.runnable == nil {
		return mockStream(MockReply(req)), nil
	}
	return n.runnable.Stream(ctx, n.variables(req))
}

// StreamSnapshots drives Stream and calls emit with the cumulative reply
// every time it ends a sentence, then once more for any unterminated tail.
func (n *Negotiator) StreamSnapshots(ctx context.Context, sr *schema.StreamReader[*schema.Message], emit func(snapshot string) error) error {
	defer sr.Close()

	var snaps SentenceSnapshots
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			metrics.NegotiationStreams.WithLabelValues(n.provider, "error").Inc()
			return err
		}
		if ctx.Err() != nil {
			metrics.NegotiationStreams.WithLabelValues(n.provider, "cancelled").Inc()
			return ctx.Err()
		}
		if msg == nil {
			continue
		}

		if snap, ok := snaps.Add(msg.Content); ok {
			metrics.NegotiationSnapshots.Inc()
			if err := emit(snap); err != nil {
				return err
			}
		}
	}

	if snap, ok := snaps.Final(); ok {
		metrics.NegotiationSnapshots.Inc()
		if err := emit(snap); err != nil {
			return err
		}
	}

	metrics.NegotiationStreams.WithLabelValues(n.provider, "ok").Inc()
	return nil
}

// Reply produces the whole reply at once.
func (n *Negotiator) Reply(ctx context.Context, req model.NegotiateRequest) (string, error) {
	if _, ok := req.LastUserMessage(); !ok {
		return NoUserMessageReply, nil
	}
	if n.runnable == nil {
		return MockReply(req), nil
	}

	msg, err := n.runnable.Invoke(ctx, n.variables(req))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(msg.Content), nil
}

func (n *Negotiator) variables(req model.NegotiateRequest) map[string]any {
	history := req.Messages
	if len(history) > n.historyWindow {
		history = history[len(history)-n.historyWindow:]
	}

	msgs := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := schema.User
		if m.Role == model.RoleAssistant {
			role = schema.Assistant
		}
		msgs = append(msgs, &schema.Message{Role: role, Content: m.Content})
	}

	logger.WithFields(logger.Fields{
		"product_id": req.ProductID,
		"history":    len(msgs),
		"provider":   n.provider,
	}).Debug("building negotiation prompt")

	return map[string]any{
		"product_name": req.ProductName,
		"list_price":   strconv.FormatFloat(req.ListPrice, 'f', 2, 64),
		historyKey:     msgs,
	}
}

// SentenceSnapshots accumulates streamed chunks and yields the reply so far
// whenever it ends a sentence.
type SentenceSnapshots struct {
	buf  strings.Builder
	last string
}

func (s *SentenceSnapshots) Add(chunk string) (string, bool) {
	s.buf.WriteString(chunk)
	current := strings.TrimSpace(s.buf.String())
	if current == "" || current == s.last || !endsSentence(current) {
		return "", false
	}
	s.last = current
	return current, true
}

// Final returns the reply when it changed since the last snapshot.
func (s *SentenceSnapshots) Final() (string, bool) {
	current := strings.TrimSpace(s.buf.String())
	if current == "" || current == s.last {
		return "", false
	}
	s.last = current
	return current, true
}

func endsSentence(s string) bool {
	switch s[len(s)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

var offerPattern = regexp.MustCompile(`\$?(\d+(\.\d+)?)`)

// MockReply answers from how far the last offered amount sits below list:
// up to 15% off is accepted, up to 25% gets a counter at 85% of list, and
// anything lower a counter at 80%.
func MockReply(req model.NegotiateRequest) string {
	last, _ := req.LastUserMessage()
	match := offerPattern.FindStringSubmatch(last)
	if match == nil || req.ListPrice <= 0 {
		return fmt.Sprintf("Thanks for your interest in the %s! The list price is $%.2f, but I'm authorized to offer some flexibility. Would you like to make an offer?",
			req.ProductName, req.ListPrice)
	}

	offer, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return fmt.Sprintf("Thanks for your interest in the %s! The list price is $%.2f, but I'm authorized to offer some flexibility. Would you like to make an offer?",
			req.ProductName, req.ListPrice)
	}

	discount := (req.ListPrice - offer) * 100 / req.ListPrice
	switch {
	case discount <= 15:
		return fmt.Sprintf("That's a fair offer! I can accept $%.2f for the %s. Would you like to proceed with the purchase?",
			offer, req.ProductName)
	case discount <= 25:
		return fmt.Sprintf("I appreciate your offer of $%.2f, but that's a bit low for our premium %s. I can go as low as $%.2f, which is 15%% off the list price. Our gear is built to last a lifetime, and we stand behind it with our warranty.",
			offer, req.ProductName, req.ListPrice*0.85)
	default:
		return fmt.Sprintf("I understand you're looking for a good deal, but $%.2f is too low for the %s. The quality and durability of our gear justifies the price. The best I can do is $%.2f, which is already a significant 20%% discount.",
			offer, req.ProductName, req.ListPrice*0.8)
	}
}

// mockStream splits text into word chunks so the mock reply exercises the
// same incremental path as a real model.
func mockStream(text string) *schema.StreamReader[*schema.Message] {
	words := strings.SplitAfter(text, " ")
	chunks := make([]*schema.Message, 0, len(words))
	for _, w := range words {
		chunks = append(chunks, &schema.Message{Role: schema.Assistant, Content: w})
	}
	return schema.StreamReaderFromArray(chunks)
}
