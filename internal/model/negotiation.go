package model

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// NegotiationMessage is one transcript entry.
type NegotiationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NegotiationContext is fixed for the lifetime of a widget session and sent
// with every exchange.
type NegotiationContext struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	ListPrice   float64 `json:"listPrice"`
}

// NegotiateRequest is the body of POST /api/negotiate, both at the relay and
// at the negotiator.
type NegotiateRequest struct {
	Messages    []NegotiationMessage `json:"messages"`
	ProductID   string               `json:"productId"`
	ProductName string               `json:"productName"`
	ListPrice   float64              `json:"listPrice"`
}

func (r NegotiateRequest) Context() NegotiationContext {
	return NegotiationContext{
		ProductID:   r.ProductID,
		ProductName: r.ProductName,
		ListPrice:   r.ListPrice,
	}
}

// LastUserMessage returns the most recent user turn. ok is false when the
// transcript holds no user message.
func (r NegotiateRequest) LastUserMessage() (string, bool) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content, true
		}
	}
	return "", false
}

// TextResponse is the non-streamed negotiation payload. The relay also uses
// it for its fixed failure message.
type TextResponse struct {
	Text string `json:"text"`
}
