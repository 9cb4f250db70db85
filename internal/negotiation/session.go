package negotiation

import (
	"context"
	"errors"
	"io"
	"sync"

	"rupped-storefront/internal/model"
	"rupped-storefront/internal/utils"
	"rupped-storefront/pkg/logger"
)

// ApologyMessage is appended when an exchange fails for any reason other
// than cancellation.
const ApologyMessage = "I apologize, but I'm having trouble processing your request right now. Please try again later."

// ErrSuperseded is the cancellation cause of an exchange replaced by a newer
// one.
var ErrSuperseded = errors.New("exchange superseded by a newer one")

// Snapshot is a copy of the session state handed to observers.
type Snapshot struct {
	Transcript []model.NegotiationMessage
	Status     DealStatus
	Loading    bool
}

type Option func(*Session)

func WithClassifier(c Classifier) Option {
	return func(s *Session) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithObserver registers fn to receive a snapshot after every state change.
// fn runs on the goroutine that made the change and must not call back into
// the session.
func WithObserver(fn func(Snapshot)) Option {
	return func(s *Session) {
		s.onUpdate = fn
	}
}

// Session holds one negotiation widget's transcript and outcome. Only the
// most recent exchange may write to it; starting a new exchange cancels the
// previous one.
type Session struct {
	nctx       model.NegotiationContext
	transport  Transport
	classifier Classifier
	onUpdate   func(Snapshot)

	mu         sync.Mutex
	transcript []model.NegotiationMessage
	status     DealStatus
	loading    bool
	lastOffer  float64
	hasOffer   bool
	exchange   uint64
	cancel     context.CancelCauseFunc
}

func NewSession(nctx model.NegotiationContext, transport Transport, opts ...Option) *Session {
	s := &Session{
		nctx:       nctx,
		transport:  transport,
		classifier: NewKeywordClassifier(),
		status:     StatusPending,
		transcript: []model.NegotiationMessage{
			{Role: model.RoleAssistant, Content: Greeting(nctx)},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Context() model.NegotiationContext {
	return s.nctx
}

func (s *Session) Transcript() []model.NegotiationMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.NegotiationMessage(nil), s.transcript...)
}

func (s *Session) Status() DealStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Savings is what the accepted offer saves against the list price.
func (s *Session) Savings() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusAccepted || !s.hasOffer {
		return 0
	}
	return s.nctx.ListPrice - s.lastOffer
}

// RequestNewOffer moves a rejected negotiation back to pending. It is a no-op
// in any other state.
func (s *Session) RequestNewOffer() {
	s.mu.Lock()
	changed := s.status == StatusRejected
	if changed {
		s.status = StatusPending
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if changed {
		s.notify(snap)
	}
}

// SubmitOffer sends the synthesized offer message for amount.
func (s *Session) SubmitOffer(ctx context.Context, amount float64) error {
	if err := validateOffer(s.nctx.ListPrice, amount); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastOffer = amount
	s.hasOffer = true
	s.mu.Unlock()

	return s.Send(ctx, OfferMessage(amount))
}

// Cancel aborts the outstanding exchange, if any, without an apology.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel(context.Canceled)
		s.cancel = nil
	}
}

// Send appends text as a user turn and streams the assistant's reply into
// the transcript. It blocks until the exchange finishes, fails, or is
// cancelled. A cancelled exchange returns its cancellation cause and leaves
// the transcript alone.
func (s *Session) Send(ctx context.Context, text string) error {
	exCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel(ErrSuperseded)
	}
	s.exchange++
	ex := &exchange{id: s.exchange, assistantIdx: -1}
	s.cancel = cancel
	s.transcript = append(s.transcript, model.NegotiationMessage{Role: model.RoleUser, Content: text})
	req := model.NegotiateRequest{
		Messages:    append([]model.NegotiationMessage(nil), s.transcript...),
		ProductID:   s.nctx.ProductID,
		ProductName: s.nctx.ProductName,
		ListPrice:   s.nctx.ListPrice,
	}
	s.loading = true
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	body, err := s.transport.Open(exCtx, req)
	if err != nil {
		return s.fail(exCtx, ex, err)
	}
	defer body.Close()

	if err := s.consume(exCtx, ex, body); err != nil {
		return s.fail(exCtx, ex, err)
	}

	s.finish(ex)
	return nil
}

// exchange is the per-request stream state.
type exchange struct {
	id           uint64
	assistantIdx int
	lastPayload  string
	decoder      utils.EventDecoder
}

func (s *Session) consume(ctx context.Context, ex *exchange, body io.Reader) error {
	buf := make([]byte, 4<<10)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			for _, segment := range ex.decoder.Feed(buf[:n]) {
				payload, ok := utils.DataPayload(segment)
				if !ok || payload == utils.DoneMarker || payload == ex.lastPayload {
					continue
				}
				ex.lastPayload = payload
				if !s.applySnapshot(ex, payload) {
					return context.Cause(ctx)
				}
			}
		}
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			return rerr
		}
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
	}
}

// applySnapshot writes payload as the exchange's assistant message. It
// reports false when the exchange is no longer current.
func (s *Session) applySnapshot(ex *exchange, payload string) bool {
	s.mu.Lock()
	if ex.id != s.exchange {
		s.mu.Unlock()
		return false
	}
	if ex.assistantIdx >= 0 {
		s.transcript[ex.assistantIdx].Content = payload
	} else {
		s.transcript = append(s.transcript, model.NegotiationMessage{Role: model.RoleAssistant, Content: payload})
		ex.assistantIdx = len(s.transcript) - 1
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

func (s *Session) finish(ex *exchange) {
	s.mu.Lock()
	if ex.id != s.exchange {
		s.mu.Unlock()
		return
	}
	if ex.assistantIdx >= 0 {
		if status, ok := s.classifier.Classify(s.transcript[ex.assistantIdx].Content); ok {
			s.status = status
		}
	}
	s.loading = false
	s.cancel = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Session) fail(ctx context.Context, ex *exchange, err error) error {
	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		s.mu.Lock()
		if ex.id == s.exchange {
			s.loading = false
			s.cancel = nil
		}
		s.mu.Unlock()
		return cause
	}

	logger.WithFields(logger.Fields{
		"product_id": s.nctx.ProductID,
		"exchange":   ex.id,
	}).Warnf("negotiation exchange failed: %v", err)

	s.mu.Lock()
	if ex.id != s.exchange {
		s.mu.Unlock()
		return ErrSuperseded
	}
	s.transcript = append(s.transcript, model.NegotiationMessage{Role: model.RoleAssistant, Content: ApologyMessage})
	s.loading = false
	s.cancel = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return err
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Transcript: append([]model.NegotiationMessage(nil), s.transcript...),
		Status:     s.status,
		Loading:    s.loading,
	}
}

func (s *Session) notify(snap Snapshot) {
	if s.onUpdate != nil {
		s.onUpdate(snap)
	}
}
