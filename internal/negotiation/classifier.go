package negotiation

import "strings"

// Classifier decides the deal outcome from a finished assistant message.
// ok is false when the message says nothing about the outcome.
type Classifier interface {
	Classify(reply string) (status DealStatus, ok bool)
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(reply string) (DealStatus, bool)

func (f ClassifierFunc) Classify(reply string) (DealStatus, bool) {
	return f(reply)
}

var (
	DefaultAcceptWords = []string{"accept", "deal", "agreed"}
	DefaultRejectWords = []string{"cannot", "sorry", "too low"}
)

// KeywordClassifier matches case-insensitive substrings. Acceptance words
// are checked first, so "it's a deal, sorry for the wait" is accepted.
type KeywordClassifier struct {
	Accept []string
	Reject []string
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		Accept: DefaultAcceptWords,
		Reject: DefaultRejectWords,
	}
}

func (k *KeywordClassifier) Classify(reply string) (DealStatus, bool) {
	lower := strings.ToLower(reply)
	if containsAny(lower, k.Accept) {
		return StatusAccepted, true
	}
	if containsAny(lower, k.Reject) {
		return StatusRejected, true
	}
	return "", false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, strings.ToLower(w)) {
			return true
		}
	}
	return false
}
