package negotiation

import (
	"errors"
	"fmt"
	"math"

	"rupped-storefront/internal/model"
)

var ErrOfferOutOfRange = errors.New("offer outside the allowed range")

const (
	minOfferRatio     = 0.7
	defaultOfferRatio = 0.9
)

// OfferBounds returns the slider range for a list price: 70% of list rounded
// to whole currency units up to the list price itself.
func OfferBounds(listPrice float64) (lo, hi float64) {
	return math.Round(listPrice * minOfferRatio), listPrice
}

// DefaultOffer is the slider's starting position.
func DefaultOffer(listPrice float64) float64 {
	return math.Round(listPrice * defaultOfferRatio)
}

// OfferMessage is the user turn synthesized for a submitted offer.
func OfferMessage(amount float64) string {
	return fmt.Sprintf("I'd like to offer $%.2f for this item.", amount)
}

// Greeting seeds a new transcript.
func Greeting(nctx model.NegotiationContext) string {
	return fmt.Sprintf(
		"Welcome to Rupped's AI Negotiation! I see you're interested in the %s. The listed price is $%.2f. Would you like to make an offer? You can use the slider below or type your offer directly.",
		nctx.ProductName, nctx.ListPrice,
	)
}

func validateOffer(listPrice, amount float64) error {
	lo, hi := OfferBounds(listPrice)
	if math.IsNaN(amount) || amount < lo || amount > hi {
		return fmt.Errorf("%w: $%.2f not in [$%.2f, $%.2f]", ErrOfferOutOfRange, amount, lo, hi)
	}
	return nil
}
