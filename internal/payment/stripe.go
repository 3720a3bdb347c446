package payment

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/Leerm14/restaurant-back-end/internal/logger"
)

var ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")

// StripeGateway charges credit card payments through Stripe. The amount and
// currency always come from the stored payment record, never from the caller.
type StripeGateway struct {
	client   *client.API
	currency string
	log      *logger.Logger
}

func NewStripeGateway(secretKey, currency string, log *logger.Logger) (*StripeGateway, error) {
	if secretKey == "" {
		log.Error("STRIPE", "secret key not configured")
		return nil, ErrStripeClientInitFailed
	}
	sc := client.New(secretKey, nil)
	log.Info("STRIPE", "Stripe client initialized")
	return &StripeGateway{client: sc, currency: currency, log: log}, nil
}

// Charge creates and confirms a payment intent for the payment. Returns the
// intent id to store as the transaction reference, and whether the charge
// settled synchronously.
func (g *StripeGateway) Charge(paymentID, orderID string, amount float64, paymentMethod string) (string, bool, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(int64(amount * 100)),
		Currency:           stripe.String(g.currency),
		PaymentMethod:      stripe.String(paymentMethod),
		Description:        stripe.String("Order " + orderID),
		ConfirmationMethod: stripe.String("manual"),
		Confirm:            stripe.Bool(true),
		PaymentMethodTypes: []*string{stripe.String("card")},
		Metadata: map[string]string{
			"payment_id": paymentID,
			"order_id":   orderID,
		},
	}

	pi, err := g.client.PaymentIntents.New(params)
	if err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("payment intent failed for payment %s: %v", paymentID, err))
		return "", false, err
	}
	g.log.Info("STRIPE", fmt.Sprintf("payment intent %s created for payment %s, status %s", pi.ID, paymentID, pi.Status))

	settled := pi.Status == stripe.PaymentIntentStatusSucceeded
	return pi.ID, settled, nil
}
