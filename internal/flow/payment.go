package flow

import (
	"context"

	"github.com/seenimoa/stackswap/pkg/models"
)

// PaymentRequest asks the payment widget to collect an onramp payment.
type PaymentRequest struct {
	Token  string               `json:"token"`
	Config models.PaymentConfig `json:"config"`
}

// PaymentResult is the widget's answer. Completed false means the user
// closed the widget.
type PaymentResult struct {
	Token     string
	Completed bool
}

// PaymentWidget opens the payment gateway checkout. done is called once,
// from any goroutine, when the user completes or closes it. Cancelling ctx
// withdraws the checkout.
type PaymentWidget interface {
	Open(ctx context.Context, req PaymentRequest, done func(PaymentResult))
}
