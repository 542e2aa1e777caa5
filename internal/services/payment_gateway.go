package services

import (
	"context"
	"strings"
	"time"
)

// CheckoutRequest is the gateway-neutral wire contract for starting a payment
// session. Contact is normalized before it gets here; Departure is formatted
// as ISO-8601 and seats are joined with commas on the wire.
type CheckoutRequest struct {
	BookingID      string
	InvoiceID      string // booking reference, unique per booking
	Amount         int64  // minor currency units
	Currency       string
	ContactPhone   string
	ContactEmail   string
	RouteName      string
	Departure      time.Time
	PassengerCount int
	SeatCodes      []string
}

// CheckoutSession is the handle returned by a gateway for a started payment
type CheckoutSession struct {
	TransactionID string
	CheckoutURL   string
}

// VerificationResult is the gateway's reconciled view of a transaction
type VerificationResult struct {
	Status        string // "paid", "failed" or "pending"
	TransactionID string
}

// PaymentGateway abstracts one external payment provider. Implementations
// return *GatewayError when the provider declines and a plain error for
// transport failures, so callers can retry only the latter.
type PaymentGateway interface {
	Name() string
	CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
	VerifyTransaction(ctx context.Context, transactionID string) (*VerificationResult, error)
}

const (
	GatewayPayable = "payable"
	GatewayGenie   = "genie"
)

// selectGatewayName maps a customer payment method to a provider. Card
// payments go through PAYable; wallets and everything else through Genie.
func selectGatewayName(paymentMethod string) string {
	if strings.EqualFold(paymentMethod, "card") {
		return GatewayPayable
	}
	return GatewayGenie
}

// joinSeats renders a seat list for the gateway wire format
func joinSeats(seats []string) string {
	return strings.Join(seats, ",")
}
