package services

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/routemate/bus-booking-backend/internal/config"
	"github.com/sirupsen/logrus"
)

// PayableGateway integrates the PAYable IPG for card payments
type PayableGateway struct {
	config *config.PaymentConfig
	logger *logrus.Logger
	client *http.Client
}

// payableCheckoutRequest is the payload sent to PAYable.
// NOTE: the merchant secret is never sent; it only feeds the checkValue hash.
type payableCheckoutRequest struct {
	MerchantKey    string `json:"merchantKey"`
	InvoiceID      string `json:"invoiceId"`
	Amount         string `json:"amount"`
	CurrencyCode   string `json:"currencyCode"`
	BookingID      string `json:"bookingId"`
	CustomerPhone  string `json:"customerMobilePhone"`
	CustomerEmail  string `json:"customerEmail,omitempty"`
	RouteName      string `json:"routeName"`
	DepartureTime  string `json:"departureTime"` // ISO-8601
	PassengerCount int    `json:"passengerCount"`
	SeatNumbers    string `json:"seatNumbers"` // comma separated
	ReturnURL      string `json:"returnUrl"`
	WebhookURL     string `json:"webhookUrl,omitempty"`
	CheckValue     string `json:"checkValue"`
}

type payableCheckoutResponse struct {
	Status      string `json:"status"` // "success" or "error"
	UID         string `json:"uid"`
	PaymentPage string `json:"paymentPage"`
	Message     string `json:"message,omitempty"`
}

type payableStatusResponse struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"` // "PENDING", "SUCCESS", "FAILED", "CANCELLED"
	TransactionID string `json:"transactionId,omitempty"`
	Message       string `json:"message,omitempty"`
}

// NewPayableGateway creates a new PAYable gateway client
func NewPayableGateway(cfg *config.PaymentConfig, logger *logrus.Logger) *PayableGateway {
	return &PayableGateway{
		config: cfg,
		logger: logger,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Name returns the gateway identifier
func (g *PayableGateway) Name() string {
	return GatewayPayable
}

// checkValue is PAYable's request signature:
// SHA512(merchantId|invoiceId|amount|currency|SHA512(secret)), uppercase hex
func (g *PayableGateway) checkValue(invoiceID, amount, currency string) string {
	secretHash := sha512.Sum512([]byte(g.config.PayableSecret))
	secretHex := strings.ToUpper(hex.EncodeToString(secretHash[:]))

	data := fmt.Sprintf("%s|%s|%s|%s|%s",
		g.config.PayableMerchantID, invoiceID, amount, currency, secretHex)
	sum := sha512.Sum512([]byte(data))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// CreateCheckout starts a PAYable payment session for a booking
func (g *PayableGateway) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	if g.config.PayableMerchantID == "" || g.config.PayableSecret == "" {
		return nil, fmt.Errorf("payable gateway not configured: missing merchant credentials")
	}

	amount := formatAmount(req.Amount)
	payload := &payableCheckoutRequest{
		MerchantKey:    g.config.PayableMerchantID,
		InvoiceID:      req.InvoiceID,
		Amount:         amount,
		CurrencyCode:   req.Currency,
		BookingID:      req.BookingID,
		CustomerPhone:  req.ContactPhone,
		CustomerEmail:  req.ContactEmail,
		RouteName:      req.RouteName,
		DepartureTime:  req.Departure.UTC().Format("2006-01-02T15:04:05Z07:00"),
		PassengerCount: req.PassengerCount,
		SeatNumbers:    joinSeats(req.SeatCodes),
		ReturnURL:      g.config.ReturnURL,
		WebhookURL:     g.config.WebhookURL,
		CheckValue:     g.checkValue(req.InvoiceID, amount, req.Currency),
	}

	var resp payableCheckoutResponse
	if err := g.post(ctx, g.config.PayableBaseURL+"/checkout", payload, &resp); err != nil {
		return nil, err
	}

	// PAYable answers "PENDING" once the payment page is ready
	if resp.Status != "success" && resp.Status != "PENDING" {
		return nil, &GatewayError{Gateway: GatewayPayable, Message: resp.Message}
	}
	if resp.PaymentPage == "" {
		return nil, &GatewayError{Gateway: GatewayPayable, Message: "no payment page URL returned"}
	}

	g.logger.WithFields(logrus.Fields{
		"invoice_id": req.InvoiceID,
		"uid":        resp.UID,
	}).Info("PAYable checkout session created")

	return &CheckoutSession{TransactionID: resp.UID, CheckoutURL: resp.PaymentPage}, nil
}

// VerifyTransaction asks PAYable for the settled state of a transaction
func (g *PayableGateway) VerifyTransaction(ctx context.Context, transactionID string) (*VerificationResult, error) {
	payload := map[string]string{"uid": transactionID}

	var resp payableStatusResponse
	if err := g.post(ctx, g.config.PayableBaseURL+"/check-status", payload, &resp); err != nil {
		return nil, err
	}

	if resp.Status != "success" {
		return nil, &GatewayError{Gateway: GatewayPayable, Message: resp.Message}
	}

	result := &VerificationResult{TransactionID: transactionID}
	switch strings.ToUpper(resp.PaymentStatus) {
	case "SUCCESS":
		result.Status = "paid"
	case "FAILED", "CANCELLED":
		result.Status = "failed"
	default:
		result.Status = "pending"
	}

	return result, nil
}

func (g *PayableGateway) post(ctx context.Context, url string, payload, dest interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call payable gateway: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("payable gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, dest); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

// formatAmount renders minor currency units as a decimal string, e.g.
// 250000 -> "2500.00"
func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
