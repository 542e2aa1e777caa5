package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/routemate/bus-booking-backend/internal/config"
	"github.com/sirupsen/logrus"
)

// GenieGateway integrates the Genie Business API for wallet and non-card
// payment methods
type GenieGateway struct {
	config *config.PaymentConfig
	logger *logrus.Logger
	client *http.Client
}

type genieTransactionRequest struct {
	Amount         int64  `json:"amount"` // minor currency units
	Currency       string `json:"currency"`
	InvoiceID      string `json:"localInvoiceId"`
	BookingID      string `json:"bookingId"`
	CustomerPhone  string `json:"msisdn"`
	CustomerEmail  string `json:"customerEmail,omitempty"`
	RouteName      string `json:"routeName"`
	DepartureTime  string `json:"departureTime"` // ISO-8601
	PassengerCount int    `json:"passengerCount"`
	SeatNumbers    string `json:"seatNumbers"` // comma separated
	RedirectURL    string `json:"redirectUrl"`
	WebhookURL     string `json:"webhookUrl,omitempty"`
}

type genieTransactionResponse struct {
	TransactionID string `json:"transactionId"`
	URL           string `json:"url"`
	State         string `json:"state"`
	Error         string `json:"error,omitempty"`
}

type genieStatusResponse struct {
	TransactionID string `json:"transactionId"`
	State         string `json:"state"` // "INITIATED", "CONFIRMED", "FAILED", "EXPIRED"
	Error         string `json:"error,omitempty"`
}

// NewGenieGateway creates a new Genie gateway client
func NewGenieGateway(cfg *config.PaymentConfig, logger *logrus.Logger) *GenieGateway {
	return &GenieGateway{
		config: cfg,
		logger: logger,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Name returns the gateway identifier
func (g *GenieGateway) Name() string {
	return GatewayGenie
}

// CreateCheckout starts a Genie transaction for a booking
func (g *GenieGateway) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	if g.config.GenieAppID == "" || g.config.GenieAppSecret == "" {
		return nil, fmt.Errorf("genie gateway not configured: missing app credentials")
	}

	payload := &genieTransactionRequest{
		Amount:         req.Amount,
		Currency:       req.Currency,
		InvoiceID:      req.InvoiceID,
		BookingID:      req.BookingID,
		CustomerPhone:  req.ContactPhone,
		CustomerEmail:  req.ContactEmail,
		RouteName:      req.RouteName,
		DepartureTime:  req.Departure.UTC().Format("2006-01-02T15:04:05Z07:00"),
		PassengerCount: req.PassengerCount,
		SeatNumbers:    joinSeats(req.SeatCodes),
		RedirectURL:    g.config.ReturnURL,
		WebhookURL:     g.config.WebhookURL,
	}

	var resp genieTransactionResponse
	if err := g.call(ctx, http.MethodPost, g.config.GenieBaseURL+"/transactions", payload, &resp); err != nil {
		return nil, err
	}

	if resp.Error != "" || resp.TransactionID == "" || resp.URL == "" {
		return nil, &GatewayError{Gateway: GatewayGenie, Message: resp.Error}
	}

	g.logger.WithFields(logrus.Fields{
		"invoice_id":     req.InvoiceID,
		"transaction_id": resp.TransactionID,
	}).Info("Genie transaction created")

	return &CheckoutSession{TransactionID: resp.TransactionID, CheckoutURL: resp.URL}, nil
}

// VerifyTransaction asks Genie for the settled state of a transaction
func (g *GenieGateway) VerifyTransaction(ctx context.Context, transactionID string) (*VerificationResult, error) {
	url := fmt.Sprintf("%s/transactions/%s", g.config.GenieBaseURL, transactionID)

	var resp genieStatusResponse
	if err := g.call(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, err
	}

	if resp.Error != "" {
		return nil, &GatewayError{Gateway: GatewayGenie, Message: resp.Error}
	}

	result := &VerificationResult{TransactionID: transactionID}
	switch strings.ToUpper(resp.State) {
	case "CONFIRMED":
		result.Status = "paid"
	case "FAILED", "EXPIRED":
		result.Status = "failed"
	default:
		result.Status = "pending"
	}

	return result, nil
}

func (g *GenieGateway) call(ctx context.Context, method, url string, payload, dest interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", g.config.GenieAppID+" "+g.config.GenieAppSecret)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call genie gateway: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("genie gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, dest); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}
