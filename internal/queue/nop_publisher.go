package queue

import (
	"context"

	"github.com/sirupsen/logrus"
)

// NopPublisher swallows events. Used when event publishing is disabled, so
// the notifier keeps its diffing behaviour without a broker connection.
type NopPublisher struct {
	logger *logrus.Logger
}

// NewNopPublisher creates a publisher that drops every event
func NewNopPublisher(logger *logrus.Logger) *NopPublisher {
	return &NopPublisher{logger: logger}
}

// PublishStatusChanged drops the event
func (p *NopPublisher) PublishStatusChanged(_ context.Context, event BookingChangeEvent) error {
	p.logger.WithField("booking_id", event.BookingID).Debug("Event publishing disabled, dropping status event")
	return nil
}

// PublishPaymentChanged drops the event
func (p *NopPublisher) PublishPaymentChanged(_ context.Context, event BookingChangeEvent) error {
	p.logger.WithField("booking_id", event.BookingID).Debug("Event publishing disabled, dropping payment event")
	return nil
}
