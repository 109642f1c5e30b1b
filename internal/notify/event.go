// Package notify delivers lifecycle notifications on a best-effort basis.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventName identifies a notification template.
type EventName string

const (
	EventAdminNewRequest         EventName = "admin-new-request"
	EventAdminPaymentReceived    EventName = "admin-payment-received"
	EventUserOfferCreated        EventName = "user-offer-created"
	EventUserPaymentReceived     EventName = "user-payment-received"
	EventUserInProgress          EventName = "user-in-progress"
	EventUserArrivedPayRemaining EventName = "user-arrived-pay-remaining"
	EventUserDelivered           EventName = "user-delivered"
	EventUserNotFound            EventName = "user-not-found"
)

// Audience says who an event is addressed to.
type Audience string

const (
	AudienceUser  Audience = "user"
	AudienceAdmin Audience = "admin"
)

// Event is one notification to one recipient.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Name       EventName `json:"event"`
	Audience   Audience  `json:"audience"`
	Recipient  string    `json:"recipient"`
	RequestID  uuid.UUID `json:"requestId"`
	Payload    Payload   `json:"payload"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Payload is the structured data rendered by a template.
// It has no field for the admin's sourcing link, so that link cannot leak to users.
type Payload struct {
	Username      string           `json:"username"`
	UserEmail     string           `json:"userEmail,omitempty"`
	RequestTitle  string           `json:"requestTitle"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Total         *decimal.Decimal `json:"total,omitempty"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	OfferPrice    *decimal.Decimal `json:"offerPrice,omitempty"`
	EtaDays       int              `json:"etaDays,omitempty"`
	ImageURL      string           `json:"imageUrl,omitempty"`
	Currency      string           `json:"currency,omitempty"`
	PaymentStatus string           `json:"paymentStatus,omitempty"`
	URL           string           `json:"url"`
}

// Emitter sends a single event. Implementations may be slow or fail.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
