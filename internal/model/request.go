package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestStatus is the lifecycle state of a purchase request.
type RequestStatus string

const (
	StatusNew           RequestStatus = "NEW"
	StatusScouting      RequestStatus = "SCOUTING"
	StatusOffered       RequestStatus = "OFFERED"
	StatusAccepted      RequestStatus = "ACCEPTED"
	StatusPaidPartially RequestStatus = "PAID_PARTIALLY"
	StatusInProgress    RequestStatus = "IN_PROGRESS"
	StatusArrived       RequestStatus = "ARRIVED"
	StatusCompleted     RequestStatus = "COMPLETED"
	StatusNotFound      RequestStatus = "NOT_FOUND"
	StatusExpired       RequestStatus = "EXPIRED"
	StatusDeclined      RequestStatus = "DECLINED"
	StatusCancelled     RequestStatus = "CANCELLED"
)

// AllStatuses lists every request status in lifecycle order.
var AllStatuses = []RequestStatus{
	StatusNew,
	StatusScouting,
	StatusOffered,
	StatusAccepted,
	StatusPaidPartially,
	StatusInProgress,
	StatusArrived,
	StatusCompleted,
	StatusNotFound,
	StatusExpired,
	StatusDeclined,
	StatusCancelled,
}

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s RequestStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusDeclined, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// OfferEditable reports whether an offer may still be created or changed in s.
func (s RequestStatus) OfferEditable() bool {
	switch s {
	case StatusNew, StatusScouting, StatusOffered:
		return true
	}
	return false
}

// PaymentStatus tracks how much of the offer price has been paid.
type PaymentStatus string

const (
	PaymentNone    PaymentStatus = "NONE"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentFull    PaymentStatus = "FULL"
)

// DefaultCurrency is used when a submission does not name one.
const DefaultCurrency = "GEL"

// Request represents one user's purchase intent.
type Request struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	UserID         uuid.UUID        `json:"userId" db:"user_id"`
	ProductURL     string           `json:"productUrl" db:"product_url"`
	TitleHint      *string          `json:"titleHint,omitempty" db:"title_hint"`
	OriginalPrice  *decimal.Decimal `json:"originalPrice,omitempty" db:"original_price"`
	Currency       string           `json:"currency" db:"currency"`
	Status         RequestStatus    `json:"status" db:"status"`
	PaymentStatus  PaymentStatus    `json:"paymentStatus" db:"payment_status"`
	CancelReason   *string          `json:"cancelReason,omitempty" db:"cancel_reason"`
	IsRepeat       bool             `json:"isRepeat" db:"is_repeat"`
	RepeatSourceID *uuid.UUID       `json:"repeatSourceId,omitempty" db:"repeat_source_id"`
	CreatedAt      time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time        `json:"updatedAt" db:"updated_at"`
	Offer          *Offer           `json:"offer,omitempty"`
}

// Title returns the human title used in notifications and listings.
func (r *Request) Title() string {
	if r.Offer != nil && r.Offer.ProductTitle != "" {
		return r.Offer.ProductTitle
	}
	if r.TitleHint != nil && *r.TitleHint != "" {
		return *r.TitleHint
	}
	return r.ProductURL
}

// Offer is the admin-authored price quote attached to a request.
type Offer struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	RequestID      uuid.UUID       `json:"requestId" db:"request_id"`
	ProductTitle   string          `json:"productTitle" db:"product_title"`
	ImageURL       *string         `json:"imageUrl,omitempty" db:"image_url"`
	LinkyPrice     decimal.Decimal `json:"linkyPrice" db:"linky_price"`
	EtaDays        int             `json:"etaDays" db:"eta_days"`
	Note           *string         `json:"note,omitempty" db:"note"`
	AdminSourceURL *string         `json:"adminSourceUrl,omitempty" db:"admin_source_url"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}

// Snapshot copies the quote into a new offer for another request.
// Timestamps and ids are left for the caller to assign.
func (o *Offer) Snapshot() *Offer {
	cp := &Offer{
		ProductTitle: o.ProductTitle,
		LinkyPrice:   o.LinkyPrice,
		EtaDays:      o.EtaDays,
	}
	if o.ImageURL != nil {
		v := *o.ImageURL
		cp.ImageURL = &v
	}
	if o.Note != nil {
		v := *o.Note
		cp.Note = &v
	}
	if o.AdminSourceURL != nil {
		v := *o.AdminSourceURL
		cp.AdminSourceURL = &v
	}
	return cp
}

// RequestPatch lists the columns a lifecycle transition may change.
type RequestPatch struct {
	Status        RequestStatus
	PaymentStatus PaymentStatus
	CancelReason  *string
	OriginalPrice *decimal.Decimal
	UpdatedAt     time.Time
}

// RequestFilter narrows request listings.
type RequestFilter struct {
	UserID   *uuid.UUID
	Statuses []RequestStatus
	Limit    int
	Offset   int
}

// SubmitRequest is the payload for creating a new purchase request.
type SubmitRequest struct {
	ProductURL    string   `json:"productUrl"`
	TitleHint     *string  `json:"titleHint,omitempty"`
	OriginalPrice *float64 `json:"originalPrice,omitempty"`
	Currency      string   `json:"currency,omitempty"`
}

// ReasonRequest carries the optional free-text reason for decline/cancel.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// AdvanceRequest names the status the admin wants to move to.
type AdvanceRequest struct {
	Status RequestStatus `json:"status"`
}

// OfferForm is the raw admin offer form. Numeric fields stay strings until validated.
type OfferForm struct {
	ProductTitle   string `json:"productTitle" validate:"required"`
	OriginalPrice  string `json:"originalPrice" validate:"required,numeric"`
	LinkyPrice     string `json:"linkyPrice" validate:"required,numeric"`
	EtaDays        string `json:"etaDays" validate:"required,number"`
	AdminSourceURL string `json:"adminSourceUrl" validate:"required,url"`
	Note           string `json:"note"`
	ImageURL       string `json:"imageUrl"`
}

// RepeatRequest references the request a user wants to order again.
type RepeatRequest struct {
	SourceRequestID uuid.UUID `json:"sourceRequestId"`
}

// RepeatMode is the outcome kind of a repeat preview/confirm.
type RepeatMode string

const (
	RepeatModeExpired       RepeatMode = "EXPIRED"
	RepeatModeShowPay50     RepeatMode = "SHOW_PAY50"
	RepeatModeNewRequest    RepeatMode = "NEW_REQUEST"
	RepeatModeRequestExists RepeatMode = "NEW_REQUEST_EXISTS"
	RepeatModePaidPartially RepeatMode = "PAID_PARTIALLY"
)

// RepeatPreview is returned by the non-mutating repeat preview.
type RepeatPreview struct {
	Mode         RepeatMode       `json:"mode"`
	OfferAgeDays float64          `json:"offerAgeDays"`
	LinkyPrice   *decimal.Decimal `json:"linkyPrice,omitempty"`
	Deposit      *decimal.Decimal `json:"deposit,omitempty"`
	Currency     string           `json:"currency,omitempty"`
}

// RepeatResult is returned by repeat confirm.
type RepeatResult struct {
	Mode       RepeatMode       `json:"mode"`
	RequestID  uuid.UUID        `json:"requestId"`
	LinkyPrice *decimal.Decimal `json:"linkyPrice,omitempty"`
	Currency   string           `json:"currency,omitempty"`
}

var statusGroups = map[string][]RequestStatus{
	"pending":    {StatusNew, StatusScouting},
	"new":        {StatusNew, StatusScouting},
	"offers":     {StatusOffered, StatusNotFound},
	"offered":    {StatusOffered},
	"inProgress": {StatusAccepted, StatusPaidPartially, StatusInProgress, StatusArrived},
	"accepted":   {StatusAccepted, StatusPaidPartially, StatusInProgress, StatusArrived},
	"completed":  {StatusCompleted},
	"cancelled":  {StatusDeclined, StatusCancelled, StatusExpired, StatusNotFound},
	"active": {
		StatusNew, StatusScouting, StatusOffered, StatusNotFound,
		StatusAccepted, StatusPaidPartially, StatusInProgress, StatusArrived,
	},
}

// StatusGroup resolves a listing tab name to its statuses. A single status
// name is also accepted.
func StatusGroup(name string) ([]RequestStatus, bool) {
	if g, ok := statusGroups[name]; ok {
		return g, true
	}
	if s := RequestStatus(name); s.Valid() {
		return []RequestStatus{s}, true
	}
	return nil, false
}
