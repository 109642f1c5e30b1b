package lifecycle

import (
	"time"

	"linky/internal/model"
	"linky/internal/notify"

	"github.com/google/uuid"
)

const msPerDay = 86_400_000

// OfferAgeDays returns the fractional number of days between updatedAt and now,
// measured in whole milliseconds.
func OfferAgeDays(updatedAt, now time.Time) float64 {
	return float64(now.Sub(updatedAt).Milliseconds()) / msPerDay
}

// OfferFresh reports whether an offer last updated at updatedAt is still honoured.
// The boundary is inclusive: an offer exactly OfferValidity old is fresh.
func (e *Engine) OfferFresh(updatedAt, now time.Time) bool {
	return OfferAgeDays(updatedAt, now) <= e.validityDays()
}

func (e *Engine) validityDays() float64 {
	return float64(e.cfg.OfferValidity.Milliseconds()) / msPerDay
}

// PreviewRepeat classifies a reorder of source without mutating anything.
func (e *Engine) PreviewRepeat(source *model.Request, now time.Time) (model.RepeatPreview, error) {
	if source == nil || source.Offer == nil {
		return model.RepeatPreview{}, model.ErrSourceNotFound
	}

	age := OfferAgeDays(source.Offer.UpdatedAt, now)
	if age > e.validityDays() {
		return model.RepeatPreview{Mode: model.RepeatModeExpired, OfferAgeDays: age}, nil
	}

	price := source.Offer.LinkyPrice
	deposit := Deposit(price)
	return model.RepeatPreview{
		Mode:         model.RepeatModeShowPay50,
		OfferAgeDays: age,
		LinkyPrice:   &price,
		Deposit:      &deposit,
		Currency:     source.Currency,
	}, nil
}

// RepeatPlan describes the request a repeat confirm must create.
type RepeatPlan struct {
	// Fresh is true when the source offer is within validity and the new
	// request is created already paid in part.
	Fresh   bool
	Request *model.Request
	// CooldownSince is the earliest creation time of an existing NEW repeat
	// draft that makes this confirm a duplicate. Zero for fresh plans.
	CooldownSince time.Time
	Effects       []Effect
}

// Mode is the result mode reported when the plan is persisted as a new row.
func (p RepeatPlan) Mode() model.RepeatMode {
	if p.Fresh {
		return model.RepeatModePaidPartially
	}
	return model.RepeatModeNewRequest
}

// PlanRepeat builds the new request for userID reordering source.
//
// A fresh source produces a PAID_PARTIALLY/PARTIAL request with a verbatim
// offer snapshot. An expired source produces a NEW/NONE request carrying the
// snapshot as a draft offer for the admin to revise; callers must deduplicate
// it against drafts created since CooldownSince.
func (e *Engine) PlanRepeat(source *model.Request, userID uuid.UUID, now time.Time) (RepeatPlan, error) {
	if source == nil || source.Offer == nil {
		return RepeatPlan{}, model.ErrSourceNotFound
	}

	sourceID := source.ID
	req := &model.Request{
		ID:             uuid.New(),
		UserID:         userID,
		ProductURL:     source.ProductURL,
		Currency:       source.Currency,
		IsRepeat:       true,
		RepeatSourceID: &sourceID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if t := source.Offer.ProductTitle; t != "" {
		req.TitleHint = &t
	} else if source.TitleHint != nil {
		v := *source.TitleHint
		req.TitleHint = &v
	}
	if source.OriginalPrice != nil {
		v := *source.OriginalPrice
		req.OriginalPrice = &v
	}
	if req.Currency == "" {
		req.Currency = model.DefaultCurrency
	}

	offer := source.Offer.Snapshot()
	offer.ID = uuid.New()
	offer.RequestID = req.ID
	offer.CreatedAt = now
	offer.UpdatedAt = now
	req.Offer = offer

	if e.OfferFresh(source.Offer.UpdatedAt, now) {
		req.Status = model.StatusPaidPartially
		req.PaymentStatus = model.PaymentPartial
		return RepeatPlan{
			Fresh:   true,
			Request: req,
			Effects: paidNotices(model.PaymentPartial),
		}, nil
	}

	req.Status = model.StatusNew
	req.PaymentStatus = model.PaymentNone
	return RepeatPlan{
		Request:       req,
		CooldownSince: now.Add(-e.cfg.RepeatCooldown),
		Effects:       []Effect{{Event: notify.EventAdminNewRequest, Audience: notify.AudienceAdmin}},
	}, nil
}
