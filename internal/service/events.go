package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"linky/internal/lifecycle"
	"linky/internal/model"
	"linky/internal/notify"
	"linky/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxTitleLength = 140

// eventBuilder turns transition effects into addressed notification events.
type eventBuilder struct {
	users      repository.UserRepository
	appURL     string
	adminEmail string
	logger     zerolog.Logger
}

func (b *eventBuilder) build(ctx context.Context, req *model.Request, effects []lifecycle.Effect, at time.Time) []notify.Event {
	if len(effects) == 0 {
		return nil
	}

	var user *model.User
	if b.users != nil {
		u, err := b.users.GetByID(ctx, req.UserID)
		if err != nil {
			b.logger.Warn().Err(err).Str("user_id", req.UserID.String()).Msg("failed to load user for notification")
		}
		user = u
	}

	events := make([]notify.Event, 0, len(effects))
	for _, eff := range effects {
		ev := notify.Event{
			ID:         uuid.New(),
			Name:       eff.Event,
			Audience:   eff.Audience,
			RequestID:  req.ID,
			Payload:    b.payload(req, user, eff),
			OccurredAt: at,
		}
		if eff.Audience == notify.AudienceAdmin {
			ev.Recipient = b.adminEmail
		} else {
			ev.Recipient = recipient(user, req.UserID)
		}
		if ev.Recipient == "" {
			b.logger.Warn().Str("event", string(eff.Event)).Msg("notification has no recipient, skipping")
			continue
		}
		events = append(events, ev)
	}
	return events
}

func (b *eventBuilder) payload(req *model.Request, user *model.User, eff lifecycle.Effect) notify.Payload {
	p := notify.Payload{
		RequestTitle: truncate(req.Title(), maxTitleLength),
		Currency:     req.Currency,
	}
	if user != nil {
		p.Username = user.Username
		p.UserEmail = user.Email
	}

	var price *decimal.Decimal
	if req.Offer != nil {
		v := req.Offer.LinkyPrice
		price = &v
	}

	switch eff.Event {
	case notify.EventAdminNewRequest:
		p.OriginalPrice = req.OriginalPrice
	case notify.EventUserOfferCreated:
		p.OriginalPrice = req.OriginalPrice
		p.OfferPrice = price
		if req.Offer != nil {
			p.EtaDays = req.Offer.EtaDays
			if req.Offer.ImageURL != nil {
				p.ImageURL = *req.Offer.ImageURL
			}
		}
	case notify.EventUserPaymentReceived, notify.EventAdminPaymentReceived:
		p.PaymentStatus = string(eff.Payment)
		if price != nil {
			amount := lifecycle.Deposit(*price)
			if eff.Payment == model.PaymentFull {
				amount = lifecycle.Remainder(*price)
			}
			p.Amount = &amount
			p.Total = price
		}
	case notify.EventUserArrivedPayRemaining:
		if price != nil {
			rest := lifecycle.Remainder(*price)
			p.Total = &rest
		}
	}

	p.URL = b.link(req.ID, eff)
	return p
}

func (b *eventBuilder) link(requestID uuid.UUID, eff lifecycle.Effect) string {
	base := strings.TrimRight(b.appURL, "/")
	if eff.Audience == notify.AudienceAdmin {
		return base + "/admin?request=" + requestID.String()
	}
	switch eff.Event {
	case notify.EventUserOfferCreated, notify.EventUserNotFound:
		return base + "/mypage?tab=offers"
	default:
		return base + "/mypage?tab=inProgress"
	}
}

func recipient(user *model.User, fallback uuid.UUID) string {
	if user != nil && user.Email != "" {
		return user.Email
	}
	if user != nil {
		return user.ID.String()
	}
	return fallback.String()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
