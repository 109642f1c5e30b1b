package service

import (
	"context"
	"time"

	"linky/internal/lifecycle"
	"linky/internal/model"
	"linky/internal/notify"
	"linky/internal/repository"
	"linky/internal/sourcing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestService is the user action surface.
type RequestService interface {
	// Submit creates a NEW request owned by the actor.
	Submit(ctx context.Context, actor model.Actor, in model.SubmitRequest) (*model.Request, error)

	// Get returns one of the actor's requests without admin-only offer data.
	Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Request, error)

	// ListMine lists the actor's requests, optionally narrowed to a status group.
	ListMine(ctx context.Context, actor model.Actor, group string) ([]model.Request, error)

	Pay50(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Request, error)
	PayRemaining(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Request, error)
	Decline(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Request, error)
	Cancel(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Request, error)
	AcknowledgeNotFound(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Request, error)

	// RepeatPreview classifies a reorder of sourceID without changing anything.
	RepeatPreview(ctx context.Context, actor model.Actor, sourceID uuid.UUID) (model.RepeatPreview, error)

	// RepeatConfirm creates the reorder, deduplicating expired-offer drafts.
	RepeatConfirm(ctx context.Context, actor model.Actor, sourceID uuid.UUID) (model.RepeatResult, error)
}

// AdminService is the admin decision surface.
type AdminService interface {
	// List runs the expiry sweep and lists all requests in the status group.
	List(ctx context.Context, actor model.Actor, group string) ([]model.Request, error)

	Scout(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Request, error)
	MarkNotFound(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Request, error)
	SaveOffer(ctx context.Context, actor model.Actor, id uuid.UUID, form model.OfferForm) (*model.Request, error)
	Advance(ctx context.Context, actor model.Actor, id uuid.UUID, target model.RequestStatus) (*model.Request, error)

	// ExpireStaleOffers moves every OFFERED request with an outdated offer to EXPIRED.
	ExpireStaleOffers(ctx context.Context) (int, error)

	// SourceHints suggests shops for the request's brand.
	SourceHints(ctx context.Context, actor model.Actor, id uuid.UUID) ([]sourcing.Hint, error)

	// UpsertUser mirrors an account from the identity provider.
	UpsertUser(ctx context.Context, actor model.Actor, id uuid.UUID, in model.UserInput) (*model.User, error)
}

// Notifier hands events to the background delivery pipeline.
type Notifier interface {
	Dispatch(ctx context.Context, events ...notify.Event)
}

// Deps are the collaborators shared by both surfaces.
type Deps struct {
	Requests   repository.RequestRepository
	Users      repository.UserRepository
	Engine     *lifecycle.Engine
	Notifier   Notifier
	Catalog    *sourcing.Catalog
	AppURL     string
	AdminEmail string
	Logger     zerolog.Logger
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Engine == nil {
		d.Engine = lifecycle.New(lifecycle.DefaultConfig())
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}
