package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"linky/internal/lifecycle"
	"linky/internal/model"
	"linky/internal/notify"
	"linky/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// runner executes one lifecycle command: fresh load, engine decision,
// compare-and-set write, then notification dispatch.
type runner struct {
	requests repository.RequestRepository
	engine   *lifecycle.Engine
	notifier Notifier
	events   *eventBuilder
	now      func() time.Time
	logger   zerolog.Logger
}

func newRunner(d Deps, logger zerolog.Logger) *runner {
	return &runner{
		requests: d.Requests,
		engine:   d.Engine,
		notifier: d.Notifier,
		events: &eventBuilder{
			users:      d.Users,
			appURL:     d.AppURL,
			adminEmail: d.AdminEmail,
			logger:     logger,
		},
		now:    d.Now,
		logger: logger,
	}
}

func (r *runner) load(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	req, err := r.requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return nil, model.ErrRequestNotFound
	}
	return req, nil
}

// run applies cmd to request id. prepare may add columns to the patch once
// the transition is approved.
func (r *runner) run(ctx context.Context, id uuid.UUID, cmd lifecycle.Command, prepare func(req *model.Request, patch *model.RequestPatch)) (*model.Request, error) {
	req, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := r.now()
	tr, err := r.engine.Decide(cmd, lifecycle.StateOf(req), now)
	if err != nil {
		r.logRejected(req, cmd, err)
		return nil, err
	}

	patch := tr.Patch()
	patch.UpdatedAt = now
	if prepare != nil {
		prepare(req, &patch)
	}

	expected := repository.Expected{Status: req.Status, PaymentStatus: req.PaymentStatus}
	if err := r.requests.UpdateStatus(ctx, id, expected, patch); err != nil {
		return nil, err
	}

	applyPatch(req, patch)
	r.logger.Info().
		Str("request_id", id.String()).
		Str("action", string(cmd.Action)).
		Str("from", string(tr.From)).
		Str("to", string(tr.To)).
		Str("payment", string(tr.PaymentTo)).
		Msg("request transitioned")

	r.emit(ctx, req, tr.Effects, now)
	return req, nil
}

func (r *runner) emit(ctx context.Context, req *model.Request, effects []lifecycle.Effect, at time.Time) {
	events := r.events.build(ctx, req, effects, at)
	if len(events) > 0 && r.notifier != nil {
		r.notifier.Dispatch(ctx, events...)
	}
}

func (r *runner) logRejected(req *model.Request, cmd lifecycle.Command, err error) {
	var gv *lifecycle.GuardViolation
	ev := r.logger.Info()
	if !errors.As(err, &gv) {
		ev = r.logger.Warn()
	}
	ev.Err(err).
		Str("request_id", req.ID.String()).
		Str("action", string(cmd.Action)).
		Str("actor_role", string(cmd.Actor.Role)).
		Msg("transition rejected")
}

func applyPatch(req *model.Request, patch model.RequestPatch) {
	req.Status = patch.Status
	req.PaymentStatus = patch.PaymentStatus
	if patch.CancelReason != nil {
		req.CancelReason = patch.CancelReason
	}
	if patch.OriginalPrice != nil {
		req.OriginalPrice = patch.OriginalPrice
	}
	req.UpdatedAt = patch.UpdatedAt
}

// userView hides the admin's sourcing link from the request owner.
func userView(req *model.Request) *model.Request {
	out := *req
	if req.Offer != nil {
		offer := *req.Offer
		offer.AdminSourceURL = nil
		out.Offer = &offer
	}
	return &out
}

func requireRole(actor model.Actor, role model.Role) error {
	if actor.Role != role {
		return fmt.Errorf("role %s required: %w", role, model.ErrForbidden)
	}
	return nil
}

var _ Notifier = (*notify.Dispatcher)(nil)
