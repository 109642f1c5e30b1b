package service

import (
	"context"
	"errors"
	"fmt"

	"linky/internal/lifecycle"
	"linky/internal/model"
	"linky/internal/repository"
	"linky/internal/sourcing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type adminService struct {
	*runner
	users   repository.UserRepository
	catalog *sourcing.Catalog
	logger  zerolog.Logger
}

// NewAdminService creates the admin action surface.
func NewAdminService(d Deps) AdminService {
	d = d.withDefaults()
	logger := d.Logger.With().Str("service", "admin").Logger()
	return &adminService{
		runner:  newRunner(d, logger),
		users:   d.Users,
		catalog: d.Catalog,
		logger:  logger,
	}
}

func (s *adminService) List(ctx context.Context, actor model.Actor, group string) ([]model.Request, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	var filter model.RequestFilter
	if group != "" {
		statuses, ok := model.StatusGroup(group)
		if !ok {
			return nil, &lifecycle.ValidationError{Fields: []model.FieldError{{Field: "status", Reason: "oneof"}}}
		}
		filter.Statuses = statuses
	}

	// Stale offers are expired before anyone looks at them.
	if _, err := s.ExpireStaleOffers(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("expiry sweep before listing failed")
	}

	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, nil
}

func (s *adminService) Scout(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Request, error) {
	return s.run(ctx, id, lifecycle.Command{Action: lifecycle.ActionScout, Actor: actor}, nil)
}

func (s *adminService) MarkNotFound(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Request, error) {
	return s.run(ctx, id, lifecycle.Command{Action: lifecycle.ActionMarkNotFound, Actor: actor},
		func(_ *model.Request, patch *model.RequestPatch) {
			patch.CancelReason = lifecycle.NormalizeReason(reason)
			if patch.CancelReason == nil {
				def := lifecycle.DefaultNotFoundReason
				patch.CancelReason = &def
			}
		})
}

func (s *adminService) Advance(ctx context.Context, actor model.Actor, id uuid.UUID, target model.RequestStatus) (*model.Request, error) {
	if target != "" && !target.Valid() {
		return nil, &lifecycle.ValidationError{Fields: []model.FieldError{{Field: "status", Reason: "oneof"}}}
	}
	return s.run(ctx, id, lifecycle.Command{Action: lifecycle.ActionAdvance, Actor: actor, Target: target}, nil)
}

func (s *adminService) SaveOffer(ctx context.Context, actor model.Actor, id uuid.UUID, form model.OfferForm) (*model.Request, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	draft, err := lifecycle.ValidateOffer(form)
	if err != nil {
		return nil, err
	}

	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cmd := lifecycle.Command{Action: lifecycle.ActionSaveOffer, Actor: actor}
	tr, err := s.engine.Decide(cmd, lifecycle.StateOf(req), now)
	if err != nil {
		s.logRejected(req, cmd, err)
		return nil, err
	}

	patch := tr.Patch()
	patch.UpdatedAt = now
	patch.OriginalPrice = &draft.OriginalPrice

	expected := repository.Expected{Status: req.Status, PaymentStatus: req.PaymentStatus}
	offer, err := s.requests.SaveOffer(ctx, id, expected, patch, draft.Offer(id, now))
	if err != nil {
		return nil, err
	}

	applyPatch(req, patch)
	req.Offer = offer
	s.logger.Info().
		Str("request_id", id.String()).
		Str("from", string(tr.From)).
		Str("linky_price", offer.LinkyPrice.StringFixed(2)).
		Int("eta_days", offer.EtaDays).
		Msg("offer saved")

	s.emit(ctx, req, tr.Effects, now)
	return req, nil
}

func (s *adminService) ExpireStaleOffers(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(-s.engine.Config().OfferValidity)
	stale, err := s.requests.ListExpirable(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list expirable requests: %w", err)
	}

	expired := 0
	for i := range stale {
		id := stale[i].ID
		_, err := s.run(ctx, id, lifecycle.Command{Action: lifecycle.ActionExpire, Actor: model.SystemActor}, nil)
		var gv *lifecycle.GuardViolation
		switch {
		case err == nil:
			expired++
		case errors.Is(err, model.ErrConflict), errors.As(err, &gv), errors.Is(err, model.ErrRequestNotFound):
			s.logger.Debug().Err(err).Str("request_id", id.String()).Msg("request left the expiry window")
		default:
			return expired, err
		}
	}

	if expired > 0 {
		s.logger.Info().Int("count", expired).Msg("stale offers expired")
	}
	return expired, nil
}

func (s *adminService) SourceHints(ctx context.Context, actor model.Actor, id uuid.UUID) ([]sourcing.Hint, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.catalog == nil {
		return []sourcing.Hint{}, nil
	}

	texts := []string{req.ProductURL}
	if req.TitleHint != nil {
		texts = append(texts, *req.TitleHint)
	}
	if req.Offer != nil {
		texts = append(texts, req.Offer.ProductTitle)
	}
	hints := s.catalog.Match(req.Title(), texts...)
	if hints == nil {
		hints = []sourcing.Hint{}
	}
	return hints, nil
}

func (s *adminService) UpsertUser(ctx context.Context, actor model.Actor, id uuid.UUID, in model.UserInput) (*model.User, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	if err := lifecycle.ValidateInput(in); err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = model.RoleUser
	}
	user := &model.User{ID: id, Role: role, Username: in.Username, Email: in.Email}
	if err := s.users.Upsert(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("user_id", id.String()).Msg("failed to upsert user")
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}
