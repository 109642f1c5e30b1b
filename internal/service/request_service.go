package service

import (
	"context"
	"fmt"

	"linky/internal/lifecycle"
	"linky/internal/model"
	"linky/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type requestService struct {
	*runner
	users  repository.UserRepository
	logger zerolog.Logger
}

// NewRequestService creates the user action surface.
func NewRequestService(d Deps) RequestService {
	d = d.withDefaults()
	logger := d.Logger.With().Str("service", "request").Logger()
	return &requestService{
		runner: newRunner(d, logger),
		users:  d.Users,
		logger: logger,
	}
}

func (s *requestService) Submit(ctx context.Context, actor model.Actor, in model.SubmitRequest) (*model.Request, error) {
	if err := requireRole(actor, model.RoleUser); err != nil {
		return nil, err
	}
	if err := s.ensureUser(ctx, actor.ID); err != nil {
		return nil, err
	}

	req, effects, err := lifecycle.NewRequest(actor.ID, in, s.now())
	if err != nil {
		s.logger.Debug().Err(err).Str("user_id", actor.ID.String()).Msg("submission rejected")
		return nil, err
	}

	if err := s.requests.Create(ctx, req); err != nil {
		s.logger.Error().Err(err).Str("user_id", actor.ID.String()).Msg("failed to create request")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	s.logger.Info().
		Str("request_id", req.ID.String()).
		Str("user_id", actor.ID.String()).
		Msg("request submitted")

	s.emit(ctx, req, effects, req.CreatedAt)
	return req, nil
}

func (s *requestService) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Request, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.UserID != actor.ID {
		return nil, model.ErrRequestNotFound
	}
	return userView(req), nil
}

func (s *requestService) ListMine(ctx context.Context, actor model.Actor, group string) ([]model.Request, error) {
	filter := model.RequestFilter{UserID: &actor.ID}
	if group != "" {
		statuses, ok := model.StatusGroup(group)
		if !ok {
			return nil, &lifecycle.ValidationError{Fields: []model.FieldError{{Field: "status", Reason: "oneof"}}}
		}
		filter.Statuses = statuses
	}

	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	for i := range requests {
		requests[i] = *userView(&requests[i])
	}
	return requests, nil
}

func (s *requestService) Pay50(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Request, error) {
	return s.userCommand(ctx, actor, id, lifecycle.ActionPay50, nil)
}

func (s *requestService) PayRemaining(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Request, error) {
	return s.userCommand(ctx, actor, id, lifecycle.ActionPayRemaining, nil)
}

func (s *requestService) Decline(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Request, error) {
	return s.userCommand(ctx, actor, id, lifecycle.ActionDecline, withReason(reason))
}

func (s *requestService) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Request, error) {
	return s.userCommand(ctx, actor, id, lifecycle.ActionCancel, withReason(reason))
}

func (s *requestService) AcknowledgeNotFound(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Request, error) {
	return s.userCommand(ctx, actor, id, lifecycle.ActionAcknowledge, func(req *model.Request, patch *model.RequestPatch) {
		if req.CancelReason == nil || *req.CancelReason == "" {
			reason := lifecycle.DefaultNotFoundReason
			patch.CancelReason = &reason
		}
	})
}

func (s *requestService) RepeatPreview(ctx context.Context, actor model.Actor, sourceID uuid.UUID) (model.RepeatPreview, error) {
	if err := requireRole(actor, model.RoleUser); err != nil {
		return model.RepeatPreview{}, err
	}
	source, err := s.repeatSource(ctx, actor, sourceID)
	if err != nil {
		return model.RepeatPreview{}, err
	}
	return s.engine.PreviewRepeat(source, s.now())
}

func (s *requestService) RepeatConfirm(ctx context.Context, actor model.Actor, sourceID uuid.UUID) (model.RepeatResult, error) {
	if err := requireRole(actor, model.RoleUser); err != nil {
		return model.RepeatResult{}, err
	}
	if err := s.ensureUser(ctx, actor.ID); err != nil {
		return model.RepeatResult{}, err
	}
	source, err := s.repeatSource(ctx, actor, sourceID)
	if err != nil {
		return model.RepeatResult{}, err
	}

	plan, err := s.engine.PlanRepeat(source, actor.ID, s.now())
	if err != nil {
		return model.RepeatResult{}, err
	}
	req := plan.Request

	if plan.Fresh {
		if err := s.requests.Create(ctx, req); err != nil {
			return model.RepeatResult{}, fmt.Errorf("failed to create repeat request: %w", err)
		}
		s.logger.Info().
			Str("request_id", req.ID.String()).
			Str("source_id", sourceID.String()).
			Msg("repeat order placed")
		s.emit(ctx, req, plan.Effects, req.CreatedAt)

		price := req.Offer.LinkyPrice
		return model.RepeatResult{
			Mode:       plan.Mode(),
			RequestID:  req.ID,
			LinkyPrice: &price,
			Currency:   req.Currency,
		}, nil
	}

	id, created, err := s.requests.CreateRepeatDraft(ctx, req, plan.CooldownSince)
	if err != nil {
		return model.RepeatResult{}, fmt.Errorf("failed to create repeat draft: %w", err)
	}
	if !created {
		return model.RepeatResult{Mode: model.RepeatModeRequestExists, RequestID: id, Currency: req.Currency}, nil
	}

	s.logger.Info().
		Str("request_id", id.String()).
		Str("source_id", sourceID.String()).
		Msg("repeat draft created for re-quote")
	s.emit(ctx, req, plan.Effects, req.CreatedAt)
	return model.RepeatResult{Mode: plan.Mode(), RequestID: id, Currency: req.Currency}, nil
}

func (s *requestService) userCommand(ctx context.Context, actor model.Actor, id uuid.UUID, action lifecycle.Action, prepare func(*model.Request, *model.RequestPatch)) (*model.Request, error) {
	req, err := s.run(ctx, id, lifecycle.Command{Action: action, Actor: actor}, prepare)
	if err != nil {
		return nil, err
	}
	return userView(req), nil
}

// repeatSource loads a request the actor owns that carries an offer.
// Another user's request is reported as missing.
func (s *requestService) repeatSource(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Request, error) {
	source, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load repeat source: %w", err)
	}
	if source == nil || source.Offer == nil || source.UserID != actor.ID {
		return nil, model.ErrSourceNotFound
	}
	return source, nil
}

func (s *requestService) ensureUser(ctx context.Context, id uuid.UUID) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return model.ErrUserNotFound
	}
	return nil
}

func withReason(raw string) func(*model.Request, *model.RequestPatch) {
	return func(_ *model.Request, patch *model.RequestPatch) {
		patch.CancelReason = lifecycle.NormalizeReason(raw)
	}
}
