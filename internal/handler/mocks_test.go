package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"linky/internal/middleware"
	"linky/internal/model"
	"linky/internal/sourcing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockRequestService is a mock implementation of RequestService.
type MockRequestService struct {
	mock.Mock
}

func (m *MockRequestService) request(args mock.Arguments) (*model.Request, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Request), args.Error(1)
}

func (m *MockRequestService) Submit(ctx context.Context, actor model.Actor, in model.SubmitRequest) (*model.Request, error) {
	return m.request(m.Called(ctx, actor, in))
}

func (m *MockRequestService) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Request, error) {
	return m.request(m.Called(ctx, actor, id))
}

func (m *MockRequestService) ListMine(ctx context.Context, actor model.Actor, group string) ([]model.Request, error) {
	args := m.Called(ctx, actor, group)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Request), args.Error(1)
}

func (m *MockRequestService) Pay50(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Request, error) {
	return m.request(m.Called(ctx, actor, id))
}

func (m *MockRequestService) PayRemaining(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Request, error) {
	return m.request(m.Called(ctx, actor, id))
}

func (m *MockRequestService) Decline(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Request, error) {
	return m.request(m.Called(ctx, actor, id, reason))
}

func (m *MockRequestService) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Request, error) {
	return m.request(m.Called(ctx, actor, id, reason))
}

func (m *MockRequestService) AcknowledgeNotFound(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Request, error) {
	return m.request(m.Called(ctx, actor, id))
}

func (m *MockRequestService) RepeatPreview(ctx context.Context, actor model.Actor, sourceID uuid.UUID) (model.RepeatPreview, error) {
	args := m.Called(ctx, actor, sourceID)
	return args.Get(0).(model.RepeatPreview), args.Error(1)
}

func (m *MockRequestService) RepeatConfirm(ctx context.Context, actor model.Actor, sourceID uuid.UUID) (model.RepeatResult, error) {
	args := m.Called(ctx, actor, sourceID)
	return args.Get(0).(model.RepeatResult), args.Error(1)
}

// MockAdminService is a mock implementation of AdminService.
type MockAdminService struct {
	mock.Mock
}

func (m *MockAdminService) request(args mock.Arguments) (*model.Request, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Request), args.Error(1)
}

func (m *MockAdminService) List(ctx context.Context, actor model.Actor, group string) ([]model.Request, error) {
	args := m.Called(ctx, actor, group)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Request), args.Error(1)
}

func (m *MockAdminService) Scout(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Request, error) {
	return m.request(m.Called(ctx, actor, id))
}

func (m *MockAdminService) MarkNotFound(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Request, error) {
	return m.request(m.Called(ctx, actor, id, reason))
}

func (m *MockAdminService) SaveOffer(ctx context.Context, actor model.Actor, id uuid.UUID, form model.OfferForm) (*model.Request, error) {
	return m.request(m.Called(ctx, actor, id, form))
}

func (m *MockAdminService) Advance(ctx context.Context, actor model.Actor, id uuid.UUID, target model.RequestStatus) (*model.Request, error) {
	return m.request(m.Called(ctx, actor, id, target))
}

func (m *MockAdminService) ExpireStaleOffers(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockAdminService) SourceHints(ctx context.Context, actor model.Actor, id uuid.UUID) ([]sourcing.Hint, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]sourcing.Hint), args.Error(1)
}

func (m *MockAdminService) UpsertUser(ctx context.Context, actor model.Actor, id uuid.UUID, in model.UserInput) (*model.User, error) {
	args := m.Called(ctx, actor, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

var (
	userActor  = model.Actor{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Role: model.RoleUser}
	adminActor = model.Actor{ID: uuid.MustParse("99999999-9999-9999-9999-999999999999"), Role: model.RoleAdmin}
)

// serve routes a single request through pattern so chi URL params resolve.
func serve(method, pattern, path, body string, actor *model.Actor, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(method, pattern, h)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if actor != nil {
		req = req.WithContext(middleware.WithActor(req.Context(), *actor))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
