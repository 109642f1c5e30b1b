package service

import (
	"context"
	"sync"
	"time"

	"linky/internal/lifecycle"
	"linky/internal/model"
	"linky/internal/notify"
	"linky/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockRequestRepository is a mock implementation of RequestRepository.
type MockRequestRepository struct {
	mock.Mock
}

func (m *MockRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Request), args.Error(1)
}

func (m *MockRequestRepository) List(ctx context.Context, filter model.RequestFilter) ([]model.Request, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Request), args.Error(1)
}

func (m *MockRequestRepository) ListExpirable(ctx context.Context, cutoff time.Time) ([]model.Request, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Request), args.Error(1)
}

func (m *MockRequestRepository) Create(ctx context.Context, req *model.Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockRequestRepository) CreateRepeatDraft(ctx context.Context, req *model.Request, since time.Time) (uuid.UUID, bool, error) {
	args := m.Called(ctx, req, since)
	return args.Get(0).(uuid.UUID), args.Bool(1), args.Error(2)
}

func (m *MockRequestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expected repository.Expected, patch model.RequestPatch) error {
	args := m.Called(ctx, id, expected, patch)
	return args.Error(0)
}

func (m *MockRequestRepository) SaveOffer(ctx context.Context, id uuid.UUID, expected repository.Expected, patch model.RequestPatch, offer *model.Offer) (*model.Offer, error) {
	args := m.Called(ctx, id, expected, patch, offer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Offer), args.Error(1)
}

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) Upsert(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// recordingNotifier captures dispatched events synchronously.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Dispatch(_ context.Context, events ...notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, events...)
}

func (n *recordingNotifier) names() []notify.EventName {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.EventName, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Name
	}
	return out
}

var (
	testNow    = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ownerID    = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	strangerID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	adminID    = uuid.MustParse("99999999-9999-9999-9999-999999999999")
	owner      = model.Actor{ID: ownerID, Role: model.RoleUser}
	stranger   = model.Actor{ID: strangerID, Role: model.RoleUser}
	admin      = model.Actor{ID: adminID, Role: model.RoleAdmin}
	ownerUser  = &model.User{ID: ownerID, Role: model.RoleUser, Username: "nino", Email: "nino@example.com"}
)

const (
	testAppURL     = "https://linky.test"
	testAdminEmail = "ops@linky.test"
)

type fixture struct {
	requests *MockRequestRepository
	users    *MockUserRepository
	notifier *recordingNotifier
	deps     Deps
}

func newFixture() *fixture {
	f := &fixture{
		requests: new(MockRequestRepository),
		users:    new(MockUserRepository),
		notifier: &recordingNotifier{},
	}
	f.deps = Deps{
		Requests:   f.requests,
		Users:      f.users,
		Engine:     lifecycle.New(lifecycle.DefaultConfig()),
		Notifier:   f.notifier,
		AppURL:     testAppURL,
		AdminEmail: testAdminEmail,
		Logger:     zerolog.Nop(),
		Now:        func() time.Time { return testNow },
	}
	return f
}

func (f *fixture) assertExpectations(t mock.TestingT) {
	f.requests.AssertExpectations(t)
	f.users.AssertExpectations(t)
}

func sampleRequest(status model.RequestStatus, payment model.PaymentStatus, price string, offerAge time.Duration) *model.Request {
	title := "Cicaplast Baume B5"
	req := &model.Request{
		ID:            uuid.New(),
		UserID:        ownerID,
		ProductURL:    "https://shop.test/cicaplast",
		TitleHint:     &title,
		Currency:      "GEL",
		Status:        status,
		PaymentStatus: payment,
		CreatedAt:     testNow.Add(-30 * 24 * time.Hour),
		UpdatedAt:     testNow.Add(-offerAge),
	}
	if price != "" {
		src := "https://pharmacy.fr/cicaplast"
		req.Offer = &model.Offer{
			ID:             uuid.New(),
			RequestID:      req.ID,
			ProductTitle:   "La Roche-Posay Cicaplast Baume B5 40ml",
			LinkyPrice:     decimal.RequireFromString(price),
			EtaDays:        10,
			AdminSourceURL: &src,
			CreatedAt:      testNow.Add(-offerAge),
			UpdatedAt:      testNow.Add(-offerAge),
		}
	}
	return req
}

func patchTo(status model.RequestStatus, payment model.PaymentStatus) model.RequestPatch {
	return model.RequestPatch{Status: status, PaymentStatus: payment, UpdatedAt: testNow}
}

func expect(req *model.Request) repository.Expected {
	return repository.Expected{Status: req.Status, PaymentStatus: req.PaymentStatus}
}
