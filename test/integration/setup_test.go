package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"linky/internal/database"
	"linky/internal/handler"
	"linky/internal/lifecycle"
	"linky/internal/middleware"
	"linky/internal/model"
	"linky/internal/notify"
	"linky/internal/repository"
	"linky/internal/router"
	"linky/internal/service"
	"linky/internal/sourcing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testAPIKey = "test-api-key"

// SetupTestDB starts a PostgreSQL container with the schema migrated.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}
	if err := database.Migrate(ctx, pool, zerolog.Nop()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return pool
}

// clock is a settable time source shared by the services under test.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Dispatch(_ context.Context, events ...notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, events...)
}

// Take returns and clears the recorded event names.
func (n *recordingNotifier) Take() []notify.EventName {
	n.mu.Lock()
	defer n.mu.Unlock()
	names := make([]notify.EventName, len(n.events))
	for i, ev := range n.events {
		names[i] = ev.Name
	}
	n.events = nil
	return names
}

type testServer struct {
	handler  http.Handler
	clock    *clock
	notifier *recordingNotifier
}

func setupTestServer(t *testing.T, pool *pgxpool.Pool) *testServer {
	t.Helper()

	logger := zerolog.Nop()
	clk := &clock{now: time.Now().UTC().Truncate(time.Microsecond)}
	notifier := &recordingNotifier{}

	deps := service.Deps{
		Requests: repository.NewRequestRepository(pool, logger),
		Users:    repository.NewUserRepository(pool, logger),
		Engine:   lifecycle.New(lifecycle.DefaultConfig()),
		Notifier: notifier,
		Catalog: sourcing.NewCatalog([]sourcing.BrandSource{{
			Brand:   "Bioderma",
			Country: "France",
			Primary: []sourcing.SourceSite{{Site: "pharma-gdd.com", Label: "Pharma GDD", Kind: "FR"}},
		}}),
		AppURL:     "https://linky.test",
		AdminEmail: "ops@linky.test",
		Logger:     logger,
		Now:        clk.Now,
	}

	return &testServer{
		handler: router.New(
			handler.NewRequestHandler(service.NewRequestService(deps), logger),
			handler.NewAdminHandler(service.NewAdminService(deps), logger),
			testAPIKey,
			logger,
		),
		clock:    clk,
		notifier: notifier,
	}
}

func (s *testServer) do(t *testing.T, actor model.Actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderAPIKey, testAPIKey)
	req.Header.Set(middleware.HeaderActorID, actor.ID.String())
	req.Header.Set(middleware.HeaderActorRole, string(actor.Role))

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
