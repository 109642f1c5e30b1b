package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"linky/internal/model"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var requestColumnNames = []string{
	"id", "user_id", "product_url", "title_hint", "original_price", "currency",
	"status", "payment_status", "cancel_reason", "is_repeat", "repeat_source_id",
	"created_at", "updated_at",
	"offer_id", "product_title", "image_url", "linky_price", "eta_days", "note",
	"admin_source_url", "offer_created_at", "offer_updated_at",
}

func ptr[T any](v T) *T { return &v }

func requestRowValues(req *model.Request) []any {
	vals := []any{
		req.ID, req.UserID, req.ProductURL, req.TitleHint, req.OriginalPrice, req.Currency,
		string(req.Status), string(req.PaymentStatus), req.CancelReason, req.IsRepeat, req.RepeatSourceID,
		req.CreatedAt, req.UpdatedAt,
	}
	if req.Offer == nil {
		return append(vals, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	}
	o := req.Offer
	return append(vals,
		ptr(o.ID), ptr(o.ProductTitle), o.ImageURL, ptr(o.LinkyPrice), ptr(o.EtaDays), o.Note,
		o.AdminSourceURL, ptr(o.CreatedAt), ptr(o.UpdatedAt),
	)
}

func sampleRequest(withOffer bool) *model.Request {
	now := time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC)
	req := &model.Request{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		ProductURL:    "https://shop.test/p/1",
		TitleHint:     ptr("Lamp"),
		OriginalPrice: ptr(decimal.NewFromInt(120)),
		Currency:      "GEL",
		Status:        model.StatusNew,
		PaymentStatus: model.PaymentNone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if withOffer {
		req.Status = model.StatusOffered
		req.Offer = &model.Offer{
			ID:             uuid.New(),
			RequestID:      req.ID,
			ProductTitle:   "Desk Lamp",
			LinkyPrice:     decimal.NewFromInt(90),
			EtaDays:        6,
			AdminSourceURL: ptr("https://supplier.test/lamp"),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}
	return req
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, RequestRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewRequestRepository(mock, zerolog.Nop())
}

func TestRequestRepository_GetByID_WithOffer(t *testing.T) {
	mock, repo := newMockRepo(t)
	want := sampleRequest(true)

	mock.ExpectQuery("LEFT JOIN offers").
		WithArgs(want.ID).
		WillReturnRows(pgxmock.NewRows(requestColumnNames).AddRow(requestRowValues(want)...))

	got, err := repo.GetByID(context.Background(), want.ID)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, model.StatusOffered, got.Status)
	assert.Equal(t, model.PaymentNone, got.PaymentStatus)
	assert.Equal(t, "Lamp", *got.TitleHint)
	require.NotNil(t, got.Offer)
	assert.Equal(t, want.Offer.ID, got.Offer.ID)
	assert.Equal(t, want.ID, got.Offer.RequestID)
	assert.True(t, got.Offer.LinkyPrice.Equal(decimal.NewFromInt(90)))
	assert.Equal(t, 6, got.Offer.EtaDays)
	assert.Nil(t, got.Offer.ImageURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_GetByID_WithoutOffer(t *testing.T) {
	mock, repo := newMockRepo(t)
	want := sampleRequest(false)

	mock.ExpectQuery("LEFT JOIN offers").
		WithArgs(want.ID).
		WillReturnRows(pgxmock.NewRows(requestColumnNames).AddRow(requestRowValues(want)...))

	got, err := repo.GetByID(context.Background(), want.ID)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Offer)
	assert.Equal(t, model.StatusNew, got.Status)
}

func TestRequestRepository_GetByID_NotFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("LEFT JOIN offers").WithArgs(id).WillReturnRows(pgxmock.NewRows(requestColumnNames))

	got, err := repo.GetByID(context.Background(), id)

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRequestRepository_GetByID_QueryError(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("LEFT JOIN offers").WithArgs(id).WillReturnError(errors.New("connection reset"))

	got, err := repo.GetByID(context.Background(), id)

	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "failed to query request")
}

func TestRequestRepository_List_Filters(t *testing.T) {
	mock, repo := newMockRepo(t)
	userID := uuid.New()
	row := sampleRequest(true)

	mock.ExpectQuery(`r.user_id = \$1 AND r.status = ANY\(\$2\)`).
		WithArgs(userID, []string{"OFFERED", "NOT_FOUND"}, 100, 0).
		WillReturnRows(pgxmock.NewRows(requestColumnNames).AddRow(requestRowValues(row)...))

	got, err := repo.List(context.Background(), model.RequestFilter{
		UserID:   &userID,
		Statuses: []model.RequestStatus{model.StatusOffered, model.StatusNotFound},
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, row.ID, got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_List_Empty(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("ORDER BY r.created_at DESC").
		WithArgs(20, 40).
		WillReturnRows(pgxmock.NewRows(requestColumnNames))

	got, err := repo.List(context.Background(), model.RequestFilter{Limit: 20, Offset: 40})

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRequestRepository_ListExpirable(t *testing.T) {
	mock, repo := newMockRepo(t)
	cutoff := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	row := sampleRequest(true)

	mock.ExpectQuery(`r.status = 'OFFERED' AND o.updated_at < \$1`).
		WithArgs(cutoff).
		WillReturnRows(pgxmock.NewRows(requestColumnNames).AddRow(requestRowValues(row)...))

	got, err := repo.ListExpirable(context.Background(), cutoff)

	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Offer)
}

func TestRequestRepository_Create_WithOffer(t *testing.T) {
	mock, repo := newMockRepo(t)
	req := sampleRequest(true)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO requests").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO offers").
		WithArgs(req.Offer.ID, req.ID, "Desk Lamp", req.Offer.ImageURL, req.Offer.LinkyPrice, 6,
			req.Offer.Note, req.Offer.AdminSourceURL, req.Offer.CreatedAt, req.Offer.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), req)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_Create_RollsBackOnOfferFailure(t *testing.T) {
	mock, repo := newMockRepo(t)
	req := sampleRequest(true)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO requests").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO offers").WillReturnError(errors.New("check violation"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), req)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert offer")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_UpdateStatus(t *testing.T) {
	at := time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)
	reason := "changed my mind"

	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "row matched", affected: 1},
		{name: "state moved on", affected: 0, wantErr: model.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, repo := newMockRepo(t)
			id := uuid.New()

			mock.ExpectExec("UPDATE requests").
				WithArgs(id, "OFFERED", "NONE", "CANCELLED", "NONE", &reason, at).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			err := repo.UpdateStatus(context.Background(), id,
				Expected{Status: model.StatusOffered, PaymentStatus: model.PaymentNone},
				model.RequestPatch{
					Status:        model.StatusCancelled,
					PaymentStatus: model.PaymentNone,
					CancelReason:  &reason,
					UpdatedAt:     at,
				})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRequestRepository_SaveOffer(t *testing.T) {
	mock, repo := newMockRepo(t)
	req := sampleRequest(true)
	offer := req.Offer
	price := decimal.NewFromInt(100)
	storedImage := ptr("https://cdn.test/lamp.png")
	created := offer.CreatedAt.Add(-time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE requests").
		WithArgs(req.ID, "OFFERED", "NONE", "OFFERED", "NONE", &price, offer.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("ON CONFLICT \\(request_id\\)").
		WillReturnRows(pgxmock.NewRows([]string{"id", "image_url", "created_at"}).
			AddRow(offer.ID, storedImage, created))
	mock.ExpectCommit()

	saved, err := repo.SaveOffer(context.Background(), req.ID,
		Expected{Status: model.StatusOffered, PaymentStatus: model.PaymentNone},
		model.RequestPatch{Status: model.StatusOffered, PaymentStatus: model.PaymentNone, OriginalPrice: &price, UpdatedAt: offer.UpdatedAt},
		offer)

	require.NoError(t, err)
	assert.Equal(t, offer.ID, saved.ID)
	assert.Equal(t, created, saved.CreatedAt)
	require.NotNil(t, saved.ImageURL)
	assert.Equal(t, *storedImage, *saved.ImageURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_SaveOffer_Conflict(t *testing.T) {
	mock, repo := newMockRepo(t)
	req := sampleRequest(true)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE requests").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	saved, err := repo.SaveOffer(context.Background(), req.ID,
		Expected{Status: model.StatusScouting, PaymentStatus: model.PaymentNone},
		model.RequestPatch{Status: model.StatusOffered, PaymentStatus: model.PaymentNone},
		req.Offer)

	assert.ErrorIs(t, err, model.ErrConflict)
	assert.Nil(t, saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_CreateRepeatDraft(t *testing.T) {
	since := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

	t.Run("creates when no recent draft", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		req := sampleRequest(true)
		req.Status = model.StatusNew
		req.IsRepeat = true
		req.RepeatSourceID = ptr(uuid.New())

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").
			WithArgs(req.UserID.String(), req.RepeatSourceID.String()).
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectQuery("SELECT id FROM requests").
			WithArgs(req.UserID, *req.RepeatSourceID, since).
			WillReturnRows(pgxmock.NewRows([]string{"id"}))
		mock.ExpectExec("INSERT INTO requests").WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec("INSERT INTO offers").WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		id, created, err := repo.CreateRepeatDraft(context.Background(), req, since)

		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, req.ID, id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns recent draft", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		req := sampleRequest(true)
		req.IsRepeat = true
		req.RepeatSourceID = ptr(uuid.New())
		existing := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectQuery("SELECT id FROM requests").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(existing))
		mock.ExpectRollback()

		id, created, err := repo.CreateRepeatDraft(context.Background(), req, since)

		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, existing, id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("requires a source", func(t *testing.T) {
		_, repo := newMockRepo(t)

		_, _, err := repo.CreateRepeatDraft(context.Background(), sampleRequest(false), since)

		require.Error(t, err)
	})
}

func TestUserRepository(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewUserRepository(mock, zerolog.Nop())

	user := &model.User{ID: uuid.New(), Role: model.RoleUser, Username: "nino", Email: "nino@linky.test"}
	created := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs(user.ID, "USER", "nino", "nino@linky.test", user.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))
	mock.ExpectQuery("FROM users").
		WithArgs(user.ID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "role", "username", "email", "created_at"}).
			AddRow(user.ID, "USER", "nino", "nino@linky.test", created))
	mock.ExpectQuery("FROM users").
		WillReturnRows(pgxmock.NewRows([]string{"id", "role", "username", "email", "created_at"}))

	require.NoError(t, repo.Upsert(context.Background(), user))
	assert.Equal(t, created, user.CreatedAt)

	got, err := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.RoleUser, got.Role)
	assert.Equal(t, "nino", got.Username)

	missing, err := repo.GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.NoError(t, mock.ExpectationsWereMet())
}
