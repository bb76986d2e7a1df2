package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"plotwaitlist-backend/internal/domain"
	"plotwaitlist-backend/internal/repository"
	"plotwaitlist-backend/internal/repository/postgres"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var offerCols = []string{"id", "applicant_id", "offer_token", "status", "expires_at", "plot_id", "created_at", "updated_at"}

func TestOfferRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewOfferRepository(db)
	now := time.Now().UTC()
	plotID := int64(3)

	o := &domain.Offer{
		ApplicantID: 1,
		Token:       "tok",
		Status:      domain.OfferStatusPending,
		ExpiresAt:   now.AddDate(0, 0, 5),
		PlotID:      &plotID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectQuery("INSERT INTO offers").
		WithArgs(int64(1), "tok", "pending", o.ExpiresAt, int64(3), now, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	err = repo.Create(context.Background(), o)
	assert.NoError(t, err)
	assert.Equal(t, int64(11), o.ID)
}

func TestOfferRepository_GetByToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewOfferRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM offers WHERE offer_token = \\$1").
			WithArgs("tok").
			WillReturnRows(sqlmock.NewRows(offerCols).AddRow(2, 1, "tok", "pending", now, nil, now, now))

		o, err := repo.GetByToken(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, domain.OfferStatusPending, o.Status)
		assert.Nil(t, o.PlotID)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM offers WHERE offer_token = \\$1").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		o, err := repo.GetByToken(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, o)
	})
}

func TestOfferRepository_ListExpiredPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewOfferRepository(db)
	now := time.Now().UTC()
	past := now.Add(-time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM offers\\s+WHERE status = 'pending' AND expires_at < \\$1").
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows(offerCols).
			AddRow(1, 10, "t1", "pending", past, 2, past, past).
			AddRow(2, 11, "t2", "pending", past, nil, past, past))

	offers, err := repo.ListExpiredPending(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	require.NotNil(t, offers[0].PlotID)
	assert.Equal(t, int64(2), *offers[0].PlotID)
	assert.Equal(t, int64(11), offers[1].ApplicantID)
}

func TestOfferRepository_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewOfferRepository(db)
	now := time.Now().UTC()
	status := domain.OfferStatusExpired

	mock.ExpectExec("UPDATE offers SET status = \\$1, updated_at = \\$2 WHERE id = \\$3").
		WithArgs("expired", now, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Update(context.Background(), 4, repository.OfferPatch{Status: &status, UpdatedAt: now})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlotRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewPlotRepository(db)
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		p := &domain.Plot{Name: "A1", Description: "Raised bed", Available: true}
		mock.ExpectQuery("INSERT INTO plots").
			WithArgs("A1", "Raised bed", true).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		require.NoError(t, repo.Create(ctx, p))
		assert.Equal(t, int64(1), p.ID)
	})

	t.Run("GetByIDNotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM plots WHERE id = \\$1").
			WithArgs(int64(9)).
			WillReturnError(sql.ErrNoRows)

		p, err := repo.GetByID(ctx, 9)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, p)
	})

	t.Run("List", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM plots ORDER BY id").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "available"}).
				AddRow(1, "A1", "", true).
				AddRow(2, "A2", "", false))

		plots, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, plots, 2)
		assert.False(t, plots[1].Available)
	})
}
