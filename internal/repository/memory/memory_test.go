package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plotwaitlist-backend/internal/domain"
	"plotwaitlist-backend/internal/repository"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func addApplicant(t *testing.T, s *Store, email string, joined time.Time, status domain.ApplicantStatus) *domain.Applicant {
	t.Helper()
	a := &domain.Applicant{Name: email, Email: email, Status: status, JoinedAt: joined, UpdatedAt: joined}
	require.NoError(t, s.Applicants().Create(context.Background(), a))
	return a
}

func TestApplicantQueueOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	b := addApplicant(t, s, "b@example.com", t0.Add(time.Minute), domain.ApplicantStatusWaiting)
	a := addApplicant(t, s, "a@example.com", t0, domain.ApplicantStatusWaiting)
	c := addApplicant(t, s, "c@example.com", t0, domain.ApplicantStatusWaiting)
	addApplicant(t, s, "d@example.com", t0.Add(-time.Hour), domain.ApplicantStatusOffered)

	waiting, err := s.Applicants().ListWaiting(ctx)
	require.NoError(t, err)
	require.Len(t, waiting, 3)
	assert.Equal(t, []int64{a.ID, c.ID, b.ID}, []int64{waiting[0].ID, waiting[1].ID, waiting[2].ID})

	head, err := s.Applicants().NextWaiting(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.ID, head.ID)

	n, err := s.Applicants().CountWaitingThrough(ctx, c.JoinedAt, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGetByEmailReturnsMostRecent(t *testing.T) {
	s := NewStore()
	addApplicant(t, s, "ann@example.com", t0, domain.ApplicantStatusLeftWaitlist)
	latest := addApplicant(t, s, "ann@example.com", t0.AddDate(0, 1, 0), domain.ApplicantStatusWaiting)

	got, err := s.Applicants().GetByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, latest.ID, got.ID)

	_, err = s.Applicants().GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateRejectsSecondActiveApplication(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	addApplicant(t, s, "ann@example.com", t0, domain.ApplicantStatusOffered)

	dup := &domain.Applicant{Email: "ann@example.com", Status: domain.ApplicantStatusWaiting}
	assert.ErrorIs(t, s.Applicants().Create(ctx, dup), repository.ErrDuplicate)
	assert.Zero(t, dup.ID)

	addApplicant(t, s, "bea@example.com", t0, domain.ApplicantStatusRemoved)
	addApplicant(t, s, "bea@example.com", t0.Add(time.Hour), domain.ApplicantStatusWaiting)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	tok := "magic"
	a := &domain.Applicant{Email: "x@example.com", Status: domain.ApplicantStatusWaiting, MagicToken: &tok}
	require.NoError(t, s.Applicants().Create(ctx, a))

	got, err := s.Applicants().GetByToken(ctx, "magic", t0)
	require.NoError(t, err)
	*got.MagicToken = "changed"
	got.Status = domain.ApplicantStatusRemoved

	again, err := s.Applicants().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "magic", *again.MagicToken)
	assert.Equal(t, domain.ApplicantStatusWaiting, again.Status)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := addApplicant(t, s, "a@example.com", t0, domain.ApplicantStatusWaiting)

	offered := domain.ApplicantStatusOffered
	err := s.WithinTx(ctx, func(tx repository.Repositories) error {
		require.NoError(t, tx.Applicants().Update(ctx, a.ID, repository.ApplicantPatch{Status: &offered, UpdatedAt: t0}))
		require.NoError(t, tx.Offers().Create(ctx, &domain.Offer{ApplicantID: a.ID, Token: "t", Status: domain.OfferStatusPending}))
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	got, err := s.Applicants().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApplicantStatusWaiting, got.Status)
	_, err = s.Offers().GetByToken(ctx, "t")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWithinTxCommits(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	var offerID int64
	require.NoError(t, s.WithinTx(ctx, func(tx repository.Repositories) error {
		o := &domain.Offer{ApplicantID: 1, Token: "t", Status: domain.OfferStatusPending, ExpiresAt: t0}
		if err := tx.Offers().Create(ctx, o); err != nil {
			return err
		}
		offerID = o.ID
		return nil
	}))

	pending, err := s.Offers().GetPendingForApplicant(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, offerID, pending.ID)

	expired, err := s.Offers().ListExpiredPending(ctx, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Len(t, expired, 1)
}

func TestWithinTxHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := NewStore().WithinTx(ctx, func(tx repository.Repositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestConcurrentWritesGetDistinctIDs(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	ids := make([]int64, 50)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := &domain.Plot{Name: "plot"}
			_ = s.Plots().Create(context.Background(), p)
			ids[i] = p.ID
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
	plots, err := s.Plots().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, plots, 50)
}
