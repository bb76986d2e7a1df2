package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"plotwaitlist-backend/internal/clock"
	"plotwaitlist-backend/internal/domain"
	"plotwaitlist-backend/internal/repository/memory"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

type testEnv struct {
	store      *memory.Store
	clock      *clock.Mock
	pub        *recordingPublisher
	waitlist   WaitlistService
	applicants ApplicantService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	clk := clock.NewMock(t0)
	pub := &recordingPublisher{}
	wl := NewWaitlistService(store, pub, clk, DefaultPolicy())
	return &testEnv{
		store:      store,
		clock:      clk,
		pub:        pub,
		waitlist:   wl,
		applicants: NewApplicantService(store, wl, pub, clk, DefaultPolicy()),
	}
}

// addWaiting stores a waiting applicant joined at the given time with a
// magic token equal to "magic-<name>".
func (e *testEnv) addWaiting(t *testing.T, name string, joined time.Time) *domain.Applicant {
	t.Helper()
	token := "magic-" + name
	expires := joined.Add(30 * 24 * time.Hour)
	a := &domain.Applicant{
		Name:              name,
		Email:             fmt.Sprintf("%s@example.com", name),
		Phone:             "555-0100",
		Address:           "1 Garden Way\nSpringfield, IL 62701",
		Status:            domain.ApplicantStatusWaiting,
		JoinedAt:          joined,
		UpdatedAt:         joined,
		MagicToken:        &token,
		MagicTokenExpires: &expires,
	}
	require.NoError(t, e.store.Applicants().Create(context.Background(), a))
	return a
}

func (e *testEnv) addPlot(t *testing.T, name string) *domain.Plot {
	t.Helper()
	p := &domain.Plot{Name: name, Available: true}
	require.NoError(t, e.store.Plots().Create(context.Background(), p))
	return p
}

func (e *testEnv) applicant(t *testing.T, id int64) *domain.Applicant {
	t.Helper()
	a, err := e.store.Applicants().GetByID(context.Background(), id)
	require.NoError(t, err)
	return a
}

func (e *testEnv) pendingOffer(t *testing.T, applicantID int64) *domain.Offer {
	t.Helper()
	o, err := e.store.Offers().GetPendingForApplicant(context.Background(), applicantID)
	require.NoError(t, err)
	return o
}
