package service

import (
	"context"
	"errors"
	"iter"
	"time"

	"plotwaitlist-backend/internal/domain"
	"plotwaitlist-backend/internal/metrics"
	"plotwaitlist-backend/internal/repository"
)

// WaitlistService is the offer lifecycle engine. Every mutating operation
// runs in one datastore transaction and publishes its events after commit.
type WaitlistService interface {
	OfferNext(ctx context.Context, plotID *int64) (*OfferResult, error)
	RespondToOffer(ctx context.Context, token string, decision domain.Decision) (*RespondResult, error)
	ExpireOffers(ctx context.Context) ([]int64, error)
	RemoveApplicant(ctx context.Context, applicantID int64) (*RemoveResult, error)
	LeaveWaitlist(ctx context.Context, magicToken string) (*RemoveResult, error)
	ComputePosition(ctx context.Context, applicant *domain.Applicant) (int, error)
	MonthlyReport(ctx context.Context) (iter.Seq2[domain.Applicant, int], error)
	SendMonthlyReminders(ctx context.Context) (int, error)
}

type ApplicantService interface {
	Apply(ctx context.Context, in ApplicationInput) (*ApplyResult, error)
	RequestStatusLink(ctx context.Context, email string) error
	GetStatus(ctx context.Context, magicToken string) (*StatusView, error)
	ListApplicants(ctx context.Context) ([]domain.Applicant, error)
}

type PlotService interface {
	CreatePlot(ctx context.Context, plot *domain.Plot) error
	ListPlots(ctx context.Context) ([]domain.Plot, error)
}

// EventPublisher receives committed waitlist events. Implementations must not
// block the caller.
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.Event)
}

// Policy holds the waitlist timing settings.
type Policy struct {
	OfferExpiration time.Duration
	StatusTokenTTL  time.Duration
	StatusLinkTTL   time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		OfferExpiration: 5 * 24 * time.Hour,
		StatusTokenTTL:  30 * 24 * time.Hour,
		StatusLinkTTL:   7 * 24 * time.Hour,
	}
}

// OfferResult reports the outcome of OfferNext. NoEligibleApplicant is set
// when the waiting queue was empty; it is not an error.
type OfferResult struct {
	Offer               *domain.Offer     `json:"offer,omitempty"`
	Applicant           *domain.Applicant `json:"applicant,omitempty"`
	NoEligibleApplicant bool              `json:"no_eligible_applicant"`
}

type RespondResult struct {
	Offer     domain.Offer     `json:"offer"`
	Applicant domain.Applicant `json:"applicant"`
	// Next is the cascaded offer after a decline.
	Next *OfferResult `json:"next,omitempty"`
}

type RemoveResult struct {
	Applicant     domain.Applicant `json:"applicant"`
	DeclinedOffer *domain.Offer    `json:"declined_offer,omitempty"`
	Next          *OfferResult     `json:"next,omitempty"`
}

// outbox collects what a transaction wants to announce. Nothing in it is
// published unless the transaction commits.
type outbox struct {
	events   []domain.Event
	issued   int
	resolved []domain.OfferStatus
}

func (o *outbox) emit(ev domain.Event) {
	o.events = append(o.events, ev)
}

func (o *outbox) flush(ctx context.Context, p EventPublisher) {
	metrics.OffersIssuedTotal.Add(float64(o.issued))
	for _, status := range o.resolved {
		metrics.OffersResolvedTotal.WithLabelValues(string(status)).Inc()
	}
	if len(o.events) > 0 {
		p.Publish(ctx, o.events...)
	}
}

// runTx executes fn in one transaction and publishes its outbox on commit.
func runTx(ctx context.Context, store repository.Store, p EventPublisher, fn func(tx repository.Repositories, out *outbox) error) error {
	out := &outbox{}
	err := store.WithinTx(ctx, func(tx repository.Repositories) error {
		// A retried closure starts from an empty outbox.
		*out = outbox{}
		return fn(tx, out)
	})
	if err != nil {
		return err
	}
	out.flush(ctx, p)
	return nil
}

// notFoundAs translates repository absence into a domain error.
func notFoundAs(err, target error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target
	}
	return err
}

func ptr[T any](v T) *T {
	return &v
}
