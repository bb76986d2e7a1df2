package repository

import (
	"context"
	"errors"
	"time"

	"plotwaitlist-backend/internal/domain"
)

// ErrNotFound is returned by single-record lookups when nothing matches.
// It signals normal absence, not a datastore failure.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned by Create when a uniqueness rule on the record
// would be broken, such as a second active application for one email.
var ErrDuplicate = errors.New("duplicate record")

// ApplicantPatch holds the fields to change on an applicant. Nil fields are
// left untouched; UpdatedAt is always written.
type ApplicantPatch struct {
	Status            *domain.ApplicantStatus
	JoinedAt          *time.Time
	RemovedAt         *time.Time
	MagicToken        *string
	MagicTokenExpires *time.Time
	UpdatedAt         time.Time
}

// Apply copies the patch onto a in place.
func (p ApplicantPatch) Apply(a *domain.Applicant) {
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.JoinedAt != nil {
		a.JoinedAt = *p.JoinedAt
	}
	if p.RemovedAt != nil {
		t := *p.RemovedAt
		a.RemovedAt = &t
	}
	if p.MagicToken != nil {
		tok := *p.MagicToken
		a.MagicToken = &tok
	}
	if p.MagicTokenExpires != nil {
		t := *p.MagicTokenExpires
		a.MagicTokenExpires = &t
	}
	a.UpdatedAt = p.UpdatedAt
}

// OfferPatch holds the fields to change on an offer.
type OfferPatch struct {
	Status    *domain.OfferStatus
	UpdatedAt time.Time
}

func (p OfferPatch) Apply(o *domain.Offer) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	o.UpdatedAt = p.UpdatedAt
}

type ApplicantRepository interface {
	Create(ctx context.Context, applicant *domain.Applicant) error
	Update(ctx context.Context, id int64, patch ApplicantPatch) error
	GetByID(ctx context.Context, id int64) (*domain.Applicant, error)
	// GetByEmail returns the most recently joined applicant for email.
	GetByEmail(ctx context.Context, email string) (*domain.Applicant, error)
	// GetByToken matches a magic token that has not expired at now.
	GetByToken(ctx context.Context, token string, now time.Time) (*domain.Applicant, error)

	// NextWaiting returns the head of the waiting queue ordered by
	// (joined_at, id).
	NextWaiting(ctx context.Context) (*domain.Applicant, error)
	ListWaiting(ctx context.Context) ([]domain.Applicant, error)
	// CountWaitingThrough counts waiting applicants whose (joined_at, id) is
	// less than or equal to the given pair.
	CountWaitingThrough(ctx context.Context, joinedAt time.Time, id int64) (int, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Applicant, error)
}

type OfferRepository interface {
	Create(ctx context.Context, offer *domain.Offer) error
	Update(ctx context.Context, id int64, patch OfferPatch) error
	GetByID(ctx context.Context, id int64) (*domain.Offer, error)
	GetByToken(ctx context.Context, token string) (*domain.Offer, error)
	GetPendingForApplicant(ctx context.Context, applicantID int64) (*domain.Offer, error)
	ListExpiredPending(ctx context.Context, now time.Time) ([]domain.Offer, error)
}

type PlotRepository interface {
	Create(ctx context.Context, plot *domain.Plot) error
	GetByID(ctx context.Context, id int64) (*domain.Plot, error)
	List(ctx context.Context) ([]domain.Plot, error)
}

// Repositories groups the per-aggregate repositories that share one
// connection or transaction.
type Repositories interface {
	Applicants() ApplicantRepository
	Offers() OfferRepository
	Plots() PlotRepository
}

// Store is the datastore boundary used by the waitlist engine.
type Store interface {
	Repositories
	// WithinTx runs fn inside a single transaction. Rows read through tx are
	// locked until fn returns; a non-nil error rolls everything back.
	WithinTx(ctx context.Context, fn func(tx Repositories) error) error
}
