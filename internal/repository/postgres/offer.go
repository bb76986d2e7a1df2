package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"plotwaitlist-backend/internal/domain"
	"plotwaitlist-backend/internal/logger"
	"plotwaitlist-backend/internal/repository"
)

const offerColumns = `id, applicant_id, offer_token, status, expires_at, plot_id, created_at, updated_at`

type offerRepository struct {
	q    querier
	lock bool
}

func NewOfferRepository(db *sql.DB) repository.OfferRepository {
	return &offerRepository{q: db}
}

func (r *offerRepository) forUpdate(query string) string {
	if r.lock {
		return query + " FOR UPDATE"
	}
	return query
}

func (r *offerRepository) Create(ctx context.Context, o *domain.Offer) error {
	logger.EnterMethod("offerRepository.Create", "applicantID", o.ApplicantID)

	query := `INSERT INTO offers (applicant_id, offer_token, status, expires_at, plot_id, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	logger.DatabaseCall("INSERT", "offers", "applicantID", o.ApplicantID)
	err := r.q.QueryRowContext(ctx, query,
		o.ApplicantID, o.Token, string(o.Status), o.ExpiresAt, o.PlotID, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	logger.DatabaseResult("INSERT", 1, err, "offerID", o.ID)

	if err != nil {
		logger.ExitMethodWithError("offerRepository.Create", err, "applicantID", o.ApplicantID)
		return err
	}
	logger.ExitMethod("offerRepository.Create", "offerID", o.ID)
	return nil
}

func (r *offerRepository) Update(ctx context.Context, id int64, p repository.OfferPatch) error {
	set := &setClause{}
	if p.Status != nil {
		set.add("status", string(*p.Status))
	}
	set.add("updated_at", p.UpdatedAt)
	set.args = append(set.args, id)

	query := fmt.Sprintf(`UPDATE offers SET %s WHERE id = $%d`, strings.Join(set.cols, ", "), len(set.args))
	logger.DatabaseCall("UPDATE", "offers", "offerID", id)
	res, err := r.q.ExecContext(ctx, query, set.args...)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "offerID", id)
		return err
	}
	rows, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", rows, err, "offerID", id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *offerRepository) GetByID(ctx context.Context, id int64) (*domain.Offer, error) {
	return r.getOne(ctx, r.forUpdate(`SELECT `+offerColumns+` FROM offers WHERE id = $1`), id)
}

func (r *offerRepository) GetByToken(ctx context.Context, token string) (*domain.Offer, error) {
	return r.getOne(ctx, r.forUpdate(`SELECT `+offerColumns+` FROM offers WHERE offer_token = $1`), token)
}

func (r *offerRepository) GetPendingForApplicant(ctx context.Context, applicantID int64) (*domain.Offer, error) {
	query := r.forUpdate(`SELECT ` + offerColumns + ` FROM offers WHERE applicant_id = $1 AND status = 'pending'`)
	return r.getOne(ctx, query, applicantID)
}

func (r *offerRepository) ListExpiredPending(ctx context.Context, now time.Time) ([]domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers
	          WHERE status = 'pending' AND expires_at < $1 ORDER BY expires_at ASC, id ASC`
	logger.DatabaseCall("SELECT", "offers.expired_pending")
	rows, err := r.q.QueryContext(ctx, query, now)
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err)
		return nil, err
	}
	defer rows.Close()

	var out []domain.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.DatabaseResult("SELECT", int64(len(out)), nil)
	return out, nil
}

func (r *offerRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Offer, error) {
	o, err := scanOffer(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return o, nil
}

func scanOffer(row rowScanner) (*domain.Offer, error) {
	var (
		o      domain.Offer
		status string
		plotID sql.NullInt64
	)
	if err := row.Scan(&o.ID, &o.ApplicantID, &o.Token, &status, &o.ExpiresAt, &plotID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = domain.OfferStatus(status)
	if plotID.Valid {
		id := plotID.Int64
		o.PlotID = &id
	}
	return &o, nil
}
