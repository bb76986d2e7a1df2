package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"plotwaitlist-backend/internal/domain"
	"plotwaitlist-backend/internal/logger"
	"plotwaitlist-backend/internal/repository"

	"github.com/lib/pq"
)

const applicantColumns = `id, name, email, phone, address, comments, status, joined_at, updated_at, removed_at, magic_token, magic_token_expires`

// activeEmailIndex enforces one waiting or offered application per email.
const activeEmailIndex = "applicants_active_email_idx"

type applicantRepository struct {
	q    querier
	lock bool
}

func NewApplicantRepository(db *sql.DB) repository.ApplicantRepository {
	return &applicantRepository{q: db}
}

// forUpdate appends a row lock when the repository is bound to a transaction.
func (r *applicantRepository) forUpdate(query string) string {
	if r.lock {
		return query + " FOR UPDATE"
	}
	return query
}

func (r *applicantRepository) Create(ctx context.Context, a *domain.Applicant) error {
	logger.EnterMethod("applicantRepository.Create", "email", a.Email)

	query := `INSERT INTO applicants (name, email, phone, address, comments, status, joined_at, updated_at, magic_token, magic_token_expires)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	logger.DatabaseCall("INSERT", "applicants", "email", a.Email)
	err := r.q.QueryRowContext(ctx, query,
		a.Name, a.Email, a.Phone, a.Address, a.Comments, string(a.Status),
		a.JoinedAt, a.UpdatedAt, a.MagicToken, a.MagicTokenExpires,
	).Scan(&a.ID)
	logger.DatabaseResult("INSERT", 1, err, "applicantID", a.ID)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == activeEmailIndex {
		err = repository.ErrDuplicate
	}
	if err != nil {
		logger.ExitMethodWithError("applicantRepository.Create", err, "email", a.Email)
		return err
	}
	logger.ExitMethod("applicantRepository.Create", "applicantID", a.ID)
	return nil
}

func (r *applicantRepository) Update(ctx context.Context, id int64, p repository.ApplicantPatch) error {
	set := &setClause{}
	if p.Status != nil {
		set.add("status", string(*p.Status))
	}
	if p.JoinedAt != nil {
		set.add("joined_at", *p.JoinedAt)
	}
	if p.RemovedAt != nil {
		set.add("removed_at", *p.RemovedAt)
	}
	if p.MagicToken != nil {
		set.add("magic_token", *p.MagicToken)
	}
	if p.MagicTokenExpires != nil {
		set.add("magic_token_expires", *p.MagicTokenExpires)
	}
	set.add("updated_at", p.UpdatedAt)
	set.args = append(set.args, id)

	query := fmt.Sprintf(`UPDATE applicants SET %s WHERE id = $%d`, strings.Join(set.cols, ", "), len(set.args))
	logger.DatabaseCall("UPDATE", "applicants", "applicantID", id)
	res, err := r.q.ExecContext(ctx, query, set.args...)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "applicantID", id)
		return err
	}
	rows, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", rows, err, "applicantID", id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *applicantRepository) GetByID(ctx context.Context, id int64) (*domain.Applicant, error) {
	query := r.forUpdate(`SELECT ` + applicantColumns + ` FROM applicants WHERE id = $1`)
	return r.getOne(ctx, query, id)
}

// GetByEmail never locks. Applying and requesting a status link are not
// engine transitions and must not hold waiting rows the queue head needs.
func (r *applicantRepository) GetByEmail(ctx context.Context, email string) (*domain.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE email = $1 ORDER BY joined_at DESC, id DESC LIMIT 1`
	return r.getOne(ctx, query, email)
}

func (r *applicantRepository) GetByToken(ctx context.Context, token string, now time.Time) (*domain.Applicant, error) {
	query := r.forUpdate(`SELECT ` + applicantColumns + ` FROM applicants
	          WHERE magic_token = $1 AND (magic_token_expires IS NULL OR magic_token_expires > $2)`)
	return r.getOne(ctx, query, token, now)
}

func (r *applicantRepository) NextWaiting(ctx context.Context) (*domain.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE status = 'waiting' ORDER BY joined_at ASC, id ASC LIMIT 1`
	// A plain lock, not SKIP LOCKED: a head row held by another transaction
	// is waited for, so the minimum (joined_at, id) is always the one offered.
	// Rows that stop matching while waited for are re-checked and passed over.
	return r.getOne(ctx, r.forUpdate(query))
}

func (r *applicantRepository) ListWaiting(ctx context.Context) ([]domain.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE status = 'waiting' ORDER BY joined_at ASC, id ASC`
	return r.list(ctx, query)
}

func (r *applicantRepository) CountWaitingThrough(ctx context.Context, joinedAt time.Time, id int64) (int, error) {
	query := `SELECT COUNT(*) FROM applicants
	          WHERE status = 'waiting' AND (joined_at < $1 OR (joined_at = $1 AND id <= $2))`
	var count int
	logger.DatabaseCall("SELECT", "applicants.count_waiting", "applicantID", id)
	err := r.q.QueryRowContext(ctx, query, joinedAt, id).Scan(&count)
	logger.DatabaseResult("SELECT", 1, err, "count", count)
	return count, err
}

func (r *applicantRepository) ListRecent(ctx context.Context, limit int) ([]domain.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM applicants ORDER BY joined_at DESC, id DESC LIMIT $1`
	return r.list(ctx, query, limit)
}

func (r *applicantRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Applicant, error) {
	a, err := scanApplicant(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (r *applicantRepository) list(ctx context.Context, query string, args ...any) ([]domain.Applicant, error) {
	logger.DatabaseCall("SELECT", "applicants")
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err)
		return nil, err
	}
	defer rows.Close()

	var out []domain.Applicant
	for rows.Next() {
		a, err := scanApplicant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.DatabaseResult("SELECT", int64(len(out)), nil)
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplicant(row rowScanner) (*domain.Applicant, error) {
	var (
		a         domain.Applicant
		status    string
		removedAt sql.NullTime
		token     sql.NullString
		expires   sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.Address, &a.Comments, &status,
		&a.JoinedAt, &a.UpdatedAt, &removedAt, &token, &expires)
	if err != nil {
		return nil, err
	}
	a.Status = domain.ApplicantStatus(status)
	if removedAt.Valid {
		t := removedAt.Time
		a.RemovedAt = &t
	}
	if token.Valid {
		s := token.String
		a.MagicToken = &s
	}
	if expires.Valid {
		t := expires.Time
		a.MagicTokenExpires = &t
	}
	return &a, nil
}
