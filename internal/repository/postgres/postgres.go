package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"plotwaitlist-backend/internal/logger"
	"plotwaitlist-backend/internal/repository"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
	repository.ApplicantRepository
	repository.OfferRepository
	repository.PlotRepository
}

var _ repository.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                  db,
		ApplicantRepository: NewApplicantRepository(db),
		OfferRepository:     NewOfferRepository(db),
		PlotRepository:      NewPlotRepository(db),
	}
}

func (s *Store) Applicants() repository.ApplicantRepository { return s.ApplicantRepository }
func (s *Store) Offers() repository.OfferRepository         { return s.OfferRepository }
func (s *Store) Plots() repository.PlotRepository           { return s.PlotRepository }

// txRepositories binds repositories to one transaction with row locking on.
type txRepositories struct {
	applicants repository.ApplicantRepository
	offers     repository.OfferRepository
	plots      repository.PlotRepository
}

func (t *txRepositories) Applicants() repository.ApplicantRepository { return t.applicants }
func (t *txRepositories) Offers() repository.OfferRepository         { return t.offers }
func (t *txRepositories) Plots() repository.PlotRepository           { return t.plots }

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	repos := &txRepositories{
		applicants: &applicantRepository{q: tx, lock: true},
		offers:     &offerRepository{q: tx, lock: true},
		plots:      &plotRepository{q: tx},
	}
	if err := fn(repos); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Migrate creates the waitlist tables and indexes if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	logger.DatabaseCall("MIGRATE", "schema.sql")
	_, err := db.ExecContext(ctx, schemaSQL)
	logger.DatabaseResult("MIGRATE", 0, err)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if err == sql.ErrNoRows {
		return repository.ErrNotFound
	}
	return err
}

// setClause accumulates "column = $n" fragments for partial updates.
type setClause struct {
	cols []string
	args []any
}

func (c *setClause) add(col string, val any) {
	c.args = append(c.args, val)
	c.cols = append(c.cols, fmt.Sprintf("%s = $%d", col, len(c.args)))
}
