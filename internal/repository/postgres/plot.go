package postgres

import (
	"context"
	"database/sql"

	"plotwaitlist-backend/internal/domain"
	"plotwaitlist-backend/internal/repository"
)

type plotRepository struct {
	q querier
}

func NewPlotRepository(db *sql.DB) repository.PlotRepository {
	return &plotRepository{q: db}
}

func (r *plotRepository) Create(ctx context.Context, p *domain.Plot) error {
	query := `INSERT INTO plots (name, description, available) VALUES ($1, $2, $3) RETURNING id`
	return r.q.QueryRowContext(ctx, query, p.Name, p.Description, p.Available).Scan(&p.ID)
}

func (r *plotRepository) GetByID(ctx context.Context, id int64) (*domain.Plot, error) {
	p := &domain.Plot{}
	query := `SELECT id, name, description, available FROM plots WHERE id = $1`
	err := r.q.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Description, &p.Available)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (r *plotRepository) List(ctx context.Context) ([]domain.Plot, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, name, description, available FROM plots ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plots []domain.Plot
	for rows.Next() {
		var p domain.Plot
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Available); err != nil {
			return nil, err
		}
		plots = append(plots, p)
	}
	return plots, rows.Err()
}
