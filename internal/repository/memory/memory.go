// Package memory is an in-process Store used by tests and by the server's
// "memory" database driver for local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"plotwaitlist-backend/internal/domain"
	"plotwaitlist-backend/internal/repository"
)

type dataset struct {
	applicants map[int64]domain.Applicant
	offers     map[int64]domain.Offer
	plots      map[int64]domain.Plot

	nextApplicantID int64
	nextOfferID     int64
	nextPlotID      int64
}

func newDataset() *dataset {
	return &dataset{
		applicants: make(map[int64]domain.Applicant),
		offers:     make(map[int64]domain.Offer),
		plots:      make(map[int64]domain.Plot),
	}
}

func (d *dataset) clone() *dataset {
	c := &dataset{
		applicants:      make(map[int64]domain.Applicant, len(d.applicants)),
		offers:          make(map[int64]domain.Offer, len(d.offers)),
		plots:           make(map[int64]domain.Plot, len(d.plots)),
		nextApplicantID: d.nextApplicantID,
		nextOfferID:     d.nextOfferID,
		nextPlotID:      d.nextPlotID,
	}
	for k, v := range d.applicants {
		c.applicants[k] = v
	}
	for k, v := range d.offers {
		c.offers[k] = v
	}
	for k, v := range d.plots {
		c.plots[k] = v
	}
	return c
}

// Store keeps every record in maps. Transactions are serialized by txMu and
// work on a copy of the dataset that replaces the live one on commit.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *dataset
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{data: newDataset()}
}

func (s *Store) Applicants() repository.ApplicantRepository {
	return applicantRepo{v: &view{store: s}}
}

func (s *Store) Offers() repository.OfferRepository {
	return offerRepo{v: &view{store: s}}
}

func (s *Store) Plots() repository.PlotRepository {
	return plotRepo{v: &view{store: s}}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	working := s.data.clone()
	s.mu.RUnlock()

	tx := &view{store: s, data: working}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = working
	s.mu.Unlock()
	return nil
}

// view routes reads and writes either to a transaction's working copy or,
// outside a transaction, to the live dataset under the store locks.
type view struct {
	store *Store
	data  *dataset
}

func (v *view) Applicants() repository.ApplicantRepository { return applicantRepo{v: v} }
func (v *view) Offers() repository.OfferRepository         { return offerRepo{v: v} }
func (v *view) Plots() repository.PlotRepository           { return plotRepo{v: v} }

func (v *view) read(fn func(d *dataset)) {
	if v.data != nil {
		fn(v.data)
		return
	}
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	fn(v.store.data)
}

func (v *view) write(fn func(d *dataset)) {
	if v.data != nil {
		fn(v.data)
		return
	}
	v.store.txMu.Lock()
	defer v.store.txMu.Unlock()
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	fn(v.store.data)
}

type applicantRepo struct{ v *view }

func (r applicantRepo) Create(ctx context.Context, a *domain.Applicant) error {
	var err error
	r.v.write(func(d *dataset) {
		if !a.Status.IsTerminal() {
			for _, existing := range d.applicants {
				if existing.Email == a.Email && !existing.Status.IsTerminal() {
					err = repository.ErrDuplicate
					return
				}
			}
		}
		d.nextApplicantID++
		a.ID = d.nextApplicantID
		d.applicants[a.ID] = copyApplicant(*a)
	})
	return err
}

func (r applicantRepo) Update(ctx context.Context, id int64, patch repository.ApplicantPatch) error {
	var err error
	r.v.write(func(d *dataset) {
		a, ok := d.applicants[id]
		if !ok {
			err = repository.ErrNotFound
			return
		}
		patch.Apply(&a)
		d.applicants[id] = a
	})
	return err
}

func (r applicantRepo) GetByID(ctx context.Context, id int64) (*domain.Applicant, error) {
	return r.find(func(a *domain.Applicant) bool { return a.ID == id })
}

func (r applicantRepo) GetByEmail(ctx context.Context, email string) (*domain.Applicant, error) {
	var found *domain.Applicant
	r.v.read(func(d *dataset) {
		for _, a := range d.applicants {
			if a.Email != email {
				continue
			}
			if found == nil || a.JoinedAt.After(found.JoinedAt) || (a.JoinedAt.Equal(found.JoinedAt) && a.ID > found.ID) {
				c := copyApplicant(a)
				found = &c
			}
		}
	})
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (r applicantRepo) GetByToken(ctx context.Context, token string, now time.Time) (*domain.Applicant, error) {
	return r.find(func(a *domain.Applicant) bool { return a.TokenValid(token, now) })
}

func (r applicantRepo) NextWaiting(ctx context.Context) (*domain.Applicant, error) {
	waiting, _ := r.ListWaiting(ctx)
	if len(waiting) == 0 {
		return nil, repository.ErrNotFound
	}
	return &waiting[0], nil
}

func (r applicantRepo) ListWaiting(ctx context.Context) ([]domain.Applicant, error) {
	var out []domain.Applicant
	r.v.read(func(d *dataset) {
		for _, a := range d.applicants {
			if a.Status == domain.ApplicantStatusWaiting {
				out = append(out, copyApplicant(a))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].QueuedBefore(&out[j]) })
	return out, nil
}

func (r applicantRepo) CountWaitingThrough(ctx context.Context, joinedAt time.Time, id int64) (int, error) {
	pivot := &domain.Applicant{ID: id, JoinedAt: joinedAt}
	count := 0
	r.v.read(func(d *dataset) {
		for _, a := range d.applicants {
			if a.Status != domain.ApplicantStatusWaiting {
				continue
			}
			if a.ID == id || a.QueuedBefore(pivot) {
				count++
			}
		}
	})
	return count, nil
}

func (r applicantRepo) ListRecent(ctx context.Context, limit int) ([]domain.Applicant, error) {
	var out []domain.Applicant
	r.v.read(func(d *dataset) {
		for _, a := range d.applicants {
			out = append(out, copyApplicant(a))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[j].QueuedBefore(&out[i]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r applicantRepo) find(match func(a *domain.Applicant) bool) (*domain.Applicant, error) {
	var found *domain.Applicant
	r.v.read(func(d *dataset) {
		for _, a := range d.applicants {
			if match(&a) {
				c := copyApplicant(a)
				found = &c
				return
			}
		}
	})
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

type offerRepo struct{ v *view }

func (r offerRepo) Create(ctx context.Context, o *domain.Offer) error {
	r.v.write(func(d *dataset) {
		d.nextOfferID++
		o.ID = d.nextOfferID
		d.offers[o.ID] = copyOffer(*o)
	})
	return nil
}

func (r offerRepo) Update(ctx context.Context, id int64, patch repository.OfferPatch) error {
	var err error
	r.v.write(func(d *dataset) {
		o, ok := d.offers[id]
		if !ok {
			err = repository.ErrNotFound
			return
		}
		patch.Apply(&o)
		d.offers[id] = o
	})
	return err
}

func (r offerRepo) GetByID(ctx context.Context, id int64) (*domain.Offer, error) {
	return r.find(func(o *domain.Offer) bool { return o.ID == id })
}

func (r offerRepo) GetByToken(ctx context.Context, token string) (*domain.Offer, error) {
	return r.find(func(o *domain.Offer) bool { return o.Token == token })
}

func (r offerRepo) GetPendingForApplicant(ctx context.Context, applicantID int64) (*domain.Offer, error) {
	return r.find(func(o *domain.Offer) bool {
		return o.ApplicantID == applicantID && o.Status == domain.OfferStatusPending
	})
}

func (r offerRepo) ListExpiredPending(ctx context.Context, now time.Time) ([]domain.Offer, error) {
	var out []domain.Offer
	r.v.read(func(d *dataset) {
		for _, o := range d.offers {
			if o.ExpiredAt(now) {
				out = append(out, copyOffer(o))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	return out, nil
}

func (r offerRepo) find(match func(o *domain.Offer) bool) (*domain.Offer, error) {
	var found *domain.Offer
	r.v.read(func(d *dataset) {
		for _, o := range d.offers {
			if match(&o) {
				c := copyOffer(o)
				found = &c
				return
			}
		}
	})
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

type plotRepo struct{ v *view }

func (r plotRepo) Create(ctx context.Context, p *domain.Plot) error {
	r.v.write(func(d *dataset) {
		d.nextPlotID++
		p.ID = d.nextPlotID
		d.plots[p.ID] = *p
	})
	return nil
}

func (r plotRepo) GetByID(ctx context.Context, id int64) (*domain.Plot, error) {
	var (
		p  domain.Plot
		ok bool
	)
	r.v.read(func(d *dataset) { p, ok = d.plots[id] })
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r plotRepo) List(ctx context.Context) ([]domain.Plot, error) {
	var out []domain.Plot
	r.v.read(func(d *dataset) {
		for _, p := range d.plots {
			out = append(out, p)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// copyApplicant detaches pointer fields so callers never alias stored data.
func copyApplicant(a domain.Applicant) domain.Applicant {
	if a.RemovedAt != nil {
		t := *a.RemovedAt
		a.RemovedAt = &t
	}
	if a.MagicToken != nil {
		s := *a.MagicToken
		a.MagicToken = &s
	}
	if a.MagicTokenExpires != nil {
		t := *a.MagicTokenExpires
		a.MagicTokenExpires = &t
	}
	return a
}

func copyOffer(o domain.Offer) domain.Offer {
	if o.PlotID != nil {
		id := *o.PlotID
		o.PlotID = &id
	}
	return o
}
