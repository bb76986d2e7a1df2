package service

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"plotwaitlist-backend/internal/clock"
	"plotwaitlist-backend/internal/domain"
	"plotwaitlist-backend/internal/logger"
	"plotwaitlist-backend/internal/repository"
)

// recentApplicantsLimit caps the admin dashboard listing.
const recentApplicantsLimit = 100

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ApplicationInput is a waitlist application as submitted by the public form.
type ApplicationInput struct {
	FirstName             string `json:"first_name" validate:"required"`
	LastName              string `json:"last_name" validate:"required"`
	Email                 string `json:"email" validate:"required,email"`
	Phone                 string `json:"phone" validate:"required"`
	Address               string `json:"address" validate:"required"`
	City                  string `json:"city" validate:"required"`
	State                 string `json:"state" validate:"required"`
	Zip                   string `json:"zip" validate:"required"`
	PlotNumber            string `json:"plot_number"`
	EmergencyContactName  string `json:"emergency_contact_name"`
	EmergencyContactPhone string `json:"emergency_contact_phone"`
	Comments              string `json:"comments"`
}

func (in *ApplicationInput) normalize() {
	for _, f := range []*string{
		&in.FirstName, &in.LastName, &in.Email, &in.Phone, &in.Address, &in.City,
		&in.State, &in.Zip, &in.PlotNumber, &in.EmergencyContactName, &in.EmergencyContactPhone,
		&in.Comments,
	} {
		*f = strings.TrimSpace(*f)
	}
	in.Email = strings.ToLower(in.Email)
}

func (in *ApplicationInput) check() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &domain.ValidationError{}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, domain.FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return ve
}

// toApplicant folds the form into the stored applicant shape: a full name,
// a two-line postal address and notes prepended to the comments.
func (in *ApplicationInput) toApplicant() *domain.Applicant {
	name := strings.TrimSpace(in.FirstName + " " + in.LastName)
	address := in.Address + "\n" + strings.TrimSpace(in.City+", "+in.State+" "+in.Zip)

	var notes []string
	if in.PlotNumber != "" {
		notes = append(notes, "Plot number: "+in.PlotNumber)
	}
	if in.EmergencyContactName != "" || in.EmergencyContactPhone != "" {
		notes = append(notes, "Emergency contact: "+strings.TrimSpace(in.EmergencyContactName+" "+in.EmergencyContactPhone))
	}
	comments := in.Comments
	if len(notes) > 0 {
		comments = strings.TrimSpace(strings.Join(notes, "\n") + "\n" + in.Comments)
	}

	return &domain.Applicant{
		Name:     name,
		Email:    in.Email,
		Phone:    in.Phone,
		Address:  address,
		Comments: comments,
		Status:   domain.ApplicantStatusWaiting,
	}
}

type ApplyResult struct {
	Applicant domain.Applicant `json:"applicant"`
	Position  int              `json:"position"`
}

// StatusView is what an applicant sees through their magic link.
type StatusView struct {
	Applicant   domain.Applicant `json:"applicant"`
	StatusLabel string           `json:"status_label"`
	// Position is set only while the applicant is waiting.
	Position int `json:"position,omitempty"`
	// PendingOffer is set only while the applicant holds an offer.
	PendingOffer *domain.Offer `json:"pending_offer,omitempty"`
}

type applicantService struct {
	store     repository.Store
	waitlist  WaitlistService
	publisher EventPublisher
	clock     clock.Clock
	policy    Policy
	tokens    TokenSource
}

func NewApplicantService(
	store repository.Store,
	waitlist WaitlistService,
	publisher EventPublisher,
	clk clock.Clock,
	policy Policy,
) ApplicantService {
	return &applicantService{
		store:     store,
		waitlist:  waitlist,
		publisher: publisher,
		clock:     clk,
		policy:    policy,
		tokens:    RandomToken,
	}
}

func (s *applicantService) Apply(ctx context.Context, in ApplicationInput) (*ApplyResult, error) {
	logger.EnterMethod("applicantService.Apply", "email", in.Email)

	in.normalize()
	if err := in.check(); err != nil {
		logger.ExitMethodWithError("applicantService.Apply", err, "email", in.Email)
		return nil, err
	}

	applicant := in.toApplicant()
	err := runTx(ctx, s.store, s.publisher, func(tx repository.Repositories, out *outbox) error {
		existing, err := tx.Applicants().GetByEmail(ctx, applicant.Email)
		if err == nil && !existing.Status.IsTerminal() {
			return domain.ErrAlreadyOnWaitlist
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		token, err := uniqueToken(ctx, s.tokens, magicTokenInUse(tx.Applicants()))
		if err != nil {
			return err
		}
		now := s.clock.Now()
		expires := now.Add(s.policy.StatusTokenTTL)
		applicant.JoinedAt = now
		applicant.UpdatedAt = now
		applicant.MagicToken = &token
		applicant.MagicTokenExpires = &expires

		if err := tx.Applicants().Create(ctx, applicant); err != nil {
			// A concurrent application for the same email won the race.
			if errors.Is(err, repository.ErrDuplicate) {
				return domain.ErrAlreadyOnWaitlist
			}
			return err
		}
		out.emit(domain.Event{Type: domain.EventApplicantJoined, Applicant: *applicant, OccurredAt: now})
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("applicantService.Apply", err, "email", in.Email)
		return nil, err
	}

	position, err := s.waitlist.ComputePosition(ctx, applicant)
	if err != nil {
		return nil, err
	}

	logger.ExitMethod("applicantService.Apply", "applicantID", applicant.ID, "position", position)
	return &ApplyResult{Applicant: *applicant, Position: position}, nil
}

// RequestStatusLink issues a fresh magic token to the newest application for
// email and sends it by mail.
func (s *applicantService) RequestStatusLink(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(email, "required,email"); err != nil {
		return &domain.ValidationError{Fields: []domain.FieldError{{Field: "email", Rule: "email"}}}
	}

	return runTx(ctx, s.store, s.publisher, func(tx repository.Repositories, out *outbox) error {
		applicant, err := tx.Applicants().GetByEmail(ctx, email)
		if err != nil {
			return notFoundAs(err, domain.ErrApplicantNotFound)
		}

		token, err := uniqueToken(ctx, s.tokens, magicTokenInUse(tx.Applicants()))
		if err != nil {
			return err
		}
		now := s.clock.Now()
		expires := now.Add(s.policy.StatusLinkTTL)
		patch := repository.ApplicantPatch{MagicToken: &token, MagicTokenExpires: &expires, UpdatedAt: now}
		if err := tx.Applicants().Update(ctx, applicant.ID, patch); err != nil {
			return err
		}
		patch.Apply(applicant)

		out.emit(domain.Event{Type: domain.EventStatusLinkRequested, Applicant: *applicant, OccurredAt: now})
		return nil
	})
}

func (s *applicantService) GetStatus(ctx context.Context, magicToken string) (*StatusView, error) {
	if magicToken == "" {
		return nil, domain.ErrApplicantNotFound
	}
	applicant, err := s.store.Applicants().GetByToken(ctx, magicToken, s.clock.Now())
	if err != nil {
		return nil, notFoundAs(err, domain.ErrApplicantNotFound)
	}

	view := &StatusView{Applicant: *applicant, StatusLabel: applicant.Status.Label()}
	switch applicant.Status {
	case domain.ApplicantStatusWaiting:
		if view.Position, err = s.waitlist.ComputePosition(ctx, applicant); err != nil {
			return nil, err
		}
	case domain.ApplicantStatusOffered:
		offer, err := s.store.Offers().GetPendingForApplicant(ctx, applicant.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		view.PendingOffer = offer
	}
	return view, nil
}

func (s *applicantService) ListApplicants(ctx context.Context) ([]domain.Applicant, error) {
	return s.store.Applicants().ListRecent(ctx, recentApplicantsLimit)
}

type plotService struct {
	plotRepo repository.PlotRepository
}

func NewPlotService(plotRepo repository.PlotRepository) PlotService {
	return &plotService{plotRepo: plotRepo}
}

func (s *plotService) CreatePlot(ctx context.Context, plot *domain.Plot) error {
	plot.Name = strings.TrimSpace(plot.Name)
	if plot.Name == "" {
		return &domain.ValidationError{Fields: []domain.FieldError{{Field: "name", Rule: "required"}}}
	}
	return s.plotRepo.Create(ctx, plot)
}

func (s *plotService) ListPlots(ctx context.Context) ([]domain.Plot, error) {
	return s.plotRepo.List(ctx)
}
