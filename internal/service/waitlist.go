package service

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"plotwaitlist-backend/internal/clock"
	"plotwaitlist-backend/internal/domain"
	"plotwaitlist-backend/internal/logger"
	"plotwaitlist-backend/internal/metrics"
	"plotwaitlist-backend/internal/repository"
)

type waitlistService struct {
	store     repository.Store
	publisher EventPublisher
	clock     clock.Clock
	policy    Policy
	tokens    TokenSource
}

func NewWaitlistService(
	store repository.Store,
	publisher EventPublisher,
	clk clock.Clock,
	policy Policy,
) WaitlistService {
	return &waitlistService{
		store:     store,
		publisher: publisher,
		clock:     clk,
		policy:    policy,
		tokens:    RandomToken,
	}
}

func (s *waitlistService) OfferNext(ctx context.Context, plotID *int64) (*OfferResult, error) {
	logger.EnterMethod("waitlistService.OfferNext", "plotID", plotID)

	var res *OfferResult
	err := runTx(ctx, s.store, s.publisher, func(tx repository.Repositories, out *outbox) error {
		if plotID != nil {
			if _, err := tx.Plots().GetByID(ctx, *plotID); err != nil {
				return notFoundAs(err, domain.ErrPlotNotFound)
			}
		}
		var err error
		res, err = s.offerNextTx(ctx, tx, out, plotID)
		return err
	})
	if err != nil {
		logger.ExitMethodWithError("waitlistService.OfferNext", err, "plotID", plotID)
		return nil, err
	}

	logger.ExitMethod("waitlistService.OfferNext", "noEligibleApplicant", res.NoEligibleApplicant)
	return res, nil
}

// offerNextTx offers plotID to the head of the waiting queue inside tx. It
// is also the cascade step after a decline, removal or expiry.
func (s *waitlistService) offerNextTx(ctx context.Context, tx repository.Repositories, out *outbox, plotID *int64) (*OfferResult, error) {
	applicant, err := tx.Applicants().NextWaiting(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Debug("No waiting applicant to offer", "plotID", plotID)
		return &OfferResult{NoEligibleApplicant: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select next applicant: %w", err)
	}

	existing, err := tx.Offers().GetPendingForApplicant(ctx, applicant.ID)
	if err == nil {
		return nil, fmt.Errorf("%w: applicant %d already holds pending offer %d", domain.ErrInvalidState, applicant.ID, existing.ID)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	token, err := uniqueToken(ctx, s.tokens, offerTokenInUse(tx.Offers()))
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	offer := &domain.Offer{
		ApplicantID: applicant.ID,
		Token:       token,
		Status:      domain.OfferStatusPending,
		ExpiresAt:   now.Add(s.policy.OfferExpiration),
		PlotID:      plotID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.Offers().Create(ctx, offer); err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}

	patch := repository.ApplicantPatch{Status: ptr(domain.ApplicantStatusOffered), UpdatedAt: now}
	if err := tx.Applicants().Update(ctx, applicant.ID, patch); err != nil {
		return nil, fmt.Errorf("mark applicant offered: %w", err)
	}
	patch.Apply(applicant)

	out.issued++
	out.emit(domain.Event{Type: domain.EventOfferIssued, Applicant: *applicant, Offer: offer, OccurredAt: now})
	logger.Info("Offer issued", "applicantID", applicant.ID, "offerID", offer.ID, "plotID", plotID, "expiresAt", offer.ExpiresAt)

	return &OfferResult{Offer: offer, Applicant: applicant}, nil
}

func (s *waitlistService) RespondToOffer(ctx context.Context, token string, decision domain.Decision) (*RespondResult, error) {
	logger.EnterMethod("waitlistService.RespondToOffer", "decision", decision)

	if decision != domain.DecisionAccepted && decision != domain.DecisionDeclined {
		return nil, domain.ErrInvalidDecision
	}

	// Resolve the token without a lock; rows are locked applicant first.
	found, err := s.store.Offers().GetByToken(ctx, token)
	if err != nil {
		err = notFoundAs(err, domain.ErrOfferNotFound)
		logger.ExitMethodWithError("waitlistService.RespondToOffer", err, "decision", decision)
		return nil, err
	}

	var res *RespondResult
	err = runTx(ctx, s.store, s.publisher, func(tx repository.Repositories, out *outbox) error {
		applicant, offer, err := lockOffer(ctx, tx, found)
		if err != nil {
			return err
		}
		if offer.Status != domain.OfferStatusPending {
			return domain.ErrOfferNotPending
		}

		now := s.clock.Now()
		offerPatch := repository.OfferPatch{UpdatedAt: now}
		applicantPatch := repository.ApplicantPatch{UpdatedAt: now}
		evType := domain.EventOfferAccepted
		if decision == domain.DecisionAccepted {
			offerPatch.Status = ptr(domain.OfferStatusAccepted)
			applicantPatch.Status = ptr(domain.ApplicantStatusAccepted)
		} else {
			offerPatch.Status = ptr(domain.OfferStatusDeclined)
			applicantPatch.Status = ptr(domain.ApplicantStatusLeftWaitlist)
			applicantPatch.RemovedAt = &now
			evType = domain.EventOfferDeclined
		}

		if err := tx.Offers().Update(ctx, offer.ID, offerPatch); err != nil {
			return fmt.Errorf("update offer: %w", err)
		}
		if err := tx.Applicants().Update(ctx, applicant.ID, applicantPatch); err != nil {
			return fmt.Errorf("update applicant: %w", err)
		}
		offerPatch.Apply(offer)
		applicantPatch.Apply(applicant)

		out.resolved = append(out.resolved, offer.Status)
		out.emit(domain.Event{Type: evType, Applicant: *applicant, Offer: offer, OccurredAt: now})
		res = &RespondResult{Offer: *offer, Applicant: *applicant}

		if decision == domain.DecisionDeclined {
			next, err := s.offerNextTx(ctx, tx, out, offer.PlotID)
			if err != nil {
				return fmt.Errorf("cascade after decline: %w", err)
			}
			res.Next = next
		}
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("waitlistService.RespondToOffer", err, "decision", decision)
		return nil, err
	}

	logger.ExitMethod("waitlistService.RespondToOffer", "offerID", res.Offer.ID, "status", res.Offer.Status)
	return res, nil
}

// ExpireOffers sweeps pending offers past their deadline. Each offer is
// handled in its own transaction so one failure does not stop the sweep;
// per-offer errors are joined into the returned error.
func (s *waitlistService) ExpireOffers(ctx context.Context) ([]int64, error) {
	logger.EnterMethod("waitlistService.ExpireOffers")

	now := s.clock.Now()
	candidates, err := s.store.Offers().ListExpiredPending(ctx, now)
	if err != nil {
		logger.ExitMethodWithError("waitlistService.ExpireOffers", err)
		return nil, fmt.Errorf("list expired offers: %w", err)
	}

	var (
		expired []int64
		errs    []error
	)
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		applicantID, ok, err := s.expireOne(ctx, &candidate)
		if err != nil {
			metrics.ExpirySweepErrorsTotal.Inc()
			logger.Error("Failed to expire offer", "offerID", candidate.ID, "error", err)
			errs = append(errs, fmt.Errorf("offer %d: %w", candidate.ID, err))
			continue
		}
		if ok {
			expired = append(expired, applicantID)
		}
	}

	logger.ExitMethod("waitlistService.ExpireOffers", "expired", len(expired), "failed", len(errs))
	return expired, errors.Join(errs...)
}

// expireOne re-reads the offer under lock and skips it when another caller
// already resolved it.
func (s *waitlistService) expireOne(ctx context.Context, candidate *domain.Offer) (int64, bool, error) {
	var (
		applicantID int64
		done        bool
	)
	err := runTx(ctx, s.store, s.publisher, func(tx repository.Repositories, out *outbox) error {
		now := s.clock.Now()
		applicant, offer, err := lockOffer(ctx, tx, candidate)
		if err != nil {
			return err
		}
		if !offer.ExpiredAt(now) {
			done = false
			return nil
		}

		offerPatch := repository.OfferPatch{Status: ptr(domain.OfferStatusExpired), UpdatedAt: now}
		if err := tx.Offers().Update(ctx, offer.ID, offerPatch); err != nil {
			return fmt.Errorf("update offer: %w", err)
		}
		offerPatch.Apply(offer)

		// Non-response forfeits queue priority: back of the line.
		applicantPatch := repository.ApplicantPatch{
			Status:    ptr(domain.ApplicantStatusWaiting),
			JoinedAt:  &now,
			UpdatedAt: now,
		}
		if err := tx.Applicants().Update(ctx, applicant.ID, applicantPatch); err != nil {
			return fmt.Errorf("requeue applicant: %w", err)
		}
		applicantPatch.Apply(applicant)

		out.resolved = append(out.resolved, domain.OfferStatusExpired)
		out.emit(domain.Event{Type: domain.EventOfferExpired, Applicant: *applicant, Offer: offer, OccurredAt: now})

		if _, err := s.offerNextTx(ctx, tx, out, offer.PlotID); err != nil {
			return fmt.Errorf("cascade after expiry: %w", err)
		}
		applicantID, done = applicant.ID, true
		return nil
	})
	return applicantID, done, err
}

// lockOffer locks the offer's applicant and then the offer itself. Every
// engine transaction takes applicant rows before offer rows. The offer is
// re-read under lock and may have changed since found was loaded.
func lockOffer(ctx context.Context, tx repository.Repositories, found *domain.Offer) (*domain.Applicant, *domain.Offer, error) {
	applicant, err := tx.Applicants().GetByID(ctx, found.ApplicantID)
	if err != nil {
		return nil, nil, notFoundAs(err, domain.ErrApplicantNotFound)
	}
	offer, err := tx.Offers().GetByID(ctx, found.ID)
	if err != nil {
		return nil, nil, notFoundAs(err, domain.ErrOfferNotFound)
	}
	return applicant, offer, nil
}

func (s *waitlistService) RemoveApplicant(ctx context.Context, applicantID int64) (*RemoveResult, error) {
	logger.EnterMethod("waitlistService.RemoveApplicant", "applicantID", applicantID)

	var res *RemoveResult
	err := runTx(ctx, s.store, s.publisher, func(tx repository.Repositories, out *outbox) error {
		applicant, err := tx.Applicants().GetByID(ctx, applicantID)
		if err != nil {
			return notFoundAs(err, domain.ErrApplicantNotFound)
		}
		res, err = s.withdrawTx(ctx, tx, out, applicant, domain.ApplicantStatusRemoved, domain.EventApplicantRemoved)
		return err
	})
	if err != nil {
		logger.ExitMethodWithError("waitlistService.RemoveApplicant", err, "applicantID", applicantID)
		return nil, err
	}

	logger.ExitMethod("waitlistService.RemoveApplicant", "applicantID", applicantID)
	return res, nil
}

func (s *waitlistService) LeaveWaitlist(ctx context.Context, magicToken string) (*RemoveResult, error) {
	logger.EnterMethod("waitlistService.LeaveWaitlist")

	var res *RemoveResult
	err := runTx(ctx, s.store, s.publisher, func(tx repository.Repositories, out *outbox) error {
		if magicToken == "" {
			return domain.ErrApplicantNotFound
		}
		applicant, err := tx.Applicants().GetByToken(ctx, magicToken, s.clock.Now())
		if err != nil {
			return notFoundAs(err, domain.ErrApplicantNotFound)
		}
		res, err = s.withdrawTx(ctx, tx, out, applicant, domain.ApplicantStatusLeftWaitlist, domain.EventApplicantLeft)
		return err
	})
	if err != nil {
		logger.ExitMethodWithError("waitlistService.LeaveWaitlist", err)
		return nil, err
	}

	logger.ExitMethod("waitlistService.LeaveWaitlist", "applicantID", res.Applicant.ID)
	return res, nil
}

// withdrawTx moves a non-terminal applicant to a terminal status and
// declines any pending offer they hold, cascading it to the next applicant.
func (s *waitlistService) withdrawTx(
	ctx context.Context,
	tx repository.Repositories,
	out *outbox,
	applicant *domain.Applicant,
	status domain.ApplicantStatus,
	evType domain.EventType,
) (*RemoveResult, error) {
	if applicant.Status.IsTerminal() {
		return nil, domain.ErrAlreadyTerminal
	}

	now := s.clock.Now()
	patch := repository.ApplicantPatch{Status: &status, RemovedAt: &now, UpdatedAt: now}
	if err := tx.Applicants().Update(ctx, applicant.ID, patch); err != nil {
		return nil, fmt.Errorf("update applicant: %w", err)
	}
	patch.Apply(applicant)
	out.emit(domain.Event{Type: evType, Applicant: *applicant, OccurredAt: now})
	res := &RemoveResult{Applicant: *applicant}

	offer, err := tx.Offers().GetPendingForApplicant(ctx, applicant.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	offerPatch := repository.OfferPatch{Status: ptr(domain.OfferStatusDeclined), UpdatedAt: now}
	if err := tx.Offers().Update(ctx, offer.ID, offerPatch); err != nil {
		return nil, fmt.Errorf("decline offer: %w", err)
	}
	offerPatch.Apply(offer)
	out.resolved = append(out.resolved, domain.OfferStatusDeclined)
	res.DeclinedOffer = offer

	next, err := s.offerNextTx(ctx, tx, out, offer.PlotID)
	if err != nil {
		return nil, fmt.Errorf("cascade after withdrawal: %w", err)
	}
	res.Next = next
	return res, nil
}

// ComputePosition returns the 1-based queue position of a waiting applicant.
func (s *waitlistService) ComputePosition(ctx context.Context, applicant *domain.Applicant) (int, error) {
	n, err := s.store.Applicants().CountWaitingThrough(ctx, applicant.JoinedAt, applicant.ID)
	if err != nil {
		return 0, err
	}
	return max(n, 1), nil
}

// MonthlyReport snapshots the waiting queue and returns a sequence of
// (applicant, position) pairs in queue order. The sequence can be ranged
// over more than once.
func (s *waitlistService) MonthlyReport(ctx context.Context) (iter.Seq2[domain.Applicant, int], error) {
	waiting, err := s.store.Applicants().ListWaiting(ctx)
	if err != nil {
		return nil, fmt.Errorf("list waiting applicants: %w", err)
	}
	return func(yield func(domain.Applicant, int) bool) {
		for i, a := range waiting {
			if !yield(a, i+1) {
				return
			}
		}
	}, nil
}

// SendMonthlyReminders publishes one reminder per waiting applicant and
// returns how many were queued.
func (s *waitlistService) SendMonthlyReminders(ctx context.Context) (int, error) {
	logger.EnterMethod("waitlistService.SendMonthlyReminders")

	report, err := s.MonthlyReport(ctx)
	if err != nil {
		logger.ExitMethodWithError("waitlistService.SendMonthlyReminders", err)
		return 0, err
	}

	now := s.clock.Now()
	var events []domain.Event
	for applicant, position := range report {
		events = append(events, domain.Event{
			Type:       domain.EventMonthlyReminder,
			Applicant:  applicant,
			Position:   position,
			OccurredAt: now,
		})
	}
	metrics.WaitingApplicants.Set(float64(len(events)))
	if len(events) > 0 {
		s.publisher.Publish(ctx, events...)
	}

	logger.ExitMethod("waitlistService.SendMonthlyReminders", "reminders", len(events))
	return len(events), nil
}
