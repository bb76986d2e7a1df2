package jobs

import (
	"context"

	"plotwaitlist-backend/internal/logger"
)

// ExpireOffers sweeps pending offers past their deadline. Each offer expires
// in its own transaction, so one failure leaves the rest of the sweep intact.
func (jr *JobRunner) ExpireOffers() {
	jr.runWithRecovery("ExpireOffers", func(ctx context.Context) {
		expired, err := jr.waitlist.ExpireOffers(ctx)
		if err != nil {
			logger.Error("Offer expiry sweep finished with errors", "expired", len(expired), "error", err)
			return
		}
		logger.Info("Expired pending offers", "count", len(expired), "applicantIDs", expired)
	})
}

// SendMonthlyReminders emails every waiting applicant their queue position
func (jr *JobRunner) SendMonthlyReminders() {
	jr.runWithRecovery("SendMonthlyReminders", func(ctx context.Context) {
		n, err := jr.waitlist.SendMonthlyReminders(ctx)
		if err != nil {
			logger.Error("Failed to send monthly reminders", "error", err)
			return
		}
		logger.Info("Queued monthly reminders", "count", n)
	})
}
