package domain

import "time"

type EventType string

const (
	EventApplicantJoined     EventType = "applicant_joined"
	EventStatusLinkRequested EventType = "status_link_requested"
	EventOfferIssued         EventType = "offer_issued"
	EventOfferAccepted       EventType = "offer_accepted"
	EventOfferDeclined       EventType = "offer_declined"
	EventOfferExpired        EventType = "offer_expired"
	EventApplicantRemoved    EventType = "applicant_removed"
	EventApplicantLeft       EventType = "applicant_left"
	EventMonthlyReminder     EventType = "monthly_reminder"
)

// Event is emitted by the waitlist engine after a committed transition and
// consumed by the notification dispatcher.
type Event struct {
	Type       EventType
	Applicant  Applicant
	Offer      *Offer
	Position   int
	OccurredAt time.Time
}
