package domain

import "time"

type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusDeclined OfferStatus = "declined"
	OfferStatusExpired  OfferStatus = "expired"
)

func (s OfferStatus) Label() string {
	switch s {
	case OfferStatusPending:
		return "Pending"
	case OfferStatusAccepted:
		return "Accepted"
	case OfferStatusDeclined:
		return "Declined"
	case OfferStatusExpired:
		return "Expired"
	}
	return string(s)
}

// Decision is an applicant's answer to a pending offer.
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionDeclined Decision = "declined"
)

type Offer struct {
	ID          int64       `json:"id"`
	ApplicantID int64       `json:"applicant_id"`
	Token       string      `json:"-"`
	Status      OfferStatus `json:"status"`
	ExpiresAt   time.Time   `json:"expires_at"`
	PlotID      *int64      `json:"plot_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ExpiredAt reports whether a pending offer has passed its deadline.
func (o *Offer) ExpiredAt(now time.Time) bool {
	return o.Status == OfferStatusPending && o.ExpiresAt.Before(now)
}
