package domain

import "time"

type ApplicantStatus string

const (
	ApplicantStatusWaiting      ApplicantStatus = "waiting"
	ApplicantStatusOffered      ApplicantStatus = "offered"
	ApplicantStatusAccepted     ApplicantStatus = "accepted"
	ApplicantStatusRemoved      ApplicantStatus = "removed"
	ApplicantStatusLeftWaitlist ApplicantStatus = "left_waitlist"
)

// IsTerminal reports whether no further engine transition is allowed from s.
func (s ApplicantStatus) IsTerminal() bool {
	switch s {
	case ApplicantStatusAccepted, ApplicantStatusRemoved, ApplicantStatusLeftWaitlist:
		return true
	}
	return false
}

// Label returns the human-readable status shown on status and admin screens.
func (s ApplicantStatus) Label() string {
	switch s {
	case ApplicantStatusWaiting:
		return "Waiting"
	case ApplicantStatusOffered:
		return "Offered"
	case ApplicantStatusAccepted:
		return "Accepted"
	case ApplicantStatusRemoved:
		return "Removed"
	case ApplicantStatusLeftWaitlist:
		return "Left waitlist"
	}
	return string(s)
}

type Applicant struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Email             string          `json:"email"`
	Phone             string          `json:"phone"`
	Address           string          `json:"address"`
	Comments          string          `json:"comments"`
	Status            ApplicantStatus `json:"status"`
	JoinedAt          time.Time       `json:"joined_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	RemovedAt         *time.Time      `json:"removed_at,omitempty"`
	MagicToken        *string         `json:"-"`
	MagicTokenExpires *time.Time      `json:"-"`
}

// QueuedBefore reports whether a sorts ahead of b in the waiting queue:
// joined_at ascending, id ascending as tie-break.
func (a *Applicant) QueuedBefore(b *Applicant) bool {
	if a.JoinedAt.Equal(b.JoinedAt) {
		return a.ID < b.ID
	}
	return a.JoinedAt.Before(b.JoinedAt)
}

// TokenValid reports whether token matches the applicant's magic token and
// has not expired at now.
func (a *Applicant) TokenValid(token string, now time.Time) bool {
	if a.MagicToken == nil || token == "" || *a.MagicToken != token {
		return false
	}
	return a.MagicTokenExpires == nil || a.MagicTokenExpires.After(now)
}
