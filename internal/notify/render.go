package notify

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"plotwaitlist-backend/internal/domain"
)

var placeholder = regexp.MustCompile(`\{\{\s*([a-z_]+)\s*\}\}`)

// RenderTemplate replaces {{key}} placeholders with values from vars.
// Unknown placeholders are left verbatim.
func RenderTemplate(tmpl string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		return m
	})
}

// RendererConfig carries the message settings the renderer needs.
type RendererConfig struct {
	BaseURL              string
	ConfirmationTemplate string
	MonthlyTemplate      string
	JoinRecipients       []string
	LeaveRecipients      []string
	AcceptRecipients     []string
}

// Renderer maps events to messages. It holds no mutable state.
type Renderer struct {
	cfg     RendererConfig
	baseURL string
}

func NewRenderer(cfg RendererConfig) *Renderer {
	return &Renderer{cfg: cfg, baseURL: strings.TrimRight(cfg.BaseURL, "/")}
}

// StatusLink builds the self-service status URL for a magic token.
func (r *Renderer) StatusLink(token string) string {
	return fmt.Sprintf("%s/api/v1/status?token=%s", r.baseURL, url.QueryEscape(token))
}

// OfferLinks builds the accept and decline URLs for an offer token.
func (r *Renderer) OfferLinks(token string) (accept, decline string) {
	t := url.PathEscape(token)
	return fmt.Sprintf("%s/api/v1/offers/%s/accept", r.baseURL, t),
		fmt.Sprintf("%s/api/v1/offers/%s/decline", r.baseURL, t)
}

// Render returns the messages an event produces. Events with no configured
// recipients produce no messages.
func (r *Renderer) Render(ev domain.Event) []Message {
	a := ev.Applicant
	var msgs []Message
	toApplicant := func(subject, body string) {
		if a.Email != "" {
			msgs = append(msgs, Message{To: []string{a.Email}, Subject: subject, Body: body})
		}
	}
	toAdmins := func(list []string, subject, body string) {
		if len(list) > 0 {
			msgs = append(msgs, Message{To: list, Subject: subject, Body: body})
		}
	}

	switch ev.Type {
	case domain.EventApplicantJoined:
		toAdmins(r.cfg.JoinRecipients, "New waitlist application", fmt.Sprintf("New applicant: %s", a.Name))
		toApplicant("Waitlist confirmation", RenderTemplate(r.cfg.ConfirmationTemplate, r.vars(ev, r.tokenLink(ev))))

	case domain.EventStatusLinkRequested:
		toApplicant("Your waitlist status link", fmt.Sprintf("Use this link to view your status: %s", r.tokenLink(ev)))

	case domain.EventOfferIssued:
		if ev.Offer == nil {
			return nil
		}
		accept, decline := r.OfferLinks(ev.Offer.Token)
		toApplicant("Waitlist offer", fmt.Sprintf("You have been offered a plot. Accept: %s Decline: %s", accept, decline))

	case domain.EventOfferAccepted:
		toApplicant("Offer accepted", "Thank you for accepting the offer.")
		toAdmins(r.cfg.AcceptRecipients, "Offer accepted", fmt.Sprintf("Applicant %s accepted the offer.", a.Name))

	case domain.EventOfferDeclined:
		toApplicant("Offer declined", "You have declined the offer and left the waitlist.")

	case domain.EventOfferExpired:
		toAdmins(r.cfg.LeaveRecipients, "Offer expired", fmt.Sprintf("The offer to applicant %s expired.", a.Name))

	case domain.EventApplicantRemoved:
		toApplicant("Waitlist removal confirmation", "You have been removed from the waitlist.")
		toAdmins(r.cfg.LeaveRecipients, "Waitlist removal", fmt.Sprintf("Applicant %s was removed from the waitlist.", a.Name))

	case domain.EventApplicantLeft:
		toApplicant("Waitlist departure confirmation", "You have left the waitlist.")
		toAdmins(r.cfg.LeaveRecipients, "Waitlist departure", fmt.Sprintf("Applicant %s left the waitlist.", a.Name))

	case domain.EventMonthlyReminder:
		toApplicant("Waitlist status update", RenderTemplate(r.cfg.MonthlyTemplate, r.vars(ev, r.monthlyLink(ev))))
	}
	return msgs
}

func (r *Renderer) vars(ev domain.Event, statusLink string) map[string]string {
	vars := map[string]string{
		"status_link":    statusLink,
		"applicant_name": ev.Applicant.Name,
	}
	if ev.Position > 0 {
		vars["position"] = strconv.Itoa(ev.Position)
	}
	return vars
}

func (r *Renderer) tokenLink(ev domain.Event) string {
	if ev.Applicant.MagicToken == nil {
		return r.baseURL
	}
	return r.StatusLink(*ev.Applicant.MagicToken)
}

// monthlyLink uses the applicant's own link while the magic token is still
// valid and falls back to the site URL otherwise.
func (r *Renderer) monthlyLink(ev domain.Event) string {
	a := ev.Applicant
	if a.MagicToken != nil && a.TokenValid(*a.MagicToken, ev.OccurredAt) {
		return r.StatusLink(*a.MagicToken)
	}
	return r.baseURL
}
