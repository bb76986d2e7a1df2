package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridNotifier delivers messages through the SendGrid v3 API. Every
// recipient gets a separate personalization so addresses are not disclosed
// to each other.
type SendGridNotifier struct {
	client    mailClient
	fromEmail string
	fromName  string
}

func NewSendGridNotifier(apiKey, fromEmail, fromName string) *SendGridNotifier {
	return &SendGridNotifier{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *SendGridNotifier) Send(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return nil
	}

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(s.fromName, s.fromEmail))
	message.Subject = subject
	message.AddContent(mail.NewContent("text/plain", body))

	for _, addr := range to {
		p := mail.NewPersonalization()
		p.AddTos(mail.NewEmail("", addr))
		message.AddPersonalizations(p)
	}

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}
