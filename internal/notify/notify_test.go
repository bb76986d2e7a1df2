package notify

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"plotwaitlist-backend/internal/domain"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, to []string, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

func testRenderer() *Renderer {
	return NewRenderer(RendererConfig{
		BaseURL:              "https://garden.example.org/",
		ConfirmationTemplate: "Hi {{applicant_name}}, your link is {{status_link}} {{unknown}}",
		MonthlyTemplate:      "Position {{position}}: {{status_link}}",
		JoinRecipients:       []string{"join@example.org"},
		LeaveRecipients:      []string{"leave@example.org", "board@example.org"},
		AcceptRecipients:     []string{"accept@example.org"},
	})
}

func testApplicant() domain.Applicant {
	token := "magic"
	expires := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return domain.Applicant{ID: 1, Name: "Ada Lovelace", Email: "ada@example.com", MagicToken: &token, MagicTokenExpires: &expires}
}

func TestRenderTemplate(t *testing.T) {
	out := RenderTemplate("{{a}} and {{ b }} but not {{c}}", map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, "1 and 2 but not {{c}}", out)
}

func TestParseRecipients(t *testing.T) {
	got := ParseRecipients(" a@example.org,b@example.org\nA@EXAMPLE.ORG  not-an-email ,, c@example.org ")
	assert.Equal(t, []string{"a@example.org", "b@example.org", "c@example.org"}, got)
	assert.Empty(t, ParseRecipients(""))
}

func TestRenderer_Render(t *testing.T) {
	r := testRenderer()
	a := testApplicant()
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	t.Run("Joined", func(t *testing.T) {
		msgs := r.Render(domain.Event{Type: domain.EventApplicantJoined, Applicant: a})
		require.Len(t, msgs, 2)
		assert.Equal(t, []string{"join@example.org"}, msgs[0].To)
		assert.Equal(t, "New applicant: Ada Lovelace", msgs[0].Body)
		assert.Equal(t, []string{"ada@example.com"}, msgs[1].To)
		assert.Equal(t, "Hi Ada Lovelace, your link is https://garden.example.org/api/v1/status?token=magic {{unknown}}", msgs[1].Body)
	})

	t.Run("OfferIssued", func(t *testing.T) {
		offer := &domain.Offer{Token: "tok123"}
		msgs := r.Render(domain.Event{Type: domain.EventOfferIssued, Applicant: a, Offer: offer})
		require.Len(t, msgs, 1)
		assert.Equal(t, "Waitlist offer", msgs[0].Subject)
		assert.Contains(t, msgs[0].Body, "https://garden.example.org/api/v1/offers/tok123/accept")
		assert.Contains(t, msgs[0].Body, "https://garden.example.org/api/v1/offers/tok123/decline")
	})

	t.Run("ExpiredGoesToAdminsOnly", func(t *testing.T) {
		msgs := r.Render(domain.Event{Type: domain.EventOfferExpired, Applicant: a})
		require.Len(t, msgs, 1)
		assert.Equal(t, []string{"leave@example.org", "board@example.org"}, msgs[0].To)
	})

	t.Run("Accepted", func(t *testing.T) {
		msgs := r.Render(domain.Event{Type: domain.EventOfferAccepted, Applicant: a})
		require.Len(t, msgs, 2)
		assert.Equal(t, "Thank you for accepting the offer.", msgs[0].Body)
		assert.Equal(t, "Applicant Ada Lovelace accepted the offer.", msgs[1].Body)
	})

	t.Run("DeclinedApplicantOnly", func(t *testing.T) {
		msgs := r.Render(domain.Event{Type: domain.EventOfferDeclined, Applicant: a})
		require.Len(t, msgs, 1)
		assert.Equal(t, []string{"ada@example.com"}, msgs[0].To)
	})

	t.Run("Removed", func(t *testing.T) {
		msgs := r.Render(domain.Event{Type: domain.EventApplicantRemoved, Applicant: a})
		require.Len(t, msgs, 2)
		assert.Equal(t, "Waitlist removal", msgs[1].Subject)
	})

	t.Run("MonthlyWithValidToken", func(t *testing.T) {
		msgs := r.Render(domain.Event{Type: domain.EventMonthlyReminder, Applicant: a, Position: 3, OccurredAt: now})
		require.Len(t, msgs, 1)
		assert.Equal(t, "Position 3: https://garden.example.org/api/v1/status?token=magic", msgs[0].Body)
	})

	t.Run("MonthlyWithExpiredToken", func(t *testing.T) {
		later := now.AddDate(1, 0, 0)
		msgs := r.Render(domain.Event{Type: domain.EventMonthlyReminder, Applicant: a, Position: 1, OccurredAt: later})
		require.Len(t, msgs, 1)
		assert.Equal(t, "Position 1: https://garden.example.org", msgs[0].Body)
	})

	t.Run("NoAdminListConfigured", func(t *testing.T) {
		bare := NewRenderer(RendererConfig{BaseURL: "https://x.org"})
		msgs := bare.Render(domain.Event{Type: domain.EventOfferExpired, Applicant: a})
		assert.Empty(t, msgs)
	})
}

func TestDispatcher_DeliversAndCounts(t *testing.T) {
	n := new(MockNotifier)
	n.On("Send", mock.Anything, []string{"ada@example.com"}, "Offer declined", mock.Anything).Return(nil).Once()

	d := NewDispatcher(testRenderer(), n, Options{QueueSize: 4, MaxAttempts: 1})
	d.Start()
	d.Publish(context.Background(), domain.Event{Type: domain.EventOfferDeclined, Applicant: testApplicant()})
	require.NoError(t, d.Stop(context.Background()))

	n.AssertExpectations(t)
	assert.Equal(t, Stats{Enqueued: 1, Sent: 1}, d.Stats())
}

func TestDispatcher_RetriesThenFails(t *testing.T) {
	n := new(MockNotifier)
	n.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	d := NewDispatcher(testRenderer(), n, Options{QueueSize: 4, MaxAttempts: 2})
	d.Start()
	d.Publish(context.Background(), domain.Event{Type: domain.EventOfferDeclined, Applicant: testApplicant()})
	require.NoError(t, d.Stop(context.Background()))

	n.AssertNumberOfCalls(t, "Send", 2)
	assert.Equal(t, int64(1), d.Stats().Failed)
	assert.Equal(t, int64(0), d.Stats().Sent)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	n := new(MockNotifier)
	n.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	// Not started, so the single slot fills and later messages are dropped.
	d := NewDispatcher(testRenderer(), n, Options{QueueSize: 1, MaxAttempts: 1})
	ev := domain.Event{Type: domain.EventOfferDeclined, Applicant: testApplicant()}
	d.Publish(context.Background(), ev, ev, ev)

	stats := d.Stats()
	assert.Equal(t, int64(1), stats.Enqueued)
	assert.Equal(t, int64(2), stats.Dropped)

	d.Start()
	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, int64(1), d.Stats().Sent)

	// Publishing after Stop never panics.
	d.Publish(context.Background(), ev)
	assert.Equal(t, int64(3), d.Stats().Dropped)
}

type fakeMailClient struct {
	sent     *mail.SGMailV3
	response *rest.Response
	err      error
}

func (f *fakeMailClient) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = email
	return f.response, f.err
}

func TestSendGridNotifier_Send(t *testing.T) {
	t.Run("OnePersonalizationPerRecipient", func(t *testing.T) {
		client := &fakeMailClient{response: &rest.Response{StatusCode: http.StatusAccepted}}
		s := &SendGridNotifier{client: client, fromEmail: "garden@example.org", fromName: "Garden"}

		err := s.Send(context.Background(), []string{"a@example.org", "b@example.org"}, "Subject", "Body")
		require.NoError(t, err)
		require.NotNil(t, client.sent)
		assert.Equal(t, "Subject", client.sent.Subject)
		assert.Len(t, client.sent.Personalizations, 2)
		assert.Equal(t, "garden@example.org", client.sent.From.Address)
	})

	t.Run("ErrorStatus", func(t *testing.T) {
		client := &fakeMailClient{response: &rest.Response{StatusCode: http.StatusUnauthorized, Body: "bad key"}}
		s := &SendGridNotifier{client: client}

		err := s.Send(context.Background(), []string{"a@example.org"}, "S", "B")
		assert.ErrorContains(t, err, "status 401")
	})

	t.Run("NoRecipients", func(t *testing.T) {
		client := &fakeMailClient{}
		s := &SendGridNotifier{client: client}

		assert.NoError(t, s.Send(context.Background(), nil, "S", "B"))
		assert.Nil(t, client.sent)
	})
}
