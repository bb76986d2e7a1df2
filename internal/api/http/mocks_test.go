package http_test

import (
	"context"
	"iter"
	"time"

	"github.com/stretchr/testify/mock"

	"plotwaitlist-backend/internal/domain"
	"plotwaitlist-backend/internal/notify"
	"plotwaitlist-backend/internal/security"
	"plotwaitlist-backend/internal/service"
)

type MockWaitlistService struct {
	mock.Mock
}

func (m *MockWaitlistService) OfferNext(ctx context.Context, plotID *int64) (*service.OfferResult, error) {
	args := m.Called(ctx, plotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.OfferResult), args.Error(1)
}

func (m *MockWaitlistService) RespondToOffer(ctx context.Context, token string, decision domain.Decision) (*service.RespondResult, error) {
	args := m.Called(ctx, token, decision)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RespondResult), args.Error(1)
}

func (m *MockWaitlistService) ExpireOffers(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockWaitlistService) RemoveApplicant(ctx context.Context, applicantID int64) (*service.RemoveResult, error) {
	args := m.Called(ctx, applicantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RemoveResult), args.Error(1)
}

func (m *MockWaitlistService) LeaveWaitlist(ctx context.Context, magicToken string) (*service.RemoveResult, error) {
	args := m.Called(ctx, magicToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RemoveResult), args.Error(1)
}

func (m *MockWaitlistService) ComputePosition(ctx context.Context, applicant *domain.Applicant) (int, error) {
	args := m.Called(ctx, applicant)
	return args.Int(0), args.Error(1)
}

func (m *MockWaitlistService) MonthlyReport(ctx context.Context) (iter.Seq2[domain.Applicant, int], error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(iter.Seq2[domain.Applicant, int]), args.Error(1)
}

func (m *MockWaitlistService) SendMonthlyReminders(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockApplicantService struct {
	mock.Mock
}

func (m *MockApplicantService) Apply(ctx context.Context, in service.ApplicationInput) (*service.ApplyResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ApplyResult), args.Error(1)
}

func (m *MockApplicantService) RequestStatusLink(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockApplicantService) GetStatus(ctx context.Context, magicToken string) (*service.StatusView, error) {
	args := m.Called(ctx, magicToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StatusView), args.Error(1)
}

func (m *MockApplicantService) ListApplicants(ctx context.Context) ([]domain.Applicant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Applicant), args.Error(1)
}

type MockPlotService struct {
	mock.Mock
}

func (m *MockPlotService) CreatePlot(ctx context.Context, plot *domain.Plot) error {
	args := m.Called(ctx, plot)
	return args.Error(0)
}

func (m *MockPlotService) ListPlots(ctx context.Context) ([]domain.Plot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Plot), args.Error(1)
}

type MockTokenManager struct {
	mock.Mock
}

func (m *MockTokenManager) Login(email, password string) (string, time.Time, error) {
	args := m.Called(email, password)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockTokenManager) ValidateToken(tokenString string) (*security.AdminClaims, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*security.AdminClaims), args.Error(1)
}

type fixedStats notify.Stats

func (s fixedStats) Stats() notify.Stats { return notify.Stats(s) }
