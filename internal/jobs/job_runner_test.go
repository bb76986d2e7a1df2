package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"plotwaitlist-backend/internal/config"
	"plotwaitlist-backend/internal/service"
)

// MockWaitlistService stubs the two job entry points; other methods are nil.
type MockWaitlistService struct {
	mock.Mock
	service.WaitlistService
}

func (m *MockWaitlistService) ExpireOffers(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockWaitlistService) SendMonthlyReminders(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestRunAll(t *testing.T) {
	m := new(MockWaitlistService)
	m.On("ExpireOffers", mock.Anything).Return([]int64{1, 2}, nil).Once()
	m.On("SendMonthlyReminders", mock.Anything).Return(4, nil).Once()

	jr := NewJobRunner(m, &config.Config{})
	jr.RunAll()

	m.AssertExpectations(t)
}

func TestJobsPassDeadlineContext(t *testing.T) {
	m := new(MockWaitlistService)
	m.On("ExpireOffers", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	})).Return(nil, nil)

	NewJobRunner(m, &config.Config{}).ExpireOffers()

	m.AssertExpectations(t)
}

func TestJobErrorsAreContained(t *testing.T) {
	m := new(MockWaitlistService)
	m.On("ExpireOffers", mock.Anything).Return([]int64{3}, errors.Join(fmt.Errorf("offer 9: %w", assert.AnError)))
	m.On("SendMonthlyReminders", mock.Anything).Return(0, assert.AnError)

	jr := NewJobRunner(m, &config.Config{})
	assert.NotPanics(t, jr.RunAll)
	m.AssertExpectations(t)
}

func TestRunWithRecovery(t *testing.T) {
	jr := NewJobRunner(new(MockWaitlistService), &config.Config{})
	ran := false

	assert.NotPanics(t, func() {
		jr.runWithRecovery("Boom", func(ctx context.Context) {
			ran = true
			panic("boom")
		})
	})
	assert.True(t, ran)
}
