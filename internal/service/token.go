package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"plotwaitlist-backend/internal/repository"
)

const maxTokenAttempts = 5

// TokenSource produces 32 character URL-safe capability tokens.
type TokenSource func() (string, error)

// RandomToken returns a version 4 UUID, 122 random bits, as 32 lowercase hex
// characters.
func RandomToken() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(u.String(), "-", ""), nil
}

// uniqueToken draws tokens until inUse reports one as free.
func uniqueToken(ctx context.Context, next TokenSource, inUse func(ctx context.Context, token string) (bool, error)) (string, error) {
	for i := 0; i < maxTokenAttempts; i++ {
		token, err := next()
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		taken, err := inUse(ctx, token)
		if err != nil {
			return "", err
		}
		if !taken {
			return token, nil
		}
	}
	return "", fmt.Errorf("generate token: no unique value after %d attempts", maxTokenAttempts)
}

func offerTokenInUse(offers repository.OfferRepository) func(context.Context, string) (bool, error) {
	return func(ctx context.Context, token string) (bool, error) {
		_, err := offers.GetByToken(ctx, token)
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
}

func magicTokenInUse(applicants repository.ApplicantRepository) func(context.Context, string) (bool, error) {
	return func(ctx context.Context, token string) (bool, error) {
		// The zero time matches every stored token regardless of expiry.
		_, err := applicants.GetByToken(ctx, token, time.Time{})
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
}
