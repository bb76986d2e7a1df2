package interceptor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"plotwaitlist-backend/internal/security"
)

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

const reflectionMethod = "/grpc.reflection.v1.ServerReflection/ServerReflectionInfo"

func okHandler(ctx context.Context, req any) (any, error) { return "ok", nil }

func withAuth(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))
}

func TestAuthInterceptorUnary(t *testing.T) {
	tm := new(MockTokenManager)
	tm.On("ValidateToken", "good").Return(&security.AdminClaims{Email: "a@garden.org", Roles: []string{"admin"}}, nil)
	tm.On("ValidateToken", "guest").Return(&security.AdminClaims{Email: "g@garden.org"}, nil)
	tm.On("ValidateToken", "bad").Return(nil, security.ErrInvalidToken)
	unary := NewAuthInterceptor(tm).Unary()

	t.Run("PublicHealthCheck", func(t *testing.T) {
		info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
		resp, err := unary(context.Background(), nil, info, okHandler)
		require.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})

	info := &grpc.UnaryServerInfo{FullMethod: reflectionMethod}

	t.Run("MissingMetadata", func(t *testing.T) {
		_, err := unary(context.Background(), nil, info, okHandler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidToken", func(t *testing.T) {
		_, err := unary(withAuth("bad"), nil, info, okHandler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("NotAdmin", func(t *testing.T) {
		_, err := unary(withAuth("guest"), nil, info, okHandler)
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})

	t.Run("Admin", func(t *testing.T) {
		resp, err := unary(withAuth("good"), nil, info, okHandler)
		require.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f fakeStream) Context() context.Context { return f.ctx }

func TestAuthInterceptorStream(t *testing.T) {
	tm := new(MockTokenManager)
	tm.On("ValidateToken", "good").Return(&security.AdminClaims{Roles: []string{"admin"}}, nil)
	stream := NewAuthInterceptor(tm).Stream()
	info := &grpc.StreamServerInfo{FullMethod: reflectionMethod}
	called := false
	handler := func(srv any, ss grpc.ServerStream) error {
		called = true
		return nil
	}

	err := stream(nil, fakeStream{ctx: context.Background()}, info, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.False(t, called)

	require.NoError(t, stream(nil, fakeStream{ctx: withAuth("good")}, info, handler))
	assert.True(t, called)
}

func TestUnaryLoggingRecoversPanic(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	_, err := UnaryLogging()(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}
