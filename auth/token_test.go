package auth

import (
	"context"
	"order-chat/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenManager("test-secret", time.Hour)

	token, err := tokens.GenerateToken("vendor-a", []string{"vendor"})
	req.NoError(err)

	claims, err := tokens.ValidateToken(token)
	req.NoError(err)
	req.Equal("vendor-a", claims.UserID)
	req.Equal([]string{"vendor"}, claims.Roles)
}

func TestTokenManager_Rejects(t *testing.T) {
	tokens := NewTokenManager("test-secret", time.Hour)
	expired := NewTokenManager("test-secret", -time.Minute)
	foreign := NewTokenManager("another-secret", time.Hour)

	expiredToken, err := expired.GenerateToken("vendor-a", nil)
	require.NoError(t, err)
	foreignToken, err := foreign.GenerateToken("vendor-a", nil)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expiredToken,
		"wrong secret": foreignToken,
		"garbage":      "not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.ValidateToken(token)
			require.ErrorIs(t, err, errors.ErrUnauthenticated)
		})
	}
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s fakeStream) Context() context.Context { return s.ctx }

func TestStreamAuthInterceptor(t *testing.T) {
	tokens := NewTokenManager("test-secret", time.Hour)
	interceptor := StreamAuthInterceptor(tokens)
	info := &grpc.StreamServerInfo{FullMethod: "/orderchat.feed.v1.ChatFeed/Subscribe", IsServerStream: true}

	t.Run("injects the user id", func(t *testing.T) {
		req := require.New(t)
		token, err := tokens.GenerateToken("customer-7", nil)
		req.NoError(err)
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))

		var userID string
		err = interceptor(nil, fakeStream{ctx: ctx}, info, func(_ any, stream grpc.ServerStream) error {
			userID, _ = UserIDFromContext(stream.Context())
			return nil
		})
		req.NoError(err)
		req.Equal("customer-7", userID)
	})

	t.Run("missing token", func(t *testing.T) {
		req := require.New(t)
		ctx := metadata.NewIncomingContext(context.Background(), metadata.MD{})
		err := interceptor(nil, fakeStream{ctx: ctx}, info, func(any, grpc.ServerStream) error {
			req.Fail("handler must not run")
			return nil
		})
		req.Equal(codes.Unauthenticated, status.Code(err))
	})
}
