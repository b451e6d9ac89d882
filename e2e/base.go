package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"order-chat/auth"
	"order-chat/client"
	"order-chat/contract"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// BaseSuite hands out client engines connected to the server under test.
type BaseSuite struct {
	suite.Suite
	Config Config
	tokens *auth.TokenManager
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.APIURL == "" {
		s.T().Skip("E2E_API_URL not set")
	}
	s.Require().NotEmpty(s.Config.JWTSecret, "JWT_SECRET must match the server")
	s.tokens = auth.NewTokenManager(s.Config.JWTSecret, time.Hour)
}

// FeedConn dials the change feed with a logging stream interceptor.
func (s *BaseSuite) FeedConn(t *testing.T, name string) *grpc.ClientConn {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	conn, err := grpc.NewClient(s.Config.FeedAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStreamInterceptor(func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn,
			method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
			start := time.Now()
			stream, err := streamer(ctx, desc, cc, method, opts...)
			t.Logf("GRPC %s [%s] opened in %v", method, status.Code(err), time.Since(start))
			if err != nil {
				return nil, err
			}
			return &loggedStream{ClientStream: stream, t: t, debug: s.Config.DebugJSON}, nil
		}),
	)
	s.Require().NoError(err, "Failed to connect to feed at "+s.Config.FeedAddr)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// Engine builds a client engine for userID on both realtime paths.
func (s *BaseSuite) Engine(t *testing.T, userID string, roles ...string) *client.Engine {
	token, err := s.tokens.GenerateToken(userID, roles)
	s.Require().NoError(err)

	log := logs.GetLoggerFromLevel(slog.LevelInfo)
	api := client.NewAPIClient(s.Config.APIURL, token, 10*time.Second)
	push := client.NewPushTransport(log, s.Config.APIURL, token, api)
	feed := client.NewFeedTransport(log, s.FeedConn(t, "feed for "+userID), token)
	engine := client.NewEngine(log, userID, api, push, []contract.Transport{push, feed}, client.EngineConfig{
		TypingTTL:          5 * time.Second,
		ReconnectMin:       100 * time.Millisecond,
		ReconnectMax:       2 * time.Second,
		NotificationBuffer: 256,
	})
	t.Cleanup(engine.Teardown)
	return engine
}

type loggedStream struct {
	grpc.ClientStream
	t     *testing.T
	debug bool
}

func (l *loggedStream) RecvMsg(m any) error {
	err := l.ClientStream.RecvMsg(m)
	if err == nil && l.debug {
		if b, jerr := json.MarshalIndent(m, "", "  "); jerr == nil {
			l.t.Logf("FRAME:\n%s", b)
		}
	}
	return err
}
