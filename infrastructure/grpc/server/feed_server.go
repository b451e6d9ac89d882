package server

import (
	"log/slog"
	"order-chat/domain/chat"
	"order-chat/domain/event"
	domainerrors "order-chat/errors"
	"order-chat/infrastructure/grpc/feed"
	"order-chat/observability"
	"order-chat/repositories"

	"github.com/samber/lo"
	"google.golang.org/grpc/metadata"
)

// FeedServer streams every message write of a chat, straight from the
// storage key-prefix subscription. It never replays history. Response
// headers are sent once the subscription is live, so a client catching up
// over REST after receiving them misses nothing.
type FeedServer struct {
	log        *slog.Logger
	chats      repositories.IChatRepository
	messages   repositories.IMessageRepository
	monitoring *observability.MonitoringManager
}

func NewFeedServer(log *slog.Logger, chats repositories.IChatRepository,
	messages repositories.IMessageRepository, monitoring *observability.MonitoringManager) *FeedServer {
	return &FeedServer{log: log, chats: chats, messages: messages, monitoring: monitoring}
}

func (s *FeedServer) Subscribe(req *feed.SubscribeRequest, stream feed.SubscribeServer) error {
	if req.ChatID == "" {
		return domainerrors.MapToGRPCError(domainerrors.ErrInvalidRequest)
	}
	chatID := chat.ChatID(req.ChatID)
	if _, err := s.chats.Get(chatID); err != nil {
		return domainerrors.MapToGRPCError(err)
	}

	s.monitoring.AddFeedStreams(1)
	defer s.monitoring.AddFeedStreams(-1)
	s.log.Debug("Feed stream opened", "chat_id", chatID)

	ready := func() error {
		return stream.SendHeader(metadata.Pairs(feed.ReadyHeader, "1"))
	}
	err := s.messages.Watch(stream.Context(), chatID, ready, func(m chat.Message) error {
		return stream.Send(lo.ToPtr(event.NewMessage(m)))
	})
	if err != nil {
		s.log.Warn("Feed stream ended", "chat_id", chatID, "error", err)
		return domainerrors.MapToGRPCError(err)
	}
	s.log.Debug("Feed stream closed", "chat_id", chatID)
	return nil
}
