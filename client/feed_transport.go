package client

import (
	"context"
	"log/slog"
	"order-chat/domain/chat"
	"order-chat/domain/event"
	"order-chat/infrastructure/grpc/feed"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// FeedTransport is the durable change feed path over gRPC.
type FeedTransport struct {
	log    *slog.Logger
	client *feed.ChatFeedClient
	token  string
}

func NewFeedTransport(log *slog.Logger, conn grpc.ClientConnInterface, token string) *FeedTransport {
	return &FeedTransport{log: log, client: feed.NewChatFeedClient(conn), token: token}
}

func (t *FeedTransport) Name() string {
	return "feed"
}

func (t *FeedTransport) Subscribe(ctx context.Context, chatID chat.ChatID) (<-chan event.Event, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+t.token)
	stream, err := t.client.Subscribe(ctx, &feed.SubscribeRequest{ChatID: string(chatID)})
	if err != nil {
		return nil, err
	}
	if err = feed.AwaitReady(stream); err != nil {
		return nil, err
	}
	out := make(chan event.Event)
	go func() {
		defer close(out)
		for {
			evt, err := stream.Recv()
			if err != nil {
				if ctx.Err() == nil {
					t.log.Debug("Feed stream lost", "chat_id", chatID, "error", err)
				}
				return
			}
			select {
			case out <- *evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
