package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"order-chat/domain/chat"
	"order-chat/domain/event"
	domainerrors "order-chat/errors"
	"order-chat/mocks"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestEngine(t *testing.T) (*Engine, *mocks.MockChatAPI, *mocks.MockSignaler) {
	t.Helper()
	ctrl := gomock.NewController(t)
	api := mocks.NewMockChatAPI(ctrl)
	signaler := mocks.NewMockSignaler(ctrl)
	engine := NewEngine(logs.GetLoggerFromLevel(slog.LevelDebug), "customer", api, signaler, nil, EngineConfig{
		TypingTTL:          time.Minute,
		ReconnectMin:       5 * time.Millisecond,
		ReconnectMax:       20 * time.Millisecond,
		NotificationBuffer: 16,
	})
	t.Cleanup(engine.Teardown)
	return engine, api, signaler
}

func TestEngine_Send_EmptyTextNeverReachesNetwork(t *testing.T) {
	req := require.New(t)
	engine, _, _ := newTestEngine(t)

	// No expectation on the API: any call fails the test
	_, err := engine.Send(context.Background(), "chat-1", "   \n\t")

	req.ErrorIs(err, domainerrors.ErrEmptyMessage)
	req.Empty(engine.Messages("chat-1"))
}

func TestEngine_Send_RetriesNetworkFailureWithSameID(t *testing.T) {
	req := require.New(t)
	engine, api, _ := newTestEngine(t)

	var sent []chat.SendCommand
	gomock.InOrder(
		api.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, cmd chat.SendCommand) (chat.Message, error) {
			sent = append(sent, cmd)
			return chat.Message{}, fmt.Errorf("%w: connection reset", ErrNetwork)
		}),
		api.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, cmd chat.SendCommand) (chat.Message, error) {
			sent = append(sent, cmd)
			return chat.Message{ID: cmd.MessageID, ChatID: cmd.ChatID, SenderID: cmd.SenderID, Text: cmd.Text, CreatedAt: time.Now().UTC()}, nil
		}),
	)

	message, err := engine.Send(context.Background(), "chat-1", "  is it in stock?  ")

	req.NoError(err)
	req.Len(sent, 2)
	req.NotEmpty(sent[0].MessageID)
	req.Equal(sent[0].MessageID, sent[1].MessageID)
	req.Equal("is it in stock?", sent[0].Text)
	req.Equal("customer", sent[0].SenderID)
	req.Equal(message.ID, sent[0].MessageID)
	req.Len(engine.Messages("chat-1"), 1)
}

func TestEngine_Send_DomainErrorIsNotRetried(t *testing.T) {
	req := require.New(t)
	engine, api, _ := newTestEngine(t)

	api.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(chat.Message{}, fmt.Errorf("%w: expired", domainerrors.ErrChatClosed)).Times(1)

	_, err := engine.Send(context.Background(), "chat-1", "hello")

	req.ErrorIs(err, domainerrors.ErrChatClosed)
	req.Empty(engine.Messages("chat-1"))
}

func TestEngine_ToggleTranslation_RevertsOnFailure(t *testing.T) {
	req := require.New(t)
	engine, api, _ := newTestEngine(t)

	api.EXPECT().ResolveChat(gomock.Any(), chat.OrderID("1001"), chat.CounterpartyID("vendor-a")).
		Return(chat.Session{ID: "chat-1", OrderID: "1001", CounterpartyID: "vendor-a"}, nil)
	api.EXPECT().SetTranslation(gomock.Any(), chat.ChatID("chat-1"), true).
		Return(chat.Session{}, errors.New("boom"))

	session, err := engine.ResolveChat(context.Background(), "1001", "vendor-a")
	req.NoError(err)

	err = engine.ToggleTranslation(context.Background(), session.ID, true)

	req.ErrorIs(err, domainerrors.ErrTranslationToggleFailed)
	req.False(engine.TranslationEnabled(session.ID))
}

func TestEngine_ToggleTranslation_SameValueIsNoop(t *testing.T) {
	req := require.New(t)
	engine, api, _ := newTestEngine(t)

	api.EXPECT().SetTranslation(gomock.Any(), chat.ChatID("chat-1"), true).
		Return(chat.Session{ID: "chat-1", TranslationEnabled: true}, nil).Times(1)

	req.NoError(engine.ToggleTranslation(context.Background(), "chat-1", true))
	req.NoError(engine.ToggleTranslation(context.Background(), "chat-1", true))

	req.True(engine.TranslationEnabled("chat-1"))
}

func TestEngine_SetActiveChat_CatchesUp(t *testing.T) {
	req := require.New(t)
	engine, api, _ := newTestEngine(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	api.EXPECT().GetChat(gomock.Any(), chat.ChatID("chat-1")).
		Return(chat.Session{ID: "chat-1", TranslationEnabled: true}, chat.StatusActive, nil)
	api.EXPECT().List(gomock.Any(), chat.ListQuery{ChatID: "chat-1"}).
		Return([]chat.Message{
			{ID: "m2", ChatID: "chat-1", SenderID: "vendor-a", Text: "second", CreatedAt: at.Add(time.Second)},
			{ID: "m1", ChatID: "chat-1", SenderID: "vendor-a", Text: "first", CreatedAt: at},
		}, nil)

	req.NoError(engine.SetActiveChat(context.Background(), chat.OrderChat("chat-1")))

	req.Equal(StateSubscribed, engine.State())
	messages := engine.Messages("chat-1")
	req.Len(messages, 2)
	req.Equal("m1", messages[0].ID)
	status, ok := engine.Status("chat-1")
	req.True(ok)
	req.Equal(chat.StatusActive, status)
	req.True(engine.TranslationEnabled("chat-1"))

	engine.Teardown()
	req.Equal(StateIdle, engine.State())
}

func TestEngine_DeactivationClearsTyping(t *testing.T) {
	req := require.New(t)
	engine, api, _ := newTestEngine(t)
	ctx := context.Background()
	api.EXPECT().GetChat(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, chatID chat.ChatID) (chat.Session, chat.Status, error) {
		return chat.Session{ID: chatID}, chat.StatusActive, nil
	}).AnyTimes()
	api.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	// Given the vendor is typing in the active chat A
	req.NoError(engine.SetActiveChat(ctx, chat.OrderChat("A")))
	engine.apply(event.NewTyping(chat.TypingSignal{ChatID: "A", UserID: "vendor-a", IsTyping: true}))
	req.Equal([]string{"vendor-a"}, engine.Typing("A"))

	// When switching to B, A's typing state is gone
	req.NoError(engine.SetActiveChat(ctx, chat.OrderChat("B")))
	req.Empty(engine.Typing("A"))

	// And tearing down drops B's as well
	engine.apply(event.NewTyping(chat.TypingSignal{ChatID: "B", UserID: "vendor-b", IsTyping: true}))
	req.Equal([]string{"vendor-b"}, engine.Typing("B"))
	engine.Teardown()
	req.Empty(engine.Typing("B"))
}

func TestEngine_List_FetchesBeyondCursor(t *testing.T) {
	req := require.New(t)
	engine, api, _ := newTestEngine(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := chat.Message{ID: "m1", ChatID: "chat-1", SenderID: "vendor-a", Text: "first", CreatedAt: at}
	second := chat.Message{ID: "m2", ChatID: "chat-1", SenderID: "customer", Text: "second", CreatedAt: at.Add(time.Second)}

	gomock.InOrder(
		api.EXPECT().List(gomock.Any(), chat.ListQuery{ChatID: "chat-1"}).Return([]chat.Message{first}, nil),
		api.EXPECT().List(gomock.Any(), chat.ListQuery{ChatID: "chat-1", SinceID: "m1"}).Return([]chat.Message{second}, nil),
	)

	_, err := engine.List(context.Background(), "chat-1")
	req.NoError(err)
	messages, err := engine.List(context.Background(), "chat-1")
	req.NoError(err)

	req.Equal([]string{"m1", "m2"}, []string{messages[0].ID, messages[1].ID})
}

func TestEngine_Apply(t *testing.T) {
	req := require.New(t)
	engine, _, _ := newTestEngine(t)
	m := chat.Message{ID: "m1", ChatID: "chat-1", SenderID: "customer", Text: "hi", CreatedAt: time.Now().UTC()}

	// A message seen on both paths is applied once
	engine.apply(event.NewMessage(m))
	engine.apply(event.NewMessage(m))
	req.Len(engine.Messages("chat-1"), 1)

	// The feed re-emitting it with the read flag set marks it read
	read := m
	read.IsRead = true
	engine.apply(event.NewMessage(read))
	req.True(engine.Messages("chat-1")[0].IsRead)

	// Typing of the local user is ignored, the counterparty's is kept
	engine.apply(event.NewTyping(chat.TypingSignal{ChatID: "chat-1", UserID: "customer", IsTyping: true}))
	engine.apply(event.NewTyping(chat.TypingSignal{ChatID: "chat-1", UserID: "vendor-a", IsTyping: true}))
	req.Equal([]string{"vendor-a"}, engine.Typing("chat-1"))

	engine.apply(event.NewStatusChanged("chat-1", chat.StatusClosedByOtherOffer))
	status, _ := engine.Status("chat-1")
	req.Equal(chat.StatusClosedByOtherOffer, status)

	engine.apply(event.NewTranslation("chat-1", true))
	req.True(engine.TranslationEnabled("chat-1"))

	var types []event.Type
	for len(engine.Notifications()) > 0 {
		types = append(types, (<-engine.Notifications()).Type)
	}
	req.Equal([]event.Type{
		event.MessageType,
		event.MessageType,
		event.TypingType,
		event.StatusChangedType,
		event.TranslationType,
	}, types)
}

func TestEngine_MarkRead(t *testing.T) {
	req := require.New(t)
	engine, api, _ := newTestEngine(t)
	engine.apply(event.NewMessage(chat.Message{ID: "m1", ChatID: "chat-1", SenderID: "vendor-a", Text: "hi", CreatedAt: time.Now().UTC()}))

	api.EXPECT().MarkRead(gomock.Any(), "m1").Return(nil)

	req.NoError(engine.MarkRead(context.Background(), "m1"))
	req.True(engine.Messages("chat-1")[0].IsRead)
}

func TestEngine_SetTyping(t *testing.T) {
	req := require.New(t)
	engine, _, signaler := newTestEngine(t)

	signaler.EXPECT().SendTyping(gomock.Any(), chat.TypingSignal{ChatID: "chat-1", UserID: "customer", IsTyping: true}).Return(nil)

	req.NoError(engine.SetTyping(context.Background(), "chat-1", true))
}
