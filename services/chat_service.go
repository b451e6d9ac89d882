package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"order-chat/contract"
	"order-chat/domain/chat"
	"order-chat/domain/event"
	domainerrors "order-chat/errors"
	"order-chat/observability"
	"order-chat/repositories"
	"order-chat/runtime"
	"strings"
	"time"

	"github.com/google/uuid"
)

type IChatService interface {
	ResolveChat(ctx context.Context, orderID chat.OrderID, counterpartyID chat.CounterpartyID) (chat.Session, error)
	GetChat(ctx context.Context, chatID chat.ChatID) (ChatView, error)
	ListByOrder(ctx context.Context, orderID chat.OrderID) ([]ChatView, error)
	Send(ctx context.Context, cmd chat.SendCommand) (chat.Message, error)
	List(ctx context.Context, query chat.ListQuery) ([]chat.Message, error)
	MarkRead(ctx context.Context, messageID, readerID string) error
	SetTyping(ctx context.Context, signal chat.TypingSignal) error
	ToggleTranslation(ctx context.Context, chatID chat.ChatID, enabled bool) (ChatView, error)
	NotifyOfferAccepted(ctx context.Context, orderID chat.OrderID) error
}

// ChatView is a session with its status evaluated at read time.
type ChatView struct {
	Session chat.Session
	Status  chat.Status
}

type ChatService struct {
	log         *slog.Logger
	directory   *runtime.Directory
	messages    repositories.IMessageRepository
	orders      contract.OrderService
	publisher   contract.Publisher
	translation ITranslationService
	monitoring  *observability.MonitoringManager
	now         func() time.Time
}

func NewChatService(log *slog.Logger, directory *runtime.Directory, messages repositories.IMessageRepository,
	orders contract.OrderService, publisher contract.Publisher, translation ITranslationService,
	monitoring *observability.MonitoringManager, now func() time.Time) *ChatService {
	return &ChatService{
		log:         log,
		directory:   directory,
		messages:    messages,
		orders:      orders,
		publisher:   publisher,
		translation: translation,
		monitoring:  monitoring,
		now:         now,
	}
}

func (s *ChatService) ResolveChat(ctx context.Context, orderID chat.OrderID, counterpartyID chat.CounterpartyID) (chat.Session, error) {
	return s.directory.Resolve(ctx, orderID, counterpartyID)
}

func (s *ChatService) GetChat(ctx context.Context, chatID chat.ChatID) (ChatView, error) {
	session, err := s.directory.Get(ctx, chatID)
	if err != nil {
		return ChatView{}, err
	}
	return s.view(ctx, session)
}

func (s *ChatService) ListByOrder(ctx context.Context, orderID chat.OrderID) ([]ChatView, error) {
	sessions, err := s.directory.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// One fact lookup serves every chat of the order.
	fact, err := s.orders.GetOrderAcceptanceFact(ctx, orderID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]ChatView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, ChatView{Session: session, Status: chat.Evaluate(session, fact, now)})
	}
	return views, nil
}

// Send appends a message to an ACTIVE chat. A send carrying an id that is
// already stored returns the stored message instead of a new one.
func (s *ChatService) Send(ctx context.Context, cmd chat.SendCommand) (chat.Message, error) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		s.monitoring.IncrSendsRejected()
		return chat.Message{}, domainerrors.ErrEmptyMessage
	}

	id, err := s.messageID(cmd.MessageID)
	if err != nil {
		return chat.Message{}, err
	}
	if existing, found, err := s.existing(id, cmd.ChatID); err != nil || found {
		return existing, err
	}

	session, err := s.directory.Get(ctx, cmd.ChatID)
	if err != nil {
		return chat.Message{}, err
	}
	view, err := s.view(ctx, session)
	if err != nil {
		return chat.Message{}, err
	}
	if !view.Status.IsActive() {
		s.monitoring.IncrSendsRejected()
		return chat.Message{}, fmt.Errorf("%w: %s", domainerrors.ErrChatClosed, view.Status)
	}

	message := chat.Message{
		ID:        id,
		ChatID:    session.ID,
		SenderID:  cmd.SenderID,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	if session.TranslationEnabled && s.translation != nil {
		if translated, ok := s.translation.Translate(ctx, text); ok {
			message.TranslatedText = translated
		}
	}

	inserted, err := s.messages.StoreMessage(message)
	if err != nil {
		return chat.Message{}, err
	}
	if !inserted {
		// A concurrent retry won the race.
		s.monitoring.IncrDuplicatesDropped()
		return s.messages.GetMessage(id)
	}
	s.monitoring.IncrMessagesStored()
	s.publisher.Publish(event.NewMessage(message))
	s.log.Debug("Message stored", "chat_id", message.ChatID, "message_id", message.ID)
	return message, nil
}

// List returns the chat messages after query.SinceID in (createdAt, id)
// order. Reading is allowed whatever the chat status.
func (s *ChatService) List(ctx context.Context, query chat.ListQuery) ([]chat.Message, error) {
	if _, err := s.directory.Get(ctx, query.ChatID); err != nil {
		return nil, err
	}
	return s.messages.GetMessages(query)
}

func (s *ChatService) MarkRead(_ context.Context, messageID, readerID string) error {
	message, changed, err := s.messages.MarkRead(messageID, readerID)
	if err != nil {
		return err
	}
	if changed {
		s.publisher.Publish(event.NewRead(message.ChatID, message.ID, readerID))
	}
	return nil
}

// SetTyping is fire and forget: the signal goes to push subscribers only.
func (s *ChatService) SetTyping(_ context.Context, signal chat.TypingSignal) error {
	if signal.ChatID == "" || signal.UserID == "" {
		return domainerrors.ErrInvalidRequest
	}
	s.publisher.Publish(event.NewTyping(signal))
	return nil
}

func (s *ChatService) ToggleTranslation(ctx context.Context, chatID chat.ChatID, enabled bool) (ChatView, error) {
	session, err := s.directory.SetTranslation(ctx, chatID, enabled)
	if err != nil {
		return ChatView{}, err
	}
	s.publisher.Publish(event.NewTranslation(chatID, enabled))
	return s.view(ctx, session)
}

// NotifyOfferAccepted re-evaluates every chat of the order and pushes the
// resulting status, so losing chats learn they are closed.
func (s *ChatService) NotifyOfferAccepted(ctx context.Context, orderID chat.OrderID) error {
	views, err := s.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, v := range views {
		s.publisher.Publish(event.NewStatusChanged(v.Session.ID, v.Status))
	}
	s.log.Info("Offer accepted, chat statuses pushed", "order_id", orderID, "chats", len(views))
	return nil
}

func (s *ChatService) view(ctx context.Context, session chat.Session) (ChatView, error) {
	fact, err := s.orders.GetOrderAcceptanceFact(ctx, session.OrderID)
	if err != nil {
		return ChatView{}, err
	}
	return ChatView{Session: session, Status: chat.Evaluate(session, fact, s.now())}, nil
}

func (s *ChatService) messageID(requested string) (string, error) {
	if requested == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", err
		}
		return id.String(), nil
	}
	if _, err := uuid.Parse(requested); err != nil {
		return "", fmt.Errorf("%w: message id %q", domainerrors.ErrInvalidRequest, requested)
	}
	return requested, nil
}

func (s *ChatService) existing(id string, chatID chat.ChatID) (chat.Message, bool, error) {
	message, err := s.messages.GetMessage(id)
	switch {
	case errors.Is(err, domainerrors.ErrMessageNotFound):
		return chat.Message{}, false, nil
	case err != nil:
		return chat.Message{}, false, err
	case message.ChatID != chatID:
		return chat.Message{}, false, fmt.Errorf("%w: message id %s belongs to another chat", domainerrors.ErrInvalidRequest, id)
	}
	s.monitoring.IncrDuplicatesDropped()
	return message, true, nil
}
