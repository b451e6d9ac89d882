// Package orders is the local read model of the order domain: which orders
// and counterparties exist and which offer, if any, won each order.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"order-chat/domain/chat"
	domainerrors "order-chat/errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Order struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time
}

type Counterparty struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	CreatedAt time.Time
}

// OfferAcceptance is written once per order; later acceptances are ignored.
type OfferAcceptance struct {
	OrderID        string `gorm:"primaryKey"`
	AcceptedChatID string `gorm:"not null"`
	AcceptedAt     time.Time
}

type GormOrderService struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open connects to the sqlite database behind dsn and migrates the schema.
func Open(dsn string, log *slog.Logger) (*GormOrderService, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open orders database: %w", err)
	}
	if err = db.AutoMigrate(&Order{}, &Counterparty{}, &OfferAcceptance{}); err != nil {
		return nil, fmt.Errorf("migrate orders database: %w", err)
	}
	return NewGormOrderService(db, log), nil
}

func NewGormOrderService(db *gorm.DB, log *slog.Logger) *GormOrderService {
	return &GormOrderService{db: db, log: log}
}

func (s *GormOrderService) GetOrderAcceptanceFact(ctx context.Context, orderID chat.OrderID) (*chat.OfferAcceptanceFact, error) {
	var acceptance OfferAcceptance
	err := s.db.WithContext(ctx).First(&acceptance, "order_id = ?", string(orderID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read acceptance of order %s: %w", orderID, err)
	}
	return &chat.OfferAcceptanceFact{
		OrderID:        chat.OrderID(acceptance.OrderID),
		AcceptedChatID: chat.ChatID(acceptance.AcceptedChatID),
	}, nil
}

func (s *GormOrderService) OrderExists(ctx context.Context, orderID chat.OrderID) (bool, error) {
	return s.exists(ctx, &Order{}, "id = ?", string(orderID))
}

func (s *GormOrderService) CounterpartyExists(ctx context.Context, counterpartyID chat.CounterpartyID) (bool, error) {
	return s.exists(ctx, &Counterparty{}, "id = ?", string(counterpartyID))
}

func (s *GormOrderService) exists(ctx context.Context, model any, query string, args ...any) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormOrderService) SaveOrder(ctx context.Context, orderID chat.OrderID) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Order{ID: string(orderID)}).Error
}

func (s *GormOrderService) SaveCounterparty(ctx context.Context, counterpartyID chat.CounterpartyID, name string) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Counterparty{ID: string(counterpartyID), Name: name}).Error
}

// RecordAcceptance stores the winning chat of an order. The first fact wins;
// it returns the fact actually stored.
func (s *GormOrderService) RecordAcceptance(ctx context.Context, fact chat.OfferAcceptanceFact) (chat.OfferAcceptanceFact, error) {
	if fact.OrderID == "" || fact.AcceptedChatID == "" {
		return chat.OfferAcceptanceFact{}, domainerrors.ErrInvalidRequest
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&OfferAcceptance{
			OrderID:        string(fact.OrderID),
			AcceptedChatID: string(fact.AcceptedChatID),
			AcceptedAt:     time.Now().UTC(),
		}).Error
	if err != nil {
		return chat.OfferAcceptanceFact{}, fmt.Errorf("record acceptance of order %s: %w", fact.OrderID, err)
	}
	stored, err := s.GetOrderAcceptanceFact(ctx, fact.OrderID)
	if err != nil {
		return chat.OfferAcceptanceFact{}, err
	}
	if stored.AcceptedChatID != fact.AcceptedChatID {
		s.log.Warn("Offer already accepted, later acceptance ignored",
			"order_id", fact.OrderID,
			"accepted_chat_id", stored.AcceptedChatID,
			"ignored_chat_id", fact.AcceptedChatID)
	}
	return *stored, nil
}
