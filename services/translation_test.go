package services

import (
	"context"
	"log/slog"
	"order-chat/mocks"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestTranslationService_SkipsTargetLanguage(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	translator := mocks.NewMockTranslator(ctrl)
	service := NewTranslationService(logs.GetLoggerFromLevel(slog.LevelDebug), translator, "EN", time.Second)

	// Then the translator is never called for English text
	translator.EXPECT().Translate(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, ok := service.Translate(context.Background(),
		"The brake pads are in stock and we will ship them to your address tomorrow morning")
	req.False(ok)
}

func TestTranslationService_TranslatorTimeout(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	translator := mocks.NewMockTranslator(ctrl)
	service := NewTranslationService(logs.GetLoggerFromLevel(slog.LevelDebug), translator, "en", 20*time.Millisecond)

	// Given a translator hanging until its deadline
	translator.EXPECT().Translate(gomock.Any(), gomock.Any(), "en").
		DoAndReturn(func(ctx context.Context, text, lang string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}).Times(1)

	_, ok := service.Translate(context.Background(), "Les plaquettes de frein sont disponibles en stock")
	req.False(ok)
}

func TestTranslationService_NoTranslator(t *testing.T) {
	service := NewTranslationService(logs.GetLoggerFromLevel(slog.LevelDebug), nil, "en", time.Second)
	_, ok := service.Translate(context.Background(), "Hola")
	require.False(t, ok)
}
