package services

import (
	"context"
	"log/slog"
	"order-chat/contract"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
)

type ITranslationService interface {
	Translate(ctx context.Context, text string) (string, bool)
}

// TranslationService fills TranslatedText on send. It never fails a send:
// every problem ends up as "no translation".
type TranslationService struct {
	log        *slog.Logger
	translator contract.Translator
	targetLang string
	timeout    time.Duration
}

func NewTranslationService(log *slog.Logger, translator contract.Translator, targetLang string, timeout time.Duration) *TranslationService {
	return &TranslationService{
		log:        log,
		translator: translator,
		targetLang: strings.ToLower(targetLang),
		timeout:    timeout,
	}
}

// Translate returns the translation and whether one was produced. Text the
// detector already reads as the target language is left alone.
func (s *TranslationService) Translate(ctx context.Context, text string) (string, bool) {
	if s.translator == nil {
		return "", false
	}
	info := whatlanggo.Detect(text)
	lang := info.Lang.Iso6391()
	if info.IsReliable() && lang == s.targetLang {
		s.log.Debug("Translation skipped, already in target language", "lang", lang)
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	translated, err := s.translator.Translate(ctx, text, s.targetLang)
	if err != nil {
		s.log.Warn("Translation failed", "lang", lang, "error", err)
		return "", false
	}
	translated = strings.TrimSpace(translated)
	if translated == "" || translated == text {
		return "", false
	}
	return translated, true
}
