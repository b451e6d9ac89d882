// Package openai translates chat messages through an OpenAI compatible
// chat completion endpoint.
package openai

import (
	"context"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

type Translator struct {
	client *goopenai.Client
	model  string
}

// NewTranslator builds a client on apiKey. An empty baseURL keeps the
// public OpenAI endpoint.
func NewTranslator(apiKey, baseURL, model string) *Translator {
	config := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Translator{client: goopenai.NewClientWithConfig(config), model: model}
}

func (t *Translator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	resp, err := t.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: t.model,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role: goopenai.ChatMessageRoleSystem,
				Content: fmt.Sprintf("Translate the user message into the language with ISO code %q. "+
					"Answer with the translation only.", targetLang),
			},
			{
				Role:    goopenai.ChatMessageRoleUser,
				Content: text,
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("translation request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("translation request: empty completion")
	}
	translated := strings.TrimSpace(resp.Choices[0].Message.Content)
	if translated == "" {
		return "", fmt.Errorf("translation request: empty completion")
	}
	return translated, nil
}
