package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"order-chat/domain/chat"
	domainerrors "order-chat/errors"
	"order-chat/infrastructure/http/dto"
	"strings"
	"time"
)

// ErrNetwork marks a request that never got an answer, or got a gateway
// error. Only those are worth retrying.
var ErrNetwork = errors.New("network failure")

// APIClient talks to the REST surface of the server.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewAPIClient(baseURL, token string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *APIClient) ResolveChat(ctx context.Context, orderID chat.OrderID, counterpartyID chat.CounterpartyID) (chat.Session, error) {
	var resp dto.ChatResponse
	body := dto.ResolveChatRequest{OrderID: string(orderID), CounterpartyID: string(counterpartyID)}
	if err := c.do(ctx, http.MethodPost, "/chats", body, &resp); err != nil {
		return chat.Session{}, err
	}
	session, _ := resp.ToSession()
	return session, nil
}

func (c *APIClient) GetChat(ctx context.Context, chatID chat.ChatID) (chat.Session, chat.Status, error) {
	var resp dto.ChatResponse
	if err := c.do(ctx, http.MethodGet, "/chats/"+url.PathEscape(string(chatID)), nil, &resp); err != nil {
		return chat.Session{}, "", err
	}
	session, status := resp.ToSession()
	return session, status, nil
}

func (c *APIClient) Send(ctx context.Context, cmd chat.SendCommand) (chat.Message, error) {
	var resp dto.MessageResponse
	body := dto.SendMessageRequest{ID: cmd.MessageID, Text: cmd.Text}
	if err := c.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(string(cmd.ChatID))+"/messages", body, &resp); err != nil {
		return chat.Message{}, err
	}
	return resp.ToMessage(), nil
}

func (c *APIClient) List(ctx context.Context, query chat.ListQuery) ([]chat.Message, error) {
	path := "/chats/" + url.PathEscape(string(query.ChatID)) + "/messages"
	if query.SinceID != "" {
		path += "?since=" + url.QueryEscape(query.SinceID)
	}
	var resp []dto.MessageResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return dto.ToMessages(resp), nil
}

func (c *APIClient) MarkRead(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodPost, "/messages/"+url.PathEscape(messageID)+"/read", nil, nil)
}

func (c *APIClient) SetTranslation(ctx context.Context, chatID chat.ChatID, enabled bool) (chat.Session, error) {
	var resp dto.ChatResponse
	body := dto.TranslationRequest{Enabled: &enabled}
	if err := c.do(ctx, http.MethodPut, "/chats/"+url.PathEscape(string(chatID))+"/translation", body, &resp); err != nil {
		return chat.Session{}, err
	}
	session, _ := resp.ToSession()
	return session, nil
}

// SendTyping posts the signal over REST, used when no websocket is open.
func (c *APIClient) SendTyping(ctx context.Context, signal chat.TypingSignal) error {
	body := dto.TypingRequest{IsTyping: signal.IsTyping}
	return c.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(string(signal.ChatID))+"/typing", body, nil)
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeError turns an error response back into the server sentinel.
func decodeError(resp *http.Response) error {
	var body dto.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	sentinel := domainerrors.FromCode(body.Code)
	if sentinel == nil {
		sentinel = domainerrors.FromHTTPStatus(resp.StatusCode)
	}
	switch {
	case sentinel != nil:
		return fmt.Errorf("%w: %s", sentinel, body.Error)
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", ErrNetwork, resp.StatusCode)
	default:
		return fmt.Errorf("server error %d: %s", resp.StatusCode, body.Error)
	}
}
