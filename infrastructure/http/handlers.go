package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"order-chat/auth"
	"order-chat/domain/chat"
	domainerrors "order-chat/errors"
	"order-chat/infrastructure/http/dto"
	"order-chat/services"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

type Handler struct {
	log     *slog.Logger
	service services.IChatService
}

func NewHandler(log *slog.Logger, service services.IChatService) *Handler {
	return &Handler{log: log, service: service}
}

// ResolveChat handles POST /chats
func (h *Handler) ResolveChat(w http.ResponseWriter, r *http.Request) {
	var body dto.ResolveChatRequest
	if !decode(w, r, h.log, &body) {
		return
	}
	session, err := h.service.ResolveChat(r.Context(), chat.OrderID(body.OrderID), chat.CounterpartyID(body.CounterpartyID))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	view, err := h.service.GetChat(r.Context(), session.ID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromSession(view.Session, view.Status))
}

// GetChat handles GET /chats/{chatId}
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetChat(r.Context(), chatIDVar(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromSession(view.Session, view.Status))
}

// ListByOrder handles GET /orders/{orderId}/chats
func (h *Handler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListByOrder(r.Context(), chat.OrderID(mux.Vars(r)["orderId"]))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(views, func(v services.ChatView, _ int) dto.ChatResponse {
		return dto.FromSession(v.Session, v.Status)
	}))
}

// ListMessages handles GET /chats/{chatId}/messages?since={messageId}
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.service.List(r.Context(), chat.ListQuery{
		ChatID:  chatIDVar(r),
		SinceID: r.URL.Query().Get("since"),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromMessages(messages))
}

// SendMessage handles POST /chats/{chatId}/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var body dto.SendMessageRequest
	if !decode(w, r, h.log, &body) {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	message, err := h.service.Send(r.Context(), chat.SendCommand{
		ChatID:    chatIDVar(r),
		MessageID: body.ID,
		SenderID:  userID,
		Text:      body.Text,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FromMessage(message))
}

// MarkRead handles POST /messages/{messageId}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.service.MarkRead(r.Context(), mux.Vars(r)["messageId"], userID); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetTyping handles POST /chats/{chatId}/typing
func (h *Handler) SetTyping(w http.ResponseWriter, r *http.Request) {
	var body dto.TypingRequest
	if !decode(w, r, h.log, &body) {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	err := h.service.SetTyping(r.Context(), chat.TypingSignal{ChatID: chatIDVar(r), UserID: userID, IsTyping: body.IsTyping})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// SetTranslation handles PUT /chats/{chatId}/translation
func (h *Handler) SetTranslation(w http.ResponseWriter, r *http.Request) {
	var body dto.TranslationRequest
	if !decode(w, r, h.log, &body) {
		return
	}
	view, err := h.service.ToggleTranslation(r.Context(), chatIDVar(r), *body.Enabled)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromSession(view.Session, view.Status))
}

func chatIDVar(r *http.Request) chat.ChatID {
	return chat.ChatID(mux.Vars(r)["chatId"])
}

func decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, log, fmt.Errorf("%w: %v", domainerrors.ErrInvalidRequest, err))
		return false
	}
	if err := dto.Validate(v); err != nil {
		writeError(w, log, fmt.Errorf("%w: %v", domainerrors.ErrInvalidRequest, err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := domainerrors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "error", err)
	}
	writeJSON(w, status, dto.ErrorResponse{Code: domainerrors.Code(err), Error: err.Error()})
}
