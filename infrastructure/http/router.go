// Package http exposes the chat over REST and a websocket push channel.
package http

import (
	"log/slog"
	"net/http"
	"order-chat/auth"
	"order-chat/services"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

type RouterConfig struct {
	AllowedOrigins []string
	PushBufferSize int
	Debug          http.Handler
}

// NewRouter mounts the REST routes and the websocket under JWT auth.
// Health and debug routes stay public.
func NewRouter(log *slog.Logger, service services.IChatService, hub PushHub,
	tokens *auth.TokenManager, cfg RouterConfig) http.Handler {
	h := NewHandler(log, service)
	push := NewPushHandler(log, service, hub, cfg.AllowedOrigins, cfg.PushBufferSize)

	r := mux.NewRouter()
	r.Use(loggingMiddleware(log))
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	if cfg.Debug != nil {
		r.PathPrefix("/debug/").Handler(cfg.Debug)
	}

	api := r.NewRoute().Subrouter()
	api.Use(authMiddleware(tokens, log))
	api.HandleFunc("/chats", h.ResolveChat).Methods(http.MethodPost)
	api.HandleFunc("/chats/{chatId}", h.GetChat).Methods(http.MethodGet)
	api.HandleFunc("/orders/{orderId}/chats", h.ListByOrder).Methods(http.MethodGet)
	api.HandleFunc("/chats/{chatId}/messages", h.ListMessages).Methods(http.MethodGet)
	api.HandleFunc("/chats/{chatId}/messages", h.SendMessage).Methods(http.MethodPost)
	api.HandleFunc("/messages/{messageId}/read", h.MarkRead).Methods(http.MethodPost)
	api.HandleFunc("/chats/{chatId}/typing", h.SetTyping).Methods(http.MethodPost)
	api.HandleFunc("/chats/{chatId}/translation", h.SetTranslation).Methods(http.MethodPut)
	api.Handle("/ws", push).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}
