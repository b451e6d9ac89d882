package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrInvalidReference        = fmt.Errorf("invalid reference")
	ErrChatClosed              = fmt.Errorf("chat is closed")
	ErrEmptyMessage            = fmt.Errorf("empty message")
	ErrTransportDisconnected   = fmt.Errorf("all transports disconnected")
	ErrTranslationToggleFailed = fmt.Errorf("translation toggle failed")
	ErrChatNotFound            = fmt.Errorf("chat not found")
	ErrMessageNotFound         = fmt.Errorf("message not found")
	ErrUnauthenticated         = fmt.Errorf("unauthenticated")
	ErrInvalidRequest          = fmt.Errorf("invalid request")
	ErrWorkerPanic             = fmt.Errorf("worker panic")
	ErrInvalidPayload          = fmt.Errorf("invalid payload")
)

var wireCodes = map[string]error{
	"invalid_reference":           ErrInvalidReference,
	"chat_closed":                 ErrChatClosed,
	"empty_message":               ErrEmptyMessage,
	"chat_not_found":              ErrChatNotFound,
	"message_not_found":           ErrMessageNotFound,
	"unauthenticated":             ErrUnauthenticated,
	"invalid_request":             ErrInvalidRequest,
	"translation_toggle_failed":   ErrTranslationToggleFailed,
	"all_transports_disconnected": ErrTransportDisconnected,
}

// Code is the stable wire name of a domain error, "internal" otherwise.
func Code(err error) string {
	for code, sentinel := range wireCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return "internal"
}

// FromCode returns the sentinel behind a wire code, nil when unknown.
func FromCode(code string) error {
	return wireCodes[code]
}

// ToHTTPStatus maps a domain error to the REST status code the client decodes back.
func ToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidReference):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrChatClosed):
		return http.StatusLocked
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrChatNotFound), errors.Is(err, ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// FromHTTPStatus is the inverse of ToHTTPStatus, used by the REST client.
func FromHTTPStatus(code int) error {
	switch code {
	case http.StatusUnprocessableEntity:
		return ErrInvalidReference
	case http.StatusLocked:
		return ErrChatClosed
	case http.StatusBadRequest:
		return ErrInvalidRequest
	case http.StatusNotFound:
		return ErrChatNotFound
	case http.StatusUnauthorized:
		return ErrUnauthenticated
	default:
		return nil
	}
}

func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrChatNotFound), errors.Is(err, ErrMessageNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidReference), errors.Is(err, ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, ErrChatClosed):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
