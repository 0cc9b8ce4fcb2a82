// Package httpserver contains HTTP handlers and middleware.
//
// It exposes the chat proxy endpoints, the structured generation endpoints,
// the provider dashboard and cache administration. Business logic lives in
// usecase; this package maps requests and errors to HTTP.
package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/qanuni/legalai/internal/adapter/ai"
	"github.com/qanuni/legalai/internal/adapter/observability"
	"github.com/qanuni/legalai/internal/domain"
)

const msgInternal = "خطای غیرمنتظره‌ای رخ داد. لطفاً بعداً تلاش کنید. / An unexpected error occurred. Please try again later."

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

// messageResponse is the flat error shape of the chat endpoints.
type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// errorStatus maps err to an HTTP status and stable error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "QUOTA_EXCEEDED"
	case errors.Is(err, domain.ErrUpstreamRateLimit):
		return http.StatusServiceUnavailable, "UPSTREAM_RATE_LIMIT"
	case errors.Is(err, domain.ErrUpstreamAuth):
		return http.StatusBadGateway, "UPSTREAM_AUTH"
	case errors.Is(err, domain.ErrUpstreamPermission):
		return http.StatusBadGateway, "UPSTREAM_PERMISSION"
	case errors.Is(err, domain.ErrUpstreamBadRequest):
		return http.StatusBadGateway, "UPSTREAM_BAD_REQUEST"
	case errors.Is(err, domain.ErrUpstreamServer):
		return http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"
	case errors.Is(err, domain.ErrSchemaInvalid):
		return http.StatusServiceUnavailable, "SCHEMA_INVALID"
	case errors.Is(err, domain.ErrAllProvidersFailed):
		return http.StatusInternalServerError, "ALL_PROVIDERS_FAILED"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

// writeError writes the {error:{code,message,details}} envelope. Classified AI
// errors already carry a user-facing message; anything unclassified that maps
// to 500 is logged and replaced by a generic one.
func writeError(w http.ResponseWriter, r *http.Request, err error, details interface{}) {
	status, code := errorStatus(err)
	msg := err.Error()
	var ae *ai.AIError
	switch {
	case errors.As(err, &ae):
		msg = ae.Message
	case status == http.StatusInternalServerError && !errors.Is(err, domain.ErrAllProvidersFailed):
		observability.LoggerFromContext(r.Context()).Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		msg = msgInternal
	}
	writeJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: msg, Details: details}})
}
