package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/pkg/logger"
)

type envelope map[string]any

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", slog.Any("err", err))
	}
}

// OK: «успешный» ответ с обёрткой.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, envelope{"data": data})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, envelope{"data": data})
}

// Error: унифицированная ошибка (message + code).
func Error(w http.ResponseWriter, status int, msg, code string) {
	inner := envelope{"message": msg}
	if code != "" {
		inner["code"] = code
	}
	JSON(w, status, envelope{"error": inner})
}

// FromError maps the domain error taxonomy onto HTTP statuses. Unexpected
// errors are logged with the request logger and hidden from the client.
func FromError(ctx context.Context, w http.ResponseWriter, err error) {
	code, _ := domain.Classify(err)
	switch {
	case errors.Is(err, domain.ErrValidation):
		Error(w, http.StatusBadRequest, err.Error(), code)
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrEntryNotFound):
		Error(w, http.StatusNotFound, err.Error(), code)
	case errors.Is(err, domain.ErrPersistence):
		logger.FromContext(ctx).WarnContext(ctx, "storage unavailable", "err", err)
		Error(w, http.StatusServiceUnavailable, "storage unavailable", code)
	default:
		logger.FromContext(ctx).ErrorContext(ctx, "request failed", "err", err)
		Error(w, http.StatusInternalServerError, "internal error", domain.CodeInternal)
	}
}
