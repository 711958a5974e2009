package get

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"

	"portalia/http-server/response"
	"portalia/internal/storage"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type ConversionLister interface {
	GetConversions(ctx context.Context, limit int) ([]storage.Conversion, error)
}

// GetConversions: GET /api/conversions?limit=N, последние расчёты из журнала.
func GetConversions(log *slog.Logger, lister ConversionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.conversions.get.GetConversions"

		limit := defaultLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				log.With(slog.String("op", op), slog.String("limit", s)).Warn("Invalid limit")
				response.Fail(w, r, http.StatusBadRequest, "ValidationError", "limit must be a positive integer")
				return
			}
			limit = min(n, maxLimit)
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		conversions, err := lister.GetConversions(ctx, limit)
		if err != nil {
			log.With(slog.String("op", op), slog.String("error", err.Error())).Error("Failed to fetch conversions")
			response.Fail(w, r, http.StatusInternalServerError, "InternalError", "Internal server error")
			return
		}

		render.JSON(w, r, conversions)
	}
}
