package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"portalia/http-server/response"
	"portalia/internal/service/convert"
	"portalia/internal/storage"
)

type Converter interface {
	Convert(ctx context.Context, req storage.ConversionRequest) (storage.ConversionResult, error)
}

// Convert: GET /convert, расчёт через книгу.
func Convert(log *slog.Logger, conv Converter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.convert.get.Convert"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		req, err := convert.Normalize(convert.ParamsFromQuery(r.URL.Query()))
		if err != nil {
			log.Warn("invalid conversion request", slog.String("error", err.Error()))
			response.Error(w, r, err)
			return
		}

		// движок не прерывается по контексту, таймаут здесь не ставим
		res, err := conv.Convert(r.Context(), req)
		if err != nil {
			if errors.Is(err, convert.ErrValidation) {
				log.Warn("conversion rejected", slog.String("error", err.Error()))
			} else {
				log.Error("excel processing error", slog.String("error", err.Error()))
			}
			response.Error(w, r, err)
			return
		}

		render.JSON(w, r, res)
	}
}
