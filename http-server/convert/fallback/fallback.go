package fallback

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"portalia/http-server/response"
	"portalia/internal/service/convert"
	"portalia/internal/storage"
)

type Converter interface {
	Convert(req storage.ConversionRequest) (storage.ConversionResult, error)
}

// FallbackConvert: GET /fallback-convert, те же параметры что у /convert, расчёт по формуле.
func FallbackConvert(log *slog.Logger, conv Converter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.convert.fallback.FallbackConvert"

		log := log.With(slog.String("op", op))

		req, err := convert.Normalize(convert.ParamsFromQuery(r.URL.Query()))
		if err != nil {
			log.Warn("invalid conversion request", slog.String("error", err.Error()))
			response.Error(w, r, err)
			return
		}

		res, err := conv.Convert(req)
		if err != nil {
			log.Error("fallback calculation failed", slog.String("error", err.Error()))
			response.Error(w, r, err)
			return
		}

		render.JSON(w, r, res)
	}
}
