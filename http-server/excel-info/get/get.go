package get

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"portalia/http-server/response"
	"portalia/internal/storage"
)

type TemplateInspector interface {
	Info(ctx context.Context) (storage.TemplateInfo, error)
}

// GetExcelInfo: GET /get-excel-info, что сервер видит на диске.
func GetExcelInfo(log *slog.Logger, inspector TemplateInspector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.excel-info.get.GetExcelInfo"

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		info, err := inspector.Info(ctx)
		if err != nil {
			log.With(slog.String("op", op), slog.String("error", err.Error())).Error("Failed to inspect template")
			response.Error(w, r, err)
			return
		}

		if !info.Exists {
			log.With(slog.String("op", op), slog.String("path", info.AbsolutePath)).Warn("Template file not found")
		}

		render.JSON(w, r, info)
	}
}
