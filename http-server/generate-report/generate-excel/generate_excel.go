package generate_excel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"portalia/http-server/response"
	"portalia/internal/service/convert"
	"portalia/internal/storage"
)

type GenerateExcelHandler interface {
	GenerateExcel(ctx context.Context, req storage.ConversionRequest) ([]byte, error)
}

// GenerateReportExcel: GET /convert/excel, параметры как у /convert.
func GenerateReportExcel(log *slog.Logger, gen GenerateExcelHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.report.GenerateReportExcel"

		req, err := convert.Normalize(convert.ParamsFromQuery(r.URL.Query()))
		if err != nil {
			log.Warn("invalid report request", slog.String("op", op), slog.String("error", err.Error()))
			response.Error(w, r, err)
			return
		}

		excelBytes, err := gen.GenerateExcel(r.Context(), req)
		if err != nil {
			log.Error("failed to generate excel", slog.String("op", op), slog.String("error", err.Error()))
			response.Error(w, r, err)
			return
		}

		fileName := fmt.Sprintf("Portalia_Conversion_%s.xlsx", time.Now().Format("2006-01-02_150405"))

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename="+fileName)
		if _, err := w.Write(excelBytes); err != nil {
			log.Error("failed to write report", slog.String("op", op), slog.String("error", err.Error()))
		}
	}
}
