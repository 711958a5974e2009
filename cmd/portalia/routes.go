package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	getconversions "portalia/http-server/conversions/get"
	"portalia/http-server/convert/fallback"
	"portalia/http-server/convert/get"
	"portalia/http-server/convert/legacy"
	getexcelinfo "portalia/http-server/excel-info/get"
	generate_excel "portalia/http-server/generate-report/generate-excel"
	"portalia/http-server/root"
	"portalia/internal/config"
	"portalia/internal/middleware/auth"
	fallbacksvc "portalia/internal/service/fallback"
	"portalia/internal/storage/mysql"
)

// journal может быть nil: тогда /api/conversions не регистрируется.
func routes(
	cfg config.Config,
	log *slog.Logger,
	conv get.Converter,
	templates getexcelinfo.TemplateInspector,
	calc *fallbacksvc.Calculator,
	rep generate_excel.GenerateExcelHandler,
	journal *mysql.Storage,
) *chi.Mux {
	router := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	router.Use(corsHandler.Handler)

	router.Use(middleware.RequestID)
	//ip пользователя
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/", root.Index())

	// расчёт через книгу
	router.Get("/convert", get.Convert(log, conv))
	router.Get("/convert/excel", generate_excel.GenerateReportExcel(log, rep))

	// расчёт по формуле
	router.Get("/old_convert", legacy.OldConvert(log, calc))
	router.Get("/fallback-convert", fallback.FallbackConvert(log, calc))

	router.With(auth.BasicAuth(cfg.AdminLogin, cfg.AdminPass)).
		Get("/get-excel-info", getexcelinfo.GetExcelInfo(log, templates))

	if journal != nil {
		router.With(auth.BasicAuth(cfg.AdminLogin, cfg.AdminPass)).
			Get("/api/conversions", getconversions.GetConversions(log, journal))
	}

	return router
}
