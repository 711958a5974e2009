package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portalia/internal/config"
	"portalia/internal/engine/excel"
	"portalia/internal/service/convert"
	"portalia/internal/service/fallback"
	"portalia/internal/service/report"
	"portalia/internal/storage/mysql"
	"portalia/internal/workbook"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustConfig()

	log := setupLogger(cfg.Env)

	eng := excel.New(log, excel.Options{
		Command:      cfg.Engine.Command,
		MacroCommand: cfg.Engine.MacroCommand,
		StartTimeout: cfg.Engine.StartTimeout,
	})
	sessions := workbook.NewManager(log, eng, cfg.Workbook.TemplatePath, cfg.Workbook.WorkDir, cfg.Workbook.CandidateGlobs)

	opts := convert.Options{
		CommuneSheet:   cfg.Workbook.CommuneSheet,
		MaxSessions:    cfg.Workbook.MaxSessions,
		AcquireTimeout: cfg.Workbook.AcquireTimeout,
	}

	// журнал расчётов включается только при заданном DSN
	var journal *mysql.Storage
	if cfg.Storage.DSN != "" {
		var err error
		journal, err = openJournal(cfg.Storage.DSN)
		if err != nil {
			log.Error("failed to open conversion journal", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer journal.Close()
		opts.Journal = journal
	}

	convService := convert.NewService(log, sessions, opts)
	calc := fallback.New(fallback.Rates{
		WorkedDays:     cfg.Fallback.WorkedDays,
		FixedFeeRate:   cfg.Fallback.FixedFeeRate,
		ProvisionRate:  cfg.Fallback.ProvisionRate,
		EmployeeRate:   cfg.Fallback.EmployeeRate,
		EmployerRate:   cfg.Fallback.EmployerRate,
		FixedAllowance: cfg.Fallback.FixedAllowance,
	})
	reportService := report.NewService(convService)

	log.Info("server started",
		slog.String("address", cfg.Address),
		slog.String("template", cfg.Workbook.TemplatePath),
		slog.Bool("journal", journal != nil),
	)

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      routes(*cfg, log, convService, sessions, calc, reportService, journal),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed start server", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.Timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop server", slog.String("error", err.Error()))
	}

	log.Error("server stopped")
}

func openJournal(dsn string) (*mysql.Storage, error) {
	storage, err := mysql.New(dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := storage.Init(ctx); err != nil {
		storage.Close()
		return nil, err
	}
	return storage, nil
}

type dualHandler struct {
	coreHandler  slog.Handler
	errorHandler slog.Handler
}

func (h *dualHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.coreHandler.Enabled(ctx, lvl) || h.errorHandler.Enabled(ctx, lvl)
}

func (h *dualHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error

	// Всегда пишем в основной вывод (stdout)
	if h.coreHandler.Enabled(ctx, r.Level) {
		err = h.coreHandler.Handle(ctx, r)
		if err != nil {
			return err
		}
	}

	// ошибки дублируются в файл, сбой записи в файл не роняет основной вывод
	if r.Level >= slog.LevelError && h.errorHandler.Enabled(ctx, r.Level) {
		_ = h.errorHandler.Handle(ctx, r.Clone())
	}

	return err
}

func (h *dualHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dualHandler{
		coreHandler:  h.coreHandler.WithAttrs(attrs),
		errorHandler: h.errorHandler.WithAttrs(attrs),
	}
}

func (h *dualHandler) WithGroup(name string) slog.Handler {
	return &dualHandler{
		coreHandler:  h.coreHandler.WithGroup(name),
		errorHandler: h.errorHandler.WithGroup(name),
	}
}

func setupLogger(env string) *slog.Logger {
	var level slog.Level = slog.LevelDebug
	if env == envProd {
		level = slog.LevelInfo
	}

	var coreHandler slog.Handler
	switch env {
	case envDev:
		coreHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	case envLocal, envProd:
		coreHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		coreHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	errorFile, err := os.OpenFile("errors.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		slog.Warn("Cannot open error log file", "error", err)
		return slog.New(coreHandler) // продолжаем без файла
	}

	errorHandler := slog.NewTextHandler(errorFile, &slog.HandlerOptions{
		Level: slog.LevelError,
	})

	return slog.New(&dualHandler{
		coreHandler:  coreHandler,
		errorHandler: errorHandler,
	})
}
