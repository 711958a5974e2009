// Package convert drives a conversion through the template workbook:
// resolve sheets, write inputs, validate the commune, recalculate, read results.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"portalia/internal/storage"
	"portalia/internal/workbook"
)

type SessionOpener interface {
	Open(ctx context.Context) (*workbook.Session, error)
}

type Journal interface {
	SaveConversion(ctx context.Context, c storage.Conversion) (int64, error)
}

type Options struct {
	CommuneSheet string
	// MaxSessions ограничивает число одновременно открытых движков, 0: без ограничения.
	MaxSessions    int64
	AcquireTimeout time.Duration
	Journal        Journal
}

type Service struct {
	log       *slog.Logger
	sessions  SessionOpener
	resolver  *Resolver
	projector *Projector
	extractor *Extractor
	communes  *CommuneValidator
	journal   Journal

	sem            *semaphore.Weighted
	acquireTimeout time.Duration
}

func NewService(log *slog.Logger, sessions SessionOpener, opts Options) *Service {
	communes := NewCommuneValidator(opts.CommuneSheet)

	s := &Service{
		log:            log,
		sessions:       sessions,
		resolver:       NewResolver(log),
		projector:      NewProjector(log, communes),
		extractor:      NewExtractor(log),
		communes:       communes,
		journal:        opts.Journal,
		acquireTimeout: opts.AcquireTimeout,
	}
	if opts.MaxSessions > 0 {
		s.sem = semaphore.NewWeighted(opts.MaxSessions)
	}
	return s
}

// Convert runs one conversion on a private copy of the template. The session is
// torn down on every path; teardown errors never replace a computed result.
func (s *Service) Convert(ctx context.Context, req storage.ConversionRequest) (storage.ConversionResult, error) {
	const op = "service.convert.Convert"
	log := s.log.With(slog.String("op", op))

	if err := Validate(req); err != nil {
		return storage.ConversionResult{}, fmt.Errorf("%s: %w", op, err)
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return storage.ConversionResult{}, fmt.Errorf("%s: %w", op, err)
	}
	defer release()

	log.Info("starting excel calculation",
		slog.Float64("tjm", req.DailyRate),
		slog.Int("jours_travailles", req.WorkedDays),
		slog.String("contract_type", string(req.ContractType)),
	)

	sess, err := s.sessions.Open(ctx)
	if err != nil {
		return storage.ConversionResult{}, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Error("error cleaning up workbook session", slog.String("session", sess.ID), slog.String("error", err.Error()))
		}
	}()

	wb := sess.Workbook()

	res, err := s.resolver.ResolveSheets(wb)
	if err != nil {
		return storage.ConversionResult{}, fmt.Errorf("%s: %w", op, err)
	}
	warnings := resolutionWarnings(res)

	if err := s.projector.Apply(wb, res, req); err != nil {
		return storage.ConversionResult{}, fmt.Errorf("%s: %w", op, err)
	}

	// макрос оставляет в книге значения движка, оценка формул включается только без него
	if run, err := s.resolver.RunMacro(wb); err == nil {
		log.Info("recalculated with macro", slog.String("macro", run.Name), slog.String("source", run.Source.String()))
	} else {
		warnings = append(warnings, "no recalculation macro could be run; results rely on automatic recalculation")
		if err := wb.Recalculate(); err != nil {
			log.Warn("engine recalculation failed", slog.String("error", err.Error()))
			warnings = append(warnings, "engine recalculation failed")
		}
	}

	result, err := s.extractor.Extract(wb, res, req)
	if err != nil {
		return storage.ConversionResult{}, fmt.Errorf("%s: %w", op, err)
	}
	result.Warnings = warnings

	s.record(ctx, req, result)

	return result, nil
}

func (s *Service) acquire(ctx context.Context) (func(), error) {
	if s.sem == nil {
		return func() {}, nil
	}

	actx := ctx
	if s.acquireTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, s.acquireTimeout)
		defer cancel()
	}

	if err := s.sem.Acquire(actx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineBusy, err)
	}
	return func() { s.sem.Release(1) }, nil
}

func (s *Service) record(ctx context.Context, req storage.ConversionRequest, res storage.ConversionResult) {
	if s.journal == nil {
		return
	}
	id, err := s.journal.SaveConversion(ctx, storage.Conversion{
		Request:   req,
		Result:    res,
		CreatedAt: time.Now(),
	})
	if err != nil {
		s.log.Error("failed to save conversion", slog.String("error", err.Error()))
		return
	}
	s.log.Debug("conversion saved", slog.Int64("id", id))
}

func resolutionWarnings(res SheetResolution) []string {
	var w []string
	if res.Calculation.Tier == TierDefault {
		w = append(w, fmt.Sprintf("calculation sheet not found, using first sheet %q", res.Calculation.Name))
	}
	if res.Result.Tier == TierDefault {
		w = append(w, fmt.Sprintf("result sheet not found, reading results from %q", res.Result.Name))
	}
	return w
}

// Inspection describes how a workbook is seen, without running a conversion.
type Inspection struct {
	Sheets       []string        `json:"sheets"`
	Resolution   SheetResolution `json:"resolution"`
	Macros       []string        `json:"macros"`
	MacrosError  string          `json:"macros_error,omitempty"`
	Communes     int             `json:"communes"`
	CommuneError string          `json:"commune_error,omitempty"`
}

func (s *Service) Inspect(ctx context.Context) (Inspection, error) {
	const op = "service.convert.Inspect"

	sess, err := s.sessions.Open(ctx)
	if err != nil {
		return Inspection{}, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			s.log.Error("error cleaning up workbook session", slog.String("op", op), slog.String("error", err.Error()))
		}
	}()

	wb := sess.Workbook()
	res, err := s.resolver.ResolveSheets(wb)
	if err != nil {
		return Inspection{}, fmt.Errorf("%s: %w", op, err)
	}

	ins := Inspection{Sheets: wb.Sheets(), Resolution: res}

	if macros, err := wb.Macros(); err != nil {
		ins.MacrosError = err.Error()
	} else {
		ins.Macros = macros
	}

	if ref, err := s.communes.Load(wb); err != nil {
		ins.CommuneError = err.Error()
	} else {
		ins.Communes = ref.Len()
	}

	return ins, nil
}
