// Package workbook manages disposable working copies of the template workbook.
package workbook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"portalia/internal/engine"
)

var (
	ErrTemplateMissing   = errors.New("template workbook not found")
	ErrEngineUnavailable = errors.New("spreadsheet engine unavailable")
	ErrOpenFailure       = errors.New("cannot open workbook copy")
)

type Manager struct {
	log          *slog.Logger
	engine       engine.Engine
	templatePath string
	workDir      string
	globs        []string
}

func NewManager(log *slog.Logger, eng engine.Engine, templatePath, workDir string, globs []string) *Manager {
	return &Manager{
		log:          log,
		engine:       eng,
		templatePath: templatePath,
		workDir:      workDir,
		globs:        globs,
	}
}

func (m *Manager) TemplatePath() string {
	return m.templatePath
}

// Session: изолированная копия шаблона, открытая в собственном экземпляре движка.
type Session struct {
	ID       string
	Template string
	Path     string

	log      *slog.Logger
	dir      string
	instance engine.Instance
	wb       engine.Workbook

	closeOnce sync.Once
	closeErr  error
}

func (s *Session) Workbook() engine.Workbook {
	return s.wb
}

// Open copies the template and opens the copy. The template itself is never written.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	const op = "workbook.Manager.Open"

	info, err := os.Stat(m.templatePath)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrTemplateMissing, m.templatePath)
	}

	id := uuid.New().String()
	log := m.log.With(slog.String("op", op), slog.String("session", id))

	dir, err := os.MkdirTemp(m.workDir, "portalia-"+id[:8]+"-")
	if err != nil {
		return nil, fmt.Errorf("%s: create work dir: %w", op, err)
	}

	path := filepath.Join(dir, "temp_calculation"+filepath.Ext(m.templatePath))
	if err := copyFile(m.templatePath, path); err != nil {
		removeDir(log, dir)
		return nil, fmt.Errorf("%s: copy template: %w", op, err)
	}
	log.Info("copied template", slog.String("path", path))

	inst, err := m.engine.Start(ctx)
	if err != nil {
		removeDir(log, dir)
		return nil, fmt.Errorf("%s: %w: %v", op, ErrEngineUnavailable, err)
	}

	wb, err := inst.Open(path)
	if err != nil {
		log.Warn("open failed, retrying with absolute path", slog.String("error", err.Error()))

		abs, absErr := canonical(path)
		if absErr == nil {
			wb, err = inst.Open(abs)
		}
		if absErr != nil || err != nil {
			if qErr := inst.Quit(); qErr != nil {
				log.Error("quit engine", slog.String("error", qErr.Error()))
			}
			removeDir(log, dir)
			if err == nil {
				err = absErr
			}
			return nil, fmt.Errorf("%s: %w: %v", op, ErrOpenFailure, err)
		}
		path = abs
	}

	return &Session{
		ID:       id,
		Template: m.templatePath,
		Path:     path,
		log:      m.log.With(slog.String("session", id)),
		dir:      dir,
		instance: inst,
		wb:       wb,
	}, nil
}

// Close persists, closes and quits, then deletes the work dir. Each step runs even if
// the previous one failed; the joined error is informational only.
func (s *Session) Close() error {
	const op = "workbook.Session.Close"

	s.closeOnce.Do(func() {
		log := s.log.With(slog.String("op", op))

		var errs []error
		steps := []struct {
			name string
			fn   func() error
		}{
			{"save", s.wb.Save},
			{"close", s.wb.Close},
			{"quit", s.instance.Quit},
			{"remove", func() error { return os.RemoveAll(s.dir) }},
		}

		for _, step := range steps {
			if err := guard(step.fn); err != nil {
				log.Error("cleanup step failed", slog.String("step", step.name), slog.String("error", err.Error()))
				errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			}
		}

		s.closeErr = errors.Join(errs...)
		log.Debug("session closed")
	})

	return s.closeErr
}

func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func removeDir(log *slog.Logger, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		log.Error("remove work dir", slog.String("dir", dir), slog.String("error", err.Error()))
	}
}
