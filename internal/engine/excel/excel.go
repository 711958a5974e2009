// Package excel implements engine.Engine on top of excelize.
//
// Workbook reads and writes go through excelize. Macro execution is
// delegated to an external office process configured by the caller, since
// excelize has no VBA runtime.
package excel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"portalia/internal/engine"
)

type Options struct {
	// Command is started once per instance and killed on Quit. Empty means in-process only.
	Command []string
	// MacroCommand runs one macro. {macro} and {file} are substituted.
	MacroCommand []string
	StartTimeout time.Duration
}

type Engine struct {
	log  *slog.Logger
	opts Options
}

func New(log *slog.Logger, opts Options) *Engine {
	return &Engine{log: log, opts: opts}
}

func (e *Engine) Start(ctx context.Context) (engine.Instance, error) {
	const op = "engine.excel.Start"

	inst := &Instance{log: e.log, macroCommand: e.opts.MacroCommand}
	if len(e.opts.Command) > 0 {
		p, err := startProcess(ctx, e.opts.Command, e.opts.StartTimeout)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		inst.proc = p
		e.log.Debug("engine process started", slog.String("op", op), slog.Int("pid", p.pid()))
	}

	return inst, nil
}

type Instance struct {
	log          *slog.Logger
	macroCommand []string
	proc         *process

	quitOnce sync.Once
	quitErr  error
}

func (i *Instance) Open(path string) (engine.Workbook, error) {
	const op = "engine.excel.Open"

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Workbook{
		f:            f,
		path:         path,
		macroCommand: i.macroCommand,
	}, nil
}

func (i *Instance) Quit() error {
	i.quitOnce.Do(func() {
		if i.proc != nil {
			i.quitErr = i.proc.stop()
		}
	})
	return i.quitErr
}

type Workbook struct {
	mu           sync.Mutex
	f            *excelize.File
	path         string
	macroCommand []string
	// live включается после Recalculate: формулы считаются excelize, а не берутся из кэша
	live bool
}

func (w *Workbook) Sheets() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.GetSheetList()
}

func (w *Workbook) SetCell(sheet, cell string, value interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkSheet(sheet); err != nil {
		return err
	}
	return w.f.SetCellValue(sheet, cell, value)
}

// Cell returns the stored value, not the text shown by the cell's number format.
func (w *Workbook) Cell(sheet, cell string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkSheet(sheet); err != nil {
		return "", err
	}

	if w.live {
		formula, err := w.f.GetCellFormula(sheet, cell)
		if err == nil && formula != "" {
			if v, err := w.f.CalcCellValue(sheet, cell, raw); err == nil {
				return strings.TrimSpace(v), nil
			}
		}
	}

	v, err := w.f.GetCellValue(sheet, cell, raw)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v), nil
}

var raw = excelize.Options{RawCellValue: true}

// Column reads formatted text: the lookup sheet keeps leading zeros through its number format.
func (w *Workbook) Column(sheet string, col int) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkSheet(sheet); err != nil {
		return nil, err
	}

	rows, err := w.f.GetRows(sheet)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) >= col {
			out = append(out, row[col-1])
			continue
		}
		out = append(out, "")
	}
	return out, nil
}

func (w *Workbook) Macros() ([]string, error) {
	return listMacros(w.path)
}

func (w *Workbook) RunMacro(name string) error {
	const op = "engine.excel.RunMacro"

	if len(w.macroCommand) == 0 {
		return fmt.Errorf("%s: %w: no macro runtime configured for %s", op, engine.ErrMacroNotFound, name)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// макрос работает с файлом на диске, поэтому сначала сохраняем ввод
	if err := w.f.Save(); err != nil {
		return fmt.Errorf("%s: save before macro: %w", op, err)
	}

	argv := expand(w.macroCommand, name, w.path)
	out, err := exec.Command(argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: macro %s: %w: %s", op, name, err, strings.TrimSpace(string(out)))
	}

	reopened, err := excelize.OpenFile(w.path)
	if err != nil {
		return fmt.Errorf("%s: reopen after macro: %w", op, err)
	}
	_ = w.f.Close()
	w.f = reopened

	return nil
}

func (w *Workbook) Recalculate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.live = true
	return nil
}

func (w *Workbook) Save() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Save()
}

func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

func (w *Workbook) checkSheet(sheet string) error {
	idx, err := w.f.GetSheetIndex(sheet)
	if err != nil || idx == -1 {
		return fmt.Errorf("%w: %s", engine.ErrSheetNotFound, sheet)
	}
	return nil
}

func expand(argv []string, macro, file string) []string {
	r := strings.NewReplacer("{macro}", macro, "{file}", file)
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = r.Replace(a)
	}
	return out
}

var errProcessExited = errors.New("engine process exited during startup")
