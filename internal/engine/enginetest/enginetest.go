// Package enginetest provides an in-memory engine.Engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/xuri/excelize/v2"

	"portalia/internal/engine"
)

// MacroFunc emulates a VBA macro by mutating the workbook.
type MacroFunc func(wb *Workbook) error

type Engine struct {
	mu sync.Mutex

	// Build returns a fresh workbook for every Open.
	Build    func() *Workbook
	StartErr error
	// OpenErrs are returned by consecutive Open calls before Open succeeds.
	OpenErrs []error

	Instances []*Instance
	OpenPaths []string
}

func (e *Engine) Start(ctx context.Context) (engine.Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.StartErr != nil {
		return nil, e.StartErr
	}
	inst := &Instance{engine: e}
	e.Instances = append(e.Instances, inst)
	return inst, nil
}

// Quits returns how many times Quit was called across all instances.
func (e *Engine) Quits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, inst := range e.Instances {
		n += inst.quits
	}
	return n
}

// Last returns the workbook opened by the most recent instance.
func (e *Engine) Last() *Workbook {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Instances) == 0 {
		return nil
	}
	return e.Instances[len(e.Instances)-1].Workbook
}

type Instance struct {
	engine   *Engine
	quits    int
	Workbook *Workbook
}

func (i *Instance) Open(path string) (engine.Workbook, error) {
	e := i.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	e.OpenPaths = append(e.OpenPaths, path)
	if len(e.OpenErrs) > 0 {
		err := e.OpenErrs[0]
		e.OpenErrs = e.OpenErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	wb := NewWorkbook()
	if e.Build != nil {
		wb = e.Build()
	}
	i.Workbook = wb
	return wb, nil
}

func (i *Instance) Quit() error {
	i.engine.mu.Lock()
	defer i.engine.mu.Unlock()
	i.quits++
	return nil
}

type Workbook struct {
	mu sync.Mutex

	order []string
	cells map[string]map[string]interface{}

	// MacroNames is returned by Macros unless MacrosErr is set.
	MacroNames []string
	MacrosErr  error
	MacroImpl  map[string]MacroFunc

	// SetErrs fails writes to the given "Sheet!Cell" keys.
	SetErrs   map[string]error
	SavePanic bool

	Writes     []string
	MacroCalls []string
	Saves      int
	Closes     int
	Recalcs    int
}

func NewWorkbook(sheets ...string) *Workbook {
	wb := &Workbook{
		cells:     make(map[string]map[string]interface{}),
		MacroImpl: make(map[string]MacroFunc),
		SetErrs:   make(map[string]error),
	}
	for _, s := range sheets {
		wb.AddSheet(s)
	}
	return wb
}

func (w *Workbook) AddSheet(name string) *Workbook {
	if _, ok := w.cells[name]; !ok {
		w.order = append(w.order, name)
		w.cells[name] = make(map[string]interface{})
	}
	return w
}

// Put stores a value without recording a write.
func (w *Workbook) Put(sheet, cell string, value interface{}) *Workbook {
	w.AddSheet(sheet)
	w.cells[sheet][cell] = value
	return w
}

// Value returns the raw stored value.
func (w *Workbook) Value(sheet, cell string) (interface{}, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.cells[sheet][cell]
	return v, ok
}

func (w *Workbook) Sheets() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.order...)
}

func (w *Workbook) SetCell(sheet, cell string, value interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := sheet + "!" + cell
	if err := w.SetErrs[key]; err != nil {
		return err
	}
	rows, ok := w.cells[sheet]
	if !ok {
		return fmt.Errorf("%w: %s", engine.ErrSheetNotFound, sheet)
	}
	rows[cell] = value
	w.Writes = append(w.Writes, key)
	return nil
}

func (w *Workbook) Cell(sheet, cell string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows, ok := w.cells[sheet]
	if !ok {
		return "", fmt.Errorf("%w: %s", engine.ErrSheetNotFound, sheet)
	}
	return format(rows[cell]), nil
}

func (w *Workbook) Column(sheet string, col int) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows, ok := w.cells[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrSheetNotFound, sheet)
	}

	byRow := make(map[int]string)
	maxRow := 0
	for ref, v := range rows {
		c, r, err := excelize.CellNameToCoordinates(ref)
		if err != nil || c != col {
			continue
		}
		byRow[r] = format(v)
		if r > maxRow {
			maxRow = r
		}
	}

	out := make([]string, maxRow)
	for r, v := range byRow {
		out[r-1] = v
	}
	return out, nil
}

func (w *Workbook) Macros() ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.MacrosErr != nil {
		return nil, w.MacrosErr
	}
	return append([]string(nil), w.MacroNames...), nil
}

func (w *Workbook) RunMacro(name string) error {
	w.mu.Lock()
	w.MacroCalls = append(w.MacroCalls, name)
	impl, ok := w.MacroImpl[name]
	w.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", engine.ErrMacroNotFound, name)
	}
	return impl(w)
}

func (w *Workbook) Recalculate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Recalcs++
	return nil
}

func (w *Workbook) Save() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Saves++
	if w.SavePanic {
		panic("engine crashed during save")
	}
	return nil
}

func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Closes++
	return nil
}

func format(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}
