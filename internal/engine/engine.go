// Package engine describes the contract with the external spreadsheet engine.
// The engine owns formula evaluation and macro execution; callers only write
// inputs, ask for recalculation and read values back.
package engine

import (
	"context"
	"errors"
)

var (
	// ErrMacrosUnreadable means the workbook's code modules cannot be listed.
	ErrMacrosUnreadable = errors.New("workbook macros are unreadable")
	// ErrMacroNotFound means the macro does not exist or cannot be run.
	ErrMacroNotFound = errors.New("macro not found")
	// ErrSheetNotFound is returned for reads and writes on a missing sheet.
	ErrSheetNotFound = errors.New("sheet not found")
)

// Engine starts engine instances. Each instance is owned by exactly one session.
type Engine interface {
	Start(ctx context.Context) (Instance, error)
}

// Instance is one running engine. Quit must release every OS resource it holds.
type Instance interface {
	Open(path string) (Workbook, error)
	Quit() error
}

// Workbook is an open workbook inside an engine instance.
type Workbook interface {
	Sheets() []string
	SetCell(sheet, cell string, value interface{}) error
	// Cell returns the displayed value of a cell, "" when it is empty.
	Cell(sheet, cell string) (string, error)
	// Column returns the used range of a column, 1-based.
	Column(sheet string, col int) ([]string, error)
	Macros() ([]string, error)
	RunMacro(name string) error
	Recalculate() error
	Save() error
	Close() error
}
