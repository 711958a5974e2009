package convert

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"portalia/internal/constants"
	"portalia/internal/engine"
)

// CommuneReference: коды коммун из листа-справочника, в порядке листа.
type CommuneReference struct {
	codes []string
	index map[string]struct{}
}

func (r *CommuneReference) Contains(code string) bool {
	_, ok := r.index[normalizeCode(code)]
	return ok
}

func (r *CommuneReference) Codes() []string {
	return append([]string(nil), r.codes...)
}

func (r *CommuneReference) Len() int {
	return len(r.codes)
}

// CommuneValidator rebuilds the reference on every call; each request has its own workbook.
type CommuneValidator struct {
	sheet string
}

func NewCommuneValidator(sheet string) *CommuneValidator {
	if sheet == "" {
		sheet = constants.DefaultCommuneSheet
	}
	return &CommuneValidator{sheet: sheet}
}

func (v *CommuneValidator) Load(wb engine.Workbook) (*CommuneReference, error) {
	const op = "service.convert.CommuneValidator.Load"

	name, ok := v.lookupSheet(wb.Sheets())
	if !ok {
		return nil, fmt.Errorf("%s: %w: sheet %q not found", op, ErrLookupUnavailable, v.sheet)
	}

	col, err := wb.Column(name, 1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrLookupUnavailable, err)
	}

	ref := &CommuneReference{index: make(map[string]struct{}, len(col))}
	for _, cell := range col {
		code := normalizeCode(cell)
		if code == "" {
			continue
		}
		if _, dup := ref.index[code]; dup {
			continue
		}
		ref.index[code] = struct{}{}
		ref.codes = append(ref.codes, strings.TrimSpace(cell))
	}

	return ref, nil
}

func (v *CommuneValidator) Validate(wb engine.Workbook, code string) error {
	const op = "service.convert.CommuneValidator.Validate"

	ref, err := v.Load(wb)
	if err != nil {
		return err
	}
	if !ref.Contains(code) {
		return fmt.Errorf("%s: %w: %q", op, ErrUnknownCommuneCode, strings.TrimSpace(code))
	}
	return nil
}

func (v *CommuneValidator) lookupSheet(sheets []string) (string, bool) {
	for _, s := range sheets {
		if s == v.sheet {
			return s, true
		}
	}
	for _, s := range sheets {
		if strings.EqualFold(strings.TrimSpace(s), v.sheet) {
			return s, true
		}
	}
	return "", false
}

// normalizeCode: числовые ячейки вида "75056.0" приводятся к "75056", ведущие нули не трогаем.
func normalizeCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || !strings.Contains(s, ".") {
		return s
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && math.Abs(f-math.Round(f)) <= 1e-9 {
		return strconv.FormatInt(int64(math.Round(f)), 10)
	}
	return s
}
