package convert

import (
	"errors"
	"fmt"
	"net/http"

	"portalia/internal/workbook"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrUnknownCommuneCode = fmt.Errorf("%w: unknown commune code", ErrValidation)
	ErrLookupUnavailable  = errors.New("commune lookup sheet unavailable")
	ErrProjection         = errors.New("cannot write inputs")
	ErrExtraction         = errors.New("cannot read results")
	ErrEngineBusy         = errors.New("no free spreadsheet engine")
	// ErrMacroUnavailable не фатальна: расчёт продолжается на автопересчёте движка.
	ErrMacroUnavailable = errors.New("no runnable recalculation macro")
)

var codes = []struct {
	err    error
	code   string
	status int
}{
	{ErrUnknownCommuneCode, "UnknownCommuneCode", http.StatusBadRequest},
	{ErrValidation, "ValidationError", http.StatusBadRequest},
	{workbook.ErrTemplateMissing, "TemplateMissing", http.StatusInternalServerError},
	{workbook.ErrEngineUnavailable, "EngineUnavailable", http.StatusInternalServerError},
	{workbook.ErrOpenFailure, "OpenFailure", http.StatusInternalServerError},
	{ErrLookupUnavailable, "LookupUnavailable", http.StatusInternalServerError},
	{ErrProjection, "ProjectionFailure", http.StatusInternalServerError},
	{ErrExtraction, "ExtractionFailure", http.StatusInternalServerError},
	{ErrEngineBusy, "EngineBusy", http.StatusServiceUnavailable},
}

// Code returns the stable error category of err.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "InternalError"
}

func Status(err error) int {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.status
		}
	}
	return http.StatusInternalServerError
}
