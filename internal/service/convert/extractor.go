package convert

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"portalia/internal/constants"
	"portalia/internal/engine"
	"portalia/internal/storage"
)

type Extractor struct {
	log *slog.Logger
}

func NewExtractor(log *slog.Logger) *Extractor {
	return &Extractor{log: log}
}

// Extract reads the results. An empty cell stays nil; it is never turned into 0.
func (e *Extractor) Extract(wb engine.Workbook, res SheetResolution, req storage.ConversionRequest) (storage.ConversionResult, error) {
	const op = "service.convert.Extractor.Extract"

	result := storage.ConversionResult{
		DailyRate: req.DailyRate,
		Source:    storage.SourceExcel,
	}

	fields := []struct {
		name      string
		dst       **float64
		primary   string
		secondary string
	}{
		{"brut_mensuel", &result.GrossMonthly, constants.CellResultGross, constants.CellCalcGross},
		{"net_mensuel", &result.NetMonthly, constants.CellResultNet, constants.CellCalcNet},
		{"frais_gestion", &result.ManagementFee, constants.CellResultFee, constants.CellCalcFee},
	}

	var errs []error
	for _, f := range fields {
		v, err := e.number(wb, res.Result.Name, f.primary)
		if err != nil {
			errs = append(errs, err)
		}
		if v == nil {
			v, err = e.number(wb, res.Calculation.Name, f.secondary)
			if err != nil {
				errs = append(errs, err)
			}
		}
		*f.dst = v
	}

	if req.MealVoucherEnabled {
		v, err := e.number(wb, res.Result.Name, constants.CellResultMealVoucher)
		if err != nil {
			errs = append(errs, err)
		}
		if v == nil {
			v = storage.Float(constants.MealVoucherAmount)
		}
		result.Details.MealVoucherContribution = *v
	}

	if req.InsuranceEnabled {
		v, err := e.number(wb, res.Result.Name, constants.CellResultInsurance)
		if err != nil {
			errs = append(errs, err)
		}
		if v != nil {
			result.Details.InsuranceContribution = *v
		}
	}

	if len(errs) > 0 {
		return result, fmt.Errorf("%s: %w: %w", op, ErrExtraction, errors.Join(errs...))
	}

	e.log.Info("calculation result",
		slog.String("op", op),
		slog.Any("brut_mensuel", deref(result.GrossMonthly)),
		slog.Any("net_mensuel", deref(result.NetMonthly)),
		slog.Any("frais_gestion", deref(result.ManagementFee)),
	)

	return result, nil
}

func (e *Extractor) number(wb engine.Workbook, sheet, cell string) (*float64, error) {
	raw, err := wb.Cell(sheet, cell)
	if err != nil {
		return nil, fmt.Errorf("%s!%s: %w", sheet, cell, err)
	}

	v, ok := ParseNumber(raw)
	if !ok && strings.TrimSpace(raw) != "" {
		e.log.Warn("non-numeric result cell", slog.String("sheet", sheet), slog.String("cell", cell), slog.String("value", raw))
	}
	return v, nil
}

func deref(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
