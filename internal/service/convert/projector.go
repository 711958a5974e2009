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

type Projector struct {
	log      *slog.Logger
	communes *CommuneValidator
}

func NewProjector(log *slog.Logger, communes *CommuneValidator) *Projector {
	return &Projector{log: log, communes: communes}
}

// Apply writes the request onto the calculation sheet. A failed write does not stop
// the remaining ones; all failures are returned together. The commune code is
// written only after it is found in the lookup sheet.
func (p *Projector) Apply(wb engine.Workbook, res SheetResolution, req storage.ConversionRequest) error {
	const op = "service.convert.Projector.Apply"

	sheet := res.Calculation.Name
	log := p.log.With(slog.String("op", op), slog.String("sheet", sheet))

	var errs []error
	set := func(cell string, value interface{}) {
		if err := wb.SetCell(sheet, cell, value); err != nil {
			errs = append(errs, fmt.Errorf("%s!%s: %w", sheet, cell, err))
			return
		}
		log.Debug("set cell", slog.String("cell", cell), slog.Any("value", value))
	}

	set(constants.CellDailyRate, req.DailyRate)
	set(constants.CellWorkedDays, req.WorkedDays)

	switch req.ContractType {
	case storage.ContractCDI:
		cells := constants.ContractCDI
		negotiable := cells.Negotiable
		if req.NegotiatedOverride != nil {
			negotiable = *req.NegotiatedOverride
		}
		set(constants.CellEmployerRate, cells.EmployerRate)
		set(constants.CellNegotiable, negotiable)
		set(constants.CellAdditionalRate, cells.AdditionalRate)
	case storage.ContractCDD:
		cells := constants.ContractCDD
		set(constants.CellEmployerRate, cells.EmployerRate)
		set(constants.CellNegotiable, cells.Negotiable)
		set(constants.CellAdditionalRate, cells.AdditionalRate)
	case storage.ContractNone:
	default:
		log.Warn("unknown contract type, contract cells left untouched", slog.String("contract_type", string(req.ContractType)))
	}

	if req.OperatingFeeRate != nil {
		set(constants.CellOperatingFee, *req.OperatingFeeRate)
	}

	if req.MealVoucherEnabled {
		set(constants.CellMealVoucher, constants.MealVoucherAmount)
	} else {
		set(constants.CellMealVoucher, 0)
	}

	if req.InsuranceEnabled {
		set(constants.CellInsurance, constants.InsuranceEnabled)
	} else {
		set(constants.CellInsurance, constants.InsuranceDisabled)
	}

	if req.CommuneCode != nil {
		code := strings.TrimSpace(*req.CommuneCode)
		if err := p.communes.Validate(wb, code); err != nil {
			return errors.Join(err, joinProjection(op, errs))
		}
		set(constants.CellCommuneCode, code)
	}

	return joinProjection(op, errs)
}

func joinProjection(op string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrProjection, errors.Join(errs...))
}
