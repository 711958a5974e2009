// Package report renders a conversion as an xlsx summary.
package report

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"portalia/internal/storage"
)

const sheet = "Conversion"

type Converter interface {
	Convert(ctx context.Context, req storage.ConversionRequest) (storage.ConversionResult, error)
}

type Service struct {
	conv Converter
}

func NewService(conv Converter) *Service {
	return &Service{conv: conv}
}

// GenerateExcel runs the conversion and returns the report bytes.
func (s *Service) GenerateExcel(ctx context.Context, req storage.ConversionRequest) ([]byte, error) {
	const op = "service.report.GenerateExcel"

	res, err := s.conv.Convert(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	b, err := Build(req, res)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

type row struct {
	label string
	value interface{}
	money bool
}

func Build(req storage.ConversionRequest, res storage.ConversionResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	// --- стили ---
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 2}},
	})
	if err != nil {
		return nil, err
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, err
	}
	warnStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Italic: true, Color: "9C5700"}})
	if err != nil {
		return nil, err
	}

	inputs := []row{
		{"TJM", req.DailyRate, true},
		{"Jours travaillés", req.WorkedDays, false},
		{"Type de contrat", contract(req.ContractType), false},
		{"Frais de fonctionnement", optional(req.OperatingFeeRate), false},
		{"Ticket restaurant", yesNo(req.MealVoucherEnabled), false},
		{"Mutuelle", yesNo(req.InsuranceEnabled), false},
		{"Code commune", optionalString(req.CommuneCode), false},
	}
	results := []row{
		{"Brut mensuel", optional(res.GrossMonthly), true},
		{"Net mensuel", optional(res.NetMonthly), true},
		{"Frais de gestion", optional(res.ManagementFee), true},
		{"Contribution ticket restaurant", res.Details.MealVoucherContribution, true},
		{"Contribution mutuelle", res.Details.InsuranceContribution, true},
		{"Source", res.Source, false},
	}

	r := 1
	section := func(title string, rows []row) error {
		if err := f.SetSheetRow(sheet, cellName(1, r), &[]interface{}{title, "Valeur"}); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cellName(1, r), cellName(2, r), headerStyle); err != nil {
			return err
		}
		r++
		for _, row := range rows {
			if err := f.SetSheetRow(sheet, cellName(1, r), &[]interface{}{row.label, row.value}); err != nil {
				return err
			}
			if row.money {
				if err := f.SetCellStyle(sheet, cellName(2, r), cellName(2, r), moneyStyle); err != nil {
					return err
				}
			}
			r++
		}
		r++
		return nil
	}

	if err := section("Paramètres", inputs); err != nil {
		return nil, err
	}
	if err := section("Résultats", results); err != nil {
		return nil, err
	}

	for _, w := range res.Warnings {
		if err := f.SetCellValue(sheet, cellName(1, r), w); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, cellName(1, r), cellName(1, r), warnStyle); err != nil {
			return nil, err
		}
		r++
	}

	if err := f.SetColWidth(sheet, "A", "A", 32); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "B", "B", 18); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// пустая ячейка вместо нуля
func optional(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func optionalString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func contract(c storage.ContractType) string {
	if c == storage.ContractNone {
		return "-"
	}
	return string(c)
}

func yesNo(b bool) string {
	if b {
		return "Oui"
	}
	return "Non"
}
