package convert

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"portalia/internal/storage"
)

// Params: сырые параметры запроса, пустая строка означает «не передан».
type Params struct {
	DailyRate       string
	WorkedDays      string
	ContractType    string
	OperatingFee    string
	MealVoucher     string
	Insurance       string
	CommuneCode     string
	NegotiatedValue string
}

func ParamsFromQuery(q url.Values) Params {
	return Params{
		DailyRate:       q.Get("tjm"),
		WorkedDays:      q.Get("jours_travailles"),
		ContractType:    q.Get("contract_type"),
		OperatingFee:    q.Get("frais_fonctionnement"),
		MealVoucher:     q.Get("ticket_restaurant"),
		Insurance:       q.Get("mutuelle"),
		CommuneCode:     q.Get("code_commune"),
		NegotiatedValue: q.Get("valeur_negociee"),
	}
}

// ParseBool accepts true, t, yes, y and 1 in any case. Everything else is false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true
	}
	return false
}

// Normalize validates raw parameters. It never touches a workbook.
func Normalize(p Params) (storage.ConversionRequest, error) {
	const op = "service.convert.Normalize"

	if strings.TrimSpace(p.DailyRate) == "" || strings.TrimSpace(p.WorkedDays) == "" {
		return storage.ConversionRequest{}, fmt.Errorf("%s: %w: TJM and jours_travailles are required", op, ErrValidation)
	}

	rate, err := parseDecimal(p.DailyRate)
	if err != nil || rate <= 0 {
		return storage.ConversionRequest{}, fmt.Errorf("%s: %w: tjm must be a positive number, got %q", op, ErrValidation, p.DailyRate)
	}

	days, err := strconv.Atoi(strings.TrimSpace(p.WorkedDays))
	if err != nil || days <= 0 {
		return storage.ConversionRequest{}, fmt.Errorf("%s: %w: jours_travailles must be a positive integer, got %q", op, ErrValidation, p.WorkedDays)
	}

	req := storage.ConversionRequest{
		DailyRate:          rate,
		WorkedDays:         days,
		MealVoucherEnabled: ParseBool(p.MealVoucher),
		InsuranceEnabled:   ParseBool(p.Insurance),
		// неизвестный тип договора не ошибка: ячейки договора остаются как в книге
		ContractType: storage.ContractType(strings.ToUpper(strings.TrimSpace(p.ContractType))),
	}

	if s := strings.TrimSpace(p.OperatingFee); s != "" {
		fee, err := parseDecimal(s)
		if err != nil || fee < 0 {
			return storage.ConversionRequest{}, fmt.Errorf("%s: %w: invalid frais_fonctionnement %q", op, ErrValidation, p.OperatingFee)
		}
		req.OperatingFeeRate = &fee
	}

	if s := strings.TrimSpace(p.CommuneCode); s != "" {
		req.CommuneCode = &s
	}
	if s := strings.TrimSpace(p.NegotiatedValue); s != "" {
		req.NegotiatedOverride = &s
	}

	return req, nil
}

// Validate checks the invariants Convert relies on.
func Validate(req storage.ConversionRequest) error {
	if req.DailyRate <= 0 || req.WorkedDays <= 0 {
		return fmt.Errorf("%w: TJM and jours_travailles are required", ErrValidation)
	}
	return nil
}

func parseDecimal(s string) (float64, error) {
	s, ok := normalizeDecimal(strings.TrimSpace(s))
	if !ok {
		return 0, fmt.Errorf("ambiguous number: %q", s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return v, nil
}
