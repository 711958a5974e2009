// Package fallback is the closed-form TJM / gross / net conversion used when no
// workbook is available.
package fallback

import (
	"errors"
	"fmt"
	"math"

	"portalia/internal/constants"
	"portalia/internal/storage"
)

var ErrInvalidRates = errors.New("invalid fallback rates")

type Rates struct {
	WorkedDays     int
	FixedFeeRate   float64
	ProvisionRate  float64
	EmployeeRate   float64
	EmployerRate   float64
	FixedAllowance float64
}

func DefaultRates() Rates {
	return Rates{
		WorkedDays:     18,
		FixedFeeRate:   0.08,
		ProvisionRate:  0.10,
		EmployeeRate:   0.22,
		EmployerRate:   0.12,
		FixedAllowance: 198,
	}
}

func (r Rates) validate() error {
	switch {
	case r.WorkedDays <= 0:
		return fmt.Errorf("%w: worked days must be positive, got %d", ErrInvalidRates, r.WorkedDays)
	case r.kept() <= 0:
		return fmt.Errorf("%w: fixed fee and provision rates leave nothing to pay", ErrInvalidRates)
	case r.netShare() <= 0:
		return fmt.Errorf("%w: contribution rates leave nothing to pay", ErrInvalidRates)
	}
	return nil
}

// kept: доля оборота после фиксированных сборов и провизий.
func (r Rates) kept() float64 {
	return 1 - r.FixedFeeRate - r.ProvisionRate
}

func (r Rates) netShare() float64 {
	return 1 - r.EmployeeRate - r.EmployerRate
}

// Input: ровно одно значение определяет ветку, приоритет tjm > brut > net.
// nil и 0 означают «не передано».
type Input struct {
	DailyRate *float64
	Gross     *float64
	Net       *float64
}

type Output struct {
	DailyRate *float64 `json:"tjm"`
	Gross     *float64 `json:"brut"`
	Net       *float64 `json:"net"`
}

type Calculator struct {
	rates Rates
}

func New(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

func (c *Calculator) Rates() Rates {
	return c.rates
}

// Compute converts with the calculator's rates.
func (c *Calculator) Compute(in Input) (Output, error) {
	return Compute(in, c.rates)
}

// Compute derives the two missing values from the first present one. With no
// input at all every output is nil.
func Compute(in Input, r Rates) (Output, error) {
	const op = "service.fallback.Compute"

	if err := r.validate(); err != nil {
		return Output{}, fmt.Errorf("%s: %w", op, err)
	}

	days := float64(r.WorkedDays)
	var tjm, gross, net float64

	switch {
	case present(in.DailyRate):
		tjm = *in.DailyRate
		gross = r.FixedAllowance + tjm*days*r.kept()
		net = gross * r.netShare()
	case present(in.Gross):
		gross = *in.Gross
		tjm = (gross - r.FixedAllowance) / (days * r.kept())
		net = gross * r.netShare()
	case present(in.Net):
		net = *in.Net
		gross = net / r.netShare()
		tjm = (gross - r.FixedAllowance) / (days * r.kept())
	default:
		return Output{}, nil
	}

	return Output{
		DailyRate: nonZero(tjm),
		Gross:     nonZero(gross),
		Net:       nonZero(net),
	}, nil
}

// Convert builds a full conversion result from a normalized request. The
// request's worked days and operating fee rate take precedence over the rates.
func (c *Calculator) Convert(req storage.ConversionRequest) (storage.ConversionResult, error) {
	const op = "service.fallback.Calculator.Convert"

	r := c.rates
	if req.WorkedDays > 0 {
		r.WorkedDays = req.WorkedDays
	}
	if req.OperatingFeeRate != nil {
		r.FixedFeeRate = *req.OperatingFeeRate
	}

	out, err := Compute(Input{DailyRate: storage.Float(req.DailyRate)}, r)
	if err != nil {
		return storage.ConversionResult{}, fmt.Errorf("%s: %w", op, err)
	}

	res := storage.ConversionResult{
		DailyRate:    req.DailyRate,
		GrossMonthly: out.Gross,
		NetMonthly:   out.Net,
		Source:       storage.SourceFallback,
	}
	if out.Gross != nil {
		res.ManagementFee = rounded(req.DailyRate * float64(r.WorkedDays) * r.FixedFeeRate)
	}
	if req.MealVoucherEnabled {
		res.Details.MealVoucherContribution = constants.MealVoucherAmount
	}

	return res, nil
}

func present(v *float64) bool {
	return v != nil && *v != 0
}

// nonZero: a value that comes out exactly 0 is reported as absent.
func nonZero(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return rounded(v)
}

func rounded(v float64) *float64 {
	return storage.Float(roundHalfUp(v, 2))
}

func roundHalfUp(v float64, digits int) float64 {
	scale := math.Pow10(digits)
	x := v * scale
	if x >= 0 {
		return math.Floor(x+0.5) / scale
	}
	return math.Ceil(x-0.5) / scale
}
