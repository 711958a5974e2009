package convert

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"portalia/internal/constants"
	"portalia/internal/engine"
	"portalia/internal/workbook"
)

// Tier tells how a sheet was chosen.
type Tier int

const (
	TierFound Tier = iota
	TierFuzzy
	TierDefault
)

func (t Tier) String() string {
	switch t {
	case TierFound:
		return "found"
	case TierFuzzy:
		return "fuzzy"
	case TierDefault:
		return "default"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

type SheetMatch struct {
	Name string `json:"name"`
	Tier Tier   `json:"tier"`
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

type SheetResolution struct {
	Calculation SheetMatch `json:"calculation"`
	Result      SheetMatch `json:"result"`
}

type MacroSource int

const (
	MacroEnumerated MacroSource = iota
	MacroProbed
)

func (s MacroSource) String() string {
	if s == MacroEnumerated {
		return "enumerated"
	}
	return "probed"
}

type MacroRun struct {
	Name   string
	Source MacroSource
}

type Resolver struct {
	log *slog.Logger

	calcNames    []string
	calcTokens   [][]string
	resultNames  []string
	resultTokens [][]string
	macroTokens  []string
	commonMacros []string
}

func NewResolver(log *slog.Logger) *Resolver {
	return &Resolver{
		log:          log,
		calcNames:    constants.CalculationSheets,
		calcTokens:   constants.CalculationTokens,
		resultNames:  constants.ResultSheets,
		resultTokens: constants.ResultTokens,
		macroTokens:  constants.MacroTokens,
		commonMacros: constants.CommonMacros,
	}
}

// ResolveSheets picks the calculation and result sheets. Only an empty workbook is an error.
func (r *Resolver) ResolveSheets(wb engine.Workbook) (SheetResolution, error) {
	const op = "service.convert.Resolver.ResolveSheets"

	sheets := wb.Sheets()
	if len(sheets) == 0 {
		return SheetResolution{}, fmt.Errorf("%s: %w: workbook has no sheets", op, workbook.ErrOpenFailure)
	}

	var res SheetResolution

	if name, tier, ok := matchSheet(sheets, r.calcNames, r.calcTokens); ok {
		res.Calculation = SheetMatch{Name: name, Tier: tier}
	} else {
		res.Calculation = SheetMatch{Name: sheets[0], Tier: TierDefault}
	}

	// в части ревизий результат считается на том же листе
	if name, tier, ok := matchSheet(sheets, r.resultNames, r.resultTokens); ok {
		res.Result = SheetMatch{Name: name, Tier: tier}
	} else {
		res.Result = SheetMatch{Name: res.Calculation.Name, Tier: TierDefault}
	}

	r.log.Info("resolved sheets",
		slog.String("op", op),
		slog.Any("available", sheets),
		slog.String("calculation", res.Calculation.Name),
		slog.String("calculation_tier", res.Calculation.Tier.String()),
		slog.String("result", res.Result.Name),
		slog.String("result_tier", res.Result.Tier.String()),
	)

	return res, nil
}

func matchSheet(sheets, names []string, tokens [][]string) (string, Tier, bool) {
	for _, name := range names {
		for _, s := range sheets {
			if s == name {
				return s, TierFound, true
			}
		}
	}

	if len(tokens) == 0 {
		return "", TierDefault, false
	}
	for _, s := range sheets {
		if containsGroups(strings.ToLower(s), tokens) {
			return s, TierFuzzy, true
		}
	}

	return "", TierDefault, false
}

// containsGroups: в имени есть хотя бы один токен из каждой группы.
func containsGroups(name string, groups [][]string) bool {
	for _, group := range groups {
		found := false
		for _, tok := range group {
			if strings.Contains(name, tok) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// RunMacro finds and runs the recalculation macro. ErrMacroUnavailable is not fatal.
func (r *Resolver) RunMacro(wb engine.Workbook) (MacroRun, error) {
	const op = "service.convert.Resolver.RunMacro"
	log := r.log.With(slog.String("op", op))

	tried := make(map[string]bool)

	names, err := wb.Macros()
	switch {
	case err != nil:
		log.Warn("could not enumerate macros, probing common names", slog.String("error", err.Error()))
	default:
		log.Info("available macros", slog.Any("macros", names))
		for _, name := range names {
			if !containsAll(strings.ToLower(name), r.macroTokens) {
				continue
			}
			tried[name] = true
			if err := wb.RunMacro(name); err != nil {
				log.Error("macro execution error", slog.String("macro", name), slog.String("error", err.Error()))
				break
			}
			log.Info("ran macro", slog.String("macro", name))
			return MacroRun{Name: name, Source: MacroEnumerated}, nil
		}
	}

	var errs []error
	for _, name := range r.commonMacros {
		if tried[name] {
			continue
		}
		if err := wb.RunMacro(name); err != nil {
			log.Debug("macro not runnable", slog.String("macro", name), slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		log.Info("ran macro", slog.String("macro", name))
		return MacroRun{Name: name, Source: MacroProbed}, nil
	}

	log.Warn("no macros found or runnable, relying on automatic recalculation")
	if len(errs) == 0 {
		return MacroRun{}, fmt.Errorf("%s: %w", op, ErrMacroUnavailable)
	}
	return MacroRun{}, fmt.Errorf("%s: %w: %w", op, ErrMacroUnavailable, errors.Join(errs...))
}

func containsAll(s string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(s, tok) {
			return false
		}
	}
	return true
}
