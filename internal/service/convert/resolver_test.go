package convert

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portalia/internal/constants"
	"portalia/internal/engine"
	"portalia/internal/engine/enginetest"
)

func TestResolveSheets_Canonical(t *testing.T) {
	wb := enginetest.NewWorkbook("Paramètres", "1. Calcul Avec prov", "Template 3", "Communes")

	res, err := NewResolver(slog.Default()).ResolveSheets(wb)
	require.NoError(t, err)

	assert.Equal(t, SheetMatch{Name: "1. Calcul Avec prov", Tier: TierFound}, res.Calculation)
	assert.Equal(t, SheetMatch{Name: "Template 3", Tier: TierFound}, res.Result)
}

func TestResolveSheets_Fuzzy(t *testing.T) {
	wb := enginetest.NewWorkbook("Notes", "2. CALCUL avec PROVISIONS 2025", "Template résultats")

	res, err := NewResolver(slog.Default()).ResolveSheets(wb)
	require.NoError(t, err)

	assert.Equal(t, SheetMatch{Name: "2. CALCUL avec PROVISIONS 2025", Tier: TierFuzzy}, res.Calculation)
	assert.Equal(t, SheetMatch{Name: "Template résultats", Tier: TierFuzzy}, res.Result)
}

func TestResolveSheets_FuzzyNeedsBothTokens(t *testing.T) {
	// "Calcul sans" не содержит "prov": лист по умолчанию
	wb := enginetest.NewWorkbook("Couverture", "Calcul sans")

	res, err := NewResolver(slog.Default()).ResolveSheets(wb)
	require.NoError(t, err)
	assert.Equal(t, SheetMatch{Name: "Couverture", Tier: TierDefault}, res.Calculation)
}

func TestResolveSheets_NoMatch(t *testing.T) {
	wb := enginetest.NewWorkbook("Feuil1", "Feuil2")

	res, err := NewResolver(slog.Default()).ResolveSheets(wb)
	require.NoError(t, err)

	assert.Equal(t, SheetMatch{Name: "Feuil1", Tier: TierDefault}, res.Calculation)
	assert.Equal(t, SheetMatch{Name: "Feuil1", Tier: TierDefault}, res.Result)
}

func TestResolveSheets_Empty(t *testing.T) {
	_, err := NewResolver(slog.Default()).ResolveSheets(enginetest.NewWorkbook())
	assert.Error(t, err)
	assert.Equal(t, "OpenFailure", Code(err))
}

func ok(*enginetest.Workbook) error { return nil }

func TestRunMacro_Enumerated(t *testing.T) {
	wb := enginetest.NewWorkbook("Sheet1")
	wb.MacroNames = []string{"Auto_Open", "UpdateTemplate3"}
	wb.MacroImpl["UpdateTemplate3"] = ok

	run, err := NewResolver(slog.Default()).RunMacro(wb)
	require.NoError(t, err)

	assert.Equal(t, MacroRun{Name: "UpdateTemplate3", Source: MacroEnumerated}, run)
	assert.Equal(t, []string{"UpdateTemplate3"}, wb.MacroCalls)
}

func TestRunMacro_EnumerationFailsThenProbes(t *testing.T) {
	wb := enginetest.NewWorkbook("Sheet1")
	wb.MacrosErr = engine.ErrMacrosUnreadable
	wb.MacroImpl["Calculate"] = ok

	run, err := NewResolver(slog.Default()).RunMacro(wb)
	require.NoError(t, err)

	assert.Equal(t, MacroRun{Name: "Calculate", Source: MacroProbed}, run)
	assert.Equal(t, []string{"UpdateTemplate", "UpdateTemplate3", "Calculate"}, wb.MacroCalls)
}

func TestRunMacro_EnumeratedFailsThenProbes(t *testing.T) {
	wb := enginetest.NewWorkbook("Sheet1")
	wb.MacroNames = []string{"UpdateTemplate3"}
	wb.MacroImpl["UpdateTemplate3"] = func(*enginetest.Workbook) error { return errors.New("runtime error 1004") }
	wb.MacroImpl["Update"] = ok

	run, err := NewResolver(slog.Default()).RunMacro(wb)
	require.NoError(t, err)

	assert.Equal(t, MacroRun{Name: "Update", Source: MacroProbed}, run)
	// UpdateTemplate3 не запускается повторно
	assert.Equal(t, []string{"UpdateTemplate3", "UpdateTemplate", "Calculate", "Update"}, wb.MacroCalls)
}

func TestRunMacro_Unavailable(t *testing.T) {
	wb := enginetest.NewWorkbook("Sheet1")
	wb.MacrosErr = engine.ErrMacrosUnreadable

	_, err := NewResolver(slog.Default()).RunMacro(wb)
	assert.ErrorIs(t, err, ErrMacroUnavailable)
	assert.ErrorIs(t, err, engine.ErrMacroNotFound)
	assert.Equal(t, constants.CommonMacros, wb.MacroCalls)
}

func TestTier_MarshalText(t *testing.T) {
	b, err := TierFuzzy.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "fuzzy", string(b))
}
