package convert

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portalia/internal/engine/enginetest"
	"portalia/internal/storage"
)

const (
	calcSheet   = "1. Calcul Avec prov"
	resultSheet = "Template 3"
)

var canonical = SheetResolution{
	Calculation: SheetMatch{Name: calcSheet, Tier: TierFound},
	Result:      SheetMatch{Name: resultSheet, Tier: TierFound},
}

func projectorBook() *enginetest.Workbook {
	return enginetest.NewWorkbook(calcSheet, resultSheet).
		Put("Communes", "A1", "75056").
		Put("Communes", "A2", "69123")
}

func value(t *testing.T, wb *enginetest.Workbook, cell string) interface{} {
	t.Helper()
	v, ok := wb.Value(calcSheet, cell)
	require.True(t, ok, "ячейка %s не записана", cell)
	return v
}

func TestApply_CDI(t *testing.T) {
	wb := projectorBook()
	req := storage.ConversionRequest{
		DailyRate:          500,
		WorkedDays:         18,
		ContractType:       storage.ContractCDI,
		OperatingFeeRate:   storage.Float(0.05),
		MealVoucherEnabled: true,
	}

	require.NoError(t, NewProjector(slog.Default(), NewCommuneValidator("")).Apply(wb, canonical, req))

	assert.Equal(t, 500.0, value(t, wb, "J4"))
	assert.Equal(t, 18, value(t, wb, "J5"))
	assert.Equal(t, 0.02, value(t, wb, "J8"))
	assert.Equal(t, "A négocier", value(t, wb, "J9"))
	assert.Equal(t, 0.0, value(t, wb, "J10"))
	assert.Equal(t, 0.05, value(t, wb, "J12"))
	assert.Equal(t, 198.0, value(t, wb, "J21"))
	assert.Equal(t, "Non", value(t, wb, "J17"))

	_, written := wb.Value(calcSheet, "J25")
	assert.False(t, written)
}

func TestApply_CDD(t *testing.T) {
	wb := projectorBook()
	req := storage.ConversionRequest{DailyRate: 450, WorkedDays: 20, ContractType: storage.ContractCDD, InsuranceEnabled: true}

	require.NoError(t, NewProjector(slog.Default(), NewCommuneValidator("")).Apply(wb, canonical, req))

	assert.Equal(t, 0.0, value(t, wb, "J8"))
	assert.Equal(t, 0, value(t, wb, "J9"))
	assert.Equal(t, 0.10, value(t, wb, "J10"))
	assert.Equal(t, 0, value(t, wb, "J21"))
	assert.Equal(t, "Oui", value(t, wb, "J17"))

	_, written := wb.Value(calcSheet, "J12")
	assert.False(t, written, "ставка не передана: ячейка не трогается")
}

func TestApply_NoContract(t *testing.T) {
	wb := projectorBook()
	req := storage.ConversionRequest{DailyRate: 450, WorkedDays: 20}

	require.NoError(t, NewProjector(slog.Default(), NewCommuneValidator("")).Apply(wb, canonical, req))

	for _, cell := range []string{"J8", "J9", "J10"} {
		_, written := wb.Value(calcSheet, cell)
		assert.False(t, written, cell)
	}
}

func TestApply_UnknownContract(t *testing.T) {
	wb := projectorBook()
	req := storage.ConversionRequest{DailyRate: 450, WorkedDays: 20, ContractType: "FREELANCE"}

	require.NoError(t, NewProjector(slog.Default(), NewCommuneValidator("")).Apply(wb, canonical, req))

	for _, cell := range []string{"J8", "J9", "J10"} {
		_, written := wb.Value(calcSheet, cell)
		assert.False(t, written, cell)
	}
	assert.Equal(t, 450.0, value(t, wb, "J4"))
}

func TestApply_NegotiatedOverride(t *testing.T) {
	wb := projectorBook()
	override := "650"
	req := storage.ConversionRequest{DailyRate: 500, WorkedDays: 18, ContractType: storage.ContractCDI, NegotiatedOverride: &override}

	require.NoError(t, NewProjector(slog.Default(), NewCommuneValidator("")).Apply(wb, canonical, req))
	assert.Equal(t, "650", value(t, wb, "J9"))
}

func TestApply_CommuneCode(t *testing.T) {
	wb := projectorBook()
	code := " 69123 "
	req := storage.ConversionRequest{DailyRate: 500, WorkedDays: 18, CommuneCode: &code}

	require.NoError(t, NewProjector(slog.Default(), NewCommuneValidator("")).Apply(wb, canonical, req))
	assert.Equal(t, "69123", value(t, wb, "J25"))
}

func TestApply_UnknownCommuneNotWritten(t *testing.T) {
	wb := projectorBook()
	code := "99999"
	req := storage.ConversionRequest{DailyRate: 500, WorkedDays: 18, CommuneCode: &code}

	err := NewProjector(slog.Default(), NewCommuneValidator("")).Apply(wb, canonical, req)
	assert.ErrorIs(t, err, ErrUnknownCommuneCode)
	assert.Equal(t, "UnknownCommuneCode", Code(err))
	assert.NotContains(t, wb.Writes, calcSheet+"!J25")
}

func TestApply_CollectsWriteErrors(t *testing.T) {
	wb := projectorBook()
	wb.SetErrs[calcSheet+"!J5"] = errors.New("cell is locked")
	wb.SetErrs[calcSheet+"!J17"] = errors.New("cell is locked")
	req := storage.ConversionRequest{DailyRate: 500, WorkedDays: 18, ContractType: storage.ContractCDI}

	err := NewProjector(slog.Default(), NewCommuneValidator("")).Apply(wb, canonical, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProjection)
	assert.Contains(t, err.Error(), "J5")
	assert.Contains(t, err.Error(), "J17")

	// остальные записи выполнены
	assert.Contains(t, wb.Writes, calcSheet+"!J4")
	assert.Contains(t, wb.Writes, calcSheet+"!J8")
	assert.Contains(t, wb.Writes, calcSheet+"!J21")
}
