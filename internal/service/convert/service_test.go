package convert

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"portalia/internal/constants"
	"portalia/internal/engine"
	"portalia/internal/engine/enginetest"
	"portalia/internal/storage"
	"portalia/internal/workbook"
)

type MockJournal struct {
	mock.Mock
}

func (m *MockJournal) SaveConversion(ctx context.Context, c storage.Conversion) (int64, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(int64), args.Error(1)
}

// templateBook эмулирует книгу PORTALIA: макрос UpdateTemplate3 пересчитывает Template 3.
func templateBook() *enginetest.Workbook {
	wb := enginetest.NewWorkbook(calcSheet, resultSheet, "Communes").
		Put("Communes", "A1", "75056").
		Put("Communes", "A2", "69123")
	wb.MacroNames = []string{"Auto_Open", "UpdateTemplate3"}
	wb.MacroImpl["UpdateTemplate3"] = func(w *enginetest.Workbook) error {
		tjm, _ := w.Value(calcSheet, "J4")
		days, _ := w.Value(calcSheet, "J5")
		meal, _ := w.Value(calcSheet, "J21")

		turnover := tjm.(float64) * float64(days.(int))
		gross := turnover * 0.8
		w.Put(resultSheet, "C10", gross).
			Put(resultSheet, "C12", gross*0.75).
			Put(resultSheet, "C14", turnover*0.08).
			Put(resultSheet, "C16", meal)
		return nil
	}
	return wb
}

type fixture struct {
	eng     *enginetest.Engine
	workDir string
	svc     *Service
}

func newFixture(t *testing.T, build func() *enginetest.Workbook, opts Options) *fixture {
	t.Helper()

	tpl := filepath.Join(t.TempDir(), "PORTALIA MC2 CONSULTANTS 2024 V03-24.xlsm")
	require.NoError(t, os.WriteFile(tpl, []byte("xlsm"), 0o644))

	f := &fixture{eng: &enginetest.Engine{Build: build}, workDir: t.TempDir()}
	sessions := workbook.NewManager(slog.Default(), f.eng, tpl, f.workDir, nil)
	f.svc = NewService(slog.Default(), sessions, opts)
	return f
}

func (f *fixture) assertTornDown(t *testing.T) {
	t.Helper()
	assert.Equal(t, 1, f.eng.Quits())
	if wb := f.eng.Last(); wb != nil {
		assert.Equal(t, 1, wb.Closes)
	}
	entries, err := os.ReadDir(f.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConvert_Template(t *testing.T) {
	f := newFixture(t, templateBook, Options{})

	req, err := Normalize(Params{
		DailyRate:    "500",
		WorkedDays:   "18",
		ContractType: "CDI",
		MealVoucher:  "true",
		Insurance:    "false",
	})
	require.NoError(t, err)

	res, err := f.svc.Convert(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 500.0, res.DailyRate)
	require.NotNil(t, res.GrossMonthly)
	assert.InDelta(t, 7200, *res.GrossMonthly, 0.001)
	require.NotNil(t, res.NetMonthly)
	assert.InDelta(t, 5400, *res.NetMonthly, 0.001)
	require.NotNil(t, res.ManagementFee)
	assert.InDelta(t, 720, *res.ManagementFee, 0.001)
	assert.Equal(t, 198.0, res.Details.MealVoucherContribution)
	assert.Equal(t, 0.0, res.Details.InsuranceContribution)
	assert.Equal(t, storage.SourceExcel, res.Source)
	assert.Empty(t, res.Warnings)

	wb := f.eng.Last()
	assert.Equal(t, []string{"UpdateTemplate3"}, wb.MacroCalls)
	assert.Zero(t, wb.Recalcs, "после макроса формулы не пересчитываются повторно")
	assert.Equal(t, 1, wb.Saves)
	f.assertTornDown(t)
}

func TestConvert_UnknownCommune(t *testing.T) {
	f := newFixture(t, templateBook, Options{})

	code := "99999"
	_, err := f.svc.Convert(context.Background(), storage.ConversionRequest{
		DailyRate:   500,
		WorkedDays:  18,
		CommuneCode: &code,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCommuneCode)
	assert.Equal(t, 400, Status(err))

	wb := f.eng.Last()
	assert.NotContains(t, wb.Writes, calcSheet+"!"+constants.CellCommuneCode)
	assert.Empty(t, wb.MacroCalls, "расчёт не запускается")
	f.assertTornDown(t)
}

func TestConvert_InvalidRequest(t *testing.T) {
	f := newFixture(t, templateBook, Options{})

	_, err := f.svc.Convert(context.Background(), storage.ConversionRequest{WorkedDays: 20})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, f.eng.Instances, "сессия не открывается")
}

func TestConvert_ProjectionFailureTearsDown(t *testing.T) {
	f := newFixture(t, func() *enginetest.Workbook {
		wb := templateBook()
		wb.SetErrs[calcSheet+"!J5"] = errors.New("protected cell")
		return wb
	}, Options{})

	_, err := f.svc.Convert(context.Background(), storage.ConversionRequest{DailyRate: 500, WorkedDays: 18})
	assert.ErrorIs(t, err, ErrProjection)
	assert.Equal(t, "ProjectionFailure", Code(err))

	assert.Empty(t, f.eng.Last().MacroCalls)
	f.assertTornDown(t)
}

func TestConvert_NoMacroUsesAutoRecalculation(t *testing.T) {
	f := newFixture(t, func() *enginetest.Workbook {
		wb := enginetest.NewWorkbook(calcSheet, resultSheet).
			Put(resultSheet, "C10", 6000.0).
			Put(calcSheet, "E26", 4500.0)
		wb.MacrosErr = engine.ErrMacrosUnreadable
		return wb
	}, Options{})

	res, err := f.svc.Convert(context.Background(), storage.ConversionRequest{DailyRate: 500, WorkedDays: 18})
	require.NoError(t, err)

	assert.Equal(t, 6000.0, *res.GrossMonthly)
	assert.Equal(t, 4500.0, *res.NetMonthly)
	assert.Nil(t, res.ManagementFee)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "macro")
	assert.Equal(t, constants.CommonMacros, f.eng.Last().MacroCalls)
	assert.Equal(t, 1, f.eng.Last().Recalcs)
	f.assertTornDown(t)
}

func TestConvert_DefaultSheetsWarn(t *testing.T) {
	f := newFixture(t, func() *enginetest.Workbook {
		return enginetest.NewWorkbook("Feuil1").Put("Feuil1", "E23", 5000.0)
	}, Options{})

	res, err := f.svc.Convert(context.Background(), storage.ConversionRequest{DailyRate: 400, WorkedDays: 20})
	require.NoError(t, err)

	assert.Equal(t, 5000.0, *res.GrossMonthly)
	assert.Len(t, res.Warnings, 3)
	assert.Contains(t, f.eng.Last().Writes, "Feuil1!J4")
}

func TestConvert_TemplateMissing(t *testing.T) {
	eng := &enginetest.Engine{}
	sessions := workbook.NewManager(slog.Default(), eng, filepath.Join(t.TempDir(), "absent.xlsm"), t.TempDir(), nil)
	svc := NewService(slog.Default(), sessions, Options{})

	_, err := svc.Convert(context.Background(), storage.ConversionRequest{DailyRate: 500, WorkedDays: 18})
	assert.ErrorIs(t, err, workbook.ErrTemplateMissing)
	assert.Equal(t, "TemplateMissing", Code(err))
	assert.Equal(t, 500, Status(err))
}

func TestConvert_EngineBusy(t *testing.T) {
	f := newFixture(t, templateBook, Options{MaxSessions: 1, AcquireTimeout: 10 * time.Millisecond})

	// занимаем единственный слот
	require.NoError(t, f.svc.sem.Acquire(context.Background(), 1))
	defer f.svc.sem.Release(1)

	_, err := f.svc.Convert(context.Background(), storage.ConversionRequest{DailyRate: 500, WorkedDays: 18})
	assert.ErrorIs(t, err, ErrEngineBusy)
	assert.Equal(t, "EngineBusy", Code(err))
	assert.Equal(t, 503, Status(err))
	assert.Empty(t, f.eng.Instances)
}

func TestConvert_ReleasesSlot(t *testing.T) {
	f := newFixture(t, templateBook, Options{MaxSessions: 1})

	for i := 0; i < 3; i++ {
		_, err := f.svc.Convert(context.Background(), storage.ConversionRequest{DailyRate: 500, WorkedDays: 18})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.eng.Quits())
}

func TestConvert_Journal(t *testing.T) {
	journal := new(MockJournal)
	journal.On("SaveConversion", mock.Anything, mock.MatchedBy(func(c storage.Conversion) bool {
		return c.Request.DailyRate == 500 && c.Result.GrossMonthly != nil && !c.CreatedAt.IsZero()
	})).Return(int64(7), nil).Once()

	f := newFixture(t, templateBook, Options{Journal: journal})

	_, err := f.svc.Convert(context.Background(), storage.ConversionRequest{DailyRate: 500, WorkedDays: 18})
	require.NoError(t, err)
	journal.AssertExpectations(t)
}

func TestConvert_JournalErrorIgnored(t *testing.T) {
	journal := new(MockJournal)
	journal.On("SaveConversion", mock.Anything, mock.Anything).Return(int64(0), errors.New("db is down"))

	f := newFixture(t, templateBook, Options{Journal: journal})

	res, err := f.svc.Convert(context.Background(), storage.ConversionRequest{DailyRate: 500, WorkedDays: 18})
	require.NoError(t, err)
	assert.NotNil(t, res.GrossMonthly)
	journal.AssertExpectations(t)
}

func TestInspect(t *testing.T) {
	f := newFixture(t, templateBook, Options{})

	ins, err := f.svc.Inspect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{calcSheet, resultSheet, "Communes"}, ins.Sheets)
	assert.Equal(t, canonical, ins.Resolution)
	assert.Equal(t, []string{"Auto_Open", "UpdateTemplate3"}, ins.Macros)
	assert.Equal(t, 2, ins.Communes)
	assert.Empty(t, ins.MacrosError)
	assert.Empty(t, ins.CommuneError)
	assert.Empty(t, f.eng.Last().MacroCalls)
	f.assertTornDown(t)
}
