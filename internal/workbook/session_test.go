package workbook

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portalia/internal/engine/enginetest"
)

func writeTemplate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("template-bytes"), 0o644))
	return path
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "рабочая папка должна быть удалена")
}

func TestOpen_CopiesTemplate(t *testing.T) {
	tpl := writeTemplate(t)
	workDir := t.TempDir()
	eng := &enginetest.Engine{}
	m := NewManager(slog.Default(), eng, tpl, workDir, nil)

	s, err := m.Open(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, tpl, s.Path)
	assert.Equal(t, ".xlsx", filepath.Ext(s.Path))
	copied, err := os.ReadFile(s.Path)
	require.NoError(t, err)
	assert.Equal(t, "template-bytes", string(copied))
	assert.Equal(t, []string{s.Path}, eng.OpenPaths)
	assert.NotEmpty(t, s.ID)

	require.NoError(t, s.Close())
	assertEmptyDir(t, workDir)

	original, err := os.ReadFile(tpl)
	require.NoError(t, err)
	assert.Equal(t, "template-bytes", string(original))
}

func TestOpen_TemplateMissing(t *testing.T) {
	eng := &enginetest.Engine{}
	m := NewManager(slog.Default(), eng, filepath.Join(t.TempDir(), "absent.xlsm"), t.TempDir(), nil)

	_, err := m.Open(context.Background())
	assert.ErrorIs(t, err, ErrTemplateMissing)
	assert.Empty(t, eng.Instances, "движок не должен запускаться")
}

func TestOpen_EngineUnavailable(t *testing.T) {
	workDir := t.TempDir()
	eng := &enginetest.Engine{StartErr: errors.New("no office")}
	m := NewManager(slog.Default(), eng, writeTemplate(t), workDir, nil)

	_, err := m.Open(context.Background())
	assert.ErrorIs(t, err, ErrEngineUnavailable)
	assert.Contains(t, err.Error(), "no office")
	assertEmptyDir(t, workDir)
}

func TestOpen_RetriesWithAbsolutePath(t *testing.T) {
	eng := &enginetest.Engine{OpenErrs: []error{errors.New("path not found")}}
	m := NewManager(slog.Default(), eng, writeTemplate(t), t.TempDir(), nil)

	s, err := m.Open(context.Background())
	require.NoError(t, err)
	defer s.Close()

	require.Len(t, eng.OpenPaths, 2)
	assert.True(t, filepath.IsAbs(eng.OpenPaths[1]))
	assert.Equal(t, eng.OpenPaths[1], s.Path)
}

func TestOpen_OpenFailure(t *testing.T) {
	workDir := t.TempDir()
	eng := &enginetest.Engine{OpenErrs: []error{errors.New("corrupt"), errors.New("still corrupt")}}
	m := NewManager(slog.Default(), eng, writeTemplate(t), workDir, nil)

	_, err := m.Open(context.Background())
	assert.ErrorIs(t, err, ErrOpenFailure)
	assert.Equal(t, 1, eng.Quits())
	assertEmptyDir(t, workDir)
}

func TestClose_ExactlyOnce(t *testing.T) {
	workDir := t.TempDir()
	eng := &enginetest.Engine{}
	m := NewManager(slog.Default(), eng, writeTemplate(t), workDir, nil)

	s, err := m.Open(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	wb := eng.Last()
	assert.Equal(t, 1, wb.Saves)
	assert.Equal(t, 1, wb.Closes)
	assert.Equal(t, 1, eng.Quits())
	assertEmptyDir(t, workDir)
}

func TestClose_ContinuesAfterPanic(t *testing.T) {
	workDir := t.TempDir()
	eng := &enginetest.Engine{Build: func() *enginetest.Workbook {
		wb := enginetest.NewWorkbook("Sheet1")
		wb.SavePanic = true
		return wb
	}}
	m := NewManager(slog.Default(), eng, writeTemplate(t), workDir, nil)

	s, err := m.Open(context.Background())
	require.NoError(t, err)

	err = s.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save")

	// остальные шаги всё равно выполнены
	assert.Equal(t, 1, eng.Last().Closes)
	assert.Equal(t, 1, eng.Quits())
	assertEmptyDir(t, workDir)
}

func TestInfo(t *testing.T) {
	tpl := writeTemplate(t)
	m := NewManager(slog.Default(), &enginetest.Engine{}, tpl, "", []string{"*.xlsm"})

	info, err := m.Info(context.Background())
	require.NoError(t, err)

	assert.True(t, info.Exists)
	assert.Equal(t, int64(len("template-bytes")), info.Size)
	assert.Equal(t, tpl, info.AbsolutePath)
	assert.NotEmpty(t, info.WorkingDir)
	assert.NotNil(t, info.CandidateFiles)
}

func TestInfo_MissingTemplate(t *testing.T) {
	m := NewManager(slog.Default(), &enginetest.Engine{}, filepath.Join(t.TempDir(), "nope.xlsm"), "", nil)

	info, err := m.Info(context.Background())
	require.NoError(t, err)
	assert.False(t, info.Exists)
	assert.Zero(t, info.Size)
}
