package mysql

import (
	"context"
	"fmt"
	"os"
	"testing"
)

var testStorage *Storage

func TestMain(m *testing.M) {
	// без MYSQL_TEST_DSN тесты журнала пропускаются
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn != "" {
		var err error
		testStorage, err = New(dsn)
		if err != nil {
			panic(fmt.Errorf("не удалось подключиться к тестовой БД: %w", err))
		}
		if err := testStorage.Init(context.Background()); err != nil {
			panic(fmt.Errorf("init failed: %w", err))
		}
	}

	code := m.Run()

	if testStorage != nil {
		testStorage.Close()
	}
	os.Exit(code)
}

func requireDB(t *testing.T) *Storage {
	t.Helper()
	if testStorage == nil {
		t.Skip("MYSQL_TEST_DSN is not set")
	}
	return testStorage
}
