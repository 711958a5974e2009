package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

type Storage struct {
	db *sql.DB
}

// New opens the conversion journal. parseTime is forced on so created_at scans into time.Time.
func New(dsn string) (*Storage, error) {
	const op = "storage.mysql.New"

	if dsn == "" {
		return nil, fmt.Errorf("%s: empty dsn", op)
	}

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Storage{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS conversions (
	id            BIGINT AUTO_INCREMENT PRIMARY KEY,
	tjm           DOUBLE NOT NULL,
	jours         INT NOT NULL,
	contract_type VARCHAR(32) NOT NULL DEFAULT '',
	source        VARCHAR(16) NOT NULL,
	brut_mensuel  DOUBLE NULL,
	net_mensuel   DOUBLE NULL,
	request       JSON NOT NULL,
	result        JSON NOT NULL,
	created_at    DATETIME(3) NOT NULL,
	KEY idx_conversions_created_at (created_at)
)`

// Init checks the connection and creates the journal table.
func (s *Storage) Init(ctx context.Context) error {
	const op = "storage.mysql.Init"

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: ping: %w", op, err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%s: create table: %w", op, err)
	}
	return nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// нет таблицы: скорее всего не вызван Init
func describe(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1146 {
		return fmt.Errorf("conversions table is missing: %w", err)
	}
	return err
}
