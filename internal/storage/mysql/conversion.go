package mysql

import (
	"context"
	"encoding/json"
	"fmt"

	"portalia/internal/storage"
)

func (s *Storage) SaveConversion(ctx context.Context, c storage.Conversion) (int64, error) {
	const op = "storage.mysql.SaveConversion"

	request, err := json.Marshal(c.Request)
	if err != nil {
		return 0, fmt.Errorf("%s: marshal request: %w", op, err)
	}
	result, err := json.Marshal(c.Result)
	if err != nil {
		return 0, fmt.Errorf("%s: marshal result: %w", op, err)
	}

	stmt := `INSERT INTO conversions (tjm, jours, contract_type, source, brut_mensuel, net_mensuel, request, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	exec, err := s.db.ExecContext(ctx, stmt,
		c.Request.DailyRate, c.Request.WorkedDays, contractColumn(c.Request.ContractType), c.Result.Source,
		c.Result.GrossMonthly, c.Result.NetMonthly, request, result, c.CreatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, describe(err))
	}

	return exec.LastInsertId()
}

// contractColumn обрезает тип договора до ширины колонки, полное значение остаётся в request.
func contractColumn(c storage.ContractType) string {
	r := []rune(string(c))
	if len(r) > 32 {
		r = r[:32]
	}
	return string(r)
}

// GetConversions returns the latest conversions, newest first.
func (s *Storage) GetConversions(ctx context.Context, limit int) ([]storage.Conversion, error) {
	const op = "storage.mysql.GetConversions"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request, result, created_at FROM conversions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, describe(err))
	}
	defer rows.Close()

	conversions := []storage.Conversion{}
	for rows.Next() {
		var (
			c               storage.Conversion
			request, result []byte
		)
		if err := rows.Scan(&c.ID, &request, &result, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		if err := json.Unmarshal(request, &c.Request); err != nil {
			return nil, fmt.Errorf("%s: request of conversion %d: %w", op, c.ID, err)
		}
		if err := json.Unmarshal(result, &c.Result); err != nil {
			return nil, fmt.Errorf("%s: result of conversion %d: %w", op, c.ID, err)
		}
		conversions = append(conversions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return conversions, nil
}
