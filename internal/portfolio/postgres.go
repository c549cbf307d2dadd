package portfolio

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PostgresSource reads entries from a table whose skills column is either
// text or text[]. Rows are read in id order, which is the catalog order.
type PostgresSource struct {
	DSN   string
	Table string
}

func (s *PostgresSource) Location() string {
	cfg, err := pgx.ParseConfig(s.DSN)
	if err != nil {
		return "postgres"
	}
	// never log credentials
	return fmt.Sprintf("postgres://%s:%d/%s?table=%s", cfg.Host, cfg.Port, cfg.Database, s.Table)
}

func (s *PostgresSource) Read(ctx context.Context) ([]Entry, error) {
	conn, err := pgx.Connect(ctx, s.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	table := pgx.Identifier{s.Table}.Sanitize()
	rows, err := conn.Query(ctx, fmt.Sprintf("SELECT skills, link FROM %s ORDER BY id", table))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.Table, err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (map[string]any, error) {
		values, err := row.Values()
		if err != nil {
			return nil, err
		}
		return map[string]any{"skills": values[0], "link": values[1]}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s rows: %w", s.Table, err)
	}

	return decodeEntries(records)
}
