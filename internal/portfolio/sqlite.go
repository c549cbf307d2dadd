package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// SQLiteSource reads entries from a table with skills and link text columns.
type SQLiteSource struct {
	Path  string
	Table string
}

func (s *SQLiteSource) Location() string { return "sqlite://" + s.Path }

func (s *SQLiteSource) Read(ctx context.Context) ([]Entry, error) {
	// sql.Open would silently create a missing database file
	if _, err := os.Stat(s.Path); err != nil {
		return nil, fmt.Errorf("open sqlite catalog: %w", err)
	}

	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	defer db.Close()

	query := fmt.Sprintf("SELECT skills, link FROM %s ORDER BY rowid", s.Table)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.Table, err)
	}
	defer rows.Close()

	var records []map[string]any
	for rows.Next() {
		var skills, link sql.NullString
		if err := rows.Scan(&skills, &link); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", s.Table, err)
		}
		records = append(records, map[string]any{
			"skills": skills.String,
			"link":   link.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", s.Table, err)
	}

	return decodeEntries(records)
}
