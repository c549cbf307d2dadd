package portfolio

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var errYAMLShape = errors.New("yaml catalog must be a list or a map with a projects list")

// FileSource reads a CSV or YAML catalog from disk.
type FileSource struct {
	Path   string
	Format fileFormat
}

func (s *FileSource) Location() string { return s.Path }

func (s *FileSource) Read(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	return parse(s.Format, data)
}

// parseCSV expects a header row naming a skills column (Techstack, Skills)
// and a link column (Links, Link, URL).
func parseCSV(data []byte) ([]Entry, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv catalog is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	skillsCol, linkCol := -1, -1
	for i, name := range header {
		switch columnAliases[strings.ToLower(strings.TrimSpace(name))] {
		case "skills":
			if skillsCol == -1 {
				skillsCol = i
			}
		case "link":
			if linkCol == -1 {
				linkCol = i
			}
		}
	}
	if skillsCol == -1 || linkCol == -1 {
		return nil, fmt.Errorf("csv header %q must contain a skills and a link column", header)
	}

	var rows []map[string]any
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		rows = append(rows, map[string]any{
			"skills": record[skillsCol],
			"link":   record[linkCol],
		})
	}

	return decodeEntries(rows)
}

// parseYAML accepts either a top-level list or a map with a "projects" list.
func parseYAML(data []byte) ([]Entry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("yaml catalog is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml catalog: %w", err)
	}

	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		projects, ok := v["projects"].([]any)
		if !ok {
			return nil, errYAMLShape
		}
		items = projects
	default:
		return nil, errYAMLShape
	}

	rows := make([]map[string]any, 0, len(items))
	for i, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("yaml catalog entry %d is not a map", i+1)
		}
		rows = append(rows, row)
	}

	return decodeEntries(rows)
}
