package portfolio

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
)

const defaultTable = "portfolio"

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Source reads catalog entries from somewhere.
type Source interface {
	Read(ctx context.Context) ([]Entry, error)
	// Location identifies the source in logs and errors.
	Location() string
}

// SourceOptions tune sources that need more than a location.
type SourceOptions struct {
	// Table is the SQL table holding skills and link columns.
	Table string
	S3    S3Options
}

// OpenSource picks a Source implementation by the shape of location.
func OpenSource(location string, opts SourceOptions) (Source, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New("portfolio source is required")
	}

	table := strings.TrimSpace(opts.Table)
	if table == "" {
		table = defaultTable
	}
	if !tableNameRegex.MatchString(table) {
		return nil, fmt.Errorf("invalid portfolio table name %q", table)
	}

	if u, err := url.Parse(location); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		switch strings.ToLower(u.Scheme) {
		case "s3":
			if u.Host == "" || strings.Trim(u.Path, "/") == "" {
				return nil, fmt.Errorf("s3 location must look like s3://bucket/key, got %q", location)
			}
			key := strings.TrimPrefix(u.Path, "/")
			if _, err := formatOf(key); err != nil {
				return nil, err
			}
			return &S3Source{Bucket: u.Host, Key: key, Options: opts.S3}, nil
		case "sqlite":
			return &SQLiteSource{Path: strings.TrimPrefix(location, u.Scheme+"://"), Table: table}, nil
		case "postgres", "postgresql":
			return &PostgresSource{DSN: location, Table: table}, nil
		case "file":
			location = u.Path
		default:
			return nil, fmt.Errorf("unsupported portfolio source scheme %q", u.Scheme)
		}
	}

	switch strings.ToLower(filepath.Ext(location)) {
	case ".db", ".sqlite", ".sqlite3":
		return &SQLiteSource{Path: location, Table: table}, nil
	}

	format, err := formatOf(location)
	if err != nil {
		return nil, err
	}

	return &FileSource{Path: location, Format: format}, nil
}

// StaticSource serves entries held in memory.
type StaticSource []Entry

func (s StaticSource) Read(context.Context) ([]Entry, error) {
	out := make([]Entry, len(s))
	copy(out, s)
	return out, nil
}

func (s StaticSource) Location() string { return "static" }

// rawEntry is the loose shape of one catalog row before canonicalization.
type rawEntry struct {
	Skills []string `mapstructure:"skills"`
	Link   string   `mapstructure:"link"`
}

var columnAliases = map[string]string{
	"skills":     "skills",
	"skill":      "skills",
	"techstack":  "skills",
	"tech_stack": "skills",
	"tech stack": "skills",
	"stack":      "skills",
	"link":       "link",
	"links":      "link",
	"url":        "link",
	"project":    "link",
}

// decodeEntries turns loosely typed rows (CSV records, YAML maps, SQL rows)
// into entries. skills may be a list or a delimited string.
func decodeEntries(rows []map[string]any) ([]Entry, error) {
	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		normalized := make(map[string]any, len(row))
		for key, value := range row {
			if canonical, ok := columnAliases[strings.ToLower(strings.TrimSpace(key))]; ok {
				normalized[canonical] = value
			}
		}

		var raw rawEntry
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &raw,
		})
		if err != nil {
			return nil, fmt.Errorf("build decoder: %w", err)
		}
		if err := decoder.Decode(normalized); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		entries = append(entries, Entry{
			Skills: SplitSkills(raw.Skills...),
			Link:   strings.TrimSpace(raw.Link),
		})
	}
	return entries, nil
}

type fileFormat string

const (
	formatCSV  fileFormat = "csv"
	formatYAML fileFormat = "yaml"
)

func formatOf(name string) (fileFormat, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return formatCSV, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	default:
		return "", fmt.Errorf("unsupported portfolio format %q (expected .csv, .yaml or .yml)", name)
	}
}

func parse(format fileFormat, data []byte) ([]Entry, error) {
	switch format {
	case formatCSV:
		return parseCSV(data)
	case formatYAML:
		return parseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported portfolio format %q", format)
	}
}
