// Package jobs extracts structured job postings from careers page text with a
// language model.
package jobs

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/spigell/coldmail/internal/ai"
	"github.com/spigell/coldmail/internal/logger"
	"github.com/spigell/coldmail/internal/model"
)

const (
	defaultTimeout       = 60 * time.Second
	defaultMaxInputRunes = 24000
	defaultMaxLogLength  = 200
)

//go:embed prompt.md
var promptRaw string

//go:embed schema.json
var schemaRaw string

var (
	promptTemplate = template.Must(template.New("extract_jobs").Parse(promptRaw))
	responseSchema = mustSchema(schemaRaw)
)

func mustSchema(raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("jobs: invalid response schema: %v", err))
	}
	return schema
}

// Extractor turns page text into job postings. It makes exactly one model
// call per Extract and never retries.
type Extractor struct {
	generator     ai.Generator
	logger        *zap.Logger
	timeout       time.Duration
	maxInputRunes int
	maxLogLen     int
}

type Option func(*Extractor)

// WithTimeout bounds the model call.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxInputRunes truncates longer page text before it is sent.
func WithMaxInputRunes(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxInputRunes = n
		}
	}
}

// WithMaxLogLength limits prompt and response previews in debug logs.
func WithMaxLogLength(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxLogLen = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

func NewExtractor(generator ai.Generator, opts ...Option) *Extractor {
	e := &Extractor{
		generator:     generator,
		timeout:       defaultTimeout,
		maxInputRunes: defaultMaxInputRunes,
		maxLogLen:     defaultMaxLogLength,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logger.OrNop(e.logger)
	return e
}

// Extract returns the postings found in text. Blank text yields an empty
// slice without calling the model. A response that cannot be parsed is an
// *model.ExtractionError.
func (e *Extractor) Extract(ctx context.Context, text string) ([]model.JobPosting, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		e.logger.Debug("no page text to extract jobs from")
		return []model.JobPosting{}, nil
	}

	if e.generator == nil {
		return nil, &model.ExtractionError{Reason: "no language model configured"}
	}

	if runes := utf8.RuneCountInString(text); runes > e.maxInputRunes {
		e.logger.Warn("page text truncated before extraction",
			zap.Int("runes", runes),
			zap.Int("limit", e.maxInputRunes),
		)
		text = string([]rune(text)[:e.maxInputRunes])
	}

	prompt, err := buildPrompt(text)
	if err != nil {
		return nil, &model.ExtractionError{Reason: "render prompt", Cause: err}
	}

	e.logger.Debug("extract jobs request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, e.maxLogLen)),
	)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.generator.Generate(callCtx, prompt, ai.FormatJSON)
	if err != nil {
		return nil, &model.ExtractionError{
			Reason: "model call failed",
			Cause:  model.AsTimeout(err, "extract jobs", e.timeout),
		}
	}

	e.logger.Debug("extract jobs response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, e.maxLogLen)),
	)

	postings, err := ParseResponse(raw)
	if err != nil {
		var extractionErr *model.ExtractionError
		if errors.As(err, &extractionErr) {
			extractionErr.Raw = logger.TruncateForLog(raw, e.maxLogLen)
		}
		return nil, err
	}

	e.logger.Info("jobs extracted", zap.Int("count", len(postings)))

	return postings, nil
}

func buildPrompt(pageText string) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, struct{ PageText string }{PageText: pageText}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ParseResponse validates a model answer against the job schema and converts
// it into postings. It accepts a JSON array of jobs, a single job object or a
// {"jobs": [...]} envelope, optionally wrapped in markdown fences or prose.
func ParseResponse(raw string) ([]model.JobPosting, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, &model.ExtractionError{Reason: "empty model response"}
	}

	result, err := responseSchema.Validate(gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return nil, &model.ExtractionError{Reason: "response is not valid JSON", Cause: err}
	}
	if !result.Valid() {
		return nil, &model.ExtractionError{Reason: "response does not match the job schema", Cause: schemaError(result.Errors())}
	}

	var decoded any
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil, &model.ExtractionError{Reason: "response is not valid JSON", Cause: err}
	}

	var items []any
	switch v := decoded.(type) {
	case []any:
		items = v
	case map[string]any:
		if list, ok := v["jobs"].([]any); ok {
			items = list
		} else {
			items = []any{v}
		}
	}

	postings := make([]model.JobPosting, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			return nil, &model.ExtractionError{Reason: fmt.Sprintf("unexpected job item of type %T", item)}
		}
		posting := toPosting(fields)
		if posting.Role == "" {
			continue
		}
		postings = append(postings, posting)
	}

	return postings, nil
}

func toPosting(fields map[string]any) model.JobPosting {
	experience := coerceString(fields["experience"])
	if experience == "" {
		experience = model.ExperienceUnknown
	}

	return model.JobPosting{
		Role:        coerceString(fields["role"]),
		Experience:  experience,
		Skills:      coerceSkills(fields["skills"]),
		Description: coerceString(fields["description"]),
	}
}

func schemaError(errs []gojsonschema.ResultError) error {
	messages := make([]string, 0, len(errs))
	for _, desc := range errs {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		messages = append(messages, fmt.Sprintf("%s: %s", field, desc.Description()))
	}
	return errors.New(strings.Join(messages, "; "))
}
