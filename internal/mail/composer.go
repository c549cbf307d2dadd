// Package mail drafts cold outreach emails for job postings.
package mail

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/coldmail/internal/ai"
	"github.com/spigell/coldmail/internal/logger"
	"github.com/spigell/coldmail/internal/model"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultMaxLogLength = 200
)

//go:embed prompt.md
var promptRaw string

var promptTemplate = template.Must(template.New("write_mail").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(promptRaw))

// Sender is the persona the email is written from.
type Sender struct {
	Name    string `mapstructure:"name" validate:"required"`
	Title   string `mapstructure:"title"`
	Company string `mapstructure:"company"`
	// Pitch is a short description of the sender or their company.
	Pitch string `mapstructure:"pitch"`
}

// Composer writes one email per call. Calls are independent, so a Composer
// may be shared between goroutines.
type Composer struct {
	generator ai.Generator
	sender    Sender
	logger    *zap.Logger
	timeout   time.Duration
	maxLogLen int
}

type Option func(*Composer)

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(c *Composer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithMaxLogLength(n int) Option {
	return func(c *Composer) {
		if n > 0 {
			c.maxLogLen = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Composer) {
		c.logger = l
	}
}

func NewComposer(generator ai.Generator, sender Sender, opts ...Option) *Composer {
	c := &Composer{
		generator: generator,
		sender:    sender,
		timeout:   defaultTimeout,
		maxLogLen: defaultMaxLogLength,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.OrNop(c.logger)
	return c
}

// WriteMail drafts an email for job citing links. Any failure, including an
// empty answer, is a *model.CompositionError.
func (c *Composer) WriteMail(ctx context.Context, job model.JobPosting, links []string) (string, error) {
	if c.generator == nil {
		return "", &model.CompositionError{Role: job.Role, Cause: errors.New("no language model configured")}
	}

	prompt, err := buildPrompt(job, links, c.sender)
	if err != nil {
		return "", &model.CompositionError{Role: job.Role, Cause: err}
	}

	log := c.logger.With(zap.String(logger.FieldRole, job.Role))
	log.Debug("write mail request",
		zap.Int("links", len(links)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, c.maxLogLen)),
	)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.generator.Generate(callCtx, prompt, ai.FormatText)
	if err != nil {
		return "", &model.CompositionError{
			Role:  job.Role,
			Cause: model.AsTimeout(err, "write mail", c.timeout),
		}
	}

	email := cleanEmail(raw)
	if email == "" {
		return "", &model.CompositionError{Role: job.Role, Cause: errors.New("model returned an empty email")}
	}

	log.Debug("write mail response",
		zap.Int("response_length", utf8.RuneCountInString(email)),
		zap.String("response_preview", logger.TruncateForLog(email, c.maxLogLen)),
	)

	return email, nil
}

func buildPrompt(job model.JobPosting, links []string, sender Sender) (string, error) {
	if strings.TrimSpace(sender.Name) == "" {
		return "", errors.New("sender name is required")
	}

	var buf bytes.Buffer
	err := promptTemplate.Execute(&buf, struct {
		Job    model.JobPosting
		Links  []string
		Sender Sender
	}{Job: job, Links: links, Sender: sender})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// cleanEmail drops markdown fences some models add around plain text.
func cleanEmail(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx != -1 {
			text = text[idx+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}
