// Package groq talks to OpenAI-compatible chat completion endpoints (Groq by
// default) through langchaingo.
package groq

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/spigell/coldmail/internal/ai"
	"github.com/spigell/coldmail/internal/logger"
)

const (
	// Provider is the name used in configuration and logs.
	Provider       = "groq"
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	defaultModel   = "llama-3.3-70b-versatile"
)

var statusCodeRegex = regexp.MustCompile(`status code:? (\d{3})`)

// Generator sends prompts to a chat completion model.
type Generator struct {
	llm       llms.Model
	modelName string
	logger    *zap.Logger
}

var _ ai.Generator = (*Generator)(nil)

// NewGenerator creates a Generator for the given endpoint. An empty baseURL
// means Groq.
func NewGenerator(apiKey, model, baseURL string, log *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("groq api key is required")
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	if baseURL = strings.TrimSpace(baseURL); baseURL == "" {
		baseURL = DefaultBaseURL
	}

	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(model),
		openai.WithBaseURL(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("create chat client: %w", err)
	}

	return &Generator{
		llm:       llm,
		modelName: model,
		logger:    logger.WithCommonFields(log, Provider, model),
	}, nil
}

// Generate runs a single-prompt completion. FormatJSON enables JSON mode.
func (g *Generator) Generate(ctx context.Context, prompt string, format ai.Format) (string, error) {
	if g == nil || g.llm == nil {
		return "", errors.New("groq generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	opts := []llms.CallOption{llms.WithTemperature(0)}
	if format == ai.FormatJSON {
		opts = append(opts, llms.WithJSONMode())
	}

	started := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", toAPIError(err))
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("groq api returned empty response")
	}

	if g.logger != nil {
		g.logger.Debug("groq chat completion",
			zap.String("format", format.String()),
			zap.Duration("took", time.Since(started)),
		)
	}

	return out, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

func toAPIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	match := statusCodeRegex.FindStringSubmatch(err.Error())
	if len(match) < 2 {
		return err
	}

	code, convErr := strconv.Atoi(match[1])
	if convErr != nil || code < http.StatusBadRequest {
		return err
	}

	return &ai.APIError{StatusCode: code, Err: err}
}
