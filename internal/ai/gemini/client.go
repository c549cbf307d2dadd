package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/coldmail/internal/ai"
	"github.com/spigell/coldmail/internal/logger"
)

const (
	// Provider is the name used in configuration and logs.
	Provider     = "gemini"
	defaultModel = "gemini-2.5-flash"
)

var retryAfterRegex = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*s`)

type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the Google GenAI client to provide simple prompt-based interactions.
type Generator struct {
	models    contentModels
	modelName string
	logger    *zap.Logger
}

var _ ai.Generator = (*Generator)(nil)

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, log *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	return &Generator{
		models:    client.Models,
		modelName: model,
		logger:    logger.WithCommonFields(log, Provider, model),
	}, nil
}

// Generate sends the prompt to Gemini and returns the textual response.
// FormatJSON switches the response MIME type to application/json.
func (g *Generator) Generate(ctx context.Context, prompt string, format ai.Format) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}
	if format == ai.FormatJSON {
		config.ResponseMIMEType = "application/json"
	}

	started := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", toAPIError(err))
	}

	output := responseText(resp)
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	if g.logger != nil {
		g.logger.Debug("gemini generate content",
			zap.String("format", format.String()),
			zap.Duration("took", time.Since(started)),
		)
	}

	return output, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
		// only the first candidate with content is used
		if builder.Len() > 0 {
			break
		}
	}

	return strings.TrimSpace(builder.String())
}

func toAPIError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var ptr *genai.APIError
		if !errors.As(err, &ptr) || ptr == nil {
			return err
		}
		apiErr = *ptr
	}

	code := apiErr.Code
	if code == 0 {
		code = http.StatusInternalServerError
	}

	return &ai.APIError{
		StatusCode: code,
		RetryAfter: parseRetryAfter(apiErr.Message),
		Err:        err,
	}
}

func parseRetryAfter(message string) time.Duration {
	match := retryAfterRegex.FindStringSubmatch(message)
	if len(match) < 2 {
		return 0
	}
	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
