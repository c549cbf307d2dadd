package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/coldmail/internal/ai"
	"github.com/spigell/coldmail/internal/model"
)

type stubGenerator struct {
	response   string
	err        error
	calls      int
	lastPrompt string
	lastFormat ai.Format
	block      bool
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string, format ai.Format) (string, error) {
	s.calls++
	s.lastPrompt = prompt
	s.lastFormat = format
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

func TestExtract(t *testing.T) {
	stub := &stubGenerator{response: `[
		{"role": "ML Engineer", "experience": "3+ years", "skills": ["Python", "ML", "python"], "description": "Build models."},
		{"role": "Java Developer", "experience": null, "skills": "Java, Spring", "description": null}
	]`}
	extractor := NewExtractor(stub, WithLogger(zap.NewNop()))

	jobs, err := extractor.Extract(context.Background(), "Careers ML Engineer 3+ years Python ML Java Developer")
	require.NoError(t, err)

	assert.Equal(t, []model.JobPosting{
		{Role: "ML Engineer", Experience: "3+ years", Skills: []string{"Python", "ML"}, Description: "Build models."},
		{Role: "Java Developer", Experience: model.ExperienceUnknown, Skills: []string{"Java", "Spring"}, Description: ""},
	}, jobs)

	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, ai.FormatJSON, stub.lastFormat)
	assert.Contains(t, stub.lastPrompt, "Careers ML Engineer 3+ years")
	assert.Contains(t, stub.lastPrompt, `"role"`)
	assert.Contains(t, stub.lastPrompt, "No preamble")
}

func TestExtractBlankTextSkipsModel(t *testing.T) {
	stub := &stubGenerator{err: errors.New("must not be called")}
	extractor := NewExtractor(stub)

	for _, text := range []string{"", "   \n\t"} {
		jobs, err := extractor.Extract(context.Background(), text)
		require.NoError(t, err)
		assert.NotNil(t, jobs)
		assert.Empty(t, jobs)
	}

	assert.Zero(t, stub.calls)
}

func TestExtractNoJobs(t *testing.T) {
	for _, response := range []string{"[]", "```json\n[]\n```", `{"jobs": []}`} {
		extractor := NewExtractor(&stubGenerator{response: response})

		jobs, err := extractor.Extract(context.Background(), "About us. Contact. Privacy policy.")
		require.NoError(t, err, "response %q", response)
		assert.Empty(t, jobs)
	}
}

func TestExtractMalformedResponse(t *testing.T) {
	tests := map[string]string{
		"not json":          "Sorry, I could not find any jobs.",
		"truncated":         `[{"role": "Go Developer", "skills": ["Go"`,
		"wrong role type":   `[{"role": 42}]`,
		"missing role":      `[{"experience": "2 years"}]`,
		"items not objects": `["Go Developer"]`,
		"scalar":            `"jobs"`,
		"bad skills":        `[{"role": "Go", "skills": {"primary": "Go"}}]`,
	}

	for name, response := range tests {
		t.Run(name, func(t *testing.T) {
			extractor := NewExtractor(&stubGenerator{response: response}, WithMaxLogLength(10))

			jobs, err := extractor.Extract(context.Background(), "Go Developer wanted")
			assert.Nil(t, jobs)

			var extractionErr *model.ExtractionError
			require.ErrorAs(t, err, &extractionErr)
			assert.LessOrEqual(t, len([]rune(extractionErr.Raw)), 13)
		})
	}
}

func TestExtractModelFailure(t *testing.T) {
	cause := errors.New("service unavailable")
	extractor := NewExtractor(&stubGenerator{err: cause})

	_, err := extractor.Extract(context.Background(), "Go Developer wanted")

	var extractionErr *model.ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.ErrorIs(t, err, cause)
	assert.False(t, model.IsTimeout(err))
}

func TestExtractTimeout(t *testing.T) {
	extractor := NewExtractor(&stubGenerator{block: true}, WithTimeout(10*time.Millisecond))

	_, err := extractor.Extract(context.Background(), "Go Developer wanted")

	var extractionErr *model.ExtractionError
	require.ErrorAs(t, err, &extractionErr)

	var timeoutErr *model.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "extract jobs", timeoutErr.Op)
}

func TestExtractTruncatesLongInput(t *testing.T) {
	stub := &stubGenerator{response: "[]"}
	extractor := NewExtractor(stub, WithMaxInputRunes(10))

	_, err := extractor.Extract(context.Background(), "0123456789ABCDEF")
	require.NoError(t, err)

	assert.Contains(t, stub.lastPrompt, "0123456789")
	assert.NotContains(t, stub.lastPrompt, "0123456789A")
}

func TestExtractWithoutGenerator(t *testing.T) {
	_, err := NewExtractor(nil).Extract(context.Background(), "text")

	var extractionErr *model.ExtractionError
	assert.ErrorAs(t, err, &extractionErr)
}

func TestParseResponseShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		roles    []string
	}{
		{name: "single object", response: `{"role": "SRE", "skills": ["Linux"]}`, roles: []string{"SRE"}},
		{name: "envelope", response: `{"jobs": [{"role": "A"}, {"role": "B"}]}`, roles: []string{"A", "B"}},
		{name: "fenced", response: "```json\n[{\"role\": \"A\"}]\n```", roles: []string{"A"}},
		{name: "preamble", response: "Here are the jobs:\n[{\"role\": \"A\"}]\nGood luck!", roles: []string{"A"}},
		{name: "numeric experience", response: `[{"role": "A", "experience": 5}]`, roles: []string{"A"}},
		{name: "envelope with stray role", response: `{"jobs": [{"role": "Go Dev"}], "role": "x"}`, roles: []string{"Go Dev"}},
		{name: "blank roles dropped", response: `[{"role": ""}, {"role": "  "}, {"role": "B"}]`, roles: []string{"B"}},
		{name: "only blank role", response: `[{"role": ""}]`, roles: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			jobs, err := ParseResponse(tt.response)
			require.NoError(t, err)

			roles := make([]string, 0, len(jobs))
			for _, job := range jobs {
				roles = append(roles, job.Role)
			}
			assert.Equal(t, tt.roles, roles)
		})
	}

	jobs, err := ParseResponse(`[{"role": "A", "experience": 5}]`)
	require.NoError(t, err)
	assert.Equal(t, "5", jobs[0].Experience)
	assert.Empty(t, jobs[0].Skills)

	_, err = ParseResponse("   ")
	assert.Error(t, err)
}

func TestPromptTemplate(t *testing.T) {
	t.Parallel()

	prompt, err := buildPrompt("PAGE <b>TEXT</b>")
	require.NoError(t, err)

	// text/template must not html-escape the page text
	assert.Contains(t, prompt, "PAGE <b>TEXT</b>")
	assert.True(t, strings.Contains(prompt, `"experience"`))
}
