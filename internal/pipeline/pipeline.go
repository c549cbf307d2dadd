// Package pipeline runs one outreach session: normalize the page text,
// extract postings, match portfolio links and draft an email per posting.
package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/coldmail/internal/logger"
	"github.com/spigell/coldmail/internal/model"
	"github.com/spigell/coldmail/internal/normalize"
)

type Extractor interface {
	Extract(ctx context.Context, text string) ([]model.JobPosting, error)
}

// Matcher is the read side of the portfolio catalog.
type Matcher interface {
	Loaded() bool
	QueryLinks(required []string) []string
}

type Composer interface {
	WriteMail(ctx context.Context, job model.JobPosting, links []string) (string, error)
}

// Report is the outcome of a session. Jobs are in extraction order.
type Report struct {
	SessionID string           `json:"session_id"`
	State     State            `json:"state"`
	Jobs      []model.Outreach `json:"jobs"`
}

// Failed returns the jobs whose email could not be produced.
func (r *Report) Failed() []model.Outreach {
	if r == nil {
		return nil
	}
	var failed []model.Outreach
	for _, job := range r.Jobs {
		if job.Failed() {
			failed = append(failed, job)
		}
	}
	return failed
}

type Pipeline struct {
	extractor   Extractor
	matcher     Matcher
	composer    Composer
	logger      *zap.Logger
	concurrency int
}

type Option func(*Pipeline)

// WithConcurrency sets how many emails are drafted at the same time.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func New(extractor Extractor, matcher Matcher, composer Composer, log *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:   extractor,
		matcher:     matcher,
		composer:    composer,
		logger:      logger.OrNop(log),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type session struct {
	id     string
	state  State
	logger *zap.Logger
}

func (s *session) advance(next State) error {
	prev := s.state
	state, err := s.state.advance(next)
	if err != nil {
		return err
	}
	s.state = state
	s.logger.Debug("session state changed",
		zap.Stringer("from", prev),
		zap.Stringer("to", state),
	)
	return nil
}

// Run processes raw page text. Catalog and extraction failures abort the
// session. A failed email only marks its own job. If ctx is cancelled while
// drafting, jobs that never started carry the context error and Run returns
// the partial report together with that error.
func (p *Pipeline) Run(ctx context.Context, raw string) (*Report, error) {
	s := &session{id: uuid.NewString(), state: StateIdle}
	s.logger = p.logger.With(zap.String(logger.FieldSession, s.id))
	report := &Report{SessionID: s.id, Jobs: []model.Outreach{}}

	if p.matcher == nil || !p.matcher.Loaded() {
		return report, &model.CatalogLoadError{Cause: errors.New("portfolio catalog is not loaded")}
	}

	if err := s.advance(StateNormalizing); err != nil {
		return report, err
	}
	text := normalize.Text(raw)
	s.logger.Info("page text normalized", zap.Int("length", len(text)))

	if err := s.advance(StateExtracting); err != nil {
		return report, err
	}
	postings, err := p.extractor.Extract(ctx, text)
	report.State = s.state
	if err != nil {
		return report, err
	}
	if len(postings) == 0 {
		s.logger.Warn("no job postings found on the page")
	} else {
		s.logger.Info("job postings extracted", zap.Int("count", len(postings)))
	}

	if err := s.advance(StateMatching); err != nil {
		return report, err
	}
	report.State = s.state
	// Matching and drafting are done per job in Process.
	if err := s.advance(StateComposing); err != nil {
		return report, err
	}
	report.State = s.state

	report.Jobs = make([]model.Outreach, len(postings))
	runErr := p.composeAll(ctx, s, postings, report.Jobs)
	if runErr != nil {
		return report, runErr
	}

	if err := s.advance(StateDone); err != nil {
		return report, err
	}
	report.State = s.state

	s.logger.Info("session finished",
		zap.Int("jobs", len(report.Jobs)),
		zap.Int("failed", len(report.Failed())),
	)

	return report, nil
}

func (p *Pipeline) composeAll(ctx context.Context, s *session, postings []model.JobPosting, results []model.Outreach) error {
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	skip := func(i int, err error) {
		results[i] = model.Outreach{Index: i + 1, Job: postings[i], Links: []string{}, Err: err}
		s.logger.Warn("job skipped", append(logger.JobFields(i+1, postings[i].Role), zap.Error(err))...)
	}

	for i, job := range postings {
		if err := ctx.Err(); err != nil {
			skip(i, err)
			continue
		}
		g.Go(func() error {
			// the slot may have freed up only after cancellation
			if err := ctx.Err(); err != nil {
				skip(i, err)
				return nil
			}
			results[i] = p.process(ctx, s.logger, i+1, job)
			return nil
		})
	}
	_ = g.Wait()

	return ctx.Err()
}

// Process matches links and drafts the email for a single job; index is its
// 1-based position on the page. It never fails as a whole: a drafting error is recorded on the returned Outreach.
func (p *Pipeline) Process(ctx context.Context, index int, job model.JobPosting) model.Outreach {
	return p.process(ctx, p.logger, index, job)
}

func (p *Pipeline) process(ctx context.Context, log *zap.Logger, index int, job model.JobPosting) model.Outreach {
	log = logger.WithFields(log, logger.JobFields(index, job.Role)...)

	out := model.Outreach{Index: index, Job: job, Links: []string{}}
	if p.matcher != nil {
		out.Links = p.matcher.QueryLinks(job.Skills)
	}
	log.Debug("portfolio links matched", zap.Strings("links", out.Links))

	email, err := p.composer.WriteMail(ctx, job, out.Links)
	if err != nil {
		out.Err = err
		log.Warn("failed to compose email", zap.Error(err))
		return out
	}

	out.Email = email
	log.Info("email composed")
	return out
}
