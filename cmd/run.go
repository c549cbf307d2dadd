package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/coldmail/internal/ai"
	"github.com/spigell/coldmail/internal/ai/gemini"
	"github.com/spigell/coldmail/internal/ai/groq"
	"github.com/spigell/coldmail/internal/jobs"
	"github.com/spigell/coldmail/internal/logger"
	"github.com/spigell/coldmail/internal/mail"
	"github.com/spigell/coldmail/internal/model"
	"github.com/spigell/coldmail/internal/page"
	"github.com/spigell/coldmail/internal/pipeline"
	"github.com/spigell/coldmail/internal/portfolio"
	"github.com/spigell/coldmail/internal/retry"
	"github.com/spigell/coldmail/internal/secrets"
)

const (
	PromptExit         = "Exit"
	PromptReportToFile = "Dump report to file"
	PromptShowFailed   = "Show failed jobs"
)

var errExit = errors.New("exit requested")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate cold emails for the job postings on a careers page",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("url", "", "careers page to scrape (or COLDMAIL_URL)")
	runCmd.Flags().String("text-file", "", "read page text from a file instead of the url, '-' for stdin")
	runCmd.Flags().BoolP("auto-approve", "y", false, "print every email and exit without the interactive browser")
	runCmd.Flags().StringP("output", "o", outputText, "output format: text or json")

	viper.BindPFlag("url", runCmd.Flags().Lookup("url"))
	viper.BindPFlag("text-file", runCmd.Flags().Lookup("text-file"))
	viper.BindPFlag("output", runCmd.Flags().Lookup("output"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer func() { _ = logger.Sync() }()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if err := validateConfig(config); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	logger.Info("starting the coldmail", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	generator, err := newGenerator(ctx, &config.AI, logger)
	if err != nil {
		logger.Fatal("building a language model client",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY/GROQ_API_KEY or the ai.<provider>.api-key-file key in the configuration file"),
		)
	}

	catalog, err := loadCatalog(ctx, &config.Portfolio, logger)
	if err != nil {
		logger.Fatal("loading the portfolio catalog", zap.Error(err))
	}

	text, err := pageText(ctx, cmd.InOrStdin(), config, logger)
	if err != nil {
		logger.Fatal("getting the careers page", zap.Error(err))
	}

	p := pipeline.New(
		jobs.NewExtractor(generator,
			jobs.WithTimeout(config.AI.Timeout),
			jobs.WithMaxInputRunes(config.AI.MaxInputRunes),
			jobs.WithMaxLogLength(config.AI.MaxLogLength),
			jobs.WithLogger(logger),
		),
		catalog,
		mail.NewComposer(generator, config.Sender,
			mail.WithTimeout(config.AI.Timeout),
			mail.WithMaxLogLength(config.AI.MaxLogLength),
			mail.WithLogger(logger),
		),
		logger,
		pipeline.WithConcurrency(config.AI.Concurrency),
	)

	report, err := p.Run(ctx, text)
	if err != nil {
		var extractionErr *model.ExtractionError
		switch {
		case errors.As(err, &extractionErr):
			logger.Fatal("no usable job data", zap.Error(err))
		case errors.Is(err, context.Canceled) && len(report.Jobs) > 0:
			logger.Warn("interrupted, printing what is ready", zap.Error(err))
			if err := printReport(cmd.OutOrStdout(), config.Output, report); err != nil {
				logger.Fatal("printing the report", zap.Error(err))
			}
			return
		default:
			logger.Fatal("processing the careers page", zap.Error(err))
		}
	}

	if len(report.Jobs) == 0 {
		logger.Info("exiting", zap.String("reason", "no job postings found"))
		return
	}

	if failed := len(report.Failed()); failed > 0 {
		logger.Warn("some emails were not generated", zap.Int("failed", failed), zap.Int("jobs", len(report.Jobs)))
	}

	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	if autoApprove || config.Output == outputJSON {
		if err := printReport(cmd.OutOrStdout(), config.Output, report); err != nil {
			logger.Fatal("printing the report", zap.Error(err))
		}
		return
	}

	if err := browse(cmd.OutOrStdout(), report, logger); err != nil && !errors.Is(err, errExit) {
		logger.Fatal("exiting", zap.Error(err))
	}
}

func newGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Generator, error) {
	var (
		generator ai.Generator
		err       error
	)

	switch provider := strings.TrimSpace(strings.ToLower(cfg.Provider)); provider {
	case "", gemini.Provider:
		apiKey, keyErr := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Gemini.APIKey,
			File:  cfg.Gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if keyErr != nil {
			return nil, keyErr
		}
		generator, err = gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, logger)
	case groq.Provider:
		apiKey, keyErr := secrets.Load(secrets.Source{
			Name:  "groq api key",
			Value: cfg.Groq.APIKey,
			File:  cfg.Groq.APIKeyFile,
			Env:   "GROQ_API_KEY",
		})
		if keyErr != nil {
			return nil, keyErr
		}
		generator, err = groq.NewGenerator(apiKey, cfg.Groq.Model, cfg.Groq.BaseURL, logger)
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("language model ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", generator.Model()),
		zap.Int("max_retries", cfg.MaxRetries),
	)

	return retry.Wrap(generator, cfg.MaxRetries, cfg.RetryDelay, logger), nil
}

func loadCatalog(ctx context.Context, cfg *PortfolioConfig, logger *zap.Logger) (*portfolio.Catalog, error) {
	src, err := portfolio.OpenSource(cfg.Source, portfolio.SourceOptions{
		Table: cfg.Table,
		S3:    cfg.S3,
	})
	if err != nil {
		return nil, &model.CatalogLoadError{Source: cfg.Source, Cause: err}
	}

	catalog := portfolio.NewCatalog(
		portfolio.WithMaxLinks(cfg.MaxLinks),
		portfolio.WithLoadTimeout(cfg.LoadTimeout),
		portfolio.WithLogger(logger),
	)
	if err := catalog.Load(ctx, src); err != nil {
		return nil, err
	}

	return catalog, nil
}

// pageText returns the raw careers page text from the configured file, stdin
// or url, in that order.
func pageText(ctx context.Context, stdin io.Reader, config *Config, logger *zap.Logger) (string, error) {
	switch file := strings.TrimSpace(config.TextFile); {
	case file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading page text from stdin: %w", err)
		}
		return string(data), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading page text: %w", err)
		}
		return string(data), nil
	}

	if strings.TrimSpace(config.URL) == "" {
		return "", errors.New("a careers page url is required (--url, url key or COLDMAIL_URL), or use --text-file")
	}

	logger.Info("fetching the careers page", zap.String("url", config.URL))

	return page.Fetch(ctx, config.URL, page.Options{
		Timeout:   config.Fetch.Timeout,
		UserAgent: config.Fetch.UserAgent,
		Logger:    logger,
	})
}

func browse(out io.Writer, report *pipeline.Report, logger *zap.Logger) error {
	for {
		items := make([]string, 0, len(report.Jobs)+3)
		for _, job := range report.Jobs {
			items = append(items, jobLabel(job))
		}
		if len(report.Failed()) > 0 {
			items = append(items, PromptShowFailed)
		}
		items = append(items, PromptReportToFile, PromptExit)

		jobPrompt := promptui.Select{
			Label: fmt.Sprintf("%d job(s) found. Choose one and press ENTER", len(report.Jobs)),
			Items: items,
			Size:  10,
		}

		idx, selected, err := jobPrompt.Run()
		if err != nil {
			return err
		}

		switch selected {
		case PromptExit:
			logger.Info("exiting", zap.String("reason", "got exit from prompt"))
			return errExit
		case PromptShowFailed:
			for _, job := range report.Failed() {
				writeOutreach(out, job)
			}
		case PromptReportToFile:
			filename, err := dumpReport(report)
			if err != nil {
				return fmt.Errorf("dump report to file: %w", err)
			}
			logger.Info("dumping report to file", zap.String("filename", filename))
		default:
			writeOutreach(out, report.Jobs[idx])
		}
	}
}
