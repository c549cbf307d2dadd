package cmd

import (
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/coldmail/internal/ai/gemini"
	"github.com/spigell/coldmail/internal/ai/groq"
	"github.com/spigell/coldmail/internal/mail"
	"github.com/spigell/coldmail/internal/page"
	"github.com/spigell/coldmail/internal/portfolio"
)

const (
	app = "coldmail"

	outputText = "text"
	outputJSON = "json"
)

type Config struct {
	URL       string          `mapstructure:"url"`
	TextFile  string          `mapstructure:"text-file"`
	Output    string          `mapstructure:"output" validate:"oneof=text json"`
	Sender    mail.Sender     `mapstructure:"sender"`
	Portfolio PortfolioConfig `mapstructure:"portfolio"`
	AI        AIConfig        `mapstructure:"ai"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
}

type PortfolioConfig struct {
	// Source is a file path or a s3://, sqlite:// or postgres:// location.
	Source      string              `mapstructure:"source" validate:"required"`
	Table       string              `mapstructure:"table"`
	MaxLinks    int                 `mapstructure:"max-links" validate:"min=1"`
	LoadTimeout time.Duration       `mapstructure:"load-timeout"`
	S3          portfolio.S3Options `mapstructure:"s3"`
}

var dsnPasswordRegex = regexp.MustCompile(`(?i)(password=)\S+`)

// MarshalJSON hides credentials embedded in the source location.
func (c PortfolioConfig) MarshalJSON() ([]byte, error) {
	type plain PortfolioConfig
	out := plain(c)
	out.Source = redactSource(c.Source)
	return json.Marshal(out)
}

func redactSource(source string) string {
	if u, err := url.Parse(source); err == nil && u.User != nil {
		return u.Redacted()
	}
	return dsnPasswordRegex.ReplaceAllString(source, "${1}xxxxx")
}

type AIConfig struct {
	Provider      string        `mapstructure:"provider" validate:"oneof=gemini groq"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max-retries" validate:"min=0"`
	RetryDelay    time.Duration `mapstructure:"retry-delay"`
	Concurrency   int           `mapstructure:"concurrency" validate:"min=1"`
	MaxLogLength  int           `mapstructure:"max-log-length" validate:"min=0"`
	MaxInputRunes int           `mapstructure:"max-input-runes" validate:"min=0"`
	Gemini        GeminiConfig  `mapstructure:"gemini"`
	Groq          GroqConfig    `mapstructure:"groq"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type GroqConfig struct {
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base-url"`
}

type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user-agent"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "coldmail turns a company careers page into cold emails backed by your portfolio",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := bindEnv(viper.GetViper()); err != nil {
		log.Fatalf("binding environment variables: %v", err)
	}
	setDefaults(viper.GetViper())

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is coldmail.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"ai.gemini.api-key": "GEMINI_API_KEY",
		"ai.groq.api-key":   "GROQ_API_KEY",
		"url":               "COLDMAIL_URL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output", outputText)
	v.SetDefault("portfolio.max-links", portfolio.DefaultMaxLinks)
	v.SetDefault("portfolio.load-timeout", 30*time.Second)
	v.SetDefault("ai.provider", gemini.Provider)
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.max-retries", 3)
	v.SetDefault("ai.retry-delay", 2*time.Second)
	v.SetDefault("ai.concurrency", 1)
	v.SetDefault("ai.max-log-length", 200)
	v.SetDefault("ai.max-input-runes", 24000)
	v.SetDefault("ai.groq.base-url", groq.DefaultBaseURL)
	v.SetDefault("fetch.timeout", page.DefaultTimeout)
	v.SetDefault("fetch.user-agent", page.DefaultUserAgent)
}

func initConfig() {
	// Config is needed only by commands that talk to the catalog.
	if runCmd.CalledAs() == "" && matchCmd.CalledAs() == "" {
		return
	}

	// A missing .env is fine: keys may come from the environment or the config.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Without --config every setting may come from flags and env.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

var validate = validator.New()

// validateConfig checks everything the run command needs.
func validateConfig(config *Config) error {
	return validate.Struct(config)
}

// validatePortfolio checks only the catalog settings, enough for the match command.
func validatePortfolio(config *Config) error {
	return validate.Struct(config.Portfolio)
}
