package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigPathEnv names the YAML file when --config is not given.
	ConfigPathEnv = "DEALS_SCANNER_CONFIG"

	defaultDataDir    = "~/.amazon_deals"
	defaultLedgerFile = "sent_products.json"
	defaultLogFile    = "amazon_deals_bot.log"
	defaultPartnerTag = "yourtag-21"
)

// ErrInvalid marks configuration that cannot be used to start the bot.
var ErrInvalid = errors.New("invalid configuration")

// Config holds high-level settings required across the application.
type Config struct {
	DataDir           string          `yaml:"dataDir"`
	MaxProductsPerRun int             `yaml:"maxProductsPerRun" validate:"gte=1"`
	Logging           LoggingConfig   `yaml:"logging"`
	Telegram          TelegramConfig  `yaml:"telegram"`
	Amazon            AmazonConfig    `yaml:"amazon"`
	Scanner           ScannerConfig   `yaml:"scanner"`
	Catalog           CatalogConfig   `yaml:"catalog"`
	Publisher         PublisherConfig `yaml:"publisher"`
	Ledger            LedgerConfig    `yaml:"ledger"`
	Scheduler         SchedulerConfig `yaml:"scheduler"`
	Metrics           MetricsConfig   `yaml:"metrics"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	// File receives a copy of every log line. Empty means <dataDir>/amazon_deals_bot.log, "-" disables it.
	File string `yaml:"file"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken      string        `yaml:"botToken" validate:"required"`
	ChannelID     string        `yaml:"channelId" validate:"required"`
	BaseURL       string        `yaml:"baseUrl" validate:"omitempty,url"`
	Timeout       time.Duration `yaml:"timeout" validate:"gt=0"`
	VerifyOnStart bool          `yaml:"verifyOnStart"`
}

// AmazonConfig holds Product Advertising API credentials.
type AmazonConfig struct {
	AccessKey  string `yaml:"accessKey" validate:"required"`
	SecretKey  string `yaml:"secretKey" validate:"required"`
	PartnerTag string `yaml:"partnerTag" validate:"required"`
	Region     string `yaml:"region" validate:"required"`
	// Endpoint overrides the marketplace host, mainly for tests.
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
}

// ScannerConfig describes which deal pages to crawl and how.
type ScannerConfig struct {
	Pages         []PageConfig  `yaml:"pages" validate:"required,min=1,dive"`
	Concurrency   int           `yaml:"concurrency" validate:"gte=1,lte=32"`
	FetchTimeout  time.Duration `yaml:"fetchTimeout" validate:"gt=0"`
	BrowserSettle time.Duration `yaml:"browserSettle" validate:"gte=0"`
	UserAgents    []string      `yaml:"userAgents"`
	// Rules selects extraction rules by name. Empty means all.
	Rules []string `yaml:"rules"`
}

// PageConfig is a single deals listing.
type PageConfig struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url" validate:"required,url"`
	Browser bool   `yaml:"browser"`
}

// CatalogConfig tunes enrichment batching, pacing and retries.
type CatalogConfig struct {
	BatchSize      int           `yaml:"batchSize" validate:"gte=1,lte=10"`
	PaceDelay      time.Duration `yaml:"paceDelay" validate:"gte=0"`
	RetryBaseDelay time.Duration `yaml:"retryBaseDelay" validate:"gt=0"`
	RetryJitter    time.Duration `yaml:"retryJitter" validate:"gte=0"`
	MaxAttempts    int           `yaml:"maxAttempts" validate:"gte=1,lte=10"`
	MinDiscount    float64       `yaml:"minDiscount" validate:"gte=0,lte=100"`
	Timeout        time.Duration `yaml:"timeout" validate:"gt=0"`
}

// PublisherConfig tunes message pacing and rendering.
type PublisherConfig struct {
	Delay          time.Duration `yaml:"delay" validate:"gte=0"`
	Jitter         time.Duration `yaml:"jitter" validate:"gte=0"`
	SendAttempts   int           `yaml:"sendAttempts" validate:"gte=1,lte=10"`
	MaxTitleLength int           `yaml:"maxTitleLength" validate:"gte=10"`
}

// LedgerConfig selects where announcements are remembered.
type LedgerConfig struct {
	Backend   string        `yaml:"backend" validate:"oneof=file sqlite postgres redis memory"`
	Path      string        `yaml:"path" validate:"required_if=Backend file,required_if=Backend sqlite"`
	DSN       string        `yaml:"dsn" validate:"required_if=Backend postgres"`
	Retention time.Duration `yaml:"retention" validate:"gt=0"`
	Redis     RedisConfig   `yaml:"redis"`
}

// RedisConfig describes the Redis ledger connection.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db" validate:"gte=0"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// SchedulerConfig defines how often watch mode runs the pipeline.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
	// Listen serves /metrics in watch mode, e.g. ":9108". Empty disables it.
	Listen string `yaml:"listen"`
}

// envOverrides maps the bot's environment variables. Unset variables stay nil.
type envOverrides struct {
	TelegramBotToken     *string        `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChannelID    *string        `envconfig:"TELEGRAM_CHANNEL_ID"`
	AmazonAccessKey      *string        `envconfig:"AMAZON_ACCESS_KEY"`
	AmazonSecretKey      *string        `envconfig:"AMAZON_SECRET_KEY"`
	AmazonPartnerTag     *string        `envconfig:"AMAZON_PARTNER_TAG"`
	AmazonRegion         *string        `envconfig:"AMAZON_REGION"`
	DataDir              *string        `envconfig:"DEALS_DATA_DIR"`
	Concurrency          *int           `envconfig:"DEALS_CONCURRENCY"`
	BatchSize            *int           `envconfig:"BATCH_SIZE"`
	LogFile              *string        `envconfig:"LOG_FILE"`
	LogLevel             *string        `envconfig:"LOG_LEVEL"`
	MaxProductsPerRun    *int           `envconfig:"MAX_PRODUCTS_PER_RUN"`
	DelayBetweenMessages *float64       `envconfig:"DELAY_BETWEEN_MESSAGES"`
	LedgerBackend        *string        `envconfig:"LEDGER_BACKEND"`
	LedgerDSN            *string        `envconfig:"LEDGER_DSN"`
	LedgerRetention      *time.Duration `envconfig:"LEDGER_RETENTION"`
	RedisAddr            *string        `envconfig:"REDIS_ADDR"`
	MetricsTextfile      *string        `envconfig:"METRICS_TEXTFILE"`
}

// Load layers the YAML file at path (or $DEALS_SCANNER_CONFIG) and the
// environment over the defaults. The result is not validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.resolvePaths(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("%w: environment: %w", ErrInvalid, err)
	}

	setString(&c.Telegram.BotToken, env.TelegramBotToken)
	setString(&c.Telegram.ChannelID, env.TelegramChannelID)
	setString(&c.Amazon.AccessKey, env.AmazonAccessKey)
	setString(&c.Amazon.SecretKey, env.AmazonSecretKey)
	setString(&c.Amazon.PartnerTag, env.AmazonPartnerTag)
	setString(&c.Amazon.Region, env.AmazonRegion)
	setString(&c.DataDir, env.DataDir)
	setString(&c.Logging.File, env.LogFile)
	setString(&c.Logging.Level, env.LogLevel)
	setString(&c.Ledger.Backend, env.LedgerBackend)
	setString(&c.Ledger.DSN, env.LedgerDSN)
	setString(&c.Ledger.Redis.Addr, env.RedisAddr)
	setString(&c.Metrics.Textfile, env.MetricsTextfile)

	if env.Concurrency != nil {
		c.Scanner.Concurrency = *env.Concurrency
	}
	if env.BatchSize != nil {
		c.Catalog.BatchSize = *env.BatchSize
	}
	if env.MaxProductsPerRun != nil {
		c.MaxProductsPerRun = *env.MaxProductsPerRun
	}
	if env.DelayBetweenMessages != nil {
		c.Publisher.Delay = time.Duration(*env.DelayBetweenMessages * float64(time.Second))
	}
	if env.LedgerRetention != nil {
		c.Ledger.Retention = *env.LedgerRetention
	}

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// resolvePaths expands ~ and places the ledger and log file under DataDir unless set explicitly.
func (c *Config) resolvePaths() error {
	dataDir, err := expandHome(c.DataDir)
	if err != nil {
		return err
	}
	c.DataDir = dataDir

	if c.Ledger.Path == "" {
		name := defaultLedgerFile
		if c.Ledger.Backend == "sqlite" {
			name = "sent_products.db"
		}
		c.Ledger.Path = filepath.Join(c.DataDir, name)
	}
	switch c.Logging.File {
	case "":
		c.Logging.File = filepath.Join(c.DataDir, defaultLogFile)
	case "-":
		c.Logging.File = ""
	}

	if c.Ledger.Path, err = expandHome(c.Ledger.Path); err != nil {
		return err
	}
	if c.Logging.File, err = expandHome(c.Logging.File); err != nil {
		return err
	}
	if c.Metrics.Textfile, err = expandHome(c.Metrics.Textfile); err != nil {
		return err
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every section needed for a full pipeline run.
func (c Config) Validate() error {
	return wrapValidation(validate.Struct(c))
}

// ValidateLedger checks only what ledger maintenance commands need.
func (c Config) ValidateLedger() error {
	return wrapValidation(validate.StructPartial(c,
		"Logging.Level",
		"Ledger.Backend", "Ledger.Path", "Ledger.DSN", "Ledger.Retention", "Ledger.Redis.DB",
	))
}

func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s fails %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
}

// Default returns the configuration the bot runs with when nothing is overridden.
func Default() Config {
	return Config{
		DataDir:           defaultDataDir,
		MaxProductsPerRun: 200,
		Logging:           LoggingConfig{Level: "info"},
		Telegram: TelegramConfig{
			Timeout:       30 * time.Second,
			VerifyOnStart: true,
		},
		Amazon: AmazonConfig{
			PartnerTag: defaultPartnerTag,
			Region:     "IN",
		},
		Scanner: ScannerConfig{
			Pages:         defaultPages(),
			Concurrency:   3,
			FetchTimeout:  25 * time.Second,
			BrowserSettle: 3 * time.Second,
		},
		Catalog: CatalogConfig{
			BatchSize:      8,
			PaceDelay:      2 * time.Second,
			RetryBaseDelay: 2 * time.Second,
			RetryJitter:    time.Second,
			MaxAttempts:    5,
			MinDiscount:    10,
			Timeout:        15 * time.Second,
		},
		Publisher: PublisherConfig{
			Delay:          5 * time.Second,
			Jitter:         2 * time.Second,
			SendAttempts:   3,
			MaxTitleLength: 120,
		},
		Ledger: LedgerConfig{
			Backend:   "file",
			Retention: 7 * 24 * time.Hour,
			Redis:     RedisConfig{Addr: "localhost:6379"},
		},
		Scheduler: SchedulerConfig{Interval: time.Hour},
	}
}

func defaultPages() []PageConfig {
	return []PageConfig{
		{Name: "deals", URL: "https://www.amazon.in/deals?&linkCode=ll2"},
		{Name: "goldbox", URL: "https://www.amazon.in/gp/goldbox?&linkCode=ll2"},
		{Name: "deals-10-off", URL: "https://www.amazon.in/deals?discountRanges=10-,&sortBy=BY_SCORE"},
		{Name: "fashion", URL: "https://www.amazon.in/s?k=deals&rh=n%3A1571271031"},
		{Name: "home-kitchen", URL: "https://www.amazon.in/s?k=deals&rh=n%3A1380263031"},
		{Name: "sports", URL: "https://www.amazon.in/s?k=deals&rh=n%3A1355016031"},
		{Name: "beauty", URL: "https://www.amazon.in/s?k=deals&rh=n%3A1374618031"},
		{Name: "toys", URL: "https://www.amazon.in/s?k=deals&rh=n%3A1350380031"},
		{Name: "books", URL: "https://www.amazon.in/s?k=deals&rh=n%3A976442031"},
	}
}
