package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var botEnv = []string{
	ConfigPathEnv,
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHANNEL_ID",
	"AMAZON_ACCESS_KEY", "AMAZON_SECRET_KEY", "AMAZON_PARTNER_TAG", "AMAZON_REGION",
	"DEALS_DATA_DIR", "DEALS_CONCURRENCY", "BATCH_SIZE", "LOG_FILE", "LOG_LEVEL",
	"MAX_PRODUCTS_PER_RUN", "DELAY_BETWEEN_MESSAGES",
	"LEDGER_BACKEND", "LEDGER_DSN", "LEDGER_RETENTION", "REDIS_ADDR", "METRICS_TEXTFILE",
}

// isolateEnv unsets the bot's variables for the duration of the test and points HOME at a temp dir.
func isolateEnv(t *testing.T) string {
	t.Helper()

	for _, key := range botEnv {
		if prev, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { _ = os.Setenv(key, prev) })
		}
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func withCredentials(t *testing.T) {
	t.Helper()

	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHANNEL_ID", "@deals")
	t.Setenv("AMAZON_ACCESS_KEY", "AKID")
	t.Setenv("AMAZON_SECRET_KEY", "secret")
}

func TestLoadDefaults(t *testing.T) {
	home := isolateEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	dataDir := filepath.Join(home, ".amazon_deals")
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dataDir, "sent_products.json"), cfg.Ledger.Path)
	assert.Equal(t, filepath.Join(dataDir, "amazon_deals_bot.log"), cfg.Logging.File)
	assert.Equal(t, "yourtag-21", cfg.Amazon.PartnerTag)
	assert.Equal(t, "IN", cfg.Amazon.Region)
	assert.Equal(t, 8, cfg.Catalog.BatchSize)
	assert.Equal(t, 3, cfg.Scanner.Concurrency)
	assert.Equal(t, 200, cfg.MaxProductsPerRun)
	assert.Equal(t, 5*time.Second, cfg.Publisher.Delay)
	assert.Equal(t, 7*24*time.Hour, cfg.Ledger.Retention)
	assert.NotEmpty(t, cfg.Scanner.Pages)

	err = cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "Telegram.BotToken is required")
	assert.Contains(t, err.Error(), "Amazon.AccessKey is required")

	require.NoError(t, cfg.ValidateLedger())
}

func TestLoadFileThenEnvironment(t *testing.T) {
	isolateEnv(t)
	withCredentials(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dataDir: /var/lib/deals
logging:
  level: debug
  file: "-"
catalog:
  batchSize: 5
  paceDelay: 500ms
scanner:
  pages:
    - name: electronics
      url: https://www.amazon.in/s?k=deals&rh=n%3A976419031
      browser: true
ledger:
  backend: sqlite
`), 0o644))

	t.Setenv("BATCH_SIZE", "9")
	t.Setenv("DELAY_BETWEEN_MESSAGES", "1.5")
	t.Setenv("AMAZON_REGION", "US")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/deals", cfg.DataDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Empty(t, cfg.Logging.File)
	assert.Equal(t, 9, cfg.Catalog.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Catalog.PaceDelay)
	assert.Equal(t, 2*time.Second, cfg.Catalog.RetryBaseDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Publisher.Delay)
	assert.Equal(t, "US", cfg.Amazon.Region)
	assert.Equal(t, filepath.Join("/var/lib/deals", "sent_products.db"), cfg.Ledger.Path)
	require.Len(t, cfg.Scanner.Pages, 1)
	assert.True(t, cfg.Scanner.Pages[0].Browser)

	require.NoError(t, cfg.Validate())
}

func TestLoadUsesPathFromEnvironment(t *testing.T) {
	isolateEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("maxProductsPerRun: 50\n"), 0o644))
	t.Setenv(ConfigPathEnv, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.MaxProductsPerRun)
}

func TestLoadErrors(t *testing.T) {
	isolateEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("catalog: [unclosed"), 0o644))
	_, err = Load(bad)
	require.Error(t, err)

	t.Setenv("BATCH_SIZE", "eight")
	_, err = Load("")
	require.ErrorIs(t, err, ErrInvalid)
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	isolateEnv(t)
	withCredentials(t)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "batch above api cap", mutate: func(c *Config) { c.Catalog.BatchSize = 11 }, want: "Catalog.BatchSize"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Scanner.Concurrency = 0 }, want: "Scanner.Concurrency"},
		{name: "unknown backend", mutate: func(c *Config) { c.Ledger.Backend = "mongo" }, want: "Ledger.Backend"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Ledger.Backend = "postgres" }, want: "Ledger.DSN is required"},
		{name: "no pages", mutate: func(c *Config) { c.Scanner.Pages = nil }, want: "Scanner.Pages"},
		{name: "zero retry base", mutate: func(c *Config) { c.Catalog.RetryBaseDelay = 0 }, want: "Catalog.RetryBaseDelay"},
		{name: "negative discount", mutate: func(c *Config) { c.Catalog.MinDiscount = -1 }, want: "Catalog.MinDiscount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())

			tt.mutate(&cfg)
			err = cfg.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
