package app

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"market_board/internal/config"
	"market_board/internal/market"
	"market_board/internal/notifications"
	"market_board/internal/retry"
	"market_board/internal/sheets"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupEnvironment loads .env file and configures zerolog output and log level.
func SetupEnvironment() {
	// Load .env file if it exists
	err := godotenv.Load()

	// Configure logging
	if os.Getenv("ENV") == "production" {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(os.Stderr)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	levelStr := strings.ToLower(os.Getenv("LOGLEVEL"))
	switch levelStr {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "disabled":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	case "":
		// The table shares the terminal with the log, so keep it quiet by default.
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
		log.Warn().Msgf("Unknown LOGLEVEL '%s', defaulting to warn.", levelStr)
	}

	// wait until now to report on the .env file so we have the chance to set up logging first
	if err == nil {
		log.Debug().Msg("Loaded environment variables from .env file.")
	} else {
		log.Debug().Msg("No .env file found or error loading .env file; proceeding with existing environment variables.")
	}
}

// GetRequiredEnv fetches a required environment variable or exits if not set.
func GetRequiredEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatal().Msgf("%s environment variable is required", key)
	}
	return value
}

// GetEnvWithDefault fetches an environment variable with a default fallback.
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", value).Dur("default", defaultValue).Msg("Invalid duration, using default")
		return defaultValue
	}
	return d
}

func GetBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Bool("default", defaultValue).Msg("Invalid boolean, using default")
		return defaultValue
	}
	return b
}

// Config is everything read from the environment.
type Config struct {
	MarketAPIURL  string
	MarketAPIKey  string
	CatalogURL    string
	PollInterval  time.Duration
	PollTimeout   time.Duration
	PushURL       string
	PushTopic     string
	PrefsBackend  string
	PrefsDir      string
	ImageTemplate string

	SheetsExportEnabled bool
	SpreadsheetRange    string
	CredentialsFile     string
}

func LoadConfig() Config {
	return Config{
		MarketAPIURL:  os.Getenv("MARKET_API_URL"),
		MarketAPIKey:  os.Getenv("MARKET_API_KEY"),
		CatalogURL:    os.Getenv("CATALOG_URL"),
		PollInterval:  GetDurationEnv("POLL_INTERVAL", time.Minute),
		PollTimeout:   GetDurationEnv("POLL_TIMEOUT", 15*time.Second),
		PushURL:       os.Getenv("PUSH_URL"),
		PushTopic:     GetEnvWithDefault("PUSH_TOPIC", "prices"),
		PrefsBackend:  GetEnvWithDefault("PREFS_BACKEND", "file"),
		PrefsDir:      GetEnvWithDefault("PREFS_DIR", defaultPrefsDir()),
		ImageTemplate: os.Getenv("IMAGE_URL_TEMPLATE"),

		SheetsExportEnabled: GetBoolEnv("SHEETS_EXPORT_ENABLED", false),
		SpreadsheetRange:    GetEnvWithDefault("SPREADSHEET_RANGE", "Prices!A1"),
		CredentialsFile:     GetEnvWithDefault("GOOGLE_CREDENTIALS", "credentials.json"),
	}
}

func defaultPrefsDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "market_board")
	}
	return ".market_board"
}

// InitializeMarketClient creates the price list client. MARKET_API_URL is required.
func InitializeMarketClient(cfg Config) *market.Client {
	if cfg.MarketAPIURL == "" {
		log.Fatal().Msg("MARKET_API_URL environment variable is required")
	}
	log.Debug().
		Str("prices_url", cfg.MarketAPIURL).
		Str("catalog_url", cfg.CatalogURL).
		Dur("timeout", cfg.PollTimeout).
		Msg("Initializing market client")
	return market.NewClient(cfg.MarketAPIURL, cfg.CatalogURL, cfg.MarketAPIKey, cfg.PollTimeout)
}

// LoadCatalog fetches the catalog with retries. Failure yields an empty catalog.
func LoadCatalog(ctx context.Context, client *market.Client) *market.Catalog {
	catalog, err := retry.WithRetry(ctx, config.DefaultResilienceConfig.CatalogLoad, client.FetchCatalog)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load item catalog; set exclusion and image lookup disabled")
		return market.NewCatalog(nil)
	}
	log.Debug().Int("items", catalog.Len()).Msg("Loaded item catalog")
	return catalog
}

// InitializeSheetsExporter returns nil when export is disabled.
func InitializeSheetsExporter(ctx context.Context, cfg Config) *sheets.Exporter {
	if !cfg.SheetsExportEnabled {
		log.Debug().Msg("Sheets export disabled")
		return nil
	}
	spreadsheetID := GetRequiredEnv("SPREADSHEET_ID")

	client, err := sheets.NewClient(ctx, cfg.CredentialsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sheets client")
	}

	log.Info().Str("range", cfg.SpreadsheetRange).Msg("Sheets export enabled")
	return sheets.NewExporter(client, spreadsheetID, cfg.SpreadsheetRange, config.DefaultResilienceConfig.SheetWrite)
}

// InitializeNotificationClient creates and returns the notification client
func InitializeNotificationClient() *notifications.Client {
	enabled := GetBoolEnv("NTFY_ENABLED", false)
	baseURL := GetEnvWithDefault("NTFY_URL", "https://ntfy.sh")
	topic := GetEnvWithDefault("NTFY_TOPIC", "market-board")
	priority := GetEnvWithDefault("NTFY_PRIORITY", "default")

	log.Debug().
		Bool("enabled", enabled).
		Str("base_url", baseURL).
		Str("topic", topic).
		Str("priority", priority).
		Msg("Initializing notification client")

	client := notifications.NewClient(baseURL, topic, enabled, priority, 3, time.Second, 30*time.Second)

	if enabled {
		log.Info().Str("topic", topic).Msg("Notifications enabled")
	} else {
		log.Debug().Msg("Notifications disabled")
	}

	return client
}
