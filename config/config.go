package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	DataRoot      string
	CatalogSource string

	EbayClientID     string
	EbayClientSecret string
	EbayTokenURL     string
	EbaySearchURL    string
	EbayScope        string
	EbayCategoryID   string
	EbayPageSize     int
	EbayMaxResults   int
	EbayMaxPages     int
	TopNCards        int

	TCGAPIKey   string
	TCGBaseURL  string
	TCGPageSize int

	MaxRetries  int
	RetryBaseMs int
	RateLimitMs int

	SummaryCurrency string

	S3Bucket       string
	S3Prefix       string
	DuckDBPath     string
	PushgatewayURL string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "cards"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "cards123"),
		PostgresDB:       getEnv("POSTGRES_DB", "card_market"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		DataRoot:      getEnv("DATA_ROOT", "./data"),
		CatalogSource: getEnv("CATALOG_SOURCE", "parquet"),

		EbayClientID:     getEnv("EBAY_CLIENT_ID", ""),
		EbayClientSecret: getEnv("EBAY_CLIENT_SECRET", ""),
		EbayTokenURL:     getEnv("EBAY_TOKEN_URL", "https://api.ebay.com/identity/v1/oauth2/token"),
		EbaySearchURL:    getEnv("EBAY_SEARCH_URL", "https://api.ebay.com/buy/browse/v1/item_summary/search"),
		EbayScope:        getEnv("EBAY_SCOPE", "https://api.ebay.com/oauth/api_scope"),
		EbayCategoryID:   getEnv("EBAY_CATEGORY_ID", "183454"),
		EbayPageSize:     getEnvInt("EBAY_PAGE_SIZE", 50),
		EbayMaxResults:   getEnvInt("EBAY_MAX_RESULTS", 50),
		EbayMaxPages:     getEnvInt("EBAY_MAX_PAGES", 1),
		TopNCards:        getEnvInt("TOP_N_CARDS", 10),

		TCGAPIKey:   getEnv("TCG_API_KEY", ""),
		TCGBaseURL:  getEnv("TCG_BASE_URL", "https://api.pokemontcg.io/v2"),
		TCGPageSize: getEnvInt("TCG_PAGE_SIZE", 50),

		MaxRetries:  getEnvInt("MAX_RETRIES", 5),
		RetryBaseMs: getEnvInt("RETRY_BASE_MS", 5000),
		RateLimitMs: getEnvInt("RATE_LIMIT_MS", 5000),

		SummaryCurrency: getEnv("SUMMARY_CURRENCY", "USD"),

		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3Prefix:       getEnv("S3_PREFIX", ""),
		DuckDBPath:     getEnv("DUCKDB_PATH", ""),
		PushgatewayURL: getEnv("PUSHGATEWAY_URL", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// RetryBase returns the base back-off delay.
func (c *Config) RetryBase() time.Duration {
	return time.Duration(c.RetryBaseMs) * time.Millisecond
}

// RateLimit returns the minimum spacing between API requests.
func (c *Config) RateLimit() time.Duration {
	return time.Duration(c.RateLimitMs) * time.Millisecond
}

// Paths returns the dataset layout rooted at DataRoot.
func (c *Config) Paths() Paths {
	return NewPaths(c.DataRoot)
}

// Paths names every dataset directory of the lake.
type Paths struct {
	Root string

	RawTCGCards     string
	RawEbayListings string
	FailedLedgers   string

	StagingCards      string
	StagingCardPrices string
	StagingEbay       string
	CardMaster        string
	VariantMaster     string
	PriceHistory      string
	WeeklyTopCards    string
	MarketSnapshot    string
	MarketSummary     string
}

// NewPaths builds the layout under root.
func NewPaths(root string) Paths {
	j := func(parts ...string) string {
		return filepath.Join(append([]string{root}, parts...)...)
	}
	return Paths{
		Root: root,

		RawTCGCards:     j("raw", "pokemon_tcg", "cards"),
		RawEbayListings: j("raw", "ebay", "listings"),
		FailedLedgers:   j("meta", "failed"),

		StagingCards:      j("staging", "pokemon_tcg", "cards"),
		StagingCardPrices: j("staging", "pokemon_tcg", "card_prices"),
		StagingEbay:       j("staging", "ebay", "listings"),
		CardMaster:        j("processed", "card_master"),
		VariantMaster:     j("processed", "card_price_variant_master"),
		PriceHistory:      j("processed", "tcg_price_history"),
		WeeklyTopCards:    j("processed", "analytics", "weekly_top_tcg_cards"),
		MarketSnapshot:    j("analytics", "ebay_market_snapshot"),
		MarketSummary:     j("analytics", "ebay_card_market_summary"),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
