package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	News        NewsConfig      `toml:"news"`
	Market      MarketConfig    `toml:"market"`
	EODHD       EODHDConfig     `toml:"eodhd"`
	Polygon     PolygonConfig   `toml:"polygon"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Email       EmailConfig     `toml:"email"`
	Telegram    TelegramConfig  `toml:"telegram"`
	Blog        BlogConfig      `toml:"blog"`
	Retry       RetryConfig     `toml:"retry"`
	Watchlist   WatchlistConfig `toml:"watchlist"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// StorageConfig selects the persistence backend for subscribers, watchlists and the delivery ledger
type StorageConfig struct {
	Type   string       `toml:"type"` // "badger" (default), "postgres" or "sqlite"
	Badger BadgerConfig `toml:"badger"`
	SQL    SQLConfig    `toml:"sql"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// SQLConfig holds gorm connection settings for postgres or sqlite
type SQLConfig struct {
	DSN             string        `toml:"dsn"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	AutoMigrate     bool          `toml:"auto_migrate"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// SchedulerConfig controls the cron trigger for the briefing cycle
type SchedulerConfig struct {
	Enabled     bool   `toml:"enabled"`
	Schedule    string `toml:"schedule"`     // 5-field cron expression
	Timezone    string `toml:"timezone"`     // IANA zone, e.g. "Asia/Seoul"
	HistorySize int    `toml:"history_size"` // Runs kept in memory for statistics
	Persist     bool   `toml:"persist"`      // Also write run results to storage
}

// NewsConfig lists feed sources and filtering rules for the collector
type NewsConfig struct {
	Feeds          []FeedConfig       `toml:"feeds"`
	HTMLSources    []HTMLSourceConfig `toml:"html_sources"`
	UseEODHD       bool               `toml:"use_eodhd"`
	UsePolygon     bool               `toml:"use_polygon"`
	Topics         []string           `toml:"topics"`           // Symbols or topics queried on API sources
	MaxItems       int                `toml:"max_items"`        // Upper bound on collected items per run
	PerSourceLimit int                `toml:"per_source_limit"` // Upper bound per source
	MaxAge         time.Duration      `toml:"max_age"`          // Drop items older than this
	PromoKeywords  []string           `toml:"promo_keywords"`
	RequestTimeout time.Duration      `toml:"request_timeout"`
	UserAgent      string             `toml:"user_agent"`
}

// FeedConfig is an RSS/Atom feed endpoint
type FeedConfig struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// HTMLSourceConfig describes a news listing page scraped with CSS selectors
type HTMLSourceConfig struct {
	Name            string `toml:"name"`
	URL             string `toml:"url"`
	ItemSelector    string `toml:"item_selector"`
	TitleSelector   string `toml:"title_selector"`
	LinkSelector    string `toml:"link_selector"`
	SnippetSelector string `toml:"snippet_selector"`
	DateSelector    string `toml:"date_selector"`
	DateLayout      string `toml:"date_layout"`
}

// MarketConfig controls quote lookups
type MarketConfig struct {
	DefaultMarket  string        `toml:"default_market"`   // Market used for bare codes: "KOSPI"
	QuoteBatchSize int           `toml:"quote_batch_size"` // Concurrent quote lookups per batch
	QuoteBatchWait time.Duration `toml:"quote_batch_wait"` // Delay between quote batches
	HistoryDays    int           `toml:"history_days"`     // Calendar days of history requested
}

// EODHDConfig holds EODHD API settings (KRX quotes, history and news)
type EODHDConfig struct {
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"` // Requests per second
}

// PolygonConfig holds Polygon.io settings (US quotes, aggregates and news)
type PolygonConfig struct {
	APIKey string `toml:"api_key"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the provider used by the analyzer
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"`
	MaxNewsItems    int         `toml:"max_news_items"` // News items sent to the summary prompt
}

// EmailConfig holds SMTP settings and batch pacing for the email channel
type EmailConfig struct {
	Host        string        `toml:"host"`
	Port        int           `toml:"port"`
	Username    string        `toml:"username"`
	Password    string        `toml:"password"`
	From        string        `toml:"from"`
	FromName    string        `toml:"from_name"`
	UseTLS      bool          `toml:"use_tls"`
	BatchSize   int           `toml:"batch_size"`
	BatchDelay  time.Duration `toml:"batch_delay"`
	SendTimeout time.Duration `toml:"send_timeout"`
	BaseURL     string        `toml:"base_url"` // Public site URL used for unsubscribe links
	AttachChart bool          `toml:"attach_chart"`
}

// TelegramConfig holds bot credentials for the broadcast channel
type TelegramConfig struct {
	BotToken string        `toml:"bot_token"`
	ChatID   string        `toml:"chat_id"`
	BaseURL  string        `toml:"base_url"`
	Timeout  time.Duration `toml:"timeout"`
}

// BlogConfig groups the blog publishers
type BlogConfig struct {
	GitHub GitHubBlogConfig `toml:"github"`
	REST   RESTBlogConfig   `toml:"rest"`
}

// GitHubBlogConfig publishes markdown posts into a GitHub Pages repository
type GitHubBlogConfig struct {
	Token   string `toml:"token"`
	Owner   string `toml:"owner"`
	Repo    string `toml:"repo"`
	Branch  string `toml:"branch"`
	PostDir string `toml:"post_dir"`
	SiteURL string `toml:"site_url"`
}

// RESTBlogConfig publishes HTML posts to a WordPress-compatible REST API using OAuth2 client credentials
type RESTBlogConfig struct {
	Endpoint     string        `toml:"endpoint"`
	TokenURL     string        `toml:"token_url"`
	ClientID     string        `toml:"client_id"`
	ClientSecret string        `toml:"client_secret"`
	Scopes       []string      `toml:"scopes"`
	Status       string        `toml:"status"` // "publish" or "draft"
	Timeout      time.Duration `toml:"timeout"`
}

// missingKeys returns the keys whose value is empty; pairs alternate key, value
func missingKeys(pairs ...string) []string {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	return missing
}

// MissingKeys lists the required SMTP keys left empty
func (c EmailConfig) MissingKeys() []string {
	return missingKeys("email.host", c.Host, "email.from", c.From)
}

// MissingKeys lists the required bot keys left empty
func (c TelegramConfig) MissingKeys() []string {
	return missingKeys("telegram.bot_token", c.BotToken, "telegram.chat_id", c.ChatID)
}

// MissingKeys lists the required repository keys left empty
func (c GitHubBlogConfig) MissingKeys() []string {
	return missingKeys("blog.github.token", c.Token, "blog.github.owner", c.Owner, "blog.github.repo", c.Repo)
}

// MissingKeys lists the required endpoint and credential keys left empty
func (c RESTBlogConfig) MissingKeys() []string {
	return missingKeys(
		"blog.rest.endpoint", c.Endpoint,
		"blog.rest.token_url", c.TokenURL,
		"blog.rest.client_id", c.ClientID,
		"blog.rest.client_secret", c.ClientSecret,
	)
}

// RetryConfig is the shared backoff policy for blog publishers
type RetryConfig struct {
	MaxAttempts  int           `toml:"max_attempts"`
	InitialDelay time.Duration `toml:"initial_delay"`
	MaxDelay     time.Duration `toml:"max_delay"`
	Multiplier   float64       `toml:"multiplier"`
}

// WatchlistConfig controls news matching
type WatchlistConfig struct {
	MatchPolicy string `toml:"match_policy"` // "first_match" (default) or "per_user"
	NamesFile   string `toml:"names_file"`   // YAML symbol -> english name table
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Type: "badger",
			Badger: BadgerConfig{
				Path: "./data",
			},
			SQL: SQLConfig{
				MaxIdleConns:    10,
				MaxOpenConns:    25,
				ConnMaxLifetime: 5 * time.Minute,
				AutoMigrate:     true,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Scheduler: SchedulerConfig{
			Enabled:     true,
			Schedule:    "30 7 * * 1-5", // 07:30 on weekdays
			Timezone:    "Asia/Seoul",
			HistorySize: 100,
			Persist:     true,
		},
		News: NewsConfig{
			Feeds: []FeedConfig{
				{Name: "google-news-kr", URL: "https://news.google.com/rss/search?q=%EC%A6%9D%EC%8B%9C&hl=ko&gl=KR&ceid=KR:ko"},
			},
			UseEODHD:       true,
			UsePolygon:     false,
			MaxItems:       50,
			PerSourceLimit: 20,
			MaxAge:         36 * time.Hour,
			PromoKeywords:  []string{"광고", "협찬", "[AD]", "sponsored", "이벤트", "프로모션"},
			RequestTimeout: 30 * time.Second,
			UserAgent:      "Mozilla/5.0 (compatible; briefing/1.0)",
		},
		Market: MarketConfig{
			DefaultMarket:  "KOSPI",
			QuoteBatchSize: 5,
			QuoteBatchWait: 1 * time.Second,
			HistoryDays:    120,
		},
		EODHD: EODHDConfig{
			RateLimit: 10,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Timeout:     "2m",
			Temperature: 0.3,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-4-5",
			MaxTokens:   2048,
			Timeout:     "2m",
			Temperature: 0.3,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
			MaxNewsItems:    20,
		},
		Email: EmailConfig{
			Port:        587,
			FromName:    "Daily Briefing",
			UseTLS:      true,
			BatchSize:   10,
			BatchDelay:  1 * time.Second,
			SendTimeout: 30 * time.Second,
			AttachChart: true,
		},
		Telegram: TelegramConfig{
			BaseURL: "https://api.telegram.org",
			Timeout: 30 * time.Second,
		},
		Blog: BlogConfig{
			GitHub: GitHubBlogConfig{
				Branch:  "main",
				PostDir: "_posts",
			},
			REST: RESTBlogConfig{
				Status:  "publish",
				Timeout: 30 * time.Second,
			},
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 2 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2,
		},
		Watchlist: WatchlistConfig{
			MatchPolicy: "first_match",
			NamesFile:   "./names.yaml",
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := ValidateSchedule(config.Scheduler.Schedule); err != nil {
		return nil, fmt.Errorf("invalid scheduler.schedule: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies BRIEFING_* environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("BRIEFING_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("BRIEFING_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("BRIEFING_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if storageType := os.Getenv("BRIEFING_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}
	if badgerPath := os.Getenv("BRIEFING_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if dsn := os.Getenv("BRIEFING_DATABASE_URL"); dsn != "" {
		config.Storage.SQL.DSN = dsn
	} else if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		config.Storage.SQL.DSN = dsn
	}

	// Logging configuration
	if level := os.Getenv("BRIEFING_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("BRIEFING_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("BRIEFING_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Scheduler configuration
	if schedule := os.Getenv("BRIEFING_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}
	if enabled := os.Getenv("BRIEFING_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}

	// Market data providers
	if key := os.Getenv("BRIEFING_EODHD_API_KEY"); key != "" {
		config.EODHD.APIKey = key
	} else if key := os.Getenv("EODHD_API_KEY"); key != "" {
		config.EODHD.APIKey = key
	}
	if key := os.Getenv("BRIEFING_POLYGON_API_KEY"); key != "" {
		config.Polygon.APIKey = key
	} else if key := os.Getenv("POLYGON_API_KEY"); key != "" {
		config.Polygon.APIKey = key
	}

	// LLM configuration
	if provider := os.Getenv("BRIEFING_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
	if key := os.Getenv("BRIEFING_GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("BRIEFING_CLAUDE_API_KEY"); key != "" {
		config.Claude.APIKey = key
	} else if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}

	// Email configuration
	if host := os.Getenv("BRIEFING_SMTP_HOST"); host != "" {
		config.Email.Host = host
	}
	if port := os.Getenv("BRIEFING_SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Email.Port = p
		}
	}
	if user := os.Getenv("BRIEFING_SMTP_USERNAME"); user != "" {
		config.Email.Username = user
	}
	if password := os.Getenv("BRIEFING_SMTP_PASSWORD"); password != "" {
		config.Email.Password = password
	}
	if from := os.Getenv("BRIEFING_SMTP_FROM"); from != "" {
		config.Email.From = from
	}

	// Telegram configuration
	if token := os.Getenv("BRIEFING_TELEGRAM_BOT_TOKEN"); token != "" {
		config.Telegram.BotToken = token
	}
	if chatID := os.Getenv("BRIEFING_TELEGRAM_CHAT_ID"); chatID != "" {
		config.Telegram.ChatID = chatID
	}

	// Blog publishers
	if token := os.Getenv("BRIEFING_GITHUB_TOKEN"); token != "" {
		config.Blog.GitHub.Token = token
	}
	if secret := os.Getenv("BRIEFING_BLOG_CLIENT_SECRET"); secret != "" {
		config.Blog.REST.ClientSecret = secret
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ValidateSchedule validates a 5-field cron expression and rejects sub-5-minute intervals
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}

	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// EmailConfigured reports whether the SMTP channel has the settings it needs
func (c *Config) EmailConfigured() bool {
	return c.Email.Host != "" && c.Email.From != ""
}

// TelegramConfigured reports whether the bot channel has a token and target chat
func (c *Config) TelegramConfigured() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
