package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/briefing/internal/analyzer"
	"github.com/ternarybob/briefing/internal/briefing"
	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/delivery"
	"github.com/ternarybob/briefing/internal/eodhd"
	"github.com/ternarybob/briefing/internal/handlers"
	"github.com/ternarybob/briefing/internal/httpclient"
	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/llm"
	"github.com/ternarybob/briefing/internal/market"
	"github.com/ternarybob/briefing/internal/news"
	"github.com/ternarybob/briefing/internal/pipeline"
	"github.com/ternarybob/briefing/internal/scheduler"
	"github.com/ternarybob/briefing/internal/storage"
	"github.com/ternarybob/briefing/internal/watchlist"
)

const schedulerStopTimeout = 30 * time.Second

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	ctx       context.Context
	cancelCtx context.CancelFunc

	// Storage
	StorageManager interfaces.StorageManager

	// Services
	Market           *market.Router
	LLMService       interfaces.LLMService
	Pipeline         *pipeline.Pipeline
	Scheduler        *scheduler.Service
	WatchlistService *watchlist.Service
	NameTable        *watchlist.NameTable

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	BriefingHandler  *handlers.BriefingHandler
	AnalysisHandler  *handlers.AnalysisHandler
	WatchlistHandler *handlers.WatchlistHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	if err := app.initDatabase(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("storage", cfg.Storage.Type).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Str("schedule", cfg.Scheduler.Schedule).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return err
	}
	a.StorageManager = storageManager
	return nil
}

func (a *App) initServices() error {
	cfg := a.Config
	retry := common.NewRetryPolicy(cfg.Retry)
	defaultMarket := common.Market(cfg.Market.DefaultMarket)
	httpClient := httpclient.NewUserAgentClient(cfg.News.RequestTimeout, cfg.News.UserAgent)

	// Market data: EODHD serves KRX, Polygon serves US
	var krx, us interfaces.MarketDataProvider
	var eodhdClient *eodhd.Client
	if cfg.EODHD.APIKey != "" {
		opts := []eodhd.ClientOption{eodhd.WithLogger(a.Logger), eodhd.WithRateLimit(cfg.EODHD.RateLimit)}
		if cfg.EODHD.BaseURL != "" {
			opts = append(opts, eodhd.WithBaseURL(cfg.EODHD.BaseURL))
		}
		eodhdClient = eodhd.NewClient(cfg.EODHD.APIKey, opts...)
		krx = market.NewEODHDProvider(eodhdClient, defaultMarket, a.Logger)
	} else {
		a.Logger.Warn().Msg("EODHD api key not set, KRX quotes unavailable")
	}

	var polygonProvider *market.PolygonProvider
	if cfg.Polygon.APIKey != "" {
		polygonProvider = market.NewPolygonProvider(cfg.Polygon.APIKey, a.Logger)
		us = polygonProvider
	}
	a.Market = market.NewRouter(krx, us, cfg.Market, a.Logger)

	// News sources
	var sources []interfaces.NewsSource
	for _, feed := range cfg.News.Feeds {
		sources = append(sources, news.NewRSSSource(feed.Name, feed.URL, httpClient))
	}
	for _, src := range cfg.News.HTMLSources {
		sources = append(sources, news.NewHTMLSource(src, httpClient))
	}
	if cfg.News.UseEODHD && eodhdClient != nil {
		sources = append(sources, news.NewEODHDSource(eodhdClient, defaultMarket, cfg.News.PerSourceLimit, cfg.News.MaxAge))
	}
	if cfg.News.UsePolygon && polygonProvider != nil {
		sources = append(sources, news.NewPolygonSource(polygonProvider.Client(), cfg.News.PerSourceLimit))
	}
	collector := news.NewCollector(sources, cfg.News, a.Logger)
	a.Logger.Info().Int("sources", len(sources)).Msg("News collector initialized")

	// LLM is optional; the analyzer falls back to neutral reads without it
	llmService, err := llm.NewService(a.ctx, cfg, retry, a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("LLM service unavailable, analysis will be neutral")
	} else {
		a.LLMService = llmService
	}
	analysis := analyzer.NewAnalyzer(a.LLMService, cfg.LLM.MaxNewsItems, a.Logger)

	// Watchlist matching
	names, err := watchlist.LoadNameTable(cfg.Watchlist.NamesFile)
	if err != nil {
		a.Logger.Warn().Err(err).Str("path", cfg.Watchlist.NamesFile).Msg("Name table not loaded, matching on codes only")
		names = watchlist.NewNameTable(nil)
	}
	a.NameTable = names
	matcher := watchlist.NewMatcher(watchlist.ParseMatchPolicy(cfg.Watchlist.MatchPolicy), names, a.Logger)
	a.WatchlistService = watchlist.NewService(
		a.StorageManager.WatchlistStore(),
		a.StorageManager.SubscriberStore(),
		cfg.Market.DefaultMarket,
		a.Logger,
	)

	// Delivery channels
	var sender interfaces.EmailSender
	if smtpSender := delivery.NewSMTPSender(cfg.Email, a.Logger); smtpSender != nil {
		sender = smtpSender
	} else {
		a.warnChannelDisabled("email", cfg.Email.MissingKeys())
	}
	emailDispatcher := delivery.NewEmailDispatcher(sender, a.StorageManager.DeliveryLedger(), cfg.Email, a.Logger)

	var bot interfaces.BotSender
	if telegramBot := delivery.NewTelegramBot(cfg.Telegram, a.Logger); telegramBot != nil {
		if err := telegramBot.Authenticate(a.ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Telegram authentication failed, broadcasts may not be delivered")
		}
		bot = telegramBot
	} else {
		a.warnChannelDisabled("telegram", cfg.Telegram.MissingKeys())
	}

	var publishers []interfaces.Publisher
	if gh := delivery.NewGitHubPublisher(a.ctx, cfg.Blog.GitHub, a.Logger); gh != nil {
		publishers = append(publishers, gh)
	} else {
		a.warnChannelDisabled("blog.github", cfg.Blog.GitHub.MissingKeys())
	}
	if rest := delivery.NewRESTPublisher(cfg.Blog.REST, a.Logger); rest != nil {
		publishers = append(publishers, rest)
	} else {
		a.warnChannelDisabled("blog.rest", cfg.Blog.REST.MissingKeys())
	}
	a.Logger.Info().Int("publishers", len(publishers)).Bool("telegram", bot != nil).Msg("Delivery channels initialized")

	a.Pipeline = pipeline.New(pipeline.Deps{
		Collector:   collector,
		Market:      a.Market,
		Analyzer:    analysis,
		Matcher:     matcher,
		Composer:    briefing.NewComposer(nil),
		Subscribers: a.StorageManager.SubscriberStore(),
		Watchlists:  a.StorageManager.WatchlistStore(),
		Ledger:      a.StorageManager.DeliveryLedger(),
		Email:       emailDispatcher,
		Bot:         bot,
		Publisher:   delivery.NewPublishRunner(publishers, retry, a.Logger),
	}, pipeline.SettingsFromConfig(cfg), a.Logger)

	sched, err := scheduler.NewService(a.Pipeline, a.StorageManager.RunHistoryStore(), cfg.Scheduler, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if err := sched.LoadHistory(a.ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load run history")
	}
	a.Scheduler = sched

	return nil
}

// warnChannelDisabled names the keys that kept a delivery channel from starting
func (a *App) warnChannelDisabled(channel string, missing []string) {
	a.Logger.Warn().
		Str("channel", channel).
		Strs("missing", missing).
		Msg("Delivery channel disabled, required config keys not set")
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.BriefingHandler = handlers.NewBriefingHandler(a.ctx, a.Scheduler, a.Logger)
	a.AnalysisHandler = handlers.NewAnalysisHandler(a.Pipeline, a.Market, a.WatchlistService, a.Logger)
	a.WatchlistHandler = handlers.NewWatchlistHandler(a.WatchlistService, a.Logger)
}

// Start launches the cron scheduler when enabled
func (a *App) Start() error {
	if !a.Config.Scheduler.Enabled {
		a.Logger.Info().Msg("Scheduler disabled, runs only on demand")
		return nil
	}
	if err := a.Scheduler.Start(a.ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// Context is cancelled when the application closes
func (a *App) Context() context.Context {
	return a.ctx
}

// Close closes all application resources
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop(schedulerStopTimeout)
		a.Logger.Info().Msg("Scheduler stopped")
	}

	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
			return err
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
