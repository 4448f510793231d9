package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/analyzer"
	"github.com/ternarybob/briefing/internal/briefing"
	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/delivery"
	"github.com/ternarybob/briefing/internal/entitlement"
	"github.com/ternarybob/briefing/internal/indicators"
	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
	"github.com/ternarybob/briefing/internal/watchlist"
)

// Triggers recorded on run results
const (
	TriggerCron   = "cron"
	TriggerManual = "manual"
	TriggerAPI    = "api"
	TriggerMCP    = "mcp"
)

const defaultHistoryDays = 120

// ErrInvalidSymbol is returned by AnalyzeSymbol for an unparseable symbol
var ErrInvalidSymbol = errors.New("invalid symbol")

// NewsCollector gathers the news batch for one run
type NewsCollector interface {
	Collect(ctx context.Context) []models.NewsItem
}

// MarketData is a market provider that can also resolve quotes in paced batches
type MarketData interface {
	interfaces.MarketDataProvider
	Quotes(ctx context.Context, symbols []string) map[string]*models.Quote
}

// Deps are the collaborators of one pipeline, constructed once at startup.
// Bot and Publisher may be nil when those channels are not configured.
type Deps struct {
	Collector   NewsCollector
	Market      MarketData
	Analyzer    *analyzer.Analyzer
	Matcher     *watchlist.Matcher
	Composer    *briefing.Composer
	Subscribers interfaces.SubscriberStore
	Watchlists  interfaces.WatchlistStore
	Ledger      interfaces.DeliveryLedger
	Email       *delivery.EmailDispatcher
	Bot         interfaces.BotSender
	Publisher   *delivery.PublishRunner
}

// Settings are the tunables read from config
type Settings struct {
	DefaultMarket      string
	HistoryDays        int
	UnsubscribeBaseURL string
	AttachChart        bool
}

// SettingsFromConfig extracts pipeline settings
func SettingsFromConfig(config *common.Config) Settings {
	return Settings{
		DefaultMarket:      config.Market.DefaultMarket,
		HistoryDays:        config.Market.HistoryDays,
		UnsubscribeBaseURL: config.Email.BaseURL,
		AttachChart:        config.Email.AttachChart,
	}
}

// RunOptions parameterise one cycle. A non-empty BriefingText skips collection,
// analysis and email and publishes the given markdown to the bot and blogs.
type RunOptions struct {
	BriefingText string
	Trigger      string
}

// Pipeline runs the collect, analyze, match, compose and deliver stages in order
type Pipeline struct {
	deps     Deps
	settings Settings
	logger   arbor.ILogger
	now      func() time.Time
}

// New creates a pipeline
func New(deps Deps, settings Settings, logger arbor.ILogger) *Pipeline {
	if settings.HistoryDays <= 0 {
		settings.HistoryDays = defaultHistoryDays
	}
	if deps.Composer == nil {
		deps.Composer = briefing.NewComposer(nil)
	}
	if deps.Analyzer == nil {
		deps.Analyzer = analyzer.NewAnalyzer(nil, 0, logger)
	}
	return &Pipeline{
		deps:     deps,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// recipient pairs an active subscriber with the resolved plan and watchlist
type recipient struct {
	sub   models.Subscriber
	tier  models.Tier
	items []models.WatchlistItem
}

// RunCycle executes one full briefing cycle. Stage failures are recorded on the
// result; the method itself never fails.
func (p *Pipeline) RunCycle(ctx context.Context, opts RunOptions) models.PublishingRunResult {
	result := models.PublishingRunResult{
		RunID:     common.NewRunID(),
		Trigger:   opts.Trigger,
		StartedAt: p.now(),
		Results:   []models.PublishResult{},
		Errors:    []string{},
	}
	if result.Trigger == "" {
		result.Trigger = TriggerManual
	}

	p.logger.Info().Str("run_id", result.RunID).Str("trigger", result.Trigger).Msg("Briefing run started")

	var public briefing.Briefing
	var markdown string
	supplied := strings.TrimSpace(opts.BriefingText) != ""
	if supplied {
		markdown = opts.BriefingText
		public = briefing.Briefing{Tier: models.TierFree, Date: result.StartedAt}
	} else {
		public, markdown = p.personalizedStages(ctx, &result)
	}

	p.broadcast(ctx, &result, public, markdown, supplied)
	p.publishBlog(ctx, &result, public, markdown)

	p.finish(&result)
	return result
}

// personalizedStages runs collection through email delivery and returns the free-tier briefing
func (p *Pipeline) personalizedStages(ctx context.Context, result *models.PublishingRunResult) (briefing.Briefing, string) {
	news := p.collect(ctx)
	result.NewsCount = len(news)

	summary := p.deps.Analyzer.SummarizeNews(ctx, news)
	date := result.StartedAt

	public := p.deps.Composer.Compose(models.TierFree, briefing.Input{Date: date, Summary: summary})
	markdown := briefing.RenderMarkdown(public)

	recipients, err := p.loadRecipients(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return public, markdown
	}
	if len(recipients) == 0 {
		p.logger.Info().Msg("No active subscribers, skipping personalized delivery")
		return public, markdown
	}

	alerts := p.matchAlerts(ctx, result, news, recipients)
	symbols := p.loadSymbols(ctx, recipients)

	emails := make([]delivery.Recipient, 0, len(recipients))
	for _, r := range recipients {
		msg, err := p.renderEmail(r, date, summary, symbols, alerts[r.sub.ID])
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("compose %s: %v", r.sub.ID, err))
			continue
		}
		emails = append(emails, delivery.Recipient{UserID: r.sub.ID, Message: msg, Alerts: alerts[r.sub.ID]})
	}

	if p.deps.Email != nil {
		report := p.deps.Email.Dispatch(ctx, emails)
		result.Emails = report.Summary
		result.AlertsSent = report.AlertsSent
		result.LedgerWrite = report.LedgerWrites
		result.Errors = append(result.Errors, report.Errors...)
	} else {
		result.Emails.Skipped = len(emails)
	}

	return public, markdown
}

func (p *Pipeline) collect(ctx context.Context) []models.NewsItem {
	if p.deps.Collector == nil {
		return nil
	}
	news := p.deps.Collector.Collect(ctx)
	p.logger.Info().Int("items", len(news)).Msg("News collected")
	return news
}

// loadRecipients resolves active subscribers, their tier and active watchlist
func (p *Pipeline) loadRecipients(ctx context.Context) ([]recipient, error) {
	if p.deps.Subscribers == nil {
		return nil, nil
	}
	subs, err := p.deps.Subscribers.ListActiveSubscribers(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribers: %w", err)
	}

	byUser := map[string][]models.WatchlistItem{}
	if p.deps.Watchlists != nil {
		items, err := p.deps.Watchlists.ListAllActive(ctx)
		if err != nil {
			p.logger.Warn().Err(err).Msg("Failed to load watchlists, continuing without alerts")
		}
		for _, item := range items {
			byUser[item.UserID] = append(byUser[item.UserID], item)
		}
	}

	plans := map[string]*models.Plan{}
	out := make([]recipient, 0, len(subs))
	for _, sub := range subs {
		plan, seen := plans[sub.PlanName]
		if !seen {
			plan, err = p.deps.Subscribers.GetPlan(ctx, sub.PlanName)
			if err != nil {
				plan = nil
			}
			plans[sub.PlanName] = plan
		}

		tier := entitlement.EffectiveTier(sub, plan)
		if tier == models.TierFree && entitlement.AllowsTechnical(sub, plan) {
			tier = models.TierBasic
		}
		out = append(out, recipient{sub: sub, tier: tier, items: byUser[sub.ID]})
	}
	return out, nil
}

// matchAlerts links news to watchlists and drops URLs already delivered
func (p *Pipeline) matchAlerts(ctx context.Context, result *models.PublishingRunResult, news []models.NewsItem, recipients []recipient) map[string][]models.MatchedNews {
	if p.deps.Matcher == nil || len(news) == 0 {
		return map[string][]models.MatchedNews{}
	}

	var entries []models.WatchlistItem
	for _, r := range recipients {
		entries = append(entries, r.items...)
	}

	grouped := p.deps.Matcher.Match(news, entries)
	if p.deps.Ledger == nil {
		return grouped
	}

	filtered, err := p.deps.Matcher.FilterDelivered(ctx, p.deps.Ledger, grouped)
	if err != nil {
		// Without the ledger nothing can be proven undelivered
		result.Errors = append(result.Errors, fmt.Sprintf("ledger: %v", err))
		return map[string][]models.MatchedNews{}
	}
	return filtered
}

// loadSymbols fetches quotes, history, indicators and (for pro watchers) the LLM read
// for every symbol watched by a paying subscriber
func (p *Pipeline) loadSymbols(ctx context.Context, recipients []recipient) map[string]briefing.SymbolData {
	names := map[string]string{}
	pro := map[string]bool{}
	var symbols []string
	for _, r := range recipients {
		if r.tier == models.TierFree {
			continue
		}
		for _, item := range r.items {
			if _, ok := names[item.Symbol]; !ok {
				names[item.Symbol] = item.Name
				symbols = append(symbols, item.Symbol)
			}
			if r.tier == models.TierPro {
				pro[item.Symbol] = true
			}
		}
	}

	data := make(map[string]briefing.SymbolData, len(symbols))
	if len(symbols) == 0 || p.deps.Market == nil {
		return data
	}

	quotes := p.deps.Market.Quotes(ctx, symbols)
	end := p.now()
	start := end.AddDate(0, 0, -p.settings.HistoryDays)

	for _, symbol := range symbols {
		d := briefing.SymbolData{Symbol: symbol, Name: names[symbol], Quote: quotes[symbol]}

		bars, err := p.deps.Market.Historical(ctx, symbol, start, end)
		if err != nil {
			p.logger.Warn().Err(err).Str("symbol", symbol).Msg("History lookup failed, indicators unavailable")
		}
		d.Bars = bars

		price := 0.0
		if d.Quote != nil {
			price = d.Quote.Price
		}
		d.Analysis = indicators.Analyze(bars, price)

		if pro[symbol] {
			d.Read = p.deps.Analyzer.TechnicalRead(ctx, symbol, d.Name, d.Analysis)
		} else {
			d.Read = analyzer.NeutralRead(symbol)
		}
		data[symbol] = d
	}
	return data
}

func (p *Pipeline) renderEmail(r recipient, date time.Time, summary analyzer.NewsSummary, symbols map[string]briefing.SymbolData, alerts []models.MatchedNews) (interfaces.EmailMessage, error) {
	in := briefing.Input{Date: date, Summary: summary, Alerts: alerts}
	if r.tier != models.TierFree {
		for _, item := range r.items {
			if d, ok := symbols[item.Symbol]; ok {
				in.Symbols = append(in.Symbols, d)
			}
		}
	}

	b := p.deps.Composer.Compose(r.tier, in)
	markdown := briefing.RenderMarkdown(b)
	html, err := briefing.RenderEmailHTML(markdown, p.unsubscribeURL(r.sub))
	if err != nil {
		return interfaces.EmailMessage{}, err
	}

	msg := interfaces.EmailMessage{
		To:      r.sub.Email,
		Subject: briefing.Title(b),
		HTML:    html,
		Text:    markdown,
	}

	if p.settings.AttachChart {
		for _, t := range b.Technical {
			png, err := briefing.RenderChart(t)
			if err != nil {
				continue
			}
			msg.Attachments = append(msg.Attachments, interfaces.Attachment{
				Filename:    common.StripSuffix(t.Symbol) + ".png",
				ContentType: "image/png",
				Data:        png,
			})
		}
	}
	return msg, nil
}

func (p *Pipeline) unsubscribeURL(sub models.Subscriber) string {
	if p.settings.UnsubscribeBaseURL == "" || sub.UnsubscribeToken == "" {
		return ""
	}
	return strings.TrimRight(p.settings.UnsubscribeBaseURL, "/") + "/unsubscribe?token=" + url.QueryEscape(sub.UnsubscribeToken)
}

// broadcast sends the bot message. A bot failure is recorded and the run continues.
func (p *Pipeline) broadcast(ctx context.Context, result *models.PublishingRunResult, public briefing.Briefing, markdown string, supplied bool) {
	if p.deps.Bot == nil {
		p.logger.Debug().Msg("Telegram channel not configured, skipping broadcast")
		return
	}

	text := briefing.RenderTelegram(public)
	if supplied {
		text = briefing.RenderTelegramText(briefing.Title(public), markdown)
	}

	pr := models.PublishResult{Platform: string(models.ChannelTelegram), Attempts: 1}
	if err := p.deps.Bot.Broadcast(ctx, text); err != nil {
		p.logger.Error().Err(err).Msg("Telegram broadcast failed, continuing")
		pr.Error = err.Error()
		result.Errors = append(result.Errors, fmt.Sprintf("telegram: %v", err))
	} else {
		pr.Success = true
	}
	result.Results = append(result.Results, pr)
}

func (p *Pipeline) publishBlog(ctx context.Context, result *models.PublishingRunResult, public briefing.Briefing, markdown string) {
	if p.deps.Publisher == nil || len(p.deps.Publisher.Publishers()) == 0 {
		return
	}

	title := briefing.Title(public)
	post := interfaces.BlogPost{
		Title: title,
		Slug:  delivery.Slugify(title),
		Body:  markdown,
		Tags:  public.Market.Keywords,
		Date:  public.Date,
	}

	for _, pr := range p.deps.Publisher.PublishAll(ctx, post) {
		result.Results = append(result.Results, pr)
		if !pr.Success {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", pr.Platform, pr.Error))
		}
	}
}

// finish sets the terminal status. Blog outcomes decide success when any blog
// publisher ran: one successful platform is enough.
func (p *Pipeline) finish(result *models.PublishingRunResult) {
	result.FinishedAt = p.now()

	var blog []models.PublishResult
	for _, r := range result.Results {
		if r.Platform != string(models.ChannelTelegram) {
			blog = append(blog, r)
		}
	}

	switch {
	case len(blog) > 0 && !delivery.AnySucceeded(blog):
		result.Status = models.RunStatusFailed
	case len(blog) == 0 && result.Emails.Sent == 0 && result.Emails.Failed > 0:
		result.Status = models.RunStatusFailed
	case len(result.Errors) > 0:
		result.Status = models.RunStatusPartial
	default:
		result.Status = models.RunStatusSuccess
	}
	result.Success = result.Status != models.RunStatusFailed

	p.logger.Info().
		Str("run_id", result.RunID).
		Str("status", string(result.Status)).
		Int("news", result.NewsCount).
		Int("emails_sent", result.Emails.Sent).
		Int("alerts", result.AlertsSent).
		Int("errors", len(result.Errors)).
		Dur("duration", result.Duration()).
		Msg("Briefing run finished")
}

// AnalyzeSymbol computes the tier-filtered indicator view for one symbol on demand
func (p *Pipeline) AnalyzeSymbol(ctx context.Context, symbol string, tier models.Tier) (briefing.SymbolView, error) {
	sym := common.ParseSymbol(symbol, common.Market(p.settings.DefaultMarket))
	if sym.Code == "" {
		return briefing.SymbolView{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	if p.deps.Market == nil {
		return briefing.SymbolView{}, errors.New("market data not configured")
	}
	display := sym.DisplaySymbol()

	quote, quoteErr := p.deps.Market.Quote(ctx, display)
	end := p.now()
	bars, histErr := p.deps.Market.Historical(ctx, display, end.AddDate(0, 0, -p.settings.HistoryDays), end)
	if quoteErr != nil && histErr != nil {
		return briefing.SymbolView{}, fmt.Errorf("market data for %s: %w", display, errors.Join(quoteErr, histErr))
	}

	d := briefing.SymbolData{Symbol: display, Quote: quote, Bars: bars}
	price := 0.0
	if quote != nil {
		price = quote.Price
		d.Name = quote.Name
	}
	d.Analysis = indicators.Analyze(bars, price)

	if tier == models.TierPro {
		d.Read = p.deps.Analyzer.TechnicalRead(ctx, display, d.Name, d.Analysis)
	} else {
		d.Read = analyzer.NeutralRead(display)
	}

	return p.deps.Composer.ComposeSymbol(tier, d), nil
}
