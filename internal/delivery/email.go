package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
)

// Email channel defaults
const (
	DefaultBatchSize   = 10
	DefaultBatchDelay  = 1 * time.Second
	DefaultSendTimeout = 30 * time.Second
)

// Recipient is one rendered email plus the alerts it carries
type Recipient struct {
	UserID  string
	Message interfaces.EmailMessage
	Alerts  []models.MatchedNews
}

// EmailReport is the outcome of one email fan-out
type EmailReport struct {
	Summary      models.ChannelSummary
	AlertsSent   int
	LedgerWrites int
	Errors       []string
}

// EmailDispatcher sends recipients in fixed-size concurrent batches separated by a delay
type EmailDispatcher struct {
	sender      interfaces.EmailSender
	ledger      interfaces.DeliveryLedger
	batchSize   int
	batchDelay  time.Duration
	sendTimeout time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
	logger      arbor.ILogger
}

// NewEmailDispatcher creates the email channel. A nil sender means the channel is not configured.
func NewEmailDispatcher(sender interfaces.EmailSender, ledger interfaces.DeliveryLedger, cfg common.EmailConfig, logger arbor.ILogger) *EmailDispatcher {
	d := &EmailDispatcher{
		sender:      sender,
		ledger:      ledger,
		batchSize:   cfg.BatchSize,
		batchDelay:  cfg.BatchDelay,
		sendTimeout: cfg.SendTimeout,
		sleep:       common.SleepContext,
		now:         time.Now,
		logger:      logger,
	}
	if d.batchSize <= 0 {
		d.batchSize = DefaultBatchSize
	}
	if d.batchDelay < 0 {
		d.batchDelay = DefaultBatchDelay
	}
	if d.sendTimeout <= 0 {
		d.sendTimeout = DefaultSendTimeout
	}
	return d
}

// WithSleep replaces the inter-batch wait, used by tests
func (d *EmailDispatcher) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *EmailDispatcher {
	d.sleep = sleep
	return d
}

// Configured reports whether a sender is wired
func (d *EmailDispatcher) Configured() bool {
	return d.sender != nil
}

type sendOutcome struct {
	err     error
	skipped bool
}

// Dispatch sends every recipient. One recipient's failure never blocks the others.
// Ledger records for a batch are written before the next batch starts.
func (d *EmailDispatcher) Dispatch(ctx context.Context, recipients []Recipient) EmailReport {
	var report EmailReport

	if d.sender == nil {
		d.logger.Warn().Int("recipients", len(recipients)).Msg("Email channel not configured, skipping")
		report.Summary.Skipped = len(recipients)
		return report
	}

	for start := 0; start < len(recipients); start += d.batchSize {
		if start > 0 && d.batchDelay > 0 {
			if err := d.sleep(ctx, d.batchDelay); err != nil {
				remaining := len(recipients) - start
				report.Summary.Skipped += remaining
				report.Errors = append(report.Errors, fmt.Sprintf("email: cancelled with %d recipients pending: %v", remaining, err))
				return report
			}
		}

		end := start + d.batchSize
		if end > len(recipients) {
			end = len(recipients)
		}
		batch := recipients[start:end]
		report.Summary.Batches++

		outcomes := d.sendBatch(ctx, report.Summary.Batches, batch)

		for i, outcome := range outcomes {
			r := batch[i]
			switch {
			case outcome.skipped:
				report.Summary.Skipped++
			case outcome.err != nil:
				report.Summary.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("email %s: %v", r.UserID, outcome.err))
			default:
				report.Summary.Sent++
				report.AlertsSent += len(r.Alerts)
				report.LedgerWrites += d.record(ctx, r)
			}
		}
	}

	d.logger.Info().
		Int("sent", report.Summary.Sent).
		Int("failed", report.Summary.Failed).
		Int("skipped", report.Summary.Skipped).
		Int("batches", report.Summary.Batches).
		Int("ledger_writes", report.LedgerWrites).
		Msg("Email dispatch completed")

	return report
}

func (d *EmailDispatcher) sendBatch(ctx context.Context, batchNum int, batch []Recipient) []sendOutcome {
	outcomes := make([]sendOutcome, len(batch))
	var wg sync.WaitGroup

	for i := range batch {
		i := i
		r := batch[i]
		if r.Message.To == "" {
			outcomes[i] = sendOutcome{skipped: true}
			continue
		}

		wg.Add(1)
		outcomes[i] = sendOutcome{err: errors.New("send did not complete")}
		common.SafeGo(d.logger, &wg, fmt.Sprintf("email-batch-%d-%d", batchNum, i), func() {
			sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
			defer cancel()

			err := d.sender.Send(sendCtx, r.Message)
			switch {
			case err == nil:
				outcomes[i] = sendOutcome{}
			case errors.Is(err, context.DeadlineExceeded) || errors.Is(sendCtx.Err(), context.DeadlineExceeded):
				d.logger.Warn().Str("user_id", r.UserID).Dur("timeout", d.sendTimeout).Msg("Email send timed out, user skipped this cycle")
				outcomes[i] = sendOutcome{skipped: true}
			default:
				d.logger.Error().Err(err).Str("user_id", r.UserID).Msg("Email send failed")
				outcomes[i] = sendOutcome{err: err}
			}
		})
	}

	wg.Wait()
	return outcomes
}

// record writes one ledger entry per delivered alert. Duplicates and write errors are not run errors.
func (d *EmailDispatcher) record(ctx context.Context, r Recipient) int {
	if d.ledger == nil {
		return 0
	}

	written := 0
	for _, alert := range r.Alerts {
		inserted, err := d.ledger.Record(ctx, &models.DeliveryRecord{
			ID:          common.NewDeliveryID(),
			UserID:      r.UserID,
			WatchlistID: alert.Item.ID,
			NewsURL:     alert.News.LinkKey(),
			Channel:     models.ChannelEmail,
			DeliveredAt: d.now(),
		})
		if err != nil {
			d.logger.Warn().Err(err).Str("user_id", r.UserID).Str("url", alert.News.Link).Msg("Failed to write delivery record")
			continue
		}
		if inserted {
			written++
		}
	}
	return written
}
