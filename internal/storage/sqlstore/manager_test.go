package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"gorm.io/gorm"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
)

func newTestManager(t *testing.T) interfaces.StorageManager {
	t.Helper()
	m, err := NewManager(arbor.NewLogger(), "sqlite", &common.SQLConfig{
		DSN:         filepath.Join(t.TempDir(), "briefing.db"),
		AutoMigrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open("sqlite", &common.SQLConfig{}, arbor.NewLogger())
	assert.Error(t, err)
	_, err = Open("oracle", &common.SQLConfig{DSN: "x"}, arbor.NewLogger())
	assert.Error(t, err)
}

func TestSubscribersAndPlans(t *testing.T) {
	ctx := context.Background()
	store := newTestManager(t).SubscriberStore()

	require.NoError(t, store.SaveSubscriber(ctx, &models.Subscriber{ID: "u1", Email: "a@x", PlanName: "basic", IsActive: true,
		Entitlements: []models.Feature{models.FeatureStockAnalysis}, CreatedAt: time.Now()}))
	require.NoError(t, store.SaveSubscriber(ctx, &models.Subscriber{ID: "u2", Email: "b@x", IsActive: false, CreatedAt: time.Now()}))

	active, err := store.ListActiveSubscribers(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].Entitled(models.FeatureStockAnalysis))

	require.NoError(t, store.SavePlan(ctx, &models.Plan{Name: "basic", Tier: models.TierBasic, MaxWatchlist: 10}))
	plan, err := store.GetPlan(ctx, "basic")
	require.NoError(t, err)
	assert.Equal(t, 10, plan.MaxWatchlist)

	_, err = store.GetSubscriber(ctx, "nobody")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestWatchlist(t *testing.T) {
	ctx := context.Background()
	store := newTestManager(t).WatchlistStore()

	add := func(id, symbol string) error {
		return store.AddItem(ctx, &models.WatchlistItem{ID: id, UserID: "u1", Symbol: symbol, IsActive: true, CreatedAt: time.Now()}, 2)
	}
	require.NoError(t, add("w1", "005930.KS"))
	assert.ErrorIs(t, add("w2", "KRX:005930"), interfaces.ErrDuplicate)
	require.NoError(t, add("w3", "AAPL"))
	assert.ErrorIs(t, add("w4", "TSLA"), interfaces.ErrWatchlistLimit)

	require.NoError(t, store.RemoveItem(ctx, "u1", "w3"))
	assert.ErrorIs(t, store.RemoveItem(ctx, "u1", "w3"), interfaces.ErrNotFound)

	items, err := store.ListActiveItems(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "w1", items[0].ID)
}

func TestLedgerOnConflictDoNothing(t *testing.T) {
	ctx := context.Background()
	ledger := newTestManager(t).DeliveryLedger()

	inserted, err := ledger.Record(ctx, &models.DeliveryRecord{UserID: "u1", NewsURL: "https://n/1", Channel: models.ChannelEmail})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = ledger.Record(ctx, &models.DeliveryRecord{UserID: "u1", NewsURL: "https://n/1/", Channel: models.ChannelEmail})
	require.NoError(t, err)
	assert.False(t, inserted)

	urls, err := ledger.DeliveredURLs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"https://n/1": true}, urls)
}

func TestRunHistory(t *testing.T) {
	ctx := context.Background()
	runs := newTestManager(t).RunHistoryStore()

	base := time.Date(2026, 10, 16, 7, 30, 0, 0, time.UTC)
	require.NoError(t, runs.SaveRun(ctx, &models.PublishingRunResult{RunID: "r1", StartedAt: base, Errors: []string{"bot: down"}}))
	require.NoError(t, runs.SaveRun(ctx, &models.PublishingRunResult{RunID: "r2", StartedAt: base.Add(time.Hour),
		Emails: models.ChannelSummary{Sent: 3, Batches: 1}}))

	list, err := runs.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r2", list[0].RunID)
	assert.Equal(t, 3, list[0].Emails.Sent)
	assert.Equal(t, []string{"bot: down"}, list[1].Errors)
}

func TestWatchlist_ActiveCodeIndex(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t).(*Manager)

	// A row committed by another writer between the read and the insert
	require.NoError(t, m.db.Create(&models.WatchlistItem{ID: "w1", UserID: "u1", Symbol: "raced", Code: "005930", IsActive: true}).Error)

	err := m.AddItem(ctx, &models.WatchlistItem{ID: "w2", UserID: "u1", Symbol: "005930.KS", IsActive: true}, 0)
	assert.ErrorIs(t, err, interfaces.ErrDuplicate)

	err = m.db.Create(&models.WatchlistItem{ID: "w3", UserID: "u1", Symbol: "005930.KQ", Code: "005930", IsActive: true}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// Removed rows do not block a re-add
	require.NoError(t, m.RemoveItem(ctx, "u1", "w1"))
	require.NoError(t, m.AddItem(ctx, &models.WatchlistItem{ID: "w4", UserID: "u1", Symbol: "005930.KS", IsActive: true}, 0))
	require.NoError(t, m.RemoveItem(ctx, "u1", "w4"))
	require.NoError(t, m.AddItem(ctx, &models.WatchlistItem{ID: "w5", UserID: "u1", Symbol: "KRX:005930", IsActive: true}, 0))

	items, err := m.ListActiveItems(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "005930", items[0].Code)
}
