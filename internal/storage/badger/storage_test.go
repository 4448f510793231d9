package badger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
)

func newTestManager(t *testing.T) interfaces.StorageManager {
	t.Helper()
	m, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestSubscriberStore(t *testing.T) {
	ctx := context.Background()
	store := newTestManager(t).SubscriberStore()

	now := time.Now()
	require.NoError(t, store.SaveSubscriber(ctx, &models.Subscriber{ID: "u1", Email: "a@x", PlanName: "pro", IsActive: true, CreatedAt: now}))
	require.NoError(t, store.SaveSubscriber(ctx, &models.Subscriber{ID: "u2", Email: "b@x", IsActive: false, CreatedAt: now}))
	require.NoError(t, store.SaveSubscriber(ctx, &models.Subscriber{ID: "u3", Email: "c@x", IsActive: true, CreatedAt: now.Add(time.Second)}))

	active, err := store.ListActiveSubscribers(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "u1", active[0].ID)

	_, err = store.GetSubscriber(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	require.NoError(t, store.SavePlan(ctx, &models.Plan{Name: "pro", Tier: models.TierPro, MaxWatchlist: 30, Features: []models.Feature{models.FeatureTechnicalAnalysis}}))
	plan, err := store.GetPlan(ctx, "pro")
	require.NoError(t, err)
	assert.True(t, plan.HasFeature(models.FeatureTechnicalAnalysis))
	_, err = store.GetPlan(ctx, "gold")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestWatchlistStore(t *testing.T) {
	ctx := context.Background()
	store := newTestManager(t).WatchlistStore()

	add := func(id, user, symbol string, limit int) error {
		return store.AddItem(ctx, &models.WatchlistItem{ID: id, UserID: user, Symbol: symbol, IsActive: true, CreatedAt: time.Now()}, limit)
	}

	require.NoError(t, add("w1", "u1", "005930.KS", 2))
	assert.ErrorIs(t, add("w2", "u1", "005930", 2), interfaces.ErrDuplicate)
	require.NoError(t, add("w3", "u1", "AAPL", 2))
	assert.ErrorIs(t, add("w4", "u1", "MSFT", 2), interfaces.ErrWatchlistLimit)
	require.NoError(t, add("w5", "u2", "005930.KS", 0))

	items, err := store.ListActiveItems(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	assert.ErrorIs(t, store.RemoveItem(ctx, "u2", "w1"), interfaces.ErrNotFound)
	require.NoError(t, store.RemoveItem(ctx, "u1", "w1"))
	assert.ErrorIs(t, store.RemoveItem(ctx, "u1", "w1"), interfaces.ErrNotFound)

	// soft-deleted symbols can be re-added
	require.NoError(t, add("w6", "u1", "005930.KS", 2))

	all, err := store.ListAllActive(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeliveryLedger_Idempotent(t *testing.T) {
	ctx := context.Background()
	ledger := newTestManager(t).DeliveryLedger()

	rec := func(user, url string) *models.DeliveryRecord {
		return &models.DeliveryRecord{ID: common.NewDeliveryID(), UserID: user, NewsURL: url, Channel: models.ChannelEmail, DeliveredAt: time.Now()}
	}

	inserted, err := ledger.Record(ctx, rec("u1", "https://n/1"))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = ledger.Record(ctx, rec("u1", "https://n/1/"))
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = ledger.Record(ctx, rec("u2", "https://n/1"))
	require.NoError(t, err)
	assert.True(t, inserted)

	urls, err := ledger.DeliveredURLs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"https://n/1": true}, urls)
}

func TestRunHistoryStore(t *testing.T) {
	ctx := context.Background()
	runs := newTestManager(t).RunHistoryStore()

	base := time.Date(2026, 10, 16, 7, 30, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, runs.SaveRun(ctx, &models.PublishingRunResult{
			RunID:     id,
			Status:    models.RunStatusSuccess,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Results:   []models.PublishResult{{Platform: "github", Success: true}},
		}))
	}

	list, err := runs.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r3", list[0].RunID)
	assert.Equal(t, "r2", list[1].RunID)
	assert.Equal(t, "github", list[0].Results[0].Platform)
}
