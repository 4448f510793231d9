package interfaces

import (
	"context"

	"github.com/ternarybob/briefing/internal/models"
)

// NewsSource fetches recent articles for a topic query. An empty query means the source default.
type NewsSource interface {
	Name() string
	Fetch(ctx context.Context, query string) ([]models.NewsItem, error)
}
