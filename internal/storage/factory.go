package storage

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/storage/badger"
	"github.com/ternarybob/briefing/internal/storage/sqlstore"
)

// NewStorageManager creates a storage manager based on config.Storage.Type
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	switch strings.ToLower(config.Storage.Type) {
	case "", "badger":
		return badger.NewManager(logger, &config.Storage.Badger)
	case "postgres", "postgresql", "sqlite", "sqlite3":
		return sqlstore.NewManager(logger, config.Storage.Type, &config.Storage.SQL)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (expected badger, postgres or sqlite)", config.Storage.Type)
	}
}
