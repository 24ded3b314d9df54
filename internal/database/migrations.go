package database

import (
	"github.com/weiwangfds/datashare/internal/logger"
	"gorm.io/gorm"
)

// Migrate creates or updates the tables and their secondary indexes
func Migrate(db *gorm.DB) error {
	logger.Info("running database migrations...")

	if err := db.AutoMigrate(
		&User{},
		&Dataset{},
		&DownloadEvent{},
	); err != nil {
		return err
	}

	if err := createIndexes(db); err != nil {
		return err
	}

	logger.Info("database migrations complete")
	return nil
}

// createIndexes adds the composite indexes the listing and report queries rely on
func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// newest first listing, optionally per owner
		"CREATE INDEX IF NOT EXISTS idx_datasets_created ON datasets(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_datasets_owner_created ON datasets(user_id, created_at DESC)",
		// top datasets report
		"CREATE INDEX IF NOT EXISTS idx_datasets_downloads ON datasets(downloads DESC)",
		// per-dataset audit lookups
		"CREATE INDEX IF NOT EXISTS idx_download_events_dataset_at ON download_events(dataset_id, downloaded_at DESC)",
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			logger.Errorf("failed to create index: %s, error: %v", indexSQL, err)
			return err
		}
	}
	return nil
}
