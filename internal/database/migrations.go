package database

import (
	"errors"
	"time"

	"github.com/auditfront/triagesync/internal/filing"
	"github.com/auditfront/triagesync/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationNormalizeFilingKeys = "2026-08-12_normalize_empty_filing_keys"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeFilingKeys, apply: normalizeEmptyFilingKeys},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows written by older clients left the filing key blank; the engine treats
// the "none" sentinel as the unfiled state.
func normalizeEmptyFilingKeys(db *gorm.DB) error {
	return db.Model(&store.FindingRow{}).
		Where("filing_key = ''").
		Update("filing_key", filing.KeyNone).Error
}
