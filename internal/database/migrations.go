package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/mealtrail/internal/meals"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationRepairNegativeUsageCounts = "2026-07-18_repair_negative_usage_counts"

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
		{name: migrationRepairNegativeUsageCounts, apply: repairNegativeUsageCounts},
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

// Usage counters are monotonic and never decremented, so a negative value can
// only come from a corrupted import. Clamp them back to zero.
func repairNegativeUsageCounts(db *gorm.DB) error {
	if err := db.Model(&meals.Place{}).
		Where("usage_count < 0").
		Update("usage_count", 0).Error; err != nil {
		return err
	}
	return db.Model(&meals.MealItem{}).
		Where("usage_count < 0").
		Update("usage_count", 0).Error
}
