package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/models"
)

// normalizeLegacyAPIIDs turns empty-string api_id values into NULL.
// Hand-seeded rows written before the unique indexes existed used '' for
// "not linked", which would collide under a unique index and never match the
// partial index on unlinked card numbers.
// This runs BEFORE AutoMigrate to prevent constraint violations
func normalizeLegacyAPIIDs(db *gorm.DB, log *zap.Logger) error {
	for _, table := range []string{"sets", "cards"} {
		if !db.Migrator().HasTable(table) || !db.Migrator().HasColumn(table, "api_id") {
			continue
		}
		result := db.Exec("UPDATE " + table + " SET api_id = NULL WHERE api_id = ''")
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			log.Info("Normalized legacy api_id values",
				zap.String("table", table), zap.Int64("rows", result.RowsAffected))
		}
	}
	return nil
}

// RunMigrations runs any custom data migrations after schema changes
func RunMigrations(db *gorm.DB, log *zap.Logger) error {
	if err := backfillRarityCodes(db, log); err != nil {
		return err
	}
	return migrateCollectionDefaults(db)
}

// backfillRarityCodes gives every rarity created without a code the same
// code an import would have generated.
func backfillRarityCodes(db *gorm.DB, log *zap.Logger) error {
	var rarities []models.Rarity
	if err := db.Where("code IS NULL OR code = ''").Find(&rarities).Error; err != nil {
		return fmt.Errorf("failed to load rarities without code: %w", err)
	}
	for _, r := range rarities {
		if err := db.Model(&models.Rarity{}).Where("id = ?", r.ID).
			Update("code", GenerateRarityCode(r.Name)).Error; err != nil {
			return fmt.Errorf("failed to backfill rarity code for %q: %w", r.Name, err)
		}
	}
	if len(rarities) > 0 {
		log.Info("Backfilled rarity codes", zap.Int("rows", len(rarities)))
	}
	return nil
}

func migrateCollectionDefaults(db *gorm.DB) error {
	if err := db.Exec(`UPDATE collection_items SET variant = ? WHERE variant IS NULL OR variant = ''`,
		models.VariantStandard).Error; err != nil {
		return fmt.Errorf("failed to default collection variants: %w", err)
	}
	if err := db.Exec(`UPDATE collection_items SET condition = ? WHERE condition IS NULL OR condition = ''`,
		models.ConditionNearMint).Error; err != nil {
		return fmt.Errorf("failed to default collection conditions: %w", err)
	}
	return nil
}

// Seed inserts the languages and sentinel taxonomy rows every import relies
// on. Existing rows are left untouched.
func Seed(db *gorm.DB) error {
	languages := []models.Language{
		{Code: models.DefaultLanguage, Name: "English"},
		{Code: models.LanguageJapanese, Name: "Japanese"},
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&languages).Error; err != nil {
		return fmt.Errorf("failed to seed languages: %w", err)
	}

	var rarities []models.Rarity
	for i, name := range models.DefaultRarities() {
		rarities = append(rarities, models.Rarity{Code: GenerateRarityCode(name), Name: name, SortOrder: i + 1})
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rarities).Error; err != nil {
		return fmt.Errorf("failed to seed rarities: %w", err)
	}

	var cardTypes []models.CardType
	for _, name := range models.DefaultCardTypes() {
		cardTypes = append(cardTypes, models.CardType{Name: name})
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&cardTypes).Error; err != nil {
		return fmt.Errorf("failed to seed card types: %w", err)
	}

	var energyTypes []models.EnergyType
	for _, name := range models.DefaultEnergyTypes() {
		energyTypes = append(energyTypes, models.EnergyType{Name: name})
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&energyTypes).Error; err != nil {
		return fmt.Errorf("failed to seed energy types: %w", err)
	}
	return nil
}
