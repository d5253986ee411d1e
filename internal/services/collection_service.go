package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/metrics"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/models"
)

// Maximum quantity allowed per collection item
const maxQuantity = 9999

var ErrNoUpdateFields = errors.New("at least one field must be provided")

// ValidationError is a rejected collection request
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const collectionEntryColumns = `collection_items.id AS collection_id, collection_items.card_id,
	sets.set_code, languages.code AS language, cards.card_number, cards.name, rarities.name AS rarity,
	collection_items.variant, collection_items.quantity, collection_items.condition,
	collection_items.is_graded, collection_items.grading_company, collection_items.grade,
	collection_items.date_acquired, collection_items.purchase_price_usd, cards.image_path`

// CollectionService manages the owned-card ledger
type CollectionService struct {
	db           *gorm.DB
	imageBaseURL string
	logger       *zap.Logger
}

func NewCollectionService(db *gorm.DB, imageBaseURL string, logger *zap.Logger) *CollectionService {
	return &CollectionService{db: db, imageBaseURL: imageBaseURL, logger: logger.Named("collection")}
}

// List returns every collection entry joined with its card
func (s *CollectionService) List(ctx context.Context) ([]models.CollectionEntry, error) {
	var entries []models.CollectionEntry
	err := s.joinedEntries(ctx).
		Order("sets.set_code").
		Order("cards.card_number").
		Order("collection_items.id").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].ImageURL = ImageURL(s.imageBaseURL, entries[i].ImagePath)
	}
	if entries == nil {
		entries = []models.CollectionEntry{}
	}
	return entries, nil
}

// Get returns one entry or nil when it does not exist
func (s *CollectionService) Get(ctx context.Context, id uint) (*models.CollectionEntry, error) {
	var entries []models.CollectionEntry
	err := s.joinedEntries(ctx).Where("collection_items.id = ?", id).Limit(1).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	entry := entries[0]
	entry.ImageURL = ImageURL(s.imageBaseURL, entry.ImagePath)
	return &entry, nil
}

// Add records a new (card, variant, condition) entry. Duplicates and unknown
// cards surface as database errors the caller can classify with
// database.KindOf.
func (s *CollectionService) Add(ctx context.Context, req models.AddToCollectionRequest) (*models.CollectionItem, error) {
	variant := req.Variant
	if variant == "" {
		variant = models.VariantStandard
	}
	condition := req.Condition
	if condition == "" {
		condition = models.ConditionNearMint
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	if err := validateEntry(&variant, &condition, &quantity); err != nil {
		return nil, err
	}

	item := models.CollectionItem{
		CardID:           req.CardID,
		Variant:          variant,
		Condition:        condition,
		Quantity:         quantity,
		IsGraded:         req.IsGraded,
		GradingCompany:   req.GradingCompany,
		Grade:            req.Grade,
		DateAcquired:     req.DateAcquired,
		PurchasePriceUSD: req.PurchasePriceUSD,
		Notes:            req.Notes,
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&item).Error; err != nil {
		return nil, err
	}

	s.logger.Info("Added to collection",
		zap.Uint("collection_id", item.ID), zap.Uint("card_id", item.CardID),
		zap.String("variant", string(item.Variant)), zap.String("condition", string(item.Condition)))
	s.refreshMetrics(ctx)
	return &item, nil
}

// Update applies the provided fields. It returns nil when the entry does not
// exist and ErrNoUpdateFields when req is empty.
func (s *CollectionService) Update(ctx context.Context, id uint, req models.UpdateCollectionRequest) (*models.CollectionItem, error) {
	if err := validateEntry(req.Variant, req.Condition, req.Quantity); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Variant != nil {
		fields["variant"] = *req.Variant
	}
	if req.Quantity != nil {
		fields["quantity"] = *req.Quantity
	}
	if req.Condition != nil {
		fields["condition"] = *req.Condition
	}
	if req.IsGraded != nil {
		fields["is_graded"] = *req.IsGraded
	}
	if req.GradingCompany != nil {
		fields["grading_company"] = *req.GradingCompany
	}
	if req.Grade != nil {
		fields["grade"] = *req.Grade
	}
	if req.DateAcquired != nil {
		fields["date_acquired"] = *req.DateAcquired
	}
	if req.PurchasePriceUSD != nil {
		fields["purchase_price_usd"] = *req.PurchasePriceUSD
	}
	if req.Notes != nil {
		fields["notes"] = *req.Notes
	}
	if len(fields) == 0 {
		return nil, ErrNoUpdateFields
	}

	result := s.db.WithContext(ctx).Model(&models.CollectionItem{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	var item models.CollectionItem
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, err
	}
	s.refreshMetrics(ctx)
	return &item, nil
}

// Remove deletes an entry, reporting whether it existed
func (s *CollectionService) Remove(ctx context.Context, id uint) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&models.CollectionItem{}, id)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		s.refreshMetrics(ctx)
	}
	return result.RowsAffected > 0, nil
}

// Completion summarizes ownership per set. Only sets with catalog cards are
// listed and entries with zero quantity do not count as owned.
func (s *CollectionService) Completion(ctx context.Context) ([]models.CompletionSummary, error) {
	var rows []models.CompletionSummary
	err := s.db.WithContext(ctx).Raw(`
		SELECT sets.set_code, sets.name AS set_name, languages.code AS language,
			COUNT(cards.id) AS total_cards,
			COALESCE(SUM(CASE WHEN cards.is_secret_rare THEN 1 ELSE 0 END), 0) AS secret_rares,
			COALESCE(SUM(CASE WHEN cards.is_promo THEN 1 ELSE 0 END), 0) AS promos,
			COALESCE(SUM(CASE WHEN cards.has_holo_variant THEN 1 ELSE 0 END), 0) AS holo_variant_eligible,
			COUNT(owned.card_id) AS owned_unique_cards,
			COALESCE(SUM(owned.variants), 0) AS owned_total_variants
		FROM sets
		JOIN languages ON languages.id = sets.language_id
		JOIN cards ON cards.set_id = sets.id
		LEFT JOIN (
			SELECT card_id, COUNT(*) AS variants
			FROM collection_items
			WHERE quantity > 0
			GROUP BY card_id
		) owned ON owned.card_id = cards.id
		GROUP BY sets.id, sets.set_code, sets.name, languages.code
		ORDER BY sets.set_code`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for i := range rows {
		if rows[i].TotalCards > 0 {
			pct := float64(rows[i].OwnedUniqueCards) / float64(rows[i].TotalCards) * 100
			rows[i].PctComplete = math.Round(pct*100) / 100
		}
	}
	if rows == nil {
		rows = []models.CompletionSummary{}
	}
	return rows, nil
}

func (s *CollectionService) joinedEntries(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table("collection_items").
		Select(collectionEntryColumns).
		Joins("JOIN cards ON cards.id = collection_items.card_id").
		Joins("JOIN sets ON sets.id = cards.set_id").
		Joins("JOIN languages ON languages.id = sets.language_id").
		Joins("JOIN rarities ON rarities.id = cards.rarity_id")
}

func (s *CollectionService) refreshMetrics(ctx context.Context) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.CollectionItem{}).
		Select("COALESCE(SUM(quantity), 0)").Scan(&total).Error; err != nil {
		s.logger.Warn("Failed to refresh collection metrics", zap.Error(err))
		return
	}
	metrics.CollectionCardsTotal.Set(float64(total))
}

func validateEntry(variant *models.Variant, condition *models.Condition, quantity *int) error {
	if variant != nil && !variant.IsValid() {
		return &ValidationError{Field: "variant", Message: fmt.Sprintf("unknown variant %q", *variant)}
	}
	if condition != nil && !condition.IsValid() {
		return &ValidationError{Field: "condition", Message: fmt.Sprintf("unknown condition %q", *condition)}
	}
	if quantity != nil && (*quantity < 0 || *quantity > maxQuantity) {
		return &ValidationError{Field: "quantity", Message: fmt.Sprintf("must be between 0 and %d", maxQuantity)}
	}
	return nil
}
