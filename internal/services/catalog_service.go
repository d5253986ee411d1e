package services

import (
	"context"
	"math"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/metrics"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/models"
)

const defaultCardCacheSize = 1000

const cardViewColumns = `cards.id AS card_id, sets.set_code, sets.name AS set_name,
	languages.code AS language, cards.card_number, cards.pokedex_number, cards.name,
	card_types.name AS card_type, energy_types.name AS energy_type, rarities.name AS rarity,
	cards.is_pokemon_ex, cards.is_secret_rare, cards.is_promo, cards.has_holo_variant,
	cards.image_path`

// Sortable columns for GET /api/cards. Anything else falls back to set and
// card number order.
var cardSortColumns = map[string]string{
	"name":           "cards.name",
	"card_number":    "cards.card_number",
	"set_code":       "sets.set_code",
	"rarity":         "rarities.name",
	"card_type":      "card_types.name",
	"energy_type":    "energy_types.name",
	"pokedex_number": "cards.pokedex_number",
}

// CatalogService serves read-only catalog queries
type CatalogService struct {
	db           *gorm.DB
	imageBaseURL string
	cardCache    *lru.Cache[uint, models.CardView] // card id -> view, purged after imports
	logger       *zap.Logger
}

func NewCatalogService(db *gorm.DB, imageBaseURL string, cacheSize int, logger *zap.Logger) *CatalogService {
	if cacheSize <= 0 {
		cacheSize = defaultCardCacheSize
	}
	cardCache, err := lru.New[uint, models.CardView](cacheSize)
	if err != nil {
		logger.Warn("Catalog service: card cache disabled", zap.Error(err))
	}
	return &CatalogService{
		db:           db,
		imageBaseURL: imageBaseURL,
		cardCache:    cardCache,
		logger:       logger.Named("catalog"),
	}
}

// Purge drops every cached card view
func (s *CatalogService) Purge() {
	if s.cardCache != nil {
		s.cardCache.Purge()
	}
}

// ListSets returns every set, newest release first
func (s *CatalogService) ListSets(ctx context.Context) ([]models.SetView, error) {
	var sets []models.SetView
	err := s.db.WithContext(ctx).Table("sets").
		Select(`sets.id AS set_id, sets.set_code, sets.name, sets.series, languages.code AS language,
			sets.release_date, sets.total_cards, sets.total_with_sr`).
		Joins("JOIN languages ON languages.id = sets.language_id").
		Order("sets.release_date DESC").
		Order("sets.id DESC").
		Scan(&sets).Error
	if err != nil {
		return nil, err
	}
	if sets == nil {
		sets = []models.SetView{}
	}
	return sets, nil
}

// ListCards returns one page of cards matching filters
func (s *CatalogService) ListCards(ctx context.Context, filters models.CardFilters, page models.Pagination) (*models.CardPage, error) {
	var total int64
	if err := applyCardFilters(s.joinedCards(ctx), filters).Count(&total).Error; err != nil {
		return nil, err
	}

	dir := "ASC"
	if strings.EqualFold(page.SortOrder, "desc") {
		dir = "DESC"
	}
	query := applyCardFilters(s.joinedCards(ctx), filters).Select(cardViewColumns)
	if column, ok := cardSortColumns[page.SortBy]; ok {
		query = query.Order(column + " " + dir)
	} else {
		query = query.Order("sets.set_code " + dir).Order("cards.card_number " + dir)
	}

	var rows []models.CardView
	err := query.Order("cards.id").
		Limit(page.Limit).
		Offset((page.Page - 1) * page.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for i := range rows {
		rows[i].ImageURL = ImageURL(s.imageBaseURL, rows[i].ImagePath)
	}
	if rows == nil {
		rows = []models.CardView{}
	}

	return &models.CardPage{
		Data:       rows,
		Total:      total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(page.Limit))),
	}, nil
}

// GetCard returns the card view or nil when no such card exists
func (s *CatalogService) GetCard(ctx context.Context, id uint) (*models.CardView, error) {
	if s.cardCache != nil {
		if view, ok := s.cardCache.Get(id); ok {
			metrics.CatalogCacheLookups.WithLabelValues("hit").Inc()
			return &view, nil
		}
		metrics.CatalogCacheLookups.WithLabelValues("miss").Inc()
	}

	var rows []models.CardView
	err := s.joinedCards(ctx).Select(cardViewColumns).
		Where("cards.id = ?", id).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	view := rows[0]
	view.ImageURL = ImageURL(s.imageBaseURL, view.ImagePath)
	if s.cardCache != nil {
		s.cardCache.Add(id, view)
	}
	return &view, nil
}

// CountCards returns the number of catalog cards
func (s *CatalogService) CountCards(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Card{}).Count(&n).Error
	return n, err
}

func (s *CatalogService) joinedCards(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table("cards").
		Joins("JOIN sets ON sets.id = cards.set_id").
		Joins("JOIN languages ON languages.id = sets.language_id").
		Joins("JOIN card_types ON card_types.id = cards.card_type_id").
		Joins("JOIN energy_types ON energy_types.id = cards.energy_type_id").
		Joins("JOIN rarities ON rarities.id = cards.rarity_id")
}

func applyCardFilters(query *gorm.DB, f models.CardFilters) *gorm.DB {
	if f.SetCode != "" {
		query = query.Where("sets.set_code = ?", f.SetCode)
	}
	if f.Language != "" {
		query = query.Where("languages.code = ?", f.Language)
	}
	if f.Rarity != "" {
		query = query.Where("rarities.name = ?", f.Rarity)
	}
	if f.CardType != "" {
		query = query.Where("card_types.name = ?", f.CardType)
	}
	if f.EnergyType != "" {
		query = query.Where("energy_types.name = ?", f.EnergyType)
	}
	if f.IsPokemonEx != nil {
		query = query.Where("cards.is_pokemon_ex = ?", *f.IsPokemonEx)
	}
	if f.IsSecretRare != nil {
		query = query.Where("cards.is_secret_rare = ?", *f.IsSecretRare)
	}
	if f.IsPromo != nil {
		query = query.Where("cards.is_promo = ?", *f.IsPromo)
	}
	if f.Search != "" {
		query = query.Where("LOWER(cards.name) LIKE ?", "%"+strings.ToLower(f.Search)+"%")
	}
	return query
}

// ImageURL joins base and path. Absolute URLs (imported TCGdex images) are
// returned as is; relative paths need a configured base.
func ImageURL(base string, path *string) *string {
	if path == nil || *path == "" {
		return nil
	}
	if strings.HasPrefix(*path, "http://") || strings.HasPrefix(*path, "https://") {
		abs := *path
		return &abs
	}
	if base == "" {
		return nil
	}
	joined := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(*path, "/")
	return &joined
}
