package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/models"
)

// TaxonomyKind names one of the append-only lookup tables
type TaxonomyKind string

const (
	TaxonomyRarity     TaxonomyKind = "rarity"
	TaxonomyCardType   TaxonomyKind = "card_type"
	TaxonomyEnergyType TaxonomyKind = "energy_type"
)

// TaxonomyKinds lists every kind in load order
func TaxonomyKinds() []TaxonomyKind {
	return []TaxonomyKind{TaxonomyRarity, TaxonomyCardType, TaxonomyEnergyType}
}

// Store hands out one dedicated connection for the duration of fn
type Store interface {
	WithConn(ctx context.Context, fn func(Conn) error) error
}

// Conn is a single checked-out connection. Batch runs fn inside a
// transaction that commits when fn returns nil and rolls back otherwise.
type Conn interface {
	Queries
	Batch(ctx context.Context, fn func(Queries) error) error
}

// Queries are the catalog statements the import pipeline issues
type Queries interface {
	LoadTaxonomy(ctx context.Context, kind TaxonomyKind) (map[string]uint, error)
	InsertTaxonomy(ctx context.Context, kind TaxonomyKind, name string) error
	TaxonomyID(ctx context.Context, kind TaxonomyKind, name string) (uint, error)
	LanguageID(ctx context.Context, code string) (uint, error)

	FindSetByAPIID(ctx context.Context, apiID string) (*models.Set, error)
	CreateSet(ctx context.Context, set *models.Set) error
	UpdateSet(ctx context.Context, id uint, fields map[string]any) error

	FindCardByAPIID(ctx context.Context, apiID string) (*models.Card, error)
	FindUnlinkedCard(ctx context.Context, setID uint, number string) (*models.Card, error)
	CreateCard(ctx context.Context, card *models.Card) error
	UpdateCard(ctx context.Context, id uint, fields map[string]any) error

	// Savepoint runs fn in a nested scope that is undone on error without
	// aborting the enclosing transaction.
	Savepoint(ctx context.Context, fn func(Queries) error) error
}

// CatalogStore implements Store on a gorm connection pool
type CatalogStore struct {
	db *gorm.DB
}

func NewCatalogStore(db *gorm.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

func (s *CatalogStore) WithConn(ctx context.Context, fn func(Conn) error) error {
	var fnErr error
	err := s.db.WithContext(ctx).Connection(func(tx *gorm.DB) error {
		fnErr = fn(&conn{queries{db: tx.Session(&gorm.Session{NewDB: true})}})
		return fnErr
	})
	if err != nil && fnErr == nil {
		return fmt.Errorf("%w: %v", ErrNoConnection, err)
	}
	return err
}

type conn struct {
	queries
}

func (c *conn) Batch(ctx context.Context, fn func(Queries) error) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&queries{db: tx})
	})
}

type queries struct {
	db *gorm.DB
}

func (q *queries) Savepoint(ctx context.Context, fn func(Queries) error) error {
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&queries{db: tx})
	})
}

func taxonomyTable(kind TaxonomyKind) (string, error) {
	switch kind {
	case TaxonomyRarity:
		return "rarities", nil
	case TaxonomyCardType:
		return "card_types", nil
	case TaxonomyEnergyType:
		return "energy_types", nil
	default:
		return "", fmt.Errorf("unknown taxonomy kind %q", kind)
	}
}

func (q *queries) LoadTaxonomy(ctx context.Context, kind TaxonomyKind) (map[string]uint, error) {
	table, err := taxonomyTable(kind)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID   uint
		Name string
	}
	if err := q.db.WithContext(ctx).Table(table).Select("id, name").Find(&rows).Error; err != nil {
		return nil, wrap("load "+table, err)
	}
	out := make(map[string]uint, len(rows))
	for _, r := range rows {
		out[r.Name] = r.ID
	}
	return out, nil
}

// InsertTaxonomy adds name to the kind's table unless it already exists
func (q *queries) InsertTaxonomy(ctx context.Context, kind TaxonomyKind, name string) error {
	var row any
	switch kind {
	case TaxonomyRarity:
		row = &models.Rarity{Code: GenerateRarityCode(name), Name: name}
	case TaxonomyCardType:
		row = &models.CardType{Name: name}
	case TaxonomyEnergyType:
		row = &models.EnergyType{Name: name}
	default:
		return fmt.Errorf("unknown taxonomy kind %q", kind)
	}
	err := q.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(row).Error
	return wrap("insert "+string(kind), err)
}

func (q *queries) TaxonomyID(ctx context.Context, kind TaxonomyKind, name string) (uint, error) {
	table, err := taxonomyTable(kind)
	if err != nil {
		return 0, err
	}
	var ids []uint
	if err := q.db.WithContext(ctx).Table(table).Where("name = ?", name).Limit(1).Pluck("id", &ids).Error; err != nil {
		return 0, wrap("lookup "+table, err)
	}
	if len(ids) == 0 {
		return 0, wrap("lookup "+table, fmt.Errorf("%s %q: %w", kind, name, gorm.ErrRecordNotFound))
	}
	return ids[0], nil
}

func (q *queries) LanguageID(ctx context.Context, code string) (uint, error) {
	var lang models.Language
	if err := q.db.WithContext(ctx).Where("code = ?", code).First(&lang).Error; err != nil {
		return 0, wrap("lookup language "+code, err)
	}
	return lang.ID, nil
}

func (q *queries) FindSetByAPIID(ctx context.Context, apiID string) (*models.Set, error) {
	var set models.Set
	err := q.db.WithContext(ctx).Where("api_id = ?", apiID).Limit(1).Find(&set).Error
	if err != nil {
		return nil, wrap("find set", err)
	}
	if set.ID == 0 {
		return nil, nil
	}
	return &set, nil
}

func (q *queries) CreateSet(ctx context.Context, set *models.Set) error {
	return wrap("create set", q.db.WithContext(ctx).Create(set).Error)
}

func (q *queries) UpdateSet(ctx context.Context, id uint, fields map[string]any) error {
	return wrap("update set", q.db.WithContext(ctx).Model(&models.Set{}).Where("id = ?", id).Updates(fields).Error)
}

func (q *queries) FindCardByAPIID(ctx context.Context, apiID string) (*models.Card, error) {
	var card models.Card
	err := q.db.WithContext(ctx).Where("api_id = ?", apiID).Limit(1).Find(&card).Error
	if err != nil {
		return nil, wrap("find card", err)
	}
	if card.ID == 0 {
		return nil, nil
	}
	return &card, nil
}

// FindUnlinkedCard returns a hand-seeded card in setID with the given number
// that no import has claimed yet.
func (q *queries) FindUnlinkedCard(ctx context.Context, setID uint, number string) (*models.Card, error) {
	var card models.Card
	err := q.db.WithContext(ctx).
		Where("set_id = ? AND card_number = ? AND api_id IS NULL", setID, number).
		Limit(1).Find(&card).Error
	if err != nil {
		return nil, wrap("find unlinked card", err)
	}
	if card.ID == 0 {
		return nil, nil
	}
	return &card, nil
}

func (q *queries) CreateCard(ctx context.Context, card *models.Card) error {
	// Associations are referenced by id only
	return wrap("create card", q.db.WithContext(ctx).Omit(clause.Associations).Create(card).Error)
}

func (q *queries) UpdateCard(ctx context.Context, id uint, fields map[string]any) error {
	return wrap("update card", q.db.WithContext(ctx).Model(&models.Card{}).Where("id = ?", id).Updates(fields).Error)
}

// GenerateRarityCode derives the short code stored with a rarity: the first
// three letters of a single word, otherwise the initials (at most ten).
func GenerateRarityCode(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return ""
	}
	if len(words) == 1 {
		r := []rune(words[0])
		if len(r) > 3 {
			r = r[:3]
		}
		return strings.ToUpper(string(r))
	}
	var initials []rune
	for _, w := range words {
		initials = append(initials, []rune(w)[0])
	}
	code := strings.ToUpper(string(initials))
	if r := []rune(code); len(r) > 10 {
		code = string(r[:10])
	}
	return code
}

// IsNotFound reports whether err means the looked-up row does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
