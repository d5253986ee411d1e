package models

import (
	"time"
)

// Card is one printing in the catalog. Imported rows carry the TCGdex id in
// APIID; hand-seeded rows have a nil APIID until an import claims them.
type Card struct {
	ID             uint       `json:"card_id" gorm:"primaryKey;autoIncrement"`
	SetID          uint       `json:"set_id" gorm:"not null;index;uniqueIndex:idx_cards_unlinked_number,where:api_id IS NULL"`
	Set            Set        `json:"-" gorm:"foreignKey:SetID"`
	CardNumber     string     `json:"card_number" gorm:"not null;uniqueIndex:idx_cards_unlinked_number,where:api_id IS NULL"`
	PokedexNumber  *int       `json:"pokedex_number"`
	Name           string     `json:"name" gorm:"not null;index"`
	CardTypeID     uint       `json:"-" gorm:"not null"`
	CardType       CardType   `json:"-" gorm:"foreignKey:CardTypeID"`
	EnergyTypeID   uint       `json:"-" gorm:"not null"`
	EnergyType     EnergyType `json:"-" gorm:"foreignKey:EnergyTypeID"`
	RarityID       uint       `json:"-" gorm:"not null"`
	Rarity         Rarity     `json:"-" gorm:"foreignKey:RarityID"`
	IsPokemonEx    bool       `json:"is_pokemon_ex" gorm:"not null;default:false"`
	IsSecretRare   bool       `json:"is_secret_rare" gorm:"not null;default:false"`
	IsPromo        bool       `json:"is_promo" gorm:"not null;default:false"`
	HasHoloVariant bool       `json:"has_holo_variant" gorm:"not null;default:false"`
	ImagePath      *string    `json:"-"`
	APIID          *string    `json:"api_id" gorm:"column:api_id;uniqueIndex"`
	APIData        *string    `json:"-" gorm:"column:api_data;type:text"`
	ImportedAt     *time.Time `json:"imported_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CardView is the denormalized catalog row served by the API
type CardView struct {
	CardID         uint    `json:"card_id"`
	SetCode        string  `json:"set_code"`
	SetName        string  `json:"set_name"`
	Language       string  `json:"language"`
	CardNumber     string  `json:"card_number"`
	PokedexNumber  *int    `json:"pokedex_number"`
	Name           string  `json:"name"`
	CardType       string  `json:"card_type"`
	EnergyType     string  `json:"energy_type"`
	Rarity         string  `json:"rarity"`
	IsPokemonEx    bool    `json:"is_pokemon_ex"`
	IsSecretRare   bool    `json:"is_secret_rare"`
	IsPromo        bool    `json:"is_promo"`
	HasHoloVariant bool    `json:"has_holo_variant"`
	ImagePath      *string `json:"-"`
	ImageURL       *string `json:"image_url" gorm:"-"`
}

type CardPage struct {
	Data       []CardView `json:"data"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"total_pages"`
}

// CardFilters mirrors the query string accepted by GET /api/cards
type CardFilters struct {
	SetCode      string `form:"set_code"`
	Language     string `form:"language"`
	Rarity       string `form:"rarity"`
	CardType     string `form:"card_type"`
	EnergyType   string `form:"energy_type"`
	IsPokemonEx  *bool  `form:"is_pokemon_ex"`
	IsSecretRare *bool  `form:"is_secret_rare"`
	IsPromo      *bool  `form:"is_promo"`
	Search       string `form:"search"`
}

type Pagination struct {
	Page      int    `form:"page,default=1" binding:"min=1"`
	Limit     int    `form:"limit,default=20" binding:"min=1,max=100"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order,default=asc" binding:"omitempty,oneof=asc desc"`
}
