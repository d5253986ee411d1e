package models

import (
	"time"
)

type Variant string

const (
	VariantStandard         Variant = "Standard"
	VariantReverseHolo      Variant = "Reverse Holo"
	VariantPokeBallMirror   Variant = "Poké Ball Mirror"
	VariantMasterBallMirror Variant = "Master Ball Mirror"
	VariantCosmosHolo       Variant = "Cosmos Holo"
	VariantPromo            Variant = "Promo"
)

type Condition string

const (
	ConditionMint             Condition = "Mint"
	ConditionNearMint         Condition = "Near Mint"
	ConditionLightlyPlayed    Condition = "Lightly Played"
	ConditionModeratelyPlayed Condition = "Moderately Played"
	ConditionHeavilyPlayed    Condition = "Heavily Played"
	ConditionDamaged          Condition = "Damaged"
)

// AllVariants returns every variant accepted by the collection API
func AllVariants() []Variant {
	return []Variant{
		VariantStandard,
		VariantReverseHolo,
		VariantPokeBallMirror,
		VariantMasterBallMirror,
		VariantCosmosHolo,
		VariantPromo,
	}
}

// AllConditions returns every condition accepted by the collection API
func AllConditions() []Condition {
	return []Condition{
		ConditionMint,
		ConditionNearMint,
		ConditionLightlyPlayed,
		ConditionModeratelyPlayed,
		ConditionHeavilyPlayed,
		ConditionDamaged,
	}
}

// IsValid reports whether v is one of AllVariants
func (v Variant) IsValid() bool {
	for _, known := range AllVariants() {
		if v == known {
			return true
		}
	}
	return false
}

// IsValid reports whether c is one of AllConditions
func (c Condition) IsValid() bool {
	for _, known := range AllConditions() {
		if c == known {
			return true
		}
	}
	return false
}

// CollectionItem is one owned (card, variant, condition) combination
type CollectionItem struct {
	ID               uint      `json:"collection_id" gorm:"primaryKey;autoIncrement"`
	CardID           uint      `json:"card_id" gorm:"not null;uniqueIndex:idx_collection_card_variant_condition"`
	Card             Card      `json:"-" gorm:"foreignKey:CardID"`
	Variant          Variant   `json:"variant" gorm:"not null;default:'Standard';uniqueIndex:idx_collection_card_variant_condition"`
	Condition        Condition `json:"condition" gorm:"not null;default:'Near Mint';uniqueIndex:idx_collection_card_variant_condition"`
	Quantity         int       `json:"quantity" gorm:"not null"`
	IsGraded         bool      `json:"is_graded" gorm:"not null;default:false"`
	GradingCompany   *string   `json:"grading_company"`
	Grade            *float64  `json:"grade"`
	DateAcquired     *string   `json:"date_acquired"`
	PurchasePriceUSD *float64  `json:"purchase_price_usd" gorm:"column:purchase_price_usd"`
	Notes            *string   `json:"notes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CollectionEntry is a collection item joined with its catalog card
type CollectionEntry struct {
	CollectionID     uint      `json:"collection_id"`
	CardID           uint      `json:"card_id"`
	SetCode          string    `json:"set_code"`
	Language         string    `json:"language"`
	CardNumber       string    `json:"card_number"`
	Name             string    `json:"name"`
	Rarity           string    `json:"rarity"`
	Variant          Variant   `json:"variant"`
	Quantity         int       `json:"quantity"`
	Condition        Condition `json:"condition"`
	IsGraded         bool      `json:"is_graded"`
	GradingCompany   *string   `json:"grading_company"`
	Grade            *float64  `json:"grade"`
	DateAcquired     *string   `json:"date_acquired"`
	PurchasePriceUSD *float64  `json:"purchase_price_usd"`
	ImagePath        *string   `json:"-"`
	ImageURL         *string   `json:"image_url" gorm:"-"`
}

type AddToCollectionRequest struct {
	CardID           uint      `json:"card_id" binding:"required,min=1"`
	Variant          Variant   `json:"variant"`
	Quantity         *int      `json:"quantity" binding:"omitempty,min=0"`
	Condition        Condition `json:"condition"`
	IsGraded         bool      `json:"is_graded"`
	GradingCompany   *string   `json:"grading_company" binding:"omitempty,max=10"`
	Grade            *float64  `json:"grade" binding:"omitempty,min=0,max=10"`
	DateAcquired     *string   `json:"date_acquired" binding:"omitempty,datetime=2006-01-02"`
	PurchasePriceUSD *float64  `json:"purchase_price_usd" binding:"omitempty,min=0"`
	Notes            *string   `json:"notes"`
}

type UpdateCollectionRequest struct {
	Variant          *Variant   `json:"variant"`
	Quantity         *int       `json:"quantity" binding:"omitempty,min=0"`
	Condition        *Condition `json:"condition"`
	IsGraded         *bool      `json:"is_graded"`
	GradingCompany   *string    `json:"grading_company" binding:"omitempty,max=10"`
	Grade            *float64   `json:"grade" binding:"omitempty,min=0,max=10"`
	DateAcquired     *string    `json:"date_acquired" binding:"omitempty,datetime=2006-01-02"`
	PurchasePriceUSD *float64   `json:"purchase_price_usd" binding:"omitempty,min=0"`
	Notes            *string    `json:"notes"`
}

// CompletionSummary reports how much of a set is owned. Counts cover the
// cards in the catalog; owned counts ignore quantity.
type CompletionSummary struct {
	SetCode             string  `json:"set_code"`
	SetName             string  `json:"set_name"`
	Language            string  `json:"language"`
	TotalCards          int     `json:"total_cards"`
	SecretRares         int     `json:"secret_rares"`
	Promos              int     `json:"promos"`
	HoloVariantEligible int     `json:"holo_variant_eligible"`
	OwnedUniqueCards    int     `json:"owned_unique_cards"`
	OwnedTotalVariants  int     `json:"owned_total_variants"`
	PctComplete         float64 `json:"pct_complete"`
}
