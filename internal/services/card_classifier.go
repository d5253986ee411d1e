package services

import (
	"strconv"
	"strings"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/models"
)

// TCGdex category values
const (
	categoryPokemon = "Pokemon"
	categoryEnergy  = "Energy"
	categoryTrainer = "Trainer"
)

var specialStages = map[string]bool{
	"VMAX":  true,
	"VSTAR": true,
	"V":     true,
	"GX":    true,
	"EX":    true,
	"MEGA":  true,
}

// CardVariant is the closed set of card categories the importer knows.
// Every TCGdex card maps to exactly one implementation via Classify.
type CardVariant interface {
	// CardTypeName is the catalog card_types name for this category
	CardTypeName() string
	isCardVariant()
}

type PokemonCard struct {
	Stage string
	Types []string
}

type TrainerCard struct {
	// Category as reported by TCGdex, kept for cards that are neither
	// Pokémon nor Energy.
	Category string
}

type EnergyCard struct {
	Types []string
}

func (PokemonCard) CardTypeName() string { return models.CardTypePokemon }
func (TrainerCard) CardTypeName() string { return models.CardTypeTrainer }
func (EnergyCard) CardTypeName() string  { return models.CardTypeEnergy }

func (PokemonCard) isCardVariant() {}
func (TrainerCard) isCardVariant() {}
func (EnergyCard) isCardVariant()  {}

// Classify maps a TCGdex card onto its CardVariant. Unknown categories are
// treated as trainers.
func Classify(card *TCGdexCard) CardVariant {
	switch card.Category {
	case categoryPokemon:
		return PokemonCard{Stage: card.Stage, Types: card.Types}
	case categoryEnergy:
		return EnergyCard{Types: card.Types}
	default:
		return TrainerCard{Category: card.Category}
	}
}

// IsSpecialVariant reports whether card is a rule-box Pokémon (V, VMAX,
// VSTAR, GX, EX, MEGA or a lowercase "ex")
func IsSpecialVariant(card *TCGdexCard) bool {
	pokemon, ok := Classify(card).(PokemonCard)
	if !ok {
		return false
	}
	if specialStages[pokemon.Stage] {
		return true
	}
	return strings.HasSuffix(card.Name, " ex") || strings.HasSuffix(card.Name, " EX")
}

// IsSecretRare reports whether a numeric local id is beyond the set's
// official count. Non-numeric ids such as "SWSH001" are never secret rares.
func IsSecretRare(localID string, officialCount int) bool {
	num, err := strconv.Atoi(localID)
	if err != nil {
		return false
	}
	return num > officialCount
}

// IsPromo reports whether a card is a promo by rarity or by living in a
// promo set (TCGdex promo set ids end in "p", e.g. "svp").
func IsPromo(rarity, setID string) bool {
	return rarity == models.RarityPromo || strings.HasSuffix(setID, "p")
}

// ImagePath returns the high resolution webp URL for a TCGdex image base,
// or nil when the card has no image.
func ImagePath(image string) *string {
	if image == "" {
		return nil
	}
	path := image + "/high.webp"
	return &path
}

// HasHoloVariant reports whether the card is printed holo or reverse holo
func HasHoloVariant(v *TCGdexVariants) bool {
	return v != nil && (v.Holo || v.Reverse)
}

// EnergyTypeName returns the first listed type or the "None" sentinel
func EnergyTypeName(types []string) string {
	if len(types) == 0 || types[0] == "" {
		return models.EnergyTypeNone
	}
	return types[0]
}

// RarityName returns the rarity or the "Unknown" sentinel
func RarityName(rarity string) string {
	if rarity == "" {
		return models.RarityUnknown
	}
	return rarity
}

// PokedexNumber returns the first dex id, if any
func PokedexNumber(dexIDs []int) *int {
	if len(dexIDs) == 0 {
		return nil
	}
	n := dexIDs[0]
	return &n
}
