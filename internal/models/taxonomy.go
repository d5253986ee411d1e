package models

// Taxonomy tables are append-only dictionaries. The importer may add names it
// has not seen before but never renames or deletes them.

type Rarity struct {
	ID        uint   `json:"rarity_id" gorm:"primaryKey;autoIncrement"`
	Code      string `json:"code"`
	Name      string `json:"name" gorm:"not null;uniqueIndex"`
	SortOrder int    `json:"sort_order"`
}

type CardType struct {
	ID   uint   `json:"card_type_id" gorm:"primaryKey;autoIncrement"`
	Name string `json:"name" gorm:"not null;uniqueIndex"`
}

type EnergyType struct {
	ID   uint   `json:"energy_type_id" gorm:"primaryKey;autoIncrement"`
	Name string `json:"name" gorm:"not null;uniqueIndex"`
}

// Sentinel taxonomy names. They are seeded with the schema so quick imports
// and cards without rarity or type data always resolve to a real row.
const (
	RarityUnknown    = "Unknown"
	RarityPromo      = "Promo"
	CardTypePokemon  = "Pokémon"
	CardTypeTrainer  = "Trainer"
	CardTypeEnergy   = "Energy"
	EnergyTypeNone   = "None"
	DefaultLanguage  = "en"
	LanguageJapanese = "ja"
)

// DefaultRarities returns the rarities created with a fresh schema
func DefaultRarities() []string {
	return []string{"Common", "Uncommon", "Rare", "Rare Holo", RarityPromo, RarityUnknown}
}

// DefaultCardTypes returns the card types created with a fresh schema
func DefaultCardTypes() []string {
	return []string{CardTypePokemon, CardTypeTrainer, CardTypeEnergy}
}

// DefaultEnergyTypes returns the energy types created with a fresh schema
func DefaultEnergyTypes() []string {
	return []string{
		"Grass", "Fire", "Water", "Lightning", "Psychic", "Fighting",
		"Darkness", "Metal", "Fairy", "Dragon", "Colorless", EnergyTypeNone,
	}
}
