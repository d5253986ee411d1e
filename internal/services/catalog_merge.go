package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/database"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/models"
)

// MergeAction is the outcome of merging one external record
type MergeAction string

const (
	ActionImported MergeAction = "imported"
	ActionUpdated  MergeAction = "updated"
	ActionSkipped  MergeAction = "skipped"
)

type SetMergeResult struct {
	SetID  uint
	Action MergeAction
}

// CatalogMerger upserts TCGdex sets and cards. All statements go through
// the Queries passed to each call so the caller owns transaction scope.
type CatalogMerger struct {
	cache      *TaxonomyCache
	languageID uint
	now        func() time.Time
}

func NewCatalogMerger(cache *TaxonomyCache, languageID uint, now func() time.Time) *CatalogMerger {
	if now == nil {
		now = time.Now
	}
	return &CatalogMerger{cache: cache, languageID: languageID, now: now}
}

// UpsertSet inserts a new set or, when force is set, refreshes an existing
// one in place. Existing sets are otherwise skipped.
func (m *CatalogMerger) UpsertSet(ctx context.Context, q database.Queries, detail *TCGdexSetDetail, force bool) (SetMergeResult, error) {
	existing, err := q.FindSetByAPIID(ctx, detail.ID)
	if err != nil {
		return SetMergeResult{}, err
	}

	if existing != nil && !force {
		return SetMergeResult{SetID: existing.ID, Action: ActionSkipped}, nil
	}

	if existing != nil {
		err := q.UpdateSet(ctx, existing.ID, map[string]any{
			"name":             detail.Name,
			"total_cards":      detail.CardCount.Official,
			"total_with_sr":    detail.CardCount.Total,
			"image_symbol_url": optionalString(detail.Symbol),
			"image_logo_url":   optionalString(detail.Logo),
			"series":           seriesName(detail),
		})
		if err != nil {
			return SetMergeResult{}, err
		}
		return SetMergeResult{SetID: existing.ID, Action: ActionUpdated}, nil
	}

	apiID := detail.ID
	set := models.Set{
		SetCode:        detail.ID,
		Name:           detail.Name,
		Series:         seriesName(detail),
		LanguageID:     m.languageID,
		ReleaseDate:    parseReleaseDate(detail.ReleaseDate),
		TotalCards:     detail.CardCount.Official,
		TotalWithSR:    detail.CardCount.Total,
		APIID:          &apiID,
		ImageSymbolURL: optionalString(detail.Symbol),
		ImageLogoURL:   optionalString(detail.Logo),
	}
	if err := q.CreateSet(ctx, &set); err != nil {
		return SetMergeResult{}, err
	}
	return SetMergeResult{SetID: set.ID, Action: ActionImported}, nil
}

// UpsertCardFull merges a fully fetched card. A row already linked to the
// card's api id is skipped unless force is set; an unlinked row with the
// same number in the set is claimed; otherwise a new row is inserted.
func (m *CatalogMerger) UpsertCardFull(ctx context.Context, q database.Queries, card *TCGdexCard, setID uint, officialCount int, force bool) (MergeAction, error) {
	existing, err := q.FindCardByAPIID(ctx, card.ID)
	if err != nil {
		return "", err
	}
	if existing != nil && !force {
		return ActionSkipped, nil
	}

	cardTypeID, err := m.cache.GetOrCreate(ctx, database.TaxonomyCardType, Classify(card).CardTypeName(), q)
	if err != nil {
		return "", err
	}
	energyTypeID, err := m.cache.GetOrCreate(ctx, database.TaxonomyEnergyType, EnergyTypeName(card.Types), q)
	if err != nil {
		return "", err
	}
	rarityID, err := m.cache.GetOrCreate(ctx, database.TaxonomyRarity, RarityName(card.Rarity), q)
	if err != nil {
		return "", err
	}

	pokedexNumber := PokedexNumber(card.DexID)
	isPokemonEx := IsSpecialVariant(card)
	secretRare := IsSecretRare(card.LocalID, officialCount)
	promo := IsPromo(card.Rarity, card.Set.ID)
	holo := HasHoloVariant(card.Variants)
	imagePath := ImagePath(card.Image)
	payload, err := cardPayload(card)
	if err != nil {
		return "", err
	}
	now := m.now()

	if existing != nil {
		err := q.UpdateCard(ctx, existing.ID, map[string]any{
			"name":             card.Name,
			"rarity_id":        rarityID,
			"image_path":       imagePath,
			"api_data":         payload,
			"imported_at":      now,
			"card_type_id":     cardTypeID,
			"energy_type_id":   energyTypeID,
			"pokedex_number":   pokedexNumber,
			"is_pokemon_ex":    isPokemonEx,
			"is_secret_rare":   secretRare,
			"is_promo":         promo,
			"has_holo_variant": holo,
		})
		if err != nil {
			return "", err
		}
		return ActionUpdated, nil
	}

	claimed, err := m.claimUnlinked(ctx, q, setID, card.LocalID, card.ID, imagePath, &payload, now)
	if err != nil {
		return "", err
	}
	if claimed {
		return ActionUpdated, nil
	}

	apiID := card.ID
	row := models.Card{
		SetID:          setID,
		CardNumber:     card.LocalID,
		PokedexNumber:  pokedexNumber,
		Name:           card.Name,
		CardTypeID:     cardTypeID,
		EnergyTypeID:   energyTypeID,
		RarityID:       rarityID,
		IsPokemonEx:    isPokemonEx,
		IsSecretRare:   secretRare,
		IsPromo:        promo,
		HasHoloVariant: holo,
		ImagePath:      imagePath,
		APIID:          &apiID,
		APIData:        &payload,
		ImportedAt:     &now,
	}
	if err := q.CreateCard(ctx, &row); err != nil {
		return "", err
	}
	return ActionImported, nil
}

// UpsertCardQuick merges a card from its set summary alone. Fields the
// summary does not carry get sentinel taxonomy and false flags.
func (m *CatalogMerger) UpsertCardQuick(ctx context.Context, q database.Queries, summary TCGdexCardSummary, setID uint, officialCount int, force bool) (MergeAction, error) {
	existing, err := q.FindCardByAPIID(ctx, summary.ID)
	if err != nil {
		return "", err
	}
	if existing != nil && !force {
		return ActionSkipped, nil
	}

	cardTypeID, err := m.cache.GetOrCreate(ctx, database.TaxonomyCardType, models.CardTypePokemon, q)
	if err != nil {
		return "", err
	}
	energyTypeID, err := m.cache.GetOrCreate(ctx, database.TaxonomyEnergyType, models.EnergyTypeNone, q)
	if err != nil {
		return "", err
	}
	rarityID, err := m.cache.GetOrCreate(ctx, database.TaxonomyRarity, models.RarityUnknown, q)
	if err != nil {
		return "", err
	}

	imagePath := ImagePath(summary.Image)
	now := m.now()

	if existing != nil {
		err := q.UpdateCard(ctx, existing.ID, map[string]any{
			"name":        summary.Name,
			"image_path":  imagePath,
			"imported_at": now,
		})
		if err != nil {
			return "", err
		}
		return ActionUpdated, nil
	}

	claimed, err := m.claimUnlinked(ctx, q, setID, summary.LocalID, summary.ID, imagePath, nil, now)
	if err != nil {
		return "", err
	}
	if claimed {
		return ActionUpdated, nil
	}

	apiID := summary.ID
	row := models.Card{
		SetID:        setID,
		CardNumber:   summary.LocalID,
		Name:         summary.Name,
		CardTypeID:   cardTypeID,
		EnergyTypeID: energyTypeID,
		RarityID:     rarityID,
		IsSecretRare: IsSecretRare(summary.LocalID, officialCount),
		ImagePath:    imagePath,
		APIID:        &apiID,
		ImportedAt:   &now,
	}
	if err := q.CreateCard(ctx, &row); err != nil {
		return "", err
	}
	return ActionImported, nil
}

// claimUnlinked links a hand-seeded row to apiID. A nil payload leaves
// api_data untouched.
func (m *CatalogMerger) claimUnlinked(ctx context.Context, q database.Queries, setID uint, number, apiID string, imagePath, payload *string, now time.Time) (bool, error) {
	unlinked, err := q.FindUnlinkedCard(ctx, setID, number)
	if err != nil || unlinked == nil {
		return false, err
	}

	fields := map[string]any{
		"api_id":      apiID,
		"image_path":  imagePath,
		"imported_at": now,
	}
	if payload != nil {
		fields["api_data"] = *payload
	}
	if err := q.UpdateCard(ctx, unlinked.ID, fields); err != nil {
		return false, err
	}
	return true, nil
}

func cardPayload(card *TCGdexCard) (string, error) {
	if len(card.Raw) > 0 {
		return string(card.Raw), nil
	}
	data, err := json.Marshal(card)
	if err != nil {
		return "", fmt.Errorf("failed to encode card %s: %w", card.ID, err)
	}
	return string(data), nil
}

func seriesName(detail *TCGdexSetDetail) *string {
	if detail.Serie == nil {
		return nil
	}
	return optionalString(detail.Serie.Name)
}

func parseReleaseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil
	}
	return &t
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
