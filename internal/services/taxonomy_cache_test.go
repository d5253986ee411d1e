package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/database"
)

// fakeTaxonomyQueries keeps taxonomy tables in memory and counts statements.
// Only the taxonomy methods are implemented.
type fakeTaxonomyQueries struct {
	database.Queries
	tables  map[database.TaxonomyKind]map[string]uint
	nextID  uint
	inserts int
	lookups int
	failOn  string
}

func newFakeTaxonomyQueries() *fakeTaxonomyQueries {
	return &fakeTaxonomyQueries{
		tables: map[database.TaxonomyKind]map[string]uint{
			database.TaxonomyRarity:     {"Common": 1, "Unknown": 2},
			database.TaxonomyCardType:   {"Pokémon": 1, "Trainer": 2, "Energy": 3},
			database.TaxonomyEnergyType: {"Fire": 1, "None": 2},
		},
		nextID: 100,
	}
}

func (f *fakeTaxonomyQueries) LoadTaxonomy(_ context.Context, kind database.TaxonomyKind) (map[string]uint, error) {
	out := make(map[string]uint)
	for k, v := range f.tables[kind] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeTaxonomyQueries) InsertTaxonomy(_ context.Context, kind database.TaxonomyKind, name string) error {
	f.inserts++
	if name == f.failOn {
		return &database.Error{Op: "insert", Kind: database.ConflictOther, Err: errors.New("disk full")}
	}
	if _, ok := f.tables[kind][name]; !ok {
		f.nextID++
		f.tables[kind][name] = f.nextID
	}
	return nil
}

func (f *fakeTaxonomyQueries) TaxonomyID(_ context.Context, kind database.TaxonomyKind, name string) (uint, error) {
	f.lookups++
	return f.tables[kind][name], nil
}

func TestTaxonomyCacheHitDoesNoIO(t *testing.T) {
	ctx := context.Background()
	q := newFakeTaxonomyQueries()
	cache := NewTaxonomyCache()
	require.NoError(t, cache.Load(ctx, q))

	id, err := cache.GetOrCreate(ctx, database.TaxonomyEnergyType, "Fire", q)
	require.NoError(t, err)
	assert.Equal(t, uint(1), id)
	assert.Zero(t, q.inserts)
	assert.Zero(t, q.lookups)
	assert.Empty(t, cache.Introduced(database.TaxonomyEnergyType))
}

func TestTaxonomyCacheCreatesAndReportsOnce(t *testing.T) {
	ctx := context.Background()
	q := newFakeTaxonomyQueries()
	cache := NewTaxonomyCache()
	require.NoError(t, cache.Load(ctx, q))

	first, err := cache.GetOrCreate(ctx, database.TaxonomyRarity, "Hyper Rare", q)
	require.NoError(t, err)
	second, err := cache.GetOrCreate(ctx, database.TaxonomyRarity, "Hyper Rare", q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, q.inserts)
	assert.Equal(t, []string{"Hyper Rare"}, cache.Introduced(database.TaxonomyRarity))
}

func TestTaxonomyCacheRevertDropsRolledBackEntries(t *testing.T) {
	ctx := context.Background()
	q := newFakeTaxonomyQueries()
	cache := NewTaxonomyCache()
	require.NoError(t, cache.Load(ctx, q))

	_, err := cache.GetOrCreate(ctx, database.TaxonomyRarity, "Hyper Rare", q)
	require.NoError(t, err)

	mark := cache.Mark()
	_, err = cache.GetOrCreate(ctx, database.TaxonomyRarity, "Shiny Rare", q)
	require.NoError(t, err)
	_, err = cache.GetOrCreate(ctx, database.TaxonomyCardType, "Stadium", q)
	require.NoError(t, err)
	cache.Revert(mark)

	_, ok := cache.Lookup(database.TaxonomyRarity, "Shiny Rare")
	assert.False(t, ok)
	_, ok = cache.Lookup(database.TaxonomyCardType, "Stadium")
	assert.False(t, ok)
	_, ok = cache.Lookup(database.TaxonomyRarity, "Hyper Rare")
	assert.True(t, ok)
	assert.Equal(t, []string{"Hyper Rare"}, cache.Introduced(database.TaxonomyRarity))
	assert.Empty(t, cache.Introduced(database.TaxonomyCardType))

	// A later success re-resolves and reports the name exactly once
	_, err = cache.GetOrCreate(ctx, database.TaxonomyRarity, "Shiny Rare", q)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hyper Rare", "Shiny Rare"}, cache.Introduced(database.TaxonomyRarity))
}

func TestTaxonomyCachePropagatesErrors(t *testing.T) {
	ctx := context.Background()
	q := newFakeTaxonomyQueries()
	q.failOn = "Broken"
	cache := NewTaxonomyCache()
	require.NoError(t, cache.Load(ctx, q))

	_, err := cache.GetOrCreate(ctx, database.TaxonomyRarity, "Broken", q)
	require.Error(t, err)
	assert.Equal(t, database.ConflictOther, database.KindOf(err))
	_, ok := cache.Lookup(database.TaxonomyRarity, "Broken")
	assert.False(t, ok)
	assert.Empty(t, cache.Introduced(database.TaxonomyRarity))
}
