package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/config"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/models"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/services"
)

func TestNewWiresImportIntoCatalog(t *testing.T) {
	api := http.NewServeMux()
	api.HandleFunc("/sets", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]services.TCGdexSetSummary{{ID: "sv01", Name: "Scarlet & Violet"}})
	})
	api.HandleFunc("/sets/sv01", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(services.TCGdexSetDetail{
			TCGdexSetSummary: services.TCGdexSetSummary{
				ID:        "sv01",
				Name:      "Scarlet & Violet",
				CardCount: services.TCGdexCardCount{Official: 1, Total: 1},
			},
			Cards: []services.TCGdexCardSummary{{ID: "sv01-001", LocalID: "001", Name: "Sprigatito"}},
		})
	})
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Database.DSN = filepath.Join(t.TempDir(), "app.db")
	cfg.Database.LogLevel = "silent"
	cfg.TCGdex.BaseURL = srv.URL
	cfg.TCGdex.MinInterval = 0
	cfg.Logging.Development = false
	cfg.Logging.Level = "error"

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	n, err := a.Catalog.CountCards(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	result, err := a.Importer.Run(ctx, services.ImportOptions{Quick: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SetsImported)
	assert.Equal(t, 1, result.CardsImported)

	page, err := a.Catalog.ListCards(ctx, models.CardFilters{SetCode: "sv01"}, models.Pagination{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Sprigatito", page.Data[0].Name)
}

func TestNewRejectsBadLogLevel(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Logging.Level = "loud"

	_, err = New(cfg)
	assert.Error(t, err)
}
