package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/database"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/database/dbtest"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/models"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/services"
)

// blockingSource holds FetchSets open until release is closed
type blockingSource struct {
	release chan struct{}
}

func (s *blockingSource) FetchSets(ctx context.Context) ([]services.TCGdexSetSummary, error) {
	select {
	case <-s.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *blockingSource) FetchSet(context.Context, string) (*services.TCGdexSetDetail, error) {
	return nil, errors.New("not served")
}

func (s *blockingSource) FetchCard(context.Context, string) (*services.TCGdexCard, error) {
	return nil, errors.New("not served")
}

type testServer struct {
	router        *gin.Engine
	db            *gorm.DB
	source        *blockingSource
	importer      *services.ImportService
	cancelImports context.CancelFunc
	cards         []uint
}

func taxonomyID(t *testing.T, db *gorm.DB, table, name string) uint {
	t.Helper()
	var id uint
	require.NoError(t, db.Table(table).Select("id").Where("name = ?", name).Row().Scan(&id))
	return id
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.Open(t)
	var lang models.Language
	require.NoError(t, db.Where("code = ?", models.DefaultLanguage).First(&lang).Error)

	set := models.Set{SetCode: "sv01", Name: "Scarlet & Violet", LanguageID: lang.ID, TotalCards: 198, TotalWithSR: 258}
	require.NoError(t, db.Create(&set).Error)

	srv := &testServer{db: db, source: &blockingSource{release: make(chan struct{})}}
	for i, name := range []string{"Sprigatito", "Fuecoco"} {
		image := fmt.Sprintf("sv01/%03d.png", i+1)
		card := models.Card{
			SetID:        set.ID,
			CardNumber:   fmt.Sprintf("%03d", i+1),
			Name:         name,
			CardTypeID:   taxonomyID(t, db, "card_types", models.CardTypePokemon),
			EnergyTypeID: taxonomyID(t, db, "energy_types", "Grass"),
			RarityID:     taxonomyID(t, db, "rarities", "Common"),
			ImagePath:    &image,
		}
		require.NoError(t, db.Omit("Set", "CardType", "EnergyType", "Rarity").Create(&card).Error)
		srv.cards = append(srv.cards, card.ID)
	}

	logger := zap.NewNop()
	importer := services.NewImportService(database.NewCatalogStore(db), srv.source, services.ImportConfig{}, logger)
	t.Cleanup(func() {
		select {
		case <-srv.source.release:
		default:
			close(srv.source.release)
		}
	})

	importCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv.importer, srv.cancelImports = importer, cancel

	srv.router = SetupRouter(RouterConfig{ImportContext: importCtx}, Services{
		Catalog:    services.NewCatalogService(db, "https://cdn.example.com/cards", 0, logger),
		Collection: services.NewCollectionService(db, "https://cdn.example.com/cards", logger),
		Importer:   importer,
	}, logger)
	return srv
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = srv.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tcg_http_requests_total")
}

func TestUnknownAPIRoute(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSetsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/sets", nil)
	require.Equal(t, http.StatusOK, w.Code)

	sets := decode[[]models.SetView](t, w)
	require.Len(t, sets, 1)
	assert.Equal(t, "sv01", sets[0].SetCode)
	assert.Equal(t, "en", sets[0].Language)
}

func TestListCardsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/cards?set_code=sv01&limit=1&page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	page := decode[models.CardPage](t, w)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Fuecoco", page.Data[0].Name)
	require.NotNil(t, page.Data[0].ImageURL)
	assert.Equal(t, "https://cdn.example.com/cards/sv01/002.png", *page.Data[0].ImageURL)
	assert.NotContains(t, w.Body.String(), "image_path")

	w = srv.do(t, http.MethodGet, "/api/cards?search=sprig", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[models.CardPage](t, w)
	assert.Equal(t, 20, page.Limit, "default limit")
	assert.Equal(t, 1, page.Page, "default page")
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Sprigatito", page.Data[0].Name)
}

func TestListCardsRejectsBadQuery(t *testing.T) {
	srv := newTestServer(t)

	for _, query := range []string{"limit=500", "limit=0", "page=0", "sort_order=sideways", "is_promo=maybe"} {
		t.Run(query, func(t *testing.T) {
			w := srv.do(t, http.MethodGet, "/api/cards?"+query, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestGetCardEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, fmt.Sprintf("/api/cards/%d", srv.cards[0]), nil)
	require.Equal(t, http.StatusOK, w.Code)
	card := decode[models.CardView](t, w)
	assert.Equal(t, "Sprigatito", card.Name)
	assert.Equal(t, "Grass", card.EnergyType)

	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/api/cards/99999", nil).Code)
	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/api/cards/abc", nil).Code)
}

func TestCollectionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	cardID := srv.cards[0]

	w := srv.do(t, http.MethodPost, "/api/collection", gin.H{"card_id": cardID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode[models.CollectionItem](t, w)
	assert.Equal(t, models.VariantStandard, item.Variant)
	assert.Equal(t, models.ConditionNearMint, item.Condition)
	assert.Equal(t, 1, item.Quantity)

	w = srv.do(t, http.MethodPost, "/api/collection", gin.H{"card_id": cardID})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = srv.do(t, http.MethodGet, "/api/collection", nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode[[]models.CollectionEntry](t, w)
	require.Len(t, entries, 1)
	assert.Equal(t, "Sprigatito", entries[0].Name)
	require.NotNil(t, entries[0].ImageURL)

	path := fmt.Sprintf("/api/collection/%d", item.ID)
	w = srv.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, item.ID, decode[models.CollectionEntry](t, w).CollectionID)

	w = srv.do(t, http.MethodPut, path, gin.H{"quantity": 3, "condition": "Mint"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.CollectionItem](t, w)
	assert.Equal(t, 3, updated.Quantity)
	assert.Equal(t, models.ConditionMint, updated.Condition)

	w = srv.do(t, http.MethodGet, "/api/collection/completion", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[[]models.CompletionSummary](t, w)
	require.Len(t, summary, 1)
	assert.Equal(t, 2, summary[0].TotalCards)
	assert.Equal(t, 1, summary[0].OwnedUniqueCards)
	assert.InDelta(t, 50.0, summary[0].PctComplete, 0.001)

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, path, nil).Code)
}

func TestCollectionRejectsBadInput(t *testing.T) {
	srv := newTestServer(t)
	cardID := srv.cards[0]

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing card", http.MethodPost, "/api/collection", gin.H{}, http.StatusBadRequest},
		{"unknown card", http.MethodPost, "/api/collection", gin.H{"card_id": 99999}, http.StatusBadRequest},
		{"bad variant", http.MethodPost, "/api/collection", gin.H{"card_id": cardID, "variant": "Gold"}, http.StatusBadRequest},
		{"bad condition", http.MethodPost, "/api/collection", gin.H{"card_id": cardID, "condition": "Pristine"}, http.StatusBadRequest},
		{"negative quantity", http.MethodPost, "/api/collection", gin.H{"card_id": cardID, "quantity": -2}, http.StatusBadRequest},
		{"grade out of range", http.MethodPost, "/api/collection", gin.H{"card_id": cardID, "grade": 11}, http.StatusBadRequest},
		{"bad date", http.MethodPost, "/api/collection", gin.H{"card_id": cardID, "date_acquired": "yesterday"}, http.StatusBadRequest},
		{"empty update", http.MethodPut, "/api/collection/1", gin.H{}, http.StatusBadRequest},
		{"update missing item", http.MethodPut, "/api/collection/4242", gin.H{"quantity": 2}, http.StatusNotFound},
		{"invalid id", http.MethodDelete, "/api/collection/abc", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestImportEndpoints(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/import/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"running":false,"progress":null,"last_result":null,"last_error":null}`, w.Body.String())

	w = srv.do(t, http.MethodPost, "/api/import", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = srv.do(t, http.MethodPost, "/api/import", gin.H{"quick": true})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = srv.do(t, http.MethodGet, "/api/import/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[map[string]any](t, w)["running"].(bool))

	close(srv.source.release)

	require.Eventually(t, func() bool {
		w := srv.do(t, http.MethodGet, "/api/import/status", nil)
		return !strings.Contains(w.Body.String(), `"running":true`)
	}, 5*time.Second, 10*time.Millisecond)

	w = srv.do(t, http.MethodGet, "/api/import/status", nil)
	status := decode[map[string]any](t, w)
	assert.NotNil(t, status["last_result"])
	assert.Nil(t, status["last_error"])
	assert.NotNil(t, status["progress"])
}

func TestImportConflictKeepsRunningProgress(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/import", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	progressMessage := func() any {
		progress, _ := decode[map[string]any](t, srv.do(t, http.MethodGet, "/api/import/status", nil))["progress"].(map[string]any)
		if progress == nil {
			return nil
		}
		return progress["message"]
	}
	require.Eventually(t, func() bool { return progressMessage() != nil }, 5*time.Second, 10*time.Millisecond)

	w = srv.do(t, http.MethodPost, "/api/import", gin.H{"quick": true})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Fetching sets from TCGdex...", progressMessage())
}

func TestImportStopsWhenImportContextIsCancelled(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/import", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.True(t, srv.importer.IsRunning())

	srv.cancelImports()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.importer.Wait(ctx))

	status := decode[map[string]any](t, srv.do(t, http.MethodGet, "/api/import/status", nil))
	assert.False(t, status["running"].(bool))
	assert.Contains(t, status["last_error"], "context canceled")
}

func TestImportRejectsBadBody(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/import", gin.H{"batch_size": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
