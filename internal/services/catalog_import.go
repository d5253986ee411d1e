package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/database"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/metrics"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/models"
)

// ErrImportRunning is returned when an import is already in progress in
// this process.
var ErrImportRunning = errors.New("an import is already running")

const DefaultImportBatchSize = 50

// CatalogSource is the upstream card-data API
type CatalogSource interface {
	FetchSets(ctx context.Context) ([]TCGdexSetSummary, error)
	FetchSet(ctx context.Context, id string) (*TCGdexSetDetail, error)
	FetchCard(ctx context.Context, id string) (*TCGdexCard, error)
}

type ImportPhase string

const (
	PhaseSets  ImportPhase = "sets"
	PhaseCards ImportPhase = "cards"
)

type ImportProgressEvent struct {
	Phase   ImportPhase `json:"phase"`
	SetID   string      `json:"set_id,omitempty"`
	SetName string      `json:"set_name,omitempty"`
	Current int         `json:"current"`
	Total   int         `json:"total"`
	Message string      `json:"message"`
}

// ImportOptions controls one run. Empty SetIDs imports every set.
type ImportOptions struct {
	SetIDs     []string                        `json:"set_ids"`
	DryRun     bool                            `json:"dry_run"`
	Force      bool                            `json:"force"`
	Quick      bool                            `json:"quick"`
	BatchSize  int                             `json:"batch_size"`
	OnProgress func(event ImportProgressEvent) `json:"-"`
	// OnStart runs once the run owns the running flag, before any work
	OnStart func() `json:"-"`
}

type ImportError struct {
	SetID  string `json:"set_id"`
	CardID string `json:"card_id,omitempty"`
	Error  string `json:"error"`
}

type NewTaxonomy struct {
	Rarities    []string `json:"rarities"`
	CardTypes   []string `json:"card_types"`
	EnergyTypes []string `json:"energy_types"`
}

// ImportResult is the report for one run
type ImportResult struct {
	RunID         string        `json:"run_id"`
	StartedAt     time.Time     `json:"started_at"`
	DryRun        bool          `json:"dry_run"`
	Quick         bool          `json:"quick"`
	SetsImported  int           `json:"sets_imported"`
	SetsSkipped   int           `json:"sets_skipped"`
	CardsImported int           `json:"cards_imported"`
	CardsUpdated  int           `json:"cards_updated"`
	CardsSkipped  int           `json:"cards_skipped"`
	Errors        []ImportError `json:"errors"`
	NewTaxonomy   NewTaxonomy   `json:"new_taxonomy"`
	Duration      time.Duration `json:"-"`
	DurationMS    int64         `json:"duration_ms"`
}

func (r *ImportResult) addError(setID, cardID, msg string) {
	r.Errors = append(r.Errors, ImportError{SetID: setID, CardID: cardID, Error: msg})
}

type cardCounts struct {
	imported, updated, skipped int
}

func (c *cardCounts) add(action MergeAction) {
	switch action {
	case ActionImported:
		c.imported++
	case ActionUpdated:
		c.updated++
	default:
		c.skipped++
	}
}

// ImportConfig holds service-wide defaults
type ImportConfig struct {
	BatchSize int
	Language  string
	Now       func() time.Time
}

// ImportService runs catalog synchronization from TCGdex into the store.
// At most one run is active per process.
type ImportService struct {
	store     database.Store
	source    CatalogSource
	batchSize int
	language  string
	now       func() time.Time
	logger    *zap.Logger

	running atomic.Bool
	active  sync.WaitGroup

	mu         sync.Mutex
	lastResult *ImportResult
	lastErr    error
	onComplete []func(*ImportResult)
}

func NewImportService(store database.Store, source CatalogSource, cfg ImportConfig, logger *zap.Logger) *ImportService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultImportBatchSize
	}
	if cfg.Language == "" {
		cfg.Language = models.DefaultLanguage
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ImportService{
		store:     store,
		source:    source,
		batchSize: cfg.BatchSize,
		language:  cfg.Language,
		now:       cfg.Now,
		logger:    logger.Named("import"),
	}
}

// OnComplete registers fn to be called after every non dry-run import
func (s *ImportService) OnComplete(fn func(*ImportResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onComplete = append(s.onComplete, fn)
}

// IsRunning reports whether an import is in progress
func (s *ImportService) IsRunning() bool {
	return s.running.Load()
}

// LastResult returns the report and error of the most recent finished run
func (s *ImportService) LastResult() (*ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult, s.lastErr
}

// Run imports synchronously. The returned result is never nil when the run
// started, even if err is set; err is only non-nil for fatal failures and
// cancellation.
func (s *ImportService) Run(ctx context.Context, opts ImportOptions) (*ImportResult, error) {
	if !s.acquire() {
		return nil, ErrImportRunning
	}
	defer s.release()
	if opts.OnStart != nil {
		opts.OnStart()
	}
	return s.run(ctx, opts)
}

// Start launches an import in the background and returns once the run owns
// the running flag.
func (s *ImportService) Start(ctx context.Context, opts ImportOptions) error {
	if !s.acquire() {
		return ErrImportRunning
	}
	if opts.OnStart != nil {
		opts.OnStart()
	}
	go func() {
		defer s.release()
		if _, err := s.run(ctx, opts); err != nil {
			s.logger.Error("Background import failed", zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until no import is running or ctx is done
func (s *ImportService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ImportService) acquire() bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	s.active.Add(1)
	return true
}

func (s *ImportService) release() {
	s.running.Store(false)
	s.active.Done()
}

func (s *ImportService) run(ctx context.Context, opts ImportOptions) (*ImportResult, error) {
	metrics.ImportRunning.Set(1)
	defer metrics.ImportRunning.Set(0)

	if opts.BatchSize <= 0 {
		opts.BatchSize = s.batchSize
	}

	start := s.now()
	result := &ImportResult{
		RunID:     uuid.New().String(),
		StartedAt: start,
		DryRun:    opts.DryRun,
		Quick:     opts.Quick,
		Errors:    []ImportError{},
		NewTaxonomy: NewTaxonomy{
			Rarities:    []string{},
			CardTypes:   []string{},
			EnergyTypes: []string{},
		},
	}
	log := s.logger.With(zap.String("run_id", result.RunID))
	log.Info("Import started",
		zap.Strings("set_ids", opts.SetIDs), zap.Bool("dry_run", opts.DryRun),
		zap.Bool("force", opts.Force), zap.Bool("quick", opts.Quick), zap.Int("batch_size", opts.BatchSize))

	err := s.execute(ctx, opts, result, log)

	result.Duration = s.now().Sub(start)
	result.DurationMS = result.Duration.Milliseconds()
	s.recordMetrics(opts, result, err)

	if err != nil {
		log.Error("Import failed", zap.Error(err), zap.Duration("duration", result.Duration))
	} else {
		log.Info("Import finished",
			zap.Int("sets_imported", result.SetsImported), zap.Int("sets_skipped", result.SetsSkipped),
			zap.Int("cards_imported", result.CardsImported), zap.Int("cards_updated", result.CardsUpdated),
			zap.Int("cards_skipped", result.CardsSkipped), zap.Int("errors", len(result.Errors)),
			zap.Duration("duration", result.Duration))
	}

	s.mu.Lock()
	s.lastResult, s.lastErr = result, err
	hooks := append([]func(*ImportResult){}, s.onComplete...)
	s.mu.Unlock()

	if !opts.DryRun {
		for _, fn := range hooks {
			fn(result)
		}
	}
	return result, err
}

func (s *ImportService) execute(ctx context.Context, opts ImportOptions, result *ImportResult, log *zap.Logger) error {
	progress(opts, ImportProgressEvent{Phase: PhaseSets, Message: "Fetching sets from TCGdex..."})

	sets, err := s.source.FetchSets(ctx)
	if err != nil {
		return err
	}
	sets = filterSets(sets, opts.SetIDs)

	progress(opts, ImportProgressEvent{
		Phase:   PhaseSets,
		Total:   len(sets),
		Message: fmt.Sprintf("Found %d sets to process", len(sets)),
	})

	if opts.DryRun {
		result.SetsImported = len(sets)
		for _, set := range sets {
			result.CardsImported += set.CardCount.Total
		}
		return nil
	}

	return s.store.WithConn(ctx, func(conn database.Conn) error {
		cache := NewTaxonomyCache()
		if err := cache.Load(ctx, conn); err != nil {
			return err
		}
		languageID, err := conn.LanguageID(ctx, s.language)
		if err != nil {
			return fmt.Errorf("failed to resolve language %q: %w", s.language, err)
		}
		merger := NewCatalogMerger(cache, languageID, s.now)

		defer func() {
			result.NewTaxonomy = NewTaxonomy{
				Rarities:    cache.Introduced(database.TaxonomyRarity),
				CardTypes:   cache.Introduced(database.TaxonomyCardType),
				EnergyTypes: cache.Introduced(database.TaxonomyEnergyType),
			}
		}()

		for i, set := range sets {
			if err := ctx.Err(); err != nil {
				return s.cancelled(result, set.ID, err, log)
			}
			progress(opts, ImportProgressEvent{
				Phase:   PhaseSets,
				SetID:   set.ID,
				SetName: set.Name,
				Current: i + 1,
				Total:   len(sets),
				Message: fmt.Sprintf("Processing set: %s (%s)", set.Name, set.ID),
			})
			if err := s.importSet(ctx, conn, merger, set, opts, result, log); err != nil {
				return s.cancelled(result, set.ID, err, log)
			}
		}
		return nil
	})
}

func (s *ImportService) cancelled(result *ImportResult, setID string, err error, log *zap.Logger) error {
	result.addError(setID, "", "import cancelled: "+err.Error())
	metrics.ImportErrorsTotal.WithLabelValues("cancelled").Inc()
	log.Warn("Import cancelled", zap.String("set_id", setID))
	return err
}

// importSet merges one set and its cards. Failures are recorded on result;
// the returned error is non-nil only when ctx is done.
func (s *ImportService) importSet(ctx context.Context, conn database.Conn, merger *CatalogMerger, summary TCGdexSetSummary, opts ImportOptions, result *ImportResult, log *zap.Logger) error {
	log = log.With(zap.String("set_id", summary.ID))

	detail, err := s.source.FetchSet(ctx, summary.ID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.setError(result, summary.ID, err, log)
		return nil
	}

	setResult, err := merger.UpsertSet(ctx, conn, detail, opts.Force)
	if err != nil {
		s.setError(result, summary.ID, err, log)
		return nil
	}
	metrics.ImportSetsTotal.WithLabelValues(string(setResult.Action)).Inc()

	if setResult.Action == ActionSkipped {
		result.SetsSkipped++
		log.Debug("Set already imported, skipping")
		return nil
	}
	result.SetsImported++

	cards := detail.Cards
	officialCount := detail.CardCount.Official
	suffix := ""
	if opts.Quick {
		suffix = " (quick mode)"
	}
	progress(opts, ImportProgressEvent{
		Phase:   PhaseCards,
		SetID:   summary.ID,
		SetName: summary.Name,
		Total:   len(cards),
		Message: fmt.Sprintf("Importing %d cards for %s%s...", len(cards), summary.Name, suffix),
	})

	for start := 0; start < len(cards); start += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+opts.BatchSize, len(cards))

		if err := s.importBatch(ctx, conn, merger, summary.ID, setResult.SetID, officialCount, cards[start:end], opts, result, log); err != nil {
			return err
		}

		progress(opts, ImportProgressEvent{
			Phase:   PhaseCards,
			SetID:   summary.ID,
			SetName: summary.Name,
			Current: end,
			Total:   len(cards),
			Message: fmt.Sprintf("%s: %d/%d cards", summary.Name, end, len(cards)),
		})
	}
	return nil
}

// importBatch merges cards in one transaction. Counters reach result only
// after commit; a rollback records a single batch error.
func (s *ImportService) importBatch(ctx context.Context, conn database.Conn, merger *CatalogMerger, apiSetID string, setID uint, officialCount int, cards []TCGdexCardSummary, opts ImportOptions, result *ImportResult, log *zap.Logger) error {
	var counts cardCounts
	mark := merger.cache.Mark()

	err := conn.Batch(ctx, func(q database.Queries) error {
		counts = cardCounts{}
		for _, summary := range cards {
			if err := ctx.Err(); err != nil {
				return err
			}
			action, cardErr, err := s.importCard(ctx, q, merger, summary, setID, officialCount, opts)
			if err != nil {
				return err
			}
			if cardErr != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				result.addError(apiSetID, summary.ID, cardErr.Error())
				metrics.ImportErrorsTotal.WithLabelValues("card").Inc()
				log.Warn("Card import failed", zap.String("card_id", summary.ID), zap.Error(cardErr))
				continue
			}
			counts.add(action)
		}
		return nil
	})

	if err != nil {
		merger.cache.Revert(mark)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result.addError(apiSetID, "", "Batch rollback: "+err.Error())
		metrics.ImportBatchRollbacks.Inc()
		metrics.ImportErrorsTotal.WithLabelValues("batch").Inc()
		log.Error("Batch rolled back", zap.Int("cards", len(cards)), zap.Error(err))
		return nil
	}

	result.CardsImported += counts.imported
	result.CardsUpdated += counts.updated
	result.CardsSkipped += counts.skipped
	metrics.ImportCardsTotal.WithLabelValues(string(ActionImported)).Add(float64(counts.imported))
	metrics.ImportCardsTotal.WithLabelValues(string(ActionUpdated)).Add(float64(counts.updated))
	metrics.ImportCardsTotal.WithLabelValues(string(ActionSkipped)).Add(float64(counts.skipped))
	return nil
}

// importCard merges one card under its own savepoint. cardErr is a failure
// confined to this card; err means the enclosing batch can not continue.
func (s *ImportService) importCard(ctx context.Context, q database.Queries, merger *CatalogMerger, summary TCGdexCardSummary, setID uint, officialCount int, opts ImportOptions) (action MergeAction, cardErr, err error) {
	var full *TCGdexCard
	if !opts.Quick {
		full, cardErr = s.source.FetchCard(ctx, summary.ID)
		if cardErr != nil {
			return "", cardErr, nil
		}
	}

	mark := merger.cache.Mark()
	err = q.Savepoint(ctx, func(sp database.Queries) error {
		if opts.Quick {
			action, cardErr = merger.UpsertCardQuick(ctx, sp, summary, setID, officialCount, opts.Force)
		} else {
			action, cardErr = merger.UpsertCardFull(ctx, sp, full, setID, officialCount, opts.Force)
		}
		return cardErr
	})
	if cardErr != nil {
		merger.cache.Revert(mark)
		return "", cardErr, nil
	}
	if err != nil {
		merger.cache.Revert(mark)
		return "", nil, err
	}
	return action, nil, nil
}

func (s *ImportService) setError(result *ImportResult, setID string, err error, log *zap.Logger) {
	result.addError(setID, "", err.Error())
	metrics.ImportErrorsTotal.WithLabelValues("set").Inc()
	log.Warn("Set import failed", zap.Error(err))
}

func (s *ImportService) recordMetrics(opts ImportOptions, result *ImportResult, err error) {
	mode := "full"
	switch {
	case opts.DryRun:
		mode = "dry_run"
	case opts.Quick:
		mode = "quick"
	}
	outcome := "ok"
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = "cancelled"
	case err != nil:
		outcome = "failed"
	}
	metrics.ImportRunsTotal.WithLabelValues(mode, outcome).Inc()
	metrics.ImportRunDuration.Observe(result.Duration.Seconds())
	metrics.TaxonomyEntriesCreated.WithLabelValues(string(database.TaxonomyRarity)).Add(float64(len(result.NewTaxonomy.Rarities)))
	metrics.TaxonomyEntriesCreated.WithLabelValues(string(database.TaxonomyCardType)).Add(float64(len(result.NewTaxonomy.CardTypes)))
	metrics.TaxonomyEntriesCreated.WithLabelValues(string(database.TaxonomyEnergyType)).Add(float64(len(result.NewTaxonomy.EnergyTypes)))
}

// filterSets keeps the API order and drops sets not in ids
func filterSets(sets []TCGdexSetSummary, ids []string) []TCGdexSetSummary {
	if len(ids) == 0 {
		return sets
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	filtered := make([]TCGdexSetSummary, 0, len(ids))
	for _, set := range sets {
		if wanted[set.ID] {
			filtered = append(filtered, set)
		}
	}
	return filtered
}

func progress(opts ImportOptions, event ImportProgressEvent) {
	if opts.OnProgress != nil {
		opts.OnProgress(event)
	}
}
