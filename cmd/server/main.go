package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/api"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/app"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/config"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/metrics"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/services"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Serves the card catalog, collection and import API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", os.Getenv("TCG_CONFIG_FILE"), "config file (yaml, toml or json)")
	return cmd
}

func serve(cfg config.Config) error {
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // best-effort on exit
	log := a.Logger

	refreshCardCount := func() {
		n, err := a.Catalog.CountCards(context.Background())
		if err != nil {
			log.Warn("Failed to count catalog cards", zap.Error(err))
			return
		}
		metrics.CardDatabaseSize.Set(float64(n))
		log.Info("Catalog loaded", zap.Int64("cards", n))
	}
	refreshCardCount()
	a.Importer.OnComplete(func(*services.ImportResult) { refreshCardCount() })

	// Imports started over HTTP stop when the server shuts down
	importCtx, cancelImports := context.WithCancel(context.Background())
	defer cancelImports()

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.SetupRouter(api.RouterConfig{
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		FrontendDistPath:   cfg.Server.FrontendDistPath,
		ImportContext:      importCtx,
	}, api.Services{
		Catalog:    a.Catalog,
		Collection: a.Collection,
		Importer:   a.Importer,
	}, log)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-quit:
	}
	log.Info("Shutting down server...")

	// Give outstanding requests a deadline to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server forced to shutdown", zap.Error(err))
	}
	if a.Importer.IsRunning() {
		log.Info("Stopping running import")
	}
	cancelImports()
	if err := a.Importer.Wait(shutdownCtx); err != nil {
		log.Warn("Import did not stop before shutdown deadline", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}
