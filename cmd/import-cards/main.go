// Command import-cards pulls Pokémon TCG sets and cards from TCGdex into the
// catalog database.
//
//	import-cards                              # every set, full mode
//	import-cards --set sv03.5 --set sv04      # selected sets
//	import-cards --quick --dry-run            # preview using set summaries
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/app"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/config"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Import failed:", err)
		stop()
		os.Exit(1)
	}
}

type importFlags struct {
	configFile string
	setIDs     []string
	dryRun     bool
	force      bool
	quick      bool
}

func newRootCmd() *cobra.Command {
	var flags importFlags
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "import-cards",
		Short: "Import Pokémon TCG card data from TCGdex",
		Long: `Fetches sets and cards from the TCGdex API and merges them into the
catalog. Existing records are skipped unless --force is given. Quick mode
reads only set card summaries, so rarity and type data are left unknown.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWith(v, flags.configFile)
			if err != nil {
				return err
			}
			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // best-effort on exit

			return runImport(cmd.Context(), cmd.OutOrStdout(), a.Importer, services.ImportOptions{
				SetIDs: flags.setIDs,
				DryRun: flags.dryRun,
				Force:  flags.force,
				Quick:  flags.quick,
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.configFile, "config", os.Getenv("TCG_CONFIG_FILE"), "config file (yaml, toml or json)")
	f.StringArrayVar(&flags.setIDs, "set", nil, "import only this set id (repeatable)")
	f.BoolVar(&flags.dryRun, "dry-run", false, "preview what would be imported without writing")
	f.BoolVar(&flags.force, "force", false, "re-import and update existing records")
	f.BoolVar(&flags.quick, "quick", false, "use set card summaries only (fast, but no rarity/type data)")
	f.Int("batch-size", services.DefaultImportBatchSize, "cards per transaction")
	_ = v.BindPFlag("import.batch_size", f.Lookup("batch-size"))

	return cmd
}

// runImport executes one import, streaming progress and a summary to out.
// Item failures are listed but only fatal errors are returned.
func runImport(ctx context.Context, out io.Writer, importer *services.ImportService, opts services.ImportOptions) error {
	opts.OnProgress = func(event services.ImportProgressEvent) {
		prefix := "[sets]"
		if event.Phase == services.PhaseCards {
			prefix = "[cards]"
		}
		progress := ""
		if event.Total > 0 {
			progress = fmt.Sprintf(" (%d/%d)", event.Current, event.Total)
		}
		fmt.Fprintf(out, "%s%s %s\n", prefix, progress, event.Message)
	}

	fmt.Fprintln(out, "Pokemon TCG Import (TCGdex)")
	fmt.Fprintln(out, "==========================")
	if opts.DryRun {
		fmt.Fprintln(out, "DRY RUN: no data will be written")
	}
	if len(opts.SetIDs) > 0 {
		fmt.Fprintf(out, "Filtering to sets: %s\n", strings.Join(opts.SetIDs, ", "))
	}
	if opts.Force {
		fmt.Fprintln(out, "Force mode: existing records will be updated")
	}
	if opts.Quick {
		fmt.Fprintln(out, "Quick mode: using card summaries only (no rarity/type data)")
	}

	result, err := importer.Run(ctx, opts)
	if result != nil {
		printSummary(out, result)
	}
	return err
}

func printSummary(out io.Writer, result *services.ImportResult) {
	fmt.Fprintln(out, "\n--- Import Summary ---")
	fmt.Fprintf(out, "Sets:  %d imported, %d skipped\n", result.SetsImported, result.SetsSkipped)
	fmt.Fprintf(out, "Cards: %d imported, %d updated, %d skipped\n",
		result.CardsImported, result.CardsUpdated, result.CardsSkipped)
	fmt.Fprintf(out, "Duration: %.1fs\n", result.Duration.Seconds())

	if names := result.NewTaxonomy.Rarities; len(names) > 0 {
		fmt.Fprintf(out, "\nNew rarities added: %s\n", strings.Join(names, ", "))
	}
	if names := result.NewTaxonomy.CardTypes; len(names) > 0 {
		fmt.Fprintf(out, "New card types added: %s\n", strings.Join(names, ", "))
	}
	if names := result.NewTaxonomy.EnergyTypes; len(names) > 0 {
		fmt.Fprintf(out, "New energy types added: %s\n", strings.Join(names, ", "))
	}

	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "\nErrors (%d):\n", len(result.Errors))
		for _, e := range result.Errors {
			target := e.SetID
			if e.CardID != "" {
				target += "/" + e.CardID
			}
			fmt.Fprintf(out, "  %s: %s\n", target, e.Error)
		}
	}
}
