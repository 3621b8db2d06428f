// eventpulse — event detection and options-implied anticipation for US equities.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arkad-labs/eventpulse/api"
	"github.com/arkad-labs/eventpulse/internal/analyzer"
	"github.com/arkad-labs/eventpulse/internal/config"
	"github.com/arkad-labs/eventpulse/internal/datasource"
	"github.com/arkad-labs/eventpulse/internal/snapshot"
	"github.com/arkad-labs/eventpulse/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, loaded in PersistentPreRunE.
var (
	cfg *config.Config
	log zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "eventpulse",
	Short: "eventpulse — event detection and options-implied anticipation",
	Long: `eventpulse detects abnormal price events in US equities and scores how
strongly the options market is positioning for the next one.

It regresses a stock against its market benchmark, flags outlier
volume and gap days, aggregates the options chain per expiration, and
folds volatility risk premium, implied event moves, term structure,
flow conviction, and dollar flow into a 0-100 anticipation index.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lv, _ := cmd.Flags().GetString("log-level"); lv != "" {
			cfg.Logging.Level = lv
		}
		log, err = buildLogger(cfg)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(optionsCmd)
	rootCmd.AddCommand(anticipateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(statusCmd)
}

// buildLogger constructs the process logger from the logging config.
func buildLogger(cfg *config.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	var out = os.Stderr
	w := zerolog.New(out)
	if cfg.Logging.Format == "console" {
		w = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	}
	return w.Level(level).With().Timestamp().Logger(), nil
}

// newAnalyzer wires the data sources, snapshot store, and analyzer.
// The returned cleanup closes the store and must always be called.
func newAnalyzer() (*analyzer.Analyzer, func(), error) {
	agg := datasource.NewAggregator(
		time.Duration(cfg.Options.CacheTTL)*time.Second,
		time.Duration(cfg.Options.RequestDelayMS)*time.Millisecond,
		cfg.Options.RateLimit,
		log,
	)

	store, err := snapshot.Open(cfg.Snapshot.Dir, log)
	if err != nil {
		// The flow history is an enrichment. Analysis still works without it.
		log.Warn().Err(err).Str("dir", cfg.Snapshot.Dir).
			Msg("snapshot store unavailable, flow trend disabled")
		return analyzer.New(cfg, agg, nil, log), func() {}, nil
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("closing snapshot store")
		}
	}
	return analyzer.New(cfg, agg, store, log), cleanup, nil
}

func normalizeSymbol(arg string) string {
	return strings.ToUpper(strings.TrimSpace(arg))
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("eventpulse %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [symbol]",
	Short: "Detect abnormal price events in a stock's history",
	Long: `Fetch daily history for the symbol and its benchmark, regress the stock
against the benchmark, and flag the days with the most abnormal
volume-times-gap behavior, classified by move direction and follow-through.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol := normalizeSymbol(args[0])
		full, _ := cmd.Flags().GetBool("full")

		an, cleanup, err := newAnalyzer()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		analysis, err := an.AnalyzeEvents(ctx, symbol)
		if err != nil {
			return err
		}
		if !full {
			analysis.Records = nil
		}
		return printJSON(analysis)
	},
}

func init() {
	analyzeCmd.Flags().Bool("full", false, "include every annotated bar, not just flagged events")
}

// --- Options Command ---

var optionsCmd = &cobra.Command{
	Use:   "options [symbol]",
	Short: "Analyze the options chain across near expirations",
	Long: `Fetch the options chain for the nearest expirations and aggregate each
one: ATM implied volatility, straddle-implied move, OTM dollar flow,
unusual activity, and conviction. A cross-expiration summary adds the
IV term structure and a net sentiment call.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol := normalizeSymbol(args[0])

		an, cleanup, err := newAnalyzer()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		analysis, err := an.AnalyzeOptions(ctx, symbol)
		if err != nil {
			return err
		}
		return printJSON(analysis)
	},
}

// --- Anticipate Command ---

var anticipateCmd = &cobra.Command{
	Use:   "anticipate [symbol...]",
	Short: "Score how strongly options are anticipating an event",
	Long: `Run both halves of the analysis and fold them into the 0-100
anticipation index. With multiple symbols, analyzes them concurrently
and reports each one.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbols := make([]string, 0, len(args))
		for _, a := range args {
			if s := normalizeSymbol(a); s != "" {
				symbols = append(symbols, s)
			}
		}

		an, cleanup, err := newAnalyzer()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
		defer cancel()

		if len(symbols) == 1 {
			report, err := an.ScoreAnticipation(ctx, symbols[0])
			if err != nil {
				return err
			}
			return printJSON(report)
		}

		reports, err := an.AnalyzeBatch(ctx, symbols)
		if err != nil {
			return err
		}
		return printJSON(reports)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		an, cleanup, err := newAnalyzer()
		if err != nil {
			return err
		}
		defer cleanup()

		api.Version = version
		srv := api.NewServer(cfg, an, log)
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		return srv.ListenAndServe(addr)
	},
}

// --- Snapshot Commands ---

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage the dollar-flow snapshot history",
}

var snapshotRecordCmd = &cobra.Command{
	Use:   "record [symbol...]",
	Short: "Record today's options dollar flow for later trend comparison",
	Long: `Fetch and analyze the options chain for each symbol, storing today's
per-expiration dollar-flow observation. Run daily so the anticipation
flow-trend component has trailing history to compare against.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		an, cleanup, err := newAnalyzer()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
		defer cancel()

		for _, arg := range args {
			symbol := normalizeSymbol(arg)
			analysis, err := an.AnalyzeOptions(ctx, symbol)
			if err != nil {
				log.Error().Err(err).Str("symbol", symbol).Msg("snapshot failed")
				continue
			}
			fmt.Printf("Recorded %d expiration(s) for %s\n", len(analysis.Expirations), symbol)
		}
		return nil
	},
}

var snapshotPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete flow snapshots older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := snapshot.Open(cfg.Snapshot.Dir, log)
		if err != nil {
			return fmt.Errorf("open snapshot store: %w", err)
		}
		defer store.Close()

		if err := store.Prune(cfg.Snapshot.RetentionDays); err != nil {
			return err
		}
		fmt.Printf("Pruned snapshots older than %d days\n", cfg.Snapshot.RetentionDays)
		return nil
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotRecordCmd)
	snapshotCmd.AddCommand(snapshotPruneCmd)
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  eventpulse — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Market Status: %s\n", utils.MarketStatus())
		fmt.Printf("  Time (ET):     %s\n", utils.NowEastern().Format("02 Jan 2006, 03:04 PM MST"))
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Benchmark:      %s\n", cfg.Market.Benchmark)
		fmt.Printf("    Lookback:       %d trading days\n", cfg.Market.LookbackDays)
		fmt.Printf("    Events Flagged: top %d\n", cfg.Market.EventCount)
		fmt.Printf("    Expirations:    %d\n", cfg.Options.MaxExpirations)
		fmt.Printf("    Snapshot Dir:   %s\n", cfg.Snapshot.Dir)
		fmt.Printf("    API Server:     %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
