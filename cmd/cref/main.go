// Package main provides the cref CLI entry point.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edithatogo/citeref/internal/config"
	"github.com/edithatogo/citeref/internal/crossref"
	"github.com/edithatogo/citeref/internal/csl"
	"github.com/edithatogo/citeref/internal/enrich"
	"github.com/edithatogo/citeref/internal/logging"
	"github.com/edithatogo/citeref/internal/reachability"
	"github.com/edithatogo/citeref/internal/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	cfgFile     string
	storeFlag   string
	logLevel    string

	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cref",
	Short: "Citation record pipeline",
	Long: `cref manages a canonical CSL-JSON reference list for a manuscript.

It checks that every [key] cited in the manuscript has a record, scores
record quality, enriches weak records from CrossRef, probes URLs and DOIs,
and converts the records to RIS, EndNote, YAML, BibLaTeX and ENW.

Settings come from cref.yaml (working directory or $XDG_CONFIG_HOME/cref),
CREF_* environment variables and .env.
All commands output JSON by default.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./cref.yaml or $XDG_CONFIG_HOME/cref/cref.yaml)")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "Path to the canonical reference file (overrides store_path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides log_level)")
	rootCmd.Version = Version
}

func initConfig() {
	c, err := config.Load(cfgFile)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	if storeFlag != "" {
		c.StorePath = config.ExpandPath(storeFlag)
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	cfg = c
}

// newLogger returns the stderr logger at the configured level.
func newLogger() *slog.Logger {
	return logging.New(cfg.LogLevel, os.Stderr)
}

func openStore() *storage.Store {
	return storage.NewStore(cfg.StorePath)
}

// mustLoadRecords loads the store, exits on error.
func mustLoadRecords(s *storage.Store) []csl.Record {
	records, err := s.Load()
	if err != nil {
		if storage.IsValidationError(err) {
			exitWithError(ExitDataError, "%v", err)
		}
		exitWithError(ExitDataError, "loading records: %v", err)
	}
	return records
}

// mustSave saves the store, exits on error.
func mustSave(s *storage.Store, records []csl.Record) {
	if err := s.Save(records); err != nil {
		if storage.IsValidationError(err) {
			exitWithError(ExitDataError, "refusing to save: %v", err)
		}
		exitWithError(ExitError, "saving records: %v", err)
	}
}

// newCrossRefClient builds the authority client from config.
func newCrossRefClient() *crossref.Client {
	return crossref.NewClient(
		crossref.WithBaseURL(cfg.CrossRef.BaseURL),
		crossref.WithMailto(cfg.CrossRef.Mailto),
		crossref.WithRateLimit(cfg.CrossRef.RateLimit),
		crossref.WithTimeout(cfg.Timeout),
	)
}

// newEnricher builds an enrichment engine backed by CrossRef.
func newEnricher(log *slog.Logger) *enrich.Engine {
	return enrich.NewEngine(newCrossRefClient(),
		enrich.WithLogger(log),
		enrich.WithConcurrency(cfg.Concurrency),
		enrich.WithCacheWindow(cfg.CacheWindow()),
		enrich.WithThreshold(cfg.ConfidenceThreshold),
	)
}

// newChecker builds a reachability checker from config and flags.
func newChecker(log *slog.Logger, failURL, failDOI bool) *reachability.Checker {
	return reachability.NewChecker(
		reachability.WithLogger(log),
		reachability.WithTimeout(cfg.Timeout),
		reachability.WithConcurrency(cfg.Concurrency),
		reachability.FailOnInaccessibleURL(failURL || cfg.FailOnInaccessibleURL),
		reachability.FailOnInvalidDOI(failDOI || cfg.FailOnInvalidDOI),
	)
}

// readInput reads a file, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// mustReadManuscript reads manuscript text, exits on error.
func mustReadManuscript(path string) string {
	data, err := readInput(path)
	if err != nil {
		exitWithError(ExitError, "reading manuscript: %v", err)
	}
	return string(data)
}

// selectRecords keeps the records whose id is in ids, in store order.
// An empty ids slice selects everything.
func selectRecords(records []csl.Record, ids []string) []csl.Record {
	if len(ids) == 0 {
		return records
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[strings.TrimSpace(id)] = true
	}
	var out []csl.Record
	for _, r := range records {
		if want[r.ID] {
			out = append(out, r)
		}
	}
	return out
}
