package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/edithatogo/citeref/internal/csl"
	"github.com/edithatogo/citeref/internal/storage"
)

var (
	searchLimit int
	searchType  string
	searchLow   bool
)

func init() {
	indexCmd.AddCommand(indexRebuildCmd)
	searchCmd.Flags().IntVar(&searchLimit, "limit", DefaultSearchLimit, "Maximum results to return")
	searchCmd.Flags().StringVar(&searchType, "type", "", "List records of this CSL type instead of a text search")
	searchCmd.Flags().BoolVar(&searchLow, "low-confidence", false, "List records below confidence_threshold, weakest first")
	rootCmd.AddCommand(indexCmd, searchCmd)
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the SQLite query index",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the query index from the reference file",
	Long: `Rebuild the SQLite full-text index from the canonical reference file.

The index is derived data: it can be deleted at any time. search rebuilds it
automatically when the reference file has changed.`,
	Args: cobra.NoArgs,
	RunE: runIndexRebuild,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over titles, authors and containers",
	Long: `Search the reference index.

Examples:
  cref search phylogenetics
  cref search "smith graph"
  cref search --type book
  cref search --low-confidence`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

// RebuildResult is the response for the index rebuild command.
type RebuildResult struct {
	Status  string `json:"status"`
	Path    string `json:"path"`
	Records int    `json:"records"`
	Digest  string `json:"digest"`
}

// mustOpenIndex opens the index, creating its directory, exits on error.
// The caller is responsible for calling Close() on the returned index.
func mustOpenIndex() *storage.Index {
	path := cfg.IndexFile()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		exitWithError(ExitError, "creating index directory: %v", err)
	}
	idx, err := storage.OpenIndex(path)
	if err != nil {
		exitWithError(ExitError, "opening index: %v", err)
	}
	return idx
}

// rebuildIndex loads the store and refreshes idx with it.
func rebuildIndex(idx *storage.Index, store *storage.Store) (int, string) {
	digest, err := store.Digest()
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	count, err := idx.Rebuild(mustLoadRecords(store), digest)
	if err != nil {
		exitWithError(ExitDataError, "rebuilding index: %v", err)
	}
	return count, digest
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	idx := mustOpenIndex()
	defer idx.Close()

	count, digest := rebuildIndex(idx, openStore())
	res := RebuildResult{Status: "rebuilt", Path: cfg.IndexFile(), Records: count, Digest: digest}
	if humanOutput {
		outputHuman("Rebuilt index %s: %d records\n", res.Path, res.Records)
		return nil
	}
	return outputJSON(res)
}

// ensureFresh rebuilds idx when it no longer matches the store.
func ensureFresh(idx *storage.Index) {
	store := openStore()
	digest, err := store.Digest()
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	ok, err := idx.InSync(digest)
	if err != nil {
		exitWithError(ExitError, "checking index: %v", err)
	}
	if !ok {
		newLogger().Info("index stale, rebuilding", "path", cfg.IndexFile())
		rebuildIndex(idx, store)
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && searchType == "" && !searchLow {
		exitWithError(ExitError, "give a query, --type or --low-confidence")
	}

	idx := mustOpenIndex()
	defer idx.Close()
	ensureFresh(idx)

	var out []RecordSummary
	switch {
	case searchLow:
		scored, err := idx.LowConfidence(cfg.ConfidenceThreshold)
		if err != nil {
			exitWithError(ExitError, "querying index: %v", err)
		}
		for _, s := range scored {
			sum := summarize(s.Record)
			sum.Confidence = s.Confidence
			out = append(out, sum)
		}
	case searchType != "":
		if !csl.Type(searchType).Valid() {
			exitWithError(ExitError, "invalid type %q (valid: %s)", searchType, csl.ValidTypeList())
		}
		recs, err := idx.ByType(csl.Type(searchType))
		if err != nil {
			exitWithError(ExitError, "querying index: %v", err)
		}
		out = summaries(recs)
	default:
		recs, err := idx.Search(args[0], searchLimit)
		if err != nil {
			exitWithError(ExitError, "searching: %v", err)
		}
		out = summaries(recs)
	}

	if len(out) > searchLimit && searchLimit > 0 {
		out = out[:searchLimit]
	}
	if out == nil {
		out = []RecordSummary{}
	}

	if humanOutput {
		printRecordsHuman(out)
		return nil
	}
	return outputJSON(out)
}

func summaries(recs []csl.Record) []RecordSummary {
	out := make([]RecordSummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, summarize(r))
	}
	return out
}
