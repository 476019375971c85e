package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/edithatogo/citeref/internal/enrich"
	"github.com/edithatogo/citeref/internal/storage"
)

var (
	enrichIDs    []string
	enrichDryRun bool
)

func init() {
	enrichCmd.Flags().StringSliceVar(&enrichIDs, "id", nil, "Only enrich these record ids (repeatable or comma-separated)")
	enrichCmd.Flags().BoolVar(&enrichDryRun, "dry-run", false, "Show results without writing the store")
	rootCmd.AddCommand(enrichCmd, recommendCmd)
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fill record gaps from CrossRef",
	Long: `Look up records with a DOI in CrossRef, fill empty fields and keep the
result only when the confidence score improves. Existing values are never
overwritten. Records enriched within cache_days are skipped.

Examples:
  cref enrich
  cref enrich --id smith2020 --id doe2019
  cref enrich --dry-run`,
	Args: cobra.NoArgs,
	RunE: runEnrich,
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "List records that need manual verification",
	Args:  cobra.NoArgs,
	RunE:  runRecommend,
}

// EnrichResponse wraps the batch with the store write counts.
type EnrichResponse struct {
	enrich.Batch
	DryRun  bool `json:"dryRun"`
	Updated int  `json:"updated"`
}

func runEnrich(cmd *cobra.Command, args []string) error {
	log := newLogger()
	store := openStore()
	records := mustLoadRecords(store)

	targets := selectRecords(records, enrichIDs)
	if len(enrichIDs) > 0 && len(targets) == 0 {
		exitWithError(ExitError, "no records match --id %s", formatIDList(enrichIDs))
	}

	batch := newEnricher(log).EnrichAll(context.Background(), targets)
	resp := EnrichResponse{Batch: batch, DryRun: enrichDryRun}

	accepted := batch.Accepted()
	if !enrichDryRun && len(accepted) > 0 {
		updated := records
		for _, rec := range accepted {
			updated, _ = storage.Upsert(updated, rec, false)
		}
		mustSave(store, updated)
		resp.Updated = len(accepted)
	}

	if humanOutput {
		printEnrichHuman(resp)
		return nil
	}
	return outputJSON(resp)
}

func printEnrichHuman(resp EnrichResponse) {
	for _, id := range resp.IDs() {
		res := resp.Results[id]
		switch res.Status {
		case enrich.StatusEnriched:
			outputHuman("%-24s enriched  %.2f -> %.2f (+%s)\n", id, res.Before, res.After, formatIDList(res.AddedFields))
		case enrich.StatusFailed, enrich.StatusSkipped, enrich.StatusUnchanged, enrich.StatusCached:
			outputHuman("%-24s %-9s %s\n", id, res.Status, res.Reason)
		}
	}
	s := resp.Summary
	outputHuman("\n%d records: %d enriched, %d unchanged, %d skipped, %d cached, %d failed\n",
		s.Total, s.Enriched, s.Unchanged, s.Skipped, s.Cached, s.Failed)
	if resp.DryRun {
		outputHuman("Dry run: store not written.\n")
	}
}

func runRecommend(cmd *cobra.Command, args []string) error {
	records := mustLoadRecords(openStore())
	recs := enrich.Recommendations(records, cfg.ConfidenceThreshold)

	if humanOutput {
		if len(recs) == 0 {
			outputHuman("All records are at or above %.2f confidence.\n", cfg.ConfidenceThreshold)
			return nil
		}
		for _, r := range recs {
			hint := ""
			if r.Enrichable {
				hint = " (enrichable)"
			}
			outputHuman("%-24s [%.2f]%s\n", r.ID, r.Confidence, hint)
			for _, is := range r.Issues {
				outputHuman("    - %s\n", is)
			}
		}
		return nil
	}
	return outputJSON(recs)
}
