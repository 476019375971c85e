package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/edithatogo/citeref/internal/pipeline"
)

var (
	pipeEnrich     bool
	pipeFormats    []string
	pipeCheckLinks bool
	pipeReverify   bool
	pipeFailURL    bool
	pipeFailDOI    bool
)

func init() {
	runCmd.Flags().BoolVar(&pipeEnrich, "enrich", false, "Enrich low-confidence cited records from CrossRef and save them")
	runCmd.Flags().StringSliceVarP(&pipeFormats, "format", "f", nil, "Render the records in these formats")
	runCmd.Flags().BoolVar(&pipeCheckLinks, "check-links", false, "Probe URLs and DOIs of cited records")
	runCmd.Flags().BoolVar(&pipeReverify, "reverify", false, "Verify again after enrichment")
	runCmd.Flags().BoolVar(&pipeFailURL, "fail-on-url", false, "Treat inaccessible URLs as errors")
	runCmd.Flags().BoolVar(&pipeFailDOI, "fail-on-doi", false, "Treat unresolvable DOIs as errors")
	runCmd.Flags().BoolVar(&verifyStrict, "strict", false, "Treat missing required fields as errors")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <manuscript>",
	Short: "Verify, enrich, convert and check links in one pass",
	Long: `Run the full pipeline over a manuscript and print one consolidated report.

Steps: verify -> enrich (--enrich) -> convert (--format) -> check links
(--check-links) -> verify again (--reverify). Only a reference file that
cannot be loaded stops the run; other step failures are listed under
"errors" in the report.

Exits with code 4 when the final verification or the link check is invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	text := mustReadManuscript(args[0])

	opts := pipelineOptions()
	opts.Enrich = pipeEnrich
	opts.Formats = pipeFormats
	opts.CheckLinks = pipeCheckLinks
	opts.Reverify = pipeReverify
	if pipeEnrich {
		opts.Enricher = newEnricher(opts.Logger)
	}
	if pipeCheckLinks {
		opts.Checker = newChecker(opts.Logger, pipeFailURL, pipeFailDOI)
	}

	rep, err := pipeline.Run(context.Background(), text, opts)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	if humanOutput {
		printRunHuman(rep)
	} else {
		outputJSON(rep)
	}

	if !rep.IsValid {
		os.Exit(ExitVerificationFailed)
	}
	return nil
}

func printRunHuman(rep *pipeline.Report) {
	final := rep.Verification
	if rep.Reverification != nil {
		final = rep.Reverification
	}
	printVerifyHuman(final)

	if len(rep.Citations) > 0 {
		outputHuman("\nCitations:\n")
		for _, c := range rep.Citations {
			o := rep.Outcomes[c.ID]
			outputHuman("  %-24s [%.2f] %-8s %s\n", c.ID, c.Confidence, o.Status, truncateString(c.Title, ReportTitleMaxLen))
			for _, r := range o.Reasons {
				outputHuman("  %-24s          - %s\n", "", r)
			}
		}
	}

	s := rep.Summary
	if rep.Enrichment != nil {
		outputHuman("\nEnrichment: %d of %d enriched (%.0f%%), %d saved\n",
			s.SuccessfullyEnriched, s.EnrichmentAttempted, s.EnrichmentRate, s.StoreUpdated)
	}
	if rep.Reachability != nil {
		r := rep.Reachability.Summary
		outputHuman("Links: %d/%d URLs, %d/%d DOIs reachable\n",
			r.AccessibleURLs, r.CitationsWithURLs, r.AccessibleDOIs, r.CitationsWithDOIs)
	}
	for _, name := range sortedKeys(rep.Conversions) {
		res := rep.Conversions[name]
		if res.OK() {
			outputHuman("Converted: %s (%d bytes)\n", name, len(res.Content))
		}
	}
	for _, e := range rep.Errors {
		outputHuman("error: %s\n", e)
	}
	outputHuman("\nRun %s: %d degraded\n", rep.RunID, s.Degraded)
}
