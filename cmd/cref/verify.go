package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/edithatogo/citeref/internal/csl"
	"github.com/edithatogo/citeref/internal/pipeline"
	"github.com/edithatogo/citeref/internal/verify"
)

var verifyStrict bool

func init() {
	for _, c := range []*cobra.Command{verifyCmd, removeUnusedCmd, addMissingCmd} {
		c.Flags().BoolVar(&verifyStrict, "strict", false, "Treat missing required fields as errors")
	}
	removeUnusedCmd.Flags().Bool("dry-run", false, "Show what would be removed without writing")
	addMissingCmd.Flags().Bool("dry-run", false, "Show what would be added without writing")
	rootCmd.AddCommand(verifyCmd, removeUnusedCmd, addMissingCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify <manuscript>",
	Short: "Check manuscript citations against the reference list",
	Long: `Check that every [key] in the manuscript has a record and report unused,
duplicate, low-information and low-confidence records.

Exits with code 4 when a missing citation or schema error is found.
Use "-" to read the manuscript from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

var removeUnusedCmd = &cobra.Command{
	Use:   "remove-unused <manuscript>",
	Short: "Delete records the manuscript never cites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return runFix(args[0], false, true, dryRun)
	},
}

var addMissingCmd = &cobra.Command{
	Use:   "add-missing <manuscript>",
	Short: "Add placeholder records for cited keys without a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return runFix(args[0], true, false, dryRun)
	},
}

func pipelineOptions() pipeline.Options {
	return pipeline.Options{
		Store:     openStore(),
		Logger:    newLogger(),
		Threshold: cfg.ConfidenceThreshold,
		Verify: verify.Options{
			LowInfoThreshold: cfg.LowInfoThreshold,
			StrictFields:     verifyStrict || cfg.StrictFields,
		},
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	text := mustReadManuscript(args[0])
	opts := pipelineOptions()
	records := mustLoadRecords(opts.Store)

	rep := pipeline.Verify(text, records, opts)

	if humanOutput {
		printVerifyHuman(rep)
	} else {
		outputJSON(rep)
	}

	if !rep.IsValid {
		os.Exit(ExitVerificationFailed)
	}
	return nil
}

func printVerifyHuman(rep *verify.Report) {
	status := "VALID"
	if !rep.IsValid {
		status = "INVALID"
	}
	outputHuman("Verification: %s\n", status)
	outputHuman("  Manuscript citations: %d\n", rep.Summary.TotalManuscriptCitations)
	outputHuman("  Records:              %d\n", rep.Summary.TotalCslCitations)
	outputHuman("  Missing:              %s\n", formatIDList(rep.Missing))
	outputHuman("  Unused:               %s\n", formatIDList(rep.Unused))
	if len(rep.Issues) > 0 {
		outputHuman("\nIssues:\n")
		for _, is := range rep.Issues {
			outputHuman("  [%s] %s\n", is.Severity, is.Message)
		}
	}
}

// FixResult reports what remove-unused or add-missing changed.
type FixResult struct {
	DryRun  bool     `json:"dryRun"`
	Added   []string `json:"addedCitations"`
	Removed []string `json:"removedCitations"`
	Total   int      `json:"totalRecords"`
}

func runFix(manuscriptPath string, addMissing, removeUnused, dryRun bool) error {
	text := mustReadManuscript(manuscriptPath)
	opts := pipelineOptions()
	records := mustLoadRecords(opts.Store)

	rep := verify.Verify(text, records, opts.Verify)
	plan := verify.PlanFixes(rep, time.Now())
	updated := plan.Apply(records, addMissing, removeUnused)

	res := FixResult{DryRun: dryRun, Added: []string{}, Removed: []string{}, Total: len(updated)}
	if addMissing {
		res.Added = toIDs(plan.Add)
	}
	if removeUnused {
		res.Removed = plan.Remove
	}

	if !dryRun && (len(res.Added) > 0 || len(res.Removed) > 0) {
		mustSave(opts.Store, updated)
	}

	if humanOutput {
		verb := ""
		if dryRun {
			verb = "would be "
		}
		if addMissing {
			outputHuman("Placeholders %sadded: %s\n", verb, formatIDList(res.Added))
		}
		if removeUnused {
			outputHuman("Records %sremoved: %s\n", verb, formatIDList(res.Removed))
		}
		outputHuman("Total records: %d\n", res.Total)
		return nil
	}
	return outputJSON(res)
}

func toIDs(records []csl.Record) []string {
	ids := csl.IDs(records)
	if ids == nil {
		return []string{}
	}
	return ids
}
