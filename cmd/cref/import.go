package main

import (
	"github.com/spf13/cobra"

	"github.com/edithatogo/citeref/internal/csl"
	"github.com/edithatogo/citeref/internal/importer"
	"github.com/edithatogo/citeref/internal/storage"
)

var (
	importFormat  string
	importDryRun  bool
	importReplace bool
)

func init() {
	importCmd.Flags().StringVar(&importFormat, "format", "", "Import format: csl-json, csl-yaml, paperpile (default: from extension)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Show what would be imported without writing")
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "Replace matched records instead of merging")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import records from CSL-JSON, CSL-YAML or Paperpile",
	Long: `Import records from an external file.

Imported records are matched to existing ones by id, then by DOI. Matches
are merged into the existing record; the rest are added.

Usage:
  cref import refs.yaml
  cref import --format paperpile export.json --dry-run

Supported formats:
  csl-json   - CSL-JSON array or object (.json)
  csl-yaml   - CSL-YAML list or pandoc "references:" block (.yaml, .yml)
  paperpile  - Paperpile JSON export`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

// ImportResult represents the result of an import operation.
type ImportResult struct {
	DryRun  bool           `json:"dryRun"`
	New     int            `json:"new"`
	Updated int            `json:"updated"`
	Skipped int            `json:"skipped"`
	Details []ImportDetail `json:"details,omitempty"`
	Errors  []string       `json:"errors"`
}

// ImportDetail describes a single import action.
type ImportDetail struct {
	ID     string          `json:"id"`
	Action importer.Action `json:"action"`
	Title  string          `json:"title"`
	Reason string          `json:"reason,omitempty"`
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]

	format, err := resolveImportFormat(path)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	data, err := readInput(path)
	if err != nil {
		exitWithError(ExitError, "reading file: %v", err)
	}

	incoming, parseErrors := importer.Parse(format, data)
	if len(parseErrors) > 0 && len(incoming) == 0 {
		exitWithError(ExitDataError, "failed to parse any records: %v", parseErrors[0])
	}

	store := openStore()
	existing := mustLoadRecords(store)
	plan := importer.Plan(existing, incoming)

	res, updated := applyImport(existing, plan, importReplace)
	res.DryRun = importDryRun
	res.Errors = errorsToStrings(parseErrors)
	res.Skipped += len(parseErrors)

	if !importDryRun && res.New+res.Updated > 0 {
		mustSave(store, updated)
	}

	if humanOutput {
		printImportHuman(res)
		return nil
	}
	return outputJSON(res)
}

func resolveImportFormat(path string) (importer.Format, error) {
	if importFormat != "" {
		return importer.ParseFormat(importFormat)
	}
	return importer.DetectFormat(path)
}

// applyImport folds a plan into records and counts the actions.
func applyImport(records []csl.Record, plan []importer.Planned, replace bool) (ImportResult, []csl.Record) {
	var res ImportResult
	for _, p := range plan {
		d := ImportDetail{ID: p.Record.ID, Action: p.Action, Title: p.Record.Title}
		switch p.Action {
		case importer.ActionNew:
			records, _ = storage.Upsert(records, csl.ClearDerived(p.Record), replace)
			res.New++
		case importer.ActionUpdate:
			records, _ = storage.Upsert(records, csl.ClearDerived(p.Record), replace)
			res.Updated++
			if p.MatchedByDOI {
				d.Reason = "doi_match"
			} else {
				d.Reason = "id_match"
			}
		case importer.ActionSkip:
			res.Skipped++
			d.Reason = "duplicate in import"
		}
		res.Details = append(res.Details, d)
	}
	return res, records
}

func printImportHuman(res ImportResult) {
	verb := "Imported"
	if res.DryRun {
		verb = "Would import"
	}
	for _, d := range res.Details {
		reason := ""
		if d.Reason != "" {
			reason = " (" + d.Reason + ")"
		}
		outputHuman("%-7s %-24s %s%s\n", d.Action, d.ID, truncateString(d.Title, ListTitleMaxLen), reason)
	}
	outputHuman("\n%s: %d new, %d updated, %d skipped\n", verb, res.New, res.Updated, res.Skipped)
	for _, e := range res.Errors {
		outputHuman("  error: %s\n", e)
	}
}
