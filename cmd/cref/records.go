package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/edithatogo/citeref/internal/confidence"
	"github.com/edithatogo/citeref/internal/csl"
	"github.com/edithatogo/citeref/internal/importer"
	"github.com/edithatogo/citeref/internal/schema"
	"github.com/edithatogo/citeref/internal/storage"
)

var (
	addReplace bool
	listType   string
	listMin    float64
	listMax    float64
)

func init() {
	addCmd.Flags().BoolVar(&addReplace, "replace", false, "Replace existing records instead of merging")
	listCmd.Flags().StringVar(&listType, "type", "", "Only list records of this CSL type")
	listCmd.Flags().Float64Var(&listMin, "min-confidence", 0, "Minimum confidence score")
	listCmd.Flags().Float64Var(&listMax, "max-confidence", 1, "Maximum confidence score")
	rootCmd.AddCommand(addCmd, listCmd, validateCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <file.json|->",
	Short: "Add or update records from CSL-JSON",
	Long: `Add records from a CSL-JSON object or array. Records whose id already
exists are merged: non-empty fields replace, empty fields never erase unless
--replace is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List records with their confidence",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the reference file against the CSL schema rules",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

// AddResult reports the action taken for each added record.
type AddResult struct {
	Actions map[string]storage.Action `json:"actions"`
	Errors  []string                  `json:"errors,omitempty"`
	Total   int                       `json:"totalRecords"`
}

func runAdd(cmd *cobra.Command, args []string) error {
	data, err := readInput(args[0])
	if err != nil {
		exitWithError(ExitError, "reading input: %v", err)
	}
	incoming, errs := importer.ParseCSLJSON(data)
	if len(incoming) == 0 {
		exitWithError(ExitDataError, "no valid records in input: %v", errorsToStrings(errs))
	}

	store := openStore()
	records := mustLoadRecords(store)

	res := AddResult{Actions: map[string]storage.Action{}, Errors: errorsToStrings(errs)}
	for _, rec := range incoming {
		var action storage.Action
		records, action = storage.Upsert(records, csl.ClearDerived(rec), addReplace)
		res.Actions[rec.ID] = action
	}
	mustSave(store, records)
	res.Total = len(records)

	if humanOutput {
		for _, id := range sortedKeys(res.Actions) {
			outputHuman("%-8s %s\n", res.Actions[id], id)
		}
		for _, e := range res.Errors {
			outputHuman("skipped: %s\n", e)
		}
		return nil
	}
	return outputJSON(res)
}

func summarize(r csl.Record) RecordSummary {
	return RecordSummary{
		ID:         r.ID,
		Type:       r.Type,
		Title:      r.Title,
		Authors:    formatAuthorsShort(r.Author, 3),
		Year:       r.Year(),
		DOI:        r.DOI,
		Confidence: confidence.Score(r, nil),
	}
}

func runList(cmd *cobra.Command, args []string) error {
	records := mustLoadRecords(openStore())
	records = confidence.Filter(records, listMin, listMax)

	out := make([]RecordSummary, 0, len(records))
	for _, r := range records {
		if listType != "" && string(r.Type) != listType {
			continue
		}
		out = append(out, summarize(r))
	}

	if humanOutput {
		printRecordsHuman(out)
		return nil
	}
	return outputJSON(out)
}

// ValidateResult mirrors the schema and required-field checks.
type ValidateResult struct {
	Path         string   `json:"path"`
	IsValid      bool     `json:"isValid"`
	SchemaErrors []string `json:"schemaErrors"`
	FieldErrors  []string `json:"fieldErrors"`
	Total        int      `json:"totalCitations"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(cfg.StorePath)
	if err != nil {
		exitWithError(ExitError, "reading %s: %v", cfg.StorePath, err)
	}

	res := ValidateResult{
		Path:         cfg.StorePath,
		SchemaErrors: nonNil(schema.ValidateDocument(data)),
		FieldErrors:  []string{},
	}
	if len(res.SchemaErrors) == 0 {
		records, err := storage.Decode(cfg.StorePath, data)
		if err != nil {
			exitWithError(ExitDataError, "%v", err)
		}
		res.Total = len(records)
		res.FieldErrors = nonNil(schema.ValidateRequiredFields(records))
	}
	res.IsValid = len(res.SchemaErrors) == 0 && len(res.FieldErrors) == 0

	if humanOutput {
		if res.IsValid {
			outputHuman("%s: valid (%d records)\n", res.Path, res.Total)
		}
		for _, e := range res.SchemaErrors {
			outputHuman("schema: %s\n", e)
		}
		for _, e := range res.FieldErrors {
			outputHuman("field:  %s\n", e)
		}
	} else {
		outputJSON(res)
	}

	if !res.IsValid {
		os.Exit(ExitDataError)
	}
	return nil
}

func errorsToStrings(errs []error) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
