package main

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edithatogo/citeref/internal/csl"
	"github.com/edithatogo/citeref/internal/pdf"
	"github.com/edithatogo/citeref/internal/storage"
)

var (
	addPDFID       string
	addPDFNoLookup bool
)

func init() {
	addPDFCmd.Flags().StringVar(&addPDFID, "id", "", "Record id (default: derived from author and year, or the file name)")
	addPDFCmd.Flags().BoolVar(&addPDFNoLookup, "no-lookup", false, "Do not fetch metadata from CrossRef")
	rootCmd.AddCommand(addPDFCmd)
}

var addPDFCmd = &cobra.Command{
	Use:   "add-pdf <file.pdf>",
	Short: "Add a record from the DOI printed in a PDF",
	Long: `Scan the first pages of a PDF for a DOI, fetch its metadata from CrossRef
and add the record. Without a DOI (or with --no-lookup) a stub record with
the guessed title is added instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runAddPDF,
}

// AddPDFResult reports the extracted metadata and the stored record.
type AddPDFResult struct {
	PDF    pdf.Metadata   `json:"pdf"`
	Action storage.Action `json:"action"`
	Record csl.Record     `json:"record"`
	Source string         `json:"source"`
}

func runAddPDF(cmd *cobra.Command, args []string) error {
	meta, err := pdf.Extract(args[0])
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	rec := meta.Record("")
	source := "pdf"
	if meta.DOI != "" && !addPDFNoLookup {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		found, err := newCrossRefClient().LookupDOI(ctx, meta.DOI)
		if err != nil {
			newLogger().Warn("crossref lookup failed, using PDF metadata", "doi", meta.DOI, "error", err)
		} else {
			rec = csl.FillGaps(found, rec)
			source = "crossref"
		}
	}

	store := openStore()
	records := mustLoadRecords(store)

	if addPDFID != "" {
		rec.ID = addPDFID
	} else {
		rec.ID = storage.GenerateUniqueID(records, deriveID(rec, args[0]))
	}

	records, action := storage.Upsert(records, rec, false)
	mustSave(store, records)

	res := AddPDFResult{PDF: meta, Action: action, Record: rec, Source: source}
	if humanOutput {
		outputHuman("%s %s from %s\n", action, rec.ID, source)
		if rec.DOI != "" {
			outputHuman("  DOI:   %s\n", rec.DOI)
		}
		if rec.Title != "" {
			outputHuman("  Title: %s\n", rec.Title)
		}
		return nil
	}
	return outputJSON(res)
}

var nonIDChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// deriveID builds a citation key: first author family name plus year, or
// the PDF file name when the record has no author.
func deriveID(rec csl.Record, path string) string {
	if len(rec.Author) > 0 && rec.Author[0].Family != "" {
		id := strings.ToLower(nonIDChars.ReplaceAllString(rec.Author[0].Family, ""))
		if y := rec.Year(); y > 0 {
			id += fmt.Sprint(y)
		}
		if id != "" {
			return id
		}
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	id := strings.Trim(nonIDChars.ReplaceAllString(base, "-"), "-")
	if id == "" {
		return "pdf"
	}
	return strings.ToLower(id)
}
