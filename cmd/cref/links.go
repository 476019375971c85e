package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/edithatogo/citeref/internal/reachability"
)

var (
	linksFailURL bool
	linksFailDOI bool
	linksIDs     []string
)

func init() {
	checkLinksCmd.Flags().BoolVar(&linksFailURL, "fail-on-url", false, "Treat inaccessible URLs as errors")
	checkLinksCmd.Flags().BoolVar(&linksFailDOI, "fail-on-doi", false, "Treat unresolvable DOIs as errors")
	checkLinksCmd.Flags().StringSliceVar(&linksIDs, "id", nil, "Only check these record ids")
	rootCmd.AddCommand(checkLinksCmd)
}

var checkLinksCmd = &cobra.Command{
	Use:   "check-links",
	Short: "Probe record URLs and DOIs with HEAD requests",
	Long: `Send a HEAD request to every record URL and to https://doi.org/<DOI>.
A status from 200 to 399 counts as accessible; redirects are reported but
not followed.

Exits with code 4 when --fail-on-url or --fail-on-doi is set and a probe fails.`,
	Args: cobra.NoArgs,
	RunE: runCheckLinks,
}

func runCheckLinks(cmd *cobra.Command, args []string) error {
	records := selectRecords(mustLoadRecords(openStore()), linksIDs)
	batch := newChecker(newLogger(), linksFailURL, linksFailDOI).CheckAll(context.Background(), records)

	if humanOutput {
		printLinksHuman(batch)
	} else {
		outputJSON(batch)
	}

	if !batch.IsValid {
		os.Exit(ExitVerificationFailed)
	}
	return nil
}

func printLinksHuman(batch reachability.Batch) {
	mark := func(ok bool) string {
		if ok {
			return "ok"
		}
		return "FAIL"
	}
	for _, id := range batch.IDs() {
		res := batch.Results[id]
		if res.URL != nil {
			outputHuman("%-24s url %-4s %s %s\n", id, mark(res.URL.Accessible), res.URL.URL, res.URL.Error)
		}
		if res.DOI != nil {
			outputHuman("%-24s doi %-4s %s %s\n", id, mark(res.DOI.Accessible), res.DOI.DOI, res.DOI.Error)
		}
	}
	s := batch.Summary
	outputHuman("\nURLs: %d/%d accessible, DOIs: %d/%d resolvable\n",
		s.AccessibleURLs, s.CitationsWithURLs, s.AccessibleDOIs, s.CitationsWithDOIs)
}
