package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edithatogo/citeref/internal/convert"
	"github.com/edithatogo/citeref/internal/csl"
)

var (
	convertFormats []string
	convertOutput  string
	convertAppend  bool
	convertIDs     []string
)

func init() {
	convertCmd.Flags().StringSliceVarP(&convertFormats, "format", "f", nil, "Output format(s): "+strings.Join(convert.SupportedFormats(), ", "))
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "Output file (one format) or directory (several formats)")
	convertCmd.Flags().BoolVar(&convertAppend, "append", false, "Append to an existing .bib file, skipping entries it already has (biblatex only)")
	convertCmd.Flags().StringSliceVar(&convertIDs, "id", nil, "Only convert these record ids")
	convertCmd.MarkFlagRequired("format")
	rootCmd.AddCommand(convertCmd)
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert records to other bibliography formats",
	Long: `Convert the reference list to RIS, EndNote XML, YAML, BibLaTeX or ENW.

With one format the output goes to stdout or --output. With several formats
--output names a directory and one file per format is written.

Examples:
  cref convert --format ris
  cref convert --format biblatex -o refs.bib --append
  cref convert -f ris,yaml,enw -o exports/`,
	Args: cobra.NoArgs,
	RunE: runConvert,
}

// ConvertResponse lists the files written.
type ConvertResponse struct {
	Files   map[string]string `json:"files"`
	Skipped int               `json:"skipped,omitempty"`
}

func runConvert(cmd *cobra.Command, args []string) error {
	for _, name := range convertFormats {
		if _, err := convert.ParseFormat(name); err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
	}
	records := selectRecords(mustLoadRecords(openStore()), convertIDs)

	if len(convertFormats) > 1 {
		return convertMany(records)
	}

	format, _ := convert.ParseFormat(convertFormats[0])
	skipped := 0
	if convertAppend {
		if format != convert.FormatBibLaTeX || convertOutput == "" {
			exitWithError(ExitError, "--append requires --format biblatex and --output")
		}
		idx := mustReadBibIndex(convertOutput)
		fresh := idx.Missing(records)
		skipped = len(records) - len(fresh)
		records = fresh
	}

	content, err := convert.Convert(records, string(format))
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	if convertOutput == "" {
		fmt.Println(content)
		return nil
	}

	if convertAppend {
		err = appendToFile(convertOutput, content)
	} else {
		err = os.WriteFile(convertOutput, []byte(content+"\n"), 0644)
	}
	if err != nil {
		exitWithError(ExitError, "writing %s: %v", convertOutput, err)
	}

	resp := ConvertResponse{Files: map[string]string{string(format): convertOutput}, Skipped: skipped}
	if humanOutput {
		outputHuman("Wrote %s (%d records, %d already present)\n", convertOutput, len(records), skipped)
		return nil
	}
	return outputJSON(resp)
}

func convertMany(records []csl.Record) error {
	if convertOutput == "" {
		exitWithError(ExitError, "several formats need --output <directory>")
	}
	if err := os.MkdirAll(convertOutput, 0755); err != nil {
		exitWithError(ExitError, "creating %s: %v", convertOutput, err)
	}

	resp := ConvertResponse{Files: map[string]string{}}
	base := strings.TrimSuffix(filepath.Base(cfg.StorePath), filepath.Ext(cfg.StorePath))
	for name, res := range convert.Batch(records, convertFormats) {
		format, _ := convert.ParseFormat(name)
		path := filepath.Join(convertOutput, base+format.Extension())
		if err := os.WriteFile(path, []byte(res.Content+"\n"), 0644); err != nil {
			exitWithError(ExitError, "writing %s: %v", path, err)
		}
		resp.Files[name] = path
	}

	if humanOutput {
		for _, name := range sortedKeys(resp.Files) {
			outputHuman("%-12s %s\n", name, resp.Files[name])
		}
		return nil
	}
	return outputJSON(resp)
}

// mustReadBibIndex indexes an existing .bib file; a missing file is empty.
func mustReadBibIndex(path string) *convert.BibIndex {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return convert.NewBibIndex()
		}
		exitWithError(ExitError, "reading %s: %v", path, err)
	}
	idx, err := convert.ParseBibIndex(bytes.NewReader(data))
	if err != nil {
		exitWithError(ExitDataError, "parsing %s: %v", path, err)
	}
	return idx
}

// appendToFile appends content to a file, starting on a new line.
func appendToFile(path, content string) error {
	if content == "" {
		return nil
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.WriteString("\n" + content + "\n")
	return err
}
