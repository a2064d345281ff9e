package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/lychee-technology/apischema"
	"github.com/lychee-technology/apischema/internal"
)

func runNormalize(args []string) error {
	flags := flag.NewFlagSet("normalize", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: apischema-tools normalize [options]")
		fmt.Println("")
		fmt.Println("Reads an application/x-www-form-urlencoded editor submission and prints the normalized api data.")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	defaults := apischema.DefaultConfig().Editor
	formFile := flags.String("form-file", "-", "Path to the urlencoded form body, - reads stdin")
	outputFile := flags.String("out", "", "Path to write the api data (defaults to stdout)")
	maxDepth := flags.Int("max-depth", defaults.MaxDepth, "maximum nesting depth, 0 disables the check")
	maxRows := flags.Int("max-rows", defaults.MaxRows, "maximum rows per list, 0 disables the check")
	maxFields := flags.Int("max-fields", defaults.MaxFields, "maximum fields per form, 0 disables the check")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	raw, err := readInput(*formFile)
	if err != nil {
		return err
	}

	data, err := normalizeForm(raw, apischema.EditorConfig{
		MaxDepth:  *maxDepth,
		MaxRows:   *maxRows,
		MaxFields: *maxFields,
	})
	if err != nil {
		if report, ok := apischema.AsValidationReport(err); ok {
			encoded, _ := json.MarshalIndent(report, "", "  ")
			fmt.Println(string(encoded))
			return fmt.Errorf("form has %d invalid fields", len(report))
		}
		return err
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return writeOutput(*outputFile, encoded, "Api data")
}

// normalizeForm parses an urlencoded body and normalizes it.
func normalizeForm(raw []byte, config apischema.EditorConfig) (*apischema.ApiData, error) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse form body: %w", err)
	}
	return internal.NewNormalizer(config).Normalize(values)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input file(%s): %w", path, err)
	}
	return raw, nil
}

func writeOutput(outputFile string, encoded []byte, what string) error {
	if outputFile == "" {
		fmt.Println(string(encoded))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(outputFile, encoded, 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	fmt.Printf("%s written, output: %s\n", what, outputFile)
	return nil
}
