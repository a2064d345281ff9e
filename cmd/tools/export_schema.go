package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/lychee-technology/apischema"
)

func runExportSchema(args []string) error {
	flags := flag.NewFlagSet("export-schema", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: apischema-tools export-schema [options]")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	apiFile := flags.String("api-file", "", "Path to the api data JSON file (required)")
	part := flags.String("part", string(apischema.PartResponse), "Schema to export: bodyJson or response")
	example := flags.Bool("example", false, "Print an example document instead of the JSON Schema")
	mock := flags.Bool("mock", false, "Use mock values in the example document")
	outputFile := flags.String("out", "", "Path to write the result (defaults to stdout)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if *apiFile == "" {
		return fmt.Errorf("-api-file is required")
	}

	data, err := readApiFile(*apiFile)
	if err != nil {
		return err
	}

	result, err := exportSchema(data, apischema.SchemaPart(*part), *example, *mock)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return writeOutput(*outputFile, encoded, "Schema")
}

func exportSchema(data *apischema.ApiData, part apischema.SchemaPart, example, mock bool) (any, error) {
	if !part.Valid() {
		return nil, fmt.Errorf("-part must be %s or %s", apischema.PartBodyJSON, apischema.PartResponse)
	}
	node := data.Schema(part)
	if node == nil {
		return nil, fmt.Errorf("api has no %s schema", part)
	}
	if example {
		return apischema.BuildExample(node, mock), nil
	}
	return apischema.ToJSONSchema(node)
}
