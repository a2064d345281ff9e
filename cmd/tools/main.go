package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Errorf("failed to set up logger: %w", err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init-db":
		if err := runInitDB(os.Args[2:]); err != nil {
			sugar.Fatalf("init-db: %v", err)
		}
	case "normalize":
		if err := runNormalize(os.Args[2:]); err != nil {
			sugar.Fatalf("normalize: %v", err)
		}
	case "export-schema":
		if err := runExportSchema(os.Args[2:]); err != nil {
			sugar.Fatalf("export-schema: %v", err)
		}
	default:
		sugar.Errorf("unknown command %q", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	logger := zap.S()
	logger.Info("Usage: apischema-tools <command> [options]")
	logger.Info("")
	logger.Info("Commands:")
	logger.Info("  init-db         Create the PostgreSQL table for saved apis and optionally seed it")
	logger.Info("  normalize       Normalize an urlencoded editor submission into api data JSON")
	logger.Info("  export-schema   Print the JSON Schema or an example document of a saved api")
}
