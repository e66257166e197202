package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/veillabs/veil/internal/config"
	"github.com/veillabs/veil/internal/export"
	"github.com/veillabs/veil/internal/logger"
	"github.com/veillabs/veil/internal/pii"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		inputFile  = flag.String("input", "", "Input dataset file (CSV, JSONL, or Parquet)")
		outputFile = flag.String("output", "", "Output file (CSV or JSONL)")
		format     = flag.String("format", "", "Output format override: csv or jsonl (default: from output extension)")
		mode       = flag.String("mode", "", "Redaction mode: full or partial (default: from config)")
		noRedact   = flag.Bool("no-redact", false, "Report detections only, write input text unchanged")
		batchSize  = flag.Int("batch-size", 0, "Batch size for processing (default: from config)")
	)
	flag.Parse()

	if *inputFile == "" || *outputFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input dataset.csv --output scrubbed.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input dataset.parquet --output scrubbed.jsonl --mode partial\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input dataset.jsonl --output report.jsonl --no-redact\n", os.Args[0])
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Veil export",
		zap.String("input", *inputFile),
		zap.String("output", *outputFile))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling export...")
		cancel()
	}()

	opts, err := buildOptions(cfg, *inputFile, *outputFile, *format, *mode, *noRedact)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	exportConfig := cfg.Export
	if *batchSize > 0 {
		exportConfig.BatchSize = *batchSize
	}

	engine := pii.New(log.WithComponent("pii"))
	pipeline := export.NewPipeline(engine, exportConfig, log.WithComponent("export"))

	result, err := pipeline.Run(ctx, opts)
	if err != nil {
		log.Fatal("Export failed", zap.Error(err))
	}

	// Report results
	log.Info("Export finished",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("records_redacted", result.RecordsRedacted),
		zap.Int64("total_redactions", result.TotalRedactions),
		zap.Int64("failed", result.Failed),
		zap.Duration("duration", result.Duration),
		zap.Float64("records_per_second", float64(result.TotalRecords)/result.Duration.Seconds()))

	for category, count := range result.Categories {
		log.Info("Category summary",
			zap.String("category", category),
			zap.Int64("records", count))
	}
}

// buildOptions validates flags against the configuration defaults
func buildOptions(cfg *config.Config, inputFile, outputFile, format, mode string, noRedact bool) (export.Options, error) {
	opts := export.Options{
		InputPath:  inputFile,
		OutputPath: outputFile,
		Redact:     !noRedact,
	}

	// Check if file exists
	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return opts, fmt.Errorf("input file does not exist: %s", inputFile)
	}

	outFormat, err := export.ParseFormat(format)
	if err != nil {
		return opts, err
	}
	opts.Format = outFormat

	if mode == "" {
		mode = cfg.Redaction.DefaultMode
	}
	redactionMode, err := pii.ParseMode(mode)
	if err != nil {
		return opts, err
	}
	opts.Mode = redactionMode

	return opts, nil
}
