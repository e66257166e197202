package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/veillabs/veil/internal/config"
	"github.com/veillabs/veil/internal/logger"
	"github.com/veillabs/veil/internal/pii"
)

// Pipeline runs dataset files through the PII engine in batches.
type Pipeline struct {
	engine *pii.Engine
	config config.ExportConfig
	logger *logger.Logger
}

// NewPipeline creates a new export pipeline
func NewPipeline(engine *pii.Engine, cfg config.ExportConfig, log *logger.Logger) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.ProgressReport <= 0 {
		cfg.ProgressReport = 10000
	}
	return &Pipeline{
		engine: engine,
		config: cfg,
		logger: log,
	}
}

// Run processes one input file and writes the scrubbed output file.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*ExportResult, error) {
	start := time.Now()
	result := &ExportResult{Categories: make(map[string]int64)}

	inFormat := DetectFileFormat(opts.InputPath)
	if inFormat == FormatUnknown {
		return nil, fmt.Errorf("cannot detect input format of %s", opts.InputPath)
	}

	outFormat := opts.Format
	if outFormat == FormatUnknown {
		outFormat = DetectFileFormat(opts.OutputPath)
	}
	if outFormat != FormatCSV && outFormat != FormatJSONL {
		return nil, fmt.Errorf("unsupported output format %q: use csv or jsonl", string(outFormat))
	}

	in, err := os.Open(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(opts.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	writer, err := newRecordWriter(out, outFormat)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Starting export",
		zap.String("input", opts.InputPath),
		zap.String("output", opts.OutputPath),
		zap.String("input_format", string(inFormat)),
		zap.String("output_format", string(outFormat)),
		zap.String("mode", string(opts.Mode)),
		zap.Bool("redact", opts.Redact),
		zap.Int("batch_size", p.config.BatchSize))

	var readBatch func() ([]*TextRecord, error)
	switch inFormat {
	case FormatCSV:
		readBatch, err = p.csvBatchReader(in, result)
		if err != nil {
			return nil, err
		}
	case FormatJSONL:
		readBatch = p.jsonlBatchReader(in)
	case FormatParquet:
		reader := parquet.NewReader(in)
		defer reader.Close()
		readBatch = p.parquetBatchReader(reader, result)
	}

	if err := p.processBatches(ctx, readBatch, writer, opts, result, start); err != nil {
		return result, err
	}

	if err := writer.Flush(); err != nil {
		return result, fmt.Errorf("failed to flush output: %w", err)
	}

	result.Duration = time.Since(start)

	p.logger.Info("Export completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("records_redacted", result.RecordsRedacted),
		zap.Int64("total_redactions", result.TotalRedactions),
		zap.Int64("failed", result.Failed),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// processBatches drains the reader batch by batch, scrubbing and
// writing each record.
func (p *Pipeline) processBatches(ctx context.Context, readBatch func() ([]*TextRecord, error), writer recordWriter, opts Options, result *ExportResult, start time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := readBatch()
		if err != nil {
			return fmt.Errorf("failed to read batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, record := range batch {
			result.TotalRecords++

			detail := p.engine.RedactWithDetails(record.Text, opts.Mode)
			if detail.RedactionsMade > 0 {
				result.RecordsRedacted++
				result.TotalRedactions += int64(detail.RedactionsMade)
				for _, category := range detail.PIITypesFound {
					result.Categories[string(category)]++
				}
				if opts.Redact {
					record.Text = detail.Text
				}
			}

			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}

			if result.TotalRecords%int64(p.config.ProgressReport) == 0 {
				p.reportProgress(result, start)
			}
		}
	}

	return nil
}

// csvBatchReader reads the header, locates the columns, and returns a
// batch reader. Malformed rows are skipped and counted as failed.
func (p *Pipeline) csvBatchReader(in io.Reader, result *ExportResult) (func() ([]*TextRecord, error), error) {
	reader := csv.NewReader(in)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	p.logger.Info("CSV header detected", zap.Strings("columns", header))

	return func() ([]*TextRecord, error) {
		var batch []*TextRecord

		for len(batch) < p.config.BatchSize {
			row, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				var parseErr *csv.ParseError
				if errors.As(err, &parseErr) {
					p.logger.Warn("Skipping malformed CSV record", zap.Error(err))
					result.Failed++
					continue
				}
				return nil, err
			}

			batch = append(batch, recordFromRow(row, cols))
		}

		return batch, nil
	}, nil
}

// jsonlBatchReader reads one JSON object per line.
func (p *Pipeline) jsonlBatchReader(in io.Reader) func() ([]*TextRecord, error) {
	decoder := json.NewDecoder(in)

	return func() ([]*TextRecord, error) {
		var batch []*TextRecord

		for len(batch) < p.config.BatchSize {
			var record TextRecord
			err := decoder.Decode(&record)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("failed to decode record: %w", err)
			}

			batch = append(batch, &record)
		}

		return batch, nil
	}
}

func (p *Pipeline) parquetBatchReader(reader *parquet.Reader, result *ExportResult) func() ([]*TextRecord, error) {
	return func() ([]*TextRecord, error) {
		var batch []*TextRecord

		for len(batch) < p.config.BatchSize {
			var record TextRecord
			err := reader.Read(&record)
			if err == io.EOF {
				break
			}
			if err != nil {
				p.logger.Warn("Skipping unreadable Parquet record", zap.Error(err))
				result.Failed++
				continue
			}

			batch = append(batch, &record)
		}

		return batch, nil
	}
}

type csvColumns struct {
	id     int
	text   int
	source int
}

func mapColumns(header []string) (csvColumns, error) {
	cols := csvColumns{id: -1, text: -1, source: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "id":
			cols.id = i
		case "text":
			cols.text = i
		case "source":
			cols.source = i
		}
	}
	if cols.text == -1 {
		return cols, fmt.Errorf("input has no text column")
	}
	return cols, nil
}

func recordFromRow(row []string, cols csvColumns) *TextRecord {
	record := &TextRecord{Text: row[cols.text]}
	if cols.id >= 0 {
		record.ID = row[cols.id]
	}
	if cols.source >= 0 {
		record.Source = row[cols.source]
	}
	return record
}

func (p *Pipeline) reportProgress(result *ExportResult, start time.Time) {
	elapsed := time.Since(start)
	rate := float64(result.TotalRecords) / elapsed.Seconds()

	p.logger.Info("Export progress",
		zap.Int64("records_processed", result.TotalRecords),
		zap.Int64("records_redacted", result.RecordsRedacted),
		zap.Float64("rate_per_sec", rate),
		zap.Duration("elapsed", elapsed))
}
