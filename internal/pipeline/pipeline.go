// Package pipeline orchestrates ingestion: parse, validate, derive
// metrics, and flush records to storage in batches.
package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"vessel-metrics-monitor/internal/metrics"
	"vessel-metrics-monitor/internal/models"
	"vessel-metrics-monitor/internal/monitoring"
	"vessel-metrics-monitor/internal/parser"
	"vessel-metrics-monitor/internal/validation"

	"github.com/sirupsen/logrus"
)

const logInterval = 1000

// BatchSink persists one batch of records together with their issues
type BatchSink interface {
	SaveBatch(ctx context.Context, records []models.TelemetryRecord) error
}

// Summary reports what an ingestion run did
type Summary struct {
	Processed int
	Invalid   int
	Skipped   int
	Batches   int
}

// Pipeline consumes a stream of CSV rows. Rows are processed lazily; at
// most one batch is held in memory. A bad row never aborts the run, a
// flush failure always does.
type Pipeline struct {
	parser     *parser.Parser
	validator  *validation.Validator
	calculator *metrics.Calculator
	sink       BatchSink
	batchSize  int
	logger     *logrus.Logger
}

// New creates an ingestion pipeline flushing to sink every batchSize records
func New(sink BatchSink, batchSize int, logger *logrus.Logger) *Pipeline {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Pipeline{
		parser:     parser.New(logger),
		validator:  validation.New(),
		calculator: metrics.New(),
		sink:       sink,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// ValidateAndDeriveMetrics runs the validation rules and metric
// derivation on a single record, in place.
func (p *Pipeline) ValidateAndDeriveMetrics(rec *models.TelemetryRecord) {
	p.validator.Validate(rec)
	p.calculator.Calculate(rec)
}

// Run ingests every row from r. The first line must be the header.
// It returns a summary and the first fatal error, if any.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (Summary, error) {
	var sum Summary

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return sum, fmt.Errorf("failed to read header: %w", err)
	}
	indices := parser.HeaderIndex(header)

	batch := make([]models.TelemetryRecord, 0, p.batchSize)
	line := 1

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				p.logger.WithFields(logrus.Fields{
					"line":  line,
					"error": err,
				}).Warn("Dropping malformed row")
				sum.Skipped++
				monitoring.RowsSkipped.Inc()
				continue
			}
			return sum, fmt.Errorf("error reading input at line %d: %w", line, err)
		}

		rec := p.parser.ParseRow(indices, row)
		p.ValidateAndDeriveMetrics(rec)

		sum.Processed++
		monitoring.RecordsIngested.Inc()
		if rec.Status == models.StatusInvalid {
			sum.Invalid++
			monitoring.RecordsInvalid.Inc()
		}
		if sum.Processed%logInterval == 0 {
			p.logger.WithField("count", sum.Processed).Info("Processed records so far")
		}

		batch = append(batch, *rec)
		if len(batch) >= p.batchSize {
			if err := p.flush(ctx, batch, &sum); err != nil {
				return sum, err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := p.flush(ctx, batch, &sum); err != nil {
			return sum, err
		}
	}

	p.logger.WithFields(logrus.Fields{
		"processed": sum.Processed,
		"invalid":   sum.Invalid,
		"skipped":   sum.Skipped,
		"batches":   sum.Batches,
	}).Info("Finished processing input")
	return sum, nil
}

// flush hands one batch to the sink. Failure is fatal to the run.
func (p *Pipeline) flush(ctx context.Context, batch []models.TelemetryRecord, sum *Summary) error {
	out := make([]models.TelemetryRecord, len(batch))
	copy(out, batch)
	if err := p.sink.SaveBatch(ctx, out); err != nil {
		return fmt.Errorf("batch flush failed: %w", err)
	}
	sum.Batches++
	monitoring.BatchesFlushed.Inc()
	return nil
}
