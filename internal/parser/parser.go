// Package parser turns raw delimited-text rows into telemetry records.
package parser

import (
	"strconv"
	"strings"
	"time"

	"vessel-metrics-monitor/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DateTimeLayout is the only accepted timestamp format in ingest files
const DateTimeLayout = "2006-01-02 15:04:05"

// Parser maps CSV rows to telemetry records. Numeric fields follow a
// safe-parse contract: unparsable or absent text yields a nil value,
// never an error.
type Parser struct {
	logger *logrus.Logger
}

// New creates a parser that logs through the given logger
func New(logger *logrus.Logger) *Parser {
	return &Parser{logger: logger}
}

// HeaderIndex maps lowercased, trimmed header names to column positions
func HeaderIndex(header []string) map[string]int {
	indices := make(map[string]int, len(header))
	for i, h := range header {
		indices[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return indices
}

// ParseRow converts one CSV row into a telemetry record with a freshly
// generated unique id. Absent fields leave the corresponding value nil;
// the record is always produced.
func (p *Parser) ParseRow(indices map[string]int, row []string) *models.TelemetryRecord {
	getValue := func(key string) string {
		if idx, ok := indices[key]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	return &models.TelemetryRecord{
		ID:                       uuid.NewString(),
		VesselCode:               getValue("vessel_code"),
		Timestamp:                p.parseDateTime(getValue("datetime")),
		Latitude:                 parseFloatSafe(getValue("latitude")),
		Longitude:                parseFloatSafe(getValue("longitude")),
		Power:                    parseFloatSafe(getValue("power")),
		FuelConsumption:          parseFloatSafe(getValue("fuel_consumption")),
		ActualSpeedOverground:    parseFloatSafe(getValue("actual_speed_overground")),
		ProposedSpeedOverground:  parseFloatSafe(getValue("proposed_speed_overground")),
		PredictedFuelConsumption: parseFloatSafe(getValue("predicted_fuel_consumption")),
	}
}

// parseDateTime returns nil when the value does not match DateTimeLayout
func (p *Parser) parseDateTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(DateTimeLayout, s)
	if err != nil {
		p.logger.WithField("datetime", s).Warn("Invalid date-time format")
		return nil
	}
	return &t
}

// parseFloatSafe returns nil for empty or unparsable input
func parseFloatSafe(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
