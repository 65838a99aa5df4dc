// Package metrics derives speed-difference and fuel-efficiency from raw
// telemetry fields.
package metrics

import "vessel-metrics-monitor/internal/models"

// Calculator computes derived metrics on a record. It runs regardless of
// the record's validation state.
type Calculator struct{}

// New creates a calculator
func New() *Calculator {
	return &Calculator{}
}

// Calculate fills in the derived fields. A derived field stays nil
// whenever an input is missing, or (for efficiency) actual speed is zero.
func (c *Calculator) Calculate(rec *models.TelemetryRecord) {
	if rec == nil {
		return
	}
	c.speedDifference(rec)
	c.fuelEfficiency(rec)
}

func (c *Calculator) speedDifference(rec *models.TelemetryRecord) {
	if rec.ActualSpeedOverground != nil && rec.ProposedSpeedOverground != nil {
		diff := *rec.ActualSpeedOverground - *rec.ProposedSpeedOverground
		rec.SpeedDifference = &diff
	}
}

func (c *Calculator) fuelEfficiency(rec *models.TelemetryRecord) {
	if rec.ActualSpeedOverground != nil && *rec.ActualSpeedOverground != 0 && rec.FuelConsumption != nil {
		eff := *rec.FuelConsumption / *rec.ActualSpeedOverground
		rec.FuelEfficiency = &eff
	}
}
