// Package validation applies the structural and semantic rules that decide
// a telemetry record's fitness.
package validation

import "vessel-metrics-monitor/internal/models"

// Validator evaluates every rule independently and accumulates all
// applicable issues; it is not fail-fast.
type Validator struct{}

// New creates a validator
func New() *Validator {
	return &Validator{}
}

// Validate appends one issue per failed rule and sets the record's status.
// Status is VALID iff no rule fired.
func (v *Validator) Validate(rec *models.TelemetryRecord) {
	if rec.VesselCode == "" {
		rec.AddIssue(models.MissingVesselCode, "Missing vessel code")
	}
	if rec.Timestamp == nil {
		rec.AddIssue(models.MissingDateTime, "Missing date-time")
	}
	if rec.Latitude == nil {
		rec.AddIssue(models.MissingLatitude, "Missing latitude")
	}
	if rec.Longitude == nil {
		rec.AddIssue(models.MissingLongitude, "Missing longitude")
	}
	if rec.ActualSpeedOverground == nil {
		rec.AddIssue(models.MissingActualSpeed, "Missing actual speed over ground")
	} else if *rec.ActualSpeedOverground < 0 {
		rec.AddIssue(models.NegativeActualSpeed, "Negative actual speed over ground")
	}
	if rec.ProposedSpeedOverground == nil {
		rec.AddIssue(models.MissingProposedSpeed, "Missing proposed speed over ground")
	} else if *rec.ProposedSpeedOverground < 0 {
		rec.AddIssue(models.NegativeProposedSpeed, "Negative proposed speed over ground")
	}

	if len(rec.Issues) == 0 {
		rec.Status = models.StatusValid
	} else {
		rec.Status = models.StatusInvalid
	}
}
