package models

import "time"

// ValidationStatus marks whether a telemetry record passed all checks
type ValidationStatus string

const (
	StatusValid   ValidationStatus = "VALID"
	StatusInvalid ValidationStatus = "INVALID"
)

// ProblemKind identifies why a record failed a validation check
type ProblemKind string

const (
	MissingVesselCode     ProblemKind = "MISSING_VESSEL_CODE"
	MissingDateTime       ProblemKind = "MISSING_DATETIME"
	MissingLatitude       ProblemKind = "MISSING_LATITUDE"
	MissingLongitude      ProblemKind = "MISSING_LONGITUDE"
	MissingActualSpeed    ProblemKind = "MISSING_ACTUAL_SPEED"
	NegativeActualSpeed   ProblemKind = "NEGATIVE_ACTUAL_SPEED"
	MissingProposedSpeed  ProblemKind = "MISSING_PROPOSED_SPEED"
	NegativeProposedSpeed ProblemKind = "NEGATIVE_PROPOSED_SPEED"
	Outlier               ProblemKind = "OUTLIER"
)

// ProblemKinds lists every recognized problem kind.
var ProblemKinds = []ProblemKind{
	MissingVesselCode,
	MissingDateTime,
	MissingLatitude,
	MissingLongitude,
	MissingActualSpeed,
	NegativeActualSpeed,
	MissingProposedSpeed,
	NegativeProposedSpeed,
	Outlier,
}

// TelemetryRecord is one timestamped observation for a vessel.
// Optional fields are pointers; nil means the source value was absent or
// unparsable. Issues reference the record by ID only.
type TelemetryRecord struct {
	ID                       string            `json:"id"`
	VesselCode               string            `json:"vessel_code"`
	Timestamp                *time.Time        `json:"timestamp,omitempty"`
	Latitude                 *float64          `json:"latitude,omitempty"`
	Longitude                *float64          `json:"longitude,omitempty"`
	Power                    *float64          `json:"power,omitempty"`
	FuelConsumption          *float64          `json:"fuel_consumption,omitempty"`
	ActualSpeedOverground    *float64          `json:"actual_speed_overground,omitempty"`
	ProposedSpeedOverground  *float64          `json:"proposed_speed_overground,omitempty"`
	PredictedFuelConsumption *float64          `json:"predicted_fuel_consumption,omitempty"`
	SpeedDifference          *float64          `json:"speed_difference,omitempty"`
	FuelEfficiency           *float64          `json:"fuel_efficiency,omitempty"`
	Status                   ValidationStatus  `json:"validation_status"`
	Issues                   []ValidationIssue `json:"issues,omitempty"`
}

// AddIssue appends a validation issue owned by this record
func (r *TelemetryRecord) AddIssue(kind ProblemKind, message string) {
	r.Issues = append(r.Issues, ValidationIssue{
		RecordID:   r.ID,
		VesselCode: r.VesselCode,
		Kind:       kind,
		Message:    message,
	})
}

// ValidationIssue is one tagged reason a record failed a check
type ValidationIssue struct {
	RecordID   string      `json:"record_id"`
	VesselCode string      `json:"vessel_code"`
	Kind       ProblemKind `json:"problem_kind"`
	Message    string      `json:"message"`
}

// VesselStatistics holds per-vessel mean and standard deviation for the
// metrics scored by the outlier detector. Nil fields mean too few samples.
type VesselStatistics struct {
	VesselCode            string   `json:"vessel_code"`
	AvgPower              *float64 `json:"avg_power,omitempty"`
	StddevPower           *float64 `json:"stddev_power,omitempty"`
	AvgFuelConsumption    *float64 `json:"avg_fuel_consumption,omitempty"`
	StddevFuelConsumption *float64 `json:"stddev_fuel_consumption,omitempty"`
	AvgActualSpeed        *float64 `json:"avg_actual_speed,omitempty"`
	StddevActualSpeed     *float64 `json:"stddev_actual_speed,omitempty"`
}

// ProblematicWaypointGroup is a run of time-adjacent INVALID records.
// Computed per query, never persisted.
type ProblematicWaypointGroup struct {
	ProblemCount int               `json:"problem_count"`
	Waypoints    []TelemetryRecord `json:"waypoints"`
}

// ComplianceResult carries one vessel's compliance percentage.
// The percentage is not clamped and can be negative.
type ComplianceResult struct {
	VesselCode           string  `json:"vessel_code"`
	CompliancePercentage float64 `json:"compliance_percentage"`
}

// ComplianceComparison is the outcome of comparing two vessels
type ComplianceComparison struct {
	VesselCode1 string  `json:"vessel_code_1"`
	Compliance1 float64 `json:"compliance_1"`
	VesselCode2 string  `json:"vessel_code_2"`
	Compliance2 float64 `json:"compliance_2"`
	Result      string  `json:"result"`
}

// IssueCount is the per-kind issue frequency for a vessel
type IssueCount struct {
	Kind  ProblemKind `json:"problem_kind"`
	Count int64       `json:"count"`
}

// RecordQuery holds filter parameters for record searches
type RecordQuery struct {
	VesselCode string
	Status     ValidationStatus
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
	Offset     int
}
