// Package verrors defines the error taxonomy shared by the vessel services.
package verrors

import (
	"errors"
	"fmt"
)

// VesselNotFoundError reports a vessel code with no records
type VesselNotFoundError struct {
	VesselCode string
}

func (e *VesselNotFoundError) Error() string {
	return fmt.Sprintf("vessel with code %s does not exist", e.VesselCode)
}

// NewVesselNotFound creates a not-found error for the given vessel code
func NewVesselNotFound(vesselCode string) error {
	return &VesselNotFoundError{VesselCode: vesselCode}
}

// IsVesselNotFound reports whether err is a vessel-not-found error
func IsVesselNotFound(err error) bool {
	var e *VesselNotFoundError
	return errors.As(err, &e)
}

// InvalidArgumentError reports a caller-supplied value that failed validation,
// such as an unrecognized problem kind
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return e.Message
}

// NewInvalidArgument creates an invalid-argument error
func NewInvalidArgument(format string, args ...interface{}) error {
	return &InvalidArgumentError{Message: fmt.Sprintf(format, args...)}
}

// IsInvalidArgument reports whether err is an invalid-argument error
func IsInvalidArgument(err error) bool {
	var e *InvalidArgumentError
	return errors.As(err, &e)
}

// ComplianceCalculationError wraps a failure inside the concurrent
// compliance comparison. Partial results are discarded by the caller.
type ComplianceCalculationError struct {
	Cause error
}

func (e *ComplianceCalculationError) Error() string {
	return fmt.Sprintf("an error occurred while calculating compliance: %v", e.Cause)
}

func (e *ComplianceCalculationError) Unwrap() error {
	return e.Cause
}

// NewComplianceCalculation wraps cause as a compliance-calculation failure
func NewComplianceCalculation(cause error) error {
	return &ComplianceCalculationError{Cause: cause}
}

// IsComplianceCalculation reports whether err is a compliance-calculation error
func IsComplianceCalculation(err error) bool {
	var e *ComplianceCalculationError
	return errors.As(err, &e)
}
