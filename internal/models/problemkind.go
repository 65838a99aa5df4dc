package models

import "vessel-metrics-monitor/internal/verrors"

// ParseProblemKind maps a string to a recognized problem kind.
// Unknown values yield an invalid-argument error, never a silent match.
func ParseProblemKind(s string) (ProblemKind, error) {
	switch ProblemKind(s) {
	case MissingVesselCode:
		return MissingVesselCode, nil
	case MissingDateTime:
		return MissingDateTime, nil
	case MissingLatitude:
		return MissingLatitude, nil
	case MissingLongitude:
		return MissingLongitude, nil
	case MissingActualSpeed:
		return MissingActualSpeed, nil
	case NegativeActualSpeed:
		return NegativeActualSpeed, nil
	case MissingProposedSpeed:
		return MissingProposedSpeed, nil
	case NegativeProposedSpeed:
		return NegativeProposedSpeed, nil
	case Outlier:
		return Outlier, nil
	default:
		return "", verrors.NewInvalidArgument("unknown problem kind: %s", s)
	}
}
