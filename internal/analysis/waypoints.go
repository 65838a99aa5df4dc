// Package analysis provides the query-time services built on stored
// records: problematic waypoint grouping and compliance comparison.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"vessel-metrics-monitor/internal/models"
	"vessel-metrics-monitor/internal/verrors"

	"github.com/sirupsen/logrus"
)

// MaxGroupGap is the largest timestamp delta between two records that
// still places them in the same waypoint group.
const MaxGroupGap = 60 * time.Second

// WaypointStore is the persistence surface the grouper consumes
type WaypointStore interface {
	VesselExists(ctx context.Context, vesselCode string) (bool, error)
	FindRecords(ctx context.Context, vesselCode string, status models.ValidationStatus) ([]models.TelemetryRecord, error)
	FindIssueRecordIDs(ctx context.Context, vesselCode string, kind models.ProblemKind) ([]string, error)
}

// WaypointService groups a vessel's INVALID records into consecutive
// runs and ranks the groups by size.
type WaypointService struct {
	store  WaypointStore
	logger *logrus.Logger
}

// NewWaypointService creates a waypoint grouping service
func NewWaypointService(store WaypointStore, logger *logrus.Logger) *WaypointService {
	return &WaypointService{store: store, logger: logger}
}

// GroupProblematicWaypoints returns the vessel's groups of consecutive
// INVALID records, optionally restricted to records carrying at least
// one issue of the given kind, sorted by problem count descending.
func (s *WaypointService) GroupProblematicWaypoints(ctx context.Context, vesselCode string, kind *models.ProblemKind) ([]models.ProblematicWaypointGroup, error) {
	s.logger.WithField("vessel", vesselCode).Info("Retrieving problematic waypoints")

	exists, err := s.store.VesselExists(ctx, vesselCode)
	if err != nil {
		return nil, fmt.Errorf("failed to check vessel %s: %w", vesselCode, err)
	}
	if !exists {
		return nil, verrors.NewVesselNotFound(vesselCode)
	}

	records, err := s.store.FindRecords(ctx, vesselCode, models.StatusInvalid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invalid records for vessel %s: %w", vesselCode, err)
	}

	if kind != nil {
		records, err = s.filterByKind(ctx, vesselCode, *kind, records)
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return timestampBefore(records[i].Timestamp, records[j].Timestamp)
	})

	return groupConsecutive(records), nil
}

// filterByKind keeps only records that have at least one issue of kind
func (s *WaypointService) filterByKind(ctx context.Context, vesselCode string, kind models.ProblemKind, records []models.TelemetryRecord) ([]models.TelemetryRecord, error) {
	ids, err := s.store.FindIssueRecordIDs(ctx, vesselCode, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issue record ids for vessel %s: %w", vesselCode, err)
	}

	byID := make(map[string]models.TelemetryRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	filtered := make([]models.TelemetryRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// groupConsecutive walks time-sorted records and cuts a new group
// whenever two neighbors are not consecutive
func groupConsecutive(records []models.TelemetryRecord) []models.ProblematicWaypointGroup {
	groups := []models.ProblematicWaypointGroup{}
	var current []models.TelemetryRecord

	for i := range records {
		current = append(current, records[i])
		if i == len(records)-1 || !isConsecutive(&records[i], &records[i+1]) {
			groups = append(groups, models.ProblematicWaypointGroup{
				ProblemCount: len(current),
				Waypoints:    current,
			})
			current = nil
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].ProblemCount > groups[j].ProblemCount
	})
	return groups
}

// isConsecutive holds iff 0 <= t2-t1 <= 60s. Records without a
// timestamp never join a group with any neighbor.
func isConsecutive(a, b *models.TelemetryRecord) bool {
	if a.Timestamp == nil || b.Timestamp == nil {
		return false
	}
	delta := b.Timestamp.Sub(*a.Timestamp)
	return delta >= 0 && delta <= MaxGroupGap
}

// timestampBefore orders nil timestamps first
func timestampBefore(a, b *time.Time) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return a.Before(*b)
}
