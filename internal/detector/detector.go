// Package detector re-scores VALID records against per-vessel statistics
// and flips statistical outliers to INVALID.
package detector

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"vessel-metrics-monitor/internal/models"
	"vessel-metrics-monitor/internal/monitoring"
	"vessel-metrics-monitor/internal/workerpool"

	"github.com/sirupsen/logrus"
)

const (
	// ZScoreThreshold flags a value as an outlier when |z| exceeds it.
	// The boundary is exclusive: exactly 3.0 is not flagged.
	ZScoreThreshold = 3.0

	// DefaultPageSize bounds how many records are held per scoring page
	DefaultPageSize = 10000
)

// Store is the persistence surface the detector consumes
type Store interface {
	DistinctVesselCodes(ctx context.Context) ([]string, error)
	FindStatistics(ctx context.Context, vesselCode string) (*models.VesselStatistics, error)
	FindRecordsPage(ctx context.Context, vesselCode string, status models.ValidationStatus, limit, offset int) ([]models.TelemetryRecord, error)
	SaveIssues(ctx context.Context, issues []models.ValidationIssue) error
	MarkInvalid(ctx context.Context, recordIDs []string) error
}

// Detector scores records vessel by vessel, page by page. Per-record
// scoring within a page runs on the injected worker pool.
type Detector struct {
	store    Store
	pool     *workerpool.Pool
	pageSize int
	logger   *logrus.Logger
}

// New creates a detector using the given shared worker pool
func New(store Store, pool *workerpool.Pool, pageSize int, logger *logrus.Logger) *Detector {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Detector{
		store:    store,
		pool:     pool,
		pageSize: pageSize,
		logger:   logger,
	}
}

// DetectAll runs detection for every vessel. A failure on one vessel is
// logged and the run continues with the next.
func (d *Detector) DetectAll(ctx context.Context) error {
	start := time.Now()
	vessels, err := d.store.DistinctVesselCodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list vessels: %w", err)
	}

	for _, vessel := range vessels {
		if err := d.DetectVessel(ctx, vessel); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.WithFields(logrus.Fields{
				"vessel": vessel,
				"error":  err,
			}).Error("Outlier detection failed for vessel, continuing")
		}
	}

	d.logger.WithFields(logrus.Fields{
		"vessels":  len(vessels),
		"duration": time.Since(start),
	}).Info("Outlier detection finished")
	return nil
}

// DetectVessel scores one vessel's VALID records. Statistics are fetched
// once up front and treated as an immutable snapshot for the whole run;
// a vessel without statistics is skipped, not an error.
func (d *Detector) DetectVessel(ctx context.Context, vesselCode string) error {
	stats, err := d.store.FindStatistics(ctx, vesselCode)
	if err != nil {
		return fmt.Errorf("failed to fetch statistics for vessel %s: %w", vesselCode, err)
	}
	if stats == nil {
		d.logger.WithField("vessel", vesselCode).Info("No statistics for vessel, skipping")
		return nil
	}

	start := time.Now()
	offset := 0
	for {
		page, err := d.store.FindRecordsPage(ctx, vesselCode, models.StatusValid, d.pageSize, offset)
		if err != nil {
			return fmt.Errorf("failed to fetch records for vessel %s: %w", vesselCode, err)
		}
		if len(page) == 0 {
			break
		}
		d.logger.WithFields(logrus.Fields{
			"vessel": vesselCode,
			"offset": offset,
			"count":  len(page),
		}).Info("Scoring page of records")

		issues, invalidIDs, err := d.scorePage(ctx, stats, page)
		if err != nil {
			return err
		}
		if len(issues) > 0 {
			if err := d.store.SaveIssues(ctx, issues); err != nil {
				return fmt.Errorf("failed to store outlier issues for vessel %s: %w", vesselCode, err)
			}
			if err := d.store.MarkInvalid(ctx, invalidIDs); err != nil {
				return fmt.Errorf("failed to update record status for vessel %s: %w", vesselCode, err)
			}
			monitoring.OutliersDetected.Add(float64(len(issues)))
		}

		// Records flagged here leave the VALID result set, so the next
		// VALID page starts after the ones that stayed valid.
		offset += len(page) - len(invalidIDs)
		if len(page) < d.pageSize {
			break
		}
	}

	d.logger.WithFields(logrus.Fields{
		"vessel":   vesselCode,
		"duration": time.Since(start),
	}).Info("Vessel scored")
	return nil
}

// scorePage checks every record of one page on the worker pool. Scoring
// is independent per record; each record's issue list reflects all three
// metric checks.
func (d *Detector) scorePage(ctx context.Context, stats *models.VesselStatistics, page []models.TelemetryRecord) ([]models.ValidationIssue, []string, error) {
	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		issues     []models.ValidationIssue
		invalidIDs []string
	)

	for i := range page {
		rec := &page[i]
		wg.Add(1)
		err := d.pool.Submit(ctx, func() {
			defer wg.Done()
			recIssues := scoreRecord(stats, rec)
			if len(recIssues) == 0 {
				return
			}
			mu.Lock()
			issues = append(issues, recIssues...)
			invalidIDs = append(invalidIDs, rec.ID)
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, nil, fmt.Errorf("failed to submit scoring task: %w", err)
		}
	}
	wg.Wait()

	return issues, invalidIDs, nil
}

// scoreRecord applies the z-score rule to each candidate metric
func scoreRecord(stats *models.VesselStatistics, rec *models.TelemetryRecord) []models.ValidationIssue {
	var found []models.ValidationIssue

	check := func(value, mean, stddev *float64, message string) {
		if value == nil || mean == nil || stddev == nil {
			return
		}
		z := (*value - *mean) / *stddev
		if math.Abs(z) > ZScoreThreshold {
			found = append(found, models.ValidationIssue{
				RecordID:   rec.ID,
				VesselCode: rec.VesselCode,
				Kind:       models.Outlier,
				Message:    message,
			})
		}
	}

	check(rec.FuelConsumption, stats.AvgFuelConsumption, stats.StddevFuelConsumption, "Fuel consumption is an outlier")
	check(rec.Power, stats.AvgPower, stats.StddevPower, "Power is an outlier")
	check(rec.ActualSpeedOverground, stats.AvgActualSpeed, stats.StddevActualSpeed, "Actual speed overground is an outlier")

	return found
}
