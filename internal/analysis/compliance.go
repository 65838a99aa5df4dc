package analysis

import (
	"context"
	"fmt"
	"math"
	"time"

	"vessel-metrics-monitor/internal/models"
	"vessel-metrics-monitor/internal/verrors"
	"vessel-metrics-monitor/internal/workerpool"

	"github.com/sirupsen/logrus"
)

// DefaultComplianceTimeout bounds the concurrent compliance join so a
// stuck task fails the comparison instead of hanging it.
const DefaultComplianceTimeout = 30 * time.Second

// ComplianceStore is the persistence surface the calculator consumes
type ComplianceStore interface {
	VesselExists(ctx context.Context, vesselCode string) (bool, error)
	FindRecords(ctx context.Context, vesselCode string, status models.ValidationStatus) ([]models.TelemetryRecord, error)
}

// ComplianceService computes per-vessel compliance and compares two
// vessels concurrently on a shared worker pool owned by the caller.
type ComplianceService struct {
	store   ComplianceStore
	pool    *workerpool.Pool
	timeout time.Duration
	logger  *logrus.Logger
}

// NewComplianceService creates a compliance calculator. A non-positive
// timeout falls back to DefaultComplianceTimeout.
func NewComplianceService(store ComplianceStore, pool *workerpool.Pool, timeout time.Duration, logger *logrus.Logger) *ComplianceService {
	if timeout <= 0 {
		timeout = DefaultComplianceTimeout
	}
	return &ComplianceService{store: store, pool: pool, timeout: timeout, logger: logger}
}

// Compliance computes the average compliance percentage over the
// vessel's VALID records. Records without both speeds, or with a zero
// proposed speed, do not qualify; zero qualifying records average to 0.
func (s *ComplianceService) Compliance(ctx context.Context, vesselCode string) (models.ComplianceResult, error) {
	records, err := s.store.FindRecords(ctx, vesselCode, models.StatusValid)
	if err != nil {
		return models.ComplianceResult{}, fmt.Errorf("failed to fetch records for vessel %s: %w", vesselCode, err)
	}

	total := 0.0
	count := 0
	for i := range records {
		actual := records[i].ActualSpeedOverground
		proposed := records[i].ProposedSpeedOverground
		if actual != nil && proposed != nil && *proposed != 0 {
			total += (1 - math.Abs(*actual-*proposed) / *proposed) * 100
			count++
		}
	}

	average := 0.0
	if count > 0 {
		average = total / float64(count)
	}
	s.logger.WithFields(logrus.Fields{
		"vessel":     vesselCode,
		"compliance": average,
	}).Info("Compliance calculated")
	return models.ComplianceResult{VesselCode: vesselCode, CompliancePercentage: average}, nil
}

// CompareCompliance computes both vessels' compliance concurrently and
// compares the percentages. Either vessel missing fails fast before any
// task is scheduled. A failure in either task surfaces as a single
// compliance-calculation error with partial results discarded.
func (s *ComplianceService) CompareCompliance(ctx context.Context, vesselCode1, vesselCode2 string) (models.ComplianceComparison, error) {
	var cmp models.ComplianceComparison

	for _, code := range []string{vesselCode1, vesselCode2} {
		exists, err := s.store.VesselExists(ctx, code)
		if err != nil {
			return cmp, fmt.Errorf("failed to check vessel %s: %w", code, err)
		}
		if !exists {
			return cmp, verrors.NewVesselNotFound(code)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"vessel1": vesselCode1,
		"vessel2": vesselCode2,
	}).Info("Starting compliance comparison")
	start := time.Now()

	taskCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result1, err := s.schedule(taskCtx, vesselCode1)
	if err != nil {
		return cmp, verrors.NewComplianceCalculation(err)
	}
	result2, err := s.schedule(taskCtx, vesselCode2)
	if err != nil {
		return cmp, verrors.NewComplianceCalculation(err)
	}

	compliance1, err := result1.wait(taskCtx)
	if err != nil {
		return cmp, verrors.NewComplianceCalculation(err)
	}
	compliance2, err := result2.wait(taskCtx)
	if err != nil {
		return cmp, verrors.NewComplianceCalculation(err)
	}

	s.logger.WithField("duration", time.Since(start)).Info("Compliance comparison completed")
	return models.ComplianceComparison{
		VesselCode1: vesselCode1,
		Compliance1: compliance1.CompliancePercentage,
		VesselCode2: vesselCode2,
		Compliance2: compliance2.CompliancePercentage,
		Result:      comparisonResult(vesselCode1, vesselCode2, compliance1, compliance2),
	}, nil
}

// pending is one in-flight compliance task
type pending struct {
	ch chan complianceOutcome
}

type complianceOutcome struct {
	result models.ComplianceResult
	err    error
}

// schedule submits one vessel's calculation to the shared pool
func (s *ComplianceService) schedule(ctx context.Context, vesselCode string) (*pending, error) {
	p := &pending{ch: make(chan complianceOutcome, 1)}
	err := s.pool.Submit(ctx, func() {
		result, err := s.Compliance(ctx, vesselCode)
		p.ch <- complianceOutcome{result: result, err: err}
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// wait blocks for the task outcome or the deadline, whichever first
func (p *pending) wait(ctx context.Context) (models.ComplianceResult, error) {
	select {
	case out := <-p.ch:
		return out.result, out.err
	case <-ctx.Done():
		return models.ComplianceResult{}, ctx.Err()
	}
}

func comparisonResult(vesselCode1, vesselCode2 string, c1, c2 models.ComplianceResult) string {
	switch {
	case c1.CompliancePercentage > c2.CompliancePercentage:
		return vesselCode1 + " is more compliant."
	case c1.CompliancePercentage < c2.CompliancePercentage:
		return vesselCode2 + " is more compliant."
	default:
		return "Both vessels have equal compliance."
	}
}
