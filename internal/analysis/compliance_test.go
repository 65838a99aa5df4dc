package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vessel-metrics-monitor/internal/models"
	"vessel-metrics-monitor/internal/verrors"
	"vessel-metrics-monitor/internal/workerpool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

// fakeComplianceStore serves canned records per vessel code
type fakeComplianceStore struct {
	mu        sync.Mutex
	records   map[string][]models.TelemetryRecord
	findErr   map[string]error
	blocking  bool
	findCalls int
}

func (f *fakeComplianceStore) VesselExists(ctx context.Context, vesselCode string) (bool, error) {
	_, ok := f.records[vesselCode]
	return ok, nil
}

func (f *fakeComplianceStore) FindRecords(ctx context.Context, vesselCode string, status models.ValidationStatus) ([]models.TelemetryRecord, error) {
	f.mu.Lock()
	f.findCalls++
	f.mu.Unlock()
	if f.blocking {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.findErr[vesselCode]; err != nil {
		return nil, err
	}
	return f.records[vesselCode], nil
}

func (f *fakeComplianceStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findCalls
}

func speeds(actual, proposed *float64) models.TelemetryRecord {
	return models.TelemetryRecord{
		VesselCode:              "3001",
		ActualSpeedOverground:   actual,
		ProposedSpeedOverground: proposed,
		Status:                  models.StatusValid,
	}
}

func newComplianceService(t *testing.T, store ComplianceStore) *ComplianceService {
	t.Helper()
	pool := workerpool.New(4, testLogger())
	t.Cleanup(pool.Stop)
	return NewComplianceService(store, pool, time.Minute, testLogger())
}

func TestCompliance_AveragesQualifyingRecords(t *testing.T) {
	store := &fakeComplianceStore{records: map[string][]models.TelemetryRecord{
		"3001": {
			speeds(fptr(9), fptr(12)),  // (1 - 3/12) * 100 = 75
			speeds(fptr(10), fptr(10)), // exact match = 100
		},
	}}
	svc := newComplianceService(t, store)

	result, err := svc.Compliance(context.Background(), "3001")

	require.NoError(t, err)
	assert.Equal(t, "3001", result.VesselCode)
	assert.InDelta(t, 87.5, result.CompliancePercentage, 1e-9)
}

func TestCompliance_SkipsNonQualifyingRecords(t *testing.T) {
	store := &fakeComplianceStore{records: map[string][]models.TelemetryRecord{
		"3001": {
			speeds(nil, fptr(12)),     // missing actual
			speeds(fptr(9), nil),      // missing proposed
			speeds(fptr(9), fptr(0)),  // zero proposed would divide by zero
			speeds(fptr(9), fptr(12)), // the only qualifying record
		},
	}}
	svc := newComplianceService(t, store)

	result, err := svc.Compliance(context.Background(), "3001")

	require.NoError(t, err)
	assert.InDelta(t, 75.0, result.CompliancePercentage, 1e-9)
}

func TestCompliance_NoQualifyingRecordsAverageToZero(t *testing.T) {
	store := &fakeComplianceStore{records: map[string][]models.TelemetryRecord{
		"3001": {speeds(nil, nil)},
	}}
	svc := newComplianceService(t, store)

	result, err := svc.Compliance(context.Background(), "3001")

	require.NoError(t, err)
	assert.Zero(t, result.CompliancePercentage)
}

func TestCompareCompliance_ReportsWinner(t *testing.T) {
	store := &fakeComplianceStore{records: map[string][]models.TelemetryRecord{
		"3001": {speeds(fptr(10), fptr(10))}, // 100
		"3002": {speeds(fptr(9), fptr(12))},  // 75
	}}
	svc := newComplianceService(t, store)

	cmp, err := svc.CompareCompliance(context.Background(), "3001", "3002")

	require.NoError(t, err)
	assert.Equal(t, "3001", cmp.VesselCode1)
	assert.Equal(t, "3002", cmp.VesselCode2)
	assert.InDelta(t, 100.0, cmp.Compliance1, 1e-9)
	assert.InDelta(t, 75.0, cmp.Compliance2, 1e-9)
	assert.Equal(t, "3001 is more compliant.", cmp.Result)
}

func TestCompareCompliance_WinnerInSecondPosition(t *testing.T) {
	store := &fakeComplianceStore{records: map[string][]models.TelemetryRecord{
		"3001": {speeds(fptr(9), fptr(12))},  // 75
		"3002": {speeds(fptr(10), fptr(10))}, // 100
	}}
	svc := newComplianceService(t, store)

	cmp, err := svc.CompareCompliance(context.Background(), "3001", "3002")

	require.NoError(t, err)
	assert.Equal(t, "3002 is more compliant.", cmp.Result)
}

func TestCompareCompliance_EqualCompliance(t *testing.T) {
	store := &fakeComplianceStore{records: map[string][]models.TelemetryRecord{
		"3001": {speeds(fptr(10), fptr(10))},
		"3002": {speeds(fptr(20), fptr(20))},
	}}
	svc := newComplianceService(t, store)

	cmp, err := svc.CompareCompliance(context.Background(), "3001", "3002")

	require.NoError(t, err)
	assert.Equal(t, "Both vessels have equal compliance.", cmp.Result)
}

func TestCompareCompliance_UnknownVesselFailsBeforeScheduling(t *testing.T) {
	store := &fakeComplianceStore{records: map[string][]models.TelemetryRecord{
		"3001": {speeds(fptr(10), fptr(10))},
	}}
	svc := newComplianceService(t, store)

	_, err := svc.CompareCompliance(context.Background(), "3001", "9999")

	require.Error(t, err)
	assert.True(t, verrors.IsVesselNotFound(err))
	assert.Zero(t, store.calls(), "no calculation should run when a vessel is missing")
}

func TestCompareCompliance_TaskFailureWrapsError(t *testing.T) {
	store := &fakeComplianceStore{
		records: map[string][]models.TelemetryRecord{
			"3001": {speeds(fptr(10), fptr(10))},
			"3002": {},
		},
		findErr: map[string]error{"3002": errors.New("disk gone")},
	}
	svc := newComplianceService(t, store)

	_, err := svc.CompareCompliance(context.Background(), "3001", "3002")

	require.Error(t, err)
	assert.True(t, verrors.IsComplianceCalculation(err))
	assert.ErrorContains(t, err, "disk gone")
}

func TestCompareCompliance_TimeoutSurfacesAsCalculationError(t *testing.T) {
	store := &fakeComplianceStore{
		records: map[string][]models.TelemetryRecord{
			"3001": {},
			"3002": {},
		},
		blocking: true,
	}
	pool := workerpool.New(4, testLogger())
	t.Cleanup(pool.Stop)
	svc := NewComplianceService(store, pool, 20*time.Millisecond, testLogger())

	_, err := svc.CompareCompliance(context.Background(), "3001", "3002")

	require.Error(t, err)
	assert.True(t, verrors.IsComplianceCalculation(err))
}
