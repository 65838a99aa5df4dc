package detector

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"vessel-metrics-monitor/internal/models"
	"vessel-metrics-monitor/internal/workerpool"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fptr(v float64) *float64 { return &v }

// fakeStore holds records and statistics in memory
type fakeStore struct {
	mu       sync.Mutex
	vessels  []string
	stats    map[string]*models.VesselStatistics
	records  map[string][]models.TelemetryRecord
	issues   []models.ValidationIssue
	statsErr map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stats:    make(map[string]*models.VesselStatistics),
		records:  make(map[string][]models.TelemetryRecord),
		statsErr: make(map[string]error),
	}
}

func (f *fakeStore) DistinctVesselCodes(ctx context.Context) ([]string, error) {
	return f.vessels, nil
}

func (f *fakeStore) FindStatistics(ctx context.Context, vesselCode string) (*models.VesselStatistics, error) {
	if err := f.statsErr[vesselCode]; err != nil {
		return nil, err
	}
	return f.stats[vesselCode], nil
}

func (f *fakeStore) FindRecordsPage(ctx context.Context, vesselCode string, status models.ValidationStatus, limit, offset int) ([]models.TelemetryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matching []models.TelemetryRecord
	for _, r := range f.records[vesselCode] {
		if r.Status == status {
			matching = append(matching, r)
		}
	}
	if offset >= len(matching) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matching) {
		end = len(matching)
	}
	return matching[offset:end], nil
}

func (f *fakeStore) SaveIssues(ctx context.Context, issues []models.ValidationIssue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues = append(f.issues, issues...)
	return nil
}

func (f *fakeStore) MarkInvalid(ctx context.Context, recordIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	flagged := make(map[string]bool, len(recordIDs))
	for _, id := range recordIDs {
		flagged[id] = true
	}
	for vessel, recs := range f.records {
		for i := range recs {
			if flagged[recs[i].ID] {
				recs[i].Status = models.StatusInvalid
			}
		}
		f.records[vessel] = recs
	}
	return nil
}

func (f *fakeStore) issuesFor(recordID string) []models.ValidationIssue {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ValidationIssue
	for _, issue := range f.issues {
		if issue.RecordID == recordID {
			out = append(out, issue)
		}
	}
	return out
}

func (f *fakeStore) statusOf(vessel, recordID string) models.ValidationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records[vessel] {
		if r.ID == recordID {
			return r.Status
		}
	}
	return ""
}

// baseStats centers every metric at 100 with stddev 10
func baseStats(vessel string) *models.VesselStatistics {
	return &models.VesselStatistics{
		VesselCode:            vessel,
		AvgPower:              fptr(100),
		StddevPower:           fptr(10),
		AvgFuelConsumption:    fptr(100),
		StddevFuelConsumption: fptr(10),
		AvgActualSpeed:        fptr(100),
		StddevActualSpeed:     fptr(10),
	}
}

func validRecord(id, vessel string, power, fuel, speed *float64) models.TelemetryRecord {
	return models.TelemetryRecord{
		ID:                    id,
		VesselCode:            vessel,
		Power:                 power,
		FuelConsumption:       fuel,
		ActualSpeedOverground: speed,
		Status:                models.StatusValid,
	}
}

func runDetector(t *testing.T, store *fakeStore, pageSize int) *Detector {
	t.Helper()
	pool := workerpool.New(4, testLogger())
	t.Cleanup(pool.Stop)
	return New(store, pool, pageSize, testLogger())
}

func TestDetectVessel_ZScoreBoundaryIsExclusive(t *testing.T) {
	store := newFakeStore()
	store.vessels = []string{"3001"}
	store.stats["3001"] = baseStats("3001")
	store.records["3001"] = []models.TelemetryRecord{
		// z exactly 3.0 on power: not flagged
		validRecord("at-boundary", "3001", fptr(130), fptr(100), fptr(100)),
		// z just above 3 on power: flagged
		validRecord("above", "3001", fptr(130.1), fptr(100), fptr(100)),
		// z = -3.5 on power: flagged (absolute value)
		validRecord("below", "3001", fptr(65), fptr(100), fptr(100)),
	}

	d := runDetector(t, store, 100)
	require.NoError(t, d.DetectVessel(context.Background(), "3001"))

	assert.Empty(t, store.issuesFor("at-boundary"))
	assert.Equal(t, models.StatusValid, store.statusOf("3001", "at-boundary"))

	require.Len(t, store.issuesFor("above"), 1)
	assert.Equal(t, models.Outlier, store.issuesFor("above")[0].Kind)
	assert.Equal(t, models.StatusInvalid, store.statusOf("3001", "above"))

	require.Len(t, store.issuesFor("below"), 1)
	assert.Equal(t, models.StatusInvalid, store.statusOf("3001", "below"))
}

func TestDetectVessel_AccumulatesIssuePerMetric(t *testing.T) {
	store := newFakeStore()
	store.vessels = []string{"3001"}
	store.stats["3001"] = baseStats("3001")
	store.records["3001"] = []models.TelemetryRecord{
		validRecord("triple", "3001", fptr(200), fptr(200), fptr(200)),
	}

	d := runDetector(t, store, 100)
	require.NoError(t, d.DetectVessel(context.Background(), "3001"))

	issues := store.issuesFor("triple")
	require.Len(t, issues, 3)
	for _, issue := range issues {
		assert.Equal(t, models.Outlier, issue.Kind)
		assert.Equal(t, "3001", issue.VesselCode)
	}
	assert.Equal(t, models.StatusInvalid, store.statusOf("3001", "triple"))
}

func TestDetectVessel_AbsentValuesAndStatsAreSkipped(t *testing.T) {
	store := newFakeStore()
	store.vessels = []string{"3001"}
	stats := baseStats("3001")
	stats.AvgPower = nil // power stats unavailable
	store.stats["3001"] = stats
	store.records["3001"] = []models.TelemetryRecord{
		// extreme power but power stats absent; fuel absent on record
		validRecord("partial", "3001", fptr(1000), nil, fptr(100)),
	}

	d := runDetector(t, store, 100)
	require.NoError(t, d.DetectVessel(context.Background(), "3001"))

	assert.Empty(t, store.issuesFor("partial"))
	assert.Equal(t, models.StatusValid, store.statusOf("3001", "partial"))
}

func TestDetectVessel_NoStatisticsSkipsVessel(t *testing.T) {
	store := newFakeStore()
	store.vessels = []string{"3001"}
	store.records["3001"] = []models.TelemetryRecord{
		validRecord("r1", "3001", fptr(1000), fptr(1000), fptr(1000)),
	}

	d := runDetector(t, store, 100)
	require.NoError(t, d.DetectVessel(context.Background(), "3001"))

	assert.Empty(t, store.issues)
	assert.Equal(t, models.StatusValid, store.statusOf("3001", "r1"))
}

func TestDetectAll_VesselFailureDoesNotAbortRun(t *testing.T) {
	store := newFakeStore()
	store.vessels = []string{"bad", "3001"}
	store.statsErr["bad"] = errors.New("boom")
	store.stats["3001"] = baseStats("3001")
	store.records["3001"] = []models.TelemetryRecord{
		validRecord("flag-me", "3001", fptr(200), fptr(100), fptr(100)),
	}

	d := runDetector(t, store, 100)
	require.NoError(t, d.DetectAll(context.Background()))

	require.Len(t, store.issuesFor("flag-me"), 1)
}

func TestDetectVessel_Paging(t *testing.T) {
	store := newFakeStore()
	store.vessels = []string{"3001"}
	store.stats["3001"] = baseStats("3001")
	var recs []models.TelemetryRecord
	for i := 0; i < 25; i++ {
		// all normal values; one extreme record in the middle
		value := 100.0
		id := string(rune('a' + i))
		if i == 12 {
			value = 500.0
		}
		recs = append(recs, validRecord(id, "3001", fptr(value), fptr(100), fptr(100)))
	}
	store.records["3001"] = recs

	d := runDetector(t, store, 10)
	require.NoError(t, d.DetectVessel(context.Background(), "3001"))

	var flagged int
	for _, r := range store.records["3001"] {
		if r.Status == models.StatusInvalid {
			flagged++
		}
	}
	assert.Equal(t, 1, flagged)
	assert.Len(t, store.issues, 1)
}
