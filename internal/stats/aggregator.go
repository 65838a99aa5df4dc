// Package stats computes per-vessel mean and standard deviation for the
// metrics the outlier detector scores against.
package stats

import (
	"context"
	"fmt"
	"math"

	"vessel-metrics-monitor/internal/models"

	"github.com/sirupsen/logrus"
)

// Source provides the records the aggregator reads
type Source interface {
	DistinctVesselCodes(ctx context.Context) ([]string, error)
	FindRecords(ctx context.Context, vesselCode string, status models.ValidationStatus) ([]models.TelemetryRecord, error)
}

// Sink persists computed statistics
type Sink interface {
	SaveStatistics(ctx context.Context, stats models.VesselStatistics) error
}

// Aggregator materializes vessel statistics from stored VALID records
type Aggregator struct {
	source Source
	sink   Sink
	logger *logrus.Logger
}

// New creates an aggregator
func New(source Source, sink Sink, logger *logrus.Logger) *Aggregator {
	return &Aggregator{source: source, sink: sink, logger: logger}
}

// RefreshAll recomputes and stores statistics for every vessel
func (a *Aggregator) RefreshAll(ctx context.Context) error {
	vessels, err := a.source.DistinctVesselCodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list vessels: %w", err)
	}
	for _, vessel := range vessels {
		if err := a.RefreshVessel(ctx, vessel); err != nil {
			return err
		}
	}
	a.logger.WithField("vessels", len(vessels)).Info("Vessel statistics refreshed")
	return nil
}

// RefreshVessel recomputes and stores one vessel's statistics over its
// VALID records
func (a *Aggregator) RefreshVessel(ctx context.Context, vesselCode string) error {
	records, err := a.source.FindRecords(ctx, vesselCode, models.StatusValid)
	if err != nil {
		return fmt.Errorf("failed to fetch records for vessel %s: %w", vesselCode, err)
	}

	stats := Compute(vesselCode, records)
	if err := a.sink.SaveStatistics(ctx, stats); err != nil {
		return fmt.Errorf("failed to save statistics for vessel %s: %w", vesselCode, err)
	}
	return nil
}

// Compute derives mean/stddev per metric, skipping absent values
func Compute(vesselCode string, records []models.TelemetryRecord) models.VesselStatistics {
	var power, fuel, speed accumulator
	for i := range records {
		power.add(records[i].Power)
		fuel.add(records[i].FuelConsumption)
		speed.add(records[i].ActualSpeedOverground)
	}

	stats := models.VesselStatistics{VesselCode: vesselCode}
	stats.AvgPower, stats.StddevPower = power.result()
	stats.AvgFuelConsumption, stats.StddevFuelConsumption = fuel.result()
	stats.AvgActualSpeed, stats.StddevActualSpeed = speed.result()
	return stats
}

// accumulator tracks running sums for mean and sample stddev
type accumulator struct {
	count int
	sum   float64
	sumSq float64
}

func (a *accumulator) add(v *float64) {
	if v == nil {
		return
	}
	a.count++
	a.sum += *v
	a.sumSq += *v * *v
}

// result returns the mean and sample standard deviation. Mean needs at
// least one sample, stddev at least two.
func (a *accumulator) result() (*float64, *float64) {
	if a.count == 0 {
		return nil, nil
	}
	mean := a.sum / float64(a.count)
	if a.count < 2 {
		return &mean, nil
	}
	n := float64(a.count)
	variance := (a.sumSq - (a.sum*a.sum)/n) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	stddev := math.Sqrt(variance)
	return &mean, &stddev
}
