// Package db implements the persistence layer on SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"vessel-metrics-monitor/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// Database wraps the SQLite connection
type Database struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dbPath string) (*Database, error) {
	// Enable WAL mode and other optimizations via connection string
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000", dbPath)

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	db := &Database{conn: conn}

	if err := db.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// initialize creates tables and indexes
func (db *Database) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vessel_records (
		id TEXT PRIMARY KEY,
		vessel_code TEXT NOT NULL,
		timestamp DATETIME,
		latitude REAL,
		longitude REAL,
		power REAL,
		fuel_consumption REAL,
		actual_speed_overground REAL,
		proposed_speed_overground REAL,
		predicted_fuel_consumption REAL,
		speed_difference REAL,
		fuel_efficiency REAL,
		validation_status TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS validation_issues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id TEXT NOT NULL,
		vessel_code TEXT NOT NULL,
		problem_kind TEXT NOT NULL,
		message TEXT NOT NULL,
		FOREIGN KEY (record_id) REFERENCES vessel_records(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS vessel_statistics (
		vessel_code TEXT PRIMARY KEY,
		avg_power REAL,
		stddev_power REAL,
		avg_fuel_consumption REAL,
		stddev_fuel_consumption REAL,
		avg_actual_speed REAL,
		stddev_actual_speed REAL
	);

	CREATE INDEX IF NOT EXISTS idx_records_vessel_code ON vessel_records(vessel_code);
	CREATE INDEX IF NOT EXISTS idx_records_vessel_status ON vessel_records(vessel_code, validation_status);
	CREATE INDEX IF NOT EXISTS idx_records_timestamp ON vessel_records(timestamp);
	CREATE INDEX IF NOT EXISTS idx_issues_record_id ON validation_issues(record_id);
	CREATE INDEX IF NOT EXISTS idx_issues_vessel_kind ON validation_issues(vessel_code, problem_kind);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.conn.Close()
}

const recordColumns = `id, vessel_code, timestamp, latitude, longitude, power,
	       fuel_consumption, actual_speed_overground, proposed_speed_overground,
	       predicted_fuel_consumption, speed_difference, fuel_efficiency, validation_status`

// SaveBatch inserts a batch of records and their issues in one transaction
func (db *Database) SaveBatch(ctx context.Context, records []models.TelemetryRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	recStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vessel_records
		(id, vessel_code, timestamp, latitude, longitude, power, fuel_consumption,
		 actual_speed_overground, proposed_speed_overground, predicted_fuel_consumption,
		 speed_difference, fuel_efficiency, validation_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer recStmt.Close()

	issueStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO validation_issues (record_id, vessel_code, problem_kind, message)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer issueStmt.Close()

	for i := range records {
		r := &records[i]
		_, err := recStmt.ExecContext(ctx,
			r.ID, r.VesselCode, nullTime(r.Timestamp), nullFloat(r.Latitude), nullFloat(r.Longitude),
			nullFloat(r.Power), nullFloat(r.FuelConsumption), nullFloat(r.ActualSpeedOverground),
			nullFloat(r.ProposedSpeedOverground), nullFloat(r.PredictedFuelConsumption),
			nullFloat(r.SpeedDifference), nullFloat(r.FuelEfficiency), string(r.Status),
		)
		if err != nil {
			return err
		}
		for _, issue := range r.Issues {
			if _, err := issueStmt.ExecContext(ctx, issue.RecordID, issue.VesselCode, string(issue.Kind), issue.Message); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// SaveIssues inserts detector-created issues
func (db *Database) SaveIssues(ctx context.Context, issues []models.ValidationIssue) error {
	if len(issues) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO validation_issues (record_id, vessel_code, problem_kind, message)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, issue := range issues {
		if _, err := stmt.ExecContext(ctx, issue.RecordID, issue.VesselCode, string(issue.Kind), issue.Message); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// MarkInvalid flips the given records to INVALID
func (db *Database) MarkInvalid(ctx context.Context, recordIDs []string) error {
	if len(recordIDs) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(recordIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(recordIDs))
	for i, id := range recordIDs {
		args[i] = id
	}

	query := fmt.Sprintf("UPDATE vessel_records SET validation_status = '%s' WHERE id IN (%s)",
		models.StatusInvalid, placeholders)
	_, err := db.conn.ExecContext(ctx, query, args...)
	return err
}

// VesselExists reports whether any record carries the vessel code
func (db *Database) VesselExists(ctx context.Context, vesselCode string) (bool, error) {
	var count int64
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vessel_records WHERE vessel_code = ?", vesselCode).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DistinctVesselCodes lists every vessel code present in storage
func (db *Database) DistinctVesselCodes(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT DISTINCT vessel_code FROM vessel_records ORDER BY vessel_code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// FindRecords returns all records for a vessel with the given status,
// ordered by timestamp ascending
func (db *Database) FindRecords(ctx context.Context, vesselCode string, status models.ValidationStatus) ([]models.TelemetryRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM vessel_records
		WHERE vessel_code = ? AND validation_status = ?
		ORDER BY timestamp
	`, recordColumns)

	rows, err := db.conn.QueryContext(ctx, query, vesselCode, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// FindRecordsPage returns one page of records for a vessel and status
func (db *Database) FindRecordsPage(ctx context.Context, vesselCode string, status models.ValidationStatus, limit, offset int) ([]models.TelemetryRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM vessel_records
		WHERE vessel_code = ? AND validation_status = ?
		ORDER BY timestamp
		LIMIT ? OFFSET ?
	`, recordColumns)

	rows, err := db.conn.QueryContext(ctx, query, vesselCode, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// QueryRecords retrieves records based on query parameters
func (db *Database) QueryRecords(ctx context.Context, q models.RecordQuery) ([]models.TelemetryRecord, error) {
	var conditions []string
	var args []interface{}

	baseQuery := fmt.Sprintf("SELECT %s FROM vessel_records", recordColumns)

	if q.VesselCode != "" {
		conditions = append(conditions, "vessel_code = ?")
		args = append(args, q.VesselCode)
	}
	if q.Status != "" {
		conditions = append(conditions, "validation_status = ?")
		args = append(args, string(q.Status))
	}
	if !q.StartTime.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, q.StartTime)
	}
	if !q.EndTime.IsZero() {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, q.EndTime)
	}

	if len(conditions) > 0 {
		baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	baseQuery += " ORDER BY timestamp"

	if q.Limit > 0 {
		baseQuery += fmt.Sprintf(" LIMIT %d", q.Limit)
		if q.Offset > 0 {
			baseQuery += fmt.Sprintf(" OFFSET %d", q.Offset)
		}
	}

	rows, err := db.conn.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// FindIssueRecordIDs lists ids of records with at least one issue of kind
func (db *Database) FindIssueRecordIDs(ctx context.Context, vesselCode string, kind models.ProblemKind) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT record_id FROM validation_issues
		WHERE vessel_code = ? AND problem_kind = ?
	`, vesselCode, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IssueSummary returns per-kind issue counts for a vessel, descending
func (db *Database) IssueSummary(ctx context.Context, vesselCode string) ([]models.IssueCount, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT problem_kind, COUNT(*) AS cnt FROM validation_issues
		WHERE vessel_code = ?
		GROUP BY problem_kind
		ORDER BY cnt DESC
	`, vesselCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.IssueCount
	for rows.Next() {
		var c models.IssueCount
		var kind string
		if err := rows.Scan(&kind, &c.Count); err != nil {
			return nil, err
		}
		c.Kind = models.ProblemKind(kind)
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// FindStatistics returns a vessel's statistics, or nil when absent
func (db *Database) FindStatistics(ctx context.Context, vesselCode string) (*models.VesselStatistics, error) {
	var s models.VesselStatistics
	var avgPower, stddevPower, avgFuel, stddevFuel, avgSpeed, stddevSpeed sql.NullFloat64

	err := db.conn.QueryRowContext(ctx, `
		SELECT vessel_code, avg_power, stddev_power, avg_fuel_consumption,
		       stddev_fuel_consumption, avg_actual_speed, stddev_actual_speed
		FROM vessel_statistics WHERE vessel_code = ?
	`, vesselCode).Scan(&s.VesselCode, &avgPower, &stddevPower, &avgFuel, &stddevFuel, &avgSpeed, &stddevSpeed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.AvgPower = floatPtr(avgPower)
	s.StddevPower = floatPtr(stddevPower)
	s.AvgFuelConsumption = floatPtr(avgFuel)
	s.StddevFuelConsumption = floatPtr(stddevFuel)
	s.AvgActualSpeed = floatPtr(avgSpeed)
	s.StddevActualSpeed = floatPtr(stddevSpeed)
	return &s, nil
}

// SaveStatistics upserts one vessel's statistics
func (db *Database) SaveStatistics(ctx context.Context, stats models.VesselStatistics) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO vessel_statistics
		(vessel_code, avg_power, stddev_power, avg_fuel_consumption,
		 stddev_fuel_consumption, avg_actual_speed, stddev_actual_speed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(vessel_code) DO UPDATE SET
			avg_power = excluded.avg_power,
			stddev_power = excluded.stddev_power,
			avg_fuel_consumption = excluded.avg_fuel_consumption,
			stddev_fuel_consumption = excluded.stddev_fuel_consumption,
			avg_actual_speed = excluded.avg_actual_speed,
			stddev_actual_speed = excluded.stddev_actual_speed
	`, stats.VesselCode,
		nullFloat(stats.AvgPower), nullFloat(stats.StddevPower),
		nullFloat(stats.AvgFuelConsumption), nullFloat(stats.StddevFuelConsumption),
		nullFloat(stats.AvgActualSpeed), nullFloat(stats.StddevActualSpeed))
	return err
}

// Stats returns database-level counters
func (db *Database) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalRecords int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM vessel_records").Scan(&totalRecords); err != nil {
		return nil, err
	}
	stats["total_records"] = totalRecords

	var totalVessels int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(DISTINCT vessel_code) FROM vessel_records").Scan(&totalVessels); err != nil {
		return nil, err
	}
	stats["total_vessels"] = totalVessels

	var totalIssues int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM validation_issues").Scan(&totalIssues); err != nil {
		return nil, err
	}
	stats["total_issues"] = totalIssues

	var invalidRecords int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM vessel_records WHERE validation_status = 'INVALID'").Scan(&invalidRecords); err != nil {
		return nil, err
	}
	stats["invalid_records"] = invalidRecords

	return stats, nil
}

// scanRecords reads all rows into records
func scanRecords(rows *sql.Rows) ([]models.TelemetryRecord, error) {
	var results []models.TelemetryRecord
	for rows.Next() {
		var r models.TelemetryRecord
		var ts sql.NullTime
		var lat, lon, power, fuel, actual, proposed, predicted, diff, eff sql.NullFloat64
		var status string

		err := rows.Scan(
			&r.ID, &r.VesselCode, &ts, &lat, &lon, &power,
			&fuel, &actual, &proposed, &predicted, &diff, &eff, &status,
		)
		if err != nil {
			return nil, err
		}

		if ts.Valid {
			t := ts.Time
			r.Timestamp = &t
		}
		r.Latitude = floatPtr(lat)
		r.Longitude = floatPtr(lon)
		r.Power = floatPtr(power)
		r.FuelConsumption = floatPtr(fuel)
		r.ActualSpeedOverground = floatPtr(actual)
		r.ProposedSpeedOverground = floatPtr(proposed)
		r.PredictedFuelConsumption = floatPtr(predicted)
		r.SpeedDifference = floatPtr(diff)
		r.FuelEfficiency = floatPtr(eff)
		r.Status = models.ValidationStatus(status)

		results = append(results, r)
	}
	return results, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
