package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/jiin/lookout/internal/models"
	_ "modernc.org/sqlite"
)

type SQLiteAlertLog struct {
	db *sql.DB
}

func NewSQLiteAlertLog(dbPath string) (*SQLiteAlertLog, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	log := &SQLiteAlertLog{db: db}
	if err := log.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return log, nil
}

func (s *SQLiteAlertLog) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target_name TEXT NOT NULL,
		target_group TEXT NOT NULL DEFAULT '',
		old_status TEXT NOT NULL,
		new_status TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'fired',
		fired_at DATETIME NOT NULL,
		resolved_at DATETIME,
		channels TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_target_time
	ON alerts(target_name, fired_at DESC);

	CREATE INDEX IF NOT EXISTS idx_alerts_status
	ON alerts(status);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteAlertLog) Save(alert *models.AlertRecord) error {
	query := `
	INSERT INTO alerts (target_name, target_group, old_status, new_status, severity, message, status, fired_at, resolved_at, channels)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	status := alert.Status
	if status == "" {
		status = models.AlertStatusFired
	}

	result, err := s.db.Exec(query,
		alert.TargetName,
		alert.Group,
		alert.OldStatus,
		alert.NewStatus,
		alert.Severity,
		alert.Message,
		status,
		alert.FiredAt,
		alert.ResolvedAt,
		alert.Channels,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err == nil {
		alert.ID = id
	}
	return nil
}

func (s *SQLiteAlertLog) Resolve(targetName string, at time.Time) error {
	query := `
	UPDATE alerts
	SET status = ?, resolved_at = ?
	WHERE target_name = ? AND status = ?
	`
	_, err := s.db.Exec(query, models.AlertStatusResolved, at, targetName, models.AlertStatusFired)
	return err
}

func (s *SQLiteAlertLog) ActiveByTarget() (map[string]models.AlertRecord, error) {
	query := `
	SELECT id, target_name, target_group, old_status, new_status, severity, message, status, fired_at, resolved_at, channels
	FROM alerts
	WHERE status = ?
	ORDER BY fired_at ASC
	`
	rows, err := s.db.Query(query, models.AlertStatusFired)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	active := make(map[string]models.AlertRecord)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		// Later rows overwrite, keeping the newest per target
		active[a.TargetName] = a
	}
	return active, rows.Err()
}

func (s *SQLiteAlertLog) Recent(from, to time.Time, limit int) ([]models.AlertRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
	SELECT id, target_name, target_group, old_status, new_status, severity, message, status, fired_at, resolved_at, channels
	FROM alerts
	WHERE fired_at >= ? AND fired_at <= ?
	ORDER BY fired_at DESC
	LIMIT ?
	`
	rows, err := s.db.Query(query, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.AlertRecord
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *SQLiteAlertLog) Stats() (*models.AlertStats, error) {
	stats := &models.AlertStats{
		BySeverity: make(map[string]int),
		ByTarget:   make(map[string]int),
	}

	row := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(status = 'fired'), 0), COALESCE(SUM(status = 'resolved'), 0) FROM alerts`)
	if err := row.Scan(&stats.TotalAlerts, &stats.ActiveAlerts, &stats.ResolvedAlerts); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT severity, COUNT(*) FROM alerts GROUP BY severity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		stats.BySeverity[severity] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	targetRows, err := s.db.Query(`SELECT target_name, COUNT(*) FROM alerts GROUP BY target_name`)
	if err != nil {
		return nil, err
	}
	defer targetRows.Close()
	for targetRows.Next() {
		var name string
		var count int
		if err := targetRows.Scan(&name, &count); err != nil {
			return nil, err
		}
		stats.ByTarget[name] = count
	}
	return stats, targetRows.Err()
}

func (s *SQLiteAlertLog) Cleanup(olderThan time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM alerts WHERE status = ? AND fired_at < ?`,
		models.AlertStatusResolved, olderThan,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *SQLiteAlertLog) Close() error {
	return s.db.Close()
}

func scanAlert(rows *sql.Rows) (models.AlertRecord, error) {
	var a models.AlertRecord
	var resolvedAt sql.NullTime
	err := rows.Scan(&a.ID, &a.TargetName, &a.Group, &a.OldStatus, &a.NewStatus,
		&a.Severity, &a.Message, &a.Status, &a.FiredAt, &resolvedAt, &a.Channels)
	if err != nil {
		return a, err
	}
	if resolvedAt.Valid {
		a.ResolvedAt = &resolvedAt.Time
	}
	return a, nil
}
