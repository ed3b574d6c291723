package collector

import (
	"NetSentinel/internal/model"
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

const createAlertsTable = `
CREATE TABLE IF NOT EXISTS alerts (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    ts              TEXT,
    src             TEXT,
    dst             TEXT,
    sport           INTEGER,
    dport           INTEGER,
    proto           INTEGER,
    predicted_class TEXT,
    packet_count    INTEGER,
    total_bytes     INTEGER,
    attack_score    REAL
);
`

const insertAlert = `
INSERT INTO alerts (ts, src, dst, sport, dport, proto,
                    predicted_class, packet_count, total_bytes, attack_score)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectRecent = `
SELECT id, ts, src, dst, sport, dport, proto,
       predicted_class, packet_count, total_bytes, attack_score
FROM alerts
ORDER BY id DESC
LIMIT ?
`

// SQLiteStore keeps alerts in an append-only SQLite table. The database runs
// in WAL mode so list requests do not block ingestion.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if _, err := db.Exec(createAlertsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Printf("Using SQLite alert store at %s", path)
	return &SQLiteStore{db: db}, nil
}

// Insert appends one alert and returns its row id.
func (s *SQLiteStore) Insert(ctx context.Context, a model.Alert) (int64, error) {
	var score sql.NullFloat64
	if a.AttackScore != nil {
		score = sql.NullFloat64{Float64: *a.AttackScore, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, insertAlert,
		a.Ts, a.Src, a.Dst, a.Sport, a.Dport, a.Proto,
		a.PredictedClass, a.PacketCount, a.TotalBytes, score)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit alerts, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]model.StoredAlert, error) {
	rows, err := s.db.QueryContext(ctx, selectRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]model.StoredAlert, 0, limit)
	for rows.Next() {
		var (
			sa    model.StoredAlert
			score sql.NullFloat64
		)
		if err := rows.Scan(&sa.ID, &sa.Ts, &sa.Src, &sa.Dst, &sa.Sport, &sa.Dport, &sa.Proto,
			&sa.PredictedClass, &sa.PacketCount, &sa.TotalBytes, &score); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		if score.Valid {
			f := score.Float64
			sa.AttackScore = &f
		}
		alerts = append(alerts, sa)
	}
	return alerts, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
