package collector

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/model"
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createClickHouseAlertsTable = `
CREATE TABLE IF NOT EXISTS alerts (
    Id             UInt64,
    Ts             String,
    Src            String,
    Dst            String,
    Sport          Int64,
    Dport          Int64,
    Proto          Int64,
    PredictedClass String,
    PacketCount    Int64,
    TotalBytes     Int64,
    AttackScore    Nullable(Float64)
) ENGINE = MergeTree()
ORDER BY Id;
`

// ClickHouseStore keeps alerts in a ClickHouse MergeTree table. Row ids are
// assigned by the collector, which is the table's single writer.
type ClickHouseStore struct {
	conn   driver.Conn
	lastID atomic.Uint64
}

// NewClickHouseStore connects, ensures the table exists and resumes the id
// sequence from the highest stored id.
func NewClickHouseStore(cfg config.ClickHouseConfig) (*ClickHouseStore, error) {
	conn, err := connectClickHouse(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := conn.Exec(context.Background(), createClickHouseAlertsTable); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	var maxID uint64
	if err := conn.QueryRow(context.Background(), "SELECT max(Id) FROM alerts").Scan(&maxID); err != nil {
		return nil, fmt.Errorf("failed to read last alert id: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")

	s := &ClickHouseStore{conn: conn}
	s.lastID.Store(maxID)
	return s, nil
}

func connectClickHouse(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Insert writes one alert as a single-row batch.
func (s *ClickHouseStore) Insert(ctx context.Context, a model.Alert) (int64, error) {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO alerts")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}
	id := s.lastID.Add(1)
	if err := batch.Append(id, a.Ts, a.Src, a.Dst, a.Sport, a.Dport, a.Proto,
		a.PredictedClass, a.PacketCount, a.TotalBytes, a.AttackScore); err != nil {
		return 0, fmt.Errorf("failed to append alert to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}
	return int64(id), nil
}

// Recent returns up to limit alerts, newest first.
func (s *ClickHouseStore) Recent(ctx context.Context, limit int) ([]model.StoredAlert, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT Id, Ts, Src, Dst, Sport, Dport, Proto, PredictedClass, PacketCount, TotalBytes, AttackScore
		FROM alerts
		ORDER BY Id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	alerts := make([]model.StoredAlert, 0, limit)
	for rows.Next() {
		var (
			sa model.StoredAlert
			id uint64
		)
		if err := rows.Scan(&id, &sa.Ts, &sa.Src, &sa.Dst, &sa.Sport, &sa.Dport, &sa.Proto,
			&sa.PredictedClass, &sa.PacketCount, &sa.TotalBytes, &sa.AttackScore); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		sa.ID = int64(id)
		alerts = append(alerts, sa)
	}
	return alerts, rows.Err()
}

func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}

// NewStore opens the alert store selected in the collector configuration.
func NewStore(cfg config.CollectorConfig) (model.AlertStore, error) {
	switch cfg.Store {
	case "sqlite":
		s, err := NewSQLiteStore(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "clickhouse":
		s, err := NewClickHouseStore(cfg.ClickHouse)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown collector store: '%s'", cfg.Store)
	}
}
