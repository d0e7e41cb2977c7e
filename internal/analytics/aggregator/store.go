// Package aggregator persists periodic snapshots of the analytics
// aggregator so traffic history survives restarts.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/database"
)

var schema = map[string]string{
	database.DriverSQLite: `CREATE TABLE IF NOT EXISTS analytics_snapshots (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	data        TEXT NOT NULL,
	captured_at INTEGER NOT NULL
)`,
	database.DriverPostgres: `CREATE TABLE IF NOT EXISTS analytics_snapshots (
	id          BIGSERIAL PRIMARY KEY,
	data        TEXT NOT NULL,
	captured_at BIGINT NOT NULL
)`,
	database.DriverMySQL: `CREATE TABLE IF NOT EXISTS analytics_snapshots (
	id          BIGINT AUTO_INCREMENT PRIMARY KEY,
	data        MEDIUMTEXT NOT NULL,
	captured_at BIGINT NOT NULL
)`,
}

// Store keeps one row per snapshot, data as JSON and captured_at as unix
// milliseconds.
type Store struct {
	db     *database.Client
	logger *slog.Logger
}

func NewStore(db *database.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

func (s *Store) Migrate(ctx context.Context) error {
	ddl, ok := schema[s.db.Driver]
	if !ok {
		return fmt.Errorf("no analytics schema for driver %q", s.db.Driver)
	}
	if _, err := s.db.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrating analytics_snapshots: %w", err)
	}
	return nil
}

func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	captured := stats.CapturedAt
	if captured.IsZero() {
		captured = time.Now()
	}
	_, err = s.db.DB.ExecContext(ctx,
		s.db.DB.Rebind(`INSERT INTO analytics_snapshots (data, captured_at) VALUES (?, ?)`),
		string(data), captured.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Debug("analytics snapshot saved", "total_searches", stats.TotalSearches)
	return nil
}

// ListSnapshots returns up to limit snapshots, newest first. Rows that no
// longer decode are skipped.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.AggregatedStats, error) {
	var rows []string
	err := s.db.DB.SelectContext(ctx, &rows,
		s.db.DB.Rebind(`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT ?`),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	snapshots := make([]analytics.AggregatedStats, 0, len(rows))
	for _, data := range rows {
		var stats analytics.AggregatedStats
		if err := json.Unmarshal([]byte(data), &stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, stats)
	}
	return snapshots, nil
}

// Run saves agg's stats every interval until ctx is cancelled, then saves
// once more.
func (s *Store) Run(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("periodic snapshot started", "interval", interval)

	for {
		select {
		case <-ticker.C:
			if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
				s.logger.Error("periodic snapshot failed", "error", err)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.SaveSnapshot(shutdownCtx, agg.Stats()); err != nil {
				s.logger.Error("final snapshot failed", "error", err)
			}
			return
		}
	}
}
