package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/veillabs/veil/internal/config"
	"github.com/veillabs/veil/internal/logger"
	"github.com/veillabs/veil/internal/pii"
)

// Store persists aggregate detection events in PostgreSQL.
type Store struct {
	db     *sqlx.DB
	logger *logger.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS detection_events (
	id         BIGSERIAL PRIMARY KEY,
	source     TEXT NOT NULL,
	category   TEXT NOT NULL,
	matches    INT  NOT NULL,
	mode       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_detection_events_created_at ON detection_events (created_at);
CREATE INDEX IF NOT EXISTS idx_detection_events_category ON detection_events (category)`

// NewStore connects to the database and ensures the schema exists.
func NewStore(cfg config.AnalyticsConfig, log *logger.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &Store{
		db:     db,
		logger: log,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize analytics store: %w", err)
	}

	log.Info("Analytics store initialized",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))

	return store, nil
}

// initialize checks the connection and creates the events table.
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// RecordDetections writes one row per detected category. Only counts
// are recorded, never the matched text. A request with no matches
// writes nothing.
func (s *Store) RecordDetections(ctx context.Context, source string, mode pii.Mode, counts map[pii.Category]int) error {
	if len(counts) == 0 {
		return nil
	}

	query, args := buildInsertQuery(source, mode, counts)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		s.logger.Error("Failed to record detections",
			zap.Error(err),
			zap.String("source", source),
			zap.Int("categories", len(counts)))
		return fmt.Errorf("failed to record detections: %w", err)
	}

	s.logger.Debug("Detections recorded",
		zap.String("source", source),
		zap.Int("categories", len(counts)))

	return nil
}

// buildInsertQuery prepares a multi-row insert with numbered
// placeholders. Categories are sorted so the statement is stable.
func buildInsertQuery(source string, mode pii.Mode, counts map[pii.Category]int) (string, []interface{}) {
	categories := make([]pii.Category, 0, len(counts))
	for category := range counts {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	valueStrings := make([]string, 0, len(categories))
	valueArgs := make([]interface{}, 0, len(categories)*4)

	for i, category := range categories {
		valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d, $%d)", i*4+1, i*4+2, i*4+3, i*4+4))
		valueArgs = append(valueArgs,
			source,
			string(category),
			counts[category],
			string(mode),
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO detection_events (source, category, matches, mode)
		VALUES %s`,
		strings.Join(valueStrings, ","))

	return query, valueArgs
}

// Summary aggregates detection events recorded since the given time.
func (s *Store) Summary(ctx context.Context, since time.Time) (*Summary, error) {
	query := `
		SELECT category,
			COUNT(*) AS events,
			COALESCE(SUM(matches), 0) AS matches
		FROM detection_events
		WHERE created_at >= $1
		GROUP BY category
		ORDER BY matches DESC`

	var categories []CategoryCount
	if err := s.db.SelectContext(ctx, &categories, query, since); err != nil {
		return nil, fmt.Errorf("failed to query detection summary: %w", err)
	}

	summary := &Summary{
		Since:      since,
		Categories: categories,
	}
	for _, c := range categories {
		summary.TotalEvents += c.Events
		summary.TotalMatches += c.Matches
	}

	return summary, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskDatabaseURL masks the password in a database URL for logging.
func maskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
