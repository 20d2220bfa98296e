package usage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists usage samples to a local SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
}

var _ Recorder = (*SQLiteRecorder)(nil)

// NewSQLiteRecorder opens or creates a database at the given path.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRecorder{db: db}, nil
}

func (r *SQLiteRecorder) Record(ctx context.Context, s *Sample) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO usage_samples (id, provider, agent, model, input_tokens, output_tokens, cost_usd, success, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ProviderID, s.AgentID, s.ModelID,
		s.InputTokens, s.OutputTokens, s.CostUSD, s.Success, s.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert usage sample: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) Samples(ctx context.Context, f Filter) ([]Sample, error) {
	query := "SELECT id, provider, agent, model, input_tokens, output_tokens, cost_usd, success, timestamp FROM usage_samples"
	where, args := buildWhereClause(f)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY timestamp DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.ID, &s.ProviderID, &s.AgentID, &s.ModelID,
			&s.InputTokens, &s.OutputTokens, &s.CostUSD, &s.Success, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

func (r *SQLiteRecorder) Totals(ctx context.Context, f Filter) (Totals, error) {
	query := `SELECT
		COUNT(*),
		COALESCE(SUM(input_tokens), 0),
		COALESCE(SUM(output_tokens), 0),
		COALESCE(SUM(cost_usd), 0)
	FROM usage_samples`
	where, args := buildWhereClause(f)
	if where != "" {
		query += " WHERE " + where
	}

	var totals Totals
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&totals.Count,
		&totals.InputTokens,
		&totals.OutputTokens,
		&totals.CostUSD,
	)
	if err != nil {
		return Totals{}, fmt.Errorf("aggregate usage: %w", err)
	}

	totals.ByProvider, err = r.costByField(ctx, "provider", where, args)
	if err != nil {
		return Totals{}, err
	}
	totals.ByModel, err = r.costByField(ctx, "model", where, args)
	if err != nil {
		return Totals{}, err
	}
	delete(totals.ByModel, "")

	return totals, nil
}

func (r *SQLiteRecorder) costByField(ctx context.Context, field, where string, args []any) (map[string]float64, error) {
	query := fmt.Sprintf("SELECT %s, COALESCE(SUM(cost_usd), 0) FROM usage_samples", field)
	if where != "" {
		query += " WHERE " + where
	}
	query += fmt.Sprintf(" GROUP BY %s", field)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate by %s: %w", field, err)
	}
	defer rows.Close()

	result := make(map[string]float64)
	for rows.Next() {
		var name string
		var total float64
		if err := rows.Scan(&name, &total); err != nil {
			return nil, fmt.Errorf("scan %s aggregate: %w", field, err)
		}
		result[name] = total
	}
	return result, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

// buildWhereClause constructs a SQL WHERE clause from a Filter.
func buildWhereClause(f Filter) (string, []any) {
	var conditions []string
	var args []any

	if f.ProviderID != "" {
		conditions = append(conditions, "provider = ?")
		args = append(args, f.ProviderID)
	}
	if f.AgentID != "" {
		conditions = append(conditions, "agent = ?")
		args = append(args, f.AgentID)
	}
	if f.ModelID != "" {
		conditions = append(conditions, "model = ?")
		args = append(args, f.ModelID)
	}
	if !f.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, f.Since)
	}
	if !f.Until.IsZero() {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, f.Until)
	}

	return strings.Join(conditions, " AND "), args
}
