package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opscart/k8s-replica-scaler/pkg/models"

	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var postgresFS embed.FS

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	dsn string
}

// NewPostgresStore opens a connection pool and runs migrations.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{
		db:  db,
		dsn: dsn,
	}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	schema, err := postgresFS.ReadFile("migrations/001_postgres_schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// SaveRun records one mutating reconciliation run.
func (s *PostgresStore) SaveRun(ctx context.Context, run *models.ScaleRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO scale_runs (
			id, cluster_id, namespace, direction, created_at, created_by
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.ClusterID, run.Namespace, string(run.Direction),
		run.CreatedAt, run.CreatedBy,
	)
	return err
}

// ListRuns retrieves recent runs for a namespace, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, namespace string, limit int) ([]*models.ScaleRun, error) {
	query := `
		SELECT id, cluster_id, namespace, direction, created_at, created_by
		FROM scale_runs
		WHERE namespace = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, namespace, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.ScaleRun
	for rows.Next() {
		var run models.ScaleRun
		var direction string
		var createdBy sql.NullString

		if err := rows.Scan(&run.ID, &run.ClusterID, &run.Namespace, &direction, &run.CreatedAt, &createdBy); err != nil {
			return nil, err
		}
		run.Direction = models.Direction(direction)
		run.CreatedBy = createdBy.String
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

// SaveOutcome records the result for one deployment of a run.
func (s *PostgresStore) SaveOutcome(ctx context.Context, outcome *models.ScaleOutcome) error {
	if outcome.ID == "" {
		outcome.ID = uuid.New().String()
	}
	if outcome.ExecutedAt.IsZero() {
		outcome.ExecutedAt = time.Now()
	}

	query := `
		INSERT INTO scale_outcomes (
			id, run_id, deployment, previous_replicas, target_replicas,
			outcome, reason, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		outcome.ID, outcome.RunID, outcome.Deployment,
		outcome.PreviousReplicas, outcome.TargetReplicas,
		string(outcome.Outcome), outcome.Reason, outcome.ExecutedAt,
	)
	return err
}

// GetOutcomes retrieves every per-deployment outcome of a run.
func (s *PostgresStore) GetOutcomes(ctx context.Context, runID string) ([]*models.ScaleOutcome, error) {
	query := `
		SELECT id, run_id, deployment, previous_replicas, target_replicas,
			outcome, reason, executed_at
		FROM scale_outcomes
		WHERE run_id = $1
		ORDER BY executed_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []*models.ScaleOutcome
	for rows.Next() {
		var o models.ScaleOutcome
		var outcome string
		var reason sql.NullString

		if err := rows.Scan(&o.ID, &o.RunID, &o.Deployment, &o.PreviousReplicas, &o.TargetReplicas, &outcome, &reason, &o.ExecutedAt); err != nil {
			return nil, err
		}
		o.Outcome = models.Outcome(outcome)
		o.Reason = reason.String
		outcomes = append(outcomes, &o)
	}

	return outcomes, rows.Err()
}

// Ping checks the connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
