package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectPostgres opens a pgx pool and makes sure the history tables exist.
func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("error parsing postgres dsn: %w", err)
	}

	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error connecting to postgres: %w", err)
	}

	if err = ensurePostgresSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

func ensurePostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS orchestration_instances (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	phase TEXT NOT NULL,
	output TEXT,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orchestration_instances_status ON orchestration_instances(status);
CREATE TABLE IF NOT EXISTS orchestration_steps (
	instance_id TEXT NOT NULL,
	step_key TEXT NOT NULL,
	activity TEXT NOT NULL,
	input TEXT,
	output TEXT,
	completed_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (instance_id, step_key)
);`

	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("error ensuring history schema: %w", err)
	}

	return nil
}

type PostgresHistoryStoreConfig struct {
	Pool *pgxpool.Pool
}

type PostgresHistoryStore struct {
	pool *pgxpool.Pool
}

func NewPostgresHistoryStore(config PostgresHistoryStoreConfig) PostgresHistoryStore {
	return PostgresHistoryStore{
		pool: config.Pool,
	}
}

const postgresInstanceColumns = `id, name, status, phase, COALESCE(output, ''), COALESCE(error_message, ''), created_at, updated_at`

func (s PostgresHistoryStore) CreateInstance(ctx context.Context, instance Instance) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO orchestration_instances (id, name, status, phase, output, error_message, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		instance.ID, instance.Name, string(instance.Status), string(instance.Phase),
		instance.Output, instance.Error, instance.CreatedAt.UTC(), instance.UpdatedAt.UTC(),
	)

	if err != nil {
		return fmt.Errorf("error inserting orchestration instance %s: %w", instance.ID, err)
	}

	return nil
}

func (s PostgresHistoryStore) GetInstance(ctx context.Context, instanceID string) (Instance, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+postgresInstanceColumns+` FROM orchestration_instances WHERE id=$1`, instanceID)

	instance, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Instance{}, ErrInstanceNotFound
		}

		return Instance{}, fmt.Errorf("error querying for orchestration instance %s: %w", instanceID, err)
	}

	return instance, nil
}

func (s PostgresHistoryStore) UpdateInstance(ctx context.Context, instance Instance) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE orchestration_instances
SET status=$1, phase=$2, output=$3, error_message=$4, updated_at=$5
WHERE id=$6`,
		string(instance.Status), string(instance.Phase), instance.Output, instance.Error,
		instance.UpdatedAt.UTC(), instance.ID,
	)

	if err != nil {
		return fmt.Errorf("error updating orchestration instance %s: %w", instance.ID, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrInstanceNotFound
	}

	return nil
}

func (s PostgresHistoryStore) ListInstances(ctx context.Context, filter ListInstancesFilter) ([]Instance, error) {
	query, params := postgresListInstancesQuery(filter)

	rows, err := s.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("error querying for orchestration instances: %w", err)
	}

	defer rows.Close()

	result := []Instance{}

	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning orchestration instance: %w", err)
		}

		result = append(result, instance)
	}

	return result, rows.Err()
}

func (s PostgresHistoryStore) GetSteps(ctx context.Context, instanceID string) ([]Step, error) {
	rows, err := s.pool.Query(ctx, `
SELECT instance_id, step_key, activity, COALESCE(input, ''), COALESCE(output, ''), completed_at
FROM orchestration_steps
WHERE instance_id=$1
ORDER BY step_key`, instanceID)

	if err != nil {
		return nil, fmt.Errorf("error querying for steps of instance %s: %w", instanceID, err)
	}

	defer rows.Close()

	result := []Step{}

	for rows.Next() {
		step := Step{}

		if err = rows.Scan(&step.InstanceID, &step.StepKey, &step.Activity, &step.Input, &step.Output, &step.CompletedAt); err != nil {
			return nil, fmt.Errorf("error scanning step of instance %s: %w", instanceID, err)
		}

		result = append(result, step)
	}

	return result, rows.Err()
}

func (s PostgresHistoryStore) RecordStep(ctx context.Context, step Step) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO orchestration_steps (instance_id, step_key, activity, input, output, completed_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (instance_id, step_key) DO NOTHING`,
		step.InstanceID, step.StepKey, step.Activity, step.Input, step.Output, step.CompletedAt.UTC(),
	)

	if err != nil {
		return fmt.Errorf("error recording step %s of instance %s: %w", step.StepKey, step.InstanceID, err)
	}

	return nil
}

func scanInstance(row pgx.Row) (Instance, error) {
	var (
		status string
		phase  string
	)

	instance := Instance{}

	err := row.Scan(
		&instance.ID,
		&instance.Name,
		&status,
		&phase,
		&instance.Output,
		&instance.Error,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)

	instance.Status = Status(status)
	instance.Phase = Phase(phase)

	return instance, err
}

func postgresListInstancesQuery(filter ListInstancesFilter) (string, []any) {
	query := `SELECT ` + postgresInstanceColumns + ` FROM orchestration_instances WHERE 1=1`
	params := []any{}

	if filter.Name != "" {
		params = append(params, filter.Name)
		query += fmt.Sprintf(" AND name=$%d", len(params))
	}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))

		for index, status := range filter.Statuses {
			params = append(params, string(status))
			placeholders[index] = fmt.Sprintf("$%d", len(params))
		}

		query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		params = append(params, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(params))
	}

	return query, params
}
