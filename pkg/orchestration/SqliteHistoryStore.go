package orchestration

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/sqlite"
	"github.com/rfberaldo/sqlz"
	"github.com/rfberaldo/sqlz/binds"
)

var (
	//go:embed sql-migrations
	sqlMigrationsFs embed.FS

	registerBinds sync.Once
)

type SqliteHistoryStoreConfig struct {
	DB *sqlz.DB
}

type SqliteHistoryStore struct {
	db *sqlz.DB
}

/*
OpenSqlite connects to the SQLite database at dsn and applies the
orchestration migrations.
*/
func OpenSqlite(dsn string) (*sqlz.DB, error) {
	var (
		err error
		db  *sqlz.DB
	)

	registerBinds.Do(func() {
		binds.Register("sqlite", binds.BindByDriver("sqlite3"))
	})

	if db, err = sqlz.Connect("sqlite", dsn); err != nil {
		return nil, fmt.Errorf("error connecting to history database: %w", err)
	}

	if err = Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate runs every embedded "commit" script in name order.
func Migrate(db *sqlz.DB) error {
	var (
		err  error
		dirs []fs.DirEntry
		b    []byte
	)

	if dirs, err = sqlMigrationsFs.ReadDir("sql-migrations"); err != nil {
		return fmt.Errorf("error reading migrations: %w", err)
	}

	for _, d := range dirs {
		if d.IsDir() || !strings.HasPrefix(d.Name(), "commit") {
			continue
		}

		if b, err = fs.ReadFile(sqlMigrationsFs, filepath.Join("sql-migrations", d.Name())); err != nil {
			return fmt.Errorf("error reading migration %s: %w", d.Name(), err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
		_, err = db.Exec(ctx, string(b))
		cancel()

		if err != nil && !isIgnorableError(err) {
			return fmt.Errorf("error running migration %s: %w", d.Name(), err)
		}
	}

	return nil
}

func isIgnorableError(err error) bool {
	return strings.Contains(err.Error(), "duplicate column")
}

func NewSqliteHistoryStore(config SqliteHistoryStoreConfig) SqliteHistoryStore {
	return SqliteHistoryStore{
		db: config.DB,
	}
}

func (s SqliteHistoryStore) CreateInstance(ctx context.Context, instance Instance) error {
	sql := `
INSERT INTO orchestration_instances (
   id
   , name
   , status
   , phase
   , output
   , error_message
   , created_at
   , updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

	params := []any{
		instance.ID,
		instance.Name,
		string(instance.Status),
		string(instance.Phase),
		instance.Output,
		instance.Error,
		instance.CreatedAt.UTC(),
		instance.UpdatedAt.UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	if _, err := s.db.Exec(ctx, sql, params...); err != nil {
		return fmt.Errorf("error inserting orchestration instance %s: %w", instance.ID, err)
	}

	return nil
}

func (s SqliteHistoryStore) GetInstance(ctx context.Context, instanceID string) (Instance, error) {
	var (
		err error
	)

	result := Instance{}

	sql := `
SELECT
   i.id
   , i.name
   , i.status
   , i.phase
   , COALESCE(i.output, '') AS output
   , COALESCE(i.error_message, '') AS error_message
   , i.created_at
   , i.updated_at
FROM orchestration_instances AS i
WHERE 1=1
   AND i.id=?
`

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	if err = s.db.QueryRow(ctx, &result, sql, instanceID); err != nil {
		if sqlz.IsNotFound(err) {
			return result, ErrInstanceNotFound
		}

		return result, fmt.Errorf("error querying for orchestration instance %s: %w", instanceID, err)
	}

	return result, nil
}

func (s SqliteHistoryStore) UpdateInstance(ctx context.Context, instance Instance) error {
	var (
		err      error
		affected int64
	)

	sql := `
UPDATE orchestration_instances SET
   status=?
   , phase=?
   , output=?
   , error_message=?
   , updated_at=?
WHERE 1=1
   AND id=?
`

	params := []any{
		string(instance.Status),
		string(instance.Phase),
		instance.Output,
		instance.Error,
		instance.UpdatedAt.UTC(),
		instance.ID,
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	result, err := s.db.Exec(ctx, sql, params...)
	if err != nil {
		return fmt.Errorf("error updating orchestration instance %s: %w", instance.ID, err)
	}

	if affected, err = result.RowsAffected(); err == nil && affected == 0 {
		return ErrInstanceNotFound
	}

	return nil
}

func (s SqliteHistoryStore) ListInstances(ctx context.Context, filter ListInstancesFilter) ([]Instance, error) {
	var (
		err error
	)

	result := []Instance{}
	params := []any{}

	sql := `
SELECT
   i.id
   , i.name
   , i.status
   , i.phase
   , COALESCE(i.output, '') AS output
   , COALESCE(i.error_message, '') AS error_message
   , i.created_at
   , i.updated_at
FROM orchestration_instances AS i
WHERE 1=1
`

	if filter.Name != "" {
		sql += "   AND i.name=?\n"
		params = append(params, filter.Name)
	}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))

		for index, status := range filter.Statuses {
			placeholders[index] = "?"
			params = append(params, string(status))
		}

		sql += "   AND i.status IN (" + strings.Join(placeholders, ", ") + ")\n"
	}

	sql += "ORDER BY i.created_at DESC\n"

	if filter.Limit > 0 {
		sql += "LIMIT ?\n"
		params = append(params, filter.Limit)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	if err = s.db.Query(ctx, &result, sql, params...); err != nil && !sqlz.IsNotFound(err) {
		return result, fmt.Errorf("error querying for orchestration instances: %w", err)
	}

	return result, nil
}

func (s SqliteHistoryStore) GetSteps(ctx context.Context, instanceID string) ([]Step, error) {
	var (
		err error
	)

	result := []Step{}

	sql := `
SELECT
   s.instance_id
   , s.step_key
   , s.activity
   , COALESCE(s.input, '') AS input
   , COALESCE(s.output, '') AS output
   , s.completed_at
FROM orchestration_steps AS s
WHERE 1=1
   AND s.instance_id=?
ORDER BY s.step_key
`

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	if err = s.db.Query(ctx, &result, sql, instanceID); err != nil && !sqlz.IsNotFound(err) {
		return result, fmt.Errorf("error querying for steps of instance %s: %w", instanceID, err)
	}

	return result, nil
}

func (s SqliteHistoryStore) RecordStep(ctx context.Context, step Step) error {
	sql := `
INSERT INTO orchestration_steps (
   instance_id
   , step_key
   , activity
   , input
   , output
   , completed_at
) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (instance_id, step_key) DO NOTHING
`

	params := []any{
		step.InstanceID,
		step.StepKey,
		step.Activity,
		step.Input,
		step.Output,
		step.CompletedAt.UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	if _, err := s.db.Exec(ctx, sql, params...); err != nil {
		return fmt.Errorf("error recording step %s of instance %s: %w", step.StepKey, step.InstanceID, err)
	}

	return nil
}
