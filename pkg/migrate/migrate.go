package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where cmd/migrate writes and reads migrations relative to the repo root.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(fmt.Sprintf("migrate: embedded migrations: %v", err))
	}
	return sub
}

// FromDir reads migrations from dir on disk.
func FromDir(dir string) fs.FS {
	return os.DirFS(dir)
}

// Result is one applied or rolled back migration.
type Result struct {
	Version   int64
	Path      string
	Direction string
	Duration  string
}

// Runner applies the storefront migrations against a postgres connection.
type Runner struct {
	provider *goose.Provider
}

// NewRunner validates fsys and prepares a goose provider over db.
func NewRunner(db *sql.DB, fsys fs.FS) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if err := ValidateFS(fsys); err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

func (r *Runner) Up(ctx context.Context) ([]Result, error) {
	res, err := r.provider.Up(ctx)
	if err != nil {
		return toResults(res), fmt.Errorf("goose up: %w", err)
	}
	return toResults(res), nil
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) ([]Result, error) {
	res, err := r.provider.Down(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose down: %w", err)
	}
	return toResults([]*goose.MigrationResult{res}), nil
}

// Status lists every known migration with "applied" or "pending".
func (r *Runner) Status(ctx context.Context) (map[int64]string, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	out := make(map[int64]string, len(statuses))
	for _, st := range statuses {
		if st == nil || st.Source == nil {
			continue
		}
		out[st.Source.Version] = string(st.State)
	}
	return out, nil
}

// MigrateTo moves the schema up or down to target (YYYYMMDDHHMMSS).
func (r *Runner) MigrateTo(ctx context.Context, target string) ([]Result, error) {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil || len(target) != len(versionLayout) {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", target)
	}

	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}

	var res []*goose.MigrationResult
	switch {
	case current == version:
		return nil, nil
	case current < version:
		res, err = r.provider.UpTo(ctx, version)
	default:
		res, err = r.provider.DownTo(ctx, version)
	}
	if err != nil {
		return toResults(res), fmt.Errorf("goose migrate to %d: %w", version, err)
	}
	return toResults(res), nil
}

func toResults(in []*goose.MigrationResult) []Result {
	out := make([]Result, 0, len(in))
	for _, r := range in {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, Result{
			Version:   r.Source.Version,
			Path:      r.Source.Path,
			Direction: r.Direction,
			Duration:  r.Duration.String(),
		})
	}
	return out
}
