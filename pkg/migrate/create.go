package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9]+`)

const sqlTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

// MigrationFilename returns <YYYYMMDDHHMMSS>_<name>.sql for the given time,
// with name lowercased and reduced to [a-z0-9_].
func MigrationFilename(now time.Time, name string) (string, error) {
	safe := strings.Trim(nameSanitizeRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	filename := fmt.Sprintf("%s_%s.sql", now.UTC().Format(versionLayout), safe)
	if !sqlFileRe.MatchString(filename) {
		return "", fmt.Errorf("generated filename %q does not match the migration pattern", filename)
	}
	return filename, nil
}

// CreateSQLMigration writes an empty goose SQL migration into dir and returns its path.
func CreateSQLMigration(dir string, name string) (string, error) {
	if dir == "" {
		return "", errors.New("dir is required")
	}
	filename, err := MigrationFilename(time.Now(), name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	fullpath := filepath.Join(dir, filename)
	f, err := os.OpenFile(fullpath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("migration already exists: %s", fullpath)
		}
		return "", fmt.Errorf("create migration %q: %w", fullpath, err)
	}
	defer f.Close()

	stem := strings.TrimSuffix(filename[len(versionLayout)+1:], ".sql")
	if _, err := fmt.Fprintf(f, sqlTemplate, stem); err != nil {
		return "", fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return fullpath, nil
}
