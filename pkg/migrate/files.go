package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var (
	fileNameRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	slugRe     = regexp.MustCompile(`[^a-z0-9]+`)
)

const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- undo %[1]s
-- +goose StatementEnd
`

// Validate checks every .sql file in fsys: a 14 digit version prefix, no
// repeated versions, and both goose direction markers.
func Validate(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return err
	}
	versions := make(map[string]string, len(names))
	var problems []error
	for _, name := range names {
		m := fileNameRe.FindStringSubmatch(name)
		if m == nil {
			problems = append(problems, fmt.Errorf("%s: name must look like YYYYMMDDHHMMSS_snake_case.sql", name))
			continue
		}
		if other, dup := versions[m[1]]; dup {
			problems = append(problems, fmt.Errorf("%s: version %s already used by %s", name, m[1], other))
			continue
		}
		versions[m[1]] = name

		body, err := fs.ReadFile(fsys, path.Clean(name))
		if err != nil {
			return err
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(body), marker) {
				problems = append(problems, fmt.Errorf("%s: missing %q", name, marker))
			}
		}
	}
	return errors.Join(problems...)
}

// Create writes an empty migration named after title into dir and returns its path.
func Create(dir, title string, now time.Time) (string, error) {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(title), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migrate: %q has no usable characters", title)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	file := filepath.Join(dir, now.UTC().Format(versionLayout)+"_"+slug+".sql")
	f, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := fmt.Fprintf(f, migrationTemplate, slug); err != nil {
		_ = f.Close()
		return "", err
	}
	return file, f.Close()
}
