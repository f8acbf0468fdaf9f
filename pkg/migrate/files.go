package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const versionLayout = "20060102150405"

var (
	fileNameRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	unsafeRe   = regexp.MustCompile(`[^a-z0-9_]+`)
)

const (
	upMarker   = "-- +goose Up"
	downMarker = "-- +goose Down"
)

// migrationFile is one goose SQL file on disk.
type migrationFile struct {
	Version string
	Slug    string
	Path    string
}

func parseFileName(dir, name string) (migrationFile, bool) {
	m := fileNameRe.FindStringSubmatch(name)
	if m == nil {
		return migrationFile{}, false
	}
	return migrationFile{Version: m[1], Slug: m[2], Path: filepath.Join(dir, name)}, true
}

// ValidateDir checks every .sql file in dir: timestamped names, unique
// versions, and an Up section ahead of a Down section. All problems are
// reported together.
func ValidateDir(dir string) error {
	files, errs := listFiles(dir)
	seen := map[string]string{}
	for _, f := range files {
		if prev, ok := seen[f.Version]; ok {
			errs = multierr.Append(errs, fmt.Errorf("version %s used by %s and %s", f.Version, filepath.Base(prev), filepath.Base(f.Path)))
			continue
		}
		seen[f.Version] = f.Path
		errs = multierr.Append(errs, checkSections(f.Path))
	}
	return errs
}

func listFiles(dir string) ([]migrationFile, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	var (
		files []migrationFile
		errs  error
	)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		f, ok := parseFileName(dir, e.Name())
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", e.Name()))
			continue
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, errs
}

func checkSections(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %q: %w", path, err)
	}
	txt := string(b)
	up := strings.Index(txt, upMarker)
	down := strings.Index(txt, downMarker)
	switch {
	case up < 0:
		return fmt.Errorf("%s: missing %q", filepath.Base(path), upMarker)
	case down < 0:
		return fmt.Errorf("%s: missing %q", filepath.Base(path), downMarker)
	case down < up:
		return fmt.Errorf("%s: down section precedes up section", filepath.Base(path))
	}
	return nil
}

// CreateSQLMigration writes an empty goose migration named
// <dir>/<YYYYMMDDHHMMSS>_<slug>.sql and returns its path.
func CreateSQLMigration(dir, name string) (string, error) {
	return createAt(dir, name, time.Now().UTC())
}

func createAt(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := slugify(name)
	if slug == "" {
		return "", fmt.Errorf("name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", now.Format(versionLayout), slug))
	body := fmt.Sprintf("%s\n-- +goose StatementBegin\n-- %s\n-- +goose StatementEnd\n\n%s\n-- +goose StatementBegin\n-- revert %s\n-- +goose StatementEnd\n",
		upMarker, slug, downMarker, slug)

	// O_EXCL so two creates in the same second never clobber each other
	fh, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", path, err)
	}
	if _, err := fh.WriteString(body); err != nil {
		return "", multierr.Append(fmt.Errorf("write migration %q: %w", path, err), fh.Close())
	}
	return path, fh.Close()
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = unsafeRe.ReplaceAllString(slug, "_")
	return strings.Trim(slug, "_")
}
