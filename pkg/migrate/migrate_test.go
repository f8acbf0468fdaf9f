package migrate

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

var (
	createTableRe = regexp.MustCompile(`^CREATE TABLE (?:IF NOT EXISTS )?([a-z_]+) \($`)
	columnRe      = regexp.MustCompile(`^([a-z_][a-z0-9_]*)\s`)
	addColumnRe   = regexp.MustCompile(`^ALTER TABLE ([a-z_]+) ADD COLUMN (?:IF NOT EXISTS )?([a-z_][a-z0-9_]*)`)
	dropColumnRe  = regexp.MustCompile(`^ALTER TABLE ([a-z_]+) DROP COLUMN (?:IF EXISTS )?([a-z_][a-z0-9_]*)`)
)

// postgresColumns replays the Up sections of the goose files in version
// order and returns the resulting column names per table.
func postgresColumns(t *testing.T, dir string) map[string][]string {
	t.Helper()
	files, err := listFiles(dir)
	require.NoError(t, err)

	tables := map[string]map[string]bool{}
	for _, f := range files {
		b, err := os.ReadFile(f.Path)
		require.NoError(t, err)
		up := string(b)
		if i := strings.Index(up, downMarker); i >= 0 {
			up = up[:i]
		}

		var current string
		for _, raw := range strings.Split(up, "\n") {
			line := strings.TrimSpace(raw)
			if current != "" {
				if strings.HasPrefix(line, ");") {
					current = ""
					continue
				}
				if m := columnRe.FindStringSubmatch(line); m != nil {
					tables[current][m[1]] = true
				}
				continue
			}
			if m := createTableRe.FindStringSubmatch(line); m != nil {
				current = m[1]
				tables[current] = map[string]bool{}
				continue
			}
			if m := addColumnRe.FindStringSubmatch(line); m != nil {
				tables[m[1]][m[2]] = true
			}
			if m := dropColumnRe.FindStringSubmatch(line); m != nil {
				delete(tables[m[1]], m[2])
			}
		}
	}

	out := make(map[string][]string, len(tables))
	for table, cols := range tables {
		out[table] = slices.Sorted(maps.Keys(cols))
	}
	return out
}

func sqliteColumns(t *testing.T) map[string][]string {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, ApplySQLite(context.Background(), conn))

	var tables []string
	require.NoError(t, conn.Raw("SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'").Scan(&tables).Error)
	out := make(map[string][]string, len(tables))
	for _, table := range tables {
		var cols []string
		require.NoError(t, conn.Raw("SELECT name FROM pragma_table_info(?)", table).Scan(&cols).Error)
		slices.Sort(cols)
		out[table] = cols
	}
	return out
}

func TestSQLiteSchemaMatchesMigrations(t *testing.T) {
	pg := postgresColumns(t, "migrations")
	lite := sqliteColumns(t)

	require.NotEmpty(t, pg)
	assert.ElementsMatch(t, slices.Collect(maps.Keys(pg)), slices.Collect(maps.Keys(lite)), "table sets differ")
	for table, cols := range pg {
		assert.Equal(t, cols, lite[table], "columns of %s differ", table)
	}
}

func TestPostgresColumnsReplaysAlters(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("20260101000000_create.sql", "-- +goose Up\nCREATE TABLE notes (\n    id uuid PRIMARY KEY,\n    body text NOT NULL,\n    CONSTRAINT notes_body_chk CHECK (\n        (body <> '')\n    )\n);\n-- +goose Down\nCREATE TABLE ignored (\n    x int\n);\n")
	write("20260101000001_alter.sql", "-- +goose Up\nALTER TABLE notes ADD COLUMN IF NOT EXISTS pinned boolean;\nALTER TABLE notes DROP COLUMN body;\n-- +goose Down\n")

	assert.Equal(t, map[string][]string{"notes": {"id", "pinned"}}, postgresColumns(t, dir))
}

func TestApplySQLiteIsRepeatable(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	require.NoError(t, ApplySQLite(context.Background(), conn))
	require.NoError(t, ApplySQLite(context.Background(), conn))

	var count int64
	require.NoError(t, conn.Raw("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'listings'").Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Seller Notes!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_seller_notes.sql"), path)
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
}

func TestCreateAtRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	path, err := createAt(dir, "add index", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260105120000_add_index.sql"), path)

	_, err = createAt(dir, "add index", now)
	assert.Error(t, err)
}

func TestValidateDirReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("001_bad.sql", "-- +goose Up\n-- +goose Down\n")
	write("20260101000000_reversed.sql", "-- +goose Down\n-- +goose Up\n")
	write("20260101000001_no_down.sql", "-- +goose Up\nSELECT 1;\n")
	write("notes.txt", "ignored")

	err := ValidateDir(dir)
	require.Error(t, err)
	for _, want := range []string{"001_bad.sql", "precedes", "missing"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	assert.Error(t, Run(context.Background(), nil, "migrations", "redo", nil))
}
