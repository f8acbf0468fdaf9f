// Package dbtest opens isolated in-memory sqlite databases carrying the
// application schema for repository and service tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/pkg/db"
	"github.com/angelmondragon/marketwatch-backend/pkg/migrate"
)

// Open returns a db.Client backed by a fresh in-memory database with every
// table created. The database lives until the test finishes.
func Open(tb testing.TB) *db.Client {
	tb.Helper()
	return db.NewFromConn(OpenGorm(tb))
}

// OpenGorm is Open without the client wrapper.
func OpenGorm(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		tb.Fatalf("sql handle: %v", err)
	}
	// one connection keeps the memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.ApplySQLite(context.Background(), conn); err != nil {
		tb.Fatalf("%v", err)
	}
	return conn
}
