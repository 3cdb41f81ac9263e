// Package dbtest opens throwaway sqlite databases carrying the marketplace schema.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/etherloops/ether-backend/pkg/db"
	"github.com/etherloops/ether-backend/pkg/migrate"
)

// Open returns a fresh in-memory database with the schema applied.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migrate.ApplySQLite(context.Background(), conn); err != nil {
		t.Fatalf("%v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

// OpenClient wraps Open in a db.Client.
func OpenClient(t testing.TB) *dbpkg.Client {
	t.Helper()
	return dbpkg.NewFromConn(Open(t))
}
