// Package dbtest opens migrated in-memory databases for package tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/gachapon/internal/platform/db"
	cfgpkg "github.com/fatflowers/gachapon/pkg/config"
)

var seq atomic.Int64

// Open returns a fresh, migrated SQLite database private to the calling test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	l := zap.NewNop().Sugar()
	gdb, err := db.Open(l, cfgpkg.DBDriverSQLite, dsn, false)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(l, gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}
