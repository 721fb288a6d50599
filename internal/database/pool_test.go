package database

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func TestConfigure(t *testing.T) {
	db := openTestDB(t)

	cfg := PoolConfig{
		MaxIdleConns:    2,
		MaxOpenConns:    4,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
	}
	require.NoError(t, Configure(db, cfg, zap.NewNop()))

	stats, err := Stats(db)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.MaxOpenConnections)
}

func TestConfigure_NilDB(t *testing.T) {
	assert.Error(t, Configure(nil, DefaultPoolConfig(), nil))
}

func TestPing(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Configure(db, SQLitePoolConfig(), nil))
	assert.NoError(t, Ping(context.Background(), db))
}
