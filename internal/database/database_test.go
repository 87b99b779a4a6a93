package database

import (
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/reelkit/reelkit/internal/config"
)

func TestInitializeSQLite(t *testing.T) {
	t.Cleanup(func() { SetDB(nil) })

	cfg := &config.DatabaseConfig{
		Type:         "sqlite",
		DatabasePath: filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}
	require.NoError(t, Initialize(cfg))
	require.NotNil(t, GetDB())

	// The schema is in place after Initialize.
	assert.True(t, GetDB().Migrator().HasTable(&Project{}))
	assert.True(t, GetDB().Migrator().HasTable(&Bin{}))
	assert.True(t, GetDB().Migrator().HasTable(&Source{}))

	stats, err := GetConnectionStats()
	require.NoError(t, err)
	assert.Equal(t, 5, stats.MaxOpenConnections)
}

func TestInitializeRejectsUnknownType(t *testing.T) {
	cfg := &config.DatabaseConfig{Type: "oracle"}
	assert.Error(t, Initialize(cfg))
}

func TestGetConnectionStatsWithoutDB(t *testing.T) {
	old := GetDB()
	SetDB(nil)
	t.Cleanup(func() { SetDB(old) })

	_, err := GetConnectionStats()
	assert.Error(t, err)
}

func TestGetConnectionStatsWithMock(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 mockDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	old := GetDB()
	SetDB(db)
	t.Cleanup(func() { SetDB(old) })

	stats, err := GetConnectionStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.NoError(t, mock.ExpectationsWereMet())
}
