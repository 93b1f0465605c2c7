package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tewereus/prime-property/pkg/pg"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *pg.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// In-memory sqlite is per-connection; keep the pool at one so every
	// query sees the same database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&PropertyEntity{}, &TransactionEntity{}, &WishlistEntity{})
	require.NoError(t, err)

	return pg.NewFromGorm(db, db)
}
