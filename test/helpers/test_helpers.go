package helpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/tewereus/prime-property/internal/repository"
	"github.com/tewereus/prime-property/pkg/pg"
	"github.com/tewereus/prime-property/pkg/redis"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&repository.PropertyEntity{},
		&repository.TransactionEntity{},
		&repository.WishlistEntity{},
	)
	require.NoError(t, err)

	return pg.NewFromGorm(db, db)
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Adapters are cached per connection name, so reuse across tests would
	// hand back a client for a closed miniredis.
	connName := fmt.Sprintf("test-%s-%d", t.Name(), time.Now().UnixNano())
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestProperty(t *testing.T, db *pg.DB, ownerID int64, state string) *repository.PropertyEntity {
	ctx := context.Background()
	property := &repository.PropertyEntity{
		OwnerID:    ownerID,
		Type:       "villa",
		Use:        "sell",
		Title:      "Test villa",
		Attributes: `{"bedrooms": 3, "garden_size": 120}`,
		PriceCents: 12_500_000_00,
		Latitude:   8.9806,
		Longitude:  38.7578,
		Images:     `[]`,
		State:      state,
	}
	err := db.Write(ctx).Create(property).Error
	require.NoError(t, err)
	return property
}

func CreateTestTransaction(t *testing.T, db *pg.DB, propertyID int64, providerRef, status string) *repository.TransactionEntity {
	ctx := context.Background()
	txn := &repository.TransactionEntity{
		PropertyID:  propertyID,
		Method:      "telebirr",
		AmountCents: 500_00,
		Currency:    "ETB",
		Status:      status,
		ProviderRef: providerRef,
	}
	err := db.Write(ctx).Create(txn).Error
	require.NoError(t, err)
	return txn
}

func CreateTestWishlistItem(t *testing.T, db *pg.DB, userID, propertyID int64) *repository.WishlistEntity {
	ctx := context.Background()
	item := &repository.WishlistEntity{
		UserID:     userID,
		PropertyID: propertyID,
	}
	err := db.Write(ctx).Create(item).Error
	require.NoError(t, err)
	return item
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
