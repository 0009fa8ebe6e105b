package meals

import (
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

func mustUserID(t *testing.T, value string) UserID {
	t.Helper()
	id, err := NewUserID(value)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	return id
}

func int64Ptr(value int64) *int64 {
	return &value
}

func newTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:mealtrail_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Place{}, &MealItem{}, &Entry{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestStore(t *testing.T, ids []string, clock func() time.Time) (*Store, *gorm.DB) {
	t.Helper()

	db := newTestDatabase(t)
	store, err := NewStore(StoreConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &staticIDGenerator{ids: ids},
	})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	return store, db
}

func newTestService(t *testing.T, ids []string, clock func() time.Time) (*Service, *gorm.DB) {
	t.Helper()

	store, db := newTestStore(t, ids, clock)
	service, err := NewService(ServiceConfig{
		Store:    store,
		Clock:    clock,
		Location: time.UTC,
	})
	if err != nil {
		t.Fatalf("failed to construct meals service: %v", err)
	}
	return service, db
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
