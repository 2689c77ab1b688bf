package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/coursora/coursora-go-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Event{}, &models.User{}, &models.Course{}, &models.Category{}))
	return db
}

func TestEventRepositoryListRecentNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEventRepository(db)

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		event := models.Event{
			UserID:    fmt.Sprintf("u%d", i),
			Type:      models.EventPageView,
			Metadata:  datatypes.JSONMap{},
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&event).Error)
	}

	events, err := repo.ListRecent(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "u4", events[0].UserID, "expected newest event first")
	require.Equal(t, "u2", events[2].UserID)
}

func TestEventRepositoryListByTypeSinceFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEventRepository(db)

	now := time.Now().UTC()
	inside := models.Event{UserID: "u1", Type: models.EventViewCourse, CreatedAt: now.Add(-30 * time.Minute)}
	outside := models.Event{UserID: "u1", Type: models.EventViewCourse, CreatedAt: now.Add(-2 * time.Hour)}
	otherType := models.Event{UserID: "u1", Type: models.EventSearch, CreatedAt: now.Add(-10 * time.Minute)}
	require.NoError(t, db.Create(&inside).Error)
	require.NoError(t, db.Create(&outside).Error)
	require.NoError(t, db.Create(&otherType).Error)

	events, err := repo.ListByTypeSince(context.Background(), models.EventViewCourse, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, inside.ID, events[0].ID)
}

func TestEventRepositoryToleratesEmptyLog(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEventRepository(db)

	events, err := repo.ListRecent(context.Background(), 50)
	require.NoError(t, err)
	require.Empty(t, events)

	events, err = repo.ListByTypeSince(context.Background(), models.EventUserOnline, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestUserRepositorySnapshotWrites(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)

	user := models.User{ID: "u1", Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, db.Create(&user).Error)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.SetOnline(context.Background(), "u1", now))

	var loaded models.User
	require.NoError(t, db.First(&loaded, "id = ?", "u1").Error)
	require.True(t, loaded.IsOnline)
	require.NotNil(t, loaded.LastActiveAt)

	require.NoError(t, repo.SetOffline(context.Background(), "u1"))
	require.NoError(t, db.First(&loaded, "id = ?", "u1").Error)
	require.False(t, loaded.IsOnline)
}

func TestCourseRepositoryCategoryMapping(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCourseRepository(db)

	require.NoError(t, db.Create(&models.Category{ID: "c1", Name: "Programming"}).Error)
	require.NoError(t, db.Create(&models.Category{ID: "c2", Name: "Design"}).Error)
	require.NoError(t, db.Create(&models.Course{ID: "go-101", Title: "Go Basics", CategoryID: "c1"}).Error)
	require.NoError(t, db.Create(&models.Course{ID: "ui-201", Title: "UI Patterns", CategoryID: "c2"}).Error)

	mapping, err := repo.CategoryNamesByCourse(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]string{"go-101": "Programming", "ui-201": "Design"}, mapping)
}
