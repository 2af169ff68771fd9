package logging

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/incidentdesk/incident-board/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.SystemLog{}))
	return db
}

func TestDBHandler_OnlyErrorAndAbove(t *testing.T) {
	h := NewDBHandler(newTestDB(t))
	defer h.Stop()

	ctx := context.Background()
	assert.False(t, h.Enabled(ctx, slog.LevelDebug))
	assert.False(t, h.Enabled(ctx, slog.LevelInfo))
	assert.False(t, h.Enabled(ctx, slog.LevelWarn))
	assert.True(t, h.Enabled(ctx, slog.LevelError))
}

func TestDBHandler_HandleAfterStopWritesThrough(t *testing.T) {
	db := newTestDB(t)
	h := NewDBHandler(db)
	h.Stop()

	rec := slog.NewRecord(time.Now(), slog.LevelError, "late arrival", 0)
	require.NoError(t, h.Handle(context.Background(), rec))

	var entries []models.SystemLog
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, "late arrival", entries[0].Message)
}

func TestDBHandler_WithAttrsReachesRow(t *testing.T) {
	db := newTestDB(t)
	h := NewDBHandler(db)

	derived := h.WithAttrs([]slog.Attr{
		slog.String("trace_id", "req-777"),
		slog.String("component", "store"),
	})

	rec := slog.NewRecord(time.Now(), slog.LevelError, "guard failed", 0)
	rec.AddAttrs(slog.String("error", "conflict"))
	require.NoError(t, derived.Handle(context.Background(), rec))
	h.Stop()

	var entries []models.SystemLog
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "req-777", entry.TraceID)
	assert.Equal(t, "conflict", entry.Error)
	assert.Contains(t, string(entry.Extra), "component")
}

func TestDBHandler_PersistsRecordOnStop(t *testing.T) {
	db := newTestDB(t)
	h := NewDBHandler(db)

	rec := slog.NewRecord(time.Now(), slog.LevelError, "report store failure", 0)
	rec.AddAttrs(
		slog.String("trace_id", "req-123"),
		slog.String("action", "close_report"),
		slog.String("error", "driver: bad connection"),
		slog.Int("attempt", 2),
	)
	require.NoError(t, h.Handle(context.Background(), rec))

	// Stop flushes synchronously.
	h.Stop()

	var entries []models.SystemLog
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "report store failure", entry.Message)
	assert.Equal(t, "req-123", entry.TraceID)
	assert.Equal(t, "close_report", entry.Action)
	assert.Equal(t, "driver: bad connection", entry.Error)
	assert.Contains(t, string(entry.Extra), "attempt")
}
