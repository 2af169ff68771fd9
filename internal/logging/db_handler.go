package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/incidentdesk/incident-board/internal/models"
)

const (
	batchSize     = 50
	flushInterval = 5 * time.Second
)

// DBHandler is an slog.Handler that batches ERROR+ records into the
// system_logs table. Writes happen off the request path on a flush ticker.
// Handlers derived via WithAttrs share one sink.
type DBHandler struct {
	sink  *logSink
	attrs []slog.Attr
}

// logSink holds the buffer and flush machinery shared by every derived
// handler.
type logSink struct {
	db      *gorm.DB
	mu      sync.Mutex
	buffer  []models.SystemLog
	ticker  *time.Ticker
	done    chan struct{}
	stopped chan struct{}
	closed  bool
}

func NewDBHandler(db *gorm.DB) *DBHandler {
	s := &logSink{
		db:      db,
		buffer:  make([]models.SystemLog, 0, batchSize),
		ticker:  time.NewTicker(flushInterval),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.flushLoop()
	return &DBHandler{sink: s}
}

// Stop flushes the remaining buffer and blocks until the flush loop exits.
// Records handled afterwards are written synchronously instead of dropped.
func (h *DBHandler) Stop() {
	s := h.sink
	s.ticker.Stop()
	close(s.done)
	<-s.stopped

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.flush()
}

// Enabled only handles ERROR and above.
func (h *DBHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *DBHandler) Handle(_ context.Context, record slog.Record) error {
	entry := models.SystemLog{
		ID:        uuid.New(),
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	extra := make(map[string]interface{})
	for _, a := range h.attrs {
		applyAttr(&entry, extra, a)
	}
	record.Attrs(func(a slog.Attr) bool {
		applyAttr(&entry, extra, a)
		return true
	})

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}

	return h.sink.add(entry)
}

// WithAttrs captures the attrs so slog.With(...) context reaches the
// persisted row. The flush machinery stays shared.
func (h *DBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &DBHandler{sink: h.sink, attrs: merged}
}

// WithGroup is a no-op: system_logs is a flat table and grouped attrs would
// only obscure the indexed columns.
func (h *DBHandler) WithGroup(name string) slog.Handler {
	return h
}

func applyAttr(entry *models.SystemLog, extra map[string]interface{}, a slog.Attr) {
	switch a.Key {
	case "trace_id":
		entry.TraceID = a.Value.String()
	case "action":
		entry.Action = a.Value.String()
	case "error":
		entry.Error = a.Value.String()
	default:
		extra[a.Key] = a.Value.Any()
	}
}

func (s *logSink) add(entry models.SystemLog) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		// The flush loop is gone; write straight through.
		return s.db.Create(&entry).Error
	}
	s.buffer = append(s.buffer, entry)
	needFlush := len(s.buffer) >= batchSize
	s.mu.Unlock()

	if needFlush {
		go s.flush()
	}
	return nil
}

func (s *logSink) flushLoop() {
	defer close(s.stopped)
	for {
		select {
		case <-s.ticker.C:
			s.flush()
		case <-s.done:
			s.flush()
			return
		}
	}
}

func (s *logSink) flush() {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buffer
	s.buffer = make([]models.SystemLog, 0, batchSize)
	s.mu.Unlock()

	if err := s.db.CreateInBatches(batch, batchSize).Error; err != nil {
		slog.Error("failed to flush system logs to DB", "error", err, "count", len(batch))
	}
}
