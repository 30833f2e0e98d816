package config

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultLogHistory = 1000

// LogEntry is a log line kept in memory for the current run.
type LogEntry struct {
	Time    time.Time     `json:"time"`
	Level   logrus.Level  `json:"level"`
	Message string        `json:"message"`
	Data    logrus.Fields `json:"data,omitempty"`
}

func newLogEntry(entry *logrus.Entry) *LogEntry {
	data := make(logrus.Fields, len(entry.Data))
	for key, value := range entry.Data {
		data[key] = value
	}
	return &LogEntry{
		Time:    entry.Time,
		Level:   entry.Level,
		Message: entry.Message,
		Data:    data,
	}
}

// RingLogger is a logrus hook that keeps the most recent entries of this run.
type RingLogger struct {
	// Ring buffer for storing events
	runID       uuid.UUID
	eventBuffer []*LogEntry
	maxSize     int
	currentPos  int
	isFull      bool
	mu          sync.RWMutex
}

func NewRingLogger(size int) *RingLogger {
	if size <= 0 {
		size = defaultLogHistory
	}
	return &RingLogger{
		runID:       uuid.New(),
		eventBuffer: make([]*LogEntry, size),
		maxSize:     size,
	}
}

// RunID identifies this process in log output.
func (t *RingLogger) RunID() uuid.UUID {
	return t.runID
}

func (t *RingLogger) Fire(entry *logrus.Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.eventBuffer[t.currentPos] = newLogEntry(entry)
	t.currentPos = (t.currentPos + 1) % t.maxSize

	if t.currentPos == 0 {
		t.isFull = true
	}

	return nil
}

func (t *RingLogger) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
		logrus.WarnLevel,
		logrus.InfoLevel,
		logrus.DebugLevel,
	}
}

func (t *RingLogger) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.eventBuffer = make([]*LogEntry, t.maxSize)
	t.currentPos = 0
	t.isFull = false
}

func (t *RingLogger) GetEvents() []*LogEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.getEventsInternal()
}

func (t *RingLogger) GetRecentEvents(count int) []*LogEntry {
	events := t.GetEvents()
	if len(events) <= count {
		return events
	}
	return events[len(events)-count:]
}

// LogFilter contains the filtering criteria for log events
type LogFilter struct {
	// Minimum severity; entries less severe than this are dropped
	MinLevel logrus.Level
	Since    *time.Time
	// Maximum number of events to return, newest kept (if 0, no limit)
	Limit int
}

func (t *RingLogger) GetEventsWithFilter(filter LogFilter) []*LogEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var filtered []*LogEntry
	for _, entry := range t.getEventsInternal() {
		// logrus levels grow less severe as the number grows
		if entry.Level > filter.MinLevel {
			continue
		}
		if filter.Since != nil && entry.Time.Before(*filter.Since) {
			continue
		}
		filtered = append(filtered, entry)
	}

	if filter.Limit > 0 && len(filtered) > filter.Limit {
		filtered = filtered[len(filtered)-filter.Limit:]
	}

	return filtered
}

// getEventsInternal returns events oldest first; the caller holds the lock.
func (t *RingLogger) getEventsInternal() []*LogEntry {
	if !t.isFull {
		result := make([]*LogEntry, t.currentPos)
		copy(result, t.eventBuffer[:t.currentPos])
		return result
	}

	result := make([]*LogEntry, t.maxSize)
	copy(result, t.eventBuffer[t.currentPos:])
	copy(result[t.maxSize-t.currentPos:], t.eventBuffer[:t.currentPos])
	return result
}
