// File path: internal/common/log_test.go
package common

import (
	"testing"
	"time"

	"log/slog"
)

func TestBuildLogEntryExtractsComponent(t *testing.T) {
	record := slog.NewRecord(time.Now(), slog.LevelInfo, "queue: task retry scheduled", 0)
	record.AddAttrs(slog.String("task", "abc"), slog.Int("retries", 2))

	entry := buildLogEntry(record)
	if entry.Component != "queue" {
		t.Fatalf("component = %q", entry.Component)
	}
	if entry.Level != "info" {
		t.Fatalf("level = %q", entry.Level)
	}
	if entry.Attributes["task"] != "abc" {
		t.Fatalf("attributes = %v", entry.Attributes)
	}
	if entry.Attributes["retries"] != int64(2) {
		t.Fatalf("retries attr = %v (%T)", entry.Attributes["retries"], entry.Attributes["retries"])
	}
}

func TestBuildLogEntryWithoutComponent(t *testing.T) {
	record := slog.NewRecord(time.Now(), slog.LevelWarn, "request failed", 0)
	entry := buildLogEntry(record)
	if entry.Component != "" {
		t.Fatalf("component = %q, want empty", entry.Component)
	}
}

func TestLogSinkBoundsHistory(t *testing.T) {
	sink := newLogSink(3)
	for i := 0; i < 5; i++ {
		sink.capture(slog.NewRecord(time.Now(), slog.LevelInfo, "test: entry", 0))
	}
	if got := len(sink.entries()); got != 3 {
		t.Fatalf("history length = %d, want 3", got)
	}
}

func TestLoggerAndEntriesShareSink(t *testing.T) {
	Logger().Info("common: sink smoke test")
	entries := LogEntries()
	found := false
	for _, entry := range entries {
		if entry.Message == "common: sink smoke test" && entry.Component == "common" {
			found = true
		}
	}
	if !found {
		t.Fatal("logged record not captured in history")
	}
}
