//go:build tracing

package trace

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileExporter_BasicExport(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.jsonl")

	exporter, err := NewFileExporter(auditPath)
	if err != nil {
		t.Fatalf("NewFileExporter failed: %v", err)
	}
	defer exporter.Close()

	record := &Record{
		Timestamp:   time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC),
		OperationID: "op-1",
		Operation:   "store_with_metadata",
		DurationMs:  12,
		Status:      "success",
		FragmentID:  "deadbeef",
		TagKeys:     []string{"ethical_score", "component"},
		Spans: []Span{
			{Name: "write-primary", DurationMs: 8, OK: true},
			{Name: "write-index", DurationMs: 3, OK: true},
		},
	}

	if err := exporter.Export(context.Background(), record); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if err := exporter.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	file, err := os.Open(auditPath)
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		t.Fatalf("audit file is empty")
	}

	var got Record
	if err := json.Unmarshal(scanner.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal audit line: %v", err)
	}
	if got.Operation != "store_with_metadata" {
		t.Errorf("Operation: got %q, want %q", got.Operation, "store_with_metadata")
	}
	if len(got.TagKeys) != 2 {
		t.Errorf("TagKeys: got %v, want 2 keys", got.TagKeys)
	}
	if len(got.Spans) != 2 {
		t.Errorf("Spans: got %d, want 2", len(got.Spans))
	}
}

func TestFileExporter_Rotation(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.jsonl")

	exporter, err := NewFileExporter(auditPath, WithMaxSize(256), WithMaxRotatedFiles(2))
	if err != nil {
		t.Fatalf("NewFileExporter failed: %v", err)
	}
	defer exporter.Close()

	for i := 0; i < 20; i++ {
		record := &Record{
			Timestamp:   time.Now(),
			OperationID: "op",
			Operation:   "store",
			Status:      "success",
		}
		if err := exporter.Export(context.Background(), record); err != nil {
			t.Fatalf("Export %d failed: %v", i, err)
		}
	}

	if _, err := os.Stat(auditPath + ".1"); err != nil {
		t.Fatalf("expected rotated file: %v", err)
	}
}

func TestFileExporter_ExportAfterClose(t *testing.T) {
	dir := t.TempDir()
	exporter, err := NewFileExporter(filepath.Join(dir, "audit.jsonl"))
	if err != nil {
		t.Fatalf("NewFileExporter failed: %v", err)
	}
	if err := exporter.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := exporter.Export(context.Background(), &Record{}); err == nil {
		t.Fatalf("expected error exporting after close")
	}
}
