package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func testProvider() *SnapshotProvider {
	return NewSnapshotProvider(trace.NewNoopTracerProvider().Tracer("test"))
}

func TestDemoSnapshotParses(t *testing.T) {
	payload, err := testProvider().DemoSnapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload["user_id"] != "GIG-001" {
		t.Fatalf("expected demo user GIG-001, got %v", payload["user_id"])
	}
	if payload["persona_type"] != "gig_worker" {
		t.Fatalf("expected gig_worker persona, got %v", payload["persona_type"])
	}
	if _, ok := payload["category_spend"].(map[string]any); !ok {
		t.Fatalf("expected category_spend block, got %T", payload["category_spend"])
	}
}

func TestDemoSnapshotReturnsFreshCopy(t *testing.T) {
	p := testProvider()
	first, err := p.DemoSnapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first["user_id"] = "mutated"

	second, err := p.DemoSnapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second["user_id"] != "GIG-001" {
		t.Fatal("expected each call to return an independent payload")
	}
}

func TestLoadFileReadsPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json")
	if err := os.WriteFile(path, []byte(`{"user_id":"u-1","month":"2025-07"}`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	payload, err := testProvider().LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload["user_id"] != "u-1" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestLoadFileRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`{"user_id":`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := testProvider().LoadFile(context.Background(), path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestListDirFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.json", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(`{}`), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.json"), 0o755); err != nil {
		t.Fatalf("mkdir fixture: %v", err)
	}

	paths, err := testProvider().ListDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 json files, got %v", paths)
	}
	if filepath.Base(paths[0]) != "a.json" || filepath.Base(paths[1]) != "b.json" {
		t.Fatalf("expected sorted json files, got %v", paths)
	}
}
