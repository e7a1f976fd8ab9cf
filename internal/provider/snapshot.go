package provider

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

//go:embed sample_snapshot.json
var sampleSnapshot []byte

// SnapshotProvider loads raw snapshot payloads from disk for the batch
// runner and serves the embedded demo snapshot.
type SnapshotProvider struct {
	tracer trace.Tracer
}

func NewSnapshotProvider(tracer trace.Tracer) *SnapshotProvider {
	return &SnapshotProvider{tracer: tracer}
}

// DemoSnapshot returns a fresh copy of the embedded sample payload.
func (p *SnapshotProvider) DemoSnapshot() (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(sampleSnapshot, &payload); err != nil {
		return nil, fmt.Errorf("decode embedded snapshot: %w", err)
	}
	return payload, nil
}

func (p *SnapshotProvider) LoadFile(ctx context.Context, path string) (map[string]any, error) {
	_, span := p.tracer.Start(ctx, "snapshot-provider.load-file")
	defer span.End()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return payload, nil
}

// ListDir returns the sorted paths of all .json files directly under dir.
func (p *SnapshotProvider) ListDir(ctx context.Context, dir string) ([]string, error) {
	_, span := p.tracer.Start(ctx, "snapshot-provider.list-dir")
	defer span.End()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return paths, nil
}
