package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

func TestCheckManifestValid(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "valid.json", `{
		"name": "lofi",
		"instruments": [
			{"name": "piano", "color": "#7c5cff", "sounds": ["C3", "E3", "G3"]},
			{"name": "drums", "color": "#ff5c7c", "sounds": ["kick", "snare"]}
		]
	}`)

	if err := checkManifest(path); err != nil {
		t.Errorf("expected a valid manifest, got %v", err)
	}
}

func TestCheckManifestFailures(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "not json",
			content: `{not json`,
		},
		{
			name:    "missing bank name",
			content: `{"instruments": [{"name": "piano", "color": "#fff", "sounds": ["C3"]}]}`,
		},
		{
			name:    "no instruments",
			content: `{"name": "empty", "instruments": []}`,
		},
		{
			name: "duplicate instrument",
			content: `{"name": "dup", "instruments": [
				{"name": "piano", "color": "#fff", "sounds": ["C3"]},
				{"name": "piano", "color": "#aaa", "sounds": ["C4"]}
			]}`,
		},
		{
			name:    "empty sound pool",
			content: `{"name": "mute", "instruments": [{"name": "piano", "color": "#fff", "sounds": []}]}`,
		},
		{
			name:    "bad color",
			content: `{"name": "plain", "instruments": [{"name": "piano", "color": "purple", "sounds": ["C3"]}]}`,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, dir, fmt.Sprintf("case%d.json", i), tt.content)
			if err := checkManifest(path); err == nil {
				t.Error("expected validation to fail")
			}
		})
	}
}

func TestCheckManifestMissingFile(t *testing.T) {
	if err := checkManifest(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
