package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveCreatesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	cfg.Policy = "SHORTEST"
	cfg.Resources = map[string]int{"staff": 2}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Config file was not created: %s", path)
	}

	loaded, err := Load("", path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Policy != "SHORTEST" {
		t.Errorf("Expected policy SHORTEST, got %q", loaded.Policy)
	}
	if loaded.Resources["staff"] != 2 {
		t.Errorf("Expected staff=2, got %d", loaded.Resources["staff"])
	}
}

func TestSaveCreatesParentDirs(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "deeper", "config.json")

	if err := Save(DefaultConfig(), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Config file was not created: %v", err)
	}
}

func TestSaveOverwrites(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	first := DefaultConfig()
	first.Concurrency = 2
	if err := Save(first, path); err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	second := DefaultConfig()
	second.Concurrency = 9
	if err := Save(second, path); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := Load("", path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Concurrency != 9 {
		t.Errorf("Expected concurrency 9 after overwrite, got %d", loaded.Concurrency)
	}
}
