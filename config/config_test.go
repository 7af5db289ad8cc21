package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "ratox-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	cfg, err := Load(tempDir)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.ConfigDir != tempDir {
		t.Errorf("Expected ConfigDir %s, got %s", tempDir, cfg.ConfigDir)
	}

	if !cfg.UDPEnabled {
		t.Error("Expected UDP enabled by default")
	}

	if len(cfg.BootstrapNodes) == 0 {
		t.Error("Expected default bootstrap nodes, got none")
	}

	configFile := filepath.Join(tempDir, ConfigFileName)
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}
}

func TestSave(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "ratox-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	cfg := &Config{
		ConfigDir:     tempDir,
		Name:          "Test User",
		StatusMessage: "Testing",
		Debug:         true,
	}

	if err := cfg.Save(); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loadedCfg, err := Load(tempDir)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	if loadedCfg.Name != "Test User" {
		t.Errorf("Expected name 'Test User', got %s", loadedCfg.Name)
	}

	if loadedCfg.StatusMessage != "Testing" {
		t.Errorf("Expected status message 'Testing', got %s", loadedCfg.StatusMessage)
	}

	if !loadedCfg.Debug {
		t.Error("Expected debug to be true")
	}
}

func TestLoadSetsDefaultSaveFile(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "ratox-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	cfg, err := Load(tempDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := filepath.Join(tempDir, SaveDataFileName)
	if cfg.SaveFile != want {
		t.Errorf("SaveFile = %s, want %s", cfg.SaveFile, want)
	}
}
