package healthcheck

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/l3aro/earscope/internal/config"
)

type versionRunner struct {
	out  string
	err  error
	args []string
}

func (r *versionRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.args = append([]string{name}, args...)
	return []byte(r.out), r.err
}

func found(name string) (string, error) { return "/usr/lib/jvm/bin/" + name, nil }

func notFound(string) (string, error) { return "", errors.New("executable file not found in $PATH") }

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.ScratchDir = t.TempDir()
	cfg.CacheDir = filepath.Join(t.TempDir(), "cache")
	return cfg
}

func TestCheckWithNilConfig(t *testing.T) {
	_, err := Check(nil, "", "")
	if err == nil {
		t.Error("Expected error for nil config, got nil")
	}
}

func TestCheckRejectsUnknownStrategy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Strategy = "jad"
	if _, err := CheckWith(cfg, "", "", Tools{LookPath: notFound}); err == nil {
		t.Error("Expected error for unknown strategy, got nil")
	}
}

func TestCheckJavapReady(t *testing.T) {
	runner := &versionRunner{out: "17.0.9\n"}
	cfg := testConfig(t)

	result, err := CheckWith(cfg, "", "", Tools{LookPath: found, Runner: runner})
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}

	if result.Javap.Status != "ready" {
		t.Fatalf("Javap.Status = %q, want ready (error %s)", result.Javap.Status, result.Javap.Error)
	}
	if result.Javap.Version != "17.0.9" {
		t.Errorf("Javap.Version = %q, want 17.0.9", result.Javap.Version)
	}
	if result.Javap.Path != "/usr/lib/jvm/bin/javap" {
		t.Errorf("Javap.Path = %q", result.Javap.Path)
	}
	if strings.Join(runner.args, " ") != "/usr/lib/jvm/bin/javap -version" {
		t.Errorf("runner called with %v", runner.args)
	}
	if !result.Healthy() {
		t.Error("Healthy() = false, want true")
	}
}

func TestCheckJavapMissing(t *testing.T) {
	tests := []struct {
		name        string
		strategy    string
		wantHealthy bool
	}{
		{"auto falls back to class files", "auto", true},
		{"classfile never needs javap", "classfile", true},
		{"javap strategy requires it", "javap", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Strategy = tt.strategy

			result, err := CheckWith(cfg, "", "", Tools{LookPath: notFound})
			if err != nil {
				t.Fatalf("Check() failed: %v", err)
			}
			if result.Javap.Status != "missing" {
				t.Errorf("Javap.Status = %q, want missing", result.Javap.Status)
			}
			if result.Healthy() != tt.wantHealthy {
				t.Errorf("Healthy() = %v, want %v", result.Healthy(), tt.wantHealthy)
			}
		})
	}
}

func TestCheckJavapVersionFails(t *testing.T) {
	runner := &versionRunner{err: errors.New("exit status 1")}
	result, err := CheckWith(testConfig(t), "", "", Tools{LookPath: found, Runner: runner})
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}
	if result.Javap.Status != "error" {
		t.Errorf("Javap.Status = %q, want error", result.Javap.Status)
	}
}

func TestCheckDirectories(t *testing.T) {
	cfg := testConfig(t)
	result, err := CheckWith(cfg, "", "", Tools{LookPath: notFound})
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}

	if result.Scratch.Status != "ready" {
		t.Errorf("Scratch.Status = %q (%s)", result.Scratch.Status, result.Scratch.Error)
	}
	if result.Cache.Status != "ready" {
		t.Errorf("Cache.Status = %q (%s)", result.Cache.Status, result.Cache.Error)
	}
	if info, err := os.Stat(cfg.CacheDir); err != nil || !info.IsDir() {
		t.Errorf("cache dir was not created: %v", err)
	}
	entries, _ := os.ReadDir(cfg.ScratchDir)
	if len(entries) != 0 {
		t.Errorf("check file left behind in scratch dir: %v", entries)
	}
}

func TestCheckCacheDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.CacheEnabled = false

	result, err := CheckWith(cfg, "", "", Tools{LookPath: notFound})
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}
	if result.Cache.Status != "disabled" {
		t.Errorf("Cache.Status = %q, want disabled", result.Cache.Status)
	}
	if _, err := os.Stat(cfg.CacheDir); !os.IsNotExist(err) {
		t.Error("disabled cache dir should not be created")
	}
}

func TestCheckScratchNotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(t)
	cfg.ScratchDir = filepath.Join(file, "scratch")

	result, err := CheckWith(cfg, "", "", Tools{LookPath: notFound})
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}
	if result.Scratch.Status != "error" {
		t.Errorf("Scratch.Status = %q, want error", result.Scratch.Status)
	}
	if result.Healthy() {
		t.Error("Healthy() = true, want false")
	}
}

func TestScopeFromPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	globalPath := ""
	globalScope := ""
	if home != "" {
		globalPath = filepath.Join(home, ".earscope", "config.yaml")
		globalScope = "global"
	}

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{"empty path", "", ""},
		{"global path", globalPath, globalScope},
		{"project path", "/project/.earscope/config.yaml", "project"},
		{"relative project path", ".earscope/config.yaml", "project"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := scopeFromPath(tt.path)
			if result != tt.expected {
				t.Errorf("scopeFromPath(%q) = %q, want %q", tt.path, result, tt.expected)
			}
		})
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("  openjdk 21\nmore\n"); got != "openjdk 21" {
		t.Errorf("firstLine() = %q", got)
	}
}
