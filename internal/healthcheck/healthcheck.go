package healthcheck

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/l3aro/earscope/internal/config"
	"github.com/l3aro/earscope/pkg/inspector"
)

// ToolStatus represents the health of the external disassembler.
type ToolStatus struct {
	Name     string
	Path     string
	Version  string
	Status   string // "ready", "missing", "error"
	Required bool
	Error    string
}

// DirStatus represents the health of a working directory.
type DirStatus struct {
	Path   string
	Status string // "ready", "error", "disabled"
	Error  string
}

// HealthCheckResult contains the full health check output for display.
type HealthCheckResult struct {
	SavedPath      string
	SavedScope     string // "global" or "project"
	EffectivePath  string
	EffectiveScope string // "global" or "project"
	Strategy       string
	Javap          ToolStatus
	Scratch        DirStatus
	Cache          DirStatus
}

// Healthy reports whether an analysis can run with this configuration.
func (r *HealthCheckResult) Healthy() bool {
	if r.Javap.Required && r.Javap.Status != "ready" {
		return false
	}
	return r.Scratch.Status == "ready" && r.Cache.Status != "error"
}

// Tools replaces process lookup and execution, mainly in tests.
type Tools struct {
	LookPath func(string) (string, error)
	Runner   inspector.Runner
}

// Check performs a health check against the given config.
// savedPath is where the user saved config (may be empty outside init).
// effectivePath is the config file actually in use (considering priority).
func Check(cfg *config.Config, savedPath string, effectivePath string) (*HealthCheckResult, error) {
	return CheckWith(cfg, savedPath, effectivePath, Tools{})
}

// CheckWith is Check with injectable process tools.
func CheckWith(cfg *config.Config, savedPath, effectivePath string, tools Tools) (*HealthCheckResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	strategy, err := inspector.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	result := &HealthCheckResult{
		SavedPath:      savedPath,
		SavedScope:     scopeFromPath(savedPath),
		EffectivePath:  effectivePath,
		EffectiveScope: scopeFromPath(effectivePath),
		Strategy:       string(strategy),
	}

	result.Javap = checkJavap(cfg.JavapPath, strategy == inspector.StrategyJavap, tools)

	scratch := cfg.ScratchDir
	if scratch == "" {
		scratch = os.TempDir()
	}
	result.Scratch = checkWritableDir(scratch)

	if cfg.CacheEnabled && cfg.CacheDir != "" {
		result.Cache = checkWritableDir(cfg.CacheDir)
	} else {
		result.Cache = DirStatus{Path: cfg.CacheDir, Status: "disabled"}
	}

	return result, nil
}

// scopeFromPath determines "global" or "project" scope from a config file path.
// Returns empty string if path is empty.
func scopeFromPath(path string) string {
	if path == "" {
		return ""
	}

	home, err := os.UserHomeDir()
	if err == nil {
		globalDir := filepath.Join(home, ".earscope")
		if strings.HasPrefix(path, globalDir) {
			return "global"
		}
	}

	return "project"
}

// checkJavap resolves the disassembler and asks it for its version.
// It is only required when the javap strategy is forced; auto falls back
// to direct class file parsing without it.
func checkJavap(path string, required bool, tools Tools) ToolStatus {
	j := inspector.NewJavap(path, tools.Runner)
	j.LookPath = tools.LookPath

	status := ToolStatus{Name: inspector.DefaultJavap, Required: required}
	if path != "" {
		status.Name = path
	}

	if err := j.Available(); err != nil {
		status.Status = "missing"
		status.Error = err.Error()
		return status
	}
	status.Path = j.Resolved()

	runner := tools.Runner
	if runner == nil {
		runner = inspector.ExecRunner{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	out, err := runner.Run(ctx, status.Path, "-version")
	if err != nil {
		status.Status = "error"
		status.Error = err.Error()
		return status
	}
	status.Version = firstLine(string(out))
	status.Status = "ready"
	return status
}

// checkWritableDir creates dir if needed and checks it with a temp file.
func checkWritableDir(dir string) DirStatus {
	status := DirStatus{Path: dir}

	if err := os.MkdirAll(dir, 0755); err != nil {
		status.Status = "error"
		status.Error = fmt.Sprintf("cannot create %s: %v", dir, err)
		return status
	}

	f, err := os.CreateTemp(dir, ".earscope-check-*")
	if err != nil {
		status.Status = "error"
		status.Error = fmt.Sprintf("%s is not writable: %v", dir, err)
		return status
	}
	name := f.Name()
	f.Close()
	os.Remove(name)

	status.Status = "ready"
	return status
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
