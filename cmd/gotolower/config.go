package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"gotolower/internal/driver"
	"gotolower/internal/layout"
	"gotolower/internal/trace"
)

const configFileName = "gotolower.toml"

// projectConfig mirrors gotolower.toml:
//
//	[target]
//	triple = "x86_64-linux-gnu"
//
//	[lower]
//	jobs = 4
//	max_diagnostics = 50
//	emit = "text"
//	out_dir = "build/symtab"
//	cache = true
//	merge = false
//
//	[trace]
//	level = "phase"
//	output = "build/trace.ndjson"
//
//	[log]
//	level = "info"
type projectConfig struct {
	Target targetConfig `toml:"target"`
	Lower  lowerConfig  `toml:"lower"`
	Trace  traceConfig  `toml:"trace"`
	Log    logConfig    `toml:"log"`
}

type targetConfig struct {
	Triple string `toml:"triple"`
}

type lowerConfig struct {
	Jobs           int    `toml:"jobs"`
	MaxDiagnostics int    `toml:"max_diagnostics"`
	Emit           string `toml:"emit"`
	OutDir         string `toml:"out_dir"`
	Cache          bool   `toml:"cache"`
	Merge          bool   `toml:"merge"`
}

type traceConfig struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
}

type logConfig struct {
	Level string `toml:"level"`
}

// projectManifest is a loaded gotolower.toml; relative paths in it are
// resolved against Root.
type projectManifest struct {
	Path   string
	Root   string
	Config projectConfig
}

func findConfig(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, configFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// loadManifest reads explicit, or the nearest gotolower.toml above
// startDir when explicit is empty. A missing implicit file is not an error.
func loadManifest(explicit, startDir string) (*projectManifest, error) {
	path := explicit
	if path == "" {
		found, ok, err := findConfig(startDir)
		if err != nil || !ok {
			return nil, err
		}
		path = found
	}
	cfg, err := loadProjectConfig(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &projectManifest{Path: abs, Root: filepath.Dir(abs), Config: cfg}, nil
}

func loadProjectConfig(path string) (projectConfig, error) {
	var cfg projectConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return projectConfig{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if keys := meta.Undecoded(); len(keys) > 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}
		return projectConfig{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(names, ", "))
	}
	if t := strings.TrimSpace(cfg.Target.Triple); t != "" {
		if _, err := layout.TargetByTriple(t); err != nil {
			return projectConfig{}, fmt.Errorf("%s: [target].triple: %w", path, err)
		}
	}
	if cfg.Lower.Jobs < 0 {
		return projectConfig{}, fmt.Errorf("%s: [lower].jobs must not be negative", path)
	}
	if cfg.Lower.Emit != "" {
		if _, err := driver.ParseEmit(cfg.Lower.Emit); err != nil {
			return projectConfig{}, fmt.Errorf("%s: [lower].emit: %w", path, err)
		}
	}
	if cfg.Trace.Level != "" {
		if _, err := trace.ParseLevel(cfg.Trace.Level); err != nil {
			return projectConfig{}, fmt.Errorf("%s: [trace].level: %w", path, err)
		}
	}
	return cfg, nil
}

// resolve makes a path from the manifest absolute.
func (m *projectManifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || p == "-" {
		return p
	}
	return filepath.Join(m.Root, filepath.FromSlash(p))
}
