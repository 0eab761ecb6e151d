package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"forseti-hq/forseti/pkg/rules"
)

// Source yields rule definitions from somewhere external.
type Source interface {
	// Load returns every definition the source currently holds.
	Load(ctx context.Context) ([]rules.Definition, error)

	// Path identifies the source for logs and watching. Empty when the
	// source is not file-backed.
	Path() string
}

// FileSource loads rule definitions from YAML files on disk. The path can
// be a single file or a directory; directories are walked and every .yaml
// and .yml file contributes its definitions.
type FileSource struct {
	path   string
	logger *slog.Logger
}

// NewFileSource creates a file-backed definition source.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:   path,
		logger: logger.With("component", "rule_source"),
	}
}

// Path returns the watched file or directory.
func (s *FileSource) Path() string { return s.path }

// Load reads every definition under the configured path.
func (s *FileSource) Load(ctx context.Context) ([]rules.Definition, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path %q: %w", s.path, err)
	}

	var defs []rules.Definition
	if info.IsDir() {
		defs, err = s.loadDirectory(ctx)
	} else {
		defs, err = s.loadFile(s.path)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("loaded rule definitions",
		"path", s.path,
		"rule_count", len(defs),
	)
	return defs, nil
}

func (s *FileSource) loadDirectory(ctx context.Context) ([]rules.Definition, error) {
	var defs []rules.Definition

	err := filepath.WalkDir(s.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		fileDefs, err := s.loadFile(path)
		if err != nil {
			return err
		}
		defs = append(defs, fileDefs...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %q: %w", s.path, err)
	}

	return defs, nil
}

func (s *FileSource) loadFile(path string) ([]rules.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", path, err)
	}

	defs, err := rules.ParseDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rule file %q: %w", path, err)
	}

	s.logger.Debug("loaded rule file",
		"path", path,
		"rule_count", len(defs),
	)
	return defs, nil
}
