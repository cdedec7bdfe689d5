// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package repository supplies components, contracts and source text to the
// prediction engine.
//
// # Description
//
// The prediction engine only depends on the Source interface. FSRepository is
// the filesystem implementation used by the CLI and server:
//
//	<root>/components/<id>/...          component source trees
//	<root>/contracts/<id>[_api].yaml    contract documents
//
// Missing or unreadable inputs degrade: an unreadable file is skipped, a
// malformed contract is treated as absent, and a missing components directory
// yields ErrMissingInput, which the aggregator turns into an empty prediction.
//
// # Thread Safety
//
// FSRepository is safe for concurrent use.
package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/AleutianAI/foresight/services/integration/model"
)

// Source is the component/contract collaborator consumed by the predictor.
type Source interface {
	// Components returns the discovered components sorted by ID.
	Components(ctx context.Context) ([]model.Component, error)

	// Contracts returns every well-formed contract keyed by component ID.
	Contracts(ctx context.Context) (map[string]*model.Contract, error)

	// Sources returns the readable source files of one component, sorted by path.
	Sources(ctx context.Context, componentID string) ([]model.SourceFile, error)
}

// Options configures an FSRepository.
type Options struct {
	// ComponentsDir and ContractsDir are absolute directories.
	ComponentsDir string
	ContractsDir  string

	// Extensions restricts which source files are read. Empty reads all files.
	Extensions []string

	// SkipDirs are directory names never descended into.
	SkipDirs []string

	// MaxFileBytes skips larger files. Zero means no limit.
	MaxFileBytes int64

	// CacheSize is the number of components whose sources stay cached.
	CacheSize int

	// Logger receives skip diagnostics. Nil uses slog.Default().
	Logger *slog.Logger
}

// FSRepository reads the component layout from disk.
type FSRepository struct {
	opts   Options
	exts   map[string]bool
	skip   map[string]bool
	cache  *lru.Cache[string, []model.SourceFile]
	logger *slog.Logger
}

// New creates an FSRepository.
//
// # Outputs
//
//   - *FSRepository: Ready to use.
//   - error: Non-nil if the source cache cannot be created.
func New(opts Options) (*FSRepository, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	cache, err := lru.New[string, []model.SourceFile](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create source cache: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[strings.ToLower(e)] = true
	}
	skip := make(map[string]bool, len(opts.SkipDirs))
	for _, d := range opts.SkipDirs {
		skip[d] = true
	}

	return &FSRepository{
		opts:   opts,
		exts:   exts,
		skip:   skip,
		cache:  cache,
		logger: logger.With(slog.String("component", "repository")),
	}, nil
}

// Components lists the non-hidden subdirectories of the components directory.
func (r *FSRepository) Components(ctx context.Context) ([]model.Component, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.opts.ComponentsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, r.opts.ComponentsDir)
		}
		return nil, fmt.Errorf("read components dir: %w", err)
	}

	components := make([]model.Component, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		components = append(components, model.Component{
			ID:  e.Name(),
			Dir: filepath.Join(r.opts.ComponentsDir, e.Name()),
		})
	}
	sort.Slice(components, func(i, j int) bool { return components[i].ID < components[j].ID })
	return components, nil
}

// Contracts parses every contract document. A missing contracts directory
// yields an empty map.
func (r *FSRepository) Contracts(ctx context.Context) (map[string]*model.Contract, error) {
	contracts := map[string]*model.Contract{}

	entries, err := os.ReadDir(r.opts.ContractsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return contracts, nil
		}
		return nil, fmt.Errorf("read contracts dir: %w", err)
	}

	// ReadDir returns entries sorted by file name.
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() {
			continue
		}
		id, ok := ContractID(e.Name())
		if !ok {
			continue
		}
		path := filepath.Join(r.opts.ContractsDir, e.Name())
		if _, dup := contracts[id]; dup {
			r.logger.Warn("duplicate contract ignored",
				slog.String("component_id", id),
				slog.String("path", path))
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("unreadable contract skipped",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		c, err := ParseContract(id, path, data)
		if err != nil {
			r.logger.Warn("malformed contract treated as absent",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		contracts[id] = c
	}
	return contracts, nil
}

// Sources walks a component directory and returns its readable files.
//
// Hidden entries, SkipDirs, files over MaxFileBytes and files with an
// extension outside Extensions are skipped. Results are cached per component
// until Invalidate.
func (r *FSRepository) Sources(ctx context.Context, componentID string) ([]model.SourceFile, error) {
	if cached, ok := r.cache.Get(componentID); ok {
		return cached, nil
	}
	if componentID == "" || strings.ContainsAny(componentID, `/\`) || strings.HasPrefix(componentID, ".") {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, componentID)
	}

	root := filepath.Join(r.opts.ComponentsDir, componentID)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, componentID)
	}

	var files []model.SourceFile
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			r.logger.Debug("walk error skipped", slog.String("path", path), slog.String("error", err.Error()))
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := d.Name()
		if path != root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && r.skip[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if !r.wantFile(name) {
			return nil
		}
		if r.opts.MaxFileBytes > 0 {
			if fi, err := d.Info(); err == nil && fi.Size() > r.opts.MaxFileBytes {
				r.logger.Debug("oversized file skipped", slog.String("path", path), slog.Int64("size_bytes", fi.Size()))
				return nil
			}
		}
		content, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("unreadable source skipped", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = name
		}
		files = append(files, model.SourceFile{Path: filepath.ToSlash(rel), Content: content})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	r.cache.Add(componentID, files)
	return files, nil
}

// Invalidate drops cached sources, e.g. after the watcher observed a change.
func (r *FSRepository) Invalidate() {
	r.cache.Purge()
}

// wantFile reports whether a file name passes the extension filter.
func (r *FSRepository) wantFile(name string) bool {
	if len(r.exts) == 0 {
		return true
	}
	if name == "go.mod" || name == "Cargo.toml" {
		return true
	}
	return r.exts[strings.ToLower(filepath.Ext(name))]
}
