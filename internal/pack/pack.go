// SPDX-License-Identifier: MPL-2.0

// Package pack builds the deployable code bundle for a function.
//
// Given a working directory, it locates exactly one recognized entry-point
// file (checked in a fixed priority order per runtime family), copies it
// into a clean staging area under the family's canonical name, copies the
// dependency manifest and lock file when present, materializes the
// dependency closure via the family's installer, and produces a single
// deterministic zip archive of the staging area.
//
// The staging directory is removed on every exit path. Failure to remove
// it is logged and never escalated.
package pack

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fnup-cli/internal/config"
)

var (
	// ErrNoEntryPoint is returned when none of the recognized entry-point
	// filenames exist in the working directory.
	ErrNoEntryPoint = errors.New("no recognized entry-point file")
	// ErrUnsupportedFamily is returned for a runtime family with no
	// packaging rules.
	ErrUnsupportedFamily = errors.New("unsupported runtime family")
)

// archiveEpoch is the fixed modification time stamped on every archive
// entry so that identical inputs produce identical archives across runs.
var archiveEpoch = time.Unix(0, 0).UTC()

type (
	// Spec describes one packaging run.
	Spec struct {
		// FunctionName names the function; the archive name derives from it.
		FunctionName string
		// Family selects entry-point probes, manifests and installer.
		Family config.RuntimeFamily
		// WorkDir is the directory holding the function sources.
		WorkDir string
	}

	// Entry is the resolved entry point, produced by a single probe pass.
	// The rest of the run consumes this value and never re-probes the
	// filesystem.
	Entry struct {
		// Path is the absolute path of the matched source file.
		Path string
		// Canonical is the filename the entry point takes inside the bundle.
		Canonical string
		// HasManifest reports whether a dependency manifest was found
		// alongside the entry point.
		HasManifest bool
	}

	// Archive is the finished code bundle. It exists for the duration of
	// one deployment and is discarded after upload via Close. Each archive
	// lives in its own directory so overlapping runs for the same function
	// name never share an artifact.
	Archive struct {
		// Path is the archive location on disk.
		Path string

		dir string
	}

	// Builder runs the packaging stage.
	Builder struct {
		installer Installer
	}
)

// familyRules declares, per runtime family, the ordered entry-point probe
// list, the canonical in-bundle entry name, and the manifest files copied
// verbatim when present (manifest first, lock file after).
var familyRules = map[config.RuntimeFamily]struct {
	probes    []string
	canonical string
	manifests []string
}{
	config.FamilyNode: {
		probes:    []string{"index.js", "app.js", "main.js", "handler.js"},
		canonical: "index.js",
		manifests: []string{"package.json", "package-lock.json"},
	},
	config.FamilyPython: {
		probes:    []string{"lambda_function.py", "main.py", "app.py", "handler.py"},
		canonical: "lambda_function.py",
		manifests: []string{"requirements.txt"},
	},
}

// NewBuilder creates a Builder. A nil installer disables dependency
// resolution (bundles ship with only the entry point and manifests).
func NewBuilder(installer Installer) *Builder {
	return &Builder{installer: installer}
}

// ResolveEntry probes the working directory for a recognized entry point.
// Probes are evaluated once, in priority order; the first hit wins.
// Returns ErrNoEntryPoint when nothing matches.
func ResolveEntry(workDir string, family config.RuntimeFamily) (*Entry, error) {
	rules, ok := familyRules[family]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFamily, family)
	}

	for _, name := range rules.probes {
		candidate := filepath.Join(workDir, name)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			entry := &Entry{Path: candidate, Canonical: rules.canonical}
			if len(rules.manifests) > 0 {
				if _, err := os.Stat(filepath.Join(workDir, rules.manifests[0])); err == nil {
					entry.HasManifest = true
				}
			}
			return entry, nil
		}
	}

	return nil, fmt.Errorf("%w: looked for %s in %s",
		ErrNoEntryPoint, strings.Join(rules.probes, ", "), workDir)
}

// Build runs the packaging stage and returns the finished archive.
// The archive file is named after the function but placed in a fresh
// directory per run; Close removes the whole directory.
func (b *Builder) Build(ctx context.Context, spec Spec) (*Archive, error) {
	entry, err := ResolveEntry(spec.WorkDir, spec.Family)
	if err != nil {
		return nil, err
	}

	staging, err := os.MkdirTemp("", "fnup-stage-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			slog.Warn("failed to remove staging directory", "path", staging, "error", rmErr)
		}
	}()

	if err := copyFile(entry.Path, filepath.Join(staging, entry.Canonical)); err != nil {
		return nil, fmt.Errorf("failed to stage entry point: %w", err)
	}

	rules := familyRules[spec.Family]
	for _, name := range rules.manifests {
		src := filepath.Join(spec.WorkDir, name)
		if _, statErr := os.Stat(src); statErr != nil {
			continue
		}
		if err := copyFile(src, filepath.Join(staging, name)); err != nil {
			return nil, fmt.Errorf("failed to stage %s: %w", name, err)
		}
	}

	// Dependency resolution only runs when a manifest exists; without one
	// the bundle ships with the entry point alone.
	if entry.HasManifest && b.installer != nil {
		if err := b.installer.Install(ctx, staging, spec.Family); err != nil {
			return nil, fmt.Errorf("failed to resolve dependencies: %w", err)
		}
	}

	archiveDir, err := os.MkdirTemp("", "fnup-archive-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	archivePath := filepath.Join(archiveDir, spec.FunctionName+".zip")
	if err := writeArchive(staging, archivePath); err != nil {
		if rmErr := os.RemoveAll(archiveDir); rmErr != nil {
			slog.Warn("failed to remove archive directory", "path", archiveDir, "error", rmErr)
		}
		return nil, err
	}

	return &Archive{Path: archivePath, dir: archiveDir}, nil
}

// Bytes reads the full archive contents for upload.
func (a *Archive) Bytes() ([]byte, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	return data, nil
}

// Close discards the archive and its directory. Safe to call after
// upload; a removal failure is logged, not returned.
func (a *Archive) Close() {
	target := a.dir
	if target == "" {
		target = a.Path
	}
	if err := os.RemoveAll(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to remove archive", "path", target, "error", err)
	}
}

// writeArchive zips the staging directory into a single archive at
// outputPath. Entries carry a fixed timestamp so the archive bytes are
// stable for identical inputs.
func writeArchive(stagingDir, outputPath string) error {
	zipFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	zipWriter := zip.NewWriter(zipFile)

	err = filepath.WalkDir(stagingDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info: %w", err)
		}

		header := &zip.FileHeader{
			Name:     filepath.ToSlash(relPath),
			Method:   zip.Deflate,
			Modified: archiveEpoch,
		}
		header.SetMode(info.Mode().Perm())

		writer, err := zipWriter.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to create archive entry: %w", err)
		}

		src, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", relPath, err)
		}
		defer src.Close()

		if _, err := io.Copy(writer, src); err != nil {
			return fmt.Errorf("failed to write %s: %w", relPath, err)
		}
		return nil
	})
	if err != nil {
		zipWriter.Close()
		zipFile.Close()
		os.Remove(outputPath)
		return fmt.Errorf("failed to build archive: %w", err)
	}

	// Closing the writer flushes the central directory; without it the
	// file on disk is not a valid archive, so both close errors must
	// surface instead of blessing a truncated bundle.
	if err := zipWriter.Close(); err != nil {
		zipFile.Close()
		os.Remove(outputPath)
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := zipFile.Close(); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("failed to finalize archive: %w", err)
	}

	return nil
}

// copyFile copies a regular file, preserving its permission bits.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
