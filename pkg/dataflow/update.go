package dataflow

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"github.com/wasmerio/wapm-cli-sub000/pkg/lockfile"
	"github.com/wasmerio/wapm-cli-sub000/pkg/manifest"
	"github.com/wasmerio/wapm-cli-sub000/pkg/observability"
	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

// Options are the command-line changes applied on top of the manifest.
type Options struct {
	// Add holds packages to install, e.g. parsed by manifest.ParsePackageArg.
	Add []packagekey.Key
	// Remove holds package names to uninstall. Names with a version
	// qualifier are rejected before anything else happens.
	Remove []string
}

// Report summarizes one update run.
type Report struct {
	Added           []packagekey.Key
	Removed         []packagekey.Key
	Retained        []packagekey.Key
	Installed       int
	LockfileWritten bool
	ManifestWritten bool
}

// Pipeline runs updates for one project directory.
//
// A Pipeline holds no state between runs; concurrent runs against the same
// directory are not coordinated.
type Pipeline struct {
	Dir         string
	Manifest    Source
	Lockfile    Source
	Resolver    Resolver
	Installer   Installer
	Concurrency int
	Logger      *log.Logger
}

// New creates a pipeline for the project at dir, reading wapm.toml and
// wapm.lock from it. If logger is nil, log.Default() is used.
func New(dir string, r Resolver, inst Installer, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		Dir:         dir,
		Manifest:    FileSource{Path: filepath.Join(dir, manifest.FileName)},
		Lockfile:    FileSource{Path: filepath.Join(dir, lockfile.FileName)},
		Resolver:    r,
		Installer:   inst,
		Concurrency: DefaultConcurrency,
		Logger:      logger,
	}
}

// Update reconciles the manifest, the lockfile and opts, installs what is
// missing and rewrites the lockfile. The manifest is rewritten only when it
// exists and opts changed its dependencies.
//
// On error the returned report describes what happened before the failure.
// No lockfile is written unless every install succeeded.
func (p *Pipeline) Update(ctx context.Context, opts Options) (*Report, error) {
	logger := p.Logger
	if logger == nil {
		logger = log.Default()
	}
	report := &Report{}

	for _, arg := range opts.Remove {
		if _, err := manifest.ParseRemovalArg(arg); err != nil {
			return report, err
		}
	}

	// Stage 1: ingest
	var (
		m        *manifest.Manifest
		rawMan   []byte
		declared manifest.Packages
		old      lockfile.Packages
		rawLock  []byte
	)
	err := stage(ctx, "ingest", 0, func() error {
		var err error
		if m, rawMan, err = ReadManifest(p.Manifest); err != nil {
			return err
		}
		if declared, err = manifest.NewPackages(m); err != nil {
			return fmt.Errorf("%s: %w", manifest.FileName, err)
		}
		declared.Add(opts.Add...)
		if err = declared.Remove(opts.Remove...); err != nil {
			return err
		}
		if err = CheckInstallable(declared.Keys); err != nil {
			return err
		}
		old, rawLock, err = ReadLockfile(p.Lockfile)
		return err
	})
	if err != nil {
		return report, err
	}
	logger.Debug("read project", "declared", len(declared.Keys), "locked", len(old), "manifest", m != nil, "lockfile", rawLock != nil)

	for _, name := range declared.Removed {
		if !hasName(old.Keys(), name) {
			logger.Warn("package is not installed", "package", name)
		}
	}

	// Stage 2: diff
	var changes Changes
	_ = stage(ctx, "diff", len(declared.Keys), func() error {
		changes = Diff(declared, old.Keys())
		return nil
	})
	report.Removed = changes.Removed.Sorted()
	report.Retained = changes.Retained.Sorted()
	logger.Debug("computed changes",
		"changed", len(changes.Changed),
		"removed", len(changes.Removed),
		"retained", len(changes.Retained))

	// Stage 3: resolve
	var resolved []Resolved
	if len(changes.Changed) > 0 {
		err := stage(ctx, "resolve", len(changes.Changed), func() error {
			var err error
			resolved, err = ResolvePackages(ctx, p.Resolver, changes.Changed)
			return err
		})
		if err != nil {
			return report, err
		}
		for _, r := range resolved {
			logger.Debug("resolved package", "key", r.Key, "url", r.DownloadURL)
		}
	}

	// Stage 4: install
	added := make(lockfile.Packages, len(resolved))
	if len(resolved) > 0 {
		var installed []*Installed
		err := stage(ctx, "install", len(resolved), func() error {
			var err error
			installed, err = InstallPackages(ctx, p.Installer, resolved, p.Dir, p.Concurrency)
			return err
		})
		report.Installed = len(installed)
		if err != nil {
			return report, err
		}
		for _, inst := range installed {
			pkg, err := LockfilePackage(inst)
			if err != nil {
				return report, err
			}
			added[inst.Key] = pkg
			report.Added = append(report.Added, inst.Key)
			logger.Info("installed package", "package", inst.Key.Name, "version", inst.Key.Version)
		}
	}

	// Stage 5: merge
	var (
		merged lockfile.Packages
		data   []byte
	)
	err = stage(ctx, "merge", len(old)+len(added), func() error {
		merged = Merge(old, changes.Removed, added)
		var err error
		data, err = lockfile.Generate(merged)
		return err
	})
	if err != nil {
		return report, err
	}

	// Stage 6: persist
	err = stage(ctx, "persist", len(merged), func() error {
		// A project with no lockfile and nothing to lock stays without one.
		if !bytes.Equal(data, rawLock) && (rawLock != nil || len(merged) > 0) {
			if err := p.Lockfile.Write(data); err != nil {
				return fmt.Errorf("write %s: %w", lockfile.FileName, err)
			}
			report.LockfileWritten = true
		}
		if err := p.syncBinScripts(old, changes.Removed, merged); err != nil {
			return err
		}
		if m != nil && (len(opts.Add) > 0 || len(declared.Removed) > 0) {
			record := opts.Add
			if !declared.Declared {
				// The rewrite creates [dependencies]; everything still locked
				// goes into it so the next run does not remove it.
				record = append(merged.Keys().Sorted(), opts.Add...)
			}
			updated, err := manifest.UpdateDependencies(rawMan, recordedVersions(record, merged), declared.Removed)
			if err != nil {
				return err
			}
			if err := p.Manifest.Write(updated); err != nil {
				return fmt.Errorf("write %s: %w", manifest.FileName, err)
			}
			report.ManifestWritten = true
		}
		return nil
	})
	return report, err
}

// syncBinScripts deletes the shims of removed packages and rewrites those of
// every top-level command still installed.
func (p *Pipeline) syncBinScripts(old lockfile.Packages, removed packagekey.Set, merged lockfile.Packages) error {
	if p.Dir == "" {
		return nil
	}
	dir := BinDir(p.Dir)
	for k := range removed {
		for _, c := range old[k].Commands {
			if err := RemoveBinScript(dir, c.Name); err != nil {
				return fmt.Errorf("remove shim %s: %w", c.Name, err)
			}
		}
	}
	for _, k := range merged.Keys().Sorted() {
		for _, c := range merged[k].Commands {
			if !c.IsTopLevelDependency {
				continue
			}
			if err := WriteBinScript(dir, c.Name); err != nil {
				return fmt.Errorf("write shim %s: %w", c.Name, err)
			}
		}
	}
	return nil
}

// recordedVersions maps each command-line addition to the exact version now
// locked for it.
func recordedVersions(adds []packagekey.Key, merged lockfile.Packages) map[string]string {
	out := make(map[string]string, len(adds))
	for _, add := range adds {
		add = packagekey.Normalize(add)
		var best *semver.Version
		for k := range merged {
			if k.Name != add.Name {
				continue
			}
			v, err := semver.NewVersion(k.Version)
			if err != nil {
				continue
			}
			if best == nil || v.GreaterThan(best) {
				best = v
				out[add.Name] = k.Version
			}
		}
	}
	return out
}

func hasName(keys packagekey.Set, name string) bool {
	for k := range keys {
		if k.Name == name {
			return true
		}
	}
	return false
}

// stage runs fn between pipeline hook events.
func stage(ctx context.Context, name string, count int, fn func() error) error {
	hooks := observability.Pipeline()
	hooks.OnStageStart(ctx, name, count)
	start := time.Now()
	err := fn()
	hooks.OnStageComplete(ctx, name, count, time.Since(start), err)
	return err
}
