package dataflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/wasmerio/wapm-cli-sub000/pkg/lockfile"
	"github.com/wasmerio/wapm-cli-sub000/pkg/manifest"
	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

// fakeResolver answers from an in-memory version list.
type fakeResolver struct {
	mu        sync.Mutex
	published map[string][]string
	calls     int
	requested []packagekey.Key
	err       error
}

func newFakeResolver(published map[string][]string) *fakeResolver {
	return &fakeResolver{published: published}
}

func (f *fakeResolver) Resolve(_ context.Context, keys []packagekey.Key) ([]Resolved, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requested = append(f.requested, keys...)
	if f.err != nil {
		return nil, f.err
	}

	var out []Resolved
	for _, k := range keys {
		versions := f.published[k.Name]
		switch k.Kind {
		case packagekey.KindPackage:
			for _, v := range versions {
				if v == k.Version {
					out = append(out, Resolved{Key: k, DownloadURL: archiveURL(k.Name, v)})
				}
			}
		case packagekey.KindRange:
			c, err := semver.NewConstraint(k.Version)
			if err != nil {
				continue
			}
			var best *semver.Version
			for _, v := range versions {
				sv := semver.MustParse(v)
				if c.Check(sv) && (best == nil || sv.GreaterThan(best)) {
					best = sv
				}
			}
			if best != nil {
				out = append(out, Resolved{
					Key:         packagekey.NewExact(k.Name, best.Original()),
					DownloadURL: archiveURL(k.Name, best.Original()),
				})
			}
		}
	}
	return out, nil
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func archiveURL(name, version string) string {
	return fmt.Sprintf("https://registry.test/%s-%s.tar.gz", name, version)
}

// fakeInstaller writes a one-module package named after the key.
type fakeInstaller struct {
	mu    sync.Mutex
	calls int
	fail  map[string]error
	// bare lists packages whose manifest declares no modules.
	bare map[string]bool
}

func (f *fakeInstaller) Install(_ context.Context, key packagekey.Key, url, baseDir string) (*Installed, error) {
	f.mu.Lock()
	f.calls++
	err := f.fail[key.Name]
	bare := f.bare[key.Name]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	_, short := packagekey.SplitName(key.Name)
	dir := filepath.Join(baseDir, lockfile.PackagesDir, filepath.FromSlash(lockfile.PackagePath(key.Name, key.Version)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, short+".wasm"), []byte("\x00asm"+key.Version), 0o644); err != nil {
		return nil, err
	}
	if bare {
		return &Installed{
			Key:         key,
			Dir:         dir,
			DownloadURL: url,
			Manifest:    &manifest.Manifest{Package: &manifest.Package{Name: key.Name, Version: key.Version}},
		}, nil
	}
	return &Installed{
		Key:         key,
		Dir:         dir,
		DownloadURL: url,
		Manifest: &manifest.Manifest{
			Package:  &manifest.Package{Name: key.Name, Version: key.Version},
			Modules:  []manifest.Module{{Name: short, Source: short + ".wasm", ABI: manifest.ABIWASI}},
			Commands: []manifest.Command{{Name: short, Module: short}},
		},
	}, nil
}

func (f *fakeInstaller) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
