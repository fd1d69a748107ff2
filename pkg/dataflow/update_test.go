package dataflow

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	wapmerrors "github.com/wasmerio/wapm-cli-sub000/pkg/errors"
	"github.com/wasmerio/wapm-cli-sub000/pkg/lockfile"
	"github.com/wasmerio/wapm-cli-sub000/pkg/manifest"
	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

type testProject struct {
	pipeline  *Pipeline
	manifest  *MemorySource
	lockfile  *MemorySource
	resolver  *fakeResolver
	installer *fakeInstaller
}

func newTestProject(t *testing.T, manifestSrc string, published map[string][]string) *testProject {
	t.Helper()
	var man *MemorySource
	if manifestSrc == "" {
		man = NewMemorySource(nil)
	} else {
		man = NewMemorySource([]byte(manifestSrc))
	}
	tp := &testProject{
		manifest:  man,
		lockfile:  NewMemorySource(nil),
		resolver:  newFakeResolver(published),
		installer: &fakeInstaller{},
	}
	tp.pipeline = &Pipeline{
		Dir:         t.TempDir(),
		Manifest:    tp.manifest,
		Lockfile:    tp.lockfile,
		Resolver:    tp.resolver,
		Installer:   tp.installer,
		Concurrency: 4,
		Logger:      log.New(&bytes.Buffer{}),
	}
	return tp
}

func (tp *testProject) update(t *testing.T, opts Options) *Report {
	t.Helper()
	report, err := tp.pipeline.Update(context.Background(), opts)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	return report
}

func (tp *testProject) lockedKeys(t *testing.T) packagekey.Set {
	t.Helper()
	l, err := lockfile.Parse(tp.lockfile.Bytes())
	if err != nil {
		t.Fatalf("parse lockfile: %v\n%s", err, tp.lockfile.Bytes())
	}
	pkgs, err := lockfile.NewPackages(l)
	if err != nil {
		t.Fatal(err)
	}
	return pkgs.Keys()
}

func (tp *testProject) shimExists(command string) bool {
	name, _ := binScript(command, runtime.GOOS)
	_, err := os.Stat(filepath.Join(BinDir(tp.pipeline.Dir), name))
	return err == nil
}

var published = map[string][]string{
	"_/foo": {"1.0.0", "1.1.0", "1.2.0", "2.0.0"},
	"_/bar": {"1.0.0"},
}

func TestUpdateFreshInstall(t *testing.T) {
	tp := newTestProject(t, "[dependencies]\n\"_/foo\" = \"1.0.0\"\n", published)

	report := tp.update(t, Options{})

	data := tp.lockfile.Bytes()
	if !bytes.HasPrefix(data, []byte("# Lockfile v4\n")) {
		t.Fatalf("lockfile header:\n%s", data)
	}
	assertSet(t, "locked", tp.lockedKeys(t), exact("_/foo", "1.0.0"))

	l, _ := lockfile.Parse(data)
	mod := l.Modules["_/foo"]["1.0.0"]["foo"]
	if mod.Source != "foo.wasm" || mod.PrehashedModuleKey == "" || mod.Resolved != archiveURL("_/foo", "1.0.0") {
		t.Errorf("module = %+v", mod)
	}
	if c := l.Commands["foo"]; c.Module != "foo" || !c.IsTopLevelDependency {
		t.Errorf("command = %+v", c)
	}

	if len(report.Added) != 1 || report.Installed != 1 || !report.LockfileWritten || report.ManifestWritten {
		t.Errorf("report = %+v", report)
	}
	if !tp.shimExists("foo") {
		t.Error("shim for foo not written")
	}
}

func TestUpdateIdempotent(t *testing.T) {
	tp := newTestProject(t, "[dependencies]\nfoo = \"1.0.0\"\nbar = \"^1\"\n", published)

	tp.update(t, Options{})
	first := tp.lockfile.Bytes()
	resolves, installs := tp.resolver.callCount(), tp.installer.callCount()

	report := tp.update(t, Options{})

	if !bytes.Equal(first, tp.lockfile.Bytes()) {
		t.Errorf("lockfile changed:\n%s\n---\n%s", first, tp.lockfile.Bytes())
	}
	if tp.resolver.callCount() != resolves || tp.installer.callCount() != installs {
		t.Error("second run made registry or install calls")
	}
	if tp.lockfile.Writes() != 1 {
		t.Errorf("lockfile written %d times, want 1", tp.lockfile.Writes())
	}
	if report.LockfileWritten || len(report.Retained) != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestUpdateVersionChange(t *testing.T) {
	tp := newTestProject(t, "[dependencies]\nfoo = \"1.0.0\"\n", published)
	tp.update(t, Options{})

	if err := tp.manifest.Write([]byte("[dependencies]\nfoo = \"1.1.0\"\n")); err != nil {
		t.Fatal(err)
	}
	report := tp.update(t, Options{})

	if len(report.Removed) != 1 || report.Removed[0] != exact("_/foo", "1.0.0") {
		t.Errorf("removed = %v", report.Removed)
	}
	if len(report.Added) != 1 || report.Added[0] != exact("_/foo", "1.1.0") {
		t.Errorf("added = %v", report.Added)
	}
	assertSet(t, "locked", tp.lockedKeys(t), exact("_/foo", "1.1.0"))
	if !tp.shimExists("foo") {
		t.Error("shim for foo missing after upgrade")
	}
}

func TestUpdateRemoveByName(t *testing.T) {
	tp := newTestProject(t, "[dependencies]\nfoo = \"2.0.0\"\nbar = \"1.0.0\"\n", published)
	tp.update(t, Options{})

	report := tp.update(t, Options{Remove: []string{"foo"}})

	assertSet(t, "locked", tp.lockedKeys(t), exact("_/bar", "1.0.0"))
	if len(report.Removed) != 1 || report.Removed[0] != exact("_/foo", "2.0.0") {
		t.Errorf("removed = %v", report.Removed)
	}
	if !report.ManifestWritten {
		t.Error("manifest not rewritten")
	}
	m, err := manifest.Parse(tp.manifest.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Dependencies["foo"]; ok || m.Dependencies["bar"] != "1.0.0" {
		t.Errorf("dependencies = %v", m.Dependencies)
	}
	if tp.shimExists("foo") {
		t.Error("shim for removed package still present")
	}
	if !tp.shimExists("bar") {
		t.Error("shim for retained package missing")
	}
}

func TestUpdateRemoveWithoutManifest(t *testing.T) {
	tp := newTestProject(t, "", published)
	tp.update(t, Options{Add: []packagekey.Key{exact("foo", "2.0.0"), exact("bar", "1.0.0")}})

	report := tp.update(t, Options{Remove: []string{"foo"}})

	assertSet(t, "locked", tp.lockedKeys(t), exact("_/bar", "1.0.0"))
	if report.ManifestWritten || tp.manifest.Bytes() != nil {
		t.Error("absent manifest was created")
	}
}

func TestUpdateRejectsVersionedRemoval(t *testing.T) {
	tp := newTestProject(t, "[dependencies]\nfoo = \"2.0.0\"\n", published)
	tp.update(t, Options{})
	before := tp.lockfile.Bytes()

	_, err := tp.pipeline.Update(context.Background(), Options{Remove: []string{"foo@2.0.0"}})
	if !wapmerrors.Is(err, wapmerrors.ErrCodeInvalidInput) {
		t.Fatalf("err = %v, want INVALID_INPUT", err)
	}
	if !bytes.Equal(before, tp.lockfile.Bytes()) || tp.lockfile.Writes() != 1 {
		t.Error("lockfile touched by rejected removal")
	}
}

func TestUpdateNonStringDependency(t *testing.T) {
	tp := newTestProject(t, "[dependencies]\nfoo = 1\n", published)

	_, err := tp.pipeline.Update(context.Background(), Options{})
	if !errors.Is(err, manifest.ErrDependencyVersionMustBeString) {
		t.Fatalf("err = %v, want ErrDependencyVersionMustBeString", err)
	}
	if tp.resolver.callCount() != 0 || tp.installer.callCount() != 0 {
		t.Error("network calls made after a parse error")
	}
}

func TestUpdateUnresolved(t *testing.T) {
	tp := newTestProject(t, "[dependencies]\nfoo = \"9.0.0\"\nghost = \"*\"\nbar = \"1.0.0\"\n", published)

	_, err := tp.pipeline.Update(context.Background(), Options{})
	var re *ResolveError
	if !errors.As(err, &re) || len(re.Unresolved) != 2 {
		t.Fatalf("err = %v, want ResolveError with 2 keys", err)
	}
	if tp.installer.callCount() != 0 {
		t.Error("installed after resolution failure")
	}
	if tp.lockfile.Bytes() != nil {
		t.Error("lockfile written after resolution failure")
	}
}

func TestUpdatePartialInstallFailure(t *testing.T) {
	tp := newTestProject(t, "[dependencies]\nfoo = \"1.0.0\"\nbar = \"1.0.0\"\n", published)
	tp.installer.fail = map[string]error{"_/bar": errors.New("download: 503")}

	report, err := tp.pipeline.Update(context.Background(), Options{})
	if !wapmerrors.Is(err, wapmerrors.ErrCodeInstallFailed) {
		t.Fatalf("err = %v, want INSTALL_FAILED", err)
	}
	if report.Installed != 1 || report.LockfileWritten {
		t.Errorf("report = %+v", report)
	}
	if tp.lockfile.Bytes() != nil {
		t.Error("lockfile written after install failure")
	}
}

func TestUpdateRange(t *testing.T) {
	tp := newTestProject(t, "[dependencies]\nfoo = \"^1\"\n", published)
	tp.update(t, Options{})
	assertSet(t, "locked", tp.lockedKeys(t), exact("_/foo", "1.2.0"))

	tp.update(t, Options{})
	if tp.resolver.callCount() != 1 {
		t.Errorf("range re-resolved: %d resolver calls", tp.resolver.callCount())
	}
}

func TestUpdateAddRecordsResolvedVersion(t *testing.T) {
	tp := newTestProject(t, "[package]\nname = \"app\"\nversion = \"0.1.0\"\n\n[dependencies]\nbar = \"1.0.0\"\n", published)

	add, err := manifest.ParsePackageArg("foo")
	if err != nil {
		t.Fatal(err)
	}
	report := tp.update(t, Options{Add: []packagekey.Key{add}})

	if !report.ManifestWritten {
		t.Fatal("manifest not rewritten")
	}
	m, err := manifest.Parse(tp.manifest.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if m.Dependencies["foo"] != "2.0.0" || m.Dependencies["bar"] != "1.0.0" {
		t.Errorf("dependencies = %v", m.Dependencies)
	}
	assertSet(t, "locked", tp.lockedKeys(t), exact("_/foo", "2.0.0"), exact("_/bar", "1.0.0"))
}

func TestUpdateMigratesLegacyLockfile(t *testing.T) {
	tp := newTestProject(t, "[dependencies]\nfoo = \"1.0.0\"\n", published)
	legacy := "# Lockfile v1\n" +
		"[modules.foo.\"1.0.0\".foo]\nname = \"foo\"\npackage_name = \"foo\"\npackage_version = \"1.0.0\"\n" +
		"source = \"registry+foo\"\nresolved = \"u\"\nabi = \"wasi\"\nentry = \"wapm_packages/foo@1.0.0/foo.wasm\"\n" +
		"[commands.foo]\nname = \"foo\"\npackage_name = \"foo\"\npackage_version = \"1.0.0\"\nmodule = \"foo\"\nis_top_level_dependency = true\n"
	tp.lockfile = NewMemorySource([]byte(legacy))
	tp.pipeline.Lockfile = tp.lockfile

	report := tp.update(t, Options{})

	if tp.installer.callCount() != 0 {
		t.Error("migrated package reinstalled")
	}
	if !report.LockfileWritten || !bytes.HasPrefix(tp.lockfile.Bytes(), []byte("# Lockfile v4")) {
		t.Errorf("lockfile not upgraded:\n%s", tp.lockfile.Bytes())
	}
	assertSet(t, "locked", tp.lockedKeys(t), exact("_/foo", "1.0.0"))
}

func TestUpdateNoManifestNoLockfile(t *testing.T) {
	tp := newTestProject(t, "", published)
	report := tp.update(t, Options{})
	if report.LockfileWritten || tp.lockfile.Bytes() != nil {
		t.Error("empty project got a lockfile")
	}
}

func TestUpdatePackageWithoutModules(t *testing.T) {
	tp := newTestProject(t, "[dependencies]\nfoo = \"1.0.0\"\nbar = \"1.0.0\"\n", published)
	tp.installer.bare = map[string]bool{"_/bar": true}

	for run := 1; run <= 2; run++ {
		_, err := tp.pipeline.Update(context.Background(), Options{})
		if !errors.Is(err, ErrNoModules) || !wapmerrors.Is(err, wapmerrors.ErrCodeInstallFailed) {
			t.Fatalf("run %d: err = %v, want INSTALL_FAILED wrapping ErrNoModules", run, err)
		}
		if !strings.Contains(err.Error(), "_/bar@1.0.0") {
			t.Errorf("run %d: error not attributed to _/bar: %v", run, err)
		}
	}
	if tp.lockfile.Bytes() != nil {
		t.Errorf("lockfile written for a package it cannot record:\n%s", tp.lockfile.Bytes())
	}
}

func TestUpdateAddWithoutDependenciesTableKeepsLocked(t *testing.T) {
	tp := newTestProject(t, "", published)
	tp.update(t, Options{Add: []packagekey.Key{exact("bar", "1.0.0")}})

	if err := tp.manifest.Write([]byte("[package]\nname = \"app\"\nversion = \"0.1.0\"\n")); err != nil {
		t.Fatal(err)
	}
	tp.update(t, Options{Add: []packagekey.Key{exact("foo", "1.0.0")}})

	m, err := manifest.Parse(tp.manifest.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if m.Dependencies["foo"] != "1.0.0" || m.Dependencies["bar"] != "1.0.0" {
		t.Errorf("dependencies = %v, want foo and the previously locked bar", m.Dependencies)
	}

	tp.update(t, Options{})
	assertSet(t, "locked", tp.lockedKeys(t), exact("_/foo", "1.0.0"), exact("_/bar", "1.0.0"))
}

func TestUpdateRemoveWithoutDependenciesTableKeepsLocked(t *testing.T) {
	tp := newTestProject(t, "", published)
	tp.update(t, Options{Add: []packagekey.Key{exact("foo", "2.0.0"), exact("bar", "1.0.0")}})

	if err := tp.manifest.Write([]byte("[package]\nname = \"app\"\nversion = \"0.1.0\"\n")); err != nil {
		t.Fatal(err)
	}
	tp.update(t, Options{Remove: []string{"foo"}})

	m, err := manifest.Parse(tp.manifest.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Dependencies["foo"]; ok || m.Dependencies["bar"] != "1.0.0" {
		t.Errorf("dependencies = %v, want only bar", m.Dependencies)
	}

	tp.update(t, Options{})
	assertSet(t, "locked", tp.lockedKeys(t), exact("_/bar", "1.0.0"))
}

func TestUpdateRejectsLocalAndGitDependencies(t *testing.T) {
	tests := []struct {
		name string
		deps string
	}{
		{"local", "lib = \"file:../lib\"\n"},
		{"git", "tool = \"git+https://github.com/example/tool.git\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := newTestProject(t, "[dependencies]\nfoo = \"1.0.0\"\n"+tt.deps, published)

			_, err := tp.pipeline.Update(context.Background(), Options{})
			if !wapmerrors.Is(err, wapmerrors.ErrCodeUnsupported) {
				t.Fatalf("err = %v, want UNSUPPORTED", err)
			}
			if tp.resolver.callCount() != 0 || tp.installer.callCount() != 0 {
				t.Error("registry or installer called for an unsupported dependency")
			}
			if tp.lockfile.Bytes() != nil {
				t.Error("lockfile written")
			}
		})
	}
}

func TestCheckInstallable(t *testing.T) {
	if err := CheckInstallable(packagekey.NewSet(exact("_/foo", "1.0.0"), packagekey.NewRange("_/bar", "^1"))); err != nil {
		t.Errorf("registry keys rejected: %v", err)
	}
	err := CheckInstallable(packagekey.NewSet(packagekey.NewLocal("../lib"), exact("_/foo", "1.0.0")))
	if !wapmerrors.Is(err, wapmerrors.ErrCodeUnsupported) || !strings.Contains(err.Error(), "../lib (local)") {
		t.Errorf("err = %v", err)
	}
}
