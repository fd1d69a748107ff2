package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/wasmerio/wapm-cli-sub000/pkg/dataflow"
	wapmerrors "github.com/wasmerio/wapm-cli-sub000/pkg/errors"
	"github.com/wasmerio/wapm-cli-sub000/pkg/lockfile"
	"github.com/wasmerio/wapm-cli-sub000/pkg/manifest"
	"github.com/wasmerio/wapm-cli-sub000/pkg/observability"
	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
	"github.com/wasmerio/wapm-cli-sub000/pkg/registry/registrytest"
)

const appManifest = `[package]
name = "_/app"
version = "0.1.0"
`

// isolateConfig keeps tests away from the user's config and cache.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("WASMER_DIR", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	for _, k := range []string{"WAPM_REGISTRY_URL", "WAPM_CACHE_REDIS_URL", "WAPM_CACHE_DIR"} {
		t.Setenv(k, "")
	}
}

// execute runs the root command and returns what it wrote to its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func newRegistry(t *testing.T) *registrytest.Server {
	t.Helper()
	srv := registrytest.NewServer()
	t.Cleanup(srv.Close)
	srv.Publish("_/cowsay", "0.1.0", registrytest.PackageFiles("_/cowsay", "0.1.0"))
	srv.Publish("_/cowsay", "0.2.0", registrytest.PackageFiles("_/cowsay", "0.2.0"))
	return srv
}

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readLocked(t *testing.T, dir string) packagekey.Set {
	t.Helper()
	pkgs, raw, err := dataflow.ReadLockfile(dataflow.FileSource{Path: filepath.Join(dir, lockfile.FileName)})
	if err != nil {
		t.Fatalf("read lockfile: %v", err)
	}
	if raw != nil && !strings.HasPrefix(string(raw), lockfile.Header) {
		t.Errorf("lockfile does not start with the v4 header:\n%s", raw)
	}
	return pkgs.Keys()
}

func TestInstallFromManifest(t *testing.T) {
	isolateConfig(t)
	srv := newRegistry(t)
	dir := t.TempDir()
	writeManifest(t, dir, appManifest+"\n[dependencies]\n\"_/cowsay\" = \"0.1.0\"\n")

	if _, err := execute(t, "--dir", dir, "--registry", srv.GraphQLURL(), "--no-cache", "install"); err != nil {
		t.Fatalf("install: %v", err)
	}

	want := packagekey.NewExact("_/cowsay", "0.1.0")
	if locked := readLocked(t, dir); len(locked) != 1 || !locked.Has(want) {
		t.Errorf("locked = %v, want %v", locked.Sorted(), want)
	}
	if _, err := os.Stat(filepath.Join(dir, lockfile.PackagesDir, "_", "cowsay@0.1.0", "cowsay.wasm")); err != nil {
		t.Errorf("package not unpacked: %v", err)
	}
	if runtime.GOOS != "windows" {
		if _, err := os.Stat(filepath.Join(dataflow.BinDir(dir), "cowsay")); err != nil {
			t.Errorf("command shim missing: %v", err)
		}
	}

	out, err := execute(t, "--dir", dir, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "_/cowsay") || !strings.Contains(out, "0.1.0") {
		t.Errorf("list output missing package:\n%s", out)
	}
}

func TestInstallAndUninstallArgs(t *testing.T) {
	isolateConfig(t)
	srv := newRegistry(t)
	dir := t.TempDir()
	writeManifest(t, dir, appManifest)
	flags := []string{"--dir", dir, "--registry", srv.GraphQLURL(), "--no-cache"}

	if _, err := execute(t, append(flags, "install", "cowsay")...); err != nil {
		t.Fatalf("install: %v", err)
	}

	latest := packagekey.NewExact("_/cowsay", "0.2.0")
	if locked := readLocked(t, dir); !locked.Has(latest) {
		t.Errorf("locked = %v, want %v", locked.Sorted(), latest)
	}
	m, err := manifest.Load(filepath.Join(dir, manifest.FileName))
	if err != nil {
		t.Fatal(err)
	}
	declared, err := manifest.NewPackages(m)
	if err != nil {
		t.Fatal(err)
	}
	if !declared.Keys.Has(latest) {
		t.Errorf("manifest dependencies = %v, want the resolved version recorded", declared.Keys.Sorted())
	}

	if _, err := execute(t, append(flags, "uninstall", "cowsay")...); err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	if locked := readLocked(t, dir); len(locked) != 0 {
		t.Errorf("locked after uninstall = %v", locked.Sorted())
	}
	m, err = manifest.Load(filepath.Join(dir, manifest.FileName))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Dependencies) != 0 {
		t.Errorf("manifest dependencies after uninstall = %v", m.Dependencies)
	}
	if runtime.GOOS != "windows" {
		if _, err := os.Stat(filepath.Join(dataflow.BinDir(dir), "cowsay")); !os.IsNotExist(err) {
			t.Error("command shim not removed")
		}
	}
}

func TestCommandErrors(t *testing.T) {
	isolateConfig(t)
	srv := newRegistry(t)

	tests := []struct {
		name string
		args []string
		code wapmerrors.Code
	}{
		{"versioned uninstall", []string{"uninstall", "_/cowsay@0.1.0"}, wapmerrors.ErrCodeInvalidInput},
		{"unknown package", []string{"install", "_/nosuch@1.0.0"}, wapmerrors.ErrCodeResolutionFailed},
		{"bad registry url", []string{"--registry", "ftp://example.com", "update"}, wapmerrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			args := append([]string{"--dir", dir, "--registry", srv.GraphQLURL(), "--no-cache"}, tt.args...)
			_, err := execute(t, args...)
			if !wapmerrors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
			if _, statErr := os.Stat(filepath.Join(dir, lockfile.FileName)); !os.IsNotExist(statErr) {
				t.Error("lockfile written on failure")
			}
		})
	}
}

func TestListEmpty(t *testing.T) {
	isolateConfig(t)
	out, err := execute(t, "--dir", t.TempDir(), "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if out != "" {
		t.Errorf("list wrote a table for an empty project:\n%s", out)
	}
}

func TestCachePath(t *testing.T) {
	isolateConfig(t)
	cacheHome := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cacheHome)

	out, err := execute(t, "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := strings.TrimSpace(out), filepath.Join(cacheHome, appName); got != want {
		t.Errorf("cache path = %q, want %q", got, want)
	}

	if _, err := execute(t, "cache", "clear"); err != nil {
		t.Errorf("cache clear on missing dir: %v", err)
	}
}

func TestLogHooks(t *testing.T) {
	t.Cleanup(observability.Reset)

	var buf bytes.Buffer
	c := New(&buf, LogInfo)
	c.SetLogLevel(LogDebug)

	observability.Pipeline().OnStageStart(context.Background(), "resolve", 2)
	observability.Cache().OnCacheMiss(context.Background(), "registry:_/cowsay")
	observability.HTTP().OnResponse(context.Background(), "POST", "registry.wapm.io", "/graphql", 200, 0)

	for _, want := range []string{"stage started", "cache miss", "response"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestSetLogLevelInfoKeepsNoopHooks(t *testing.T) {
	observability.Reset()
	t.Cleanup(observability.Reset)

	c := New(io.Discard, LogDebug)
	c.SetLogLevel(log.InfoLevel)
	if _, ok := observability.Pipeline().(observability.NoopPipelineHooks); !ok {
		t.Error("info level should not register tracing hooks")
	}
}
