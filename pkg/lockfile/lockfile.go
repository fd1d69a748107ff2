package lockfile

import (
	"fmt"
	"os"

	"github.com/wasmerio/wapm-cli-sub000/pkg/manifest"
)

// FileName is the lockfile name inside a project directory.
const FileName = "wapm.lock"

// PackagesDir is the directory, relative to the project, that holds
// installed packages.
const PackagesDir = "wapm_packages"

// Lockfile is the current (v4) lockfile document.
//
// Modules is keyed by package name, then version, then module name.
// Commands is keyed by command name, which is unique per lockfile.
type Lockfile struct {
	Modules  map[string]map[string]map[string]Module `toml:"modules"`
	Commands map[string]Command                      `toml:"commands"`
}

// Module is the installation record of one wasm module.
type Module struct {
	Name           string `toml:"name"`
	PackageName    string `toml:"package_name"`
	PackageVersion string `toml:"package_version"`
	// PackagePath is "<name>@<version>", the package directory below
	// wapm_packages.
	PackagePath string `toml:"package_path"`
	// Resolved is the download URL of the package archive.
	Resolved string `toml:"resolved"`
	// ResolvedSource tags provenance, e.g. "registry+<module>" or "local".
	ResolvedSource string       `toml:"resolved_source"`
	ABI            manifest.ABI `toml:"abi"`
	// Source is the wasm path relative to the package directory.
	Source string `toml:"source"`
	// PrehashedModuleKey caches the content hash computed at install time.
	PrehashedModuleKey string `toml:"prehashed_module_key,omitempty"`
}

// Command is the installation record of one runnable command.
type Command struct {
	Name                 string `toml:"name"`
	PackageName          string `toml:"package_name"`
	PackageVersion       string `toml:"package_version"`
	Module               string `toml:"module"`
	IsTopLevelDependency bool   `toml:"is_top_level_dependency"`
	MainArgs             string `toml:"main_args,omitempty"`
}

// Parse decodes a lockfile of any generation and migrates it to the current
// one.
func Parse(data []byte) (*Lockfile, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Migrate(doc), nil
}

// Load reads and parses the lockfile at path.
func Load(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	l, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// PackagePath returns the package directory name for name and version,
// relative to wapm_packages.
func PackagePath(name, version string) string {
	return name + "@" + version
}
