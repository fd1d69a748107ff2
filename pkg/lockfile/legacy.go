package lockfile

// The types in this file describe superseded schema generations. They are
// frozen: fix migration bugs in the upgrade functions, not here.

// V1 is a generation-1 lockfile.
type V1 struct {
	Modules  map[string]map[string]map[string]ModuleV1 `toml:"modules"`
	Commands map[string]CommandV1                      `toml:"commands"`
}

// ModuleV1 is a generation-1 module record. Source is the provenance of the
// package and Entry the wasm path relative to the project directory.
type ModuleV1 struct {
	Name           string `toml:"name"`
	PackageName    string `toml:"package_name"`
	PackageVersion string `toml:"package_version"`
	Source         string `toml:"source"`
	Resolved       string `toml:"resolved"`
	ABI            string `toml:"abi"`
	Entry          string `toml:"entry"`
}

// CommandV1 is a command record shared by generations 1 to 3.
type CommandV1 struct {
	Name                 string `toml:"name"`
	PackageName          string `toml:"package_name"`
	PackageVersion       string `toml:"package_version"`
	Module               string `toml:"module"`
	IsTopLevelDependency bool   `toml:"is_top_level_dependency"`
	MainArgs             string `toml:"main_args,omitempty"`
}

// V2 is a generation-2 lockfile: V1 with every package name namespaced.
type V2 struct {
	Modules  map[string]map[string]map[string]ModuleV2 `toml:"modules"`
	Commands map[string]CommandV2                      `toml:"commands"`
}

// ModuleV2 has the same fields as [ModuleV1].
type ModuleV2 ModuleV1

// CommandV2 has the same fields as [CommandV1].
type CommandV2 CommandV1

// V3 is a generation-3 lockfile: V2 with a root directory per module.
type V3 struct {
	Modules  map[string]map[string]map[string]ModuleV3 `toml:"modules"`
	Commands map[string]CommandV3                      `toml:"commands"`
}

// ModuleV3 adds Root, the package directory relative to the project.
type ModuleV3 struct {
	Name           string `toml:"name"`
	PackageName    string `toml:"package_name"`
	PackageVersion string `toml:"package_version"`
	Source         string `toml:"source"`
	Resolved       string `toml:"resolved"`
	ABI            string `toml:"abi"`
	Entry          string `toml:"entry"`
	Root           string `toml:"root"`
}

// CommandV3 has the same fields as [CommandV1].
type CommandV3 CommandV1
