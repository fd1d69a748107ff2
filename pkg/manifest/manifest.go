package manifest

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/wasmerio/wapm-cli-sub000/pkg/errors"
)

// FileName is the manifest file name inside a project or package directory.
const FileName = "wapm.toml"

// Manifest is a decoded wapm.toml.
type Manifest struct {
	Package      *Package          `toml:"package"`
	Dependencies map[string]any    `toml:"dependencies"`
	Modules      []Module          `toml:"module"`
	Commands     []Command         `toml:"command"`
	FS           map[string]string `toml:"fs"`

	// declared records whether a [dependencies] table was present, which
	// is distinct from an empty one.
	declared bool
}

// Package is the [package] table.
type Package struct {
	Name                           string `toml:"name"`
	Version                        string `toml:"version"`
	Description                    string `toml:"description,omitempty"`
	License                        string `toml:"license,omitempty"`
	LicenseFile                    string `toml:"license-file,omitempty"`
	Readme                         string `toml:"readme,omitempty"`
	Repository                     string `toml:"repository,omitempty"`
	Homepage                       string `toml:"homepage,omitempty"`
	WasmerExtraFlags               string `toml:"wasmer-extra-flags,omitempty"`
	DisableCommandRename           bool   `toml:"disable-command-rename,omitempty"`
	RenameCommandsToRawCommandName bool   `toml:"rename-commands-to-raw-command-name,omitempty"`
}

// Module is one [[module]] entry.
type Module struct {
	Name       string            `toml:"name"`
	Source     string            `toml:"source"`
	ABI        ABI               `toml:"abi,omitempty"`
	Kind       string            `toml:"kind,omitempty"`
	Interfaces map[string]string `toml:"interfaces,omitempty"`
}

// Command is one [[command]] entry.
type Command struct {
	Name     string `toml:"name"`
	Module   string `toml:"module"`
	MainArgs string `toml:"main_args,omitempty"`
	// Package overrides the owning package as "<name> <version>".
	Package string `toml:"package,omitempty"`
}

// PackageOverride parses the command's package override. ok is false when
// no override is set.
func (c Command) PackageOverride() (name, version string, ok bool, err error) {
	if c.Package == "" {
		return "", "", false, nil
	}
	fields := strings.Fields(c.Package)
	if len(fields) != 2 {
		return "", "", false, errors.New(errors.ErrCodeInvalidManifest,
			"command %q: package override %q must be \"<name> <version>\"", c.Name, c.Package)
	}
	return fields[0], fields[1], true, nil
}

// Parse decodes and validates manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&m)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "decode %s", FileName)
	}
	m.declared = md.IsDefined("dependencies")
	for i := range m.Modules {
		if m.Modules[i].ABI == "" {
			m.Modules[i].ABI = ABINone
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// HasDependencies reports whether the manifest declares a [dependencies]
// table, even an empty one.
func (m *Manifest) HasDependencies() bool { return m != nil && m.declared }

// Validate checks the package identity and the module/command structure.
func (m *Manifest) Validate() error {
	if p := m.Package; p != nil {
		if err := errors.ValidatePackageName(p.Name); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidManifest, err, "package name")
		}
		if _, err := semver.StrictNewVersion(p.Version); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidManifest, err, "package %s: version %q", p.Name, p.Version)
		}
	}

	modules := make(map[string]bool, len(m.Modules))
	for _, mod := range m.Modules {
		if mod.Name == "" {
			return errors.New(errors.ErrCodeInvalidManifest, "module with empty name")
		}
		if modules[mod.Name] {
			return errors.New(errors.ErrCodeInvalidManifest, "duplicate module %q", mod.Name)
		}
		modules[mod.Name] = true
	}

	commands := make(map[string]bool, len(m.Commands))
	for _, cmd := range m.Commands {
		if cmd.Name == "" {
			return errors.New(errors.ErrCodeInvalidManifest, "command with empty name")
		}
		if commands[cmd.Name] {
			return errors.New(errors.ErrCodeInvalidManifest, "duplicate command %q", cmd.Name)
		}
		commands[cmd.Name] = true
		if !modules[cmd.Module] {
			return errors.New(errors.ErrCodeInvalidManifest, "command %q references unknown module %q", cmd.Name, cmd.Module)
		}
		if _, _, _, err := cmd.PackageOverride(); err != nil {
			return err
		}
	}
	return nil
}
