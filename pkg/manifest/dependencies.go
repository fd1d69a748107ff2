package manifest

import (
	stderrors "errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/wasmerio/wapm-cli-sub000/pkg/errors"
	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

// ErrDependencyVersionMustBeString matches every [DependencyVersionMustBeStringError].
var ErrDependencyVersionMustBeString = stderrors.New("dependency version must be a string")

// DependencyVersionMustBeStringError reports a [dependencies] value that is
// a table, array, number or boolean instead of a version string.
type DependencyVersionMustBeStringError struct {
	Name  string
	Value any
}

func (e *DependencyVersionMustBeStringError) Error() string {
	return fmt.Sprintf("dependency %q: version must be a string, got %T", e.Name, e.Value)
}

func (e *DependencyVersionMustBeStringError) Is(target error) bool {
	return target == ErrDependencyVersionMustBeString
}

const (
	localPrefix = "file:"
	gitPrefix   = "git+"
)

// ParseDependency converts one [dependencies] entry into a normalized key.
//
// Value forms:
//   - "1.0.0"                  exact registry version
//   - "^1", "~1.2", "*", ">=1" registry version range
//   - "file:<path>"            local package
//   - "git+<url>"              git package
func ParseDependency(name string, value any) (packagekey.Key, error) {
	s, ok := value.(string)
	if !ok {
		return packagekey.Key{}, &DependencyVersionMustBeStringError{Name: name, Value: value}
	}
	switch {
	case strings.HasPrefix(s, localPrefix):
		return packagekey.NewLocal(strings.TrimPrefix(s, localPrefix)), nil
	case strings.HasPrefix(s, gitPrefix):
		return packagekey.NewGit(strings.TrimPrefix(s, gitPrefix)), nil
	}
	if err := errors.ValidatePackageName(name); err != nil {
		return packagekey.Key{}, err
	}
	return parseVersioned(name, s)
}

func parseVersioned(name, version string) (packagekey.Key, error) {
	version = strings.TrimSpace(version)
	if _, err := semver.StrictNewVersion(version); err == nil {
		return packagekey.Normalize(packagekey.NewExact(name, version)), nil
	}
	if _, err := semver.NewConstraint(version); err == nil {
		return packagekey.Normalize(packagekey.NewRange(name, version)), nil
	}
	return packagekey.Key{}, errors.New(errors.ErrCodeInvalidManifest,
		"dependency %q: invalid version %q", name, version)
}

// Packages is the declared dependency set of a project.
type Packages struct {
	// Declared is false when the manifest is absent or has no
	// [dependencies] table. Keys then holds only command-line additions.
	Declared bool
	Keys     packagekey.Set
	// Removed holds normalized names the user asked to uninstall. They are
	// matched against the lockfile by name only.
	Removed []string
}

// NewPackages extracts the dependency keys of m. A nil manifest yields an
// undeclared, empty set. Entries are checked in name order so the first
// reported error is deterministic.
func NewPackages(m *Manifest) (Packages, error) {
	p := Packages{Keys: packagekey.NewSet()}
	if !m.HasDependencies() {
		return p, nil
	}
	p.Declared = true

	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		key, err := ParseDependency(name, m.Dependencies[name])
		if err != nil {
			return Packages{}, err
		}
		p.Keys.Add(key)
	}
	return p, nil
}

// Add inserts keys, replacing any declared key for the same package name.
func (p *Packages) Add(keys ...packagekey.Key) {
	if p.Keys == nil {
		p.Keys = packagekey.NewSet()
	}
	for _, k := range keys {
		k = packagekey.Normalize(k)
		for existing := range p.Keys {
			if existing.IsRegistry() && existing.Name == k.Name {
				delete(p.Keys, existing)
			}
		}
		p.Keys.Add(k)
	}
}

// Remove drops the named packages from the declared set and records them
// for lockfile removal. Names carrying a version qualifier are rejected and
// leave p unchanged.
func (p *Packages) Remove(args ...string) error {
	names := make([]string, 0, len(args))
	for _, arg := range args {
		name, err := ParseRemovalArg(arg)
		if err != nil {
			return err
		}
		names = append(names, name)
	}
	for _, name := range names {
		for k := range p.Keys {
			if k.IsRegistry() && k.Name == name {
				delete(p.Keys, k)
			}
		}
		if !slices.Contains(p.Removed, name) {
			p.Removed = append(p.Removed, name)
		}
	}
	return nil
}

// ParsePackageArg parses an install argument of the form
// "name", "name@version" or "name@range". A bare name means the latest
// published version.
func ParsePackageArg(arg string) (packagekey.Key, error) {
	name, version, hasVersion := strings.Cut(arg, "@")
	if err := errors.ValidatePackageName(name); err != nil {
		return packagekey.Key{}, err
	}
	if !hasVersion {
		return packagekey.Normalize(packagekey.NewRange(name, "*")), nil
	}
	if version == "" {
		return packagekey.Key{}, errors.New(errors.ErrCodeInvalidInput, "package %q: empty version after @", name)
	}
	key, err := parseVersioned(name, version)
	if err != nil {
		return packagekey.Key{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "package argument %q", arg)
	}
	return key, nil
}

// ParseRemovalArg validates an uninstall argument and returns the
// normalized package name. Removal is version-agnostic, so "name@version"
// is an error.
func ParseRemovalArg(arg string) (string, error) {
	if strings.Contains(arg, "@") {
		return "", errors.New(errors.ErrCodeInvalidInput,
			"cannot uninstall %q: give the package name without a version", arg)
	}
	if err := errors.ValidatePackageName(arg); err != nil {
		return "", err
	}
	return packagekey.NormalizeName(arg), nil
}
