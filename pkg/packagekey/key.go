package packagekey

import (
	"fmt"
	"strings"
)

// GlobalNamespace is the namespace assigned to registry packages declared
// without an explicit "<namespace>/" prefix.
const GlobalNamespace = "_"

// Kind discriminates the variants of a [Key].
type Kind uint8

const (
	// KindPackage is an exact registry package version.
	KindPackage Kind = iota
	// KindRange is a registry package with a semver requirement. Range keys
	// exist only before resolution and are never persisted.
	KindRange
	// KindLocal is a package on the local filesystem.
	KindLocal
	// KindGit is a package identified by a git URL.
	KindGit
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindPackage:
		return "package"
	case KindRange:
		return "range"
	case KindLocal:
		return "local"
	case KindGit:
		return "git"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Key identifies a dependency. The zero value is not a valid key.
//
// Field use depends on Kind:
//   - KindPackage: Name, Version (concrete semver)
//   - KindRange:   Name, Version (semver requirement, e.g. "^1.2")
//   - KindLocal:   Name holds the filesystem path
//   - KindGit:     Name holds the URL
type Key struct {
	Kind    Kind
	Name    string
	Version string
}

// NewExact returns a registry key for an exact version.
func NewExact(name, version string) Key {
	return Key{Kind: KindPackage, Name: name, Version: version}
}

// NewRange returns a registry key for a version requirement.
func NewRange(name, requirement string) Key {
	return Key{Kind: KindRange, Name: name, Version: requirement}
}

// NewLocal returns a key for a package at path.
func NewLocal(path string) Key {
	return Key{Kind: KindLocal, Name: path}
}

// NewGit returns a key for a package fetched from url.
func NewGit(url string) Key {
	return Key{Kind: KindGit, Name: url}
}

// IsRegistry reports whether the key names a registry package (exact or range).
func (k Key) IsRegistry() bool {
	return k.Kind == KindPackage || k.Kind == KindRange
}

// String renders the key the way users type it: "name@version" for registry
// keys, the bare path or URL otherwise.
func (k Key) String() string {
	switch k.Kind {
	case KindPackage, KindRange:
		return k.Name + "@" + k.Version
	default:
		return k.Name
	}
}

// Normalize qualifies bare registry package names with the global namespace.
// It is idempotent and leaves local and git keys untouched.
func Normalize(k Key) Key {
	if k.IsRegistry() {
		k.Name = NormalizeName(k.Name)
	}
	return k
}

// NormalizeName qualifies a bare package name with the global namespace:
// "foo" becomes "_/foo", while "_/foo" and "ns/foo" are returned unchanged.
func NormalizeName(name string) string {
	if name == "" || strings.Contains(name, "/") {
		return name
	}
	return GlobalNamespace + "/" + name
}

// SplitName splits a qualified name into namespace and package name.
// Bare names are reported in the global namespace.
func SplitName(name string) (namespace, pkg string) {
	if ns, n, ok := strings.Cut(name, "/"); ok {
		return ns, n
	}
	return GlobalNamespace, name
}

// Compare orders keys by kind, then name, then version, comparing strings
// lexicographically. It returns -1, 0 or +1.
func Compare(a, b Key) int {
	switch {
	case a.Kind != b.Kind:
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	case a.Name != b.Name:
		return strings.Compare(a.Name, b.Name)
	default:
		return strings.Compare(a.Version, b.Version)
	}
}
