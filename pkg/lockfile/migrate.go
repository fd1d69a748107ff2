package lockfile

import (
	"bytes"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wasmerio/wapm-cli-sub000/pkg/errors"
	"github.com/wasmerio/wapm-cli-sub000/pkg/manifest"
	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

// Document is a lockfile of one schema generation: *[V1], *[V2], *[V3] or
// *[Lockfile].
type Document interface {
	SchemaVersion() int
}

func (*V1) SchemaVersion() int       { return 1 }
func (*V2) SchemaVersion() int       { return 2 }
func (*V3) SchemaVersion() int       { return 3 }
func (*Lockfile) SchemaVersion() int { return CurrentVersion }

// Decode detects the schema generation of data and decodes it into the
// matching document type without migrating.
func Decode(data []byte) (Document, error) {
	version, err := DetectVersion(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidLockfile, err, "read %s header", FileName)
	}

	var doc Document
	switch version {
	case 1:
		doc = &V1{}
	case 2:
		doc = &V2{}
	case 3:
		doc = &V3{}
	default:
		doc = &Lockfile{}
	}
	if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidLockfile, err, "decode %s v%d", FileName, version)
	}
	return doc, nil
}

// Encode renders doc with the header of its own generation. Maps are
// written in sorted key order, so equal documents encode identically.
func Encode(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(header(doc.SchemaVersion()))
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode %s", FileName)
	}
	return buf.Bytes(), nil
}

// Upgrade moves doc forward by one generation. The current generation is
// returned unchanged.
func Upgrade(doc Document) Document {
	switch d := doc.(type) {
	case *V1:
		return upgradeV1(d)
	case *V2:
		return upgradeV2(d)
	case *V3:
		return upgradeV3(d)
	default:
		return doc
	}
}

// Migrate upgrades doc to the current generation.
func Migrate(doc Document) *Lockfile {
	for {
		if l, ok := doc.(*Lockfile); ok {
			return l
		}
		doc = Upgrade(doc)
	}
}

// upgradeV1 namespaces bare package names in module keys and in the
// package_name of every module and command. Names are visited in sorted
// order so that if both "foo" and "_/foo" exist, the merge is deterministic.
func upgradeV1(d *V1) *V2 {
	out := &V2{Commands: make(map[string]CommandV2, len(d.Commands))}
	if d.Modules != nil {
		out.Modules = make(map[string]map[string]map[string]ModuleV2, len(d.Modules))
	}

	names := make([]string, 0, len(d.Modules))
	for name := range d.Modules {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		normalized := packagekey.NormalizeName(name)
		versions := out.Modules[normalized]
		if versions == nil {
			versions = make(map[string]map[string]ModuleV2)
			out.Modules[normalized] = versions
		}
		for version, modules := range d.Modules[name] {
			if versions[version] == nil {
				versions[version] = make(map[string]ModuleV2, len(modules))
			}
			for moduleName, m := range modules {
				m.PackageName = packagekey.NormalizeName(m.PackageName)
				versions[version][moduleName] = ModuleV2(m)
			}
		}
	}

	for name, c := range d.Commands {
		c.PackageName = packagekey.NormalizeName(c.PackageName)
		out.Commands[name] = CommandV2(c)
	}
	return out
}

// upgradeV2 derives each module's root directory from its package identity.
func upgradeV2(d *V2) *V3 {
	out := &V3{Commands: make(map[string]CommandV3, len(d.Commands))}
	if d.Modules != nil {
		out.Modules = make(map[string]map[string]map[string]ModuleV3, len(d.Modules))
	}
	for name, versions := range d.Modules {
		out.Modules[name] = make(map[string]map[string]ModuleV3, len(versions))
		for version, modules := range versions {
			out.Modules[name][version] = make(map[string]ModuleV3, len(modules))
			for moduleName, m := range modules {
				out.Modules[name][version][moduleName] = ModuleV3{
					Name:           m.Name,
					PackageName:    m.PackageName,
					PackageVersion: m.PackageVersion,
					Source:         m.Source,
					Resolved:       m.Resolved,
					ABI:            m.ABI,
					Entry:          m.Entry,
					Root:           path.Join(PackagesDir, PackagePath(m.PackageName, m.PackageVersion)),
				}
			}
		}
	}
	for name, c := range d.Commands {
		out.Commands[name] = CommandV3(c)
	}
	return out
}

// upgradeV3 replaces entry and root with package_path and a package-relative
// source. The old provenance moves to resolved_source and the content hash
// cache starts empty.
func upgradeV3(d *V3) *Lockfile {
	out := &Lockfile{Commands: make(map[string]Command, len(d.Commands))}
	if d.Modules != nil {
		out.Modules = make(map[string]map[string]map[string]Module, len(d.Modules))
	}
	for name, versions := range d.Modules {
		out.Modules[name] = make(map[string]map[string]Module, len(versions))
		for version, modules := range versions {
			out.Modules[name][version] = make(map[string]Module, len(modules))
			for moduleName, m := range modules {
				abi := manifest.ABI(m.ABI)
				if abi == "" {
					abi = manifest.ABINone
				}
				out.Modules[name][version][moduleName] = Module{
					Name:           m.Name,
					PackageName:    m.PackageName,
					PackageVersion: m.PackageVersion,
					PackagePath:    PackagePath(m.PackageName, m.PackageVersion),
					Resolved:       m.Resolved,
					ResolvedSource: m.Source,
					ABI:            abi,
					Source:         relativeSource(m.Entry, m.Root, m.PackageVersion),
				}
			}
		}
	}
	for name, c := range d.Commands {
		out.Commands[name] = Command(c)
	}
	return out
}

// relativeSource makes a project-relative entry path relative to the
// package directory. Entries outside root fall back to the text after the
// "@<version>/" segment, and failing that are kept as written.
func relativeSource(entry, root, version string) string {
	entry = path.Clean(strings.ReplaceAll(entry, "\\", "/"))
	if rest, ok := strings.CutPrefix(entry, path.Clean(root)+"/"); ok {
		return rest
	}
	if _, rest, ok := strings.Cut(entry, fmt.Sprintf("@%s/", version)); ok {
		return rest
	}
	return entry
}
