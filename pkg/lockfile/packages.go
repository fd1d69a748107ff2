package lockfile

import (
	"fmt"
	"slices"
	"strings"

	"github.com/wasmerio/wapm-cli-sub000/pkg/errors"
	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

// Package is the installation record of one package version.
type Package struct {
	Modules  []Module
	Commands []Command
}

// Packages maps exact package keys to their installation records.
type Packages map[packagekey.Key]Package

// MissingModuleError reports a command whose module is not installed for
// the command's package. Lockfiles with this error are corrupt and are not
// repaired.
type MissingModuleError struct {
	Command        string
	Module         string
	PackageName    string
	PackageVersion string
}

func (e *MissingModuleError) Error() string {
	return fmt.Sprintf("command %q refers to module %q, which %s@%s does not provide",
		e.Command, e.Module, e.PackageName, e.PackageVersion)
}

// NewPackages groups the records of l by package key. Package names are
// normalized on the way in. Modules and commands are sorted by name.
func NewPackages(l *Lockfile) (Packages, error) {
	pkgs := make(Packages)
	if l == nil {
		return pkgs, nil
	}

	for name, versions := range l.Modules {
		for version, modules := range versions {
			key := packagekey.Normalize(packagekey.NewExact(name, version))
			p := pkgs[key]
			for _, m := range modules {
				m.PackageName = key.Name
				p.Modules = append(p.Modules, m)
			}
			pkgs[key] = p
		}
	}

	for _, c := range l.Commands {
		c.PackageName = packagekey.NormalizeName(c.PackageName)
		key := packagekey.NewExact(c.PackageName, c.PackageVersion)
		p, ok := pkgs[key]
		if !ok || !slices.ContainsFunc(p.Modules, func(m Module) bool { return m.Name == c.Module }) {
			return nil, errors.Wrap(errors.ErrCodeCorruptLockfile, &MissingModuleError{
				Command:        c.Name,
				Module:         c.Module,
				PackageName:    c.PackageName,
				PackageVersion: c.PackageVersion,
			}, "corrupt %s", FileName)
		}
		p.Commands = append(p.Commands, c)
		pkgs[key] = p
	}

	for key, p := range pkgs {
		p.sort()
		pkgs[key] = p
	}
	return pkgs, nil
}

func (p *Package) sort() {
	slices.SortFunc(p.Modules, func(a, b Module) int { return strings.Compare(a.Name, b.Name) })
	slices.SortFunc(p.Commands, func(a, b Command) int { return strings.Compare(a.Name, b.Name) })
}

// Keys returns the set of package keys.
func (p Packages) Keys() packagekey.Set {
	s := make(packagekey.Set, len(p))
	for k := range p {
		s.Add(k)
	}
	return s
}

// Lockfile flattens p into the on-disk document shape. Command names must
// be unique across packages, and every command must refer to a module of
// the package it names.
func (p Packages) Lockfile() (*Lockfile, error) {
	l := &Lockfile{}
	owner := make(map[string]packagekey.Key)

	for _, key := range p.Keys().Sorted() {
		for _, m := range p[key].Modules {
			if l.Modules == nil {
				l.Modules = make(map[string]map[string]map[string]Module)
			}
			versions := l.Modules[key.Name]
			if versions == nil {
				versions = make(map[string]map[string]Module)
				l.Modules[key.Name] = versions
			}
			if versions[key.Version] == nil {
				versions[key.Version] = make(map[string]Module)
			}
			versions[key.Version][m.Name] = m
		}
	}

	for _, key := range p.Keys().Sorted() {
		for _, c := range p[key].Commands {
			if prev, ok := owner[c.Name]; ok {
				return nil, errors.New(errors.ErrCodeInvalidLockfile,
					"command %q is provided by both %s and %s", c.Name, prev, key)
			}
			if _, ok := l.Modules[c.PackageName][c.PackageVersion][c.Module]; !ok {
				return nil, errors.Wrap(errors.ErrCodeCorruptLockfile, &MissingModuleError{
					Command:        c.Name,
					Module:         c.Module,
					PackageName:    c.PackageName,
					PackageVersion: c.PackageVersion,
				}, "generate %s", FileName)
			}
			owner[c.Name] = key
			if l.Commands == nil {
				l.Commands = make(map[string]Command)
			}
			l.Commands[c.Name] = c
		}
	}
	return l, nil
}

// Generate renders p as a current-generation lockfile. The whole document
// is built in memory; nothing is written.
func Generate(p Packages) ([]byte, error) {
	l, err := p.Lockfile()
	if err != nil {
		return nil, err
	}
	return Encode(l)
}
