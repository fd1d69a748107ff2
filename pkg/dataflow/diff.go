package dataflow

import (
	"github.com/Masterminds/semver/v3"

	"github.com/wasmerio/wapm-cli-sub000/pkg/manifest"
	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

// Changes is the outcome of comparing declared packages with locked ones.
type Changes struct {
	// Changed holds declared keys with no matching locked package. These
	// are resolved and installed.
	Changed packagekey.Set
	// Removed holds locked keys that are no longer wanted.
	Removed packagekey.Set
	// Retained holds locked keys kept as they are.
	Retained packagekey.Set
}

// Empty reports whether nothing needs to be resolved or removed.
func (c Changes) Empty() bool {
	return len(c.Changed) == 0 && len(c.Removed) == 0
}

// Diff compares the declared packages with the locked keys.
//
// An exact key is retained only if the same key is locked. A range key is
// retained if a locked version of the same package satisfies it; when
// several do, the highest is retained. Local and git keys are never
// retained. A package locked at one version and declared at another is
// both removed and changed.
//
// When no dependency table was declared, locked packages are kept unless
// they were explicitly removed or are being replaced by a changed key.
func Diff(declared manifest.Packages, locked packagekey.Set) Changes {
	byName := make(map[string][]packagekey.Key)
	for k := range locked {
		byName[k.Name] = append(byName[k.Name], k)
	}

	retained := packagekey.NewSet()
	satisfied := packagekey.NewSet()
	for k := range declared.Keys {
		if match, ok := lockedMatch(k, locked, byName[k.Name]); ok {
			retained.Add(match)
			satisfied.Add(k)
		}
	}
	changed := declared.Keys.Difference(satisfied)

	if declared.Declared {
		for _, name := range declared.Removed {
			for _, k := range byName[name] {
				delete(retained, k)
			}
		}
		return Changes{
			Changed:  changed,
			Removed:  locked.Difference(retained),
			Retained: retained,
		}
	}

	drop := make(map[string]bool)
	for _, name := range declared.Removed {
		drop[name] = true
	}
	for k := range changed {
		if k.IsRegistry() {
			drop[k.Name] = true
		}
	}
	removed := packagekey.NewSet()
	for k := range locked {
		if drop[k.Name] && !retained.Has(k) {
			removed.Add(k)
		}
	}
	return Changes{
		Changed:  changed,
		Removed:  removed,
		Retained: locked.Difference(removed),
	}
}

// lockedMatch finds the locked key that satisfies a declared key.
func lockedMatch(k packagekey.Key, locked packagekey.Set, candidates []packagekey.Key) (packagekey.Key, bool) {
	switch k.Kind {
	case packagekey.KindPackage:
		return k, locked.Has(k)
	case packagekey.KindRange:
		c, err := semver.NewConstraint(k.Version)
		if err != nil {
			return packagekey.Key{}, false
		}
		var best packagekey.Key
		var bestVersion *semver.Version
		for _, cand := range candidates {
			if cand.Kind != packagekey.KindPackage {
				continue
			}
			v, err := semver.NewVersion(cand.Version)
			if err != nil || !c.Check(v) {
				continue
			}
			if bestVersion == nil || v.GreaterThan(bestVersion) {
				best, bestVersion = cand, v
			}
		}
		return best, bestVersion != nil
	default:
		return packagekey.Key{}, false
	}
}
