package registry

import (
	"github.com/Masterminds/semver/v3"

	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

// SelectVersion picks the release of pkg that answers key. An exact key
// needs a release with an equal version; a range key takes the highest
// release satisfying the range, by semver order. Releases with unparseable
// versions are ignored. ok is false when nothing matches or when pkg is
// a different package than key names.
func SelectVersion(pkg *Package, key packagekey.Key) (Version, bool) {
	if pkg == nil || packagekey.NormalizeName(pkg.Name) != packagekey.NormalizeName(key.Name) {
		return Version{}, false
	}

	switch key.Kind {
	case packagekey.KindPackage:
		want, err := semver.NewVersion(key.Version)
		if err != nil {
			return Version{}, false
		}
		for _, v := range pkg.Versions {
			if got, err := semver.NewVersion(v.Version); err == nil && got.Equal(want) {
				return v, true
			}
		}
		return Version{}, false

	case packagekey.KindRange:
		c, err := semver.NewConstraint(key.Version)
		if err != nil {
			return Version{}, false
		}
		var best Version
		var bestVersion *semver.Version
		for _, v := range pkg.Versions {
			sv, err := semver.NewVersion(v.Version)
			if err != nil || !c.Check(sv) {
				continue
			}
			if bestVersion == nil || sv.GreaterThan(bestVersion) {
				best, bestVersion = v, sv
			}
		}
		return best, bestVersion != nil

	default:
		return Version{}, false
	}
}
