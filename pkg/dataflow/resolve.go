package dataflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/wasmerio/wapm-cli-sub000/pkg/errors"
	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

// Resolver finds download URLs for package keys. Range keys resolve to
// the highest published version satisfying the range. Keys with no match
// are left out of the result; an error means the lookup itself failed.
type Resolver interface {
	Resolve(ctx context.Context, keys []packagekey.Key) ([]Resolved, error)
}

// Resolved is an exact package key with its archive URL.
type Resolved struct {
	Key         packagekey.Key
	DownloadURL string
}

// ResolveError lists every requested key the registry could not resolve.
type ResolveError struct {
	Unresolved []packagekey.Key
}

func (e *ResolveError) Error() string {
	parts := make([]string, len(e.Unresolved))
	for i, k := range e.Unresolved {
		parts[i] = k.String()
	}
	return "could not resolve " + strings.Join(parts, ", ")
}

// ResolvePackages resolves every key in changed. The result holds one entry
// per requested key, in key order. If any key is unresolved, the error wraps
// a [ResolveError] naming all of them.
func ResolvePackages(ctx context.Context, r Resolver, changed packagekey.Set) ([]Resolved, error) {
	requests := changed.Sorted()
	if len(requests) == 0 {
		return nil, nil
	}

	results, err := r.Resolve(ctx, requests)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeResolutionFailed, err, "query registry")
	}

	found := make(map[packagekey.Key]Resolved, len(results))
	for _, res := range results {
		res.Key = packagekey.Normalize(res.Key)
		if res.Key.Kind == packagekey.KindPackage {
			found[res.Key] = res
		}
	}

	var out []Resolved
	var unresolved []packagekey.Key
	seen := packagekey.NewSet()
	for _, req := range requests {
		res, ok := matchResolved(req, found)
		if !ok {
			unresolved = append(unresolved, req)
			continue
		}
		if !seen.Has(res.Key) {
			seen.Add(res.Key)
			out = append(out, res)
		}
	}
	if len(unresolved) > 0 {
		return nil, errors.Wrap(errors.ErrCodeResolutionFailed, &ResolveError{Unresolved: unresolved},
			"%d of %d packages", len(unresolved), len(requests))
	}
	return out, nil
}

// matchResolved picks the resolved entry answering req: the same key for
// exact requests, the highest satisfying version for ranges.
func matchResolved(req packagekey.Key, found map[packagekey.Key]Resolved) (Resolved, bool) {
	switch req.Kind {
	case packagekey.KindPackage:
		res, ok := found[req]
		return res, ok
	case packagekey.KindRange:
		c, err := semver.NewConstraint(req.Version)
		if err != nil {
			return Resolved{}, false
		}
		var best Resolved
		var bestVersion *semver.Version
		for key, res := range found {
			if key.Name != req.Name {
				continue
			}
			v, err := semver.NewVersion(key.Version)
			if err != nil || !c.Check(v) {
				continue
			}
			if bestVersion == nil || v.GreaterThan(bestVersion) {
				best, bestVersion = res, v
			}
		}
		return best, bestVersion != nil
	default:
		return Resolved{}, false
	}
}

func (r Resolved) String() string {
	return fmt.Sprintf("%s (%s)", r.Key, r.DownloadURL)
}
