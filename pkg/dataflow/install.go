package dataflow

import (
	"context"
	stderrors "errors"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wasmerio/wapm-cli-sub000/pkg/errors"
	"github.com/wasmerio/wapm-cli-sub000/pkg/manifest"
	"github.com/wasmerio/wapm-cli-sub000/pkg/observability"
	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

// DefaultConcurrency bounds parallel installs when none is configured.
const DefaultConcurrency = 8

// ErrNoModules is returned for an installed package whose manifest declares
// no modules. The lockfile records packages through their modules, so such
// a package could never be recorded as installed.
var ErrNoModules = stderrors.New("package declares no modules")

// Installer downloads and unpacks one resolved package below baseDir.
type Installer interface {
	Install(ctx context.Context, key packagekey.Key, downloadURL, baseDir string) (*Installed, error)
}

// Installed describes an unpacked package.
type Installed struct {
	Key         packagekey.Key
	Dir         string
	DownloadURL string
	Manifest    *manifest.Manifest
}

// InstallPackages installs every resolved package with at most concurrency
// installs in flight. A failed install does not stop the others: the
// successful results are returned in key order together with the joined
// errors of the failed ones, each attributed to its key.
func InstallPackages(ctx context.Context, inst Installer, resolved []Resolved, baseDir string, concurrency int) ([]*Installed, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]*Installed, len(resolved))
	errs := make([]error, len(resolved))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, res := range resolved {
		g.Go(func() error {
			start := time.Now()
			installed, err := inst.Install(ctx, res.Key, res.DownloadURL, baseDir)
			if err == nil {
				err = checkInstalled(installed)
			}
			observability.Pipeline().OnPackageInstalled(ctx, res.Key.String(), time.Since(start), err)
			if err != nil {
				errs[i] = errors.Wrap(errors.ErrCodeInstallFailed, err, "install %s", res.Key)
				return nil
			}
			results[i] = installed
			return nil
		})
	}
	_ = g.Wait()

	var out []*Installed
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b *Installed) int { return packagekey.Compare(a.Key, b.Key) })
	return out, stderrors.Join(errs...)
}

// checkInstalled rejects results that cannot be recorded in the lockfile.
func checkInstalled(inst *Installed) error {
	switch {
	case inst == nil:
		return stderrors.New("installer returned no result")
	case inst.Manifest == nil:
		return stderrors.New("installer returned no manifest")
	case len(inst.Manifest.Modules) == 0:
		return ErrNoModules
	}
	return nil
}
