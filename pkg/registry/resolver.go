package registry

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/wasmerio/wapm-cli-sub000/pkg/dataflow"
	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

// defaultLookups bounds concurrent package lookups.
const defaultLookups = 8

// Resolver resolves package keys against a registry.
type Resolver struct {
	Client  *Client
	Refresh bool
	Logger  *log.Logger
}

// NewResolver creates a resolver backed by client. If logger is nil,
// log.Default() is used.
func NewResolver(client *Client, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{Client: client, Logger: logger}
}

// Resolve looks up each distinct package name once and selects a version
// for every key. Local and git keys, unknown packages and keys with no
// matching version are left out of the result. The first lookup failure
// cancels the rest and is returned.
func (r *Resolver) Resolve(ctx context.Context, keys []packagekey.Key) ([]dataflow.Resolved, error) {
	var names []string
	seen := make(map[string]bool)
	for _, k := range keys {
		if !k.IsRegistry() {
			r.logger().Debug("not a registry package", "key", k)
			continue
		}
		name := packagekey.NormalizeName(k.Name)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	var mu sync.Mutex
	packages := make(map[string]*Package, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultLookups)
	for _, name := range names {
		g.Go(func() error {
			pkg, err := r.Client.GetPackage(gctx, name, r.Refresh)
			if err != nil {
				return err
			}
			mu.Lock()
			packages[name] = pkg
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []dataflow.Resolved
	for _, k := range keys {
		if !k.IsRegistry() {
			continue
		}
		name := packagekey.NormalizeName(k.Name)
		pkg := packages[name]
		if pkg == nil {
			r.logger().Debug("package not found", "package", name)
			continue
		}
		v, ok := SelectVersion(pkg, k)
		if !ok {
			r.logger().Debug("no matching version", "key", k, "published", len(pkg.Versions))
			continue
		}
		out = append(out, dataflow.Resolved{
			Key:         packagekey.NewExact(name, v.Version),
			DownloadURL: v.Distribution.DownloadURL,
		})
	}
	return out, nil
}

func (r *Resolver) logger() *log.Logger {
	if r.Logger == nil {
		return log.Default()
	}
	return r.Logger
}

var _ dataflow.Resolver = (*Resolver)(nil)
