package registry

import (
	"context"

	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

const getPackageQuery = `query GetPackage($name: String!) {
  getPackage(name: $name) {
    name
    versions {
      version
      distribution {
        downloadUrl
      }
    }
  }
}`

// Package is a registry package with its published versions.
type Package struct {
	Name     string    `json:"name"`
	Versions []Version `json:"versions"`
}

// Version is one published release.
type Version struct {
	Version      string       `json:"version"`
	Distribution Distribution `json:"distribution"`
}

// Distribution locates the release archive.
type Distribution struct {
	DownloadURL string `json:"downloadUrl"`
}

// GetPackage fetches the published versions of name. It returns nil and no
// error when the registry has no such package.
func (c *Client) GetPackage(ctx context.Context, name string, refresh bool) (*Package, error) {
	name = packagekey.NormalizeName(name)

	var pkg *Package
	err := c.Cached(ctx, "registry:"+name, refresh, &pkg, func() error {
		var data struct {
			GetPackage *Package `json:"getPackage"`
		}
		if err := c.Query(ctx, getPackageQuery, map[string]any{"name": queryName(name)}, &data); err != nil {
			return err
		}
		pkg = data.GetPackage
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

// queryName is the form the registry indexes names under: global-namespace
// packages are bare.
func queryName(name string) string {
	if ns, pkg := packagekey.SplitName(name); ns == packagekey.GlobalNamespace {
		return pkg
	}
	return name
}
