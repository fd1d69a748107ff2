package dataflow

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	wapmerrors "github.com/wasmerio/wapm-cli-sub000/pkg/errors"
	"github.com/wasmerio/wapm-cli-sub000/pkg/lockfile"
	"github.com/wasmerio/wapm-cli-sub000/pkg/manifest"
	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

// ReadManifest reads and parses the manifest behind src. An absent manifest
// yields nil values and no error.
func ReadManifest(src Source) (*manifest.Manifest, []byte, error) {
	data, err := src.Read()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", manifest.FileName, err)
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	return m, data, nil
}

// ReadLockfile reads the lockfile behind src, migrates it to the current
// generation and groups it by package. An absent lockfile yields empty
// packages and nil data.
func ReadLockfile(src Source) (lockfile.Packages, []byte, error) {
	data, err := src.Read()
	if errors.Is(err, fs.ErrNotExist) {
		return lockfile.Packages{}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", lockfile.FileName, err)
	}
	l, err := lockfile.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	pkgs, err := lockfile.NewPackages(l)
	if err != nil {
		return nil, nil, err
	}
	return pkgs, data, nil
}

// CheckInstallable rejects local and git dependencies. They parse as package
// keys but nothing can resolve or install them.
func CheckInstallable(keys packagekey.Set) error {
	var unsupported []string
	for _, k := range keys.Sorted() {
		if !k.IsRegistry() {
			unsupported = append(unsupported, fmt.Sprintf("%s (%s)", k, k.Kind))
		}
	}
	if len(unsupported) > 0 {
		return wapmerrors.New(wapmerrors.ErrCodeUnsupported,
			"only registry dependencies can be installed: %s", strings.Join(unsupported, ", "))
	}
	return nil
}
