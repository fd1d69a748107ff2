package dataflow

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	wapmerrors "github.com/wasmerio/wapm-cli-sub000/pkg/errors"
	"github.com/wasmerio/wapm-cli-sub000/pkg/lockfile"
	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

const registrySourcePrefix = "registry+"

// LockfilePackage builds the lockfile record of an installed package from
// its manifest. Module hashes are computed here, once, and cached in the
// lockfile; a module whose file is missing gets no hash.
func LockfilePackage(inst *Installed) (lockfile.Package, error) {
	if inst.Manifest == nil {
		return lockfile.Package{}, wapmerrors.New(wapmerrors.ErrCodeInstallFailed, "%s: no manifest", inst.Key)
	}
	name, version := inst.Key.Name, inst.Key.Version

	var p lockfile.Package
	for _, m := range inst.Manifest.Modules {
		source := path.Clean(filepath.ToSlash(m.Source))
		if err := wapmerrors.ValidatePath(source); err != nil {
			return lockfile.Package{}, wapmerrors.Wrap(wapmerrors.ErrCodeInvalidManifest, err, "%s: module %q", inst.Key, m.Name)
		}
		hash, err := hashFile(filepath.Join(inst.Dir, filepath.FromSlash(source)))
		if err != nil {
			return lockfile.Package{}, wapmerrors.Wrap(wapmerrors.ErrCodeInstallFailed, err, "%s: hash module %q", inst.Key, m.Name)
		}
		p.Modules = append(p.Modules, lockfile.Module{
			Name:               m.Name,
			PackageName:        name,
			PackageVersion:     version,
			PackagePath:        lockfile.PackagePath(name, version),
			Resolved:           inst.DownloadURL,
			ResolvedSource:     registrySourcePrefix + m.Name,
			ABI:                m.ABI,
			Source:             source,
			PrehashedModuleKey: hash,
		})
	}

	for _, c := range inst.Manifest.Commands {
		cmdName, cmdVersion := name, version
		if n, v, ok, err := c.PackageOverride(); err != nil {
			return lockfile.Package{}, err
		} else if ok {
			cmdName, cmdVersion = packagekey.NormalizeName(n), v
		}
		p.Commands = append(p.Commands, lockfile.Command{
			Name:                 c.Name,
			PackageName:          cmdName,
			PackageVersion:       cmdVersion,
			Module:               c.Module,
			IsTopLevelDependency: true,
			MainArgs:             c.MainArgs,
		})
	}
	return p, nil
}

// hashFile returns the hex SHA-256 of the file at path, or "" if it does
// not exist.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
