package dataflow

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/wasmerio/wapm-cli-sub000/pkg/lockfile"
)

// BinDirName is the directory below wapm_packages holding command shims.
const BinDirName = ".bin"

// BinDir returns the shim directory for the project at baseDir.
func BinDir(baseDir string) string {
	return filepath.Join(baseDir, lockfile.PackagesDir, BinDirName)
}

// binScript returns the shim file name and contents for command on goos.
func binScript(command, goos string) (string, []byte) {
	if goos == "windows" {
		return command + ".cmd", fmt.Appendf(nil, "@echo off\r\nwapm run %s %%*\r\n", command)
	}
	return command, fmt.Appendf(nil, "#!/bin/sh\nwapm run %s \"$@\"\n", command)
}

// WriteBinScript writes the shim that runs command through wapm.
func WriteBinScript(dir, command string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name, data := binScript(command, runtime.GOOS)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o755); err != nil {
		return err
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(path, 0o755)
}

// RemoveBinScript deletes the shim for command. A missing shim is not an
// error.
func RemoveBinScript(dir, command string) error {
	name, _ := binScript(command, runtime.GOOS)
	err := os.Remove(filepath.Join(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
