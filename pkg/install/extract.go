package install

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	wapmerrors "github.com/wasmerio/wapm-cli-sub000/pkg/errors"
)

// ErrArchiveTooLarge is returned when unpacked contents exceed the limit.
var ErrArchiveTooLarge = errors.New("archive exceeds size limit")

// extractArchive unpacks the gzip-compressed tar at archivePath into dest,
// which must not exist yet.
func extractArchive(archivePath, dest string, maxBytes int64) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gz.Close()

	if err := os.Mkdir(dest, 0o755); err != nil {
		return err
	}

	var total int64
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		name, err := entryPath(hdr.Name)
		if err != nil {
			return err
		}
		if name == "" {
			continue
		}
		target := filepath.Join(dest, filepath.FromSlash(name))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			remaining := maxBytes - total
			if hdr.Size > remaining {
				return fmt.Errorf("%w (%d bytes)", ErrArchiveTooLarge, maxBytes)
			}
			n, err := writeEntry(target, tr, hdr.Size, hdr.FileInfo().Mode().Perm())
			total += n
			if err != nil {
				return fmt.Errorf("extracting %s: %w", name, err)
			}
		default:
			// Links, devices and other special entries are skipped.
		}
	}
}

// entryPath cleans an archive entry name and rejects names that would land
// outside the destination. The archive root itself maps to "".
func entryPath(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return "", wapmerrors.New(wapmerrors.ErrCodeInvalidPath, "archive entry %q is absolute", name)
	}
	clean := path.Clean(name)
	if clean == "." {
		return "", nil
	}
	if err := wapmerrors.ValidatePath(clean); err != nil {
		return "", fmt.Errorf("archive entry %q: %w", name, err)
	}
	return clean, nil
}

func writeEntry(target string, r io.Reader, size int64, perm os.FileMode) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	if perm&0o600 == 0 {
		perm |= 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, io.LimitReader(r, size))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return n, err
}
