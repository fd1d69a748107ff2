package install

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/wasmerio/wapm-cli-sub000/pkg/dataflow"
	wapmerrors "github.com/wasmerio/wapm-cli-sub000/pkg/errors"
	"github.com/wasmerio/wapm-cli-sub000/pkg/httputil"
	"github.com/wasmerio/wapm-cli-sub000/pkg/lockfile"
	"github.com/wasmerio/wapm-cli-sub000/pkg/manifest"
	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

const (
	// DefaultDownloadTimeout bounds one archive download.
	DefaultDownloadTimeout = 2 * time.Minute
	// DefaultMaxArchiveBytes bounds both the download and the unpacked size.
	DefaultMaxArchiveBytes int64 = 512 << 20
)

// Installer unpacks registry archives into a project.
type Installer struct {
	HTTP            *http.Client
	DownloadTimeout time.Duration
	MaxArchiveBytes int64
	Logger          *log.Logger
}

// New returns an installer with default limits. If logger is nil,
// log.Default() is used.
func New(logger *log.Logger) *Installer {
	if logger == nil {
		logger = log.Default()
	}
	return &Installer{
		HTTP:            &http.Client{},
		DownloadTimeout: DefaultDownloadTimeout,
		MaxArchiveBytes: DefaultMaxArchiveBytes,
		Logger:          logger,
	}
}

// PackageDir returns the directory a package is installed into.
func PackageDir(baseDir string, key packagekey.Key) string {
	return filepath.Join(baseDir, lockfile.PackagesDir, filepath.FromSlash(lockfile.PackagePath(key.Name, key.Version)))
}

// Install downloads the archive at downloadURL and unpacks it as key below
// baseDir. A previous installation of the same key is replaced.
func (i *Installer) Install(ctx context.Context, key packagekey.Key, downloadURL, baseDir string) (*dataflow.Installed, error) {
	fail := func(stage Stage, err error) (*dataflow.Installed, error) {
		return nil, &Error{Key: key, Stage: stage, Err: err}
	}
	if key.Kind != packagekey.KindPackage {
		return fail(StageCreateDir, fmt.Errorf("not an exact registry package"))
	}
	if err := wapmerrors.ValidatePackageName(key.Name); err != nil {
		return fail(StageCreateDir, err)
	}

	root := filepath.Join(baseDir, lockfile.PackagesDir)
	dir := PackageDir(baseDir, key)
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fail(StageCreateDir, err)
	}

	archive, err := i.download(ctx, downloadURL, root)
	if err != nil {
		return fail(StageDownload, err)
	}
	defer os.Remove(archive)

	staging := filepath.Join(root, ".staging-"+uuid.NewString())
	if err := extractArchive(archive, staging, i.maxBytes()); err != nil {
		_ = os.RemoveAll(staging)
		return fail(StageExtract, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		_ = os.RemoveAll(staging)
		return fail(StageExtract, err)
	}
	if err := os.Rename(staging, dir); err != nil {
		_ = os.RemoveAll(staging)
		return fail(StageExtract, err)
	}

	m, err := manifest.Load(filepath.Join(dir, manifest.FileName))
	if err == nil && len(m.Modules) == 0 {
		err = dataflow.ErrNoModules
	}
	if err != nil {
		// An unusable package is not left behind as if it were installed.
		_ = os.RemoveAll(dir)
		return fail(StageManifest, err)
	}

	i.logger().Debug("unpacked package", "package", key, "dir", dir)
	return &dataflow.Installed{
		Key:         key,
		Dir:         dir,
		DownloadURL: downloadURL,
		Manifest:    m,
	}, nil
}

// download streams url into a temp file in dir and returns its path.
func (i *Installer) download(ctx context.Context, url, dir string) (_ string, err error) {
	if err := wapmerrors.ValidateURL(url); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	client := i.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	n, err := httputil.Download(ctx, client, url, tmp, i.timeout(), i.maxBytes())
	if err != nil {
		if errors.Is(err, httputil.ErrTooLarge) {
			return "", fmt.Errorf("%w: %w", ErrArchiveTooLarge, err)
		}
		if errors.Is(err, httputil.ErrTimeout) {
			return "", wapmerrors.Wrap(wapmerrors.ErrCodeTimeout, err, "download %s", url)
		}
		return "", wapmerrors.Wrap(wapmerrors.ErrCodeNetwork, err, "download %s", url)
	}
	i.logger().Debug("downloaded archive", "url", url, "bytes", n)
	return tmp.Name(), nil
}

func (i *Installer) timeout() time.Duration {
	if i.DownloadTimeout <= 0 {
		return DefaultDownloadTimeout
	}
	return i.DownloadTimeout
}

func (i *Installer) maxBytes() int64 {
	if i.MaxArchiveBytes <= 0 {
		return DefaultMaxArchiveBytes
	}
	return i.MaxArchiveBytes
}

func (i *Installer) logger() *log.Logger {
	if i.Logger == nil {
		return log.Default()
	}
	return i.Logger
}

var _ dataflow.Installer = (*Installer)(nil)
