// Package install downloads and unpacks registry packages into a project.
//
// A package lands in <project>/wapm_packages/<namespace>/<name>@<version>.
// [Installer.Install] runs four stages, and a failure in any of them is an
// [*Error] naming the package and the stage:
//
//   - create-dir: prepare wapm_packages
//   - download: stream the archive to a temp file, bounded by a timeout
//   - extract: unpack the gzip-compressed tar into a staging directory,
//     then move it into place
//   - manifest: load the package's own wapm.toml
//
// Extraction refuses absolute paths and entries escaping the package
// directory, ignores links and devices, and stops once the unpacked size
// passes the configured limit. Because the package is unpacked into a
// uniquely named staging directory and renamed at the end, a failed install
// never leaves a half-populated package directory behind.
package install
