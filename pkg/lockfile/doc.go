// Package lockfile reads, migrates and generates wapm.lock files.
//
// # Schema Generations
//
// A lockfile starts with a "# Lockfile v<N>" comment line. That line is the
// only way the schema generation is detected: a missing or unknown tag is an
// error, never a silent default. Four generations exist:
//
//   - v1: modules carry an entry path relative to the project; global
//     namespace packages may be named without the "_/" prefix
//   - v2: every package name is namespaced
//   - v3: modules also record their root directory
//   - v4: modules record package_path and a source path relative to it,
//     plus an optional cached content hash
//
// Superseded generations are frozen as [V1], [V2] and [V3]. [Decode] reads
// any generation into a [Document], [Upgrade] moves one generation forward,
// and [Migrate] composes upgrades until the current [Lockfile] is reached.
// Each upgrade is total: every valid document of one generation produces a
// valid document of the next.
//
// # Packages
//
// [NewPackages] regroups a [Lockfile] into one [Package] per package key and
// checks that every command refers to a module of its package. [Generate]
// flattens [Packages] back and renders them with the current header.
package lockfile
