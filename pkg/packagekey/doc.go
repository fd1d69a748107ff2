// Package packagekey defines the identity of a wapm dependency.
//
// # Overview
//
// A [Key] names one of four kinds of dependency:
//
//   - [KindPackage]: an exact registry package (name + concrete version)
//   - [KindRange]: a registry package constrained by a semver requirement
//   - [KindLocal]: a package on the local filesystem
//   - [KindGit]: a package fetched from a git URL
//
// Keys are comparable values and can be used directly as map keys. A [Set]
// provides the set algebra used by the update pipeline.
//
// # Global Namespace
//
// Registry packages without an explicit namespace live in the global
// namespace "_". The bare name "foo" and the qualified name "_/foo" refer to
// the same package. [Normalize] rewrites bare names to their qualified form.
//
// Normalization must happen once, where keys enter the program (manifest
// dependency tables, lockfile package names, CLI arguments, registry
// responses). Comparison never normalizes, so a key that skipped
// normalization will not deduplicate against its qualified twin.
package packagekey
