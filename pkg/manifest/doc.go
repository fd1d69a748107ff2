// Package manifest reads and rewrites wapm.toml package manifests.
//
// A manifest has four parts:
//
//   - [package]: name, version and descriptive metadata
//   - [dependencies]: package name to version string
//   - [[module]] and [[command]]: the wasm modules a package ships and the
//     commands that run them
//   - [fs]: guest to host directory mappings
//
// # Declared Dependencies
//
// [NewPackages] extracts the declared dependency set as [packagekey.Key]
// values. Every name is normalized into its namespace exactly once, here, so
// later set operations compare like with like. A manifest without a
// [dependencies] table yields a [Packages] with Declared set to false, which
// downstream stages treat as "no changes" rather than "remove everything".
//
// Dependency values must be strings. Tables, arrays and numbers fail with
// [DependencyVersionMustBeStringError].
//
// # Command-Line Arguments
//
// [ParsePackageArg] and [ParseRemovalArg] turn install and uninstall
// arguments into keys and names using the same normalization.
package manifest
