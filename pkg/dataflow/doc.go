// Package dataflow reconciles a project's manifest with its lockfile.
//
// An update runs as a sequence of stages:
//
//	manifest + lockfile → diff → resolve → install → merge → lockfile (+ manifest)
//
// Ingestion reads both documents through a [Source], so tests can replace
// the filesystem with a [MemorySource]. The diff stage ([Diff]) is pure set
// algebra over package keys. Resolution and installation go through the
// [Resolver] and [Installer] interfaces, which production code backs with
// the registry client and the archive installer. [Merge] combines retained
// and newly installed records with last-writer-wins per package key.
//
// # Failure Policy
//
// Parse errors stop the run before any network call. Unresolved packages are
// collected into one [ResolveError]. Installs run concurrently and fail per
// package: every failure is reported, and no lockfile is written if any
// install failed. The lockfile is generated fully in memory and written once.
//
// # Usage
//
//	p := dataflow.New(dir, resolver, installer, logger)
//	report, err := p.Update(ctx, dataflow.Options{})
package dataflow
