package dataflow

import (
	"github.com/wasmerio/wapm-cli-sub000/pkg/lockfile"
	"github.com/wasmerio/wapm-cli-sub000/pkg/packagekey"
)

// Merge combines the previous lockfile packages with newly installed ones.
// It starts from old, drops every key in removed, then inserts every entry
// of added, replacing same-key entries whole. The result does not depend on
// the order in which installs completed.
func Merge(old lockfile.Packages, removed packagekey.Set, added lockfile.Packages) lockfile.Packages {
	merged := make(lockfile.Packages, len(old)+len(added))
	for k, p := range old {
		if !removed.Has(k) {
			merged[k] = p
		}
	}
	for k, p := range added {
		merged[k] = p
	}
	return merged
}
