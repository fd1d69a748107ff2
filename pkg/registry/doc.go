// Package registry queries the wapm package registry.
//
// The registry speaks GraphQL over HTTP POST. [Client] sends queries with an
// optional bearer token, retries transient failures with
// [httputil.RetryWithBackoff] and caches package listings in a
// [cache.Cache].
//
// [Resolver] implements the resolution stage of an update: it fetches the
// published versions of every requested package once, concurrently, and
// picks a version per key with [SelectVersion]. Exact keys need an exact
// match; range keys take the highest satisfying version. Registry names are
// compared after global-namespace normalization, so "foo" and "_/foo" are
// the same package.
package registry
