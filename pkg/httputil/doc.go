// Package httputil provides HTTP helpers shared by the registry client and
// the package installer.
//
// # Retry
//
// [Retry] re-runs an operation when it fails with a [RetryableError]:
//
//   - Network errors
//   - 5xx server errors
//
// Other errors are returned immediately. [RetryWithBackoff] applies the
// defaults used for registry queries (3 attempts, 1s doubling delay).
//
// # Status Classification
//
// [CheckStatus] maps a response status code to nil, [ErrNotFound], or an
// [ErrNetwork]-wrapped error that is retryable for 5xx responses.
//
// # Downloads
//
// [Download] streams a response body into an io.Writer under its own
// timeout. A timeout surfaces as [ErrTimeout] so callers can attribute it to
// the download rather than aborting unrelated work.
package httputil
