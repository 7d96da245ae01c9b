// Package retry provides backoff and retry logic for transient browser failures.
//
// Page loads are retried on navigation errors and load timeouts using a linear
// policy (1s, 2s, 3s...). Login walls, extraction problems and cancelled contexts
// are never retried.
//
//	err := retry.Do(func() error {
//		return loadPage(ctx, url)
//	}, retry.Navigation(ctx, 3, log))
package retry
