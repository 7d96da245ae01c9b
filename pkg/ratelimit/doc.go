// Package ratelimit paces page loads so the monitor visits Instagram at a
// human-like rate. It is built on golang.org/x/time/rate with a burst of one.
//
//	pacer := ratelimit.NewPacer(1500 * time.Millisecond)
//	if err := pacer.Wait(ctx); err != nil {
//		return err // cancelled
//	}
package ratelimit
