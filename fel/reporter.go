package fel

import (
	"golang.org/x/time/rate"
)

// Reporter receives progress after each chunk of a multi-chunk operation.
// Implementations render progress (a spinner, a log line) or discard it;
// the core never blocks waiting on a Reporter beyond the call itself.
type Reporter func(operation string, bytesDone, bytesTotal int)

// noopReporter discards all progress.
func noopReporter(string, int, int) {}

// RateLimited wraps a Reporter so it is invoked at most once per interval
// defined by limiter, always passing through the final (bytesDone ==
// bytesTotal) call so a caller never misses completion. It keeps a
// 64KiB-chunked DRAM read from emitting one terminal line per 64KiB.
func RateLimited(r Reporter, limiter *rate.Limiter) Reporter {
	if r == nil {
		return noopReporter
	}
	return func(operation string, bytesDone, bytesTotal int) {
		if bytesDone >= bytesTotal || limiter.Allow() {
			r(operation, bytesDone, bytesTotal)
		}
	}
}
