// Package workflow advances queued jobs through their media processors.
//
// The Manager polls the queue with a small pool of workers, claims pending
// jobs one at a time, and dispatches each to the processor registered for its
// media kind. Progress callbacks are written through to the queue so /status
// always reflects live state, job timeouts bound runaway external tools, and
// finished jobs are handed to the delivery hook so the originating chat gets
// its result. Stuck running jobs left behind by a crash are reset to pending
// on startup.
package workflow
