// Package runner executes external processes as asynchronous jobs.
//
// A Handle wraps one Job and moves through Queued, Running, and then
// Finished or TimedOut. Non-zero exits are recorded in the Result rather
// than returned as errors; timeouts kill the process and are reported with
// TimedOut set. Streams handed to a Job are closed exactly once when it
// completes unless the Job opts out with KeepStreams.
//
// Pool bounds how many jobs run at once. Its size comes from the render
// thread count.
package runner
