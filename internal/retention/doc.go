// Package retention expires keys at a deadline. It runs a single goroutine
// over a min-heap of deadlines, sleeping at most a minute at a time so wall
// clock jumps and system sleep are noticed.
//
// The engine uses it to drop completed task groups that were never
// acknowledged once the retention window has passed.
package retention
