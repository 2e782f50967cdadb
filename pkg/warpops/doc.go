// Package warpops is an in-process scheduler for file-management operations.
//
// A caller submits a request (copy, move, delete, trash, link, compress,
// extract, preload, ...) and the Engine turns it into a tree of tasks. Tasks
// are queued by priority per resource Category, dispatched under per-category
// concurrency limits and executed by the Handler registered for their Kind
// against an Adaptor that performs the actual I/O. Directory-shaped requests
// fan out into child tasks while they run; all tasks of one request share a
// Group whose progress is aggregated and published to a Notifier.
//
// Cancellation and pausing are cooperative: handlers call Job.Checkpoint
// between files and between chunks.
package warpops
