// Package scheduler holds operation requests until their start time and
// hands them to a callback when it arrives. Recurring entries carry a cron
// expression and are re-armed after every firing.
//
// A single goroutine owns a min-heap of entries ordered by trigger time. It
// never sleeps longer than a minute, so wall-clock jumps from NTP steps or
// system sleep delay a firing by at most that long. Entries live in memory
// only and are lost when the daemon exits.
package scheduler
