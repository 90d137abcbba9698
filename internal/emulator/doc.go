// Package emulator runs a sender and a receiver against a simulated
// unidirectional link that loses, corrupts, delays and optionally reorders
// packets. Time is virtual: events are taken from a calendar ordered by their
// scheduled time, and each one is processed to completion before the next.
//
// One virtual time unit of the classic network emulator corresponds to one
// millisecond here, so link delays are between 1ms and 10ms.
package emulator
