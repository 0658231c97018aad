// Package dispatcher delivers fired triggers.
//
// For each channel of a trigger the dispatcher writes one notification record,
// then hands it to the channel adapter and records the outcome on the record.
// Channels run concurrently and a failure on one never affects the others.
// SYSTEM delivery is complete once the record is stored; its adapter only
// publishes to live subscribers.
//
// Record ids derive from the trigger id and channel, so a trigger that fires
// twice hits ErrDuplicateNotification instead of delivering again.
package dispatcher
