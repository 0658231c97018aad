// Package eventsource consumes school domain events from Kafka.
//
// Each message is a JSON envelope:
//
//	{"action": "upsert", "event": {"category": "online_lesson", "anchor_time": "...", ...}}
//	{"action": "cancel", "related_id": "lesson-42"}
//
// Upserts replace the pending triggers of the entity named by the event's
// related id, so redelivered or repeated messages do not double-schedule.
// Malformed and invalid events are logged and skipped.
package eventsource
