// Package events publishes appointment lifecycle transitions to Kafka.
//
// Each event type has its own topic. Messages are keyed by appointment id so every
// transition of one appointment lands on the same partition, and carry event_id and
// event_type headers plus the W3C trace context of the request that caused them.
package events
