// Package chat implements the encrypted conversation synchronization engine
// for sealedchat.
//
// A Conversation merges two unreliable inbound sources, a streaming
// subscription and a periodic polling fetch, into one ordered, deduplicated
// message list, while tracking the send state machine for outbound messages
// (pending, sent, delivered, read, failed) and reconciling read receipts on
// a cadence.
//
// Outbound messages are inserted optimistically under a temporary id so the
// UI reflects the action with zero latency; the transport-assigned id is
// swapped in on confirmation without disturbing the entry's local identity.
package chat
