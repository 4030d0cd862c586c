package chat

import (
	"context"
)

// Subscription is a handle to an open message stream.
type Subscription interface {
	Close() error
}

// Transport is the contract the engine requires from the underlying
// messaging network. The network offers no delivery guarantees of its own;
// the engine compensates by merging the stream with a polling fetch.
//
// Content returned by GetMessages and the stream callback is already
// decrypted, or replaced with DecryptFailureSentinel when decryption under
// the current key failed.
type Transport interface {
	// Send submits plaintext to a peer and returns the transport-assigned
	// authoritative message on success.
	Send(ctx context.Context, peer, content string) (*Message, error)

	// GetMessages fetches the conversation with a peer. forceRefresh
	// bypasses any transport-level cache.
	GetMessages(ctx context.Context, peer string, forceRefresh bool) ([]Message, error)

	// StreamMessages opens a push subscription for new messages from the
	// conversation with peer.
	StreamMessages(ctx context.Context, peer string, onMessage func(Message)) (Subscription, error)

	// CanMessage probes whether the peer is reachable on the network.
	// Advisory only: the engine proceeds either way, after surfacing a
	// warning on false.
	CanMessage(ctx context.Context, peer string) (bool, error)
}

// ReceiptClient is the contract for read-receipt traffic. All operations
// are idempotent and safe to repeat aggressively.
type ReceiptClient interface {
	// MarkRead marks the given peer-authored message ids as read by the
	// local user.
	MarkRead(ctx context.Context, peer string, messageIDs []string) error

	// FetchReceipts returns read receipts the peer produced for the given
	// locally-authored message ids.
	FetchReceipts(ctx context.Context, peer string, messageIDs []string) ([]ReadReceipt, error)

	// ClearUnread resets the transport-level unread counter for the
	// conversation.
	ClearUnread(ctx context.Context, peer string) error
}

// Cache persists a conversation's merged message list across sessions so a
// reopened conversation paints immediately while the fresh fetch runs.
type Cache interface {
	Load(conversationID string) ([]Message, error)
	Save(conversationID string, messages []Message) error
}
