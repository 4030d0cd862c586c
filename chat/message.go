package chat

import (
	"strings"
	"time"
)

// DecryptFailureSentinel is the reserved content value the transport
// substitutes for a message it could not decrypt under the current key.
// Such messages are filtered from the visible conversation entirely:
// surfacing garbled ciphertext or an error bubble is worse than omission,
// and a key restore later makes them readable on the next fetch.
const DecryptFailureSentinel = "__DECRYPTION_FAILED__"

// SendStatus is the delivery state of an outbound message. The zero value
// means the message carries no send state (inbound messages are implicitly
// delivered).
type SendStatus string

const (
	// StatusPending is the optimistic initial state before the transport
	// accepts the message.
	StatusPending SendStatus = "pending"
	// StatusSent means the transport accepted the message.
	StatusSent SendStatus = "sent"
	// StatusDelivered means the peer's client acknowledged receipt.
	StatusDelivered SendStatus = "delivered"
	// StatusRead means the peer marked the message read.
	StatusRead SendStatus = "read"
	// StatusFailed is the terminal failure state, reachable only from
	// pending. Content is preserved for manual retry.
	StatusFailed SendStatus = "failed"
)

// rank orders the forward progression of the state machine. failed sits
// outside the progression and is handled by canTransition.
func (s SendStatus) rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusSent:
		return 2
	case StatusDelivered:
		return 3
	case StatusRead:
		return 4
	default:
		return 0
	}
}

// canTransition reports whether the state machine permits moving from s to
// next. Status only moves forward; the single exception is pending→failed,
// and failed itself is terminal: a late transport confirmation must not
// resurrect an entry the user already saw fail.
func (s SendStatus) canTransition(next SendStatus) bool {
	if s == StatusFailed {
		return false
	}
	if next == StatusFailed {
		return s == StatusPending
	}
	return next.rank() > s.rank()
}

// Message is one entry in a conversation.
//
// ID is the transport-assigned authoritative id once the send round-trip
// completes; until then it holds the temporary local id. LocalID is the
// stable arena key UI layers should use for identity: it never changes,
// even when ID is reconciled, so confirmed sends do not churn list keys.
// Content is never mutated after creation.
type Message struct {
	ID            string
	LocalID       string
	Content       string
	SenderAddress string
	SentAt        time.Time
	Status        SendStatus
}

// ReadReceipt records that a reader marked a message read.
type ReadReceipt struct {
	MessageID     string
	ReaderAddress string
	ReadAt        time.Time
}

// PayloadKind classifies message content by its well-known prefix. The
// engine never interprets these payloads; classification only tells the
// rendering layer which external codec to dispatch to.
type PayloadKind uint8

const (
	PayloadText PayloadKind = iota
	PayloadImage
	PayloadVoice
	PayloadLocation
	PayloadArt
)

// Well-known payload prefixes. Codecs place these in front of their
// ciphertext blobs so receivers can dispatch without decrypting.
const (
	PrefixImage    = "image::"
	PrefixVoice    = "voice::"
	PrefixLocation = "location::"
	PrefixArt      = "art::"
)

// String returns the renderer name of the payload kind.
func (k PayloadKind) String() string {
	switch k {
	case PayloadImage:
		return "image"
	case PayloadVoice:
		return "voice"
	case PayloadLocation:
		return "location"
	case PayloadArt:
		return "art"
	default:
		return "text"
	}
}

// ClassifyContent returns the payload kind indicated by the content's
// prefix. Anything without a known prefix is plain text.
func ClassifyContent(content string) PayloadKind {
	switch {
	case strings.HasPrefix(content, PrefixImage):
		return PayloadImage
	case strings.HasPrefix(content, PrefixVoice):
		return PayloadVoice
	case strings.HasPrefix(content, PrefixLocation):
		return PayloadLocation
	case strings.HasPrefix(content, PrefixArt):
		return PayloadArt
	default:
		return PayloadText
	}
}
