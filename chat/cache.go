package chat

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/opd-ai/sealedchat/storage"
)

// BoltCache persists conversation snapshots in the device-local store so a
// reopened conversation paints before its first fetch returns.
type BoltCache struct {
	store *storage.Store
}

// NewBoltCache wraps a storage.Store as a conversation Cache.
func NewBoltCache(store *storage.Store) *BoltCache {
	return &BoltCache{store: store}
}

// cachedMessage is the CBOR shape of one cached entry.
type cachedMessage struct {
	ID      string `cbor:"1,keyasint"`
	Content string `cbor:"2,keyasint"`
	Sender  string `cbor:"3,keyasint"`
	SentAt  int64  `cbor:"4,keyasint"`
	Status  string `cbor:"5,keyasint"`
}

// Load returns the cached message list for a conversation, or nil when none
// exists.
func (c *BoltCache) Load(conversationID string) ([]Message, error) {
	blob, err := c.store.LoadConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, nil
	}

	var records []cachedMessage
	if err := cbor.Unmarshal(blob, &records); err != nil {
		return nil, fmt.Errorf("failed to decode conversation cache: %w", err)
	}

	out := make([]Message, 0, len(records))
	for _, r := range records {
		out = append(out, Message{
			ID:            r.ID,
			LocalID:       r.ID,
			Content:       r.Content,
			SenderAddress: r.Sender,
			SentAt:        time.UnixMilli(r.SentAt),
			Status:        SendStatus(r.Status),
		})
	}
	return out, nil
}

// Save stores a snapshot of the conversation. Only settled entries are
// cached: a pending or failed send is an in-flight UI concern of the
// current session, not durable conversation history.
func (c *BoltCache) Save(conversationID string, messages []Message) error {
	records := make([]cachedMessage, 0, len(messages))
	for _, m := range messages {
		if m.Status == StatusPending || m.Status == StatusFailed {
			continue
		}
		records = append(records, cachedMessage{
			ID:      m.ID,
			Content: m.Content,
			Sender:  m.SenderAddress,
			SentAt:  m.SentAt.UnixMilli(),
			Status:  string(m.Status),
		})
	}

	blob, err := cbor.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode conversation cache: %w", err)
	}
	return c.store.SaveConversation(conversationID, blob)
}
