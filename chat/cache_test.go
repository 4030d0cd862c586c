package chat

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/sealedchat/storage"
)

func newBoltCache(t *testing.T) *BoltCache {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewBoltCache(store)
}

func TestBoltCacheRoundTrip(t *testing.T) {
	cache := newBoltCache(t)
	convID := ConversationID("0xalice", "0xbob")
	sentAt := time.Now().Truncate(time.Millisecond)

	msgs := []Message{
		{ID: "m1", LocalID: "m1", Content: "hello", SenderAddress: "0xbob", SentAt: sentAt},
		{ID: "m2", LocalID: "m2", Content: "hi", SenderAddress: "0xalice", SentAt: sentAt.Add(time.Second), Status: StatusRead},
	}
	require.NoError(t, cache.Save(convID, msgs))

	loaded, err := cache.Load(convID)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "hello", loaded[0].Content)
	assert.True(t, loaded[0].SentAt.Equal(sentAt))
	assert.Equal(t, StatusRead, loaded[1].Status)
}

func TestBoltCacheSkipsUnsettledEntries(t *testing.T) {
	cache := newBoltCache(t)
	convID := ConversationID("0xalice", "0xbob")

	msgs := []Message{
		{ID: "tmp-1", LocalID: "tmp-1", Content: "in flight", SenderAddress: "0xalice", SentAt: time.Now(), Status: StatusPending},
		{ID: "tmp-2", LocalID: "tmp-2", Content: "never left", SenderAddress: "0xalice", SentAt: time.Now(), Status: StatusFailed},
		{ID: "m1", LocalID: "m1", Content: "settled", SenderAddress: "0xalice", SentAt: time.Now(), Status: StatusSent},
	}
	require.NoError(t, cache.Save(convID, msgs))

	loaded, err := cache.Load(convID)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "m1", loaded[0].ID)
}

func TestBoltCacheMissingConversation(t *testing.T) {
	cache := newBoltCache(t)

	loaded, err := cache.Load("0xnobody:0xnothing")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
