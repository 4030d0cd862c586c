package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runTracker(t *testing.T, tracker *ReadReceiptTracker) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tracker.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

// TestTrackerImmediatePass verifies both loops run shortly after open
// rather than waiting out a full interval.
func TestTrackerImmediatePass(t *testing.T) {
	store := NewMessageStore("0xself")
	store.MergeBatch([]Message{remoteMsg("m1", "from peer", time.Now())})

	receipts := newFakeReceipts()
	tracker := NewReadReceiptTracker("0xpeer", store, receipts, time.Hour, nil)
	runTracker(t, tracker)

	assert.True(t, waitFor(time.Second, func() bool {
		return receipts.markCount("m1") == 1 && receipts.clears() == 1
	}), "mark pass must run immediately despite the long interval")
}

// TestTrackerAggressiveRemark checks the same ids are re-marked on every
// cycle; marking is idempotent on the transport side.
func TestTrackerAggressiveRemark(t *testing.T) {
	store := NewMessageStore("0xself")
	store.MergeBatch([]Message{remoteMsg("m1", "from peer", time.Now())})

	receipts := newFakeReceipts()
	tracker := NewReadReceiptTracker("0xpeer", store, receipts, 15*time.Millisecond, nil)
	runTracker(t, tracker)

	assert.True(t, waitFor(time.Second, func() bool {
		return receipts.markCount("m1") >= 3
	}))
}

func TestTrackerFetchAdvancesToRead(t *testing.T) {
	store := NewMessageStore("0xself")
	msg := store.InsertPending("hello")
	store.MarkSent(msg.LocalID, &Message{ID: "srv-1"})

	receipts := newFakeReceipts()
	receipts.setReceipts([]ReadReceipt{{MessageID: "srv-1", ReaderAddress: "0xpeer", ReadAt: time.Now()}})

	updated := make(chan struct{}, 8)
	tracker := NewReadReceiptTracker("0xpeer", store, receipts, 15*time.Millisecond, func() {
		select {
		case updated <- struct{}{}:
		default:
		}
	})
	runTracker(t, tracker)

	select {
	case <-updated:
	case <-time.After(time.Second):
		t.Fatal("receipt fetch never advanced the status")
	}

	got, _ := store.Get(msg.LocalID)
	assert.Equal(t, StatusRead, got.Status)
}

// TestTrackerPicksUpNewMessages confirms the id sets are recomputed from
// the store on every cycle rather than snapshotted at open.
func TestTrackerPicksUpNewMessages(t *testing.T) {
	store := NewMessageStore("0xself")
	receipts := newFakeReceipts()
	tracker := NewReadReceiptTracker("0xpeer", store, receipts, 15*time.Millisecond, nil)
	runTracker(t, tracker)

	// No peer messages yet; only the unread clear runs.
	require.True(t, waitFor(time.Second, func() bool { return receipts.clears() >= 1 }))
	assert.Equal(t, 0, receipts.markCount("m1"))

	store.MergeBatch([]Message{remoteMsg("m1", "late arrival", time.Now())})

	assert.True(t, waitFor(time.Second, func() bool {
		return receipts.markCount("m1") >= 1
	}))
}

func TestTrackerAbsorbsClientErrors(t *testing.T) {
	store := NewMessageStore("0xself")
	store.MergeBatch([]Message{remoteMsg("m1", "from peer", time.Now())})
	msg := store.InsertPending("out")
	store.MarkSent(msg.LocalID, &Message{ID: "srv-1"})

	receipts := newFakeReceipts()
	receipts.markErr = errNetwork
	receipts.fetchErr = errNetwork

	tracker := NewReadReceiptTracker("0xpeer", store, receipts, 15*time.Millisecond, nil)
	runTracker(t, tracker)

	// Loops keep cycling through failures.
	time.Sleep(60 * time.Millisecond)

	receipts.mu.Lock()
	receipts.markErr = nil
	receipts.fetchErr = nil
	receipts.receipts = []ReadReceipt{{MessageID: "srv-1", ReaderAddress: "0xpeer", ReadAt: time.Now()}}
	receipts.mu.Unlock()

	assert.True(t, waitFor(time.Second, func() bool {
		got, _ := store.Get(msg.LocalID)
		return receipts.markCount("m1") >= 1 && got.Status == StatusRead
	}))
}
