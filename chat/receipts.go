package chat

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ReadReceiptTracker reconciles read state for one open conversation.
//
// It runs two independent loops: one marks every peer-authored message as
// read (and clears the transport-level unread counter), one fetches read
// receipts for the user's own sent messages. Both run an immediate pass
// shortly after open so the conversation does not sit in a blank read state
// for a full interval, then repeat on a fixed cadence.
//
// Marking is deliberately aggressive: the same ids are re-marked every
// cycle. The operation is idempotent on the transport side, and repeating
// it tolerates missed or out-of-order delivery of the read signal itself.
type ReadReceiptTracker struct {
	peer     string
	store    *MessageStore
	client   ReceiptClient
	interval time.Duration
	onUpdate func()
}

// NewReadReceiptTracker creates a tracker over a conversation's store.
// onUpdate, if non-nil, fires when fetched receipts changed any status.
func NewReadReceiptTracker(peer string, store *MessageStore, client ReceiptClient, interval time.Duration, onUpdate func()) *ReadReceiptTracker {
	return &ReadReceiptTracker{
		peer:     peer,
		store:    store,
		client:   client,
		interval: interval,
		onUpdate: onUpdate,
	}
}

// Run drives both loops until ctx is canceled.
func (t *ReadReceiptTracker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		t.loop(ctx, t.markPass)
	}()
	go func() {
		defer wg.Done()
		t.loop(ctx, t.fetchPass)
	}()
	wg.Wait()
}

// loop runs one pass immediately, then on every tick.
func (t *ReadReceiptTracker) loop(ctx context.Context, pass func(context.Context)) {
	pass(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pass(ctx)
		}
	}
}

// markPass marks all peer-authored messages read and clears the unread
// counter. Failures are logged and absorbed; the next cycle retries.
func (t *ReadReceiptTracker) markPass(ctx context.Context) {
	ids := t.store.PeerAuthoredIDs()
	if len(ids) > 0 {
		if err := t.client.MarkRead(ctx, t.peer, ids); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "markPass",
				"peer":     t.peer,
				"error":    err.Error(),
			}).Debug("Read marking failed, will retry next cycle")
			return
		}
	}

	if err := t.client.ClearUnread(ctx, t.peer); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "markPass",
			"peer":     t.peer,
			"error":    err.Error(),
		}).Debug("Unread counter clear failed")
	}
}

// fetchPass pulls receipts for the user's own sent ids and advances matching
// entries to read.
func (t *ReadReceiptTracker) fetchPass(ctx context.Context) {
	ids := t.store.OwnSentIDs()
	if len(ids) == 0 {
		return
	}

	receipts, err := t.client.FetchReceipts(ctx, t.peer, ids)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "fetchPass",
			"peer":     t.peer,
			"error":    err.Error(),
		}).Debug("Receipt fetch failed, will retry next cycle")
		return
	}
	if len(receipts) == 0 {
		return
	}

	readIDs := make([]string, 0, len(receipts))
	for _, r := range receipts {
		readIDs = append(readIDs, r.MessageID)
	}

	if t.store.MarkRead(readIDs) > 0 && t.onUpdate != nil {
		t.onUpdate()
	}
}
