package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/sealedchat/crypto"
)

const (
	// DefaultPollInterval is how often the engine force-refreshes the
	// conversation from the transport.
	DefaultPollInterval = 3 * time.Second
	// DefaultReceiptInterval is the cadence of both read-receipt loops.
	DefaultReceiptInterval = 5 * time.Second
)

// ErrConversationClosed is returned by operations on a conversation that is
// not open.
var ErrConversationClosed = errors.New("conversation is not open")

// SendError wraps a transport send failure. The entry stays in the list as
// failed with its content preserved; LocalID identifies it for Retry.
type SendError struct {
	LocalID string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed for message %s: %v", e.LocalID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Options configures a Conversation. Zero-value fields fall back to
// defaults; Receipts and Cache are optional.
type Options struct {
	Receipts        ReceiptClient
	Cache           Cache
	PollInterval    time.Duration
	ReceiptInterval time.Duration

	// OnUpdate fires with a fresh snapshot whenever the visible list or a
	// status changes. Called from engine goroutines; implementations hand
	// off to their own loop.
	OnUpdate func([]Message)
}

// Conversation is the synchronization engine for one peer. It owns the
// message store, the streaming subscription, the poll loop, and the receipt
// tracker for its lifetime.
type Conversation struct {
	self      string
	peer      string
	id        string
	store     *MessageStore
	transport Transport
	opts      Options
	log       *logrus.Entry

	mu     sync.Mutex
	open   bool
	cancel context.CancelFunc
	sub    Subscription
	wg     sync.WaitGroup
}

// NewConversation creates the engine for a conversation between self and
// peer. Nothing runs until Open.
func NewConversation(self, peer string, transport Transport, opts Options) *Conversation {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ReceiptInterval <= 0 {
		opts.ReceiptInterval = DefaultReceiptInterval
	}

	self = crypto.NormalizeAddress(self)
	peer = crypto.NormalizeAddress(peer)
	id := ConversationID(self, peer)

	return &Conversation{
		self:      self,
		peer:      peer,
		id:        id,
		store:     NewMessageStore(self),
		transport: transport,
		opts:      opts,
		log: logrus.WithFields(logrus.Fields{
			"conversation": id,
			"peer":         peer,
		}),
	}
}

// ID returns the stable conversation identifier.
func (c *Conversation) ID() string { return c.id }

// Messages returns a snapshot of the visible message list.
func (c *Conversation) Messages() []Message {
	return c.store.Messages()
}

// Open starts the engine: the cached list is loaded for immediate display,
// the streaming subscription and poll loop begin, and the receipt tracker
// starts its two loops. Everything Open launches stops on Close.
func (c *Conversation) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		return errors.New("conversation already open")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.open = true

	c.loadCache()
	c.probeReachability(runCtx)

	sub, err := c.transport.StreamMessages(runCtx, c.peer, c.handleStreamMessage)
	if err != nil {
		// Stream-less operation is degraded but workable: the poll loop
		// still converges within one interval.
		c.log.WithField("error", err.Error()).Warn("Stream subscription failed, relying on polling")
	} else {
		c.sub = sub
	}

	c.wg.Add(1)
	go c.pollLoop(runCtx)

	if c.opts.Receipts != nil {
		tracker := NewReadReceiptTracker(c.peer, c.store, c.opts.Receipts, c.opts.ReceiptInterval, func() {
			c.notify()
		})
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			tracker.Run(runCtx)
		}()
	}

	c.log.Info("Conversation opened")
	return nil
}

// Close stops the stream subscription and both periodic loops, then
// discards all in-memory message state so a subsequent peer switch starts
// clean.
func (c *Conversation) Close() error {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return nil
	}
	c.open = false
	cancel := c.cancel
	sub := c.sub
	c.cancel = nil
	c.sub = nil
	c.mu.Unlock()

	cancel()
	if sub != nil {
		if err := sub.Close(); err != nil {
			c.log.WithField("error", err.Error()).Debug("Stream close reported error")
		}
	}
	c.wg.Wait()
	c.store.Clear()

	c.log.Info("Conversation closed")
	return nil
}

// Send inserts the message optimistically and runs the transport
// round-trip. On success the temporary id is replaced with the
// transport-assigned one; on failure the entry becomes failed with content
// preserved and a *SendError identifies it for Retry.
func (c *Conversation) Send(ctx context.Context, content string) (Message, error) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return Message{}, ErrConversationClosed
	}
	c.mu.Unlock()

	msg := c.store.InsertPending(content)
	c.notify()

	authoritative, err := c.transport.Send(ctx, c.peer, content)
	if err != nil {
		c.store.MarkFailed(msg.LocalID)
		c.notify()
		c.log.WithFields(logrus.Fields{
			"local_id": msg.LocalID,
			"error":    err.Error(),
		}).Warn("Message send failed")
		failed, _ := c.store.Get(msg.LocalID)
		return failed, &SendError{LocalID: msg.LocalID, Err: err}
	}

	c.store.MarkSent(msg.LocalID, authoritative)
	c.notify()

	sent, _ := c.store.Get(msg.LocalID)
	return sent, nil
}

// Retry re-sends a failed message's original content as a new pending
// entry. The failed entry is removed once the retry is underway.
func (c *Conversation) Retry(ctx context.Context, localID string) (Message, error) {
	prev, ok := c.store.Get(localID)
	if !ok {
		return Message{}, fmt.Errorf("no message with local id %s", localID)
	}
	if prev.Status != StatusFailed {
		return Message{}, fmt.Errorf("message %s is %s, only failed messages can be retried", localID, prev.Status)
	}

	c.store.Remove(localID)
	return c.Send(ctx, prev.Content)
}

// Refresh runs one poll pass immediately, outside the timer cadence.
func (c *Conversation) Refresh(ctx context.Context) {
	c.pollOnce(ctx)
}

// handleStreamMessage is the stream-path insert: append-only, deduplicated,
// no re-sort. An out-of-order arrival is corrected by the next poll merge.
func (c *Conversation) handleStreamMessage(msg Message) {
	if c.store.Append(msg) {
		c.log.WithField("message_id", msg.ID).Debug("Stream message appended")
		c.notify()
	}
}

// pollLoop force-refreshes the conversation on a fixed interval. The first
// pass runs immediately so the cached view is reconciled without waiting a
// full interval.
func (c *Conversation) pollLoop(ctx context.Context) {
	defer c.wg.Done()

	c.pollOnce(ctx)

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollOnce(ctx)
		}
	}
}

// pollOnce fetches a force-refreshed batch and merges it. Fetch errors are
// logged and absorbed: transient failures are expected on this class of
// transport, and the next cycle (or the stream) heals the gap.
func (c *Conversation) pollOnce(ctx context.Context) {
	batch, err := c.transport.GetMessages(ctx, c.peer, true)
	if err != nil {
		if ctx.Err() == nil {
			c.log.WithField("error", err.Error()).Debug("Poll fetch failed, absorbing")
		}
		return
	}

	added := c.store.MergeBatch(batch)
	c.saveCache()
	if added > 0 {
		c.log.WithField("added", added).Debug("Poll merge added messages")
		c.notify()
	}
}

// probeReachability runs the advisory capability check in the background.
// Sync proceeds regardless of the answer.
func (c *Conversation) probeReachability(ctx context.Context) {
	go func() {
		ok, err := c.transport.CanMessage(ctx, c.peer)
		if err != nil {
			c.log.WithField("error", err.Error()).Debug("Reachability probe failed")
			return
		}
		if !ok {
			c.log.Warn("Peer is not reachable on the messaging network, messages may not be delivered")
		}
	}()
}

// loadCache paints the conversation from the local cache before any network
// traffic completes.
func (c *Conversation) loadCache() {
	if c.opts.Cache == nil {
		return
	}
	cached, err := c.opts.Cache.Load(c.id)
	if err != nil {
		c.log.WithField("error", err.Error()).Debug("Conversation cache load failed")
		return
	}
	if len(cached) == 0 {
		return
	}
	c.store.MergeBatch(cached)
	c.notify()
}

func (c *Conversation) saveCache() {
	if c.opts.Cache == nil {
		return
	}
	if err := c.opts.Cache.Save(c.id, c.store.Messages()); err != nil {
		c.log.WithField("error", err.Error()).Debug("Conversation cache save failed")
	}
}

func (c *Conversation) notify() {
	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate(c.store.Messages())
	}
}
