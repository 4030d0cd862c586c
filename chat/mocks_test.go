package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// fakeTransport is a scriptable Transport for unit tests. Batches returned
// by GetMessages are set directly; stream messages are pushed through
// emit().
type fakeTransport struct {
	mu        sync.Mutex
	batch     []Message
	fetchErr  error
	sendErr   error
	canReach  bool
	streamErr error
	handlers  []func(Message)
	sent      []string
	nextID    int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{canReach: true}
}

func (t *fakeTransport) setBatch(batch []Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.batch = append([]Message(nil), batch...)
}

func (t *fakeTransport) setSendErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErr = err
}

func (t *fakeTransport) setFetchErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fetchErr = err
}

func (t *fakeTransport) emit(msg Message) {
	t.mu.Lock()
	handlers := append([]func(Message){}, t.handlers...)
	t.mu.Unlock()
	for _, h := range handlers {
		h(msg)
	}
}

func (t *fakeTransport) Send(_ context.Context, _ string, content string) (*Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return nil, t.sendErr
	}
	t.nextID++
	t.sent = append(t.sent, content)
	return &Message{
		ID:            serverID(t.nextID),
		Content:       content,
		SenderAddress: "0xself",
		SentAt:        time.Now(),
	}, nil
}

func (t *fakeTransport) GetMessages(_ context.Context, _ string, _ bool) ([]Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fetchErr != nil {
		return nil, t.fetchErr
	}
	return append([]Message(nil), t.batch...), nil
}

func (t *fakeTransport) StreamMessages(_ context.Context, _ string, onMessage func(Message)) (Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.streamErr != nil {
		return nil, t.streamErr
	}
	t.handlers = append(t.handlers, onMessage)
	return &fakeSubscription{}, nil
}

func (t *fakeTransport) CanMessage(_ context.Context, _ string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canReach, nil
}

type fakeSubscription struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// fakeReceipts records receipt traffic and serves scripted receipts.
type fakeReceipts struct {
	mu           sync.Mutex
	marked       map[string]int
	receipts     []ReadReceipt
	clearCount   int
	markErr      error
	fetchErr     error
	markedOrder  []string
	fetchedCalls int
}

func newFakeReceipts() *fakeReceipts {
	return &fakeReceipts{marked: make(map[string]int)}
}

func (r *fakeReceipts) setReceipts(receipts []ReadReceipt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts = append([]ReadReceipt(nil), receipts...)
}

func (r *fakeReceipts) MarkRead(_ context.Context, _ string, messageIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return r.markErr
	}
	for _, id := range messageIDs {
		r.marked[id]++
		r.markedOrder = append(r.markedOrder, id)
	}
	return nil
}

func (r *fakeReceipts) FetchReceipts(_ context.Context, _ string, messageIDs []string) ([]ReadReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchedCalls++
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	wanted := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}
	var out []ReadReceipt
	for _, rec := range r.receipts {
		if wanted[rec.MessageID] {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeReceipts) ClearUnread(_ context.Context, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearCount++
	return nil
}

func (r *fakeReceipts) markCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.marked[id]
}

func (r *fakeReceipts) clears() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clearCount
}

// memCache is an in-memory conversation Cache.
type memCache struct {
	mu    sync.Mutex
	blobs map[string][]Message
	saves int
}

func newMemCache() *memCache {
	return &memCache{blobs: make(map[string][]Message)}
}

func (c *memCache) Load(conversationID string) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.blobs[conversationID]...), nil
}

func (c *memCache) Save(conversationID string, messages []Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobs[conversationID] = append([]Message(nil), messages...)
	c.saves++
	return nil
}

func serverID(n int) string {
	return fmt.Sprintf("srv-%d", n)
}

var errNetwork = errors.New("network unreachable")

// remoteMsg builds a peer-authored inbound message.
func remoteMsg(id, content string, at time.Time) Message {
	return Message{ID: id, Content: content, SenderAddress: "0xpeer", SentAt: at}
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
