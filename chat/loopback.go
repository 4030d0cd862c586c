package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opd-ai/sealedchat/crypto"
)

// LoopbackNetwork is an in-process messaging network for demos and
// integration tests. Messages are stored as NaCl box ciphertext and
// decrypted per reader, so the decrypt-failure sentinel path behaves
// exactly as it does against a real transport: a reader holding the wrong
// key sees the sentinel, not plaintext.
type LoopbackNetwork struct {
	mu            sync.RWMutex
	identities    map[string]*crypto.KeyPair
	conversations map[string][]loopRecord
	subs          map[string][]*loopSubscription
	receipts      map[string][]ReadReceipt
	unread        map[string]int

	failSends   bool
	failFetches bool
}

type loopRecord struct {
	id         string
	sender     string
	sentAt     time.Time
	nonce      crypto.Nonce
	ciphertext []byte
}

type loopSubscription struct {
	net       *LoopbackNetwork
	convID    string
	owner     string
	onMessage func(Message)
}

// Close removes the subscription from the network.
func (s *loopSubscription) Close() error {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()

	subs := s.net.subs[s.convID]
	for i, sub := range subs {
		if sub == s {
			s.net.subs[s.convID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	return nil
}

// NewLoopbackNetwork creates an empty network.
func NewLoopbackNetwork() *LoopbackNetwork {
	return &LoopbackNetwork{
		identities:    make(map[string]*crypto.KeyPair),
		conversations: make(map[string][]loopRecord),
		subs:          make(map[string][]*loopSubscription),
		receipts:      make(map[string][]ReadReceipt),
		unread:        make(map[string]int),
	}
}

// Register installs (or replaces) the keypair for an address. Replacing a
// key makes previously stored ciphertext undecryptable for that address,
// which is how tests exercise the sentinel-filter policy.
func (n *LoopbackNetwork) Register(address string, kp *crypto.KeyPair) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.identities[crypto.NormalizeAddress(address)] = kp
}

// Endpoint returns the Transport/ReceiptClient view of the network for one
// registered address.
func (n *LoopbackNetwork) Endpoint(address string) *LoopbackEndpoint {
	return &LoopbackEndpoint{net: n, self: crypto.NormalizeAddress(address)}
}

// SetFailSends makes every Send return an error, simulating an offline
// transport.
func (n *LoopbackNetwork) SetFailSends(fail bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failSends = fail
}

// SetFailFetches makes every GetMessages return an error.
func (n *LoopbackNetwork) SetFailFetches(fail bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failFetches = fail
}

// Unread returns the unread counter an address has for a conversation.
func (n *LoopbackNetwork) Unread(address, peer string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.unread[unreadKey(crypto.NormalizeAddress(address), crypto.NormalizeAddress(peer))]
}

func unreadKey(address, peer string) string {
	return ConversationID(address, peer) + "|" + address
}

// LoopbackEndpoint is one address's connection to a LoopbackNetwork.
type LoopbackEndpoint struct {
	net  *LoopbackNetwork
	self string
}

var _ Transport = (*LoopbackEndpoint)(nil)
var _ ReceiptClient = (*LoopbackEndpoint)(nil)

// Send encrypts content for the peer, stores it, and pushes it to open
// subscriptions.
func (e *LoopbackEndpoint) Send(_ context.Context, peer, content string) (*Message, error) {
	peer = crypto.NormalizeAddress(peer)
	convID := ConversationID(e.self, peer)

	e.net.mu.Lock()
	if e.net.failSends {
		e.net.mu.Unlock()
		return nil, errors.New("loopback: network unavailable")
	}

	selfKP, ok := e.net.identities[e.self]
	if !ok {
		e.net.mu.Unlock()
		return nil, errors.New("loopback: sender has no registered key")
	}
	peerKP, ok := e.net.identities[peer]
	if !ok {
		e.net.mu.Unlock()
		return nil, errors.New("loopback: recipient has no registered key")
	}

	nonce, err := crypto.GenerateNonce()
	if err != nil {
		e.net.mu.Unlock()
		return nil, err
	}
	ciphertext, err := crypto.Encrypt([]byte(content), nonce, peerKP.Public, selfKP.Private)
	if err != nil {
		e.net.mu.Unlock()
		return nil, err
	}

	rec := loopRecord{
		id:         uuid.NewString(),
		sender:     e.self,
		sentAt:     time.Now(),
		nonce:      nonce,
		ciphertext: ciphertext,
	}
	e.net.conversations[convID] = append(e.net.conversations[convID], rec)
	e.net.unread[unreadKey(peer, e.self)]++

	subs := append([]*loopSubscription(nil), e.net.subs[convID]...)
	e.net.mu.Unlock()

	for _, sub := range subs {
		if sub.owner == e.self {
			continue
		}
		sub.onMessage(e.net.decryptFor(sub.owner, convID, rec))
	}

	return &Message{
		ID:            rec.id,
		LocalID:       rec.id,
		Content:       content,
		SenderAddress: e.self,
		SentAt:        rec.sentAt,
	}, nil
}

// GetMessages returns the conversation decrypted for this endpoint's owner.
func (e *LoopbackEndpoint) GetMessages(_ context.Context, peer string, _ bool) ([]Message, error) {
	peer = crypto.NormalizeAddress(peer)
	convID := ConversationID(e.self, peer)

	e.net.mu.RLock()
	if e.net.failFetches {
		e.net.mu.RUnlock()
		return nil, errors.New("loopback: fetch unavailable")
	}
	records := append([]loopRecord(nil), e.net.conversations[convID]...)
	e.net.mu.RUnlock()

	out := make([]Message, 0, len(records))
	for _, rec := range records {
		out = append(out, e.net.decryptFor(e.self, convID, rec))
	}
	return out, nil
}

// StreamMessages opens a push subscription on the conversation.
func (e *LoopbackEndpoint) StreamMessages(_ context.Context, peer string, onMessage func(Message)) (Subscription, error) {
	peer = crypto.NormalizeAddress(peer)
	convID := ConversationID(e.self, peer)

	sub := &loopSubscription{
		net:       e.net,
		convID:    convID,
		owner:     e.self,
		onMessage: onMessage,
	}

	e.net.mu.Lock()
	e.net.subs[convID] = append(e.net.subs[convID], sub)
	e.net.mu.Unlock()
	return sub, nil
}

// CanMessage reports whether the peer has a registered key.
func (e *LoopbackEndpoint) CanMessage(_ context.Context, peer string) (bool, error) {
	e.net.mu.RLock()
	defer e.net.mu.RUnlock()
	_, ok := e.net.identities[crypto.NormalizeAddress(peer)]
	return ok, nil
}

// MarkRead records one receipt per (message, reader); repeats are no-ops.
func (e *LoopbackEndpoint) MarkRead(_ context.Context, peer string, messageIDs []string) error {
	peer = crypto.NormalizeAddress(peer)
	convID := ConversationID(e.self, peer)

	e.net.mu.Lock()
	defer e.net.mu.Unlock()

	existing := make(map[string]bool)
	for _, r := range e.net.receipts[convID] {
		if r.ReaderAddress == e.self {
			existing[r.MessageID] = true
		}
	}
	for _, id := range messageIDs {
		if existing[id] {
			continue
		}
		e.net.receipts[convID] = append(e.net.receipts[convID], ReadReceipt{
			MessageID:     id,
			ReaderAddress: e.self,
			ReadAt:        time.Now(),
		})
	}
	return nil
}

// FetchReceipts returns receipts other readers produced for the given ids.
func (e *LoopbackEndpoint) FetchReceipts(_ context.Context, peer string, messageIDs []string) ([]ReadReceipt, error) {
	peer = crypto.NormalizeAddress(peer)
	convID := ConversationID(e.self, peer)

	wanted := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}

	e.net.mu.RLock()
	defer e.net.mu.RUnlock()

	var out []ReadReceipt
	for _, r := range e.net.receipts[convID] {
		if r.ReaderAddress != e.self && wanted[r.MessageID] {
			out = append(out, r)
		}
	}
	return out, nil
}

// ClearUnread resets the caller's unread counter for the conversation.
func (e *LoopbackEndpoint) ClearUnread(_ context.Context, peer string) error {
	e.net.mu.Lock()
	defer e.net.mu.Unlock()
	e.net.unread[unreadKey(e.self, crypto.NormalizeAddress(peer))] = 0
	return nil
}

// decryptFor opens a record with the reader's current key, substituting the
// sentinel when the key cannot open it.
func (n *LoopbackNetwork) decryptFor(reader, convID string, rec loopRecord) Message {
	msg := Message{
		ID:            rec.id,
		LocalID:       rec.id,
		SenderAddress: rec.sender,
		SentAt:        rec.sentAt,
		Content:       DecryptFailureSentinel,
	}

	n.mu.RLock()
	readerKP := n.identities[reader]
	other := otherParticipant(convID, reader)
	otherKP := n.identities[other]
	n.mu.RUnlock()

	if readerKP == nil || otherKP == nil {
		return msg
	}

	plaintext, err := crypto.Decrypt(rec.ciphertext, rec.nonce, otherKP.Public, readerKP.Private)
	if err != nil {
		return msg
	}
	msg.Content = string(plaintext)
	return msg
}

// otherParticipant extracts the counterpart address from a conversation id.
func otherParticipant(convID, self string) string {
	const sep = ":"
	for i := 0; i < len(convID); i++ {
		if convID[i:i+1] == sep {
			a, b := convID[:i], convID[i+1:]
			if a == self {
				return b
			}
			return a
		}
	}
	return ""
}
