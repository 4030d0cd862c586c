package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/sealedchat/crypto"
)

// MessageStore holds the in-memory message list for one conversation and
// runs the send state machine.
//
// Entries live in an ordered arena keyed by their stable local id; the
// authoritative id is reconciled in place so a confirmed send keeps its
// arena slot. The store is owned by its Conversation for the conversation's
// lifetime and discarded wholesale on close or peer switch.
type MessageStore struct {
	mu      sync.RWMutex
	self    string
	order   []string
	byLocal map[string]*Message
	byAuth  map[string]string
}

// NewMessageStore creates an empty store for the given local address.
func NewMessageStore(selfAddress string) *MessageStore {
	return &MessageStore{
		self:    crypto.NormalizeAddress(selfAddress),
		byLocal: make(map[string]*Message),
		byAuth:  make(map[string]string),
	}
}

// InsertPending adds an optimistic outbound message under a fresh temporary
// id and returns a copy of it. The entry is visible immediately; the send
// round-trip reconciles it later.
func (s *MessageStore) InsertPending(content string) Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	tempID := uuid.NewString()
	msg := &Message{
		ID:            tempID,
		LocalID:       tempID,
		Content:       content,
		SenderAddress: s.self,
		SentAt:        time.Now(),
		Status:        StatusPending,
	}

	s.byLocal[tempID] = msg
	s.order = append(s.order, tempID)
	return *msg
}

// MarkSent reconciles a pending entry with the transport-assigned message:
// the authoritative id (and server timestamp, when present) replace the
// temporary values in place, and status advances to sent. Entries that are
// no longer pending are left untouched.
func (s *MessageStore) MarkSent(localID string, authoritative *Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byLocal[localID]
	if !ok || !msg.Status.canTransition(StatusSent) {
		return false
	}

	if authoritative != nil && authoritative.ID != "" {
		// A concurrent poll can return the just-sent message before this
		// reconcile runs, inserting it under its authoritative id. Collapse
		// the two onto the optimistic entry so its stable LocalID survives,
		// carrying over any status the synced copy already advanced to.
		if dupLocal, exists := s.byAuth[authoritative.ID]; exists && dupLocal != localID {
			dup := s.byLocal[dupLocal]
			if msg.Status.canTransition(dup.Status) {
				msg.Status = dup.Status
			}
			s.removeLocked(dupLocal)
		}
		msg.ID = authoritative.ID
		if !authoritative.SentAt.IsZero() {
			msg.SentAt = authoritative.SentAt
		}
		s.byAuth[msg.ID] = localID
	}
	if msg.Status.canTransition(StatusSent) {
		msg.Status = StatusSent
	}
	return true
}

// MarkFailed moves a pending entry to the terminal failed state. Content is
// preserved so the caller can offer a retry.
func (s *MessageStore) MarkFailed(localID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byLocal[localID]
	if !ok || !msg.Status.canTransition(StatusFailed) {
		return false
	}
	msg.Status = StatusFailed
	return true
}

// Get returns a copy of the entry with the given local id.
func (s *MessageStore) Get(localID string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.byLocal[localID]
	if !ok {
		return Message{}, false
	}
	return *msg, true
}

// Remove deletes an entry from the arena. Used when a failed send is
// retried under a new temporary id.
func (s *MessageStore) Remove(localID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(localID)
}

func (s *MessageStore) removeLocked(localID string) bool {
	msg, ok := s.byLocal[localID]
	if !ok {
		return false
	}
	delete(s.byLocal, localID)
	delete(s.byAuth, msg.ID)
	for i, id := range s.order {
		if id == localID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Append adds one inbound message from the stream path. Duplicates are
// skipped, sentinel content is filtered, and no re-sort happens: an
// out-of-order stream arrival sits at the end until the next poll merge
// corrects it.
func (s *MessageStore) Append(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(msg)
}

// MergeBatch folds a polled batch into the store: every unseen message is
// added, already-known ids are skipped (status never regresses), and the
// list is re-sorted ascending by SentAt. Returns the number of messages
// added.
func (s *MessageStore) MergeBatch(batch []Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, msg := range batch {
		if s.addLocked(msg) {
			added++
		}
	}
	s.sortLocked()
	return added
}

// addLocked inserts one remote-origin message if its id is unseen.
func (s *MessageStore) addLocked(msg Message) bool {
	if msg.ID == "" || msg.Content == DecryptFailureSentinel {
		return false
	}
	if localID, ok := s.byAuth[msg.ID]; ok {
		// Same authoritative id delivered again (stream and poll race).
		// Only a forward status transition may apply.
		existing := s.byLocal[localID]
		if msg.Status != "" && existing.Status.canTransition(msg.Status) {
			existing.Status = msg.Status
		}
		return false
	}
	if _, ok := s.byLocal[msg.ID]; ok {
		return false
	}

	entry := msg
	entry.LocalID = msg.ID
	entry.SenderAddress = crypto.NormalizeAddress(msg.SenderAddress)
	if entry.Status == "" && entry.SenderAddress == s.self {
		// Authored locally but first seen via sync (another device sent
		// it): the transport already accepted it.
		entry.Status = StatusSent
	}

	s.byLocal[entry.LocalID] = &entry
	s.byAuth[entry.ID] = entry.LocalID
	s.order = append(s.order, entry.LocalID)
	return true
}

// sortLocked re-sorts the display order ascending by SentAt. Stable, so
// equal timestamps keep their arrival order.
func (s *MessageStore) sortLocked() {
	sort.SliceStable(s.order, func(i, j int) bool {
		return s.byLocal[s.order[i]].SentAt.Before(s.byLocal[s.order[j]].SentAt)
	})
}

// Messages returns a copy of the visible message list in display order.
func (s *MessageStore) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byLocal[id])
	}
	return out
}

// Len returns the number of visible messages.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// MarkRead advances locally-authored entries with the given authoritative
// ids to read. Returns how many entries changed.
func (s *MessageStore) MarkRead(messageIDs []string) int {
	return s.advance(messageIDs, StatusRead)
}

func (s *MessageStore) advance(messageIDs []string, target SendStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for _, id := range messageIDs {
		localID, ok := s.byAuth[id]
		if !ok {
			continue
		}
		msg := s.byLocal[localID]
		if msg.SenderAddress != s.self {
			continue
		}
		if msg.Status.canTransition(target) {
			msg.Status = target
			changed++
		}
	}

	if changed > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "advance",
			"status":   string(target),
			"changed":  changed,
		}).Debug("Send statuses advanced")
	}
	return changed
}

// OwnSentIDs returns the authoritative ids of locally-authored messages,
// the candidates for read-receipt lookup.
func (s *MessageStore) OwnSentIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, id := range s.order {
		msg := s.byLocal[id]
		if msg.SenderAddress != s.self {
			continue
		}
		if _, ok := s.byAuth[msg.ID]; ok {
			out = append(out, msg.ID)
		}
	}
	return out
}

// PeerAuthoredIDs returns the ids of messages the peer sent, the candidates
// for read marking.
func (s *MessageStore) PeerAuthoredIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, id := range s.order {
		msg := s.byLocal[id]
		if msg.SenderAddress != s.self {
			out = append(out, msg.ID)
		}
	}
	return out
}

// Clear discards all in-memory state. Called on conversation close and
// before a peer switch so messages never leak into the wrong view.
func (s *MessageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = nil
	s.byLocal = make(map[string]*Message)
	s.byAuth = make(map[string]string)
}
