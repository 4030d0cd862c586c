package chat

import (
	"github.com/opd-ai/sealedchat/crypto"
)

// ConversationID computes the stable identifier for a two-party
// conversation: the lexicographically sorted, lowercase-normalized join of
// the participant addresses. Both participants derive the same id no matter
// which side computes it, which is what lets both sides reach the same
// shared encryption context and cache slot.
func ConversationID(a, b string) string {
	na := crypto.NormalizeAddress(a)
	nb := crypto.NormalizeAddress(b)
	if nb < na {
		na, nb = nb, na
	}
	return na + ":" + nb
}
