package chat

import "sort"

// MergeMessages merges a batch into an existing list, deduplicating by id
// and returning a new list sorted ascending by SentAt. Pure: neither input
// is modified. The order of the two sources does not matter; merging the
// same batch via poll and via stream yields exactly one entry per id.
//
// Sentinel-content messages are dropped here as well, so a cached list and
// a live batch go through one policy.
func MergeMessages(existing, batch []Message) []Message {
	seen := make(map[string]struct{}, len(existing)+len(batch))
	merged := make([]Message, 0, len(existing)+len(batch))

	appendUnseen := func(msgs []Message) {
		for _, msg := range msgs {
			if msg.ID == "" || msg.Content == DecryptFailureSentinel {
				continue
			}
			if _, ok := seen[msg.ID]; ok {
				continue
			}
			seen[msg.ID] = struct{}{}
			if msg.LocalID == "" {
				msg.LocalID = msg.ID
			}
			merged = append(merged, msg)
		}
	}

	appendUnseen(existing)
	appendUnseen(batch)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].SentAt.Before(merged[j].SentAt)
	})
	return merged
}
