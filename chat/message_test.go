package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    SendStatus
		to      SendStatus
		allowed bool
	}{
		{name: "pending to sent", from: StatusPending, to: StatusSent, allowed: true},
		{name: "sent to delivered", from: StatusSent, to: StatusDelivered, allowed: true},
		{name: "delivered to read", from: StatusDelivered, to: StatusRead, allowed: true},
		{name: "sent to read skips delivered", from: StatusSent, to: StatusRead, allowed: true},
		{name: "pending to failed", from: StatusPending, to: StatusFailed, allowed: true},
		{name: "read back to sent", from: StatusRead, to: StatusSent, allowed: false},
		{name: "delivered back to pending", from: StatusDelivered, to: StatusPending, allowed: false},
		{name: "sent to failed", from: StatusSent, to: StatusFailed, allowed: false},
		{name: "read to failed", from: StatusRead, to: StatusFailed, allowed: false},
		{name: "sent to sent", from: StatusSent, to: StatusSent, allowed: false},
		{name: "failed to sent", from: StatusFailed, to: StatusSent, allowed: false},
		{name: "failed to delivered", from: StatusFailed, to: StatusDelivered, allowed: false},
		{name: "failed to read", from: StatusFailed, to: StatusRead, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.canTransition(tt.to))
		})
	}
}

func TestClassifyContent(t *testing.T) {
	tests := []struct {
		content string
		want    PayloadKind
	}{
		{content: "hello there", want: PayloadText},
		{content: "image::abc123", want: PayloadImage},
		{content: "voice::deadbeef", want: PayloadVoice},
		{content: "location::blob", want: PayloadLocation},
		{content: "art::pixels", want: PayloadArt},
		{content: "imagery is nice", want: PayloadText},
		{content: "", want: PayloadText},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyContent(tt.content), "content %q", tt.content)
	}
}

func TestConversationIDSymmetric(t *testing.T) {
	a := ConversationID("0xAlice", "0xBob")
	b := ConversationID("0xBOB", "0xalice")

	assert.Equal(t, a, b, "both participants must derive the same id")
	assert.Equal(t, "0xalice:0xbob", a)
}

func TestConversationIDNormalizes(t *testing.T) {
	assert.Equal(t, "0xaaa:0xbbb", ConversationID("  0xBBB ", "0xAAA"))
}
