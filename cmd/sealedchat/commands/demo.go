package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opd-ai/sealedchat/chat"
	"github.com/opd-ai/sealedchat/crypto"
)

const demoStatusTimeout = 10 * time.Second

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a two-party conversation over the in-process loopback network",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context())
		},
	}
}

func runDemo(ctx context.Context) error {
	const (
		alice = "alice@example.com"
		bob   = "bob@example.com"
	)

	aliceKP, err := crypto.DeriveFromPIN("111111", alice)
	if err != nil {
		return err
	}
	bobKP, err := crypto.DeriveFromPIN("222222", bob)
	if err != nil {
		return err
	}

	network := chat.NewLoopbackNetwork()
	network.Register(alice, aliceKP)
	network.Register(bob, bobKP)

	opts := func(endpoint *chat.LoopbackEndpoint) chat.Options {
		return chat.Options{
			Receipts:        endpoint,
			PollInterval:    100 * time.Millisecond,
			ReceiptInterval: 100 * time.Millisecond,
		}
	}

	aliceEnd := network.Endpoint(alice)
	bobEnd := network.Endpoint(bob)

	aliceConv := chat.NewConversation(alice, bob, aliceEnd, opts(aliceEnd))
	bobConv := chat.NewConversation(bob, alice, bobEnd, opts(bobEnd))

	if err := aliceConv.Open(ctx); err != nil {
		return err
	}
	defer aliceConv.Close()
	if err := bobConv.Open(ctx); err != nil {
		return err
	}
	defer bobConv.Close()

	sent, err := aliceConv.Send(ctx, "hello from the demo")
	if err != nil {
		return err
	}
	fmt.Printf("alice sent %s (status %s)\n", sent.ID, sent.Status)

	// Pull bob's view immediately instead of waiting out the first poll tick.
	bobConv.Refresh(ctx)

	if err := waitForStatus(ctx, aliceConv, sent.ID, chat.StatusRead); err != nil {
		return err
	}
	fmt.Println("bob's read receipt arrived, final status: read")

	fmt.Println("\nbob's view of the conversation:")
	for _, msg := range bobConv.Messages() {
		fmt.Printf("  [%s] %s: %s\n", msg.SentAt.Format(time.Kitchen), msg.SenderAddress, msg.Content)
	}
	return nil
}

// waitForStatus polls the conversation snapshot until the message reaches the
// wanted status. The receipt loops run on a short cadence, so this settles in
// a few hundred milliseconds.
func waitForStatus(ctx context.Context, conv *chat.Conversation, messageID string, want chat.SendStatus) error {
	deadline := time.Now().Add(demoStatusTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
		for _, msg := range conv.Messages() {
			if msg.ID == messageID && msg.Status == want {
				return nil
			}
		}
	}
	return fmt.Errorf("message %s did not reach status %s within %s", messageID, want, demoStatusTimeout)
}
