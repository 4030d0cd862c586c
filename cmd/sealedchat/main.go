package main

import (
	"os"

	"github.com/opd-ai/sealedchat/cmd/sealedchat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
