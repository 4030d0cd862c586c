package commands

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opd-ai/sealedchat/config"
	"github.com/opd-ai/sealedchat/crypto"
)

var (
	configPath string
	verbose    bool
	cfg        *config.Config
)

// Execute runs the CLI.
func Execute() error {
	root := &cobra.Command{
		Use:           "sealedchat",
		Short:         "End-to-end encrypted direct messaging client",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded

			level := cfg.LogLevel
			if verbose {
				level = "debug"
			}
			parsed, err := logrus.ParseLevel(level)
			if err != nil {
				return err
			}
			logrus.SetLevel(parsed)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to TOML config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(initKeyCmd(), restoreCheckCmd(), demoCmd())
	return root.Execute()
}

// parseAuthType maps a flag value to its AuthType. Wallet and passkey
// derivation need a browser or hardware credential session, which the CLI
// cannot provide.
func parseAuthType(name string) (crypto.AuthType, error) {
	switch name {
	case "email":
		return crypto.AuthEmail, nil
	case "digitalid":
		return crypto.AuthDigitalID, nil
	case "solana":
		return crypto.AuthSolana, nil
	case "wallet", "passkey":
		return 0, fmt.Errorf("%s auth requires a browser session; the CLI supports the PIN-based auth types", name)
	default:
		return 0, fmt.Errorf("unknown auth type %q (expected email, digitalid, or solana)", name)
	}
}
