package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opd-ai/sealedchat/crypto"
	"github.com/opd-ai/sealedchat/directory"
	"github.com/opd-ai/sealedchat/keymanager"
	"github.com/opd-ai/sealedchat/storage"
)

// restoreAuthType accepts every auth type: the restore evaluation needs no
// secret, only the type's derivation characteristics.
func restoreAuthType(name string) (crypto.AuthType, error) {
	switch name {
	case "wallet":
		return crypto.AuthWallet, nil
	case "passkey":
		return crypto.AuthPasskey, nil
	default:
		return parseAuthType(name)
	}
}

func restoreCheckCmd() *cobra.Command {
	var (
		address  string
		authName string
	)

	cmd := &cobra.Command{
		Use:   "restore-check",
		Short: "Evaluate whether this device needs a key restore",
		RunE: func(cmd *cobra.Command, args []string) error {
			authType, err := restoreAuthType(authName)
			if err != nil {
				return err
			}

			store, err := storage.Open(cfg.StoragePath)
			if err != nil {
				return err
			}
			defer store.Close()

			manager := keymanager.NewManager(store, directory.NewFileDirectory(cfg.DirectoryPath))
			reason, err := manager.EvaluateRestoreNeed(cmd.Context(), address, authType)
			if err != nil {
				return err
			}

			fmt.Println(reason.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "account address")
	cmd.Flags().StringVar(&authName, "auth", "wallet", "auth type (wallet, passkey, email, digitalid, solana)")
	cmd.MarkFlagRequired("address")
	return cmd
}
